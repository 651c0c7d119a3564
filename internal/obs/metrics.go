package obs

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// HTTP-level metrics shared by every handler.
var (
	httpInFlight = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "http_in_flight_requests",
		Help: "In-flight HTTP requests.",
	})

	httpRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests.",
		},
		[]string{"method", "path", "status"},
	)

	httpRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request latencies in seconds.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)
)

// Safe-mutation subsystem metrics.
var (
	idempotentReplays = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "idempotent_replays_total",
		Help: "Mutating requests answered from the idempotency store.",
	})

	editConflicts = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "edit_conflicts_total",
		Help: "Optimistic-concurrency conflicts returned to callers.",
	})

	credentialChecks = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "credential_verifications_total",
			Help: "Credential verification attempts by result.",
		},
		[]string{"result"},
	)

	tokenCacheSize = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "token_cache_entries",
		Help: "Entries currently held by the in-memory token cache.",
	})

	readiness = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "service_ready",
		Help: "1 when the service considers itself ready.",
	})
)

// Init registers all metrics with the default registry.
func Init() {
	prometheus.MustRegister(
		httpInFlight, httpRequestsTotal, httpRequestDuration,
		idempotentReplays, editConflicts, credentialChecks,
		tokenCacheSize, readiness,
	)
}

// Handler exposes the Prometheus scrape endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}

// IncIdempotentReplay counts a request short-circuited by the idempotency store.
func IncIdempotentReplay() { idempotentReplays.Inc() }

// IncEditConflict counts a version-guard conflict.
func IncEditConflict() { editConflicts.Inc() }

// ObserveCredentialCheck counts a credential verification outcome ("ok" or "fail").
func ObserveCredentialCheck(result string) { credentialChecks.WithLabelValues(result).Inc() }

// SetTokenCacheSize records the current token cache cardinality.
func SetTokenCacheSize(n int) { tokenCacheSize.Set(float64(n)) }

// SetReady flips the readiness gauge.
func SetReady(ready bool) {
	if ready {
		readiness.Set(1)
		return
	}
	readiness.Set(0)
}

// Instrument wraps a handler with RPS/latency/in-flight measurements.
func Instrument(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		httpInFlight.Inc()
		start := time.Now()

		sw := &statusWriter{ResponseWriter: w, code: 200}
		next.ServeHTTP(sw, r)

		duration := time.Since(start).Seconds()
		status := strconv.Itoa(sw.code)

		httpRequestDuration.WithLabelValues(r.Method, r.URL.Path, status).Observe(duration)
		httpRequestsTotal.WithLabelValues(r.Method, r.URL.Path, status).Inc()
		httpInFlight.Dec()
	})
}

// statusWriter captures the response code written by downstream handlers.
type statusWriter struct {
	http.ResponseWriter
	code int
}

func (w *statusWriter) WriteHeader(code int) {
	w.code = code
	w.ResponseWriter.WriteHeader(code)
}

package httpapi

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"reviewdesk.org/internal/auth"
	"reviewdesk.org/internal/idempotency"
	"reviewdesk.org/internal/obs"
	"reviewdesk.org/internal/review"
)

// ReadyProbe checks the backing stores for the readiness endpoint.
type ReadyProbe struct {
	DB   *sql.DB
	Ping func(ctx context.Context) error
}

func (rp ReadyProbe) Check(ctx context.Context) error {
	if rp.DB != nil {
		if err := rp.DB.PingContext(ctx); err != nil {
			return err
		}
	}
	if rp.Ping != nil {
		return rp.Ping(ctx)
	}
	return nil
}

// Config carries the API dependencies.
type Config struct {
	ReadyProbe ReadyProbe
	Version    string

	Service  *review.Service
	Verifier *auth.Verifier
	Issuer   *auth.Issuer
	Tokens   auth.TokenStore
	Cache    *auth.TokenCache

	RateBurst    int
	RatePerSec   int
	MaxBodyBytes int64
}

// API is the HTTP layer.
type API struct {
	mux        *http.ServeMux
	readyProbe ReadyProbe
	version    string

	svc      *review.Service
	verifier *auth.Verifier
	issuer   *auth.Issuer
	tokens   auth.TokenStore
	cache    *auth.TokenCache

	rateBurst  int
	ratePerSec int
	maxBody    int64
}

func New(cfg Config) *API {
	a := &API{
		mux:        http.NewServeMux(),
		readyProbe: cfg.ReadyProbe,
		version:    cfg.Version,
		svc:        cfg.Service,
		verifier:   cfg.Verifier,
		issuer:     cfg.Issuer,
		tokens:     cfg.Tokens,
		cache:      cfg.Cache,
		rateBurst:  cfg.RateBurst,
		ratePerSec: cfg.RatePerSec,
		maxBody:    cfg.MaxBodyBytes,
	}
	if a.rateBurst <= 0 {
		a.rateBurst = 50
	}
	if a.ratePerSec <= 0 {
		a.ratePerSec = 25
	}
	if a.maxBody <= 0 {
		a.maxBody = 1 << 20
	}

	// health/ready/info
	a.mux.HandleFunc("/healthz", a.Healthz)
	a.mux.HandleFunc("/readyz", a.Ready)
	a.mux.HandleFunc("/v1/info", a.Info)

	// Prometheus metrics
	a.mux.Handle("/metrics", obs.Handler())

	// auth
	a.mux.HandleFunc("/v1/auth/login", a.handleLogin)
	a.mux.HandleFunc("/v1/auth/logout", a.handleLogout)

	// domain resources
	a.mux.HandleFunc("/v1/users", a.handleUsersCollection)
	a.mux.HandleFunc("/v1/users/", a.handleUserResource)
	a.mux.HandleFunc("/v1/requesters", a.handleRequestersCollection)
	a.mux.HandleFunc("/v1/requesters/", a.handleRequesterResource)
	a.mux.HandleFunc("/v1/software", a.handleSoftwareCollection)
	a.mux.HandleFunc("/v1/software/", a.handleSoftwareResource)
	a.mux.HandleFunc("/v1/review-requests", a.handleRequestsCollection)
	a.mux.HandleFunc("/v1/review-requests/", a.handleRequestResource)
	a.mux.HandleFunc("/v1/reviews", a.handleReviewsCollection)
	a.mux.HandleFunc("/v1/reviews/", a.handleReviewResource)

	a.mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	})

	return a
}

// Handler returns the fully wrapped http.Handler.
func (a *API) Handler() http.Handler {
	var h http.Handler = a.mux
	h = a.withAuth(h)
	h = MaxBodyBytes(h, a.maxBody)
	h = RateLimit(h, a.rateBurst, a.ratePerSec)
	h = CORS(h)
	h = SecurityHeaders(h)
	h = LoggingJSON(h)
	h = RequestID(h)
	return obs.Instrument(h)
}

// --- Handlers ---

func (a *API) Healthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"service": "reviewdesk-api",
		"version": a.version,
	})
}

func (a *API) Ready(w http.ResponseWriter, r *http.Request) {
	if err := a.readyProbe.Check(r.Context()); err != nil {
		obs.SetReady(false)
		writeJSON(w, http.StatusServiceUnavailable, map[string]any{
			"status": "not_ready",
			"error":  err.Error(),
		})
		return
	}
	obs.SetReady(true)
	writeJSON(w, http.StatusOK, map[string]any{
		"status": "ready",
	})
}

func (a *API) Info(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"name":    "reviewdesk-api",
		"time":    time.Now().UTC().Format(time.RFC3339),
		"version": a.version,
	})
}

// --- mutation plumbing ---

// mutationContext extracts the authenticated subject and the Idempotency-Key
// header every mutating endpoint requires.
func (a *API) mutationContext(w http.ResponseWriter, r *http.Request) (subjectID, rawKey string, ok bool) {
	principal, found := auth.PrincipalFromContext(r.Context())
	if !found {
		writeError(w, r, http.StatusUnauthorized, "authentication required")
		return "", "", false
	}
	rawKey = strings.TrimSpace(r.Header.Get("Idempotency-Key"))
	if rawKey == "" {
		writeError(w, r, http.StatusBadRequest, "Idempotency-Key header is required")
		return "", "", false
	}
	return principal.SubjectID, rawKey, true
}

func (a *API) requireRole(w http.ResponseWriter, r *http.Request, role string) bool {
	if !auth.HasRole(r.Context(), role) {
		writeError(w, r, http.StatusForbidden, auth.ErrInvalidRole.Error())
		return false
	}
	return true
}

// replayCreated answers a replayed create: the earlier attempt already
// produced the record, so there is nothing new to report.
func replayCreated(w http.ResponseWriter) {
	w.WriteHeader(http.StatusNoContent)
}

// replayMutation answers a replayed update or delete.
func replayMutation(w http.ResponseWriter) {
	writeJSON(w, http.StatusAlreadyReported, map[string]any{
		"status": "already_processed",
	})
}

func handleReviewError(w http.ResponseWriter, r *http.Request, err error) {
	var verr *idempotency.ValidationError
	switch {
	case errors.As(err, &verr):
		writeError(w, r, http.StatusBadRequest, verr.Error())
	case errors.Is(err, review.ErrInvalidInput), errors.Is(err, review.ErrNoUpdates):
		writeError(w, r, http.StatusBadRequest, err.Error())
	case errors.Is(err, review.ErrNotFound):
		writeError(w, r, http.StatusNotFound, err.Error())
	case errors.Is(err, review.ErrEditConflict), errors.Is(err, review.ErrDuplicate):
		writeError(w, r, http.StatusConflict, err.Error())
	case errors.Is(err, idempotency.ErrUnavailable):
		writeError(w, r, http.StatusServiceUnavailable, "idempotency store unavailable")
	default:
		writeError(w, r, http.StatusInternalServerError, "internal error")
	}
}

func pageFromQuery(r *http.Request) (review.Page, error) {
	limit, err := parsePositiveInt(r.URL.Query().Get("limit"), 50, 1, 200)
	if err != nil {
		return review.Page{}, err
	}
	return review.Page{
		Limit: limit,
		After: strings.TrimSpace(r.URL.Query().Get("after")),
		Sort:  strings.TrimSpace(r.URL.Query().Get("sort")),
	}, nil
}

func parsePositiveInt(raw string, def, min, max int) (int, error) {
	if strings.TrimSpace(raw) == "" {
		return def, nil
	}
	val, err := strconv.Atoi(raw)
	if err != nil {
		return 0, errors.New("limit must be an integer")
	}
	if val < min || val > max {
		return 0, errors.New("limit must be between 1 and 200")
	}
	return val, nil
}

func resourceID(r *http.Request, prefix string) (string, bool) {
	id := strings.Trim(strings.TrimPrefix(r.URL.Path, prefix), "/")
	if id == "" || strings.Contains(id, "/") {
		return "", false
	}
	return id, true
}

func collection[T any](items []T, p review.Page) map[string]any {
	if items == nil {
		items = []T{}
	}
	return map[string]any{
		"items": items,
		"count": len(items),
		"limit": p.Limit,
	}
}

// --- helpers ---

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, r *http.Request, code int, msg string) {
	payload := map[string]any{
		"error": msg,
	}
	if rid := RequestIDFromContext(r.Context()); rid != "" {
		payload["request_id"] = rid
	}
	writeJSON(w, code, payload)
}

func methodNotAllowed(w http.ResponseWriter, r *http.Request, allowed ...string) {
	w.Header().Set("Allow", strings.Join(allowed, ", "))
	writeError(w, r, http.StatusMethodNotAllowed, "method not allowed")
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	reader := http.MaxBytesReader(w, r.Body, 1<<20)
	defer reader.Close()
	dec := json.NewDecoder(reader)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return errors.New("request body is required")
		}
		return err
	}
	if err := dec.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		if err == nil {
			return errors.New("unexpected data after JSON body")
		}
		return err
	}
	return nil
}

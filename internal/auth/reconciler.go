package auth

import (
	"context"
	"sync"
	"time"

	"reviewdesk.org/internal/obs"
)

const defaultReconcileInterval = 10 * time.Minute

// Reconciler periodically re-derives the token cache from the authoritative
// store. It only evicts: freshly issued tokens enter the cache synchronously
// at login time, so a missing-but-valid entry is never added back here. The
// cache therefore converges toward revocation within one polling interval.
type Reconciler struct {
	cache    *TokenCache
	store    TokenStore
	interval time.Duration
	now      func() time.Time

	startOnce sync.Once
	stopOnce  sync.Once
	cancel    context.CancelFunc
	done      chan struct{}
}

// ReconcilerOption configures the Reconciler.
type ReconcilerOption func(*Reconciler)

// WithReconcileInterval overrides the polling interval.
func WithReconcileInterval(d time.Duration) ReconcilerOption {
	return func(r *Reconciler) {
		if d > 0 {
			r.interval = d
		}
	}
}

// WithReconcilerClock overrides the time source (useful for tests).
func WithReconcilerClock(fn func() time.Time) ReconcilerOption {
	return func(r *Reconciler) {
		if fn != nil {
			r.now = fn
		}
	}
}

// NewReconciler builds a stopped reconciler.
func NewReconciler(cache *TokenCache, store TokenStore, opts ...ReconcilerOption) *Reconciler {
	r := &Reconciler{
		cache:    cache,
		store:    store,
		interval: defaultReconcileInterval,
		now:      time.Now,
		done:     make(chan struct{}),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Start launches the background loop. The loop stops when Stop is called or
// the parent context ends.
func (r *Reconciler) Start(ctx context.Context) {
	r.startOnce.Do(func() {
		ctx, r.cancel = context.WithCancel(ctx)
		go r.loop(ctx)
	})
}

// Stop terminates the loop and waits for it to exit. Safe to call without a
// prior Start.
func (r *Reconciler) Stop() {
	r.stopOnce.Do(func() {
		if r.cancel == nil {
			close(r.done)
			return
		}
		r.cancel()
		<-r.done
	})
}

func (r *Reconciler) loop(ctx context.Context) {
	defer close(r.done)
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := r.RunOnce(ctx); err != nil {
				// A failed fetch must not kill the loop; the cache would
				// otherwise go permanently stale.
				obs.LogEntry(map[string]any{
					"ts":    r.now().UTC().Format(time.RFC3339Nano),
					"level": "error",
					"msg":   "token_reconcile_failed",
					"error": err.Error(),
				})
			}
		}
	}
}

// RunOnce performs a single reconciliation pass: every cached entry absent
// from the authoritative valid set is evicted.
func (r *Reconciler) RunOnce(ctx context.Context) error {
	valid, err := r.store.ListValid(ctx, r.now().UTC())
	if err != nil {
		return err
	}
	validSet := make(map[CacheEntry]struct{}, len(valid))
	for _, entry := range valid {
		validSet[entry] = struct{}{}
	}
	for _, entry := range r.cache.Snapshot() {
		if _, ok := validSet[entry]; !ok {
			r.cache.Remove(entry)
		}
	}
	return nil
}

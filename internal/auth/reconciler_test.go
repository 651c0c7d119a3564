package auth

import (
	"context"
	"errors"
	"testing"
	"time"
)

type stubTokenStore struct {
	valid   []CacheEntry
	listErr error
}

func (s *stubTokenStore) Create(ctx context.Context, rec TokenRecord) error { return nil }
func (s *stubTokenStore) MarkRevoked(ctx context.Context, tokenID string) error {
	return nil
}
func (s *stubTokenStore) MarkRevokedBySubject(ctx context.Context, subjectID string) error {
	return nil
}
func (s *stubTokenStore) ListValid(ctx context.Context, now time.Time) ([]CacheEntry, error) {
	if s.listErr != nil {
		return nil, s.listErr
	}
	return s.valid, nil
}

func TestRunOnceEvictsRevoked(t *testing.T) {
	cache := NewTokenCache()
	live := CacheEntry{TokenID: "t1", SubjectID: "U1"}
	revoked := CacheEntry{TokenID: "t2", SubjectID: "U2"}
	cache.Insert(live)
	cache.Insert(revoked)

	store := &stubTokenStore{valid: []CacheEntry{live}}
	r := NewReconciler(cache, store)

	if err := r.RunOnce(context.Background()); err != nil {
		t.Fatalf("RunOnce: %v", err)
	}
	if !cache.Contains(live) {
		t.Fatalf("valid entry was evicted")
	}
	if cache.Contains(revoked) {
		t.Fatalf("revoked entry survived reconciliation")
	}
}

func TestRunOnceNeverInserts(t *testing.T) {
	cache := NewTokenCache()
	stale := CacheEntry{TokenID: "t9", SubjectID: "U9"}
	store := &stubTokenStore{valid: []CacheEntry{stale}}

	r := NewReconciler(cache, store)
	if err := r.RunOnce(context.Background()); err != nil {
		t.Fatalf("RunOnce: %v", err)
	}
	// Entries enter the cache only at login; the reconciler is eviction-only.
	if cache.Contains(stale) {
		t.Fatalf("reconciler inserted an entry")
	}
}

func TestRunOnceStoreErrorKeepsCache(t *testing.T) {
	cache := NewTokenCache()
	entry := CacheEntry{TokenID: "t1", SubjectID: "U1"}
	cache.Insert(entry)

	store := &stubTokenStore{listErr: errors.New("db down")}
	r := NewReconciler(cache, store)

	if err := r.RunOnce(context.Background()); err == nil {
		t.Fatalf("expected error from failing store")
	}
	if !cache.Contains(entry) {
		t.Fatalf("cache must be left untouched when the store is unavailable")
	}
}

func TestStartStop(t *testing.T) {
	cache := NewTokenCache()
	store := &stubTokenStore{}
	r := NewReconciler(cache, store, WithReconcileInterval(time.Hour))

	r.Start(context.Background())
	r.Stop()

	select {
	case <-r.done:
	case <-time.After(time.Second):
		t.Fatalf("loop did not exit after Stop")
	}
}

func TestStopWithoutStart(t *testing.T) {
	r := NewReconciler(NewTokenCache(), &stubTokenStore{})
	r.Stop() // must not panic or block
}

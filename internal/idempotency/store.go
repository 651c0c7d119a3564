package idempotency

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Status reports whether a (subject, key) pair has already been used for a
// successful mutation.
type Status int

const (
	NotProcessed Status = iota
	Processed
)

// ErrUnavailable wraps cache-store failures. The store never degrades a
// failed read into NotProcessed: under a partition that would break the
// at-most-once guarantee.
var ErrUnavailable = errors.New("idempotency: store unavailable")

const marker = "1"

// Client is the subset of the redis API the store depends on.
type Client interface {
	Exists(ctx context.Context, keys ...string) *redis.IntCmd
	SetNX(ctx context.Context, key string, value any, expiration time.Duration) *redis.BoolCmd
	Del(ctx context.Context, keys ...string) *redis.IntCmd
}

// Store implements idempotency bookkeeping on a shared cache store. The only
// correctness-bearing operation is MarkProcessed: its conditional set is
// atomic on the store side, so at most one caller per (subject, key) ever
// observes a win regardless of how many race.
type Store struct {
	client Client
	ttl    time.Duration
}

// NewStore builds a Store with the given marker TTL.
func NewStore(client Client, ttl time.Duration) *Store {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &Store{client: client, ttl: ttl}
}

// CheckStatus reports whether the pair is already marked. This is a plain
// read used as an optimization; callers must not rely on it for exclusion.
func (s *Store) CheckStatus(ctx context.Context, subjectID string, key Key) (Status, error) {
	n, err := s.client.Exists(ctx, cacheKey(subjectID, key)).Result()
	if err != nil {
		return NotProcessed, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	if n > 0 {
		return Processed, nil
	}
	return NotProcessed, nil
}

// MarkProcessed performs the atomic conditional set. Processed means this
// caller won the mark; NotProcessed means another writer already holds it and
// the caller must not treat the mutation as its own first-time success.
func (s *Store) MarkProcessed(ctx context.Context, subjectID string, key Key) (Status, error) {
	won, err := s.client.SetNX(ctx, cacheKey(subjectID, key), marker, s.ttl).Result()
	if err != nil {
		return NotProcessed, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	if won {
		return Processed, nil
	}
	return NotProcessed, nil
}

// Unmark deletes a previously-won mark. Callers use it to hand the key back
// when a mutation fails after its conditional set succeeded, so a client
// retry is not answered as a replay of work that never became durable.
func (s *Store) Unmark(ctx context.Context, subjectID string, key Key) error {
	if err := s.client.Del(ctx, cacheKey(subjectID, key)).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return nil
}

func cacheKey(subjectID string, key Key) string {
	return "idempotency:" + subjectID + ":" + key.String()
}

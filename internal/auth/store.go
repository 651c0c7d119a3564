package auth

import (
	"context"
	"time"
)

// CredentialStore looks up stored credentials by login identifier.
type CredentialStore interface {
	FindByEmail(ctx context.Context, email string) (Credential, error)
}

// TokenStore persists issued tokens; it is the authority the reconciler
// converges the in-memory cache toward.
type TokenStore interface {
	Create(ctx context.Context, rec TokenRecord) error
	MarkRevoked(ctx context.Context, tokenID string) error
	MarkRevokedBySubject(ctx context.Context, subjectID string) error
	// ListValid returns every token that is neither revoked nor expired as of now.
	ListValid(ctx context.Context, now time.Time) ([]CacheEntry, error)
}

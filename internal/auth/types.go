package auth

import "time"

// Roles known to the service.
const (
	RoleAdmin    = "admin"
	RoleReviewer = "reviewer"
	RoleMember   = "member"
)

// ValidRole reports whether role is one the service issues tokens for.
func ValidRole(role string) bool {
	switch role {
	case RoleAdmin, RoleReviewer, RoleMember:
		return true
	}
	return false
}

// Credential is the stored secret material for a subject. The secret is only
// ever held as a one-way hash.
type Credential struct {
	SubjectID  string
	Email      string
	SecretHash string
	Role       string
	Status     string
}

// TokenRecord is the authoritative persisted form of an issued token.
type TokenRecord struct {
	ID        string
	SubjectID string
	Role      string
	IssuedAt  time.Time
	ExpiresAt time.Time
	Revoked   bool
}

// CacheEntry identifies a currently-valid token inside the in-memory cache.
type CacheEntry struct {
	TokenID   string
	SubjectID string
}

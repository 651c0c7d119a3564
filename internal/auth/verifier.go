package auth

import (
	"context"
	"errors"
	"strings"

	"reviewdesk.org/internal/obs"
)

// Subject account statuses.
const (
	StatusActive   = "active"
	StatusDisabled = "disabled"
)

// Verifier validates login credentials. The comparison step always runs,
// against the stored hash when the identifier is known and against the fixed
// dummy hash when it is not, so response latency does not reveal whether an
// identifier exists.
type Verifier struct {
	creds CredentialStore
	pool  *HashPool
}

// NewVerifier wires the credential store to the hash pool.
func NewVerifier(creds CredentialStore, pool *HashPool) *Verifier {
	return &Verifier{creds: creds, pool: pool}
}

// Validate returns the credential for identifier when secret matches. Every
// failure mode collapses to ErrInvalidCredentials; only infrastructure and
// cancellation errors pass through untouched.
func (v *Verifier) Validate(ctx context.Context, identifier, secret string) (Credential, error) {
	identifier = strings.TrimSpace(strings.ToLower(identifier))

	cred, err := v.creds.FindByEmail(ctx, identifier)
	unknown := false
	hash := cred.SecretHash
	switch {
	case errors.Is(err, ErrNotFound):
		unknown = true
		hash = dummySecretHash
	case err != nil:
		return Credential{}, err
	case hash == "":
		// An account without a stored secret cannot authenticate, but it
		// still pays for a comparison like everyone else.
		unknown = true
		hash = dummySecretHash
	}

	if err := v.pool.Compare(ctx, hash, secret); err != nil {
		if ctx.Err() != nil {
			return Credential{}, ctx.Err()
		}
		if errors.Is(err, ErrPoolClosed) {
			return Credential{}, err
		}
		obs.ObserveCredentialCheck("fail")
		return Credential{}, ErrInvalidCredentials
	}

	// A dummy-hash match still means the subject does not exist.
	if unknown || cred.Status != StatusActive {
		obs.ObserveCredentialCheck("fail")
		return Credential{}, ErrInvalidCredentials
	}

	obs.ObserveCredentialCheck("ok")
	return cred, nil
}

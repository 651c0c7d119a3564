package auth

import (
	"errors"

	"golang.org/x/crypto/bcrypt"
)

// dummySecretHash is a fixed, precomputed bcrypt hash compared against when
// the login identifier is unknown, so that the unknown-identifier path costs
// the same hash work as the wrong-secret path. Removing this branch would
// reopen the timing side channel; see Verifier.Validate.
const dummySecretHash = "$2a$10$N9qo8uLOickgx2ZMRZoMyeIjZAgcfl7p92ldGxad68LJZdL17lhWy"

// HashSecret hashes a plaintext secret using bcrypt.
func HashSecret(secret string) (string, error) {
	if len(secret) == 0 {
		return "", errors.New("secret is empty")
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(secret), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

// Hasher performs the one-way comparison of a candidate secret against a
// stored hash. It exists as an interface so tests can count invocations.
type Hasher interface {
	Compare(hash, secret string) error
}

// BcryptHasher is the production Hasher.
type BcryptHasher struct{}

// Compare returns nil when secret matches hash. The underlying library's
// comparison is assumed constant-time for equal-cost hashes.
func (BcryptHasher) Compare(hash, secret string) error {
	if hash == "" {
		return errors.New("secret hash is empty")
	}
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(secret))
}

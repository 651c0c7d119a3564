package auth

import (
	"context"
	"errors"
	"sync"
	"testing"
)

// countingHasher records every comparison and matches on an exact
// (hash, secret) pair.
type countingHasher struct {
	mu    sync.Mutex
	calls int
	match map[string]string // hash -> matching secret
}

func (h *countingHasher) Compare(hash, secret string) error {
	h.mu.Lock()
	h.calls++
	h.mu.Unlock()
	if want, ok := h.match[hash]; ok && want == secret {
		return nil
	}
	return errors.New("mismatch")
}

func (h *countingHasher) count() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.calls
}

type stubCredStore struct {
	creds map[string]Credential
	err   error
}

func (s *stubCredStore) FindByEmail(ctx context.Context, email string) (Credential, error) {
	if s.err != nil {
		return Credential{}, s.err
	}
	cred, ok := s.creds[email]
	if !ok {
		return Credential{}, ErrNotFound
	}
	return cred, nil
}

func newTestVerifier(t *testing.T, hasher Hasher, creds *stubCredStore) *Verifier {
	t.Helper()
	pool := NewHashPool(2, hasher)
	t.Cleanup(pool.Close)
	return NewVerifier(creds, pool)
}

func TestValidateSuccess(t *testing.T) {
	hasher := &countingHasher{match: map[string]string{"stored-hash": "s3cret"}}
	store := &stubCredStore{creds: map[string]Credential{
		"alice@example.com": {SubjectID: "U1", Email: "alice@example.com", SecretHash: "stored-hash", Role: RoleMember, Status: StatusActive},
	}}
	verifier := newTestVerifier(t, hasher, store)

	cred, err := verifier.Validate(context.Background(), "  Alice@Example.com ", "s3cret")
	if err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if cred.SubjectID != "U1" {
		t.Fatalf("unexpected subject: %s", cred.SubjectID)
	}
	if hasher.count() != 1 {
		t.Fatalf("expected exactly one hash comparison, got %d", hasher.calls)
	}
}

func TestValidateWrongSecret(t *testing.T) {
	hasher := &countingHasher{match: map[string]string{"stored-hash": "s3cret"}}
	store := &stubCredStore{creds: map[string]Credential{
		"alice@example.com": {SubjectID: "U1", SecretHash: "stored-hash", Role: RoleMember, Status: StatusActive},
	}}
	verifier := newTestVerifier(t, hasher, store)

	_, err := verifier.Validate(context.Background(), "alice@example.com", "wrong")
	if !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials, got %v", err)
	}
	if hasher.count() != 1 {
		t.Fatalf("expected one hash comparison, got %d", hasher.calls)
	}
}

func TestValidateUnknownIdentifierStillHashes(t *testing.T) {
	hasher := &countingHasher{}
	verifier := newTestVerifier(t, hasher, &stubCredStore{creds: map[string]Credential{}})

	_, err := verifier.Validate(context.Background(), "nobody@example.com", "whatever")
	if !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials, got %v", err)
	}
	// The dummy-hash branch must execute the full comparison; skipping it
	// would make unknown identifiers distinguishable by latency.
	if hasher.count() != 1 {
		t.Fatalf("expected one hash comparison on unknown identifier, got %d", hasher.calls)
	}
}

func TestValidateDummyMatchDoesNotAuthenticate(t *testing.T) {
	// Even if a candidate secret happens to verify against the dummy hash,
	// an unknown subject must never authenticate.
	hasher := &countingHasher{match: map[string]string{dummySecretHash: "lucky"}}
	verifier := newTestVerifier(t, hasher, &stubCredStore{creds: map[string]Credential{}})

	_, err := verifier.Validate(context.Background(), "ghost@example.com", "lucky")
	if !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials, got %v", err)
	}
}

func TestValidateAccountWithoutSecret(t *testing.T) {
	// A NULL password_hash row comes back with an empty hash. The login must
	// fail as plain invalid credentials and still pay for one comparison.
	hasher := &countingHasher{}
	store := &stubCredStore{creds: map[string]Credential{
		"nohash@example.com": {SubjectID: "U3", SecretHash: "", Role: RoleMember, Status: StatusActive},
	}}
	verifier := newTestVerifier(t, hasher, store)

	_, err := verifier.Validate(context.Background(), "nohash@example.com", "anything")
	if !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials, got %v", err)
	}
	if hasher.count() != 1 {
		t.Fatalf("expected one hash comparison, got %d", hasher.calls)
	}
}

func TestValidateDisabledSubject(t *testing.T) {
	hasher := &countingHasher{match: map[string]string{"stored-hash": "s3cret"}}
	store := &stubCredStore{creds: map[string]Credential{
		"off@example.com": {SubjectID: "U2", SecretHash: "stored-hash", Role: RoleMember, Status: StatusDisabled},
	}}
	verifier := newTestVerifier(t, hasher, store)

	_, err := verifier.Validate(context.Background(), "off@example.com", "s3cret")
	if !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials, got %v", err)
	}
}

func TestValidatePropagatesInfrastructureErrors(t *testing.T) {
	infraErr := errors.New("store down")
	verifier := newTestVerifier(t, &countingHasher{}, &stubCredStore{err: infraErr})

	_, err := verifier.Validate(context.Background(), "alice@example.com", "s3cret")
	if !errors.Is(err, infraErr) {
		t.Fatalf("expected infrastructure error to pass through, got %v", err)
	}
	if errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("infrastructure failure must not masquerade as bad credentials")
	}
}

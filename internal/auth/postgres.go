package auth

import (
	"context"
	"database/sql"
	"errors"
	"time"
)

var (
	_ CredentialStore = (*PGStore)(nil)
	_ TokenStore      = (*PGStore)(nil)
)

// PGStore implements the auth store contracts on PostgreSQL.
type PGStore struct {
	db *sql.DB
}

// NewPGStore wraps an open database handle.
func NewPGStore(db *sql.DB) *PGStore {
	return &PGStore{db: db}
}

// FindByEmail loads the credential for a login identifier.
func (s *PGStore) FindByEmail(ctx context.Context, email string) (Credential, error) {
	row := s.db.QueryRowContext(ctx,
		`select id, email, password_hash, role, status from users where email=$1`, email)
	var (
		cred Credential
		hash sql.NullString // accounts may carry no stored secret
	)
	if err := row.Scan(&cred.SubjectID, &cred.Email, &hash, &cred.Role, &cred.Status); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Credential{}, ErrNotFound
		}
		return Credential{}, err
	}
	cred.SecretHash = hash.String
	return cred, nil
}

// EnsureAdmin inserts a bootstrap administrator unless the email is already
// taken. The secret is hashed by the caller, so no credential material is
// ever baked into migrations or seed files. Reports whether a row was added.
func (s *PGStore) EnsureAdmin(ctx context.Context, id, email, name, secretHash string) (bool, error) {
	res, err := s.db.ExecContext(ctx,
		`insert into users (id, email, password_hash, name, role, status) values ($1, $2, $3, $4, 'admin', 'active') on conflict (email) do nothing`,
		id, email, secretHash, name,
	)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// Create persists an issued token.
func (s *PGStore) Create(ctx context.Context, rec TokenRecord) error {
	_, err := s.db.ExecContext(ctx,
		`insert into tokens(id, subject_id, role, issued_at, expires_at) values($1,$2,$3,$4,$5)`,
		rec.ID, rec.SubjectID, rec.Role, rec.IssuedAt, rec.ExpiresAt,
	)
	return err
}

// MarkRevoked revokes a single token.
func (s *PGStore) MarkRevoked(ctx context.Context, tokenID string) error {
	_, err := s.db.ExecContext(ctx,
		`update tokens set revoked = true where id=$1`, tokenID)
	return err
}

// MarkRevokedBySubject revokes every live token for a subject, e.g. after a
// password change or account deletion.
func (s *PGStore) MarkRevokedBySubject(ctx context.Context, subjectID string) error {
	_, err := s.db.ExecContext(ctx,
		`update tokens set revoked = true where subject_id=$1 and not revoked`, subjectID)
	return err
}

// ListValid returns the authoritative set of currently-valid tokens.
func (s *PGStore) ListValid(ctx context.Context, now time.Time) ([]CacheEntry, error) {
	rows, err := s.db.QueryContext(ctx,
		`select id, subject_id from tokens where not revoked and expires_at > $1`, now)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []CacheEntry
	for rows.Next() {
		var e CacheEntry
		if err := rows.Scan(&e.TokenID, &e.SubjectID); err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

package auth

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
)

func TestFindByEmail(t *testing.T) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherEqual))
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	defer db.Close()

	rows := sqlmock.NewRows([]string{"id", "email", "password_hash", "role", "status"}).
		AddRow("U1", "alice@example.com", "hash", RoleMember, StatusActive)
	mock.ExpectQuery(`select id, email, password_hash, role, status from users where email=$1`).
		WithArgs("alice@example.com").
		WillReturnRows(rows)

	store := NewPGStore(db)
	cred, err := store.FindByEmail(context.Background(), "alice@example.com")
	if err != nil {
		t.Fatalf("FindByEmail: %v", err)
	}
	if cred.SubjectID != "U1" || cred.Status != StatusActive {
		t.Fatalf("unexpected credential: %+v", cred)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestFindByEmailNullHash(t *testing.T) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherEqual))
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	defer db.Close()

	rows := sqlmock.NewRows([]string{"id", "email", "password_hash", "role", "status"}).
		AddRow("U1", "alice@example.com", nil, RoleMember, StatusActive)
	mock.ExpectQuery(`select id, email, password_hash, role, status from users where email=$1`).
		WithArgs("alice@example.com").
		WillReturnRows(rows)

	store := NewPGStore(db)
	cred, err := store.FindByEmail(context.Background(), "alice@example.com")
	if err != nil {
		t.Fatalf("a NULL hash must not fail the lookup: %v", err)
	}
	if cred.SecretHash != "" {
		t.Fatalf("expected empty hash, got %q", cred.SecretHash)
	}
}

func TestFindByEmailNotFound(t *testing.T) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherEqual))
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	defer db.Close()

	mock.ExpectQuery(`select id, email, password_hash, role, status from users where email=$1`).
		WithArgs("ghost@example.com").
		WillReturnRows(sqlmock.NewRows([]string{"id", "email", "password_hash", "role", "status"}))

	store := NewPGStore(db)
	if _, err := store.FindByEmail(context.Background(), "ghost@example.com"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestEnsureAdmin(t *testing.T) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherEqual))
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	defer db.Close()

	const insert = `insert into users (id, email, password_hash, name, role, status) values ($1, $2, $3, $4, 'admin', 'active') on conflict (email) do nothing`
	mock.ExpectExec(insert).
		WithArgs("U1", "admin@example.com", "hash", "Administrator").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(insert).
		WithArgs("U2", "admin@example.com", "hash", "Administrator").
		WillReturnResult(sqlmock.NewResult(0, 0))

	store := NewPGStore(db)
	added, err := store.EnsureAdmin(context.Background(), "U1", "admin@example.com", "Administrator", "hash")
	if err != nil || !added {
		t.Fatalf("first EnsureAdmin: added=%v err=%v", added, err)
	}
	// Second run with the same email is a no-op, not an error.
	added, err = store.EnsureAdmin(context.Background(), "U2", "admin@example.com", "Administrator", "hash")
	if err != nil || added {
		t.Fatalf("repeat EnsureAdmin: added=%v err=%v", added, err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestTokenLifecycle(t *testing.T) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherEqual))
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	defer db.Close()

	now := time.Now().UTC()
	rec := TokenRecord{ID: "t1", SubjectID: "U1", Role: RoleMember, IssuedAt: now, ExpiresAt: now.Add(time.Minute)}

	mock.ExpectExec(`insert into tokens(id, subject_id, role, issued_at, expires_at) values($1,$2,$3,$4,$5)`).
		WithArgs(rec.ID, rec.SubjectID, rec.Role, rec.IssuedAt, rec.ExpiresAt).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`update tokens set revoked = true where id=$1`).
		WithArgs("t1").
		WillReturnResult(sqlmock.NewResult(0, 1))

	store := NewPGStore(db)
	if err := store.Create(context.Background(), rec); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if err := store.MarkRevoked(context.Background(), "t1"); err != nil {
		t.Fatalf("MarkRevoked: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestListValid(t *testing.T) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherEqual))
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	defer db.Close()

	now := time.Now().UTC()
	rows := sqlmock.NewRows([]string{"id", "subject_id"}).
		AddRow("t1", "U1").
		AddRow("t2", "U2")
	mock.ExpectQuery(`select id, subject_id from tokens where not revoked and expires_at > $1`).
		WithArgs(now).
		WillReturnRows(rows)

	store := NewPGStore(db)
	entries, err := store.ListValid(context.Background(), now)
	if err != nil {
		t.Fatalf("ListValid: %v", err)
	}
	if len(entries) != 2 || entries[0] != (CacheEntry{TokenID: "t1", SubjectID: "U1"}) {
		t.Fatalf("unexpected entries: %+v", entries)
	}
}

package pg

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"

	"reviewdesk.org/internal/review"
)

func newMock(t *testing.T) (*Store, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return NewStore(db), mock
}

func userRow(version int64) *sqlmock.Rows {
	now := time.Now().UTC()
	return sqlmock.NewRows([]string{"id", "email", "name", "role", "status", "version", "created_at", "updated_at"}).
		AddRow("u-1", "alice@example.com", "Alice", "member", "active", version, now, now)
}

func TestUpdateUserBumpsVersionInOneStatement(t *testing.T) {
	store, mock := newMock(t)

	mock.ExpectQuery(`update users set name = \$1, updated_at = now\(\), version = version \+ 1 where id = \$2 and version = \$3 returning`).
		WithArgs("Alice", "u-1", int64(3)).
		WillReturnRows(userRow(4))

	name := "Alice"
	u, err := store.UpdateUser(context.Background(), "u-1", 3, review.UserUpdate{Name: &name})
	if err != nil {
		t.Fatalf("UpdateUser: %v", err)
	}
	if u.Version != 4 {
		t.Fatalf("expected version 4, got %d", u.Version)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestUpdateUserStaleVersionIsConflict(t *testing.T) {
	store, mock := newMock(t)

	mock.ExpectQuery(`update users set`).
		WithArgs("Alice", "u-1", int64(2)).
		WillReturnError(sql.ErrNoRows)
	mock.ExpectQuery(`select 1 from users where id = \$1`).
		WithArgs("u-1").
		WillReturnRows(sqlmock.NewRows([]string{"one"}).AddRow(1))

	name := "Alice"
	_, err := store.UpdateUser(context.Background(), "u-1", 2, review.UserUpdate{Name: &name})
	if !errors.Is(err, review.ErrEditConflict) {
		t.Fatalf("expected ErrEditConflict, got %v", err)
	}
}

func TestUpdateUserMissingRowIsNotFound(t *testing.T) {
	store, mock := newMock(t)

	mock.ExpectQuery(`update users set`).
		WithArgs("Alice", "u-9", int64(1)).
		WillReturnError(sql.ErrNoRows)
	mock.ExpectQuery(`select 1 from users where id = \$1`).
		WithArgs("u-9").
		WillReturnError(sql.ErrNoRows)

	name := "Alice"
	_, err := store.UpdateUser(context.Background(), "u-9", 1, review.UserUpdate{Name: &name})
	if !errors.Is(err, review.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if errors.Is(err, review.ErrEditConflict) {
		t.Fatalf("missing row must not read as a conflict")
	}
}

func TestDeleteUserGuards(t *testing.T) {
	store, mock := newMock(t)

	mock.ExpectExec(`delete from users where id = \$1 and version = \$2`).
		WithArgs("u-1", int64(2)).
		WillReturnResult(sqlmock.NewResult(0, 1))

	if err := store.DeleteUser(context.Background(), "u-1", 2); err != nil {
		t.Fatalf("DeleteUser: %v", err)
	}
}

func TestDeleteUserStaleVersionIsConflict(t *testing.T) {
	store, mock := newMock(t)

	mock.ExpectExec(`delete from users where id = \$1 and version = \$2`).
		WithArgs("u-1", int64(1)).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(`select 1 from users where id = \$1`).
		WithArgs("u-1").
		WillReturnRows(sqlmock.NewRows([]string{"one"}).AddRow(1))

	if err := store.DeleteUser(context.Background(), "u-1", 1); !errors.Is(err, review.ErrEditConflict) {
		t.Fatalf("expected ErrEditConflict, got %v", err)
	}
}

func TestCreateUserCommitsWithGuard(t *testing.T) {
	store, mock := newMock(t)

	mock.ExpectBegin()
	mock.ExpectExec(`insert into users`).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	guardCalled := false
	guard := func(ctx context.Context) error {
		guardCalled = true
		return nil
	}
	u := review.User{ID: "u-1", Email: "a@b.c", Name: "A", Role: "member", Status: "active", Version: 1}
	if err := store.CreateUser(context.Background(), u, guard); err != nil {
		t.Fatalf("CreateUser: %v", err)
	}
	if !guardCalled {
		t.Fatalf("commit guard never ran")
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestCreateUserCommitErrorSurfaces(t *testing.T) {
	store, mock := newMock(t)

	commitErr := errors.New("connection reset during commit")
	mock.ExpectBegin()
	mock.ExpectExec(`insert into users`).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit().WillReturnError(commitErr)

	// The guard wins, then the commit fails; the caller must see the failure
	// so it can hand the idempotency key back.
	guard := func(ctx context.Context) error { return nil }
	u := review.User{ID: "u-1", Email: "a@b.c", Name: "A", Role: "member", Status: "active", Version: 1}
	if err := store.CreateUser(context.Background(), u, guard); !errors.Is(err, commitErr) {
		t.Fatalf("expected the commit error, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestCreateUserRollsBackWhenGuardLoses(t *testing.T) {
	store, mock := newMock(t)

	mock.ExpectBegin()
	mock.ExpectExec(`insert into users`).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectRollback()

	guard := func(ctx context.Context) error { return review.ErrAlreadyProcessed }
	u := review.User{ID: "u-1", Email: "a@b.c", Name: "A", Role: "member", Status: "active", Version: 1}
	err := store.CreateUser(context.Background(), u, guard)
	if !errors.Is(err, review.ErrAlreadyProcessed) {
		t.Fatalf("expected ErrAlreadyProcessed, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestListUsersRejectsUnknownSort(t *testing.T) {
	store, _ := newMock(t)

	_, err := store.ListUsers(context.Background(), review.Page{Limit: 10, Sort: "password_hash"})
	if !errors.Is(err, review.ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput for off-list sort, got %v", err)
	}
}

func TestListUsersPaginates(t *testing.T) {
	store, mock := newMock(t)

	mock.ExpectQuery(`select (.+) from users`).
		WithArgs("u-0", 2).
		WillReturnRows(userRow(1))

	users, err := store.ListUsers(context.Background(), review.Page{Limit: 2, After: "u-0"})
	if err != nil {
		t.Fatalf("ListUsers: %v", err)
	}
	if len(users) != 1 || users[0].ID != "u-1" {
		t.Fatalf("unexpected page: %+v", users)
	}
}

package pg

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"

	"reviewdesk.org/internal/review"
)

const (
	pgErrUniqueViolation     = "23505"
	pgErrForeignKeyViolation = "23503"
)

// Store implements the review store contracts on PostgreSQL.
type Store struct {
	db *sql.DB
}

var _ review.Store = (*Store)(nil)

// Open dials PostgreSQL through the pgx stdlib driver.
func Open(dsn string) (*Store, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, err
	}
	// Tuned pool defaults; adjust under load tests
	db.SetMaxOpenConns(50)
	db.SetMaxIdleConns(25)
	db.SetConnMaxLifetime(15 * time.Minute)
	db.SetConnMaxIdleTime(5 * time.Minute)
	return &Store{db: db}, nil
}

// NewStore wraps an already-open handle (used by tests).
func NewStore(db *sql.DB) *Store { return &Store{db: db} }

func (s *Store) Close() error { return s.db.Close() }

func (s *Store) DB() *sql.DB { return s.db }

// Ping verifies connectivity for readiness probes.
func (s *Store) Ping(ctx context.Context) error { return s.db.PingContext(ctx) }

// Per-entity sort allow-lists. The requested sort name is resolved against
// these before any SQL is assembled; nothing client-supplied reaches the
// query text.
var sortColumns = map[string]map[string]string{
	"users":           {"created_at": "created_at", "email": "email", "name": "name"},
	"requesters":      {"created_at": "created_at", "name": "name", "email": "email"},
	"software":        {"created_at": "created_at", "name": "name", "vendor": "vendor"},
	"review_requests": {"created_at": "created_at", "status": "status"},
	"reviews":         {"created_at": "created_at", "verdict": "verdict", "score": "score"},
}

func resolveSort(table, requested string) (string, error) {
	if requested == "" {
		return "id", nil
	}
	col, ok := sortColumns[table][requested]
	if !ok {
		return "", fmt.Errorf("%w: unsupported sort %q", review.ErrInvalidInput, requested)
	}
	return col, nil
}

// runInTx executes fn and the commit guard inside one transaction. The guard
// runs last, so a lost conditional set aborts the insert with it.
func (s *Store) runInTx(ctx context.Context, guard review.CommitGuard, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if err := fn(tx); err != nil {
		return mapConstraint(err)
	}
	if guard != nil {
		if err := guard(ctx); err != nil {
			return err
		}
	}
	return tx.Commit()
}

// resolveGuardMiss distinguishes a version mismatch from a missing row after
// a guarded update or delete touched nothing.
func (s *Store) resolveGuardMiss(ctx context.Context, table, id string) error {
	var one int
	err := s.db.QueryRowContext(ctx, `select 1 from `+table+` where id = $1`, id).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return review.ErrNotFound
	}
	if err != nil {
		return err
	}
	return review.ErrEditConflict
}

// guardedDelete removes the row only when the expected version still matches.
func (s *Store) guardedDelete(ctx context.Context, table, id string, expected int64) error {
	res, err := s.db.ExecContext(ctx,
		`delete from `+table+` where id = $1 and version = $2`, id, expected)
	if err != nil {
		return mapConstraint(err)
	}
	aff, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if aff == 0 {
		return s.resolveGuardMiss(ctx, table, id)
	}
	return nil
}

// setClause accumulates the SET fragment for sparse updates.
type setClause struct {
	sets []string
	args []any
	idx  int
}

func newSetClause() *setClause {
	return &setClause{idx: 1}
}

func (c *setClause) add(column string, value any) {
	c.sets = append(c.sets, fmt.Sprintf("%s = $%d", column, c.idx))
	c.args = append(c.args, value)
	c.idx++
}

// build finishes the guarded update statement: the version bump and the CAS
// predicate are always part of the same single statement.
func (c *setClause) build(table, returning string, id string, expected int64) (string, []any) {
	c.sets = append(c.sets, "updated_at = now()", "version = version + 1")
	query := fmt.Sprintf(
		`update %s set %s where id = $%d and version = $%d returning %s`,
		table, strings.Join(c.sets, ", "), c.idx, c.idx+1, returning,
	)
	args := append(c.args, id, expected)
	return query, args
}

func nullIfEmpty(s string) sql.NullString {
	s = strings.TrimSpace(s)
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

func mapConstraint(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case pgErrUniqueViolation:
			return fmt.Errorf("%w: %s", review.ErrDuplicate, pgErr.ConstraintName)
		case pgErrForeignKeyViolation:
			return fmt.Errorf("%w: referenced record missing", review.ErrNotFound)
		}
	}
	return err
}

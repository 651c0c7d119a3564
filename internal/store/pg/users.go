package pg

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"reviewdesk.org/internal/review"
)

const userColumns = `id, email, name, role, status, version, created_at, updated_at`

func scanUser(row interface{ Scan(...any) error }) (review.User, error) {
	var u review.User
	err := row.Scan(&u.ID, &u.Email, &u.Name, &u.Role, &u.Status, &u.Version, &u.CreatedAt, &u.UpdatedAt)
	return u, err
}

func (s *Store) CreateUser(ctx context.Context, u review.User, guard review.CommitGuard) error {
	return s.runInTx(ctx, guard, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, `
			insert into users (id, email, password_hash, name, role, status, version, created_at, updated_at)
			values ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		`, u.ID, u.Email, nullIfEmpty(u.SecretHash), u.Name, u.Role, u.Status, u.Version, u.CreatedAt, u.UpdatedAt)
		return err
	})
}

func (s *Store) GetUser(ctx context.Context, id string) (review.User, error) {
	u, err := scanUser(s.db.QueryRowContext(ctx,
		`select `+userColumns+` from users where id = $1`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return review.User{}, review.ErrNotFound
	}
	if err != nil {
		return review.User{}, err
	}
	return u, nil
}

func (s *Store) ListUsers(ctx context.Context, p review.Page) ([]review.User, error) {
	col, err := resolveSort("users", p.Sort)
	if err != nil {
		return nil, err
	}
	rows, err := s.db.QueryContext(ctx, fmt.Sprintf(`
		select %s from users
		where ($1 = '' or id > $1)
		order by %s, id
		limit $2
	`, userColumns, col), p.After, p.Limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var users []review.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		users = append(users, u)
	}
	return users, rows.Err()
}

func (s *Store) UpdateUser(ctx context.Context, id string, expected int64, upd review.UserUpdate) (review.User, error) {
	clause := newSetClause()
	if upd.Email != nil {
		clause.add("email", *upd.Email)
	}
	if upd.Name != nil {
		clause.add("name", *upd.Name)
	}
	if upd.Role != nil {
		clause.add("role", *upd.Role)
	}
	if upd.Status != nil {
		clause.add("status", *upd.Status)
	}
	query, args := clause.build("users", userColumns, id, expected)

	u, err := scanUser(s.db.QueryRowContext(ctx, query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return review.User{}, s.resolveGuardMiss(ctx, "users", id)
	}
	if err != nil {
		return review.User{}, mapConstraint(err)
	}
	return u, nil
}

func (s *Store) DeleteUser(ctx context.Context, id string, expected int64) error {
	return s.guardedDelete(ctx, "users", id, expected)
}

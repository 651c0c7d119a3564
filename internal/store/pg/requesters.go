package pg

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"reviewdesk.org/internal/review"
)

const requesterColumns = `id, name, email, organization, version, created_at, updated_at`

func scanRequester(row interface{ Scan(...any) error }) (review.Requester, error) {
	var r review.Requester
	var org sql.NullString
	err := row.Scan(&r.ID, &r.Name, &r.Email, &org, &r.Version, &r.CreatedAt, &r.UpdatedAt)
	if org.Valid {
		r.Organization = org.String
	}
	return r, err
}

func (s *Store) CreateRequester(ctx context.Context, r review.Requester, guard review.CommitGuard) error {
	return s.runInTx(ctx, guard, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, `
			insert into requesters (id, name, email, organization, version, created_at, updated_at)
			values ($1, $2, $3, $4, $5, $6, $7)
		`, r.ID, r.Name, r.Email, nullIfEmpty(r.Organization), r.Version, r.CreatedAt, r.UpdatedAt)
		return err
	})
}

func (s *Store) GetRequester(ctx context.Context, id string) (review.Requester, error) {
	r, err := scanRequester(s.db.QueryRowContext(ctx,
		`select `+requesterColumns+` from requesters where id = $1`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return review.Requester{}, review.ErrNotFound
	}
	if err != nil {
		return review.Requester{}, err
	}
	return r, nil
}

func (s *Store) ListRequesters(ctx context.Context, p review.Page) ([]review.Requester, error) {
	col, err := resolveSort("requesters", p.Sort)
	if err != nil {
		return nil, err
	}
	rows, err := s.db.QueryContext(ctx, fmt.Sprintf(`
		select %s from requesters
		where ($1 = '' or id > $1)
		order by %s, id
		limit $2
	`, requesterColumns, col), p.After, p.Limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []review.Requester
	for rows.Next() {
		r, err := scanRequester(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, r)
	}
	return result, rows.Err()
}

func (s *Store) UpdateRequester(ctx context.Context, id string, expected int64, upd review.RequesterUpdate) (review.Requester, error) {
	clause := newSetClause()
	if upd.Name != nil {
		clause.add("name", *upd.Name)
	}
	if upd.Email != nil {
		clause.add("email", *upd.Email)
	}
	if upd.Organization != nil {
		clause.add("organization", nullIfEmpty(*upd.Organization))
	}
	query, args := clause.build("requesters", requesterColumns, id, expected)

	r, err := scanRequester(s.db.QueryRowContext(ctx, query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return review.Requester{}, s.resolveGuardMiss(ctx, "requesters", id)
	}
	if err != nil {
		return review.Requester{}, mapConstraint(err)
	}
	return r, nil
}

func (s *Store) DeleteRequester(ctx context.Context, id string, expected int64) error {
	return s.guardedDelete(ctx, "requesters", id, expected)
}

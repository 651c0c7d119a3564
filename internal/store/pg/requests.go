package pg

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"reviewdesk.org/internal/review"
)

const requestColumns = `id, requester_id, software_id, status, notes, version, created_at, updated_at`

func scanRequest(row interface{ Scan(...any) error }) (review.ReviewRequest, error) {
	var r review.ReviewRequest
	var notes sql.NullString
	err := row.Scan(&r.ID, &r.RequesterID, &r.SoftwareID, &r.Status, &notes, &r.Version, &r.CreatedAt, &r.UpdatedAt)
	if notes.Valid {
		r.Notes = notes.String
	}
	return r, err
}

func (s *Store) CreateRequest(ctx context.Context, r review.ReviewRequest, guard review.CommitGuard) error {
	return s.runInTx(ctx, guard, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, `
			insert into review_requests (id, requester_id, software_id, status, notes, version, created_at, updated_at)
			values ($1, $2, $3, $4, $5, $6, $7, $8)
		`, r.ID, r.RequesterID, r.SoftwareID, r.Status, nullIfEmpty(r.Notes), r.Version, r.CreatedAt, r.UpdatedAt)
		return err
	})
}

func (s *Store) GetRequest(ctx context.Context, id string) (review.ReviewRequest, error) {
	r, err := scanRequest(s.db.QueryRowContext(ctx,
		`select `+requestColumns+` from review_requests where id = $1`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return review.ReviewRequest{}, review.ErrNotFound
	}
	if err != nil {
		return review.ReviewRequest{}, err
	}
	return r, nil
}

func (s *Store) ListRequests(ctx context.Context, p review.Page) ([]review.ReviewRequest, error) {
	col, err := resolveSort("review_requests", p.Sort)
	if err != nil {
		return nil, err
	}
	rows, err := s.db.QueryContext(ctx, fmt.Sprintf(`
		select %s from review_requests
		where ($1 = '' or id > $1)
		order by %s, id
		limit $2
	`, requestColumns, col), p.After, p.Limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []review.ReviewRequest
	for rows.Next() {
		r, err := scanRequest(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, r)
	}
	return result, rows.Err()
}

func (s *Store) UpdateRequest(ctx context.Context, id string, expected int64, upd review.ReviewRequestUpdate) (review.ReviewRequest, error) {
	clause := newSetClause()
	if upd.Status != nil {
		clause.add("status", *upd.Status)
	}
	if upd.Notes != nil {
		clause.add("notes", nullIfEmpty(*upd.Notes))
	}
	query, args := clause.build("review_requests", requestColumns, id, expected)

	r, err := scanRequest(s.db.QueryRowContext(ctx, query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return review.ReviewRequest{}, s.resolveGuardMiss(ctx, "review_requests", id)
	}
	if err != nil {
		return review.ReviewRequest{}, mapConstraint(err)
	}
	return r, nil
}

func (s *Store) DeleteRequest(ctx context.Context, id string, expected int64) error {
	return s.guardedDelete(ctx, "review_requests", id, expected)
}

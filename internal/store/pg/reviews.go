package pg

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"reviewdesk.org/internal/review"
)

const reviewColumns = `id, request_id, reviewer_id, verdict, summary, score, version, created_at, updated_at`

func scanReview(row interface{ Scan(...any) error }) (review.Review, error) {
	var r review.Review
	var summary sql.NullString
	err := row.Scan(&r.ID, &r.RequestID, &r.ReviewerID, &r.Verdict, &summary, &r.Score, &r.Version, &r.CreatedAt, &r.UpdatedAt)
	if summary.Valid {
		r.Summary = summary.String
	}
	return r, err
}

func (s *Store) CreateReview(ctx context.Context, r review.Review, guard review.CommitGuard) error {
	return s.runInTx(ctx, guard, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, `
			insert into reviews (id, request_id, reviewer_id, verdict, summary, score, version, created_at, updated_at)
			values ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		`, r.ID, r.RequestID, r.ReviewerID, r.Verdict, nullIfEmpty(r.Summary), r.Score, r.Version, r.CreatedAt, r.UpdatedAt)
		return err
	})
}

func (s *Store) GetReview(ctx context.Context, id string) (review.Review, error) {
	r, err := scanReview(s.db.QueryRowContext(ctx,
		`select `+reviewColumns+` from reviews where id = $1`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return review.Review{}, review.ErrNotFound
	}
	if err != nil {
		return review.Review{}, err
	}
	return r, nil
}

func (s *Store) ListReviews(ctx context.Context, p review.Page) ([]review.Review, error) {
	col, err := resolveSort("reviews", p.Sort)
	if err != nil {
		return nil, err
	}
	rows, err := s.db.QueryContext(ctx, fmt.Sprintf(`
		select %s from reviews
		where ($1 = '' or id > $1)
		order by %s, id
		limit $2
	`, reviewColumns, col), p.After, p.Limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []review.Review
	for rows.Next() {
		r, err := scanReview(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, r)
	}
	return result, rows.Err()
}

func (s *Store) UpdateReview(ctx context.Context, id string, expected int64, upd review.ReviewUpdate) (review.Review, error) {
	clause := newSetClause()
	if upd.Verdict != nil {
		clause.add("verdict", *upd.Verdict)
	}
	if upd.Summary != nil {
		clause.add("summary", nullIfEmpty(*upd.Summary))
	}
	if upd.Score != nil {
		clause.add("score", *upd.Score)
	}
	query, args := clause.build("reviews", reviewColumns, id, expected)

	r, err := scanReview(s.db.QueryRowContext(ctx, query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return review.Review{}, s.resolveGuardMiss(ctx, "reviews", id)
	}
	if err != nil {
		return review.Review{}, mapConstraint(err)
	}
	return r, nil
}

func (s *Store) DeleteReview(ctx context.Context, id string, expected int64) error {
	return s.guardedDelete(ctx, "reviews", id, expected)
}

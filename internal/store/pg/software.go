package pg

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"reviewdesk.org/internal/review"
)

const softwareColumns = `id, name, vendor, release, description, version, created_at, updated_at`

func scanSoftware(row interface{ Scan(...any) error }) (review.Software, error) {
	var sw review.Software
	var release, desc sql.NullString
	err := row.Scan(&sw.ID, &sw.Name, &sw.Vendor, &release, &desc, &sw.Version, &sw.CreatedAt, &sw.UpdatedAt)
	if release.Valid {
		sw.Release = release.String
	}
	if desc.Valid {
		sw.Description = desc.String
	}
	return sw, err
}

func (s *Store) CreateSoftware(ctx context.Context, sw review.Software, guard review.CommitGuard) error {
	return s.runInTx(ctx, guard, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, `
			insert into software (id, name, vendor, release, description, version, created_at, updated_at)
			values ($1, $2, $3, $4, $5, $6, $7, $8)
		`, sw.ID, sw.Name, sw.Vendor, nullIfEmpty(sw.Release), nullIfEmpty(sw.Description), sw.Version, sw.CreatedAt, sw.UpdatedAt)
		return err
	})
}

func (s *Store) GetSoftware(ctx context.Context, id string) (review.Software, error) {
	sw, err := scanSoftware(s.db.QueryRowContext(ctx,
		`select `+softwareColumns+` from software where id = $1`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return review.Software{}, review.ErrNotFound
	}
	if err != nil {
		return review.Software{}, err
	}
	return sw, nil
}

func (s *Store) ListSoftware(ctx context.Context, p review.Page) ([]review.Software, error) {
	col, err := resolveSort("software", p.Sort)
	if err != nil {
		return nil, err
	}
	rows, err := s.db.QueryContext(ctx, fmt.Sprintf(`
		select %s from software
		where ($1 = '' or id > $1)
		order by %s, id
		limit $2
	`, softwareColumns, col), p.After, p.Limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []review.Software
	for rows.Next() {
		sw, err := scanSoftware(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, sw)
	}
	return result, rows.Err()
}

func (s *Store) UpdateSoftware(ctx context.Context, id string, expected int64, upd review.SoftwareUpdate) (review.Software, error) {
	clause := newSetClause()
	if upd.Name != nil {
		clause.add("name", *upd.Name)
	}
	if upd.Vendor != nil {
		clause.add("vendor", *upd.Vendor)
	}
	if upd.Release != nil {
		clause.add("release", nullIfEmpty(*upd.Release))
	}
	if upd.Description != nil {
		clause.add("description", nullIfEmpty(*upd.Description))
	}
	query, args := clause.build("software", softwareColumns, id, expected)

	sw, err := scanSoftware(s.db.QueryRowContext(ctx, query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return review.Software{}, s.resolveGuardMiss(ctx, "software", id)
	}
	if err != nil {
		return review.Software{}, mapConstraint(err)
	}
	return sw, nil
}

func (s *Store) DeleteSoftware(ctx context.Context, id string, expected int64) error {
	return s.guardedDelete(ctx, "software", id, expected)
}

package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

type ActivityRepo struct {
	db *sql.DB
}

func NewActivityRepo(db *sql.DB) *ActivityRepo {
	return &ActivityRepo{db: db}
}

func (r *ActivityRepo) Get(ctx context.Context, id string) (*Activity, error) {
	row := r.db.QueryRowContext(ctx, `SELECT id, name, cadence, created_at FROM activities WHERE id = ?`, id)
	var a Activity
	if err := row.Scan(&a.ID, &a.Name, &a.Cadence, &a.CreatedAt); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("activity get: %w", err)
	}
	return &a, nil
}

func (r *ActivityRepo) Upsert(ctx context.Context, a Activity) error {
	if a.CreatedAt.IsZero() {
		a.CreatedAt = time.Now().UTC()
	}
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO activities (id, name, cadence, created_at) VALUES (?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET name = excluded.name, cadence = excluded.cadence
	`, a.ID, a.Name, a.Cadence, a.CreatedAt)
	if err != nil {
		return fmt.Errorf("activity upsert: %w", err)
	}
	return nil
}

func (r *ActivityRepo) ListAll(ctx context.Context) ([]Activity, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT id, name, cadence, created_at FROM activities ORDER BY id ASC`)
	if err != nil {
		return nil, fmt.Errorf("activity list: %w", err)
	}
	defer rows.Close()

	var out []Activity
	for rows.Next() {
		var a Activity
		if err := rows.Scan(&a.ID, &a.Name, &a.Cadence, &a.CreatedAt); err != nil {
			return nil, fmt.Errorf("activity scan: %w", err)
		}
		out = append(out, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("activity rows: %w", err)
	}
	return out, nil
}

func (r *ActivityRepo) Clear(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM activities`); err != nil {
		return fmt.Errorf("activity clear: %w", err)
	}
	return nil
}

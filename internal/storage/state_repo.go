package storage

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"
)

// StateRepo stores engine records as JSON values under logical keys
// (progress:<id>, streak:<id>, passive:global, time:global).
type StateRepo struct {
	db *sql.DB
}

func NewStateRepo(db *sql.DB) *StateRepo {
	return &StateRepo{db: db}
}

func (r *StateRepo) Get(ctx context.Context, key string) ([]byte, bool, error) {
	row := r.db.QueryRowContext(ctx, `SELECT value FROM state WHERE key = ?`, key)
	var value string
	if err := row.Scan(&value); err != nil {
		if err == sql.ErrNoRows {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("state get %q: %w", key, err)
	}
	return []byte(value), true, nil
}

func (r *StateRepo) Put(ctx context.Context, key string, value []byte) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO state (key, value, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at
	`, key, string(value), time.Now().UTC())
	if err != nil {
		return fmt.Errorf("state put %q: %w", key, err)
	}
	return nil
}

// PutTx is Put inside an existing transaction, for catch-up flushes that
// must land atomically.
func (r *StateRepo) PutTx(ctx context.Context, tx *sql.Tx, key string, value []byte) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO state (key, value, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at
	`, key, string(value), time.Now().UTC())
	if err != nil {
		return fmt.Errorf("state put %q: %w", key, err)
	}
	return nil
}

// ListPrefix returns every key/value pair whose key starts with prefix.
func (r *StateRepo) ListPrefix(ctx context.Context, prefix string) (map[string][]byte, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT key, value FROM state WHERE key LIKE ? ORDER BY key ASC`, escapeLike(prefix)+"%")
	if err != nil {
		return nil, fmt.Errorf("state list %q: %w", prefix, err)
	}
	defer rows.Close()

	out := map[string][]byte{}
	for rows.Next() {
		var key, value string
		if err := rows.Scan(&key, &value); err != nil {
			return nil, fmt.Errorf("state scan: %w", err)
		}
		out[key] = []byte(value)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("state rows: %w", err)
	}
	return out, nil
}

func (r *StateRepo) Delete(ctx context.Context, key string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM state WHERE key = ?`, key); err != nil {
		return fmt.Errorf("state delete %q: %w", key, err)
	}
	return nil
}

// Clear wipes all engine state. Used by `lf reset`.
func (r *StateRepo) Clear(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM state`); err != nil {
		return fmt.Errorf("state clear: %w", err)
	}
	return nil
}

func escapeLike(s string) string {
	// Keys never contain LIKE metacharacters today; strip rather than escape.
	s = strings.ReplaceAll(s, "%", "")
	return strings.ReplaceAll(s, "_", "")
}

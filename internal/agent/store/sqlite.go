package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/hyoshida/estatesync/internal/dbx"
)

// KV is the durable key-value layer under the record store: one row per
// storage key, holding either a kind's full JSON array or a scalar
// bookkeeping value.
type KV struct {
	db dbx.DBTX
}

// NewKV returns a KV bound to the given DBTX.
func NewKV(db dbx.DBTX) *KV {
	return &KV{db: db}
}

// Get returns the value for key, or nil when the key does not exist.
func (r *KV) Get(ctx context.Context, key string) ([]byte, error) {
	var value []byte
	err := r.db.QueryRowContext(ctx, `SELECT value FROM storage WHERE key = ?`, key).Scan(&value)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get storage[%s]: %w", key, err)
	}
	return value, nil
}

// Set upserts the value for key.
func (r *KV) Set(ctx context.Context, key string, value []byte) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO storage (key, value) VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value
	`, key, value)
	if err != nil {
		return fmt.Errorf("failed to set storage[%s]: %w", key, err)
	}
	return nil
}

// Delete removes key. Deleting a missing key is not an error.
func (r *KV) Delete(ctx context.Context, key string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM storage WHERE key = ?`, key)
	if err != nil {
		return fmt.Errorf("failed to delete storage[%s]: %w", key, err)
	}
	return nil
}

// TotalBytes is the summed size of all keys and values, used by the
// storage-pressure health check.
func (r *KV) TotalBytes(ctx context.Context) (int64, error) {
	var total int64
	err := r.db.QueryRowContext(ctx,
		`SELECT COALESCE(SUM(LENGTH(key) + LENGTH(value)), 0) FROM storage`).Scan(&total)
	if err != nil {
		return 0, fmt.Errorf("failed to measure storage: %w", err)
	}
	return total, nil
}

// DeleteExcept removes every key not listed in keep.
func (r *KV) DeleteExcept(ctx context.Context, keep ...string) error {
	rows, err := r.db.QueryContext(ctx, `SELECT key FROM storage`)
	if err != nil {
		return fmt.Errorf("failed to list storage keys: %w", err)
	}
	defer rows.Close()

	keepSet := make(map[string]struct{}, len(keep))
	for _, k := range keep {
		keepSet[k] = struct{}{}
	}

	var doomed []string
	for rows.Next() {
		var key string
		if err := rows.Scan(&key); err != nil {
			return err
		}
		if _, ok := keepSet[key]; !ok {
			doomed = append(doomed, key)
		}
	}
	if err := rows.Err(); err != nil {
		return err
	}

	for _, key := range doomed {
		if err := r.Delete(ctx, key); err != nil {
			return err
		}
	}
	return nil
}

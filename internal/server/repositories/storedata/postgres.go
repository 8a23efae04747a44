package storedata

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/hyoshida/estatesync/internal/common"
	"github.com/hyoshida/estatesync/internal/dbx"
	"github.com/hyoshida/estatesync/internal/server/models"
)

type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) scanRow(row *sql.Row) (*models.StoreData, error) {
	sd := &models.StoreData{}
	err := row.Scan(&sd.StoreID, &sd.Data, &sd.Version, &sd.LastUpdatedBy, &sd.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return sd, nil
}

func (r *PostgresRepository) Get(ctx context.Context, storeID string) (*models.StoreData, error) {
	query :=
		`SELECT store_id, data, version, last_updated_by, updated_at FROM store_data
		 WHERE store_id = $1
		 `
	return r.scanRow(r.db.QueryRowContext(ctx, query, storeID))
}

func (r *PostgresRepository) GetForUpdate(ctx context.Context, storeID string) (*models.StoreData, error) {
	query :=
		`SELECT store_id, data, version, last_updated_by, updated_at FROM store_data
		 WHERE store_id = $1
		 FOR UPDATE
		 `
	return r.scanRow(r.db.QueryRowContext(ctx, query, storeID))
}

func (r *PostgresRepository) Upsert(ctx context.Context, storeID string, data []byte, updatedBy string) (int64, error) {
	query :=
		`INSERT INTO store_data (store_id, data, version, last_updated_by, updated_at)
		 VALUES ($1, $2, 1, $3, now())
		 ON CONFLICT (store_id) DO UPDATE
		 SET data = EXCLUDED.data,
		     version = store_data.version + 1,
		     last_updated_by = EXCLUDED.last_updated_by,
		     updated_at = now()
		 RETURNING version
		 `

	var version int64
	err := r.db.QueryRowContext(ctx, query, storeID, data, updatedBy).Scan(&version)
	if err != nil {
		return 0, fmt.Errorf("db error: %w", err)
	}

	return version, nil
}

package staff

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

func (r *PostgresRepository) Get(ctx context.Context, storeID, staffID string) (*models.Staff, error) {
	query :=
		`SELECT store_id, staff_id, name, role, password_hash, active, created_at FROM staff_auth
		 WHERE store_id = $1 AND staff_id = $2
		 `

	s := &models.Staff{}
	err := r.db.QueryRowContext(ctx, query, storeID, staffID).
		Scan(&s.StoreID, &s.StaffID, &s.Name, &s.Role, &s.PasswordHash, &s.Active, &s.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}

	return s, nil
}

func (r *PostgresRepository) ListActive(ctx context.Context, storeID string) ([]models.Staff, error) {
	query :=
		`SELECT store_id, staff_id, name, role, password_hash, active, created_at FROM staff_auth
		 WHERE store_id = $1 AND active
		 ORDER BY staff_id
		 `

	rows, err := r.db.QueryContext(ctx, query, storeID)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	var result []models.Staff
	for rows.Next() {
		var s models.Staff
		if err := rows.Scan(&s.StoreID, &s.StaffID, &s.Name, &s.Role, &s.PasswordHash, &s.Active, &s.CreatedAt); err != nil {
			return nil, fmt.Errorf("db error: %w", err)
		}
		result = append(result, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}

	return result, nil
}

func (r *PostgresRepository) Create(ctx context.Context, s *models.Staff) error {
	query :=
		`INSERT INTO staff_auth (store_id, staff_id, name, role, password_hash, active)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 `

	_, err := r.db.ExecContext(ctx, query,
		s.StoreID, s.StaffID, s.Name, s.Role, s.PasswordHash, s.Active)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}

	return nil
}

package storedata

import (
	"context"

	"github.com/hyoshida/estatesync/internal/server/models"
)

type Repository interface {
	// GetForUpdate reads the store row inside the current transaction,
	// locking it against concurrent saves. Returns common.ErrNotFound when
	// the store has never pushed.
	GetForUpdate(ctx context.Context, storeID string) (*models.StoreData, error)
	// Get reads the store row without locking.
	Get(ctx context.Context, storeID string) (*models.StoreData, error)
	// Upsert writes the merged snapshot, bumping version by one, and
	// returns the new version.
	Upsert(ctx context.Context, storeID string, data []byte, updatedBy string) (int64, error)
}

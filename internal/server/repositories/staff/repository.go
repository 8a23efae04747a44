package staff

import (
	"context"

	"github.com/hyoshida/estatesync/internal/server/models"
)

type Repository interface {
	// Get returns one staff record, active or not. common.ErrNotFound when
	// the staff member does not exist at this store.
	Get(ctx context.Context, storeID, staffID string) (*models.Staff, error)
	// ListActive returns the active roster of a store, ordered by staff id.
	ListActive(ctx context.Context, storeID string) ([]models.Staff, error)
	// Create registers a staff member.
	Create(ctx context.Context, s *models.Staff) error
}

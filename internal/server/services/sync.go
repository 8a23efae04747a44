// Package services contains server-side business logic: merging pushed
// snapshots into the authoritative store row and authenticating staff.
package services

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/hyoshida/estatesync/internal/common"
	"github.com/hyoshida/estatesync/internal/dbx"
	"github.com/hyoshida/estatesync/internal/logging"
	"github.com/hyoshida/estatesync/internal/merge"
	"github.com/hyoshida/estatesync/internal/model"
	"github.com/hyoshida/estatesync/internal/server/repositories/repomanager"
)

// SyncService applies pushed snapshots to the per-store authoritative row.
// The fetch-merge-write sequence runs inside one transaction with the row
// locked, so two staff pushing at once cannot overwrite each other.
type SyncService struct {
	db          *sql.DB
	repomanager repomanager.RepositoryManager
	logger      logging.Logger
}

func NewSyncService(db *sql.DB, m repomanager.RepositoryManager, logger logging.Logger) *SyncService {
	return &SyncService{
		db:          db,
		repomanager: m,
		logger:      logger.With("module", "sync"),
	}
}

// SaveResult reports the outcome of one accepted push.
type SaveResult struct {
	Version   int64
	Conflicts []merge.Conflict
}

// Save merges the client snapshot with the stored one and persists the
// result. A store with no row yet stores the client snapshot as-is.
func (s *SyncService) Save(ctx context.Context, storeID, staffID string, client *model.Snapshot) (*SaveResult, error) {
	if client == nil {
		return nil, common.ErrMalformedPayload
	}

	var result *SaveResult
	err := dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		repo := s.repomanager.StoreData(tx)

		merged := client
		var conflicts []merge.Conflict

		row, err := repo.GetForUpdate(ctx, storeID)
		switch {
		case errors.Is(err, common.ErrNotFound):
			// first push for this store
		case err != nil:
			return err
		default:
			server := &model.Snapshot{}
			if uerr := json.Unmarshal(row.Data, server); uerr != nil {
				// a corrupt stored row must not block pushes; the client
				// copy becomes the new authority
				s.logger.Error(ctx, "stored snapshot is unreadable, replacing it",
					"storeId", storeID, "error", uerr)
				server = nil
			}
			if server != nil {
				merged, conflicts = merge.Snapshots(server, client)
			}
		}

		data, err := json.Marshal(merged)
		if err != nil {
			return fmt.Errorf("failed to encode snapshot: %w", err)
		}

		version, err := repo.Upsert(ctx, storeID, data, staffID)
		if err != nil {
			return err
		}

		result = &SaveResult{Version: version, Conflicts: conflicts}
		return nil
	})
	if err != nil {
		return nil, err
	}

	for _, c := range result.Conflicts {
		s.logger.Info(ctx, "resolved concurrent delete/edit",
			"storeId", storeID, "kind", c.Kind, "recordId", c.RecordID, "resolution", c.Resolution)
	}

	return result, nil
}

// Load returns the stored snapshot. A store that has never pushed returns
// (nil, zero time, nil): the caller sends an explicit null so the client
// knows there is no remote data rather than an empty collection set.
func (s *SyncService) Load(ctx context.Context, storeID string) (*model.Snapshot, time.Time, error) {
	repo := s.repomanager.StoreData(s.db)

	row, err := repo.Get(ctx, storeID)
	if err != nil {
		if errors.Is(err, common.ErrNotFound) {
			return nil, time.Time{}, nil
		}
		return nil, time.Time{}, err
	}

	snap := &model.Snapshot{}
	if err := json.Unmarshal(row.Data, snap); err != nil {
		return nil, time.Time{}, fmt.Errorf("failed to decode snapshot: %w", err)
	}

	return snap, row.UpdatedAt, nil
}

// CheckResult answers "has anyone pushed since lastSync".
type CheckResult struct {
	HasUpdate bool
	UpdatedBy string
}

// Check compares the row's update time against the caller's last sync.
func (s *SyncService) Check(ctx context.Context, storeID string, lastSync time.Time) (*CheckResult, error) {
	repo := s.repomanager.StoreData(s.db)

	row, err := repo.Get(ctx, storeID)
	if err != nil {
		if errors.Is(err, common.ErrNotFound) {
			return &CheckResult{}, nil
		}
		return nil, err
	}

	if !lastSync.IsZero() && !row.UpdatedAt.After(lastSync) {
		return &CheckResult{}, nil
	}

	return &CheckResult{HasUpdate: true, UpdatedBy: row.LastUpdatedBy}, nil
}

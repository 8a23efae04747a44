// Package cleanup bounds local storage growth by physically purging
// tombstoned records, but only when their deletion is provably known to the
// sync authority. On any doubt it declines to purge: cleanup is storage
// pressure mitigation, never a correctness path, so the failure mode is
// always "kept too much", never "lost data".
package cleanup

import (
	"context"
	"time"

	"github.com/hyoshida/estatesync/internal/agent/store"
	"github.com/hyoshida/estatesync/internal/logging"
	"github.com/hyoshida/estatesync/internal/model"
)

// Guard thresholds.
const (
	// maxSyncStaleness is how recent the last successful sync must be for
	// its confirmation to be trusted.
	maxSyncStaleness = 24 * time.Hour

	// aggressiveCooldown is the minimum quiet period after a successful
	// sync before an aggressive purge is allowed.
	aggressiveCooldown = 5 * time.Minute

	// Usage ratios above which the health check acts.
	usageCleanupThreshold = 0.80
	usageWarningThreshold = 0.90
)

// Service runs retention cleanup against the local record store.
type Service struct {
	store  *store.Store
	logger logging.Logger
	now    func() time.Time
}

func NewService(st *store.Store, logger logging.Logger) *Service {
	return &Service{
		store:  st,
		logger: logger.With("module", "cleanup"),
		now:    time.Now,
	}
}

// CleanupSynced purges tombstoned records older than maxAgeDays, provided
// every guard holds:
//
//	(a) the tombstone is older than the cutoff,
//	(b) a successful sync completed after the tombstone was created, and
//	(c) that sync is recent enough to be trusted.
//
// When the sync history cannot satisfy (b)/(c) for a record, that record is
// kept. Returns the number of records purged.
func (s *Service) CleanupSynced(ctx context.Context, maxAgeDays int) (int, error) {
	lastSync, err := s.store.LastSyncTime(ctx)
	if err != nil {
		return 0, err
	}
	if lastSync.IsZero() {
		s.logger.Debug(ctx, "no sync history, skipping cleanup")
		return 0, nil
	}
	ok, err := s.store.LastSyncSuccess(ctx)
	if err != nil {
		return 0, err
	}
	if !ok {
		s.logger.Debug(ctx, "last sync failed, skipping cleanup")
		return 0, nil
	}
	now := s.now()
	if now.Sub(lastSync) > maxSyncStaleness {
		s.logger.Debug(ctx, "last sync too old, skipping cleanup", "lastSync", lastSync)
		return 0, nil
	}

	cutoff := now.AddDate(0, 0, -maxAgeDays)
	total := 0
	for _, kind := range model.TombstonedKinds {
		purged, err := s.store.Purge(ctx, kind, func(r model.Record) bool {
			if !r.IsDeleted() || r.DeletedAt == nil {
				return false
			}
			deletedAt := r.DeletedTime()
			return deletedAt.Before(cutoff) && deletedAt.Before(lastSync)
		})
		if err != nil {
			return total, err
		}
		total += purged
	}
	if total > 0 {
		s.logger.Info(ctx, "cleaned synced tombstones", "count", total)
		if err := s.store.RecordCleanup(ctx, total); err != nil {
			s.logger.Warn(ctx, "failed to record cleanup event", "error", err)
		}
	}
	return total, nil
}

// AggressivePurge removes every tombstoned record regardless of age. Only
// safe right after a verified successful push, so it refuses unless the
// last sync succeeded and the cooldown since it has elapsed.
func (s *Service) AggressivePurge(ctx context.Context) (int, error) {
	ok, err := s.store.LastSyncSuccess(ctx)
	if err != nil {
		return 0, err
	}
	if !ok {
		s.logger.Warn(ctx, "last sync was not successful, aborting aggressive purge")
		return 0, nil
	}
	lastSync, err := s.store.LastSyncTime(ctx)
	if err != nil {
		return 0, err
	}
	if lastSync.IsZero() || s.now().Sub(lastSync) < aggressiveCooldown {
		s.logger.Warn(ctx, "too soon after last sync, aborting aggressive purge")
		return 0, nil
	}

	total := 0
	for _, kind := range model.TombstonedKinds {
		purged, err := s.store.Purge(ctx, kind, model.Record.IsDeleted)
		if err != nil {
			return total, err
		}
		total += purged
	}
	if err := s.store.RecordCleanup(ctx, total); err != nil {
		s.logger.Warn(ctx, "failed to record cleanup event", "error", err)
	}
	s.logger.Info(ctx, "aggressively purged tombstones", "count", total)
	return total, nil
}

// Health is the storage-pressure report.
type Health struct {
	UsageRatio float64
	Healthy    bool
	Warning    bool
}

// CheckHealth measures storage usage, runs a guarded cleanup above the
// cleanup threshold, and flags a user-visible warning above the warning
// threshold. It never fails the caller for cleanup-internal reasons.
func (s *Service) CheckHealth(ctx context.Context) (Health, error) {
	usage, err := s.store.UsageRatio(ctx)
	if err != nil {
		return Health{}, err
	}
	h := Health{
		UsageRatio: usage,
		Healthy:    usage < usageCleanupThreshold,
		Warning:    usage >= usageWarningThreshold,
	}
	if !h.Healthy {
		if _, err := s.CleanupSynced(ctx, 7); err != nil {
			s.logger.Warn(ctx, "health-triggered cleanup failed", "error", err)
		}
	}
	return h, nil
}

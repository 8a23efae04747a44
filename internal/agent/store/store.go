// Package store implements the device-local record store: every entity
// collection persisted as one durable key holding the kind's full JSON
// array, plus scalar keys for settings, theme, and sync bookkeeping.
//
// The store is the sole gate to device storage. All mutators stamp
// timestamps and the acting staff identity, and user-initiated deletes only
// ever tombstone; physical removal is reserved for retention cleanup and
// the explicit purge operation.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/pressly/goose/v3"

	"github.com/hyoshida/estatesync/internal/agent/store/migrations"
	"github.com/hyoshida/estatesync/internal/common"
	"github.com/hyoshida/estatesync/internal/dbx"
	"github.com/hyoshida/estatesync/internal/logging"
	"github.com/hyoshida/estatesync/internal/model"
)

// Scalar storage keys, alongside the per-kind collection keys.
const (
	keySettings        = "estate_settings"
	keyTheme           = "estate_theme"
	keyLastSyncTime    = "last_sync_time"
	keyLastSyncSuccess = "last_sync_success"
	keyLastCleanup     = "last_cleanup"
)

// StorageQuotaBytes approximates the device storage budget the health check
// measures usage against.
const StorageQuotaBytes = 5 * 1024 * 1024

// Store is the local record store. One instance per device/process; all
// in-process mutators serialize on it, so two rapid mutations to the same
// kind are totally ordered by call order.
type Store struct {
	db     *sql.DB
	logger logging.Logger

	mu    sync.Mutex
	actor string

	now   func() time.Time
	newID func() string
}

// Open opens (creating if necessary) the store database at dsn and runs
// schema migrations.
func Open(ctx context.Context, dsn string, logger logging.Logger) (*Store, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open store db: %w", err)
	}

	goose.SetBaseFS(migrations.Migrations)
	if err := goose.SetDialect("sqlite3"); err != nil {
		return nil, fmt.Errorf("failed to set goose dialect: %w", err)
	}
	if err := goose.UpContext(ctx, db, "."); err != nil {
		return nil, fmt.Errorf("migration error: %w", err)
	}

	return New(db, logger), nil
}

// New wraps an already-open database. The schema must exist.
func New(db *sql.DB, logger logging.Logger) *Store {
	return &Store{
		db:     db,
		logger: logger.With("module", "store"),
		now:    time.Now,
		newID:  uuid.NewString,
	}
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

// SetActor records the authenticated staff identity stamped onto new
// records. An empty actor is allowed: stamping is then skipped and records
// are created unowned.
func (s *Store) SetActor(staffID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.actor = staffID
}

// Actor returns the current acting staff identity ("" when anonymous).
func (s *Store) Actor() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.actor
}

func readCollection(ctx context.Context, kv *KV, kind model.Kind) ([]model.Record, error) {
	data, err := kv.Get(ctx, kind.StorageKey())
	if err != nil {
		return nil, err
	}
	if data == nil {
		return nil, nil
	}
	var recs []model.Record
	if err := json.Unmarshal(data, &recs); err != nil {
		return nil, fmt.Errorf("failed to decode %s collection: %w", kind, err)
	}
	return recs, nil
}

func writeCollection(ctx context.Context, kv *KV, kind model.Kind, recs []model.Record) error {
	if recs == nil {
		recs = []model.Record{}
	}
	data, err := json.Marshal(recs)
	if err != nil {
		return fmt.Errorf("failed to encode %s collection: %w", kind, err)
	}
	return kv.Set(ctx, kind.StorageKey(), data)
}

// ReadAll returns the full stored collection, tombstones included. Export,
// merge and cleanup read through here; nothing else should.
func (s *Store) ReadAll(ctx context.Context, kind model.Kind) ([]model.Record, error) {
	return readCollection(ctx, NewKV(s.db), kind)
}

// ReadLive returns the collection filtered to records that are not
// tombstoned. This is the view every CRUD/display caller uses.
func (s *Store) ReadLive(ctx context.Context, kind model.Kind) ([]model.Record, error) {
	all, err := s.ReadAll(ctx, kind)
	if err != nil {
		return nil, err
	}
	live := make([]model.Record, 0, len(all))
	for _, r := range all {
		if !r.IsDeleted() {
			live = append(live, r)
		}
	}
	return live, nil
}

// Upsert saves one record. A record without an id is treated as new: it
// gets an id, creation timestamp and the acting staff identity, and is
// prepended so collections read newest-first. A record with an id is
// located and its attributes shallow-merged over the stored ones; the
// stored owner and creation time are kept.
func (s *Store) Upsert(ctx context.Context, kind model.Kind, rec model.Record) (model.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var saved model.Record
	err := dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		kv := NewKV(tx)
		recs, err := readCollection(ctx, kv, kind)
		if err != nil {
			return err
		}

		now := s.now()
		if rec.ID == "" {
			rec.ID = s.newID()
			rec.CreatedAt = now
			rec.UpdatedAt = now
			if s.actor != "" {
				rec.StaffID = s.actor
			}
			recs = append([]model.Record{rec}, recs...)
			if kind == model.KindNotifications && len(recs) > model.NotificationRetention {
				recs = recs[:model.NotificationRetention]
			}
			saved = rec
			return writeCollection(ctx, kv, kind, recs)
		}

		for i := range recs {
			if recs[i].ID != rec.ID {
				continue
			}
			recs[i].MergeAttrs(rec.Attrs)
			recs[i].Touch(now)
			saved = recs[i]
			return writeCollection(ctx, kv, kind, recs)
		}
		return common.ErrNotFound
	})
	if err != nil {
		return model.Record{}, err
	}
	return saved, nil
}

// SoftDelete tombstones a record. It reports false without error when the
// id is unknown or already deleted. Deleting a property also clears the
// soft property reference on every live sale pointing at it.
func (s *Store) SoftDelete(ctx context.Context, kind model.Kind, id string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	deleted := false
	err := dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		kv := NewKV(tx)
		recs, err := readCollection(ctx, kv, kind)
		if err != nil {
			return err
		}

		now := s.now()
		for i := range recs {
			if recs[i].ID != id || recs[i].IsDeleted() {
				continue
			}
			recs[i].MarkDeleted(now)
			deleted = true
			break
		}
		if !deleted {
			return nil
		}
		if err := writeCollection(ctx, kv, kind, recs); err != nil {
			return err
		}
		if kind == model.KindProperties {
			return s.clearSaleReferences(ctx, kv, id, now)
		}
		return nil
	})
	return deleted, err
}

// clearSaleReferences implements the soft foreign key from sales to
// properties: the sale survives the property's deletion with its reference
// cleared and flagged.
func (s *Store) clearSaleReferences(ctx context.Context, kv *KV, propertyID string, now time.Time) error {
	sales, err := readCollection(ctx, kv, model.KindSales)
	if err != nil {
		return err
	}
	changed := false
	for i := range sales {
		if sales[i].IsDeleted() || sales[i].StringAttr(model.AttrPropertyID) != propertyID {
			continue
		}
		sales[i].SetAttr(model.AttrPropertyID, nil)
		sales[i].SetAttr(model.AttrPropertyDeleted, true)
		sales[i].Touch(now)
		changed = true
	}
	if !changed {
		return nil
	}
	return writeCollection(ctx, kv, model.KindSales, sales)
}

// Restore clears a tombstone. It reports false without error when the id
// is unknown or not deleted.
func (s *Store) Restore(ctx context.Context, kind model.Kind, id string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	restored := false
	err := dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		kv := NewKV(tx)
		recs, err := readCollection(ctx, kv, kind)
		if err != nil {
			return err
		}
		for i := range recs {
			if recs[i].ID != id || !recs[i].IsDeleted() {
				continue
			}
			recs[i].ClearTombstone(s.now())
			restored = true
			break
		}
		if !restored {
			return nil
		}
		return writeCollection(ctx, kv, kind, recs)
	})
	return restored, err
}

// Purge physically removes every record matching the predicate.
// Irreversible; retention cleanup is the only intended caller.
func (s *Store) Purge(ctx context.Context, kind model.Kind, match func(model.Record) bool) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	purged := 0
	err := dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		kv := NewKV(tx)
		recs, err := readCollection(ctx, kv, kind)
		if err != nil {
			return err
		}
		kept := recs[:0:0]
		for _, r := range recs {
			if match(r) {
				purged++
				continue
			}
			kept = append(kept, r)
		}
		if purged == 0 {
			return nil
		}
		return writeCollection(ctx, kv, kind, kept)
	})
	if err != nil {
		return 0, err
	}
	return purged, nil
}

// TrashItem is one recently tombstoned record, for the restore listing.
type TrashItem struct {
	Kind   model.Kind
	Record model.Record
}

// RecentlyDeleted lists records tombstoned within the past days, newest
// deletion first.
func (s *Store) RecentlyDeleted(ctx context.Context, days int) ([]TrashItem, error) {
	cutoff := s.now().AddDate(0, 0, -days)
	var items []TrashItem
	for _, kind := range model.TombstonedKinds {
		recs, err := s.ReadAll(ctx, kind)
		if err != nil {
			return nil, err
		}
		for _, r := range recs {
			if r.IsDeleted() && r.DeletedTime().After(cutoff) {
				items = append(items, TrashItem{Kind: kind, Record: r})
			}
		}
	}
	for i := 1; i < len(items); i++ {
		for j := i; j > 0 && items[j].Record.DeletedTime().After(items[j-1].Record.DeletedTime()); j-- {
			items[j], items[j-1] = items[j-1], items[j]
		}
	}
	return items, nil
}

// Export assembles the full multi-kind snapshot, tombstones included, as
// one consistent read.
func (s *Store) Export(ctx context.Context) (*model.Snapshot, error) {
	snap := &model.Snapshot{
		ExportDate: s.now(),
		Version:    model.SnapshotVersion,
	}
	err := dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		kv := NewKV(tx)
		for _, kind := range model.Kinds {
			recs, err := readCollection(ctx, kv, kind)
			if err != nil {
				return err
			}
			if recs == nil {
				recs = []model.Record{}
			}
			snap.SetCollection(kind, recs)
		}
		settings, err := readSettings(ctx, kv)
		if err != nil {
			return err
		}
		snap.Settings = settings
		return nil
	})
	if err != nil {
		return nil, err
	}
	return snap, nil
}

// Import overwrites local collections with the authoritative snapshot,
// after reconciling locally un-pushed tombstones: a local tombstone is
// re-applied onto the incoming record unless the incoming copy was edited
// strictly after the local deletion. Without this, a pull arriving between
// a local delete and the next push would silently resurrect the record.
// The whole import is one transaction; a failure leaves local state
// untouched.
func (s *Store) Import(ctx context.Context, snap *model.Snapshot) error {
	if snap == nil {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	return dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		kv := NewKV(tx)
		for _, kind := range model.Kinds {
			incoming := snap.Collection(kind)
			if incoming == nil {
				continue
			}
			local, err := readCollection(ctx, kv, kind)
			if err != nil {
				return err
			}
			tombstones := make(map[string]model.Record)
			for _, r := range local {
				if r.IsDeleted() {
					tombstones[r.ID] = r
				}
			}
			for i := range incoming {
				t, ok := tombstones[incoming[i].ID]
				if !ok || incoming[i].IsDeleted() {
					continue
				}
				if incoming[i].LastModified().After(t.DeletedTime()) {
					// remote edit is newer than our delete decision
					continue
				}
				incoming[i].Deleted = t.Deleted
				incoming[i].DeletedAt = t.DeletedAt
				incoming[i].UpdatedAt = t.UpdatedAt
			}
			if err := writeCollection(ctx, kv, kind, incoming); err != nil {
				return err
			}
		}
		if snap.Settings != nil {
			if err := writeSettings(ctx, kv, snap.Settings); err != nil {
				return err
			}
		}
		return nil
	})
}

func readSettings(ctx context.Context, kv *KV) (*model.Settings, error) {
	data, err := kv.Get(ctx, keySettings)
	if err != nil {
		return nil, err
	}
	if data == nil {
		return nil, nil
	}
	var settings model.Settings
	if err := json.Unmarshal(data, &settings); err != nil {
		return nil, fmt.Errorf("failed to decode settings: %w", err)
	}
	return &settings, nil
}

func writeSettings(ctx context.Context, kv *KV, settings *model.Settings) error {
	data, err := json.Marshal(settings)
	if err != nil {
		return fmt.Errorf("failed to encode settings: %w", err)
	}
	return kv.Set(ctx, keySettings, data)
}

// Settings returns the stored settings, or the defaults when none saved.
func (s *Store) Settings(ctx context.Context) (*model.Settings, error) {
	settings, err := readSettings(ctx, NewKV(s.db))
	if err != nil {
		return nil, err
	}
	if settings == nil {
		return model.DefaultSettings(), nil
	}
	return settings, nil
}

// SaveSettings stores the settings singleton, stamping its update time.
func (s *Store) SaveSettings(ctx context.Context, settings *model.Settings) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	settings.UpdatedAt = s.now()
	return writeSettings(ctx, NewKV(s.db), settings)
}

// Theme returns the stored UI theme, defaulting to "light".
func (s *Store) Theme(ctx context.Context) (string, error) {
	data, err := NewKV(s.db).Get(ctx, keyTheme)
	if err != nil {
		return "", err
	}
	if data == nil {
		return "light", nil
	}
	return string(data), nil
}

// SetTheme stores the UI theme.
func (s *Store) SetTheme(ctx context.Context, theme string) error {
	return NewKV(s.db).Set(ctx, keyTheme, []byte(theme))
}

// SetLastSync records the bookkeeping of a finished sync attempt.
func (s *Store) SetLastSync(ctx context.Context, at time.Time, success bool) error {
	kv := NewKV(s.db)
	if err := kv.Set(ctx, keyLastSyncTime, []byte(at.Format(time.RFC3339Nano))); err != nil {
		return err
	}
	return kv.Set(ctx, keyLastSyncSuccess, []byte(strconv.FormatBool(success)))
}

// LastSyncTime returns the time of the last sync attempt; the zero time
// when the device has never synced.
func (s *Store) LastSyncTime(ctx context.Context) (time.Time, error) {
	data, err := NewKV(s.db).Get(ctx, keyLastSyncTime)
	if err != nil || data == nil {
		return time.Time{}, err
	}
	t, err := time.Parse(time.RFC3339Nano, string(data))
	if err != nil {
		return time.Time{}, fmt.Errorf("corrupt last sync time: %w", err)
	}
	return t, nil
}

// LastSyncSuccess reports whether the most recent sync attempt succeeded.
func (s *Store) LastSyncSuccess(ctx context.Context) (bool, error) {
	data, err := NewKV(s.db).Get(ctx, keyLastSyncSuccess)
	if err != nil || data == nil {
		return false, err
	}
	return string(data) == "true", nil
}

// CleanupEvent records the outcome of the most recent physical cleanup.
type CleanupEvent struct {
	CleanedCount int       `json:"cleanedCount"`
	CleanedAt    time.Time `json:"cleanedAt"`
}

// RecordCleanup stores the cleanup event for diagnostics.
func (s *Store) RecordCleanup(ctx context.Context, count int) error {
	data, err := json.Marshal(CleanupEvent{CleanedCount: count, CleanedAt: s.now()})
	if err != nil {
		return err
	}
	return NewKV(s.db).Set(ctx, keyLastCleanup, data)
}

// UsageRatio reports stored bytes over the storage quota, 0..1+.
func (s *Store) UsageRatio(ctx context.Context) (float64, error) {
	total, err := NewKV(s.db).TotalBytes(ctx)
	if err != nil {
		return 0, err
	}
	return float64(total) / float64(StorageQuotaBytes), nil
}

// ClearAll wipes everything except the UI theme. Used when the session is
// terminated and the device should start over.
func (s *Store) ClearAll(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return NewKV(s.db).DeleteExcept(ctx, keyTheme)
}

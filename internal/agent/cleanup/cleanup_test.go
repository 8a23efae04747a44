package cleanup

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	_ "modernc.org/sqlite"

	"github.com/hyoshida/estatesync/internal/agent/store"
	"github.com/hyoshida/estatesync/internal/logging"
	"github.com/hyoshida/estatesync/internal/model"
)

var testDBSeq int

func newTestService(t *testing.T) (*Service, *store.Store) {
	t.Helper()
	testDBSeq++
	dsn := fmt.Sprintf("file:cleanuptest%d?mode=memory&cache=shared", testDBSeq)
	st, err := store.Open(context.Background(), dsn, logging.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })
	return NewService(st, logging.NewNop()), st
}

// tombstoneAt creates a record and tombstones it at the given time.
func tombstoneAt(t *testing.T, st *store.Store, kind model.Kind, at time.Time) model.Record {
	t.Helper()
	ctx := context.Background()
	rec, err := st.Upsert(ctx, kind, model.Record{Attrs: map[string]any{"title": "x"}})
	require.NoError(t, err)
	ok, err := st.SoftDelete(ctx, kind, rec.ID)
	require.NoError(t, err)
	require.True(t, ok)

	// rewrite the stamped deletion time through a purge-less read/import cycle
	all, err := st.ReadAll(ctx, kind)
	require.NoError(t, err)
	snap := &model.Snapshot{}
	for i := range all {
		if all[i].ID == rec.ID {
			all[i].DeletedAt = &at
			all[i].UpdatedAt = at
		}
	}
	snap.SetCollection(kind, all)
	require.NoError(t, st.Import(ctx, snap))
	return rec
}

func TestCleanupSynced_PurgesOldConfirmedTombstones(t *testing.T) {
	ctx := context.Background()
	svc, st := newTestService(t)
	now := time.Date(2026, 8, 1, 9, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return now }

	tombstoneAt(t, st, model.KindMemos, now.AddDate(0, 0, -10))
	fresh := tombstoneAt(t, st, model.KindMemos, now.Add(-time.Hour))
	require.NoError(t, st.SetLastSync(ctx, now.Add(-time.Minute), true))

	purged, err := svc.CleanupSynced(ctx, 7)
	require.NoError(t, err)
	assert.Equal(t, 1, purged)

	remaining, err := st.ReadAll(ctx, model.KindMemos)
	require.NoError(t, err)
	require.Len(t, remaining, 1)
	assert.Equal(t, fresh.ID, remaining[0].ID)
}

func TestCleanupSynced_SkipsWithoutSyncHistory(t *testing.T) {
	ctx := context.Background()
	svc, st := newTestService(t)
	now := time.Date(2026, 8, 1, 9, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return now }

	tombstoneAt(t, st, model.KindMemos, now.AddDate(0, 0, -10))

	purged, err := svc.CleanupSynced(ctx, 7)
	require.NoError(t, err)
	assert.Zero(t, purged)

	remaining, err := st.ReadAll(ctx, model.KindMemos)
	require.NoError(t, err)
	assert.Len(t, remaining, 1)
}

func TestCleanupSynced_SkipsAfterFailedSync(t *testing.T) {
	ctx := context.Background()
	svc, st := newTestService(t)
	now := time.Date(2026, 8, 1, 9, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return now }

	tombstoneAt(t, st, model.KindMemos, now.AddDate(0, 0, -10))
	require.NoError(t, st.SetLastSync(ctx, now.Add(-time.Minute), false))

	purged, err := svc.CleanupSynced(ctx, 7)
	require.NoError(t, err)
	assert.Zero(t, purged)
}

func TestCleanupSynced_SkipsStaleSync(t *testing.T) {
	ctx := context.Background()
	svc, st := newTestService(t)
	now := time.Date(2026, 8, 1, 9, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return now }

	tombstoneAt(t, st, model.KindMemos, now.AddDate(0, 0, -10))
	// the last success is older than a day, its confirmation is not trusted
	require.NoError(t, st.SetLastSync(ctx, now.Add(-25*time.Hour), true))

	purged, err := svc.CleanupSynced(ctx, 7)
	require.NoError(t, err)
	assert.Zero(t, purged)
}

func TestCleanupSynced_KeepsTombstoneNewerThanLastSync(t *testing.T) {
	ctx := context.Background()
	svc, st := newTestService(t)
	now := time.Date(2026, 8, 1, 9, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return now }

	// deleted after the last successful sync: the authority has never seen
	// the tombstone, so even a zero-day retention keeps it
	tombstoneAt(t, st, model.KindMemos, now.Add(-30*time.Second))
	require.NoError(t, st.SetLastSync(ctx, now.Add(-time.Minute), true))

	purged, err := svc.CleanupSynced(ctx, 0)
	require.NoError(t, err)
	assert.Zero(t, purged)

	remaining, err := st.ReadAll(ctx, model.KindMemos)
	require.NoError(t, err)
	assert.Len(t, remaining, 1)
}

func TestAggressivePurge_RemovesAllTombstones(t *testing.T) {
	ctx := context.Background()
	svc, st := newTestService(t)
	now := time.Date(2026, 8, 1, 9, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return now }

	tombstoneAt(t, st, model.KindMemos, now.Add(-time.Hour))
	tombstoneAt(t, st, model.KindTodos, now.Add(-time.Minute))
	live, err := st.Upsert(ctx, model.KindMemos, model.Record{Attrs: map[string]any{"text": "keep"}})
	require.NoError(t, err)
	require.NoError(t, st.SetLastSync(ctx, now.Add(-10*time.Minute), true))

	purged, err := svc.AggressivePurge(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, purged)

	memos, err := st.ReadAll(ctx, model.KindMemos)
	require.NoError(t, err)
	require.Len(t, memos, 1)
	assert.Equal(t, live.ID, memos[0].ID)
}

func TestAggressivePurge_RefusesWithinCooldown(t *testing.T) {
	ctx := context.Background()
	svc, st := newTestService(t)
	now := time.Date(2026, 8, 1, 9, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return now }

	tombstoneAt(t, st, model.KindMemos, now.Add(-time.Hour))
	require.NoError(t, st.SetLastSync(ctx, now.Add(-time.Minute), true))

	purged, err := svc.AggressivePurge(ctx)
	require.NoError(t, err)
	assert.Zero(t, purged)
}

func TestAggressivePurge_RefusesAfterFailedSync(t *testing.T) {
	ctx := context.Background()
	svc, st := newTestService(t)
	now := time.Date(2026, 8, 1, 9, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return now }

	tombstoneAt(t, st, model.KindMemos, now.Add(-time.Hour))
	require.NoError(t, st.SetLastSync(ctx, now.Add(-10*time.Minute), false))

	purged, err := svc.AggressivePurge(ctx)
	require.NoError(t, err)
	assert.Zero(t, purged)

	memos, err := st.ReadAll(ctx, model.KindMemos)
	require.NoError(t, err)
	assert.Len(t, memos, 1)
}

func TestCheckHealth_Thresholds(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t)

	h, err := svc.CheckHealth(ctx)
	require.NoError(t, err)
	assert.True(t, h.Healthy)
	assert.False(t, h.Warning)
	assert.Less(t, h.UsageRatio, 0.80)
}

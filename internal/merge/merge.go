// Package merge reduces two versions of an entity collection to one
// canonical collection. It is used by the sync authority when a device
// pushes a snapshot, and by the device when reconciling a pulled snapshot
// against tombstones it has not pushed yet.
//
// Resolution is last-writer-wins by record timestamp, with tombstone
// precedence and an explicit arbitration of the delete/edit race: a delete
// only wins over an edit the deleting device could have seen. Records are
// owned predominantly by one staff member, so genuine conflicts are rare;
// when one happens it is resolved deterministically and reported, never
// raised as an error.
package merge

import (
	"sort"
	"time"

	"github.com/hyoshida/estatesync/internal/model"
)

// Resolution names the rule that settled a delete/edit race.
type Resolution string

const (
	// ResolutionEditKept means an edit newer than the tombstone's decision
	// point won: the record stays live.
	ResolutionEditKept Resolution = "edit_kept"
	// ResolutionDeleteKept means the tombstone stood: the record stays
	// deleted even though the other side held a live copy.
	ResolutionDeleteKept Resolution = "delete_kept"
)

// Conflict records one resolved delete/edit race for later inspection.
type Conflict struct {
	Kind       model.Kind
	RecordID   string
	Resolution Resolution
	EditedAt   time.Time
	DeletedAt  time.Time
}

// Collections merges a server-held collection and a client-submitted
// collection of the same kind. Neither input is mutated. The result is
// ordered newest-first by creation time.
//
// A record present on the server but absent from the client is kept: a
// client not knowing an id means the device never saw the record, not that
// it wants it gone. Only an explicit tombstone deletes.
func Collections(kind model.Kind, server, client []model.Record) ([]model.Record, []Conflict) {
	merged := make([]model.Record, 0, len(server)+len(client))
	index := make(map[string]int, len(server))
	for _, s := range server {
		index[s.ID] = len(merged)
		merged = append(merged, s.Clone())
	}

	var conflicts []Conflict
	for _, c := range client {
		i, ok := index[c.ID]
		if !ok {
			// new record from this client
			index[c.ID] = len(merged)
			merged = append(merged, c.Clone())
			continue
		}

		winner, conflict := resolve(kind, merged[i], c)
		merged[i] = winner
		if conflict != nil {
			conflicts = append(conflicts, *conflict)
		}
	}

	SortNewestFirst(merged)
	return merged, conflicts
}

// resolve arbitrates one id present on both sides. The returned record is a
// clone, never an alias of the inputs.
func resolve(kind model.Kind, s, c model.Record) (model.Record, *Conflict) {
	switch {
	case s.IsDeleted() && c.IsDeleted():
		// later tombstone wins; on a tie prefer the client so a repeated
		// push is deterministic
		if s.DeletedTime().After(c.DeletedTime()) {
			return s.Clone(), nil
		}
		return c.Clone(), nil

	case c.IsDeleted():
		// delete propagates unless the server copy was edited after the
		// deleting device's decision point
		if s.LastModified().After(c.DeletedTime()) {
			return s.Clone(), &Conflict{
				Kind:       kind,
				RecordID:   s.ID,
				Resolution: ResolutionEditKept,
				EditedAt:   s.LastModified(),
				DeletedAt:  c.DeletedTime(),
			}
		}
		return c.Clone(), nil

	case s.IsDeleted():
		// deletion already recorded; only a strictly newer edit un-deletes
		if c.LastModified().After(s.DeletedTime()) {
			return c.Clone(), &Conflict{
				Kind:       kind,
				RecordID:   c.ID,
				Resolution: ResolutionEditKept,
				EditedAt:   c.LastModified(),
				DeletedAt:  s.DeletedTime(),
			}
		}
		return s.Clone(), &Conflict{
			Kind:       kind,
			RecordID:   c.ID,
			Resolution: ResolutionDeleteKept,
			EditedAt:   c.LastModified(),
			DeletedAt:  s.DeletedTime(),
		}

	default:
		// plain last-writer-wins; on a tie keep the authoritative value
		if c.LastModified().After(s.LastModified()) {
			return c.Clone(), nil
		}
		return s.Clone(), nil
	}
}

// Settings reconciles the per-store singleton: newer UpdatedAt wins, the
// server value on a tie.
func Settings(server, client *model.Settings) *model.Settings {
	if server == nil {
		return client
	}
	if client == nil {
		return server
	}
	if client.UpdatedAt.After(server.UpdatedAt) {
		return client
	}
	return server
}

// Snapshots merges every collection of the two snapshots independently,
// plus the settings singleton.
func Snapshots(server, client *model.Snapshot) (*model.Snapshot, []Conflict) {
	if server == nil {
		server = &model.Snapshot{}
	}
	if client == nil {
		client = &model.Snapshot{}
	}

	out := &model.Snapshot{
		ExportDate: latest(server.ExportDate, client.ExportDate),
		Version:    model.SnapshotVersion,
	}

	var conflicts []Conflict
	for _, k := range model.Kinds {
		mergedKind, kindConflicts := Collections(k, server.Collection(k), client.Collection(k))
		out.SetCollection(k, mergedKind)
		conflicts = append(conflicts, kindConflicts...)
	}
	out.Settings = Settings(server.Settings, client.Settings)

	return out, conflicts
}

// SortNewestFirst orders records by creation time descending, falling back
// to the last modification time for records missing createdAt. The order is
// a presentation convention only; correctness never depends on it.
func SortNewestFirst(recs []model.Record) {
	sort.SliceStable(recs, func(i, j int) bool {
		return sortKey(recs[i]).After(sortKey(recs[j]))
	})
}

func sortKey(r model.Record) time.Time {
	if !r.CreatedAt.IsZero() {
		return r.CreatedAt
	}
	return r.LastModified()
}

func latest(a, b time.Time) time.Time {
	if b.After(a) {
		return b
	}
	return a
}

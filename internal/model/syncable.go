// Package model defines the shared data model of estatesync: the common
// sync envelope carried by every record, the entity kinds, and the
// multi-kind snapshot exchanged with the sync authority.
package model

import "time"

// Syncable is the common envelope embedded in every synchronized record.
// It carries the identity and the timestamps the merge engine arbitrates by.
// Deletion is always a tombstone: Deleted is set and the record stays in
// storage until retention cleanup physically purges it.
type Syncable struct {
	ID         string     `json:"id"`
	CreatedAt  time.Time  `json:"createdAt"`
	UpdatedAt  time.Time  `json:"updatedAt"`
	StaffID    string     `json:"staffId,omitempty"`
	Deleted    bool       `json:"deleted,omitempty"`
	DeletedAt  *time.Time `json:"deletedAt,omitempty"`
	RestoredAt *time.Time `json:"restoredAt,omitempty"`
}

// Touch refreshes UpdatedAt. Every mutator must call it, so that recency
// comparisons during merge reflect the actual write order.
func (s *Syncable) Touch(now time.Time) {
	s.UpdatedAt = now
}

// MarkDeleted tombstones the record. The record is not removed from its
// collection; it stays visible to export and merge until purged.
func (s *Syncable) MarkDeleted(now time.Time) {
	s.Deleted = true
	s.DeletedAt = &now
	s.UpdatedAt = now
}

// ClearTombstone undoes a soft delete and records the restore time.
func (s *Syncable) ClearTombstone(now time.Time) {
	s.Deleted = false
	s.DeletedAt = nil
	s.RestoredAt = &now
	s.UpdatedAt = now
}

// IsDeleted reports whether the record is tombstoned.
func (s Syncable) IsDeleted() bool {
	return s.Deleted
}

// LastModified returns UpdatedAt, falling back to CreatedAt for records
// that have never been edited after creation.
func (s Syncable) LastModified() time.Time {
	if !s.UpdatedAt.IsZero() {
		return s.UpdatedAt
	}
	return s.CreatedAt
}

// DeletedTime returns the tombstone time, or the zero time for live records.
func (s Syncable) DeletedTime() time.Time {
	if s.DeletedAt == nil {
		return time.Time{}
	}
	return *s.DeletedAt
}

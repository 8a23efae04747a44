package model

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSyncable_DeleteRestoreCycle(t *testing.T) {
	created := time.Date(2026, 8, 1, 9, 0, 0, 0, time.UTC)
	s := Syncable{ID: "p-1", CreatedAt: created, UpdatedAt: created}

	deletedAt := created.Add(time.Hour)
	s.MarkDeleted(deletedAt)
	assert.True(t, s.IsDeleted())
	require.NotNil(t, s.DeletedAt)
	assert.True(t, s.DeletedAt.Equal(deletedAt))
	assert.True(t, s.UpdatedAt.Equal(deletedAt))
	assert.True(t, s.DeletedTime().Equal(deletedAt))

	restoredAt := deletedAt.Add(time.Hour)
	s.ClearTombstone(restoredAt)
	assert.False(t, s.IsDeleted())
	assert.Nil(t, s.DeletedAt)
	require.NotNil(t, s.RestoredAt)
	assert.True(t, s.RestoredAt.Equal(restoredAt))
	assert.True(t, s.UpdatedAt.Equal(restoredAt))
	assert.True(t, s.DeletedTime().IsZero())
}

func TestSyncable_Touch(t *testing.T) {
	s := Syncable{UpdatedAt: time.Date(2026, 8, 1, 9, 0, 0, 0, time.UTC)}
	later := s.UpdatedAt.Add(time.Minute)
	s.Touch(later)
	assert.True(t, s.UpdatedAt.Equal(later))
}

func TestSyncable_LastModified(t *testing.T) {
	created := time.Date(2026, 8, 1, 9, 0, 0, 0, time.UTC)

	// never edited: falls back to CreatedAt
	s := Syncable{CreatedAt: created}
	assert.True(t, s.LastModified().Equal(created))

	edited := created.Add(time.Hour)
	s.Touch(edited)
	assert.True(t, s.LastModified().Equal(edited))
}

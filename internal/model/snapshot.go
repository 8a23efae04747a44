package model

import "time"

// Settings is the per-store singleton. It has no id and no tombstone; two
// versions are reconciled by the newer UpdatedAt.
type Settings struct {
	DefaultTaxRate            float64   `json:"defaultTaxRate"`
	NotificationDays          int       `json:"notificationDays"`
	EnableBrowserNotification bool      `json:"enableBrowserNotification"`
	UpdatedAt                 time.Time `json:"updatedAt"`
}

// DefaultSettings mirrors the values a fresh device starts with.
func DefaultSettings() *Settings {
	return &Settings{
		DefaultTaxRate:   10,
		NotificationDays: 30,
	}
}

// Snapshot is the full multi-kind payload exchanged with the sync
// authority. Every collection is tombstone-inclusive; the live/deleted
// distinction is a read-time filter, never a wire-format one.
type Snapshot struct {
	Properties    []Record  `json:"properties"`
	Sales         []Record  `json:"sales"`
	Goals         []Record  `json:"goals"`
	Memos         []Record  `json:"memos"`
	Todos         []Record  `json:"todos"`
	Notifications []Record  `json:"notifications"`
	Settings      *Settings `json:"settings,omitempty"`
	ExportDate    time.Time `json:"exportDate"`
	Version       string    `json:"version,omitempty"`
}

// SnapshotVersion is the payload format version written on export.
const SnapshotVersion = "1.1"

// Collection returns the records of one kind. Unknown kinds yield nil.
func (s *Snapshot) Collection(k Kind) []Record {
	switch k {
	case KindProperties:
		return s.Properties
	case KindSales:
		return s.Sales
	case KindGoals:
		return s.Goals
	case KindMemos:
		return s.Memos
	case KindTodos:
		return s.Todos
	case KindNotifications:
		return s.Notifications
	}
	return nil
}

// SetCollection replaces the records of one kind.
func (s *Snapshot) SetCollection(k Kind, recs []Record) {
	switch k {
	case KindProperties:
		s.Properties = recs
	case KindSales:
		s.Sales = recs
	case KindGoals:
		s.Goals = recs
	case KindMemos:
		s.Memos = recs
	case KindTodos:
		s.Todos = recs
	case KindNotifications:
		s.Notifications = recs
	}
}

// IsEmpty reports whether the snapshot carries no records and no settings.
// An empty remote snapshot must never overwrite local data.
func (s *Snapshot) IsEmpty() bool {
	if s == nil {
		return true
	}
	for _, k := range Kinds {
		if len(s.Collection(k)) > 0 {
			return false
		}
	}
	return s.Settings == nil
}

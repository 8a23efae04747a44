// Package models defines server-side data models persisted in the database.
package models

import "time"

// StoreData is one store's authoritative snapshot row. Data holds the full
// merged snapshot as JSON; Version increases by one on every accepted save
// and backs the optimistic-concurrency check.
type StoreData struct {
	StoreID       string    `db:"store_id"`
	Data          []byte    `db:"data"`
	Version       int64     `db:"version"`
	LastUpdatedBy string    `db:"last_updated_by"`
	UpdatedAt     time.Time `db:"updated_at"`
}

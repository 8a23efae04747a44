package models

import "time"

// Staff is one staff member's login record, scoped to a store.
type Staff struct {
	StoreID      string    `db:"store_id"`
	StaffID      string    `db:"staff_id"`
	Name         string    `db:"name"`
	Role         string    `db:"role"`
	PasswordHash string    `db:"password_hash"`
	Active       bool      `db:"active"`
	CreatedAt    time.Time `db:"created_at"`
}

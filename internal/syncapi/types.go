// Package syncapi defines the wire contract between devices and the sync
// authority: one RPC-style endpoint with an action discriminator, plus the
// login exchange. Both the agent transport and the server handlers build
// against these types so the two sides cannot drift apart.
package syncapi

import (
	"time"

	"github.com/hyoshida/estatesync/internal/model"
)

// Actions accepted by POST /api/sync.
const (
	ActionSave  = "save"
	ActionLoad  = "load"
	ActionCheck = "check"
)

// Request is the single sync request envelope. Data is set for save,
// LastSync for check; load carries the action alone.
type Request struct {
	Action   string          `json:"action"`
	Data     *model.Snapshot `json:"data,omitempty"`
	LastSync *time.Time      `json:"lastSync,omitempty"`
}

// SaveResponse acknowledges a merged save. Version is the store row version
// after the merge, usable as an optimistic-concurrency observation.
type SaveResponse struct {
	Success bool  `json:"success"`
	Version int64 `json:"version,omitempty"`
}

// LoadResponse carries the authoritative snapshot. Data is null when the
// store has never been pushed to; the client must treat that as "no remote
// data yet", never as "remote wants empty".
type LoadResponse struct {
	Success     bool            `json:"success"`
	Data        *model.Snapshot `json:"data"`
	LastUpdated *time.Time      `json:"lastUpdated,omitempty"`
}

// CheckResponse reports whether anyone pushed after the caller's last sync.
type CheckResponse struct {
	HasUpdate bool   `json:"hasUpdate"`
	UpdatedBy string `json:"updatedBy,omitempty"`
}

// ErrorResponse is returned with any non-2xx status.
type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
}

// Machine-readable error codes.
const (
	CodeUnauthorized  = "unauthorized"
	CodeTokenExpired  = "token_expired"
	CodeBadRequest    = "bad_request"
	CodeInternalError = "internal_error"
)

// LoginRequest authenticates one staff member of one store.
type LoginRequest struct {
	StoreID  string `json:"storeId"`
	StaffID  string `json:"staffId"`
	Password string `json:"password"`
}

// StaffInfo is the public part of a staff record.
type StaffInfo struct {
	StaffID string `json:"staffId"`
	Name    string `json:"name"`
	Role    string `json:"role"`
}

// LoginResponse carries the bearer token used on every sync request.
type LoginResponse struct {
	Success bool      `json:"success"`
	Token   string    `json:"token"`
	Staff   StaffInfo `json:"staff"`
}

// StaffListResponse is the active staff roster of a store.
type StaffListResponse struct {
	Success bool        `json:"success"`
	Staff   []StaffInfo `json:"staff"`
}

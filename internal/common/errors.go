// Package common contains shared sentinel errors used across estatesync
// components.
package common

import "errors"

var (

	// repository specific errors
	ErrNotFound = errors.New("not found")

	// auth-specific errors
	ErrUnauthorized = errors.New("unauthorized")
	ErrTokenExpired = errors.New("token expired")
	ErrInvalidToken = errors.New("invalid token")

	// sync-specific errors
	ErrVersionConflict  = errors.New("version conflict")
	ErrUnavailable      = errors.New("sync endpoint unavailable")
	ErrMalformedPayload = errors.New("malformed remote payload")
	ErrSessionExpired   = errors.New("session expired, re-authentication required")
)

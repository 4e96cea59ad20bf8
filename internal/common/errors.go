// Package common defines shared constants and sentinel errors used across
// the spaceshare server layers. Callers should use errors.Is to match
// these values.
package common

import "errors"

var (
	// Repository-level errors.
	ErrNotFound = errors.New("not found")

	// Attachment validation errors.
	ErrForbidden    = errors.New("forbidden")
	ErrInvalidState = errors.New("invalid state")
	ErrInvalidInput = errors.New("invalid input")

	// Claim lifecycle errors (entity already has an owner).
	ErrAlreadyClaimed = errors.New("already claimed")

	// Auth errors (invalid or malformed token).
	ErrInvalidToken = errors.New("invalid token")
)

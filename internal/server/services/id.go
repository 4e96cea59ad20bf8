package services

import "github.com/google/uuid"

// newID returns an opaque unique identifier for new records.
func newID() string {
	return uuid.New().String()
}

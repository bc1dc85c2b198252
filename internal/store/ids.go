package store

import "github.com/google/uuid"

// NewID generates a new opaque identifier for any entity in this package.
func NewID() string {
	return uuid.NewString()
}

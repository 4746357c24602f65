// Package store persists fund pools and their registrations. Phase and
// accounting rules live on the model; stores only load, lock and save.
package store

import (
	"sahara/internal/pool/models"
)

// ValidateFunc inspects the locked pool and returns an error to abort.
type ValidateFunc func(*models.Pool) error

// MutateFunc changes the locked pool. An error aborts without saving.
type MutateFunc func(*models.Pool) error

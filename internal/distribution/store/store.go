// Package store persists distributions. Uniqueness of (pool, beneficiary) is
// enforced here; claim and reclaim rules live on the model.
package store

import (
	"sahara/internal/distribution/models"
)

// ValidateFunc inspects the locked distribution and returns an error to abort.
type ValidateFunc func(*models.Distribution) error

// MutateFunc changes the locked distribution. An error aborts without saving.
type MutateFunc func(*models.Distribution) error

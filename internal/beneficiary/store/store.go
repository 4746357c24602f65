// Package store persists beneficiary records. Stores are pure I/O: status rules
// live on the model and are enforced inside Execute callbacks.
package store

import (
	"sahara/internal/beneficiary/models"
)

// Filter narrows ListByDisaster. A zero Status matches every status.
type Filter struct {
	Status models.Status
	Limit  int
}

// DefaultListLimit bounds list queries without an explicit limit.
const DefaultListLimit = 500

func (f Filter) limit() int {
	if f.Limit <= 0 || f.Limit > DefaultListLimit {
		return DefaultListLimit
	}
	return f.Limit
}

// ValidateFunc inspects the locked record and returns an error to abort.
type ValidateFunc func(*models.Beneficiary) error

// MutateFunc changes the locked record. An error aborts without saving.
type MutateFunc func(*models.Beneficiary) error

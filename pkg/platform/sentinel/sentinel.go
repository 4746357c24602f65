package sentinel

import "errors"

// Sentinel errors for infrastructure facts. Stores return these (optionally wrapped)
// and services translate them into coded domain errors:
//   - ErrNotFound: record does not exist
//   - ErrAlreadyUsed: a unique key (beneficiary per disaster, registration per pool) is taken
//   - ErrConflict: concurrent modification detected
//   - ErrInvalidState: record is in the wrong state for a store-level guard
//   - ErrUnavailable: backing service temporarily unavailable
//
// For validation failures use pkg/domain-errors directly.
var (
	ErrNotFound     = errors.New("not found")
	ErrConflict     = errors.New("conflict")
	ErrAlreadyUsed  = errors.New("already used")
	ErrInvalidState = errors.New("invalid state")
	ErrUnavailable  = errors.New("unavailable")
)

// Package domain holds the typed identifiers shared across modules.
//
// Each identifier is a distinct named type over uuid.UUID so the compiler rejects
// passing a PoolID where a BeneficiaryID is expected. Parse* functions are the trust
// boundary: they reject empty, malformed and nil UUIDs with CodeInvalidInput.
package domain

import (
	"github.com/google/uuid"

	dErrors "sahara/pkg/domain-errors"
)

type (
	// ActorID identifies any authenticated party: field agent, admin, pool authority or beneficiary.
	ActorID uuid.UUID
	// BeneficiaryID identifies one beneficiary record (one per authority and disaster).
	BeneficiaryID uuid.UUID
	// PoolID identifies a fund pool.
	PoolID uuid.UUID
	// DistributionID identifies the allocation made to one beneficiary from one pool.
	DistributionID uuid.UUID
)

// DisasterID is the human-assigned disaster event code (e.g. "nepal-eq-2025").
type DisasterID string

// MaxDisasterIDLen bounds disaster codes.
const MaxDisasterIDLen = 50

func parseUUID(s, label string) (uuid.UUID, error) {
	if s == "" {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, label+" is required")
	}
	if len(s) > 64 {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, "invalid "+label)
	}
	u, err := uuid.Parse(s)
	if err != nil {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, "invalid "+label)
	}
	if u == uuid.Nil {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, label+" cannot be nil")
	}
	return u, nil
}

func ParseActorID(s string) (ActorID, error) {
	u, err := parseUUID(s, "actor id")
	return ActorID(u), err
}

func ParseBeneficiaryID(s string) (BeneficiaryID, error) {
	u, err := parseUUID(s, "beneficiary id")
	return BeneficiaryID(u), err
}

func ParsePoolID(s string) (PoolID, error) {
	u, err := parseUUID(s, "pool id")
	return PoolID(u), err
}

func ParseDistributionID(s string) (DistributionID, error) {
	u, err := parseUUID(s, "distribution id")
	return DistributionID(u), err
}

// ParseDisasterID accepts 1..50 characters of [A-Za-z0-9._-].
func ParseDisasterID(s string) (DisasterID, error) {
	if s == "" {
		return "", dErrors.New(dErrors.CodeInvalidInput, "disaster id is required")
	}
	if len(s) > MaxDisasterIDLen {
		return "", dErrors.New(dErrors.CodeStringTooLong, "disaster id must be 50 characters or less")
	}
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c >= '0' && c <= '9':
		case c == '-', c == '_', c == '.':
		default:
			return "", dErrors.New(dErrors.CodeInvalidInput, "invalid disaster id")
		}
	}
	return DisasterID(s), nil
}

func (id ActorID) String() string        { return uuid.UUID(id).String() }
func (id BeneficiaryID) String() string  { return uuid.UUID(id).String() }
func (id PoolID) String() string         { return uuid.UUID(id).String() }
func (id DistributionID) String() string { return uuid.UUID(id).String() }
func (id DisasterID) String() string     { return string(id) }

func (id ActorID) IsNil() bool        { return uuid.UUID(id) == uuid.Nil }
func (id BeneficiaryID) IsNil() bool  { return uuid.UUID(id) == uuid.Nil }
func (id PoolID) IsNil() bool         { return uuid.UUID(id) == uuid.Nil }
func (id DistributionID) IsNil() bool { return uuid.UUID(id) == uuid.Nil }

func (id ActorID) MarshalText() ([]byte, error)        { return uuid.UUID(id).MarshalText() }
func (id BeneficiaryID) MarshalText() ([]byte, error)  { return uuid.UUID(id).MarshalText() }
func (id PoolID) MarshalText() ([]byte, error)         { return uuid.UUID(id).MarshalText() }
func (id DistributionID) MarshalText() ([]byte, error) { return uuid.UUID(id).MarshalText() }

func (id *ActorID) UnmarshalText(b []byte) error {
	u, err := uuid.ParseBytes(b)
	*id = ActorID(u)
	return err
}

func (id *BeneficiaryID) UnmarshalText(b []byte) error {
	u, err := uuid.ParseBytes(b)
	*id = BeneficiaryID(u)
	return err
}

func (id *PoolID) UnmarshalText(b []byte) error {
	u, err := uuid.ParseBytes(b)
	*id = PoolID(u)
	return err
}

func (id *DistributionID) UnmarshalText(b []byte) error {
	u, err := uuid.ParseBytes(b)
	*id = DistributionID(u)
	return err
}

// Package aggregate keeps the disaster-wide and platform-wide counters. Services
// describe their effect as a Delta and apply it inside their own transaction;
// counters saturate at the uint64 ceiling instead of failing the operation.
package aggregate

import (
	"context"
	"time"

	id "sahara/pkg/domain"
	"sahara/pkg/platform/checked"
)

// PlatformScope is the scope key of the platform-wide counters.
const PlatformScope = "platform"

// DisasterScope returns the scope key of one disaster's counters.
func DisasterScope(disaster id.DisasterID) string {
	return "disaster:" + string(disaster)
}

// Delta is the set of increments an operation contributes.
type Delta struct {
	Beneficiaries         uint64
	VerifiedBeneficiaries uint64
	Pools                 uint64
	Donations             uint64
	FeesCollected         uint64
	AidDistributed        uint64
	AidReclaimed          uint64
}

func (d Delta) IsZero() bool {
	return d == Delta{}
}

// Stats is the counter row for one scope.
type Stats struct {
	Scope                 string    `json:"scope"`
	Beneficiaries         uint64    `json:"beneficiaries"`
	VerifiedBeneficiaries uint64    `json:"verified_beneficiaries"`
	Pools                 uint64    `json:"pools"`
	Donations             uint64    `json:"donations"`
	FeesCollected         uint64    `json:"fees_collected"`
	AidDistributed        uint64    `json:"aid_distributed"`
	AidReclaimed          uint64    `json:"aid_reclaimed"`
	UpdatedAt             time.Time `json:"updated_at"`
}

// Apply adds d with saturation and returns the increments that actually landed.
func (s *Stats) Apply(d Delta, now time.Time) Delta {
	var applied Delta
	add := func(field *uint64, inc uint64) uint64 {
		before := *field
		*field = checked.SaturatingAdd(before, inc)
		return *field - before
	}
	applied.Beneficiaries = add(&s.Beneficiaries, d.Beneficiaries)
	applied.VerifiedBeneficiaries = add(&s.VerifiedBeneficiaries, d.VerifiedBeneficiaries)
	applied.Pools = add(&s.Pools, d.Pools)
	applied.Donations = add(&s.Donations, d.Donations)
	applied.FeesCollected = add(&s.FeesCollected, d.FeesCollected)
	applied.AidDistributed = add(&s.AidDistributed, d.AidDistributed)
	applied.AidReclaimed = add(&s.AidReclaimed, d.AidReclaimed)
	s.UpdatedAt = now
	return applied
}

// revert subtracts increments previously returned by Apply.
func (s *Stats) revert(applied Delta) {
	s.Beneficiaries -= applied.Beneficiaries
	s.VerifiedBeneficiaries -= applied.VerifiedBeneficiaries
	s.Pools -= applied.Pools
	s.Donations -= applied.Donations
	s.FeesCollected -= applied.FeesCollected
	s.AidDistributed -= applied.AidDistributed
	s.AidReclaimed -= applied.AidReclaimed
}

// Store applies deltas to a disaster scope and the platform scope together.
type Store interface {
	Apply(ctx context.Context, disaster id.DisasterID, d Delta) error
	Disaster(ctx context.Context, disaster id.DisasterID) (*Stats, error)
	Platform(ctx context.Context) (*Stats, error)
}

// Package models defines a beneficiary's allocation from a pool and the rules
// for claiming its tranches and reclaiming it once abandoned.
package models

import (
	"time"

	id "sahara/pkg/domain"
	dErrors "sahara/pkg/domain-errors"
	"sahara/pkg/platform/checked"
)

// MaxNotesLen bounds the authority's note on a distribution.
const MaxNotesLen = 200

// Distribution is one beneficiary's share of one pool.
//
// Invariants:
//   - Immediate + Locked == Allocated
//   - Claimed <= Allocated and only grows
//   - FullyClaimed iff Claimed == Allocated or Expired
//   - Expired is terminal
type Distribution struct {
	ID            id.DistributionID `json:"id"`
	PoolID        id.PoolID         `json:"pool_id"`
	BeneficiaryID id.BeneficiaryID  `json:"beneficiary_id"`

	Allocated uint64 `json:"allocated"`
	Immediate uint64 `json:"immediate"`
	Locked    uint64 `json:"locked"`
	Claimed   uint64 `json:"claimed"`
	Weight    uint64 `json:"weight"`

	UnlockAt           *time.Time `json:"unlock_at,omitempty"`
	ClaimDeadline      *time.Time `json:"claim_deadline,omitempty"`
	CreatedAt          time.Time  `json:"created_at"`
	ImmediateClaimedAt *time.Time `json:"immediate_claimed_at,omitempty"`
	LockedClaimedAt    *time.Time `json:"locked_claimed_at,omitempty"`
	ExpiredAt          *time.Time `json:"expired_at,omitempty"`

	FullyClaimed bool   `json:"fully_claimed"`
	Expired      bool   `json:"expired"`
	Notes        string `json:"notes,omitempty"`
}

// NewParams are the outputs of the allocation step.
type NewParams struct {
	ID            id.DistributionID
	PoolID        id.PoolID
	BeneficiaryID id.BeneficiaryID
	Immediate     uint64
	Locked        uint64
	Weight        uint64
	TimeLock      time.Duration
	ClaimWindow   time.Duration
	Notes         string
}

// New builds a distribution. The locked tranche gets an unlock time only when
// it is non-empty and the pool has a time lock.
func New(p NewParams, now time.Time) (*Distribution, error) {
	if p.ID.IsNil() || p.PoolID.IsNil() || p.BeneficiaryID.IsNil() {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "distribution, pool and beneficiary ids are required")
	}
	if len(p.Notes) > MaxNotesLen {
		return nil, dErrors.New(dErrors.CodeStringTooLong, "notes must be 200 characters or less")
	}
	allocated, err := checked.Add(p.Immediate, p.Locked)
	if err != nil {
		return nil, err
	}

	d := &Distribution{
		ID:            p.ID,
		PoolID:        p.PoolID,
		BeneficiaryID: p.BeneficiaryID,
		Allocated:     allocated,
		Immediate:     p.Immediate,
		Locked:        p.Locked,
		Weight:        p.Weight,
		CreatedAt:     now,
		FullyClaimed:  allocated == 0,
		Notes:         p.Notes,
	}
	if p.Locked > 0 && p.TimeLock > 0 {
		unlock := now.Add(p.TimeLock)
		d.UnlockAt = &unlock
	}
	if p.ClaimWindow > 0 {
		deadline := now.Add(p.ClaimWindow)
		d.ClaimDeadline = &deadline
	}
	return d, nil
}

// Tranche is a bit set naming which parts of an allocation a claim pays.
type Tranche uint8

const (
	TrancheImmediate Tranche = 1 << iota
	TrancheLocked
)

// ClaimLeg is one tranche of a claim. Each leg moves on the ledger on its own.
type ClaimLeg struct {
	Tranche Tranche
	Amount  uint64
}

// ClaimPlan is what a claim at a given instant would pay.
type ClaimPlan struct {
	Amount   uint64
	Tranches Tranche
	Legs     []ClaimLeg
}

// Reference is the ledger idempotency key of one tranche of a distribution.
// It does not depend on what else a claim pays, so a tranche maps to the same
// transfer however many attempts it takes.
func (t Tranche) Reference(distributionID id.DistributionID) string {
	return "claim:" + distributionID.String() + ":" + t.String()
}

func (d *Distribution) immediateOpen() bool {
	return d.ImmediateClaimedAt == nil && d.Immediate > 0
}

func (d *Distribution) lockedOpen() bool {
	return d.LockedClaimedAt == nil && d.Locked > 0
}

func (d *Distribution) unlocked(now time.Time) bool {
	return d.UnlockAt == nil || !now.Before(*d.UnlockAt)
}

// PlanClaim works out the payable amount. A still-locked tranche does not block
// the immediate one; it only fails the claim when nothing else is payable.
func (d *Distribution) PlanClaim(now time.Time) (ClaimPlan, error) {
	if d.Expired {
		return ClaimPlan{}, dErrors.New(dErrors.CodeDistributionAlreadyClaimed, "distribution was reclaimed")
	}
	if d.FullyClaimed {
		return ClaimPlan{}, dErrors.New(dErrors.CodeDistributionAlreadyClaimed, "distribution is fully claimed")
	}

	var plan ClaimPlan
	if d.immediateOpen() {
		plan.Amount = d.Immediate
		plan.Tranches |= TrancheImmediate
		plan.Legs = append(plan.Legs, ClaimLeg{Tranche: TrancheImmediate, Amount: d.Immediate})
	}
	if d.lockedOpen() && d.unlocked(now) {
		amount, err := checked.Add(plan.Amount, d.Locked)
		if err != nil {
			return ClaimPlan{}, err
		}
		plan.Amount = amount
		plan.Tranches |= TrancheLocked
		plan.Legs = append(plan.Legs, ClaimLeg{Tranche: TrancheLocked, Amount: d.Locked})
	}

	if plan.Amount == 0 {
		if d.lockedOpen() {
			return ClaimPlan{}, dErrors.New(dErrors.CodeTimeLockNotExpired, "locked tranche is not yet unlocked")
		}
		return ClaimPlan{}, dErrors.New(dErrors.CodeDistributionAlreadyClaimed, "nothing left to claim")
	}
	return plan, nil
}

// ApplyClaim books a plan produced by PlanClaim at the same instant.
func (d *Distribution) ApplyClaim(plan ClaimPlan, now time.Time) error {
	claimed, err := checked.Add(d.Claimed, plan.Amount)
	if err != nil {
		return err
	}
	if claimed > d.Allocated {
		return dErrors.New(dErrors.CodeInvariantViolation, "claimed would exceed allocated")
	}
	d.Claimed = claimed
	if plan.Tranches&TrancheImmediate != 0 {
		d.ImmediateClaimedAt = &now
	}
	if plan.Tranches&TrancheLocked != 0 {
		d.LockedClaimedAt = &now
	}
	if d.Claimed >= d.Allocated {
		d.FullyClaimed = true
	}
	return nil
}

// CanReclaim allows the authority to take back an untouched allocation once
// its claim deadline has passed.
func (d *Distribution) CanReclaim(now time.Time) error {
	if d.Expired {
		return dErrors.New(dErrors.CodeDistributionAlreadyExpired, "distribution was already reclaimed")
	}
	if d.Claimed > 0 {
		return dErrors.New(dErrors.CodeDistributionPartiallyClaimed, "distribution has been partially claimed")
	}
	if d.ClaimDeadline == nil || !now.After(*d.ClaimDeadline) {
		return dErrors.New(dErrors.CodeDistributionNotExpired, "claim deadline has not passed")
	}
	return nil
}

func (d *Distribution) ApplyReclaim(now time.Time) {
	d.Expired = true
	d.FullyClaimed = true
	d.ExpiredAt = &now
}

// IsReclaimable reports whether CanReclaim would pass at now.
func (d *Distribution) IsReclaimable(now time.Time) bool {
	return d.CanReclaim(now) == nil
}

// Clone returns a deep copy.
func (d *Distribution) Clone() *Distribution {
	cp := *d
	cp.UnlockAt = clonePtr(d.UnlockAt)
	cp.ClaimDeadline = clonePtr(d.ClaimDeadline)
	cp.ImmediateClaimedAt = clonePtr(d.ImmediateClaimedAt)
	cp.LockedClaimedAt = clonePtr(d.LockedClaimedAt)
	cp.ExpiredAt = clonePtr(d.ExpiredAt)
	return &cp
}

func clonePtr[T any](v *T) *T {
	if v == nil {
		return nil
	}
	cp := *v
	return &cp
}

// String names the tranches for logs and metric labels.
func (t Tranche) String() string {
	switch t {
	case TrancheImmediate:
		return "immediate"
	case TrancheLocked:
		return "locked"
	case TrancheImmediate | TrancheLocked:
		return "both"
	default:
		return "none"
	}
}

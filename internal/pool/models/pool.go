package models

import (
	"math"
	"time"

	id "sahara/pkg/domain"
	dErrors "sahara/pkg/domain-errors"
	"sahara/pkg/platform/checked"
)

const (
	MaxNameLen        = 100
	MaxEligibilityLen = 500
	MaxDescriptionLen = 500

	minFamilySize     = 1
	maxFamilySize     = 50
	minDamageSeverity = 1
	maxDamageSeverity = 10
)

// MaxTimeLockSeconds is the longest time lock a time.Duration can hold in
// whole seconds.
const MaxTimeLockSeconds = math.MaxInt64 / int64(time.Second)

// MaxTimeLock is MaxTimeLockSeconds as a duration.
const MaxTimeLock = time.Duration(MaxTimeLockSeconds) * time.Second

// LockKey is the transaction shard key shared by every operation that touches a
// pool, its registrations or its distributions.
func LockKey(poolID id.PoolID) string {
	return "pool:" + poolID.String()
}

// CustodialAccountFor names the ledger account holding a pool's funds.
func CustodialAccountFor(poolID id.PoolID) string {
	return "pool:" + poolID.String()
}

// Pool holds donated funds for one disaster and tracks how they are shared out.
//
// Invariants:
//   - ImmediatePercent + LockedPercent == 100
//   - TotalClaimed <= TotalDistributed <= TotalDeposited
//   - TotalAllocationWeight and RegisteredCount only change while Open
type Pool struct {
	ID               id.PoolID     `json:"id"`
	DisasterID       id.DisasterID `json:"disaster_id"`
	Name             string        `json:"name"`
	Authority        id.ActorID    `json:"authority"`
	TokenMint        string        `json:"token_mint"`
	CustodialAccount string        `json:"custodial_account"`

	Policy              Policy        `json:"distribution_type"`
	ImmediatePercent    uint8         `json:"immediate_percent"`
	LockedPercent       uint8         `json:"locked_percent"`
	TimeLock            time.Duration `json:"time_lock"`
	MinFamilySize       *uint8        `json:"min_family_size,omitempty"`
	MinDamageSeverity   *uint8        `json:"min_damage_severity,omitempty"`
	EligibilityCriteria string        `json:"eligibility_criteria,omitempty"`
	Description         string        `json:"description,omitempty"`
	TargetAmount        *uint64       `json:"target_amount,omitempty"`

	TotalDeposited        uint64 `json:"total_deposited"`
	TotalDistributed      uint64 `json:"total_distributed"`
	TotalClaimed          uint64 `json:"total_claimed"`
	TotalAllocationWeight uint64 `json:"total_allocation_weight"`
	FeesCollected         uint64 `json:"fees_collected"`
	RegisteredCount       uint32 `json:"registered_count"`
	DistributedCount      uint32 `json:"distributed_count"`
	DonorCount            uint32 `json:"donor_count"`

	Phase         Phase      `json:"phase"`
	CreatedAt     time.Time  `json:"created_at"`
	LockedAt      *time.Time `json:"locked_at,omitempty"`
	DistributedAt *time.Time `json:"distributed_at,omitempty"`
	ClosedAt      *time.Time `json:"closed_at,omitempty"`
	UpdatedAt     time.Time  `json:"updated_at"`
}

// NewPoolParams are the creation inputs; accounting fields start at zero.
type NewPoolParams struct {
	ID                  id.PoolID
	DisasterID          id.DisasterID
	Name                string
	Authority           id.ActorID
	TokenMint           string
	CustodialAccount    string
	Policy              Policy
	ImmediatePercent    uint8
	LockedPercent       uint8
	TimeLock            time.Duration
	MinFamilySize       *uint8
	MinDamageSeverity   *uint8
	EligibilityCriteria string
	Description         string
	TargetAmount        *uint64
}

// NewPool validates the parameters and returns an Open pool.
func NewPool(p NewPoolParams, now time.Time) (*Pool, error) {
	if p.ID.IsNil() || p.Authority.IsNil() {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "pool and authority ids are required")
	}
	if p.DisasterID == "" || len(p.DisasterID) > id.MaxDisasterIDLen {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "disaster id must be 1-50 characters")
	}
	if p.CustodialAccount == "" || p.TokenMint == "" {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "custodial account and token are required")
	}
	if p.Name == "" {
		return nil, dErrors.New(dErrors.CodeValidation, "name is required")
	}
	if len(p.Name) > MaxNameLen {
		return nil, dErrors.New(dErrors.CodeStringTooLong, "name must be 100 characters or less")
	}
	if len(p.EligibilityCriteria) > MaxEligibilityLen {
		return nil, dErrors.New(dErrors.CodeStringTooLong, "eligibility criteria must be 500 characters or less")
	}
	if len(p.Description) > MaxDescriptionLen {
		return nil, dErrors.New(dErrors.CodeStringTooLong, "description must be 500 characters or less")
	}
	if int(p.ImmediatePercent)+int(p.LockedPercent) != 100 {
		return nil, dErrors.New(dErrors.CodeInvalidDistributionPercents, "immediate and locked percentages must sum to 100")
	}
	if _, err := p.Policy.Weight(1, 1); err != nil {
		return nil, err
	}
	if p.TimeLock < 0 {
		return nil, dErrors.New(dErrors.CodeValidation, "time lock cannot be negative")
	}
	if p.TimeLock > MaxTimeLock {
		return nil, dErrors.New(dErrors.CodeArithmeticOverflow, "time lock is too long")
	}
	if p.MinFamilySize != nil && (*p.MinFamilySize < minFamilySize || *p.MinFamilySize > maxFamilySize) {
		return nil, dErrors.New(dErrors.CodeInvalidFamilySize, "minimum family size must be between 1 and 50")
	}
	if p.MinDamageSeverity != nil && (*p.MinDamageSeverity < minDamageSeverity || *p.MinDamageSeverity > maxDamageSeverity) {
		return nil, dErrors.New(dErrors.CodeInvalidDamageSeverity, "minimum damage severity must be between 1 and 10")
	}

	return &Pool{
		ID:                  p.ID,
		DisasterID:          p.DisasterID,
		Name:                p.Name,
		Authority:           p.Authority,
		TokenMint:           p.TokenMint,
		CustodialAccount:    p.CustodialAccount,
		Policy:              p.Policy,
		ImmediatePercent:    p.ImmediatePercent,
		LockedPercent:       p.LockedPercent,
		TimeLock:            p.TimeLock,
		MinFamilySize:       p.MinFamilySize,
		MinDamageSeverity:   p.MinDamageSeverity,
		EligibilityCriteria: p.EligibilityCriteria,
		Description:         p.Description,
		TargetAmount:        p.TargetAmount,
		Phase:               PhaseOpen,
		CreatedAt:           now,
		UpdatedAt:           now,
	}, nil
}

// RequireAuthority rejects callers other than the pool authority.
func (p *Pool) RequireAuthority(caller id.ActorID) error {
	if caller != p.Authority {
		return dErrors.New(dErrors.CodeUnauthorizedPoolAuthority, "caller is not the pool authority")
	}
	return nil
}

// CheckEligibility applies the pool minimums to a beneficiary profile.
func (p *Pool) CheckEligibility(familySize, damageSeverity uint8) error {
	if p.MinFamilySize != nil && familySize < *p.MinFamilySize {
		return dErrors.New(dErrors.CodeIneligibleBeneficiary, "family size is below the pool minimum")
	}
	if p.MinDamageSeverity != nil && damageSeverity < *p.MinDamageSeverity {
		return dErrors.New(dErrors.CodeIneligibleBeneficiary, "damage severity is below the pool minimum")
	}
	return nil
}

// CanDeposit allows deposits until distribution starts.
func (p *Pool) CanDeposit() error {
	if p.Phase == PhaseClosed {
		return dErrors.New(dErrors.CodePoolClosed, "pool is closed")
	}
	if !p.Phase.AcceptsDeposits() {
		return dErrors.New(dErrors.CodeDepositsClosed, "pool no longer accepts deposits")
	}
	return nil
}

// ApplyDeposit books the net amount and the fee taken from a donation.
func (p *Pool) ApplyDeposit(net, fee uint64, now time.Time) error {
	deposited, err := checked.Add(p.TotalDeposited, net)
	if err != nil {
		return err
	}
	fees, err := checked.Add(p.FeesCollected, fee)
	if err != nil {
		return err
	}
	donors, err := checked.AddU32(p.DonorCount, 1)
	if err != nil {
		return err
	}
	p.TotalDeposited = deposited
	p.FeesCollected = fees
	p.DonorCount = donors
	p.UpdatedAt = now
	return nil
}

func (p *Pool) registrationGuard() error {
	switch p.Phase {
	case PhaseOpen:
		return nil
	case PhaseClosed:
		return dErrors.New(dErrors.CodePoolClosed, "pool is closed")
	default:
		return dErrors.New(dErrors.CodeRegistrationPhaseLocked, "pool registration is locked")
	}
}

// CanRegister checks the phase. Beneficiary checks happen in the service.
func (p *Pool) CanRegister() error {
	return p.registrationGuard()
}

// ApplyRegistration adds a frozen weight to the pool totals.
func (p *Pool) ApplyRegistration(weight uint64, now time.Time) error {
	total, err := checked.Add(p.TotalAllocationWeight, weight)
	if err != nil {
		return err
	}
	count, err := checked.AddU32(p.RegisteredCount, 1)
	if err != nil {
		return err
	}
	p.TotalAllocationWeight = total
	p.RegisteredCount = count
	p.UpdatedAt = now
	return nil
}

func (p *Pool) CanLock() error {
	if err := p.registrationGuard(); err != nil {
		return err
	}
	if p.RegisteredCount == 0 {
		return dErrors.New(dErrors.CodeNoBeneficiaries, "pool has no registered beneficiaries")
	}
	return nil
}

func (p *Pool) ApplyLock(now time.Time) {
	p.Phase = PhaseLocked
	p.LockedAt = &now
	p.UpdatedAt = now
}

// CanDistribute checks the phase and that some registration is still unpaid.
func (p *Pool) CanDistribute() error {
	switch p.Phase {
	case PhaseOpen:
		return dErrors.New(dErrors.CodePoolRegistrationNotLocked, "pool registration must be locked before distribution")
	case PhaseClosed:
		return dErrors.New(dErrors.CodePoolClosed, "pool is closed")
	}
	if p.DistributedAt != nil || p.DistributedCount >= p.RegisteredCount {
		return dErrors.New(dErrors.CodeDistributionAlreadyCompleted, "every registration has been distributed")
	}
	return nil
}

// Allocation is one beneficiary's share, split into tranches.
type Allocation struct {
	Share     uint64
	Immediate uint64
	Locked    uint64
}

// Allocate computes floor(TotalDeposited * weight / TotalAllocationWeight) with a
// 128-bit intermediate. A pool with no recorded weight splits equally across its
// registrations instead. The share must fit in what is left undistributed.
func (p *Pool) Allocate(weight uint64) (Allocation, error) {
	var (
		share uint64
		err   error
	)
	if p.TotalAllocationWeight == 0 {
		share, err = checked.Div(p.TotalDeposited, uint64(max(p.RegisteredCount, 1)))
	} else {
		share, err = checked.MulDiv(p.TotalDeposited, weight, p.TotalAllocationWeight)
	}
	if err != nil {
		return Allocation{}, err
	}

	next, err := checked.Add(p.TotalDistributed, share)
	if err != nil || next > p.TotalDeposited {
		return Allocation{}, dErrors.New(dErrors.CodeInsufficientPoolFunds, "share exceeds undistributed pool funds")
	}

	immediate, err := checked.Percent(share, p.ImmediatePercent)
	if err != nil {
		return Allocation{}, err
	}
	locked, err := checked.Sub(share, immediate)
	if err != nil {
		return Allocation{}, err
	}
	return Allocation{Share: share, Immediate: immediate, Locked: locked}, nil
}

// ApplyDistribution books a share. The first one moves Locked to Distributing;
// the last one stamps DistributedAt.
func (p *Pool) ApplyDistribution(share uint64, now time.Time) error {
	distributed, err := checked.Add(p.TotalDistributed, share)
	if err != nil {
		return err
	}
	count, err := checked.AddU32(p.DistributedCount, 1)
	if err != nil {
		return err
	}
	p.TotalDistributed = distributed
	p.DistributedCount = count
	if p.Phase == PhaseLocked {
		p.Phase = PhaseDistributing
	}
	if p.DistributedCount == p.RegisteredCount {
		p.DistributedAt = &now
	}
	p.UpdatedAt = now
	return nil
}

// ApplyClaim books value paid out of the pool.
func (p *Pool) ApplyClaim(amount uint64, now time.Time) error {
	claimed, err := checked.Add(p.TotalClaimed, amount)
	if err != nil {
		return err
	}
	if claimed > p.TotalDistributed {
		return dErrors.New(dErrors.CodeInvariantViolation, "claimed total would exceed distributed total")
	}
	p.TotalClaimed = claimed
	p.UpdatedAt = now
	return nil
}

// ApplyReclaim returns an abandoned allocation to the undistributed balance.
func (p *Pool) ApplyReclaim(allocated uint64, now time.Time) error {
	distributed, err := checked.Sub(p.TotalDistributed, allocated)
	if err != nil {
		return err
	}
	if distributed < p.TotalClaimed {
		return dErrors.New(dErrors.CodeArithmeticUnderflow, "reclaim would leave less distributed than claimed")
	}
	p.TotalDistributed = distributed
	p.UpdatedAt = now
	return nil
}

// ConfigPatch carries the descriptive fields an authority may change. Nil
// fields are left as they are.
type ConfigPatch struct {
	EligibilityCriteria *string
	Description         *string
	TargetAmount        *uint64
}

func (c ConfigPatch) IsEmpty() bool {
	return c.EligibilityCriteria == nil && c.Description == nil && c.TargetAmount == nil
}

// CanUpdateConfig rejects edits once the pool is closed or fully distributed.
func (p *Pool) CanUpdateConfig(patch ConfigPatch) error {
	if p.Phase == PhaseClosed {
		return dErrors.New(dErrors.CodePoolClosed, "pool is closed")
	}
	if p.DistributedAt != nil {
		return dErrors.New(dErrors.CodeDistributionAlreadyCompleted, "pool is fully distributed")
	}
	if patch.EligibilityCriteria != nil && len(*patch.EligibilityCriteria) > MaxEligibilityLen {
		return dErrors.New(dErrors.CodeStringTooLong, "eligibility criteria must be 500 characters or less")
	}
	if patch.Description != nil && len(*patch.Description) > MaxDescriptionLen {
		return dErrors.New(dErrors.CodeStringTooLong, "description must be 500 characters or less")
	}
	return nil
}

func (p *Pool) ApplyConfig(patch ConfigPatch, now time.Time) {
	if patch.EligibilityCriteria != nil {
		p.EligibilityCriteria = *patch.EligibilityCriteria
	}
	if patch.Description != nil {
		p.Description = *patch.Description
	}
	if patch.TargetAmount != nil {
		p.TargetAmount = clonePtr(patch.TargetAmount)
	}
	p.UpdatedAt = now
}

func (p *Pool) CanClose() error {
	if !p.Phase.CanTransitionTo(PhaseClosed) {
		return dErrors.New(dErrors.CodePoolClosed, "pool is already closed")
	}
	return nil
}

func (p *Pool) ApplyClose(now time.Time) {
	p.Phase = PhaseClosed
	p.ClosedAt = &now
	p.UpdatedAt = now
}

// Clone returns a deep copy.
func (p *Pool) Clone() *Pool {
	cp := *p
	cp.MinFamilySize = clonePtr(p.MinFamilySize)
	cp.MinDamageSeverity = clonePtr(p.MinDamageSeverity)
	cp.TargetAmount = clonePtr(p.TargetAmount)
	cp.LockedAt = clonePtr(p.LockedAt)
	cp.DistributedAt = clonePtr(p.DistributedAt)
	cp.ClosedAt = clonePtr(p.ClosedAt)
	return &cp
}

func clonePtr[T any](v *T) *T {
	if v == nil {
		return nil
	}
	cp := *v
	return &cp
}

package models

import (
	"time"

	id "sahara/pkg/domain"
	dErrors "sahara/pkg/domain-errors"
	"sahara/pkg/platform/checked"
)

// Status is the verification state of a beneficiary.
type Status string

const (
	StatusPending  Status = "pending"
	StatusVerified Status = "verified"
	StatusRejected Status = "rejected"
	StatusFlagged  Status = "flagged"
)

func (s Status) IsValid() bool {
	switch s {
	case StatusPending, StatusVerified, StatusRejected, StatusFlagged:
		return true
	}
	return false
}

// CanTransitionTo encodes the verification state machine:
//
//	pending  -> verified | flagged
//	flagged  -> pending | rejected
//	verified, rejected: terminal
func (s Status) CanTransitionTo(target Status) bool {
	switch s {
	case StatusPending:
		return target == StatusVerified || target == StatusFlagged
	case StatusFlagged:
		return target == StatusPending || target == StatusRejected
	default:
		return false
	}
}

// Beneficiary is one person's aid record for one disaster. The pair
// (Authority, DisasterID) is unique.
//
// Invariants:
//   - Status reaches Verified only when approvals meet the platform threshold
//   - Approvals hold distinct approvers and never exceed their capacity
//   - Verified and Rejected are terminal
//   - TotalReceived only grows
type Beneficiary struct {
	ID         id.BeneficiaryID `json:"id"`
	Authority  id.ActorID       `json:"authority"`
	DisasterID id.DisasterID    `json:"disaster_id"`
	Profile

	Status        Status      `json:"status"`
	Approvals     ApprovalSet `json:"approvals"`
	VerifiedAt    *time.Time  `json:"verified_at,omitempty"`
	FlaggedReason string      `json:"flagged_reason,omitempty"`
	FlaggedBy     *id.ActorID `json:"flagged_by,omitempty"`
	FlaggedAt     *time.Time  `json:"flagged_at,omitempty"`
	AdminNotes    string      `json:"admin_notes,omitempty"`

	TotalReceived uint64     `json:"total_received"`
	RegisteredBy  id.ActorID `json:"registered_by"`
	RegisteredAt  time.Time  `json:"registered_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
}

// NewBeneficiary validates intake data and returns a Pending record.
func NewBeneficiary(
	beneficiaryID id.BeneficiaryID,
	authority id.ActorID,
	disaster id.DisasterID,
	profile Profile,
	approvalCapacity uint8,
	registeredBy id.ActorID,
	now time.Time,
) (*Beneficiary, error) {
	if beneficiaryID.IsNil() || authority.IsNil() || registeredBy.IsNil() {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "beneficiary, authority and registrar ids are required")
	}
	if disaster == "" || len(disaster) > id.MaxDisasterIDLen {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "disaster id must be 1-50 characters")
	}
	if err := profile.Validate(); err != nil {
		return nil, err
	}
	approvals, err := NewApprovalSet(approvalCapacity)
	if err != nil {
		return nil, err
	}
	return &Beneficiary{
		ID:           beneficiaryID,
		Authority:    authority,
		DisasterID:   disaster,
		Profile:      profile,
		Status:       StatusPending,
		Approvals:    approvals,
		RegisteredBy: registeredBy,
		RegisteredAt: now,
		UpdatedAt:    now,
	}, nil
}

func (b *Beneficiary) IsVerified() bool {
	return b.Status == StatusVerified
}

// statusGuard maps a non-pending status to the error verification actions report.
func (b *Beneficiary) statusGuard() error {
	switch b.Status {
	case StatusVerified:
		return dErrors.New(dErrors.CodeAlreadyVerified, "beneficiary is already verified")
	case StatusRejected:
		return dErrors.New(dErrors.CodeCannotVerifyRejected, "beneficiary was rejected")
	case StatusFlagged:
		return dErrors.New(dErrors.CodeBeneficiaryFlagged, "beneficiary is flagged for review")
	}
	return nil
}

// CanApprove checks status, duplicate approver and verifier capacity, in that order.
// maxVerifiers is the current platform limit; the set's own capacity also applies.
func (b *Beneficiary) CanApprove(approver id.ActorID, maxVerifiers uint8) error {
	if err := b.statusGuard(); err != nil {
		return err
	}
	if b.Approvals.Contains(approver) {
		return dErrors.New(dErrors.CodeDuplicateApproval, "approver has already approved")
	}
	if b.Approvals.Len() >= int(maxVerifiers) {
		return dErrors.New(dErrors.CodeMaxVerifiersReached, "maximum verifiers reached")
	}
	return b.Approvals.CanAdd(approver)
}

// ApplyApproval appends the approver and promotes to Verified once the threshold
// is met. It reports whether this approval performed the promotion.
// Call CanApprove first.
func (b *Beneficiary) ApplyApproval(approver id.ActorID, threshold uint8, now time.Time) (bool, error) {
	if err := b.Approvals.Add(approver); err != nil {
		return false, err
	}
	b.UpdatedAt = now
	if b.Approvals.Len() >= int(threshold) {
		b.Status = StatusVerified
		b.VerifiedAt = &now
		return true, nil
	}
	return false, nil
}

func (b *Beneficiary) CanFlag(reason string) error {
	if err := b.statusGuard(); err != nil {
		return err
	}
	if reason == "" {
		return dErrors.New(dErrors.CodeFlagReasonRequired, "flag reason is required")
	}
	if len(reason) > MaxReasonLen {
		return dErrors.New(dErrors.CodeStringTooLong, "flag reason must be 500 characters or less")
	}
	return nil
}

func (b *Beneficiary) ApplyFlag(flagger id.ActorID, reason string, now time.Time) {
	b.Status = StatusFlagged
	b.FlaggedReason = reason
	b.FlaggedBy = &flagger
	b.FlaggedAt = &now
	b.UpdatedAt = now
}

func (b *Beneficiary) CanReview(notes string) error {
	if b.Status != StatusFlagged {
		return dErrors.New(dErrors.CodeInvalidStatusTransition, "only flagged beneficiaries can be reviewed")
	}
	if len(notes) > MaxNotesLen {
		return dErrors.New(dErrors.CodeStringTooLong, "admin notes must be 500 characters or less")
	}
	return nil
}

// ApplyReview resolves a flag. Approving returns the record to Pending with the
// flag and every earlier approval cleared, so verification starts over.
// Rejecting is terminal and keeps the flag for the record.
func (b *Beneficiary) ApplyReview(approve bool, notes string, now time.Time) {
	b.AdminNotes = notes
	b.UpdatedAt = now
	if !approve {
		b.Status = StatusRejected
		return
	}
	b.Status = StatusPending
	b.FlaggedReason = ""
	b.FlaggedBy = nil
	b.FlaggedAt = nil
	b.Approvals.Clear()
}

func (b *Beneficiary) CanUpdateProfile() error {
	switch b.Status {
	case StatusFlagged:
		return dErrors.New(dErrors.CodeBeneficiaryFlagged, "beneficiary is flagged for review")
	case StatusRejected:
		return dErrors.New(dErrors.CodeInvalidStatusTransition, "rejected beneficiaries cannot be updated")
	}
	return nil
}

// ApplyProfile replaces the profile. The caller validates the merged profile first.
func (b *Beneficiary) ApplyProfile(profile Profile, now time.Time) {
	b.Profile = profile
	b.UpdatedAt = now
}

// AddReceived records aid paid out to this beneficiary.
func (b *Beneficiary) AddReceived(amount uint64, now time.Time) error {
	total, err := checked.Add(b.TotalReceived, amount)
	if err != nil {
		return err
	}
	b.TotalReceived = total
	b.UpdatedAt = now
	return nil
}

// Clone returns a deep copy.
func (b *Beneficiary) Clone() *Beneficiary {
	cp := *b
	cp.Approvals = b.Approvals.clone()
	if b.VerifiedAt != nil {
		t := *b.VerifiedAt
		cp.VerifiedAt = &t
	}
	if b.FlaggedAt != nil {
		t := *b.FlaggedAt
		cp.FlaggedAt = &t
	}
	if b.FlaggedBy != nil {
		a := *b.FlaggedBy
		cp.FlaggedBy = &a
	}
	return &cp
}

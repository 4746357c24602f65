package models

import (
	"encoding/json"
	"slices"

	id "sahara/pkg/domain"
	dErrors "sahara/pkg/domain-errors"
)

// MaxApprovalCapacity is the hard ceiling on approvals any beneficiary can hold.
const MaxApprovalCapacity = 5

// ApprovalSet is an ordered set of distinct approvers with a capacity fixed at
// construction. Add checks capacity before appending, so the set never grows
// past it.
type ApprovalSet struct {
	capacity  uint8
	approvers []id.ActorID
}

// NewApprovalSet creates an empty set. Capacity must be 1..MaxApprovalCapacity.
func NewApprovalSet(capacity uint8) (ApprovalSet, error) {
	if capacity == 0 || capacity > MaxApprovalCapacity {
		return ApprovalSet{}, dErrors.New(dErrors.CodeInvariantViolation, "approval capacity must be between 1 and 5")
	}
	return ApprovalSet{capacity: capacity, approvers: make([]id.ActorID, 0, capacity)}, nil
}

// RestoreApprovalSet rebuilds a set loaded from storage, re-checking its invariants.
func RestoreApprovalSet(capacity uint8, approvers []id.ActorID) (ApprovalSet, error) {
	set, err := NewApprovalSet(capacity)
	if err != nil {
		return ApprovalSet{}, err
	}
	for _, a := range approvers {
		if err := set.Add(a); err != nil {
			return ApprovalSet{}, dErrors.Wrap(err, dErrors.CodeInvariantViolation, "stored approvals are invalid")
		}
	}
	return set, nil
}

func (a ApprovalSet) Len() int        { return len(a.approvers) }
func (a ApprovalSet) Capacity() uint8 { return a.capacity }
func (a ApprovalSet) IsFull() bool    { return len(a.approvers) >= int(a.capacity) }
func (a ApprovalSet) Contains(actor id.ActorID) bool {
	return slices.Contains(a.approvers, actor)
}

// Approvers returns a copy in approval order.
func (a ApprovalSet) Approvers() []id.ActorID {
	return slices.Clone(a.approvers)
}

// CanAdd reports why actor cannot be added, checking duplicates before capacity.
func (a ApprovalSet) CanAdd(actor id.ActorID) error {
	if actor.IsNil() {
		return dErrors.New(dErrors.CodeInvalidInput, "approver is required")
	}
	if a.Contains(actor) {
		return dErrors.New(dErrors.CodeDuplicateApproval, "approver has already approved")
	}
	if a.IsFull() {
		return dErrors.New(dErrors.CodeMaxVerifiersReached, "maximum verifiers reached")
	}
	return nil
}

func (a *ApprovalSet) Add(actor id.ActorID) error {
	if err := a.CanAdd(actor); err != nil {
		return err
	}
	a.approvers = append(a.approvers, actor)
	return nil
}

// Clear drops every approval and keeps the capacity.
func (a *ApprovalSet) Clear() {
	a.approvers = make([]id.ActorID, 0, a.capacity)
}

func (a ApprovalSet) clone() ApprovalSet {
	return ApprovalSet{capacity: a.capacity, approvers: slices.Clone(a.approvers)}
}

type approvalSetJSON struct {
	Capacity  uint8        `json:"capacity"`
	Approvers []id.ActorID `json:"approvers"`
}

func (a ApprovalSet) MarshalJSON() ([]byte, error) {
	approvers := a.approvers
	if approvers == nil {
		approvers = []id.ActorID{}
	}
	return json.Marshal(approvalSetJSON{Capacity: a.capacity, Approvers: approvers})
}

func (a *ApprovalSet) UnmarshalJSON(b []byte) error {
	var raw approvalSetJSON
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	set, err := RestoreApprovalSet(raw.Capacity, raw.Approvers)
	if err != nil {
		return err
	}
	*a = set
	return nil
}

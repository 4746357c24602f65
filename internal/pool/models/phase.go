package models

// Phase is the pool lifecycle:
//
//	open -> locked -> distributing -> closed
//
// Any non-closed phase may close. Registration is only accepted while open and
// distribution only once locked.
type Phase string

const (
	PhaseOpen         Phase = "open"
	PhaseLocked       Phase = "locked"
	PhaseDistributing Phase = "distributing"
	PhaseClosed       Phase = "closed"
)

func (p Phase) IsValid() bool {
	switch p {
	case PhaseOpen, PhaseLocked, PhaseDistributing, PhaseClosed:
		return true
	}
	return false
}

// CanTransitionTo reports whether the lifecycle allows moving to target.
// Locked to Locked and Distributing to Distributing are not transitions.
func (p Phase) CanTransitionTo(target Phase) bool {
	switch p {
	case PhaseOpen:
		return target == PhaseLocked || target == PhaseClosed
	case PhaseLocked:
		return target == PhaseDistributing || target == PhaseClosed
	case PhaseDistributing:
		return target == PhaseClosed
	default:
		return false
	}
}

// AcceptsDeposits is true until distribution starts. Shares are computed from
// TotalDeposited, so the balance is frozen once the first one is paid out.
func (p Phase) AcceptsDeposits() bool {
	return p == PhaseOpen || p == PhaseLocked
}

package models

import (
	"time"

	id "sahara/pkg/domain"
)

// Registration enrolls one verified beneficiary in one pool. The weight and the
// profile snapshot are frozen at registration; only Distributed changes later.
type Registration struct {
	PoolID         id.PoolID        `json:"pool_id"`
	BeneficiaryID  id.BeneficiaryID `json:"beneficiary_id"`
	Weight         uint64           `json:"weight"`
	FamilySize     uint8            `json:"family_size"`
	DamageSeverity uint8            `json:"damage_severity"`
	RegisteredAt   time.Time        `json:"registered_at"`
	Distributed    bool             `json:"distributed"`
}

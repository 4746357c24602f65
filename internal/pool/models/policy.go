package models

import (
	dErrors "sahara/pkg/domain-errors"
)

// Policy selects how a pool weighs its registrations.
type Policy string

const (
	PolicyEqual          Policy = "equal"
	PolicyWeightedFamily Policy = "weighted_family"
	PolicyWeightedDamage Policy = "weighted_damage"
	PolicyMilestone      Policy = "milestone"
)

// ParsePolicy validates a policy name.
func ParsePolicy(s string) (Policy, error) {
	p := Policy(s)
	if _, err := p.Weight(1, 1); err != nil {
		return "", err
	}
	return p, nil
}

// Weight returns the allocation weight of a beneficiary under the policy.
// Milestone pools pay equal shares per distribution round.
func (p Policy) Weight(familySize, damageSeverity uint8) (uint64, error) {
	switch p {
	case PolicyEqual:
		return 1, nil
	case PolicyWeightedFamily:
		return uint64(familySize), nil
	case PolicyWeightedDamage:
		return uint64(damageSeverity), nil
	case PolicyMilestone:
		return 1, nil
	default:
		return 0, dErrors.New(dErrors.CodeInvalidDistributionType, "unknown distribution type")
	}
}

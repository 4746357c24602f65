package handler

import (
	"strings"
	"time"

	"sahara/internal/pool/models"
	"sahara/internal/pool/service"
	id "sahara/pkg/domain"
	dErrors "sahara/pkg/domain-errors"
)

// CreatePoolRequest is the body for POST /pools.
type CreatePoolRequest struct {
	DisasterID          string  `json:"disaster_id"`
	Name                string  `json:"name"`
	TokenMint           string  `json:"token_mint"`
	DistributionType    string  `json:"distribution_type"`
	ImmediatePercent    uint8   `json:"immediate_percent"`
	LockedPercent       uint8   `json:"locked_percent"`
	TimeLockSeconds     int64   `json:"time_lock_seconds"`
	MinFamilySize       *uint8  `json:"min_family_size"`
	MinDamageSeverity   *uint8  `json:"min_damage_severity"`
	EligibilityCriteria string  `json:"eligibility_criteria"`
	Description         string  `json:"description"`
	TargetAmount        *uint64 `json:"target_amount,string"`

	parsed service.CreateCommand
}

func (r *CreatePoolRequest) Validate() error {
	if r == nil {
		return dErrors.New(dErrors.CodeBadRequest, "request body is required")
	}
	disaster, err := id.ParseDisasterID(strings.TrimSpace(r.DisasterID))
	if err != nil {
		return err
	}
	policy, err := models.ParsePolicy(strings.TrimSpace(r.DistributionType))
	if err != nil {
		return err
	}
	if r.TimeLockSeconds < 0 {
		return dErrors.New(dErrors.CodeValidation, "time_lock_seconds cannot be negative")
	}
	if r.TimeLockSeconds > models.MaxTimeLockSeconds {
		return dErrors.New(dErrors.CodeArithmeticOverflow, "time_lock_seconds is too large")
	}
	r.parsed = service.CreateCommand{
		DisasterID:          disaster,
		Name:                strings.TrimSpace(r.Name),
		TokenMint:           strings.TrimSpace(r.TokenMint),
		Policy:              policy,
		ImmediatePercent:    r.ImmediatePercent,
		LockedPercent:       r.LockedPercent,
		TimeLock:            time.Duration(r.TimeLockSeconds) * time.Second,
		MinFamilySize:       r.MinFamilySize,
		MinDamageSeverity:   r.MinDamageSeverity,
		EligibilityCriteria: strings.TrimSpace(r.EligibilityCriteria),
		Description:         strings.TrimSpace(r.Description),
		TargetAmount:        r.TargetAmount,
	}
	return nil
}

// UpdatePoolRequest is the body for PATCH /pools/{poolID}.
type UpdatePoolRequest struct {
	EligibilityCriteria *string `json:"eligibility_criteria"`
	Description         *string `json:"description"`
	TargetAmount        *uint64 `json:"target_amount,string"`

	parsedPatch models.ConfigPatch
}

func (r *UpdatePoolRequest) Validate() error {
	if r == nil {
		return dErrors.New(dErrors.CodeBadRequest, "request body is required")
	}
	r.parsedPatch = models.ConfigPatch{
		EligibilityCriteria: trimmed(r.EligibilityCriteria),
		Description:         trimmed(r.Description),
		TargetAmount:        r.TargetAmount,
	}
	if r.parsedPatch.IsEmpty() {
		return dErrors.New(dErrors.CodeValidation, "no fields to update")
	}
	return nil
}

// DepositRequest is the body for POST /pools/{poolID}/deposits. Amount is a
// decimal string in base units.
type DepositRequest struct {
	Amount    uint64 `json:"amount,string"`
	Message   string `json:"message"`
	Anonymous bool   `json:"anonymous"`
}

func (r *DepositRequest) Validate() error {
	if r == nil {
		return dErrors.New(dErrors.CodeBadRequest, "request body is required")
	}
	if r.Amount == 0 {
		return dErrors.New(dErrors.CodeValidation, "amount must be positive")
	}
	if len(r.Message) > service.MaxDepositMessageLen {
		return dErrors.New(dErrors.CodeStringTooLong, "message must be 500 characters or less")
	}
	return nil
}

// RegistrationRequest is the body for POST /pools/{poolID}/registrations.
type RegistrationRequest struct {
	BeneficiaryID string `json:"beneficiary_id"`

	parsedBeneficiary id.BeneficiaryID
}

func (r *RegistrationRequest) Validate() error {
	if r == nil {
		return dErrors.New(dErrors.CodeBadRequest, "request body is required")
	}
	beneficiaryID, err := id.ParseBeneficiaryID(strings.TrimSpace(r.BeneficiaryID))
	if err != nil {
		return err
	}
	r.parsedBeneficiary = beneficiaryID
	return nil
}

func trimmed(s *string) *string {
	if s == nil {
		return nil
	}
	v := strings.TrimSpace(*s)
	return &v
}

package handler

import (
	"strings"

	"sahara/internal/distribution/models"
	id "sahara/pkg/domain"
	dErrors "sahara/pkg/domain-errors"
)

// DistributeRequest is the body for POST /pools/{poolID}/distributions.
type DistributeRequest struct {
	BeneficiaryID string `json:"beneficiary_id"`
	Notes         string `json:"notes"`

	parsedBeneficiary id.BeneficiaryID
}

func (r *DistributeRequest) Validate() error {
	if r == nil {
		return dErrors.New(dErrors.CodeBadRequest, "request body is required")
	}
	beneficiaryID, err := id.ParseBeneficiaryID(strings.TrimSpace(r.BeneficiaryID))
	if err != nil {
		return err
	}
	r.Notes = strings.TrimSpace(r.Notes)
	if len(r.Notes) > models.MaxNotesLen {
		return dErrors.New(dErrors.CodeStringTooLong, "notes must be 200 characters or less")
	}
	r.parsedBeneficiary = beneficiaryID
	return nil
}

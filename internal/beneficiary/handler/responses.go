package handler

import (
	"time"

	"sahara/internal/beneficiary/models"
)

// BeneficiaryResponse is the public view of a beneficiary record.
type BeneficiaryResponse struct {
	ID                string          `json:"id"`
	Authority         string          `json:"authority"`
	DisasterID        string          `json:"disaster_id"`
	Name              string          `json:"name"`
	PhoneNumber       string          `json:"phone_number,omitempty"`
	Location          models.Location `json:"location"`
	FamilySize        uint8           `json:"family_size"`
	DamageSeverity    uint8           `json:"damage_severity"`
	DamageDescription string          `json:"damage_description,omitempty"`
	Status            string          `json:"status"`
	ApprovalCount     int             `json:"approval_count"`
	Approvers         []string        `json:"approvers"`
	VerifiedAt        *time.Time      `json:"verified_at,omitempty"`
	FlaggedReason     string          `json:"flagged_reason,omitempty"`
	FlaggedBy         string          `json:"flagged_by,omitempty"`
	FlaggedAt         *time.Time      `json:"flagged_at,omitempty"`
	AdminNotes        string          `json:"admin_notes,omitempty"`
	TotalReceived     uint64          `json:"total_received,string"`
	RegisteredBy      string          `json:"registered_by"`
	RegisteredAt      time.Time       `json:"registered_at"`
	UpdatedAt         time.Time       `json:"updated_at"`
}

// ApprovalResponse adds whether this approval completed verification.
type ApprovalResponse struct {
	BeneficiaryResponse
	Verified bool `json:"verified"`
}

// ListResponse wraps a page of beneficiaries.
type ListResponse struct {
	Beneficiaries []*BeneficiaryResponse `json:"beneficiaries"`
	Count         int                    `json:"count"`
}

func toResponse(b *models.Beneficiary) *BeneficiaryResponse {
	approvers := b.Approvals.Approvers()
	resp := &BeneficiaryResponse{
		ID:                b.ID.String(),
		Authority:         b.Authority.String(),
		DisasterID:        string(b.DisasterID),
		Name:              b.Name,
		PhoneNumber:       b.PhoneNumber,
		Location:          b.Location,
		FamilySize:        b.FamilySize,
		DamageSeverity:    b.DamageSeverity,
		DamageDescription: b.DamageDescription,
		Status:            string(b.Status),
		ApprovalCount:     len(approvers),
		Approvers:         make([]string, 0, len(approvers)),
		VerifiedAt:        b.VerifiedAt,
		FlaggedReason:     b.FlaggedReason,
		FlaggedAt:         b.FlaggedAt,
		AdminNotes:        b.AdminNotes,
		TotalReceived:     b.TotalReceived,
		RegisteredBy:      b.RegisteredBy.String(),
		RegisteredAt:      b.RegisteredAt,
		UpdatedAt:         b.UpdatedAt,
	}
	for _, a := range approvers {
		resp.Approvers = append(resp.Approvers, a.String())
	}
	if b.FlaggedBy != nil {
		resp.FlaggedBy = b.FlaggedBy.String()
	}
	return resp
}

func toListResponse(list []*models.Beneficiary) *ListResponse {
	out := make([]*BeneficiaryResponse, 0, len(list))
	for _, b := range list {
		out = append(out, toResponse(b))
	}
	return &ListResponse{Beneficiaries: out, Count: len(out)}
}

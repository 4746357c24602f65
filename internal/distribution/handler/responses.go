package handler

import (
	"time"

	"sahara/internal/distribution/models"
	"sahara/internal/distribution/service"
)

// DistributionResponse is the public view of a distribution. Amounts are
// decimal strings.
type DistributionResponse struct {
	ID                 string     `json:"id"`
	PoolID             string     `json:"pool_id"`
	BeneficiaryID      string     `json:"beneficiary_id"`
	Allocated          uint64     `json:"amount_allocated,string"`
	Immediate          uint64     `json:"amount_immediate,string"`
	Locked             uint64     `json:"amount_locked,string"`
	Claimed            uint64     `json:"amount_claimed,string"`
	Weight             uint64     `json:"allocation_weight,string"`
	UnlockAt           *time.Time `json:"unlock_time,omitempty"`
	ClaimDeadline      *time.Time `json:"claim_deadline,omitempty"`
	CreatedAt          time.Time  `json:"created_at"`
	ImmediateClaimedAt *time.Time `json:"claimed_at,omitempty"`
	LockedClaimedAt    *time.Time `json:"locked_claimed_at,omitempty"`
	ExpiredAt          *time.Time `json:"expired_at,omitempty"`
	FullyClaimed       bool       `json:"is_fully_claimed"`
	Expired            bool       `json:"is_expired"`
	Notes              string     `json:"notes,omitempty"`
}

// ClaimResponse reports what a claim paid.
type ClaimResponse struct {
	Amount       uint64                `json:"amount,string"`
	Tranches     string                `json:"tranches"`
	References   []string              `json:"references"`
	To           string                `json:"to"`
	Distribution *DistributionResponse `json:"distribution"`
}

type DistributionListResponse struct {
	Distributions []*DistributionResponse `json:"distributions"`
	Count         int                     `json:"count"`
}

func toDistributionResponse(d *models.Distribution) *DistributionResponse {
	return &DistributionResponse{
		ID:                 d.ID.String(),
		PoolID:             d.PoolID.String(),
		BeneficiaryID:      d.BeneficiaryID.String(),
		Allocated:          d.Allocated,
		Immediate:          d.Immediate,
		Locked:             d.Locked,
		Claimed:            d.Claimed,
		Weight:             d.Weight,
		UnlockAt:           d.UnlockAt,
		ClaimDeadline:      d.ClaimDeadline,
		CreatedAt:          d.CreatedAt,
		ImmediateClaimedAt: d.ImmediateClaimedAt,
		LockedClaimedAt:    d.LockedClaimedAt,
		ExpiredAt:          d.ExpiredAt,
		FullyClaimed:       d.FullyClaimed,
		Expired:            d.Expired,
		Notes:              d.Notes,
	}
}

func toClaimResponse(res *service.ClaimResult) *ClaimResponse {
	out := &ClaimResponse{
		Amount:       res.Amount,
		Tranches:     res.Tranches.String(),
		Distribution: toDistributionResponse(res.Distribution),
	}
	for _, r := range res.Receipts {
		out.References = append(out.References, r.Reference)
		out.To = r.To
	}
	return out
}

func toDistributionListResponse(list []*models.Distribution) *DistributionListResponse {
	out := make([]*DistributionResponse, 0, len(list))
	for _, d := range list {
		out = append(out, toDistributionResponse(d))
	}
	return &DistributionListResponse{Distributions: out, Count: len(out)}
}

package handler

import (
	"time"

	"sahara/internal/pool/models"
	"sahara/internal/pool/service"
)

// PoolResponse is the public view of a pool. Amounts are decimal strings.
type PoolResponse struct {
	ID                    string     `json:"id"`
	DisasterID            string     `json:"disaster_id"`
	Name                  string     `json:"name"`
	Authority             string     `json:"authority"`
	TokenMint             string     `json:"token_mint"`
	DistributionType      string     `json:"distribution_type"`
	ImmediatePercent      uint8      `json:"immediate_percent"`
	LockedPercent         uint8      `json:"locked_percent"`
	TimeLockSeconds       int64      `json:"time_lock_seconds"`
	MinFamilySize         *uint8     `json:"min_family_size,omitempty"`
	MinDamageSeverity     *uint8     `json:"min_damage_severity,omitempty"`
	EligibilityCriteria   string     `json:"eligibility_criteria,omitempty"`
	Description           string     `json:"description,omitempty"`
	TargetAmount          *uint64    `json:"target_amount,string,omitempty"`
	TotalDeposited        uint64     `json:"total_deposited,string"`
	TotalDistributed      uint64     `json:"total_distributed,string"`
	TotalClaimed          uint64     `json:"total_claimed,string"`
	TotalAllocationWeight uint64     `json:"total_allocation_weight,string"`
	RegisteredCount       uint32     `json:"registered_count"`
	BeneficiaryCount      uint32     `json:"beneficiary_count"`
	DonorCount            uint32     `json:"donor_count"`
	Phase                 string     `json:"phase"`
	CreatedAt             time.Time  `json:"created_at"`
	LockedAt              *time.Time `json:"locked_at,omitempty"`
	DistributedAt         *time.Time `json:"distributed_at,omitempty"`
	ClosedAt              *time.Time `json:"closed_at,omitempty"`
}

// DepositResponse reports how a donation was split.
type DepositResponse struct {
	Reference string        `json:"reference"`
	Gross     uint64        `json:"gross,string"`
	Net       uint64        `json:"net,string"`
	Fee       uint64        `json:"fee,string"`
	Pool      *PoolResponse `json:"pool"`
}

// RegistrationResponse is one pool enrollment.
type RegistrationResponse struct {
	PoolID         string    `json:"pool_id"`
	BeneficiaryID  string    `json:"beneficiary_id"`
	Weight         uint64    `json:"weight,string"`
	FamilySize     uint8     `json:"family_size"`
	DamageSeverity uint8     `json:"damage_severity"`
	RegisteredAt   time.Time `json:"registered_at"`
	Distributed    bool      `json:"distributed"`
}

type RegistrationListResponse struct {
	Registrations []*RegistrationResponse `json:"registrations"`
	Count         int                     `json:"count"`
}

type PoolListResponse struct {
	Pools []*PoolResponse `json:"pools"`
	Count int             `json:"count"`
}

func toPoolResponse(p *models.Pool) *PoolResponse {
	return &PoolResponse{
		ID:                    p.ID.String(),
		DisasterID:            string(p.DisasterID),
		Name:                  p.Name,
		Authority:             p.Authority.String(),
		TokenMint:             p.TokenMint,
		DistributionType:      string(p.Policy),
		ImmediatePercent:      p.ImmediatePercent,
		LockedPercent:         p.LockedPercent,
		TimeLockSeconds:       int64(p.TimeLock / time.Second),
		MinFamilySize:         p.MinFamilySize,
		MinDamageSeverity:     p.MinDamageSeverity,
		EligibilityCriteria:   p.EligibilityCriteria,
		Description:           p.Description,
		TargetAmount:          p.TargetAmount,
		TotalDeposited:        p.TotalDeposited,
		TotalDistributed:      p.TotalDistributed,
		TotalClaimed:          p.TotalClaimed,
		TotalAllocationWeight: p.TotalAllocationWeight,
		RegisteredCount:       p.RegisteredCount,
		BeneficiaryCount:      p.DistributedCount,
		DonorCount:            p.DonorCount,
		Phase:                 string(p.Phase),
		CreatedAt:             p.CreatedAt,
		LockedAt:              p.LockedAt,
		DistributedAt:         p.DistributedAt,
		ClosedAt:              p.ClosedAt,
	}
}

func toDepositResponse(res *service.DepositResult) *DepositResponse {
	return &DepositResponse{
		Reference: res.Reference,
		Gross:     res.Gross,
		Net:       res.Net,
		Fee:       res.Fee,
		Pool:      toPoolResponse(res.Pool),
	}
}

func toRegistrationResponse(r *models.Registration) *RegistrationResponse {
	return &RegistrationResponse{
		PoolID:         r.PoolID.String(),
		BeneficiaryID:  r.BeneficiaryID.String(),
		Weight:         r.Weight,
		FamilySize:     r.FamilySize,
		DamageSeverity: r.DamageSeverity,
		RegisteredAt:   r.RegisteredAt,
		Distributed:    r.Distributed,
	}
}

func toRegistrationListResponse(regs []*models.Registration) *RegistrationListResponse {
	out := make([]*RegistrationResponse, 0, len(regs))
	for _, r := range regs {
		out = append(out, toRegistrationResponse(r))
	}
	return &RegistrationListResponse{Registrations: out, Count: len(out)}
}

func toPoolListResponse(pools []*models.Pool) *PoolListResponse {
	out := make([]*PoolResponse, 0, len(pools))
	for _, p := range pools {
		out = append(out, toPoolResponse(p))
	}
	return &PoolListResponse{Pools: out, Count: len(out)}
}

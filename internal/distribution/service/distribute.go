package service

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"

	"sahara/internal/distribution/models"
	poolmodels "sahara/internal/pool/models"
	id "sahara/pkg/domain"
	dErrors "sahara/pkg/domain-errors"
	audit "sahara/pkg/platform/audit"
	"sahara/pkg/platform/sentinel"
	"sahara/pkg/platform/tracing"
	"sahara/pkg/requestcontext"
)

// Distribute allocates a registered beneficiary's share of a locked pool. The
// share is computed from the pool totals frozen at lock and split into an
// immediate and a time-locked tranche.
func (s *Service) Distribute(ctx context.Context, poolID id.PoolID, beneficiaryID id.BeneficiaryID, caller id.ActorID, notes string) (_ *models.Distribution, err error) {
	ctx, span := tracing.Start(ctx, "distribution", "Distribute",
		attribute.String("pool_id", poolID.String()),
		attribute.String("beneficiary_id", beneficiaryID.String()),
	)
	defer func() {
		tracing.End(span, err)
		s.rejected("distribute", err)
	}()

	if len(notes) > models.MaxNotesLen {
		return nil, dErrors.New(dErrors.CodeStringTooLong, "notes must be 200 characters or less")
	}
	current, err := s.settings.Current(ctx)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load platform settings")
	}

	var dist *models.Distribution
	err = s.runLocked(ctx, poolID, func(txCtx context.Context) error {
		pool, err := s.pools.FindByID(txCtx, poolID)
		if err != nil {
			return wrapStoreErr(err, "pool", "load pool")
		}
		if err := pool.RequireAuthority(caller); err != nil {
			return err
		}
		if err := pool.CanDistribute(); err != nil {
			return err
		}

		reg, err := s.registrations.Find(txCtx, poolID, beneficiaryID)
		if errors.Is(err, sentinel.ErrNotFound) {
			return dErrors.New(dErrors.CodeBeneficiaryNotRegistered, "beneficiary is not registered in this pool")
		}
		if err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to load registration")
		}
		if reg.Distributed {
			return dErrors.New(dErrors.CodeDistributionExists, "beneficiary already has a distribution from this pool")
		}

		b, err := s.beneficiaries.FindByID(txCtx, beneficiaryID)
		if err != nil {
			return wrapStoreErr(err, "beneficiary", "load beneficiary")
		}
		if !b.IsVerified() {
			return dErrors.New(dErrors.CodeBeneficiaryNotVerified, "beneficiary is no longer verified")
		}
		if err := pool.CheckEligibility(b.FamilySize, b.DamageSeverity); err != nil {
			return err
		}

		now := requestcontext.Now(txCtx)
		var alloc poolmodels.Allocation
		pool, err = s.pools.Execute(txCtx, poolID,
			func(p *poolmodels.Pool) error { return p.CanDistribute() },
			func(p *poolmodels.Pool) error {
				var err error
				if alloc, err = p.Allocate(reg.Weight); err != nil {
					return err
				}
				return p.ApplyDistribution(alloc.Share, now)
			},
		)
		if err != nil {
			return wrapStoreErr(err, "pool", "update pool")
		}

		dist, err = models.New(models.NewParams{
			ID:            id.DistributionID(uuid.New()),
			PoolID:        poolID,
			BeneficiaryID: beneficiaryID,
			Immediate:     alloc.Immediate,
			Locked:        alloc.Locked,
			Weight:        reg.Weight,
			TimeLock:      pool.TimeLock,
			ClaimWindow:   current.ClaimWindow,
			Notes:         notes,
		}, now)
		if err != nil {
			return err
		}
		if err := s.distributions.Create(txCtx, dist); err != nil {
			if errors.Is(err, sentinel.ErrAlreadyUsed) {
				return dErrors.New(dErrors.CodeDistributionExists, "beneficiary already has a distribution from this pool")
			}
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to create distribution")
		}
		if err := s.registrations.MarkDistributed(txCtx, poolID, beneficiaryID); err != nil {
			if errors.Is(err, sentinel.ErrAlreadyUsed) {
				return dErrors.New(dErrors.CodeDistributionExists, "beneficiary already has a distribution from this pool")
			}
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to mark registration")
		}

		return s.emit(txCtx, audit.ComplianceEvent{
			Subject:    subject(dist.ID),
			Action:     audit.EventDistributionCreated,
			ActorID:    caller.String(),
			DisasterID: string(pool.DisasterID),
			PoolID:     poolID.String(),
			Amount:     dist.Allocated,
			Decision:   string(pool.Phase),
		})
	})
	if err != nil {
		return nil, err
	}

	if s.metrics != nil {
		s.metrics.ObserveDistribution(dist.Allocated)
	}
	return dist, nil
}

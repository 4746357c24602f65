package service

import (
	"context"
	"errors"

	"go.opentelemetry.io/otel/attribute"

	"sahara/internal/pool/models"
	id "sahara/pkg/domain"
	dErrors "sahara/pkg/domain-errors"
	audit "sahara/pkg/platform/audit"
	"sahara/pkg/platform/sentinel"
	"sahara/pkg/platform/tracing"
	"sahara/pkg/requestcontext"
)

// Register enrolls a verified beneficiary in an open pool. The weight is taken
// from the pool policy now and frozen on the registration.
func (s *Service) Register(ctx context.Context, poolID id.PoolID, beneficiaryID id.BeneficiaryID, caller id.ActorID) (_ *models.Registration, err error) {
	ctx, span := tracing.Start(ctx, "pool", "Register",
		attribute.String("pool_id", poolID.String()),
		attribute.String("beneficiary_id", beneficiaryID.String()),
	)
	defer func() {
		tracing.End(span, err)
		s.rejected("register", err)
	}()

	var reg *models.Registration
	err = s.runLocked(ctx, poolID, func(txCtx context.Context) error {
		pool, err := s.pools.FindByID(txCtx, poolID)
		if err != nil {
			return wrapStoreErr(err, "load pool")
		}
		if err := pool.RequireAuthority(caller); err != nil {
			return err
		}
		if err := pool.CanRegister(); err != nil {
			return err
		}

		b, err := s.beneficiaries.FindByID(txCtx, beneficiaryID)
		if errors.Is(err, sentinel.ErrNotFound) {
			return dErrors.New(dErrors.CodeNotFound, "beneficiary not found")
		}
		if err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to load beneficiary")
		}
		if !b.IsVerified() {
			return dErrors.New(dErrors.CodeBeneficiaryNotVerified, "beneficiary is not verified")
		}
		if b.DisasterID != pool.DisasterID {
			return dErrors.New(dErrors.CodeDisasterMismatch, "beneficiary belongs to a different disaster")
		}
		if err := pool.CheckEligibility(b.FamilySize, b.DamageSeverity); err != nil {
			return err
		}
		weight, err := pool.Policy.Weight(b.FamilySize, b.DamageSeverity)
		if err != nil {
			return err
		}

		now := requestcontext.Now(txCtx)
		reg = &models.Registration{
			PoolID:         poolID,
			BeneficiaryID:  beneficiaryID,
			Weight:         weight,
			FamilySize:     b.FamilySize,
			DamageSeverity: b.DamageSeverity,
			RegisteredAt:   now,
		}
		if err := s.registrations.Create(txCtx, reg); err != nil {
			if errors.Is(err, sentinel.ErrAlreadyUsed) {
				return dErrors.New(dErrors.CodeAlreadyRegistered, "beneficiary is already registered in this pool")
			}
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to create registration")
		}
		if _, err := s.pools.Execute(txCtx, poolID,
			func(p *models.Pool) error { return p.CanRegister() },
			func(p *models.Pool) error { return p.ApplyRegistration(weight, now) },
		); err != nil {
			return wrapStoreErr(err, "register beneficiary")
		}
		return s.emit(txCtx, audit.ComplianceEvent{
			Subject:    subject(poolID),
			Action:     audit.EventBeneficiaryEnrolled,
			ActorID:    caller.String(),
			DisasterID: string(pool.DisasterID),
			PoolID:     poolID.String(),
			Amount:     weight,
			Reason:     beneficiaryID.String(),
		})
	})
	if err != nil {
		return nil, err
	}

	if s.metrics != nil {
		s.metrics.IncrementRegistrations()
	}
	return reg, nil
}

// Lock closes registration. The allocation weight is frozen from here on.
func (s *Service) Lock(ctx context.Context, poolID id.PoolID, caller id.ActorID) (_ *models.Pool, err error) {
	ctx, span := tracing.Start(ctx, "pool", "Lock", attribute.String("pool_id", poolID.String()))
	defer func() {
		tracing.End(span, err)
		s.rejected("lock", err)
	}()

	var result *models.Pool
	err = s.runLocked(ctx, poolID, func(txCtx context.Context) error {
		now := requestcontext.Now(txCtx)
		updated, err := s.pools.Execute(txCtx, poolID,
			func(p *models.Pool) error {
				if err := p.RequireAuthority(caller); err != nil {
					return err
				}
				return p.CanLock()
			},
			func(p *models.Pool) error {
				p.ApplyLock(now)
				return nil
			},
		)
		if err != nil {
			return wrapStoreErr(err, "lock pool")
		}
		result = updated
		return s.emit(txCtx, audit.ComplianceEvent{
			Subject:    subject(poolID),
			Action:     audit.EventPoolLocked,
			ActorID:    caller.String(),
			DisasterID: string(updated.DisasterID),
			PoolID:     poolID.String(),
			Amount:     updated.TotalAllocationWeight,
		})
	})
	if err != nil {
		return nil, err
	}

	if s.metrics != nil {
		s.metrics.IncrementPhaseChange(string(models.PhaseLocked))
	}
	return result, nil
}

// ListRegistrations returns a pool's enrollments in registration order.
func (s *Service) ListRegistrations(ctx context.Context, poolID id.PoolID) ([]*models.Registration, error) {
	if _, err := s.pools.FindByID(ctx, poolID); err != nil {
		return nil, wrapStoreErr(err, "load pool")
	}
	regs, err := s.registrations.ListByPool(ctx, poolID)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list registrations")
	}
	return regs, nil
}

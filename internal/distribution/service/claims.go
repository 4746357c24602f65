package service

import (
	"context"

	"go.opentelemetry.io/otel/attribute"

	"sahara/internal/aggregate"
	"sahara/internal/distribution/models"
	"sahara/internal/ledger"
	poolmodels "sahara/internal/pool/models"
	id "sahara/pkg/domain"
	dErrors "sahara/pkg/domain-errors"
	audit "sahara/pkg/platform/audit"
	"sahara/pkg/platform/tracing"
	"sahara/pkg/requestcontext"
)

// ClaimResult is what a claim paid and one ledger receipt per tranche.
type ClaimResult struct {
	Distribution *models.Distribution
	Amount       uint64
	Tranches     models.Tranche
	Receipts     []*ledger.Receipt
}

// Claim pays every tranche that is due now. The ledger transfers run last so a
// failure there rolls back the bookkeeping. Each tranche moves under its own
// reference, so a tranche already paid by a failed attempt is not paid again.
func (s *Service) Claim(ctx context.Context, distributionID id.DistributionID, caller id.ActorID) (_ *ClaimResult, err error) {
	ctx, span := tracing.Start(ctx, "distribution", "Claim", attribute.String("distribution_id", distributionID.String()))
	defer func() {
		tracing.End(span, err)
		s.rejected("claim", err)
	}()

	existing, err := s.distributions.FindByID(ctx, distributionID)
	if err != nil {
		return nil, wrapStoreErr(err, "distribution", "load distribution")
	}

	var result *ClaimResult
	err = s.runLocked(ctx, existing.PoolID, func(txCtx context.Context) error {
		b, err := s.beneficiaries.FindByID(txCtx, existing.BeneficiaryID)
		if err != nil {
			return wrapStoreErr(err, "beneficiary", "load beneficiary")
		}
		if b.Authority != caller {
			return dErrors.New(dErrors.CodeUnauthorizedBeneficiary, "caller is not the beneficiary")
		}

		now := requestcontext.Now(txCtx)
		var plan models.ClaimPlan
		dist, err := s.distributions.Execute(txCtx, distributionID,
			func(d *models.Distribution) error {
				var err error
				plan, err = d.PlanClaim(now)
				return err
			},
			func(d *models.Distribution) error { return d.ApplyClaim(plan, now) },
		)
		if err != nil {
			return wrapStoreErr(err, "distribution", "update distribution")
		}

		pool, err := s.pools.Execute(txCtx, dist.PoolID,
			func(*poolmodels.Pool) error { return nil },
			func(p *poolmodels.Pool) error { return p.ApplyClaim(plan.Amount, now) },
		)
		if err != nil {
			return wrapStoreErr(err, "pool", "update pool")
		}
		if err := s.beneficiaries.AddReceived(txCtx, b.ID, plan.Amount); err != nil {
			return wrapStoreErr(err, "beneficiary", "record received aid")
		}
		if err := s.aggregates.Apply(txCtx, pool.DisasterID, aggregate.Delta{AidDistributed: plan.Amount}); err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to update aggregates")
		}
		if err := s.emit(txCtx, audit.ComplianceEvent{
			Subject:    subject(dist.ID),
			Action:     audit.EventDistributionClaimed,
			ActorID:    caller.String(),
			DisasterID: string(pool.DisasterID),
			PoolID:     pool.ID.String(),
			Amount:     plan.Amount,
			Decision:   plan.Tranches.String(),
		}); err != nil {
			return err
		}

		account, err := s.accounts.AccountFor(txCtx, b.Authority)
		if err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to resolve beneficiary account")
		}
		receipts := make([]*ledger.Receipt, 0, len(plan.Legs))
		for _, leg := range plan.Legs {
			receipt, err := s.ledger.Transfer(txCtx, ledger.TransferRequest{
				From:      pool.CustodialAccount,
				To:        account,
				Amount:    leg.Amount,
				Reference: leg.Tranche.Reference(dist.ID),
			})
			if err != nil {
				return wrapLedgerErr(err)
			}
			receipts = append(receipts, receipt)
		}

		result = &ClaimResult{Distribution: dist, Amount: plan.Amount, Tranches: plan.Tranches, Receipts: receipts}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if s.metrics != nil {
		s.metrics.ObserveClaim(result.Tranches.String(), result.Amount)
	}
	return result, nil
}

// Reclaim returns an untouched allocation to the pool once its claim deadline
// has passed. Nothing moves on the ledger: the value never left custody.
func (s *Service) Reclaim(ctx context.Context, distributionID id.DistributionID, caller id.ActorID) (_ *models.Distribution, err error) {
	ctx, span := tracing.Start(ctx, "distribution", "Reclaim", attribute.String("distribution_id", distributionID.String()))
	defer func() {
		tracing.End(span, err)
		s.rejected("reclaim", err)
	}()

	existing, err := s.distributions.FindByID(ctx, distributionID)
	if err != nil {
		return nil, wrapStoreErr(err, "distribution", "load distribution")
	}

	var dist *models.Distribution
	err = s.runLocked(ctx, existing.PoolID, func(txCtx context.Context) error {
		pool, err := s.pools.FindByID(txCtx, existing.PoolID)
		if err != nil {
			return wrapStoreErr(err, "pool", "load pool")
		}
		if err := pool.RequireAuthority(caller); err != nil {
			return err
		}

		now := requestcontext.Now(txCtx)
		dist, err = s.distributions.Execute(txCtx, distributionID,
			func(d *models.Distribution) error { return d.CanReclaim(now) },
			func(d *models.Distribution) error { d.ApplyReclaim(now); return nil },
		)
		if err != nil {
			return wrapStoreErr(err, "distribution", "update distribution")
		}
		if _, err := s.pools.Execute(txCtx, pool.ID,
			func(*poolmodels.Pool) error { return nil },
			func(p *poolmodels.Pool) error { return p.ApplyReclaim(dist.Allocated, now) },
		); err != nil {
			return wrapStoreErr(err, "pool", "update pool")
		}
		if err := s.aggregates.Apply(txCtx, pool.DisasterID, aggregate.Delta{AidReclaimed: dist.Allocated}); err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to update aggregates")
		}
		return s.emit(txCtx, audit.ComplianceEvent{
			Subject:    subject(dist.ID),
			Action:     audit.EventDistributionReclaimed,
			ActorID:    caller.String(),
			DisasterID: string(pool.DisasterID),
			PoolID:     pool.ID.String(),
			Amount:     dist.Allocated,
		})
	})
	if err != nil {
		return nil, err
	}

	if s.metrics != nil {
		s.metrics.ObserveReclaim(dist.Allocated)
	}
	s.logger.InfoContext(ctx, "distribution reclaimed",
		"distribution_id", dist.ID.String(),
		"pool_id", dist.PoolID.String(),
		"amount", dist.Allocated,
	)
	return dist, nil
}

func (s *Service) Get(ctx context.Context, distributionID id.DistributionID) (*models.Distribution, error) {
	d, err := s.distributions.FindByID(ctx, distributionID)
	if err != nil {
		return nil, wrapStoreErr(err, "distribution", "load distribution")
	}
	return d, nil
}

// ListByPool returns a pool's distributions in creation order.
func (s *Service) ListByPool(ctx context.Context, poolID id.PoolID) ([]*models.Distribution, error) {
	if _, err := s.pools.FindByID(ctx, poolID); err != nil {
		return nil, wrapStoreErr(err, "pool", "load pool")
	}
	list, err := s.distributions.ListByPool(ctx, poolID)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list distributions")
	}
	return list, nil
}

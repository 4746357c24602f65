package service

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"

	"sahara/internal/aggregate"
	"sahara/internal/ledger"
	"sahara/internal/pool/models"
	id "sahara/pkg/domain"
	dErrors "sahara/pkg/domain-errors"
	audit "sahara/pkg/platform/audit"
	"sahara/pkg/platform/checked"
	"sahara/pkg/platform/tracing"
	"sahara/pkg/requestcontext"
)

// MaxDepositMessageLen bounds the note a donor may attach.
const MaxDepositMessageLen = 500

// CreateCommand describes a new pool. The caller becomes its authority.
type CreateCommand struct {
	DisasterID          id.DisasterID
	Name                string
	TokenMint           string
	Policy              models.Policy
	ImmediatePercent    uint8
	LockedPercent       uint8
	TimeLock            time.Duration
	MinFamilySize       *uint8
	MinDamageSeverity   *uint8
	EligibilityCriteria string
	Description         string
	TargetAmount        *uint64
}

// CreatePool opens a pool for deposits and registrations.
func (s *Service) CreatePool(ctx context.Context, cmd CreateCommand, authority id.ActorID) (_ *models.Pool, err error) {
	ctx, span := tracing.Start(ctx, "pool", "CreatePool", attribute.String("disaster_id", string(cmd.DisasterID)))
	defer func() {
		tracing.End(span, err)
		s.rejected("create", err)
	}()

	current, err := s.activeSettings(ctx)
	if err != nil {
		return nil, err
	}
	if !current.IsTokenAllowed(cmd.TokenMint) {
		return nil, dErrors.New(dErrors.CodeInvalidTokenMint, "token is not allowed on this platform")
	}

	poolID := id.PoolID(uuid.New())
	p, err := models.NewPool(models.NewPoolParams{
		ID:                  poolID,
		DisasterID:          cmd.DisasterID,
		Name:                cmd.Name,
		Authority:           authority,
		TokenMint:           cmd.TokenMint,
		CustodialAccount:    models.CustodialAccountFor(poolID),
		Policy:              cmd.Policy,
		ImmediatePercent:    cmd.ImmediatePercent,
		LockedPercent:       cmd.LockedPercent,
		TimeLock:            cmd.TimeLock,
		MinFamilySize:       cmd.MinFamilySize,
		MinDamageSeverity:   cmd.MinDamageSeverity,
		EligibilityCriteria: cmd.EligibilityCriteria,
		Description:         cmd.Description,
		TargetAmount:        cmd.TargetAmount,
	}, requestcontext.Now(ctx))
	if err != nil {
		if dErrors.HasCode(err, dErrors.CodeInvariantViolation) {
			return nil, dErrors.New(dErrors.CodeValidation, err.Error())
		}
		return nil, err
	}

	err = s.runLocked(ctx, p.ID, func(txCtx context.Context) error {
		if err := s.pools.Create(txCtx, p); err != nil {
			return wrapStoreErr(err, "create pool")
		}
		if err := s.aggregates.Apply(txCtx, p.DisasterID, aggregate.Delta{Pools: 1}); err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to update aggregates")
		}
		return s.emit(txCtx, audit.ComplianceEvent{
			Subject:    subject(p.ID),
			Action:     audit.EventPoolCreated,
			ActorID:    authority.String(),
			DisasterID: string(p.DisasterID),
			PoolID:     p.ID.String(),
			Decision:   string(p.Policy),
		})
	})
	if err != nil {
		return nil, err
	}

	if s.metrics != nil {
		s.metrics.IncrementPoolsCreated()
	}
	return p, nil
}

// DepositCommand is one donation into a pool.
type DepositCommand struct {
	Amount    uint64
	Message   string
	Anonymous bool
}

// DepositResult reports how a donation was split.
type DepositResult struct {
	Pool      *models.Pool
	Gross     uint64
	Net       uint64
	Fee       uint64
	Reference string
}

// RecordDeposit takes the platform fee off a donation, books the net amount on
// the pool and credits custody. The ledger credit runs last so a failure there
// rolls back the bookkeeping.
func (s *Service) RecordDeposit(ctx context.Context, poolID id.PoolID, donor id.ActorID, cmd DepositCommand) (_ *DepositResult, err error) {
	ctx, span := tracing.Start(ctx, "pool", "RecordDeposit", attribute.String("pool_id", poolID.String()))
	defer func() {
		tracing.End(span, err)
		s.rejected("deposit", err)
	}()

	if cmd.Amount == 0 {
		return nil, dErrors.New(dErrors.CodeValidation, "deposit amount must be positive")
	}
	if len(cmd.Message) > MaxDepositMessageLen {
		return nil, dErrors.New(dErrors.CodeStringTooLong, "message must be 500 characters or less")
	}
	current, err := s.activeSettings(ctx)
	if err != nil {
		return nil, err
	}
	fee, err := checked.BasisPoints(cmd.Amount, current.PlatformFeeBPS)
	if err != nil {
		return nil, err
	}
	net, err := checked.Sub(cmd.Amount, fee)
	if err != nil {
		return nil, err
	}

	result := &DepositResult{
		Gross:     cmd.Amount,
		Net:       net,
		Fee:       fee,
		Reference: "deposit:" + poolID.String() + ":" + uuid.NewString(),
	}
	err = s.runLocked(ctx, poolID, func(txCtx context.Context) error {
		now := requestcontext.Now(txCtx)
		updated, err := s.pools.Execute(txCtx, poolID,
			func(p *models.Pool) error { return p.CanDeposit() },
			func(p *models.Pool) error { return p.ApplyDeposit(net, fee, now) },
		)
		if err != nil {
			return wrapStoreErr(err, "record deposit")
		}
		result.Pool = updated

		if err := s.aggregates.Apply(txCtx, updated.DisasterID, aggregate.Delta{Donations: net, FeesCollected: fee}); err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to update aggregates")
		}
		actor := donor.String()
		if cmd.Anonymous {
			actor = ""
		}
		if err := s.emit(txCtx, audit.ComplianceEvent{
			Subject:    subject(poolID),
			Action:     audit.EventDepositRecorded,
			ActorID:    actor,
			DisasterID: string(updated.DisasterID),
			PoolID:     poolID.String(),
			Amount:     net,
			Reason:     cmd.Message,
		}); err != nil {
			return err
		}

		if _, err := s.ledger.Credit(txCtx, ledger.CreditRequest{
			Account:   updated.CustodialAccount,
			Amount:    net,
			Reference: result.Reference,
		}); err != nil {
			return wrapLedgerErr(err)
		}
		if fee == 0 {
			return nil
		}
		if _, err := s.ledger.Credit(txCtx, ledger.CreditRequest{
			Account:   s.feeAccount,
			Amount:    fee,
			Reference: result.Reference + ":fee",
		}); err != nil {
			return wrapLedgerErr(err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if s.metrics != nil {
		s.metrics.ObserveDeposit(net, fee)
	}
	return result, nil
}

// UpdateConfig edits the descriptive fields of a pool. Authority only.
func (s *Service) UpdateConfig(ctx context.Context, poolID id.PoolID, caller id.ActorID, patch models.ConfigPatch) (_ *models.Pool, err error) {
	ctx, span := tracing.Start(ctx, "pool", "UpdateConfig", attribute.String("pool_id", poolID.String()))
	defer func() { tracing.End(span, err) }()

	if patch.IsEmpty() {
		return nil, dErrors.New(dErrors.CodeValidation, "no fields to update")
	}

	var result *models.Pool
	err = s.runLocked(ctx, poolID, func(txCtx context.Context) error {
		now := requestcontext.Now(txCtx)
		updated, err := s.pools.Execute(txCtx, poolID,
			func(p *models.Pool) error {
				if err := p.RequireAuthority(caller); err != nil {
					return err
				}
				return p.CanUpdateConfig(patch)
			},
			func(p *models.Pool) error {
				p.ApplyConfig(patch, now)
				return nil
			},
		)
		if err != nil {
			return wrapStoreErr(err, "update pool")
		}
		result = updated
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// ClosePool ends the pool. Existing distributions stay claimable and reclaimable.
func (s *Service) ClosePool(ctx context.Context, poolID id.PoolID, caller id.ActorID) (_ *models.Pool, err error) {
	ctx, span := tracing.Start(ctx, "pool", "ClosePool", attribute.String("pool_id", poolID.String()))
	defer func() {
		tracing.End(span, err)
		s.rejected("close", err)
	}()

	var result *models.Pool
	err = s.runLocked(ctx, poolID, func(txCtx context.Context) error {
		now := requestcontext.Now(txCtx)
		updated, err := s.pools.Execute(txCtx, poolID,
			func(p *models.Pool) error {
				if err := p.RequireAuthority(caller); err != nil {
					return err
				}
				return p.CanClose()
			},
			func(p *models.Pool) error {
				p.ApplyClose(now)
				return nil
			},
		)
		if err != nil {
			return wrapStoreErr(err, "close pool")
		}
		result = updated
		return s.emit(txCtx, audit.ComplianceEvent{
			Subject:    subject(poolID),
			Action:     audit.EventPoolClosed,
			ActorID:    caller.String(),
			DisasterID: string(updated.DisasterID),
			PoolID:     poolID.String(),
			Amount:     updated.TotalDistributed - updated.TotalClaimed,
		})
	})
	if err != nil {
		return nil, err
	}

	if s.metrics != nil {
		s.metrics.IncrementPhaseChange(string(models.PhaseClosed))
	}
	s.logger.InfoContext(ctx, "pool closed",
		"pool_id", poolID.String(),
		"total_deposited", result.TotalDeposited,
		"total_distributed", result.TotalDistributed,
		"total_claimed", result.TotalClaimed,
	)
	return result, nil
}

func (s *Service) Get(ctx context.Context, poolID id.PoolID) (*models.Pool, error) {
	p, err := s.pools.FindByID(ctx, poolID)
	if err != nil {
		return nil, wrapStoreErr(err, "load pool")
	}
	return p, nil
}

func (s *Service) ListByDisaster(ctx context.Context, disaster id.DisasterID) ([]*models.Pool, error) {
	pools, err := s.pools.ListByDisaster(ctx, disaster)
	if err != nil {
		return nil, wrapStoreErr(err, "list pools")
	}
	return pools, nil
}

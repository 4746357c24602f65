// Package service allocates pool funds to registered beneficiaries and runs
// the claim and reclaim flows. It serializes on the pool's shard key, the same
// key the pool service uses, so allocation and deposits never interleave.
package service

import (
	"context"
	"errors"
	"log/slog"

	"sahara/internal/aggregate"
	beneficiarymodels "sahara/internal/beneficiary/models"
	"sahara/internal/distribution/metrics"
	"sahara/internal/distribution/models"
	"sahara/internal/distribution/store"
	"sahara/internal/ledger"
	poolmodels "sahara/internal/pool/models"
	poolstore "sahara/internal/pool/store"
	"sahara/internal/settings"
	id "sahara/pkg/domain"
	dErrors "sahara/pkg/domain-errors"
	audit "sahara/pkg/platform/audit"
	"sahara/pkg/platform/sentinel"
	"sahara/pkg/platform/tx"
)

// DistributionStore persists distributions.
type DistributionStore interface {
	Create(ctx context.Context, d *models.Distribution) error
	FindByID(ctx context.Context, distributionID id.DistributionID) (*models.Distribution, error)
	ListByPool(ctx context.Context, poolID id.PoolID) ([]*models.Distribution, error)
	Execute(ctx context.Context, distributionID id.DistributionID, validate store.ValidateFunc, mutate store.MutateFunc) (*models.Distribution, error)
}

// PoolStore loads and updates the pool being paid out of.
type PoolStore interface {
	FindByID(ctx context.Context, poolID id.PoolID) (*poolmodels.Pool, error)
	Execute(ctx context.Context, poolID id.PoolID, validate poolstore.ValidateFunc, mutate poolstore.MutateFunc) (*poolmodels.Pool, error)
}

// RegistrationStore resolves and marks pool enrollments.
type RegistrationStore interface {
	Find(ctx context.Context, poolID id.PoolID, beneficiaryID id.BeneficiaryID) (*poolmodels.Registration, error)
	MarkDistributed(ctx context.Context, poolID id.PoolID, beneficiaryID id.BeneficiaryID) error
}

// BeneficiaryStore reads beneficiaries and accumulates what they received.
type BeneficiaryStore interface {
	FindByID(ctx context.Context, beneficiaryID id.BeneficiaryID) (*beneficiarymodels.Beneficiary, error)
	AddReceived(ctx context.Context, beneficiaryID id.BeneficiaryID, amount uint64) error
}

// AccountDirectory maps an actor to the ledger account that receives their aid.
type AccountDirectory interface {
	AccountFor(ctx context.Context, actor id.ActorID) (string, error)
}

// Ledger moves claimed value out of custody.
type Ledger interface {
	Transfer(ctx context.Context, req ledger.TransferRequest) (*ledger.Receipt, error)
}

// AggregateStore applies counter deltas inside the caller's transaction.
type AggregateStore interface {
	Apply(ctx context.Context, disaster id.DisasterID, d aggregate.Delta) error
}

// AuditPublisher is fail-closed: an error aborts the operation.
type AuditPublisher interface {
	Emit(ctx context.Context, event audit.ComplianceEvent) error
}

// Service runs allocation, claim and reclaim.
type Service struct {
	distributions DistributionStore
	pools         PoolStore
	registrations RegistrationStore
	beneficiaries BeneficiaryStore
	accounts      AccountDirectory
	ledger        Ledger
	settings      settings.Provider
	aggregates    AggregateStore
	publisher     AuditPublisher
	logger        *slog.Logger
	metrics       *metrics.Metrics
	tx            tx.Runner
}

type serviceConfig struct {
	publisher AuditPublisher
	logger    *slog.Logger
	metrics   *metrics.Metrics
	tx        tx.Runner
}

type Option func(*serviceConfig)

func WithLogger(logger *slog.Logger) Option {
	return func(c *serviceConfig) {
		c.logger = logger
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(c *serviceConfig) {
		c.metrics = m
	}
}

func WithAuditPublisher(publisher AuditPublisher) Option {
	return func(c *serviceConfig) {
		c.publisher = publisher
	}
}

// WithTx sets the transaction runner. Pass the runner the pool service uses.
func WithTx(runner tx.Runner) Option {
	return func(c *serviceConfig) {
		c.tx = runner
	}
}

// New constructs a Service. All collaborators are required.
func New(
	distributions DistributionStore,
	pools PoolStore,
	registrations RegistrationStore,
	beneficiaries BeneficiaryStore,
	accounts AccountDirectory,
	ldg Ledger,
	provider settings.Provider,
	aggregates AggregateStore,
	opts ...Option,
) (*Service, error) {
	if distributions == nil || pools == nil || registrations == nil || beneficiaries == nil ||
		accounts == nil || ldg == nil || provider == nil || aggregates == nil {
		return nil, errors.New("distribution service requires distribution, pool, registration and beneficiary stores, directory, ledger, settings and aggregates")
	}
	cfg := &serviceConfig{}
	for _, opt := range opts {
		opt(cfg)
	}
	if cfg.tx == nil {
		cfg.tx = tx.NewSharded(0)
	}
	if cfg.logger == nil {
		cfg.logger = slog.Default()
	}
	return &Service{
		distributions: distributions,
		pools:         pools,
		registrations: registrations,
		beneficiaries: beneficiaries,
		accounts:      accounts,
		ledger:        ldg,
		settings:      provider,
		aggregates:    aggregates,
		publisher:     cfg.publisher,
		logger:        cfg.logger,
		metrics:       cfg.metrics,
		tx:            cfg.tx,
	}, nil
}

func (s *Service) runLocked(ctx context.Context, poolID id.PoolID, fn func(txCtx context.Context) error) error {
	return s.tx.RunInTx(tx.WithShardKey(ctx, poolmodels.LockKey(poolID)), fn)
}

func (s *Service) emit(ctx context.Context, event audit.ComplianceEvent) error {
	s.logger.InfoContext(ctx, string(event.Action),
		"subject", event.Subject,
		"actor_id", event.ActorID,
		"pool_id", event.PoolID,
		"amount", event.Amount,
		"log_type", "audit",
	)
	if s.publisher == nil {
		return nil
	}
	return s.publisher.Emit(ctx, event)
}

func (s *Service) rejected(operation string, err error) {
	if s.metrics != nil && err != nil {
		s.metrics.IncrementRejected(operation, string(dErrors.CodeOf(err)))
	}
}

func subject(distributionID id.DistributionID) string {
	return "distribution:" + distributionID.String()
}

// wrapStoreErr maps store sentinels; coded errors from callbacks pass through.
func wrapStoreErr(err error, what, action string) error {
	var de *dErrors.Error
	switch {
	case errors.As(err, &de):
		return err
	case errors.Is(err, sentinel.ErrNotFound):
		return dErrors.New(dErrors.CodeNotFound, what+" not found")
	default:
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to "+action)
	}
}

// wrapLedgerErr keeps coded errors (the breaker's unavailable) and maps the
// ledger's business failures to domain codes.
func wrapLedgerErr(err error) error {
	var de *dErrors.Error
	switch {
	case errors.As(err, &de):
		return err
	case errors.Is(err, ledger.ErrInsufficientFunds):
		return dErrors.New(dErrors.CodeInsufficientPoolFunds, "pool custody cannot cover the claim")
	case errors.Is(err, ledger.ErrReferenceConflict):
		return dErrors.New(dErrors.CodeConflict, "claim reference was already used for a different transfer")
	default:
		return dErrors.Wrap(err, dErrors.CodeInternal, "ledger transfer failed")
	}
}

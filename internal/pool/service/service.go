// Package service runs the fund pool lifecycle: creation, deposits, beneficiary
// enrollment, the registration lock and closing. Every write is serialized on
// the pool's shard key, which the distribution engine shares.
package service

import (
	"context"
	"errors"
	"log/slog"

	"sahara/internal/aggregate"
	beneficiarymodels "sahara/internal/beneficiary/models"
	"sahara/internal/ledger"
	"sahara/internal/pool/metrics"
	"sahara/internal/pool/models"
	"sahara/internal/pool/store"
	"sahara/internal/settings"
	id "sahara/pkg/domain"
	dErrors "sahara/pkg/domain-errors"
	audit "sahara/pkg/platform/audit"
	"sahara/pkg/platform/sentinel"
	"sahara/pkg/platform/tx"
)

// DefaultFeeAccount receives the platform fee taken from deposits.
const DefaultFeeAccount = "platform:fees"

// PoolStore persists pools.
type PoolStore interface {
	Create(ctx context.Context, p *models.Pool) error
	FindByID(ctx context.Context, poolID id.PoolID) (*models.Pool, error)
	ListByDisaster(ctx context.Context, disaster id.DisasterID) ([]*models.Pool, error)
	Execute(ctx context.Context, poolID id.PoolID, validate store.ValidateFunc, mutate store.MutateFunc) (*models.Pool, error)
}

// RegistrationStore persists pool enrollments.
type RegistrationStore interface {
	Create(ctx context.Context, r *models.Registration) error
	ListByPool(ctx context.Context, poolID id.PoolID) ([]*models.Registration, error)
}

// BeneficiaryReader loads the beneficiary being enrolled.
type BeneficiaryReader interface {
	FindByID(ctx context.Context, beneficiaryID id.BeneficiaryID) (*beneficiarymodels.Beneficiary, error)
}

// Ledger books donated value into custody.
type Ledger interface {
	Credit(ctx context.Context, req ledger.CreditRequest) (*ledger.Receipt, error)
}

// AggregateStore applies counter deltas inside the caller's transaction.
type AggregateStore interface {
	Apply(ctx context.Context, disaster id.DisasterID, d aggregate.Delta) error
}

// AuditPublisher is fail-closed: an error aborts the operation.
type AuditPublisher interface {
	Emit(ctx context.Context, event audit.ComplianceEvent) error
}

// Service orchestrates the pool lifecycle.
type Service struct {
	pools         PoolStore
	registrations RegistrationStore
	beneficiaries BeneficiaryReader
	ledger        Ledger
	settings      settings.Provider
	aggregates    AggregateStore
	publisher     AuditPublisher
	feeAccount    string
	logger        *slog.Logger
	metrics       *metrics.Metrics
	tx            tx.Runner
}

type serviceConfig struct {
	publisher  AuditPublisher
	feeAccount string
	logger     *slog.Logger
	metrics    *metrics.Metrics
	tx         tx.Runner
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

// WithFeeAccount overrides the ledger account credited with platform fees.
func WithFeeAccount(account string) Option {
	return func(c *serviceConfig) {
		c.feeAccount = account
	}
}

// WithTx sets the transaction runner. Defaults to an in-memory sharded runner;
// share it with the distribution service so both lock the same pool shard.
func WithTx(runner tx.Runner) Option {
	return func(c *serviceConfig) {
		c.tx = runner
	}
}

// New constructs a Service. All collaborators are required.
func New(
	pools PoolStore,
	registrations RegistrationStore,
	beneficiaries BeneficiaryReader,
	ldg Ledger,
	provider settings.Provider,
	aggregates AggregateStore,
	opts ...Option,
) (*Service, error) {
	if pools == nil || registrations == nil || beneficiaries == nil || ldg == nil || provider == nil || aggregates == nil {
		return nil, errors.New("pool service requires pool, registration and beneficiary stores, ledger, settings and aggregates")
	}
	cfg := &serviceConfig{feeAccount: DefaultFeeAccount}
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
		pools:         pools,
		registrations: registrations,
		beneficiaries: beneficiaries,
		ledger:        ldg,
		settings:      provider,
		aggregates:    aggregates,
		publisher:     cfg.publisher,
		feeAccount:    cfg.feeAccount,
		logger:        cfg.logger,
		metrics:       cfg.metrics,
		tx:            cfg.tx,
	}, nil
}

func (s *Service) runLocked(ctx context.Context, poolID id.PoolID, fn func(txCtx context.Context) error) error {
	return s.tx.RunInTx(tx.WithShardKey(ctx, models.LockKey(poolID)), fn)
}

func (s *Service) activeSettings(ctx context.Context) (settings.Settings, error) {
	current, err := s.settings.Current(ctx)
	if err != nil {
		return settings.Settings{}, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load platform settings")
	}
	if current.Paused {
		return settings.Settings{}, dErrors.New(dErrors.CodePlatformPaused, "platform is paused")
	}
	return current, nil
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

func subject(poolID id.PoolID) string {
	return "pool:" + poolID.String()
}

// wrapStoreErr maps store sentinels; coded errors from callbacks pass through.
func wrapStoreErr(err error, action string) error {
	var de *dErrors.Error
	switch {
	case errors.As(err, &de):
		return err
	case errors.Is(err, sentinel.ErrNotFound):
		return dErrors.New(dErrors.CodeNotFound, "pool not found")
	case errors.Is(err, sentinel.ErrAlreadyUsed):
		return dErrors.New(dErrors.CodeConflict, "pool already exists")
	default:
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to "+action)
	}
}

func wrapLedgerErr(err error) error {
	var de *dErrors.Error
	if errors.As(err, &de) {
		return err
	}
	return dErrors.Wrap(err, dErrors.CodeInternal, "ledger credit failed")
}

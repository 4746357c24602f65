// Package service implements beneficiary intake and the multi-party verification
// consensus: field agents approve and flag records, admins resolve flags.
package service

import (
	"context"
	"errors"
	"log/slog"

	"sahara/internal/aggregate"
	"sahara/internal/beneficiary/metrics"
	"sahara/internal/beneficiary/models"
	"sahara/internal/beneficiary/store"
	"sahara/internal/settings"
	id "sahara/pkg/domain"
	dErrors "sahara/pkg/domain-errors"
	audit "sahara/pkg/platform/audit"
	"sahara/pkg/platform/sentinel"
	"sahara/pkg/platform/tx"
)

// Store persists beneficiaries.
type Store interface {
	Create(ctx context.Context, b *models.Beneficiary) error
	FindByID(ctx context.Context, beneficiaryID id.BeneficiaryID) (*models.Beneficiary, error)
	ListByDisaster(ctx context.Context, disaster id.DisasterID, f store.Filter) ([]*models.Beneficiary, error)
	Execute(ctx context.Context, beneficiaryID id.BeneficiaryID, validate store.ValidateFunc, mutate store.MutateFunc) (*models.Beneficiary, error)
}

// Directory answers who may act and keeps agent activity counters.
type Directory interface {
	IsActiveFieldAgent(ctx context.Context, actor id.ActorID, disaster id.DisasterID) (bool, error)
	IsAdmin(ctx context.Context, actor id.ActorID) (bool, error)
	RecordRegistration(ctx context.Context, actor id.ActorID) error
	RecordVerification(ctx context.Context, actor id.ActorID) error
	RecordFlag(ctx context.Context, actor id.ActorID) error
}

// AggregateStore applies counter deltas inside the caller's transaction.
type AggregateStore interface {
	Apply(ctx context.Context, disaster id.DisasterID, d aggregate.Delta) error
}

// AuditPublisher is fail-closed: an error aborts the operation.
type AuditPublisher interface {
	Emit(ctx context.Context, event audit.ComplianceEvent) error
}

// Service orchestrates beneficiary intake and verification.
type Service struct {
	store      Store
	directory  Directory
	settings   settings.Provider
	aggregates AggregateStore
	publisher  AuditPublisher
	logger     *slog.Logger
	metrics    *metrics.Metrics
	tx         tx.Runner
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

// WithTx sets the transaction runner. Defaults to an in-memory sharded runner.
func WithTx(runner tx.Runner) Option {
	return func(c *serviceConfig) {
		c.tx = runner
	}
}

// New constructs a Service. All collaborators are required.
func New(
	beneficiaries Store,
	directory Directory,
	provider settings.Provider,
	aggregates AggregateStore,
	opts ...Option,
) (*Service, error) {
	if beneficiaries == nil || directory == nil || provider == nil || aggregates == nil {
		return nil, errors.New("beneficiary service requires store, directory, settings and aggregates")
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
		store:      beneficiaries,
		directory:  directory,
		settings:   provider,
		aggregates: aggregates,
		publisher:  cfg.publisher,
		logger:     cfg.logger,
		metrics:    cfg.metrics,
		tx:         cfg.tx,
	}, nil
}

// runLocked runs fn in a transaction serialized on the beneficiary.
func (s *Service) runLocked(ctx context.Context, beneficiaryID id.BeneficiaryID, fn func(txCtx context.Context) error) error {
	return s.tx.RunInTx(tx.WithShardKey(ctx, "beneficiary:"+beneficiaryID.String()), fn)
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

func (s *Service) requireFieldAgent(ctx context.Context, actor id.ActorID, disaster id.DisasterID) error {
	ok, err := s.directory.IsActiveFieldAgent(ctx, actor, disaster)
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to check field agent")
	}
	if !ok {
		return dErrors.New(dErrors.CodeUnauthorizedFieldAgent, "caller is not an active field agent for this disaster")
	}
	return nil
}

func (s *Service) emit(ctx context.Context, event audit.ComplianceEvent) error {
	s.logger.InfoContext(ctx, string(event.Action),
		"subject", event.Subject,
		"actor_id", event.ActorID,
		"disaster_id", event.DisasterID,
		"log_type", "audit",
	)
	if s.publisher == nil {
		return nil
	}
	return s.publisher.Emit(ctx, event)
}

func subject(beneficiaryID id.BeneficiaryID) string {
	return "beneficiary:" + beneficiaryID.String()
}

// wrapStoreErr maps store sentinels; coded errors from callbacks pass through.
func wrapStoreErr(err error, action string) error {
	var de *dErrors.Error
	switch {
	case errors.As(err, &de):
		return err
	case errors.Is(err, sentinel.ErrNotFound):
		return dErrors.New(dErrors.CodeNotFound, "beneficiary not found")
	case errors.Is(err, sentinel.ErrAlreadyUsed):
		return dErrors.New(dErrors.CodeConflict, "beneficiary already registered for this disaster")
	default:
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to "+action)
	}
}

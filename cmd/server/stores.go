package main

import (
	"context"
	"fmt"
	"log/slog"

	"sahara/internal/aggregate"
	beneficiaryservice "sahara/internal/beneficiary/service"
	beneficiarystore "sahara/internal/beneficiary/store"
	"sahara/internal/distribution/monitor"
	distservice "sahara/internal/distribution/service"
	diststore "sahara/internal/distribution/store"
	"sahara/internal/ledger"
	"sahara/internal/platform/config"
	"sahara/internal/platform/postgres"
	"sahara/internal/platform/redis"
	poolservice "sahara/internal/pool/service"
	poolstore "sahara/internal/pool/store"
	"sahara/internal/settings"
	"sahara/internal/statement"
	"sahara/migrations"
	audit "sahara/pkg/platform/audit"
	auditmemory "sahara/pkg/platform/audit/store/memory"
	auditpostgres "sahara/pkg/platform/audit/store/postgres"
	"sahara/pkg/platform/tx"
)

// The same store instance serves several services, so each field carries the
// union of what they consume.
type (
	beneficiaryBackend interface {
		beneficiaryservice.Store
		distservice.BeneficiaryStore
	}
	poolBackend interface {
		poolservice.PoolStore
		distservice.PoolStore
	}
	registrationBackend interface {
		poolservice.RegistrationStore
		distservice.RegistrationStore
	}
	distributionBackend interface {
		distservice.DistributionStore
		monitor.Source
	}
	auditBackend interface {
		audit.Store
		audit.Outbox
	}
)

type backends struct {
	tx            tx.Runner
	beneficiaries beneficiaryBackend
	pools         poolBackend
	registrations registrationBackend
	distributions distributionBackend
	aggregates    aggregate.Store
	audit         auditBackend
	settings      settings.Provider
	ledger        ledger.Ledger
	statements    statement.Store

	closers []func()
	checks  map[string]func(ctx context.Context) error
}

func (b *backends) Close() {
	for i := len(b.closers) - 1; i >= 0; i-- {
		b.closers[i]()
	}
}

// openBackends picks Postgres stores when DATABASE_URL is set and in-memory
// stores otherwise. Settings and the ledger are chosen independently.
func openBackends(ctx context.Context, cfg config.Server, logger *slog.Logger) (*backends, error) {
	b := &backends{checks: make(map[string]func(ctx context.Context) error)}

	db, err := postgres.Open(ctx, cfg.Database)
	if err != nil {
		return nil, err
	}
	if db != nil {
		b.closers = append(b.closers, func() { _ = db.Close() })
		if err := migrations.Apply(ctx, db); err != nil {
			b.Close()
			return nil, err
		}
		b.checks["postgres"] = db.PingContext
		b.tx = tx.NewSQL(db, cfg.TxTimeout)
		b.beneficiaries = beneficiarystore.NewPostgres(db)
		b.pools = poolstore.NewPostgres(db)
		b.registrations = poolstore.NewPostgresRegistrations(db)
		b.distributions = diststore.NewPostgres(db)
		b.aggregates = aggregate.NewPostgres(db)
		b.audit = auditpostgres.New(db)
		logger.InfoContext(ctx, "using postgres stores")
	} else {
		b.tx = tx.NewSharded(cfg.TxTimeout)
		b.beneficiaries = beneficiarystore.NewInMemory()
		b.pools = poolstore.NewInMemory()
		b.registrations = poolstore.NewInMemoryRegistrations()
		b.distributions = diststore.NewInMemory()
		b.aggregates = aggregate.NewInMemory()
		b.audit = auditmemory.NewInMemoryStore()
		logger.InfoContext(ctx, "using in-memory stores")
	}

	defaults := settingsFromConfig(cfg.Aid)
	if err := defaults.Validate(); err != nil {
		b.Close()
		return nil, fmt.Errorf("platform settings: %w", err)
	}
	rdb, err := redis.New(ctx, cfg.Redis)
	if err != nil {
		b.Close()
		return nil, err
	}
	if rdb != nil {
		b.closers = append(b.closers, func() { _ = rdb.Close() })
		b.checks["redis"] = rdb.Health
		provider := settings.NewRedis(rdb.Client, defaults)
		if err := provider.Seed(ctx); err != nil {
			b.Close()
			return nil, err
		}
		b.settings = provider
	} else {
		b.settings = settings.NewInMemory(defaults)
	}

	if cfg.Ledger.URL != "" {
		pg, err := ledger.NewPostgres(ctx, cfg.Ledger.URL, int32(cfg.Ledger.MaxOpenConns))
		if err != nil {
			b.Close()
			return nil, err
		}
		b.closers = append(b.closers, pg.Close)
		b.ledger = pg
	} else {
		b.ledger = ledger.NewInMemory()
	}

	if cfg.Statement.Bucket != "" {
		s3Store, err := statement.NewS3(ctx, statement.S3Config{
			Bucket:   cfg.Statement.Bucket,
			Region:   cfg.Statement.Region,
			Endpoint: cfg.Statement.Endpoint,
		})
		if err != nil {
			b.Close()
			return nil, err
		}
		b.statements = s3Store
	} else {
		b.statements = statement.NewInMemory()
	}
	return b, nil
}

func settingsFromConfig(aid config.AidConfig) settings.Settings {
	return settings.Settings{
		VerificationThreshold: aid.VerificationThreshold,
		MaxVerifiers:          aid.MaxVerifiers,
		AllowedTokens:         aid.AllowedTokens,
		PlatformFeeBPS:        aid.PlatformFeeBPS,
		ClaimWindow:           aid.ClaimWindow,
	}
}

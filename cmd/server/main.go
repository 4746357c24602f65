package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	beneficiaryhandler "sahara/internal/beneficiary/handler"
	beneficiarymetrics "sahara/internal/beneficiary/metrics"
	beneficiaryservice "sahara/internal/beneficiary/service"
	"sahara/internal/directory"
	disthandler "sahara/internal/distribution/handler"
	distmetrics "sahara/internal/distribution/metrics"
	"sahara/internal/distribution/monitor"
	distservice "sahara/internal/distribution/service"
	httpapi "sahara/internal/http"
	jwttoken "sahara/internal/jwt_token"
	"sahara/internal/ledger"
	"sahara/internal/platform/config"
	"sahara/internal/platform/httpserver"
	"sahara/internal/platform/kafka/producer"
	"sahara/internal/platform/logger"
	"sahara/internal/platform/metrics"
	poolhandler "sahara/internal/pool/handler"
	poolmetrics "sahara/internal/pool/metrics"
	poolservice "sahara/internal/pool/service"
	"sahara/internal/statement"
	"sahara/pkg/platform/audit/publishers/compliance"
	"sahara/pkg/platform/audit/worker"
	"sahara/pkg/platform/circuit"
)

const (
	jwtIssuer       = "sahara"
	jwtAudience     = "sahara-api"
	shutdownTimeout = 10 * time.Second
)

func main() {
	if err := run(); err != nil {
		slog.Error("server exited", "error", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.FromEnv()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	log := logger.New(cfg.LogLevel)
	slog.SetDefault(log)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	b, err := openBackends(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer b.Close()

	dir := directory.NewInMemory()
	if err := dir.Seed(cfg.Directory.FieldAgents, cfg.Directory.Admins); err != nil {
		return fmt.Errorf("seed directory: %w", err)
	}

	publisher := compliance.New(b.audit,
		compliance.WithLogger(log),
		compliance.WithMetrics(compliance.NewMetrics()),
	)
	ldg := ledger.NewGuarded(b.ledger, circuit.New("ledger",
		circuit.WithFailureThreshold(5),
		circuit.WithCooldown(30*time.Second),
	), log)

	beneficiarySvc, err := beneficiaryservice.New(b.beneficiaries, dir, b.settings, b.aggregates,
		beneficiaryservice.WithTx(b.tx),
		beneficiaryservice.WithLogger(log),
		beneficiaryservice.WithMetrics(beneficiarymetrics.New()),
		beneficiaryservice.WithAuditPublisher(publisher),
	)
	if err != nil {
		return err
	}
	// Pool and distribution operations serialize on the same pool shard key, so
	// they must share one runner.
	poolSvc, err := poolservice.New(b.pools, b.registrations, b.beneficiaries, ldg, b.settings, b.aggregates,
		poolservice.WithTx(b.tx),
		poolservice.WithLogger(log),
		poolservice.WithMetrics(poolmetrics.New()),
		poolservice.WithAuditPublisher(publisher),
	)
	if err != nil {
		return err
	}
	distMetrics := distmetrics.New()
	distSvc, err := distservice.New(b.distributions, b.pools, b.registrations, b.beneficiaries, dir, ldg, b.settings, b.aggregates,
		distservice.WithTx(b.tx),
		distservice.WithLogger(log),
		distservice.WithMetrics(distMetrics),
		distservice.WithAuditPublisher(publisher),
	)
	if err != nil {
		return err
	}
	exporter, err := statement.NewExporter(poolSvc, distSvc, b.statements,
		statement.WithLogger(log),
		statement.WithAuditPublisher(publisher),
	)
	if err != nil {
		return err
	}

	var relay *worker.Worker
	if len(cfg.Kafka.Brokers) > 0 {
		prod, err := producer.New(producer.Config{
			Brokers: cfg.Kafka.Brokers,
			Topic:   cfg.Kafka.AuditTopic,
		}, log)
		if err != nil {
			return err
		}
		defer prod.Close()
		if err := prod.EnsureTopic(ctx, 1, 1); err != nil {
			return err
		}
		b.checks["kafka"] = prod.Ping
		relay = worker.NewWorker(b.audit, prod,
			worker.WithInterval(cfg.Kafka.RelayInterval),
			worker.WithLogger(log),
		)
	} else {
		log.InfoContext(ctx, "audit relay disabled: no kafka brokers configured")
	}

	jwtSvc := jwttoken.NewJWTService(cfg.JWTSigningKey, jwtIssuer, jwtAudience)
	router := httpapi.NewRouter(httpapi.Config{
		Logger:          log,
		Metrics:         metrics.New(),
		Validator:       jwttoken.NewJWTServiceAdapter(jwtSvc),
		ReadinessChecks: b.checks,
	},
		beneficiaryhandler.New(beneficiarySvc, log),
		poolhandler.New(poolSvc, log),
		disthandler.New(distSvc, log),
		statement.NewHandler(exporter, log),
	)
	srv := httpserver.New(cfg.Addr, router, log)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.InfoContext(gctx, "starting sahara", "addr", cfg.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	reclaims := monitor.New(b.distributions,
		monitor.WithInterval(cfg.Aid.MonitorInterval),
		monitor.WithLogger(log),
		monitor.WithMetrics(distMetrics),
	)
	g.Go(func() error {
		return ignoreCancel(reclaims.Run(gctx))
	})

	if relay != nil {
		g.Go(func() error {
			return ignoreCancel(relay.Run(gctx))
		})
	}

	return g.Wait()
}

func ignoreCancel(err error) error {
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

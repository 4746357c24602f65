// Package compliance provides a fail-closed audit publisher for aid events.
//
// Publisher writes events synchronously to the audit store, which appends them to
// the outbox inside the caller's transaction. If the write fails, an error is
// returned and the calling operation MUST fail, rolling back the state change with it.
//
// Use for: beneficiary_*, pool_*, deposit_recorded, distribution_*
package compliance

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	audit "sahara/pkg/platform/audit"
	"sahara/pkg/requestcontext"
)

// Publisher emits audit events with fail-closed semantics.
type Publisher struct {
	store   audit.Store
	logger  *slog.Logger
	metrics *Metrics
}

// Option configures the Publisher.
type Option func(*Publisher)

// WithLogger sets a logger for error reporting.
func WithLogger(logger *slog.Logger) Option {
	return func(p *Publisher) {
		p.logger = logger
	}
}

// WithMetrics sets the metrics collector.
func WithMetrics(m *Metrics) Option {
	return func(p *Publisher) {
		p.metrics = m
	}
}

// New creates a compliance publisher.
// The store must be outbox-backed for guaranteed delivery.
func New(store audit.Store, opts ...Option) *Publisher {
	p := &Publisher{
		store: store,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Emit synchronously writes an event to the audit store.
// Returns error if persistence fails - the caller MUST fail its operation.
func (p *Publisher) Emit(ctx context.Context, event audit.ComplianceEvent) error {
	start := time.Now()

	if event.Subject == "" {
		return fmt.Errorf("compliance event requires Subject")
	}
	if event.Action == "" {
		return fmt.Errorf("compliance event requires Action")
	}

	if event.Timestamp.IsZero() {
		event.Timestamp = requestcontext.Now(ctx)
	}
	if event.RequestID == "" {
		event.RequestID = requestcontext.RequestID(ctx)
	}

	stored := event.ToEvent()
	stored.Category = event.Action.Category()

	if err := p.store.Append(ctx, stored); err != nil {
		if p.metrics != nil {
			p.metrics.IncPersistFailures()
		}
		if p.logger != nil {
			p.logger.ErrorContext(ctx, "CRITICAL: compliance audit failed",
				"action", event.Action,
				"subject", event.Subject,
				"error", err,
			)
		}
		return fmt.Errorf("compliance audit persistence failed: %w", err)
	}

	if p.metrics != nil {
		p.metrics.ObservePersistDuration(time.Since(start).Seconds())
		p.metrics.IncEventsEmitted(string(event.Action))
	}

	return nil
}

// List returns the audit trail for one subject.
func (p *Publisher) List(ctx context.Context, subject string) ([]audit.Event, error) {
	return p.store.ListBySubject(ctx, subject)
}

// Package monitor periodically reports distributions that their pool authority
// could reclaim. It never reclaims on its own; reclaiming is an authority
// decision.
package monitor

import (
	"context"
	"log/slog"
	"time"

	"sahara/internal/distribution/metrics"
	"sahara/internal/distribution/models"
)

// Source lists untouched distributions past their claim deadline.
type Source interface {
	ListReclaimable(ctx context.Context, now time.Time, limit int) ([]*models.Distribution, error)
}

// Monitor scans a Source on an interval.
type Monitor struct {
	source    Source
	interval  time.Duration
	batchSize int
	clock     func() time.Time
	logger    *slog.Logger
	metrics   *metrics.Metrics
}

type Option func(*Monitor)

func WithInterval(d time.Duration) Option {
	return func(m *Monitor) {
		if d > 0 {
			m.interval = d
		}
	}
}

func WithBatchSize(n int) Option {
	return func(m *Monitor) {
		if n > 0 {
			m.batchSize = n
		}
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(m *Monitor) {
		m.logger = logger
	}
}

func WithMetrics(mt *metrics.Metrics) Option {
	return func(m *Monitor) {
		m.metrics = mt
	}
}

// WithClock overrides time.Now.
func WithClock(clock func() time.Time) Option {
	return func(m *Monitor) {
		m.clock = clock
	}
}

func New(source Source, opts ...Option) *Monitor {
	m := &Monitor{
		source:    source,
		interval:  time.Hour,
		batchSize: 500,
		clock:     time.Now,
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Run scans until ctx is cancelled.
func (m *Monitor) Run(ctx context.Context) error {
	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if _, err := m.ScanOnce(ctx); err != nil {
				m.logger.WarnContext(ctx, "reclaimable scan failed", "error", err)
			}
		}
	}
}

// ScanOnce logs each reclaimable distribution and returns how many it found,
// capped at the batch size.
func (m *Monitor) ScanOnce(ctx context.Context) (int, error) {
	now := m.clock().UTC()
	found, err := m.source.ListReclaimable(ctx, now, m.batchSize)
	if err != nil {
		return 0, err
	}
	for _, d := range found {
		m.logger.InfoContext(ctx, "distribution reclaimable",
			"distribution_id", d.ID.String(),
			"pool_id", d.PoolID.String(),
			"allocated", d.Allocated,
			"claim_deadline", d.ClaimDeadline,
		)
	}
	if m.metrics != nil {
		m.metrics.SetReclaimable(len(found))
	}
	return len(found), nil
}

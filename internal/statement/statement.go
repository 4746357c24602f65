// Package statement exports a point-in-time accounting statement for a pool to
// object storage so donors and auditors can reconcile it off-platform.
package statement

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/attribute"

	distmodels "sahara/internal/distribution/models"
	poolmodels "sahara/internal/pool/models"
	id "sahara/pkg/domain"
	dErrors "sahara/pkg/domain-errors"
	audit "sahara/pkg/platform/audit"
	"sahara/pkg/platform/sentinel"
	"sahara/pkg/platform/tracing"
	"sahara/pkg/requestcontext"
)

const contentType = "application/json"

// PoolReader is satisfied by the pool service.
type PoolReader interface {
	Get(ctx context.Context, poolID id.PoolID) (*poolmodels.Pool, error)
	ListRegistrations(ctx context.Context, poolID id.PoolID) ([]*poolmodels.Registration, error)
}

// DistributionReader is satisfied by the distribution service.
type DistributionReader interface {
	ListByPool(ctx context.Context, poolID id.PoolID) ([]*distmodels.Distribution, error)
}

type AuditPublisher interface {
	Emit(ctx context.Context, event audit.ComplianceEvent) error
}

// Summary is the pool's accounting at export time. Amounts are decimal strings.
type Summary struct {
	PoolID           id.PoolID        `json:"pool_id"`
	DisasterID       id.DisasterID    `json:"disaster_id"`
	Name             string           `json:"name"`
	TokenMint        string           `json:"token_mint"`
	Phase            poolmodels.Phase `json:"phase"`
	TotalDeposited   uint64           `json:"total_deposited,string"`
	TotalDistributed uint64           `json:"total_distributed,string"`
	TotalClaimed     uint64           `json:"total_claimed,string"`
	FeesCollected    uint64           `json:"fees_collected,string"`
	Unallocated      uint64           `json:"unallocated,string"`
	RegisteredCount  uint32           `json:"registered_count"`
	DistributedCount uint32           `json:"distributed_count"`
	DonorCount       uint32           `json:"donor_count"`
}

// Statement is the exported document.
type Statement struct {
	Pool          Summary                    `json:"pool"`
	Registrations []*poolmodels.Registration `json:"registrations"`
	Distributions []*distmodels.Distribution `json:"distributions"`
	GeneratedAt   time.Time                  `json:"generated_at"`
	GeneratedBy   id.ActorID                 `json:"generated_by"`
}

// Receipt locates an exported statement.
type Receipt struct {
	Key           string    `json:"key"`
	Size          int       `json:"size"`
	GeneratedAt   time.Time `json:"generated_at"`
	Registrations int       `json:"registrations"`
	Distributions int       `json:"distributions"`
}

// Exporter assembles statements and writes them to a Store.
type Exporter struct {
	pools         PoolReader
	distributions DistributionReader
	store         Store
	publisher     AuditPublisher
	logger        *slog.Logger
}

type Option func(*Exporter)

func WithLogger(logger *slog.Logger) Option {
	return func(e *Exporter) {
		e.logger = logger
	}
}

func WithAuditPublisher(publisher AuditPublisher) Option {
	return func(e *Exporter) {
		e.publisher = publisher
	}
}

func NewExporter(pools PoolReader, distributions DistributionReader, store Store, opts ...Option) (*Exporter, error) {
	if pools == nil || distributions == nil {
		return nil, fmt.Errorf("pool and distribution readers are required")
	}
	if store == nil {
		return nil, fmt.Errorf("statement store is required")
	}
	e := &Exporter{
		pools:         pools,
		distributions: distributions,
		store:         store,
		logger:        slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e, nil
}

// Export writes a statement for the pool. Only the pool authority may export.
func (e *Exporter) Export(ctx context.Context, poolID id.PoolID, caller id.ActorID) (_ *Receipt, err error) {
	ctx, span := tracing.Start(ctx, "statement", "export", attribute.String("pool_id", poolID.String()))
	defer func() { tracing.End(span, err) }()

	pool, err := e.pools.Get(ctx, poolID)
	if err != nil {
		return nil, err
	}
	if pool.Authority != caller {
		return nil, dErrors.New(dErrors.CodeUnauthorizedPoolAuthority, "only the pool authority can export statements")
	}
	regs, err := e.pools.ListRegistrations(ctx, poolID)
	if err != nil {
		return nil, err
	}
	dists, err := e.distributions.ListByPool(ctx, poolID)
	if err != nil {
		return nil, err
	}

	now := requestcontext.Now(ctx)
	doc := Statement{
		Pool:          summarize(pool),
		Registrations: regs,
		Distributions: dists,
		GeneratedAt:   now,
		GeneratedBy:   caller,
	}
	body, err := json.Marshal(doc)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to encode statement")
	}

	key := Key(pool.DisasterID, poolID, now)
	if err := e.store.Put(ctx, Object{Key: key, ContentType: contentType, Body: body}); err != nil {
		if errors.Is(err, sentinel.ErrAlreadyUsed) {
			return nil, dErrors.Wrap(err, dErrors.CodeConflict, "statement already exported")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeUnavailable, "failed to store statement")
	}

	event := audit.ComplianceEvent{
		Timestamp:  now,
		Subject:    "pool:" + poolID.String(),
		Action:     audit.EventPoolStatementExported,
		ActorID:    caller.String(),
		DisasterID: pool.DisasterID.String(),
		PoolID:     poolID.String(),
		Reason:     key,
		RequestID:  requestcontext.RequestID(ctx),
	}
	e.logger.InfoContext(ctx, string(event.Action),
		"subject", event.Subject,
		"actor_id", event.ActorID,
		"key", key,
		"size", len(body),
		"log_type", "audit",
	)
	if e.publisher != nil {
		if err := e.publisher.Emit(ctx, event); err != nil {
			return nil, dErrors.Wrap(err, dErrors.CodeUnavailable, "failed to record statement export")
		}
	}

	return &Receipt{
		Key:           key,
		Size:          len(body),
		GeneratedAt:   now,
		Registrations: len(regs),
		Distributions: len(dists),
	}, nil
}

// Key is pools/<disaster>/<pool>/statement-<unix-nanos>.json.
func Key(disaster id.DisasterID, poolID id.PoolID, at time.Time) string {
	return fmt.Sprintf("pools/%s/%s/statement-%d.json", disaster, poolID, at.UTC().UnixNano())
}

func summarize(p *poolmodels.Pool) Summary {
	s := Summary{
		PoolID:           p.ID,
		DisasterID:       p.DisasterID,
		Name:             p.Name,
		TokenMint:        p.TokenMint,
		Phase:            p.Phase,
		TotalDeposited:   p.TotalDeposited,
		TotalDistributed: p.TotalDistributed,
		TotalClaimed:     p.TotalClaimed,
		FeesCollected:    p.FeesCollected,
		RegisteredCount:  p.RegisteredCount,
		DistributedCount: p.DistributedCount,
		DonorCount:       p.DonorCount,
	}
	if p.TotalDeposited > p.TotalDistributed {
		s.Unallocated = p.TotalDeposited - p.TotalDistributed
	}
	return s
}

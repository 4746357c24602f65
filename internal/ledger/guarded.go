package ledger

import (
	"context"
	"log/slog"

	dErrors "sahara/pkg/domain-errors"
	"sahara/pkg/platform/circuit"
)

// Guarded wraps a Ledger with a circuit breaker. While the breaker is open,
// calls fail fast with CodeUnavailable instead of waiting on a sick ledger.
type Guarded struct {
	next    Ledger
	breaker *circuit.Breaker
	logger  *slog.Logger
}

func NewGuarded(next Ledger, breaker *circuit.Breaker, logger *slog.Logger) *Guarded {
	if logger == nil {
		logger = slog.Default()
	}
	return &Guarded{next: next, breaker: breaker, logger: logger}
}

func (g *Guarded) Transfer(ctx context.Context, req TransferRequest) (*Receipt, error) {
	if !g.breaker.Allow() {
		return nil, dErrors.New(dErrors.CodeUnavailable, "ledger temporarily unavailable")
	}
	receipt, err := g.next.Transfer(ctx, req)
	g.record(ctx, err)
	return receipt, err
}

func (g *Guarded) Credit(ctx context.Context, req CreditRequest) (*Receipt, error) {
	if !g.breaker.Allow() {
		return nil, dErrors.New(dErrors.CodeUnavailable, "ledger temporarily unavailable")
	}
	receipt, err := g.next.Credit(ctx, req)
	g.record(ctx, err)
	return receipt, err
}

func (g *Guarded) Balance(ctx context.Context, account string) (uint64, error) {
	if !g.breaker.Allow() {
		return 0, dErrors.New(dErrors.CodeUnavailable, "ledger temporarily unavailable")
	}
	balance, err := g.next.Balance(ctx, account)
	g.record(ctx, err)
	return balance, err
}

func (g *Guarded) record(ctx context.Context, err error) {
	if err == nil || IsBusinessError(err) {
		if _, change := g.breaker.RecordSuccess(); change.Closed {
			g.logger.InfoContext(ctx, "ledger circuit closed", "breaker", g.breaker.Name())
		}
		return
	}
	if _, change := g.breaker.RecordFailure(); change.Opened {
		g.logger.WarnContext(ctx, "ledger circuit opened", "breaker", g.breaker.Name(), "error", err)
	}
}

// Package ledger adapts the custodial value-transfer service. Every movement is
// keyed by a caller-chosen reference; replaying a reference with the same
// parameters returns the original receipt instead of moving value twice.
package ledger

import (
	"context"
	"errors"
	"time"

	dErrors "sahara/pkg/domain-errors"
)

var (
	ErrInsufficientFunds = errors.New("insufficient funds")
	ErrReferenceConflict = errors.New("reference reused with different parameters")
)

// TransferRequest moves Amount from one account to another.
type TransferRequest struct {
	From      string
	To        string
	Amount    uint64
	Reference string
}

// CreditRequest records value arriving from outside the ledger (a donation).
type CreditRequest struct {
	Account   string
	Amount    uint64
	Reference string
}

// Receipt confirms a movement. From is empty for credits.
type Receipt struct {
	Reference string    `json:"reference"`
	From      string    `json:"from,omitempty"`
	To        string    `json:"to"`
	Amount    uint64    `json:"amount"`
	CreatedAt time.Time `json:"created_at"`
}

// Ledger is implemented by the memory and Postgres adapters and by Guarded.
type Ledger interface {
	Transfer(ctx context.Context, req TransferRequest) (*Receipt, error)
	Credit(ctx context.Context, req CreditRequest) (*Receipt, error)
	Balance(ctx context.Context, account string) (uint64, error)
}

func (r TransferRequest) validate() error {
	if r.From == "" || r.To == "" {
		return dErrors.New(dErrors.CodeInvalidInput, "transfer accounts are required")
	}
	if r.From == r.To {
		return dErrors.New(dErrors.CodeInvalidInput, "transfer accounts must differ")
	}
	if r.Amount == 0 {
		return dErrors.New(dErrors.CodeInvalidInput, "transfer amount must be positive")
	}
	if r.Reference == "" || len(r.Reference) > 200 {
		return dErrors.New(dErrors.CodeInvalidInput, "transfer reference must be 1-200 characters")
	}
	return nil
}

func (r CreditRequest) validate() error {
	if r.Account == "" {
		return dErrors.New(dErrors.CodeInvalidInput, "credit account is required")
	}
	if r.Amount == 0 {
		return dErrors.New(dErrors.CodeInvalidInput, "credit amount must be positive")
	}
	if r.Reference == "" || len(r.Reference) > 200 {
		return dErrors.New(dErrors.CodeInvalidInput, "credit reference must be 1-200 characters")
	}
	return nil
}

func (r *Receipt) matches(from, to string, amount uint64) bool {
	return r.From == from && r.To == to && r.Amount == amount
}

// IsBusinessError reports failures caused by the request rather than the ledger
// being unhealthy. They do not count against the circuit breaker.
func IsBusinessError(err error) bool {
	if errors.Is(err, ErrInsufficientFunds) || errors.Is(err, ErrReferenceConflict) {
		return true
	}
	return dErrors.HasCode(err, dErrors.CodeInvalidInput)
}

package ledger

import (
	"context"
	"sync"

	"sahara/pkg/platform/checked"
	"sahara/pkg/platform/tx"
	"sahara/pkg/requestcontext"
)

// InMemory is a process-local ledger for development and tests. Movements made
// inside a memory transaction are undone if that transaction rolls back.
type InMemory struct {
	mu       sync.Mutex
	balances map[string]uint64
	receipts map[string]*Receipt
}

func NewInMemory() *InMemory {
	return &InMemory{
		balances: make(map[string]uint64),
		receipts: make(map[string]*Receipt),
	}
}

func (l *InMemory) Transfer(ctx context.Context, req TransferRequest) (*Receipt, error) {
	if err := req.validate(); err != nil {
		return nil, err
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if existing, ok := l.receipts[req.Reference]; ok {
		if !existing.matches(req.From, req.To, req.Amount) {
			return nil, ErrReferenceConflict
		}
		cp := *existing
		return &cp, nil
	}

	if l.balances[req.From] < req.Amount {
		return nil, ErrInsufficientFunds
	}
	credited, err := checked.Add(l.balances[req.To], req.Amount)
	if err != nil {
		return nil, err
	}
	l.balances[req.From] -= req.Amount
	l.balances[req.To] = credited

	receipt := &Receipt{
		Reference: req.Reference,
		From:      req.From,
		To:        req.To,
		Amount:    req.Amount,
		CreatedAt: requestcontext.Now(ctx),
	}
	l.receipts[req.Reference] = receipt

	tx.OnRollback(ctx, func() {
		l.mu.Lock()
		defer l.mu.Unlock()
		l.balances[req.To] -= req.Amount
		l.balances[req.From] += req.Amount
		delete(l.receipts, req.Reference)
	})

	cp := *receipt
	return &cp, nil
}

func (l *InMemory) Credit(ctx context.Context, req CreditRequest) (*Receipt, error) {
	if err := req.validate(); err != nil {
		return nil, err
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if existing, ok := l.receipts[req.Reference]; ok {
		if !existing.matches("", req.Account, req.Amount) {
			return nil, ErrReferenceConflict
		}
		cp := *existing
		return &cp, nil
	}

	credited, err := checked.Add(l.balances[req.Account], req.Amount)
	if err != nil {
		return nil, err
	}
	l.balances[req.Account] = credited

	receipt := &Receipt{
		Reference: req.Reference,
		To:        req.Account,
		Amount:    req.Amount,
		CreatedAt: requestcontext.Now(ctx),
	}
	l.receipts[req.Reference] = receipt

	tx.OnRollback(ctx, func() {
		l.mu.Lock()
		defer l.mu.Unlock()
		l.balances[req.Account] -= req.Amount
		delete(l.receipts, req.Reference)
	})

	cp := *receipt
	return &cp, nil
}

func (l *InMemory) Balance(_ context.Context, account string) (uint64, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.balances[account], nil
}

package ledger

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dErrors "sahara/pkg/domain-errors"
	"sahara/pkg/platform/circuit"
)

type flakyLedger struct {
	*InMemory
	fail  bool
	calls int
}

func (f *flakyLedger) Transfer(ctx context.Context, req TransferRequest) (*Receipt, error) {
	f.calls++
	if f.fail {
		return nil, errors.New("connection refused")
	}
	return f.InMemory.Transfer(ctx, req)
}

func TestGuarded_OpensOnInfrastructureFailures(t *testing.T) {
	now := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	breaker := circuit.New("ledger",
		circuit.WithFailureThreshold(2),
		circuit.WithSuccessThreshold(1),
		circuit.WithCooldown(time.Minute),
		circuit.WithClock(func() time.Time { return now }),
	)
	inner := &flakyLedger{InMemory: NewInMemory(), fail: true}
	guarded := NewGuarded(inner, breaker, nil)
	ctx := context.Background()
	req := TransferRequest{From: "pool:a", To: "acct:b", Amount: 1, Reference: "r"}

	for range 2 {
		_, err := guarded.Transfer(ctx, req)
		require.Error(t, err)
	}
	assert.True(t, breaker.IsOpen())

	_, err := guarded.Transfer(ctx, req)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeUnavailable))
	assert.Equal(t, 2, inner.calls, "open breaker must not reach the ledger")

	now = now.Add(time.Minute)
	inner.fail = false
	_, err = inner.InMemory.Credit(ctx, CreditRequest{Account: "pool:a", Amount: 5, Reference: "d"})
	require.NoError(t, err)
	_, err = guarded.Transfer(ctx, req)
	require.NoError(t, err)
	assert.False(t, breaker.IsOpen())
}

func TestGuarded_BusinessErrorsDoNotTrip(t *testing.T) {
	breaker := circuit.New("ledger", circuit.WithFailureThreshold(1))
	guarded := NewGuarded(NewInMemory(), breaker, nil)

	_, err := guarded.Transfer(context.Background(), TransferRequest{From: "pool:a", To: "acct:b", Amount: 10, Reference: "r"})
	require.ErrorIs(t, err, ErrInsufficientFunds)
	assert.False(t, breaker.IsOpen())
}

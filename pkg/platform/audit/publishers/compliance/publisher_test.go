package compliance

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	audit "sahara/pkg/platform/audit"
	"sahara/pkg/platform/audit/store/memory"
	"sahara/pkg/platform/tx"
	"sahara/pkg/requestcontext"
)

type failingStore struct{}

func (failingStore) Append(context.Context, audit.Event) error {
	return errors.New("disk full")
}

func (failingStore) ListBySubject(context.Context, string) ([]audit.Event, error) {
	return nil, nil
}

func TestPublisher_Emit(t *testing.T) {
	store := memory.NewInMemoryStore()
	pub := New(store)

	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	ctx := requestcontext.WithTime(context.Background(), now)
	ctx = requestcontext.WithRequestID(ctx, "req-1")

	err := pub.Emit(ctx, audit.ComplianceEvent{
		Subject:    "beneficiary:abc",
		Action:     audit.EventBeneficiaryFlagged,
		DisasterID: "TR-2026-01",
		Reason:     "duplicate documents",
	})
	require.NoError(t, err)

	events, err := pub.List(ctx, "beneficiary:abc")
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, string(audit.EventBeneficiaryFlagged), events[0].Action)
	assert.Equal(t, audit.CategorySecurity, events[0].Category)
	assert.Equal(t, now, events[0].Timestamp)
	assert.Equal(t, "req-1", events[0].RequestID)

	pending, err := store.FetchUnpublished(ctx, 10)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, "beneficiary:abc", pending[0].Key)
}

func TestPublisher_RequiresSubjectAndAction(t *testing.T) {
	pub := New(memory.NewInMemoryStore())

	err := pub.Emit(context.Background(), audit.ComplianceEvent{Action: audit.EventPoolCreated})
	require.Error(t, err)

	err = pub.Emit(context.Background(), audit.ComplianceEvent{Subject: "pool:1"})
	require.Error(t, err)
}

func TestPublisher_FailClosed(t *testing.T) {
	pub := New(failingStore{})

	err := pub.Emit(context.Background(), audit.ComplianceEvent{
		Subject: "distribution:1",
		Action:  audit.EventDistributionClaimed,
		Amount:  700,
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "disk full")
}

func TestPublisher_RolledBackWithTransaction(t *testing.T) {
	store := memory.NewInMemoryStore()
	pub := New(store)
	runner := tx.NewSharded(time.Second)

	err := runner.RunInTx(context.Background(), func(txCtx context.Context) error {
		if err := pub.Emit(txCtx, audit.ComplianceEvent{
			Subject: "pool:1",
			Action:  audit.EventDepositRecorded,
			PoolID:  "1",
			Amount:  1000,
		}); err != nil {
			return err
		}
		return errors.New("ledger refused")
	})
	require.Error(t, err)

	events, err := pub.List(context.Background(), "pool:1")
	require.NoError(t, err)
	assert.Empty(t, events)

	pending, err := store.FetchUnpublished(context.Background(), 10)
	require.NoError(t, err)
	assert.Empty(t, pending)
}

package worker

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	audit "sahara/pkg/platform/audit"
	"sahara/pkg/platform/audit/store/memory"
)

type recordingProducer struct {
	keys   []string
	failAt int
}

func (p *recordingProducer) Send(_ context.Context, key, _ string, _ []byte) error {
	if p.failAt > 0 && len(p.keys)+1 == p.failAt {
		return errors.New("broker unavailable")
	}
	p.keys = append(p.keys, key)
	return nil
}

func seed(t *testing.T, store *memory.InMemoryStore, n int) {
	t.Helper()
	for i := 0; i < n; i++ {
		require.NoError(t, store.Append(context.Background(), audit.Event{
			Subject: "pool:p1",
			Action:  string(audit.EventDepositRecorded),
			PoolID:  "p1",
			Amount:  uint64(i + 1),
		}))
	}
}

func TestWorker_RelayOnce(t *testing.T) {
	store := memory.NewInMemoryStore()
	seed(t, store, 3)
	producer := &recordingProducer{}
	w := NewWorker(store, producer, WithBatchSize(2))

	n, err := w.RelayOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	n, err = w.RelayOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	n, err = w.RelayOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, n)
	assert.Equal(t, []string{"pool:p1", "pool:p1", "pool:p1"}, producer.keys)
}

func TestWorker_ProducerFailureKeepsRemainder(t *testing.T) {
	store := memory.NewInMemoryStore()
	seed(t, store, 3)
	w := NewWorker(store, &recordingProducer{failAt: 2})

	n, err := w.RelayOnce(context.Background())
	require.Error(t, err)
	assert.Equal(t, 1, n)

	pending, err := store.FetchUnpublished(context.Background(), 10)
	require.NoError(t, err)
	assert.Len(t, pending, 2)
}

func TestWorker_RunStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	w := NewWorker(memory.NewInMemoryStore(), &recordingProducer{})
	assert.ErrorIs(t, w.Run(ctx), context.Canceled)
}

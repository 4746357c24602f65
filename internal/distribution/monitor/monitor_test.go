package monitor

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sahara/internal/distribution/models"
	"sahara/internal/distribution/store"
	id "sahara/pkg/domain"
)

type failingSource struct{}

func (failingSource) ListReclaimable(context.Context, time.Time, int) ([]*models.Distribution, error) {
	return nil, errors.New("db down")
}

func TestMonitor_ScanOnce(t *testing.T) {
	created := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	distributions := store.NewInMemory()
	for _, window := range []time.Duration{time.Hour, 2 * time.Hour, 0} {
		d, err := models.New(models.NewParams{
			ID:            id.DistributionID(uuid.New()),
			PoolID:        id.PoolID(uuid.New()),
			BeneficiaryID: id.BeneficiaryID(uuid.New()),
			Immediate:     10,
			ClaimWindow:   window,
		}, created)
		require.NoError(t, err)
		require.NoError(t, distributions.Create(context.Background(), d))
	}

	clock := created.Add(90 * time.Minute)
	m := New(distributions, WithClock(func() time.Time { return clock }), WithBatchSize(10))

	n, err := m.ScanOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	clock = created.Add(3 * time.Hour)
	n, err = m.ScanOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	n, err = New(distributions, WithClock(func() time.Time { return clock }), WithBatchSize(1)).ScanOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestMonitor_SourceError(t *testing.T) {
	_, err := New(failingSource{}).ScanOnce(context.Background())
	assert.Error(t, err)
}

func TestMonitor_RunStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := New(failingSource{}, WithInterval(time.Millisecond)).Run(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}

package aggregate

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sahara/pkg/platform/tx"
)

func TestStatsApply_Saturates(t *testing.T) {
	st := Stats{AidDistributed: math.MaxUint64 - 5}
	applied := st.Apply(Delta{AidDistributed: 10, Pools: 1}, time.Now())

	assert.Equal(t, uint64(math.MaxUint64), st.AidDistributed)
	assert.Equal(t, uint64(5), applied.AidDistributed, "only the landed part is reported")
	assert.Equal(t, uint64(1), applied.Pools)
}

func TestInMemory_ApplyUpdatesBothScopes(t *testing.T) {
	store := NewInMemory()
	ctx := context.Background()

	require.NoError(t, store.Apply(ctx, "TR-1", Delta{Beneficiaries: 1}))
	require.NoError(t, store.Apply(ctx, "NP-2", Delta{Beneficiaries: 2, VerifiedBeneficiaries: 1}))

	tr, err := store.Disaster(ctx, "TR-1")
	require.NoError(t, err)
	assert.Equal(t, uint64(1), tr.Beneficiaries)

	platform, err := store.Platform(ctx)
	require.NoError(t, err)
	assert.Equal(t, uint64(3), platform.Beneficiaries)
	assert.Equal(t, uint64(1), platform.VerifiedBeneficiaries)
}

func TestInMemory_RollbackRevertsOnlyOwnIncrement(t *testing.T) {
	store := NewInMemory()
	runner := tx.NewSharded(time.Second)
	ctx := context.Background()
	boom := errors.New("boom")

	require.NoError(t, store.Apply(ctx, "TR-1", Delta{AidDistributed: 100}))

	err := runner.RunInTx(ctx, func(txCtx context.Context) error {
		require.NoError(t, store.Apply(txCtx, "TR-1", Delta{AidDistributed: 40}))
		// an unrelated writer outside this transaction
		require.NoError(t, store.Apply(context.Background(), "TR-1", Delta{AidDistributed: 7}))
		return boom
	})
	require.ErrorIs(t, err, boom)

	tr, _ := store.Disaster(ctx, "TR-1")
	assert.Equal(t, uint64(107), tr.AidDistributed)
}

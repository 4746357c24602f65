package checked

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dErrors "sahara/pkg/domain-errors"
)

func TestAddSub(t *testing.T) {
	t.Run("add within range", func(t *testing.T) {
		v, err := Add(400, 600)
		require.NoError(t, err)
		assert.Equal(t, uint64(1000), v)
	})

	t.Run("add overflow is reported", func(t *testing.T) {
		_, err := Add(math.MaxUint64, 1)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeArithmeticOverflow))
	})

	t.Run("sub underflow is reported", func(t *testing.T) {
		_, err := Sub(499, 500)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeArithmeticUnderflow))
	})

	t.Run("sub to zero", func(t *testing.T) {
		v, err := Sub(500, 500)
		require.NoError(t, err)
		assert.Zero(t, v)
	})

	t.Run("mul overflow is reported", func(t *testing.T) {
		_, err := Mul(math.MaxUint64, 2)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeArithmeticOverflow))
	})
}

// TestMulDiv_WidenedIntermediate verifies a*b may exceed 64 bits as long as the quotient fits.
func TestMulDiv_WidenedIntermediate(t *testing.T) {
	t.Run("proportional share", func(t *testing.T) {
		v, err := MulDiv(1000, 2, 5)
		require.NoError(t, err)
		assert.Equal(t, uint64(400), v)
	})

	t.Run("floor division", func(t *testing.T) {
		v, err := MulDiv(1000, 1, 3)
		require.NoError(t, err)
		assert.Equal(t, uint64(333), v)
	})

	t.Run("product beyond 64 bits", func(t *testing.T) {
		v, err := MulDiv(math.MaxUint64, 50, 100)
		require.NoError(t, err)
		assert.Equal(t, uint64(math.MaxUint64/2), v)
	})

	t.Run("quotient beyond 64 bits", func(t *testing.T) {
		_, err := MulDiv(math.MaxUint64, 3, 2)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeArithmeticOverflow))
	})

	t.Run("zero divisor", func(t *testing.T) {
		_, err := MulDiv(10, 10, 0)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeDivisionByZero))
	})
}

func TestPercentAndBasisPoints(t *testing.T) {
	v, err := Percent(400, 70)
	require.NoError(t, err)
	assert.Equal(t, uint64(280), v)

	v, err = Percent(333, 70)
	require.NoError(t, err)
	assert.Equal(t, uint64(233), v)

	fee, err := BasisPoints(10_000, 250)
	require.NoError(t, err)
	assert.Equal(t, uint64(250), fee)
}

func TestSaturating(t *testing.T) {
	assert.Equal(t, uint64(math.MaxUint64), SaturatingAdd(math.MaxUint64-1, 5))
	assert.Equal(t, uint64(7), SaturatingAdd(3, 4))

	_, err := AddU32(math.MaxUint32, 1)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeArithmeticOverflow))
}

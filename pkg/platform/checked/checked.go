// Package checked provides overflow-checked unsigned arithmetic for monetary amounts.
//
// Every operation returns a coded domain error instead of wrapping or truncating.
// MulDiv widens the product to 128 bits so floor(a*b/c) is exact for any uint64 inputs
// whose quotient fits in 64 bits.
package checked

import (
	"math"
	"math/bits"

	dErrors "sahara/pkg/domain-errors"
)

var (
	errOverflow  = dErrors.New(dErrors.CodeArithmeticOverflow, "arithmetic overflow")
	errUnderflow = dErrors.New(dErrors.CodeArithmeticUnderflow, "arithmetic underflow")
	errDivZero   = dErrors.New(dErrors.CodeDivisionByZero, "division by zero")
)

// Add returns a+b or an overflow error.
func Add(a, b uint64) (uint64, error) {
	sum, carry := bits.Add64(a, b, 0)
	if carry != 0 {
		return 0, errOverflow
	}
	return sum, nil
}

// Sub returns a-b or an underflow error.
func Sub(a, b uint64) (uint64, error) {
	diff, borrow := bits.Sub64(a, b, 0)
	if borrow != 0 {
		return 0, errUnderflow
	}
	return diff, nil
}

// Mul returns a*b or an overflow error.
func Mul(a, b uint64) (uint64, error) {
	hi, lo := bits.Mul64(a, b)
	if hi != 0 {
		return 0, errOverflow
	}
	return lo, nil
}

// Div returns floor(a/b) or a division-by-zero error.
func Div(a, b uint64) (uint64, error) {
	if b == 0 {
		return 0, errDivZero
	}
	return a / b, nil
}

// MulDiv returns floor(a*b/c) using a 128-bit intermediate.
func MulDiv(a, b, c uint64) (uint64, error) {
	if c == 0 {
		return 0, errDivZero
	}
	hi, lo := bits.Mul64(a, b)
	if hi >= c {
		// quotient would not fit in 64 bits
		return 0, errOverflow
	}
	quo, _ := bits.Div64(hi, lo, c)
	return quo, nil
}

// Percent returns floor(amount*pct/100).
func Percent(amount uint64, pct uint8) (uint64, error) {
	return MulDiv(amount, uint64(pct), 100)
}

// BasisPoints returns floor(amount*bps/10000).
func BasisPoints(amount uint64, bps uint16) (uint64, error) {
	return MulDiv(amount, uint64(bps), 10_000)
}

// SaturatingAdd returns a+b clamped at math.MaxUint64.
func SaturatingAdd(a, b uint64) uint64 {
	sum, carry := bits.Add64(a, b, 0)
	if carry != 0 {
		return math.MaxUint64
	}
	return sum
}

// AddU32 returns a+b for 32-bit counters or an overflow error.
func AddU32(a, b uint32) (uint32, error) {
	sum := uint64(a) + uint64(b)
	if sum > math.MaxUint32 {
		return 0, errOverflow
	}
	return uint32(sum), nil
}

package progression

import (
	"fmt"
	"math"
)

// Apply adds delta to current and clamps the sum to b. clamped reports
// whether current+delta fell outside the bound.
//
// The addition saturates instead of wrapping: a sum that overflows int64 is
// beyond any bound on that side and clamps to it.
func Apply(current, delta int64, b Bound) (newValue int64, clamped bool) {
	candidate, overflow := addSaturating(current, delta)
	switch {
	case overflow > 0 || candidate > b.Max:
		return b.Max, true
	case overflow < 0 || candidate < b.Min:
		return b.Min, true
	default:
		return candidate, false
	}
}

// addSaturating returns a+b and the overflow direction (-1, 0, +1).
func addSaturating(a, b int64) (int64, int) {
	if b > 0 && a > math.MaxInt64-b {
		return math.MaxInt64, 1
	}
	if b < 0 && a < math.MinInt64-b {
		return math.MinInt64, -1
	}
	return a + b, 0
}

// maxExactFloat is the largest magnitude a float64 can hold while still
// representing every integer below it.
const maxExactFloat = 1 << 53

// DeltaFromFloat converts a decoded JSON number into a delta. Non-finite,
// fractional and out-of-range numbers are rejected.
func DeltaFromFloat(v float64) (int64, error) {
	switch {
	case math.IsNaN(v) || math.IsInf(v, 0):
		return 0, fmt.Errorf("%w: non-finite value", ErrInvalidNumber)
	case v != math.Trunc(v):
		return 0, fmt.Errorf("%w: %v is not a whole number", ErrInvalidNumber, v)
	case math.Abs(v) > maxExactFloat:
		return 0, fmt.Errorf("%w: %v is out of range", ErrInvalidNumber, v)
	}
	return int64(v), nil
}

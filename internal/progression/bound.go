package progression

import (
	"fmt"
	"math"
)

// Unbounded is the upper limit used for fields with no game-design ceiling.
const Unbounded int64 = math.MaxInt64

// Bound is a closed range [Min, Max] for one accumulable field.
type Bound struct {
	Min int64 `json:"min"`
	Max int64 `json:"max"`
}

// NewBound returns a Bound, rejecting ranges where min > max.
func NewBound(min, max int64) (Bound, error) {
	if min > max {
		return Bound{}, fmt.Errorf("%w: min %d > max %d", ErrInvalidBound, min, max)
	}
	return Bound{Min: min, Max: max}, nil
}

func mustBound(min, max int64) Bound {
	b, err := NewBound(min, max)
	if err != nil {
		panic(err)
	}
	return b
}

// Contains reports whether v lies within the bound.
func (b Bound) Contains(v int64) bool {
	return v >= b.Min && v <= b.Max
}

// Clamp returns v truncated to the bound.
func (b Bound) Clamp(v int64) int64 {
	if v > b.Max {
		return b.Max
	}
	if v < b.Min {
		return b.Min
	}
	return v
}

// HasCeiling is false for fields bounded from below only.
func (b Bound) HasCeiling() bool {
	return b.Max != Unbounded
}

func (b Bound) String() string {
	if !b.HasCeiling() {
		return fmt.Sprintf("[%d, +inf)", b.Min)
	}
	return fmt.Sprintf("[%d, %d]", b.Min, b.Max)
}

package level

import (
	"fmt"
	"math"
)

// Table partitions a reference range [min, max] into equal-width intervals
// plus the two unbounded tails below min and above max.
type Table struct {
	intervals  int
	boundaries []float64
}

// NewTable creates a table with the given number of intervals. All
// boundaries start at zero until the first Recalculate.
func NewTable(intervals int) (*Table, error) {
	if intervals < 1 {
		return nil, fmt.Errorf("%w: got %d", ErrInvalidIntervals, intervals)
	}
	return &Table{
		intervals:  intervals,
		boundaries: make([]float64, intervals+1),
	}, nil
}

// Intervals returns the number of equal-width intervals.
func (t *Table) Intervals() int {
	return t.intervals
}

// Recalculate replaces the boundaries with an even split of [lo, hi].
func (t *Table) Recalculate(lo, hi float64) {
	n := float64(t.intervals)
	size := (hi - lo) / n
	// hi-lo can overflow for finite ends; weight the ends instead.
	overflow := math.IsInf(size, 0) && !math.IsInf(lo, 0) && !math.IsInf(hi, 0)

	b := make([]float64, t.intervals+1)
	for i := range b {
		if overflow {
			f := float64(i) / n
			b[i] = lo*(1-f) + hi*f
		} else {
			b[i] = lo + float64(i)*size
		}
	}
	b[0] = lo
	b[t.intervals] = hi

	t.boundaries = b
}

// Classify returns the interval index of v in [0, Intervals()]. A value on a
// shared boundary belongs to the lower interval.
func (t *Table) Classify(v float64) (int, error) {
	if math.IsNaN(v) {
		return 0, ErrInvalidValue
	}

	b := t.boundaries
	n := t.intervals

	if v < b[0] {
		return 0, nil
	}
	if v > b[n] {
		return n, nil
	}

	// Collapsed range: v sits exactly on the single point.
	if b[0] == b[n] {
		return 0, nil
	}

	for i := 0; i < n; i++ {
		if b[i] <= v && v <= b[i+1] {
			return i, nil
		}
	}

	return 0, fmt.Errorf("%w: value %g, boundaries %v", ErrInconsistentTable, v, b)
}

// Boundaries returns a copy of the current boundaries.
func (t *Table) Boundaries() []float64 {
	out := make([]float64, len(t.boundaries))
	copy(out, t.boundaries)
	return out
}

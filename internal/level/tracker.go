// Package level classifies a stream of amplitude values into intensity
// levels against a range that recalibrates itself every window of samples.
package level

import (
	"fmt"
	"math"
)

// Calibration describes the range a table was just recalculated from.
type Calibration struct {
	Min        float64   `json:"min"`
	Max        float64   `json:"max"`
	Boundaries []float64 `json:"boundaries"`
	Bootstrap  bool      `json:"bootstrap"`
}

// Tracker keeps a windowed min/max of incoming samples and recalibrates its
// Table on window boundaries. During the first window every new extreme
// recalibrates immediately; the first window closes on sample WindowSize+1,
// which is folded into the range it commits.
//
// A Tracker is not safe for concurrent use; confine it to one consumer.
type Tracker struct {
	window        int
	bootstrapping bool
	count         int

	// committed range, in effect for classification
	min, max float64
	// range of the window in progress
	pendingMin, pendingMax float64

	table          *Table
	recalibrations uint64
	onRecalibrate  func(Calibration)
}

// NewTracker creates a tracker in its bootstrap phase.
func NewTracker(cfg Config) (*Tracker, error) {
	if cfg.WindowSize < 1 {
		return nil, fmt.Errorf("%w: got %d", ErrInvalidWindow, cfg.WindowSize)
	}
	table, err := NewTable(cfg.Intervals)
	if err != nil {
		return nil, err
	}
	return &Tracker{
		window:        cfg.WindowSize,
		bootstrapping: true,
		table:         table,
	}, nil
}

// OnRecalibrate registers a callback run synchronously after every table
// recalculation.
func (t *Tracker) OnRecalibrate(callback func(Calibration)) {
	t.onRecalibrate = callback
}

// Sample feeds one amplitude value. Non-finite values are ignored.
func (t *Tracker) Sample(v float64) {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return
	}

	recalc := false

	if t.bootstrapping {
		if t.count == 0 {
			t.min, t.max = v, v
			recalc = true
		}
		if v < t.min {
			t.min = v
			recalc = true
		}
		if v > t.max {
			t.max = v
			recalc = true
		}
		t.pendingMin, t.pendingMax = t.min, t.max
		// The sample after a full first window still widens the range
		// before it is committed below.
		if t.count == t.window {
			t.bootstrapping = false
		}
	}

	if !t.bootstrapping {
		if t.count == t.window {
			t.min, t.max = t.pendingMin, t.pendingMax
			t.count = 0
			t.pendingMin, t.pendingMax = v, v
			recalc = true
		}
		if v < t.pendingMin {
			t.pendingMin = v
		}
		if v > t.pendingMax {
			t.pendingMax = v
		}
	}

	if recalc {
		t.recalibrate(t.bootstrapping)
	}

	t.count++
}

func (t *Tracker) recalibrate(bootstrap bool) {
	t.table.Recalculate(t.min, t.max)
	t.recalibrations++

	if t.onRecalibrate != nil {
		t.onRecalibrate(Calibration{
			Min:        t.min,
			Max:        t.max,
			Boundaries: t.table.Boundaries(),
			Bootstrap:  bootstrap,
		})
	}
}

// Classify returns the level of v against the most recent calibration.
// It never changes tracker state.
func (t *Tracker) Classify(v float64) (int, error) {
	return t.table.Classify(v)
}

// Intervals returns the highest level Classify can return.
func (t *Tracker) Intervals() int {
	return t.table.Intervals()
}

// WindowSize returns the number of samples per window.
func (t *Tracker) WindowSize() int {
	return t.window
}

// Bootstrapping reports whether the first window is still open. It stays true
// until the sample after the first WindowSize samples.
func (t *Tracker) Bootstrapping() bool {
	return t.bootstrapping
}

// Committed returns the range currently in effect for classification.
func (t *Tracker) Committed() (lo, hi float64) {
	return t.min, t.max
}

// Pending returns the range accumulated for the window in progress.
func (t *Tracker) Pending() (lo, hi float64) {
	return t.pendingMin, t.pendingMax
}

// Boundaries returns a copy of the table boundaries, for diagnostics.
func (t *Tracker) Boundaries() []float64 {
	return t.table.Boundaries()
}

// Recalibrations returns how many times the table has been recalculated.
func (t *Tracker) Recalibrations() uint64 {
	return t.recalibrations
}

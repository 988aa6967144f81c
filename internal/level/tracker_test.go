package level

import (
	"errors"
	"math"
	"testing"
	"time"
)

func newTestTracker(t *testing.T, window, intervals int) *Tracker {
	t.Helper()
	tr, err := NewTracker(Config{Intervals: intervals, WindowSize: window})
	if err != nil {
		t.Fatalf("NewTracker failed: %v", err)
	}
	return tr
}

func feed(tr *Tracker, values ...float64) {
	for _, v := range values {
		tr.Sample(v)
	}
}

func assertBoundaries(t *testing.T, got, want []float64) {
	t.Helper()
	if len(got) != len(want) {
		t.Fatalf("boundaries = %v, want %v", got, want)
	}
	for i := range want {
		if math.Abs(got[i]-want[i]) > tolerance {
			t.Fatalf("boundaries = %v, want %v", got, want)
		}
	}
}

func TestNewTracker_RejectsInvalidConfig(t *testing.T) {
	tests := []struct {
		name string
		cfg  Config
		want error
	}{
		{"zero window", Config{Intervals: 10, WindowSize: 0}, ErrInvalidWindow},
		{"negative window", Config{Intervals: 10, WindowSize: -3}, ErrInvalidWindow},
		{"zero intervals", Config{Intervals: 0, WindowSize: 25}, ErrInvalidIntervals},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewTracker(tt.cfg)
			if !errors.Is(err, tt.want) {
				t.Fatalf("expected %v, got %v", tt.want, err)
			}
			if !errors.Is(err, ErrInvalidConfig) {
				t.Fatalf("expected error to wrap ErrInvalidConfig, got %v", err)
			}
		})
	}
}

func TestNewTracker_InitialState(t *testing.T) {
	tr := newTestTracker(t, 25, 10)

	if !tr.Bootstrapping() {
		t.Error("new tracker should be bootstrapping")
	}
	if lo, hi := tr.Committed(); lo != 0 || hi != 0 {
		t.Errorf("Committed() = (%g, %g), want (0, 0)", lo, hi)
	}
	if tr.Recalibrations() != 0 {
		t.Errorf("Recalibrations() = %d, want 0", tr.Recalibrations())
	}
	if tr.Intervals() != 10 || tr.WindowSize() != 25 {
		t.Errorf("shape = (%d, %d), want (10, 25)", tr.Intervals(), tr.WindowSize())
	}
}

func TestTracker_FirstSampleCalibrates(t *testing.T) {
	tr := newTestTracker(t, 4, 2)
	tr.Sample(0.3)

	if lo, hi := tr.Committed(); lo != 0.3 || hi != 0.3 {
		t.Fatalf("Committed() = (%g, %g), want (0.3, 0.3)", lo, hi)
	}
	if tr.Recalibrations() != 1 {
		t.Fatalf("Recalibrations() = %d, want 1", tr.Recalibrations())
	}
	if got, _ := tr.Classify(0.3); got != 0 {
		t.Errorf("Classify(0.3) = %d, want 0", got)
	}
}

func TestTracker_BootstrapRecalibratesOnEveryExtreme(t *testing.T) {
	tr := newTestTracker(t, 10, 2)

	feed(tr, 0.5)  // first sample
	feed(tr, 0.4)  // new min
	feed(tr, 0.45) // inside
	feed(tr, 0.6)  // new max
	feed(tr, 0.6)  // equal, no trigger
	feed(tr, 0.4)  // equal, no trigger
	if got := tr.Recalibrations(); got != 3 {
		t.Fatalf("Recalibrations() = %d, want 3", got)
	}

	assertBoundaries(t, tr.Boundaries(), []float64{0.4, 0.5, 0.6})
}

func TestTracker_EndToEndScenario(t *testing.T) {
	tr := newTestTracker(t, 4, 2)

	feed(tr, 0.1, 0.5, 0.9, 0.3)

	if !tr.Bootstrapping() {
		t.Fatal("first window closes on the sample after it")
	}
	if lo, hi := tr.Committed(); lo != 0.1 || hi != 0.9 {
		t.Fatalf("Committed() = (%g, %g), want (0.1, 0.9)", lo, hi)
	}
	assertBoundaries(t, tr.Boundaries(), []float64{0.1, 0.5, 0.9})

	if got, _ := tr.Classify(0.5); got != 0 {
		t.Fatalf("Classify(0.5) = %d, want 0 (shared boundary goes low)", got)
	}

	tr.Sample(0.5)
	if tr.Bootstrapping() {
		t.Fatal("tracker should leave bootstrap on the boundary sample")
	}
	if got, _ := tr.Classify(0.5); got != 0 {
		t.Fatalf("Classify(0.5) after boundary sample = %d, want 0", got)
	}
	if lo, hi := tr.Pending(); lo != 0.5 || hi != 0.5 {
		t.Fatalf("Pending() = (%g, %g), want boundary sample to seed the window", lo, hi)
	}
}

func TestTracker_BoundarySampleWidensFirstCommit(t *testing.T) {
	tr := newTestTracker(t, 4, 2)

	var calibrations []Calibration
	tr.OnRecalibrate(func(c Calibration) {
		calibrations = append(calibrations, c)
	})

	feed(tr, 0.1, 0.5, 0.9, 0.3, 1.0)

	if lo, hi := tr.Committed(); lo != 0.1 || hi != 1.0 {
		t.Fatalf("Committed() = (%g, %g), want (0.1, 1.0)", lo, hi)
	}
	assertBoundaries(t, tr.Boundaries(), []float64{0.1, 0.55, 1.0})
	if got, _ := tr.Classify(1.0); got != 1 {
		t.Fatalf("Classify(1.0) = %d, want 1", got)
	}
	if lo, hi := tr.Pending(); lo != 1.0 || hi != 1.0 {
		t.Fatalf("Pending() = (%g, %g), want (1, 1)", lo, hi)
	}

	// first sample, 0.5, 0.9, then one for the boundary sample
	if len(calibrations) != 4 {
		t.Fatalf("expected 4 calibrations, got %d", len(calibrations))
	}
	if c := calibrations[3]; c.Bootstrap || c.Max != 1.0 {
		t.Fatalf("unexpected boundary calibration %+v", c)
	}
}

func TestTracker_WindowCommitMatchesTrueRange(t *testing.T) {
	samples := []float64{0.31, 0.07, 0.52, 0.18, 0.44, 0.09, 0.61, 0.25}
	tr := newTestTracker(t, len(samples), 10)

	feed(tr, samples...)

	wantLo, wantHi := math.Inf(1), math.Inf(-1)
	for _, v := range samples {
		wantLo = math.Min(wantLo, v)
		wantHi = math.Max(wantHi, v)
	}
	if lo, hi := tr.Committed(); lo != wantLo || hi != wantHi {
		t.Fatalf("Committed() = (%g, %g), want (%g, %g)", lo, hi, wantLo, wantHi)
	}
}

func TestTracker_SteadyStateCommitsOncePerWindow(t *testing.T) {
	tr := newTestTracker(t, 3, 5)

	var calibrations []Calibration
	tr.OnRecalibrate(func(c Calibration) {
		calibrations = append(calibrations, c)
	})

	feed(tr, 0.2, 0.4, 0.3) // bootstrap: first sample + new max
	if len(calibrations) != 2 {
		t.Fatalf("expected 2 bootstrap calibrations, got %d", len(calibrations))
	}

	// Boundary sample widens the bootstrap range, commits it and seeds the
	// next window, with a single recalibration.
	tr.Sample(0.6)
	if len(calibrations) != 3 {
		t.Fatalf("expected 3 calibrations, got %d", len(calibrations))
	}
	if c := calibrations[2]; c.Min != 0.2 || c.Max != 0.6 || c.Bootstrap {
		t.Fatalf("unexpected calibration %+v", c)
	}

	// Expansion inside a window never recalibrates.
	feed(tr, 0.1, 0.5)
	if len(calibrations) != 3 {
		t.Fatalf("pending expansion recalibrated: %d", len(calibrations))
	}
	if lo, hi := tr.Committed(); lo != 0.2 || hi != 0.6 {
		t.Fatalf("committed range moved before window end: (%g, %g)", lo, hi)
	}

	tr.Sample(0.3)
	if len(calibrations) != 4 {
		t.Fatalf("expected 4 calibrations, got %d", len(calibrations))
	}
	if c := calibrations[3]; c.Min != 0.1 || c.Max != 0.6 {
		t.Fatalf("window commit = (%g, %g), want (0.1, 0.6)", c.Min, c.Max)
	}

	// Next window holds 0.3 (seed), 0.35, 0.32.
	feed(tr, 0.35, 0.32, 0.9)
	if c := calibrations[len(calibrations)-1]; c.Min != 0.3 || c.Max != 0.35 {
		t.Fatalf("window commit = (%g, %g), want (0.3, 0.35)", c.Min, c.Max)
	}
	if tr.Recalibrations() != uint64(len(calibrations)) {
		t.Fatalf("Recalibrations() = %d, callbacks = %d", tr.Recalibrations(), len(calibrations))
	}
}

func TestTracker_RecalibratesEveryWindowSizeSamples(t *testing.T) {
	const window = 5
	tr := newTestTracker(t, window, 4)

	// Constant input: only the first bootstrap sample triggers there.
	for range window {
		tr.Sample(0.2)
	}
	base := tr.Recalibrations()

	for i := 0; i < 4*window; i++ {
		tr.Sample(0.2 + float64(i%3)*0.01)
	}
	if got := tr.Recalibrations() - base; got != 4 {
		t.Fatalf("expected 4 window recalibrations, got %d", got)
	}
}

func TestTracker_ConstantStreamIsDegenerate(t *testing.T) {
	const (
		c   = 0.25
		eps = 1e-9
	)
	tr := newTestTracker(t, 6, 10)

	for range 6 {
		tr.Sample(c)
	}

	if lo, hi := tr.Committed(); lo != c || hi != c {
		t.Fatalf("Committed() = (%g, %g), want (%g, %g)", lo, hi, c, c)
	}
	if got, _ := tr.Classify(c); got != 0 {
		t.Errorf("Classify(c) = %d, want 0", got)
	}
	if got, _ := tr.Classify(c + eps); got != 10 {
		t.Errorf("Classify(c+eps) = %d, want 10", got)
	}
	if got, _ := tr.Classify(c - eps); got != 0 {
		t.Errorf("Classify(c-eps) = %d, want 0", got)
	}
}

func TestTracker_WindowOfOne(t *testing.T) {
	tr := newTestTracker(t, 1, 3)

	// From the third sample on the table holds only the previous sample,
	// so the value just fed is classified against its predecessor.
	steps := []struct {
		v      float64
		lo, hi float64
		want   int
	}{
		{0.4, 0.4, 0.4, 0}, // first sample calibrates on itself
		{0.1, 0.1, 0.4, 0}, // closes the first window, folding itself in
		{0.8, 0.1, 0.1, 3},
		{0.3, 0.8, 0.8, 0},
		{0.3, 0.3, 0.3, 0},
	}

	for i, s := range steps {
		tr.Sample(s.v)

		if lo, hi := tr.Committed(); lo != s.lo || hi != s.hi {
			t.Fatalf("step %d: Committed() = (%g, %g), want (%g, %g)", i, lo, hi, s.lo, s.hi)
		}
		if got, _ := tr.Classify(s.v); got != s.want {
			t.Fatalf("step %d: Classify(%g) = %d, want %d", i, s.v, got, s.want)
		}
	}
	if tr.Recalibrations() != uint64(len(steps)) {
		t.Fatalf("Recalibrations() = %d, want one per sample", tr.Recalibrations())
	}
}

func TestTracker_ClassifyDoesNotMutate(t *testing.T) {
	tr := newTestTracker(t, 3, 4)
	feed(tr, 0.1, 0.9, 0.5, 0.2)

	before := tr.Boundaries()
	count := tr.Recalibrations()
	lo, hi := tr.Pending()

	for _, v := range []float64{-1, 0.3, 0.7, 5} {
		_, _ = tr.Classify(v)
	}

	assertBoundaries(t, tr.Boundaries(), before)
	if tr.Recalibrations() != count {
		t.Fatal("Classify triggered a recalibration")
	}
	if plo, phi := tr.Pending(); plo != lo || phi != hi {
		t.Fatal("Classify changed the pending window")
	}
}

func TestTracker_IgnoresNonFiniteSamples(t *testing.T) {
	tr := newTestTracker(t, 3, 2)
	feed(tr, math.NaN(), math.Inf(1), 0.2, math.Inf(-1), 0.6)

	if lo, hi := tr.Committed(); lo != 0.2 || hi != 0.6 {
		t.Fatalf("Committed() = (%g, %g), want (0.2, 0.6)", lo, hi)
	}
	if !tr.Bootstrapping() {
		t.Fatal("non-finite samples should not count toward the window")
	}
}

func TestWindowSizeFor(t *testing.T) {
	tests := []struct {
		averaging, block time.Duration
		want             int
	}{
		{500 * time.Millisecond, 20 * time.Millisecond, 25},
		{10 * time.Second, 20 * time.Millisecond, 500},
		{10 * time.Millisecond, 20 * time.Millisecond, 1},
		{time.Second, 0, 1},
	}

	for _, tt := range tests {
		if got := WindowSizeFor(tt.averaging, tt.block); got != tt.want {
			t.Errorf("WindowSizeFor(%v, %v) = %d, want %d", tt.averaging, tt.block, got, tt.want)
		}
	}
}

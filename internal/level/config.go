package level

import "time"

const (
	DefaultIntervals  = 10
	DefaultWindowSize = 25
)

// Config fixes the shape of a Tracker for its lifetime.
type Config struct {
	// Intervals is the number of equal-width classification buckets.
	Intervals int
	// WindowSize is the number of samples per recalibration window.
	WindowSize int
}

// DefaultConfig returns ten intervals over a 0.5s window of 20ms blocks.
func DefaultConfig() Config {
	return Config{
		Intervals:  DefaultIntervals,
		WindowSize: DefaultWindowSize,
	}
}

// WindowSizeFor converts an averaging duration into a sample count for the
// given block duration. The result is never below 1.
func WindowSizeFor(averaging, block time.Duration) int {
	if block <= 0 {
		return 1
	}
	n := int(averaging / block)
	if n < 1 {
		return 1
	}
	return n
}

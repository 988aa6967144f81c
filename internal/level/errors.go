package level

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidConfig is the root of every construction-time rejection.
	ErrInvalidConfig = errors.New("invalid level configuration")

	ErrInvalidIntervals = fmt.Errorf("%w: interval count must be at least 1", ErrInvalidConfig)
	ErrInvalidWindow    = fmt.Errorf("%w: window size must be at least 1", ErrInvalidConfig)

	// ErrInconsistentTable is returned by Classify when no interval matches,
	// which only happens for a non-monotonic boundary table.
	ErrInconsistentTable = errors.New("no interval matches value")

	ErrInvalidValue = errors.New("value is not a number")
)

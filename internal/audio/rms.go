package audio

import "math"

// shortNormalize maps an int16 sample onto [-1, 1).
const shortNormalize = 1.0 / 32768.0

// RMS returns the root-mean-square amplitude of a block, normalized so a
// full-scale square wave reads 1. An empty block reads 0.
func RMS(block []int16) float64 {
	if len(block) == 0 {
		return 0
	}

	var sumSquares float64
	for _, s := range block {
		n := float64(s) * shortNormalize
		sumSquares += n * n
	}

	return math.Sqrt(sumSquares / float64(len(block)))
}

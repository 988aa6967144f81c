package audio

import (
	"context"
	"errors"
)

var (
	ErrNotWAV            = errors.New("not a WAV file")
	ErrUnsupportedFormat = errors.New("only integer PCM WAV files are supported")
	ErrDeviceNotFound    = errors.New("input device not found")
)

// Capture delivers fixed-size blocks of interleaved int16 samples. Start
// returns once the stream is running; out is closed when the stream ends.
type Capture interface {
	Start(ctx context.Context, out chan<- []int16) error
	Stop() error
	Close() error
}

// AudioDevice represents an audio input device
type AudioDevice struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Default bool   `json:"default"`
}

package audio

import (
	"context"
	"fmt"
	"os"

	goaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

// WAVSource replays a PCM WAV file as a stream of int16 blocks, as fast as
// the consumer takes them.
type WAVSource struct {
	f              *os.File
	dec            *wav.Decoder
	framesPerBlock int
}

// NewWAVSource opens and validates a WAV file.
func NewWAVSource(path string, framesPerBlock int) (*WAVSource, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}

	dec := wav.NewDecoder(f)
	if !dec.IsValidFile() {
		_ = f.Close()
		return nil, fmt.Errorf("%w: %s", ErrNotWAV, path)
	}
	if dec.WavAudioFormat != 1 {
		_ = f.Close()
		return nil, fmt.Errorf("%w: format %d", ErrUnsupportedFormat, dec.WavAudioFormat)
	}

	return &WAVSource{
		f:              f,
		dec:            dec,
		framesPerBlock: framesPerBlock,
	}, nil
}

// SampleRate returns the file's sample rate.
func (s *WAVSource) SampleRate() int {
	return int(s.dec.SampleRate)
}

// Channels returns the file's channel count.
func (s *WAVSource) Channels() int {
	return int(s.dec.NumChans)
}

func (s *WAVSource) Start(ctx context.Context, out chan<- []int16) error {
	channels := s.Channels()
	bitDepth := int(s.dec.BitDepth)

	buf := &goaudio.IntBuffer{
		Format:         s.dec.Format(),
		Data:           make([]int, s.framesPerBlock*channels),
		SourceBitDepth: bitDepth,
	}

	go func() {
		defer close(out)
		for {
			if ctx.Err() != nil {
				return
			}
			n, err := s.dec.PCMBuffer(buf)
			if n == 0 || err != nil {
				return
			}

			block := make([]int16, n)
			for i, v := range buf.Data[:n] {
				block[i] = toInt16(v, bitDepth)
			}

			select {
			case out <- block:
			case <-ctx.Done():
				return
			}
		}
	}()

	return nil
}

func (s *WAVSource) Stop() error {
	return nil
}

func (s *WAVSource) Close() error {
	return s.f.Close()
}

// toInt16 rescales a decoded PCM sample of the given bit depth.
func toInt16(v, bitDepth int) int16 {
	switch bitDepth {
	case 8:
		return int16((v - 128) << 8)
	case 24:
		return int16(v >> 8)
	case 32:
		return int16(v >> 16)
	default:
		return int16(v)
	}
}

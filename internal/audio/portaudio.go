package audio

import (
	"context"
	"fmt"
	"sync/atomic"

	"github.com/gordonklaus/portaudio"
	"github.com/rs/zerolog"

	"github.com/petems/tapmeter/internal/config"
)

// About two seconds of failed 20ms reads.
const maxConsecutiveReadErrors = 100

// PortAudioCapture reads int16 blocks from a microphone.
type PortAudioCapture struct {
	cfg            config.AudioConfig
	framesPerBlock int
	log            zerolog.Logger

	stream     *portaudio.Stream
	readErrors atomic.Int64
}

// NewPortAudio initializes PortAudio. framesPerBlock is the number of
// frames per delivered block; each block holds framesPerBlock*channels
// samples.
func NewPortAudio(cfg config.AudioConfig, framesPerBlock int, log zerolog.Logger) (*PortAudioCapture, error) {
	if err := portaudio.Initialize(); err != nil {
		return nil, fmt.Errorf("failed to initialize PortAudio: %w", err)
	}
	return &PortAudioCapture{
		cfg:            cfg,
		framesPerBlock: framesPerBlock,
		log:            log,
	}, nil
}

func (p *PortAudioCapture) Start(ctx context.Context, out chan<- []int16) error {
	device, err := p.findDevice()
	if err != nil {
		return err
	}

	channels := p.cfg.Channels
	if channels > device.MaxInputChannels {
		p.log.Warn().
			Str("device", device.Name).
			Int("requested", channels).
			Int("available", device.MaxInputChannels).
			Msg("Device has fewer channels than configured")
		channels = device.MaxInputChannels
	}

	buffer := make([]int16, p.framesPerBlock*channels)
	stream, err := portaudio.OpenStream(portaudio.StreamParameters{
		Input: portaudio.StreamDeviceParameters{
			Device:   device,
			Channels: channels,
			Latency:  device.DefaultLowInputLatency,
		},
		SampleRate:      float64(p.cfg.SampleRate),
		FramesPerBuffer: p.framesPerBlock,
	}, buffer)
	if err != nil {
		return fmt.Errorf("failed to open audio stream: %w", err)
	}

	p.stream = stream

	if err := stream.Start(); err != nil {
		stream.Close()
		return fmt.Errorf("failed to start audio stream: %w", err)
	}

	p.log.Info().
		Str("device", device.Name).
		Int("channels", channels).
		Int("sample_rate", p.cfg.SampleRate).
		Int("frames_per_block", p.framesPerBlock).
		Msg("Listening")

	go func() {
		defer stream.Close()
		p.readLoop(ctx, stream.Read, buffer, out)
	}()

	return nil
}

// readLoop reads blocks into buffer and sends copies to out until ctx is
// done. Read errors are counted and skipped; maxConsecutiveReadErrors in a
// row end the stream.
func (p *PortAudioCapture) readLoop(ctx context.Context, read func() error, buffer []int16, out chan<- []int16) {
	defer close(out)

	consecutive := 0
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		if err := read(); err != nil {
			count := p.readErrors.Add(1)
			consecutive++
			p.log.Warn().Err(err).Int64("count", count).Msg("Error recording")
			if consecutive >= maxConsecutiveReadErrors {
				p.log.Error().Int("consecutive", consecutive).Msg("Giving up on audio stream")
				return
			}
			continue
		}
		consecutive = 0

		// Copy buffer and send
		block := make([]int16, len(buffer))
		copy(block, buffer)

		select {
		case out <- block:
		case <-ctx.Done():
			return
		default:
			// Drop if channel full (backpressure)
		}
	}
}

func (p *PortAudioCapture) findDevice() (*portaudio.DeviceInfo, error) {
	devices, err := portaudio.Devices()
	if err != nil {
		return nil, fmt.Errorf("failed to enumerate devices: %w", err)
	}

	device, err := SelectInputDevice(devices, p.cfg.DeviceID)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", err, p.cfg.DeviceID)
	}
	if device != nil {
		p.log.Info().Str("device", device.Name).Msg("Found an input")
		return device, nil
	}

	p.log.Info().Msg("No preferred input found; using default input device")
	device, err = portaudio.DefaultInputDevice()
	if err != nil {
		return nil, fmt.Errorf("failed to get default input device: %w", err)
	}
	return device, nil
}

// ReadErrors returns how many block reads have failed so far.
func (p *PortAudioCapture) ReadErrors() int64 {
	return p.readErrors.Load()
}

func (p *PortAudioCapture) Stop() error {
	if p.stream != nil {
		return p.stream.Stop()
	}
	return nil
}

// ListDevices returns the input-capable devices.
func (p *PortAudioCapture) ListDevices() ([]AudioDevice, error) {
	devices, err := portaudio.Devices()
	if err != nil {
		return nil, fmt.Errorf("failed to list devices: %w", err)
	}
	defaultDevice, _ := portaudio.DefaultInputDevice()
	return inputDevices(devices, defaultDevice), nil
}

func (p *PortAudioCapture) Close() error {
	return portaudio.Terminate()
}

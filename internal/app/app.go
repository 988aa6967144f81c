package app

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/petems/tapmeter/internal/audio"
	"github.com/petems/tapmeter/internal/level"
)

// Reading is the classification of one audio block.
type Reading struct {
	At        time.Time `json:"at"`
	Amplitude float64   `json:"amplitude"`
	Level     int       `json:"level"`
	Intervals int       `json:"intervals"`
}

// Reporter receives every reading, on the listening goroutine.
type Reporter interface {
	Report(r Reading)
}

// CalibrationReporter is implemented by reporters that also want to see
// every recalibration.
type CalibrationReporter interface {
	ReportCalibration(at time.Time, c level.Calibration)
}

// StatusReporter is implemented by reporters that track pause state.
type StatusReporter interface {
	ReportStatus(paused bool)
}

// StatusUpdater is an interface for updating status (e.g., tray icon)
type StatusUpdater interface {
	SetListening()
	SetPaused()
	SetError()
}

type Config struct {
	Capture       audio.Capture
	Tracker       *level.Tracker
	Logger        zerolog.Logger
	Reporters     []Reporter
	StatusUpdater StatusUpdater // Optional - can be nil
	Now           func() time.Time
}

// Status is a snapshot of the listener for diagnostics.
type Status struct {
	Paused      bool               `json:"paused"`
	Listening   bool               `json:"listening"`
	Bootstrap   bool               `json:"bootstrap"`
	LastReading *Reading           `json:"last_reading,omitempty"`
	Calibration *level.Calibration `json:"calibration,omitempty"`
}

// App drives the tracker from a capture stream. The tracker is only ever
// touched by the goroutine running Run.
type App struct {
	capture   audio.Capture
	tracker   *level.Tracker
	log       zerolog.Logger
	reporters []Reporter
	status    StatusUpdater
	now       func() time.Time

	mu          sync.Mutex
	paused      bool
	listening   bool
	bootstrap   bool
	last        *Reading
	calibration *level.Calibration
}

func New(cfg Config) *App {
	now := cfg.Now
	if now == nil {
		now = time.Now
	}

	a := &App{
		capture:   cfg.Capture,
		tracker:   cfg.Tracker,
		log:       cfg.Logger,
		reporters: cfg.Reporters,
		status:    cfg.StatusUpdater,
		now:       now,
		bootstrap: true,
	}

	a.tracker.OnRecalibrate(a.onRecalibrate)
	return a
}

// Run listens until ctx is done or the capture stream ends.
func (a *App) Run(ctx context.Context) error {
	// Bounded block buffer
	blocks := make(chan []int16, 8)

	if err := a.capture.Start(ctx, blocks); err != nil {
		if a.status != nil {
			a.status.SetError()
		}
		return fmt.Errorf("start capture: %w", err)
	}

	a.setListening(true)
	defer a.setListening(false)

	a.log.Info().
		Int("intervals", a.tracker.Intervals()).
		Int("window", a.tracker.WindowSize()).
		Msg("Listening for levels")

	for {
		select {
		case <-ctx.Done():
			return nil
		case block, ok := <-blocks:
			if !ok {
				a.log.Info().Msg("Capture stream ended")
				return nil
			}
			a.process(block)
		}
	}
}

func (a *App) process(block []int16) {
	if a.IsPaused() {
		return
	}

	amplitude := audio.RMS(block)
	a.tracker.Sample(amplitude)

	n, err := a.tracker.Classify(amplitude)
	if err != nil {
		a.log.Warn().Err(err).Float64("amplitude", amplitude).Msg("Classification failed")
		return
	}

	reading := Reading{
		At:        a.now(),
		Amplitude: amplitude,
		Level:     n,
		Intervals: a.tracker.Intervals(),
	}

	a.mu.Lock()
	a.last = &reading
	a.bootstrap = a.tracker.Bootstrapping()
	a.mu.Unlock()

	for _, r := range a.reporters {
		r.Report(reading)
	}
}

func (a *App) onRecalibrate(c level.Calibration) {
	a.log.Debug().
		Float64("min", c.Min).
		Float64("max", c.Max).
		Bool("bootstrap", c.Bootstrap).
		Msg("Recalibrated")

	a.mu.Lock()
	a.calibration = &c
	a.mu.Unlock()

	at := a.now()
	for _, r := range a.reporters {
		if cr, ok := r.(CalibrationReporter); ok {
			cr.ReportCalibration(at, c)
		}
	}
}

func (a *App) setListening(listening bool) {
	a.mu.Lock()
	a.listening = listening
	paused := a.paused
	a.mu.Unlock()

	if a.status == nil {
		return
	}
	switch {
	case !listening:
		a.status.SetPaused()
	case paused:
		a.status.SetPaused()
	default:
		a.status.SetListening()
	}
}

// Pause stops feeding blocks to the tracker; they are drained and dropped.
func (a *App) Pause() {
	a.setPaused(true)
}

// Resume feeds blocks to the tracker again.
func (a *App) Resume() {
	a.setPaused(false)
}

func (a *App) setPaused(paused bool) {
	a.mu.Lock()
	if a.paused == paused {
		a.mu.Unlock()
		return
	}
	a.paused = paused
	a.mu.Unlock()

	if paused {
		a.log.Info().Msg("Paused")
	} else {
		a.log.Info().Msg("Resumed")
	}

	if a.status != nil {
		if paused {
			a.status.SetPaused()
		} else {
			a.status.SetListening()
		}
	}
	for _, r := range a.reporters {
		if sr, ok := r.(StatusReporter); ok {
			sr.ReportStatus(paused)
		}
	}
}

func (a *App) IsPaused() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.paused
}

// LastReading returns the most recent reading, if any.
func (a *App) LastReading() (Reading, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.last == nil {
		return Reading{}, false
	}
	return *a.last, true
}

// Calibration returns the most recent calibration, if any.
func (a *App) Calibration() (level.Calibration, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.calibration == nil {
		return level.Calibration{}, false
	}
	return *a.calibration, true
}

func (a *App) Status() Status {
	a.mu.Lock()
	defer a.mu.Unlock()

	s := Status{
		Paused:    a.paused,
		Listening: a.listening,
		Bootstrap: a.bootstrap,
	}
	if a.last != nil {
		r := *a.last
		s.LastReading = &r
	}
	if a.calibration != nil {
		c := *a.calibration
		s.Calibration = &c
	}
	return s
}

// Shutdown stops the capture stream.
func (a *App) Shutdown(ctx context.Context) error {
	return a.capture.Stop()
}

package tray

import (
	"fmt"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/atotto/clipboard"
	"github.com/getlantern/systray"
	"github.com/rs/zerolog"

	"github.com/petems/tapmeter/internal/app"
	"github.com/petems/tapmeter/internal/level"
)

// Minimum time between meter redraws.
const redrawInterval = 100 * time.Millisecond

// Controller is the part of the listener the menu drives.
type Controller interface {
	Pause()
	Resume()
	IsPaused() bool
	Calibration() (level.Calibration, bool)
}

type UI struct {
	ctrl    Controller
	version string
	log     zerolog.Logger

	// Swapped in tests.
	setTitle     func(string)
	copyText     func(string) error
	now          func() time.Time
	ready        atomic.Bool
	mu           sync.Mutex
	status       string
	meter        string
	lastRedraw   time.Time
	mPauseResume *systray.MenuItem
}

func New(ctrl Controller, version string, log zerolog.Logger) *UI {
	return &UI{
		ctrl:     ctrl,
		version:  version,
		log:      log,
		setTitle: systray.SetTitle,
		copyText: clipboard.WriteAll,
		now:      time.Now,
		status:   "idle",
	}
}

// SetController sets the controller reference (for circular dependency resolution)
func (u *UI) SetController(ctrl Controller) {
	u.ctrl = ctrl
}

// Status update methods for the app to call
func (u *UI) SetListening() {
	u.updateStatus("listening")
}

func (u *UI) SetPaused() {
	u.updateStatus("paused")
}

func (u *UI) SetError() {
	u.updateStatus("error")
}

// Report redraws the meter, at most once per redrawInterval.
func (u *UI) Report(r app.Reading) {
	now := u.now()

	u.mu.Lock()
	if !u.lastRedraw.IsZero() && now.Sub(u.lastRedraw) < redrawInterval {
		u.mu.Unlock()
		return
	}
	u.lastRedraw = now
	u.meter = meter(r.Level, r.Intervals)
	u.mu.Unlock()

	u.redraw()
}

// Run blocks on the tray event loop. It must be called from the main
// goroutine; onExit runs after Quit.
func (u *UI) Run(onExit func()) {
	systray.Run(u.onReady, func() {
		if onExit != nil {
			onExit()
		}
	})
}

func (u *UI) onReady() {
	u.ready.Store(true)
	u.redraw()
	systray.SetTooltip("Adaptive audio level meter")

	u.mPauseResume = systray.AddMenuItem("Pause", "Stop sampling audio")
	mCopy := systray.AddMenuItem("Copy Calibration", "Copy interval boundaries to clipboard")
	systray.AddSeparator()
	mAbout := systray.AddMenuItem(fmt.Sprintf("tapmeter %s", u.version), "")
	mAbout.Disable()
	mQuit := systray.AddMenuItem("Quit", "Exit application")

	go u.handleEvents(mCopy, mQuit)
}

func (u *UI) handleEvents(mCopy, mQuit *systray.MenuItem) {
	for {
		select {
		case <-u.mPauseResume.ClickedCh:
			u.togglePause()
		case <-mCopy.ClickedCh:
			if err := u.copyCalibration(); err != nil {
				u.log.Error().Err(err).Msg("Failed to copy calibration")
			}
		case <-mQuit.ClickedCh:
			systray.Quit()
			return
		}
	}
}

func (u *UI) togglePause() {
	if u.ctrl.IsPaused() {
		u.ctrl.Resume()
		u.setMenuTitle("Pause")
	} else {
		u.ctrl.Pause()
		u.setMenuTitle("Resume")
	}
}

func (u *UI) setMenuTitle(title string) {
	if u.mPauseResume != nil {
		u.mPauseResume.SetTitle(title)
	}
}

func (u *UI) copyCalibration() error {
	c, ok := u.ctrl.Calibration()
	if !ok {
		return fmt.Errorf("no calibration yet")
	}
	if err := u.copyText(formatCalibration(c)); err != nil {
		return fmt.Errorf("write clipboard: %w", err)
	}
	u.log.Info().Int("boundaries", len(c.Boundaries)).Msg("Copied calibration to clipboard")
	return nil
}

// updateStatus sets the status emoji and redraws
func (u *UI) updateStatus(status string) {
	u.mu.Lock()
	u.status = status
	if status != "listening" {
		u.meter = ""
	}
	u.mu.Unlock()

	u.redraw()
}

func (u *UI) redraw() {
	if !u.ready.Load() {
		return
	}

	u.mu.Lock()
	title := fmt.Sprintf("🎤 %s", emojiForStatus(u.status))
	if u.meter != "" {
		title += " " + u.meter
	}
	u.mu.Unlock()

	u.setTitle(title)
}

// emojiForStatus returns the appropriate status emoji
func emojiForStatus(status string) string {
	switch status {
	case "listening":
		return "🟢"
	case "paused":
		return "🟡"
	case "error":
		return "⚪️"
	default:
		return "🟢"
	}
}

// meter renders level+1 filled cells out of intervals+1.
func meter(lvl, intervals int) string {
	if intervals < 0 {
		intervals = 0
	}
	filled := min(max(lvl+1, 1), intervals+1)
	return strings.Repeat("▮", filled) + strings.Repeat("▯", intervals+1-filled)
}

// formatCalibration renders boundaries as a comma separated list.
func formatCalibration(c level.Calibration) string {
	parts := make([]string, len(c.Boundaries))
	for i, b := range c.Boundaries {
		parts[i] = strconv.FormatFloat(b, 'g', -1, 64)
	}
	return strings.Join(parts, ",")
}

// Quit stops the tray event loop; Run returns after onExit.
func (u *UI) Quit() {
	systray.Quit()
}

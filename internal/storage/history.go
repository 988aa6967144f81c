package storage

import (
	"time"

	"github.com/rs/zerolog"

	"github.com/petems/tapmeter/internal/app"
	"github.com/petems/tapmeter/internal/level"
)

// History records readings and calibrations as an app reporter. Write
// failures are logged and never stop the listener.
type History struct {
	store *SQLiteStore
	log   zerolog.Logger
}

func NewHistory(store *SQLiteStore, log zerolog.Logger) *History {
	return &History{store: store, log: log}
}

func (h *History) Report(r app.Reading) {
	if err := h.store.AppendReading(r); err != nil {
		h.log.Error().Err(err).Msg("Failed to record reading")
	}
}

func (h *History) ReportCalibration(at time.Time, c level.Calibration) {
	if err := h.store.AppendCalibration(at, c); err != nil {
		h.log.Error().Err(err).Msg("Failed to record calibration")
	}
}

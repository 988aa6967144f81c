package server

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/petems/tapmeter/internal/app"
	"github.com/petems/tapmeter/internal/level"
)

// Hub fans events out to websocket subscribers. Slow subscribers miss
// messages rather than stall the listener.
type Hub struct {
	log zerolog.Logger

	mu      sync.RWMutex
	clients map[chan []byte]struct{}
}

func NewHub(log zerolog.Logger) *Hub {
	return &Hub{log: log, clients: make(map[chan []byte]struct{})}
}

func (h *Hub) Subscribe() chan []byte {
	ch := make(chan []byte, 64)
	h.mu.Lock()
	h.clients[ch] = struct{}{}
	h.mu.Unlock()
	return ch
}

func (h *Hub) Unsubscribe(ch chan []byte) {
	h.mu.Lock()
	if _, ok := h.clients[ch]; ok {
		delete(h.clients, ch)
		close(ch)
	}
	h.mu.Unlock()
}

// Subscribers returns the number of connected subscribers.
func (h *Hub) Subscribers() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

func (h *Hub) Broadcast(msg []byte) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for ch := range h.clients {
		select {
		case ch <- msg:
		default:
		}
	}
}

// Report implements app.Reporter.
func (h *Hub) Report(r app.Reading) {
	h.broadcastEvent(ReadingEvent{
		Event:     newEvent("reading", r.At),
		Amplitude: r.Amplitude,
		Level:     r.Level,
		Intervals: r.Intervals,
	})
}

// ReportCalibration implements app.CalibrationReporter.
func (h *Hub) ReportCalibration(at time.Time, c level.Calibration) {
	h.broadcastEvent(CalibrationEvent{
		Event:      newEvent("calibration", at),
		Min:        c.Min,
		Max:        c.Max,
		Boundaries: c.Boundaries,
		Bootstrap:  c.Bootstrap,
	})
}

// ReportStatus implements app.StatusReporter.
func (h *Hub) ReportStatus(paused bool) {
	h.broadcastEvent(StatusChangedEvent{
		Event:  newEvent("status_changed", time.Now().UTC()),
		Paused: paused,
	})
}

func (h *Hub) broadcastEvent(event any) {
	payload, err := json.Marshal(event)
	if err != nil {
		h.log.Error().Err(err).Msg("Event marshal failed")
		return
	}
	h.Broadcast(payload)
}

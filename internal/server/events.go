package server

import "time"

const EventVersion = 1

type Event struct {
	Type      string `json:"type"`
	Version   int    `json:"version"`
	Timestamp string `json:"timestamp"`
}

type ReadingEvent struct {
	Event
	Amplitude float64 `json:"amplitude"`
	Level     int     `json:"level"`
	Intervals int     `json:"intervals"`
}

type CalibrationEvent struct {
	Event
	Min        float64   `json:"min"`
	Max        float64   `json:"max"`
	Boundaries []float64 `json:"boundaries"`
	Bootstrap  bool      `json:"bootstrap"`
}

type StatusChangedEvent struct {
	Event
	Paused bool `json:"paused"`
}

type ConnectionEvent struct {
	Event
	Connected bool `json:"connected"`
}

func newEvent(eventType string, now time.Time) Event {
	if now.IsZero() {
		now = time.Now().UTC()
	}
	return Event{
		Type:      eventType,
		Version:   EventVersion,
		Timestamp: now.UTC().Format(time.RFC3339Nano),
	}
}

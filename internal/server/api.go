package server

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"

	"github.com/petems/tapmeter/internal/app"
)

const maxReadingsLimit = 1000

// ReadingStore serves reading history. A nil store disables /api/readings.
type ReadingStore interface {
	RecentReadings(limit int) ([]app.Reading, error)
}

func registerAPIRoutes(mux *http.ServeMux, store ReadingStore, controls ControlHooks) {
	mux.HandleFunc("GET /api/status", func(w http.ResponseWriter, r *http.Request) {
		var status app.Status
		if controls.Status != nil {
			status = controls.Status()
		}
		writeJSON(w, http.StatusOK, status)
	})

	mux.HandleFunc("GET /api/readings", func(w http.ResponseWriter, r *http.Request) {
		if store == nil {
			writeJSONError(w, http.StatusNotFound, "history disabled")
			return
		}

		limit := 100
		if raw := r.URL.Query().Get("limit"); raw != "" {
			n, err := strconv.Atoi(raw)
			if err != nil || n < 1 {
				writeJSONError(w, http.StatusBadRequest, "invalid limit")
				return
			}
			limit = min(n, maxReadingsLimit)
		}

		readings, err := store.RecentReadings(limit)
		if err != nil {
			writeJSONError(w, http.StatusInternalServerError, fmt.Sprintf("list readings: %v", err))
			return
		}
		if readings == nil {
			readings = []app.Reading{}
		}

		writeJSON(w, http.StatusOK, readings)
	})

	mux.HandleFunc("POST /api/pause", func(w http.ResponseWriter, r *http.Request) {
		if controls.Pause != nil {
			controls.Pause()
		}
		w.WriteHeader(http.StatusNoContent)
	})

	mux.HandleFunc("POST /api/resume", func(w http.ResponseWriter, r *http.Request) {
		if controls.Resume != nil {
			controls.Resume()
		}
		w.WriteHeader(http.StatusNoContent)
	})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeJSONError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

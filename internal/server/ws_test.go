package server

import (
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/petems/tapmeter/internal/app"
)

func readEvent(t *testing.T, conn *websocket.Conn) map[string]any {
	t.Helper()

	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, msg, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("read failed: %v", err)
	}
	var payload map[string]any
	if err := json.Unmarshal(msg, &payload); err != nil {
		t.Fatalf("unmarshal failed: %v", err)
	}
	return payload
}

func TestWSStreamsReadings(t *testing.T) {
	hub := NewHub(zerolog.Nop())
	srv := httptest.NewServer(Handler(hub, nil, ControlHooks{}, zerolog.Nop()))
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial failed: %v", err)
	}
	defer func() { _ = conn.Close() }()

	if payload := readEvent(t, conn); payload["type"] != "connection" || payload["connected"] != true {
		t.Fatalf("unexpected first event %v", payload)
	}

	// The handler subscribes after sending the connection event.
	deadline := time.Now().Add(2 * time.Second)
	for hub.Subscribers() == 0 {
		if time.Now().After(deadline) {
			t.Fatal("timeout waiting for subscriber")
		}
		time.Sleep(5 * time.Millisecond)
	}

	hub.Report(app.Reading{At: time.Now(), Amplitude: 0.5, Level: 7, Intervals: 10})

	payload := readEvent(t, conn)
	if payload["type"] != "reading" || payload["level"] != float64(7) {
		t.Fatalf("unexpected reading event %v", payload)
	}
}

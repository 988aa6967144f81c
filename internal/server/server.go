package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/petems/tapmeter/internal/app"
)

// ControlHooks connect the HTTP surface to the listener.
type ControlHooks struct {
	Pause  func()
	Resume func()
	Status func() app.Status
}

func Handler(hub *Hub, store ReadingStore, controls ControlHooks, log zerolog.Logger) http.Handler {
	mux := http.NewServeMux()

	registerWSRoute(mux, hub, log)
	registerAPIRoutes(mux, store, controls)

	return mux
}

// Serve listens on addr until ctx is done.
func Serve(ctx context.Context, addr string, h http.Handler, log zerolog.Logger) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           h,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", addr).Msg("HTTP server listening")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		// Websocket handlers are hijacked and not tracked by Shutdown.
		return srv.Shutdown(shutdownCtx)
	}
}

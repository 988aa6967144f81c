package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/rs/zerolog"

	"github.com/petems/tapmeter/internal/app"
	"github.com/petems/tapmeter/internal/audio"
	"github.com/petems/tapmeter/internal/config"
	"github.com/petems/tapmeter/internal/level"
	"github.com/petems/tapmeter/internal/logging"
	"github.com/petems/tapmeter/internal/permissions"
	"github.com/petems/tapmeter/internal/report"
	"github.com/petems/tapmeter/internal/server"
	"github.com/petems/tapmeter/internal/storage"
	"github.com/petems/tapmeter/internal/tray"
)

var (
	// Version is set via ldflags at build time
	Version = "dev"
	// Commit is set via ldflags at build time
	Commit = "unknown"
)

func main() {
	var (
		configPath  = flag.String("config", "", "path to a JSON or YAML config file")
		input       = flag.String("input", "", "replay a PCM WAV file instead of capturing")
		listDevices = flag.Bool("list-devices", false, "list input devices and exit")
		quiet       = flag.Bool("quiet", false, "do not print the level bar to stdout")
		showVersion = flag.Bool("version", false, "print version and exit")
	)
	flag.Parse()

	if *showVersion {
		fmt.Printf("tapmeter %s (%s)\n", Version, Commit)
		return
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		// Use default logger if config fails to load
		log := logging.New()
		log.Fatal().Err(err).Msg("Failed to load config")
	}

	// Initialize logger with configured level
	log := logging.NewWithLevel(cfg.LogLevel)

	if *listDevices {
		if err := printDevices(cfg, log); err != nil {
			log.Fatal().Err(err).Msg("Failed to list devices")
		}
		return
	}

	capture, err := openCapture(cfg, *input, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize audio")
	}
	defer func() { _ = capture.Close() }()

	tracker, err := level.NewTracker(cfg.LevelConfig())
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize level tracker")
	}

	var reporters []app.Reporter
	if !*quiet {
		reporters = append(reporters, report.NewConsole(os.Stdout, cfg.BarGlyph))
	}

	var readings server.ReadingStore
	if cfg.History.DBPath != "" {
		store, err := storage.NewSQLiteStore(cfg.History.DBPath)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to open history database")
		}
		defer func() { _ = store.Close() }()

		reporters = append(reporters, storage.NewHistory(store, log))
		readings = store
		log.Info().Str("path", cfg.History.DBPath).Msg("Recording history")
	}

	var hub *server.Hub
	if cfg.Server.ListenAddr != "" {
		hub = server.NewHub(log)
		reporters = append(reporters, hub)
	}

	// Create tray UI first (we'll pass it to app)
	var (
		trayUI *tray.UI
		status app.StatusUpdater
	)
	if cfg.Tray {
		trayUI = tray.New(nil, Version, log) // Controller set below
		reporters = append(reporters, trayUI)
		status = trayUI
	}

	application := app.New(app.Config{
		Capture:       capture,
		Tracker:       tracker,
		Logger:        log,
		Reporters:     reporters,
		StatusUpdater: status,
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var wg sync.WaitGroup
	if hub != nil {
		h := server.Handler(hub, readings, server.ControlHooks{
			Pause:  application.Pause,
			Resume: application.Resume,
			Status: application.Status,
		}, log)

		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := server.Serve(ctx, cfg.Server.ListenAddr, h, log); err != nil {
				log.Error().Err(err).Msg("HTTP server stopped")
			}
		}()
	}

	log.Info().Str("version", Version).Msg("tapmeter starting...")

	if trayUI == nil {
		runErr := application.Run(ctx)
		stop()
		wg.Wait()
		if runErr != nil {
			log.Fatal().Err(runErr).Msg("Listener failed")
		}
		return
	}

	// Set controller reference in tray
	trayUI.SetController(application)

	go func() {
		if err := application.Run(ctx); err != nil {
			log.Error().Err(err).Msg("Listener failed")
		}
		trayUI.Quit()
	}()

	// Start tray UI - MUST run on main thread
	trayUI.Run(stop)

	log.Info().Msg("Shutting down...")
	if err := application.Shutdown(context.Background()); err != nil {
		log.Error().Err(err).Msg("Shutdown error")
	}
	wg.Wait()
}

func openCapture(cfg *config.Config, input string, log zerolog.Logger) (audio.Capture, error) {
	if input != "" {
		src, err := audio.NewWAVSource(input, cfg.FramesPerBlock())
		if err != nil {
			return nil, err
		}
		if src.SampleRate() != cfg.Audio.SampleRate {
			log.Warn().
				Int("file_rate", src.SampleRate()).
				Int("configured_rate", cfg.Audio.SampleRate).
				Msg("WAV sample rate differs from config; block timing follows the config")
		}
		return src, nil
	}

	if err := permissions.EnsureMicrophone(); err != nil {
		return nil, fmt.Errorf("microphone access: %w", err)
	}
	return audio.NewPortAudio(cfg.Audio, cfg.FramesPerBlock(), log)
}

func printDevices(cfg *config.Config, log zerolog.Logger) error {
	pa, err := audio.NewPortAudio(cfg.Audio, cfg.FramesPerBlock(), log)
	if err != nil {
		return err
	}
	defer func() { _ = pa.Close() }()

	devices, err := pa.ListDevices()
	if err != nil {
		return err
	}
	if len(devices) == 0 {
		return errors.New("no input devices found")
	}
	for _, d := range devices {
		marker := " "
		if d.Default {
			marker = "*"
		}
		fmt.Printf("%s %s\n", marker, d.Name)
	}
	return nil
}

package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/petems/tapmeter/internal/level"
)

// EnvPrefix namespaces every environment override.
const EnvPrefix = "TAPMETER_"

var ErrInvalid = errors.New("invalid configuration")

type Config struct {
	LogLevel string        `json:"log_level" yaml:"log_level"`
	Audio    AudioConfig   `json:"audio" yaml:"audio"`
	Levels   LevelsConfig  `json:"levels" yaml:"levels"`
	History  HistoryConfig `json:"history" yaml:"history"`
	Server   ServerConfig  `json:"server" yaml:"server"`
	Tray     bool          `json:"tray" yaml:"tray"`
	BarGlyph string        `json:"bar_glyph" yaml:"bar_glyph"`

	path string
}

type AudioConfig struct {
	DeviceID      string `json:"device_id" yaml:"device_id"` // empty picks a mic/input device or the default
	SampleRate    int    `json:"sample_rate" yaml:"sample_rate"`
	Channels      int    `json:"channels" yaml:"channels"`
	BlockDuration string `json:"block_duration" yaml:"block_duration"`
}

type LevelsConfig struct {
	Intervals       int    `json:"intervals" yaml:"intervals"`
	AveragingWindow string `json:"averaging_window" yaml:"averaging_window"`
}

type HistoryConfig struct {
	DBPath string `json:"db_path" yaml:"db_path"` // empty disables history
}

type ServerConfig struct {
	ListenAddr string `json:"listen_addr" yaml:"listen_addr"` // empty disables the server
}

// Default returns the built-in configuration: 44.1kHz stereo in 20ms
// blocks, ten levels over a 0.5s averaging window.
func Default() *Config {
	return &Config{
		LogLevel: "info",
		Audio: AudioConfig{
			SampleRate:    44100,
			Channels:      2,
			BlockDuration: "20ms",
		},
		Levels: LevelsConfig{
			Intervals:       level.DefaultIntervals,
			AveragingWindow: "500ms",
		},
		BarGlyph: "EEEEEEEEEE",
	}
}

// Load reads the config at path, or at the platform config path when path
// is empty. A missing file yields defaults. Environment overrides apply on
// top and the result is validated.
func Load(path string) (*Config, error) {
	if path == "" {
		path = configPath()
	}

	cfg := Default()
	cfg.path = path

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := decode(path, data, cfg); err != nil {
			return nil, fmt.Errorf("parse config file %s: %w", path, err)
		}
	case !os.IsNotExist(err):
		return nil, fmt.Errorf("read config file: %w", err)
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func decode(path string, data []byte, cfg *Config) error {
	if isYAML(path) {
		return yaml.Unmarshal(data, cfg)
	}
	return json.Unmarshal(data, cfg)
}

func isYAML(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	return ext == ".yaml" || ext == ".yml"
}

// Save writes the config back to the file it was loaded from, keeping its
// format.
func (c *Config) Save() error {
	path := c.path
	if path == "" {
		path = configPath()
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}

	var (
		data []byte
		err  error
	)
	if isYAML(path) {
		data, err = yaml.Marshal(c)
	} else {
		data, err = json.MarshalIndent(c, "", "  ")
	}
	if err != nil {
		return err
	}

	return os.WriteFile(path, data, 0o644)
}

// Path returns the file the config was loaded from.
func (c *Config) Path() string {
	return c.path
}

// Validate reports every invalid field at once.
func (c *Config) Validate() error {
	var errs []error

	if c.Audio.SampleRate <= 0 {
		errs = append(errs, fmt.Errorf("audio.sample_rate must be positive, got %d", c.Audio.SampleRate))
	}
	if c.Audio.Channels <= 0 {
		errs = append(errs, fmt.Errorf("audio.channels must be positive, got %d", c.Audio.Channels))
	}

	block, err := time.ParseDuration(c.Audio.BlockDuration)
	if err != nil || block <= 0 {
		errs = append(errs, fmt.Errorf("audio.block_duration %q is not a positive duration", c.Audio.BlockDuration))
	}
	averaging, err := time.ParseDuration(c.Levels.AveragingWindow)
	if err != nil || averaging <= 0 {
		errs = append(errs, fmt.Errorf("levels.averaging_window %q is not a positive duration", c.Levels.AveragingWindow))
	}
	if block > 0 && averaging > 0 && averaging < block {
		errs = append(errs, fmt.Errorf("levels.averaging_window %s is shorter than one block (%s)", averaging, block))
	}
	if c.Levels.Intervals < 1 {
		errs = append(errs, fmt.Errorf("levels.intervals must be at least 1, got %d", c.Levels.Intervals))
	}
	if block > 0 && c.Audio.SampleRate > 0 && c.FramesPerBlock() < 1 {
		errs = append(errs, fmt.Errorf("audio.block_duration %s holds no frames at %d Hz", block, c.Audio.SampleRate))
	}

	if len(errs) == 0 {
		return nil
	}
	return fmt.Errorf("%w: %w", ErrInvalid, errors.Join(errs...))
}

// BlockDuration returns the parsed block duration.
func (c *Config) BlockDuration() time.Duration {
	d, _ := time.ParseDuration(c.Audio.BlockDuration)
	return d
}

// AveragingWindow returns the parsed recalibration window duration.
func (c *Config) AveragingWindow() time.Duration {
	d, _ := time.ParseDuration(c.Levels.AveragingWindow)
	return d
}

// FramesPerBlock is the number of frames read per block.
func (c *Config) FramesPerBlock() int {
	return int(int64(c.Audio.SampleRate) * int64(c.BlockDuration()) / int64(time.Second))
}

// LevelConfig derives the tracker shape from the averaging window.
func (c *Config) LevelConfig() level.Config {
	return level.Config{
		Intervals:  c.Levels.Intervals,
		WindowSize: level.WindowSizeFor(c.AveragingWindow(), c.BlockDuration()),
	}
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv(EnvPrefix + "LOG_LEVEL"); v != "" {
		cfg.LogLevel = v
	}
	if v := os.Getenv(EnvPrefix + "DEVICE"); v != "" {
		cfg.Audio.DeviceID = v
	}
	if v, ok := envInt("SAMPLE_RATE"); ok {
		cfg.Audio.SampleRate = v
	}
	if v, ok := envInt("CHANNELS"); ok {
		cfg.Audio.Channels = v
	}
	if v := os.Getenv(EnvPrefix + "BLOCK_DURATION"); v != "" {
		cfg.Audio.BlockDuration = v
	}
	if v, ok := envInt("INTERVALS"); ok {
		cfg.Levels.Intervals = v
	}
	if v := os.Getenv(EnvPrefix + "AVERAGING_WINDOW"); v != "" {
		cfg.Levels.AveragingWindow = v
	}
	if v := os.Getenv(EnvPrefix + "DB_PATH"); v != "" {
		cfg.History.DBPath = v
	}
	if v := os.Getenv(EnvPrefix + "LISTEN_ADDR"); v != "" {
		cfg.Server.ListenAddr = v
	}
}

func envInt(name string) (int, bool) {
	v := os.Getenv(EnvPrefix + name)
	if v == "" {
		return 0, false
	}
	n, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil {
		return 0, false
	}
	return n, true
}

// configPath returns the platform-specific config file path
func configPath() string {
	var base string

	switch runtime.GOOS {
	case "darwin":
		base = os.Getenv("HOME") + "/Library/Application Support"
	case "windows":
		base = os.Getenv("APPDATA")
	default: // linux
		if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
			base = xdg
		} else {
			base = os.Getenv("HOME") + "/.config"
		}
	}

	return filepath.Join(base, "tapmeter", "config.json")
}

package config

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all application configuration.
type Config struct {
	Transcribe TranscribeConfig `yaml:"transcribe"`
	Audio      AudioConfig      `yaml:"audio"`
	Capture    CaptureConfig    `yaml:"capture"`
	Queue      QueueConfig      `yaml:"queue"`
	Worker     WorkerConfig     `yaml:"worker"`
	LogLevel   string           `yaml:"log_level"`
}

// TranscribeConfig selects and configures the speech-to-text backend.
type TranscribeConfig struct {
	Backend   string `yaml:"backend"`    // "google", "openai", or "whisper"
	Language  string `yaml:"language"`   // BCP-47 tag, e.g. "en-US"
	APIKey    string `yaml:"api_key"`    // google/openai credential
	ModelPath string `yaml:"model_path"` // whisper model file
}

// AudioConfig holds capture device settings.
type AudioConfig struct {
	SampleRate uint32 `yaml:"sample_rate"`
	Channels   uint32 `yaml:"channels"`
}

// CaptureConfig holds phrase segmentation timing, in milliseconds.
type CaptureConfig struct {
	CalibrationMS   int `yaml:"calibration_ms"`     // ambient noise sampling window
	SilenceMS       int `yaml:"silence_ms"`         // trailing silence ending a phrase
	MaxPhraseMS     int `yaml:"max_phrase_ms"`      // hard cap on phrase length
	MinPhraseMS     int `yaml:"min_phrase_ms"`      // discard shorter blips
	SingleShotMaxMS int `yaml:"single_shot_max_ms"` // bound on one-off recordings
}

// QueueConfig holds handoff queue settings.
type QueueConfig struct {
	Size int `yaml:"size"` // max phrases buffered between capture and worker
}

// WorkerConfig holds transcription worker timing, in milliseconds.
type WorkerConfig struct {
	PopTimeoutMS int `yaml:"pop_timeout_ms"` // queue wait per iteration
	PausePollMS  int `yaml:"pause_poll_ms"`  // state re-check interval while paused
}

// Duration accessors; the YAML carries plain millisecond integers.

func (c CaptureConfig) Calibration() time.Duration   { return ms(c.CalibrationMS) }
func (c CaptureConfig) Silence() time.Duration       { return ms(c.SilenceMS) }
func (c CaptureConfig) MaxPhrase() time.Duration     { return ms(c.MaxPhraseMS) }
func (c CaptureConfig) MinPhrase() time.Duration     { return ms(c.MinPhraseMS) }
func (c CaptureConfig) SingleShotMax() time.Duration { return ms(c.SingleShotMaxMS) }
func (w WorkerConfig) PopTimeout() time.Duration     { return ms(w.PopTimeoutMS) }
func (w WorkerConfig) PausePoll() time.Duration      { return ms(w.PausePollMS) }

func ms(v int) time.Duration { return time.Duration(v) * time.Millisecond }

// DefaultConfigDir returns the default config directory path.
func DefaultConfigDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".config", "golisten")
}

// DefaultConfigPath returns the default config file path.
func DefaultConfigPath() string {
	return filepath.Join(DefaultConfigDir(), "config.yaml")
}

// Default returns a Config with sensible default values.
func Default() *Config {
	return &Config{
		Transcribe: TranscribeConfig{
			Backend:   "google",
			Language:  "en-US",
			ModelPath: "models/ggml-base.en.bin",
		},
		Audio: AudioConfig{
			SampleRate: 16000,
			Channels:   1,
		},
		Capture: CaptureConfig{
			CalibrationMS:   1000,
			SilenceMS:       700,
			MaxPhraseMS:     15000,
			MinPhraseMS:     300,
			SingleShotMaxMS: 10000,
		},
		Queue: QueueConfig{
			Size: 64,
		},
		Worker: WorkerConfig{
			PopTimeoutMS: 500,
			PausePollMS:  200,
		},
		LogLevel: "info",
	}
}

// Load reads and parses a YAML config file. Missing fields are filled with
// defaults. Tilde (~) in model_path is expanded to the user's home directory.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	cfg.Transcribe.ModelPath = expandTilde(cfg.Transcribe.ModelPath)

	return cfg, nil
}

// Validate checks the config for invalid values.
func (c *Config) Validate() error {
	switch c.Transcribe.Backend {
	case "google", "openai", "whisper":
	default:
		return fmt.Errorf("transcribe.backend must be google, openai, or whisper, got %q", c.Transcribe.Backend)
	}

	if c.Transcribe.Language == "" {
		return fmt.Errorf("transcribe.language must not be empty")
	}

	if c.Transcribe.Backend == "whisper" && c.Transcribe.ModelPath == "" {
		return fmt.Errorf("transcribe.model_path is required for the whisper backend")
	}

	if c.Transcribe.Backend == "openai" && c.Transcribe.APIKey == "" {
		return fmt.Errorf("transcribe.api_key is required for the openai backend")
	}

	if c.Audio.SampleRate == 0 {
		return fmt.Errorf("audio.sample_rate must be > 0")
	}

	if c.Audio.Channels == 0 {
		return fmt.Errorf("audio.channels must be > 0")
	}

	if c.Queue.Size <= 0 {
		return fmt.Errorf("queue.size must be > 0")
	}

	for _, f := range []struct {
		name  string
		value int
	}{
		{"capture.calibration_ms", c.Capture.CalibrationMS},
		{"capture.silence_ms", c.Capture.SilenceMS},
		{"capture.max_phrase_ms", c.Capture.MaxPhraseMS},
		{"capture.single_shot_max_ms", c.Capture.SingleShotMaxMS},
		{"worker.pop_timeout_ms", c.Worker.PopTimeoutMS},
		{"worker.pause_poll_ms", c.Worker.PausePollMS},
	} {
		if f.value <= 0 {
			return fmt.Errorf("%s must be > 0", f.name)
		}
	}

	switch c.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("log_level must be debug, info, warn, or error, got %q", c.LogLevel)
	}

	return nil
}

// ParseLogLevel maps a config log level string to a slog.Level.
// Unknown values default to info.
func ParseLogLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// WriteDefault writes the default config to the default path if no file
// exists there yet. It returns the written path, or "" if a config already
// existed.
func WriteDefault() (string, error) {
	path := DefaultConfigPath()
	if _, err := os.Stat(path); err == nil {
		return "", nil
	}

	if err := os.MkdirAll(DefaultConfigDir(), 0755); err != nil {
		return "", fmt.Errorf("creating config dir: %w", err)
	}

	data, err := yaml.Marshal(Default())
	if err != nil {
		return "", fmt.Errorf("marshaling default config: %w", err)
	}

	content := append([]byte("# golisten configuration\n"), data...)
	if err := os.WriteFile(path, content, 0644); err != nil {
		return "", fmt.Errorf("writing default config: %w", err)
	}
	return path, nil
}

// expandTilde replaces a leading ~ with the user's home directory.
func expandTilde(path string) string {
	if !strings.HasPrefix(path, "~") {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(home, path[1:])
}

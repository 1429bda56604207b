package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const (
	TransportSDK       = "sdk"
	TransportWebsocket = "websocket"

	BackendMalgo  = "malgo"
	BackendFFmpeg = "ffmpeg"

	minBlockSize = 256
)

// Config stores runtime configuration for the voice agent.
type Config struct {
	Gemini  GeminiConfig  `yaml:"gemini"`
	Audio   AudioConfig   `yaml:"audio"`
	Session SessionConfig `yaml:"session"`
	Persona PersonaConfig `yaml:"persona"`
	Logging LoggingConfig `yaml:"logging"`
	Metrics MetricsConfig `yaml:"metrics"`

	// Source is the YAML file the configuration was read from, if any.
	Source string `yaml:"-"`
}

type GeminiConfig struct {
	APIKey        string `yaml:"api_key"`
	APIBaseURL    string `yaml:"api_base"`
	APIVersion    string `yaml:"api_version"`
	Model         string `yaml:"model"`
	Voice         string `yaml:"voice"`
	Transport     string `yaml:"transport"`
	SendStreamEnd bool   `yaml:"send_stream_end"`
}

type AudioConfig struct {
	Backend            string        `yaml:"backend"`
	RecorderCommand    string        `yaml:"recorder_command"`
	PlayerCommand      string        `yaml:"player_command"`
	InputFormat        string        `yaml:"input_format"`
	InputDevice        string        `yaml:"input_device"`
	CaptureSampleRate  int           `yaml:"capture_sample_rate"`
	PlaybackSampleRate int           `yaml:"playback_sample_rate"`
	BlockSize          int           `yaml:"block_size"`
	OutputBuffer       time.Duration `yaml:"output_buffer"`
}

type SessionConfig struct {
	SettleDelay time.Duration `yaml:"settle_delay"`
	SendQueue   int           `yaml:"send_queue"`
}

type PersonaConfig struct {
	Path string `yaml:"path"`
}

type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

type MetricsConfig struct {
	Address string `yaml:"address"`
}

// Defaults returns the configuration used when nothing overrides it.
func Defaults() Config {
	return Config{
		Gemini: GeminiConfig{
			APIBaseURL:    "https://generativelanguage.googleapis.com/",
			APIVersion:    "v1beta",
			Model:         "gemini-2.5-flash-native-audio-preview-09-2025",
			Voice:         "Fenrir",
			Transport:     TransportSDK,
			SendStreamEnd: true,
		},
		Audio: AudioConfig{
			Backend:            BackendMalgo,
			RecorderCommand:    "ffmpeg",
			PlayerCommand:      "ffplay",
			InputFormat:        "pulse",
			InputDevice:        "default",
			CaptureSampleRate:  16000,
			PlaybackSampleRate: 24000,
			BlockSize:          4096,
			OutputBuffer:       100 * time.Millisecond,
		},
		Session: SessionConfig{
			SettleDelay: 200 * time.Millisecond,
			SendQueue:   32,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// Load resolves configuration. Environment variables (including those from .env) override the
// YAML file, which overrides the defaults.
func Load() (Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return Config{}, fmt.Errorf("failed to read .env: %w", err)
	}

	cfg := Defaults()

	path, err := configPath()
	if err != nil {
		return Config{}, err
	}
	if path != "" {
		if err := readFile(path, &cfg); err != nil {
			return Config{}, err
		}
		cfg.Source = path
	}

	applyEnv(&cfg)
	cfg.normalize()

	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("config validation failed: %w", err)
	}
	return cfg, nil
}

func configPath() (string, error) {
	if explicit := strings.TrimSpace(os.Getenv("VOICEAGENT_CONFIG")); explicit != "" {
		if _, err := os.Stat(explicit); err != nil {
			return "", fmt.Errorf("config file %s: %w", explicit, err)
		}
		return explicit, nil
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return "", nil
	}
	dir := filepath.Join(home, ".config", "voiceagent")
	candidate := firstExisting(filepath.Join(dir, "config.yaml"), filepath.Join(dir, "config.yml"))
	if _, err := os.Stat(candidate); err != nil {
		return "", nil
	}
	return candidate, nil
}

func readFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	return nil
}

func applyEnv(cfg *Config) {
	cfg.Gemini.APIKey = firstNonEmpty(
		os.Getenv("GEMINI_API_KEY"),
		os.Getenv("GOOGLE_API_KEY"),
		os.Getenv("API_KEY"),
		cfg.Gemini.APIKey,
	)
	cfg.Gemini.APIBaseURL = envOrDefault("GEMINI_API_BASE", cfg.Gemini.APIBaseURL)
	cfg.Gemini.APIVersion = envOrDefault("GEMINI_API_VERSION", cfg.Gemini.APIVersion)
	cfg.Gemini.Model = envOrDefault("GEMINI_LIVE_MODEL", cfg.Gemini.Model)
	cfg.Gemini.Voice = envOrDefault("GEMINI_VOICE", cfg.Gemini.Voice)
	cfg.Gemini.Transport = envOrDefault("VOICEAGENT_TRANSPORT", cfg.Gemini.Transport)
	cfg.Gemini.SendStreamEnd = envOrDefaultBool("VOICEAGENT_SEND_STREAM_END", cfg.Gemini.SendStreamEnd)

	cfg.Persona.Path = envOrDefault("VOICEAGENT_PERSONA_FILE", cfg.Persona.Path)

	cfg.Audio.Backend = envOrDefault("VOICEAGENT_AUDIO_BACKEND", cfg.Audio.Backend)
	cfg.Audio.RecorderCommand = envOrDefault("VOICEAGENT_FFMPEG_COMMAND", cfg.Audio.RecorderCommand)
	cfg.Audio.PlayerCommand = envOrDefault("VOICEAGENT_FFPLAY_COMMAND", cfg.Audio.PlayerCommand)
	cfg.Audio.InputFormat = envOrDefault("VOICEAGENT_AUDIO_INPUT_FORMAT", cfg.Audio.InputFormat)
	cfg.Audio.InputDevice = envOrDefault("VOICEAGENT_AUDIO_INPUT_DEVICE", cfg.Audio.InputDevice)
	cfg.Audio.CaptureSampleRate = envOrDefaultInt("VOICEAGENT_CAPTURE_SAMPLE_RATE", cfg.Audio.CaptureSampleRate)
	cfg.Audio.PlaybackSampleRate = envOrDefaultInt("VOICEAGENT_PLAYBACK_SAMPLE_RATE", cfg.Audio.PlaybackSampleRate)
	cfg.Audio.BlockSize = envOrDefaultInt("VOICEAGENT_BLOCK_SIZE", cfg.Audio.BlockSize)
	cfg.Audio.OutputBuffer = envOrDefaultDuration("VOICEAGENT_OUTPUT_BUFFER", cfg.Audio.OutputBuffer)

	cfg.Session.SettleDelay = envOrDefaultDuration("VOICEAGENT_SETTLE_DELAY", cfg.Session.SettleDelay)
	cfg.Session.SendQueue = envOrDefaultInt("VOICEAGENT_SEND_QUEUE", cfg.Session.SendQueue)

	cfg.Logging.Level = envOrDefault("VOICEAGENT_LOG_LEVEL", cfg.Logging.Level)
	cfg.Logging.Format = envOrDefault("VOICEAGENT_LOG_FORMAT", cfg.Logging.Format)

	cfg.Metrics.Address = envOrDefault("VOICEAGENT_METRICS_ADDR", cfg.Metrics.Address)
}

func (c *Config) normalize() {
	defaults := Defaults()

	c.Gemini.Transport = strings.ToLower(strings.TrimSpace(c.Gemini.Transport))
	c.Audio.Backend = strings.ToLower(strings.TrimSpace(c.Audio.Backend))
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))

	if c.Audio.CaptureSampleRate <= 0 {
		c.Audio.CaptureSampleRate = defaults.Audio.CaptureSampleRate
	}
	if c.Audio.PlaybackSampleRate <= 0 {
		c.Audio.PlaybackSampleRate = defaults.Audio.PlaybackSampleRate
	}
	if c.Audio.BlockSize < minBlockSize {
		c.Audio.BlockSize = defaults.Audio.BlockSize
	}
	if c.Audio.OutputBuffer <= 0 {
		c.Audio.OutputBuffer = defaults.Audio.OutputBuffer
	}
	if c.Session.SettleDelay < 0 {
		c.Session.SettleDelay = defaults.Session.SettleDelay
	}
	if c.Session.SendQueue <= 0 {
		c.Session.SendQueue = defaults.Session.SendQueue
	}
}

// Validate rejects values no component can run with. A missing API key is not an error here;
// connecting without one fails as a session open error.
func (c Config) Validate() error {
	switch c.Gemini.Transport {
	case TransportSDK, TransportWebsocket:
	default:
		return fmt.Errorf("gemini transport %q must be %q or %q", c.Gemini.Transport, TransportSDK, TransportWebsocket)
	}
	switch c.Audio.Backend {
	case BackendMalgo, BackendFFmpeg:
	default:
		return fmt.Errorf("audio backend %q must be %q or %q", c.Audio.Backend, BackendMalgo, BackendFFmpeg)
	}
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging level %q is not supported", c.Logging.Level)
	}
	switch c.Logging.Format {
	case "text", "json":
	default:
		return fmt.Errorf("logging format %q is not supported", c.Logging.Format)
	}
	if strings.TrimSpace(c.Gemini.Model) == "" {
		return errors.New("gemini model is required")
	}
	return nil
}

func firstExisting(paths ...string) string {
	for _, p := range paths {
		if p == "" {
			continue
		}
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	if len(paths) == 0 {
		return ""
	}
	return paths[0]
}

func firstNonEmpty(values ...string) string {
	for _, value := range values {
		trimmed := strings.TrimSpace(value)
		if trimmed != "" {
			return trimmed
		}
	}
	return ""
}

func envOrDefault(key string, fallback string) string {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return fallback
	}
	return value
}

func envOrDefaultInt(key string, fallback int) int {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func envOrDefaultBool(key string, fallback bool) bool {
	value := strings.TrimSpace(strings.ToLower(os.Getenv(key)))
	switch value {
	case "1", "true", "yes", "on":
		return true
	case "0", "false", "no", "off":
		return false
	default:
		return fallback
	}
}

// envOrDefaultDuration accepts Go durations ("250ms") or bare milliseconds ("250").
func envOrDefaultDuration(key string, fallback time.Duration) time.Duration {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return fallback
	}
	if ms, err := strconv.Atoi(value); err == nil && ms >= 0 {
		return time.Duration(ms) * time.Millisecond
	}
	parsed, err := time.ParseDuration(value)
	if err != nil || parsed < 0 {
		return fallback
	}
	return parsed
}

package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config contains all runtime settings for the translation relay.
type Config struct {
	BindAddr         string
	ShutdownTimeout  time.Duration
	MetricsNamespace string
	LogLevel         string
	LogFormat        string
	AllowAnyOrigin   bool

	TranslatorProvider     string
	AzureTranslatorKey     string
	AzureTranslatorRegion  string
	AzureTranslatorBaseURL string

	SynthProvider     string
	AzureSpeechKey    string
	AzureSpeechRegion string

	RecognizerProvider string
	VoskModelPath      string

	CaptureProvider   string
	CaptureDevice     int
	CaptureSampleRate int
	CaptureFrames     int

	CacheRecentSize    int
	CacheDurableSize   int
	CacheDurableTTL    time.Duration
	NormalizerMemoSize int

	GateCooldown   time.Duration
	GateRateLimit  int
	GateRateWindow time.Duration

	DispatchAttempts int
	DispatchBackoff  time.Duration
	DispatchWorkers  int

	MailboxSize           int
	StreamKeepalive       time.Duration
	SessionIdleTimeout    time.Duration
	SessionReportInterval time.Duration
}

// Load reads environment variables and applies safe defaults. A .env file in the
// working directory is read first; variables already set in the environment win.
func Load() (Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Config{}, fmt.Errorf("load .env: %w", err)
	}

	cfg := Config{
		BindAddr:               envOrDefault("APP_BIND_ADDR", ":4585"),
		MetricsNamespace:       envOrDefault("APP_METRICS_NAMESPACE", "babel"),
		LogLevel:               strings.ToLower(envOrDefault("APP_LOG_LEVEL", "info")),
		LogFormat:              strings.ToLower(envOrDefault("APP_LOG_FORMAT", "text")),
		AllowAnyOrigin:         true,
		TranslatorProvider:     strings.ToLower(envOrDefault("TRANSLATOR_PROVIDER", "auto")),
		AzureTranslatorKey:     stringsTrimSpace("AZURE_TRANSLATOR_KEY"),
		AzureTranslatorRegion:  stringsTrimSpace("AZURE_TRANSLATOR_REGION"),
		AzureTranslatorBaseURL: stringsTrimSpace("AZURE_TRANSLATOR_ENDPOINT"),
		SynthProvider:          strings.ToLower(envOrDefault("SYNTH_PROVIDER", "auto")),
		AzureSpeechKey:         stringsTrimSpace("AZURE_SPEECH_KEY"),
		AzureSpeechRegion:      stringsTrimSpace("AZURE_SPEECH_REGION"),
		RecognizerProvider:     strings.ToLower(envOrDefault("RECOGNIZER_PROVIDER", "auto")),
		VoskModelPath:          stringsTrimSpace("VOSK_MODEL_PATH"),
		CaptureProvider:        strings.ToLower(envOrDefault("CAPTURE_PROVIDER", "auto")),
		CaptureDevice:          -1,
		CaptureSampleRate:      16000,
		CaptureFrames:          1024,
		CacheRecentSize:        10_000,
		CacheDurableSize:       200_000,
		CacheDurableTTL:        24 * time.Hour,
		NormalizerMemoSize:     1000,
		GateCooldown:           time.Second,
		GateRateLimit:          10_000,
		GateRateWindow:         60 * time.Second,
		DispatchAttempts:       3,
		DispatchBackoff:        time.Second,
		DispatchWorkers:        10,
		MailboxSize:            256,
		StreamKeepalive:        time.Second,
		SessionIdleTimeout:     30 * time.Second,
		SessionReportInterval:  30 * time.Second,
		ShutdownTimeout:        15 * time.Second,
	}

	var err error
	durations := []struct {
		key string
		dst *time.Duration
	}{
		{"APP_SHUTDOWN_TIMEOUT", &cfg.ShutdownTimeout},
		{"CACHE_DURABLE_TTL", &cfg.CacheDurableTTL},
		{"GATE_COOLDOWN", &cfg.GateCooldown},
		{"GATE_RATE_WINDOW", &cfg.GateRateWindow},
		{"DISPATCH_BACKOFF", &cfg.DispatchBackoff},
		{"STREAM_KEEPALIVE", &cfg.StreamKeepalive},
		{"SESSION_IDLE_TIMEOUT", &cfg.SessionIdleTimeout},
		{"SESSION_REPORT_INTERVAL", &cfg.SessionReportInterval},
	}
	for _, d := range durations {
		if *d.dst, err = durationFromEnv(d.key, *d.dst); err != nil {
			return Config{}, err
		}
	}

	ints := []struct {
		key string
		dst *int
	}{
		{"CAPTURE_DEVICE", &cfg.CaptureDevice},
		{"CAPTURE_SAMPLE_RATE", &cfg.CaptureSampleRate},
		{"CAPTURE_FRAMES", &cfg.CaptureFrames},
		{"CACHE_RECENT_SIZE", &cfg.CacheRecentSize},
		{"CACHE_DURABLE_SIZE", &cfg.CacheDurableSize},
		{"NORMALIZER_MEMO_SIZE", &cfg.NormalizerMemoSize},
		{"GATE_RATE_LIMIT", &cfg.GateRateLimit},
		{"DISPATCH_ATTEMPTS", &cfg.DispatchAttempts},
		{"DISPATCH_WORKERS", &cfg.DispatchWorkers},
		{"MAILBOX_SIZE", &cfg.MailboxSize},
	}
	for _, n := range ints {
		if *n.dst, err = intFromEnv(n.key, *n.dst); err != nil {
			return Config{}, err
		}
	}

	cfg.AllowAnyOrigin, err = boolFromEnv("APP_ALLOW_ANY_ORIGIN", cfg.AllowAnyOrigin)
	if err != nil {
		return Config{}, err
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks value ranges and provider choices.
func (c Config) Validate() error {
	if err := oneOf("TRANSLATOR_PROVIDER", c.TranslatorProvider, "auto", "azure", "mock"); err != nil {
		return err
	}
	if err := oneOf("SYNTH_PROVIDER", c.SynthProvider, "auto", "azure", "mock"); err != nil {
		return err
	}
	if err := oneOf("RECOGNIZER_PROVIDER", c.RecognizerProvider, "auto", "vosk", "mock"); err != nil {
		return err
	}
	if err := oneOf("CAPTURE_PROVIDER", c.CaptureProvider, "auto", "portaudio", "synthetic"); err != nil {
		return err
	}
	if err := oneOf("APP_LOG_FORMAT", c.LogFormat, "text", "json", "logfmt"); err != nil {
		return err
	}
	if c.TranslatorProvider == "azure" && c.AzureTranslatorKey == "" {
		return fmt.Errorf("AZURE_TRANSLATOR_KEY is required when TRANSLATOR_PROVIDER=azure")
	}
	if c.SynthProvider == "azure" && (c.AzureSpeechKey == "" || c.AzureSpeechRegion == "") {
		return fmt.Errorf("AZURE_SPEECH_KEY and AZURE_SPEECH_REGION are required when SYNTH_PROVIDER=azure")
	}
	if c.RecognizerProvider == "vosk" && c.VoskModelPath == "" {
		return fmt.Errorf("VOSK_MODEL_PATH is required when RECOGNIZER_PROVIDER=vosk")
	}

	positive := map[string]int{
		"CAPTURE_SAMPLE_RATE":  c.CaptureSampleRate,
		"CAPTURE_FRAMES":       c.CaptureFrames,
		"CACHE_RECENT_SIZE":    c.CacheRecentSize,
		"CACHE_DURABLE_SIZE":   c.CacheDurableSize,
		"NORMALIZER_MEMO_SIZE": c.NormalizerMemoSize,
		"GATE_RATE_LIMIT":      c.GateRateLimit,
		"DISPATCH_ATTEMPTS":    c.DispatchAttempts,
		"DISPATCH_WORKERS":     c.DispatchWorkers,
		"MAILBOX_SIZE":         c.MailboxSize,
	}
	for key, v := range positive {
		if v <= 0 {
			return fmt.Errorf("%s must be positive", key)
		}
	}
	if c.GateCooldown <= 0 {
		return fmt.Errorf("GATE_COOLDOWN must be positive")
	}
	if c.DispatchBackoff < 0 {
		return fmt.Errorf("DISPATCH_BACKOFF must be >= 0")
	}
	if c.GateRateWindow <= 0 || c.CacheDurableTTL <= 0 {
		return fmt.Errorf("GATE_RATE_WINDOW and CACHE_DURABLE_TTL must be positive")
	}
	if c.StreamKeepalive <= 0 {
		return fmt.Errorf("STREAM_KEEPALIVE must be positive")
	}
	if c.SessionIdleTimeout <= c.StreamKeepalive {
		return fmt.Errorf("SESSION_IDLE_TIMEOUT must be longer than STREAM_KEEPALIVE")
	}
	return nil
}

func oneOf(key, v string, allowed ...string) error {
	for _, a := range allowed {
		if v == a {
			return nil
		}
	}
	return fmt.Errorf("%s must be one of %s, got %q", key, strings.Join(allowed, "|"), v)
}

func envOrDefault(key, fallback string) string {
	v := stringsTrimSpace(key)
	if v == "" {
		return fallback
	}
	return v
}

func stringsTrimSpace(key string) string {
	return strings.TrimSpace(os.Getenv(key))
}

func durationFromEnv(key string, fallback time.Duration) (time.Duration, error) {
	v := stringsTrimSpace(key)
	if v == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("%s parse error: %w", key, err)
	}
	return d, nil
}

func intFromEnv(key string, fallback int) (int, error) {
	v := stringsTrimSpace(key)
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%s parse error: %w", key, err)
	}
	return n, nil
}

func boolFromEnv(key string, fallback bool) (bool, error) {
	v := strings.ToLower(stringsTrimSpace(key))
	if v == "" {
		return fallback, nil
	}
	switch v {
	case "1", "true", "t", "yes", "y", "on":
		return true, nil
	case "0", "false", "f", "no", "n", "off":
		return false, nil
	default:
		return false, fmt.Errorf("%s parse error: expected bool", key)
	}
}

package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	setCoreEnvEmpty(t)
	t.Chdir(t.TempDir())

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.BindAddr != ":4585" {
		t.Fatalf("BindAddr = %q, want :4585", cfg.BindAddr)
	}
	if !cfg.AllowAnyOrigin {
		t.Fatalf("AllowAnyOrigin = false, want true")
	}
	if cfg.TranslatorProvider != "auto" || cfg.RecognizerProvider != "auto" || cfg.CaptureProvider != "auto" {
		t.Fatalf("providers = %q/%q/%q, want auto", cfg.TranslatorProvider, cfg.RecognizerProvider, cfg.CaptureProvider)
	}
	if cfg.GateCooldown != time.Second || cfg.GateRateLimit != 10_000 || cfg.GateRateWindow != time.Minute {
		t.Fatalf("gate = (%v, %d, %v)", cfg.GateCooldown, cfg.GateRateLimit, cfg.GateRateWindow)
	}
	if cfg.DispatchAttempts != 3 || cfg.DispatchBackoff != time.Second || cfg.DispatchWorkers != 10 {
		t.Fatalf("dispatch = (%d, %v, %d)", cfg.DispatchAttempts, cfg.DispatchBackoff, cfg.DispatchWorkers)
	}
	if cfg.SessionIdleTimeout != 30*time.Second || cfg.StreamKeepalive != time.Second {
		t.Fatalf("stream = (%v, %v)", cfg.SessionIdleTimeout, cfg.StreamKeepalive)
	}
	if cfg.CaptureSampleRate != 16000 || cfg.CaptureFrames != 1024 || cfg.CaptureDevice != -1 {
		t.Fatalf("capture = (%d, %d, %d)", cfg.CaptureSampleRate, cfg.CaptureFrames, cfg.CaptureDevice)
	}
}

func TestLoadOverrides(t *testing.T) {
	setCoreEnvEmpty(t)
	t.Chdir(t.TempDir())
	t.Setenv("APP_BIND_ADDR", ":9090")
	t.Setenv("GATE_COOLDOWN", "250ms")
	t.Setenv("MAILBOX_SIZE", "32")
	t.Setenv("APP_ALLOW_ANY_ORIGIN", "off")
	t.Setenv("TRANSLATOR_PROVIDER", "MOCK")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.BindAddr != ":9090" || cfg.GateCooldown != 250*time.Millisecond || cfg.MailboxSize != 32 {
		t.Fatalf("overrides not applied: %+v", cfg)
	}
	if cfg.AllowAnyOrigin {
		t.Fatalf("AllowAnyOrigin = true, want false")
	}
	if cfg.TranslatorProvider != "mock" {
		t.Fatalf("TranslatorProvider = %q, want mock", cfg.TranslatorProvider)
	}
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	tests := []struct {
		key, value, want string
	}{
		{"GATE_COOLDOWN", "soon", "GATE_COOLDOWN parse error"},
		{"GATE_COOLDOWN", "0s", "GATE_COOLDOWN must be positive"},
		{"DISPATCH_BACKOFF", "-1s", "DISPATCH_BACKOFF must be >= 0"},
		{"MAILBOX_SIZE", "0", "MAILBOX_SIZE must be positive"},
		{"DISPATCH_WORKERS", "x", "DISPATCH_WORKERS parse error"},
		{"TRANSLATOR_PROVIDER", "google", "TRANSLATOR_PROVIDER must be one of"},
		{"TRANSLATOR_PROVIDER", "azure", "AZURE_TRANSLATOR_KEY is required"},
		{"RECOGNIZER_PROVIDER", "vosk", "VOSK_MODEL_PATH is required"},
		{"SESSION_IDLE_TIMEOUT", "500ms", "SESSION_IDLE_TIMEOUT must be longer"},
		{"APP_ALLOW_ANY_ORIGIN", "maybe", "expected bool"},
	}
	for _, tt := range tests {
		t.Run(tt.key+"="+tt.value, func(t *testing.T) {
			setCoreEnvEmpty(t)
			t.Chdir(t.TempDir())
			t.Setenv(tt.key, tt.value)
			_, err := Load()
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Fatalf("Load() error = %v, want %q", err, tt.want)
			}
		})
	}
}

func TestLoadReadsDotEnv(t *testing.T) {
	setCoreEnvEmpty(t)
	dir := t.TempDir()
	t.Chdir(dir)
	env := "AZURE_TRANSLATOR_REGION=westeurope\nAPP_BIND_ADDR=:7000\n"
	if err := os.WriteFile(filepath.Join(dir, ".env"), []byte(env), 0o600); err != nil {
		t.Fatalf("write .env: %v", err)
	}
	// Unset rather than empty so the file can supply the value.
	os.Unsetenv("AZURE_TRANSLATOR_REGION")
	t.Setenv("APP_BIND_ADDR", ":9000")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.AzureTranslatorRegion != "westeurope" {
		t.Fatalf("AzureTranslatorRegion = %q, want value from .env", cfg.AzureTranslatorRegion)
	}
	if cfg.BindAddr != ":9000" {
		t.Fatalf("BindAddr = %q, environment must win over .env", cfg.BindAddr)
	}
}

func setCoreEnvEmpty(t *testing.T) {
	t.Helper()
	keys := []string{
		"APP_BIND_ADDR",
		"APP_SHUTDOWN_TIMEOUT",
		"APP_METRICS_NAMESPACE",
		"APP_LOG_LEVEL",
		"APP_LOG_FORMAT",
		"APP_ALLOW_ANY_ORIGIN",
		"TRANSLATOR_PROVIDER",
		"AZURE_TRANSLATOR_KEY",
		"AZURE_TRANSLATOR_ENDPOINT",
		"AZURE_TRANSLATOR_REGION",
		"SYNTH_PROVIDER",
		"AZURE_SPEECH_KEY",
		"AZURE_SPEECH_REGION",
		"RECOGNIZER_PROVIDER",
		"VOSK_MODEL_PATH",
		"CAPTURE_PROVIDER",
		"CAPTURE_DEVICE",
		"CAPTURE_SAMPLE_RATE",
		"CAPTURE_FRAMES",
		"CACHE_RECENT_SIZE",
		"CACHE_DURABLE_SIZE",
		"CACHE_DURABLE_TTL",
		"NORMALIZER_MEMO_SIZE",
		"GATE_COOLDOWN",
		"GATE_RATE_LIMIT",
		"GATE_RATE_WINDOW",
		"DISPATCH_ATTEMPTS",
		"DISPATCH_BACKOFF",
		"DISPATCH_WORKERS",
		"MAILBOX_SIZE",
		"STREAM_KEEPALIVE",
		"SESSION_IDLE_TIMEOUT",
		"SESSION_REPORT_INTERVAL",
	}
	for _, key := range keys {
		t.Setenv(key, "")
	}
}

package translate

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/charmbracelet/log"

	"github.com/ent0n29/babel/internal/reliability"
)

type ProbeStatus string

const (
	ProbeSuccess ProbeStatus = "success"
	ProbeWarning ProbeStatus = "warning"
	ProbeError   ProbeStatus = "error"
)

// ProbeResult reports whether the translator answers and whether its quota is spent.
// QuotaExceeded is nil when the probe could not tell.
type ProbeResult struct {
	Status        ProbeStatus `json:"status"`
	QuotaExceeded *bool       `json:"quota_exceeded"`
	Message       string      `json:"message"`
	Details       string      `json:"details,omitempty"`
	Attempts      int         `json:"attempts"`
}

type ProbeConfig struct {
	Attempts int
	Delay    time.Duration
	Text     string
	Language string
}

func (c ProbeConfig) withDefaults() ProbeConfig {
	if c.Attempts <= 0 {
		c.Attempts = 3
	}
	if c.Delay < 0 {
		c.Delay = 0
	}
	if strings.TrimSpace(c.Text) == "" {
		c.Text = "hello"
	}
	if c.Language == "" {
		c.Language = "es"
	}
	return c
}

// Probe sends a tiny translation until one succeeds, the quota is reported exhausted,
// or the attempts run out.
func Probe(ctx context.Context, t Translator, cfg ProbeConfig) ProbeResult {
	cfg = cfg.withDefaults()
	if t == nil {
		return ProbeResult{Status: ProbeError, Message: "Missing credentials",
			Details: "set AZURE_TRANSLATOR_KEY and AZURE_TRANSLATOR_REGION"}
	}
	code, err := TargetCode(cfg.Language)
	if err != nil {
		return ProbeResult{Status: ProbeError, Message: "Test failed", Details: err.Error()}
	}
	logger := log.With("component", "probe")

	var lastErr error
	for attempt := 1; attempt <= cfg.Attempts; attempt++ {
		_, err := t.Translate(ctx, cfg.Text, code)
		if err == nil {
			exceeded := false
			return ProbeResult{Status: ProbeSuccess, QuotaExceeded: &exceeded,
				Message: "Service quota is not exceeded", Details: "translator is working normally", Attempts: attempt}
		}
		lastErr = err
		if IsQuotaError(err) {
			exceeded := true
			return ProbeResult{Status: ProbeWarning, QuotaExceeded: &exceeded,
				Message: "Service quota is exceeded", Details: err.Error(), Attempts: attempt}
		}
		logger.Error("probe attempt failed", "attempt", attempt, "err", err)
		var se *StatusError
		if errors.As(err, &se) && !reliability.IsRetryableHTTPStatus(se.Code) {
			return ProbeResult{Status: ProbeError, Message: "Test failed", Details: err.Error(), Attempts: attempt}
		}
		if attempt == cfg.Attempts {
			break
		}
		select {
		case <-ctx.Done():
			return ProbeResult{Status: ProbeError, Message: "Test failed", Details: ctx.Err().Error(), Attempts: attempt}
		case <-time.After(cfg.Delay):
		}
	}
	return ProbeResult{Status: ProbeError, Message: "Test failed", Details: lastErr.Error(), Attempts: cfg.Attempts}
}

// IsQuotaError reports whether err means the subscription quota is used up.
func IsQuotaError(err error) bool {
	var se *StatusError
	if errors.As(err, &se) {
		if se.Code == http.StatusTooManyRequests {
			return true
		}
		if se.Code == http.StatusForbidden && strings.Contains(strings.ToLower(se.Body), "quota") {
			return true
		}
	}
	return err != nil && strings.Contains(strings.ToLower(err.Error()), "quota exceeded")
}

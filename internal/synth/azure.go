package synth

import (
	"bytes"
	"context"
	"encoding/xml"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const azureOutputFormat = "riff-16khz-16bit-mono-pcm"

type AzureConfig struct {
	Key    string
	Region string
	// Endpoint overrides the regional text-to-speech URL.
	Endpoint string
	Timeout  time.Duration
}

// AzureSynthesizer calls the Azure Speech text-to-speech REST API.
type AzureSynthesizer struct {
	cfg    AzureConfig
	client *http.Client
}

func NewAzureSynthesizer(cfg AzureConfig) *AzureSynthesizer {
	if strings.TrimSpace(cfg.Endpoint) == "" {
		cfg.Endpoint = fmt.Sprintf("https://%s.tts.speech.microsoft.com/cognitiveservices/v1", cfg.Region)
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 20 * time.Second
	}
	return &AzureSynthesizer{cfg: cfg, client: &http.Client{Timeout: cfg.Timeout}}
}

func ssml(text string, voice Voice) (string, error) {
	var escaped strings.Builder
	if err := xml.EscapeText(&escaped, []byte(text)); err != nil {
		return "", err
	}
	return fmt.Sprintf(`<speak version="1.0" xmlns="http://www.w3.org/2001/10/synthesis" xml:lang="%s"><voice name="%s">%s</voice></speak>`,
		voice.Locale, voice.Name, escaped.String()), nil
}

func (a *AzureSynthesizer) Synthesize(ctx context.Context, text string, voice Voice, out io.Writer) error {
	body, err := ssml(text, voice)
	if err != nil {
		return fmt.Errorf("build ssml: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.cfg.Endpoint, bytes.NewReader([]byte(body)))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/ssml+xml")
	req.Header.Set("X-Microsoft-OutputFormat", azureOutputFormat)
	req.Header.Set("Ocp-Apim-Subscription-Key", a.cfg.Key)
	req.Header.Set("User-Agent", "babel")

	res, err := a.client.Do(req)
	if err != nil {
		return fmt.Errorf("send request: %w", err)
	}
	defer res.Body.Close()

	if res.StatusCode < 200 || res.StatusCode >= 300 {
		detail, _ := io.ReadAll(io.LimitReader(res.Body, 4<<10))
		msg := strings.TrimSpace(string(detail))
		if msg == "" {
			msg = http.StatusText(res.StatusCode)
		}
		return &SynthesisError{Detail: fmt.Sprintf("status %d: %s", res.StatusCode, msg)}
	}
	if _, err := io.Copy(out, io.LimitReader(res.Body, 32<<20)); err != nil {
		return fmt.Errorf("read audio: %w", err)
	}
	return nil
}

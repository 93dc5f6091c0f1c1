package translate

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const DefaultAzureEndpoint = "https://api.cognitive.microsofttranslator.com"

type AzureConfig struct {
	Key      string
	Endpoint string
	Region   string
	Timeout  time.Duration
}

// AzureTranslator calls the Microsoft Translator v3 REST API.
type AzureTranslator struct {
	cfg    AzureConfig
	client *http.Client
}

func NewAzureTranslator(cfg AzureConfig) *AzureTranslator {
	if strings.TrimSpace(cfg.Endpoint) == "" {
		cfg.Endpoint = DefaultAzureEndpoint
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	return &AzureTranslator{
		cfg:    cfg,
		client: &http.Client{Timeout: cfg.Timeout},
	}
}

type azureTextItem struct {
	Text string `json:"text"`
}

type azureResult struct {
	Translations []struct {
		Text string `json:"text"`
		To   string `json:"to"`
	} `json:"translations"`
}

func (a *AzureTranslator) Translate(ctx context.Context, text, targetCode string) (string, error) {
	u, err := url.Parse(strings.TrimRight(a.cfg.Endpoint, "/") + "/translate")
	if err != nil {
		return "", fmt.Errorf("parse endpoint: %w", err)
	}
	q := u.Query()
	q.Set("api-version", "3.0")
	q.Set("to", targetCode)
	u.RawQuery = q.Encode()

	payload, err := json.Marshal([]azureTextItem{{Text: text}})
	if err != nil {
		return "", fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u.String(), bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Ocp-Apim-Subscription-Key", a.cfg.Key)
	if strings.TrimSpace(a.cfg.Region) != "" {
		req.Header.Set("Ocp-Apim-Subscription-Region", a.cfg.Region)
	}

	res, err := a.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("send request: %w", err)
	}
	defer res.Body.Close()

	body, err := io.ReadAll(io.LimitReader(res.Body, 1<<20))
	if err != nil {
		return "", fmt.Errorf("read response: %w", err)
	}
	if res.StatusCode < 200 || res.StatusCode >= 300 {
		return "", &StatusError{Code: res.StatusCode, Body: strings.TrimSpace(string(body))}
	}

	var results []azureResult
	if err := json.Unmarshal(body, &results); err != nil {
		return "", fmt.Errorf("decode response: %w", err)
	}
	if len(results) == 0 || len(results[0].Translations) == 0 {
		return "", errors.New("malformed response: no translations")
	}
	out := results[0].Translations[0].Text
	if strings.TrimSpace(out) == "" {
		return "", errors.New("malformed response: empty translation")
	}
	return out, nil
}

package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/spf13/cobra"

	"github.com/ent0n29/babel/internal/gate"
	"github.com/ent0n29/babel/internal/pipeline"
	"github.com/ent0n29/babel/internal/session"
)

type benchOptions struct {
	baseURL        string
	language       string
	requests       int
	interDelay     time.Duration
	cooldown       time.Duration
	requestTimeout time.Duration
	texts          []string
	verbose        bool
}

type benchReport struct {
	Sent      int
	Received  int
	Latencies []time.Duration
}

var defaultPhrases = []string{
	"good morning everyone",
	"thank you for coming today",
	"please take your seats",
	"we will begin shortly",
}

func newBenchCmd() *cobra.Command {
	var (
		opts     benchOptions
		textsRaw string
	)
	cmd := &cobra.Command{
		Use:   "bench",
		Short: "Replay final phrases against a running relay and report delivery latency",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := opts.normalize(textsRaw); err != nil {
				return err
			}
			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}
			report, err := runBench(ctx, opts, cmd.OutOrStdout())
			if err != nil {
				return err
			}
			report.write(cmd.OutOrStdout())
			return nil
		},
	}
	cmd.Flags().StringVar(&opts.baseURL, "base-url", "http://127.0.0.1:4585", "relay base URL")
	cmd.Flags().StringVar(&opts.language, "lang", "es", "target language to listen on")
	cmd.Flags().IntVar(&opts.requests, "requests", 20, "number of phrases to replay")
	cmd.Flags().DurationVar(&opts.interDelay, "inter-delay", 0, "delay between phrases, never shorter than --cooldown")
	cmd.Flags().DurationVar(&opts.cooldown, "cooldown", gate.DefaultCooldown+100*time.Millisecond, "relay GATE_COOLDOWN plus margin")
	cmd.Flags().DurationVar(&opts.requestTimeout, "timeout", 10*time.Second, "time to wait for each translation frame")
	cmd.Flags().StringVar(&textsRaw, "texts", "", "phrases separated by '|' (optional)")
	cmd.Flags().BoolVar(&opts.verbose, "verbose", false, "print each delivery")
	return cmd
}

func (o *benchOptions) normalize(textsRaw string) error {
	o.baseURL = strings.TrimRight(strings.TrimSpace(o.baseURL), "/")
	if o.baseURL == "" {
		return fmt.Errorf("base-url is required")
	}
	if o.requests <= 0 {
		return fmt.Errorf("requests must be > 0")
	}
	if o.requestTimeout < 100*time.Millisecond {
		o.requestTimeout = 100 * time.Millisecond
	}
	if o.cooldown <= 0 {
		o.cooldown = gate.DefaultCooldown
	}
	// Requests from one client and language inside the cooldown are suppressed.
	o.interDelay = max(o.interDelay, o.cooldown)
	o.texts = nil
	for _, part := range strings.Split(textsRaw, "|") {
		if t := strings.TrimSpace(part); t != "" {
			o.texts = append(o.texts, t)
		}
	}
	if len(o.texts) == 0 {
		o.texts = append([]string(nil), defaultPhrases...)
	}
	return nil
}

func runBench(ctx context.Context, opts benchOptions, progress io.Writer) (benchReport, error) {
	clientID := "bench-" + uuid.NewString()
	wsURL, err := translationWSURL(opts.baseURL, opts.language, clientID)
	if err != nil {
		return benchReport{}, fmt.Errorf("build ws URL: %w", err)
	}
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, wsURL, nil)
	if err != nil {
		return benchReport{}, fmt.Errorf("open websocket: %w", err)
	}
	defer conn.Close()

	httpClient := &http.Client{Timeout: opts.requestTimeout}
	if err := waitForSession(ctx, httpClient, opts.baseURL, clientID, opts.requestTimeout); err != nil {
		return benchReport{}, err
	}

	frames := make(chan session.Frame, 32)
	readErr := make(chan error, 1)
	done := make(chan struct{})
	defer close(done)
	go readTranslations(conn, frames, readErr, done)

	var report benchReport
	for i := 0; i < opts.requests; i++ {
		// A sequence suffix makes every phrase a cache miss.
		text := fmt.Sprintf("%s %d", opts.texts[i%len(opts.texts)], i+1)
		started := time.Now()
		if err := postTranslate(ctx, httpClient, opts.baseURL, pipeline.Request{
			Text:           text,
			TargetLanguage: opts.language,
			ClientID:       clientID,
			IsFinal:        true,
		}); err != nil {
			return report, fmt.Errorf("request %d: %w", i+1, err)
		}
		report.Sent++

		timer := time.NewTimer(opts.requestTimeout)
		select {
		case <-ctx.Done():
			timer.Stop()
			return report, ctx.Err()
		case err := <-readErr:
			timer.Stop()
			return report, fmt.Errorf("ws read: %w", err)
		case frame := <-frames:
			timer.Stop()
			elapsed := time.Since(started)
			report.Received++
			report.Latencies = append(report.Latencies, elapsed)
			if opts.verbose {
				fmt.Fprintf(progress, "bench: %d %q -> %q (%s)\n", i+1, text, frame.Translation, elapsed.Round(time.Millisecond))
			}
		case <-timer.C:
			fmt.Fprintf(progress, "bench: %d %q timed out after %s\n", i+1, text, opts.requestTimeout)
		}

		if opts.interDelay > 0 && i+1 < opts.requests {
			select {
			case <-ctx.Done():
				return report, ctx.Err()
			case <-time.After(opts.interDelay):
			}
		}
	}
	return report, nil
}

func translationWSURL(baseURL, lang, clientID string) (string, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return "", err
	}
	switch u.Scheme {
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	default:
		return "", fmt.Errorf("unsupported scheme %q", u.Scheme)
	}
	u.Path = strings.TrimRight(u.Path, "/") + "/ws/translation/" + url.PathEscape(lang)
	u.RawQuery = url.Values{"client_id": {clientID}}.Encode()
	return u.String(), nil
}

// waitForSession polls the session listing until clientID is subscribed, since the
// server registers WebSocket listeners after the upgrade completes.
func waitForSession(ctx context.Context, client *http.Client, baseURL, clientID string, timeout time.Duration) error {
	deadline := time.Now().Add(timeout)
	for {
		ok, err := hasSession(ctx, client, baseURL, clientID)
		if err != nil {
			return fmt.Errorf("list sessions: %w", err)
		}
		if ok {
			return nil
		}
		if time.Now().After(deadline) {
			return fmt.Errorf("session %s was not registered within %s", clientID, timeout)
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(20 * time.Millisecond):
		}
	}
}

func hasSession(ctx context.Context, client *http.Client, baseURL, clientID string) (bool, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, baseURL+"/v1/sessions", nil)
	if err != nil {
		return false, err
	}
	resp, err := client.Do(req)
	if err != nil {
		return false, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return false, fmt.Errorf("status %d", resp.StatusCode)
	}
	var body struct {
		Sessions []session.Info `json:"sessions"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return false, err
	}
	return slices.ContainsFunc(body.Sessions, func(s session.Info) bool { return s.ID == clientID }), nil
}

func postTranslate(ctx context.Context, client *http.Client, baseURL string, payload pipeline.Request) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, baseURL+"/translate_realtime", bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("status %d: %s", resp.StatusCode, strings.TrimSpace(string(detail)))
	}
	return nil
}

func readTranslations(conn *websocket.Conn, out chan<- session.Frame, errCh chan<- error, done <-chan struct{}) {
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure) && !errors.Is(err, net.ErrClosed) {
				errCh <- err
			}
			return
		}
		var frame session.Frame
		if err := json.Unmarshal(data, &frame); err != nil || frame.Type == "" {
			// keepalive or unrelated frame
			continue
		}
		select {
		case out <- frame:
		case <-done:
			return
		}
	}
}

func (r benchReport) write(w io.Writer) {
	fmt.Fprintf(w, "sent=%d received=%d\n", r.Sent, r.Received)
	if len(r.Latencies) == 0 {
		return
	}
	fmt.Fprintf(w, "latency min=%s p50=%s p95=%s max=%s\n",
		percentile(r.Latencies, 0).Round(time.Microsecond),
		percentile(r.Latencies, 50).Round(time.Microsecond),
		percentile(r.Latencies, 95).Round(time.Microsecond),
		percentile(r.Latencies, 100).Round(time.Microsecond),
	)
}

// percentile uses nearest-rank over a sorted copy of values.
func percentile(values []time.Duration, p float64) time.Duration {
	if len(values) == 0 {
		return 0
	}
	sorted := slices.Clone(values)
	slices.Sort(sorted)
	if p <= 0 {
		return sorted[0]
	}
	if p >= 100 {
		return sorted[len(sorted)-1]
	}
	rank := int(p/100*float64(len(sorted)) + 0.999999)
	if rank < 1 {
		rank = 1
	}
	return sorted[rank-1]
}

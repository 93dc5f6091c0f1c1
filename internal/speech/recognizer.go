package speech

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
)

var (
	ErrEngineUnavailable = errors.New("speech recognition engine unavailable")
	ErrStreamStopped     = errors.New("recognition stream stopped")
)

// Handlers receive recognition events. Any of them may be nil. Callbacks run on the
// goroutine that called Feed or Stop.
type Handlers struct {
	Recognizing func(text string)
	Recognized  func(text string)
	Canceled    func(err error)
}

func (h Handlers) recognizing(text string) {
	if h.Recognizing != nil && text != "" {
		h.Recognizing(text)
	}
}

func (h Handlers) recognized(text string) {
	if h.Recognized != nil && text != "" {
		h.Recognized(text)
	}
}

func (h Handlers) canceled(err error) {
	if h.Canceled != nil {
		h.Canceled(err)
	}
}

// Recognizer opens continuous recognition streams over 16-bit mono PCM.
type Recognizer interface {
	Start(ctx context.Context, h Handlers) (Stream, error)
}

type Stream interface {
	// Feed pushes one block of little-endian PCM16 samples.
	Feed(pcm []byte) error
	// Stop flushes pending text through Recognized and releases the stream.
	Stop() error
}

type engineResult struct {
	Partial string `json:"partial,omitempty"`
	Text    string `json:"text,omitempty"`
}

// resultText extracts the text of an engine JSON result. Small models emit a lone
// "the" on background noise, which is dropped.
func resultText(raw string, final bool) string {
	var r engineResult
	if err := json.Unmarshal([]byte(raw), &r); err != nil {
		return ""
	}
	text := r.Partial
	if final {
		text = r.Text
	}
	text = strings.TrimSpace(text)
	if text == "the" {
		return ""
	}
	return text
}

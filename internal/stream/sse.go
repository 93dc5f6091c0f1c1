package stream

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"
)

var ErrStreamingUnsupported = errors.New("streaming unsupported by response writer")

// SSEWriter frames values as text/event-stream events and flushes each one so
// intermediaries never hold a frame back.
type SSEWriter struct {
	w            http.ResponseWriter
	rc           *http.ResponseController
	writeTimeout time.Duration
}

func NewSSEWriter(w http.ResponseWriter, writeTimeout time.Duration) (*SSEWriter, error) {
	if _, ok := w.(http.Flusher); !ok {
		return nil, ErrStreamingUnsupported
	}
	h := w.Header()
	h.Set("Content-Type", "text/event-stream")
	h.Set("Cache-Control", "no-cache")
	h.Set("X-Accel-Buffering", "no")
	h.Del("Connection")
	w.WriteHeader(http.StatusOK)

	s := &SSEWriter{w: w, rc: http.NewResponseController(w), writeTimeout: writeTimeout}
	if err := s.rc.Flush(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *SSEWriter) WriteFrame(v any) error {
	payload, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal frame: %w", err)
	}
	if s.writeTimeout > 0 {
		// Not every ResponseWriter supports deadlines; the frame is still written.
		_ = s.rc.SetWriteDeadline(time.Now().Add(s.writeTimeout))
	}
	if _, err := fmt.Fprintf(s.w, "data: %s\n\n", payload); err != nil {
		return err
	}
	return s.rc.Flush()
}

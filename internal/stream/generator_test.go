package stream

import (
	"context"
	"encoding/json"
	"errors"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/ent0n29/babel/internal/session"
	"github.com/ent0n29/babel/internal/transcript"
)

type recordingWriter struct {
	mu     sync.Mutex
	frames []any
	failAt int
}

func (w *recordingWriter) WriteFrame(v any) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.failAt > 0 && len(w.frames)+1 >= w.failAt {
		return errors.New("broken pipe")
	}
	w.frames = append(w.frames, v)
	return nil
}

func (w *recordingWriter) snapshot() []any {
	w.mu.Lock()
	defer w.mu.Unlock()
	return append([]any(nil), w.frames...)
}

func countKeepalives(frames []any) int {
	n := 0
	for _, f := range frames {
		if _, ok := f.(KeepaliveFrame); ok {
			n++
		}
	}
	return n
}

func TestTranslationsDeliversThenIdles(t *testing.T) {
	reg := session.NewRegistry(8)
	s, _, err := reg.Subscribe("viewer", "es")
	if err != nil {
		t.Fatalf("Subscribe() error = %v", err)
	}
	_ = reg.Publish("viewer", session.Message{Kind: session.KindFinal, Text: "[es] hola"})

	w := &recordingWriter{}
	reason := Translations(context.Background(), s, w, Options{
		Keepalive:   5 * time.Millisecond,
		IdleTimeout: 40 * time.Millisecond,
	})
	if reason != ReasonIdle {
		t.Fatalf("reason = %q, want %q", reason, ReasonIdle)
	}
	frames := w.snapshot()
	if len(frames) == 0 {
		t.Fatalf("no frames written")
	}
	first, ok := frames[0].(session.Frame)
	if !ok || first.Type != session.KindFinal || first.Translation != "[es] hola" {
		t.Fatalf("first frame = %#v, want final translation", frames[0])
	}
	if countKeepalives(frames) == 0 {
		t.Fatalf("expected keepalive frames while idle")
	}
}

func TestTranslationsStopsOnDisconnect(t *testing.T) {
	reg := session.NewRegistry(8)
	s, _, _ := reg.Subscribe("viewer", "pt")
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan Reason, 1)
	go func() {
		done <- Translations(ctx, s, &recordingWriter{}, Options{Keepalive: 10 * time.Millisecond, IdleTimeout: time.Minute})
	}()
	time.Sleep(25 * time.Millisecond)
	cancel()
	select {
	case reason := <-done:
		if reason != ReasonDisconnected {
			t.Fatalf("reason = %q, want %q", reason, ReasonDisconnected)
		}
	case <-time.After(time.Second):
		t.Fatalf("generator did not stop after cancel")
	}
}

func TestTranslationsStopsOnWriteFailure(t *testing.T) {
	reg := session.NewRegistry(8)
	s, _, _ := reg.Subscribe("viewer", "id")
	reason := Translations(context.Background(), s, &recordingWriter{failAt: 1}, Options{Keepalive: 5 * time.Millisecond})
	if reason != ReasonWriteFailed {
		t.Fatalf("reason = %q, want %q", reason, ReasonWriteFailed)
	}
}

func TestTranslationsIdleUsesDeliveryTime(t *testing.T) {
	reg := session.NewRegistry(8)
	s, _, _ := reg.Subscribe("viewer", "yue")

	var mu sync.Mutex
	clock := time.Now()
	now := func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		return clock
	}
	advance := func(d time.Duration) {
		mu.Lock()
		clock = clock.Add(d)
		mu.Unlock()
	}

	// Keepalives alone never count as activity.
	s.MarkDelivered(now())
	advance(31 * time.Second)
	reason := Translations(context.Background(), s, &recordingWriter{}, Options{
		Keepalive:   2 * time.Millisecond,
		IdleTimeout: 30 * time.Second,
		Now:         now,
	})
	if reason != ReasonIdle {
		t.Fatalf("reason = %q, want %q", reason, ReasonIdle)
	}
}

func TestTranscriptionsNeverIdle(t *testing.T) {
	feed := transcript.NewFeed(8)
	l := feed.Listen()
	defer feed.Unlisten(l)
	feed.Publish(transcript.Fragment{Text: "hello", IsFinal: false})
	feed.Publish(transcript.Fragment{Text: "hello world", IsFinal: true})

	w := &recordingWriter{}
	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Millisecond)
	defer cancel()
	reason := Transcriptions(ctx, l, w, Options{Keepalive: 5 * time.Millisecond, IdleTimeout: 10 * time.Millisecond})
	if reason != ReasonDisconnected {
		t.Fatalf("reason = %q, want %q", reason, ReasonDisconnected)
	}
	frames := w.snapshot()
	if len(frames) < 3 {
		t.Fatalf("frames = %d, want data plus keepalives", len(frames))
	}
	want := []transcript.Frame{
		{Transcription: "hello", IsFinal: false},
		{Transcription: "hello world", IsFinal: true},
	}
	for i, wf := range want {
		if got, ok := frames[i].(transcript.Frame); !ok || got != wf {
			t.Fatalf("frame %d = %#v, want %#v", i, frames[i], wf)
		}
	}
	if countKeepalives(frames) == 0 {
		t.Fatalf("expected keepalive frames")
	}
}

func TestSSEWriterFraming(t *testing.T) {
	rec := httptest.NewRecorder()
	w, err := NewSSEWriter(rec, time.Second)
	if err != nil {
		t.Fatalf("NewSSEWriter() error = %v", err)
	}
	if err := w.WriteFrame(KeepaliveFrame{Keepalive: true}); err != nil {
		t.Fatalf("WriteFrame() error = %v", err)
	}
	if err := w.WriteFrame(session.Message{Kind: session.KindPartial, Text: "hola"}.Frame()); err != nil {
		t.Fatalf("WriteFrame() error = %v", err)
	}
	if got := rec.Header().Get("Content-Type"); got != "text/event-stream" {
		t.Fatalf("Content-Type = %q", got)
	}
	if got := rec.Header().Get("Cache-Control"); got != "no-cache" {
		t.Fatalf("Cache-Control = %q", got)
	}
	events := strings.Split(strings.TrimSuffix(rec.Body.String(), "\n\n"), "\n\n")
	if len(events) != 2 {
		t.Fatalf("events = %q, want 2", events)
	}
	if events[0] != `data: {"keepalive":true}` {
		t.Fatalf("event 0 = %q", events[0])
	}
	var frame session.Frame
	if err := json.Unmarshal([]byte(strings.TrimPrefix(events[1], "data: ")), &frame); err != nil {
		t.Fatalf("decode event 1: %v", err)
	}
	if frame.Type != session.KindPartial || frame.Translation != "hola" {
		t.Fatalf("frame = %+v", frame)
	}
}

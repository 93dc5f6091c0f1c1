package live

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/ent0n29/babel/internal/capture"
	"github.com/ent0n29/babel/internal/session"
	"github.com/ent0n29/babel/internal/speech"
	"github.com/ent0n29/babel/internal/transcript"
)

type failingSource struct{}

func (failingSource) Open(int, int) (capture.Stream, error) {
	return nil, errors.New("no microphone")
}

func newTestDriver(src capture.Source) (*Driver, *transcript.Feed, *session.Registry) {
	feed := transcript.NewFeed(64)
	reg := session.NewRegistry(16)
	rec := &speech.MockRecognizer{Script: []string{"hello there"}, WordEvery: 1}
	d := NewDriver(rec, src, feed, reg, nil, Config{SampleRate: 16000, Frames: 160})
	return d, feed, reg
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("condition not met before deadline")
}

func TestStartPublishesTranscriptions(t *testing.T) {
	d, feed, _ := newTestDriver(capture.NewSyntheticSource())
	l := feed.Listen()
	defer feed.Unlisten(l)

	if !d.Start() {
		t.Fatalf("Start() = false, want true")
	}
	if d.Start() {
		t.Fatalf("second Start() = true, want false")
	}
	if !d.Running() {
		t.Fatalf("Running() = false after Start")
	}

	frag, err := l.Mailbox().Receive(context.Background(), 2*time.Second)
	if err != nil {
		t.Fatalf("Receive() error = %v", err)
	}
	if frag.Text != "hello" || frag.IsFinal {
		t.Fatalf("first fragment = %+v, want partial hello", frag)
	}
	frag, err = l.Mailbox().Receive(context.Background(), 2*time.Second)
	if err != nil {
		t.Fatalf("Receive() error = %v", err)
	}
	if frag.Text != "hello there" || !frag.IsFinal {
		t.Fatalf("second fragment = %+v, want final hello there", frag)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := d.Shutdown(ctx); err != nil {
		t.Fatalf("Shutdown() error = %v", err)
	}
}

func TestStopNotifiesSessionsAndDrains(t *testing.T) {
	d, feed, reg := newTestDriver(capture.NewSyntheticSource())
	var sessions []*session.Session
	for _, sub := range []struct{ id, lang string }{{"a", "es"}, {"b", "pt"}, {"c", "yue"}} {
		s, _, err := reg.Subscribe(sub.id, sub.lang)
		if err != nil {
			t.Fatalf("Subscribe(%s) error = %v", sub.id, err)
		}
		sessions = append(sessions, s)
	}
	l := feed.Listen()
	defer feed.Unlisten(l)

	d.Start()
	waitFor(t, func() bool { return l.Mailbox().Len() > 0 })

	report := d.Stop()
	if !report.WasStreaming {
		t.Fatalf("WasStreaming = false, want true")
	}
	if report.Notified != 3 {
		t.Fatalf("Notified = %d, want 3", report.Notified)
	}
	if d.Running() {
		t.Fatalf("Running() = true after Stop")
	}
	for _, s := range sessions {
		if n := s.Mailbox().Len(); n != 1 {
			t.Fatalf("session %s mailbox length = %d, want 1", s.ID, n)
		}
		msg, _ := s.Mailbox().TryPop()
		if msg.Kind != session.KindFinal || msg.Text != "" {
			t.Fatalf("session %s message = %+v, want empty final", s.ID, msg)
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := d.Shutdown(ctx); err != nil {
		t.Fatalf("Shutdown() error = %v", err)
	}
	l.Mailbox().Drain()
	time.Sleep(30 * time.Millisecond)
	if n := l.Mailbox().Len(); n != 0 {
		t.Fatalf("transcriptions published after stop: %d", n)
	}
}

func TestStopIsIdempotent(t *testing.T) {
	d, _, _ := newTestDriver(capture.NewSyntheticSource())
	first := d.Stop()
	second := d.Stop()
	if first.WasStreaming || second.WasStreaming {
		t.Fatalf("Stop() without Start reported streaming")
	}
}

func TestRunFailureClearsFlag(t *testing.T) {
	d, _, _ := newTestDriver(failingSource{})
	if !d.Start() {
		t.Fatalf("Start() = false, want true")
	}
	waitFor(t, func() bool { return !d.Running() })
	if !d.Start() {
		t.Fatalf("Start() after failed run = false, want true")
	}
	_ = d.Shutdown(context.Background())
}

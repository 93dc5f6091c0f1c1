package session

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ent0n29/babel/internal/translate"
)

func TestSubscribeIsIdempotent(t *testing.T) {
	r := NewRegistry(8)
	first, existed, err := r.Subscribe("viewer-1", "es")
	if err != nil {
		t.Fatalf("Subscribe() error = %v", err)
	}
	if existed {
		t.Fatalf("first Subscribe() reported an existing session")
	}
	second, existed, err := r.Subscribe("viewer-1", "pt")
	if err != nil {
		t.Fatalf("second Subscribe() error = %v", err)
	}
	if !existed || first != second || first.Mailbox() != second.Mailbox() {
		t.Fatalf("second Subscribe() did not reuse the session")
	}
	if got := second.Language(); got != "pt" {
		t.Fatalf("Language() = %q, want pt", got)
	}
	if r.Count() != 1 {
		t.Fatalf("Count() = %d, want 1", r.Count())
	}
}

func TestSubscribeRejectsUnknownLanguage(t *testing.T) {
	r := NewRegistry(8)
	if _, _, err := r.Subscribe("viewer", "klingon"); !errors.Is(err, translate.ErrUnsupportedLanguage) {
		t.Fatalf("Subscribe() error = %v, want ErrUnsupportedLanguage", err)
	}
	if _, _, err := r.Subscribe("", "es"); err == nil {
		t.Fatalf("Subscribe() with empty id should fail")
	}
}

func TestPublishDeliversInOrder(t *testing.T) {
	r := NewRegistry(8)
	s, _, _ := r.Subscribe("viewer", "id")
	for _, text := range []string{"satu", "dua", "tiga"} {
		if err := r.Publish("viewer", Message{Kind: KindFinal, Text: text}); err != nil {
			t.Fatalf("Publish() error = %v", err)
		}
	}
	for _, want := range []string{"satu", "dua", "tiga"} {
		msg, ok := s.Mailbox().TryPop()
		if !ok || msg.Text != want {
			t.Fatalf("mailbox = (%+v, %v), want %q", msg, ok, want)
		}
	}
}

func TestPublishToUnknownClient(t *testing.T) {
	r := NewRegistry(8)
	err := r.Publish("ghost", Message{Kind: KindFinal, Text: "hola"})
	if !errors.Is(err, ErrNotSubscribed) {
		t.Fatalf("Publish() error = %v, want ErrNotSubscribed", err)
	}
}

func TestPublishOverflowCallsDropHook(t *testing.T) {
	r := NewRegistry(2)
	var drops atomic.Int32
	r.SetDropHook(func(string) { drops.Add(1) })
	s, _, _ := r.Subscribe("viewer", "es")
	for i := 0; i < 5; i++ {
		_ = r.Publish("viewer", Message{Kind: KindFinal, Text: string(rune('a' + i))})
	}
	if drops.Load() != 3 {
		t.Fatalf("drops = %d, want 3", drops.Load())
	}
	msg, _ := s.Mailbox().TryPop()
	if msg.Text != "d" {
		t.Fatalf("oldest surviving message = %q, want d", msg.Text)
	}
}

func TestDetachRemovesAfterLastGenerator(t *testing.T) {
	r := NewRegistry(8)
	var counts []int
	r.SetChangeHook(func(n int) { counts = append(counts, n) })

	s, _, _ := r.Subscribe("viewer", "yue")
	_, _, _ = r.Subscribe("viewer", "yue")

	if r.Detach(s) {
		t.Fatalf("Detach() removed the session while another generator was attached")
	}
	if !r.Detach(s) {
		t.Fatalf("Detach() should remove the session after the last generator")
	}
	if _, ok := r.Get("viewer"); ok {
		t.Fatalf("session still registered after final Detach()")
	}
	if err := r.Publish("viewer", Message{Kind: KindFinal}); !errors.Is(err, ErrNotSubscribed) {
		t.Fatalf("Publish() after removal error = %v, want ErrNotSubscribed", err)
	}
	if len(counts) != 2 || counts[0] != 1 || counts[1] != 0 {
		t.Fatalf("change hook counts = %v, want [1 0]", counts)
	}
}

func TestDetachStaleSessionKeepsReplacement(t *testing.T) {
	r := NewRegistry(8)
	old, _, _ := r.Subscribe("viewer", "es")
	r.Unsubscribe("viewer")
	fresh, _, _ := r.Subscribe("viewer", "es")

	if r.Detach(old) {
		t.Fatalf("detaching a stale session must not remove its replacement")
	}
	if got, ok := r.Get("viewer"); !ok || got != fresh {
		t.Fatalf("replacement session missing after stale Detach()")
	}
}

func TestNotifyAll(t *testing.T) {
	r := NewRegistry(8)
	var sessions []*Session
	for _, id := range []string{"a", "b", "c"} {
		s, _, _ := r.Subscribe(id, "en")
		sessions = append(sessions, s)
	}
	if n := r.NotifyAll(Message{Kind: KindFinal}); n != 3 {
		t.Fatalf("NotifyAll() = %d, want 3", n)
	}
	for _, s := range sessions {
		if s.Mailbox().Len() != 1 {
			t.Fatalf("session %s has %d messages, want 1", s.ID, s.Mailbox().Len())
		}
	}
}

func TestIdleTracking(t *testing.T) {
	r := NewRegistry(8)
	t0 := time.Unix(1_700_000_000, 0)
	r.now = func() time.Time { return t0 }
	s, _, _ := r.Subscribe("viewer", "es")

	if got := s.IdleFor(t0.Add(10 * time.Second)); got != 10*time.Second {
		t.Fatalf("IdleFor() = %v, want 10s", got)
	}
	s.MarkDelivered(t0.Add(8 * time.Second))
	if got := s.IdleFor(t0.Add(10 * time.Second)); got != 2*time.Second {
		t.Fatalf("IdleFor() after delivery = %v, want 2s", got)
	}
}

func TestSnapshotAndClear(t *testing.T) {
	r := NewRegistry(8)
	_, _, _ = r.Subscribe("b", "es")
	_, _, _ = r.Subscribe("a", "pt")
	snap := r.Snapshot()
	if len(snap) != 2 || snap[0].ID != "a" || snap[1].TargetLanguage != "es" {
		t.Fatalf("Snapshot() = %+v", snap)
	}
	if n := r.Clear(); n != 2 || r.Count() != 0 {
		t.Fatalf("Clear() = %d, Count() = %d", n, r.Count())
	}
}

func TestStartReporter(t *testing.T) {
	r := NewRegistry(8)
	_, _, _ = r.Subscribe("a", "es")
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	reported := make(chan int, 4)
	r.StartReporter(ctx, 10*time.Millisecond, func(n int) {
		select {
		case reported <- n:
		default:
		}
	})
	select {
	case n := <-reported:
		if n != 1 {
			t.Fatalf("reported count = %d, want 1", n)
		}
	case <-time.After(time.Second):
		t.Fatalf("reporter never fired")
	}
}

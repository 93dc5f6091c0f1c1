package gate

import (
	"testing"
	"time"
)

func TestAdmitDebouncesPerPair(t *testing.T) {
	g := New(Config{Cooldown: time.Second})
	t0 := time.Unix(1_700_000_000, 0)

	steps := []struct {
		client string
		lang   string
		at     time.Duration
		want   Decision
	}{
		{client: "c1", lang: "es", at: 0, want: Allow},
		{client: "c1", lang: "es", at: 500 * time.Millisecond, want: Suppress},
		{client: "c1", lang: "pt", at: 500 * time.Millisecond, want: Allow},
		{client: "c2", lang: "es", at: 600 * time.Millisecond, want: Allow},
		{client: "c1", lang: "es", at: 999 * time.Millisecond, want: Suppress},
		{client: "c1", lang: "es", at: time.Second, want: Allow},
		{client: "c1", lang: "es", at: 1500 * time.Millisecond, want: Suppress},
	}
	for i, s := range steps {
		if got := g.Admit(s.client, s.lang, t0.Add(s.at)); got != s.want {
			t.Fatalf("step %d: Admit(%s, %s, +%v) = %v, want %v", i, s.client, s.lang, s.at, got, s.want)
		}
	}
}

func TestAdmittedRequestsRespectCooldown(t *testing.T) {
	g := New(Config{Cooldown: time.Second})
	t0 := time.Unix(1_700_000_000, 0)

	var admitted []time.Time
	for i := 0; i < 50; i++ {
		now := t0.Add(time.Duration(i) * 130 * time.Millisecond)
		if g.Admit("viewer", "yue", now) == Allow {
			admitted = append(admitted, now)
		}
	}
	if len(admitted) < 2 {
		t.Fatalf("admitted %d requests, want at least 2", len(admitted))
	}
	for i := 1; i < len(admitted); i++ {
		if gap := admitted[i].Sub(admitted[i-1]); gap < time.Second {
			t.Fatalf("admissions %d and %d are %v apart, want >= 1s", i-1, i, gap)
		}
	}
}

func TestAdmitEnforcesGlobalWindow(t *testing.T) {
	g := New(Config{Cooldown: time.Millisecond, RateLimit: 3, Window: time.Minute})
	t0 := time.Unix(1_700_000_000, 0)

	for i, client := range []string{"a", "b", "c"} {
		if got := g.Admit(client, "es", t0.Add(time.Duration(i)*time.Second)); got != Allow {
			t.Fatalf("Admit(%s) = %v, want allow", client, got)
		}
	}
	if got := g.Admit("d", "es", t0.Add(10*time.Second)); got != RateLimited {
		t.Fatalf("Admit(d) = %v, want rate_limited", got)
	}
	if got := g.InWindow(t0.Add(10 * time.Second)); got != 3 {
		t.Fatalf("InWindow() = %d, want 3", got)
	}

	// The first admission leaves the window at t0+60s.
	if got := g.Admit("d", "es", t0.Add(time.Minute)); got != Allow {
		t.Fatalf("Admit(d) after slide = %v, want allow", got)
	}
	if got := g.Admit("e", "es", t0.Add(time.Minute)); got != RateLimited {
		t.Fatalf("Admit(e) = %v, want rate_limited", got)
	}
}

func TestRefusedRequestsAreNotRecorded(t *testing.T) {
	g := New(Config{Cooldown: time.Second, RateLimit: 1, Window: time.Minute})
	t0 := time.Unix(1_700_000_000, 0)

	if got := g.Admit("a", "en", t0); got != Allow {
		t.Fatalf("Admit(a) = %v, want allow", got)
	}
	if got := g.Admit("b", "en", t0.Add(time.Second)); got != RateLimited {
		t.Fatalf("Admit(b) = %v, want rate_limited", got)
	}
	// b was refused, so it has no cooldown once the window slides.
	if got := g.Admit("b", "en", t0.Add(time.Minute)); got != Allow {
		t.Fatalf("Admit(b) after slide = %v, want allow", got)
	}
}

func TestSweepDropsStalePairs(t *testing.T) {
	g := New(Config{Cooldown: time.Second, Window: 10 * time.Second})
	t0 := time.Unix(1_700_000_000, 0)
	g.Admit("a", "es", t0)
	g.Admit("b", "es", t0.Add(20*time.Second))
	if got := g.Pairs(); got != 1 {
		t.Fatalf("Pairs() = %d, want 1", got)
	}
}

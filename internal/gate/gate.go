package gate

import (
	"errors"
	"sync"
	"time"
)

const (
	DefaultCooldown  = time.Second
	DefaultRateLimit = 10_000
	DefaultWindow    = 60 * time.Second
)

var ErrRateLimited = errors.New("global translation rate limit reached")

// Decision is the outcome of an admission check.
type Decision int

const (
	Allow Decision = iota
	Suppress
	RateLimited
)

func (d Decision) String() string {
	switch d {
	case Allow:
		return "allow"
	case Suppress:
		return "suppress"
	case RateLimited:
		return "rate_limited"
	default:
		return "unknown"
	}
}

type Config struct {
	Cooldown  time.Duration
	RateLimit int
	Window    time.Duration
}

// Gate debounces translation requests per (client, language) pair and enforces a
// global sliding-window ceiling across all pairs.
type Gate struct {
	mu       sync.Mutex
	cooldown time.Duration
	window   time.Duration
	last     map[string]time.Time

	// ring of admission times; len(ring) is the global ceiling.
	ring  []time.Time
	next  int
	count int

	lastSweep time.Time
}

func New(cfg Config) *Gate {
	if cfg.Cooldown <= 0 {
		cfg.Cooldown = DefaultCooldown
	}
	if cfg.RateLimit <= 0 {
		cfg.RateLimit = DefaultRateLimit
	}
	if cfg.Window <= 0 {
		cfg.Window = DefaultWindow
	}
	return &Gate{
		cooldown: cfg.Cooldown,
		window:   cfg.Window,
		last:     make(map[string]time.Time),
		ring:     make([]time.Time, cfg.RateLimit),
	}
}

func pairKey(clientID, language string) string {
	return clientID + ":" + language
}

// Admit decides whether a final fragment from clientID for language may proceed.
// Only an Allow decision is recorded against the cooldown and the global window.
func (g *Gate) Admit(clientID, language string, now time.Time) Decision {
	key := pairKey(clientID, language)

	g.mu.Lock()
	defer g.mu.Unlock()

	if last, ok := g.last[key]; ok && now.Sub(last) < g.cooldown {
		return Suppress
	}

	if g.count == len(g.ring) {
		// The oldest admission sits at next once the ring is full.
		oldest := g.ring[g.next]
		if now.Sub(oldest) < g.window {
			return RateLimited
		}
		g.count--
	}
	g.ring[g.next] = now
	g.next = (g.next + 1) % len(g.ring)
	g.count++

	g.last[key] = now
	g.sweepLocked(now)
	return Allow
}

// InWindow reports how many admissions fall inside the sliding window at now.
func (g *Gate) InWindow(now time.Time) int {
	g.mu.Lock()
	defer g.mu.Unlock()
	n := 0
	for i := 0; i < g.count; i++ {
		idx := (g.next - 1 - i + len(g.ring)) % len(g.ring)
		if now.Sub(g.ring[idx]) >= g.window {
			break
		}
		n++
	}
	return n
}

// Pairs returns the number of tracked (client, language) pairs.
func (g *Gate) Pairs() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.last)
}

func (g *Gate) sweepLocked(now time.Time) {
	if now.Sub(g.lastSweep) < g.window {
		return
	}
	g.lastSweep = now
	for k, t := range g.last {
		if now.Sub(t) >= g.cooldown {
			delete(g.last, k)
		}
	}
}

package cache

import (
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/hashicorp/golang-lru/v2/expirable"
)

const (
	DefaultRecentSize  = 10_000
	DefaultDurableSize = 200_000
	DefaultDurableTTL  = 24 * time.Hour
)

// Tier identifies which cache layer answered a lookup.
type Tier string

const (
	TierNone    Tier = ""
	TierRecent  Tier = "recent"
	TierDurable Tier = "durable"
)

type Config struct {
	RecentSize  int
	DurableSize int
	DurableTTL  time.Duration
}

// Layered holds translations in two tiers: a small recency tier consulted first and a
// larger time-expiring tier that survives recency eviction.
//
// Writes to both tiers happen in one critical section. Lookups do not take that lock;
// concurrent misses for the same key are coalesced by the dispatcher instead.
type Layered struct {
	writeMu sync.Mutex
	recent  *lru.Cache[string, string]
	durable *expirable.LRU[string, string]
}

func NewLayered(cfg Config) (*Layered, error) {
	if cfg.RecentSize <= 0 {
		cfg.RecentSize = DefaultRecentSize
	}
	if cfg.DurableSize <= 0 {
		cfg.DurableSize = DefaultDurableSize
	}
	if cfg.DurableTTL <= 0 {
		cfg.DurableTTL = DefaultDurableTTL
	}
	recent, err := lru.New[string, string](cfg.RecentSize)
	if err != nil {
		return nil, err
	}
	return &Layered{
		recent:  recent,
		durable: expirable.NewLRU[string, string](cfg.DurableSize, nil, cfg.DurableTTL),
	}, nil
}

// Key builds the cache key for a normalized text and target language.
func Key(normalized, language string) string {
	return normalized + ":" + language
}

// Lookup checks the recent tier, then the durable tier. A durable hit is promoted
// into the recent tier before returning.
func (c *Layered) Lookup(key string) (string, Tier, bool) {
	if v, ok := c.recent.Get(key); ok {
		return v, TierRecent, true
	}
	v, ok := c.durable.Get(key)
	if !ok {
		return "", TierNone, false
	}
	c.writeMu.Lock()
	c.recent.Add(key, v)
	c.writeMu.Unlock()
	return v, TierDurable, true
}

// Store writes a successful translation to both tiers.
func (c *Layered) Store(key, value string) {
	if key == "" || value == "" {
		return
	}
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	c.durable.Add(key, value)
	c.recent.Add(key, value)
}

// Peek reports the value held by a single tier without touching recency or promoting.
func (c *Layered) Peek(tier Tier, key string) (string, bool) {
	switch tier {
	case TierRecent:
		return c.recent.Peek(key)
	case TierDurable:
		return c.durable.Peek(key)
	default:
		return "", false
	}
}

// Len returns the entry count of each tier.
func (c *Layered) Len() (recent, durable int) {
	return c.recent.Len(), c.durable.Len()
}

func (c *Layered) Purge() {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	c.recent.Purge()
	c.durable.Purge()
}

// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package resilience

import (
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
)

// defaultCooldownEntries bounds the last-seen map so a long session cannot
// grow it without limit.
const defaultCooldownEntries = 4096

// Cooldown remembers when each key was last allowed and refuses repeats
// inside the TTL.
type Cooldown struct {
	ttl   time.Duration
	clock Clock

	mu   sync.Mutex
	seen *lru.Cache[string, time.Time]
}

// NewCooldown returns a cooldown with the given TTL holding at most size
// keys (least recently used keys are forgotten first).
func NewCooldown(ttl time.Duration, size int, clock Clock) *Cooldown {
	if size <= 0 {
		size = defaultCooldownEntries
	}
	if clock == nil {
		clock = RealClock
	}
	seen, err := lru.New[string, time.Time](size)
	if err != nil {
		// lru.New only fails for a non-positive size, excluded above.
		panic(err)
	}
	return &Cooldown{ttl: ttl, clock: clock, seen: seen}
}

// Allow reports whether key is outside its cooldown window and, if so,
// records now as its last use.
func (c *Cooldown) Allow(key string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	now := c.clock.Now()
	if last, ok := c.seen.Get(key); ok && now.Sub(last) < c.ttl {
		return false
	}
	c.seen.Add(key, now)
	return true
}

// Forget clears key so the next Allow succeeds.
func (c *Cooldown) Forget(key string) {
	c.seen.Remove(key)
}

// Len returns the number of tracked keys.
func (c *Cooldown) Len() int {
	return c.seen.Len()
}

// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package resilience

import (
	"sync"
	"time"
)

// Breaker is a circuit breaker that stays open for a fixed cooldown after
// Trip and then closes by itself.
type Breaker struct {
	name     string
	cooldown time.Duration
	clock    Clock

	mu        sync.Mutex
	open      bool
	trippedAt time.Time
	trips     int
}

// NewBreaker returns a closed breaker.
func NewBreaker(name string, cooldown time.Duration, clock Clock) *Breaker {
	if clock == nil {
		clock = RealClock
	}
	return &Breaker{name: name, cooldown: cooldown, clock: clock}
}

// Name returns the dependency the breaker guards.
func (b *Breaker) Name() string { return b.name }

// Trip opens the breaker and restarts the cooldown.
func (b *Breaker) Trip() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.open = true
	b.trippedAt = b.clock.Now()
	b.trips++
}

// Open reports whether calls should be short-circuited. An open breaker
// whose cooldown has elapsed closes on this call.
func (b *Breaker) Open() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.open {
		return false
	}
	if b.clock.Now().Sub(b.trippedAt) >= b.cooldown {
		b.open = false
		return false
	}
	return true
}

// Reset closes the breaker immediately.
func (b *Breaker) Reset() {
	b.mu.Lock()
	b.open = false
	b.mu.Unlock()
}

// Remaining returns how long the breaker stays open; 0 when closed.
func (b *Breaker) Remaining() time.Duration {
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.open {
		return 0
	}
	left := b.cooldown - b.clock.Now().Sub(b.trippedAt)
	if left < 0 {
		return 0
	}
	return left
}

// Trips returns how many times the breaker was tripped.
func (b *Breaker) Trips() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.trips
}

// PendingTracker counts consecutive 202 responses per host and opens a
// host breaker once the threshold is reached.
type PendingTracker struct {
	threshold int
	cooldown  time.Duration
	clock     Clock

	mu       sync.Mutex
	counts   map[string]int
	breakers map[string]*Breaker
}

// NewPendingTracker returns a tracker; threshold <= 0 disables tripping.
func NewPendingTracker(threshold int, cooldown time.Duration, clock Clock) *PendingTracker {
	if clock == nil {
		clock = RealClock
	}
	return &PendingTracker{
		threshold: threshold,
		cooldown:  cooldown,
		clock:     clock,
		counts:    make(map[string]int),
		breakers:  make(map[string]*Breaker),
	}
}

// Pending records a 202 from host and reports whether the host breaker
// tripped on this call.
func (p *PendingTracker) Pending(host string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.counts[host]++
	if p.threshold <= 0 || p.counts[host] < p.threshold {
		return false
	}
	b, ok := p.breakers[host]
	if !ok {
		b = NewBreaker("pending:"+host, p.cooldown, p.clock)
		p.breakers[host] = b
	}
	b.Trip()
	p.counts[host] = 0
	return true
}

// Settled records a non-202 response from host, clearing its streak.
func (p *PendingTracker) Settled(host string) {
	p.mu.Lock()
	delete(p.counts, host)
	p.mu.Unlock()
}

// Open reports whether host is currently short-circuited.
func (p *PendingTracker) Open(host string) bool {
	p.mu.Lock()
	b, ok := p.breakers[host]
	p.mu.Unlock()
	return ok && b.Open()
}

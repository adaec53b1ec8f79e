// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package resilience holds the process-scoped state that keeps the pipeline
// polite and terminating: provider circuit breakers, per-URL cooldowns,
// per-host 202 tracking, the once-per-session enrichment set, and the
// block-list. A State is constructed explicitly and passed to each stage;
// nothing here is a package-level singleton.
package resilience

import (
	"context"
	"sync"
	"time"
)

// BlockList records URLs that refused us so later runs skip them. The
// durable implementation lives in the store package.
type BlockList interface {
	IsBlocked(ctx context.Context, rawURL string) (bool, error)
	BlockURL(ctx context.Context, rawURL, reason string) error
}

// MemoryBlockList is a BlockList that lasts for the life of the process.
type MemoryBlockList struct {
	mu      sync.RWMutex
	reasons map[string]string
}

// NewMemoryBlockList returns an empty in-memory block-list.
func NewMemoryBlockList() *MemoryBlockList {
	return &MemoryBlockList{reasons: make(map[string]string)}
}

// IsBlocked reports whether rawURL was blocked.
func (m *MemoryBlockList) IsBlocked(_ context.Context, rawURL string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.reasons[NormalizeURL(rawURL)]
	return ok, nil
}

// BlockURL records rawURL with reason.
func (m *MemoryBlockList) BlockURL(_ context.Context, rawURL, reason string) error {
	m.mu.Lock()
	m.reasons[NormalizeURL(rawURL)] = reason
	m.mu.Unlock()
	return nil
}

// Reason returns why rawURL was blocked.
func (m *MemoryBlockList) Reason(rawURL string) (string, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	r, ok := m.reasons[NormalizeURL(rawURL)]
	return r, ok
}

// Options configures a State.
type Options struct {
	Clock Clock

	// FetchCooldown is the per-URL enrichment cooldown.
	FetchCooldown time.Duration

	// PendingThreshold and PendingCooldown configure per-host 202 breakers.
	PendingThreshold int
	PendingCooldown  time.Duration

	// BlockList defaults to an in-memory list.
	BlockList BlockList
}

// State is the shared resilience state for one orchestration run, or for
// the whole process when cross-run persistence is intended. All methods are
// safe for concurrent use.
type State struct {
	clock Clock

	mu       sync.Mutex
	breakers map[string]*Breaker
	enriched map[string]bool

	fetches *Cooldown
	pending *PendingTracker
	blocks  BlockList
}

// NewState builds a State from opts.
func NewState(opts Options) *State {
	clock := opts.Clock
	if clock == nil {
		clock = RealClock
	}
	blocks := opts.BlockList
	if blocks == nil {
		blocks = NewMemoryBlockList()
	}
	return &State{
		clock:    clock,
		breakers: make(map[string]*Breaker),
		enriched: make(map[string]bool),
		fetches:  NewCooldown(opts.FetchCooldown, 0, clock),
		pending:  NewPendingTracker(opts.PendingThreshold, opts.PendingCooldown, clock),
		blocks:   blocks,
	}
}

// Clock returns the clock shared by the state's breakers and cooldowns.
func (s *State) Clock() Clock { return s.clock }

// Breaker returns the named breaker, creating it with cooldown on first use.
func (s *State) Breaker(name string, cooldown time.Duration) *Breaker {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.breakers[name]
	if !ok {
		b = NewBreaker(name, cooldown, s.clock)
		s.breakers[name] = b
	}
	return b
}

// AllowFetch applies the per-URL cooldown to rawURL.
func (s *State) AllowFetch(rawURL string) bool {
	return s.fetches.Allow(NormalizeURL(rawURL))
}

// MarkEnriched records that key's summary was overwritten and reports
// whether this was the first time in the session.
func (s *State) MarkEnriched(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.enriched[key] {
		return false
	}
	s.enriched[key] = true
	return true
}

// Pending returns the per-host 202 tracker.
func (s *State) Pending() *PendingTracker { return s.pending }

// Blocks returns the block-list.
func (s *State) Blocks() BlockList { return s.blocks }

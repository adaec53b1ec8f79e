// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package search discovers papers for a topic. A paginated primary API
// client, a scraped secondary client and the Aggregator that runs query
// strategies against them live here, together with dedup and output
// formatting.
package search

import (
	"context"

	"github.com/pdiddy/litscout/pkg/types"
)

// Primary is a paginated search API. Each implementation owns a circuit
// breaker that the Aggregator resets before every strategy.
type Primary interface {
	Name() string
	Search(ctx context.Context, query string, filters types.SearchFilters, target int) ([]types.Paper, error)
	ResetBreaker()
}

// Secondary is the scraped fallback provider. It returns
// httputil.ErrBlocked when the results page is a captcha or block page.
type Secondary interface {
	Name() string
	Search(ctx context.Context, query string, count int) ([]types.Paper, error)
}

// dedupSet accepts papers whose dedup key has not been seen before.
type dedupSet struct {
	seen    map[string]bool
	removed int
}

func newDedupSet() *dedupSet {
	return &dedupSet{seen: make(map[string]bool)}
}

// add reports whether p was accepted. Papers with an empty key are rejected.
func (d *dedupSet) add(p types.Paper) bool {
	key := p.DedupKey()
	if key == "" {
		return false
	}
	if d.seen[key] {
		d.removed++
		return false
	}
	d.seen[key] = true
	return true
}

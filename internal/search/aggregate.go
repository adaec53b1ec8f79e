// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package search

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"go.uber.org/zap"

	"github.com/pdiddy/litscout/internal/httputil"
	"github.com/pdiddy/litscout/internal/resilience"
	"github.com/pdiddy/litscout/pkg/types"
)

// Strategist produces the ordered query strategies for a topic.
// *query.Generator implements it.
type Strategist interface {
	Generate(ctx context.Context, topic string) []string
}

// StrategyStats records what one provider call contributed.
type StrategyStats struct {
	Provider string `json:"provider" yaml:"provider"`
	Query    string `json:"query" yaml:"query"`
	Fetched  int    `json:"fetched" yaml:"fetched"`
	Accepted int    `json:"accepted" yaml:"accepted"`
	Err      string `json:"error,omitempty" yaml:"error,omitempty"`
}

// Output is the result of one aggregation run.
type Output struct {
	Topic  string        `json:"topic" yaml:"topic"`
	Papers []types.Paper `json:"papers" yaml:"papers"`

	// Strategies lists every provider call in order, the secondary
	// fallback last.
	Strategies []StrategyStats `json:"strategies" yaml:"strategies"`

	DupsRemoved    int      `json:"dups_removed" yaml:"dups_removed"`
	ProviderErrors []string `json:"provider_errors,omitempty" yaml:"provider_errors,omitempty"`

	// Blocked is set when the secondary provider hit a block page.
	Blocked bool `json:"blocked,omitempty" yaml:"blocked,omitempty"`
}

// Aggregator runs query strategies against the primary provider until the
// scan depth is met, then tops up once from the secondary provider with the
// original topic.
type Aggregator struct {
	Strategies Strategist
	Primary    Primary
	Secondary  Secondary // optional
	Config     types.SearchConfig
	Clock      resilience.Clock
	Logger     *zap.Logger

	// Progress receives one human-readable line per provider call. Nil
	// discards progress.
	Progress io.Writer
}

// Aggregate collects up to filters.ScanDepth unique papers for topic. On
// cancellation it returns ctx.Err() together with the papers gathered so
// far.
func (a *Aggregator) Aggregate(ctx context.Context, topic string, filters types.SearchFilters) (Output, error) {
	topic = strings.TrimSpace(topic)
	if topic == "" {
		return Output{}, fmt.Errorf("topic is empty: provide a research topic")
	}
	if a.Primary == nil {
		return Output{}, fmt.Errorf("%w: no primary search provider configured", httputil.ErrConfig)
	}

	logger := a.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	clock := a.Clock
	if clock == nil {
		clock = resilience.RealClock
	}
	progress := a.Progress
	if progress == nil {
		progress = io.Discard
	}

	filters = filters.Normalize()
	target := filters.ScanDepth
	out := Output{Topic: topic}
	seen := newDedupSet()

	accept := func(papers []types.Paper) int {
		n := 0
		for _, p := range papers {
			if len(out.Papers) >= target {
				break
			}
			if !filters.InRange(p.Year) {
				continue
			}
			if seen.add(p) {
				out.Papers = append(out.Papers, p)
				n++
			}
		}
		return n
	}
	finish := func(err error) (Output, error) {
		out.DupsRemoved = seen.removed
		return out, err
	}

	queries := a.Strategies.Generate(ctx, topic)
	if len(queries) == 0 {
		queries = []string{topic}
	}
	logger.Info("aggregating", zap.String("topic", topic), zap.Int("target", target), zap.Strings("strategies", queries))

	for i, q := range queries {
		if err := ctx.Err(); err != nil {
			return finish(err)
		}
		remaining := target - len(out.Papers)

		a.Primary.ResetBreaker()
		papers, err := a.Primary.Search(ctx, q, filters, remaining+a.Config.Margin)
		st := StrategyStats{Provider: a.Primary.Name(), Query: q, Fetched: len(papers)}
		st.Accepted = accept(papers)
		if err != nil {
			if ctx.Err() != nil {
				out.Strategies = append(out.Strategies, st)
				return finish(ctx.Err())
			}
			st.Err = err.Error()
			out.ProviderErrors = append(out.ProviderErrors, fmt.Sprintf("%s %q: %v", a.Primary.Name(), q, err))
		}
		out.Strategies = append(out.Strategies, st)
		fmt.Fprintf(progress, "[%d/%d] %s %q: %d fetched, %d new (%d/%d)\n",
			i+1, len(queries), st.Provider, q, st.Fetched, st.Accepted, len(out.Papers), target)

		if len(out.Papers) >= target {
			return finish(nil)
		}
		if i < len(queries)-1 && a.Config.PolitenessDelay > 0 {
			if err := clock.Sleep(ctx, a.Config.PolitenessDelay); err != nil {
				return finish(err)
			}
		}
	}

	if a.Secondary != nil {
		remaining := target - len(out.Papers)
		papers, err := a.Secondary.Search(ctx, topic, remaining)
		st := StrategyStats{Provider: a.Secondary.Name(), Query: topic, Fetched: len(papers)}
		st.Accepted = accept(papers)
		if err != nil {
			if ctx.Err() != nil {
				out.Strategies = append(out.Strategies, st)
				return finish(ctx.Err())
			}
			if errors.Is(err, httputil.ErrBlocked) {
				out.Blocked = true
			}
			st.Err = err.Error()
			out.ProviderErrors = append(out.ProviderErrors, fmt.Sprintf("%s %q: %v", a.Secondary.Name(), topic, err))
			logger.Warn("secondary provider failed", zap.Error(err))
		}
		out.Strategies = append(out.Strategies, st)
		fmt.Fprintf(progress, "[fallback] %s %q: %d fetched, %d new (%d/%d)\n",
			st.Provider, topic, st.Fetched, st.Accepted, len(out.Papers), target)
	}

	return finish(nil)
}

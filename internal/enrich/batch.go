// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package enrich

import (
	"context"
	"errors"
	"sync/atomic"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/pdiddy/litscout/pkg/types"
)

// Stats summarizes an EnrichAll run.
type Stats struct {
	Attempted int
	Enriched  int
	NotFound  int
	Skipped   int
}

// EnrichAll enriches papers in place, at most concurrency at a time. A
// failure on one paper never stops the others; only cancellation of ctx
// ends the batch early, and its error is returned.
func (p *Pipeline) EnrichAll(ctx context.Context, papers []types.Paper, concurrency int) (Stats, error) {
	if concurrency <= 0 {
		concurrency = p.Config.Concurrency
	}
	if concurrency <= 0 {
		concurrency = 1
	}

	var attempted, enriched, notFound, skipped atomic.Int64
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(concurrency)

	for i := range papers {
		paper := &papers[i]
		if !NeedsEnrichment(paper) {
			skipped.Add(1)
			continue
		}
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			attempted.Add(1)
			ok, err := p.EnrichPaper(gctx, paper)
			switch {
			case ok:
				enriched.Add(1)
			case err == nil, errors.Is(err, ErrNotFound):
				notFound.Add(1)
			case gctx.Err() != nil:
				return gctx.Err()
			default:
				notFound.Add(1)
				p.Logger.Warn("enrichment failed", zap.String("title", paper.Title), zap.Error(err))
			}
			return nil
		})
	}

	err := g.Wait()
	if err == nil {
		err = ctx.Err()
	}
	return Stats{
		Attempted: int(attempted.Load()),
		Enriched:  int(enriched.Load()),
		NotFound:  int(notFound.Load()),
		Skipped:   int(skipped.Load()),
	}, err
}

// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package search

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"

	"go.uber.org/zap"

	"github.com/pdiddy/litscout/internal/httputil"
	"github.com/pdiddy/litscout/internal/resilience"
	"github.com/pdiddy/litscout/pkg/types"
)

// retryBatch runs fetch until it succeeds, retrying transport failures
// with a fixed delay and 429s with linear backoff, up to the bounds in cfg.
// Other errors are returned at once.
func retryBatch[T any](ctx context.Context, cfg types.SearchConfig, clock resilience.Clock, log *zap.Logger, fetch func(context.Context) (T, error)) (T, error) {
	var zero T
	transportRetries, rateRetries := 0, 0
	for {
		v, err := fetch(ctx)
		if err == nil {
			return v, nil
		}
		if ctx.Err() != nil {
			return zero, ctx.Err()
		}

		wait := cfg.TransportRetryDelay
		switch {
		case errors.Is(err, httputil.ErrRateLimited):
			if rateRetries >= cfg.RateLimitRetries {
				return zero, err
			}
			wait = httputil.Linear(cfg.RateLimitBase, rateRetries)
			rateRetries++
		case errors.Is(err, httputil.ErrNetwork):
			if transportRetries >= cfg.MaxTransportRetries {
				return zero, err
			}
			transportRetries++
		default:
			return zero, err
		}

		log.Debug("retrying batch", zap.Duration("wait", wait), zap.Error(err))
		if err := clock.Sleep(ctx, wait); err != nil {
			return zero, err
		}
	}
}

// apiStatusError maps a search API status to the error taxonomy: 429 is
// ErrRateLimited, 5xx is ErrNetwork so it is retried, and other non-200
// codes are an *httputil.HTTPError. It returns nil for 200.
func apiStatusError(provider string, resp *http.Response, endpoint string) error {
	switch {
	case resp.StatusCode == http.StatusOK:
		return nil
	case resp.StatusCode == http.StatusTooManyRequests:
		io.Copy(io.Discard, resp.Body)
		return fmt.Errorf("%s: %w", provider, httputil.ErrRateLimited)
	case resp.StatusCode >= 500:
		io.Copy(io.Discard, resp.Body)
		return fmt.Errorf("%w: %s returned HTTP %d", httputil.ErrNetwork, provider, resp.StatusCode)
	default:
		return &httputil.HTTPError{Status: resp.StatusCode, URL: endpoint}
	}
}

// batchContext applies the per-page timeout when one is configured.
func batchContext(ctx context.Context, cfg types.SearchConfig) (context.Context, context.CancelFunc) {
	if cfg.BatchTimeout > 0 {
		return context.WithTimeout(ctx, cfg.BatchTimeout)
	}
	return ctx, func() {}
}

// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package httputil

import (
	"context"
	"io"
	"math"
	"net/http"
	"time"
)

// RetryBaseDelay controls the base duration for backoff on HTTP 429
// responses from API backends (LLM providers, OpenAlex). Tests override this
// to avoid real sleeps.
var RetryBaseDelay = 2 * time.Second

const defaultMaxRetries = 3

// Backoff computes the wait before retry number attempt (0-based).
type Backoff func(base time.Duration, attempt int) time.Duration

// Linear waits base*(attempt+1): 1x, 2x, 3x...
func Linear(base time.Duration, attempt int) time.Duration {
	return base * time.Duration(attempt+1)
}

// Exponential waits base*2^attempt: 1x, 2x, 4x...
func Exponential(base time.Duration, attempt int) time.Duration {
	return time.Duration(math.Pow(2, float64(attempt))) * base
}

// DoWithRetry executes an HTTP request and retries on HTTP 429 (Too Many
// Requests) using backoff. When maxRetries is 0 the default (3) is used.
// On each 429 the response body is drained and closed before sleeping. If
// the context is cancelled during a wait the function returns ctx.Err().
// After exhausting retries the last 429 response is returned so the caller
// can inspect it.
func DoWithRetry(ctx context.Context, client *http.Client, req *http.Request, maxRetries int, backoff Backoff) (*http.Response, error) {
	if maxRetries <= 0 {
		maxRetries = defaultMaxRetries
	}
	if backoff == nil {
		backoff = Exponential
	}

	for attempt := 0; ; attempt++ {
		attemptReq := req.Clone(ctx)
		if attempt > 0 && req.GetBody != nil {
			body, err := req.GetBody()
			if err != nil {
				return nil, err
			}
			attemptReq.Body = body
		}
		resp, err := client.Do(attemptReq)
		if err != nil {
			return nil, err
		}

		if resp.StatusCode != http.StatusTooManyRequests || attempt >= maxRetries {
			return resp, nil
		}

		io.Copy(io.Discard, resp.Body)
		resp.Body.Close()

		if err := SleepContext(ctx, backoff(RetryBaseDelay, attempt)); err != nil {
			return nil, err
		}
	}
}

// SleepContext waits for d or until ctx ends, whichever is first.
func SleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

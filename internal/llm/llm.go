// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package llm is the pipeline's text-completion collaborator. Backends for
// the Claude API, the Gemini API, and a local OpenAI-compatible endpoint
// share one interface; provider routing is decided once, from
// configuration, by New.
package llm

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/pdiddy/litscout/internal/httputil"
	"github.com/pdiddy/litscout/pkg/types"
)

// Request is a single completion request.
type Request struct {
	Prompt string

	// JSON asks the backend to constrain output to a JSON object.
	JSON bool

	// Image is an optional attachment; ImageMIME defaults to image/png.
	Image     []byte
	ImageMIME string

	// MaxTokens bounds the reply (default 1024).
	MaxTokens int
}

func (r Request) maxTokens() int {
	if r.MaxTokens > 0 {
		return r.MaxTokens
	}
	return 1024
}

func (r Request) imageMIME() string {
	if r.ImageMIME != "" {
		return r.ImageMIME
	}
	return "image/png"
}

// Backend completes a prompt synchronously.
type Backend interface {
	Complete(ctx context.Context, req Request) (string, error)
}

// ErrEmpty is returned when a backend answers with no text.
var ErrEmpty = errors.New("empty completion")

// New builds the backend selected by cfg.Provider. It returns a nil
// Backend and nil error for LLMNone, and an httputil.ErrConfig error when
// the selected provider lacks credentials or an endpoint.
func New(ctx context.Context, cfg types.AIConfig) (Backend, error) {
	client := &http.Client{Timeout: requestTimeout}

	var b Backend
	switch cfg.Provider {
	case "", types.LLMNone:
		return nil, nil
	case types.LLMClaude:
		if cfg.APIKey == "" {
			return nil, fmt.Errorf("%w: claude provider requires anthropic-api-key", httputil.ErrConfig)
		}
		b = &ClaudeBackend{APIKey: cfg.APIKey, Model: orDefault(cfg.Model, defaultClaudeModel), Client: client}
	case types.LLMGemini:
		if cfg.APIKey == "" {
			return nil, fmt.Errorf("%w: gemini provider requires gemini-api-key", httputil.ErrConfig)
		}
		g, err := NewGeminiBackend(ctx, cfg.APIKey, orDefault(cfg.Model, defaultGeminiModel))
		if err != nil {
			return nil, err
		}
		b = g
	case types.LLMLocal:
		if cfg.Endpoint == "" {
			return nil, fmt.Errorf("%w: local provider requires llm.endpoint", httputil.ErrConfig)
		}
		b = &LocalBackend{Endpoint: cfg.Endpoint, Model: cfg.Model, Client: client}
	default:
		return nil, fmt.Errorf("%w: unknown llm provider %q", httputil.ErrConfig, cfg.Provider)
	}

	return WithRetry(b, cfg.MaxRetries), nil
}

func orDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}

// requestTimeout bounds a single completion call on every backend.
const requestTimeout = 90 * time.Second

// backoffBase controls the base duration for exponential backoff between
// failed completions. Tests override this to avoid real sleeps.
var backoffBase = time.Second

type retryBackend struct {
	next       Backend
	maxRetries int
}

// WithRetry wraps b so failed completions are retried with exponential
// backoff. maxRetries <= 0 uses 2. Context errors are never retried.
func WithRetry(b Backend, maxRetries int) Backend {
	if maxRetries <= 0 {
		maxRetries = 2
	}
	return &retryBackend{next: b, maxRetries: maxRetries}
}

func (r *retryBackend) Complete(ctx context.Context, req Request) (string, error) {
	var lastErr error
	for attempt := 0; attempt <= r.maxRetries; attempt++ {
		if attempt > 0 {
			if err := httputil.SleepContext(ctx, httputil.Exponential(backoffBase, attempt-1)); err != nil {
				return "", err
			}
		}
		out, err := r.next.Complete(ctx, req)
		if err == nil {
			return out, nil
		}
		if ctx.Err() != nil || errors.Is(err, httputil.ErrConfig) {
			return "", err
		}
		lastErr = err
	}
	return "", fmt.Errorf("after %d retries: %w", r.maxRetries, lastErr)
}

// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package enrich upgrades thin paper abstracts from the paper's landing
// page. A fetched page goes through an ordered cascade: four pure parsing
// stages and, as a last resort, verbatim extraction by an LLM. The first
// stage that yields an abstract wins.
package enrich

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"go.uber.org/zap"

	"github.com/pdiddy/litscout/internal/httputil"
	"github.com/pdiddy/litscout/internal/llm"
	"github.com/pdiddy/litscout/internal/resilience"
	"github.com/pdiddy/litscout/pkg/types"
)

// ErrNotFound means no stage produced an abstract, the URL is cooling
// down, or the page could not be fetched.
var ErrNotFound = errors.New("abstract not found")

// Pipeline runs the enrichment cascade.
type Pipeline struct {
	Gateway httputil.Gateway
	// LLM backs the last stage; nil skips it.
	LLM    llm.Backend
	State  *resilience.State
	Config types.EnrichConfig
	Logger *zap.Logger
}

// NewPipeline returns a pipeline with defaults filled in.
func NewPipeline(gw httputil.Gateway, backend llm.Backend, state *resilience.State, cfg types.EnrichConfig, logger *zap.Logger) *Pipeline {
	if logger == nil {
		logger = zap.NewNop()
	}
	if state == nil {
		state = resilience.NewState(resilience.Options{FetchCooldown: cfg.Cooldown})
	}
	return &Pipeline{Gateway: gw, LLM: backend, State: state, Config: cfg, Logger: logger}
}

// Enrich returns the abstract found on the page at rawURL. A repeat call
// for the same URL inside the cooldown returns ErrNotFound without any
// network traffic.
func (p *Pipeline) Enrich(ctx context.Context, rawURL string) (string, error) {
	if strings.TrimSpace(rawURL) == "" {
		return "", ErrNotFound
	}
	log := p.Logger.With(zap.String("url", rawURL))
	if !p.State.AllowFetch(rawURL) {
		log.Debug("enrichment cooling down")
		return "", ErrNotFound
	}

	page, err := p.fetchPage(ctx, rawURL)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return "", ctxErr
		}
		log.Debug("page unavailable", zap.Error(err))
		return "", ErrNotFound
	}

	for _, stage := range Stages {
		if text, ok := stage.Extract(page); ok {
			log.Debug("abstract found", zap.String("stage", stage.Name))
			return text, nil
		}
	}

	if p.LLM == nil {
		return "", ErrNotFound
	}
	text, err := p.extractWithLLM(ctx, page)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return "", ctxErr
		}
		log.Debug("llm extraction failed", zap.Error(err))
		return "", ErrNotFound
	}
	log.Debug("abstract found", zap.String("stage", "llm"))
	return text, nil
}

// fetchPage is the first stage. A 202 or a bot block gets exactly one
// retry through the cache mirror; any other failure ends the cascade.
func (p *Pipeline) fetchPage(ctx context.Context, rawURL string) (string, error) {
	resp, err := p.Gateway.Fetch(ctx, rawURL)
	if err != nil {
		return "", err
	}
	err = checkPage(resp)
	if err == nil {
		return string(resp.Body), nil
	}
	if !errors.Is(err, httputil.ErrProcessingPending) && !errors.Is(err, httputil.ErrBlocked) {
		return "", err
	}
	if p.Config.CacheMirror == "" {
		return "", err
	}

	mirror := p.Config.CacheMirror + rawURL
	p.Logger.Debug("retrying through cache mirror", zap.String("url", rawURL), zap.Error(err))
	resp, err = p.Gateway.Fetch(ctx, mirror)
	if err != nil {
		return "", fmt.Errorf("cache mirror: %w", err)
	}
	if err := checkPage(resp); err != nil {
		return "", fmt.Errorf("cache mirror: %w", err)
	}
	if looksLikeErrorPage(resp.Body) {
		return "", fmt.Errorf("cache mirror: %w", &httputil.HTTPError{Status: resp.Status, URL: mirror})
	}
	return string(resp.Body), nil
}

// errorPageTitle matches the <title> of pages that report a failure with
// a 200.
var errorPageTitle = regexp.MustCompile(`(?i)\b(404|not found|server error|bad request|service unavailable|error \d{3})\b`)

func looksLikeErrorPage(body []byte) bool {
	doc, ok := parse(string(body))
	if !ok {
		return true
	}
	return errorPageTitle.MatchString(doc.Find("title").First().Text())
}

func checkPage(resp *httputil.Response) error {
	if err := httputil.Classify(resp); err != nil {
		return err
	}
	if httputil.IsPDF(resp.Body) || !resp.IsHTML() {
		return fmt.Errorf("%w: not an HTML page", httputil.ErrMalformed)
	}
	if len(strings.TrimSpace(string(resp.Body))) == 0 {
		return fmt.Errorf("%w: empty page", httputil.ErrMalformed)
	}
	return nil
}

// NeedsEnrichment reports whether paper's summary is a placeholder or too
// short to be a real abstract.
func NeedsEnrichment(paper *types.Paper) bool {
	return paper.HasPlaceholderSummary() || len(strings.TrimSpace(paper.Summary)) < MinAbstractLength
}

// pageURL is the landing page to enrich from.
func pageURL(paper *types.Paper) string {
	switch {
	case paper.URL != "" && paper.URL != types.NotAvailable:
		return paper.URL
	case paper.DOI != "":
		return "https://doi.org/" + paper.DOI
	}
	return ""
}

// EnrichPaper overwrites paper.Summary with the enriched abstract and
// reports whether it did. A paper is overwritten at most once per session
// and only when NeedsEnrichment holds.
func (p *Pipeline) EnrichPaper(ctx context.Context, paper *types.Paper) (bool, error) {
	if !NeedsEnrichment(paper) {
		return false, nil
	}
	text, err := p.Enrich(ctx, pageURL(paper))
	if err != nil {
		return false, err
	}
	if !paper.HasPlaceholderSummary() && len(text) <= len(strings.TrimSpace(paper.Summary)) {
		return false, nil
	}
	if !p.State.MarkEnriched(paper.DedupKey()) {
		return false, nil
	}
	paper.Summary = text
	return true, nil
}

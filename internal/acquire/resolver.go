// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package acquire

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"slices"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/pdiddy/litscout/internal/httputil"
	"github.com/pdiddy/litscout/internal/pdftext"
	"github.com/pdiddy/litscout/internal/resilience"
	"github.com/pdiddy/litscout/internal/store"
	"github.com/pdiddy/litscout/pkg/types"
)

// DocumentSaver persists resolved documents.
type DocumentSaver interface {
	SaveDocument(ctx context.Context, doc *types.Document) error
}

// Options adjust one Resolve call. Zero values fall back to the
// resolver's configuration.
type Options struct {
	MaxRequests      int
	RequirePDF       bool
	AllowedHTMLHosts []string
}

// Resolver finds and downloads a paper's primary document by following
// links from its known URLs, depth-first, under a hard request budget.
type Resolver struct {
	Gateway httputil.Gateway
	// Extractor reads PDF text; nil stores PDFs without text.
	Extractor pdftext.Extractor
	// OpenAlex looks up open-access PDFs for DOIs; nil skips the lookup.
	OpenAlex *OpenAlex
	// Store saves resolved documents; nil skips saving.
	Store  DocumentSaver
	State  *resilience.State
	Config types.ResolveConfig
	Logger *zap.Logger

	newID func() string
}

// NewResolver returns a resolver with defaults filled in.
func NewResolver(gw httputil.Gateway, extractor pdftext.Extractor, state *resilience.State, cfg types.ResolveConfig, logger *zap.Logger) *Resolver {
	if logger == nil {
		logger = zap.NewNop()
	}
	if state == nil {
		state = resilience.NewState(resilience.Options{
			PendingThreshold: cfg.PendingThreshold,
			PendingCooldown:  cfg.PendingCooldown,
		})
	}
	return &Resolver{
		Gateway:   gw,
		Extractor: extractor,
		State:     state,
		Config:    cfg,
		Logger:    logger,
		newID:     uuid.NewString,
	}
}

// resolution is the per-call state threaded through the recursion.
type resolution struct {
	paper   types.Paper
	paperID string
	session *resilience.Session
	opts    Options
	log     *zap.Logger
}

// Resolve returns the best document reachable from paper: a PDF when one
// can be found, otherwise the landing page's HTML. It returns nil with a
// nil error when nothing was retrievable. Errors come only from
// cancellation or from saving the document.
func (r *Resolver) Resolve(ctx context.Context, paper types.Paper, opts Options) (*types.Document, error) {
	defaults := types.DefaultResolveConfig()
	if opts.MaxRequests <= 0 {
		opts.MaxRequests = r.Config.MaxRequests
	}
	if opts.MaxRequests <= 0 {
		opts.MaxRequests = defaults.MaxRequests
	}
	opts.RequirePDF = opts.RequirePDF || r.Config.RequirePDF
	if opts.AllowedHTMLHosts == nil {
		opts.AllowedHTMLHosts = r.Config.AllowedHTMLHosts
	}

	res := &resolution{
		paper:   paper,
		paperID: store.PaperKey(paper),
		session: resilience.NewSession(opts.MaxRequests),
		opts:    opts,
		log:     r.Logger.With(zap.String("title", paper.Title)),
	}

	var htmlFallback *types.Document
	for _, start := range r.startURLs(ctx, res) {
		if res.session.Exhausted() {
			res.log.Debug("request budget exhausted", zap.Int("used", res.session.Used()))
			break
		}
		doc, err := r.attempt(ctx, res, start, 0)
		if err != nil {
			return nil, err
		}
		if doc == nil {
			continue
		}
		if doc.Type == types.DocumentPDF {
			return r.save(ctx, doc)
		}
		if htmlFallback == nil {
			htmlFallback = doc
		}
	}
	if htmlFallback == nil {
		return nil, ctx.Err()
	}
	return r.save(ctx, htmlFallback)
}

// startURLs lists where resolution begins, in priority order.
func (r *Resolver) startURLs(ctx context.Context, res *resolution) []string {
	var urls []string
	add := func(u string) {
		u = strings.TrimSpace(u)
		if u == "" || u == types.NotAvailable || slices.Contains(urls, u) {
			return
		}
		urls = append(urls, u)
	}

	p := res.paper
	add(p.OpenAccessPDFURL)
	if r.OpenAlex != nil && p.DOI != "" && res.session.Spend() {
		oa, err := r.OpenAlex.LookupPDF(ctx, p.DOI)
		if err != nil {
			res.log.Debug("OpenAlex lookup failed", zap.String("doi", p.DOI), zap.Error(err))
		}
		add(oa)
	}
	add(p.URL)
	if p.DOI != "" {
		add(doiBase + p.DOI)
	}
	return urls
}

// attempt fetches target and classifies it. It returns a nil document
// when this path yields nothing; the error is non-nil only when ctx ended.
func (r *Resolver) attempt(ctx context.Context, res *resolution, target string, depth int) (*types.Document, error) {
	log := res.log.With(zap.String("url", target), zap.Int("depth", depth))
	maxDepth := r.Config.MaxDepth
	if maxDepth <= 0 {
		maxDepth = types.DefaultResolveConfig().MaxDepth
	}

	switch {
	case ctx.Err() != nil:
		return nil, ctx.Err()
	case depth > maxDepth:
		log.Debug("depth limit reached")
		return nil, nil
	case !res.session.Visit(target):
		return nil, nil
	}

	blocked, err := r.State.Blocks().IsBlocked(ctx, target)
	if err != nil {
		log.Warn("block-list lookup failed", zap.Error(err))
	}
	if blocked {
		log.Debug("skipping blocked URL")
		return nil, nil
	}
	host := resilience.Host(target)
	if r.State.Pending().Open(host) {
		log.Debug("host is still processing earlier requests")
		return nil, nil
	}
	if !res.session.Spend() {
		log.Debug("request budget exhausted")
		return nil, nil
	}

	resp, err := r.fetch(ctx, target)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		log.Debug("fetch failed", zap.Error(err))
		return nil, nil
	}

	switch {
	case resp.Status == http.StatusAccepted:
		if r.State.Pending().Pending(host) {
			log.Info("host breaker tripped after repeated 202 responses", zap.String("host", host))
		}
		return nil, nil
	case httputil.IsBlockStatus(resp.Status):
		r.settled(host)
		r.block(ctx, log, target, fmt.Sprintf("HTTP %d", resp.Status))
		return nil, nil
	case resp.Status < 200 || resp.Status > 299:
		r.settled(host)
		log.Debug("unexpected status", zap.Int("status", resp.Status))
		return nil, nil
	}
	r.settled(host)

	// The body decides, whatever the declared content type says.
	if httputil.IsPDF(resp.Body) {
		return r.pdfDocument(ctx, res, log, target, resp.Body)
	}
	if !resp.IsHTML() {
		log.Debug("unsupported content type", zap.String("content_type", resp.ContentType))
		return nil, nil
	}
	return r.htmlDocument(ctx, res, log, target, resp.Body, depth)
}

// settled clears host's streak of 202 responses.
func (r *Resolver) settled(host string) {
	r.State.Pending().Settled(host)
}

func (r *Resolver) fetch(ctx context.Context, target string) (*httputil.Response, error) {
	timeout := r.Config.Timeout
	if timeout <= 0 {
		timeout = types.DefaultResolveConfig().Timeout
	}
	fctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	return r.Gateway.Fetch(fctx, target)
}

func (r *Resolver) block(ctx context.Context, log *zap.Logger, target, reason string) {
	log.Info("blocking URL", zap.String("reason", reason))
	if err := r.State.Blocks().BlockURL(ctx, target, reason); err != nil {
		log.Warn("recording blocked URL failed", zap.Error(err))
	}
}

func (r *Resolver) pdfDocument(ctx context.Context, res *resolution, log *zap.Logger, target string, body []byte) (*types.Document, error) {
	minBytes := r.Config.MinPDFBytes
	if minBytes <= 0 {
		minBytes = types.DefaultResolveConfig().MinPDFBytes
	}
	if len(body) < minBytes {
		log.Debug("PDF too small, likely an error page", zap.Int("bytes", len(body)))
		return nil, nil
	}

	var text string
	if r.Extractor != nil {
		extracted, err := r.Extractor.Extract(ctx, body, r.Config.MaxPages)
		switch {
		case err == nil:
			text = extracted
		case ctx.Err() != nil:
			return nil, ctx.Err()
		case errors.Is(err, pdftext.ErrCorrupt):
			r.block(ctx, log, target, "corrupt PDF")
			return nil, nil
		default:
			log.Warn("PDF text extraction failed, keeping the file", zap.Error(err))
		}
	}
	return r.newDocument(res, types.DocumentPDF, target, body, text), nil
}

func (r *Resolver) htmlDocument(ctx context.Context, res *resolution, log *zap.Logger, target string, body []byte, depth int) (*types.Document, error) {
	page := string(body)
	if httputil.LooksLikeChallenge(body) {
		r.block(ctx, log, target, "challenge page")
		return nil, nil
	}
	if res.opts.RequirePDF && !hostAllowed(resilience.Host(target), res.opts.AllowedHTMLHosts) {
		log.Debug("HTML page rejected, a PDF is required")
		return nil, nil
	}

	for _, link := range FindPDFLinks(page, target) {
		if res.session.Exhausted() {
			break
		}
		if res.session.Visited(link) {
			continue
		}
		doc, err := r.attempt(ctx, res, link, depth+1)
		if err != nil {
			return nil, err
		}
		if doc != nil && doc.Type == types.DocumentPDF {
			return doc, nil
		}
	}

	prepared, err := PrepareHTML(page, target)
	if err != nil {
		log.Debug("could not rewrite HTML, keeping it as fetched", zap.Error(err))
		prepared = body
	}
	return r.newDocument(res, types.DocumentHTML, target, prepared, ReadableText(page, target)), nil
}

func hostAllowed(host string, allowed []string) bool {
	for _, a := range allowed {
		a = strings.ToLower(strings.TrimSpace(a))
		if host == a || strings.HasSuffix(host, "."+a) {
			return true
		}
	}
	return false
}

func (r *Resolver) newDocument(res *resolution, typ types.DocumentType, target string, content []byte, text string) *types.Document {
	newID := r.newID
	if newID == nil {
		newID = uuid.NewString
	}
	return &types.Document{
		ID:          newID(),
		PaperID:     res.paperID,
		Type:        typ,
		Content:     content,
		TextContent: text,
		OriginalURL: target,
		Timestamp:   r.State.Clock().Now(),
	}
}

func (r *Resolver) save(ctx context.Context, doc *types.Document) (*types.Document, error) {
	if r.Store == nil {
		return doc, nil
	}
	if err := r.Store.SaveDocument(ctx, doc); err != nil {
		return doc, fmt.Errorf("saving document: %w", err)
	}
	return doc, nil
}

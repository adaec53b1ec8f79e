// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package search

import (
	"context"
	"encoding/xml"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/pdiddy/litscout/internal/httputil"
	"github.com/pdiddy/litscout/pkg/types"
)

// arxivAPIBase is the arXiv search endpoint. Declared as a var so tests
// can substitute an httptest server.
var arxivAPIBase = "https://export.arxiv.org/api/query"

// ArxivName is the provider name.
const ArxivName = "arxiv"

// arxivMaxResults caps one request; the API allows more but slows down.
const arxivMaxResults = 100

// arxivInterval is the spacing arXiv asks API clients to keep.
const arxivInterval = 3 * time.Second

// Arxiv is an alternative secondary provider backed by the arXiv Atom API.
// Requests are spaced by a token-bucket limiter.
type Arxiv struct {
	Client    *http.Client
	UserAgent string
	Limiter   *rate.Limiter
	Logger    *zap.Logger
}

// NewArxiv returns an arXiv provider with the recommended request spacing.
func NewArxiv(cfg types.SearchConfig, logger *zap.Logger) *Arxiv {
	if logger == nil {
		logger = zap.NewNop()
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &Arxiv{
		Client:    &http.Client{Timeout: timeout},
		UserAgent: cfg.UserAgent,
		Limiter:   rate.NewLimiter(rate.Every(arxivInterval), 1),
		Logger:    logger.Named(ArxivName),
	}
}

// Name returns the provider identifier.
func (a *Arxiv) Name() string { return ArxivName }

// Search returns up to count papers for query in relevance order. A 403 or
// 429 is reported as httputil.ErrBlocked.
func (a *Arxiv) Search(ctx context.Context, query string, count int) ([]types.Paper, error) {
	q := buildArxivQuery(query)
	if q == "" || count <= 0 {
		return nil, nil
	}
	count = min(count, arxivMaxResults)

	if a.Limiter != nil {
		if err := a.Limiter.Wait(ctx); err != nil {
			return nil, err
		}
	}

	params := url.Values{
		"search_query": {q},
		"start":        {"0"},
		"max_results":  {strconv.Itoa(count)},
		"sortBy":       {"relevance"},
		"sortOrder":    {"descending"},
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, arxivAPIBase+"?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	if a.UserAgent != "" {
		req.Header.Set("User-Agent", a.UserAgent)
	}

	client := a.Client
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("%w: arXiv request: %v", httputil.ErrNetwork, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		return nil, fmt.Errorf("%w: arXiv: %w", httputil.ErrBlocked, httputil.ErrRateLimited)
	case httputil.IsBlockStatus(resp.StatusCode):
		return nil, fmt.Errorf("%w: arXiv returned HTTP %d", httputil.ErrBlocked, resp.StatusCode)
	case resp.StatusCode != http.StatusOK:
		return nil, &httputil.HTTPError{Status: resp.StatusCode, URL: arxivAPIBase}
	}

	var feed arxivFeed
	if err := xml.NewDecoder(resp.Body).Decode(&feed); err != nil {
		return nil, fmt.Errorf("%w: parsing arXiv response: %v", httputil.ErrMalformed, err)
	}

	var papers []types.Paper
	for _, entry := range feed.Entries {
		if p, ok := entry.toPaper(); ok {
			papers = append(papers, p)
		}
	}
	a.Logger.Debug("arXiv results", zap.String("query", query), zap.Int("entries", len(feed.Entries)), zap.Int("papers", len(papers)))
	return papers, nil
}

// buildArxivQuery ANDs the query's terms across all fields.
func buildArxivQuery(query string) string {
	terms := strings.Fields(query)
	for i, t := range terms {
		terms[i] = "all:" + strings.Trim(t, `"'`)
	}
	return strings.Join(terms, " AND ")
}

// arXiv Atom feed XML structures.
type arxivFeed struct {
	Entries []arxivEntry `xml:"entry"`
}

type arxivEntry struct {
	ID        string        `xml:"id"`
	Title     string        `xml:"title"`
	Summary   string        `xml:"summary"`
	Published string        `xml:"published"`
	DOI       string        `xml:"doi"`
	Authors   []arxivAuthor `xml:"author"`
	Links     []arxivLink   `xml:"link"`
}

type arxivAuthor struct {
	Name string `xml:"name"`
}

type arxivLink struct {
	Href  string `xml:"href,attr"`
	Rel   string `xml:"rel,attr"`
	Type  string `xml:"type,attr"`
	Title string `xml:"title,attr"`
}

func (e arxivEntry) toPaper() (types.Paper, bool) {
	id := extractArxivID(e.ID)
	title := strings.Join(strings.Fields(e.Title), " ")
	if id == "" || len([]rune(title)) <= types.MinTitleLength {
		return types.Paper{}, false
	}

	var names []string
	for _, a := range e.Authors {
		if n := strings.Join(strings.Fields(a.Name), " "); n != "" {
			names = append(names, n)
		}
	}
	authors := strings.Join(names, ", ")
	if authors == "" {
		authors = types.UnknownAuthors
	}

	summary := strings.Join(strings.Fields(e.Summary), " ")
	if summary == "" {
		summary = types.PlaceholderSummary
	}

	var year int
	if t, err := time.Parse(time.RFC3339, strings.TrimSpace(e.Published)); err == nil {
		year = t.Year()
	}

	pdfURL := "https://arxiv.org/pdf/" + id
	for _, l := range e.Links {
		if l.Title == "pdf" || l.Type == "application/pdf" {
			pdfURL = l.Href
			break
		}
	}

	return types.Paper{
		Title:            title,
		Authors:          authors,
		Year:             year,
		DOI:              strings.TrimSpace(e.DOI),
		URL:              "https://arxiv.org/abs/" + id,
		OpenAccessPDFURL: pdfURL,
		Summary:          summary,
		Origin:           ArxivName,
	}, true
}

// extractArxivID pulls the arXiv ID from the entry's <id> URL
// (e.g. "http://arxiv.org/abs/2301.07041v1" -> "2301.07041").
func extractArxivID(idURL string) string {
	const prefix = "/abs/"
	idx := strings.Index(idURL, prefix)
	if idx < 0 {
		return ""
	}
	id := strings.TrimSpace(idURL[idx+len(prefix):])

	// Strip version suffix (e.g. "v1", "v2").
	if vIdx := strings.LastIndex(id, "v"); vIdx > 0 {
		if _, err := strconv.Atoi(id[vIdx+1:]); err == nil {
			id = id[:vIdx]
		}
	}
	return id
}

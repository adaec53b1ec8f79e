// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package search

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/pdiddy/litscout/internal/httputil"
	"github.com/pdiddy/litscout/internal/resilience"
	"github.com/pdiddy/litscout/pkg/types"
)

// openAlexSearchBase is the OpenAlex Works search endpoint. Declared as a
// var so tests can substitute an httptest server.
var openAlexSearchBase = "https://api.openalex.org/works"

// OpenAlexName is the provider and breaker name.
const OpenAlexName = "openalex"

// openAlexMaxPerPage is the largest page OpenAlex serves.
const openAlexMaxPerPage = 200

// OpenAlex is an alternative primary provider backed by the OpenAlex works
// API. It follows the same paging, retry and breaker rules as
// SemanticScholar.
type OpenAlex struct {
	Client *http.Client
	// Email is sent as mailto parameter for polite pool access.
	Email   string
	Config  types.SearchConfig
	Clock   resilience.Clock
	Breaker *resilience.Breaker
	Logger  *zap.Logger
}

// NewOpenAlex wires the provider to the run's resilience state.
func NewOpenAlex(cfg types.SearchConfig, email string, state *resilience.State, logger *zap.Logger) *OpenAlex {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &OpenAlex{
		Client:  &http.Client{},
		Email:   email,
		Config:  cfg,
		Clock:   state.Clock(),
		Breaker: state.Breaker(OpenAlexName, cfg.BreakerCooldown),
		Logger:  logger.Named(OpenAlexName),
	}
}

// Name returns the provider identifier.
func (o *OpenAlex) Name() string { return OpenAlexName }

// ResetBreaker closes the breaker so the next query gets a fresh chance.
func (o *OpenAlex) ResetBreaker() { o.Breaker.Reset() }

// Search collects up to target papers for query, one page at a time.
func (o *OpenAlex) Search(ctx context.Context, query string, filters types.SearchFilters, target int) ([]types.Paper, error) {
	if o.Breaker.Open() {
		o.Logger.Debug("breaker open, skipping", zap.String("query", query), zap.Duration("remaining", o.Breaker.Remaining()))
		return nil, nil
	}
	if target <= 0 || strings.TrimSpace(query) == "" {
		return nil, nil
	}

	perPage := o.Config.BatchSize
	if perPage <= 0 {
		perPage = 40
	}
	perPage = min(perPage, openAlexMaxPerPage)

	var papers []types.Paper
	for page := 1; len(papers) < target; page++ {
		resp, err := o.fetchPage(ctx, query, filters, page, perPage)
		if err != nil {
			if ctx.Err() != nil {
				return papers, ctx.Err()
			}
			if errors.Is(err, httputil.ErrRateLimited) && len(papers) == 0 {
				o.Breaker.Trip()
				o.Logger.Warn("rate limit retries exhausted, breaker tripped",
					zap.String("query", query), zap.Duration("cooldown", o.Config.BreakerCooldown))
				return nil, err
			}
			o.Logger.Warn("stopping pagination", zap.String("query", query), zap.Int("page", page), zap.Error(err))
			if errors.Is(err, httputil.ErrRateLimited) {
				return papers, nil
			}
			return papers, err
		}

		for _, work := range resp.Results {
			if p, ok := o.toPaper(work); ok {
				papers = append(papers, p)
			}
		}
		if len(resp.Results) == 0 || page*perPage >= resp.Meta.Count {
			break
		}
	}

	if len(papers) > target {
		papers = papers[:target]
	}
	return papers, nil
}

func (o *OpenAlex) fetchPage(ctx context.Context, query string, filters types.SearchFilters, page, perPage int) (*openAlexResponse, error) {
	return retryBatch(ctx, o.Config, o.Clock, o.Logger.With(zap.Int("page", page)),
		func(ctx context.Context) (*openAlexResponse, error) {
			return o.doPage(ctx, query, filters, page, perPage)
		})
}

func (o *OpenAlex) doPage(ctx context.Context, query string, filters types.SearchFilters, page, perPage int) (*openAlexResponse, error) {
	ctx, cancel := batchContext(ctx, o.Config)
	defer cancel()

	params := url.Values{
		"search":   {query},
		"per_page": {strconv.Itoa(perPage)},
		"page":     {strconv.Itoa(page)},
	}
	if f := openAlexFilter(filters); f != "" {
		params.Set("filter", f)
	}
	if o.Email != "" {
		params.Set("mailto", o.Email)
	}
	reqURL := openAlexSearchBase + "?" + params.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	if o.Config.UserAgent != "" {
		req.Header.Set("User-Agent", o.Config.UserAgent)
	}

	client := o.Client
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: OpenAlex request: %v", httputil.ErrNetwork, err)
	}
	defer resp.Body.Close()

	if err := apiStatusError("OpenAlex", resp, openAlexSearchBase); err != nil {
		return nil, err
	}

	var oar openAlexResponse
	if err := json.NewDecoder(resp.Body).Decode(&oar); err != nil {
		if ctx.Err() != nil {
			return nil, fmt.Errorf("%w: reading OpenAlex response: %v", httputil.ErrNetwork, err)
		}
		return nil, fmt.Errorf("%w: parsing OpenAlex response: %v", httputil.ErrMalformed, err)
	}
	return &oar, nil
}

// openAlexFilter renders the year bounds as publication-date filters.
func openAlexFilter(f types.SearchFilters) string {
	var parts []string
	if f.MinYear > 0 {
		parts = append(parts, fmt.Sprintf("from_publication_date:%04d-01-01", f.MinYear))
	}
	if f.MaxYear > 0 {
		parts = append(parts, fmt.Sprintf("to_publication_date:%04d-12-31", f.MaxYear))
	}
	return strings.Join(parts, ",")
}

// toPaper applies the quality filter and maps a work to a Paper.
func (o *OpenAlex) toPaper(work openAlexWork) (types.Paper, bool) {
	title := strings.Join(strings.Fields(work.Title), " ")
	if len([]rune(title)) <= types.MinTitleLength {
		return types.Paper{}, false
	}

	var names []string
	for _, a := range work.Authorships {
		if n := strings.TrimSpace(a.Author.DisplayName); n != "" {
			names = append(names, n)
		}
	}
	if len(names) == 0 {
		return types.Paper{}, false
	}

	summary := reconstructAbstract(work.AbstractInvertedIndex)
	if summary == "" {
		if o.Config.RequireAbstract {
			return types.Paper{}, false
		}
		summary = types.PlaceholderSummary
	}

	// OpenAlex DOIs are full resolver URLs.
	doi := strings.TrimPrefix(work.DOI, "https://doi.org/")

	var pdfURL, landing string
	if loc := work.BestOALocation; loc != nil {
		pdfURL = strings.TrimSpace(loc.PDFURL)
	}
	if loc := work.PrimaryLocation; loc != nil {
		landing = strings.TrimSpace(loc.LandingPageURL)
	}

	return types.Paper{
		Title:            title,
		Authors:          strings.Join(names, ", "),
		Year:             work.PublicationYear,
		DOI:              doi,
		URL:              landingURL(landing, doi, pdfURL),
		OpenAccessPDFURL: pdfURL,
		Summary:          summary,
		Origin:           OpenAlexName,
	}, true
}

// reconstructAbstract converts OpenAlex's abstract_inverted_index back to
// plain text. The inverted index maps each word to a list of positions
// where that word appears.
func reconstructAbstract(invertedIndex map[string][]int) string {
	if len(invertedIndex) == 0 {
		return ""
	}

	type posWord struct {
		pos  int
		word string
	}
	var pairs []posWord
	for word, positions := range invertedIndex {
		for _, pos := range positions {
			pairs = append(pairs, posWord{pos: pos, word: word})
		}
	}

	sort.Slice(pairs, func(i, j int) bool {
		return pairs[i].pos < pairs[j].pos
	})

	words := make([]string, len(pairs))
	for i, p := range pairs {
		words[i] = p.word
	}
	return strings.Join(words, " ")
}

// OpenAlex API JSON structures.
type openAlexResponse struct {
	Meta    openAlexMeta   `json:"meta"`
	Results []openAlexWork `json:"results"`
}

type openAlexMeta struct {
	Count   int `json:"count"`
	PerPage int `json:"per_page"`
	Page    int `json:"page"`
}

type openAlexWork struct {
	ID                    string               `json:"id"`
	Title                 string               `json:"title"`
	DOI                   string               `json:"doi"`
	PublicationYear       int                  `json:"publication_year"`
	Authorships           []openAlexAuthorship `json:"authorships"`
	AbstractInvertedIndex map[string][]int     `json:"abstract_inverted_index"`
	PrimaryLocation       *openAlexLocation    `json:"primary_location"`
	BestOALocation        *openAlexLocation    `json:"best_oa_location"`
}

type openAlexAuthorship struct {
	Author openAlexAuthor `json:"author"`
}

type openAlexAuthor struct {
	ID          string `json:"id"`
	DisplayName string `json:"display_name"`
}

type openAlexLocation struct {
	LandingPageURL string `json:"landing_page_url"`
	PDFURL         string `json:"pdf_url"`
}

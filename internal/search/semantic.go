// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package search

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/pdiddy/litscout/internal/httputil"
	"github.com/pdiddy/litscout/internal/resilience"
	"github.com/pdiddy/litscout/pkg/types"
)

// semanticAPIBase is the Semantic Scholar paper search endpoint. Declared
// as a var so tests can substitute an httptest server.
var semanticAPIBase = "https://api.semanticscholar.org/graph/v1/paper/search"

const semanticFields = "title,abstract,authors,externalIds,year,url,openAccessPdf"

// SemanticScholarName is the provider and breaker name.
const SemanticScholarName = "semantic_scholar"

// SemanticScholar is the primary provider. It pages through the graph API
// in batches, retries transport failures and 429s within fixed bounds, and
// trips its breaker when rate limiting leaves it with nothing.
type SemanticScholar struct {
	Client  *http.Client
	APIKey  string
	Config  types.SearchConfig
	Clock   resilience.Clock
	Breaker *resilience.Breaker
	Logger  *zap.Logger
}

// NewSemanticScholar wires the provider to the run's resilience state.
func NewSemanticScholar(cfg types.SearchConfig, state *resilience.State, logger *zap.Logger) *SemanticScholar {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SemanticScholar{
		Client:  &http.Client{},
		APIKey:  cfg.SemanticScholarAPIKey,
		Config:  cfg,
		Clock:   state.Clock(),
		Breaker: state.Breaker(SemanticScholarName, cfg.BreakerCooldown),
		Logger:  logger.Named(SemanticScholarName),
	}
}

// Name returns the provider identifier.
func (s *SemanticScholar) Name() string { return SemanticScholarName }

// ResetBreaker closes the breaker so the next query gets a fresh chance.
func (s *SemanticScholar) ResetBreaker() { s.Breaker.Reset() }

// Search collects up to target papers for query. It returns what it has
// gathered when a page fails; the error then explains why collection
// stopped early. While the breaker is open it returns nothing without
// touching the network.
func (s *SemanticScholar) Search(ctx context.Context, query string, filters types.SearchFilters, target int) ([]types.Paper, error) {
	if s.Breaker.Open() {
		s.Logger.Debug("breaker open, skipping", zap.String("query", query), zap.Duration("remaining", s.Breaker.Remaining()))
		return nil, nil
	}
	if target <= 0 || strings.TrimSpace(query) == "" {
		return nil, nil
	}

	batch := s.Config.BatchSize
	if batch <= 0 {
		batch = 40
	}

	var papers []types.Paper
	offset := 0
	for len(papers) < target {
		page, err := s.fetchBatch(ctx, query, filters, offset, batch)
		if err != nil {
			if ctx.Err() != nil {
				return papers, ctx.Err()
			}
			if errors.Is(err, httputil.ErrRateLimited) && len(papers) == 0 {
				s.Breaker.Trip()
				s.Logger.Warn("rate limit retries exhausted, breaker tripped",
					zap.String("query", query), zap.Duration("cooldown", s.Config.BreakerCooldown))
				return nil, err
			}
			s.Logger.Warn("stopping pagination", zap.String("query", query), zap.Int("offset", offset), zap.Error(err))
			if errors.Is(err, httputil.ErrRateLimited) {
				return papers, nil
			}
			return papers, err
		}

		for _, rec := range page.Data {
			if p, ok := s.toPaper(rec); ok {
				papers = append(papers, p)
			}
		}

		if len(page.Data) == 0 {
			break
		}
		offset += len(page.Data)
		if offset >= page.Total {
			break
		}
	}

	if len(papers) > target {
		papers = papers[:target]
	}
	return papers, nil
}

// fetchBatch requests one page, retrying on the same offset.
func (s *SemanticScholar) fetchBatch(ctx context.Context, query string, filters types.SearchFilters, offset, limit int) (*semanticResponse, error) {
	return retryBatch(ctx, s.Config, s.Clock, s.Logger.With(zap.Int("offset", offset)),
		func(ctx context.Context) (*semanticResponse, error) {
			return s.doBatch(ctx, query, filters, offset, limit)
		})
}

// doBatch performs a single request under the batch timeout. 5xx responses
// count as transport failures.
func (s *SemanticScholar) doBatch(ctx context.Context, query string, filters types.SearchFilters, offset, limit int) (*semanticResponse, error) {
	ctx, cancel := batchContext(ctx, s.Config)
	defer cancel()

	params := url.Values{
		"query":  {query},
		"offset": {strconv.Itoa(offset)},
		"limit":  {strconv.Itoa(limit)},
		"fields": {semanticFields},
	}
	if yr := filters.YearRange(); yr != "" {
		params.Set("year", yr)
	}
	reqURL := semanticAPIBase + "?" + params.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	if s.Config.UserAgent != "" {
		req.Header.Set("User-Agent", s.Config.UserAgent)
	}
	if s.APIKey != "" {
		req.Header.Set("x-api-key", s.APIKey)
	}

	client := s.Client
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: Semantic Scholar request: %v", httputil.ErrNetwork, err)
	}
	defer resp.Body.Close()

	if err := apiStatusError("Semantic Scholar", resp, semanticAPIBase); err != nil {
		return nil, err
	}

	var sr semanticResponse
	if err := json.NewDecoder(resp.Body).Decode(&sr); err != nil {
		if ctx.Err() != nil {
			return nil, fmt.Errorf("%w: reading Semantic Scholar response: %v", httputil.ErrNetwork, err)
		}
		return nil, fmt.Errorf("%w: parsing Semantic Scholar response: %v", httputil.ErrMalformed, err)
	}
	return &sr, nil
}

// toPaper applies the quality filter and maps a record to a Paper.
func (s *SemanticScholar) toPaper(rec semanticPaper) (types.Paper, bool) {
	title := strings.Join(strings.Fields(rec.Title), " ")
	if len([]rune(title)) <= types.MinTitleLength {
		return types.Paper{}, false
	}

	var names []string
	for _, a := range rec.Authors {
		if n := strings.TrimSpace(a.Name); n != "" {
			names = append(names, n)
		}
	}
	if len(names) == 0 {
		return types.Paper{}, false
	}

	summary := strings.TrimSpace(rec.Abstract)
	if summary == "" {
		if s.Config.RequireAbstract {
			return types.Paper{}, false
		}
		summary = types.PlaceholderSummary
	}

	var pdfURL string
	if rec.OpenAccessPDF != nil {
		pdfURL = strings.TrimSpace(rec.OpenAccessPDF.URL)
	}

	return types.Paper{
		Title:            title,
		Authors:          strings.Join(names, ", "),
		Year:             rec.Year,
		DOI:              rec.ExternalIDs.DOI,
		URL:              landingURL(rec.URL, rec.ExternalIDs.DOI, pdfURL),
		OpenAccessPDFURL: pdfURL,
		Summary:          summary,
		Origin:           SemanticScholarName,
	}, true
}

// landingURL picks canonical URL, then the DOI resolver link, then the
// open-access PDF.
func landingURL(canonical, doi, pdfURL string) string {
	switch {
	case strings.TrimSpace(canonical) != "":
		return strings.TrimSpace(canonical)
	case doi != "":
		return "https://doi.org/" + doi
	default:
		return pdfURL
	}
}

// Semantic Scholar API JSON structures.
type semanticResponse struct {
	Total  int             `json:"total"`
	Offset int             `json:"offset"`
	Next   int             `json:"next"`
	Data   []semanticPaper `json:"data"`
}

type semanticPaper struct {
	PaperID       string              `json:"paperId"`
	Title         string              `json:"title"`
	Abstract      string              `json:"abstract"`
	Year          int                 `json:"year"`
	URL           string              `json:"url"`
	Authors       []semanticAuthor    `json:"authors"`
	ExternalIDs   semanticExternalIDs `json:"externalIds"`
	OpenAccessPDF *semanticOpenAccess `json:"openAccessPdf"`
}

type semanticAuthor struct {
	AuthorID string `json:"authorId"`
	Name     string `json:"name"`
}

type semanticExternalIDs struct {
	DOI   string `json:"DOI"`
	ArXiv string `json:"ArXiv"`
}

type semanticOpenAccess struct {
	URL    string `json:"url"`
	Status string `json:"status"`
}

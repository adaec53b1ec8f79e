// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package search

import (
	"context"
	"errors"
	"fmt"
	"html"
	"net/url"
	"regexp"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/pdiddy/litscout/internal/httputil"
	"github.com/pdiddy/litscout/pkg/types"
)

// scholarBase is the Google Scholar results page. Declared as a var so
// tests can substitute an httptest server.
var scholarBase = "https://scholar.google.com/scholar"

// ScholarName is the secondary provider name.
const ScholarName = "google_scholar"

// scholarMaxPerPage is the largest num= the results page honors.
const scholarMaxPerPage = 20

// Scholar scrapes one Google Scholar results page through a gateway. The
// markup is matched with fixed patterns; missing fields degrade to
// placeholders instead of dropping the record.
type Scholar struct {
	Gateway httputil.Gateway
	Logger  *zap.Logger
}

// NewScholar returns a Scholar client using gw.
func NewScholar(gw httputil.Gateway, logger *zap.Logger) *Scholar {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Scholar{Gateway: gw, Logger: logger.Named(ScholarName)}
}

// Name returns the provider identifier.
func (s *Scholar) Name() string { return ScholarName }

// Search fetches one results page for query and returns at most count
// papers. A page that yields nothing and carries block or captcha markers
// returns httputil.ErrBlocked.
func (s *Scholar) Search(ctx context.Context, query string, count int) ([]types.Paper, error) {
	if count <= 0 || strings.TrimSpace(query) == "" {
		return nil, nil
	}
	num := count
	if num > scholarMaxPerPage {
		num = scholarMaxPerPage
	}

	params := url.Values{
		"q":   {query},
		"num": {strconv.Itoa(num)},
		"hl":  {"en"},
	}
	target := scholarBase + "?" + params.Encode()

	resp, err := s.Gateway.Fetch(ctx, target)
	if err != nil {
		return nil, fmt.Errorf("fetching Scholar results: %w", err)
	}
	if err := httputil.Classify(resp); err != nil {
		// A challenge page with results is still usable; anything else is not.
		if !(errors.Is(err, httputil.ErrBlocked) && resp.Status == 200) {
			return nil, fmt.Errorf("Scholar results: %w", err)
		}
	}

	papers := ParseScholar(string(resp.Body))
	if len(papers) == 0 && scholarBlocked(resp.Body) {
		s.Logger.Warn("results page is a block page", zap.String("query", query))
		return nil, fmt.Errorf("Scholar results: %w", httputil.ErrBlocked)
	}
	if len(papers) > count {
		papers = papers[:count]
	}
	return papers, nil
}

var (
	scholarBlockStart = regexp.MustCompile(`<div[^>]+class="gs_r\b[^"]*"`)
	scholarTitle      = regexp.MustCompile(`(?s)<h3[^>]*class="gs_rt"[^>]*>(.*?)</h3>`)
	scholarLink       = regexp.MustCompile(`(?s)<a[^>]+href="([^"]+)"[^>]*>(.*?)</a>`)
	scholarAuthors    = regexp.MustCompile(`(?s)<div class="gs_a"[^>]*>(.*?)</div>`)
	scholarSnippet    = regexp.MustCompile(`(?s)<div class="gs_rs"[^>]*>(.*?)</div>`)
	scholarHref       = regexp.MustCompile(`href="([^"]+)"`)
	scholarYear       = regexp.MustCompile(`\b(1[89]\d{2}|20\d{2})\b`)
	scholarTag        = regexp.MustCompile(`(?s)<[^>]*>`)
	scholarKind       = regexp.MustCompile(`^\s*(?:\[[A-Z]+\]\s*)+`)
)

// scholarBlockMarkers appear on Scholar's own block pages, which are not
// always served with an error status.
var scholarBlockMarkers = []string{
	"gs_captcha",
	"/sorry/",
	"recaptcha",
	"unusual traffic",
	"not a robot",
}

func scholarBlocked(body []byte) bool {
	if httputil.LooksLikeChallenge(body) {
		return true
	}
	lower := strings.ToLower(string(body))
	for _, m := range scholarBlockMarkers {
		if strings.Contains(lower, m) {
			return true
		}
	}
	return false
}

// ParseScholar extracts papers from a results page. Records whose title is
// missing or too short are skipped.
func ParseScholar(page string) []types.Paper {
	var papers []types.Paper
	for _, block := range scholarBlocks(page) {
		if p, ok := parseScholarBlock(block); ok {
			papers = append(papers, p)
		}
	}
	return papers
}

// scholarBlocks splits page at each result container. Pages without the
// outer container fall back to the gs_ri body blocks.
func scholarBlocks(page string) []string {
	idx := scholarBlockStart.FindAllStringIndex(page, -1)
	if len(idx) == 0 {
		parts := strings.Split(page, `class="gs_ri"`)
		if len(parts) < 2 {
			return nil
		}
		return parts[1:]
	}
	blocks := make([]string, 0, len(idx))
	for i, loc := range idx {
		end := len(page)
		if i+1 < len(idx) {
			end = idx[i+1][0]
		}
		blocks = append(blocks, page[loc[0]:end])
	}
	return blocks
}

func parseScholarBlock(block string) (types.Paper, bool) {
	m := scholarTitle.FindStringSubmatch(block)
	if m == nil {
		return types.Paper{}, false
	}
	var title, link string
	if lm := scholarLink.FindStringSubmatch(m[1]); lm != nil {
		link = html.UnescapeString(lm[1])
		title = cleanText(lm[2])
	} else {
		title = cleanText(m[1])
	}
	title = strings.TrimSpace(scholarKind.ReplaceAllString(title, ""))
	if len([]rune(title)) <= types.MinTitleLength {
		return types.Paper{}, false
	}

	p := types.Paper{
		Title:   title,
		Authors: types.UnknownAuthors,
		Summary: types.NotAvailable,
		URL:     link,
		Origin:  ScholarName,
	}

	if am := scholarAuthors.FindStringSubmatch(block); am != nil {
		line := cleanText(am[1])
		// The author list precedes the first " - "; a line that starts with
		// the separator has no authors.
		authors, _, _ := strings.Cut(" "+line, " - ")
		p.Authors = strings.TrimSpace(strings.TrimRight(strings.TrimSpace(authors), "…."))
		if years := scholarYear.FindAllString(line, -1); len(years) > 0 {
			p.Year, _ = strconv.Atoi(years[len(years)-1])
		}
	}
	if p.Authors == "" {
		p.Authors = types.UnknownAuthors
	}

	if sm := scholarSnippet.FindStringSubmatch(block); sm != nil {
		if snippet := cleanText(sm[1]); snippet != "" {
			p.Summary = snippet
		}
	}

	p.OpenAccessPDFURL = scholarPDFLink(block)
	if p.URL == "" {
		p.URL = p.OpenAccessPDFURL
	}
	return p, true
}

// scholarPDFLink returns the first href in block whose path ends in .pdf.
func scholarPDFLink(block string) string {
	for _, m := range scholarHref.FindAllStringSubmatch(block, -1) {
		href := html.UnescapeString(m[1])
		u, err := url.Parse(href)
		if err != nil || u.Scheme == "" {
			continue
		}
		if strings.HasSuffix(strings.ToLower(u.Path), ".pdf") {
			return href
		}
	}
	return ""
}

// cleanText strips tags, unescapes entities and collapses whitespace.
func cleanText(s string) string {
	s = scholarTag.ReplaceAllString(s, " ")
	s = html.UnescapeString(s)
	return strings.Join(strings.Fields(s), " ")
}

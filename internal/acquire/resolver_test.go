// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package acquire

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/pdiddy/litscout/internal/httputil"
	"github.com/pdiddy/litscout/internal/pdftext"
	"github.com/pdiddy/litscout/internal/pdftext/pdftexttest"
	"github.com/pdiddy/litscout/internal/resilience"
	"github.com/pdiddy/litscout/internal/store"
	"github.com/pdiddy/litscout/pkg/types"
)

// graphGateway serves a fixed link graph; dynamic builds responses for
// URLs missing from routes.
type graphGateway struct {
	mu      sync.Mutex
	routes  map[string]*httputil.Response
	dynamic func(target string) *httputil.Response
	fetches []string
}

func (g *graphGateway) Fetch(ctx context.Context, target string) (*httputil.Response, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	g.fetches = append(g.fetches, target)
	if resp, ok := g.routes[target]; ok {
		return resp, nil
	}
	if g.dynamic != nil {
		return g.dynamic(target), nil
	}
	return &httputil.Response{URL: target, Status: http.StatusNotFound, ContentType: "text/html"}, nil
}

func (g *graphGateway) visited() []string {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]string(nil), g.fetches...)
}

func htmlPage(body string) *httputil.Response {
	return &httputil.Response{Status: http.StatusOK, ContentType: "text/html; charset=utf-8", Body: []byte(body)}
}

func status(code int) *httputil.Response {
	return &httputil.Response{Status: code, ContentType: "text/html"}
}

func linkTo(urls ...string) string {
	var b strings.Builder
	b.WriteString("<html><head><title>Landing</title></head><body>")
	for _, u := range urls {
		fmt.Fprintf(&b, `<a href="%s">Download PDF</a>`, u)
	}
	b.WriteString("</body></html>")
	return b.String()
}

type stubExtractor struct {
	text string
	err  error
}

func (s stubExtractor) Extract(context.Context, []byte, int) (string, error) { return s.text, s.err }

func newTestResolver(t *testing.T, gw httputil.Gateway, cfg types.ResolveConfig) (*Resolver, *resilience.MemoryBlockList) {
	t.Helper()
	blocks := resilience.NewMemoryBlockList()
	state := resilience.NewState(resilience.Options{
		Clock:            resilience.NewFakeClock(time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)),
		PendingThreshold: cfg.PendingThreshold,
		PendingCooldown:  cfg.PendingCooldown,
		BlockList:        blocks,
	})
	return NewResolver(gw, pdftext.Native{}, state, cfg, zaptest.NewLogger(t)), blocks
}

func TestResolveCycleTerminates(t *testing.T) {
	const a = "https://a.test/pdf/start"
	const b = "https://b.test/paper.pdf"
	gw := &graphGateway{routes: map[string]*httputil.Response{
		a: htmlPage(linkTo(b)),
		b: htmlPage(linkTo(a, "https://a.test/pdf/start?utm=loop")),
	}}
	r, _ := newTestResolver(t, gw, types.DefaultResolveConfig())

	doc, err := r.Resolve(context.Background(), types.Paper{Title: "Cyclic Paper", URL: a}, Options{})
	require.NoError(t, err)
	require.NotNil(t, doc)
	assert.Equal(t, types.DocumentHTML, doc.Type)
	assert.Equal(t, a, doc.OriginalURL)
	assert.Equal(t, []string{a, b}, gw.visited(), "each URL is fetched once")
}

func TestResolveHaltsWithinRequestBudget(t *testing.T) {
	// Every page links to three fresh PDF-looking pages: an unbounded graph.
	var n int
	var mu sync.Mutex
	gw := &graphGateway{dynamic: func(string) *httputil.Response {
		mu.Lock()
		defer mu.Unlock()
		links := make([]string, 3)
		for i := range links {
			n++
			links[i] = fmt.Sprintf("https://maze.test/pdf/%d", n)
		}
		return htmlPage(linkTo(links...))
	}}
	cfg := types.DefaultResolveConfig()
	cfg.MaxDepth = 100
	r, _ := newTestResolver(t, gw, cfg)

	doc, err := r.Resolve(context.Background(), types.Paper{Title: "Maze Paper", URL: "https://maze.test/pdf/0"}, Options{})
	require.NoError(t, err)
	require.NotNil(t, doc)
	assert.Equal(t, types.DocumentHTML, doc.Type)
	assert.Len(t, gw.visited(), cfg.MaxRequests)

	gw.fetches = nil
	_, err = r.Resolve(context.Background(), types.Paper{Title: "Maze Paper", URL: "https://maze.test/pdf/start"}, Options{MaxRequests: 4})
	require.NoError(t, err)
	assert.Len(t, gw.visited(), 4, "per-call budget override")
}

func TestResolveDepthCap(t *testing.T) {
	gw := &graphGateway{routes: map[string]*httputil.Response{
		"https://d.test/pdf/0": htmlPage(linkTo("https://d.test/pdf/1")),
		"https://d.test/pdf/1": htmlPage(linkTo("https://d.test/pdf/2")),
		"https://d.test/pdf/2": htmlPage(linkTo("https://d.test/pdf/3")),
		"https://d.test/pdf/3": htmlPage(linkTo("https://d.test/pdf/4")),
	}}
	r, _ := newTestResolver(t, gw, types.DefaultResolveConfig())

	_, err := r.Resolve(context.Background(), types.Paper{Title: "Deep Paper", URL: "https://d.test/pdf/0"}, Options{})
	require.NoError(t, err)
	assert.Equal(t, []string{"https://d.test/pdf/0", "https://d.test/pdf/1", "https://d.test/pdf/2"}, gw.visited())
}

func TestResolveSniffsPDFDespiteHTMLHeader(t *testing.T) {
	pdf := pdftexttest.Padded(12*1024, "Sniffed PDF body text")
	require.True(t, bytes.HasPrefix(pdf, []byte("%PDF-1.4")))
	gw := &graphGateway{routes: map[string]*httputil.Response{
		"https://oa.test/download": {Status: http.StatusOK, ContentType: "text/html; charset=utf-8", Body: pdf},
	}}
	r, _ := newTestResolver(t, gw, types.DefaultResolveConfig())

	paper := types.Paper{Title: "Mislabelled PDF", URL: "https://pub.test/landing", OpenAccessPDFURL: "https://oa.test/download"}
	doc, err := r.Resolve(context.Background(), paper, Options{})
	require.NoError(t, err)
	require.NotNil(t, doc)
	assert.Equal(t, types.DocumentPDF, doc.Type)
	assert.Equal(t, pdf, doc.Content)
	assert.Contains(t, doc.TextContent, "Sniffed PDF body text")
	assert.Equal(t, "https://pub.test/landing", doc.PaperID)
	assert.NotEmpty(t, doc.ID)
	assert.Equal(t, []string{"https://oa.test/download"}, gw.visited(), "a PDF ends resolution")
}

func TestResolvePDFFromLandingPage(t *testing.T) {
	pdf := pdftexttest.Padded(12*1024, "Linked PDF")
	gw := &graphGateway{routes: map[string]*httputil.Response{
		"https://pub.test/article/1": htmlPage(`<html><head>
<meta name="citation_pdf_url" content="/article/1/full.pdf"></head><body>Landing</body></html>`),
		"https://pub.test/article/1/full.pdf": {Status: http.StatusOK, ContentType: "application/pdf", Body: pdf},
	}}
	r, _ := newTestResolver(t, gw, types.DefaultResolveConfig())

	doc, err := r.Resolve(context.Background(), types.Paper{Title: "Linked", URL: "https://pub.test/article/1"}, Options{})
	require.NoError(t, err)
	require.NotNil(t, doc)
	assert.Equal(t, types.DocumentPDF, doc.Type)
	assert.Equal(t, "https://pub.test/article/1/full.pdf", doc.OriginalURL)
}

func TestResolvePDFChecks(t *testing.T) {
	const pdfURL = "https://oa.test/p.pdf"
	landing := htmlPage(`<html><body><p>Landing page</p></body></html>`)
	corrupt := append([]byte("%PDF-1.4\n"), bytes.Repeat([]byte("garbage "), 3000)...)
	good := pdftexttest.Padded(12*1024, "fine")

	tests := []struct {
		name      string
		body      []byte
		extractor pdftext.Extractor
		wantType  types.DocumentType
		wantText  string
		blocked   string
	}{
		{"too small falls back to landing", []byte("%PDF-1.4 tiny"), pdftext.Native{}, types.DocumentHTML, "", ""},
		{"corrupt is blocked", corrupt, pdftext.Native{}, types.DocumentHTML, "", "corrupt PDF"},
		{"encrypted keeps file", pdftexttest.Encrypted(12*1024, "locked"), pdftext.Native{}, types.DocumentPDF, "", ""},
		{"extraction failure keeps file", good, stubExtractor{err: errors.New("exit status 1")}, types.DocumentPDF, "", ""},
		{"no extractor keeps file", good, nil, types.DocumentPDF, "", ""},
		{"extracted text", good, stubExtractor{text: "page text"}, types.DocumentPDF, "page text", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gw := &graphGateway{routes: map[string]*httputil.Response{
				pdfURL:                 {Status: http.StatusOK, ContentType: "application/pdf", Body: tt.body},
				"https://pub.test/p/1": landing,
			}}
			r, blocks := newTestResolver(t, gw, types.DefaultResolveConfig())
			r.Extractor = tt.extractor

			doc, err := r.Resolve(context.Background(), types.Paper{Title: "Checked", URL: "https://pub.test/p/1", OpenAccessPDFURL: pdfURL}, Options{})
			require.NoError(t, err)
			require.NotNil(t, doc)
			assert.Equal(t, tt.wantType, doc.Type)
			if tt.wantType == types.DocumentPDF {
				assert.Equal(t, tt.wantText, doc.TextContent)
			}
			reason, ok := blocks.Reason(pdfURL)
			if tt.blocked == "" {
				assert.False(t, ok)
			} else {
				assert.Equal(t, tt.blocked, reason)
			}
		})
	}
}

func TestResolveBlocksRefusals(t *testing.T) {
	gw := &graphGateway{routes: map[string]*httputil.Response{
		"https://pub.test/403":       status(http.StatusForbidden),
		"https://pub.test/429":       status(http.StatusTooManyRequests),
		"https://pub.test/500":       status(http.StatusInternalServerError),
		"https://pub.test/challenge": htmlPage(`<html><title>Just a moment...</title></html>`),
	}}
	r, blocks := newTestResolver(t, gw, types.DefaultResolveConfig())
	ctx := context.Background()

	for _, u := range []string{"https://pub.test/403", "https://pub.test/429", "https://pub.test/500", "https://pub.test/challenge"} {
		doc, err := r.Resolve(ctx, types.Paper{Title: "Refused " + u, URL: u}, Options{})
		require.NoError(t, err)
		assert.Nil(t, doc)
	}

	reason, ok := blocks.Reason("https://pub.test/403")
	assert.True(t, ok)
	assert.Equal(t, "HTTP 403", reason)
	reason, _ = blocks.Reason("https://pub.test/429")
	assert.Equal(t, "HTTP 429", reason)
	_, ok = blocks.Reason("https://pub.test/500")
	assert.False(t, ok, "other errors are not permanent")
	reason, _ = blocks.Reason("https://pub.test/challenge")
	assert.Equal(t, "challenge page", reason)

	gw.fetches = nil
	doc, err := r.Resolve(ctx, types.Paper{Title: "Again", URL: "https://pub.test/403?retry=1"}, Options{})
	require.NoError(t, err)
	assert.Nil(t, doc)
	assert.Empty(t, gw.visited(), "blocked URLs are never fetched again")
}

func TestResolveContentPagesAreNotChallenges(t *testing.T) {
	pdf := pdftexttest.Padded(12*1024, "Solver results")
	captchaPaper := `<html><head><title>Breaking Text CAPTCHA Schemes with Deep Learning</title>
<script src="https://www.google.com/recaptcha/api.js"></script></head>
<body><div class="g-recaptcha"></div><p>Access denied for guests.</p>
<a href="/captcha/paper.pdf">PDF</a></body></html>`
	cloudflareLanding := `<html><head><title>Just a moment... a study of page load latency</title>
<meta name="citation_title" content="Page load latency">
<script src="/cdn-cgi/challenge-platform/scripts/jsd/main.js"></script></head>
<body><p>Landing page text.</p></body></html>`
	gw := &graphGateway{routes: map[string]*httputil.Response{
		"https://pub.test/captcha":           htmlPage(captchaPaper),
		"https://pub.test/captcha/paper.pdf": {Status: http.StatusOK, ContentType: "application/pdf", Body: pdf},
		"https://pub.test/latency":           htmlPage(cloudflareLanding),
	}}
	r, blocks := newTestResolver(t, gw, types.DefaultResolveConfig())
	ctx := context.Background()

	doc, err := r.Resolve(ctx, types.Paper{Title: "Breaking Text CAPTCHA Schemes", URL: "https://pub.test/captcha"}, Options{})
	require.NoError(t, err)
	require.NotNil(t, doc)
	assert.Equal(t, types.DocumentPDF, doc.Type)
	_, blocked := blocks.Reason("https://pub.test/captcha")
	assert.False(t, blocked)

	doc, err = r.Resolve(ctx, types.Paper{Title: "Page load latency", URL: "https://pub.test/latency"}, Options{})
	require.NoError(t, err)
	require.NotNil(t, doc)
	assert.Equal(t, types.DocumentHTML, doc.Type)
	_, blocked = blocks.Reason("https://pub.test/latency")
	assert.False(t, blocked, "article metadata overrides challenge heuristics")
}

func TestResolvePendingHostBreaker(t *testing.T) {
	gw := &graphGateway{dynamic: func(string) *httputil.Response { return status(http.StatusAccepted) }}
	cfg := types.DefaultResolveConfig()
	cfg.PendingThreshold = 2
	r, _ := newTestResolver(t, gw, cfg)
	ctx := context.Background()

	for i := range 3 {
		doc, err := r.Resolve(ctx, types.Paper{Title: "Pending", URL: fmt.Sprintf("https://slow.test/p/%d", i)}, Options{})
		require.NoError(t, err)
		assert.Nil(t, doc)
	}
	assert.Len(t, gw.visited(), 2, "the host is short-circuited after two 202s")

	r.State.Clock().(*resilience.FakeClock).Advance(cfg.PendingCooldown)
	_, err := r.Resolve(ctx, types.Paper{Title: "Pending", URL: "https://slow.test/p/9"}, Options{})
	require.NoError(t, err)
	assert.Len(t, gw.visited(), 3, "the breaker clears after its cooldown")
}

func TestResolveRequirePDF(t *testing.T) {
	gw := &graphGateway{routes: map[string]*httputil.Response{
		"https://pub.test/a":  htmlPage(`<html><body><p>Landing</p></body></html>`),
		"https://arxiv.org/a": htmlPage(`<html><body><p>Abstract page</p></body></html>`),
	}}
	r, _ := newTestResolver(t, gw, types.DefaultResolveConfig())
	ctx := context.Background()

	doc, err := r.Resolve(ctx, types.Paper{Title: "Strict", URL: "https://pub.test/a"}, Options{RequirePDF: true})
	require.NoError(t, err)
	assert.Nil(t, doc)

	doc, err = r.Resolve(ctx, types.Paper{Title: "Allowed", URL: "https://arxiv.org/a"},
		Options{RequirePDF: true, AllowedHTMLHosts: []string{"arxiv.org"}})
	require.NoError(t, err)
	require.NotNil(t, doc)
	assert.Equal(t, types.DocumentHTML, doc.Type)
}

func TestResolveHTMLDocument(t *testing.T) {
	para := strings.Repeat("Graph neural networks learn representations of nodes by aggregating features from their neighbours. ", 12)
	page := `<html><head><title>GNN survey</title><script>track()</script></head><body>
<article><h1>A survey of graph neural networks</h1><p>` + para + `</p><p>` + para + `</p>
<img src="/fig1.png"></article></body></html>`
	gw := &graphGateway{routes: map[string]*httputil.Response{"https://pub.test/gnn": htmlPage(page)}}
	r, _ := newTestResolver(t, gw, types.DefaultResolveConfig())

	doc, err := r.Resolve(context.Background(), types.Paper{Title: "GNN survey", URL: "https://pub.test/gnn"}, Options{})
	require.NoError(t, err)
	require.NotNil(t, doc)
	assert.Equal(t, types.DocumentHTML, doc.Type)
	html := string(doc.Content)
	assert.Contains(t, html, `<base href="https://pub.test/gnn"/>`)
	assert.NotContains(t, html, "track()")
	assert.Contains(t, doc.TextContent, "Graph neural networks learn representations")
	assert.Equal(t, time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC), doc.Timestamp)
}

func TestResolveSavesDocument(t *testing.T) {
	s, err := store.Open(t.TempDir() + "/litscout.db")
	require.NoError(t, err)
	defer s.Close()

	pdf := pdftexttest.Padded(12*1024, "stored")
	gw := &graphGateway{routes: map[string]*httputil.Response{
		"https://oa.test/s.pdf": {Status: http.StatusOK, ContentType: "application/pdf", Body: pdf},
	}}
	r, _ := newTestResolver(t, gw, types.DefaultResolveConfig())
	r.Store = s

	paper := types.Paper{Title: "Stored Paper", URL: "https://pub.test/s", OpenAccessPDFURL: "https://oa.test/s.pdf"}
	doc, err := r.Resolve(context.Background(), paper, Options{})
	require.NoError(t, err)
	require.NotNil(t, doc)

	docs, err := s.Documents(context.Background(), store.PaperKey(paper))
	require.NoError(t, err)
	require.Len(t, docs, 1)
	assert.Equal(t, doc.ID, docs[0].ID)
	assert.Equal(t, pdf, docs[0].Content)
}

func TestResolveUsesOpenAlexForDOI(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/works/https://doi.org/10.1000/oa", r.URL.Path)
		fmt.Fprint(w, `{"best_oa_location":{"pdf_url":"https://repo.test/oa.pdf"}}`)
	}))
	defer ts.Close()
	orig := openAlexAPIBase
	openAlexAPIBase = ts.URL + "/works/"
	defer func() { openAlexAPIBase = orig }()

	pdf := pdftexttest.Padded(12*1024, "open access")
	gw := &graphGateway{routes: map[string]*httputil.Response{
		"https://repo.test/oa.pdf": {Status: http.StatusOK, ContentType: "application/pdf", Body: pdf},
	}}
	r, _ := newTestResolver(t, gw, types.DefaultResolveConfig())
	r.OpenAlex = NewOpenAlex(ts.Client(), "")

	doc, err := r.Resolve(context.Background(), types.Paper{Title: "DOI only", DOI: "10.1000/oa"}, Options{})
	require.NoError(t, err)
	require.NotNil(t, doc)
	assert.Equal(t, "https://repo.test/oa.pdf", doc.OriginalURL)
}

func TestResolveCancelled(t *testing.T) {
	gw := &graphGateway{routes: map[string]*httputil.Response{"https://pub.test/x": htmlPage("<p>x</p>")}}
	r, _ := newTestResolver(t, gw, types.DefaultResolveConfig())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	doc, err := r.Resolve(ctx, types.Paper{Title: "Cancelled", URL: "https://pub.test/x"}, Options{})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Nil(t, doc)
	assert.Empty(t, gw.visited())
}

func TestResolveBatch(t *testing.T) {
	pdf := pdftexttest.Padded(12*1024, "batch")
	gw := &graphGateway{routes: map[string]*httputil.Response{
		"https://oa.test/1.pdf": {Status: http.StatusOK, ContentType: "application/pdf", Body: pdf},
		"https://pub.test/2":    htmlPage("<html><body><p>Second</p></body></html>"),
	}}
	r, _ := newTestResolver(t, gw, types.DefaultResolveConfig())
	dir := t.TempDir()

	papers := []types.Paper{
		{Title: "First", OpenAccessPDFURL: "https://oa.test/1.pdf"},
		{Title: "Second", URL: "https://pub.test/2"},
		{Title: "Third", URL: "https://pub.test/missing"},
	}
	var out bytes.Buffer
	result, err := r.ResolveBatch(context.Background(), papers, Options{}, dir, &out)
	require.NoError(t, err)
	assert.Equal(t, 1, result.PDF)
	assert.Equal(t, 1, result.HTML)
	assert.Equal(t, 1, result.Missing)
	assert.Equal(t, 3, result.Total())
	assert.Contains(t, out.String(), "missing:  Third")
	assert.Contains(t, out.String(), "Batch summary: 1 pdf, 1 html, 1 missing, 0 failed (total: 3)")

	written, err := os.ReadFile(DocumentPath(dir, result.Documents[0]))
	require.NoError(t, err)
	assert.Equal(t, pdf, written)
}

// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package search

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/litscout/internal/httputil"
	"github.com/pdiddy/litscout/pkg/types"
)

// fakeGateway answers every fetch with the same response.
type fakeGateway struct {
	resp    *httputil.Response
	err     error
	targets []string
}

func (f *fakeGateway) Fetch(_ context.Context, target string) (*httputil.Response, error) {
	f.targets = append(f.targets, target)
	if f.err != nil {
		return nil, f.err
	}
	return f.resp, nil
}

func htmlResponse(status int, body string) *httputil.Response {
	return &httputil.Response{Status: status, ContentType: "text/html; charset=UTF-8", Body: []byte(body)}
}

const scholarPage = `<html><body><div id="gs_res_ccl_mid">
<div class="gs_r gs_or gs_scl" data-cid="a1"><div class="gs_ggs gs_fl"><div class="gs_ggsd"><div class="gs_or_ggsm"><a href="https://arxiv.org/pdf/1706.03762.pdf"><span class="gs_ctg2">[PDF]</span> arxiv.org</a></div></div></div>
<div class="gs_ri"><h3 class="gs_rt"><a href="https://proceedings.neurips.cc/paper/7181">Attention is <b>all</b> you need</a></h3>
<div class="gs_a">A Vaswani, N Shazeer, N Parmar… - Advances in neural …, 2017 - proceedings.neurips.cc</div>
<div class="gs_rs">The dominant sequence transduction models are based on complex recurrent &amp; convolutional networks</div></div></div>
<div class="gs_r gs_or gs_scl" data-cid="a2"><div class="gs_ri"><h3 class="gs_rt"><span class="gs_ctu"><span class="gs_ct1">[CITATION]</span></span> Deep residual learning for image recognition</h3>
<div class="gs_a"> - CVPR</div></div></div>
<div class="gs_r gs_or gs_scl" data-cid="a3"><div class="gs_ri"><h3 class="gs_rt"><a href="https://x.test/short">Tiny</a></h3><div class="gs_a">B Author - 2020</div></div></div>
</div></body></html>`

func TestParseScholar(t *testing.T) {
	papers := ParseScholar(scholarPage)
	require.Len(t, papers, 2)

	p := papers[0]
	assert.Equal(t, "Attention is all you need", p.Title)
	assert.Equal(t, "https://proceedings.neurips.cc/paper/7181", p.URL)
	assert.Equal(t, "https://arxiv.org/pdf/1706.03762.pdf", p.OpenAccessPDFURL)
	assert.Equal(t, "A Vaswani, N Shazeer, N Parmar", p.Authors)
	assert.Equal(t, 2017, p.Year)
	assert.Contains(t, p.Summary, "recurrent & convolutional")
	assert.Equal(t, ScholarName, p.Origin)

	q := papers[1]
	assert.Equal(t, "Deep residual learning for image recognition", q.Title)
	assert.Equal(t, types.UnknownAuthors, q.Authors)
	assert.Equal(t, types.NotAvailable, q.Summary)
	assert.Equal(t, 0, q.Year)
	assert.Empty(t, q.URL)
}

func TestParseScholarWithoutOuterContainer(t *testing.T) {
	page := `<div class="gs_ri"><h3 class="gs_rt"><a href="https://a.test/1">Graph neural networks survey</a></h3></div>`
	papers := ParseScholar(page)
	require.Len(t, papers, 1)
	assert.Equal(t, "Graph neural networks survey", papers[0].Title)
}

func TestScholarSearch(t *testing.T) {
	gw := &fakeGateway{resp: htmlResponse(200, scholarPage)}
	s := NewScholar(gw, nil)

	papers, err := s.Search(context.Background(), "attention models", 1)
	require.NoError(t, err)
	assert.Len(t, papers, 1, "results are capped to count")

	require.Len(t, gw.targets, 1)
	u, err := url.Parse(gw.targets[0])
	require.NoError(t, err)
	assert.Equal(t, "attention models", u.Query().Get("q"))
	assert.Equal(t, "1", u.Query().Get("num"))
}

func TestScholarSearchNumCapped(t *testing.T) {
	gw := &fakeGateway{resp: htmlResponse(200, scholarPage)}
	_, err := NewScholar(gw, nil).Search(context.Background(), "q", 100)
	require.NoError(t, err)
	u, _ := url.Parse(gw.targets[0])
	assert.Equal(t, fmt.Sprint(scholarMaxPerPage), u.Query().Get("num"))
}

func TestScholarBlocked(t *testing.T) {
	tests := []struct {
		name    string
		resp    *httputil.Response
		err     error
		blocked bool
	}{
		{"captcha page", htmlResponse(200, `<html><form id="gs_captcha_f">please show you're not a robot</form></html>`), nil, true},
		{"sorry page with 429", htmlResponse(429, `<html>/sorry/index</html>`), nil, true},
		{"forbidden", htmlResponse(403, ``), nil, true},
		{"empty but not blocked", htmlResponse(200, `<html><div id="gs_res_ccl_mid"></div></html>`), nil, false},
		{"transport failure", nil, fmt.Errorf("%w: refused", httputil.ErrNetwork), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gw := &fakeGateway{resp: tt.resp, err: tt.err}
			papers, err := NewScholar(gw, nil).Search(context.Background(), "q", 10)
			assert.Empty(t, papers)
			assert.Equal(t, tt.blocked, errors.Is(err, httputil.ErrBlocked), "err = %v", err)
			if tt.name == "empty but not blocked" {
				assert.NoError(t, err)
			}
		})
	}
}

func TestScholarPDFLink(t *testing.T) {
	assert.Equal(t, "https://a.test/x.PDF", scholarPDFLink(`<a href="/relative.pdf"></a><a href="https://a.test/x.PDF">`))
	assert.Equal(t, "", scholarPDFLink(`<a href="https://a.test/page?file=x.pdf">`))
	assert.Equal(t, "", scholarPDFLink(strings.Repeat(" ", 10)))
}

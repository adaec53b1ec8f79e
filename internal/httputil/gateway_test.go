// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package httputil

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/pdiddy/litscout/pkg/types"
)

const trackedPage = `<html><head>
<script src="https://www.googletagmanager.com/gtag/js?id=G-1"></script>
<script>window.dataLayer = window.dataLayer || []; function gtag(){}</script>
<script type="application/ld+json">{"description":"kept"}</script>
<script src="/static/app.js"></script>
</head><body><p>Hello</p></body></html>`

func TestDirectGatewayForwardsStatusAndStripsTracking(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/pending" {
			w.WriteHeader(http.StatusAccepted)
			return
		}
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		fmt.Fprint(w, trackedPage)
	}))
	defer ts.Close()

	g := NewDirectGateway(types.GatewayConfig{}, zaptest.NewLogger(t))
	g.Client = ts.Client()

	resp, err := g.Fetch(context.Background(), ts.URL+"/page")
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.Status)
	assert.Contains(t, resp.ContentType, "text/html")

	body := string(resp.Body)
	assert.NotContains(t, body, "googletagmanager")
	assert.NotContains(t, body, "dataLayer")
	assert.Contains(t, body, `"description":"kept"`)
	assert.Contains(t, body, "/static/app.js")

	pending, err := g.Fetch(context.Background(), ts.URL+"/pending")
	require.NoError(t, err)
	assert.Equal(t, http.StatusAccepted, pending.Status)
}

func TestDirectGatewayTransportFailure(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		time.Sleep(200 * time.Millisecond)
	}))
	defer ts.Close()

	g := NewDirectGateway(types.GatewayConfig{}, nil)
	g.Client = &http.Client{Timeout: 20 * time.Millisecond}

	_, err := g.Fetch(context.Background(), ts.URL)
	require.Error(t, err)
	assert.True(t, IsNetwork(err))
}

func TestProxyGatewayPassesTarget(t *testing.T) {
	var gotTarget string
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotTarget = r.URL.Query().Get("url")
		w.Header().Set("Content-Type", "application/pdf")
		w.WriteHeader(http.StatusOK)
		fmt.Fprint(w, "%PDF-1.7 body")
	}))
	defer ts.Close()

	g, err := NewProxyGateway(ts.URL+"/fetch", types.GatewayConfig{}, nil)
	require.NoError(t, err)
	g.direct.Client = ts.Client()

	resp, err := g.Fetch(context.Background(), "https://example.org/paper.pdf?x=1")
	require.NoError(t, err)
	assert.Equal(t, "https://example.org/paper.pdf?x=1", gotTarget)
	assert.Equal(t, "https://example.org/paper.pdf?x=1", resp.URL)
	assert.True(t, IsPDF(resp.Body))
}

func TestNewProxyGatewayRejectsBadEndpoint(t *testing.T) {
	_, err := NewProxyGateway("not a url", types.GatewayConfig{}, nil)
	assert.ErrorIs(t, err, ErrConfig)
}

func TestIsPDF(t *testing.T) {
	tests := []struct {
		name string
		body string
		want bool
	}{
		{"plain signature", "%PDF-1.4\n...", true},
		{"leading whitespace", "\r\n  %PDF-1.7", true},
		{"bom", "\xEF\xBB\xBF%PDF-1.5", true},
		{"html", "<!doctype html><html>", false},
		{"too short", "%PD", false},
		{"empty", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsPDF([]byte(tt.body)))
		})
	}
}

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		resp *Response
		want error
	}{
		{"ok", &Response{Status: 200, ContentType: "text/html", Body: []byte("<p>fine</p>")}, nil},
		{"pending", &Response{Status: 202}, ErrProcessingPending},
		{"rate limited", &Response{Status: 429}, ErrRateLimited},
		{"rate limited is blocked", &Response{Status: 429}, ErrBlocked},
		{"forbidden", &Response{Status: 403}, ErrBlocked},
		{"unauthorized", &Response{Status: 401}, ErrBlocked},
		{"gateway timeout", &Response{Status: 504}, ErrBlocked},
		{"challenge page", &Response{Status: 200, ContentType: "text/html", Body: []byte("<title>Just a moment...</title>")}, ErrBlocked},
		{"nil response", nil, ErrNetwork},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Classify(tt.resp)
			if tt.want == nil {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, tt.want)
		})
	}

	var httpErr *HTTPError
	err := Classify(&Response{Status: 404, URL: "https://x.test/a"})
	require.True(t, errors.As(err, &httpErr))
	assert.Equal(t, 404, httpErr.Status)
}

func TestLooksLikeChallenge(t *testing.T) {
	long := strings.Repeat("<p>Article body text.</p>", 2000)
	tests := []struct {
		name string
		body string
		want bool
	}{
		{"cloudflare interstitial", `<html><head><title>Just a moment...</title></head><body><div id="cf-challenge"></div></body></html>`, true},
		{"access denied title", `<html><head><title>Access Denied</title></head><body>Reference #18</body></html>`, true},
		{"short page with signature", `<html><body><form action="/cdn-cgi/l/chk_captcha?__cf_chl_tk=x"></form></body></html>`, true},
		{"scholar sorry page", `<html><body>Our systems have detected unusual traffic from your computer network.</body></html>`, true},
		{"paper about captchas", `<html><head><title>Breaking Text CAPTCHA Schemes</title></head><body>captcha captcha</body></html>`, false},
		{"recaptcha widget", `<html><head><title>Sign in</title><script src="https://www.google.com/recaptcha/api.js"></script></head></html>`, false},
		{"access denied in text", `<html><head><title>Results</title></head><body>Access denied to supplementary files.</body></html>`, false},
		{"long page with injected script", `<html><head><title>Paper</title><script src="/cdn-cgi/challenge-platform/h/b"></script></head><body>` + long + `</body></html>`, false},
		{"citation metadata wins", `<html><head><title>Just a moment...</title><meta name="citation_title" content="x"></head></html>`, false},
		{"json-ld wins", `<html><head><title>Access Denied</title><script type="application/ld+json">{}</script></head></html>`, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, LooksLikeChallenge([]byte(tt.body)))
		})
	}
}

func TestHostLimiterSpacesSameHost(t *testing.T) {
	l := NewHostLimiter(50 * time.Millisecond)
	ctx := context.Background()

	start := time.Now()
	require.NoError(t, l.Wait(ctx, "https://a.test/1"))
	require.NoError(t, l.Wait(ctx, "https://b.test/1"))
	assert.Less(t, time.Since(start), 40*time.Millisecond, "different hosts must not wait on each other")

	require.NoError(t, l.Wait(ctx, "https://a.test/2"))
	assert.GreaterOrEqual(t, time.Since(start), 40*time.Millisecond)
}

func TestHostLimiterHonorsContext(t *testing.T) {
	l := NewHostLimiter(time.Hour)
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	require.NoError(t, l.Wait(ctx, "https://a.test/1"))
	err := l.Wait(ctx, "https://a.test/2")
	require.Error(t, err)
	assert.False(t, strings.Contains(err.Error(), "missing host"))
}

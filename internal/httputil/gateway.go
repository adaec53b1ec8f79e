// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package httputil provides HTTP helpers shared across stages: the network
// gateway used for page fetches, per-host politeness, retry with backoff,
// and the failure taxonomy.
package httputil

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"

	"github.com/pdiddy/litscout/pkg/types"
)

// MaxBodyBytes caps how much of a response body the gateway reads.
const MaxBodyBytes = 25 << 20

// Response is what a gateway returns: the origin status and content type
// forwarded untouched, plus the (possibly cleaned) body.
type Response struct {
	URL         string
	Status      int
	ContentType string
	Body        []byte
}

// IsHTML reports whether the declared content type is HTML or absent.
func (r *Response) IsHTML() bool {
	ct := strings.ToLower(r.ContentType)
	return ct == "" || strings.Contains(ct, "html")
}

// Gateway fetches a URL. Implementations forward the origin status and
// content type, strip known ad and analytics scripts from HTML, and pass
// 202 responses through without retrying.
type Gateway interface {
	Fetch(ctx context.Context, target string) (*Response, error)
}

// DirectGateway fetches targets itself with net/http and spaces requests
// per host.
type DirectGateway struct {
	Client    *http.Client
	UserAgent string
	Limiter   *HostLimiter
	Logger    *zap.Logger
}

// NewDirectGateway builds a DirectGateway from configuration.
func NewDirectGateway(cfg types.GatewayConfig, logger *zap.Logger) *DirectGateway {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 20 * time.Second
	}
	ua := cfg.UserAgent
	if ua == "" {
		ua = types.DefaultUserAgent
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &DirectGateway{
		Client:    &http.Client{Timeout: timeout},
		UserAgent: ua,
		Limiter:   NewHostLimiter(cfg.HostInterval),
		Logger:    logger,
	}
}

// Fetch retrieves target. A transport failure or timeout is reported as
// ErrNetwork; every HTTP status, including errors, is returned as a Response.
func (g *DirectGateway) Fetch(ctx context.Context, target string) (*Response, error) {
	if g.Limiter != nil {
		if err := g.Limiter.Wait(ctx, target); err != nil {
			return nil, fmt.Errorf("%w: waiting for host slot: %w", ErrNetwork, err)
		}
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("User-Agent", g.UserAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/pdf;q=0.9,*/*;q=0.8")

	return g.do(req)
}

func (g *DirectGateway) do(req *http.Request) (*Response, error) {
	client := g.Client
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrNetwork, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, MaxBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("%w: reading body: %w", ErrNetwork, err)
	}

	out := &Response{
		URL:         req.URL.String(),
		Status:      resp.StatusCode,
		ContentType: resp.Header.Get("Content-Type"),
		Body:        body,
	}
	if out.IsHTML() && !isPDF(body) {
		out.Body = StripTrackingScripts(body)
	}
	if g.Logger != nil {
		g.Logger.Debug("fetched",
			zap.String("url", out.URL),
			zap.Int("status", out.Status),
			zap.String("content_type", out.ContentType),
			zap.Int("bytes", len(out.Body)))
	}
	return out, nil
}

// ProxyGateway routes fetches through a remote gateway endpoint that takes
// the target as the "url" query parameter.
type ProxyGateway struct {
	Endpoint string
	direct   *DirectGateway
}

// NewProxyGateway wraps endpoint. Per-host spacing applies to the target
// host, not the proxy host.
func NewProxyGateway(endpoint string, cfg types.GatewayConfig, logger *zap.Logger) (*ProxyGateway, error) {
	if _, err := url.ParseRequestURI(endpoint); err != nil {
		return nil, fmt.Errorf("%w: invalid gateway endpoint %q: %v", ErrConfig, endpoint, err)
	}
	return &ProxyGateway{Endpoint: endpoint, direct: NewDirectGateway(cfg, logger)}, nil
}

// Fetch asks the proxy for target.
func (p *ProxyGateway) Fetch(ctx context.Context, target string) (*Response, error) {
	if p.direct.Limiter != nil {
		if err := p.direct.Limiter.Wait(ctx, target); err != nil {
			return nil, fmt.Errorf("%w: waiting for host slot: %w", ErrNetwork, err)
		}
	}
	sep := "?"
	if strings.Contains(p.Endpoint, "?") {
		sep = "&"
	}
	proxied := p.Endpoint + sep + "url=" + url.QueryEscape(target)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, proxied, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("User-Agent", p.direct.UserAgent)
	resp, err := p.direct.do(req)
	if resp != nil {
		resp.URL = target
	}
	return resp, err
}

// trackingHosts identifies ad and analytics script sources.
var trackingHosts = []string{
	"googletagmanager.com",
	"google-analytics.com",
	"doubleclick.net",
	"googlesyndication.com",
	"adservice.google",
	"connect.facebook.net",
	"hotjar.com",
	"scorecardresearch.com",
	"quantserve.com",
	"adsrvr.org",
	"cdn.segment.com",
	"newrelic.com",
	"nr-data.net",
}

// inlineTrackingMarkers identify inline analytics bootstraps.
var inlineTrackingMarkers = []string{"gtag(", "dataLayer", "_gaq", "fbq(", "ga('create'"}

// StripTrackingScripts removes known ad and analytics <script> elements.
// Other scripts, including JSON-LD and hydration blobs, are left alone.
func StripTrackingScripts(body []byte) []byte {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(string(body)))
	if err != nil {
		return body
	}
	removed := 0
	doc.Find("script").Each(func(_ int, s *goquery.Selection) {
		if src, ok := s.Attr("src"); ok {
			for _, h := range trackingHosts {
				if strings.Contains(src, h) {
					s.Remove()
					removed++
					return
				}
			}
			return
		}
		text := s.Text()
		for _, m := range inlineTrackingMarkers {
			if strings.Contains(text, m) {
				s.Remove()
				removed++
				return
			}
		}
	})
	if removed == 0 {
		return body
	}
	out, err := doc.Html()
	if err != nil {
		return body
	}
	return []byte(out)
}

// pdfMagic is the signature every PDF starts with.
var pdfMagic = []byte("%PDF")

// IsPDF sniffs the body for the PDF signature, ignoring leading whitespace
// and a UTF-8 BOM within the first 1 KiB.
func IsPDF(body []byte) bool {
	return isPDF(body)
}

func isPDF(body []byte) bool {
	limit := len(body)
	if limit > 1024 {
		limit = 1024
	}
	head := body[:limit]
	for len(head) > 0 {
		switch head[0] {
		case ' ', '\t', '\r', '\n', 0xEF, 0xBB, 0xBF:
			head = head[1:]
			continue
		}
		break
	}
	return len(head) >= len(pdfMagic) && string(head[:len(pdfMagic)]) == string(pdfMagic)
}

// IsNetwork reports whether err is a transport-level failure.
func IsNetwork(err error) bool {
	return errors.Is(err, ErrNetwork) || errors.Is(err, context.DeadlineExceeded)
}

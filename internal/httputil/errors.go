// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package httputil

import (
	"bytes"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// Failure taxonomy shared by every stage that touches the network. Callers
// test with errors.Is; wrapping preserves the category.
var (
	// ErrNetwork covers timeouts and transport failures with no response.
	ErrNetwork = errors.New("network failure")

	// ErrRateLimited is an HTTP 429 that survived local retries.
	ErrRateLimited = errors.New("rate limited")

	// ErrBlocked means the origin refused us (401/403/429/504 or a
	// challenge page). Blocked URLs go on the persisted block-list.
	ErrBlocked = errors.New("blocked")

	// ErrProcessingPending is an HTTP 202; never retried within one call.
	ErrProcessingPending = errors.New("processing pending")

	// ErrMalformed is content that cannot be parsed (corrupt PDF, broken JSON).
	ErrMalformed = errors.New("malformed content")

	// ErrBudgetExhausted marks a depth, request, or time cap. It always
	// ends work gracefully with partial results.
	ErrBudgetExhausted = errors.New("budget exhausted")

	// ErrConfig is the only fatal category: missing credentials or endpoints.
	ErrConfig = errors.New("configuration error")
)

// HTTPError carries an unexpected status code.
type HTTPError struct {
	Status int
	URL    string
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("HTTP %d from %s", e.Status, e.URL)
}

// blockStatuses are the origin responses treated as a refusal.
var blockStatuses = map[int]bool{
	http.StatusUnauthorized:    true,
	http.StatusForbidden:       true,
	http.StatusTooManyRequests: true,
	http.StatusGatewayTimeout:  true,
}

// IsBlockStatus reports whether status means the origin refused the caller.
func IsBlockStatus(status int) bool {
	return blockStatuses[status]
}

// challengeTitles appear in the <title> of bot-check interstitials.
var challengeTitles = []string{
	"just a moment...",
	"attention required! | cloudflare",
	"are you a robot",
	"please verify you are a human",
	"verifying you are human",
	"ddos-guard",
}

// blockedTitles are generic refusal titles; they must match exactly.
var blockedTitles = map[string]bool{
	"access denied":    true,
	"403 forbidden":    true,
	"request rejected": true,
}

// challengeSignatures are bot-check markup found in the body of short
// interstitial pages.
var challengeSignatures = []string{
	"cf-challenge",
	"cf_chl_",
	"challenge-platform",
	"cf-browser-verification",
	"unusual traffic from your computer",
	"please verify you are a human",
	"gs_captcha",
}

// challengePageMax is the largest page treated as a possible interstitial
// on body signatures alone.
const challengePageMax = 32 * 1024

// LooksLikeChallenge reports whether body is a bot-check or refusal page
// rather than content. The title decides first; body signatures count only
// on short pages. Pages that carry article metadata (citation_*, Dublin
// Core or JSON-LD) are never challenges. Only the first 64 KiB are parsed.
func LooksLikeChallenge(body []byte) bool {
	size := len(body)
	if size > 64*1024 {
		body = body[:64*1024]
	}
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return false
	}
	if hasArticleMetadata(doc) {
		return false
	}

	title := strings.ToLower(strings.Join(strings.Fields(doc.Find("title").First().Text()), " "))
	if blockedTitles[title] {
		return true
	}
	for _, m := range challengeTitles {
		if strings.Contains(title, m) {
			return true
		}
	}

	if size > challengePageMax {
		return false
	}
	lower := strings.ToLower(string(body))
	for _, m := range challengeSignatures {
		if strings.Contains(lower, m) {
			return true
		}
	}
	return false
}

func hasArticleMetadata(doc *goquery.Document) bool {
	if doc.Find(`script[type="application/ld+json"]`).Length() > 0 {
		return true
	}
	found := false
	doc.Find("meta[name]").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		name := strings.ToLower(s.AttrOr("name", ""))
		if strings.HasPrefix(name, "citation_") || strings.HasPrefix(name, "dc.") {
			found = true
		}
		return !found
	})
	return found
}

// Classify maps a gateway response to the failure taxonomy. It returns nil
// for a usable 2xx response.
func Classify(resp *Response) error {
	switch {
	case resp == nil:
		return ErrNetwork
	case resp.Status == http.StatusAccepted:
		return ErrProcessingPending
	case resp.Status == http.StatusTooManyRequests:
		return fmt.Errorf("%w: %w", ErrBlocked, ErrRateLimited)
	case IsBlockStatus(resp.Status):
		return fmt.Errorf("%w: HTTP %d", ErrBlocked, resp.Status)
	case resp.Status < 200 || resp.Status > 299:
		return &HTTPError{Status: resp.Status, URL: resp.URL}
	case resp.IsHTML() && LooksLikeChallenge(resp.Body):
		return fmt.Errorf("%w: challenge page", ErrBlocked)
	}
	return nil
}

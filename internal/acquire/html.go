// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package acquire

import (
	"html"
	"net/url"
	"regexp"
	"strings"

	readability "codeberg.org/readeck/go-readability/v2"
	"github.com/PuerkitoBio/goquery"
)

// pdfLinkPattern matches anchors that usually lead to a paper's PDF or
// its reader view.
var pdfLinkPattern = regexp.MustCompile(`(?i)(\.pdf(?:$|[?#])|/pdf/|/doi/pdf/|/doi/epdf/|/doi/pdfdirect/|/stamp/stamp\.jsp|/content/pdf/|/pdfft)`)

// FindPDFLinks returns absolute candidate PDF URLs found on page, best
// first: the citation_pdf_url meta tag, alternate PDF links, then anchors
// that look like PDF or reader links. pageURL resolves relative links.
func FindPDFLinks(page, pageURL string) []string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(page))
	if err != nil {
		return nil
	}
	base, err := url.Parse(pageURL)
	if err != nil {
		return nil
	}
	if href, ok := doc.Find("base[href]").First().Attr("href"); ok {
		if b, err := base.Parse(strings.TrimSpace(href)); err == nil {
			base = b
		}
	}

	var links []string
	seen := make(map[string]bool)
	add := func(raw string) {
		raw = strings.TrimSpace(raw)
		if raw == "" || strings.HasPrefix(raw, "#") {
			return
		}
		u, err := base.Parse(raw)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") {
			return
		}
		u.Fragment = ""
		abs := u.String()
		if !seen[abs] {
			seen[abs] = true
			links = append(links, abs)
		}
	}

	doc.Find("meta").Each(func(_ int, s *goquery.Selection) {
		if strings.EqualFold(s.AttrOr("name", ""), "citation_pdf_url") {
			add(s.AttrOr("content", ""))
		}
	})
	doc.Find("link[href]").Each(func(_ int, s *goquery.Selection) {
		if strings.EqualFold(s.AttrOr("rel", ""), "alternate") &&
			strings.EqualFold(s.AttrOr("type", ""), "application/pdf") {
			add(s.AttrOr("href", ""))
		}
	})
	doc.Find("a[href]").Each(func(_ int, s *goquery.Selection) {
		href := s.AttrOr("href", "")
		if pdfLinkPattern.MatchString(href) {
			add(href)
		}
	})
	return links
}

// PrepareHTML removes every script and injects a <base href> pointing at
// pageURL so relative links keep working when the page is opened offline.
// An existing base element is left in place.
func PrepareHTML(page, pageURL string) ([]byte, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(page))
	if err != nil {
		return nil, err
	}
	doc.Find("script, noscript").Remove()
	if doc.Find("base[href]").Length() == 0 {
		doc.Find("head").First().PrependHtml(`<base href="` + html.EscapeString(pageURL) + `">`)
	}
	out, err := doc.Html()
	if err != nil {
		return nil, err
	}
	return []byte(out), nil
}

// ReadableText extracts the main text of page with readability. It
// returns "" when the page has no readable article.
func ReadableText(page, pageURL string) string {
	var base *url.URL
	if u, err := url.Parse(pageURL); err == nil {
		base = u
	}
	article, err := readability.FromReader(strings.NewReader(page), base)
	if err != nil {
		return ""
	}
	var b strings.Builder
	if err := article.RenderText(&b); err != nil {
		return ""
	}
	return strings.TrimSpace(b.String())
}

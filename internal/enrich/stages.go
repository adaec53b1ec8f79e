// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package enrich

import (
	"encoding/json"
	"html"
	"maps"
	"regexp"
	"slices"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/microcosm-cc/bluemonday"
)

const (
	// MinAbstractLength is the shortest structured-data or meta value
	// accepted as an abstract. Summaries shorter than this are enriched.
	MinAbstractLength = 100

	// minContainerLength is the floor for text scraped from an abstract
	// container.
	minContainerLength = 50

	// tldrStubLength bounds what counts as a one-line TLDR stub.
	tldrStubLength = 300
)

// Stage is one pure step of the cascade. Extract returns the abstract and
// true when the page satisfies the stage.
type Stage struct {
	Name    string
	Extract func(page string) (string, bool)
}

// Stages are the deterministic parsing steps, cheapest first. They run
// over an already-fetched page and never touch the network.
var Stages = []Stage{
	{Name: "json-ld", Extract: FromJSONLD},
	{Name: "meta", Extract: FromMeta},
	{Name: "inline-json", Extract: FromInlineJSON},
	{Name: "container", Extract: FromContainer},
}

var textPolicy = bluemonday.StrictPolicy()

// cleanText drops markup and collapses whitespace.
func cleanText(s string) string {
	s = html.UnescapeString(textPolicy.Sanitize(s))
	return strings.Join(strings.Fields(s), " ")
}

func parse(page string) (*goquery.Document, bool) {
	if strings.TrimSpace(page) == "" {
		return nil, false
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(page))
	if err != nil {
		return nil, false
	}
	return doc, true
}

// FromJSONLD looks for an abstract or description of at least
// MinAbstractLength characters in the page's JSON-LD blocks.
func FromJSONLD(page string) (string, bool) {
	doc, ok := parse(page)
	if !ok {
		return "", false
	}
	var found string
	doc.Find(`script[type="application/ld+json"]`).EachWithBreak(func(_ int, s *goquery.Selection) bool {
		var data any
		if err := json.Unmarshal([]byte(strings.TrimSpace(s.Text())), &data); err != nil {
			return true
		}
		if v, ok := searchJSONLD(data); ok {
			found = v
			return false
		}
		return true
	})
	return found, found != ""
}

// searchJSONLD walks objects, arrays and @graph lists. Within one object
// "abstract" is preferred over "description".
func searchJSONLD(node any) (string, bool) {
	switch v := node.(type) {
	case map[string]any:
		for _, key := range []string{"abstract", "description"} {
			if s, ok := v[key].(string); ok {
				if text := cleanText(s); len(text) >= MinAbstractLength {
					return text, true
				}
			}
		}
		for _, key := range slices.Sorted(maps.Keys(v)) {
			if text, ok := searchJSONLD(v[key]); ok {
				return text, true
			}
		}
	case []any:
		for _, child := range v {
			if text, ok := searchJSONLD(child); ok {
				return text, true
			}
		}
	}
	return "", false
}

// metaNames are checked in order; the first long enough value wins.
var metaNames = []string{
	"citation_abstract",
	"dc.description",
	"description",
	"og:description",
	"twitter:description",
}

// FromMeta reads the description family of <meta> tags.
func FromMeta(page string) (string, bool) {
	doc, ok := parse(page)
	if !ok {
		return "", false
	}
	values := make(map[string]string)
	doc.Find("meta").Each(func(_ int, s *goquery.Selection) {
		name := s.AttrOr("name", s.AttrOr("property", ""))
		name = strings.ToLower(strings.TrimSpace(name))
		if _, seen := values[name]; name == "" || seen {
			return
		}
		values[name] = s.AttrOr("content", "")
	})
	for _, name := range metaNames {
		if text := cleanText(values[name]); len(text) >= MinAbstractLength {
			return text, true
		}
	}
	return "", false
}

var inlineAbstract = regexp.MustCompile(`"abstract"\s*:\s*"((?:[^"\\]|\\.)*)"`)

// FromInlineJSON pulls a raw "abstract":"..." field out of hydration
// blobs and inline scripts, decoding JSON escapes.
func FromInlineJSON(page string) (string, bool) {
	for _, m := range inlineAbstract.FindAllStringSubmatch(page, -1) {
		var raw string
		if err := json.Unmarshal([]byte(`"`+m[1]+`"`), &raw); err != nil {
			continue
		}
		if text := cleanText(raw); len(text) >= MinAbstractLength {
			return text, true
		}
	}
	return "", false
}

// abstractContainers are publisher markup for the abstract section.
var abstractContainers = []string{
	"#abstract",
	"#Abs1-content",
	"section.abstract",
	"div.abstract",
	"blockquote.abstract",
	".abstractSection",
	".abstractInFull",
	".abstract-content",
	".abstract-text",
	".hlFld-Abstract",
	".article__abstract",
	".c-article-section__content",
	"[itemprop='description']",
}

var abstractLabel = regexp.MustCompile(`(?i)^abstract\b\s*[:.]?\s*`)

// FromContainer scrapes known abstract containers. Text must be longer
// than 50 characters and not a TLDR stub.
func FromContainer(page string) (string, bool) {
	doc, ok := parse(page)
	if !ok {
		return "", false
	}
	for _, sel := range abstractContainers {
		var found string
		doc.Find(sel).EachWithBreak(func(_ int, s *goquery.Selection) bool {
			text := strings.Join(strings.Fields(s.Text()), " ")
			text = abstractLabel.ReplaceAllString(text, "")
			if len(text) > minContainerLength && !isTLDRStub(text) {
				found = text
				return false
			}
			return true
		})
		if found != "" {
			return found, true
		}
	}
	return "", false
}

func isTLDRStub(text string) bool {
	lower := strings.ToLower(text)
	return len(text) < tldrStubLength &&
		(strings.HasPrefix(lower, "tldr") || strings.HasPrefix(lower, "tl;dr"))
}

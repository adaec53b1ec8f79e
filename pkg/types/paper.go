// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

import (
	"strings"
	"time"
	"unicode"
)

// Placeholder values written by providers when a field is missing. Downstream
// stages (enrichment, output) recognize them instead of guessing.
const (
	UnknownAuthors     = "Unknown Authors"
	NotAvailable       = "N/A"
	PlaceholderSummary = "No abstract available."
)

// MinTitleLength is the shortest title a provider may map into a Paper.
// Titles of this length or shorter are treated as scrape noise.
const MinTitleLength = 5

// Paper is a deduplicated bibliographic record produced by a search provider.
type Paper struct {
	// Title is the paper title; always longer than MinTitleLength.
	Title string `json:"title" yaml:"title"`

	// Authors is a display string ("A. Smith, B. Jones").
	Authors string `json:"authors" yaml:"authors"`

	// Year is the publication year, 0 when unknown.
	Year int `json:"year,omitempty" yaml:"year,omitempty"`

	// DOI is the bare DOI (e.g. "10.1145/1234567") when known.
	DOI string `json:"doi,omitempty" yaml:"doi,omitempty"`

	// URL is the landing page a human would open.
	URL string `json:"url" yaml:"url"`

	// OpenAccessPDFURL is a direct PDF link, kept even when URL already
	// points at the same file.
	OpenAccessPDFURL string `json:"open_access_pdf_url,omitempty" yaml:"open_access_pdf_url,omitempty"`

	// Summary is the abstract text. It may be a placeholder until enrichment
	// replaces it.
	Summary string `json:"summary" yaml:"summary"`

	// Origin names the provider that produced the record (e.g. "semantic_scholar").
	Origin string `json:"origin" yaml:"origin"`
}

// DedupKey returns the normalized title used to detect duplicates across
// strategies and providers.
func (p Paper) DedupKey() string {
	return NormalizeTitle(p.Title)
}

// HasPlaceholderSummary reports whether Summary carries no real abstract.
func (p Paper) HasPlaceholderSummary() bool {
	s := strings.TrimSpace(p.Summary)
	return s == "" || s == PlaceholderSummary || s == NotAvailable
}

// NormalizeTitle returns a lowercased, punctuation-stripped version of the
// title with whitespace collapsed.
func NormalizeTitle(title string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(title) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) || unicode.IsSpace(r) {
			b.WriteRune(r)
		}
	}
	return strings.Join(strings.Fields(b.String()), " ")
}

// DocumentType is the retrieved format of a primary document.
type DocumentType string

const (
	DocumentPDF  DocumentType = "pdf"
	DocumentHTML DocumentType = "html"
	DocumentLink DocumentType = "link"
)

// Document is a retrieved primary source for a Paper. It references the
// paper by ID and is never modified after the resolver creates it.
type Document struct {
	ID      string       `json:"id" yaml:"id"`
	PaperID string       `json:"paper_id" yaml:"paper_id"`
	Type    DocumentType `json:"type" yaml:"type"`

	// Content is the raw PDF bytes or the rewritten HTML.
	Content []byte `json:"-" yaml:"-"`

	// TextContent is an extracted plain-text excerpt; empty when extraction
	// failed or was not attempted.
	TextContent string `json:"text_content,omitempty" yaml:"text_content,omitempty"`

	OriginalURL string    `json:"original_url" yaml:"original_url"`
	Timestamp   time.Time `json:"timestamp" yaml:"timestamp"`
}

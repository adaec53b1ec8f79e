// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package query turns a free-text research topic into an ordered list of
// search strategies, most specific first. Only the first strategy needs an
// LLM; the rest are deterministic and always available.
package query

import (
	"context"
	"fmt"
	"regexp"
	"sort"
	"strings"
	"unicode"

	"go.uber.org/zap"

	"github.com/pdiddy/litscout/internal/llm"
)

// MaxStrategies is the largest number of queries Generate returns.
const MaxStrategies = 5

const keywordPrompt = `You are helping search an academic literature database.
Extract 3 to 5 academic keywords or short key phrases that best capture the
following research topic. Reply with the keywords only, separated by spaces,
in English, without numbering, labels, or explanations.

Topic: %s`

// Generator produces search strategies for a topic.
type Generator struct {
	// LLM extracts keywords for the first strategy. Nil skips that stage.
	LLM    llm.Backend
	Logger *zap.Logger
}

// NewGenerator returns a Generator. A nil logger is replaced by a no-op logger.
func NewGenerator(backend llm.Backend, logger *zap.Logger) *Generator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Generator{LLM: backend, Logger: logger}
}

// Generate returns at most MaxStrategies distinct queries for topic:
// the LLM keyword query, the basic extraction, the broad query, the
// longest word and the verbatim topic. Empty and repeated candidates are
// skipped. LLM failures are logged and never returned.
func (g *Generator) Generate(ctx context.Context, topic string) []string {
	var out []string
	add := func(q string) {
		q = strings.TrimSpace(q)
		if q == "" || len(out) >= MaxStrategies {
			return
		}
		for _, existing := range out {
			if existing == q {
				return
			}
		}
		out = append(out, q)
	}

	if q, ok := g.keywordQuery(ctx, topic); ok {
		add(q)
	}
	add(BasicExtract(topic))
	add(BroadQuery(topic))
	if w := LongestWord(topic); len([]rune(w)) > 4 {
		add(w)
	}
	add(topic)
	return out
}

func (g *Generator) keywordQuery(ctx context.Context, topic string) (string, bool) {
	if g.LLM == nil || strings.TrimSpace(topic) == "" {
		return "", false
	}
	logger := g.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	raw, err := g.LLM.Complete(ctx, llm.Request{
		Prompt:    fmt.Sprintf(keywordPrompt, strings.TrimSpace(topic)),
		MaxTokens: 100,
	})
	if err != nil {
		logger.Warn("keyword extraction failed", zap.String("topic", topic), zap.Error(err))
		return "", false
	}

	q := SanitizeKeywords(raw)
	if !ValidKeywords(q) {
		logger.Debug("discarding keyword query", zap.String("raw", raw), zap.String("sanitized", q))
		return "", false
	}
	return q, true
}

var (
	labelPattern         = regexp.MustCompile(`(?i)\b(?:keywords?|search terms?|search query|query|key phrases?)\s*:`)
	parentheticalPattern = regexp.MustCompile(`\([^)]*\)|\[[^\]]*\]`)
	quotePattern         = regexp.MustCompile("[\"'`“”‘’«»]")
)

// SanitizeKeywords cleans an LLM keyword reply: labels, parenthetical
// asides, quotes, list punctuation and non-Latin characters are removed
// and whitespace is collapsed.
func SanitizeKeywords(raw string) string {
	s := labelPattern.ReplaceAllString(raw, " ")
	s = parentheticalPattern.ReplaceAllString(s, " ")
	s = quotePattern.ReplaceAllString(s, "")

	var b strings.Builder
	for _, r := range s {
		switch {
		case r == '-':
			b.WriteRune(r)
		case unicode.IsDigit(r) && r < unicode.MaxASCII:
			b.WriteRune(r)
		case unicode.Is(unicode.Latin, r):
			b.WriteRune(r)
		default:
			b.WriteRune(' ')
		}
	}
	return strings.Join(strings.Fields(b.String()), " ")
}

// ValidKeywords reports whether a sanitized keyword query is usable: at
// least 5 characters and at least two tokens longer than 2 characters.
func ValidKeywords(q string) bool {
	if len([]rune(q)) < 5 {
		return false
	}
	long := 0
	for _, tok := range strings.Fields(q) {
		if len([]rune(tok)) > 2 {
			long++
		}
	}
	return long >= 2
}

// stopWords are dropped by BasicExtract. Tokens of two characters or fewer
// are dropped regardless, so "ai", "of" and "on" are listed only for clarity.
var stopWords = map[string]bool{
	"a": true, "ai": true, "an": true, "and": true, "are": true, "as": true,
	"at": true, "be": true, "between": true, "by": true, "can": true,
	"do": true, "does": true, "for": true, "from": true, "has": true,
	"have": true, "how": true, "in": true, "into": true, "is": true,
	"it": true, "its": true, "of": true, "on": true, "or": true,
	"over": true, "than": true, "that": true, "the": true, "their": true,
	"these": true, "this": true, "those": true, "to": true, "under": true,
	"using": true, "via": true, "was": true, "were": true, "what": true,
	"when": true, "where": true, "which": true, "who": true, "why": true,
	"will": true, "with": true, "within": true, "about": true,
}

// BasicExtract lowercases topic, strips punctuation, and drops stop words
// and tokens of length 2 or less, keeping the first occurrence of each
// remaining token.
func BasicExtract(topic string) string {
	seen := make(map[string]bool)
	var kept []string
	for _, tok := range tokens(strings.ToLower(topic)) {
		if len([]rune(tok)) <= 2 || stopWords[tok] || seen[tok] {
			continue
		}
		seen[tok] = true
		kept = append(kept, tok)
	}
	return strings.Join(kept, " ")
}

// BroadQuery returns the three longest tokens of topic, longest first.
// Ties keep their order of appearance.
func BroadQuery(topic string) string {
	toks := tokens(topic)
	sort.SliceStable(toks, func(i, j int) bool {
		return len([]rune(toks[i])) > len([]rune(toks[j]))
	})
	if len(toks) > 3 {
		toks = toks[:3]
	}
	return strings.Join(toks, " ")
}

// LongestWord returns the first longest token of topic.
func LongestWord(topic string) string {
	var best string
	for _, tok := range tokens(topic) {
		if len([]rune(tok)) > len([]rune(best)) {
			best = tok
		}
	}
	return best
}

// tokens strips punctuation and symbols and splits on whitespace.
func tokens(s string) []string {
	var b strings.Builder
	for _, r := range s {
		if unicode.IsPunct(r) || unicode.IsSymbol(r) {
			continue
		}
		b.WriteRune(r)
	}
	return strings.Fields(b.String())
}

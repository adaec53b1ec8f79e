// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package enrich

import (
	"context"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/microcosm-cc/bluemonday"

	"github.com/pdiddy/litscout/internal/llm"
	"github.com/pdiddy/litscout/pkg/types"
)

// notFoundToken is what the model answers when the page has no abstract.
const notFoundToken = "NOT_FOUND"

const extractPrompt = `The following is the HTML of an academic paper's landing page.
Copy the paper's abstract exactly as it appears, word for word. Do not
summarize, paraphrase, translate, or add anything. Output only the abstract
text with no preamble and no quotes. If the page does not contain an
abstract, output exactly ` + notFoundToken + `.

HTML:
`

// pagePolicy keeps document structure but drops scripts, styles and
// comments along with everything that is not user content.
var pagePolicy = bluemonday.UGCPolicy()

// Sanitize strips scripts, styles and comments from page and truncates
// the result to at most limit characters.
func Sanitize(page string, limit int) string {
	clean := strings.TrimSpace(pagePolicy.Sanitize(page))
	if limit <= 0 {
		limit = types.DefaultEnrichConfig().MaxLLMChars
	}
	if utf8.RuneCountInString(clean) <= limit {
		return clean
	}
	runes := []rune(clean)
	return string(runes[:limit])
}

// extractWithLLM is the last stage: verbatim extraction by the model.
func (p *Pipeline) extractWithLLM(ctx context.Context, page string) (string, error) {
	body := Sanitize(page, p.Config.MaxLLMChars)
	if body == "" {
		return "", ErrNotFound
	}
	answer, err := p.LLM.Complete(ctx, llm.Request{Prompt: extractPrompt + body})
	if err != nil {
		return "", fmt.Errorf("llm extraction: %w", err)
	}
	answer = strings.Trim(strings.TrimSpace(answer), "\"'`")
	answer = strings.TrimSpace(answer)
	if answer == "" || strings.Contains(strings.ToUpper(answer), notFoundToken) {
		return "", ErrNotFound
	}
	return answer, nil
}

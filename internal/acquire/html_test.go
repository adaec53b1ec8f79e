// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package acquire

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFindPDFLinks(t *testing.T) {
	page := `<html><head>
<link rel="alternate" type="application/pdf" href="/alt/paper.pdf">
<meta name="citation_pdf_url" content="https://cdn.test/full.pdf">
</head><body>
<a href="#refs">References</a>
<a href="/doi/pdf/10.1/x">PDF</a>
<a href="supplement.PDF?download=1#page=2">Supplement</a>
<a href="mailto:someone@pub.test">Mail</a>
<a href="/about">About</a>
<a href="https://cdn.test/full.pdf">Again</a>
</body></html>`

	got := FindPDFLinks(page, "https://pub.test/article/7")
	assert.Equal(t, []string{
		"https://cdn.test/full.pdf",
		"https://pub.test/alt/paper.pdf",
		"https://pub.test/doi/pdf/10.1/x",
		"https://pub.test/article/supplement.PDF?download=1",
	}, got)
}

func TestFindPDFLinksHonoursBase(t *testing.T) {
	page := `<html><head><base href="https://mirror.test/files/"></head>
<body><a href="paper.pdf">PDF</a></body></html>`
	assert.Equal(t, []string{"https://mirror.test/files/paper.pdf"}, FindPDFLinks(page, "https://pub.test/a/b"))
}

func TestPrepareHTML(t *testing.T) {
	out, err := PrepareHTML(`<html><head><title>T</title><script>evil()</script></head>
<body><noscript>enable js</noscript><img src="fig.png"></body></html>`, "https://pub.test/a?x=1&y=2")
	require.NoError(t, err)
	html := string(out)
	assert.Contains(t, html, `<base href="https://pub.test/a?x=1&amp;y=2"/>`)
	assert.NotContains(t, html, "evil()")
	assert.NotContains(t, html, "enable js")
	assert.Contains(t, html, `<img src="fig.png"/>`)

	out, err = PrepareHTML(`<html><head><base href="/root/"></head><body></body></html>`, "https://pub.test/a")
	require.NoError(t, err)
	assert.Equal(t, 1, strings.Count(string(out), "<base"))
}

func TestReadableText(t *testing.T) {
	para := strings.Repeat("Transformers replace recurrence with attention over the whole sequence. ", 10)
	page := `<html><head><title>Attention</title></head><body>
<nav>Home | About</nav><article><p>` + para + `</p><p>` + para + `</p></article></body></html>`

	text := ReadableText(page, "https://pub.test/attention")
	assert.Contains(t, text, "Transformers replace recurrence")
	assert.Equal(t, strings.TrimSpace(text), text)
}

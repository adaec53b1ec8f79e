// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package search

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.yaml.in/yaml/v3"

	"github.com/pdiddy/litscout/pkg/types"
)

func TestDedupSet(t *testing.T) {
	d := newDedupSet()
	assert.True(t, d.add(types.Paper{Title: "Attention Is All You Need"}))
	assert.False(t, d.add(types.Paper{Title: "attention is all you need."}))
	assert.False(t, d.add(types.Paper{Title: "  ATTENTION   is all you NEED"}))
	assert.False(t, d.add(types.Paper{Title: "!!!"}), "empty key is never accepted")
	assert.True(t, d.add(types.Paper{Title: "Attention is not all you need"}))
	assert.Equal(t, 2, d.removed)
}

func sampleOutput() Output {
	return Output{
		Topic: "transformers",
		Papers: []types.Paper{
			{Title: "Attention is all you need", Authors: "A Vaswani, N Shazeer", Year: 2017, Origin: "semantic_scholar"},
			{Title: strings.Repeat("Very long title ", 10), Authors: "Solo Author", Origin: "google_scholar"},
		},
		Strategies:     []StrategyStats{{Provider: "semantic_scholar", Query: "transformers", Fetched: 3, Accepted: 2}},
		DupsRemoved:    1,
		ProviderErrors: []string{"google_scholar \"transformers\": blocked"},
	}
}

func TestFormatTable(t *testing.T) {
	var buf bytes.Buffer
	FormatTable(sampleOutput(), &buf)
	out := buf.String()

	assert.Contains(t, out, "Attention is all you need")
	assert.Contains(t, out, "A Vaswani et al.")
	assert.Contains(t, out, "2017")
	assert.Contains(t, out, "...")
	assert.Contains(t, out, "2 results (1 duplicates removed)")
	assert.Contains(t, out, "warning: google_scholar")
}

func TestFormatTableEmpty(t *testing.T) {
	var buf bytes.Buffer
	FormatTable(Output{}, &buf)
	assert.Equal(t, "No results found.\n", buf.String())
}

func TestFormatJSON(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, FormatJSON(sampleOutput(), &buf))

	var got Output
	require.NoError(t, json.Unmarshal(buf.Bytes(), &got))
	assert.Len(t, got.Papers, 2)
	assert.Equal(t, 1, got.DupsRemoved)
	assert.Contains(t, buf.String(), `"dups_removed": 1`)
}

func TestFormatYAML(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, FormatYAML(sampleOutput(), &buf))
	assert.Contains(t, buf.String(), "topic: transformers")

	var got Output
	require.NoError(t, yaml.Unmarshal(buf.Bytes(), &got))
	assert.Equal(t, "Attention is all you need", got.Papers[0].Title)
	assert.Equal(t, 2017, got.Papers[0].Year)
}

func TestFormatAuthors(t *testing.T) {
	tests := []struct{ in, want string }{
		{"", ""},
		{"Solo Author", "Solo Author"},
		{"A Vaswani, N Shazeer", "A Vaswani et al."},
		{"Trailing comma,", "Trailing comma,"},
		{"An Extremely Long Single Author Name", "An Extremely Long..."},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, formatAuthors(tt.in), tt.in)
	}
}

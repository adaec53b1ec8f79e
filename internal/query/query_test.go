// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package query

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/pdiddy/litscout/internal/llm"
)

type stubLLM struct {
	reply string
	err   error
	calls int
}

func (s *stubLLM) Complete(_ context.Context, _ llm.Request) (string, error) {
	s.calls++
	return s.reply, s.err
}

func TestBasicExtract(t *testing.T) {
	tests := []struct {
		topic string
		want  string
	}{
		{"Impact of AI on cancer", "impact cancer"},
		{"Deep learning, deep learning: for protein folding?", "deep learning protein folding"},
		{"The role of CRISPR in agriculture", "role crispr agriculture"},
		{"  ", ""},
	}
	for _, tt := range tests {
		t.Run(tt.topic, func(t *testing.T) {
			assert.Equal(t, tt.want, BasicExtract(tt.topic))
		})
	}
}

func TestBasicExtractExcludesStopWords(t *testing.T) {
	got := strings.Fields(BasicExtract("Impact of AI on cancer"))
	assert.ElementsMatch(t, []string{"impact", "cancer"}, got)
	for _, tok := range got {
		assert.False(t, stopWords[tok])
		assert.Greater(t, len(tok), 2)
	}
}

func TestBroadQuery(t *testing.T) {
	assert.Equal(t, "transformers attention models", BroadQuery("attention, transformers and models!"))
	assert.Equal(t, "Impact cancer of", BroadQuery("Impact of AI on cancer"))
	assert.Equal(t, "one", BroadQuery("one"))
}

func TestLongestWord(t *testing.T) {
	assert.Equal(t, "neuroscience", LongestWord("brain neuroscience."))
	assert.Equal(t, "Impact", LongestWord("Impact of AI on cancer"))
	assert.Equal(t, "", LongestWord(""))
}

func TestSanitizeKeywords(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want string
	}{
		{"label and quotes", `Keywords: "machine learning", oncology`, "machine learning oncology"},
		{"parenthetical", "tumor detection (deep learning) radiology", "tumor detection radiology"},
		{"non-latin stripped", "癌症 cancer 人工智能 imaging", "cancer imaging"},
		{"search terms label", "Search terms:\n  protein   folding  ", "protein folding"},
		{"hyphens kept", "single-cell sequencing", "single-cell sequencing"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, SanitizeKeywords(tt.raw))
		})
	}
}

func TestValidKeywords(t *testing.T) {
	assert.True(t, ValidKeywords("cancer imaging"))
	assert.False(t, ValidKeywords("ml"))
	assert.False(t, ValidKeywords("cancer ai ml"), "only one token longer than 2")
	assert.False(t, ValidKeywords(""))
}

func TestGenerate(t *testing.T) {
	ctx := context.Background()
	topic := "Impact of AI on cancer"

	t.Run("with keywords", func(t *testing.T) {
		stub := &stubLLM{reply: "Keywords: artificial intelligence, oncology"}
		g := NewGenerator(stub, zaptest.NewLogger(t))
		got := g.Generate(ctx, topic)
		assert.Equal(t, []string{
			"artificial intelligence oncology",
			"impact cancer",
			"Impact cancer of",
			"Impact",
			"Impact of AI on cancer",
		}, got)
		assert.Equal(t, 1, stub.calls)
	})

	t.Run("llm failure omits candidate", func(t *testing.T) {
		g := NewGenerator(&stubLLM{err: errors.New("offline")}, zaptest.NewLogger(t))
		got := g.Generate(ctx, topic)
		require.NotEmpty(t, got)
		assert.Equal(t, "impact cancer", got[0])
	})

	t.Run("invalid keywords discarded", func(t *testing.T) {
		g := NewGenerator(&stubLLM{reply: "癌症"}, nil)
		got := g.Generate(ctx, topic)
		assert.Equal(t, "impact cancer", got[0])
	})

	t.Run("no llm", func(t *testing.T) {
		got := NewGenerator(nil, nil).Generate(ctx, "quantum")
		assert.Equal(t, []string{"quantum"}, got, "duplicates collapse to one candidate")
	})

	t.Run("never more than five and no duplicates", func(t *testing.T) {
		g := NewGenerator(&stubLLM{reply: "graph neural networks"}, nil)
		got := g.Generate(ctx, "Graph neural networks for molecular property prediction")
		assert.LessOrEqual(t, len(got), MaxStrategies)
		seen := map[string]bool{}
		for _, q := range got {
			assert.False(t, seen[q], "duplicate %q", q)
			seen[q] = true
		}
	})
}

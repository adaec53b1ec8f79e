// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package search

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/litscout/pkg/types"
)

func TestRunFileRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "runs", "graphs.yaml")
	filters := types.SearchFilters{MinYear: 2019, MaxYear: 2023, ScanDepth: 20}
	out := Output{
		Topic: "graph neural networks",
		Papers: []types.Paper{
			{Title: "Graph Attention Networks", Authors: "P. Velickovic", Year: 2018, Origin: SemanticScholarName},
		},
		Strategies:  []StrategyStats{{Query: "graph neural networks", Provider: SemanticScholarName, Fetched: 1, Accepted: 1}},
		DupsRemoved: 2,
		Blocked:     true,
	}
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	require.NoError(t, WriteRunFile(path, filters, out, now))

	rf, err := ReadRunFile(path)
	require.NoError(t, err)
	assert.Equal(t, filters, rf.Filters)
	assert.Equal(t, out, rf.Output)
	assert.True(t, now.Equal(rf.Timestamp))

	entries, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	assert.Len(t, entries, 1, "no temp files left behind")
}

func TestReadRunFileErrors(t *testing.T) {
	dir := t.TempDir()

	_, err := ReadRunFile(filepath.Join(dir, "missing.yaml"))
	assert.ErrorIs(t, err, os.ErrNotExist)

	bad := filepath.Join(dir, "bad.yaml")
	require.NoError(t, os.WriteFile(bad, []byte("filters: [unclosed"), 0o644))
	_, err = ReadRunFile(bad)
	assert.ErrorContains(t, err, "parsing run file")
}

// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package search

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"go.yaml.in/yaml/v3"

	"github.com/pdiddy/litscout/pkg/types"
)

// RunFile is a saved aggregation run. It lets a researcher reload the
// results and filters of an earlier search without querying the APIs.
type RunFile struct {
	Filters   types.SearchFilters `yaml:"filters"`
	Output    Output              `yaml:"output"`
	Timestamp time.Time           `yaml:"timestamp"`
}

// WriteRunFile saves out and the filters that produced it to path as YAML,
// through a temporary file renamed on success.
func WriteRunFile(path string, filters types.SearchFilters, out Output, now time.Time) error {
	data, err := yaml.Marshal(&RunFile{Filters: filters, Output: out, Timestamp: now.UTC()})
	if err != nil {
		return fmt.Errorf("marshaling run file: %w", err)
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating directory %s: %w", dir, err)
	}
	tmp, err := os.CreateTemp(dir, ".run-*.tmp")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	tmpPath := tmp.Name()
	_, writeErr := tmp.Write(data)
	closeErr := tmp.Close()
	if writeErr != nil || closeErr != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("writing run file: %w", firstErr(writeErr, closeErr))
	}
	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("renaming run file: %w", err)
	}
	return nil
}

// ReadRunFile loads a run saved by WriteRunFile.
func ReadRunFile(path string) (*RunFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading run file: %w", err)
	}
	var rf RunFile
	if err := yaml.Unmarshal(data, &rf); err != nil {
		return nil, fmt.Errorf("parsing run file %s: %w", path, err)
	}
	return &rf, nil
}

func firstErr(errs ...error) error {
	for _, err := range errs {
		if err != nil {
			return err
		}
	}
	return nil
}

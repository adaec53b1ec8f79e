// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package acquire resolves papers to primary documents. The Resolver
// follows a paper's open-access, landing and DOI links through possibly
// cyclic link graphs under a per-paper request budget and a depth cap,
// and classifies what it finds as PDF or HTML.
package acquire

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/pdiddy/litscout/pkg/types"
)

// BatchResult holds the outcome of a batch resolution run.
type BatchResult struct {
	PDF       int
	HTML      int
	Missing   int
	Failed    int
	Documents []*types.Document
}

// Total returns the number of papers processed.
func (r BatchResult) Total() int {
	return r.PDF + r.HTML + r.Missing + r.Failed
}

// ResolveBatch resolves papers one at a time, printing per-paper status to
// w. It continues after individual failures and stops only when ctx ends.
// When dir is non-empty each document is also written there.
func (r *Resolver) ResolveBatch(ctx context.Context, papers []types.Paper, opts Options, dir string, w io.Writer) (BatchResult, error) {
	var result BatchResult
	for _, p := range papers {
		if err := ctx.Err(); err != nil {
			return result, err
		}
		doc, err := r.Resolve(ctx, p, opts)
		if err != nil {
			if ctx.Err() != nil {
				return result, ctx.Err()
			}
			fmt.Fprintf(w, "failed:   %s (%v)\n", p.Title, err)
			result.Failed++
			continue
		}
		if doc == nil {
			fmt.Fprintf(w, "missing:  %s\n", p.Title)
			result.Missing++
			continue
		}

		switch doc.Type {
		case types.DocumentPDF:
			result.PDF++
		default:
			result.HTML++
		}
		result.Documents = append(result.Documents, doc)

		where := doc.OriginalURL
		if dir != "" {
			path, err := WriteDocument(dir, doc)
			if err != nil {
				fmt.Fprintf(w, "  warning: %v\n", err)
			} else {
				where = path
			}
		}
		fmt.Fprintf(w, "%-8s  %s (%s)\n", doc.Type+":", p.Title, where)
	}
	fmt.Fprintf(w, "\nBatch summary: %d pdf, %d html, %d missing, %d failed (total: %d)\n",
		result.PDF, result.HTML, result.Missing, result.Failed, result.Total())
	return result, nil
}

// DocumentPath returns where WriteDocument stores doc inside dir.
func DocumentPath(dir string, doc *types.Document) string {
	idType, norm := Classify(doc.OriginalURL)
	stem := Slug(idType, norm)
	if len(doc.ID) >= 8 {
		stem += "-" + doc.ID[:8]
	}
	ext := ".html"
	if doc.Type == types.DocumentPDF {
		ext = ".pdf"
	}
	return filepath.Join(dir, stem+ext)
}

// WriteDocument writes doc's content under dir through a temporary file
// renamed on success, and returns the final path.
func WriteDocument(dir string, doc *types.Document) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("creating directory %s: %w", dir, err)
	}
	destPath := DocumentPath(dir, doc)

	tmpFile, err := os.CreateTemp(dir, ".resolve-*.tmp")
	if err != nil {
		return "", fmt.Errorf("creating temp file: %w", err)
	}
	tmpPath := tmpFile.Name()

	_, writeErr := tmpFile.Write(doc.Content)
	closeErr := tmpFile.Close()
	if writeErr != nil {
		os.Remove(tmpPath)
		return "", fmt.Errorf("writing document: %w", writeErr)
	}
	if closeErr != nil {
		os.Remove(tmpPath)
		return "", fmt.Errorf("closing temp file: %w", closeErr)
	}

	if err := os.Rename(tmpPath, destPath); err != nil {
		os.Remove(tmpPath)
		return "", fmt.Errorf("renaming temp file: %w", err)
	}
	return destPath, nil
}

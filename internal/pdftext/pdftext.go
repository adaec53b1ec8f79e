// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package pdftext extracts plain text from PDF bytes, page-capped. A
// structurally broken file is reported as ErrCorrupt so callers can tell it
// apart from an extractor that merely failed.
package pdftext

import (
	"context"
	"errors"
	"fmt"

	"github.com/pdiddy/litscout/internal/httputil"
)

// ErrCorrupt marks a file that is not a readable PDF. It matches
// httputil.ErrMalformed under errors.Is.
var ErrCorrupt = fmt.Errorf("corrupt PDF: %w", httputil.ErrMalformed)

// DefaultMaxPages caps extraction when the caller passes zero.
const DefaultMaxPages = 20

// Extractor returns the text of at most maxPages pages of pdf.
type Extractor interface {
	Extract(ctx context.Context, pdf []byte, maxPages int) (string, error)
}

// Chain tries extractors in order and returns the first success. It
// reports ErrCorrupt only when every extractor did.
type Chain []Extractor

// Extract implements Extractor.
func (c Chain) Extract(ctx context.Context, pdf []byte, maxPages int) (string, error) {
	if len(c) == 0 {
		return "", errors.New("no PDF text extractors configured")
	}
	var corrupt, failed []error
	for _, e := range c {
		text, err := e.Extract(ctx, pdf, maxPages)
		if err == nil {
			return text, nil
		}
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		if errors.Is(err, ErrCorrupt) {
			corrupt = append(corrupt, err)
		} else {
			failed = append(failed, err)
		}
	}
	// One extractor that could not run is not evidence against the file.
	if len(failed) > 0 {
		return "", errors.Join(failed...)
	}
	return "", errors.Join(corrupt...)
}

func pageCap(maxPages int) int {
	if maxPages <= 0 {
		return DefaultMaxPages
	}
	return maxPages
}

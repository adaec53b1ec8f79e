// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package pdftext

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	"github.com/ledongthuc/pdf"
)

// Native extracts text in-process with ledongthuc/pdf.
type Native struct{}

// Extract parses data and concatenates the plain text of its first
// maxPages pages. Only structural damage is reported as ErrCorrupt.
// Encrypted files and features the parser does not support are plain
// extraction failures, so callers keep the file.
func (Native) Extract(ctx context.Context, data []byte, maxPages int) (text string, err error) {
	defer func() {
		if r := recover(); r != nil {
			text, err = "", classifyParseError(data, fmt.Errorf("parser panic: %v", r))
		}
	}()

	r, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", classifyParseError(data, err)
	}
	n := r.NumPage()
	if n == 0 {
		return "", fmt.Errorf("%w: no pages", ErrCorrupt)
	}
	if limit := pageCap(maxPages); n > limit {
		n = limit
	}

	var b strings.Builder
	for i := 1; i <= n; i++ {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		page := r.Page(i)
		if page.V.IsNull() {
			continue
		}
		content, err := page.GetPlainText(nil)
		if err != nil {
			return "", fmt.Errorf("extracting page %d: %w", i, err)
		}
		b.WriteString(content)
		b.WriteString("\n")
	}
	return strings.TrimSpace(b.String()), nil
}

// unsupportedMarkers appear in parser errors and panics for valid files
// that use features the parser lacks.
var unsupportedMarkers = []string{
	"unsupported",
	"unknown filter",
	"encrypt",
	"password",
	"aes",
	"rc4",
}

// classifyParseError wraps err in ErrCorrupt only when the parser reported
// a broken file structure and the file is not encrypted.
func classifyParseError(data []byte, err error) error {
	msg := strings.ToLower(err.Error())
	if isEncrypted(data) {
		return fmt.Errorf("encrypted PDF not supported: %v", err)
	}
	for _, m := range unsupportedMarkers {
		if strings.Contains(msg, m) {
			return fmt.Errorf("unsupported PDF feature: %v", err)
		}
	}
	return fmt.Errorf("%w: %v", ErrCorrupt, err)
}

// isEncrypted reports whether the file tail declares an /Encrypt
// dictionary. Trailers sit at the end, so the last 4 KiB are enough.
func isEncrypted(data []byte) bool {
	if len(data) > 4096 {
		data = data[len(data)-4096:]
	}
	return bytes.Contains(data, []byte("/Encrypt"))
}

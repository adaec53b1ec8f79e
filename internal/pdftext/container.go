// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package pdftext

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/pdiddy/litscout/internal/container"
)

// DefaultImage is the pdftotext image built by `mage pdftotextImage`.
const DefaultImage = "pdftotext:latest"

// corruptMarkers are pdftotext diagnostics for unreadable files.
var corruptMarkers = []string{
	"syntax error",
	"couldn't read xref table",
	"couldn't find trailer dictionary",
	"may not be a pdf file",
}

// Container runs poppler's pdftotext inside a docker or podman container.
type Container struct {
	runtime container.Runtime
	image   string
}

// NewContainer returns an extractor for image after checking that the
// image exists locally.
func NewContainer(ctx context.Context, rt container.Runtime, image string) (*Container, error) {
	if image == "" {
		image = DefaultImage
	}
	if err := rt.ImageExists(ctx, image); err != nil {
		return nil, fmt.Errorf("pdftotext image not available in %s: %w", rt.Name(), err)
	}
	return &Container{runtime: rt, image: image}, nil
}

// Extract pipes data through `pdftotext -l maxPages - -`. Diagnostics on
// stderr decide whether a failure means the file is corrupt.
func (c *Container) Extract(ctx context.Context, data []byte, maxPages int) (string, error) {
	cmd := []string{"pdftotext", "-enc", "UTF-8", "-l", strconv.Itoa(pageCap(maxPages)), "-", "-"}

	var out bytes.Buffer
	if err := c.runtime.Run(ctx, c.image, cmd, bytes.NewReader(data), &out); err != nil {
		var runErr *container.RunError
		if errors.As(err, &runErr) && isCorruptOutput(runErr.Stderr) {
			return "", fmt.Errorf("%w: %s", ErrCorrupt, strings.TrimSpace(runErr.Stderr))
		}
		return "", err
	}
	return strings.TrimSpace(out.String()), nil
}

func isCorruptOutput(stderr string) bool {
	lower := strings.ToLower(stderr)
	for _, m := range corruptMarkers {
		if strings.Contains(lower, m) {
			return true
		}
	}
	return false
}

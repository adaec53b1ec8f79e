// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package pdftexttest builds small, valid PDF files for tests.
package pdftexttest

import (
	"bytes"
	"fmt"
	"strings"
)

// Build returns a PDF with one page per entry in pages, each showing its
// text in Helvetica. Text must not contain parentheses or backslashes.
func Build(pages ...string) []byte {
	return Padded(0, pages...)
}

// Padded is Build with a header comment that grows the file to at least
// size bytes.
func Padded(size int, pages ...string) []byte {
	return build(size, "", pages)
}

// Encrypted is Padded with an AES-256 /Encrypt dictionary in the trailer.
// The page content is left in clear text, so only the trailer marks it.
func Encrypted(size int, pages ...string) []byte {
	return build(size, " /Encrypt << /Filter /Standard /V 5 /R 6 /Length 256 /P -1028 >>", pages)
}

func build(size int, trailerExtra string, pages []string) []byte {
	var objs []string
	kids := make([]string, len(pages))
	for i := range pages {
		kids[i] = fmt.Sprintf("%d 0 R", 4+2*i)
	}
	objs = append(objs,
		"<< /Type /Catalog /Pages 2 0 R >>",
		fmt.Sprintf("<< /Type /Pages /Kids [%s] /Count %d >>", strings.Join(kids, " "), len(pages)),
		"<< /Type /Font /Subtype /Type1 /BaseFont /Helvetica /Encoding /WinAnsiEncoding >>",
	)
	for i, text := range pages {
		stream := fmt.Sprintf("BT /F1 12 Tf 72 720 Td (%s) Tj ET", text)
		objs = append(objs,
			fmt.Sprintf("<< /Type /Page /Parent 2 0 R /MediaBox [0 0 612 792] /Resources << /Font << /F1 3 0 R >> >> /Contents %d 0 R >>", 5+2*i),
			fmt.Sprintf("<< /Length %d >>\nstream\n%s\nendstream", len(stream), stream),
		)
	}

	var b bytes.Buffer
	b.WriteString("%PDF-1.4\n")
	if pad := size - estimateSize(objs); pad > 0 {
		b.WriteString("%")
		b.WriteString(strings.Repeat("x", pad))
		b.WriteString("\n")
	}

	offsets := make([]int, len(objs))
	for i, o := range objs {
		offsets[i] = b.Len()
		fmt.Fprintf(&b, "%d 0 obj\n%s\nendobj\n", i+1, o)
	}
	xref := b.Len()
	fmt.Fprintf(&b, "xref\n0 %d\n0000000000 65535 f \n", len(objs)+1)
	for _, off := range offsets {
		fmt.Fprintf(&b, "%010d 00000 n \n", off)
	}
	fmt.Fprintf(&b, "trailer\n<< /Size %d /Root 1 0 R%s >>\nstartxref\n%d\n%%%%EOF\n", len(objs)+1, trailerExtra, xref)
	return b.Bytes()
}

// estimateSize is an upper bound on the unpadded file size.
func estimateSize(objs []string) int {
	n := 200
	for _, o := range objs {
		n += len(o) + 40
	}
	return n
}

// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package search

import (
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"

	"go.yaml.in/yaml/v3"
)

// FormatTable writes papers as a human-readable table to w.
func FormatTable(out Output, w io.Writer) {
	if len(out.Papers) == 0 {
		fmt.Fprintln(w, "No results found.")
		if out.Blocked {
			fmt.Fprintln(w, "The fallback provider returned a block page; try again later.")
		}
		return
	}

	fmt.Fprintf(w, "%-4s  %-60s  %-20s  %-4s  %s\n", "#", "Title", "Authors", "Year", "Source")
	fmt.Fprintln(w, strings.Repeat("-", 110))

	for i, p := range out.Papers {
		year := ""
		if p.Year > 0 {
			year = strconv.Itoa(p.Year)
		}
		fmt.Fprintf(w, "%-4d  %-60s  %-20s  %-4s  %s\n",
			i+1, truncate(p.Title, 60), formatAuthors(p.Authors), year, p.Origin)
	}

	fmt.Fprintf(w, "\n%d results", len(out.Papers))
	if out.DupsRemoved > 0 {
		fmt.Fprintf(w, " (%d duplicates removed)", out.DupsRemoved)
	}
	fmt.Fprintln(w)
	for _, e := range out.ProviderErrors {
		fmt.Fprintf(w, "warning: %s\n", e)
	}
}

// FormatJSON writes the full output as indented JSON to w.
func FormatJSON(out Output, w io.Writer) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(out)
}

// FormatYAML writes the full output as YAML to w.
func FormatYAML(out Output, w io.Writer) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(out); err != nil {
		return err
	}
	return enc.Close()
}

// formatAuthors shortens an author list to its first name plus "et al.".
func formatAuthors(authors string) string {
	first, rest, found := strings.Cut(authors, ",")
	if !found || strings.TrimSpace(rest) == "" {
		return truncate(authors, 20)
	}
	return truncate(strings.TrimSpace(first), 14) + " et al."
}

func truncate(s string, max int) string {
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	return string(r[:max-3]) + "..."
}

// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package store

import (
	"context"
	"fmt"
	"io"

	"go.yaml.in/yaml/v3"

	"github.com/pdiddy/litscout/internal/resilience"
	"github.com/pdiddy/litscout/pkg/types"
)

// PaperKey is the primary key a paper is stored under: its normalized
// landing URL, or its dedup key when it has no URL.
func PaperKey(p types.Paper) string {
	if p.URL != "" {
		return resilience.NormalizeURL(p.URL)
	}
	return "title:" + p.DedupKey()
}

// SavePapers upserts papers in one transaction. A later save of the same
// paper overwrites its fields.
func (s *Store) SavePapers(ctx context.Context, papers []types.Paper) error {
	if len(papers) == 0 {
		return nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `INSERT INTO papers
		(key, title, authors, year, doi, url, pdf_url, summary, origin, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET
			title = excluded.title,
			authors = excluded.authors,
			year = excluded.year,
			doi = excluded.doi,
			url = excluded.url,
			pdf_url = excluded.pdf_url,
			summary = excluded.summary,
			origin = excluded.origin,
			updated_at = excluded.updated_at`)
	if err != nil {
		return fmt.Errorf("preparing paper insert: %w", err)
	}
	defer stmt.Close()

	now := s.timestamp()
	for _, p := range papers {
		if _, err := stmt.ExecContext(ctx, PaperKey(p), p.Title, p.Authors, p.Year,
			p.DOI, p.URL, p.OpenAccessPDFURL, p.Summary, p.Origin, now); err != nil {
			return fmt.Errorf("saving paper %q: %w", p.Title, err)
		}
	}
	return tx.Commit()
}

// Papers returns every stored paper, most recently updated first.
func (s *Store) Papers(ctx context.Context) ([]types.Paper, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT title, authors, year, doi, url, pdf_url, summary, origin
		FROM papers ORDER BY updated_at DESC, title`)
	if err != nil {
		return nil, fmt.Errorf("querying papers: %w", err)
	}
	defer rows.Close()

	var papers []types.Paper
	for rows.Next() {
		var p types.Paper
		if err := rows.Scan(&p.Title, &p.Authors, &p.Year, &p.DOI, &p.URL,
			&p.OpenAccessPDFURL, &p.Summary, &p.Origin); err != nil {
			return nil, fmt.Errorf("scanning paper: %w", err)
		}
		papers = append(papers, p)
	}
	return papers, rows.Err()
}

// ExportYAML writes every stored paper to w as a YAML list.
func (s *Store) ExportYAML(ctx context.Context, w io.Writer) error {
	papers, err := s.Papers(ctx)
	if err != nil {
		return err
	}
	if papers == nil {
		papers = []types.Paper{}
	}
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(papers); err != nil {
		return fmt.Errorf("marshaling YAML: %w", err)
	}
	return enc.Close()
}

// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/pdiddy/litscout/pkg/types"
)

// SaveDocument stores doc. Documents are immutable, so saving an ID twice
// is an error.
func (s *Store) SaveDocument(ctx context.Context, doc *types.Document) error {
	if doc == nil {
		return errors.New("saving document: nil document")
	}
	if doc.ID == "" {
		return errors.New("saving document: missing id")
	}
	ts := doc.Timestamp
	if ts.IsZero() {
		ts = s.now()
	}
	_, err := s.db.ExecContext(ctx, `INSERT INTO documents
		(id, paper_id, type, content, text_content, original_url, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		doc.ID, doc.PaperID, string(doc.Type), doc.Content, doc.TextContent,
		doc.OriginalURL, ts.UTC().Format(time.RFC3339Nano))
	if err != nil {
		return fmt.Errorf("saving document %s: %w", doc.ID, err)
	}
	return nil
}

// Documents returns the documents resolved for paperID, oldest first.
func (s *Store) Documents(ctx context.Context, paperID string) ([]types.Document, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, paper_id, type, content, text_content, original_url, created_at
		FROM documents WHERE paper_id = ? ORDER BY created_at, id`, paperID)
	if err != nil {
		return nil, fmt.Errorf("querying documents: %w", err)
	}
	defer rows.Close()

	var docs []types.Document
	for rows.Next() {
		var (
			d       types.Document
			typ     string
			created string
		)
		if err := rows.Scan(&d.ID, &d.PaperID, &typ, &d.Content, &d.TextContent,
			&d.OriginalURL, &created); err != nil {
			return nil, fmt.Errorf("scanning document: %w", err)
		}
		d.Type = types.DocumentType(typ)
		d.Timestamp = parseTimestamp(created)
		docs = append(docs, d)
	}
	return docs, rows.Err()
}

// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package store

import (
	"context"
	"fmt"
	"time"

	"github.com/pdiddy/litscout/internal/resilience"
)

// BlockedURL is one block-list row.
type BlockedURL struct {
	URL       string    `json:"url" yaml:"url"`
	Reason    string    `json:"reason" yaml:"reason"`
	BlockedAt time.Time `json:"blocked_at" yaml:"blocked_at"`
}

var _ resilience.BlockList = (*Store)(nil)

// IsBlocked reports whether rawURL is on the block-list.
func (s *Store) IsBlocked(ctx context.Context, rawURL string) (bool, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT count(*) FROM blocklist WHERE url = ?`,
		resilience.NormalizeURL(rawURL)).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("checking block-list: %w", err)
	}
	return n > 0, nil
}

// BlockURL adds rawURL to the block-list, replacing any earlier reason.
func (s *Store) BlockURL(ctx context.Context, rawURL, reason string) error {
	_, err := s.db.ExecContext(ctx, `INSERT INTO blocklist (url, reason, blocked_at) VALUES (?, ?, ?)
		ON CONFLICT(url) DO UPDATE SET reason = excluded.reason, blocked_at = excluded.blocked_at`,
		resilience.NormalizeURL(rawURL), reason, s.timestamp())
	if err != nil {
		return fmt.Errorf("blocking %s: %w", rawURL, err)
	}
	return nil
}

// BlockedURLs lists the block-list, newest first.
func (s *Store) BlockedURLs(ctx context.Context) ([]BlockedURL, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT url, reason, blocked_at FROM blocklist ORDER BY blocked_at DESC, url`)
	if err != nil {
		return nil, fmt.Errorf("querying block-list: %w", err)
	}
	defer rows.Close()

	var out []BlockedURL
	for rows.Next() {
		var (
			b  BlockedURL
			at string
		)
		if err := rows.Scan(&b.URL, &b.Reason, &at); err != nil {
			return nil, fmt.Errorf("scanning block-list: %w", err)
		}
		b.BlockedAt = parseTimestamp(at)
		out = append(out, b)
	}
	return out, rows.Err()
}

// Unblock removes rawURL and reports whether it was present.
func (s *Store) Unblock(ctx context.Context, rawURL string) (bool, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM blocklist WHERE url = ?`, resilience.NormalizeURL(rawURL))
	if err != nil {
		return false, fmt.Errorf("unblocking %s: %w", rawURL, err)
	}
	n, _ := res.RowsAffected()
	return n > 0, nil
}

// ClearBlocklist empties the block-list and returns how many rows it held.
func (s *Store) ClearBlocklist(ctx context.Context) (int, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM blocklist`)
	if err != nil {
		return 0, fmt.Errorf("clearing block-list: %w", err)
	}
	n, _ := res.RowsAffected()
	return int(n), nil
}

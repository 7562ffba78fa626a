// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package store

import (
	"context"
	"fmt"
)

// TrackTitle marks tid as tracked. Tracking an already tracked title is a no-op.
func (s *Store) TrackTitle(ctx context.Context, tid int, title string) error {
	const q = `INSERT INTO tracking_titles (tid, title, created_at) VALUES (?, ?, ?) ON CONFLICT (tid) DO NOTHING`
	if _, err := s.db.ExecContext(ctx, s.rebind(q), tid, title, unix(s.now())); err != nil {
		return fmt.Errorf("track title %d: %w", tid, err)
	}
	return nil
}

// TrackedTIDs returns the set of tracked title ids.
func (s *Store) TrackedTIDs(ctx context.Context) (map[int]struct{}, error) {
	set, err := s.intSet(ctx, `SELECT tid FROM tracking_titles`)
	if err != nil {
		return nil, fmt.Errorf("query tracked titles: %w", err)
	}
	return set, nil
}

// TrackedTitles lists tracked titles ordered by tid.
func (s *Store) TrackedTitles(ctx context.Context) ([]TrackedTitle, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT tid, title, created_at FROM tracking_titles ORDER BY tid`)
	if err != nil {
		return nil, fmt.Errorf("query tracked titles: %w", err)
	}
	defer rows.Close()

	var out []TrackedTitle
	for rows.Next() {
		var (
			t       TrackedTitle
			created int64
		)
		if err := rows.Scan(&t.TID, &t.Title, &created); err != nil {
			return nil, fmt.Errorf("scan tracked title: %w", err)
		}
		t.CreatedAt = fromUnix(created)
		out = append(out, t)
	}
	return out, rows.Err()
}

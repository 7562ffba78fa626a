// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package store

import (
	"context"
	"fmt"
)

// UpsertChannel inserts or updates a channel keyed by its calendar id and
// returns the channel's row id.
func (s *Store) UpsertChannel(ctx context.Context, ch Channel) (int, error) {
	const q = `
INSERT INTO channels (name, for_recorder, for_syoboi) VALUES (?, ?, ?)
ON CONFLICT (for_syoboi) DO UPDATE SET
	name = excluded.name,
	for_recorder = excluded.for_recorder
RETURNING id`
	var id int
	if err := s.db.QueryRowContext(ctx, s.rebind(q), ch.Name, ch.ForRecorder, ch.ForSyoboi).Scan(&id); err != nil {
		return 0, fmt.Errorf("upsert channel %q: %w", ch.Name, err)
	}
	return id, nil
}

// Channels lists all channels ordered by id.
func (s *Store) Channels(ctx context.Context) ([]Channel, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, name, for_recorder, for_syoboi FROM channels ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("query channels: %w", err)
	}
	defer rows.Close()

	var out []Channel
	for rows.Next() {
		var ch Channel
		if err := rows.Scan(&ch.ID, &ch.Name, &ch.ForRecorder, &ch.ForSyoboi); err != nil {
			return nil, fmt.Errorf("scan channel: %w", err)
		}
		out = append(out, ch)
	}
	return out, rows.Err()
}

// ChannelIDsBySyoboi maps calendar channel ids to channel row ids.
func (s *Store) ChannelIDsBySyoboi(ctx context.Context) (map[int]int, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, for_syoboi FROM channels`)
	if err != nil {
		return nil, fmt.Errorf("query channels: %w", err)
	}
	defer rows.Close()

	out := make(map[int]int)
	for rows.Next() {
		var id, forSyoboi int
		if err := rows.Scan(&id, &forSyoboi); err != nil {
			return nil, fmt.Errorf("scan channel: %w", err)
		}
		out[forSyoboi] = id
	}
	return out, rows.Err()
}

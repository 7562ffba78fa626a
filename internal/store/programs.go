// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// Program looks up the program metadata for pid.
func (s *Store) Program(ctx context.Context, pid int) (Program, error) {
	const q = `
SELECT p.pid, p.tid, p.start_time, p.end_time, c.name, c.for_recorder,
	p.count, p.start_offset, p.subtitle, p.title, p.comment
FROM programs p
JOIN channels c ON c.id = p.channel_id
WHERE p.pid = ?`

	var (
		p                        Program
		start, end               int64
		subtitle, title, comment sql.NullString
	)
	err := s.db.QueryRowContext(ctx, s.rebind(q), pid).Scan(&p.PID, &p.TID, &start, &end, &p.ChannelName,
		&p.RecorderChannel, &p.Count, &p.StartOffset, &subtitle, &title, &comment)
	if errors.Is(err, sql.ErrNoRows) {
		return Program{}, fmt.Errorf("program %d: %w", pid, ErrNotFound)
	}
	if err != nil {
		return Program{}, fmt.Errorf("query program %d: %w", pid, err)
	}
	p.StartTime = fromUnix(start)
	p.EndTime = fromUnix(end)
	p.Subtitle = subtitle.String
	p.Title = title.String
	p.Comment = comment.String
	return p, nil
}

func (s *Store) upsertProgram(ctx context.Context, ex execer, p ProgramRecord) error {
	const q = `
INSERT INTO programs (pid, tid, start_time, end_time, channel_id, count, start_offset, subtitle, title, comment)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT (pid) DO UPDATE SET
	tid = excluded.tid,
	start_time = excluded.start_time,
	end_time = excluded.end_time,
	channel_id = excluded.channel_id,
	count = excluded.count,
	start_offset = excluded.start_offset,
	subtitle = excluded.subtitle,
	title = excluded.title,
	comment = excluded.comment`
	_, err := ex.ExecContext(ctx, s.rebind(q), p.PID, p.TID, unix(p.StartTime), unix(p.EndTime), p.ChannelID,
		p.Count, p.StartOffset, nullString(p.Subtitle), nullString(p.Title), nullString(p.Comment))
	if err != nil {
		return fmt.Errorf("upsert program %d: %w", p.PID, err)
	}
	return nil
}

// ApplyCalendar upserts all programs and jobs of batch in one transaction.
// Programs are written before jobs so the jobs' foreign keys resolve.
func (s *Store) ApplyCalendar(ctx context.Context, batch CalendarBatch) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin calendar tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	for _, p := range batch.Programs {
		if err := s.upsertProgram(ctx, tx, p); err != nil {
			return err
		}
	}
	createdAt := s.now()
	for _, j := range batch.Jobs {
		if err := s.upsertJob(ctx, tx, j, createdAt); err != nil {
			return err
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit calendar tx: %w", err)
	}
	return nil
}

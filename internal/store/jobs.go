// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

const selectJobs = `
SELECT j.pid, p.tid, p.start_time, p.end_time, c.name, c.for_recorder, c.for_syoboi,
	j.enqueued_at, p.count, p.start_offset, p.subtitle, p.title, p.comment
FROM jobs j
JOIN programs p ON p.pid = j.pid
JOIN channels c ON c.id = p.channel_id
WHERE j.enqueued_at >= ? AND j.finished_at IS NULL
ORDER BY j.enqueued_at, j.pid`

// DueJobs returns unfinished jobs whose deadline is at or after since,
// ordered by deadline.
func (s *Store) DueJobs(ctx context.Context, since time.Time) ([]Job, error) {
	rows, err := s.db.QueryContext(ctx, s.rebind(selectJobs), unix(since))
	if err != nil {
		return nil, fmt.Errorf("query jobs: %w", err)
	}
	defer rows.Close()

	var jobs []Job
	for rows.Next() {
		var (
			j                        Job
			start, end, enq          int64
			subtitle, title, comment sql.NullString
		)
		if err := rows.Scan(&j.PID, &j.TID, &start, &end, &j.ChannelName, &j.ChannelForRecorder,
			&j.ChannelForSyoboi, &enq, &j.Count, &j.StartOffset, &subtitle, &title, &comment); err != nil {
			return nil, fmt.Errorf("scan job: %w", err)
		}
		j.StartTime = fromUnix(start)
		j.EndTime = fromUnix(end)
		j.EnqueuedAt = fromUnix(enq)
		j.Subtitle = stringPtr(subtitle)
		j.Title = stringPtr(title)
		j.Comment = stringPtr(comment)
		jobs = append(jobs, j)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate jobs: %w", err)
	}
	return jobs, nil
}

// JobPIDs returns the pid of every job row.
func (s *Store) JobPIDs(ctx context.Context) (map[int]struct{}, error) {
	return s.intSet(ctx, `SELECT pid FROM jobs`)
}

// DeleteJob removes the job row for pid. The program row is kept.
func (s *Store) DeleteJob(ctx context.Context, pid int) error {
	if _, err := s.db.ExecContext(ctx, s.rebind(`DELETE FROM jobs WHERE pid = ?`), pid); err != nil {
		return fmt.Errorf("delete job %d: %w", pid, err)
	}
	return nil
}

// MarkJobFinished records that the recording for pid completed successfully.
func (s *Store) MarkJobFinished(ctx context.Context, pid int, at time.Time) error {
	res, err := s.db.ExecContext(ctx, s.rebind(`UPDATE jobs SET finished_at = ? WHERE pid = ?`), unix(at), pid)
	if err != nil {
		return fmt.Errorf("mark job %d finished: %w", pid, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("mark job %d finished: %w", pid, ErrNotFound)
	}
	return nil
}

// upsertJob keeps created_at from the first insert. finished_at is cleared
// only when the deadline moves, so a rescheduled program is recorded again.
func (s *Store) upsertJob(ctx context.Context, ex execer, j JobRecord, createdAt time.Time) error {
	const q = `
INSERT INTO jobs (pid, enqueued_at, created_at) VALUES (?, ?, ?)
ON CONFLICT (pid) DO UPDATE SET
	finished_at = CASE WHEN jobs.enqueued_at = excluded.enqueued_at THEN jobs.finished_at ELSE NULL END,
	enqueued_at = excluded.enqueued_at`
	if _, err := ex.ExecContext(ctx, s.rebind(q), j.PID, unix(j.EnqueuedAt), unix(createdAt)); err != nil {
		return fmt.Errorf("upsert job %d: %w", j.PID, err)
	}
	return nil
}

func (s *Store) intSet(ctx context.Context, q string) (map[int]struct{}, error) {
	rows, err := s.db.QueryContext(ctx, q)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make(map[int]struct{})
	for rows.Next() {
		var v int
		if err := rows.Scan(&v); err != nil {
			return nil, err
		}
		out[v] = struct{}{}
	}
	return out, rows.Err()
}

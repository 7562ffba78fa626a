// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package store

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/ManuGH/yanagi/internal/config"
	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var t0 = time.Date(2025, 4, 1, 12, 0, 0, 0, time.UTC)

// forEachDialect runs fn against SQLite and, when YANAGI_TEST_POSTGRES_DSN is
// set, against PostgreSQL.
func forEachDialect(t *testing.T, fn func(t *testing.T, s *Store)) {
	t.Run("sqlite", func(t *testing.T) {
		s, err := Open(context.Background(), config.StoreConfig{
			Driver: "sqlite",
			DSN:    filepath.Join(t.TempDir(), "yanagi.db"),
		})
		require.NoError(t, err)
		t.Cleanup(func() { _ = s.Close() })
		fn(t, s)
	})

	t.Run("postgres", func(t *testing.T) {
		dsn := os.Getenv("YANAGI_TEST_POSTGRES_DSN")
		if dsn == "" {
			t.Skip("YANAGI_TEST_POSTGRES_DSN not set")
		}
		s, err := Open(context.Background(), config.StoreConfig{Driver: "postgres", DSN: dsn})
		require.NoError(t, err)
		_, err = s.db.Exec(`TRUNCATE jobs, programs, channels, tracking_titles RESTART IDENTITY CASCADE`)
		require.NoError(t, err)
		t.Cleanup(func() { _ = s.Close() })
		fn(t, s)
	})
}

func seedChannel(t *testing.T, s *Store, name string, forRecorder, forSyoboi int) int {
	t.Helper()
	id, err := s.UpsertChannel(context.Background(), Channel{Name: name, ForRecorder: forRecorder, ForSyoboi: forSyoboi})
	require.NoError(t, err)
	return id
}

func program(pid, tid, channelID int, start time.Time) ProgramRecord {
	return ProgramRecord{
		PID:       pid,
		TID:       tid,
		StartTime: start,
		EndTime:   start.Add(30 * time.Minute),
		ChannelID: channelID,
		Count:     "1",
		Title:     "Title",
	}
}

func TestDueJobsOrderingAndFilter(t *testing.T) {
	forEachDialect(t, func(t *testing.T, s *Store) {
		ctx := context.Background()
		ch := seedChannel(t, s, "NHK General", 27, 1)

		batch := CalendarBatch{
			Programs: []ProgramRecord{
				program(1, 10, ch, t0.Add(-time.Hour)),
				program(2, 10, ch, t0.Add(2*time.Hour)),
				program(3, 10, ch, t0.Add(time.Hour)),
				program(4, 10, ch, t0.Add(3*time.Hour)),
			},
			Jobs: []JobRecord{
				{PID: 1, EnqueuedAt: t0.Add(-time.Hour)},
				{PID: 2, EnqueuedAt: t0.Add(2 * time.Hour)},
				{PID: 3, EnqueuedAt: t0.Add(time.Hour)},
				{PID: 4, EnqueuedAt: t0.Add(3 * time.Hour)},
			},
		}
		require.NoError(t, s.ApplyCalendar(ctx, batch))
		require.NoError(t, s.MarkJobFinished(ctx, 4, t0))

		jobs, err := s.DueJobs(ctx, t0)
		require.NoError(t, err)

		var pids []int
		for _, j := range jobs {
			pids = append(pids, j.PID)
		}
		assert.Equal(t, []int{3, 2}, pids)

		got := jobs[0]
		assert.Equal(t, "NHK General", got.ChannelName)
		assert.Equal(t, 27, got.ChannelForRecorder)
		assert.Equal(t, 1, got.ChannelForSyoboi)
		assert.True(t, got.EnqueuedAt.Equal(t0.Add(time.Hour)))
		require.NotNil(t, got.Title)
		assert.Equal(t, "Title", *got.Title)
		assert.Nil(t, got.Subtitle)
	})
}

func TestApplyCalendarPreservesCreatedAtAndResetsFinished(t *testing.T) {
	forEachDialect(t, func(t *testing.T, s *Store) {
		ctx := context.Background()
		ch := seedChannel(t, s, "TOKYO MX", 16, 19)

		s.now = func() time.Time { return t0 }
		require.NoError(t, s.ApplyCalendar(ctx, CalendarBatch{
			Programs: []ProgramRecord{program(7, 70, ch, t0.Add(time.Hour))},
			Jobs:     []JobRecord{{PID: 7, EnqueuedAt: t0.Add(time.Hour)}},
		}))
		require.NoError(t, s.MarkJobFinished(ctx, 7, t0.Add(2*time.Hour)))

		// Same deadline: finished marker stays.
		s.now = func() time.Time { return t0.Add(24 * time.Hour) }
		require.NoError(t, s.ApplyCalendar(ctx, CalendarBatch{
			Programs: []ProgramRecord{program(7, 70, ch, t0.Add(time.Hour))},
			Jobs:     []JobRecord{{PID: 7, EnqueuedAt: t0.Add(time.Hour)}},
		}))
		jobs, err := s.DueJobs(ctx, t0)
		require.NoError(t, err)
		assert.Empty(t, jobs)

		// Moved deadline: job becomes due again.
		require.NoError(t, s.ApplyCalendar(ctx, CalendarBatch{
			Programs: []ProgramRecord{program(7, 70, ch, t0.Add(90*time.Minute))},
			Jobs:     []JobRecord{{PID: 7, EnqueuedAt: t0.Add(90 * time.Minute)}},
		}))
		jobs, err = s.DueJobs(ctx, t0)
		require.NoError(t, err)
		require.Len(t, jobs, 1)
		assert.True(t, jobs[0].EnqueuedAt.Equal(t0.Add(90*time.Minute)))

		var created int64
		require.NoError(t, s.db.QueryRowContext(ctx, s.rebind(`SELECT created_at FROM jobs WHERE pid = ?`), 7).Scan(&created))
		assert.Equal(t, t0.Unix(), created)
	})
}

func TestApplyCalendarIsAtomic(t *testing.T) {
	forEachDialect(t, func(t *testing.T, s *Store) {
		ctx := context.Background()
		ch := seedChannel(t, s, "AT-X", 30, 20)

		err := s.ApplyCalendar(ctx, CalendarBatch{
			Programs: []ProgramRecord{program(1, 1, ch, t0)},
			// pid 99 has no program row; the foreign key rejects it.
			Jobs: []JobRecord{{PID: 1, EnqueuedAt: t0}, {PID: 99, EnqueuedAt: t0}},
		})
		require.Error(t, err)

		_, err = s.Program(ctx, 1)
		assert.ErrorIs(t, err, ErrNotFound)
	})
}

func TestProgramLookup(t *testing.T) {
	forEachDialect(t, func(t *testing.T, s *Store) {
		ctx := context.Background()
		ch := seedChannel(t, s, "NHK General", 27, 1)
		rec := program(5, 55, ch, t0)
		rec.Subtitle = "Episode"
		rec.Comment = "Final"
		require.NoError(t, s.ApplyCalendar(ctx, CalendarBatch{Programs: []ProgramRecord{rec}}))

		got, err := s.Program(ctx, 5)
		require.NoError(t, err)
		want := Program{
			PID: 5, TID: 55, StartTime: t0, EndTime: t0.Add(30 * time.Minute),
			ChannelName: "NHK General", RecorderChannel: 27, Count: "1",
			Subtitle: "Episode", Title: "Title", Comment: "Final",
		}
		if diff := cmp.Diff(want, got); diff != "" {
			t.Errorf("Program() mismatch (-want +got):\n%s", diff)
		}

		_, err = s.Program(ctx, 404)
		assert.ErrorIs(t, err, ErrNotFound)
	})
}

func TestDeleteJobKeepsProgram(t *testing.T) {
	forEachDialect(t, func(t *testing.T, s *Store) {
		ctx := context.Background()
		ch := seedChannel(t, s, "NHK General", 27, 1)
		require.NoError(t, s.ApplyCalendar(ctx, CalendarBatch{
			Programs: []ProgramRecord{program(9, 1, ch, t0)},
			Jobs:     []JobRecord{{PID: 9, EnqueuedAt: t0}},
		}))

		require.NoError(t, s.DeleteJob(ctx, 9))
		pids, err := s.JobPIDs(ctx)
		require.NoError(t, err)
		assert.Empty(t, pids)

		_, err = s.Program(ctx, 9)
		assert.NoError(t, err)
	})
}

func TestTrackTitleIsIdempotent(t *testing.T) {
	forEachDialect(t, func(t *testing.T, s *Store) {
		ctx := context.Background()
		require.NoError(t, s.TrackTitle(ctx, 55, "Show"))
		require.NoError(t, s.TrackTitle(ctx, 55, "Show renamed"))

		titles, err := s.TrackedTitles(ctx)
		require.NoError(t, err)
		require.Len(t, titles, 1)
		assert.Equal(t, "Show", titles[0].Title)

		tids, err := s.TrackedTIDs(ctx)
		require.NoError(t, err)
		assert.Equal(t, map[int]struct{}{55: {}}, tids)
	})
}

func TestChannelsUpsertByCalendarID(t *testing.T) {
	forEachDialect(t, func(t *testing.T, s *Store) {
		ctx := context.Background()
		id := seedChannel(t, s, "NHK", 27, 1)
		again := seedChannel(t, s, "NHK General", 28, 1)
		assert.Equal(t, id, again)

		chans, err := s.Channels(ctx)
		require.NoError(t, err)
		assert.Equal(t, []Channel{{ID: id, Name: "NHK General", ForRecorder: 28, ForSyoboi: 1}}, chans)

		m, err := s.ChannelIDsBySyoboi(ctx)
		require.NoError(t, err)
		assert.Equal(t, map[int]int{1: id}, m)
	})
}

func TestMarkJobFinishedUnknownPID(t *testing.T) {
	forEachDialect(t, func(t *testing.T, s *Store) {
		err := s.MarkJobFinished(context.Background(), 12345, t0)
		assert.ErrorIs(t, err, ErrNotFound)
	})
}

func TestRebind(t *testing.T) {
	pg := &Store{dialect: DialectPostgres}
	assert.Equal(t, "SELECT $1, $2", pg.rebind("SELECT ?, ?"))
	lite := &Store{dialect: DialectSQLite}
	assert.Equal(t, "SELECT ?, ?", lite.rebind("SELECT ?, ?"))
}

func TestOpenUnknownDriver(t *testing.T) {
	_, err := Open(context.Background(), config.StoreConfig{Driver: "mysql", DSN: "x"})
	assert.ErrorIs(t, err, ErrUnknownDriver)
}

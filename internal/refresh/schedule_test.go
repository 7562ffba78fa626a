// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package refresh

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestScheduleNext(t *testing.T) {
	s, err := NewSchedule("0 */6 * * *", time.UTC, func(context.Context) {})
	require.NoError(t, err)

	from := time.Date(2025, 4, 1, 7, 30, 0, 0, time.UTC)
	assert.Equal(t, time.Date(2025, 4, 1, 12, 0, 0, 0, time.UTC), s.Next(from))
}

func TestScheduleRejectsBadSpec(t *testing.T) {
	_, err := NewSchedule("every tuesday", time.UTC, func(context.Context) {})
	assert.Error(t, err)
}

func TestScheduleJobCancelledWithRun(t *testing.T) {
	started := make(chan struct{})
	jobErr := make(chan error, 1)
	s, err := NewSchedule("@every 1s", time.UTC, func(ctx context.Context) {
		select {
		case <-started:
			return
		default:
		}
		close(started)
		<-ctx.Done()
		jobErr <- ctx.Err()
	})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()

	select {
	case <-started:
	case <-time.After(3 * time.Second):
		t.Fatal("scheduled job did not fire")
	}
	cancel()

	select {
	case err := <-jobErr:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(time.Second):
		t.Fatal("scheduled job was not cancelled")
	}
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("schedule did not stop")
	}
}

func TestScheduleRunStopsWithContext(t *testing.T) {
	s, err := NewSchedule("@every 1h", time.UTC, func(context.Context) {})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("schedule did not stop")
	}
}

// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package control

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/ManuGH/yanagi/internal/refresh"
	"github.com/ManuGH/yanagi/internal/scheduler"
	"github.com/ManuGH/yanagi/internal/store"
	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockTitles struct{ mock.Mock }

func (m *mockTitles) TitleMedium(ctx context.Context, tid int) (string, bool, error) {
	args := m.Called(ctx, tid)
	return args.String(0), args.Bool(1), args.Error(2)
}

type mockTracker struct{ mock.Mock }

func (m *mockTracker) TrackTitle(ctx context.Context, tid int, title string) error {
	return m.Called(ctx, tid, title).Error(0)
}

func (m *mockTracker) TrackedTitles(ctx context.Context) ([]store.TrackedTitle, error) {
	args := m.Called(ctx)
	rows, _ := args.Get(0).([]store.TrackedTitle)
	return rows, args.Error(1)
}

type mockRefresher struct{ mock.Mock }

func (m *mockRefresher) Refresh(ctx context.Context) (refresh.Result, error) {
	args := m.Called(ctx)
	return args.Get(0).(refresh.Result), args.Error(1)
}

func strptr(s string) *string { return &s }

func TestGetJobsMapsSnapshot(t *testing.T) {
	at := time.Date(2025, 4, 1, 12, 0, 0, 0, time.UTC)
	reg := scheduler.NewRegistry()
	reg.Replace([]store.Job{{
		PID: 10, TID: 55, StartTime: at, EndTime: at.Add(30 * time.Minute),
		ChannelName: "NHK General", ChannelForRecorder: 27, ChannelForSyoboi: 1,
		EnqueuedAt: at.Add(-15 * time.Second), Count: "4", StartOffset: 0,
		Title: strptr("Yuru Camp"),
	}})

	svc := NewSchedulerService(reg, nil, nil)
	got := svc.GetJobs(context.Background())

	want := JobList{Jobs: []Job{{
		PID: 10, TID: 55, StartTime: at, EndTime: at.Add(30 * time.Minute),
		ChannelName: "NHK General", ChannelForRecorder: 27, ChannelForSyoboi: 1,
		Count: "4", Title: "Yuru Camp",
	}}}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("GetJobs mismatch (-want +got):\n%s", diff)
	}
}

func TestGetJobsEmpty(t *testing.T) {
	svc := NewSchedulerService(scheduler.NewRegistry(), nil, nil)
	got := svc.GetJobs(context.Background())
	assert.NotNil(t, got.Jobs)
	assert.Empty(t, got.Jobs)
}

func TestTrackTid(t *testing.T) {
	ctx := context.Background()
	titles := &mockTitles{}
	tracker := &mockTracker{}
	titles.On("TitleMedium", mock.Anything, 55).Return("Yuru Camp", true, nil)
	tracker.On("TrackTitle", mock.Anything, 55, "Yuru Camp").Return(nil)

	svc := NewSchedulerService(scheduler.NewRegistry(), titles, tracker)
	got, err := svc.TrackTid(ctx, 55)
	require.NoError(t, err)
	assert.Equal(t, TrackedTitle{TID: 55, Title: "Yuru Camp"}, got)
	tracker.AssertExpectations(t)
}

func TestTrackTidNotFound(t *testing.T) {
	titles := &mockTitles{}
	tracker := &mockTracker{}
	titles.On("TitleMedium", mock.Anything, 999).Return("", false, nil)

	svc := NewSchedulerService(scheduler.NewRegistry(), titles, tracker)
	_, err := svc.TrackTid(context.Background(), 999)
	require.ErrorIs(t, err, ErrTitleNotFound)
	tracker.AssertNotCalled(t, "TrackTitle", mock.Anything, mock.Anything, mock.Anything)
}

func TestTrackTidInvalid(t *testing.T) {
	svc := NewSchedulerService(scheduler.NewRegistry(), &mockTitles{}, &mockTracker{})
	_, err := svc.TrackTid(context.Background(), 0)
	require.ErrorIs(t, err, ErrInvalidTID)
}

func TestListTracked(t *testing.T) {
	since := time.Date(2025, 4, 1, 9, 0, 0, 0, time.UTC)
	tracker := &mockTracker{}
	tracker.On("TrackedTitles", mock.Anything).Return([]store.TrackedTitle{
		{TID: 55, Title: "Yuru Camp", CreatedAt: since},
		{TID: 60, Title: "Frieren", CreatedAt: since.Add(time.Hour)},
	}, nil)

	svc := NewSchedulerService(scheduler.NewRegistry(), nil, tracker)
	got, err := svc.ListTracked(context.Background())
	require.NoError(t, err)

	want := TrackedList{Titles: []TrackedTitle{
		{TID: 55, Title: "Yuru Camp", Since: since},
		{TID: 60, Title: "Frieren", Since: since.Add(time.Hour)},
	}}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("ListTracked mismatch (-want +got):\n%s", diff)
	}
}

func TestListTrackedEmptyAndError(t *testing.T) {
	tracker := &mockTracker{}
	tracker.On("TrackedTitles", mock.Anything).Return(nil, nil).Once()
	tracker.On("TrackedTitles", mock.Anything).Return(nil, errors.New("db closed")).Once()
	svc := NewSchedulerService(scheduler.NewRegistry(), nil, tracker)

	got, err := svc.ListTracked(context.Background())
	require.NoError(t, err)
	assert.NotNil(t, got.Titles)
	assert.Empty(t, got.Titles)

	_, err = svc.ListTracked(context.Background())
	require.ErrorContains(t, err, "db closed")
}

func TestConcurrentStopFiresOnce(t *testing.T) {
	signals := scheduler.NewSignals()
	svc := NewSystemService(signals, nil)

	var wg sync.WaitGroup
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.Equal(t, Ack{}, svc.Stop(context.Background()))
		}()
	}
	wg.Wait()

	assert.True(t, signals.ShutdownRequested())
	assert.False(t, signals.RequestShutdown(), "shutdown already fired")
}

func TestReloadCoalesces(t *testing.T) {
	signals := scheduler.NewSignals()
	svc := NewSystemService(signals, nil)
	svc.Reload(context.Background())
	svc.Reload(context.Background())

	<-signals.Reload()
	select {
	case <-signals.Reload():
		t.Fatal("second reload was not coalesced")
	default:
	}
}

func TestRefreshReloadsOnSuccess(t *testing.T) {
	signals := scheduler.NewSignals()
	ref := &mockRefresher{}
	ref.On("Refresh", mock.Anything).Return(refresh.Result{Programs: 3, Jobs: 1, Deleted: 1}, nil)

	svc := NewSystemService(signals, ref)
	got, err := svc.Refresh(context.Background())
	require.NoError(t, err)
	assert.Equal(t, RefreshResult{Programs: 3, Jobs: 1, Deleted: 1}, got)

	select {
	case <-signals.Reload():
	default:
		t.Fatal("refresh did not request a reload")
	}
}

func TestRefreshFailureDoesNotReload(t *testing.T) {
	signals := scheduler.NewSignals()
	ref := &mockRefresher{}
	ref.On("Refresh", mock.Anything).Return(refresh.Result{}, errors.New("calendar unavailable"))

	svc := NewSystemService(signals, ref)
	_, err := svc.Refresh(context.Background())
	require.Error(t, err)

	select {
	case <-signals.Reload():
		t.Fatal("failed refresh requested a reload")
	default:
	}
	assert.False(t, signals.ShutdownRequested())
}

func TestRefreshAfterStopIsRejected(t *testing.T) {
	signals := scheduler.NewSignals()
	ref := &mockRefresher{}
	svc := NewSystemService(signals, ref)

	svc.Stop(context.Background())
	_, err := svc.Refresh(context.Background())
	require.ErrorIs(t, err, ErrShuttingDown)
	ref.AssertNotCalled(t, "Refresh", mock.Anything)

	select {
	case <-signals.Reload():
		t.Fatal("rejected refresh requested a reload")
	default:
	}
}

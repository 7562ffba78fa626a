// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package daemon

import (
	"context"
	"errors"
	"net"
	"net/http"
	"sync/atomic"
	"syscall"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/ManuGH/yanagi/internal/config"
	"github.com/ManuGH/yanagi/internal/log"
	"github.com/ManuGH/yanagi/internal/refresh"
	"github.com/ManuGH/yanagi/internal/scheduler"
)

type fakeManager struct {
	started  chan struct{}
	stopped  atomic.Bool
	startErr error
}

func newFakeManager() *fakeManager {
	return &fakeManager{started: make(chan struct{})}
}

func (m *fakeManager) Start(ctx context.Context) error {
	close(m.started)
	if m.startErr != nil {
		return m.startErr
	}
	<-ctx.Done()
	m.stopped.Store(true)
	return nil
}

func (m *fakeManager) Shutdown(context.Context) error { return nil }

func (m *fakeManager) RegisterShutdownHook(string, ShutdownHook) {}

// fakeEngine runs until ctx is done or stop is closed.
type fakeEngine struct {
	running chan struct{}
	stop    chan struct{}
	err     error
}

func newFakeEngine() *fakeEngine {
	return &fakeEngine{running: make(chan struct{}), stop: make(chan struct{})}
}

func (e *fakeEngine) Run(ctx context.Context) error {
	close(e.running)
	select {
	case <-ctx.Done():
	case <-e.stop:
	}
	return e.err
}

type countingReloader struct{ n atomic.Int32 }

func (r *countingReloader) RequestReload() bool {
	r.n.Add(1)
	return true
}

func (r *countingReloader) Done() <-chan struct{} { return nil }

// drainingEngine leaves its loop on shutdown and then blocks in drain until
// release is closed.
type drainingEngine struct {
	signals  *scheduler.Signals
	draining chan struct{}
	release  chan struct{}
}

func (e *drainingEngine) Run(ctx context.Context) error {
	select {
	case <-e.signals.Done():
	case <-ctx.Done():
	}
	close(e.draining)
	<-e.release
	return nil
}

type fakeRefresher struct {
	calls atomic.Int32
	err   error
}

func (f *fakeRefresher) Refresh(context.Context) (refresh.Result, error) {
	f.calls.Add(1)
	return refresh.Result{Programs: 2, Jobs: 1}, f.err
}

func runApp(t *testing.T, ctx context.Context, app *App) <-chan error {
	t.Helper()
	done := make(chan error, 1)
	go func() { done <- app.Run(ctx) }()
	return done
}

func waitErr(t *testing.T, done <-chan error) error {
	t.Helper()
	select {
	case err := <-done:
		return err
	case <-time.After(5 * time.Second):
		t.Fatal("App.Run did not return")
		return nil
	}
}

func TestAppEngineStopShutsDownServers(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	mgr, eng := newFakeManager(), newFakeEngine()
	app := NewApp(log.WithComponent("test"), mgr, eng, &countingReloader{}, AppOptions{})

	done := runApp(t, context.Background(), app)
	<-eng.running
	<-mgr.started
	close(eng.stop)

	require.NoError(t, waitErr(t, done))
	assert.True(t, mgr.stopped.Load())
}

func TestAppReturnsEngineError(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	mgr, eng := newFakeManager(), newFakeEngine()
	eng.err = errors.New("store unavailable")
	app := NewApp(log.WithComponent("test"), mgr, eng, nil, AppOptions{})

	done := runApp(t, context.Background(), app)
	<-eng.running
	close(eng.stop)

	assert.ErrorIs(t, waitErr(t, done), eng.err)
	assert.True(t, mgr.stopped.Load())
}

func TestAppStopsOnContextCancel(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	mgr, eng := newFakeManager(), newFakeEngine()
	app := NewApp(log.WithComponent("test"), mgr, eng, nil, AppOptions{})

	ctx, cancel := context.WithCancel(context.Background())
	done := runApp(t, ctx, app)
	<-eng.running
	cancel()

	require.NoError(t, waitErr(t, done))
}

func TestAppManagerFailureStopsEngine(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	mgr, eng := newFakeManager(), newFakeEngine()
	mgr.startErr = errors.New("address in use")
	app := NewApp(log.WithComponent("test"), mgr, eng, nil, AppOptions{})

	done := runApp(t, context.Background(), app)
	assert.ErrorIs(t, waitErr(t, done), mgr.startErr)
}

func TestAppReloadSignalRequestsEngineReload(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	mgr, eng := newFakeManager(), newFakeEngine()
	reloader := &countingReloader{}
	app := NewApp(log.WithComponent("test"), mgr, eng, reloader, AppOptions{ReloadSignal: syscall.SIGUSR1})

	ctx, cancel := context.WithCancel(context.Background())
	done := runApp(t, ctx, app)
	// The signal handler is installed before the engine starts.
	<-eng.running

	require.NoError(t, syscall.Kill(syscall.Getpid(), syscall.SIGUSR1))
	assert.Eventually(t, func() bool { return reloader.n.Load() == 1 }, 2*time.Second, 10*time.Millisecond)

	cancel()
	require.NoError(t, waitErr(t, done))
}

func TestAppRefreshOnStart(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	t.Run("success reloads the engine", func(t *testing.T) {
		mgr, eng := newFakeManager(), newFakeEngine()
		reloader := &countingReloader{}
		ref := &fakeRefresher{}
		app := NewApp(log.WithComponent("test"), mgr, eng, reloader, AppOptions{RefreshOnStart: true, Refresher: ref})

		ctx, cancel := context.WithCancel(context.Background())
		done := runApp(t, ctx, app)
		assert.Eventually(t, func() bool { return reloader.n.Load() == 1 }, 2*time.Second, 10*time.Millisecond)
		assert.Equal(t, int32(1), ref.calls.Load())

		cancel()
		require.NoError(t, waitErr(t, done))
	})

	t.Run("failure keeps running", func(t *testing.T) {
		mgr, eng := newFakeManager(), newFakeEngine()
		reloader := &countingReloader{}
		ref := &fakeRefresher{err: errors.New("calendar down")}
		app := NewApp(log.WithComponent("test"), mgr, eng, reloader, AppOptions{RefreshOnStart: true, Refresher: ref})

		ctx, cancel := context.WithCancel(context.Background())
		done := runApp(t, ctx, app)
		assert.Eventually(t, func() bool { return ref.calls.Load() == 1 }, 2*time.Second, 10*time.Millisecond)
		assert.Zero(t, reloader.n.Load())

		cancel()
		require.NoError(t, waitErr(t, done))
	})
}

func TestAppRejectsBadRefreshSchedule(t *testing.T) {
	app := NewApp(log.WithComponent("test"), newFakeManager(), newFakeEngine(), nil, AppOptions{
		RefreshSchedule: "not a cron line",
		Refresher:       &fakeRefresher{},
	})
	require.Error(t, app.Run(context.Background()))
}

func TestAppRequiresManagerAndEngine(t *testing.T) {
	app := NewApp(log.WithComponent("test"), nil, newFakeEngine(), nil, AppOptions{})
	assert.ErrorIs(t, app.Run(context.Background()), ErrMissingManager)

	app = NewApp(log.WithComponent("test"), newFakeManager(), nil, nil, AppOptions{})
	assert.ErrorIs(t, app.Run(context.Background()), ErrMissingEngine)
}

func TestAppStopsServingBeforeRecordingsDrain(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	url := "http://" + ln.Addr().String() + "/api/v1/system/refresh"

	mgr, err := NewManager(config.ServerConfig{
		ListenAddr:      ln.Addr().String(),
		ReadTimeout:     time.Second,
		WriteTimeout:    time.Second,
		ShutdownTimeout: 2 * time.Second,
	}, Deps{
		Logger:      log.WithComponent("test"),
		APIHandler:  http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusOK) }),
		APIListener: ln,
	})
	require.NoError(t, err)
	hookRan := make(chan struct{})
	mgr.RegisterShutdownHook("recordings", func(context.Context) error {
		close(hookRan)
		return nil
	})

	signals := scheduler.NewSignals()
	eng := &drainingEngine{signals: signals, draining: make(chan struct{}), release: make(chan struct{})}
	app := NewApp(log.WithComponent("test"), mgr, eng, signals, AppOptions{})
	done := runApp(t, context.Background(), app)

	client := &http.Client{Transport: &http.Transport{DisableKeepAlives: true}, Timeout: time.Second}
	post := func() (int, error) {
		resp, err := client.Post(url, "application/json", nil)
		if err != nil {
			return 0, err
		}
		resp.Body.Close()
		return resp.StatusCode, nil
	}
	require.Eventually(t, func() bool {
		code, err := post()
		return err == nil && code == http.StatusOK
	}, 2*time.Second, 10*time.Millisecond)

	require.True(t, signals.RequestShutdown())
	<-eng.draining

	// The engine is still draining; the control plane must already be gone.
	require.Eventually(t, func() bool {
		_, err := post()
		return err != nil
	}, 2*time.Second, 10*time.Millisecond)
	select {
	case <-hookRan:
	case <-time.After(2 * time.Second):
		t.Fatal("shutdown hooks did not run during drain")
	}
	select {
	case err := <-done:
		t.Fatalf("App.Run returned before drain finished: %v", err)
	default:
	}

	close(eng.release)
	require.NoError(t, waitErr(t, done))
}

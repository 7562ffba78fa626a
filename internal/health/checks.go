// SPDX-License-Identifier: MIT

package health

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// PingChecker reports whether a dependency answers a ping.
type PingChecker struct {
	name string
	ping func(ctx context.Context) error
}

// NewPingChecker wraps a ping function, typically the store's.
func NewPingChecker(name string, ping func(ctx context.Context) error) *PingChecker {
	return &PingChecker{name: name, ping: ping}
}

func (c *PingChecker) Name() string { return c.name }

func (c *PingChecker) Check(ctx context.Context) CheckResult {
	if err := c.ping(ctx); err != nil {
		return CheckResult{Status: StatusUnhealthy, Error: err.Error()}
	}
	return CheckResult{Status: StatusHealthy}
}

// DirChecker verifies that a directory exists and is writable.
type DirChecker struct {
	name string
	path string
}

// NewDirChecker creates a checker for the recorder output directory.
func NewDirChecker(name, path string) *DirChecker {
	return &DirChecker{name: name, path: path}
}

func (c *DirChecker) Name() string { return c.name }

func (c *DirChecker) Check(_ context.Context) CheckResult {
	if err := checkWritableDir(c.path); err != nil {
		return CheckResult{Status: StatusUnhealthy, Error: err.Error(), Message: c.path}
	}
	return CheckResult{Status: StatusHealthy, Message: c.path}
}

func checkWritableDir(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("directory does not exist: %s", path)
		}
		return err
	}
	if !info.IsDir() {
		return fmt.Errorf("path is not a directory: %s", path)
	}
	f, err := os.CreateTemp(path, ".yanagi-write-test-*")
	if err != nil {
		return fmt.Errorf("directory is not writable: %s: %w", path, err)
	}
	name := f.Name()
	_ = f.Close()
	_ = os.Remove(filepath.Clean(name))
	return nil
}

// RefreshChecker reports on the calendar refresh history. A refresh that has
// never succeeded is degraded, not unhealthy: stored jobs still fire.
type RefreshChecker struct {
	lastSuccess func() time.Time
	lastError   func() error
	maxAge      time.Duration
	now         func() time.Time
}

// NewRefreshChecker creates the calendar refresh checker. maxAge bounds how
// old the last success may be before the check degrades.
func NewRefreshChecker(lastSuccess func() time.Time, lastError func() error, maxAge time.Duration) *RefreshChecker {
	return &RefreshChecker{lastSuccess: lastSuccess, lastError: lastError, maxAge: maxAge, now: time.Now}
}

func (c *RefreshChecker) Name() string { return "calendar_refresh" }

func (c *RefreshChecker) Check(_ context.Context) CheckResult {
	last := c.lastSuccess()
	if err := c.lastError(); err != nil {
		return CheckResult{Status: StatusDegraded, Error: err.Error(), Message: "last refresh failed"}
	}
	if last.IsZero() {
		return CheckResult{Status: StatusDegraded, Message: "no successful refresh yet"}
	}
	if c.maxAge > 0 && c.now().Sub(last) > c.maxAge {
		return CheckResult{Status: StatusDegraded, Message: "last successful refresh at " + last.Format(time.RFC3339)}
	}
	return CheckResult{Status: StatusHealthy, Message: "last successful refresh at " + last.Format(time.RFC3339)}
}

// EngineChecker reports unhealthy once the engine is shutting down.
type EngineChecker struct {
	stopping func() bool
}

// NewEngineChecker wraps the engine's shutdown flag.
func NewEngineChecker(stopping func() bool) *EngineChecker {
	return &EngineChecker{stopping: stopping}
}

func (c *EngineChecker) Name() string { return "engine" }

func (c *EngineChecker) Check(_ context.Context) CheckResult {
	if c.stopping() {
		return CheckResult{Status: StatusUnhealthy, Message: "shutting down"}
	}
	return CheckResult{Status: StatusHealthy}
}

// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package health

import (
	"fmt"
	"net"
	"os"
	"os/exec"
	"strconv"

	"github.com/ManuGH/yanagi/internal/config"
	"github.com/ManuGH/yanagi/internal/log"
)

// PerformStartupChecks validates the environment before the daemon starts.
// A missing recorder binary only warns: it may appear before the first job.
func PerformStartupChecks(cfg config.AppConfig) error {
	logger := log.WithComponent("startup-check")

	if err := os.MkdirAll(cfg.Recorder.OutputDir, 0o750); err != nil {
		return fmt.Errorf("create output directory %s: %w", cfg.Recorder.OutputDir, err)
	}
	if err := checkWritableDir(cfg.Recorder.OutputDir); err != nil {
		return fmt.Errorf("output directory check failed: %w", err)
	}
	logger.Info().Str("path", cfg.Recorder.OutputDir).Msg("output directory is writable")

	for _, addr := range []string{cfg.API.ListenAddr, cfg.Metrics.ListenAddr} {
		if addr == "" {
			continue
		}
		if err := checkListenAddr(addr); err != nil {
			return err
		}
	}

	if _, err := exec.LookPath(cfg.Recorder.Command); err != nil {
		logger.Warn().
			Err(err).
			Str("command", cfg.Recorder.Command).
			Msg("recorder command not found in PATH")
	}
	return nil
}

func checkListenAddr(addr string) error {
	_, port, err := net.SplitHostPort(addr)
	if err != nil {
		return fmt.Errorf("invalid listen address %q: %w", addr, err)
	}
	n, err := strconv.Atoi(port)
	if err != nil || n < 0 || n > 65535 {
		return fmt.Errorf("invalid listen port %q in %q", port, addr)
	}
	return nil
}

// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// SPDX-License-Identifier: MIT
package main

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"
	_ "time/tzdata" // refresh.timeZone must resolve on minimal images

	"github.com/ManuGH/yanagi/internal/api"
	"github.com/ManuGH/yanagi/internal/config"
	"github.com/ManuGH/yanagi/internal/version"
	"github.com/spf13/cobra"
)

const defaultControlAddr = "http://127.0.0.1:4114"

// exitError carries a specific process exit status through cobra.
type exitError struct {
	code int
	err  error
}

func (e *exitError) Error() string { return e.err.Error() }
func (e *exitError) Unwrap() error { return e.err }

// usageError marks errors caused by bad invocation (exit status 2).
func usageError(format string, args ...any) error {
	return &exitError{code: 2, err: fmt.Errorf(format, args...)}
}

// rootOptions are the persistent flags shared by every subcommand.
type rootOptions struct {
	configPath string
	addr       string
	timeout    time.Duration
}

func (o *rootOptions) client() *api.Client {
	return api.NewClient(o.addr, o.timeout)
}

func (o *rootOptions) loadConfig() (config.AppConfig, error) {
	cfg, err := config.NewLoader(strings.TrimSpace(o.configPath), version.Version).Load()
	if err != nil {
		return config.AppConfig{}, fmt.Errorf("load config: %w", err)
	}
	return cfg, nil
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}
	root := &cobra.Command{
		Use:   "yanagi",
		Short: "Unattended broadcast recording scheduler",
		Long: `yanagi fetches the Syoboi program calendar, keeps a job for every
broadcast of a tracked title and starts the recorder shortly before each
program begins.

Run "yanagi serve" to start the daemon; the other commands talk to a
running daemon over its control plane.`,
		Version:       version.String(),
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.PersistentFlags().StringVarP(&opts.configPath, "config", "c", env("YANAGI_CONFIG", ""), "path to config file (YAML)")
	root.PersistentFlags().StringVar(&opts.addr, "addr", env("YANAGI_ADDR", defaultControlAddr), "control plane base URL")
	root.PersistentFlags().DurationVar(&opts.timeout, "timeout", 2*time.Minute, "control plane request timeout")

	root.AddCommand(
		newServeCmd(opts),
		newJobsCmd(opts),
		newTrackCmd(opts),
		newStopCmd(opts),
		newReloadCmd(opts),
		newRefreshCmd(opts),
		newChannelsCmd(opts),
		newStorageCmd(opts),
		newConfigCmd(opts),
		newHealthcheckCmd(opts),
		newVersionCmd(),
	)
	return root
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintln(cmd.OutOrStdout(), version.String())
		},
	}
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(exitCode(err))
	}
}

func exitCode(err error) int {
	var ee *exitError
	if errors.As(err, &ee) {
		return ee.code
	}
	return 1
}

func env(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}

// maskURL removes user info from a URL string for safe logging.
func maskURL(rawURL string) string {
	parsedURL, err := url.Parse(rawURL)
	if err != nil {
		return "invalid-url-redacted"
	}
	parsedURL.User = nil
	return parsedURL.String()
}

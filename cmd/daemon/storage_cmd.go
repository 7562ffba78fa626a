// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package main

import (
	"fmt"
	"strings"

	"github.com/ManuGH/yanagi/internal/persistence/sqlite"
	"github.com/spf13/cobra"
)

func newStorageCmd(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "storage",
		Short: "Inspect the job store",
	}
	cmd.AddCommand(newStorageVerifyCmd(opts))
	return cmd
}

func newStorageVerifyCmd(opts *rootOptions) *cobra.Command {
	var (
		path string
		mode string
	)
	cmd := &cobra.Command{
		Use:   "verify",
		Short: "Check SQLite database integrity",
		Long: `Check SQLite database integrity.

Without --path the database configured in store.dsn is checked; this only
works with the sqlite driver.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			mode = strings.ToLower(strings.TrimSpace(mode))
			if mode != "quick" && mode != "full" {
				return usageError("invalid mode %q. Use 'quick' or 'full'", mode)
			}

			if path == "" {
				cfg, err := opts.loadConfig()
				if err != nil {
					return err
				}
				if cfg.Store.Driver != "sqlite" {
					return usageError("--path is required for the %s driver", cfg.Store.Driver)
				}
				path = cfg.Store.DSN
			}
			return doVerify(cmd, path, mode)
		},
	}
	cmd.Flags().StringVar(&path, "path", "", "path to the SQLite database file")
	cmd.Flags().StringVar(&mode, "mode", "quick", "verification mode: quick or full")
	return cmd
}

func doVerify(cmd *cobra.Command, path string, mode string) error {
	stderr := cmd.ErrOrStderr()
	fmt.Fprintf(stderr, "🔍 Verifying integrity of %s (mode: %s)...\n", path, mode)

	issues, err := sqlite.VerifyIntegrity(cmd.Context(), path, mode)
	if err != nil {
		return fmt.Errorf("verification interrupted: %w", err)
	}

	if issues != nil {
		fmt.Fprintln(stderr, "🚨 CORRUPTION DETECTED!")
		for _, issue := range issues {
			fmt.Fprintf(stderr, "  - %s\n", issue)
		}
		return &exitError{code: 1, err: fmt.Errorf("%s: %d integrity issues", path, len(issues))}
	}

	fmt.Fprintln(cmd.OutOrStdout(), "✅ Integrity Verified: ok")
	return nil
}

// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/ManuGH/yanagi/internal/daemon"
	"github.com/ManuGH/yanagi/internal/store"
	"github.com/spf13/cobra"
)

func newChannelsCmd(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "channels",
		Short: "Manage the channel mapping in the job store",
	}
	cmd.AddCommand(
		&cobra.Command{
			Use:   "seed",
			Short: "Write the channels listed in the config file to the store",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				cfg, err := opts.loadConfig()
				if err != nil {
					return err
				}
				st, err := store.Open(cmd.Context(), cfg.Store)
				if err != nil {
					return err
				}
				defer st.Close()

				n, err := daemon.SeedChannels(cmd.Context(), st, cfg.Channels)
				if err != nil {
					return err
				}
				_, err = fmt.Fprintf(cmd.OutOrStdout(), "seeded %d channels\n", n)
				return err
			},
		},
		&cobra.Command{
			Use:   "list",
			Short: "List channels in the store",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				cfg, err := opts.loadConfig()
				if err != nil {
					return err
				}
				st, err := store.Open(cmd.Context(), cfg.Store)
				if err != nil {
					return err
				}
				defer st.Close()

				channels, err := st.Channels(cmd.Context())
				if err != nil {
					return err
				}
				tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
				_, _ = fmt.Fprintln(tw, "ID\tNAME\tRECORDER\tSYOBOI")
				for _, ch := range channels {
					_, _ = fmt.Fprintf(tw, "%d\t%s\t%d\t%d\n", ch.ID, ch.Name, ch.ForRecorder, ch.ForSyoboi)
				}
				return tw.Flush()
			},
		},
	)
	return cmd
}

// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"text/tabwriter"
	"time"

	"github.com/ManuGH/yanagi/internal/control"
	"github.com/spf13/cobra"
)

func newJobsCmd(opts *rootOptions) *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "jobs",
		Short: "List the jobs loaded by the running daemon",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			list, err := opts.client().GetJobs(cmd.Context())
			if err != nil {
				return err
			}
			if asJSON {
				return writeJSON(cmd.OutOrStdout(), list)
			}
			return printJobs(cmd.OutOrStdout(), list.Jobs)
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the raw JSON response")
	return cmd
}

func printJobs(w io.Writer, jobs []control.Job) error {
	if len(jobs) == 0 {
		_, err := fmt.Fprintln(w, "no jobs")
		return err
	}
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(tw, "PID\tTID\tSTART\tCHANNEL\tTITLE\tCOUNT\tSUBTITLE")
	for _, j := range jobs {
		_, _ = fmt.Fprintf(tw, "%d\t%d\t%s\t%s\t%s\t%s\t%s\n",
			j.PID, j.TID, j.StartTime.Local().Format(time.DateTime), j.ChannelName, j.Title, j.Count, j.Subtitle)
	}
	return tw.Flush()
}

func newTrackCmd(opts *rootOptions) *cobra.Command {
	var list bool
	cmd := &cobra.Command{
		Use:   "track TID | track --list",
		Short: "Start recording every broadcast of a title",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if list {
				if len(args) != 0 {
					return usageError("--list takes no title id")
				}
				tracked, err := opts.client().ListTracked(cmd.Context())
				if err != nil {
					return err
				}
				return printTracked(cmd.OutOrStdout(), tracked.Titles)
			}
			if len(args) != 1 {
				return usageError("track needs a title id")
			}
			tid, err := strconv.Atoi(args[0])
			if err != nil || tid <= 0 {
				return usageError("invalid title id %q", args[0])
			}
			tracked, err := opts.client().TrackTid(cmd.Context(), tid)
			if err != nil {
				return err
			}
			_, err = fmt.Fprintf(cmd.OutOrStdout(), "tracking %d %s\n", tracked.TID, tracked.Title)
			return err
		},
	}
	cmd.Flags().BoolVar(&list, "list", false, "list the tracked titles instead")
	return cmd
}

func printTracked(w io.Writer, titles []control.TrackedTitle) error {
	if len(titles) == 0 {
		_, err := fmt.Fprintln(w, "no tracked titles")
		return err
	}
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(tw, "TID\tTITLE\tSINCE")
	for _, t := range titles {
		since := "-"
		if !t.Since.IsZero() {
			since = t.Since.Local().Format(time.DateTime)
		}
		_, _ = fmt.Fprintf(tw, "%d\t%s\t%s\n", t.TID, t.Title, since)
	}
	return tw.Flush()
}

func newStopCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "stop",
		Short: "Stop the daemon after in-flight recordings finish",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := opts.client().Stop(cmd.Context()); err != nil {
				return err
			}
			_, err := fmt.Fprintln(cmd.OutOrStdout(), "stop requested")
			return err
		},
	}
}

func newReloadCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "reload",
		Short: "Reload jobs from the store",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := opts.client().Reload(cmd.Context()); err != nil {
				return err
			}
			_, err := fmt.Fprintln(cmd.OutOrStdout(), "reload requested")
			return err
		},
	}
}

func newRefreshCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "refresh",
		Short: "Fetch the calendar, update jobs and reload",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			res, err := opts.client().Refresh(cmd.Context())
			if err != nil {
				return err
			}
			_, err = fmt.Fprintf(cmd.OutOrStdout(), "refreshed: %d programs, %d jobs, %d deleted\n",
				res.Programs, res.Jobs, res.Deleted)
			return err
		},
	}
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

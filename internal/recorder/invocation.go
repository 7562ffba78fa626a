// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package recorder

import (
	"fmt"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/ManuGH/yanagi/internal/config"
	"github.com/ManuGH/yanagi/internal/store"
)

// Invocation is one fully resolved recorder command line.
type Invocation struct {
	PID      int
	TID      int
	Channel  int
	Duration time.Duration
	Path     string
	Command  string
	Args     []string
}

// Seconds is the duration passed to the recorder.
func (inv Invocation) Seconds() int {
	return int(inv.Duration / time.Second)
}

// Duration returns how long to record p. Channels whose name contains one of
// markers get padding appended.
func Duration(p store.Program, markers []string, padding time.Duration) time.Duration {
	d := p.EndTime.Sub(p.StartTime).Truncate(time.Second)
	for _, m := range markers {
		if m != "" && strings.Contains(p.ChannelName, m) {
			return d + padding
		}
	}
	return d
}

// OutputPath is where the recording of p is written.
func OutputPath(dir string, p store.Program) string {
	return filepath.Join(dir, fmt.Sprintf("%d_%d.ts", p.PID, p.TID))
}

// BuildInvocation resolves the recorder command for p. The {channel},
// {duration} and {path} placeholders in the configured args are expanded;
// when none are present the three values are appended in that order.
func BuildInvocation(cfg config.RecorderConfig, p store.Program) Invocation {
	inv := Invocation{
		PID:      p.PID,
		TID:      p.TID,
		Channel:  p.RecorderChannel,
		Duration: Duration(p, cfg.DriftMarkers, cfg.DriftPadding),
		Path:     OutputPath(cfg.OutputDir, p),
		Command:  cfg.Command,
	}

	values := []string{strconv.Itoa(inv.Channel), strconv.Itoa(inv.Seconds()), inv.Path}
	r := strings.NewReplacer("{channel}", values[0], "{duration}", values[1], "{path}", values[2])

	expanded := false
	inv.Args = make([]string, 0, len(cfg.Args)+len(values))
	for _, a := range cfg.Args {
		if strings.Contains(a, "{channel}") || strings.Contains(a, "{duration}") || strings.Contains(a, "{path}") {
			expanded = true
		}
		inv.Args = append(inv.Args, r.Replace(a))
	}
	if !expanded {
		inv.Args = append(inv.Args, values...)
	}
	return inv
}

// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package recorder

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/ManuGH/yanagi/internal/store"
	"github.com/google/renameio/v2"
	"golang.org/x/text/unicode/norm"
)

// Sidecar is the metadata file written next to a finished recording.
type Sidecar struct {
	PID         int       `json:"pid"`
	TID         int       `json:"tid"`
	Label       string    `json:"label"`
	Title       string    `json:"title"`
	Subtitle    string    `json:"subtitle,omitempty"`
	Count       string    `json:"count,omitempty"`
	Comment     string    `json:"comment,omitempty"`
	Channel     string    `json:"channel"`
	StartTime   time.Time `json:"startTime"`
	EndTime     time.Time `json:"endTime"`
	Recording   string    `json:"recording"`
	DurationSec int       `json:"durationSeconds"`
	RecordedAt  time.Time `json:"recordedAt"`
}

var labelReplacer = strings.NewReplacer("/", "／")

// Label renders the human readable name of a recording.
func Label(p store.Program) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%d_%d %s #%s %s", p.TID, p.PID, p.Title, p.Count, p.Subtitle)
	if p.Comment != "" {
		fmt.Fprintf(&b, " (%s)", p.Comment)
	}
	fmt.Fprintf(&b, " at %s", p.ChannelName)
	return norm.NFC.String(labelReplacer.Replace(b.String()))
}

// SidecarPath returns the metadata path for a recording path.
func SidecarPath(recording string) string {
	return strings.TrimSuffix(recording, ".ts") + ".json"
}

func newSidecar(p store.Program, inv Invocation, at time.Time) Sidecar {
	return Sidecar{
		PID:         p.PID,
		TID:         p.TID,
		Label:       Label(p),
		Title:       p.Title,
		Subtitle:    p.Subtitle,
		Count:       p.Count,
		Comment:     p.Comment,
		Channel:     p.ChannelName,
		StartTime:   p.StartTime,
		EndTime:     p.EndTime,
		Recording:   inv.Path,
		DurationSec: inv.Seconds(),
		RecordedAt:  at,
	}
}

// writeSidecar writes s atomically via renameio.
func writeSidecar(path string, s Sidecar) error {
	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return fmt.Errorf("encode sidecar: %w", err)
	}
	if err := renameio.WriteFile(path, append(data, '\n'), 0o644); err != nil {
		return fmt.Errorf("write sidecar %s: %w", path, err)
	}
	return nil
}

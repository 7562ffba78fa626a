// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package recorder

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLabel(t *testing.T) {
	p := program(10, "NHK General")
	assert.Equal(t, "55_10 Yuru Camp #3 Mt. Fuji at NHK General", Label(p))

	p.Comment = "rerun"
	p.Title = "Fate/Zero"
	assert.Equal(t, "55_10 Fate／Zero #3 Mt. Fuji (rerun) at NHK General", Label(p))
}

func TestLabelNormalizesToNFC(t *testing.T) {
	p := program(10, "TBS")
	p.Title = "\u30cf\u309a" // ha + combining handakuten
	p.Subtitle = ""
	p.Count = "1"
	assert.Equal(t, "55_10 \u30d1 #1  at TBS", Label(p))
}

func TestWriteSidecar(t *testing.T) {
	dir := t.TempDir()
	p := program(10, "NHK General")
	inv := BuildInvocation(func() (c StaticConfig) {
		c = StaticConfig(recorderConfig())
		c.OutputDir = dir
		return c
	}().Recorder(), p)

	path := SidecarPath(inv.Path)
	assert.Equal(t, filepath.Join(dir, "10_55.json"), path)
	require.NoError(t, writeSidecar(path, newSidecar(p, inv, start)))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	var got Sidecar
	require.NoError(t, json.Unmarshal(data, &got))
	assert.Equal(t, 10, got.PID)
	assert.Equal(t, 1825, got.DurationSec)
	assert.Equal(t, Label(p), got.Label)
	assert.Equal(t, inv.Path, got.Recording)
}

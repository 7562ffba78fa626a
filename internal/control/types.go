// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package control

import (
	"time"

	"github.com/ManuGH/yanagi/internal/store"
)

// Job is the wire form of a scheduled recording. The internal deadline is
// deliberately absent.
type Job struct {
	PID                int       `json:"pid"`
	TID                int       `json:"tid"`
	StartTime          time.Time `json:"startTime"`
	EndTime            time.Time `json:"endTime"`
	ChannelName        string    `json:"channelName"`
	ChannelForRecorder int       `json:"channelForRecorder"`
	ChannelForSyoboi   int       `json:"channelForSyoboi"`
	Count              string    `json:"count"`
	StartOffset        int       `json:"startOffset"`
	Subtitle           string    `json:"subtitle"`
	Title              string    `json:"title"`
	Comment            string    `json:"comment"`
}

// JobList is the response of GetJobs.
type JobList struct {
	Jobs []Job `json:"jobs"`
}

// TrackedTitle is the response of TrackTid and an entry of ListTracked.
type TrackedTitle struct {
	TID   int       `json:"tid"`
	Title string    `json:"title"`
	Since time.Time `json:"since,omitzero"`
}

// TrackedList is the response of ListTracked.
type TrackedList struct {
	Titles []TrackedTitle `json:"titles"`
}

// TrackRequest is the request body of TrackTid.
type TrackRequest struct {
	TID int `json:"tid"`
}

// RefreshResult is the response of Refresh.
type RefreshResult struct {
	Programs int `json:"programs"`
	Jobs     int `json:"jobs"`
	Deleted  int `json:"deleted"`
}

// Ack is the empty success response of the System operations.
type Ack struct{}

func toWire(j store.Job) Job {
	return Job{
		PID:                j.PID,
		TID:                j.TID,
		StartTime:          j.StartTime,
		EndTime:            j.EndTime,
		ChannelName:        j.ChannelName,
		ChannelForRecorder: j.ChannelForRecorder,
		ChannelForSyoboi:   j.ChannelForSyoboi,
		Count:              j.Count,
		StartOffset:        j.StartOffset,
		Subtitle:           deref(j.Subtitle),
		Title:              deref(j.Title),
		Comment:            deref(j.Comment),
	}
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

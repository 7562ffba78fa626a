// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package store

import "time"

// Job is a scheduled recording joined with its program and channel.
type Job struct {
	PID                int
	TID                int
	StartTime          time.Time
	EndTime            time.Time
	ChannelName        string
	ChannelForRecorder int
	ChannelForSyoboi   int
	EnqueuedAt         time.Time
	Count              string
	StartOffset        int
	Subtitle           *string
	Title              *string
	Comment            *string
}

// Program is the durable metadata consulted when a recording starts.
type Program struct {
	PID             int
	TID             int
	StartTime       time.Time
	EndTime         time.Time
	ChannelName     string
	RecorderChannel int
	Count           string
	StartOffset     int
	Subtitle        string
	Title           string
	Comment         string
}

// Channel maps a broadcast channel to recorder and calendar identifiers.
type Channel struct {
	ID          int
	Name        string
	ForRecorder int
	ForSyoboi   int
}

// TrackedTitle marks a calendar title whose programs are recorded.
type TrackedTitle struct {
	TID       int
	Title     string
	CreatedAt time.Time
}

// ProgramRecord is a program row as written by a calendar refresh.
type ProgramRecord struct {
	PID         int
	TID         int
	StartTime   time.Time
	EndTime     time.Time
	ChannelID   int
	Count       string
	StartOffset int
	Subtitle    string
	Title       string
	Comment     string
}

// JobRecord is a job row as written by a calendar refresh.
type JobRecord struct {
	PID        int
	EnqueuedAt time.Time
}

// CalendarBatch is applied atomically by ApplyCalendar.
type CalendarBatch struct {
	Programs []ProgramRecord
	Jobs     []JobRecord
}

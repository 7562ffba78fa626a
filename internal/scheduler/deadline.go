// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package scheduler

import (
	"container/heap"
	"time"
)

// Deadline is a keyed expiry handed out by DeadlineQueue.
type Deadline struct {
	PID int
	At  time.Time
}

type deadlineEntry struct {
	Deadline
	seq   uint64
	index int
}

type deadlineHeap []*deadlineEntry

func (h deadlineHeap) Len() int { return len(h) }
func (h deadlineHeap) Less(i, j int) bool {
	if h[i].At.Equal(h[j].At) {
		return h[i].seq < h[j].seq
	}
	return h[i].At.Before(h[j].At)
}
func (h deadlineHeap) Swap(i, j int) {
	h[i], h[j] = h[j], h[i]
	h[i].index = i
	h[j].index = j
}
func (h *deadlineHeap) Push(x any) {
	e := x.(*deadlineEntry)
	e.index = len(*h)
	*h = append(*h, e)
}
func (h *deadlineHeap) Pop() any {
	old := *h
	n := len(old)
	e := old[n-1]
	old[n-1] = nil
	e.index = -1
	*h = old[:n-1]
	return e
}

// DeadlineQueue holds one pending deadline per pid and exposes a single
// timer channel that fires when the earliest deadline is due. Entries with
// equal deadlines expire in insertion order. It is not safe for concurrent use.
type DeadlineQueue struct {
	clock Clock
	items deadlineHeap
	byPID map[int]*deadlineEntry
	timer Timer
	armed bool
	seq   uint64
}

// NewDeadlineQueue returns an empty queue driven by clock.
func NewDeadlineQueue(clock Clock) *DeadlineQueue {
	return &DeadlineQueue{clock: clock, byPID: make(map[int]*deadlineEntry)}
}

// Insert schedules pid at at. An existing entry for pid is replaced.
// Deadlines in the past expire immediately.
func (q *DeadlineQueue) Insert(pid int, at time.Time) {
	q.seq++
	if e, ok := q.byPID[pid]; ok {
		e.At = at
		e.seq = q.seq
		heap.Fix(&q.items, e.index)
	} else {
		e := &deadlineEntry{Deadline: Deadline{PID: pid, At: at}, seq: q.seq}
		heap.Push(&q.items, e)
		q.byPID[pid] = e
	}
	q.arm()
}

// Len returns the number of pending deadlines.
func (q *DeadlineQueue) Len() int { return len(q.items) }

// C fires when the earliest deadline is due. It is nil while the queue is
// empty, so selecting on it blocks.
func (q *DeadlineQueue) C() <-chan time.Time {
	if !q.armed {
		return nil
	}
	return q.timer.C()
}

// PopExpired removes and returns every entry due at now, earliest first,
// and re-arms the timer for the next one.
func (q *DeadlineQueue) PopExpired(now time.Time) []Deadline {
	var out []Deadline
	for len(q.items) > 0 && !q.items[0].At.After(now) {
		e := heap.Pop(&q.items).(*deadlineEntry)
		delete(q.byPID, e.PID)
		out = append(out, e.Deadline)
	}
	q.arm()
	return out
}

// Stop releases the timer. The queue must not be used afterwards.
func (q *DeadlineQueue) Stop() {
	if q.timer != nil {
		q.timer.Stop()
	}
	q.armed = false
	q.items = nil
	q.byPID = nil
}

func (q *DeadlineQueue) arm() {
	if len(q.items) == 0 {
		if q.timer != nil {
			q.timer.Stop()
		}
		q.armed = false
		return
	}
	d := q.items[0].At.Sub(q.clock.Now())
	if d < 0 {
		d = 0
	}
	if q.timer == nil {
		q.timer = q.clock.NewTimer(d)
	} else {
		q.timer.Stop()
		q.timer.Reset(d)
	}
	q.armed = true
}

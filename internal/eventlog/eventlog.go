// Package eventlog keeps a bounded, time-ordered history of motion events.
//
// A Log has a single writer (the detection loop) and any number of readers
// (status requests). Every Record is applied atomically with respect to
// Snapshot, so readers never observe a half-applied insert or merge.
package eventlog

import (
	"sync"
	"time"
)

// DefaultCapacity is the number of events kept when New is given a
// non-positive capacity.
const DefaultCapacity = 100

// Event is a single motion detection, at one-second resolution.
type Event struct {
	// Timestamp is the wall-clock time of the detection truncated to the second
	Timestamp time.Time
	// Magnitude is the estimator output (count of changed pixels)
	Magnitude int
}

// Log is a fixed-capacity FIFO of events with merge-on-same-second semantics.
type Log struct {
	mu       sync.Mutex
	events   []Event
	capacity int
}

// New returns an empty Log holding at most capacity events.
func New(capacity int) *Log {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Log{
		events:   make([]Event, 0, capacity),
		capacity: capacity,
	}
}

// Record inserts a detection or merges it into the most recent event.
//
// If the last event carries the same truncated timestamp, its magnitude
// becomes the larger of the two. Otherwise a new event is appended and, when
// the log is full, the oldest one is evicted.
func (l *Log) Record(ts time.Time, magnitude int) {
	ts = ts.Truncate(time.Second)

	l.mu.Lock()
	defer l.mu.Unlock()

	if n := len(l.events); n > 0 && l.events[n-1].Timestamp.Equal(ts) {
		if magnitude > l.events[n-1].Magnitude {
			l.events[n-1].Magnitude = magnitude
		}
		return
	}

	if len(l.events) == l.capacity {
		// shift in place so the backing array never grows past capacity
		copy(l.events, l.events[1:])
		l.events = l.events[:len(l.events)-1]
	}
	l.events = append(l.events, Event{Timestamp: ts, Magnitude: magnitude})
}

// Snapshot returns a copy of the events in insertion order.
func (l *Log) Snapshot() []Event {
	l.mu.Lock()
	defer l.mu.Unlock()

	out := make([]Event, len(l.events))
	copy(out, l.events)
	return out
}

// Len returns the current number of events.
func (l *Log) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.events)
}

// Cap returns the maximum number of events kept.
func (l *Log) Cap() int {
	return l.capacity
}

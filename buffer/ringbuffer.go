// Package buffer keeps the most recent log lines in a lock-free ring so the
// log view and /api/logs can show them without touching the writers. Each
// slot stores an atomic pointer so readers either see a complete line or the
// previous one, never a partially written entry.
package buffer

import "sync/atomic"

// Line is one buffered log line with its monotonic sequence number.
type Line struct {
	ID   uint64
	Text string
}

// RingBuffer is a thread-safe circular buffer of log lines.
type RingBuffer struct {
	// Combined with the monotonic ID counter, atomic slots remove the need for a global mutex.
	slots    []atomic.Pointer[Line]
	capacity int
	total    atomic.Uint64 // lines added (may exceed capacity)
}

// NewRingBuffer allocates a ring retaining the last capacity lines.
func NewRingBuffer(capacity int) *RingBuffer {
	if capacity <= 0 {
		capacity = 1
	}
	return &RingBuffer{
		slots:    make([]atomic.Pointer[Line], capacity),
		capacity: capacity,
	}
}

// Add appends a line, assigning a monotonic ID so readers can skip over
// stale entries when the buffer wraps.
func (rb *RingBuffer) Add(text string) {
	newID := rb.total.Add(1)
	idx := (newID - 1) % uint64(rb.capacity)
	rb.slots[idx].Store(&Line{ID: newID, Text: text})
}

// GetRecent returns up to n of the newest lines, newest first.
func (rb *RingBuffer) GetRecent(n int) []Line {
	if n <= 0 {
		return []Line{}
	}
	total := rb.total.Load()
	available := int(total)
	if available > rb.capacity {
		available = rb.capacity
	}
	if n > available {
		n = available
	}

	result := make([]Line, 0, n)
	if total == 0 {
		return result
	}
	minIndex := total - uint64(available)
	for idx := total; idx > minIndex && len(result) < n; {
		idx--
		slot := idx % uint64(rb.capacity)
		// ID check skips over slots that have been overwritten after wraparound
		if l := rb.slots[slot].Load(); l != nil && l.ID == idx+1 {
			result = append(result, *l)
		}
	}
	return result
}

// Texts returns up to n of the newest lines oldest first, ready to render.
func (rb *RingBuffer) Texts(n int) []string {
	recent := rb.GetRecent(n)
	out := make([]string, len(recent))
	for i, l := range recent {
		out[len(recent)-1-i] = l.Text
	}
	return out
}

// GetCount returns the total number of lines added (may be > capacity)
func (rb *RingBuffer) GetCount() int {
	return int(rb.total.Load())
}

// Capacity returns the number of lines retained.
func (rb *RingBuffer) Capacity() int {
	return rb.capacity
}

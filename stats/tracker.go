// Package stats keeps running counters for the dashboard status line and the
// Prometheus metrics exported on /metrics.
package stats

import (
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dustin/go-humanize"
)

// Tracker counts ingested spots by source and mode since start.
type Tracker struct {
	// sync.Map + atomic.Uint64 so concurrent fetch completions don't share a mutex
	sourceCounts  sync.Map // string -> *atomic.Uint64
	modeCounts    sync.Map // string -> *atomic.Uint64
	droppedCounts sync.Map // string -> *atomic.Uint64
	start         atomic.Int64
}

// NewTracker creates a new stats tracker
func NewTracker() *Tracker {
	t := &Tracker{}
	t.start.Store(time.Now().UnixNano())
	return t
}

// AddSource adds n accepted spots for a source.
func (t *Tracker) AddSource(source string, n int) {
	addCounter(&t.sourceCounts, source, n)
}

// IncrementMode increases the count for a mode. Empty modes count as "?".
func (t *Tracker) IncrementMode(mode string) {
	mode = strings.ToUpper(strings.TrimSpace(mode))
	if mode == "" {
		mode = "?"
	}
	addCounter(&t.modeCounts, mode, 1)
}

// AddDropped adds n rejected records for a source.
func (t *Tracker) AddDropped(source string, n int) {
	addCounter(&t.droppedCounts, source, n)
}

// GetSourceCounts returns a copy of accepted spot counts per source.
func (t *Tracker) GetSourceCounts() map[string]uint64 {
	return copyCounts(&t.sourceCounts)
}

// GetModeCounts returns a copy of mode counts.
func (t *Tracker) GetModeCounts() map[string]uint64 {
	return copyCounts(&t.modeCounts)
}

// GetDroppedCounts returns a copy of dropped record counts per source.
func (t *Tracker) GetDroppedCounts() map[string]uint64 {
	return copyCounts(&t.droppedCounts)
}

// GetTotal returns the total count across all sources
func (t *Tracker) GetTotal() uint64 {
	var total uint64
	t.sourceCounts.Range(func(_, value any) bool {
		total += value.(*atomic.Uint64).Load()
		return true
	})
	return total
}

// GetUptime returns how long the tracker has been running
func (t *Tracker) GetUptime() time.Duration {
	start := t.start.Load()
	return time.Since(time.Unix(0, start))
}

// SnapshotLines returns human-readable stats ready for console display.
func (t *Tracker) SnapshotLines() []string {
	return []string{
		formatCounts("Spots by source", t.GetSourceCounts()),
		formatCounts("Spots by mode", t.GetModeCounts()),
		formatCounts("Dropped records", t.GetDroppedCounts()),
	}
}

func formatCounts(label string, counts map[string]uint64) string {
	var builder strings.Builder
	builder.WriteString(label)
	builder.WriteString(": ")
	if len(counts) == 0 {
		builder.WriteString("(none)")
		return builder.String()
	}
	keys := make([]string, 0, len(counts))
	for k := range counts {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for i, k := range keys {
		if i > 0 {
			builder.WriteString(", ")
		}
		builder.WriteString(k)
		builder.WriteByte('=')
		builder.WriteString(humanize.Comma(int64(counts[k])))
	}
	return builder.String()
}

func copyCounts(m *sync.Map) map[string]uint64 {
	counts := make(map[string]uint64)
	m.Range(func(key, value any) bool {
		counts[key.(string)] = value.(*atomic.Uint64).Load()
		return true
	})
	return counts
}

func addCounter(m *sync.Map, key string, n int) {
	if strings.TrimSpace(key) == "" || n <= 0 {
		return
	}
	if value, ok := m.Load(key); ok {
		value.(*atomic.Uint64).Add(uint64(n))
		return
	}
	counter := &atomic.Uint64{}
	actual, loaded := m.LoadOrStore(key, counter)
	if loaded {
		actual.(*atomic.Uint64).Add(uint64(n))
		return
	}
	counter.Add(uint64(n))
}

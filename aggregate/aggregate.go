// Package aggregate merges per-source batches into the ranked, deduplicated
// list shown to the user.
package aggregate

import (
	"encoding/binary"
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/jonboulle/clockwork"
	"github.com/zeebo/xxh3"

	"spothunter/filter"
	"spothunter/spot"
	"spothunter/spotstore"
)

// dedupeWindowKHz is the frequency distance under which two spots of the
// same activator are one activation.
const dedupeWindowKHz = 1.0

// DisplaySpot is the read-only projection handed to displays.
type DisplaySpot struct {
	Index     int       `json:"index"`
	Time      string    `json:"time"`
	Frequency string    `json:"frequency"`
	Mode      string    `json:"mode"`
	Programme string    `json:"programme"`
	Reference string    `json:"reference"`
	Activator string    `json:"activator"`
	Comment   string    `json:"comment"`
	Locator   string    `json:"locator"`
	Distance  string    `json:"distance"`
	Origin    string    `json:"origin"`
	Timestamp time.Time `json:"timestamp"`
}

// Aggregator builds DisplaySpot lists relative to a home location.
type Aggregator struct {
	home  spot.Point
	clock clockwork.Clock
}

// New returns an aggregator measuring distances from home. A nil clock uses
// the real clock.
func New(home spot.Point, clock clockwork.Clock) *Aggregator {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Aggregator{home: home, clock: clock}
}

// Build filters, ranks and deduplicates the snapshot and renders it.
func (a *Aggregator) Build(snap spotstore.Snapshot, f *filter.Filter) []DisplaySpot {
	selected := Select(snap, f)
	now := a.clock.Now()
	out := make([]DisplaySpot, len(selected))
	for i, s := range selected {
		out[i] = a.render(i, s, now)
	}
	return out
}

// Select returns the spots that pass f, newest first, with near-duplicates
// of the same activator removed. The snapshot is not modified.
func Select(snap spotstore.Snapshot, f *filter.Filter) []spot.Spot {
	var working []spot.Spot
	for _, src := range orderedSources(snap) {
		for _, s := range snap[src].Spots {
			if f.Match(s) {
				working = append(working, s)
			}
		}
	}

	sort.SliceStable(working, func(i, j int) bool {
		return working[i].Time.After(working[j].Time)
	})

	// Walking newest-first means the kept instance is always the latest.
	kept := make([]spot.Spot, 0, len(working))
	index := make(map[uint64][]int, len(working))
	for _, s := range working {
		bucket := frequencyBucket(s.Frequency)
		if isDuplicate(kept, index, s, bucket) {
			continue
		}
		key := dedupeKey(s.Activator, bucket)
		index[key] = append(index[key], len(kept))
		kept = append(kept, s)
	}
	return kept
}

// frequencyBucket truncates to whole kHz. Two frequencies closer than the
// dedupe window always land in the same or an adjacent bucket.
func frequencyBucket(freqKHz float64) int64 {
	return int64(math.Floor(freqKHz / dedupeWindowKHz))
}

// dedupeKey hashes the activator and frequency bucket in a fixed layout:
// bytes 0-7 carry the activator hash and bytes 8-15 the bucket.
func dedupeKey(activator string, bucket int64) uint64 {
	var buf [16]byte
	binary.LittleEndian.PutUint64(buf[0:8], xxh3.HashString(activator))
	binary.LittleEndian.PutUint64(buf[8:16], uint64(bucket))
	return xxh3.Hash(buf[:])
}

func isDuplicate(kept []spot.Spot, index map[uint64][]int, s spot.Spot, bucket int64) bool {
	for b := bucket - 1; b <= bucket+1; b++ {
		for _, idx := range index[dedupeKey(s.Activator, b)] {
			other := kept[idx]
			if other.Activator == s.Activator && math.Abs(other.Frequency-s.Frequency) < dedupeWindowKHz {
				return true
			}
		}
	}
	return false
}

// orderedSources fixes the concatenation order so output is deterministic for
// a given snapshot.
func orderedSources(snap spotstore.Snapshot) []spot.Source {
	out := make([]spot.Source, 0, len(snap))
	for src := range snap {
		out = append(out, src)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

func (a *Aggregator) render(index int, s spot.Spot, now time.Time) DisplaySpot {
	d := DisplaySpot{
		Index:     index,
		Time:      humanize.RelTime(s.Time, now, "ago", "from now"),
		Mode:      s.Mode,
		Programme: s.Programme().Label(),
		Reference: s.Reference,
		Activator: s.Activator,
		Comment:   s.Comment,
		Locator:   s.Locator(),
		Origin:    string(s.Source),
		Timestamp: s.Time,
	}
	if s.HasFrequency {
		d.Frequency = fmt.Sprintf("%.1f", s.Frequency)
	}
	if km, ok := s.Distance(a.home); ok {
		d.Distance = fmt.Sprintf("%.0f", km)
	}
	return d
}

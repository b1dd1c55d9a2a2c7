// Package spotstore holds the latest parsed batch per feed. A successful fetch
// replaces its source's batch wholesale; readers get an immutable snapshot.
package spotstore

import (
	"sync"
	"time"

	"spothunter/spot"
)

// Batch is one source's most recent spots.
type Batch struct {
	Spots    []spot.Spot
	StoredAt time.Time
}

// Snapshot maps each source to its batch. Callers must not modify the slices.
type Snapshot map[spot.Source]Batch

// Len returns the number of spots across all sources.
func (s Snapshot) Len() int {
	n := 0
	for _, b := range s {
		n += len(b.Spots)
	}
	return n
}

// Store is safe for concurrent use.
type Store struct {
	mu      sync.RWMutex
	batches map[spot.Source]Batch
}

// New returns an empty store.
func New() *Store {
	return &Store{batches: make(map[spot.Source]Batch)}
}

// Replace discards the previous batch for src and installs spots. The slice
// is copied so later changes by the caller are not observed.
func (s *Store) Replace(src spot.Source, spots []spot.Spot, at time.Time) {
	cloned := make([]spot.Spot, len(spots))
	copy(cloned, spots)
	s.mu.Lock()
	s.batches[src] = Batch{Spots: cloned, StoredAt: at}
	s.mu.Unlock()
}

// Snapshot returns the current batches. Installed slices are never written
// again, so sharing them with the caller is safe.
func (s *Store) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(Snapshot, len(s.batches))
	for src, b := range s.batches {
		out[src] = b
	}
	return out
}

// Get returns the batch for one source.
func (s *Store) Get(src spot.Source) (Batch, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	b, ok := s.batches[src]
	return b, ok
}

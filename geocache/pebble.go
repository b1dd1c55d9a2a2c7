package geocache

import (
	"encoding/binary"
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/cockroachdb/pebble"
)

const (
	codePrefix   = "c|"
	regionPrefix = "r|"
	metaCountKey = "meta|count"
)

var errInvalidCount = errors.New("geocache: invalid count metadata")

const (
	defaultCacheSizeBytes  = int64(8 << 20)
	defaultWriteQueueDepth = 16
)

// PebbleOptions tunes the Pebble-backed store. Zero values pick defaults.
type PebbleOptions struct {
	CacheSizeBytes  int64
	WriteQueueDepth int
}

// PebbleStore keeps entries in a Pebble database. Reads go straight to Pebble;
// writes are serialized through a single goroutine and committed as one
// synced batch per region.
type PebbleStore struct {
	db     *pebble.DB
	writes chan writeRequest
	done   chan struct{}
	cache  *pebble.Cache

	// mu guards closed; readers hold it shared across db.Get so Close cannot
	// release Pebble under them.
	mu     sync.RWMutex
	closed bool
	count  atomic.Int64
}

type writeRequest struct {
	region  Region
	entries []Entry
	resp    chan error
}

// OpenPebble opens or creates the store directory at path.
func OpenPebble(path string, opts PebbleOptions) (*PebbleStore, error) {
	if strings.TrimSpace(path) == "" {
		return nil, errors.New("geocache: database path is empty")
	}
	if opts.CacheSizeBytes <= 0 {
		opts.CacheSizeBytes = defaultCacheSizeBytes
	}
	if opts.WriteQueueDepth <= 0 {
		opts.WriteQueueDepth = defaultWriteQueueDepth
	}

	if info, err := os.Stat(path); err == nil {
		if !info.IsDir() {
			return nil, fmt.Errorf("geocache: %s exists and is not a directory", path)
		}
	} else if !os.IsNotExist(err) {
		return nil, fmt.Errorf("geocache: stat path: %w", err)
	}
	if err := os.MkdirAll(path, 0o755); err != nil {
		return nil, fmt.Errorf("geocache: ensure directory: %w", err)
	}

	cache := pebble.NewCache(opts.CacheSizeBytes)
	db, err := pebble.Open(path, &pebble.Options{Cache: cache})
	if err != nil {
		cache.Unref()
		return nil, fmt.Errorf("geocache: open: %w", err)
	}

	count, err := loadCount(db)
	if err != nil {
		_ = db.Close()
		cache.Unref()
		return nil, err
	}

	s := &PebbleStore{
		db:     db,
		writes: make(chan writeRequest, opts.WriteQueueDepth),
		done:   make(chan struct{}),
		cache:  cache,
	}
	s.count.Store(count)
	go s.writeLoop()
	return s, nil
}

// Get returns the entry for code. A missing code is (Entry{}, false, nil).
func (s *PebbleStore) Get(code string) (Entry, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return Entry{}, false, ErrClosed
	}
	code = normalizeCode(code)
	if code == "" {
		return Entry{}, false, nil
	}
	value, closer, err := s.db.Get([]byte(codePrefix + code))
	if err != nil {
		if errors.Is(err, pebble.ErrNotFound) {
			return Entry{}, false, nil
		}
		return Entry{}, false, fmt.Errorf("geocache: get %s: %w", code, err)
	}
	defer closer.Close()
	entry, err := decodeEntry(code, value)
	if err != nil {
		return Entry{}, false, fmt.Errorf("geocache: decode %s: %w", code, err)
	}
	return entry, true, nil
}

// RegionLoaded reports whether the region listing was stored before.
func (s *PebbleStore) RegionLoaded(region Region) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return false, ErrClosed
	}
	_, closer, err := s.db.Get([]byte(regionPrefix + region.Key()))
	if err != nil {
		if errors.Is(err, pebble.ErrNotFound) {
			return false, nil
		}
		return false, fmt.Errorf("geocache: region %s: %w", region.Key(), err)
	}
	closer.Close()
	return true, nil
}

// PutRegion stores every entry of a region plus its loaded marker.
func (s *PebbleStore) PutRegion(region Region, entries []Entry) error {
	resp := make(chan error, 1)
	if err := s.enqueue(writeRequest{region: region, entries: entries, resp: resp}); err != nil {
		return err
	}
	return <-resp
}

// Count returns the number of stored codes.
func (s *PebbleStore) Count() (int64, error) {
	if s.isClosed() {
		return 0, ErrClosed
	}
	return s.count.Load(), nil
}

// Close drains the writer and closes Pebble. Safe to call twice.
func (s *PebbleStore) Close() error {
	if !s.closeWriter() {
		return nil
	}
	<-s.done
	err := s.db.Close()
	if s.cache != nil {
		s.cache.Unref()
		s.cache = nil
	}
	return err
}

func (s *PebbleStore) isClosed() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.closed
}

func (s *PebbleStore) enqueue(req writeRequest) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return ErrClosed
	}
	s.writes <- req
	return nil
}

func (s *PebbleStore) closeWriter() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return false
	}
	s.closed = true
	close(s.writes)
	return true
}

func (s *PebbleStore) writeLoop() {
	defer close(s.done)
	for req := range s.writes {
		req.resp <- s.applyRegion(req.region, req.entries)
	}
}

// applyRegion commits the region in one batch so readers never observe a
// partially populated region.
func (s *PebbleStore) applyRegion(region Region, entries []Entry) error {
	batch := s.db.NewBatch()
	defer batch.Close()

	count := s.count.Load()
	added := int64(0)
	seen := make(map[string]struct{}, len(entries))
	for _, e := range entries {
		code := normalizeCode(e.Code)
		if code == "" {
			continue
		}
		key := []byte(codePrefix + code)
		if _, dup := seen[code]; !dup {
			seen[code] = struct{}{}
			_, closer, err := s.db.Get(key)
			switch {
			case err == nil:
				closer.Close()
			case errors.Is(err, pebble.ErrNotFound):
				added++
			default:
				return fmt.Errorf("geocache: lookup %s: %w", code, err)
			}
		}
		if err := batch.Set(key, encodeEntry(e), nil); err != nil {
			return fmt.Errorf("geocache: batch set %s: %w", code, err)
		}
	}
	if err := batch.Set([]byte(regionPrefix+region.Key()), nil, nil); err != nil {
		return fmt.Errorf("geocache: batch set region %s: %w", region.Key(), err)
	}
	if added > 0 {
		if err := batch.Set([]byte(metaCountKey), encodeCount(count+added), nil); err != nil {
			return fmt.Errorf("geocache: batch set count: %w", err)
		}
	}
	if err := batch.Commit(pebble.Sync); err != nil {
		return fmt.Errorf("geocache: batch commit: %w", err)
	}
	if added > 0 {
		s.count.Store(count + added)
	}
	return nil
}

func encodeCount(count int64) []byte {
	buf := make([]byte, 8)
	binary.BigEndian.PutUint64(buf, uint64(count))
	return buf
}

func loadCount(db *pebble.DB) (int64, error) {
	value, closer, err := db.Get([]byte(metaCountKey))
	if err == nil {
		defer closer.Close()
		if len(value) != 8 {
			return 0, errInvalidCount
		}
		return int64(binary.BigEndian.Uint64(value)), nil
	}
	if !errors.Is(err, pebble.ErrNotFound) {
		return 0, fmt.Errorf("geocache: read count: %w", err)
	}
	return computeCount(db)
}

func computeCount(db *pebble.DB) (int64, error) {
	iter, err := db.NewIter(iterOptionsForPrefix(codePrefix))
	if err != nil {
		return 0, fmt.Errorf("geocache: count iterator: %w", err)
	}
	defer iter.Close()
	var count int64
	for iter.First(); iter.Valid(); iter.Next() {
		count++
	}
	if err := iter.Error(); err != nil {
		return 0, fmt.Errorf("geocache: count iterate: %w", err)
	}
	return count, nil
}

func iterOptionsForPrefix(prefix string) *pebble.IterOptions {
	lower := []byte(prefix)
	return &pebble.IterOptions{LowerBound: lower, UpperBound: prefixUpperBound(lower)}
}

func prefixUpperBound(prefix []byte) []byte {
	if len(prefix) == 0 {
		return nil
	}
	upper := make([]byte, len(prefix))
	copy(upper, prefix)
	for i := len(upper) - 1; i >= 0; i-- {
		if upper[i] != 0xFF {
			upper[i]++
			return upper[:i+1]
		}
	}
	return nil
}

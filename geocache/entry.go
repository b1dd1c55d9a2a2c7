// Package geocache resolves location codes (summit references) to a locator
// and coordinates. Lookups are answered from an in-memory LRU, then from a
// durable store, and only on a miss from a remote region listing that is
// stored whole so neighbouring codes never need another request.
package geocache

import (
	"context"
	"encoding/binary"
	"errors"
	"math"
	"regexp"
	"strings"
)

// ErrClosed is returned by stores after Close.
var ErrClosed = errors.New("geocache: store is closed")

var errInvalidEntry = errors.New("geocache: invalid entry encoding")

// Entry is the cached location of a single code.
type Entry struct {
	Code      string  `json:"summitCode"`
	Locator   string  `json:"locator"`
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// Region is the coarse key a remote lookup is issued for, e.g. W7O/CN.
type Region struct {
	Association string
	Name        string
}

// Key returns the canonical "ASSOC/RG" form.
func (r Region) Key() string {
	return r.Association + "/" + r.Name
}

var regionRe = regexp.MustCompile(`^([A-Z0-9]{1,3})/([A-Z]{2})-\d+$`)

// ParseRegion extracts the region of a summit code like "W7O/CN-001".
func ParseRegion(code string) (Region, bool) {
	m := regionRe.FindStringSubmatch(normalizeCode(code))
	if m == nil {
		return Region{}, false
	}
	return Region{Association: m[1], Name: m[2]}, true
}

func normalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// Store is the durable code → Entry map. PutRegion must make every entry of
// the region and its loaded marker visible together.
type Store interface {
	Get(code string) (Entry, bool, error)
	PutRegion(region Region, entries []Entry) error
	RegionLoaded(region Region) (bool, error)
	Count() (int64, error)
	Close() error
}

// RegionFetcher lists every code of a region from the remote authority.
type RegionFetcher interface {
	FetchRegion(ctx context.Context, region Region) ([]Entry, error)
}

const entryVersion = 1

// encodeEntry packs lat/lon as float64 bits followed by the locator.
func encodeEntry(e Entry) []byte {
	buf := make([]byte, 1+8+8+len(e.Locator))
	buf[0] = entryVersion
	binary.BigEndian.PutUint64(buf[1:9], math.Float64bits(e.Latitude))
	binary.BigEndian.PutUint64(buf[9:17], math.Float64bits(e.Longitude))
	copy(buf[17:], e.Locator)
	return buf
}

func decodeEntry(code string, raw []byte) (Entry, error) {
	if len(raw) < 17 || raw[0] != entryVersion {
		return Entry{}, errInvalidEntry
	}
	return Entry{
		Code:      code,
		Latitude:  math.Float64frombits(binary.BigEndian.Uint64(raw[1:9])),
		Longitude: math.Float64frombits(binary.BigEndian.Uint64(raw[9:17])),
		Locator:   string(raw[17:]),
	}, nil
}

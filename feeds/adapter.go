// Package feeds turns raw feed payloads into normalized spots. Each feed has
// one Adapter; the Registry maps a source tag to its adapter.
package feeds

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"spothunter/geocache"
	"spothunter/spot"
)

var (
	// ErrUnknownSource is returned when no adapter is registered for a tag.
	ErrUnknownSource = errors.New("feeds: unknown source")
	// ErrPayload means the payload was not a JSON array of records.
	ErrPayload = errors.New("feeds: payload is not a JSON array")
)

// Adapter parses one feed's payload.
type Adapter interface {
	Source() spot.Source
	Parse(ctx context.Context, payload []byte) (ParseReport, error)
}

// SummitResolver resolves a summit reference to its location.
type SummitResolver interface {
	Resolve(ctx context.Context, code string) (geocache.Entry, bool)
}

// RecordError describes one rejected record of a batch.
type RecordError struct {
	Index int
	Err   error
}

func (e *RecordError) Error() string {
	return fmt.Sprintf("record %d: %v", e.Index, e.Err)
}

func (e *RecordError) Unwrap() error { return e.Err }

// ParseReport is the outcome of parsing one payload: the spots that parsed
// and the records that did not.
type ParseReport struct {
	Spots    []spot.Spot
	Rejected []*RecordError
}

// Err returns the first rejected record as an error, or nil.
func (r ParseReport) Err() error {
	if len(r.Rejected) == 0 {
		return nil
	}
	return r.Rejected[0]
}

func (r *ParseReport) reject(index int, err error) {
	r.Rejected = append(r.Rejected, &RecordError{Index: index, Err: err})
}

// Registry is the explicit source tag → adapter table.
type Registry struct {
	adapters map[spot.Source]Adapter
}

// NewRegistry registers the four built-in adapters. resolver may be nil, in
// which case summit spots carry no location.
func NewRegistry(resolver SummitResolver) *Registry {
	r := &Registry{adapters: make(map[spot.Source]Adapter, 4)}
	r.Register(POTA{})
	r.Register(SOTA{Resolver: resolver})
	r.Register(DXSummit{})
	r.Register(DXHeat{})
	return r
}

// Register adds or replaces the adapter for a.Source().
func (r *Registry) Register(a Adapter) {
	r.adapters[a.Source()] = a
}

// Lookup returns the adapter for src.
func (r *Registry) Lookup(src spot.Source) (Adapter, error) {
	a, ok := r.adapters[src]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownSource, src)
	}
	return a, nil
}

// Sources lists registered tags in sorted order.
func (r *Registry) Sources() []spot.Source {
	out := make([]spot.Source, 0, len(r.adapters))
	for src := range r.adapters {
		out = append(out, src)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

package geocache

import (
	"context"
	"fmt"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"

	"spothunter/internal/ratelimit"
	"spothunter/stats"
)

const (
	defaultLRUSize     = 4096
	failureLogInterval = time.Minute
)

// Resolver answers code lookups from memory, then the durable store, then a
// single remote region request. It never fails the caller: any error is
// logged and reported as not found.
type Resolver struct {
	store   Store
	remote  RegionFetcher
	front   *lru.Cache[string, Entry]
	group   singleflight.Group
	metrics *stats.Metrics
	log     zerolog.Logger

	// throttles region failure warnings
	failures *ratelimit.Counter
}

// ResolverOption customizes a Resolver.
type ResolverOption func(*Resolver)

// WithMetrics attaches Prometheus counters.
func WithMetrics(m *stats.Metrics) ResolverOption {
	return func(r *Resolver) { r.metrics = m }
}

// WithLogger sets the logger used for lookup failures.
func WithLogger(l zerolog.Logger) ResolverOption {
	return func(r *Resolver) { r.log = l }
}

// NewResolver builds a resolver over store and remote. lruSize <= 0 uses the default.
func NewResolver(store Store, remote RegionFetcher, lruSize int, opts ...ResolverOption) (*Resolver, error) {
	if store == nil {
		return nil, fmt.Errorf("geocache: nil store")
	}
	if lruSize <= 0 {
		lruSize = defaultLRUSize
	}
	front, err := lru.New[string, Entry](lruSize)
	if err != nil {
		return nil, fmt.Errorf("geocache: lru: %w", err)
	}
	r := &Resolver{
		store:    store,
		remote:   remote,
		front:    front,
		log:      zerolog.Nop(),
		failures: ratelimit.NewCounter(failureLogInterval, nil),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r, nil
}

// Resolve returns the location of code, or false when it is unknown or the
// lookup failed. A cancelled ctx reports false without touching the store.
func (r *Resolver) Resolve(ctx context.Context, code string) (Entry, bool) {
	code = normalizeCode(code)
	if code == "" || ctx.Err() != nil {
		return Entry{}, false
	}
	if e, ok := r.front.Get(code); ok {
		r.metrics.GeoLookup("lru")
		return e, true
	}
	if e, ok := r.fromStore(code); ok {
		r.metrics.GeoLookup("store")
		return e, true
	}

	region, ok := ParseRegion(code)
	if !ok {
		r.log.Debug().Str("code", code).Msg("code has no recognizable region")
		r.metrics.GeoLookup("miss")
		return Entry{}, false
	}
	loaded, err := r.store.RegionLoaded(region)
	if err != nil {
		r.log.Warn().Err(err).Str("region", region.Key()).Msg("region marker lookup failed")
		r.metrics.GeoLookup("miss")
		return Entry{}, false
	}
	if !loaded {
		if ctx.Err() != nil {
			return Entry{}, false
		}
		if err := r.loadRegion(ctx, region); err != nil {
			if total, suppressed, ok := r.failures.Inc(); ok {
				r.log.Warn().Err(err).Str("code", code).Str("region", region.Key()).
					Uint64("failures", total).Uint64("suppressed", suppressed).Msg("region lookup failed")
			}
			r.metrics.GeoLookup("miss")
			return Entry{}, false
		}
	}

	if e, ok := r.fromStore(code); ok {
		r.metrics.GeoLookup("remote")
		return e, true
	}
	r.metrics.GeoLookup("miss")
	return Entry{}, false
}

func (r *Resolver) fromStore(code string) (Entry, bool) {
	e, ok, err := r.store.Get(code)
	if err != nil {
		r.log.Warn().Err(err).Str("code", code).Msg("geo cache read failed")
		return Entry{}, false
	}
	if ok {
		r.front.Add(code, e)
	}
	return e, ok
}

// loadRegion fetches and stores a region once, however many callers miss on
// it at the same time.
func (r *Resolver) loadRegion(ctx context.Context, region Region) error {
	if r.remote == nil {
		return fmt.Errorf("geocache: no remote configured")
	}
	_, err, _ := r.group.Do(region.Key(), func() (any, error) {
		// A concurrent caller may have finished the region between our
		// marker check and entering the group.
		if loaded, err := r.store.RegionLoaded(region); err == nil && loaded {
			return nil, nil
		}
		entries, err := r.remote.FetchRegion(ctx, region)
		r.metrics.RegionFetch(err)
		if err != nil {
			return nil, err
		}
		if err := r.store.PutRegion(region, entries); err != nil {
			return nil, err
		}
		r.log.Debug().Str("region", region.Key()).Int("codes", len(entries)).Msg("region cached")
		return nil, nil
	})
	return err
}

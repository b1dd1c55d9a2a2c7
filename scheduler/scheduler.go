// Package scheduler polls every configured feed on a fixed interval, installs
// successful batches into the spot store and rebuilds the aggregate after a
// debounce delay.
//
// All state transitions happen on one event loop. Fetches run in their own
// goroutines and report back over a channel whose capacity equals the number
// of feeds; because a source never has more than one request in flight, those
// sends never block.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog"

	"spothunter/aggregate"
	"spothunter/feeds"
	"spothunter/filter"
	"spothunter/spot"
	"spothunter/spotstore"
	"spothunter/stats"
)

// State is a source's position in the Idle → Requesting → Idle cycle.
type State string

const (
	StateIdle       State = "idle"
	StateRequesting State = "requesting"
)

// Feed binds a source to its endpoint and adapter.
type Feed struct {
	Source  spot.Source
	URL     string
	Strict  bool // any rejected record fails the whole batch
	Adapter feeds.Adapter
}

// Fetcher retrieves a feed payload. Implementations must honour ctx.
type Fetcher interface {
	Fetch(ctx context.Context, url string) ([]byte, error)
}

// Timing holds the scheduler durations.
type Timing struct {
	Interval time.Duration
	Timeout  time.Duration
	Debounce time.Duration
}

// SourceStatus is a point-in-time view of one source.
type SourceStatus struct {
	Source      spot.Source `json:"source"`
	State       State       `json:"state"`
	LastAttempt time.Time   `json:"last_attempt"`
	LastSuccess time.Time   `json:"last_success"`
	LastError   string      `json:"last_error,omitempty"`
	LastCount   int         `json:"last_count"`
	Skipped     uint64      `json:"skipped_cycles"`
	Dropped     uint64      `json:"dropped_records"`
}

type fetchResult struct {
	source  spot.Source
	report  feeds.ParseReport
	err     error
	elapsed time.Duration
}

// Scheduler drives the fetch → store → aggregate cycle.
type Scheduler struct {
	feeds   []Feed
	bySrc   map[spot.Source]Feed
	fetcher Fetcher
	store   *spotstore.Store
	agg     *aggregate.Aggregator
	display aggregate.Display
	timing  Timing

	clock   clockwork.Clock
	log     zerolog.Logger
	metrics *stats.Metrics
	tracker *stats.Tracker

	filter atomic.Pointer[filter.Filter]

	results   chan fetchResult
	refresh   chan struct{} // debounced recompute request
	rebuildCh chan struct{} // immediate recompute request

	// owned by the loop goroutine
	debounce clockwork.Timer

	mu     sync.Mutex
	status map[spot.Source]*SourceStatus

	wg sync.WaitGroup
}

// Option customizes a Scheduler.
type Option func(*Scheduler)

// WithClock replaces the real clock, for tests.
func WithClock(c clockwork.Clock) Option { return func(s *Scheduler) { s.clock = c } }

// WithLogger sets the scheduler logger.
func WithLogger(l zerolog.Logger) Option { return func(s *Scheduler) { s.log = l } }

// WithMetrics attaches Prometheus collectors.
func WithMetrics(m *stats.Metrics) Option { return func(s *Scheduler) { s.metrics = m } }

// WithTracker attaches the running counters shown on the dashboard.
func WithTracker(t *stats.Tracker) Option { return func(s *Scheduler) { s.tracker = t } }

// New validates its inputs and builds a scheduler. Nothing runs until Start.
func New(feedList []Feed, fetcher Fetcher, store *spotstore.Store, agg *aggregate.Aggregator,
	display aggregate.Display, initial *filter.Filter, timing Timing, opts ...Option) (*Scheduler, error) {
	if fetcher == nil || store == nil || agg == nil || display == nil || initial == nil {
		return nil, errors.New("scheduler: missing collaborator")
	}
	if timing.Interval <= 0 || timing.Timeout <= 0 || timing.Debounce <= 0 {
		return nil, fmt.Errorf("scheduler: durations must be positive: %+v", timing)
	}
	s := &Scheduler{
		bySrc:     make(map[spot.Source]Feed, len(feedList)),
		fetcher:   fetcher,
		store:     store,
		agg:       agg,
		display:   display,
		timing:    timing,
		clock:     clockwork.NewRealClock(),
		log:       zerolog.Nop(),
		refresh:   make(chan struct{}, 1),
		rebuildCh: make(chan struct{}, 1),
		status:    make(map[spot.Source]*SourceStatus, len(feedList)),
	}
	for _, f := range feedList {
		if f.Adapter == nil {
			return nil, fmt.Errorf("scheduler: feed %s has no adapter", f.Source)
		}
		if _, dup := s.bySrc[f.Source]; dup {
			return nil, fmt.Errorf("scheduler: feed %s configured twice", f.Source)
		}
		s.feeds = append(s.feeds, f)
		s.bySrc[f.Source] = f
		s.status[f.Source] = &SourceStatus{Source: f.Source, State: StateIdle}
	}
	s.results = make(chan fetchResult, len(s.feeds))
	s.filter.Store(initial)
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Start launches the event loop. The first fetch cycle runs immediately.
func (s *Scheduler) Start(ctx context.Context) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.run(ctx)
	}()
}

// Wait blocks until the loop started by Start and every fetch it launched
// have returned.
func (s *Scheduler) Wait() {
	s.wg.Wait()
}

// Filter returns the filter applied on the next build.
func (s *Scheduler) Filter() *filter.Filter {
	return s.filter.Load()
}

// SetFilter swaps the active filter and rebuilds without waiting for the
// debounce delay.
func (s *Scheduler) SetFilter(f *filter.Filter) {
	if f == nil {
		return
	}
	s.filter.Store(f)
	signal(s.rebuildCh)
}

// Refresh asks for a recompute through the debouncer.
func (s *Scheduler) Refresh() {
	signal(s.refresh)
}

func signal(ch chan struct{}) {
	select {
	case ch <- struct{}{}:
	default:
	}
}

// Status returns a copy of every source's status in configuration order.
func (s *Scheduler) Status() []SourceStatus {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]SourceStatus, 0, len(s.feeds))
	for _, f := range s.feeds {
		out = append(out, *s.status[f.Source])
	}
	return out
}

func (s *Scheduler) run(ctx context.Context) {
	ticker := s.clock.NewTicker(s.timing.Interval)
	defer ticker.Stop()
	defer func() {
		if s.debounce != nil {
			s.debounce.Stop()
			s.debounce = nil
		}
	}()

	s.log.Info().Int("feeds", len(s.feeds)).Dur("interval", s.timing.Interval).Msg("scheduler started")
	s.fetchAll(ctx)

	for {
		var debounceC <-chan time.Time
		if s.debounce != nil {
			debounceC = s.debounce.Chan()
		}
		select {
		case <-ctx.Done():
			s.log.Info().Msg("scheduler stopped")
			return
		case <-ticker.Chan():
			s.fetchAll(ctx)
		case res := <-s.results:
			s.handleResult(res)
		case <-s.refresh:
			s.arm()
		case <-s.rebuildCh:
			if s.debounce != nil {
				s.debounce.Stop()
				s.debounce = nil
			}
			s.rebuild()
		case <-debounceC:
			s.debounce = nil
			s.rebuild()
		}
	}
}

// fetchAll starts one fetch per idle source. A source still requesting from
// the previous cycle is skipped, not queued.
func (s *Scheduler) fetchAll(ctx context.Context) {
	now := s.clock.Now()
	for _, f := range s.feeds {
		s.mu.Lock()
		st := s.status[f.Source]
		if st.State == StateRequesting {
			st.Skipped++
			s.mu.Unlock()
			s.log.Debug().Str("source", string(f.Source)).Msg("previous request still in flight, skipping cycle")
			s.metrics.ObserveFetch(string(f.Source), "skipped", 0)
			continue
		}
		st.State = StateRequesting
		st.LastAttempt = now
		s.mu.Unlock()

		s.log.Debug().Str("source", string(f.Source)).Msg("fetch started")
		s.wg.Add(1)
		go s.fetch(ctx, f)
	}
}

func (s *Scheduler) fetch(ctx context.Context, f Feed) {
	defer s.wg.Done()
	start := s.clock.Now()
	fctx, cancel := context.WithTimeout(ctx, s.timing.Timeout)
	defer cancel()

	res := fetchResult{source: f.Source}
	body, err := s.fetcher.Fetch(fctx, f.URL)
	if err == nil {
		res.report, err = f.Adapter.Parse(fctx, body)
	}
	res.err = err
	res.elapsed = s.clock.Since(start)

	select {
	case s.results <- res:
	case <-ctx.Done():
	}
}

func (s *Scheduler) handleResult(res fetchResult) {
	feed := s.bySrc[res.source]
	src := string(res.source)
	rejected := len(res.report.Rejected)

	outcome := "ok"
	err := res.err
	if err == nil && feed.Strict && rejected > 0 {
		err = fmt.Errorf("strict feed rejected %d record(s): %w", rejected, res.report.Err())
		outcome = "rejected"
	} else if err != nil {
		outcome = "error"
	}

	now := s.clock.Now()
	s.mu.Lock()
	st := s.status[res.source]
	st.State = StateIdle
	st.Dropped += uint64(rejected)
	if err != nil {
		st.LastError = err.Error()
	} else {
		st.LastError = ""
		st.LastSuccess = now
		st.LastCount = len(res.report.Spots)
	}
	s.mu.Unlock()

	s.metrics.ObserveFetch(src, outcome, res.elapsed)
	s.metrics.AddDropped(src, rejected)
	if s.tracker != nil {
		s.tracker.AddDropped(src, rejected)
	}

	if err != nil {
		s.log.Warn().Err(err).Str("source", src).Msg("fetch failed, keeping previous batch")
		return
	}
	if rejected > 0 {
		s.log.Warn().Err(res.report.Err()).Str("source", src).Int("rejected", rejected).Msg("dropped invalid records")
	}

	s.store.Replace(res.source, res.report.Spots, now)
	s.metrics.SetStored(src, len(res.report.Spots))
	if s.tracker != nil {
		s.tracker.AddSource(src, len(res.report.Spots))
		for _, sp := range res.report.Spots {
			s.tracker.IncrementMode(sp.Mode)
		}
	}
	s.log.Debug().Str("source", src).Int("spots", len(res.report.Spots)).Dur("elapsed", res.elapsed).Msg("batch stored")
	s.arm()
}

// arm schedules a rebuild after the debounce delay unless one is already
// pending, in which case the request is absorbed.
func (s *Scheduler) arm() {
	if s.debounce != nil {
		s.log.Debug().Msg("recompute already scheduled")
		return
	}
	s.debounce = s.clock.NewTimer(s.timing.Debounce)
	s.log.Debug().Dur("delay", s.timing.Debounce).Msg("recompute scheduled")
}

func (s *Scheduler) rebuild() {
	snap := s.store.Snapshot()
	out := s.agg.Build(snap, s.filter.Load())
	s.display.Publish(out)
	s.metrics.Recompute(len(out))
	s.log.Debug().Int("input", snap.Len()).Int("output", len(out)).Msg("aggregate rebuilt")
}

package scheduler

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"spothunter/aggregate"
	"spothunter/feeds"
	"spothunter/filter"
	"spothunter/spot"
	"spothunter/spotstore"
)

var timing = Timing{Interval: 30 * time.Second, Timeout: 5 * time.Second, Debounce: 10 * time.Second}

const (
	potaURL     = "test://pota"
	dxsummitURL = "test://dxsummit"
)

const potaBody = `[{"activator":"K1ABC","frequency":"14.250","mode":"SSB","reference":"US-0001",
  "spotTime":"2025-08-01T11:50:00Z","grid6":"FN31pr","comments":""}]`

const dxsummitBody = `[{"frequency":21300,"dx_call":"VK9XX","time":"2025-08-01T11:55:00",
  "info":"","dx_latitude":-10.5,"dx_longitude":105.7}]`

// scriptedFetcher serves canned responses per URL. A URL with a gate blocks
// until the gate is closed or the context ends.
type scriptedFetcher struct {
	mu    sync.Mutex
	body  map[string]string
	err   map[string]error
	gate  map[string]chan struct{}
	calls map[string]int
}

func newScriptedFetcher() *scriptedFetcher {
	return &scriptedFetcher{
		body:  map[string]string{potaURL: potaBody, dxsummitURL: dxsummitBody},
		err:   map[string]error{},
		gate:  map[string]chan struct{}{},
		calls: map[string]int{},
	}
}

func (f *scriptedFetcher) Fetch(ctx context.Context, url string) ([]byte, error) {
	f.mu.Lock()
	f.calls[url]++
	gate := f.gate[url]
	f.mu.Unlock()
	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.err[url]; err != nil {
		return nil, err
	}
	return []byte(f.body[url]), nil
}

func (f *scriptedFetcher) set(url, body string, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.body[url] = body
	f.err[url] = err
}

func (f *scriptedFetcher) callCount(url string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[url]
}

type publishRecorder struct {
	count atomic.Int32
	last  atomic.Pointer[[]aggregate.DisplaySpot]
}

func (p *publishRecorder) Publish(spots []aggregate.DisplaySpot) {
	p.last.Store(&spots)
	p.count.Add(1)
}

func (p *publishRecorder) latest() []aggregate.DisplaySpot {
	if l := p.last.Load(); l != nil {
		return *l
	}
	return nil
}

type harness struct {
	sched   *Scheduler
	clock   *clockwork.FakeClock
	fetcher *scriptedFetcher
	store   *spotstore.Store
	display *publishRecorder
	cancel  context.CancelFunc
}

func newHarness(t *testing.T, strictPOTA bool, configure func(*scriptedFetcher)) *harness {
	t.Helper()
	clock := clockwork.NewFakeClockAt(time.Date(2025, 8, 1, 12, 0, 0, 0, time.UTC))
	fetcher := newScriptedFetcher()
	if configure != nil {
		configure(fetcher)
	}
	store := spotstore.New()
	display := &publishRecorder{}
	f, err := filter.New([]string{"20m", "15m"}, []string{"SSB", ""})
	require.NoError(t, err)

	sched, err := New([]Feed{
		{Source: spot.SourcePOTA, URL: potaURL, Strict: strictPOTA, Adapter: feeds.POTA{}},
		{Source: spot.SourceDXSummit, URL: dxsummitURL, Adapter: feeds.DXSummit{}},
	}, fetcher, store, aggregate.New(spot.Point{}, clock), display, f, timing, WithClock(clock))
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	sched.Start(ctx)
	h := &harness{sched: sched, clock: clock, fetcher: fetcher, store: store, display: display, cancel: cancel}
	t.Cleanup(func() {
		cancel()
		sched.Wait()
	})
	return h
}

func (h *harness) waitIdle(t *testing.T) {
	t.Helper()
	require.Eventually(t, func() bool {
		for _, st := range h.sched.Status() {
			if st.State != StateIdle {
				return false
			}
		}
		return true
	}, 2*time.Second, 5*time.Millisecond)
}

func (h *harness) blockUntil(t *testing.T, waiters int) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, h.clock.BlockUntilContext(ctx, waiters))
}

func TestBurstOfCompletionsProducesOneRebuild(t *testing.T) {
	h := newHarness(t, false, nil)

	require.Eventually(t, func() bool { return h.store.Snapshot().Len() == 2 }, 2*time.Second, 5*time.Millisecond)
	h.waitIdle(t)
	// ticker + one debounce timer
	h.blockUntil(t, 2)
	assert.Equal(t, int32(0), h.display.count.Load(), "nothing published before the debounce delay")

	h.clock.Advance(timing.Debounce)
	require.Eventually(t, func() bool { return h.display.count.Load() == 1 }, 2*time.Second, 5*time.Millisecond)
	assert.Never(t, func() bool { return h.display.count.Load() > 1 }, 100*time.Millisecond, 10*time.Millisecond)

	out := h.display.latest()
	require.Len(t, out, 2)
	assert.Equal(t, "VK9XX", out[0].Activator)
	assert.Equal(t, "K1ABC", out[1].Activator)
}

func TestSlowSourceIsSkippedNotQueued(t *testing.T) {
	gate := make(chan struct{})
	h := newHarness(t, false, func(f *scriptedFetcher) { f.gate[potaURL] = gate })

	require.Eventually(t, func() bool { return h.fetcher.callCount(potaURL) == 1 }, 2*time.Second, 5*time.Millisecond)
	require.Eventually(t, func() bool { return h.fetcher.callCount(dxsummitURL) == 1 }, 2*time.Second, 5*time.Millisecond)
	require.Eventually(t, func() bool { return h.store.Snapshot().Len() == 1 }, 2*time.Second, 5*time.Millisecond)
	h.blockUntil(t, 2)

	h.clock.Advance(timing.Interval)
	require.Eventually(t, func() bool { return h.fetcher.callCount(dxsummitURL) == 2 }, 2*time.Second, 5*time.Millisecond)
	assert.Equal(t, 1, h.fetcher.callCount(potaURL))

	var pota SourceStatus
	require.Eventually(t, func() bool {
		pota = h.sched.Status()[0]
		return pota.Skipped == 1
	}, 2*time.Second, 5*time.Millisecond)
	assert.Equal(t, StateRequesting, pota.State)

	close(gate)
	require.Eventually(t, func() bool { return h.store.Snapshot().Len() == 2 }, 2*time.Second, 5*time.Millisecond)
	h.waitIdle(t)
	h.blockUntil(t, 2)
	h.clock.Advance(timing.Interval - timing.Debounce)
	h.blockUntil(t, 1)
	h.clock.Advance(timing.Debounce)
	require.Eventually(t, func() bool { return h.fetcher.callCount(potaURL) == 2 }, 2*time.Second, 5*time.Millisecond)
}

func TestFailureKeepsPreviousBatch(t *testing.T) {
	h := newHarness(t, false, nil)
	require.Eventually(t, func() bool { return h.store.Snapshot().Len() == 2 }, 2*time.Second, 5*time.Millisecond)
	h.waitIdle(t)

	h.fetcher.set(potaURL, "", errors.New("connection refused"))
	h.fetcher.set(dxsummitURL, `{"not":"an array"}`, nil)
	h.blockUntil(t, 2)
	h.clock.Advance(timing.Interval)

	require.Eventually(t, func() bool {
		for _, st := range h.sched.Status() {
			if st.LastError == "" {
				return false
			}
		}
		return true
	}, 2*time.Second, 5*time.Millisecond)
	assert.Equal(t, 2, h.store.Snapshot().Len(), "stale batches survive failures")
	for _, st := range h.sched.Status() {
		assert.Equal(t, 1, st.LastCount)
		assert.Equal(t, StateIdle, st.State)
	}
}

func TestStrictFeedRejectsWholeBatch(t *testing.T) {
	mixed := `[` + potaBody[1:len(potaBody)-1] + `,{"activator":"","frequency":"14.1","spotTime":"2025-08-01T11:00:00Z","grid6":"FN31"}]`
	h := newHarness(t, true, func(f *scriptedFetcher) { f.body[potaURL] = mixed })

	require.Eventually(t, func() bool {
		st := h.sched.Status()[0]
		return st.State == StateIdle && st.LastError != ""
	}, 2*time.Second, 5*time.Millisecond)
	_, ok := h.store.Get(spot.SourcePOTA)
	assert.False(t, ok)
	assert.Equal(t, uint64(1), h.sched.Status()[0].Dropped)
}

func TestLenientFeedDropsOnlyBadRecords(t *testing.T) {
	mixed := `[` + potaBody[1:len(potaBody)-1] + `,{"activator":"","frequency":"14.1","spotTime":"2025-08-01T11:00:00Z","grid6":"FN31"}]`
	h := newHarness(t, false, func(f *scriptedFetcher) { f.body[potaURL] = mixed })

	require.Eventually(t, func() bool {
		b, ok := h.store.Get(spot.SourcePOTA)
		return ok && len(b.Spots) == 1
	}, 2*time.Second, 5*time.Millisecond)
	h.waitIdle(t)
	st := h.sched.Status()[0]
	assert.Equal(t, "", st.LastError)
	assert.Equal(t, uint64(1), st.Dropped)
}

func TestSetFilterRebuildsImmediately(t *testing.T) {
	h := newHarness(t, false, nil)
	require.Eventually(t, func() bool { return h.store.Snapshot().Len() == 2 }, 2*time.Second, 5*time.Millisecond)
	h.waitIdle(t)

	only15, err := filter.New([]string{"15m"}, []string{""})
	require.NoError(t, err)
	h.sched.SetFilter(only15)

	require.Eventually(t, func() bool { return h.display.count.Load() == 1 }, 2*time.Second, 5*time.Millisecond)
	out := h.display.latest()
	require.Len(t, out, 1)
	assert.Equal(t, "VK9XX", out[0].Activator)
	assert.Same(t, only15, h.sched.Filter())
}

func TestRefreshIsDebounced(t *testing.T) {
	h := newHarness(t, false, func(f *scriptedFetcher) {
		f.body[potaURL] = "[]"
		f.body[dxsummitURL] = "[]"
	})
	h.waitIdle(t)
	h.blockUntil(t, 2)
	h.clock.Advance(timing.Debounce)
	require.Eventually(t, func() bool { return h.display.count.Load() == 1 }, 2*time.Second, 5*time.Millisecond)

	h.sched.Refresh()
	h.sched.Refresh()
	h.blockUntil(t, 2)
	h.clock.Advance(timing.Debounce)
	require.Eventually(t, func() bool { return h.display.count.Load() == 2 }, 2*time.Second, 5*time.Millisecond)
	assert.Empty(t, h.display.latest())
}

func TestNewValidatesInputs(t *testing.T) {
	f, err := filter.New([]string{"20m"}, []string{"SSB"})
	require.NoError(t, err)
	store := spotstore.New()
	agg := aggregate.New(spot.Point{}, nil)
	display := &publishRecorder{}

	_, err = New(nil, newScriptedFetcher(), store, agg, display, f, Timing{})
	assert.Error(t, err)

	_, err = New([]Feed{{Source: spot.SourcePOTA}}, newScriptedFetcher(), store, agg, display, f, timing)
	assert.Error(t, err)

	dup := []Feed{
		{Source: spot.SourcePOTA, Adapter: feeds.POTA{}},
		{Source: spot.SourcePOTA, Adapter: feeds.POTA{}},
	}
	_, err = New(dup, newScriptedFetcher(), store, agg, display, f, timing)
	assert.Error(t, err)
}

// gatedAdapter wraps an adapter and holds Parse until release is closed,
// ignoring ctx the way a record loop over a large payload would.
type gatedAdapter struct {
	feeds.Adapter
	entered chan struct{}
	release chan struct{}
}

func (a *gatedAdapter) Parse(ctx context.Context, payload []byte) (feeds.ParseReport, error) {
	close(a.entered)
	<-a.release
	return a.Adapter.Parse(ctx, payload)
}

func TestWaitJoinsInFlightParse(t *testing.T) {
	clock := clockwork.NewFakeClockAt(time.Date(2025, 8, 1, 12, 0, 0, 0, time.UTC))
	adapter := &gatedAdapter{Adapter: feeds.POTA{}, entered: make(chan struct{}), release: make(chan struct{})}
	f, err := filter.New(nil, nil)
	require.NoError(t, err)
	sched, err := New([]Feed{{Source: spot.SourcePOTA, URL: potaURL, Adapter: adapter}},
		newScriptedFetcher(), spotstore.New(), aggregate.New(spot.Point{}, clock), &publishRecorder{}, f, timing,
		WithClock(clock))
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	sched.Start(ctx)
	select {
	case <-adapter.entered:
	case <-time.After(2 * time.Second):
		t.Fatal("parse never started")
	}
	cancel()

	var waited atomic.Bool
	go func() {
		sched.Wait()
		waited.Store(true)
	}()
	assert.Never(t, waited.Load, 100*time.Millisecond, 5*time.Millisecond)

	close(adapter.release)
	require.Eventually(t, waited.Load, 2*time.Second, 5*time.Millisecond)
}

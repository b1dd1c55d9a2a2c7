package aggregate

import (
	"sync"
	"sync/atomic"
)

// Display receives each completed aggregate. Publish must not block for long;
// it runs on the scheduler's loop.
type Display interface {
	Publish(spots []DisplaySpot)
}

// Board keeps the most recent aggregate for pull-style readers such as the
// HTTP API.
type Board struct {
	latest  atomic.Pointer[[]DisplaySpot]
	mu      sync.Mutex
	waiters []chan struct{}
}

// Publish stores spots as the latest list and wakes any waiters.
func (b *Board) Publish(spots []DisplaySpot) {
	b.latest.Store(&spots)
	b.mu.Lock()
	waiters := b.waiters
	b.waiters = nil
	b.mu.Unlock()
	for _, ch := range waiters {
		close(ch)
	}
}

// Latest returns the most recent list, or nil before the first publish.
func (b *Board) Latest() []DisplaySpot {
	p := b.latest.Load()
	if p == nil {
		return nil
	}
	return *p
}

// Next returns a channel closed on the following Publish.
func (b *Board) Next() <-chan struct{} {
	ch := make(chan struct{})
	b.mu.Lock()
	b.waiters = append(b.waiters, ch)
	b.mu.Unlock()
	return ch
}

// Displays fans one aggregate out to several displays in order.
type Displays []Display

// Publish forwards spots to every display.
func (ds Displays) Publish(spots []DisplaySpot) {
	for _, d := range ds {
		if d != nil {
			d.Publish(spots)
		}
	}
}

// DisplayFunc adapts a function to Display.
type DisplayFunc func([]DisplaySpot)

// Publish calls f(spots).
func (f DisplayFunc) Publish(spots []DisplaySpot) { f(spots) }

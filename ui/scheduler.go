package ui

import (
	"sync"
	"time"
)

// frameScheduler coalesces UI updates and caps draw rate. Updates scheduled
// under the same id between frames collapse to the latest one.
type frameScheduler struct {
	queue        func(func()) // hands a batch to the UI goroutine
	pending      map[string]func()
	order        []string
	mu           sync.Mutex
	quit         chan struct{}
	done         chan struct{}
	stopOnce     sync.Once
	wg           sync.WaitGroup
	frameTime    time.Duration
	drainTimeout time.Duration
}

func newFrameScheduler(queue func(func()), targetFPS int, drainTimeout time.Duration) *frameScheduler {
	if targetFPS <= 0 {
		targetFPS = 30
	}
	if drainTimeout <= 0 {
		drainTimeout = 100 * time.Millisecond
	}
	if queue == nil {
		queue = func(fn func()) { fn() }
	}
	return &frameScheduler{
		queue:        queue,
		pending:      make(map[string]func()),
		quit:         make(chan struct{}),
		done:         make(chan struct{}),
		frameTime:    time.Second / time.Duration(targetFPS),
		drainTimeout: drainTimeout,
	}
}

func (f *frameScheduler) Start() {
	f.wg.Add(1)
	go f.run()
}

func (f *frameScheduler) Stop() {
	f.stopOnce.Do(func() { close(f.quit) })
	select {
	case <-f.done:
	case <-time.After(f.drainTimeout):
	}
}

func (f *frameScheduler) Schedule(id string, fn func()) {
	if f == nil {
		return
	}
	f.mu.Lock()
	if _, ok := f.pending[id]; !ok {
		f.order = append(f.order, id)
	}
	f.pending[id] = fn
	f.mu.Unlock()
}

func (f *frameScheduler) run() {
	defer f.wg.Done()
	defer close(f.done)

	ticker := time.NewTicker(f.frameTime)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			f.flush()
		case <-f.quit:
			f.flush()
			return
		}
	}
}

// flush hands every pending update to the UI goroutine as one batch, in the
// order ids were first scheduled.
func (f *frameScheduler) flush() {
	f.mu.Lock()
	if len(f.pending) == 0 {
		f.mu.Unlock()
		return
	}
	batch := make([]func(), 0, len(f.order))
	for _, id := range f.order {
		batch = append(batch, f.pending[id])
	}
	f.pending = make(map[string]func())
	f.order = f.order[:0]
	f.mu.Unlock()

	f.queue(func() {
		for _, fn := range batch {
			fn()
		}
	})
}

package listkit

import "sync"

// All node and frame state is owned by a single logical context. A
// Dispatcher funnels work onto that context; Background offloads pure
// compute onto a worker goroutine. Callbacks that mutate node state must
// hop back through Async before touching anything.

// Dispatcher is the execution context contract for the engine.
type Dispatcher interface {
	// Async schedules fn on the owner context. Calls are executed in
	// submission order, one at a time.
	Async(fn func())
	// Background schedules fn off the owner context.
	Background(fn func())
}

// SyncDispatcher runs everything immediately on the calling goroutine.
// Useful for tests and for fully synchronous transactions.
type SyncDispatcher struct{}

// Async implements Dispatcher.
func (SyncDispatcher) Async(fn func()) { fn() }

// Background implements Dispatcher.
func (SyncDispatcher) Background(fn func()) { fn() }

// LoopDispatcher owns a goroutine fed by a work channel. This is the
// production owner context.
type LoopDispatcher struct {
	work chan func()
	stop chan struct{}
	once sync.Once
	wg   sync.WaitGroup
}

// NewLoopDispatcher starts the owner goroutine.
func NewLoopDispatcher() *LoopDispatcher {
	d := &LoopDispatcher{
		work: make(chan func(), 64),
		stop: make(chan struct{}),
	}
	d.wg.Add(1)
	go d.run()
	return d
}

func (d *LoopDispatcher) run() {
	defer d.wg.Done()
	for {
		select {
		case fn := <-d.work:
			fn()
		case <-d.stop:
			// Drain anything already queued before exiting.
			for {
				select {
				case fn := <-d.work:
					fn()
				default:
					return
				}
			}
		}
	}
}

// Async implements Dispatcher.
func (d *LoopDispatcher) Async(fn func()) {
	select {
	case d.work <- fn:
	case <-d.stop:
	}
}

// Background implements Dispatcher.
func (d *LoopDispatcher) Background(fn func()) {
	go fn()
}

// Done is closed once Stop has been called. Long-lived feeders select on
// it to shut down with the dispatcher.
func (d *LoopDispatcher) Done() <-chan struct{} { return d.stop }

// Stop shuts the loop down after draining queued work. Safe to call more
// than once.
func (d *LoopDispatcher) Stop() {
	d.once.Do(func() { close(d.stop) })
	d.wg.Wait()
}

package listkit

import "sync"

// transactionQueue strictly serializes transaction bodies: a body runs on
// the owner context and the next queued body does not start until the
// previous one reports settlement through its done callback. Enqueue never
// blocks the caller.
type transactionQueue struct {
	d Dispatcher

	mu      sync.Mutex
	pending []func(done func())
	running bool
}

func newTransactionQueue(d Dispatcher) *transactionQueue {
	return &transactionQueue{d: d}
}

// enqueue schedules body. body receives a done callback that it must invoke
// exactly once, on the owner context, when the transaction has fully
// settled (after its completion callback has fired).
func (q *transactionQueue) enqueue(body func(done func())) {
	q.mu.Lock()
	q.pending = append(q.pending, body)
	start := !q.running
	if start {
		q.running = true
	}
	q.mu.Unlock()
	if start {
		q.d.Async(q.next)
	}
}

// next pops and runs the head transaction on the owner context.
func (q *transactionQueue) next() {
	q.mu.Lock()
	if len(q.pending) == 0 {
		q.running = false
		q.mu.Unlock()
		return
	}
	body := q.pending[0]
	q.pending = q.pending[1:]
	q.mu.Unlock()

	completed := false
	body(func() {
		if completed {
			panic("listkit: transaction done callback invoked twice")
		}
		completed = true
		q.d.Async(q.next)
	})
}

// depth returns the number of transactions waiting behind the running one.
func (q *transactionQueue) depth() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.pending)
}

package socket

import (
	"context"
	"sync"

	"github.com/octavus-ai/chat-runtime-go/chatevent"
)

// eventQueue is the bounded single-consumer queue with single pending
// resolver described in §4.C: at most one goroutine ever waits on ch at a
// time (Trigger/ContinuationEvents own it exclusively per the single-
// threaded cooperative scheduling model, §5), so a plain buffered channel
// already gives the "hand straight to a waiting consumer, else queue"
// behavior a receive naturally provides. close releases any parked
// consumer with a terminator rather than closing ch itself, so a producer
// racing a close never panics on a send to a closed channel — grounded on
// the release-channel idiom chatreduce's blockingTransport test double
// uses for the same cancellation-vs-send race.
type eventQueue struct {
	ch   chan chatevent.Event
	done chan struct{}

	closeOnce sync.Once
}

const defaultQueueCapacity = 64

func newEventQueue(capacity int) *eventQueue {
	if capacity <= 0 {
		capacity = defaultQueueCapacity
	}
	return &eventQueue{
		ch:   make(chan chatevent.Event, capacity),
		done: make(chan struct{}),
	}
}

// push enqueues ev, blocking if the queue is full (back-pressure on the
// sink-consuming goroutine). A push racing close is dropped rather than
// blocked forever.
func (q *eventQueue) push(ev chatevent.Event) {
	select {
	case q.ch <- ev:
	case <-q.done:
	}
}

// pop returns the next event, or ok=false if the queue is closed or ctx is
// cancelled first.
func (q *eventQueue) pop(ctx context.Context) (chatevent.Event, bool) {
	select {
	case ev := <-q.ch:
		return ev, true
	case <-q.done:
		return nil, false
	case <-ctx.Done():
		return nil, false
	}
}

// close terminates the queue; any parked or future pop returns ok=false.
// Idempotent.
func (q *eventQueue) close() {
	q.closeOnce.Do(func() { close(q.done) })
}

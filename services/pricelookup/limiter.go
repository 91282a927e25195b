package pricelookup

import (
	"context"
	"sync"
	"time"
)

// concurrencyLimiter caps in-flight pipeline runs and queues excess
// callers FIFO up to a fixed depth. Callers beyond the queue are rejected
// immediately; queued callers that give up free their slot instead of
// occupying a phantom entry.
type concurrencyLimiter struct {
	mu       sync.Mutex
	inFlight int
	limit    int
	queue    []chan struct{}
	maxQueue int
}

func newConcurrencyLimiter(limit, maxQueue int) *concurrencyLimiter {
	if limit <= 0 {
		limit = 1
	}
	if maxQueue < 0 {
		maxQueue = 0
	}
	return &concurrencyLimiter{limit: limit, maxQueue: maxQueue}
}

// acquire takes a slot, waiting in line for at most maxWait. The returned
// error is ErrConcurrencyExhausted on a full queue or an expired wait, and
// ctx.Err() when the caller's own context ends first.
func (l *concurrencyLimiter) acquire(ctx context.Context, maxWait time.Duration) error {
	l.mu.Lock()
	if l.inFlight < l.limit && len(l.queue) == 0 {
		l.inFlight++
		l.mu.Unlock()
		return nil
	}
	if len(l.queue) >= l.maxQueue {
		l.mu.Unlock()
		return ErrConcurrencyExhausted{RetryAfter: maxWait}
	}
	ready := make(chan struct{})
	l.queue = append(l.queue, ready)
	l.mu.Unlock()

	timer := time.NewTimer(maxWait)
	defer timer.Stop()

	select {
	case <-ready:
		return nil
	case <-ctx.Done():
		l.abandon(ready)
		return ctx.Err()
	case <-timer.C:
		l.abandon(ready)
		return ErrConcurrencyExhausted{RetryAfter: maxWait}
	}
}

// release frees a slot, handing it to the head of the queue when one is
// waiting.
func (l *concurrencyLimiter) release() {
	l.mu.Lock()
	defer l.mu.Unlock()
	if len(l.queue) > 0 {
		next := l.queue[0]
		l.queue = l.queue[1:]
		close(next)
		return
	}
	l.inFlight--
}

// abandon removes a waiter from the queue. When the grant raced with the
// giving-up caller, the already-transferred slot is passed onward.
func (l *concurrencyLimiter) abandon(ready chan struct{}) {
	l.mu.Lock()
	for i, w := range l.queue {
		if w == ready {
			l.queue = append(l.queue[:i], l.queue[i+1:]...)
			l.mu.Unlock()
			return
		}
	}
	l.mu.Unlock()
	l.release()
}

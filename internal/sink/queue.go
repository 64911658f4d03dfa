package sink

import (
	"sync"

	"github.com/oshokin/pump-monitor/internal/domain/pump"
)

// DefaultQueueSize is the number of snapshots buffered before the oldest is dropped.
const DefaultQueueSize = 16

// Queue forwards snapshots to a downstream sink on its own goroutine.
type Queue struct {
	// next receives the snapshots.
	next Sink
	// ch buffers pending snapshots.
	ch chan pump.Snapshot
	// mu serializes producers so drop-oldest stays consistent.
	mu sync.Mutex
	// done is closed when the worker exits.
	done chan struct{}
	// closeOnce guards Close.
	closeOnce sync.Once
}

// NewQueue starts a queue in front of next. Size <= 0 uses DefaultQueueSize.
func NewQueue(next Sink, size int) *Queue {
	if size <= 0 {
		size = DefaultQueueSize
	}

	q := &Queue{
		next: next,
		ch:   make(chan pump.Snapshot, size),
		done: make(chan struct{}),
	}

	go q.run()

	return q
}

// Publish implements Sink. It never blocks; when the buffer is full the
// oldest pending snapshot is discarded.
func (q *Queue) Publish(snap pump.Snapshot) {
	q.mu.Lock()
	defer q.mu.Unlock()

	for {
		select {
		case q.ch <- snap:
			return
		default:
		}

		select {
		case <-q.ch:
		default:
		}
	}
}

// Close drains pending snapshots and stops the worker.
// Publish must not be called after Close.
func (q *Queue) Close() {
	q.closeOnce.Do(func() {
		q.mu.Lock()
		close(q.ch)
		q.mu.Unlock()
	})

	<-q.done
}

// run delivers snapshots in order.
func (q *Queue) run() {
	defer close(q.done)

	for snap := range q.ch {
		q.next.Publish(snap)
	}
}

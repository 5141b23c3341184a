// Package queue buffers readings accepted for asynchronous assessment.
//
// Enqueue never blocks: a full queue rejects the reading so callers can
// apply backpressure (HTTP 429, MQTT drop).
package queue

import (
	"context"
	"sync"
	"time"

	"github.com/okian/airrisk/internal/domain/model"
	"github.com/okian/airrisk/pkg/metrics"
)

const defaultQueueCapacity = 10_000

// Item is one reading waiting for assessment.
type Item struct {
	Reading    model.SensorReading
	Source     string // "http" or "mqtt"
	EnqueuedAt time.Time
}

// Queue provides non-blocking enqueue and blocking dequeue.
type Queue interface {
	// Enqueue adds an item. It returns ErrFull or ErrClosed without blocking.
	Enqueue(ctx context.Context, it Item) error

	// Next blocks until an item is available. It returns ErrClosed once the
	// queue is closed and drained, or the context error.
	Next(ctx context.Context) (Item, error)

	// Len returns the current number of queued items.
	Len() int

	// Cap returns the configured capacity.
	Cap() int

	// Close stops accepting items. Queued items can still be drained.
	Close() error
}

// InMemoryQueue implements Queue using a buffered channel.
type InMemoryQueue struct {
	items    chan Item
	capacity int

	mu     sync.RWMutex
	closed bool
}

var _ Queue = (*InMemoryQueue)(nil)

// NewInMemoryQueue creates a new in-memory queue with configuration options.
func NewInMemoryQueue(opts ...Option) *InMemoryQueue {
	q := &InMemoryQueue{capacity: defaultQueueCapacity}
	for _, opt := range opts {
		opt(q)
	}
	q.items = make(chan Item, q.capacity)

	metrics.UpdateQueueCapacity(q.capacity)
	metrics.UpdateQueueSize(0)
	metrics.UpdateQueueUtilization(0.0)

	return q
}

// Enqueue implements Queue.
func (q *InMemoryQueue) Enqueue(ctx context.Context, it Item) error {
	start := time.Now()
	defer func() {
		metrics.RecordQueueProcessingLatency(float64(time.Since(start).Microseconds()) / 1000)
	}()

	q.mu.RLock()
	defer q.mu.RUnlock()

	if q.closed {
		metrics.RecordQueueEnqueueError()
		metrics.RecordErrorByComponent("queue", "closed")
		return ErrClosed
	}
	if err := ctx.Err(); err != nil {
		metrics.RecordQueueEnqueueError()
		metrics.RecordErrorByComponent("queue", "context_cancelled")
		return err
	}
	if it.EnqueuedAt.IsZero() {
		it.EnqueuedAt = start
	}

	select {
	case q.items <- it:
		metrics.RecordQueueEnqueue()
		q.report()
		return nil
	default:
		metrics.RecordQueueEnqueueError()
		metrics.RecordErrorByComponent("queue", "queue_full")
		return ErrFull
	}
}

// Next implements Queue.
func (q *InMemoryQueue) Next(ctx context.Context) (Item, error) {
	select {
	case it, ok := <-q.items:
		if !ok {
			return Item{}, ErrClosed
		}
		metrics.RecordQueueDequeue()
		q.report()
		return it, nil
	case <-ctx.Done():
		return Item{}, ctx.Err()
	}
}

// Len implements Queue.
func (q *InMemoryQueue) Len() int { return len(q.items) }

// Cap implements Queue.
func (q *InMemoryQueue) Cap() int { return q.capacity }

// Close implements Queue.
func (q *InMemoryQueue) Close() error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return nil
	}
	close(q.items)
	q.closed = true
	return nil
}

// IsClosed reports whether Close was called.
func (q *InMemoryQueue) IsClosed() bool {
	q.mu.RLock()
	defer q.mu.RUnlock()
	return q.closed
}

func (q *InMemoryQueue) report() {
	size := len(q.items)
	metrics.UpdateQueueSize(size)
	metrics.UpdateQueueUtilization(float64(size) / float64(q.capacity))
}

// Package worker drains the reading queue through the assessment pipeline.
package worker

import (
	"context"
	"errors"
	"runtime"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/okian/airrisk/internal/adapters/mq/queue"
	"github.com/okian/airrisk/pkg/logger"
	"github.com/okian/airrisk/pkg/metrics"
)

const (
	defaultMetricsInterval = 5 * time.Second
	poolShutdownTimeout    = 30 * time.Second
)

// Processor handles one dequeued reading.
type Processor interface {
	Process(ctx context.Context, it queue.Item) error
}

// ProcessorFunc adapts a function to Processor.
type ProcessorFunc func(ctx context.Context, it queue.Item) error

// Process implements Processor.
func (f ProcessorFunc) Process(ctx context.Context, it queue.Item) error { return f(ctx, it) }

// Queue defines how workers receive readings.
type Queue interface {
	Next(ctx context.Context) (queue.Item, error)
	Close() error
}

// Stats is a snapshot of pool activity.
type Stats struct {
	Workers   int   `json:"workers"`
	Active    int64 `json:"active"`
	Processed int64 `json:"processed"`
	Failed    int64 `json:"failed"`
}

// Pool runs a fixed number of workers over a queue.
type Pool struct {
	size      int
	queue     Queue
	processor Processor
	name      string

	metricsInterval time.Duration
	logger          logger.Logger

	active    atomic.Int64
	processed atomic.Int64
	failed    atomic.Int64

	wg       sync.WaitGroup
	stop     chan struct{}
	stopOnce sync.Once
}

// NewPool creates a worker pool. A non-positive size uses runtime.NumCPU().
func NewPool(size int, q Queue, p Processor, opts ...Option) *Pool {
	if size < 1 {
		size = runtime.NumCPU()
	}
	pool := &Pool{
		size:            size,
		queue:           q,
		processor:       p,
		name:            "worker",
		metricsInterval: defaultMetricsInterval,
		logger:          logger.Get().Named("worker-pool"),
		stop:            make(chan struct{}),
	}
	for _, opt := range opts {
		opt(pool)
	}

	metrics.UpdateWorkerCount(size)
	metrics.UpdateWorkerActiveCount(0)
	metrics.UpdateWorkerIdleCount(size)
	metrics.UpdateWorkerMessagesPerSecond(0.0)

	return pool
}

// Start launches the workers. They run until ctx is cancelled or the queue
// is closed and drained.
func (p *Pool) Start(ctx context.Context) {
	for i := 0; i < p.size; i++ {
		p.wg.Add(1)
		go p.run(ctx, p.logger.Named(p.name+"-"+strconv.Itoa(i)))
	}
	go p.reportThroughput(ctx)
}

func (p *Pool) run(ctx context.Context, log logger.Logger) {
	defer p.wg.Done()
	for {
		it, err := p.queue.Next(ctx)
		if err != nil {
			if !errors.Is(err, queue.ErrClosed) && ctx.Err() == nil {
				log.Error(ctx, "dequeue failed", logger.Error(err))
			}
			return
		}
		p.process(ctx, log, it)
	}
}

func (p *Pool) process(ctx context.Context, log logger.Logger, it queue.Item) {
	active := p.active.Add(1)
	metrics.UpdateWorkerActiveCount(int(active))
	metrics.UpdateWorkerIdleCount(p.size - int(active))
	start := time.Now()
	defer func() {
		active := p.active.Add(-1)
		metrics.UpdateWorkerActiveCount(int(active))
		metrics.UpdateWorkerIdleCount(p.size - int(active))
		metrics.RecordWorkerProcessingLatency(float64(time.Since(start).Microseconds()) / 1000)
	}()

	if err := p.processor.Process(ctx, it); err != nil {
		p.failed.Add(1)
		metrics.RecordWorkerError()
		metrics.RecordErrorByComponent("worker", "process_error")
		log.Error(ctx, "reading processing failed",
			logger.String("sensor_id", it.Reading.SensorID),
			logger.String("source", it.Source),
			logger.Error(err),
		)
		return
	}
	p.processed.Add(1)
}

func (p *Pool) reportThroughput(ctx context.Context) {
	ticker := time.NewTicker(p.metricsInterval)
	defer ticker.Stop()

	last, lastAt := p.processed.Load(), time.Now()
	for {
		select {
		case <-ctx.Done():
			return
		case <-p.stop:
			return
		case now := <-ticker.C:
			cur := p.processed.Load()
			if secs := now.Sub(lastAt).Seconds(); secs > 0 {
				metrics.UpdateWorkerMessagesPerSecond(float64(cur-last) / secs / float64(p.size))
			}
			last, lastAt = cur, now
		}
	}
}

// Stats returns current counters.
func (p *Pool) Stats() Stats {
	return Stats{
		Workers:   p.size,
		Active:    p.active.Load(),
		Processed: p.processed.Load(),
		Failed:    p.failed.Load(),
	}
}

// Shutdown closes the queue and waits for workers to drain it, bounded by
// ctx and poolShutdownTimeout.
func (p *Pool) Shutdown(ctx context.Context) error {
	if err := p.queue.Close(); err != nil {
		p.logger.Error(ctx, "error closing queue", logger.Error(err))
	}
	p.stopOnce.Do(func() { close(p.stop) })

	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()

	shutdownCtx, cancel := context.WithTimeout(ctx, poolShutdownTimeout)
	defer cancel()

	select {
	case <-done:
		return nil
	case <-shutdownCtx.Done():
		p.logger.Warn(ctx, "worker shutdown timed out", logger.Int("active", int(p.active.Load())))
		return shutdownCtx.Err()
	}
}

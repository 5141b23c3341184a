package worker_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	queue "github.com/okian/airrisk/internal/adapters/mq/queue"
	worker "github.com/okian/airrisk/internal/adapters/mq/worker"
	model "github.com/okian/airrisk/internal/domain/model"
	logging "github.com/okian/airrisk/pkg/logger"
	"github.com/smartystreets/goconvey/convey"
)

type recordingProcessor struct {
	mu    sync.Mutex
	seen  []string
	fail  map[string]error
	delay time.Duration
}

func (p *recordingProcessor) Process(ctx context.Context, it queue.Item) error {
	if p.delay > 0 {
		time.Sleep(p.delay)
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.seen = append(p.seen, it.Reading.SensorID)
	return p.fail[it.Reading.SensorID]
}

func (p *recordingProcessor) count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.seen)
}

func enqueue(q *queue.InMemoryQueue, sensor string) error {
	r := model.NewReading(sensor, time.Now(), map[model.Metric]float64{model.CO2: 420})
	return q.Enqueue(context.Background(), queue.Item{Reading: r, Source: "http"})
}

func TestPool(t *testing.T) {
	convey.Convey("Given a worker pool over an in-memory queue", t, func() {
		_ = logging.Init()
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		q := queue.NewInMemoryQueue(queue.WithCapacity(100))
		proc := &recordingProcessor{fail: map[string]error{"broken": errors.New("boom")}}
		pool := worker.NewPool(4, q, proc, worker.WithName("assess"), worker.WithMetricsInterval(10*time.Millisecond))

		convey.Convey("When readings are queued and the pool shuts down", func() {
			pool.Start(ctx)
			for i := 0; i < 20; i++ {
				convey.So(enqueue(q, fmt.Sprintf("s%d", i)), convey.ShouldBeNil)
			}
			convey.So(enqueue(q, "broken"), convey.ShouldBeNil)

			err := pool.Shutdown(context.Background())

			convey.Convey("Then every queued reading is processed before exit", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(proc.count(), convey.ShouldEqual, 21)
				stats := pool.Stats()
				convey.So(stats.Workers, convey.ShouldEqual, 4)
				convey.So(stats.Processed, convey.ShouldEqual, 20)
				convey.So(stats.Failed, convey.ShouldEqual, 1)
				convey.So(stats.Active, convey.ShouldEqual, 0)
			})

			convey.Convey("Then the queue rejects new readings", func() {
				convey.So(errors.Is(enqueue(q, "late"), queue.ErrClosed), convey.ShouldBeTrue)
			})
		})

		convey.Convey("When the context is cancelled", func() {
			pool.Start(ctx)
			cancel()

			err := pool.Shutdown(context.Background())

			convey.Convey("Then workers exit without error", func() {
				convey.So(err, convey.ShouldBeNil)
			})
		})
	})
}

func TestPoolShutdownTimeout(t *testing.T) {
	convey.Convey("Given a pool whose processor is slow", t, func() {
		_ = logging.Init()
		q := queue.NewInMemoryQueue(queue.WithCapacity(10))
		proc := &recordingProcessor{delay: 200 * time.Millisecond}
		pool := worker.NewPool(1, q, proc)
		pool.Start(context.Background())
		convey.So(enqueue(q, "s1"), convey.ShouldBeNil)
		convey.So(enqueue(q, "s2"), convey.ShouldBeNil)

		convey.Convey("When shutdown has a short deadline", func() {
			ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
			defer cancel()
			err := pool.Shutdown(ctx)

			convey.Convey("Then it reports the deadline", func() {
				convey.So(errors.Is(err, context.DeadlineExceeded), convey.ShouldBeTrue)
			})
		})
	})
}

func TestProcessorFunc(t *testing.T) {
	convey.Convey("Given a ProcessorFunc", t, func() {
		called := false
		var p worker.Processor = worker.ProcessorFunc(func(context.Context, queue.Item) error {
			called = true
			return nil
		})

		convey.Convey("Then Process calls the function", func() {
			convey.So(p.Process(context.Background(), queue.Item{}), convey.ShouldBeNil)
			convey.So(called, convey.ShouldBeTrue)
		})
	})
}

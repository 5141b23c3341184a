package service_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/okian/airrisk/internal/adapters/artifacts"
	"github.com/okian/airrisk/internal/adapters/repository"
	service "github.com/okian/airrisk/internal/app"
	"github.com/okian/airrisk/internal/config"
	"github.com/okian/airrisk/internal/domain/engine"
	"github.com/okian/airrisk/internal/domain/model"
	"github.com/okian/airrisk/pkg/logger"
	. "github.com/smartystreets/goconvey/convey"
)

func init() {
	if err := logger.Init(); err != nil {
		panic(err)
	}
}

var fixedNow = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

// recorder is a cooldown-gated notifier that keeps what it receives.
type recorder struct {
	mu  sync.Mutex
	got []model.AlertEvent
}

func (r *recorder) Name() string { return "recorder" }

func (r *recorder) Notify(_ context.Context, a model.AlertEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.got = append(r.got, a)
	return nil
}

func (r *recorder) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.got)
}

func testConfig() *config.Config {
	cfg := config.New(context.Background())
	cfg.DBPath = repository.MemoryPath
	cfg.WorkerCount = 2
	cfg.QueueSize = 16
	cfg.ModelDir = ""
	return cfg
}

func newService(opts ...service.Option) *service.Service {
	base := []service.Option{
		service.WithConfig(testConfig()),
		service.WithClock(func() time.Time { return fixedNow }),
	}
	return service.New(append(base, opts...)...)
}

func reading(id string, ts time.Time, pm25 float64) model.SensorReading {
	return model.NewReading(id, ts, map[model.Metric]float64{
		model.Temperature: 22,
		model.Humidity:    45,
		model.CO2:         600,
		model.VOC:         0.2,
		model.PM25:        pm25,
		model.PM10:        15,
	})
}

func TestService_Lifecycle(t *testing.T) {
	Convey("Given a new service", t, func() {
		ctx := context.Background()
		svc := newService()

		Convey("When it is used before Start", func() {
			_, _, err := svc.Assess(ctx, reading("s-1", fixedNow, 8))

			Convey("Then it reports that it is not started", func() {
				So(errors.Is(err, service.ErrNotStarted), ShouldBeTrue)
				So(svc.GetStats()["started"], ShouldEqual, false)
				So(svc.AlertStream(), ShouldBeNil)
			})
		})

		Convey("When it is started twice and stopped", func() {
			So(svc.Start(ctx), ShouldBeNil)
			So(svc.Start(ctx), ShouldBeNil)

			stats := svc.GetStats()
			So(stats["started"], ShouldEqual, true)
			So(stats["strategy"], ShouldEqual, engine.StrategyRules)
			So(svc.AlertStream(), ShouldNotBeNil)

			svc.Stop(ctx)

			Convey("Then it is stopped and Stop is idempotent", func() {
				So(svc.GetStats()["started"], ShouldEqual, false)
				So(func() { svc.Stop(ctx) }, ShouldNotPanic)
			})
		})

		Convey("When the model directory holds a corrupt artifact", func() {
			cfg := testConfig()
			cfg.ModelDir = t.TempDir()
			So(os.WriteFile(filepath.Join(cfg.ModelDir, artifacts.AnomalyFile), []byte("{not json"), 0o600), ShouldBeNil)
			broken := service.New(service.WithConfig(cfg), service.WithClock(func() time.Time { return fixedNow }))
			err := broken.Start(ctx)
			defer broken.Stop(ctx)

			Convey("Then Start succeeds and scores on rules", func() {
				So(err, ShouldBeNil)
				So(broken.GetStats()["strategy"], ShouldEqual, engine.StrategyRules)
				res, _, err := broken.Assess(ctx, reading("s-1", fixedNow, 8))
				So(err, ShouldBeNil)
				So(res.Risk.Level, ShouldEqual, model.RiskLow)
			})
		})

		Convey("When the configuration is invalid", func() {
			cfg := testConfig()
			cfg.RiskPolicy = "vibes"
			err := service.New(service.WithConfig(cfg)).Start(ctx)

			Convey("Then Start fails", func() {
				So(errors.Is(err, config.ErrInvalidConfig), ShouldBeTrue)
			})
		})
	})
}

func TestService_Assess(t *testing.T) {
	Convey("Given a started service", t, func() {
		ctx := context.Background()
		rec := &recorder{}
		svc := newService(service.WithNotifier(rec))
		So(svc.Start(ctx), ShouldBeNil)
		defer svc.Stop(ctx)

		Convey("When a normal reading is assessed twice", func() {
			r := reading("s-1", fixedNow.Add(-time.Minute), 8)
			first, cached1, err1 := svc.Assess(ctx, r)
			second, cached2, err2 := svc.Assess(ctx, r)

			Convey("Then the second answer comes from the memo cache", func() {
				So(err1, ShouldBeNil)
				So(err2, ShouldBeNil)
				So(cached1, ShouldBeFalse)
				So(cached2, ShouldBeTrue)
				So(first.Risk.Level, ShouldEqual, model.RiskLow)
				So(second.Risk, ShouldResemble, first.Risk)

				stats := svc.GetStats()
				So(stats["assessed"], ShouldEqual, int64(1))
				So(stats["cacheHits"], ShouldEqual, int64(1))
				So(stats["storedReadings"], ShouldEqual, 1)
			})
		})

		Convey("When a reading has no timestamp", func() {
			res, _, err := svc.Assess(ctx, reading("s-1", time.Time{}, 8))

			Convey("Then it is stamped with the service clock", func() {
				So(err, ShouldBeNil)
				So(res.Reading.Timestamp, ShouldEqual, fixedNow)
			})
		})

		Convey("When polluted readings repeat within the cooldown", func() {
			first, _, err := svc.Assess(ctx, reading("s-2", fixedNow.Add(-2*time.Minute), 160))
			So(err, ShouldBeNil)
			So(first.Alerts, ShouldNotBeEmpty)
			notified := rec.count()

			second, _, err := svc.Assess(ctx, reading("s-2", fixedNow.Add(-time.Minute), 160))
			So(err, ShouldBeNil)

			Convey("Then every alert is stored but notified only once", func() {
				So(notified, ShouldEqual, len(first.Alerts))
				So(rec.count(), ShouldEqual, notified)

				alerts, err := svc.ListAlerts(ctx, "s-2", 100)
				So(err, ShouldBeNil)
				So(alerts, ShouldHaveLength, len(first.Alerts)+len(second.Alerts))
			})

			Convey("And a stored alert can be resolved", func() {
				resolved, err := svc.ResolveAlert(ctx, first.Alerts[0].ID)
				So(err, ShouldBeNil)
				So(resolved.Resolved, ShouldBeTrue)

				_, err = svc.ResolveAlert(ctx, "missing")
				So(errors.Is(err, repository.ErrNotFound), ShouldBeTrue)
			})
		})

		Convey("When a reading misses a required metric", func() {
			bad := reading("s-3", fixedNow, 8).Without(model.CO2)
			_, _, err := svc.Assess(ctx, bad)

			Convey("Then it is rejected as invalid", func() {
				So(errors.Is(err, engine.ErrInvalidReading), ShouldBeTrue)
				So(errors.Is(err, model.ErrMissingMetric), ShouldBeTrue)
				So(svc.GetStats()["rejected"], ShouldEqual, int64(1))
			})
		})

		Convey("When a batch mixes valid and invalid readings", func() {
			out, err := svc.AssessBatch(ctx, []model.SensorReading{
				reading("s-4", fixedNow.Add(-time.Minute), 8),
				reading("", fixedNow, 8),
				reading("s-5", fixedNow.Add(-time.Minute), 40),
			})

			Convey("Then each reading has its own outcome", func() {
				So(err, ShouldBeNil)
				So(out, ShouldHaveLength, 3)
				So(out[0].Err, ShouldBeNil)
				So(errors.Is(out[1].Err, engine.ErrInvalidReading), ShouldBeTrue)
				So(out[2].Err, ShouldBeNil)
				So(out[2].Result.Risk.AQI.Value, ShouldBeGreaterThan, out[0].Result.Risk.AQI.Value)
			})

			Convey("And batch results warm the memo cache", func() {
				_, cached, err := svc.Assess(ctx, reading("s-4", fixedNow.Add(-time.Minute), 8))
				So(err, ShouldBeNil)
				So(cached, ShouldBeTrue)
			})
		})

		Convey("When the model info is requested", func() {
			info := svc.Model()

			Convey("Then it reports the rule strategy and the channels", func() {
				So(info.Strategy, ShouldEqual, engine.StrategyRules)
				So(info.Policy, ShouldEqual, "score")
				So(info.Registry.AnomalyModel, ShouldBeFalse)
				So(info.Channels, ShouldContain, "recorder")
			})
		})
	})
}

func TestService_CooldownSurvivesRestart(t *testing.T) {
	Convey("Given a service persisting to a database file", t, func() {
		ctx := context.Background()
		cfg := testConfig()
		cfg.DBPath = filepath.Join(t.TempDir(), "airrisk.db")

		before := &recorder{}
		svc := service.New(service.WithConfig(cfg), service.WithNotifier(before),
			service.WithClock(func() time.Time { return fixedNow }))
		So(svc.Start(ctx), ShouldBeNil)
		first, _, err := svc.Assess(ctx, reading("s-9", fixedNow.Add(-2*time.Minute), 160))
		So(err, ShouldBeNil)
		So(first.Alerts, ShouldNotBeEmpty)
		So(before.count(), ShouldEqual, len(first.Alerts))
		svc.Stop(ctx)

		Convey("When it restarts and the same alerts fire inside the cooldown", func() {
			after := &recorder{}
			restarted := service.New(service.WithConfig(cfg), service.WithNotifier(after),
				service.WithClock(func() time.Time { return fixedNow.Add(time.Hour) }))
			So(restarted.Start(ctx), ShouldBeNil)
			defer restarted.Stop(ctx)

			second, _, err := restarted.Assess(ctx, reading("s-9", fixedNow.Add(time.Hour-time.Minute), 160))
			So(err, ShouldBeNil)

			Convey("Then the alerts are stored but not notified again", func() {
				So(second.Alerts, ShouldNotBeEmpty)
				So(after.count(), ShouldEqual, 0)
			})
		})

		Convey("When it restarts after the cooldown has elapsed", func() {
			after := &recorder{}
			restarted := service.New(service.WithConfig(cfg), service.WithNotifier(after),
				service.WithClock(func() time.Time { return fixedNow.Add(3 * time.Hour) }))
			So(restarted.Start(ctx), ShouldBeNil)
			defer restarted.Stop(ctx)

			second, _, err := restarted.Assess(ctx, reading("s-9", fixedNow.Add(3*time.Hour-time.Minute), 160))
			So(err, ShouldBeNil)

			Convey("Then the alerts notify again", func() {
				So(after.count(), ShouldEqual, len(second.Alerts))
				So(after.count(), ShouldBeGreaterThan, 0)
			})
		})
	})
}

func TestService_Enqueue(t *testing.T) {
	Convey("Given a started service", t, func() {
		ctx := context.Background()
		svc := newService()
		So(svc.Start(ctx), ShouldBeNil)

		Convey("When readings are enqueued", func() {
			for i := 0; i < 5; i++ {
				So(svc.Enqueue(ctx, reading("s-q", fixedNow.Add(-time.Duration(i+1)*time.Minute), 8)), ShouldBeNil)
			}
			So(svc.Enqueue(ctx, reading("", fixedNow, 8)), ShouldBeNil)

			Convey("Then the workers assess them", func() {
				deadline := time.Now().Add(5 * time.Second)
				for time.Now().Before(deadline) {
					s := svc.GetStats()
					if s["processed"].(int64)+s["failed"].(int64) == 6 {
						break
					}
					time.Sleep(10 * time.Millisecond)
				}
				stats := svc.GetStats()
				So(stats["processed"], ShouldEqual, int64(5))
				So(stats["failed"], ShouldEqual, int64(1))
				So(stats["storedReadings"], ShouldEqual, 5)
				svc.Stop(ctx)
			})
		})

		Convey("When the service is stopped", func() {
			svc.Stop(ctx)
			err := svc.Enqueue(ctx, reading("s-q", fixedNow, 8))

			Convey("Then ingest is closed", func() {
				So(errors.Is(err, service.ErrNotStarted), ShouldBeTrue)
			})
		})
	})
}

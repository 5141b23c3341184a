package main

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/okian/airrisk/internal/adapters/http/api"
	service "github.com/okian/airrisk/internal/app"
	"github.com/okian/airrisk/internal/config"
	"github.com/okian/airrisk/internal/adapters/repository"
	"github.com/okian/airrisk/pkg/logger"
	"github.com/okian/airrisk/pkg/metrics"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/smartystreets/goconvey/convey"
)

func setenv(t *testing.T, kv map[string]string) {
	t.Helper()
	for k, v := range kv {
		_ = os.Setenv(k, v)
	}
	t.Cleanup(func() {
		for k := range kv {
			_ = os.Unsetenv(k)
		}
	})
}

func TestMainConfiguration(t *testing.T) {
	convey.Convey("Given the main application", t, func() {
		convey.Convey("When configuration comes from the environment", func() {
			setenv(t, map[string]string{
				"AIRRISK_ADDR":         ":8080",
				"AIRRISK_QUEUE_SIZE":   "1000",
				"AIRRISK_WORKER_COUNT": "4",
				"AIRRISK_WEBHOOK__URL": "http://hooks.local/alerts",
			})

			convey.Convey("Then it is layered over the defaults", func() {
				cfg, err := config.Load(context.Background())
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg.Addr, convey.ShouldEqual, ":8080")
				convey.So(cfg.QueueSize, convey.ShouldEqual, 1000)
				convey.So(cfg.WorkerCount, convey.ShouldEqual, 4)
				convey.So(cfg.Webhook.URL, convey.ShouldEqual, "http://hooks.local/alerts")
				convey.So(cfg.RiskPolicy, convey.ShouldEqual, "score")
			})
		})

		convey.Convey("When the address is blanked", func() {
			setenv(t, map[string]string{"AIRRISK_ADDR": ""})

			convey.Convey("Then loading fails validation", func() {
				cfg, err := config.Load(context.Background())
				convey.So(err, convey.ShouldNotBeNil)
				convey.So(cfg, convey.ShouldBeNil)
			})
		})
	})
}

func TestMainHandler(t *testing.T) {
	convey.Convey("Given a started service behind the main handler", t, func() {
		convey.So(logger.Init(logger.WithWriter(&bytes.Buffer{})), convey.ShouldBeNil)

		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		cfg := config.New(ctx)
		cfg.DBPath = repository.MemoryPath
		cfg.WorkerCount = 1
		cfg.QueueSize = 8
		cfg.CORS.AllowedOrigins = []string{"https://dashboard.local"}

		svc := service.New(service.WithConfig(cfg))
		convey.So(svc.Start(ctx), convey.ShouldBeNil)
		defer svc.Stop(ctx)

		h := newHandler(ctx, cfg, svc)

		convey.Convey("Then the health probe answers", func() {
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
			convey.So(rec.Code, convey.ShouldEqual, http.StatusOK)
		})

		convey.Convey("Then the docs are mounted", func() {
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/openapi.yaml", nil))
			convey.So(rec.Code, convey.ShouldEqual, http.StatusOK)
		})

		convey.Convey("Then an assessment round-trips", func() {
			body := `{"sensorId":"s-main","timestamp":"2026-01-15T14:30:00Z","temperature":22,"humidity":45,"co2":600,"voc":0.2,"pm25":8,"pm10":15}`
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/assess", bytes.NewBufferString(body)))
			convey.So(rec.Code, convey.ShouldEqual, http.StatusOK)

			var out map[string]any
			convey.So(json.Unmarshal(rec.Body.Bytes(), &out), convey.ShouldBeNil)
			convey.So(out["risk_level"], convey.ShouldEqual, "LOW")
		})

		convey.Convey("Then CORS preflight honours the configured origin", func() {
			req := httptest.NewRequest(http.MethodOptions, "/assess", nil)
			req.Header.Set("Origin", "https://dashboard.local")
			req.Header.Set("Access-Control-Request-Method", http.MethodPost)
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)
			convey.So(rec.Header().Get("Access-Control-Allow-Origin"), convey.ShouldEqual, "https://dashboard.local")
		})

		convey.Convey("Then the API server is constructible with every option", func() {
			server := api.NewServer(svc, svc,
				api.WithAlertStream(svc.AlertStream()),
				api.WithBatchLimit(cfg.Batch.MaxItems),
				api.WithIngestRate(cfg.IngestRate, cfg.IngestBurst),
			)
			convey.So(server, convey.ShouldNotBeNil)
		})
	})
}

func TestSampleRuntime(t *testing.T) {
	convey.Convey("Given the runtime sampler", t, func() {
		convey.Convey("Then it returns once the context ends", func() {
			ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
			defer cancel()

			done := make(chan struct{})
			go func() {
				sampleRuntime(ctx)
				close(done)
			}()

			select {
			case <-done:
			case <-time.After(2 * time.Second):
				t.Fatal("sampler did not stop")
			}
		})

		convey.Convey("Then a single sample does not panic", func() {
			convey.So(metrics.SampleRuntime, convey.ShouldNotPanic)
		})

		convey.Convey("Then a private metrics manager registers cleanly", func() {
			manager := metrics.NewManager(metrics.WithPrometheusRegistry(prometheus.NewRegistry()))
			convey.So(manager, convey.ShouldNotBeNil)
		})
	})
}

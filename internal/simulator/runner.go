package simulator

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/okian/airrisk/pkg/logger"
	"golang.org/x/time/rate"
)

// Run configuration constants.
const (
	directoryPermission  = 0750
	readingInterval      = 5 * time.Minute
	progressEvery        = time.Second
	percentageMultiplier = 100
)

// Run executes a complete simulation with the configured transport.
func Run(ctx context.Context, cfg *Config) error {
	if err := cfg.Validate(); err != nil {
		return err
	}

	logger.Get().Info(ctx, "starting air-quality sensor simulation",
		logger.String("transport", cfg.Transport),
		logger.String("baseURL", cfg.BaseURL),
		logger.String("endpoint", cfg.Endpoint),
		logger.String("broker", cfg.Broker),
		logger.Int("sensors", cfg.Sensors),
		logger.Int("readings", cfg.Readings),
		logger.Int("workers", cfg.Workers),
		logger.Float64("rate", cfg.Rate))

	pub, err := newPublisher(ctx, cfg)
	if err != nil {
		return err
	}
	defer pub.Close()

	stats, err := Simulate(ctx, cfg, pub, time.Now())
	if err != nil {
		return err
	}
	displayFinalStats(stats)
	return nil
}

func newPublisher(ctx context.Context, cfg *Config) (Publisher, error) {
	if cfg.Transport == TransportMQTT {
		return NewMQTTPublisher(cfg.Broker, cfg.Topic, cfg.Timeout)
	}
	p := NewHTTPPublisher(cfg.BaseURL, cfg.Endpoint, cfg.Timeout)
	logger.Get().Info(ctx, "checking service health")
	if err := p.Healthy(ctx, cfg.BaseURL); err != nil {
		return nil, fmt.Errorf("service health check failed: %w", err)
	}
	return p, nil
}

// Simulate generates the readings ending at now and publishes them through
// pub, returning the collected statistics.
func Simulate(ctx context.Context, cfg *Config, pub Publisher, now time.Time) (*Stats, error) {
	stats := &Stats{StartTime: time.Now(), RiskLevels: make(map[string]int)}

	readings, err := generateReadings(ctx, cfg, now, readingInterval, stats)
	if err != nil {
		return nil, fmt.Errorf("reading generation failed: %w", err)
	}

	if err := publishReadings(ctx, cfg, pub, readings, stats); err != nil {
		return nil, fmt.Errorf("publishing failed: %w", err)
	}

	if cfg.OutputFile != "" {
		if err := saveReadings(ctx, cfg.OutputFile, readings); err != nil {
			logger.Get().Warn(ctx, "failed to save readings to file", logger.Error(err))
		}
	}

	stats.EndTime = time.Now()
	stats.Duration = stats.EndTime.Sub(stats.StartTime)
	return stats, nil
}

// publishReadings fans readings out to cfg.Workers publishers. A single
// limiter paces the whole run when cfg.Rate is set. Readings of one sensor
// may be published out of order across workers; the service orders history
// by timestamp.
func publishReadings(ctx context.Context, cfg *Config, pub Publisher, readings []Reading, stats *Stats) error {
	logger.Get().Info(ctx, "publishing readings", logger.Int("count", len(readings)), logger.Int("workers", cfg.Workers))

	limiter := rate.NewLimiter(rate.Inf, 0)
	if cfg.Rate > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.Rate), 1)
	}

	var (
		mu         sync.Mutex
		lastReport time.Time
		wg         sync.WaitGroup
	)
	ch := make(chan Reading, cfg.Workers*2)

	record := func(r Reading, out Outcome, err error) {
		mu.Lock()
		defer mu.Unlock()
		stats.Published++
		if err != nil {
			stats.Failed++
			if cfg.Verbose {
				logger.Get().Warn(ctx, "publish failed", logger.String("sensorId", r.SensorID), logger.Error(err))
			}
		} else {
			stats.Accepted++
			stats.Alerts += out.Alerts
			if out.RiskLevel != "" {
				stats.RiskLevels[out.RiskLevel]++
			}
			if cfg.Verbose {
				logger.Get().Debug(ctx, "published reading",
					logger.String("sensorId", r.SensorID),
					logger.Bool("spike", r.Spike),
					logger.String("riskLevel", out.RiskLevel),
					logger.Int("alerts", out.Alerts))
			}
		}
		if time.Since(lastReport) >= progressEvery {
			lastReport = time.Now()
			logger.Get().Info(ctx, "progress",
				logger.Int("published", stats.Published),
				logger.Int("total", len(readings)),
				logger.Int("failed", stats.Failed))
		}
	}

	for i := 0; i < cfg.Workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for r := range ch {
				if err := limiter.Wait(ctx); err != nil {
					record(r, Outcome{}, err)
					continue
				}
				out, err := pub.Publish(ctx, r)
				record(r, out, err)
			}
		}()
	}

	func() {
		defer close(ch)
		for _, r := range readings {
			select {
			case <-ctx.Done():
				return
			case ch <- r:
			}
		}
	}()
	wg.Wait()

	if err := ctx.Err(); err != nil {
		return fmt.Errorf("context cancelled during publishing: %w", err)
	}
	return nil
}

// saveReadings writes the generated readings as a JSON array.
func saveReadings(ctx context.Context, filename string, readings []Reading) error {
	if len(readings) == 0 {
		return fmt.Errorf("no readings to save")
	}
	if dir := filepath.Dir(filename); dir != "." {
		if err := os.MkdirAll(dir, directoryPermission); err != nil {
			return fmt.Errorf("failed to create directory: %w", err)
		}
	}
	data, err := json.MarshalIndent(readings, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal readings: %w", err)
	}
	if err := os.WriteFile(filename, data, 0o600); err != nil {
		return fmt.Errorf("failed to write file: %w", err)
	}
	logger.Get().Info(ctx, "readings saved to file", logger.String("filename", filename))
	return nil
}

// displayFinalStats logs the run summary.
func displayFinalStats(stats *Stats) {
	var successRate, perSecond float64
	if stats.Published > 0 {
		successRate = float64(stats.Accepted) / float64(stats.Published) * percentageMultiplier
	}
	if stats.Duration > 0 {
		perSecond = float64(stats.Published) / stats.Duration.Seconds()
	}

	logger.Get().Info(context.Background(), "final statistics",
		logger.Int("generated", stats.Generated),
		logger.Int("spikes", stats.Spikes),
		logger.Int("published", stats.Published),
		logger.Int("accepted", stats.Accepted),
		logger.Int("failed", stats.Failed),
		logger.Int("alerts", stats.Alerts),
		logger.Any("riskLevels", stats.RiskLevels),
		logger.String("duration", stats.Duration.String()),
		logger.Float64("successRate", successRate),
		logger.Float64("readingsPerSecond", perSecond))
}

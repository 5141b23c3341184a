package simulator

import (
	"context"
	"crypto/rand"
	"fmt"
	"math"
	"math/big"
	"time"

	"github.com/google/uuid"
	"github.com/okian/airrisk/pkg/logger"
)

// randomFloatDivisor sets the resolution of getRandomFloat.
const randomFloatDivisor = 1000000

// band is a closed interval readings are drawn from.
type band struct{ min, max float64 }

func (b band) draw() float64 {
	return round(b.min+getRandomFloat()*(b.max-b.min), 2)
}

// Indoor baseline: CO2 and VOC follow the SGP30/MH-Z19 mock readers; the
// rest are typical office conditions.
var normalBands = struct {
	temperature, humidity, co2, voc, pm25, pm10 band
}{
	temperature: band{18, 28},
	humidity:    band{30, 60},
	co2:         band{400, 1000},
	voc:         band{0.2, 0.8},
	pm25:        band{5, 30},
	pm10:        band{10, 45},
}

// A spike is a pollution event: smoke or an unventilated room.
var spikeBands = struct {
	co2, voc, pm25, pm10 band
}{
	co2:  band{2000, 4000},
	voc:  band{3, 8},
	pm25: band{150, 300},
	pm10: band{200, 400},
}

// getRandomFloat returns a random float64 between 0.0 and 1.0 using crypto/rand.
func getRandomFloat() float64 {
	n, _ := rand.Int(rand.Reader, big.NewInt(randomFloatDivisor))
	return float64(n.Int64()) / float64(randomFloatDivisor)
}

func round(v float64, places int) float64 {
	p := math.Pow(10, float64(places))
	return math.Round(v*p) / p
}

// SensorIDs returns n distinct sensor identifiers.
func SensorIDs(n int) []string {
	ids := make([]string, n)
	for i := range ids {
		ids[i] = fmt.Sprintf("SIM_%03d_%s", i+1, uuid.NewString()[:8])
	}
	return ids
}

// NormalReading draws a reading inside the comfortable indoor bands.
func NormalReading(sensorID string, ts time.Time) Reading {
	return Reading{
		SensorID:    sensorID,
		Timestamp:   ts.UTC(),
		Temperature: normalBands.temperature.draw(),
		Humidity:    normalBands.humidity.draw(),
		CO2:         normalBands.co2.draw(),
		VOC:         normalBands.voc.draw(),
		PM25:        normalBands.pm25.draw(),
		PM10:        normalBands.pm10.draw(),
	}
}

// SpikeReading draws a reading with elevated particulates and gases.
func SpikeReading(sensorID string, ts time.Time) Reading {
	r := NormalReading(sensorID, ts)
	r.CO2 = spikeBands.co2.draw()
	r.VOC = spikeBands.voc.draw()
	r.PM25 = spikeBands.pm25.draw()
	r.PM10 = spikeBands.pm10.draw()
	r.Spike = true
	return r
}

// generateReadings builds Readings per sensor, spaced interval apart and
// ending at now. Each reading is a spike with probability cfg.SpikeRatio.
// Readings are interleaved by time so per-sensor history stays ordered.
func generateReadings(ctx context.Context, cfg *Config, now time.Time, interval time.Duration, stats *Stats) ([]Reading, error) {
	logger.Get().Info(ctx, "generating readings",
		logger.Int("sensors", cfg.Sensors),
		logger.Int("perSensor", cfg.Readings),
		logger.Float64("spikeRatio", cfg.SpikeRatio))

	ids := SensorIDs(cfg.Sensors)
	out := make([]Reading, 0, cfg.Total())
	start := now.Add(-time.Duration(cfg.Readings-1) * interval)

	for step := 0; step < cfg.Readings; step++ {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("context cancelled during generation: %w", err)
		}
		ts := start.Add(time.Duration(step) * interval)
		for _, id := range ids {
			if cfg.SpikeRatio > 0 && getRandomFloat() < cfg.SpikeRatio {
				out = append(out, SpikeReading(id, ts))
				stats.Spikes++
				continue
			}
			out = append(out, NormalReading(id, ts))
		}
	}

	stats.Generated = len(out)
	logger.Get().Info(ctx, "generated readings", logger.Int("count", len(out)), logger.Int("spikes", stats.Spikes))
	return out, nil
}

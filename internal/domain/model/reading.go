// Package model contains domain models passed between layers.
package model

import (
	"fmt"
	"math"
	"strings"
	"time"
)

// Metric identifies one of the six environmental measurements of a reading.
type Metric int

// Supported metrics, in canonical order.
const (
	Temperature Metric = iota
	Humidity
	CO2
	VOC
	PM25
	PM10

	metricCount
)

var metricNames = [metricCount]string{
	Temperature: "temperature",
	Humidity:    "humidity",
	CO2:         "co2",
	VOC:         "voc",
	PM25:        "pm25",
	PM10:        "pm10",
}

// String returns the wire name of the metric, e.g. "pm25".
func (m Metric) String() string {
	if m < 0 || m >= metricCount {
		return fmt.Sprintf("metric(%d)", int(m))
	}
	return metricNames[m]
}

// ParseMetric resolves a wire name to a Metric.
func ParseMetric(name string) (Metric, bool) {
	name = strings.ToLower(strings.TrimSpace(name))
	for i, n := range metricNames {
		if n == name {
			return Metric(i), true
		}
	}
	return 0, false
}

// Metrics returns all metrics in canonical order.
func Metrics() []Metric {
	out := make([]Metric, metricCount)
	for i := range out {
		out[i] = Metric(i)
	}
	return out
}

// RequiredMetrics are the metrics a reading must carry to be assessed.
func RequiredMetrics() []Metric {
	return []Metric{Temperature, Humidity, CO2, PM25}
}

// SensorReading is an immutable set of measurements from one sensor at one instant.
// A metric may be absent; use Value to distinguish absence from zero.
type SensorReading struct {
	SensorID  string
	Timestamp time.Time

	values  [metricCount]float64
	present [metricCount]bool
}

// NewReading builds a reading from the provided metric values.
func NewReading(sensorID string, ts time.Time, values map[Metric]float64) SensorReading {
	r := SensorReading{SensorID: sensorID, Timestamp: ts}
	for m, v := range values {
		if m < 0 || m >= metricCount {
			continue
		}
		r.values[m] = v
		r.present[m] = true
	}
	return r
}

// Value returns the metric value and whether it is present.
func (r SensorReading) Value(m Metric) (float64, bool) {
	if m < 0 || m >= metricCount {
		return 0, false
	}
	return r.values[m], r.present[m]
}

// ValueOr returns the metric value or def when it is absent.
func (r SensorReading) ValueOr(m Metric, def float64) float64 {
	if v, ok := r.Value(m); ok {
		return v
	}
	return def
}

// Has reports whether the metric is present.
func (r SensorReading) Has(m Metric) bool {
	_, ok := r.Value(m)
	return ok
}

// With returns a copy of the reading with m set to v.
func (r SensorReading) With(m Metric, v float64) SensorReading {
	if m < 0 || m >= metricCount {
		return r
	}
	r.values[m] = v
	r.present[m] = true
	return r
}

// Without returns a copy of the reading with m removed.
func (r SensorReading) Without(m Metric) SensorReading {
	if m < 0 || m >= metricCount {
		return r
	}
	r.values[m] = 0
	r.present[m] = false
	return r
}

// OrNow returns a copy stamped with now when the reading carries no timestamp.
func (r SensorReading) OrNow(now time.Time) SensorReading {
	if r.Timestamp.IsZero() {
		r.Timestamp = now
	}
	return r
}

// Values returns the present metrics as a map.
func (r SensorReading) Values() map[Metric]float64 {
	out := make(map[Metric]float64, metricCount)
	for i := Metric(0); i < metricCount; i++ {
		if r.present[i] {
			out[i] = r.values[i]
		}
	}
	return out
}

// CacheKey identifies the reading for memoization: "<sensorId>_<timestamp>".
func (r SensorReading) CacheKey() string {
	return r.SensorID + "_" + r.Timestamp.UTC().Format(time.RFC3339Nano)
}

// Validate rejects readings that cannot be assessed: no sensor id, a missing
// required metric, or a non-finite value on any present metric.
func (r SensorReading) Validate() error {
	if strings.TrimSpace(r.SensorID) == "" {
		return ErrMissingSensorID
	}
	for _, m := range RequiredMetrics() {
		if !r.present[m] {
			return fmt.Errorf("%w: %s", ErrMissingMetric, m)
		}
	}
	for i := Metric(0); i < metricCount; i++ {
		if r.present[i] && (math.IsNaN(r.values[i]) || math.IsInf(r.values[i], 0)) {
			return fmt.Errorf("%w: %s", ErrNonFiniteMetric, i)
		}
	}
	return nil
}

// plausibleRanges bound physically meaningful sensor values.
var plausibleRanges = [metricCount][2]float64{
	Temperature: {-40, 85},
	Humidity:    {0, 100},
	CO2:         {0, 10000},
	VOC:         {0, 100},
	PM25:        {0, 1000},
	PM10:        {0, 1000},
}

// RangeWarnings lists present metrics outside their plausible sensor range.
// Out-of-range values are still assessed.
func (r SensorReading) RangeWarnings() []string {
	var out []string
	for i := Metric(0); i < metricCount; i++ {
		if !r.present[i] {
			continue
		}
		lo, hi := plausibleRanges[i][0], plausibleRanges[i][1]
		if v := r.values[i]; v < lo || v > hi {
			out = append(out, fmt.Sprintf("%s value %g outside valid range [%g, %g]", i, v, lo, hi))
		}
	}
	return out
}

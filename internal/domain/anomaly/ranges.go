// Package anomaly scores how far a reading deviates from expected sensor
// behavior, either from explicit per-metric ranges or from a trained model.
package anomaly

import (
	"math"

	"github.com/okian/airrisk/internal/domain/model"
)

// Range describes the normal and critical bounds of one metric. Values inside
// [NormalMin, NormalMax] score 0; values at or beyond a critical bound score 1;
// values in between score linearly.
type Range struct {
	NormalMin   float64 `koanf:"normal_min" json:"normal_min"`
	NormalMax   float64 `koanf:"normal_max" json:"normal_max"`
	CriticalMin float64 `koanf:"critical_min" json:"critical_min"`
	CriticalMax float64 `koanf:"critical_max" json:"critical_max"`
}

// Valid reports whether CriticalMin <= NormalMin <= NormalMax <= CriticalMax.
func (r Range) Valid() bool {
	return r.CriticalMin <= r.NormalMin && r.NormalMin <= r.NormalMax && r.NormalMax <= r.CriticalMax
}

// Score returns the deviation of v in [0,1].
func (r Range) Score(v float64) float64 {
	switch {
	case math.IsNaN(v):
		return 0
	case v >= r.NormalMin && v <= r.NormalMax:
		return 0
	case v > r.NormalMax:
		if v >= r.CriticalMax || r.CriticalMax == r.NormalMax {
			return 1
		}
		return (v - r.NormalMax) / (r.CriticalMax - r.NormalMax)
	default:
		if v <= r.CriticalMin || r.CriticalMin == r.NormalMin {
			return 1
		}
		return (r.NormalMin - v) / (r.NormalMin - r.CriticalMin)
	}
}

// DefaultRanges returns the indoor air quality bounds used by the rule-based
// scorer. Pollutants have a zero lower bound, so negative values score 1.
func DefaultRanges() map[model.Metric]Range {
	return map[model.Metric]Range{
		model.Temperature: {NormalMin: 10, NormalMax: 35, CriticalMin: 0, CriticalMax: 40},
		model.Humidity:    {NormalMin: 30, NormalMax: 70, CriticalMin: 10, CriticalMax: 90},
		model.CO2:         {NormalMin: 0, NormalMax: 1000, CriticalMin: 0, CriticalMax: 5000},
		model.VOC:         {NormalMin: 0, NormalMax: 0.5, CriticalMin: 0, CriticalMax: 3.0},
		model.PM25:        {NormalMin: 0, NormalMax: 35.4, CriticalMin: 0, CriticalMax: 250.4},
		model.PM10:        {NormalMin: 0, NormalMax: 54, CriticalMin: 0, CriticalMax: 254},
	}
}

// Boost adds Amount to the score when both metrics exceed their thresholds.
type Boost struct {
	Name        string
	First       model.Metric
	FirstAbove  float64
	Second      model.Metric
	SecondAbove float64
	Amount      float64
}

// Applies reports whether the boost condition holds for r.
func (b Boost) Applies(r model.SensorReading) bool {
	a, okA := r.Value(b.First)
	c, okC := r.Value(b.Second)
	return okA && okC && a > b.FirstAbove && c > b.SecondAbove
}

// DefaultBoosts returns the combined-effect boosts.
func DefaultBoosts() []Boost {
	return []Boost{
		{Name: "co2_voc", First: model.CO2, FirstAbove: 1000, Second: model.VOC, SecondAbove: 0.5, Amount: 0.15},
		{Name: "particulate", First: model.PM25, FirstAbove: 50, Second: model.PM10, SecondAbove: 75, Amount: 0.15},
		{Name: "heat_humidity", First: model.Temperature, FirstAbove: 30, Second: model.Humidity, SecondAbove: 70, Amount: 0.10},
	}
}

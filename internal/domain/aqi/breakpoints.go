// Package aqi estimates the EPA air quality index from PM2.5 concentration
// or sanitises the output of a trained regressor.
package aqi

import (
	"math"

	"github.com/okian/airrisk/internal/domain/model"
)

// Index bounds.
const (
	MinIndex = 0.0
	MaxIndex = 500.0
)

// Breakpoint maps the concentration range [CLow, CHigh] onto [ILow, IHigh].
type Breakpoint struct {
	CLow, CHigh float64
	ILow, IHigh float64
	Category    model.AqiCategory
}

// PM25Breakpoints is the EPA PM2.5 (µg/m³, 24h) breakpoint table.
var PM25Breakpoints = []Breakpoint{
	{CLow: 0.0, CHigh: 12.0, ILow: 0, IHigh: 50, Category: model.AqiGood},
	{CLow: 12.1, CHigh: 35.4, ILow: 51, IHigh: 100, Category: model.AqiModerate},
	{CLow: 35.5, CHigh: 55.4, ILow: 101, IHigh: 150, Category: model.AqiUnhealthySensitive},
	{CLow: 55.5, CHigh: 150.4, ILow: 151, IHigh: 200, Category: model.AqiUnhealthy},
	{CLow: 150.5, CHigh: 250.4, ILow: 201, IHigh: 300, Category: model.AqiVeryUnhealthy},
	{CLow: 250.5, CHigh: 500.4, ILow: 301, IHigh: 500, Category: model.AqiHazardous},
}

// FromPM25 applies the EPA piecewise-linear formula and rounds to the nearest
// integer. Concentrations falling in the 0.1 gap between two bands take the
// lower edge of the upper band. Values above the table saturate at 500;
// negative or NaN input is invalid and yields 0.
func FromPM25(c float64) (float64, model.AqiCategory) {
	if math.IsNaN(c) || c < 0 {
		return MinIndex, model.AqiInvalid
	}
	for _, bp := range PM25Breakpoints {
		if c > bp.CHigh {
			continue
		}
		if c < bp.CLow {
			c = bp.CLow
		}
		idx := (bp.IHigh-bp.ILow)/(bp.CHigh-bp.CLow)*(c-bp.CLow) + bp.ILow
		return math.Round(idx), bp.Category
	}
	last := PM25Breakpoints[len(PM25Breakpoints)-1]
	return MaxIndex, last.Category
}

// CategoryOf labels an index using the same breakpoint table.
func CategoryOf(index float64) model.AqiCategory {
	if math.IsNaN(index) || index < 0 {
		return model.AqiInvalid
	}
	for _, bp := range PM25Breakpoints {
		if index <= bp.IHigh {
			return bp.Category
		}
	}
	return PM25Breakpoints[len(PM25Breakpoints)-1].Category
}

// Sanitize maps a raw index into [0,500]: NaN and -Inf become 0, +Inf becomes 500.
func Sanitize(v float64) float64 {
	switch {
	case math.IsNaN(v), math.IsInf(v, -1):
		return MinIndex
	case math.IsInf(v, 1):
		return MaxIndex
	}
	return math.Max(MinIndex, math.Min(MaxIndex, v))
}

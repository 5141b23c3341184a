package features

import "math"

type rollingStats struct {
	mean, std, min, max []float64
}

// rolling computes trailing-window statistics with minimum-periods-1
// semantics: each row uses up to size samples ending at that row and skips
// gaps. std is the sample deviation and is undefined below two samples.
func rolling(col []float64, size int) rollingStats {
	n := len(col)
	out := rollingStats{
		mean: make([]float64, n),
		std:  make([]float64, n),
		min:  make([]float64, n),
		max:  make([]float64, n),
	}
	for i := range col {
		start := max(0, i-size+1)
		var sum, sumSq float64
		count := 0
		lo, hi := math.Inf(1), math.Inf(-1)
		for _, v := range col[start : i+1] {
			if math.IsNaN(v) {
				continue
			}
			count++
			sum += v
			lo = math.Min(lo, v)
			hi = math.Max(hi, v)
		}
		if count == 0 {
			out.mean[i], out.std[i], out.min[i], out.max[i] = math.NaN(), math.NaN(), math.NaN(), math.NaN()
			continue
		}
		mean := sum / float64(count)
		for _, v := range col[start : i+1] {
			if !math.IsNaN(v) {
				sumSq += (v - mean) * (v - mean)
			}
		}
		out.mean[i], out.min[i], out.max[i] = mean, lo, hi
		out.std[i] = math.NaN()
		if count > 1 {
			out.std[i] = math.Sqrt(sumSq / float64(count-1))
		}
	}
	return out
}

// diff is the first difference; the first row and rows next to a gap are undefined.
func diff(col []float64) []float64 {
	out := make([]float64, len(col))
	for i := range col {
		if i == 0 {
			out[i] = math.NaN()
			continue
		}
		out[i] = col[i] - col[i-1]
	}
	return out
}

// pctChange is the relative change from the previous row. A zero previous
// value has no defined change.
func pctChange(col []float64) []float64 {
	out := make([]float64, len(col))
	for i := range col {
		if i == 0 || col[i-1] == 0 {
			out[i] = math.NaN()
			continue
		}
		out[i] = finiteOrNaN((col[i] - col[i-1]) / col[i-1])
	}
	return out
}

func mapRows(n int, f func(i int) float64) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = finiteOrNaN(f(i))
	}
	return out
}

func finiteOrNaN(v float64) float64 {
	if math.IsInf(v, 0) {
		return math.NaN()
	}
	return v
}

// humidex estimates apparent temperature from air temperature (°C) and
// relative humidity (%), using the Magnus approximation for the dew point.
func humidex(t, rh float64) float64 {
	if math.IsNaN(t) || math.IsNaN(rh) {
		return math.NaN()
	}
	rh = math.Max(1, math.Min(100, rh))
	const a, b = 17.27, 237.7
	g := a*t/(b+t) + math.Log(rh/100)
	dew := b * g / (a - g)
	return t + 0.5555*(6.11*math.Exp(5417.7530*(1/273.16-1/(dew+273.15)))-10)
}

// timeCategory buckets an hour into night [0,6), morning [6,12),
// afternoon [12,18) and evening [18,24).
func timeCategory(hour int) string {
	switch {
	case hour < 6:
		return "night"
	case hour < 12:
		return "morning"
	case hour < 18:
		return "afternoon"
	default:
		return "evening"
	}
}

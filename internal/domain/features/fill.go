package features

import (
	"math"
	"sort"
)

// fillColumn imputes gaps in place: forward fill, then backward fill, each
// bridging at most limit consecutive gaps, then the column median. A column
// with no observed values becomes all zeros.
func fillColumn(col []float64, limit int) {
	forwardFill(col, limit)
	backwardFill(col, limit)

	med, ok := median(col)
	if !ok {
		med = 0
	}
	for i, v := range col {
		if math.IsNaN(v) {
			col[i] = med
		}
	}
}

func forwardFill(col []float64, limit int) {
	last, run := math.NaN(), 0
	for i, v := range col {
		if !math.IsNaN(v) {
			last, run = v, 0
			continue
		}
		run++
		if !math.IsNaN(last) && run <= limit {
			col[i] = last
		}
	}
}

func backwardFill(col []float64, limit int) {
	next, run := math.NaN(), 0
	for i := len(col) - 1; i >= 0; i-- {
		if v := col[i]; !math.IsNaN(v) {
			next, run = v, 0
			continue
		}
		run++
		if !math.IsNaN(next) && run <= limit {
			col[i] = next
		}
	}
}

func median(col []float64) (float64, bool) {
	vals := make([]float64, 0, len(col))
	for _, v := range col {
		if !math.IsNaN(v) {
			vals = append(vals, v)
		}
	}
	if len(vals) == 0 {
		return 0, false
	}
	sort.Float64s(vals)
	mid := len(vals) / 2
	if len(vals)%2 == 1 {
		return vals[mid], true
	}
	return (vals[mid-1] + vals[mid]) / 2, true
}

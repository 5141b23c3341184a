package artifacts

import (
	"fmt"
	"math"

	"github.com/okian/airrisk/internal/domain/model"
)

// Scaler standardizes numeric columns: (x - mean) / std. A zero or missing
// std leaves the centered value unscaled.
type Scaler struct {
	Means map[string]float64 `json:"means"`
	Stds  map[string]float64 `json:"stds"`
}

func (s Scaler) apply(name string, v float64) float64 {
	v -= s.Means[name]
	if sd := s.Stds[name]; sd > 0 && !math.IsInf(sd, 0) {
		v /= sd
	}
	return v
}

// numeric reads schema columns from fv in schema order. Missing or
// non-finite columns read as 0.
func numeric(fv *model.FeatureVector, schema model.Schema) []float64 {
	out := make([]float64, len(schema.Numeric))
	for i, name := range schema.Numeric {
		v, ok := fv.Get(name)
		if !ok || math.IsNaN(v) || math.IsInf(v, 0) {
			continue
		}
		out[i] = v
	}
	return out
}

func checkColumns(kind string, schema model.Schema, params map[string]float64) error {
	known := make(map[string]struct{}, len(schema.Numeric))
	for _, c := range schema.Numeric {
		known[c] = struct{}{}
	}
	for c := range params {
		if _, ok := known[c]; !ok {
			return fmt.Errorf("%w: %s column %q", ErrSchemaMismatch, kind, c)
		}
	}
	return nil
}

package anomaly

import (
	"math"

	"github.com/okian/airrisk/internal/domain/model"
)

// Calibration fixes the raw score range used for normalization, typically the
// range observed when the model was fit. A zero Calibration means "normalize
// over the batch being scored".
type Calibration struct {
	Min float64 `json:"min"`
	Max float64 `json:"max"`
}

// Set reports whether the calibration defines a usable range.
func (c Calibration) Set() bool {
	return !math.IsNaN(c.Min) && !math.IsNaN(c.Max) && c.Max > c.Min
}

// Normalize maps raw isolation-style scores (lower = more anomalous) to [0,1]
// with 1 = most anomalous within the batch: 1 - (s-min)/(max-min). When the
// range is degenerate or not finite every score is 0 and ErrDegenerateRange
// is returned.
func Normalize(raw []float64) ([]float64, error) {
	out := make([]float64, len(raw))
	if len(raw) == 0 {
		return out, ErrDegenerateRange
	}
	lo, hi := math.Inf(1), math.Inf(-1)
	for _, s := range raw {
		if math.IsNaN(s) || math.IsInf(s, 0) {
			return out, ErrDegenerateRange
		}
		lo = math.Min(lo, s)
		hi = math.Max(hi, s)
	}
	den := hi - lo
	if den == 0 || math.IsNaN(den) || math.IsInf(den, 0) {
		return out, ErrDegenerateRange
	}
	for i, s := range raw {
		out[i] = clamp01(1 - (s-lo)/den)
	}
	return out, nil
}

// NormalizeCalibrated maps one raw score against a fixed calibration range.
func NormalizeCalibrated(raw float64, c Calibration) (float64, error) {
	if !c.Set() || math.IsNaN(raw) || math.IsInf(raw, 0) {
		return 0, ErrDegenerateRange
	}
	return clamp01(1 - (raw-c.Min)/(c.Max-c.Min)), nil
}

// FromModel builds an assessment from a normalized model score and the
// model's own classification. A weak positive classification below
// minConfidence is cleared so the flag never contradicts a low score.
func FromModel(score float64, flagged bool, minConfidence float64) model.AnomalyAssessment {
	score = clamp01(score)
	return model.AnomalyAssessment{
		Score:     score,
		IsAnomaly: flagged && score >= minConfidence,
		Source:    model.SourceModel,
	}
}

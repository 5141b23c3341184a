// Package risk merges anomaly and AQI evidence into a bounded risk score and
// a four-tier risk level.
package risk

import (
	"fmt"
	"math"

	"github.com/okian/airrisk/internal/domain/aqi"
	"github.com/okian/airrisk/internal/domain/model"
)

// Weights scale the anomaly score and the normalized AQI. They need not sum to 1.
type Weights struct {
	Anomaly float64
	AQI     float64
}

// DefaultWeights returns 0.5 / 0.5.
func DefaultWeights() Weights { return Weights{Anomaly: 0.5, AQI: 0.5} }

// Validate rejects negative or non-finite weights.
func (w Weights) Validate() error {
	for name, v := range map[string]float64{"anomaly": w.Anomaly, "aqi": w.AQI} {
		if v < 0 || math.IsNaN(v) || math.IsInf(v, 0) {
			return fmt.Errorf("%w: %s=%v", ErrNegativeWeight, name, v)
		}
	}
	return nil
}

// Option applies a configuration option to the Combiner.
type Option func(*Combiner)

// WithWeights sets the ensemble weights.
func WithWeights(w Weights) Option {
	return func(c *Combiner) { c.weights = w }
}

// WithPolicy sets the tiering policy.
func WithPolicy(p Policy) Option {
	return func(c *Combiner) {
		if p != nil {
			c.policy = p
		}
	}
}

// Combiner is the ensemble step. It holds only read-only configuration.
type Combiner struct {
	weights Weights
	policy  Policy
}

// NewCombiner creates a combiner, validating the weights.
func NewCombiner(opts ...Option) (*Combiner, error) {
	c := &Combiner{
		weights: DefaultWeights(),
		policy:  ScorePolicy{Tiers: DefaultTiers(), Override: DefaultOverride()},
	}
	for _, opt := range opts {
		opt(c)
	}
	if err := c.weights.Validate(); err != nil {
		return nil, err
	}
	if sp, ok := c.policy.(ScorePolicy); ok {
		if err := sp.Tiers.Validate(); err != nil {
			return nil, err
		}
	}
	return c, nil
}

// Policy returns the configured tiering policy.
func (c *Combiner) Policy() Policy { return c.policy }

// Combine computes clamp(anomaly*wA + aqi/500*wQ, 0, 1) and classifies it.
// Inputs are sanitized first so no NaN or Inf can reach the result.
func (c *Combiner) Combine(an model.AnomalyAssessment, aq model.AqiAssessment) model.RiskAssessment {
	an.Score = unit(an.Score)
	aq.Value = aqi.Sanitize(aq.Value)
	if aq.Category == "" {
		aq.Category = aqi.CategoryOf(aq.Value)
	}

	aqiNorm := unit(aq.Value / aqi.MaxIndex)
	score := unit(an.Score*c.weights.Anomaly + aqiNorm*c.weights.AQI)
	lvl, overridden := c.policy.Classify(score, an, aq)

	return model.RiskAssessment{
		Score:           score,
		Level:           lvl,
		Anomaly:         an,
		AQI:             aq,
		Policy:          c.policy.Name(),
		OverrideApplied: overridden,
	}
}

func unit(v float64) float64 {
	if math.IsNaN(v) {
		return 0
	}
	return math.Max(0, math.Min(1, v))
}

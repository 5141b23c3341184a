package anomaly

import (
	"math"

	"github.com/okian/airrisk/internal/domain/model"
)

// DefaultThreshold is the score at or above which a reading is anomalous.
const DefaultThreshold = 0.3

// Option applies a configuration option to the RuleScorer.
type Option func(*RuleScorer)

// WithRanges replaces the per-metric ranges. Invalid ranges are ignored.
func WithRanges(ranges map[model.Metric]Range) Option {
	return func(s *RuleScorer) {
		for m, r := range ranges {
			if r.Valid() {
				s.ranges[m] = r
			}
		}
	}
}

// WithBoosts replaces the combined-effect boosts.
func WithBoosts(boosts []Boost) Option {
	return func(s *RuleScorer) {
		if boosts != nil {
			s.boosts = append([]Boost(nil), boosts...)
		}
	}
}

// WithThreshold sets the anomaly flag threshold.
func WithThreshold(threshold float64) Option {
	return func(s *RuleScorer) {
		if threshold > 0 && threshold <= 1 {
			s.threshold = threshold
		}
	}
}

// RuleScorer scores readings against explicit normal and critical ranges.
// It is safe for concurrent use.
type RuleScorer struct {
	ranges    map[model.Metric]Range
	boosts    []Boost
	threshold float64
}

// NewRuleScorer creates a rule-based scorer with default ranges and boosts.
func NewRuleScorer(opts ...Option) *RuleScorer {
	s := &RuleScorer{
		ranges:    DefaultRanges(),
		boosts:    DefaultBoosts(),
		threshold: DefaultThreshold,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Threshold returns the anomaly flag threshold.
func (s *RuleScorer) Threshold() float64 { return s.threshold }

// Score averages per-metric deviations over the metrics present in r, adds
// the boosts whose conditions hold, and caps the total at 1.
func (s *RuleScorer) Score(r model.SensorReading) model.AnomalyAssessment {
	breakdown := make(map[model.Metric]float64, len(s.ranges))
	var sum float64
	for _, m := range model.Metrics() {
		rng, ok := s.ranges[m]
		if !ok {
			continue
		}
		v, present := r.Value(m)
		if !present {
			continue
		}
		ms := clamp01(rng.Score(v))
		breakdown[m] = ms
		sum += ms
	}

	var score float64
	if len(breakdown) > 0 {
		score = sum / float64(len(breakdown))
	}
	for _, b := range s.boosts {
		if b.Amount > 0 && b.Applies(r) {
			score += b.Amount
		}
	}
	score = clamp01(score)

	return model.AnomalyAssessment{
		Score:     score,
		IsAnomaly: score >= s.threshold,
		Breakdown: breakdown,
		Source:    model.SourceRules,
	}
}

func clamp01(v float64) float64 {
	if math.IsNaN(v) {
		return 0
	}
	return math.Max(0, math.Min(1, v))
}

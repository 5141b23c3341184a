package engine

import (
	"context"
	"fmt"

	"github.com/okian/airrisk/internal/domain/anomaly"
	"github.com/okian/airrisk/internal/domain/aqi"
	"github.com/okian/airrisk/internal/domain/features"
	"github.com/okian/airrisk/internal/domain/model"
)

// Strategy names.
const (
	StrategyRules = "rules"
	StrategyModel = "model"
)

// Fallback components.
const (
	ComponentAnomaly = "anomaly"
	ComponentAQI     = "aqi"
)

// Input is one validated reading with its engineered features.
type Input struct {
	Reading  model.SensorReading
	Features *model.FeatureVector
}

// Strategy produces the anomaly and AQI evidence for readings.
type Strategy interface {
	Name() string
	// ScoreAnomaly scores a batch; the result is parallel to inputs.
	ScoreAnomaly(ctx context.Context, inputs []Input) ([]model.AnomalyAssessment, error)
	EstimateAQI(ctx context.Context, in Input) (model.AqiAssessment, error)
}

// RuleStrategy uses range rules for anomalies and the EPA formula for AQI.
type RuleStrategy struct {
	scorer *anomaly.RuleScorer
}

// NewRuleStrategy creates the deterministic strategy.
func NewRuleStrategy(scorer *anomaly.RuleScorer) *RuleStrategy {
	if scorer == nil {
		scorer = anomaly.NewRuleScorer()
	}
	return &RuleStrategy{scorer: scorer}
}

// Name implements Strategy.
func (s *RuleStrategy) Name() string { return StrategyRules }

// ScoreAnomaly implements Strategy.
func (s *RuleStrategy) ScoreAnomaly(_ context.Context, inputs []Input) ([]model.AnomalyAssessment, error) {
	out := make([]model.AnomalyAssessment, len(inputs))
	for i, in := range inputs {
		out[i] = s.scorer.Score(in.Reading)
	}
	return out, nil
}

// EstimateAQI implements Strategy.
func (s *RuleStrategy) EstimateAQI(_ context.Context, in Input) (model.AqiAssessment, error) {
	return aqi.Estimate(in.Reading), nil
}

// FallbackFunc observes a component falling back to rules.
type FallbackFunc func(component string, err error)

// ModelStrategy uses the registry's models and falls back to rules per
// component whenever a model is absent, fails, or gives no usable score.
type ModelStrategy struct {
	registry      *Registry
	rules         *RuleStrategy
	minConfidence float64
	onFallback    FallbackFunc
}

// ModelOption configures a ModelStrategy.
type ModelOption func(*ModelStrategy)

// WithMinConfidence sets the score below which a model's anomaly flag is cleared.
func WithMinConfidence(v float64) ModelOption {
	return func(s *ModelStrategy) { s.minConfidence = v }
}

// WithFallbackHook registers an observer for fallbacks.
func WithFallbackHook(f FallbackFunc) ModelOption {
	return func(s *ModelStrategy) { s.onFallback = f }
}

// NewModelStrategy creates a model-backed strategy over reg.
func NewModelStrategy(reg *Registry, rules *RuleStrategy, opts ...ModelOption) *ModelStrategy {
	if rules == nil {
		rules = NewRuleStrategy(nil)
	}
	s := &ModelStrategy{
		registry:      reg,
		rules:         rules,
		minConfidence: anomaly.DefaultThreshold,
		onFallback:    func(string, error) {},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// SelectStrategy returns a ModelStrategy when reg holds any model and the
// rules otherwise.
func SelectStrategy(reg *Registry, rules *RuleStrategy, opts ...ModelOption) Strategy {
	if reg.Empty() {
		if rules == nil {
			rules = NewRuleStrategy(nil)
		}
		return rules
	}
	return NewModelStrategy(reg, rules, opts...)
}

// Name implements Strategy.
func (s *ModelStrategy) Name() string { return StrategyModel }

// ScoreAnomaly normalizes raw model scores to [0,1], against the model's
// calibration range when it has one and over the batch otherwise. Items the
// model cannot score, and whole batches with no score spread, are scored by
// rules instead.
func (s *ModelStrategy) ScoreAnomaly(ctx context.Context, inputs []Input) ([]model.AnomalyAssessment, error) {
	m := s.registry.Anomaly
	if m == nil {
		return s.rules.ScoreAnomaly(ctx, inputs)
	}

	schema := m.Schema()
	raw := make([]float64, len(inputs))
	flags := make([]bool, len(inputs))
	failed := make([]error, len(inputs))
	for i, in := range inputs {
		fv, _ := features.Align(in.Features, schema)
		raw[i], failed[i] = m.Score(fv)
		if failed[i] != nil {
			continue
		}
		class, err := m.Classify(fv)
		if err != nil {
			failed[i] = err
			continue
		}
		flags[i] = class == ClassAnomaly
	}

	scores, err := s.normalize(raw, failed, m.Calibration())
	out := make([]model.AnomalyAssessment, len(inputs))
	for i, in := range inputs {
		cause := failed[i]
		if cause == nil && err != nil {
			cause = err
		}
		if cause != nil {
			s.onFallback(ComponentAnomaly, cause)
			res, _ := s.rules.ScoreAnomaly(ctx, []Input{in})
			out[i] = res[0]
			continue
		}
		out[i] = anomaly.FromModel(scores[i], flags[i], s.minConfidence)
	}
	return out, nil
}

func (s *ModelStrategy) normalize(raw []float64, failed []error, cal anomaly.Calibration) ([]float64, error) {
	if cal.Set() {
		out := make([]float64, len(raw))
		for i, v := range raw {
			if failed[i] != nil {
				continue
			}
			n, err := anomaly.NormalizeCalibrated(v, cal)
			if err != nil {
				failed[i] = err
				continue
			}
			out[i] = n
		}
		return out, nil
	}

	idx := make([]int, 0, len(raw))
	usable := make([]float64, 0, len(raw))
	for i, v := range raw {
		if failed[i] == nil {
			idx = append(idx, i)
			usable = append(usable, v)
		}
	}
	if len(usable) == 0 {
		return make([]float64, len(raw)), nil
	}
	norm, err := anomaly.Normalize(usable)
	if err != nil {
		return nil, fmt.Errorf("batch of %d: %w", len(usable), err)
	}
	out := make([]float64, len(raw))
	for j, i := range idx {
		out[i] = norm[j]
	}
	return out, nil
}

// EstimateAQI predicts with the regressor on target-free features and maps
// NaN or Inf onto the AQI bounds. A missing model or a prediction error uses
// the EPA formula.
func (s *ModelStrategy) EstimateAQI(ctx context.Context, in Input) (model.AqiAssessment, error) {
	m := s.registry.AQI
	if m == nil {
		return s.rules.EstimateAQI(ctx, in)
	}
	schema := m.Schema()
	if schema.Empty() {
		schema = features.SchemaOf(in.Features)
	}
	fv, _ := features.Align(in.Features, features.WithoutTargets(schema))
	v, err := m.Predict(fv)
	if err != nil {
		s.onFallback(ComponentAQI, fmt.Errorf("aqi model: %w", err))
		return s.rules.EstimateAQI(ctx, in)
	}
	return aqi.FromPrediction(v), nil
}

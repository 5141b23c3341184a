package risk

import (
	"fmt"
	"strings"

	"github.com/okian/airrisk/internal/domain/model"
)

// Policy names.
const (
	PolicyScore      = "score"
	PolicyAQIPrimary = "aqi_primary"
)

// Tiers are the score boundaries for the score tiering policy:
// score < Moderate is LOW, < High is MODERATE, < Critical is HIGH, else CRITICAL.
type Tiers struct {
	Moderate float64
	High     float64
	Critical float64
}

// DefaultTiers returns 0.3 / 0.6 / 0.8.
func DefaultTiers() Tiers {
	return Tiers{Moderate: 0.3, High: 0.6, Critical: 0.8}
}

// Validate checks 0 < Moderate < High < Critical <= 1.
func (t Tiers) Validate() error {
	if t.Moderate <= 0 || t.Moderate >= t.High || t.High >= t.Critical || t.Critical > 1 {
		return fmt.Errorf("%w: %v/%v/%v", ErrInvalidTiers, t.Moderate, t.High, t.Critical)
	}
	return nil
}

// Level maps a combined score onto a tier.
func (t Tiers) Level(score float64) model.RiskLevel {
	switch {
	case score < t.Moderate:
		return model.RiskLow
	case score < t.High:
		return model.RiskModerate
	case score < t.Critical:
		return model.RiskHigh
	default:
		return model.RiskCritical
	}
}

// Override governs when an anomaly flag can force escalation. A flagged
// anomaly lifts the level to at least Floor only when the anomaly score is at
// least MinAnomalyScore and the combined score is at least MinRiskScore.
type Override struct {
	MinAnomalyScore float64
	MinRiskScore    float64
	Floor           model.RiskLevel
}

// DefaultOverride returns the 0.3 / 0.3 / HIGH override.
func DefaultOverride() Override {
	return Override{MinAnomalyScore: 0.3, MinRiskScore: 0.3, Floor: model.RiskHigh}
}

// Policy classifies a combined score into a risk level.
type Policy interface {
	Name() string
	// Classify returns the level and whether the anomaly override was applied.
	Classify(score float64, an model.AnomalyAssessment, aq model.AqiAssessment) (model.RiskLevel, bool)
}

// ScorePolicy tiers by combined score and applies the anomaly override.
type ScorePolicy struct {
	Tiers    Tiers
	Override Override
}

// Name implements Policy.
func (p ScorePolicy) Name() string { return PolicyScore }

// Classify implements Policy.
func (p ScorePolicy) Classify(score float64, an model.AnomalyAssessment, _ model.AqiAssessment) (model.RiskLevel, bool) {
	lvl := p.Tiers.Level(score)
	if !an.IsAnomaly || an.Score < p.Override.MinAnomalyScore || score < p.Override.MinRiskScore {
		return lvl, false
	}
	raised := lvl.AtLeast(p.Override.Floor)
	return raised, raised != lvl
}

// AQIPrimaryPolicy classifies by AQI band first and escalates by anomaly
// score: one tier for scores in [Escalate1, Escalate2), two tiers at or above
// Escalate2. A flagged anomaly at or above Escalate2 always yields at least HIGH.
type AQIPrimaryPolicy struct {
	Escalate1 float64
	Escalate2 float64
}

// DefaultAQIPrimary returns the 0.4 / 0.7 escalation policy.
func DefaultAQIPrimary() AQIPrimaryPolicy {
	return AQIPrimaryPolicy{Escalate1: 0.4, Escalate2: 0.7}
}

// Validate checks 0 < Escalate1 < Escalate2 <= 1.
func (p AQIPrimaryPolicy) Validate() error {
	if p.Escalate1 <= 0 || p.Escalate1 >= p.Escalate2 || p.Escalate2 > 1 {
		return fmt.Errorf("%w: %.2f/%.2f", ErrInvalidEscalation, p.Escalate1, p.Escalate2)
	}
	return nil
}

// Name implements Policy.
func (p AQIPrimaryPolicy) Name() string { return PolicyAQIPrimary }

// Classify implements Policy.
func (p AQIPrimaryPolicy) Classify(_ float64, an model.AnomalyAssessment, aq model.AqiAssessment) (model.RiskLevel, bool) {
	base := aqiBand(aq.Value)
	lvl := base
	switch {
	case an.Score >= p.Escalate2:
		lvl = base.Escalate(2)
	case an.Score >= p.Escalate1:
		lvl = base.Escalate(1)
	}
	if an.IsAnomaly && an.Score >= p.Escalate2 {
		lvl = lvl.AtLeast(model.RiskHigh)
	}
	return lvl, lvl != base
}

// aqiBand: <=50 LOW, <=150 MODERATE, otherwise HIGH. Only escalation reaches CRITICAL.
func aqiBand(v float64) model.RiskLevel {
	switch {
	case v <= 50:
		return model.RiskLow
	case v <= 150:
		return model.RiskModerate
	default:
		return model.RiskHigh
	}
}

// PolicyByName returns the named policy. The score policy uses tiers and
// override; the AQI-primary policy uses escalation.
func PolicyByName(name string, tiers Tiers, override Override, escalation AQIPrimaryPolicy) (Policy, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", PolicyScore:
		return ScorePolicy{Tiers: tiers, Override: override}, nil
	case PolicyAQIPrimary:
		if err := escalation.Validate(); err != nil {
			return nil, err
		}
		return escalation, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownPolicy, name)
	}
}

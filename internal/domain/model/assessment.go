package model

import "strings"

// Source names the strategy that produced a score.
type Source string

// Score sources.
const (
	SourceRules   Source = "rules"
	SourceFormula Source = "epa_formula"
	SourceModel   Source = "model"
)

// AqiCategory is the EPA label for an AQI value.
type AqiCategory string

// AQI categories, ordered from best to worst. AqiInvalid marks unusable input.
const (
	AqiGood               AqiCategory = "Good"
	AqiModerate           AqiCategory = "Moderate"
	AqiUnhealthySensitive AqiCategory = "Unhealthy for Sensitive"
	AqiUnhealthy          AqiCategory = "Unhealthy"
	AqiVeryUnhealthy      AqiCategory = "Very Unhealthy"
	AqiHazardous          AqiCategory = "Hazardous"
	AqiInvalid            AqiCategory = "Invalid"
	AqiUnknown            AqiCategory = "Unknown"
)

// AnomalyAssessment is the anomaly verdict for one reading.
type AnomalyAssessment struct {
	Score     float64 // in [0,1], 1 = most anomalous
	IsAnomaly bool
	Breakdown map[Metric]float64 // per-metric scores, rule-based path only
	Source    Source
}

// AqiAssessment is the AQI estimate for one reading.
type AqiAssessment struct {
	Value    float64 // in [0,500]
	Category AqiCategory
	Source   Source
}

// RiskLevel is the four-tier risk classification.
type RiskLevel string

// Risk levels in increasing order.
const (
	RiskLow      RiskLevel = "LOW"
	RiskModerate RiskLevel = "MODERATE"
	RiskHigh     RiskLevel = "HIGH"
	RiskCritical RiskLevel = "CRITICAL"
)

var riskOrder = []RiskLevel{RiskLow, RiskModerate, RiskHigh, RiskCritical}

// Rank orders risk levels; unknown levels rank below LOW.
func (l RiskLevel) Rank() int {
	for i, r := range riskOrder {
		if r == l {
			return i
		}
	}
	return -1
}

// Escalate moves the level up by n tiers, capped at CRITICAL.
func (l RiskLevel) Escalate(n int) RiskLevel {
	i := l.Rank() + n
	if i < 0 {
		i = 0
	}
	if i >= len(riskOrder) {
		i = len(riskOrder) - 1
	}
	return riskOrder[i]
}

// AtLeast returns the higher of l and floor.
func (l RiskLevel) AtLeast(floor RiskLevel) RiskLevel {
	if floor.Rank() > l.Rank() {
		return floor
	}
	return l
}

// ParseRiskLevel accepts the four levels case-insensitively; MEDIUM is an
// alias for MODERATE.
func ParseRiskLevel(s string) (RiskLevel, bool) {
	s = strings.ToUpper(strings.TrimSpace(s))
	if s == "MEDIUM" {
		return RiskModerate, true
	}
	for _, r := range riskOrder {
		if string(r) == s {
			return r, true
		}
	}
	return "", false
}

// RiskAssessment merges anomaly and AQI evidence for one reading.
type RiskAssessment struct {
	Score           float64 // in [0,1]
	Level           RiskLevel
	Anomaly         AnomalyAssessment
	AQI             AqiAssessment
	Policy          string
	OverrideApplied bool
}

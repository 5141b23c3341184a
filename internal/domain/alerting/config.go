// Package alerting decides which alert events a risk assessment raises.
package alerting

import (
	"errors"
	"fmt"

	"github.com/okian/airrisk/internal/domain/model"
)

// ErrInvalidThresholds is returned when alert thresholds are not increasing.
var ErrInvalidThresholds = errors.New("alert thresholds must be increasing")

// Thresholds configure when alerts fire and how severe they are.
type Thresholds struct {
	// AQI_HIGH fires above AQIWarning; severity rises at AQIDanger and AQIEmergency.
	AQIWarning   float64 `koanf:"aqi_warning"`
	AQIDanger    float64 `koanf:"aqi_danger"`
	AQIEmergency float64 `koanf:"aqi_emergency"`

	// ANOMALY_DETECTED starts at WARNING and rises at these scores.
	AnomalyDanger   float64 `koanf:"anomaly_danger"`
	AnomalyCritical float64 `koanf:"anomaly_critical"`

	// RISK_ESCALATION fires at or above this level. Empty disables it.
	EscalationLevel model.RiskLevel `koanf:"escalation_level"`
}

// DefaultThresholds returns AQI 100/200/300, anomaly 0.7/0.9 and escalation at CRITICAL.
func DefaultThresholds() Thresholds {
	return Thresholds{
		AQIWarning:      100,
		AQIDanger:       200,
		AQIEmergency:    300,
		AnomalyDanger:   0.7,
		AnomalyCritical: 0.9,
		EscalationLevel: model.RiskCritical,
	}
}

// Validate checks the threshold ordering.
func (t Thresholds) Validate() error {
	if !(t.AQIWarning <= t.AQIDanger && t.AQIDanger <= t.AQIEmergency) {
		return fmt.Errorf("%w: aqi %v/%v/%v", ErrInvalidThresholds, t.AQIWarning, t.AQIDanger, t.AQIEmergency)
	}
	if !(t.AnomalyDanger <= t.AnomalyCritical) {
		return fmt.Errorf("%w: anomaly %v/%v", ErrInvalidThresholds, t.AnomalyDanger, t.AnomalyCritical)
	}
	if t.EscalationLevel != "" && t.EscalationLevel.Rank() < 0 {
		return fmt.Errorf("%w: unknown escalation level %q", ErrInvalidThresholds, t.EscalationLevel)
	}
	return nil
}

package alerting

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/okian/airrisk/internal/domain/model"
)

const unknownSensor = "UNKNOWN"

// Option applies a configuration option to the Engine.
type Option func(*Engine)

// WithThresholds sets the alert thresholds.
func WithThresholds(t Thresholds) Option {
	return func(e *Engine) { e.thresholds = t }
}

// WithClock sets the clock used for triggeredAt.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) {
		if now != nil {
			e.now = now
		}
	}
}

// WithIDs sets the alert id generator.
func WithIDs(next func() string) Option {
	return func(e *Engine) {
		if next != nil {
			e.newID = next
		}
	}
}

// Engine evaluates independent trigger conditions for each assessment. It
// keeps no memory of earlier alerts; deduplication belongs to the alert store.
type Engine struct {
	thresholds Thresholds
	now        func() time.Time
	newID      func() string
}

// NewEngine creates an alert engine.
func NewEngine(opts ...Option) (*Engine, error) {
	e := &Engine{
		thresholds: DefaultThresholds(),
		now:        time.Now,
		newID:      uuid.NewString,
	}
	for _, opt := range opts {
		opt(e)
	}
	if err := e.thresholds.Validate(); err != nil {
		return nil, err
	}
	return e, nil
}

// Thresholds returns the active thresholds.
func (e *Engine) Thresholds() Thresholds { return e.thresholds }

// Decide returns zero or more alerts for ra, in the order anomaly, AQI, risk.
// Apart from id and triggeredAt the result depends only on its inputs.
func (e *Engine) Decide(ra model.RiskAssessment, r model.SensorReading) []model.AlertEvent {
	var out []model.AlertEvent
	if ra.Anomaly.IsAnomaly {
		out = append(out, e.event(r, model.AlertAnomalyDetected, e.anomalySeverity(ra.Anomaly.Score),
			fmt.Sprintf("Anomaly detected with score %.2f", ra.Anomaly.Score)))
	}
	if ra.AQI.Value > e.thresholds.AQIWarning {
		out = append(out, e.event(r, model.AlertAQIHigh, e.aqiSeverity(ra.AQI.Value),
			fmt.Sprintf("High AQI predicted: %.1f", ra.AQI.Value)))
	}
	if lvl := e.thresholds.EscalationLevel; lvl != "" && ra.Level.Rank() >= lvl.Rank() {
		out = append(out, e.event(r, model.AlertRiskEscalation, riskSeverity(ra.Level),
			fmt.Sprintf("Risk escalated to %s (score %.2f)", ra.Level, ra.Score)))
	}
	return out
}

func (e *Engine) anomalySeverity(score float64) model.Severity {
	switch {
	case score >= e.thresholds.AnomalyCritical:
		return model.SeverityCritical
	case score >= e.thresholds.AnomalyDanger:
		return model.SeverityDanger
	default:
		return model.SeverityWarning
	}
}

// aqiSeverity picks the highest threshold crossed.
func (e *Engine) aqiSeverity(v float64) model.Severity {
	switch {
	case v >= e.thresholds.AQIEmergency:
		return model.SeverityCritical
	case v >= e.thresholds.AQIDanger:
		return model.SeverityDanger
	case v >= e.thresholds.AQIWarning:
		return model.SeverityWarning
	default:
		return model.SeverityInfo
	}
}

func riskSeverity(l model.RiskLevel) model.Severity {
	switch l {
	case model.RiskCritical:
		return model.SeverityCritical
	case model.RiskHigh:
		return model.SeverityDanger
	case model.RiskModerate:
		return model.SeverityWarning
	default:
		return model.SeverityInfo
	}
}

func (e *Engine) event(r model.SensorReading, typ model.AlertType, sev model.Severity, msg string) model.AlertEvent {
	now := e.now().UTC()
	sensor := r.SensorID
	if sensor == "" {
		sensor = unknownSensor
	}
	snap := model.SnapshotOf(r.OrNow(now))
	return model.AlertEvent{
		ID:          e.newID(),
		Type:        typ,
		Severity:    sev,
		Message:     msg,
		SensorID:    sensor,
		TriggeredAt: now,
		Resolved:    false,
		Reading:     snap,
	}
}

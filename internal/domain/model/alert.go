package model

import "time"

// AlertType classifies why an alert was raised.
type AlertType string

// Alert types.
const (
	AlertAnomalyDetected AlertType = "ANOMALY_DETECTED"
	AlertAQIHigh         AlertType = "AQI_HIGH"
	AlertRiskEscalation  AlertType = "RISK_ESCALATION"
)

// Severity grades an alert.
type Severity string

// Severities in increasing order.
const (
	SeverityInfo     Severity = "INFO"
	SeverityWarning  Severity = "WARNING"
	SeverityDanger   Severity = "DANGER"
	SeverityCritical Severity = "CRITICAL"
)

// Rank orders severities; unknown values rank below INFO.
func (s Severity) Rank() int {
	switch s {
	case SeverityInfo:
		return 0
	case SeverityWarning:
		return 1
	case SeverityDanger:
		return 2
	case SeverityCritical:
		return 3
	default:
		return -1
	}
}

// Snapshot is the subset of the triggering reading carried by an alert.
type Snapshot struct {
	CO2       float64   `json:"co2"`
	PM25      float64   `json:"pm25"`
	VOC       float64   `json:"voc"`
	Timestamp time.Time `json:"timestamp"`
}

// SnapshotOf captures the key metrics of r. Absent metrics are reported as 0.
func SnapshotOf(r SensorReading) Snapshot {
	return Snapshot{
		CO2:       r.ValueOr(CO2, 0),
		PM25:      r.ValueOr(PM25, 0),
		VOC:       r.ValueOr(VOC, 0),
		Timestamp: r.Timestamp,
	}
}

// AlertEvent is a self-contained alert. Once emitted it belongs to the
// delivery side; Resolved is always false at creation.
type AlertEvent struct {
	ID          string    `json:"id"`
	Type        AlertType `json:"type"`
	Severity    Severity  `json:"severity"`
	Message     string    `json:"message"`
	SensorID    string    `json:"sensorId"`
	TriggeredAt time.Time `json:"triggeredAt"`
	Resolved    bool      `json:"resolved"`
	Reading     Snapshot  `json:"reading"`
}

// AlertPayload is the body sent to the alert webhook.
type AlertPayload struct {
	Type        AlertType `json:"type"`
	Severity    Severity  `json:"severity"`
	Message     string    `json:"message"`
	SensorID    string    `json:"sensorId"`
	TriggeredAt string    `json:"triggeredAt"`
	Resolved    bool      `json:"resolved"`
	Reading     struct {
		CO2       float64 `json:"co2"`
		PM25      float64 `json:"pm25"`
		VOC       float64 `json:"voc"`
		Timestamp string  `json:"timestamp"`
	} `json:"reading"`
}

// Payload renders the webhook body with ISO-8601 timestamps.
func (a AlertEvent) Payload() AlertPayload {
	p := AlertPayload{
		Type:        a.Type,
		Severity:    a.Severity,
		Message:     a.Message,
		SensorID:    a.SensorID,
		TriggeredAt: a.TriggeredAt.UTC().Format(time.RFC3339),
		Resolved:    a.Resolved,
	}
	p.Reading.CO2 = a.Reading.CO2
	p.Reading.PM25 = a.Reading.PM25
	p.Reading.VOC = a.Reading.VOC
	p.Reading.Timestamp = a.Reading.Timestamp.UTC().Format(time.RFC3339)
	return p
}

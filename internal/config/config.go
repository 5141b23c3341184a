// Package config defines service configuration structures and loading hooks.
//
// Conventions:
//   - New(ctx) returns the defaults; Load(ctx) layers a YAML file and env vars on top.
//   - Engine sections convert themselves into the domain option types.
//   - Validation errors wrap ErrInvalidConfig.
package config

import (
	"context"
	"fmt"
	"runtime"
	"time"

	"github.com/okian/airrisk/internal/domain/alerting"
	"github.com/okian/airrisk/internal/domain/anomaly"
	"github.com/okian/airrisk/internal/domain/model"
	"github.com/okian/airrisk/internal/domain/risk"
)

// Config contains process configuration.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level"`

	// LogFormat selects text or json output.
	LogFormat string `koanf:"log_format"`

	// Addr configures the HTTP listen address, e.g. ":8080".
	Addr string `koanf:"addr"`

	// QueueSize bounds the in-memory reading queue.
	QueueSize int `koanf:"queue_size"`

	// WorkerCount sets the number of assessment workers draining the queue.
	WorkerCount int `koanf:"worker_count"`

	// CacheSize is the capacity of the assessment memo cache.
	CacheSize int `koanf:"cache_size"`

	// DBPath is the SQLite database file; ":memory:" keeps everything in process.
	DBPath string `koanf:"db_path"`

	// HistoryLimit caps the prior readings loaded per assessment.
	HistoryLimit int `koanf:"history_limit"`

	// ModelDir holds trained model artifacts. Empty means rules only.
	ModelDir string `koanf:"model_dir"`

	// RiskPolicy is "score" or "aqi_primary".
	RiskPolicy string `koanf:"risk_policy"`

	// IngestRate limits POST /readings per second; 0 disables the limit.
	IngestRate  float64 `koanf:"ingest_rate"`
	IngestBurst int     `koanf:"ingest_burst"`

	Weights Weights `koanf:"weights"`
	Risk    Risk    `koanf:"risk"`
	Anomaly Anomaly `koanf:"anomaly"`
	Alerts  Alerts  `koanf:"alerts"`
	Webhook Webhook `koanf:"webhook"`
	Redis   Redis   `koanf:"redis"`
	MQTT    MQTT    `koanf:"mqtt"`
	CORS    CORS    `koanf:"cors"`
	Batch   Batch   `koanf:"batch"`
}

// Weights are the ensemble weights.
type Weights struct {
	Anomaly float64 `koanf:"anomaly"`
	AQI     float64 `koanf:"aqi"`
}

// Risk holds the tier boundaries and the anomaly override for the score
// policy, and the anomaly escalation thresholds for the AQI-primary policy.
type Risk struct {
	Moderate         float64 `koanf:"moderate"`
	High             float64 `koanf:"high"`
	Critical         float64 `koanf:"critical"`
	OverrideMinScore float64 `koanf:"override_min_score"`
	OverrideMinRisk  float64 `koanf:"override_min_risk"`
	Escalate1        float64 `koanf:"escalate1"`
	Escalate2        float64 `koanf:"escalate2"`
}

// Anomaly configures the rule-based scorer. A range override must set all
// four bounds.
type Anomaly struct {
	Threshold float64                  `koanf:"threshold"`
	Ranges    map[string]anomaly.Range `koanf:"ranges"`
	Boosts    map[string]float64       `koanf:"boosts"`
}

// Alerts configures alert thresholds and the notification cooldown.
type Alerts struct {
	AQIWarning      float64       `koanf:"aqi_warning"`
	AQIDanger       float64       `koanf:"aqi_danger"`
	AQIEmergency    float64       `koanf:"aqi_emergency"`
	AnomalyDanger   float64       `koanf:"anomaly_danger"`
	AnomalyCritical float64       `koanf:"anomaly_critical"`
	EscalationLevel string        `koanf:"escalation_level"`
	Cooldown        time.Duration `koanf:"cooldown"`
}

// Webhook configures HTTP alert delivery. An empty URL disables it.
type Webhook struct {
	URL     string            `koanf:"url"`
	Timeout time.Duration     `koanf:"timeout"`
	Retries int               `koanf:"retries"`
	Headers map[string]string `koanf:"headers"`
}

// Redis configures the alert stream publisher. An empty Addr disables it.
type Redis struct {
	Addr   string `koanf:"addr"`
	Stream string `koanf:"stream"`
}

// MQTT configures sensor ingest. An empty Broker disables it.
type MQTT struct {
	Broker   string `koanf:"broker"`
	Topic    string `koanf:"topic"`
	ClientID string `koanf:"client_id"`
}

// CORS lists the origins allowed to call the API.
type CORS struct {
	AllowedOrigins []string `koanf:"allowed_origins"`
}

// Batch bounds POST /assess/batch.
type Batch struct {
	MaxItems    int `koanf:"max_items"`
	Concurrency int `koanf:"concurrency"`
}

// New creates a Config with defaults. The context is reserved for loaders.
func New(_ context.Context) *Config {
	tiers, override := risk.DefaultTiers(), risk.DefaultOverride()
	weights := risk.DefaultWeights()
	escalation := risk.DefaultAQIPrimary()
	th := alerting.DefaultThresholds()

	ranges := make(map[string]anomaly.Range)
	for m, r := range anomaly.DefaultRanges() {
		ranges[m.String()] = r
	}
	boosts := make(map[string]float64)
	for _, b := range anomaly.DefaultBoosts() {
		boosts[b.Name] = b.Amount
	}

	return &Config{
		LogLevel:     "info",
		LogFormat:    "text",
		Addr:         ":9080",
		QueueSize:    10_000,
		WorkerCount:  runtime.NumCPU(),
		CacheSize:    1000,
		DBPath:       "airrisk.db",
		HistoryLimit: 288,
		RiskPolicy:   risk.PolicyScore,
		IngestRate:   200,
		IngestBurst:  400,
		Weights:      Weights{Anomaly: weights.Anomaly, AQI: weights.AQI},
		Risk: Risk{
			Moderate:         tiers.Moderate,
			High:             tiers.High,
			Critical:         tiers.Critical,
			OverrideMinScore: override.MinAnomalyScore,
			OverrideMinRisk:  override.MinRiskScore,
			Escalate1:        escalation.Escalate1,
			Escalate2:        escalation.Escalate2,
		},
		Anomaly: Anomaly{Threshold: anomaly.DefaultThreshold, Ranges: ranges, Boosts: boosts},
		Alerts: Alerts{
			AQIWarning:      th.AQIWarning,
			AQIDanger:       th.AQIDanger,
			AQIEmergency:    th.AQIEmergency,
			AnomalyDanger:   th.AnomalyDanger,
			AnomalyCritical: th.AnomalyCritical,
			EscalationLevel: string(th.EscalationLevel),
			Cooldown:        2 * time.Hour,
		},
		Webhook: Webhook{Timeout: 5 * time.Second, Retries: 2},
		Redis:   Redis{Stream: "airrisk:alerts"},
		MQTT:    MQTT{Topic: "airaware/sensors", ClientID: "airrisk"},
		CORS:    CORS{AllowedOrigins: []string{"*"}},
		Batch:   Batch{MaxItems: 500, Concurrency: 4},
	}
}

// RiskWeights converts the weights section.
func (c *Config) RiskWeights() risk.Weights {
	return risk.Weights{Anomaly: c.Weights.Anomaly, AQI: c.Weights.AQI}
}

// RiskPolicyValue builds the configured tiering policy.
func (c *Config) RiskPolicyValue() (risk.Policy, error) {
	tiers := risk.Tiers{Moderate: c.Risk.Moderate, High: c.Risk.High, Critical: c.Risk.Critical}
	override := risk.DefaultOverride()
	override.MinAnomalyScore = c.Risk.OverrideMinScore
	override.MinRiskScore = c.Risk.OverrideMinRisk
	escalation := risk.AQIPrimaryPolicy{Escalate1: c.Risk.Escalate1, Escalate2: c.Risk.Escalate2}
	return risk.PolicyByName(c.RiskPolicy, tiers, override, escalation)
}

// RuleRanges converts the range section, rejecting unknown metrics and
// inconsistent bounds.
func (c *Config) RuleRanges() (map[model.Metric]anomaly.Range, error) {
	out := make(map[model.Metric]anomaly.Range, len(c.Anomaly.Ranges))
	for name, r := range c.Anomaly.Ranges {
		m, ok := model.ParseMetric(name)
		if !ok {
			return nil, fmt.Errorf("%w: anomaly.ranges: unknown metric %q", ErrInvalidConfig, name)
		}
		if !r.Valid() {
			return nil, fmt.Errorf("%w: anomaly.ranges.%s: bounds out of order", ErrInvalidConfig, name)
		}
		out[m] = r
	}
	return out, nil
}

// RuleBoosts applies the configured amounts to the default boosts. A zero
// amount disables a boost.
func (c *Config) RuleBoosts() ([]anomaly.Boost, error) {
	boosts := anomaly.DefaultBoosts()
	known := make(map[string]int, len(boosts))
	for i, b := range boosts {
		known[b.Name] = i
	}
	for name, amount := range c.Anomaly.Boosts {
		i, ok := known[name]
		if !ok {
			return nil, fmt.Errorf("%w: anomaly.boosts: unknown boost %q", ErrInvalidConfig, name)
		}
		if amount < 0 || amount > 1 {
			return nil, fmt.Errorf("%w: anomaly.boosts.%s must be in [0,1]", ErrInvalidConfig, name)
		}
		boosts[i].Amount = amount
	}
	return boosts, nil
}

// AlertThresholds converts the alerts section.
func (c *Config) AlertThresholds() (alerting.Thresholds, error) {
	th := alerting.Thresholds{
		AQIWarning:      c.Alerts.AQIWarning,
		AQIDanger:       c.Alerts.AQIDanger,
		AQIEmergency:    c.Alerts.AQIEmergency,
		AnomalyDanger:   c.Alerts.AnomalyDanger,
		AnomalyCritical: c.Alerts.AnomalyCritical,
	}
	if c.Alerts.EscalationLevel != "" {
		lvl, ok := model.ParseRiskLevel(c.Alerts.EscalationLevel)
		if !ok {
			return th, fmt.Errorf("%w: alerts.escalation_level %q", ErrInvalidConfig, c.Alerts.EscalationLevel)
		}
		th.EscalationLevel = lvl
	}
	if err := th.Validate(); err != nil {
		return th, fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	return th, nil
}

// Validate checks the whole configuration.
func (c *Config) Validate() error {
	switch {
	case c.Addr == "":
		return fmt.Errorf("%w: addr must not be empty", ErrInvalidConfig)
	case c.QueueSize <= 0:
		return fmt.Errorf("%w: queue_size must be positive", ErrInvalidConfig)
	case c.WorkerCount <= 0:
		return fmt.Errorf("%w: worker_count must be positive", ErrInvalidConfig)
	case c.CacheSize <= 0:
		return fmt.Errorf("%w: cache_size must be positive", ErrInvalidConfig)
	case c.HistoryLimit < 0:
		return fmt.Errorf("%w: history_limit must not be negative", ErrInvalidConfig)
	case c.Batch.MaxItems <= 0 || c.Batch.Concurrency <= 0:
		return fmt.Errorf("%w: batch limits must be positive", ErrInvalidConfig)
	case c.Anomaly.Threshold <= 0 || c.Anomaly.Threshold > 1:
		return fmt.Errorf("%w: anomaly.threshold must be in (0,1]", ErrInvalidConfig)
	case c.Webhook.Retries < 0:
		return fmt.Errorf("%w: webhook.retries must not be negative", ErrInvalidConfig)
	}
	if err := c.RiskWeights().Validate(); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	p, err := c.RiskPolicyValue()
	if err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	if sp, ok := p.(risk.ScorePolicy); ok {
		if err := sp.Tiers.Validate(); err != nil {
			return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
		}
	}
	if _, err := c.RuleRanges(); err != nil {
		return err
	}
	if _, err := c.RuleBoosts(); err != nil {
		return err
	}
	if _, err := c.AlertThresholds(); err != nil {
		return err
	}
	return nil
}

package engine

import (
	"time"

	"github.com/okian/airrisk/internal/domain/anomaly"
	"github.com/okian/airrisk/internal/domain/model"
)

// Classification values returned by AnomalyModel.Classify.
const (
	ClassAnomaly = -1
	ClassNormal  = 1
)

// AnomalyModel is a trained anomaly detector. Score returns the raw
// isolation-style score (lower is more anomalous) or anomaly.ErrNoScore.
type AnomalyModel interface {
	Score(fv *model.FeatureVector) (float64, error)
	Classify(fv *model.FeatureVector) (int, error)
	Schema() model.Schema
	Calibration() anomaly.Calibration
}

// AQIModel is a trained AQI regressor.
type AQIModel interface {
	Predict(fv *model.FeatureVector) (float64, error)
	Schema() model.Schema
}

// Registry holds the model handles loaded at startup. It is built once and
// passed to the engine; a nil handle means that component uses rules.
type Registry struct {
	Anomaly  AnomalyModel
	AQI      AQIModel
	Version  string
	LoadedAt time.Time
}

// Empty reports whether no model is loaded.
func (r *Registry) Empty() bool {
	return r == nil || (r.Anomaly == nil && r.AQI == nil)
}

// Info describes the loaded models.
type Info struct {
	Version        string    `json:"version,omitempty"`
	LoadedAt       time.Time `json:"loaded_at,omitempty"`
	AnomalyModel   bool      `json:"anomaly_model"`
	AQIModel       bool      `json:"aqi_model"`
	AnomalyColumns int       `json:"anomaly_columns"`
	AQIColumns     int       `json:"aqi_columns"`
}

// Info summarizes the registry.
func (r *Registry) Info() Info {
	if r == nil {
		return Info{}
	}
	info := Info{Version: r.Version, LoadedAt: r.LoadedAt}
	if r.Anomaly != nil {
		info.AnomalyModel = true
		info.AnomalyColumns = r.Anomaly.Schema().Len()
	}
	if r.AQI != nil {
		info.AQIModel = true
		info.AQIColumns = r.AQI.Schema().Len()
	}
	return info
}

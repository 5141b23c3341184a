package artifacts

import (
	"fmt"
	"math"

	"github.com/okian/airrisk/internal/domain/anomaly"
	"github.com/okian/airrisk/internal/domain/engine"
	"github.com/okian/airrisk/internal/domain/model"
)

// AnomalyArtifact is the on-disk form of a z-score anomaly detector.
//
// The raw score is the negated root-mean-square z-score over the schema's
// numeric columns, so lower scores are more anomalous. Readings whose raw
// score falls below Threshold classify as anomalous.
type AnomalyArtifact struct {
	Version     string              `json:"version"`
	Schema      model.Schema        `json:"schema"`
	Scaler      Scaler              `json:"scaler"`
	Threshold   float64             `json:"threshold"`
	Calibration anomaly.Calibration `json:"calibration"`
}

func (a AnomalyArtifact) validate() error {
	if len(a.Schema.Numeric) == 0 {
		return fmt.Errorf("%w: anomaly schema has no numeric columns", ErrInvalidArtifact)
	}
	if math.IsNaN(a.Threshold) || math.IsInf(a.Threshold, 0) {
		return fmt.Errorf("%w: anomaly threshold is not finite", ErrInvalidArtifact)
	}
	if err := checkColumns("mean", a.Schema, a.Scaler.Means); err != nil {
		return err
	}
	return checkColumns("std", a.Schema, a.Scaler.Stds)
}

// ZScoreModel implements engine.AnomalyModel.
type ZScoreModel struct {
	art AnomalyArtifact
}

// NewZScoreModel validates the artifact and returns a model handle.
func NewZScoreModel(art AnomalyArtifact) (*ZScoreModel, error) {
	if err := art.validate(); err != nil {
		return nil, err
	}
	return &ZScoreModel{art: art}, nil
}

var _ engine.AnomalyModel = (*ZScoreModel)(nil)

// Score implements engine.AnomalyModel.
func (m *ZScoreModel) Score(fv *model.FeatureVector) (float64, error) {
	if fv == nil {
		return 0, anomaly.ErrNoScore
	}
	var sum float64
	for i, v := range numeric(fv, m.art.Schema) {
		z := m.art.Scaler.apply(m.art.Schema.Numeric[i], v)
		sum += z * z
	}
	raw := -math.Sqrt(sum / float64(len(m.art.Schema.Numeric)))
	if math.IsNaN(raw) || math.IsInf(raw, 0) {
		return 0, anomaly.ErrNoScore
	}
	return raw, nil
}

// Classify implements engine.AnomalyModel.
func (m *ZScoreModel) Classify(fv *model.FeatureVector) (int, error) {
	raw, err := m.Score(fv)
	if err != nil {
		return 0, err
	}
	if raw < m.art.Threshold {
		return engine.ClassAnomaly, nil
	}
	return engine.ClassNormal, nil
}

// Schema implements engine.AnomalyModel.
func (m *ZScoreModel) Schema() model.Schema { return m.art.Schema }

// Calibration implements engine.AnomalyModel.
func (m *ZScoreModel) Calibration() anomaly.Calibration { return m.art.Calibration }

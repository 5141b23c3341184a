package artifacts

import (
	"fmt"
	"math"

	"github.com/okian/airrisk/internal/domain/engine"
	"github.com/okian/airrisk/internal/domain/model"
)

// AQIArtifact is the on-disk form of a linear AQI regressor over standardized
// numeric columns plus one-hot categorical terms.
type AQIArtifact struct {
	Version      string                        `json:"version"`
	Schema       model.Schema                  `json:"schema"`
	Scaler       Scaler                        `json:"scaler"`
	Intercept    float64                       `json:"intercept"`
	Coefficients map[string]float64            `json:"coefficients"`
	Categorical  map[string]map[string]float64 `json:"categorical,omitempty"`
}

func (a AQIArtifact) validate() error {
	if a.Schema.Empty() {
		return fmt.Errorf("%w: aqi schema is empty", ErrInvalidArtifact)
	}
	if len(a.Coefficients) == 0 {
		return fmt.Errorf("%w: aqi model has no coefficients", ErrInvalidArtifact)
	}
	if err := checkColumns("coefficient", a.Schema, a.Coefficients); err != nil {
		return err
	}
	for _, c := range a.Schema.Categorical {
		if _, ok := a.Categorical[c]; !ok && len(a.Categorical) > 0 {
			return fmt.Errorf("%w: categorical column %q has no terms", ErrSchemaMismatch, c)
		}
	}
	return nil
}

// LinearModel implements engine.AQIModel.
type LinearModel struct {
	art AQIArtifact
}

// NewLinearModel validates the artifact and returns a model handle.
func NewLinearModel(art AQIArtifact) (*LinearModel, error) {
	if err := art.validate(); err != nil {
		return nil, err
	}
	return &LinearModel{art: art}, nil
}

var _ engine.AQIModel = (*LinearModel)(nil)

// Predict implements engine.AQIModel. The output is raw; the engine clamps it.
func (m *LinearModel) Predict(fv *model.FeatureVector) (float64, error) {
	if fv == nil {
		return 0, fmt.Errorf("%w: nil feature vector", ErrInvalidArtifact)
	}
	y := m.art.Intercept
	for i, v := range numeric(fv, m.art.Schema) {
		name := m.art.Schema.Numeric[i]
		y += m.art.Coefficients[name] * m.art.Scaler.apply(name, v)
	}
	for _, c := range m.art.Schema.Categorical {
		if label, ok := fv.Label(c); ok {
			y += m.art.Categorical[c][label]
		}
	}
	if math.IsNaN(y) {
		return 0, fmt.Errorf("%w: prediction is NaN", ErrInvalidArtifact)
	}
	return y, nil
}

// Schema implements engine.AQIModel.
func (m *LinearModel) Schema() model.Schema { return m.art.Schema }

package aqi

import "github.com/okian/airrisk/internal/domain/model"

// Estimate returns the formula-based assessment for a reading. A reading
// without PM2.5 is reported as Invalid with index 0.
func Estimate(r model.SensorReading) model.AqiAssessment {
	pm25, ok := r.Value(model.PM25)
	if !ok {
		return model.AqiAssessment{Value: MinIndex, Category: model.AqiInvalid, Source: model.SourceFormula}
	}
	v, cat := FromPM25(pm25)
	return model.AqiAssessment{Value: v, Category: cat, Source: model.SourceFormula}
}

// FromPrediction turns a regressor output into an assessment, sanitising
// non-finite and out-of-range values.
func FromPrediction(raw float64) model.AqiAssessment {
	v := Sanitize(raw)
	return model.AqiAssessment{Value: v, Category: CategoryOf(v), Source: model.SourceModel}
}

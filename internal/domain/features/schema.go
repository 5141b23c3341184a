package features

import "github.com/okian/airrisk/internal/domain/model"

// Default values for schema columns the transformer did not produce.
const (
	MissingNumeric     = 0.0
	MissingCategory    = "unknown"
	MissingAQICategory = "Unknown"
)

// targetColumns are AQI-derived or label columns that must never reach a
// predictor.
var targetColumns = map[string]bool{
	"aqi_pm25":       true,
	"aqi_pm10":       true,
	LabelAQICategory: true,
	"target":         true,
}

// IsTarget reports whether name is a target or AQI-derived column.
func IsTarget(name string) bool { return targetColumns[name] }

// WithoutTargets returns s minus every target column.
func WithoutTargets(s model.Schema) model.Schema {
	out := model.Schema{}
	for _, n := range s.Numeric {
		if !IsTarget(n) {
			out.Numeric = append(out.Numeric, n)
		}
	}
	for _, n := range s.Categorical {
		if !IsTarget(n) {
			out.Categorical = append(out.Categorical, n)
		}
	}
	return out
}

// SchemaOf returns the columns fv carries, in order.
func SchemaOf(fv *model.FeatureVector) model.Schema {
	return model.Schema{Numeric: fv.Names(), Categorical: fv.LabelNames()}
}

// Align projects fv onto schema in the schema's column order. Absent numeric
// columns become 0.0 and absent categorical columns become "unknown"
// ("Unknown" for aqi_category). The names that had to be filled are returned.
// An empty schema keeps fv's own columns.
func Align(fv *model.FeatureVector, schema model.Schema) (*model.FeatureVector, []string) {
	if schema.Empty() {
		schema = SchemaOf(fv)
	}

	var missing []string
	out := model.NewFeatureVector(schema.Len())
	for _, n := range schema.Numeric {
		v, ok := fv.Get(n)
		if !ok {
			v = MissingNumeric
			missing = append(missing, n)
		}
		out.Set(n, v)
	}
	for _, n := range schema.Categorical {
		v, ok := fv.Label(n)
		if !ok {
			v = MissingCategory
			if n == LabelAQICategory {
				v = MissingAQICategory
			}
			missing = append(missing, n)
		}
		out.SetLabel(n, v)
	}
	return out, missing
}

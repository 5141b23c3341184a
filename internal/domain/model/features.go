package model

// FeatureVector is an ordered mapping of feature name to value. Numeric and
// categorical features keep independent insertion order so a vector can be
// aligned column-for-column with the schema a model was fit on.
type FeatureVector struct {
	names  []string
	values []float64
	index  map[string]int

	labelNames []string
	labels     map[string]string
}

// NewFeatureVector returns an empty vector with room for n numeric features.
func NewFeatureVector(n int) *FeatureVector {
	return &FeatureVector{
		names:  make([]string, 0, n),
		values: make([]float64, 0, n),
		index:  make(map[string]int, n),
		labels: make(map[string]string),
	}
}

// Set assigns a numeric feature, appending it when new.
func (f *FeatureVector) Set(name string, v float64) {
	if i, ok := f.index[name]; ok {
		f.values[i] = v
		return
	}
	f.index[name] = len(f.names)
	f.names = append(f.names, name)
	f.values = append(f.values, v)
}

// Get returns a numeric feature.
func (f *FeatureVector) Get(name string) (float64, bool) {
	i, ok := f.index[name]
	if !ok {
		return 0, false
	}
	return f.values[i], true
}

// SetLabel assigns a categorical feature, appending it when new.
func (f *FeatureVector) SetLabel(name, v string) {
	if _, ok := f.labels[name]; !ok {
		f.labelNames = append(f.labelNames, name)
	}
	f.labels[name] = v
}

// Label returns a categorical feature.
func (f *FeatureVector) Label(name string) (string, bool) {
	v, ok := f.labels[name]
	return v, ok
}

// Names returns numeric feature names in order.
func (f *FeatureVector) Names() []string { return append([]string(nil), f.names...) }

// Values returns numeric feature values in order.
func (f *FeatureVector) Values() []float64 { return append([]float64(nil), f.values...) }

// LabelNames returns categorical feature names in order.
func (f *FeatureVector) LabelNames() []string { return append([]string(nil), f.labelNames...) }

// Len is the total number of features, numeric and categorical.
func (f *FeatureVector) Len() int { return len(f.names) + len(f.labelNames) }

// Has reports whether a numeric or categorical feature exists.
func (f *FeatureVector) Has(name string) bool {
	if _, ok := f.index[name]; ok {
		return true
	}
	_, ok := f.labels[name]
	return ok
}

// Map returns numeric features keyed by name.
func (f *FeatureVector) Map() map[string]float64 {
	out := make(map[string]float64, len(f.names))
	for i, n := range f.names {
		out[n] = f.values[i]
	}
	return out
}

// Schema is the exact feature set and order a trained model expects.
type Schema struct {
	Numeric     []string `json:"numeric"`
	Categorical []string `json:"categorical,omitempty"`
}

// Len is the number of columns in the schema.
func (s Schema) Len() int { return len(s.Numeric) + len(s.Categorical) }

// Empty reports whether the schema names no columns.
func (s Schema) Empty() bool { return s.Len() == 0 }

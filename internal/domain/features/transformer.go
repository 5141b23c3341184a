package features

import (
	"math"
	"sort"
	"time"

	"github.com/okian/airrisk/internal/domain/aqi"
	"github.com/okian/airrisk/internal/domain/model"
)

// Label feature names.
const (
	LabelTimeCategory = "time_category"
	LabelAQICategory  = "aqi_category"
)

// Default transformer settings.
const (
	DefaultFillLimit = 5
	pmRatioEpsilon   = 1e-6
)

var rateMetrics = []model.Metric{model.CO2, model.PM25, model.PM10, model.VOC}

type window struct {
	size   int
	suffix string
}

// Transformer builds feature vectors. It holds only read-only settings and is
// safe for concurrent use.
type Transformer struct {
	windows   [3]window
	fillLimit int
}

// NewTransformer creates a transformer with 12/72/288-sample windows and a
// fill limit of 5.
func NewTransformer(opts ...Option) *Transformer {
	t := &Transformer{
		windows:   [3]window{{12, "1h"}, {72, "6h"}, {288, "24h"}},
		fillLimit: DefaultFillLimit,
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// HistoryWindow is the largest number of prior readings the transformer uses.
func (t *Transformer) HistoryWindow() int { return t.windows[2].size - 1 }

// Transform validates r and builds its feature vector from r and the prior
// readings in history. History entries from other sensors or at or after r's
// timestamp are ignored, so the result never looks ahead.
func (t *Transformer) Transform(r model.SensorReading, history []model.SensorReading) (*model.FeatureVector, error) {
	if err := r.Validate(); err != nil {
		return nil, err
	}

	rows := t.series(r, history)
	tbl := newTable(len(rows))

	raw := make(map[model.Metric][]float64, len(model.Metrics()))
	for _, m := range model.Metrics() {
		col := make([]float64, len(rows))
		for i, row := range rows {
			v, ok := row.Value(m)
			if !ok {
				v = math.NaN()
			}
			col[i] = finiteOrNaN(v)
		}
		raw[m] = col
		tbl.add(m.String(), col)
	}

	t.temporal(tbl, rows)
	t.rolling(tbl, raw)
	rates(tbl, raw)
	interactions(tbl, raw)

	aqiCol := mapRows(len(rows), func(i int) float64 {
		pm := raw[model.PM25][i]
		if math.IsNaN(pm) {
			return math.NaN()
		}
		v, _ := aqi.FromPM25(pm)
		return v
	})
	tbl.add("aqi_pm25", aqiCol)

	fv := tbl.last(t.fillLimit)
	last := rows[len(rows)-1].Timestamp.UTC()
	fv.SetLabel(LabelTimeCategory, timeCategory(last.Hour()))
	v, _ := fv.Get("aqi_pm25")
	fv.SetLabel(LabelAQICategory, string(aqi.CategoryOf(v)))
	return fv, nil
}

// Columns lists the numeric feature names Transform produces, in order.
func (t *Transformer) Columns() []string {
	r := model.NewReading("columns", time.Unix(0, 0).UTC(), map[model.Metric]float64{
		model.Temperature: 0, model.Humidity: 0, model.CO2: 0, model.PM25: 0,
	})
	fv, _ := t.Transform(r, nil)
	return fv.Names()
}

// series returns the usable history in chronological order, capped at the
// long window, followed by r.
func (t *Transformer) series(r model.SensorReading, history []model.SensorReading) []model.SensorReading {
	prior := make([]model.SensorReading, 0, len(history)+1)
	for _, h := range history {
		if h.SensorID != r.SensorID {
			continue
		}
		if !r.Timestamp.IsZero() && !h.Timestamp.Before(r.Timestamp) {
			continue
		}
		prior = append(prior, h)
	}
	sort.SliceStable(prior, func(i, j int) bool { return prior[i].Timestamp.Before(prior[j].Timestamp) })
	if keep := t.HistoryWindow(); len(prior) > keep {
		prior = prior[len(prior)-keep:]
	}
	return append(prior, r)
}

func (t *Transformer) temporal(tbl *table, rows []model.SensorReading) {
	n := len(rows)
	at := func(i int) time.Time { return rows[i].Timestamp.UTC() }
	hour := func(i int) float64 { return float64(at(i).Hour()) }
	// Monday is 0.
	dow := func(i int) float64 { return float64((int(at(i).Weekday()) + 6) % 7) }

	tbl.add("hour_of_day", mapRows(n, hour))
	tbl.add("day_of_week", mapRows(n, dow))
	tbl.add("day_of_month", mapRows(n, func(i int) float64 { return float64(at(i).Day()) }))
	tbl.add("month", mapRows(n, func(i int) float64 { return float64(at(i).Month()) }))
	tbl.add("is_weekend", mapRows(n, func(i int) float64 {
		if dow(i) >= 5 {
			return 1
		}
		return 0
	}))
	tbl.add("hour_sin", mapRows(n, func(i int) float64 { return math.Sin(2 * math.Pi * hour(i) / 24) }))
	tbl.add("hour_cos", mapRows(n, func(i int) float64 { return math.Cos(2 * math.Pi * hour(i) / 24) }))
	tbl.add("day_sin", mapRows(n, func(i int) float64 { return math.Sin(2 * math.Pi * dow(i) / 7) }))
	tbl.add("day_cos", mapRows(n, func(i int) float64 { return math.Cos(2 * math.Pi * dow(i) / 7) }))
}

func (t *Transformer) rolling(tbl *table, raw map[model.Metric][]float64) {
	for _, m := range model.Metrics() {
		for _, w := range t.windows {
			st := rolling(raw[m], w.size)
			tbl.add(m.String()+"_mean_"+w.suffix, st.mean)
			tbl.add(m.String()+"_std_"+w.suffix, st.std)
			tbl.add(m.String()+"_min_"+w.suffix, st.min)
			tbl.add(m.String()+"_max_"+w.suffix, st.max)
		}
	}
}

func rates(tbl *table, raw map[model.Metric][]float64) {
	for _, m := range rateMetrics {
		d := diff(raw[m])
		tbl.add(m.String()+"_diff", d)
		tbl.add(m.String()+"_pct_change", pctChange(raw[m]))
		tbl.add(m.String()+"_acceleration", diff(d))
	}
}

func interactions(tbl *table, raw map[model.Metric][]float64) {
	temp, hum := raw[model.Temperature], raw[model.Humidity]
	pm25, pm10 := raw[model.PM25], raw[model.PM10]
	co2, voc := raw[model.CO2], raw[model.VOC]
	n := len(temp)

	tbl.add("temp_humidity_interaction", mapRows(n, func(i int) float64 { return temp[i] * hum[i] }))
	tbl.add("heat_index", mapRows(n, func(i int) float64 { return humidex(temp[i], hum[i]) }))
	tbl.add("pm25_pm10_ratio", mapRows(n, func(i int) float64 { return pm25[i] / (pm10[i] + pmRatioEpsilon) }))
	tbl.add("total_pm", mapRows(n, func(i int) float64 { return pm25[i] + pm10[i] }))
	tbl.add("co2_voc_risk", mapRows(n, func(i int) float64 { return co2[i]/1000*0.5 + voc[i]*0.5 }))
}

// table is a column store over the reading series.
type table struct {
	rows  int
	names []string
	cols  [][]float64
}

func newTable(rows int) *table {
	return &table{rows: rows}
}

func (t *table) add(name string, col []float64) {
	t.names = append(t.names, name)
	t.cols = append(t.cols, col)
}

// last imputes every column and returns the final row as a vector.
func (t *table) last(limit int) *model.FeatureVector {
	fv := model.NewFeatureVector(len(t.names) + 2)
	for i, name := range t.names {
		col := append([]float64(nil), t.cols[i]...)
		fillColumn(col, limit)
		v := col[t.rows-1]
		if math.IsNaN(v) || math.IsInf(v, 0) {
			v = 0
		}
		fv.Set(name, v)
	}
	return fv
}

package artifacts_test

import (
	"context"
	"errors"
	"math"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/okian/airrisk/internal/adapters/artifacts"
	"github.com/okian/airrisk/internal/domain/anomaly"
	"github.com/okian/airrisk/internal/domain/engine"
	"github.com/okian/airrisk/internal/domain/model"
	"github.com/okian/airrisk/pkg/logger"
	. "github.com/smartystreets/goconvey/convey"
)

func anomalyArtifact() artifacts.AnomalyArtifact {
	return artifacts.AnomalyArtifact{
		Version: "2025.01",
		Schema:  model.Schema{Numeric: []string{"co2", "pm25"}},
		Scaler: artifacts.Scaler{
			Means: map[string]float64{"co2": 600, "pm25": 10},
			Stds:  map[string]float64{"co2": 200, "pm25": 5},
		},
		Threshold:   -3,
		Calibration: anomaly.Calibration{Min: -10, Max: 0},
	}
}

func aqiArtifact() artifacts.AQIArtifact {
	return artifacts.AQIArtifact{
		Version:      "2025.01",
		Schema:       model.Schema{Numeric: []string{"pm25"}, Categorical: []string{"time_category"}},
		Scaler:       artifacts.Scaler{Means: map[string]float64{"pm25": 10}, Stds: map[string]float64{"pm25": 5}},
		Intercept:    50,
		Coefficients: map[string]float64{"pm25": 10},
		Categorical:  map[string]map[string]float64{"time_category": {"night": 5}},
	}
}

func vector(co2, pm25 float64, timeCategory string) *model.FeatureVector {
	fv := model.NewFeatureVector(2)
	fv.Set("co2", co2)
	fv.Set("pm25", pm25)
	fv.SetLabel("time_category", timeCategory)
	return fv
}

func TestZScoreModel(t *testing.T) {
	Convey("Given a z-score anomaly model", t, func() {
		m, err := artifacts.NewZScoreModel(anomalyArtifact())
		So(err, ShouldBeNil)

		Convey("When a reading sits on the means", func() {
			raw, err := m.Score(vector(600, 10, "day"))
			So(err, ShouldBeNil)

			Convey("Then the raw score is 0 and it classifies normal", func() {
				So(raw, ShouldEqual, 0)
				class, err := m.Classify(vector(600, 10, "day"))
				So(err, ShouldBeNil)
				So(class, ShouldEqual, engine.ClassNormal)
			})
		})

		Convey("When a reading is far from the means", func() {
			raw, err := m.Score(vector(1400, 20, "day"))
			So(err, ShouldBeNil)

			Convey("Then the raw score is the negated RMS z-score and it classifies anomalous", func() {
				So(raw, ShouldAlmostEqual, -math.Sqrt(10), 1e-9)
				class, err := m.Classify(vector(1400, 20, "day"))
				So(err, ShouldBeNil)
				So(class, ShouldEqual, engine.ClassAnomaly)
			})
		})

		Convey("When the vector is nil", func() {
			_, err := m.Score(nil)

			Convey("Then no score is reported", func() {
				So(errors.Is(err, anomaly.ErrNoScore), ShouldBeTrue)
			})
		})

		Convey("Then schema and calibration come from the artifact", func() {
			So(m.Schema().Numeric, ShouldResemble, []string{"co2", "pm25"})
			So(m.Calibration().Set(), ShouldBeTrue)
		})
	})

	Convey("Given malformed anomaly artifacts", t, func() {
		Convey("Then an empty schema is rejected", func() {
			art := anomalyArtifact()
			art.Schema = model.Schema{}
			_, err := artifacts.NewZScoreModel(art)
			So(errors.Is(err, artifacts.ErrInvalidArtifact), ShouldBeTrue)
		})

		Convey("Then scaler columns outside the schema are rejected", func() {
			art := anomalyArtifact()
			art.Scaler.Means["voc"] = 1
			_, err := artifacts.NewZScoreModel(art)
			So(errors.Is(err, artifacts.ErrSchemaMismatch), ShouldBeTrue)
		})
	})
}

func TestLinearModel(t *testing.T) {
	Convey("Given a linear AQI model", t, func() {
		m, err := artifacts.NewLinearModel(aqiArtifact())
		So(err, ShouldBeNil)

		Convey("When predicting with a known category", func() {
			y, err := m.Predict(vector(0, 20, "night"))

			Convey("Then intercept, scaled terms and category terms add up", func() {
				So(err, ShouldBeNil)
				So(y, ShouldAlmostEqual, 75, 1e-9)
			})
		})

		Convey("When the category has no term", func() {
			y, err := m.Predict(vector(0, 10, "morning"))

			Convey("Then only the intercept remains", func() {
				So(err, ShouldBeNil)
				So(y, ShouldAlmostEqual, 50, 1e-9)
			})
		})

		Convey("Then a model without coefficients is rejected", func() {
			art := aqiArtifact()
			art.Coefficients = nil
			_, err := artifacts.NewLinearModel(art)
			So(errors.Is(err, artifacts.ErrInvalidArtifact), ShouldBeTrue)
		})
	})
}

func TestLoad(t *testing.T) {
	Convey("Given a model directory", t, func() {
		_ = logger.Init()
		ctx := context.Background()
		loadedAt := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
		clock := artifacts.WithClock(func() time.Time { return loadedAt })
		dir := t.TempDir()

		Convey("When no directory is configured", func() {
			reg, err := artifacts.Load(ctx, "", clock)

			Convey("Then the registry is empty", func() {
				So(err, ShouldBeNil)
				So(reg.Empty(), ShouldBeTrue)
			})
		})

		Convey("When the directory has no artifacts", func() {
			reg, err := artifacts.Load(ctx, dir, clock)

			Convey("Then the registry is empty", func() {
				So(err, ShouldBeNil)
				So(reg.Empty(), ShouldBeTrue)
			})
		})

		Convey("When both artifacts are saved", func() {
			an, aq := anomalyArtifact(), aqiArtifact()
			So(artifacts.Save(dir, &an, &aq), ShouldBeNil)

			reg, err := artifacts.Load(ctx, dir, clock)
			So(err, ShouldBeNil)

			Convey("Then both handles are loaded", func() {
				info := reg.Info()
				So(info.AnomalyModel, ShouldBeTrue)
				So(info.AQIModel, ShouldBeTrue)
				So(info.AnomalyColumns, ShouldEqual, 2)
				So(info.AQIColumns, ShouldEqual, 2)
				So(info.Version, ShouldEqual, "2025.01")
				So(info.LoadedAt, ShouldEqual, loadedAt)
			})

			Convey("Then the engine selects the model strategy", func() {
				eng, err := engine.New(engine.WithStrategy(engine.SelectStrategy(reg, engine.NewRuleStrategy(nil))))
				So(err, ShouldBeNil)

				r := model.NewReading("sensor-1", loadedAt, map[model.Metric]float64{
					model.Temperature: 22, model.Humidity: 45, model.CO2: 600,
					model.VOC: 0.2, model.PM25: 10, model.PM10: 20,
				})
				res, err := eng.Assess(ctx, r, nil)
				So(err, ShouldBeNil)
				So(res.Strategy, ShouldEqual, engine.StrategyModel)
				So(res.Risk.AQI.Source, ShouldEqual, model.SourceModel)
				So(res.Risk.Anomaly.Score, ShouldAlmostEqual, 0, 1e-9)
			})
		})

		Convey("When only the AQI artifact is present", func() {
			aq := aqiArtifact()
			So(artifacts.Save(dir, nil, &aq), ShouldBeNil)

			reg, err := artifacts.Load(ctx, dir, clock)

			Convey("Then anomaly scoring stays on rules", func() {
				So(err, ShouldBeNil)
				So(reg.Anomaly, ShouldBeNil)
				So(reg.AQI, ShouldNotBeNil)
			})
		})

		Convey("When the anomaly artifact is corrupt and the AQI artifact is valid", func() {
			So(os.WriteFile(filepath.Join(dir, artifacts.AnomalyFile), []byte("{not json"), 0o600), ShouldBeNil)
			aq := aqiArtifact()
			So(artifacts.Save(dir, nil, &aq), ShouldBeNil)

			reg, err := artifacts.Load(ctx, dir, clock)

			Convey("Then only anomaly scoring falls back to rules", func() {
				So(err, ShouldBeNil)
				So(reg.Anomaly, ShouldBeNil)
				So(reg.AQI, ShouldNotBeNil)
				So(reg.Version, ShouldEqual, "2025.01")
			})
		})

		Convey("When the AQI artifact fails validation and the anomaly artifact is valid", func() {
			an, aq := anomalyArtifact(), aqiArtifact()
			aq.Schema = model.Schema{}
			So(artifacts.Save(dir, &an, &aq), ShouldBeNil)

			reg, err := artifacts.Load(ctx, dir, clock)

			Convey("Then only AQI estimation falls back to rules", func() {
				So(err, ShouldBeNil)
				So(reg.Anomaly, ShouldNotBeNil)
				So(reg.AQI, ShouldBeNil)
			})
		})

		Convey("When both artifacts are corrupt", func() {
			So(os.WriteFile(filepath.Join(dir, artifacts.AnomalyFile), []byte("{"), 0o600), ShouldBeNil)
			So(os.WriteFile(filepath.Join(dir, artifacts.AQIFile), []byte("[]"), 0o600), ShouldBeNil)

			reg, err := artifacts.Load(ctx, dir, clock)

			Convey("Then the registry is empty and loading still succeeds", func() {
				So(err, ShouldBeNil)
				So(reg.Empty(), ShouldBeTrue)
			})
		})

		Convey("When the directory does not exist", func() {
			reg, err := artifacts.Load(ctx, filepath.Join(dir, "missing"), clock)

			Convey("Then the registry is empty", func() {
				So(err, ShouldBeNil)
				So(reg.Empty(), ShouldBeTrue)
			})
		})

		Convey("When the model path is a regular file", func() {
			path := filepath.Join(dir, "models")
			So(os.WriteFile(path, []byte("x"), 0o600), ShouldBeNil)

			reg, err := artifacts.Load(ctx, path, clock)

			Convey("Then loading fails", func() {
				So(err, ShouldNotBeNil)
				So(reg, ShouldBeNil)
			})
		})
	})
}

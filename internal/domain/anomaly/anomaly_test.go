package anomaly_test

import (
	"errors"
	"math"
	"testing"
	"time"

	"github.com/okian/airrisk/internal/domain/anomaly"
	"github.com/okian/airrisk/internal/domain/model"
	. "github.com/smartystreets/goconvey/convey"
)

var ts = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

func reading(temp, hum, co2, voc, pm25, pm10 float64) model.SensorReading {
	return model.NewReading("sensor-a", ts, map[model.Metric]float64{
		model.Temperature: temp,
		model.Humidity:    hum,
		model.CO2:         co2,
		model.VOC:         voc,
		model.PM25:        pm25,
		model.PM10:        pm10,
	})
}

func TestRange_Score(t *testing.T) {
	Convey("Given a range", t, func() {
		r := anomaly.Range{NormalMin: 10, NormalMax: 20, CriticalMin: 0, CriticalMax: 40}

		Convey("Then values inside the normal band score 0", func() {
			So(r.Score(10), ShouldEqual, 0)
			So(r.Score(15), ShouldEqual, 0)
			So(r.Score(20), ShouldEqual, 0)
		})

		Convey("Then values between normal and critical score linearly", func() {
			So(r.Score(30), ShouldAlmostEqual, 0.5)
			So(r.Score(5), ShouldAlmostEqual, 0.5)
		})

		Convey("Then values at or beyond critical score 1", func() {
			So(r.Score(40), ShouldEqual, 1)
			So(r.Score(99), ShouldEqual, 1)
			So(r.Score(-1), ShouldEqual, 1)
		})
	})
}

func TestRuleScorer_Score(t *testing.T) {
	Convey("Given the default rule-based scorer", t, func() {
		s := anomaly.NewRuleScorer()

		Convey("When every metric sits mid-normal-range", func() {
			a := s.Score(reading(22.5, 50, 500, 0.25, 17.7, 27))

			Convey("Then the score is 0 and no anomaly is flagged", func() {
				So(a.Score, ShouldEqual, 0)
				So(a.IsAnomaly, ShouldBeFalse)
				So(len(a.Breakdown), ShouldEqual, 6)
			})
		})

		Convey("When every metric is at or beyond its critical bound", func() {
			a := s.Score(reading(50, 95, 5000, 5.0, 500, 600))

			Convey("Then the score is exactly 1 and the anomaly is flagged", func() {
				So(a.Score, ShouldEqual, 1)
				So(a.IsAnomaly, ShouldBeTrue)
				So(a.Source, ShouldEqual, model.SourceRules)
			})
		})

		Convey("When CO2 and VOC are both elevated", func() {
			both := s.Score(reading(22, 50, 1200, 0.6, 10, 20))
			alone := s.Score(reading(22, 50, 1200, 0.3, 10, 20))

			Convey("Then the combined score exceeds CO2 alone", func() {
				So(both.Score, ShouldBeGreaterThan, alone.Score)
			})
		})

		Convey("When only some metrics are present", func() {
			r := model.NewReading("s", ts, map[model.Metric]float64{
				model.Temperature: 22,
				model.Humidity:    50,
				model.CO2:         3000,
				model.PM25:        10,
			})
			a := s.Score(r)

			Convey("Then the mean covers present metrics only", func() {
				So(len(a.Breakdown), ShouldEqual, 4)
				So(a.Score, ShouldAlmostEqual, 0.5/4)
			})
		})

		Convey("When PM2.5 rises outside the normal band", func() {
			Convey("Then the score never decreases", func() {
				prev := -1.0
				for pm := 35.4; pm <= 600; pm += 2.5 {
					a := s.Score(reading(22, 50, 600, 0.3, pm, 100))
					So(a.Score, ShouldBeGreaterThanOrEqualTo, prev)
					prev = a.Score
				}
			})
		})

		Convey("When a pollutant is negative", func() {
			a := s.Score(reading(22, 50, 600, 0.3, -5, 20))

			Convey("Then it is scored as out of range", func() {
				So(a.Breakdown[model.PM25], ShouldEqual, 1)
			})
		})
	})

	Convey("Given a scorer with a custom threshold and no boosts", t, func() {
		s := anomaly.NewRuleScorer(anomaly.WithThreshold(0.1), anomaly.WithBoosts([]anomaly.Boost{}))

		Convey("Then the flag follows the custom threshold", func() {
			a := s.Score(reading(22, 50, 3000, 0.3, 10, 20))
			So(a.Score, ShouldAlmostEqual, 0.5/6)
			So(a.IsAnomaly, ShouldBeFalse)

			a = s.Score(reading(22, 50, 5000, 3.0, 10, 20))
			So(a.IsAnomaly, ShouldBeTrue)
		})
	})
}

func TestNormalize(t *testing.T) {
	Convey("Given raw isolation-style scores", t, func() {
		Convey("When the range has spread", func() {
			out, err := anomaly.Normalize([]float64{-0.5, 0.0, 0.5})

			Convey("Then the lowest raw score maps to 1", func() {
				So(err, ShouldBeNil)
				So(out[0], ShouldEqual, 1)
				So(out[1], ShouldAlmostEqual, 0.5)
				So(out[2], ShouldEqual, 0)
			})
		})

		Convey("When every score is equal", func() {
			out, err := anomaly.Normalize([]float64{0.2, 0.2})

			Convey("Then all scores are 0 and the range is reported degenerate", func() {
				So(errors.Is(err, anomaly.ErrDegenerateRange), ShouldBeTrue)
				So(out, ShouldResemble, []float64{0, 0})
			})
		})

		Convey("When a score is NaN or infinite", func() {
			out, err := anomaly.Normalize([]float64{0.1, math.NaN(), math.Inf(1)})

			Convey("Then no invalid number escapes", func() {
				So(errors.Is(err, anomaly.ErrDegenerateRange), ShouldBeTrue)
				for _, v := range out {
					So(v, ShouldEqual, 0)
				}
			})
		})

		Convey("When a calibration range is provided", func() {
			c := anomaly.Calibration{Min: -0.4, Max: 0.2}

			Convey("Then single scores normalize against it and clamp", func() {
				v, err := anomaly.NormalizeCalibrated(-0.4, c)
				So(err, ShouldBeNil)
				So(v, ShouldEqual, 1)
				v, _ = anomaly.NormalizeCalibrated(0.5, c)
				So(v, ShouldEqual, 0)
				_, err = anomaly.NormalizeCalibrated(0.1, anomaly.Calibration{})
				So(errors.Is(err, anomaly.ErrDegenerateRange), ShouldBeTrue)
			})
		})
	})
}

func TestFromModel(t *testing.T) {
	Convey("Given a model classification", t, func() {
		Convey("Then a weak positive below the confidence floor is cleared", func() {
			So(anomaly.FromModel(0.2, true, 0.3).IsAnomaly, ShouldBeFalse)
			So(anomaly.FromModel(0.6, true, 0.3).IsAnomaly, ShouldBeTrue)
			So(anomaly.FromModel(0.9, false, 0.3).IsAnomaly, ShouldBeFalse)
		})

		Convey("Then scores are clamped to [0,1]", func() {
			So(anomaly.FromModel(1.7, true, 0.3).Score, ShouldEqual, 1)
			So(anomaly.FromModel(math.NaN(), true, 0.3).Score, ShouldEqual, 0)
		})
	})
}

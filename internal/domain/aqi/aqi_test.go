package aqi_test

import (
	"math"
	"testing"
	"time"

	"github.com/okian/airrisk/internal/domain/aqi"
	"github.com/okian/airrisk/internal/domain/model"
	. "github.com/smartystreets/goconvey/convey"
)

func TestFromPM25(t *testing.T) {
	Convey("Given the EPA PM2.5 formula", t, func() {
		Convey("When the concentration sits on a band edge", func() {
			Convey("Then 12.0 maps to 50 Good", func() {
				v, cat := aqi.FromPM25(12.0)
				So(v, ShouldEqual, 50)
				So(cat, ShouldEqual, model.AqiGood)
			})

			Convey("Then 35.4 maps to 100 Moderate", func() {
				v, cat := aqi.FromPM25(35.4)
				So(v, ShouldEqual, 100)
				So(cat, ShouldEqual, model.AqiModerate)
			})

			Convey("Then 500.4 maps to 500 Hazardous", func() {
				v, cat := aqi.FromPM25(500.4)
				So(v, ShouldEqual, 500)
				So(cat, ShouldEqual, model.AqiHazardous)
			})
		})

		Convey("When the concentration is inside a band", func() {
			v, cat := aqi.FromPM25(15)

			Convey("Then it interpolates and rounds", func() {
				So(v, ShouldEqual, 57)
				So(cat, ShouldEqual, model.AqiModerate)
			})
		})

		Convey("When the concentration exceeds the table", func() {
			v, cat := aqi.FromPM25(900)

			Convey("Then it saturates at 500", func() {
				So(v, ShouldEqual, 500)
				So(cat, ShouldEqual, model.AqiHazardous)
			})
		})

		Convey("When the concentration is negative or NaN", func() {
			Convey("Then it is invalid with index 0", func() {
				v, cat := aqi.FromPM25(-1)
				So(v, ShouldEqual, 0)
				So(cat, ShouldEqual, model.AqiInvalid)
				v, cat = aqi.FromPM25(math.NaN())
				So(v, ShouldEqual, 0)
				So(cat, ShouldEqual, model.AqiInvalid)
			})
		})

		Convey("When the concentration falls in the gap between bands", func() {
			v, cat := aqi.FromPM25(12.05)

			Convey("Then it takes the lower edge of the next band", func() {
				So(v, ShouldEqual, 51)
				So(cat, ShouldEqual, model.AqiModerate)
			})
		})

		Convey("When PM2.5 increases monotonically", func() {
			Convey("Then the index never decreases and categories stay consistent", func() {
				prev := -1.0
				for c := 0.0; c <= 600; c += 0.1 {
					v, cat := aqi.FromPM25(c)
					So(v, ShouldBeGreaterThanOrEqualTo, prev)
					So(v, ShouldBeBetweenOrEqual, 0, 500)
					So(aqi.CategoryOf(v), ShouldEqual, cat)
					prev = v
				}
			})
		})
	})
}

func TestSanitize(t *testing.T) {
	Convey("Given raw regressor outputs", t, func() {
		Convey("Then non-finite values map to safe bounds", func() {
			So(aqi.Sanitize(math.NaN()), ShouldEqual, 0)
			So(aqi.Sanitize(math.Inf(-1)), ShouldEqual, 0)
			So(aqi.Sanitize(math.Inf(1)), ShouldEqual, 500)
		})

		Convey("Then finite values are clamped to [0,500]", func() {
			So(aqi.Sanitize(-12), ShouldEqual, 0)
			So(aqi.Sanitize(612), ShouldEqual, 500)
			So(aqi.Sanitize(87.5), ShouldEqual, 87.5)
		})

		Convey("Then predictions carry the category derived from the table", func() {
			a := aqi.FromPrediction(175.2)
			So(a.Category, ShouldEqual, model.AqiUnhealthy)
			So(a.Source, ShouldEqual, model.SourceModel)
		})
	})
}

func TestEstimate(t *testing.T) {
	Convey("Given readings", t, func() {
		ts := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

		Convey("When PM2.5 is present", func() {
			a := aqi.Estimate(model.NewReading("s", ts, map[model.Metric]float64{model.PM25: 35.4}))

			Convey("Then the formula is applied", func() {
				So(a.Value, ShouldEqual, 100)
				So(a.Source, ShouldEqual, model.SourceFormula)
			})
		})

		Convey("When PM2.5 is absent", func() {
			a := aqi.Estimate(model.NewReading("s", ts, map[model.Metric]float64{model.CO2: 400}))

			Convey("Then the result is invalid", func() {
				So(a.Category, ShouldEqual, model.AqiInvalid)
				So(a.Value, ShouldEqual, 0)
			})
		})
	})
}

package features

import (
	"math"
	"testing"

	. "github.com/smartystreets/goconvey/convey"
)

func TestFillColumn(t *testing.T) {
	nan := math.NaN()

	Convey("Given a column with a long gap", t, func() {
		col := []float64{1, nan, nan, nan, nan, nan, nan, nan, 9}
		fillColumn(col, 2)

		Convey("Then forward and backward fill are bounded and the rest takes the median", func() {
			So(col, ShouldResemble, []float64{1, 1, 1, 5, 5, 5, 9, 9, 9})
		})
	})

	Convey("Given a column with no values", t, func() {
		col := []float64{nan, nan}
		fillColumn(col, 5)

		Convey("Then it becomes zero", func() {
			So(col, ShouldResemble, []float64{0, 0})
		})
	})

	Convey("Given a trailing gap", t, func() {
		col := []float64{2, 4, nan}
		fillColumn(col, 5)

		Convey("Then the last value is carried forward", func() {
			So(col[2], ShouldEqual, 4)
		})
	})
}

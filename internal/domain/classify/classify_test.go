package classify_test

import (
	"math"
	"testing"

	"github.com/okian/crowdwatch/internal/domain/classify"
	"github.com/okian/crowdwatch/internal/domain/model"
	. "github.com/smartystreets/goconvey/convey"
)

func TestClassify(t *testing.T) {
	Convey("Given density readings", t, func() {
		Convey("When the density is below 0.4", func() {
			for _, d := range []float64{0, 0.1, 0.25, 0.399999} {
				tier, color := classify.Classify(d)
				So(tier, ShouldEqual, model.TierSafe)
				So(color, ShouldEqual, classify.ColorSafe)
			}
		})

		Convey("When the density sits exactly on a boundary", func() {
			So(classify.TierOf(0.4), ShouldEqual, model.TierModerate)
			So(classify.TierOf(0.5), ShouldEqual, model.TierRisky)
			So(classify.TierOf(0.6), ShouldEqual, model.TierDangerous)
			So(classify.TierOf(1.5), ShouldEqual, model.TierStampedeLikely)
		})

		Convey("When the density is inside a band", func() {
			tier, color := classify.Classify(0.55)
			So(tier, ShouldEqual, model.TierRisky)
			So(color, ShouldEqual, classify.ColorRisky)

			tier, color = classify.Classify(1.6)
			So(tier, ShouldEqual, model.TierStampedeLikely)
			So(color, ShouldEqual, classify.ColorStampede)
		})

		Convey("When the density is negative or not a number", func() {
			So(classify.TierOf(-3), ShouldEqual, model.TierSafe)
			So(classify.TierOf(math.NaN()), ShouldEqual, model.TierSafe)
		})

		Convey("When the density is infinite", func() {
			So(classify.TierOf(math.Inf(1)), ShouldEqual, model.TierStampedeLikely)
		})

		Convey("Then tiers never decrease as density grows", func() {
			prev := model.TierSafe
			for d := 0.0; d < 3; d += 0.01 {
				cur := classify.TierOf(d)
				So(cur, ShouldBeGreaterThanOrEqualTo, prev)
				prev = cur
			}
		})
	})
}

func TestFillColor(t *testing.T) {
	Convey("Given a tier", t, func() {
		fill := classify.FillColor(model.TierStampedeLikely)

		Convey("Then the fill keeps the tier hue at alpha 70", func() {
			So(fill.Alpha(), ShouldEqual, uint8(70))
			So(fill, ShouldEqual, model.ARGB(70, 0, 0, 0))
		})
	})
}

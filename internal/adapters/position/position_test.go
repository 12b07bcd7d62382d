package position

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"

	"github.com/okian/crowdwatch/internal/domain/model"
	"github.com/okian/crowdwatch/pkg/logger"
)

func TestLatest(t *testing.T) {
	Convey("Given a position provider with a controllable clock", t, func() {
		_ = logger.Init()
		ctx := context.Background()
		now := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
		l := NewLatest(WithMaxAge(time.Minute), WithClock(func() time.Time { return now }))

		Convey("When nothing was reported", func() {
			_, ok, err := l.LastKnownPosition(ctx)
			So(err, ShouldBeNil)
			So(ok, ShouldBeFalse)
		})

		Convey("When a fresh fix was reported", func() {
			So(l.Report(model.Position{Lat: 28.6, Lng: 77.3}), ShouldBeNil)
			pos, ok, err := l.LastKnownPosition(ctx)
			So(err, ShouldBeNil)
			So(ok, ShouldBeTrue)
			So(pos, ShouldResemble, model.Position{Lat: 28.6, Lng: 77.3})

			Convey("And it ages past the window", func() {
				now = now.Add(2 * time.Minute)
				_, ok, err := l.LastKnownPosition(ctx)
				So(err, ShouldBeNil)
				So(ok, ShouldBeFalse)

				Convey("Then a new report makes it fresh again", func() {
					So(l.Report(model.Position{Lat: 28.61, Lng: 77.31}), ShouldBeNil)
					pos, ok, _ := l.LastKnownPosition(ctx)
					So(ok, ShouldBeTrue)
					So(pos.Lat, ShouldEqual, 28.61)
				})
			})

			Convey("And permission is revoked", func() {
				l.SetPermission(false)
				_, ok, err := l.LastKnownPosition(ctx)
				So(ok, ShouldBeFalse)
				So(errors.Is(err, model.ErrPermissionDenied), ShouldBeTrue)
			})
		})

		Convey("When the context is already done", func() {
			cctx, cancel := context.WithCancel(ctx)
			cancel()
			_, _, err := l.LastKnownPosition(cctx)
			So(errors.Is(err, context.Canceled), ShouldBeTrue)
		})
	})
}

func TestValidate(t *testing.T) {
	Convey("Given candidate coordinates", t, func() {
		So(Validate(model.Position{Lat: 90, Lng: -180}), ShouldBeNil)
		So(errors.Is(Validate(model.Position{Lat: 91}), ErrInvalidPosition), ShouldBeTrue)
		So(errors.Is(Validate(model.Position{Lng: 181}), ErrInvalidPosition), ShouldBeTrue)
		So(errors.Is(Validate(model.Position{Lat: math.NaN()}), ErrInvalidPosition), ShouldBeTrue)
	})
}

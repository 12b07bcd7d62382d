package geocoder

import (
	"context"
	"errors"
	"testing"

	. "github.com/smartystreets/goconvey/convey"
	"googlemaps.github.io/maps"

	"github.com/okian/crowdwatch/internal/domain/locate"
	"github.com/okian/crowdwatch/internal/domain/model"
	"github.com/okian/crowdwatch/pkg/logger"
)

var (
	_ locate.Geocoder = (*Maps)(nil)
	_ locate.Geocoder = Unavailable{}
)

func TestNewMaps(t *testing.T) {
	Convey("Given the maps geocoder constructor", t, func() {
		_ = logger.Init()

		Convey("When the key is blank", func() {
			_, err := NewMaps("  ")
			So(errors.Is(err, ErrMissingAPIKey), ShouldBeTrue)
		})

		Convey("When a key is given", func() {
			m, err := NewMaps("AIza-test-key", WithRegion("in"), WithLanguage("en"))
			So(err, ShouldBeNil)
			So(m.region, ShouldEqual, "in")
			So(m.language, ShouldEqual, "en")
			So(m.client, ShouldNotBeNil)
		})

		Convey("When a rate limit is given", func() {
			m, err := NewMaps("AIza-test-key", WithRateLimit(5))
			So(err, ShouldBeNil)
			So(m.qps, ShouldEqual, 5)
		})
	})
}

func TestPlaces(t *testing.T) {
	Convey("Given geocoding results", t, func() {
		var r maps.GeocodingResult
		r.FormattedAddress = "Sector 62, Noida"
		r.Geometry.Location = maps.LatLng{Lat: 28.62, Lng: 77.36}

		got := places([]maps.GeocodingResult{r})
		So(got, ShouldResemble, []locate.Place{{
			DisplayName: "Sector 62, Noida",
			Position:    model.Position{Lat: 28.62, Lng: 77.36},
		}})
		So(places(nil), ShouldBeEmpty)
	})
}

func TestUnavailable(t *testing.T) {
	Convey("Given no geocoding provider", t, func() {
		_, err := Unavailable{}.Forward(context.Background(), "x")
		So(errors.Is(err, ErrUnavailable), ShouldBeTrue)
		_, err = Unavailable{}.Reverse(context.Background(), model.Position{})
		So(errors.Is(err, ErrUnavailable), ShouldBeTrue)
	})
}

package mapsurface

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"

	. "github.com/smartystreets/goconvey/convey"

	"github.com/okian/crowdwatch/internal/domain/model"
	"github.com/okian/crowdwatch/internal/domain/surface"
)

type captureBroadcaster struct {
	mu    sync.Mutex
	kinds []string
	ops   []Op
}

func (b *captureBroadcaster) Broadcast(kind string, data any) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.kinds = append(b.kinds, kind)
	if op, ok := data.(Op); ok {
		b.ops = append(b.ops, op)
	}
}

func TestScene(t *testing.T) {
	Convey("Given an empty scene with a broadcaster", t, func() {
		ctx := context.Background()
		b := &captureBroadcaster{}
		s := NewScene(WithBroadcaster(b), WithLogSize(4))
		pos := model.Position{Lat: 28.6, Lng: 77.3}

		Convey("When a marker and circle are added", func() {
			mh, err := s.AddMarker(ctx, surface.MarkerOptions{Position: pos, Title: "Gate 3", Icon: "shelter"})
			So(err, ShouldBeNil)
			ch, err := s.AddCircle(ctx, surface.CircleOptions{
				Center: pos, Radius: 300, StrokeColor: model.ARGB(255, 255, 165, 0), StrokeWidth: 4,
			})
			So(err, ShouldBeNil)

			Convey("Then both are live and broadcast", func() {
				markers, circles := s.Counts()
				So(markers, ShouldEqual, 1)
				So(circles, ShouldEqual, 1)
				So(mh, ShouldNotEqual, ch)
				So(b.kinds, ShouldResemble, []string{"op", "op"})
				So(b.ops[0].Kind, ShouldEqual, OpAddMarker)
				So(b.ops[1].Circle.Radius, ShouldEqual, 300)
			})

			Convey("And the circle is restyled", func() {
				black := model.ARGB(255, 0, 0, 0)
				So(s.UpdateCircle(ctx, ch, surface.CircleUpdate{Center: pos, Radius: 300, StrokeColor: black}), ShouldBeNil)
				c := s.Circles()[0]
				So(c.StrokeColor, ShouldEqual, black)
				So(c.StrokeWidth, ShouldEqual, 4)
			})

			Convey("And the marker is removed", func() {
				So(s.Remove(ctx, mh), ShouldBeNil)
				markers, _ := s.Counts()
				So(markers, ShouldEqual, 0)
				So(errors.Is(s.Remove(ctx, mh), ErrUnknownHandle), ShouldBeTrue)
			})

			Convey("And a snapshot is stamped with the last operation", func() {
				So(s.MoveCamera(ctx, pos, 15), ShouldBeNil)
				snap := s.Snapshot()
				So(snap.Seq, ShouldEqual, 3)
				So(snap.Camera.Zoom, ShouldEqual, 15)
				So(snap.Markers, ShouldHaveLength, 1)
				So(snap.Circles[0].Handle, ShouldEqual, ch)
			})

			Convey("And the scene exports as GeoJSON", func() {
				raw, err := s.Snapshot().FeatureCollection().MarshalJSON()
				So(err, ShouldBeNil)
				var doc struct {
					Type     string `json:"type"`
					Features []struct {
						Properties map[string]any `json:"properties"`
					} `json:"features"`
				}
				So(json.Unmarshal(raw, &doc), ShouldBeNil)
				So(doc.Type, ShouldEqual, "FeatureCollection")
				So(doc.Features, ShouldHaveLength, 2)
				So(doc.Features[1].Properties["stroke"], ShouldEqual, "#FFFFA500")
			})
		})

		Convey("When an unknown handle is updated", func() {
			err := s.UpdateMarker(ctx, "m-missing", surface.MarkerUpdate{})
			So(errors.Is(err, ErrUnknownHandle), ShouldBeTrue)
			So(s.Ops(0), ShouldBeEmpty)
		})

		Convey("When more operations are applied than the log holds", func() {
			for i := 0; i < 6; i++ {
				So(s.MoveCamera(ctx, pos, float64(i)), ShouldBeNil)
			}

			Convey("Then only the newest are kept and replay starts after a seq", func() {
				ops := s.Ops(0)
				So(ops, ShouldHaveLength, 4)
				So(ops[0].Seq, ShouldEqual, 3)
				So(s.Ops(5), ShouldHaveLength, 1)
				So(s.Camera().Zoom, ShouldEqual, 5)
			})
		})
	})
}

func TestAnnotationsFeatureCollection(t *testing.T) {
	Convey("Given annotation rows", t, func() {
		n := 12
		rows := []model.Annotation{
			{NodeID: "n1", Kind: model.KindHazard, Title: "Gate 3", Density: 0.55, LastTier: model.TierRisky,
				Position: model.Position{Lat: 28.6, Lng: 77.3}, Attributes: model.DefaultAttributes()},
			{NodeID: "session:x", Kind: model.KindSOS, Title: "You are here: Sector 62", AuxMetric: &n},
		}
		fc := Annotations(rows)

		Convey("Then every row becomes a feature", func() {
			So(fc.Features, ShouldHaveLength, 2)
			So(fc.Features[0].ID, ShouldEqual, "n1")
			So(fc.Features[0].Geometry.Point, ShouldResemble, []float64{77.3, 28.6})
			So(fc.Features[0].Properties["tier"], ShouldEqual, "risky")
			So(fc.Features[1].Properties["humans_in_distress"], ShouldEqual, 12)
			_, hasTier := fc.Features[1].Properties["tier"]
			So(hasTier, ShouldBeFalse)
		})
	})
}

package realtime

import (
	"context"
	"errors"
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"

	"github.com/okian/crowdwatch/internal/domain/ingest"
	"github.com/okian/crowdwatch/pkg/logger"
)

func receive(ch <-chan ingest.RawEvent) (ingest.RawEvent, bool) {
	select {
	case ev, ok := <-ch:
		return ev, ok
	case <-time.After(time.Second):
		return ingest.RawEvent{Err: errors.New("timeout")}, false
	}
}

func TestMemorySource(t *testing.T) {
	Convey("Given a memory store", t, func() {
		_ = logger.Init()
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()
		m := NewMemory()

		Convey("When a value exists before subscribing", func() {
			So(m.SetValue("hazards", map[string]any{"n1": map[string]any{"density": 0.5}}), ShouldBeNil)
			ch := m.Subscribe(ctx, "hazards")
			ev, ok := receive(ch)

			Convey("Then it is delivered first", func() {
				So(ok, ShouldBeTrue)
				So(ev.Err, ShouldBeNil)
				So(ev.Records, ShouldContainKey, "n1")
			})
		})

		Convey("When snapshots are published", func() {
			ch := m.Subscribe(ctx, "hazards")
			type rec struct {
				Density float64 `json:"density"`
			}
			So(m.Publish(ctx, "hazards", map[string]rec{"a": {Density: 0.1}}), ShouldBeNil)
			So(m.Publish(ctx, "hazards", nil), ShouldBeNil)
			first, _ := receive(ch)
			second, _ := receive(ch)

			Convey("Then they arrive decoded in order", func() {
				node := first.Records["a"].(map[string]any)
				So(node["density"], ShouldEqual, 0.1)
				So(second.Err, ShouldBeNil)
				So(second.Records, ShouldBeEmpty)
			})
		})

		Convey("When a scalar is published on a subscribed path", func() {
			ch := m.Subscribe(ctx, "hazards")
			So(m.Publish(ctx, "hazards", 3), ShouldBeNil)
			ev, _ := receive(ch)
			So(errors.Is(ev.Err, ErrUnexpectedShape), ShouldBeTrue)
		})

		Convey("When the source fails", func() {
			ch := m.Subscribe(ctx, "hazards")
			boom := errors.New("boom")
			m.Fail("hazards", boom)
			ev, ok := receive(ch)
			So(ok, ShouldBeTrue)
			So(ev.Err, ShouldEqual, boom)
		})

		Convey("When fetching once", func() {
			So(m.SetValue("density", 42), ShouldBeNil)
			v, err := m.FetchOnce(ctx, "density")
			So(err, ShouldBeNil)
			So(v, ShouldEqual, float64(42))

			missing, err := m.FetchOnce(ctx, "nothing")
			So(err, ShouldBeNil)
			So(missing, ShouldBeNil)

			m.FailFetch("density", errors.New("offline"))
			_, err = m.FetchOnce(ctx, "density")
			So(err, ShouldNotBeNil)
		})

		Convey("When the subscriber context ends", func() {
			sctx, scancel := context.WithCancel(ctx)
			ch := m.Subscribe(sctx, "hazards")
			So(m.Subscribers("hazards"), ShouldEqual, 1)
			scancel()
			_, ok := receive(ch)

			Convey("Then the channel closes and the subscription is dropped", func() {
				So(ok, ShouldBeFalse)
				So(m.Subscribers("hazards"), ShouldEqual, 0)
			})
		})
	})
}

func TestEventFrom(t *testing.T) {
	Convey("Given decoded realtime values", t, func() {
		So(eventFrom(nil).Records, ShouldBeEmpty)
		So(eventFrom(map[string]any{"x": 1}).Records, ShouldContainKey, "x")
		So(errors.Is(eventFrom("text").Err, ErrUnexpectedShape), ShouldBeTrue)
	})
}

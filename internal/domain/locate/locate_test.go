package locate_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/okian/crowdwatch/internal/adapters/mq/queue"
	"github.com/okian/crowdwatch/internal/adapters/mq/worker"
	"github.com/okian/crowdwatch/internal/domain/locate"
	"github.com/okian/crowdwatch/internal/domain/model"
	"github.com/okian/crowdwatch/pkg/logger"
	. "github.com/smartystreets/goconvey/convey"
)

// gatedGeocoder answers each query once its gate is released; it ignores ctx
// so a superseded request can still answer late.
type gatedGeocoder struct {
	mu      sync.Mutex
	gates   map[string]chan struct{}
	places  map[string][]locate.Place
	reverse []locate.Place
	err     error
}

func newGatedGeocoder() *gatedGeocoder {
	return &gatedGeocoder{gates: make(map[string]chan struct{}), places: make(map[string][]locate.Place)}
}

func (g *gatedGeocoder) gate(q string) chan struct{} {
	g.mu.Lock()
	defer g.mu.Unlock()
	ch, ok := g.gates[q]
	if !ok {
		ch = make(chan struct{})
		g.gates[q] = ch
	}
	return ch
}

func (g *gatedGeocoder) Forward(_ context.Context, q string) ([]locate.Place, error) {
	<-g.gate(q)
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.places[q], g.err
}

func (g *gatedGeocoder) Reverse(context.Context, model.Position) ([]locate.Place, error) {
	return g.reverse, g.err
}

func TestSearchStaleness(t *testing.T) {
	Convey("Given a resolver on a running loop", t, func() {
		_ = logger.Init()
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()
		loop := worker.NewLoop(queue.NewInMemoryQueue())
		go loop.Run(ctx)

		g := newGatedGeocoder()
		g.places["q1"] = []locate.Place{{DisplayName: "Old Place"}}
		g.places["q2"] = []locate.Place{{DisplayName: "New Place"}}
		r := locate.NewResolver(g, loop)

		var mu sync.Mutex
		var applied []string
		apply := func(_ context.Context, res locate.Result) {
			mu.Lock()
			defer mu.Unlock()
			applied = append(applied, res.Place.DisplayName)
		}

		Convey("When q1 is issued, q2 is issued, and q1 answers last", func() {
			s1 := r.Search(ctx, "q1", apply)
			s2 := r.Search(ctx, "q2", apply)
			close(g.gate("q2"))
			time.Sleep(20 * time.Millisecond)
			close(g.gate("q1"))
			time.Sleep(20 * time.Millisecond)
			_ = loop.Call(ctx, func(context.Context) {})

			Convey("Then only q2 is applied", func() {
				So(s1, ShouldEqual, uint64(1))
				So(s2, ShouldEqual, uint64(2))
				So(r.Current(), ShouldEqual, uint64(2))
				mu.Lock()
				defer mu.Unlock()
				So(applied, ShouldResemble, []string{"New Place"})
			})
		})

		Convey("When a single search finds nothing", func() {
			var got locate.Result
			done := make(chan struct{})
			r.Search(ctx, "nowhere", func(_ context.Context, res locate.Result) {
				got = res
				close(done)
			})
			close(g.gate("nowhere"))
			<-done

			Convey("Then the result carries ErrNotFound", func() {
				So(errors.Is(got.Err, model.ErrNotFound), ShouldBeTrue)
				So(got.Query, ShouldEqual, "nowhere")
			})
		})
	})
}

// heldGeocoder answers once released, or fails as soon as its ctx ends.
type heldGeocoder struct {
	release chan struct{}
}

func (g *heldGeocoder) Forward(ctx context.Context, q string) ([]locate.Place, error) {
	select {
	case <-g.release:
		return []locate.Place{{DisplayName: q}}, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (g *heldGeocoder) Reverse(context.Context, model.Position) ([]locate.Place, error) {
	return nil, nil
}

func TestConcurrentSearch(t *testing.T) {
	Convey("Given searches issued from many goroutines at once", t, func() {
		_ = logger.Init()
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()
		loop := worker.NewLoop(queue.NewInMemoryQueue())
		go loop.Run(ctx)

		Convey("Then the newest search is never canceled by an older one", func() {
			for round := 0; round < 50; round++ {
				g := &heldGeocoder{release: make(chan struct{})}
				r := locate.NewResolver(g, loop)
				results := make(chan locate.Result, 16)
				apply := func(_ context.Context, res locate.Result) { results <- res }

				var wg sync.WaitGroup
				for i := 0; i < 8; i++ {
					wg.Add(1)
					go func() {
						defer wg.Done()
						r.Search(ctx, "q", apply)
					}()
				}
				wg.Wait()
				close(g.release)

				select {
				case res := <-results:
					So(res.Seq, ShouldEqual, r.Current())
					So(res.Err, ShouldBeNil)
				case <-time.After(2 * time.Second):
					So("latest search applied", ShouldEqual, "timed out")
				}
			}
		})
	})
}

func TestResolve(t *testing.T) {
	Convey("Given a resolver", t, func() {
		_ = logger.Init()
		g := newGatedGeocoder()
		r := locate.NewResolver(g, nil, locate.WithTimeout(time.Second))
		ctx := context.Background()

		Convey("When reverse lookup succeeds", func() {
			g.reverse = []locate.Place{{DisplayName: ""}, {DisplayName: "Sector 62, Noida"}}
			So(r.ResolveReverse(ctx, model.Position{Lat: 28.6, Lng: 77.3}), ShouldEqual, "Sector 62, Noida")
		})

		Convey("When reverse lookup is empty or fails", func() {
			So(r.ResolveReverse(ctx, model.Position{}), ShouldEqual, locate.UnknownLocation)
			g.err = errors.New("quota exceeded")
			So(r.ResolveReverse(ctx, model.Position{}), ShouldEqual, locate.UnknownLocation)
		})

		Convey("When forward lookup gets a blank query", func() {
			_, err := r.ResolveForward(ctx, "   ")
			So(errors.Is(err, model.ErrNotFound), ShouldBeTrue)
		})

		Convey("When the provider fails a forward lookup", func() {
			g.err = errors.New("provider down")
			close(g.gate("delhi"))
			_, err := r.ResolveForward(ctx, "delhi")

			Convey("Then it is classified as not found", func() {
				So(errors.Is(err, model.ErrNotFound), ShouldBeTrue)
			})
		})

		Convey("When the provider finds a place", func() {
			g.places["delhi"] = []locate.Place{{DisplayName: "New Delhi", Position: model.Position{Lat: 28.61, Lng: 77.21}}}
			close(g.gate("delhi"))
			p, err := r.ResolveForward(ctx, "delhi")
			So(err, ShouldBeNil)
			So(p.DisplayName, ShouldEqual, "New Delhi")
		})
	})
}

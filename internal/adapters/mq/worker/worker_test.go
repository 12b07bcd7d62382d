package worker_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	queue "github.com/okian/crowdwatch/internal/adapters/mq/queue"
	worker "github.com/okian/crowdwatch/internal/adapters/mq/worker"
	logging "github.com/okian/crowdwatch/pkg/logger"
	"github.com/smartystreets/goconvey/convey"
)

func TestLoop(t *testing.T) {
	convey.Convey("Given a main loop over an in-memory queue", t, func() {
		_ = logging.Init()

		q := queue.NewInMemoryQueue(queue.WithCapacity(16))
		loop := worker.NewLoop(q, worker.WithName("test-loop"))
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()
		go loop.Run(ctx)

		convey.Convey("When posting tasks from many goroutines", func() {
			var mu sync.Mutex
			counter := 0
			var wg sync.WaitGroup
			for i := 0; i < 8; i++ {
				wg.Add(1)
				go func() {
					defer wg.Done()
					for j := 0; j < 25; j++ {
						_ = loop.Post(ctx, func(context.Context) {
							mu.Lock()
							counter++
							mu.Unlock()
						})
					}
				}()
			}
			wg.Wait()

			var got int
			err := loop.Call(ctx, func(context.Context) {
				mu.Lock()
				got = counter
				mu.Unlock()
			})

			convey.Convey("Then every task runs before a later Call returns", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(got, convey.ShouldEqual, 200)
			})
		})

		convey.Convey("When tasks are posted in order", func() {
			var order []int
			for i := 0; i < 10; i++ {
				i := i
				_ = loop.Post(ctx, func(context.Context) { order = append(order, i) })
			}
			var snapshot []int
			_ = loop.Call(ctx, func(context.Context) { snapshot = append(snapshot, order...) })

			convey.Convey("Then they execute in FIFO order", func() {
				convey.So(snapshot, convey.ShouldResemble, []int{0, 1, 2, 3, 4, 5, 6, 7, 8, 9})
			})
		})

		convey.Convey("When a task panics", func() {
			_ = loop.Post(ctx, func(context.Context) { panic("boom") })
			ran := false
			err := loop.Call(ctx, func(context.Context) { ran = true })

			convey.Convey("Then the loop keeps running", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(ran, convey.ShouldBeTrue)
			})
		})

		convey.Convey("When posting a nil task", func() {
			err := loop.Post(ctx, nil)

			convey.Convey("Then it is rejected", func() {
				convey.So(errors.Is(err, queue.ErrNilTask), convey.ShouldBeTrue)
			})
		})

		convey.Convey("When the loop is shut down", func() {
			_ = loop.Call(ctx, func(context.Context) {})
			ran := false
			_ = loop.Post(ctx, func(context.Context) { ran = true })

			shutdownCtx, stop := context.WithTimeout(context.Background(), time.Second)
			defer stop()
			err := loop.Shutdown(shutdownCtx)

			convey.Convey("Then queued tasks drain and later posts fail", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(ran, convey.ShouldBeTrue)
				convey.So(errors.Is(loop.Post(ctx, func(context.Context) {}), queue.ErrClosed), convey.ShouldBeTrue)
				<-loop.Done()
			})
		})
	})
}

func TestLoopShutdownWithoutRun(t *testing.T) {
	convey.Convey("Given a loop that never ran", t, func() {
		_ = logging.Init()
		loop := worker.NewLoop(queue.NewInMemoryQueue())

		convey.Convey("Then Shutdown returns immediately", func() {
			convey.So(loop.Shutdown(context.Background()), convey.ShouldBeNil)
		})
	})
}

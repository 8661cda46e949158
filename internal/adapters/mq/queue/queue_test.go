package queue_test

import (
	"context"
	"fmt"
	"testing"

	"github.com/sigil-labs/prophet/internal/adapters/mq/queue"
	"github.com/sigil-labs/prophet/internal/domain/model"
	. "github.com/smartystreets/goconvey/convey"
)

func testSignal(id string) model.Signal {
	return model.Signal{
		MarketID:      id,
		Name:          "test market",
		Probabilities: map[string]float64{"yes": 0.8},
		RawConfidence: 0.8,
	}
}

func TestInMemoryQueue(t *testing.T) {
	Convey("Given a bounded in-memory queue", t, func() {
		ctx := context.Background()
		q := queue.NewInMemoryQueue(queue.WithCapacity(2))

		Convey("When enqueuing within capacity", func() {
			So(q.Enqueue(ctx, testSignal("m1")), ShouldBeTrue)
			So(q.Len(ctx), ShouldEqual, 1)

			Convey("Then dequeue yields the signal", func() {
				sig := <-q.Dequeue(ctx)
				So(sig.MarketID, ShouldEqual, "m1")
			})
		})

		Convey("When the queue is full", func() {
			So(q.Enqueue(ctx, testSignal("m1")), ShouldBeTrue)
			So(q.Enqueue(ctx, testSignal("m2")), ShouldBeTrue)

			Convey("Then further enqueues are refused", func() {
				So(q.Enqueue(ctx, testSignal("m3")), ShouldBeFalse)
				So(q.Len(ctx), ShouldEqual, 2)
			})
		})

		Convey("When the queue is closed", func() {
			So(q.Enqueue(ctx, testSignal("m1")), ShouldBeTrue)
			So(q.Close(), ShouldBeNil)

			Convey("Then enqueue refuses and close is idempotent", func() {
				So(q.Enqueue(ctx, testSignal("m2")), ShouldBeFalse)
				So(q.IsClosed(), ShouldBeTrue)
				So(q.Close(), ShouldBeNil)
			})

			Convey("And buffered signals drain before the channel closes", func() {
				ch := q.Dequeue(ctx)
				sig, ok := <-ch
				So(ok, ShouldBeTrue)
				So(sig.MarketID, ShouldEqual, "m1")
				_, ok = <-ch
				So(ok, ShouldBeFalse)
			})
		})

		Convey("When many signals flow through", func() {
			wide := queue.NewInMemoryQueue(queue.WithCapacity(64))
			for i := 0; i < 10; i++ {
				So(wide.Enqueue(ctx, testSignal(fmt.Sprintf("m%d", i))), ShouldBeTrue)
			}
			So(wide.Close(), ShouldBeNil)

			Convey("Then dequeue preserves order", func() {
				i := 0
				for sig := range wide.Dequeue(ctx) {
					So(sig.MarketID, ShouldEqual, fmt.Sprintf("m%d", i))
					i++
				}
				So(i, ShouldEqual, 10)
			})
		})
	})
}

package inflight_test

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/okian/paddock/internal/domain/inflight"
	. "github.com/smartystreets/goconvey/convey"
)

func TestInMemoryTracker(t *testing.T) {
	ctx := context.Background()

	Convey("Given a new tracker", t, func() {
		tr := inflight.NewInMemoryTracker()
		So(tr.Size(), ShouldEqual, 0)

		Convey("When a key is started", func() {
			So(tr.TryStart(ctx, "batch"), ShouldBeTrue)

			Convey("Then starting it again is refused", func() {
				So(tr.TryStart(ctx, "batch"), ShouldBeFalse)
				So(tr.Running("batch"), ShouldBeTrue)
				So(tr.Size(), ShouldEqual, 1)
			})

			Convey("Then it can start again once done", func() {
				tr.Done(ctx, "batch")
				So(tr.Running("batch"), ShouldBeFalse)
				So(tr.TryStart(ctx, "batch"), ShouldBeTrue)
			})
		})

		Convey("When releasing an unknown key", func() {
			tr.Done(ctx, "nope")
			So(tr.Size(), ShouldEqual, 0)
		})

		Convey("When several keys run", func() {
			tr.TryStart(ctx, "E2/race_winner")
			tr.TryStart(ctx, "E1/race_winner")
			So(tr.Active(), ShouldResemble, []string{"E1/race_winner", "E2/race_winner"})
		})
	})

	Convey("Given a bounded tracker", t, func() {
		tr := inflight.NewInMemoryTracker(inflight.WithMaxSize(2))

		Convey("Then it refuses keys beyond capacity", func() {
			So(tr.TryStart(ctx, "a"), ShouldBeTrue)
			So(tr.TryStart(ctx, "b"), ShouldBeTrue)
			So(tr.TryStart(ctx, "c"), ShouldBeFalse)
			tr.Done(ctx, "a")
			So(tr.TryStart(ctx, "c"), ShouldBeTrue)
		})
	})

	Convey("Given concurrent callers racing for one key", t, func() {
		tr := inflight.NewInMemoryTracker(inflight.WithMaxSize(0))
		var wins atomic.Int64
		var wg sync.WaitGroup
		for i := 0; i < 50; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				if tr.TryStart(ctx, "pair") {
					wins.Add(1)
				}
				tr.TryStart(ctx, fmt.Sprintf("other-%d", i))
			}()
		}
		wg.Wait()

		Convey("Then exactly one wins", func() {
			So(wins.Load(), ShouldEqual, 1)
			So(tr.Size(), ShouldEqual, 51)
		})
	})
}

package engine_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/okian/paddock/internal/adapters/repository"
	"github.com/okian/paddock/internal/domain/model"
	"github.com/okian/paddock/internal/engine"
	. "github.com/smartystreets/goconvey/convey"
)

// gatedStore blocks discovery until release is closed.
type gatedStore struct {
	*repository.MemoryStore
	entered chan struct{}
	release chan struct{}
}

func (g *gatedStore) ListPairStates(ctx context.Context) ([]model.PairState, error) {
	close(g.entered)
	<-g.release
	return g.MemoryStore.ListPairStates(ctx)
}

func TestScorePendingResults(t *testing.T) {
	Convey("Given three pairs, one without a rule and one with a malformed result", t, func() {
		f := newFixture()
		f.result("E1", model.RaceWinner, "Max Verstappen")
		f.pick("p1", "u1", "E1", model.RaceWinner, "Max Verstappen")
		f.pick("p2", "u2", "E1", model.RaceWinner, "Lando Norris")
		f.result("E1", model.FastestLapTime, "70.540")
		f.pick("p3", "u1", "E1", model.FastestLapTime, "71.540")
		f.result("E2", model.FastestLapTime, "DNF")
		f.pick("p4", "u1", "E2", model.FastestLapTime, "70.000")
		f.result("E2", model.SafetyCar, "yes")
		f.pick("p5", "u1", "E2", model.SafetyCar, "no")
		eng := engine.New(f.store, registry("v1", "2.0"), engine.WithWorkers(2))

		Convey("When a batch runs", func() {
			sum, err := eng.ScorePendingResults(f.ctx)

			Convey("Then good pairs are scored and bad pairs are reported", func() {
				So(err, ShouldBeNil)
				So(sum.RunID, ShouldNotBeEmpty)
				So(sum.PairsDiscovered, ShouldEqual, 4)
				So(sum.PairsScored, ShouldEqual, 2)
				So(sum.PairsFailed, ShouldEqual, 2)
				So(sum.PicksScored, ShouldEqual, 3)
				So(sum.ScoresCreated, ShouldEqual, 3)
				So(sum.Status(), ShouldEqual, "partial")
				So(sum.Failures, ShouldHaveLength, 2)
				So(sum.Failures[0].PropType, ShouldEqual, model.FastestLapTime)
				So(sum.Failures[0].Reason, ShouldContainSubstring, "malformed result")
				So(sum.Failures[1].PropType, ShouldEqual, model.SafetyCar)
				So(sum.FinishedAt.Before(sum.StartedAt), ShouldBeFalse)
			})

			Convey("Then every pick of a scored pair has a score", func() {
				scores := f.scores("E1")
				So(scores, ShouldHaveLength, 3)
				So(scores["p3"].Points, ShouldEqual, 5)
			})

			Convey("And when the batch runs again", func() {
				again, err := eng.ScorePendingResults(f.ctx)

				Convey("Then only the failed pairs are retried", func() {
					So(err, ShouldBeNil)
					So(again.PairsDiscovered, ShouldEqual, 2)
					So(again.PairsScored, ShouldEqual, 0)
					So(again.ScoresCreated+again.ScoresUpdated, ShouldEqual, 0)
				})
			})

			Convey("And when a late pick arrives", func() {
				f.pick("p6", "u3", "E1", model.RaceWinner, "Max Verstappen")
				again, _ := eng.ScorePendingResults(f.ctx)

				Convey("Then its pair is pending again and only the new pick is written", func() {
					So(again.PairsScored, ShouldEqual, 1)
					So(again.ScoresCreated, ShouldEqual, 1)
					So(again.ScoresUnchanged, ShouldEqual, 2)
					So(f.scores("E1")["p6"].Points, ShouldEqual, 10)
				})
			})

			Convey("And when the rules are retuned", func() {
				retuned := engine.New(f.store, registry("v2", "4.0"))
				again, _ := retuned.ScorePendingResults(f.ctx)

				Convey("Then every pair with a rule is rescored under the new version", func() {
					So(again.PairsScored, ShouldEqual, 2)
					So(f.scores("E1")["p3"].Points, ShouldEqual, 8)
					So(f.scores("E1")["p3"].Details.RuleVersion, ShouldStartWith, "v2+")
				})
			})

			Convey("And when forced", func() {
				forced, _ := eng.ScorePendingResults(f.ctx, engine.WithForce())

				Convey("Then every pair is visited and nothing changes", func() {
					So(forced.PairsDiscovered, ShouldEqual, 4)
					So(forced.PairsScored, ShouldEqual, 2)
					So(forced.ScoresUnchanged, ShouldEqual, 3)
					So(forced.ScoresCreated+forced.ScoresUpdated, ShouldEqual, 0)
				})
			})
		})
	})
}

func TestScorePendingResultsCancelled(t *testing.T) {
	Convey("Given a cancelled context", t, func() {
		f := newFixture()
		f.result("E1", model.RaceWinner, "Max Verstappen")
		f.pick("p1", "u1", "E1", model.RaceWinner, "Max Verstappen")
		eng := engine.New(f.store, registry("v1", "2.0"))
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		sum, err := eng.ScorePendingResults(ctx)

		Convey("Then discovery fails and nothing is scored", func() {
			So(errors.Is(err, context.Canceled), ShouldBeTrue)
			So(sum.PairsScored, ShouldEqual, 0)
			So(f.scores("E1"), ShouldBeEmpty)
		})
	})
}

func TestScorePendingResultsOverlap(t *testing.T) {
	Convey("Given a batch blocked in discovery", t, func() {
		f := newFixture()
		store := &gatedStore{MemoryStore: f.store, entered: make(chan struct{}), release: make(chan struct{})}
		eng := engine.New(store, registry("v1", "2.0"))

		done := make(chan error, 1)
		go func() {
			_, err := eng.ScorePendingResults(f.ctx)
			done <- err
		}()
		<-store.entered

		Convey("When a second batch starts", func() {
			_, err := eng.ScorePendingResults(f.ctx)
			running := eng.Running()
			close(store.release)

			Convey("Then it is rejected while the first completes", func() {
				So(errors.Is(err, engine.ErrBatchInProgress), ShouldBeTrue)
				So(running, ShouldBeTrue)
				select {
				case firstErr := <-done:
					So(firstErr, ShouldBeNil)
				case <-time.After(time.Second):
					So("first batch did not finish", ShouldBeEmpty)
				}
				So(eng.Running(), ShouldBeFalse)
			})
		})
	})
}

func TestScorePendingResultsPaced(t *testing.T) {
	Convey("Given pacing and a pair timeout", t, func() {
		f := newFixture()
		for _, ev := range []string{"E1", "E2", "E3"} {
			f.result(ev, model.RaceWinner, "Max Verstappen")
			f.pick("p-"+ev, "u1", ev, model.RaceWinner, "Max Verstappen")
		}
		eng := engine.New(f.store, registry("v1", "2.0"),
			engine.WithWorkers(3),
			engine.WithQueueSize(1),
			engine.WithPairsPerSecond(1000),
			engine.WithPairTimeout(time.Second),
		)

		sum, err := eng.ScorePendingResults(f.ctx)

		Convey("Then a queue smaller than the batch still delivers every pair", func() {
			So(err, ShouldBeNil)
			So(sum.PairsScored, ShouldEqual, 3)
			So(sum.Status(), ShouldEqual, "ok")
		})
	})
}

// cancellingNotifier cancels the run once the first pair is committed.
type cancellingNotifier struct {
	cancel context.CancelFunc
}

func (n cancellingNotifier) PairScored(context.Context, engine.PairReport) error {
	n.cancel()
	return nil
}

func TestScorePendingResultsInterrupted(t *testing.T) {
	Convey("Given ten pairs and a run cancelled after its first pair", t, func() {
		f := newFixture()
		for i := range 10 {
			ev := "E" + string(rune('0'+i))
			f.result(ev, model.RaceWinner, "Max Verstappen")
			f.pick("p-"+ev, "u1", ev, model.RaceWinner, "Max Verstappen")
		}
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()
		eng := engine.New(f.store, registry("v1", "2.0"),
			engine.WithWorkers(1),
			engine.WithQueueSize(1),
			engine.WithNotifier(cancellingNotifier{cancel: cancel}),
		)

		sum, err := eng.ScorePendingResults(ctx)

		Convey("Then the pool stops early and cut-off pairs stay pending", func() {
			So(err, ShouldBeNil)
			So(sum.Interrupted, ShouldBeTrue)
			So(sum.PairsDiscovered, ShouldEqual, 10)
			So(sum.PairsScored, ShouldBeGreaterThanOrEqualTo, 1)
			So(sum.PairsScored, ShouldBeLessThan, 10)
			So(sum.PairsFailed, ShouldEqual, 0)
			So(eng.Running(), ShouldBeFalse)

			pending, perr := eng.Pending(f.ctx)
			So(perr, ShouldBeNil)
			So(len(pending), ShouldEqual, 10-sum.PairsScored)
		})
	})
}

package engine_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/okian/paddock/internal/adapters/repository"
	"github.com/okian/paddock/internal/domain/audit"
	"github.com/okian/paddock/internal/domain/model"
	"github.com/okian/paddock/internal/domain/scoring"
	"github.com/okian/paddock/internal/engine"
	"github.com/okian/paddock/pkg/logger"
	. "github.com/smartystreets/goconvey/convey"
)

var errNotify = errors.New("redis down")

func registry(label string, lapCutoff string) *scoring.Registry {
	r, err := scoring.NewRegistry(label,
		scoring.Rule{PropType: model.RaceWinner, Strategy: scoring.Categorical, ExactPoints: 10},
		scoring.Rule{
			PropType:        model.FastestLapTime,
			Strategy:        scoring.Numeric,
			ExactPoints:     10,
			MaxMarginPoints: 10,
			MarginUnit:      "seconds",
			Decay:           scoring.Decay{Kind: scoring.DecayLinear, Cutoff: decimal.RequireFromString(lapCutoff)},
		},
	)
	if err != nil {
		panic(err)
	}
	return r
}

type fixture struct {
	store *repository.MemoryStore
	ctx   context.Context
}

func newFixture() fixture {
	_ = logger.Init()
	return fixture{store: repository.NewMemoryStore(), ctx: context.Background()}
}

func (f fixture) pick(id, user, event string, pt model.PropType, value string) {
	if err := f.store.PutPick(f.ctx, model.Pick{ID: id, UserID: user, EventID: event, PropType: pt, PropValue: value}); err != nil {
		panic(err)
	}
}

func (f fixture) result(event string, pt model.PropType, value string) model.Result {
	return f.store.PutResult(f.ctx, model.Result{EventID: event, PropType: pt, ActualValue: value, Source: model.SourceFastF1})
}

func (f fixture) scores(event string) map[string]model.Score {
	list, err := f.store.ListScores(f.ctx, repository.ScoreFilter{EventID: event, Limit: repository.MaxListLimit})
	if err != nil {
		panic(err)
	}
	out := make(map[string]model.Score, len(list))
	for _, s := range list {
		out[s.PickID] = s
	}
	return out
}

func (f fixture) audit(pickID string) []model.AuditEntry {
	list, err := f.store.ListAudit(f.ctx, repository.AuditFilter{PickID: pickID, Limit: repository.MaxListLimit})
	if err != nil {
		panic(err)
	}
	return list
}

type recordingNotifier struct {
	mu      sync.Mutex
	reports []engine.PairReport
	err     error
}

func (n *recordingNotifier) PairScored(_ context.Context, r engine.PairReport) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.reports = append(n.reports, r)
	return n.err
}

func TestScoreResultCategorical(t *testing.T) {
	Convey("Given a race winner result and three picks", t, func() {
		f := newFixture()
		f.result("E1", model.RaceWinner, "Max Verstappen")
		f.pick("p1", "u1", "E1", model.RaceWinner, "Max Verstappen")
		f.pick("p2", "u2", "E1", model.RaceWinner, "max verstappen ")
		f.pick("p3", "u3", "E1", model.RaceWinner, "Charles Leclerc")
		eng := engine.New(f.store, registry("v1", "2.0"))

		Convey("When the pair is scored", func() {
			report, err := eng.ScoreResult(f.ctx, "E1", model.RaceWinner)
			So(err, ShouldBeNil)
			scores := f.scores("E1")

			Convey("Then exact matches earn exact points regardless of case and spacing", func() {
				So(scores["p1"].Points, ShouldEqual, 10)
				So(scores["p2"].Points, ShouldEqual, 10)
				So(scores["p3"].Points, ShouldEqual, 0)
				So(scores["p1"].ExactMatch, ShouldBeTrue)
				So(scores["p3"].Margin.Valid, ShouldBeFalse)
				So(report.Picks, ShouldEqual, 3)
				So(report.Created, ShouldEqual, 3)
				So(report.TotalPoints, ShouldEqual, 20)
			})

			Convey("Then each new score has one score_calculated audit entry", func() {
				for _, id := range []string{"p1", "p2", "p3"} {
					entries := f.audit(id)
					So(entries, ShouldHaveLength, 1)
					So(entries[0].Action, ShouldEqual, model.ActionScoreCalculated)
					So(entries[0].EntityID, ShouldEqual, scores[id].ID)
					So(entries[0].Payload.Old, ShouldBeNil)
				}
			})

			Convey("And when it is scored again with the same inputs", func() {
				again, err := eng.ScoreResult(f.ctx, "E1", model.RaceWinner)

				Convey("Then nothing is written and rows are unchanged", func() {
					So(err, ShouldBeNil)
					So(again.Created+again.Updated, ShouldEqual, 0)
					So(again.Unchanged, ShouldEqual, 3)
					So(f.scores("E1"), ShouldResemble, scores)
					So(f.audit("p1"), ShouldHaveLength, 1)
				})
			})

			Convey("And when the result is corrected", func() {
				f.result("E1", model.RaceWinner, "Charles Leclerc")
				_, err := eng.ScoreResult(f.ctx, "E1", model.RaceWinner)
				after := f.scores("E1")

				Convey("Then scores are overwritten in place and the override is audited", func() {
					So(err, ShouldBeNil)
					So(after["p1"].Points, ShouldEqual, 0)
					So(after["p3"].Points, ShouldEqual, 10)
					So(after["p1"].ID, ShouldEqual, scores["p1"].ID)
					So(after["p1"].CreatedAt, ShouldEqual, scores["p1"].CreatedAt)

					entries := f.audit("p1")
					So(entries, ShouldHaveLength, 2)
					So(entries[0].Action, ShouldEqual, model.ActionScoreOverridden)
					So(entries[0].Payload.Old, ShouldNotBeNil)
					So(entries[0].Payload.Old.Points, ShouldEqual, 10)
					So(entries[0].Payload.New.Points, ShouldEqual, 0)
				})
			})
		})
	})
}

func TestScoreResultNumeric(t *testing.T) {
	Convey("Given a fastest lap time result", t, func() {
		f := newFixture()
		f.result("E1", model.FastestLapTime, "70.540")
		f.pick("p1", "u1", "E1", model.FastestLapTime, "71.540")
		f.pick("p2", "u2", "E1", model.FastestLapTime, "1:10.540")
		f.pick("p3", "u3", "E1", model.FastestLapTime, "fast")
		eng := engine.New(f.store, registry("v1", "2.0"))

		report, err := eng.ScoreResult(f.ctx, "E1", model.FastestLapTime)
		scores := f.scores("E1")

		Convey("Then a one second miss on a two second cutoff earns half", func() {
			So(err, ShouldBeNil)
			So(scores["p1"].Points, ShouldEqual, 5)
			So(scores["p1"].Margin.Decimal.Equal(decimal.RequireFromString("1.000")), ShouldBeTrue)
			So(scores["p2"].ExactMatch, ShouldBeTrue)
		})

		Convey("Then an unparseable pick scores zero with a warning", func() {
			So(scores["p3"].Points, ShouldEqual, 0)
			So(scores["p3"].Details.Warning, ShouldNotBeEmpty)
			So(report.Warnings, ShouldEqual, 1)
		})
	})
}

func TestScoreResultFailures(t *testing.T) {
	Convey("Given an engine over an empty store", t, func() {
		f := newFixture()
		eng := engine.New(f.store, registry("v1", "2.0"))

		Convey("When the pair has no result", func() {
			_, err := eng.ScoreResult(f.ctx, "E9", model.RaceWinner)

			Convey("Then ErrResultNotFound is returned inside a PairFailure", func() {
				So(errors.Is(err, engine.ErrResultNotFound), ShouldBeTrue)
				var pf *engine.PairFailure
				So(errors.As(err, &pf), ShouldBeTrue)
				So(pf.Key.EventID, ShouldEqual, "E9")
			})
		})

		Convey("When the prop type has no rule", func() {
			f.result("E1", model.SafetyCar, "yes")
			_, err := eng.ScoreResult(f.ctx, "E1", model.SafetyCar)

			Convey("Then a ConfigurationError is returned", func() {
				var ce *scoring.ConfigurationError
				So(errors.As(err, &ce), ShouldBeTrue)
				So(ce.PropType, ShouldEqual, model.SafetyCar)
			})
		})

		Convey("When a numeric result is malformed", func() {
			f.result("E1", model.FastestLapTime, "n/a")
			f.pick("p1", "u1", "E1", model.FastestLapTime, "70.000")
			_, err := eng.ScoreResult(f.ctx, "E1", model.FastestLapTime)

			Convey("Then the pair fails and no score is written", func() {
				So(errors.Is(err, engine.ErrMalformedResult), ShouldBeTrue)
				So(errors.Is(err, scoring.ErrDataQuality), ShouldBeTrue)
				So(f.scores("E1"), ShouldBeEmpty)
			})
		})

		Convey("When a numeric value carries an extreme exponent", func() {
			f.result("E1", model.FastestLapTime, "70.540")
			f.pick("p1", "u1", "E1", model.FastestLapTime, "1e-2000000000")
			f.pick("p2", "u2", "E1", model.FastestLapTime, "71.540")
			report, err := eng.ScoreResult(f.ctx, "E1", model.FastestLapTime)

			Convey("Then the pick is a warning and the rest of the pair scores", func() {
				So(err, ShouldBeNil)
				So(report.Picks, ShouldEqual, 2)
				So(report.Warnings, ShouldEqual, 1)
				So(report.TotalPoints, ShouldEqual, 5)
			})

			Convey("And the same value as a result fails its pair", func() {
				f.result("E2", model.FastestLapTime, "1e-2000000000")
				f.pick("p3", "u1", "E2", model.FastestLapTime, "70.540")
				_, err := eng.ScoreResult(f.ctx, "E2", model.FastestLapTime)
				So(errors.Is(err, engine.ErrMalformedResult), ShouldBeTrue)
				So(f.scores("E2"), ShouldBeEmpty)
			})
		})

		Convey("When the pair has a result but no picks", func() {
			f.result("E1", model.RaceWinner, "Max Verstappen")
			report, err := eng.ScoreResult(f.ctx, "E1", model.RaceWinner)
			pending, perr := eng.Pending(f.ctx)

			Convey("Then it succeeds empty and is no longer pending", func() {
				So(err, ShouldBeNil)
				So(report.Picks, ShouldEqual, 0)
				So(perr, ShouldBeNil)
				So(pending, ShouldBeEmpty)
			})
		})
	})
}

func TestScoreResultNotifier(t *testing.T) {
	Convey("Given a notifier that always fails", t, func() {
		f := newFixture()
		f.result("E1", model.RaceWinner, "Max Verstappen")
		f.pick("p1", "u1", "E1", model.RaceWinner, "Max Verstappen")
		n := &recordingNotifier{err: errNotify}
		eng := engine.New(f.store, registry("v1", "2.0"), engine.WithNotifier(n))

		report, err := eng.ScoreResult(f.ctx, "E1", model.RaceWinner)

		Convey("Then the pair still succeeds and the notifier saw the report", func() {
			So(err, ShouldBeNil)
			So(n.reports, ShouldHaveLength, 1)
			So(n.reports[0].PairKey, ShouldResemble, report.PairKey)
			So(f.scores("E1"), ShouldHaveLength, 1)
		})
	})
}

func TestScoreResultConcurrent(t *testing.T) {
	Convey("Given many concurrent passes over one pair", t, func() {
		f := newFixture()
		f.result("E1", model.RaceWinner, "Max Verstappen")
		for _, id := range []string{"p1", "p2", "p3", "p4"} {
			f.pick(id, "user-"+id, "E1", model.RaceWinner, "Max Verstappen")
		}
		eng := engine.New(f.store, registry("v1", "2.0"))

		var wg sync.WaitGroup
		for i := 0; i < 16; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				_, _ = eng.ScoreResult(f.ctx, "E1", model.RaceWinner)
			}()
		}
		wg.Wait()

		Convey("Then each pick has exactly one score and one audit entry", func() {
			So(f.scores("E1"), ShouldHaveLength, 4)
			for _, id := range []string{"p1", "p2", "p3", "p4"} {
				So(f.audit(id), ShouldHaveLength, 1)
			}
		})
	})
}

func TestScoreResultClock(t *testing.T) {
	Convey("Given a fixed clock and id generator", t, func() {
		f := newFixture()
		at := time.Date(2025, 3, 16, 6, 0, 0, 0, time.UTC)
		f.result("E1", model.RaceWinner, "Max Verstappen")
		f.pick("p1", "u1", "E1", model.RaceWinner, "Max Verstappen")
		eng := engine.New(f.store, registry("v1", "2.0"),
			engine.WithClock(func() time.Time { return at }),
			engine.WithIDGenerator(func() string { return "fixed" }),
		)

		_, err := eng.ScoreResult(f.ctx, "E1", model.RaceWinner)

		Convey("Then scores carry the injected time and id", func() {
			So(err, ShouldBeNil)
			s := f.scores("E1")["p1"]
			So(s.ID, ShouldEqual, "fixed")
			So(s.CreatedAt, ShouldEqual, at)
			So(s.Details.RuleVersion, ShouldStartWith, "v1+")
		})
	})
}

func TestScoreResultIDs(t *testing.T) {
	Convey("Given a counting id generator", t, func() {
		f := newFixture()
		f.result("E1", model.RaceWinner, "Max Verstappen")
		f.pick("p1", "u1", "E1", model.RaceWinner, "Max Verstappen")
		f.pick("p2", "u2", "E1", model.RaceWinner, "Charles Leclerc")
		var calls int
		eng := engine.New(f.store, registry("v1", "2.0"),
			engine.WithAuditEmitter(audit.NewEmitter()),
			engine.WithIDGenerator(func() string {
				calls++
				return "score-" + string(rune('0'+calls))
			}),
		)

		_, err := eng.ScoreResult(f.ctx, "E1", model.RaceWinner)
		So(err, ShouldBeNil)
		So(calls, ShouldEqual, 2)

		Convey("When the pair is rescored unchanged and then corrected", func() {
			_, err := eng.ScoreResult(f.ctx, "E1", model.RaceWinner)
			So(err, ShouldBeNil)
			f.result("E1", model.RaceWinner, "Charles Leclerc")
			_, err = eng.ScoreResult(f.ctx, "E1", model.RaceWinner)
			So(err, ShouldBeNil)

			Convey("Then only inserted scores draw an id", func() {
				So(calls, ShouldEqual, 2)
				scores := f.scores("E1")
				So(scores["p1"].ID, ShouldStartWith, "score-")
				So(scores["p2"].ID, ShouldStartWith, "score-")
				So(scores["p1"].ID, ShouldNotEqual, scores["p2"].ID)
			})
		})
	})
}

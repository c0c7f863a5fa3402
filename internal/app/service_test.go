package service_test

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/okian/paddock/internal/adapters/repository"
	"github.com/okian/paddock/internal/adapters/repository/postgres"
	service "github.com/okian/paddock/internal/app"
	"github.com/okian/paddock/internal/config"
	"github.com/okian/paddock/internal/domain/model"
	"github.com/okian/paddock/internal/engine"
	"github.com/okian/paddock/pkg/logger"
	. "github.com/smartystreets/goconvey/convey"
)

func init() {
	if err := logger.Init(); err != nil {
		panic(err)
	}
}

type recordingNotifier struct {
	mu      sync.Mutex
	reports []engine.PairReport
}

func (n *recordingNotifier) PairScored(_ context.Context, r engine.PairReport) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.reports = append(n.reports, r)
	return nil
}

func seededStore() *repository.MemoryStore {
	ctx := context.Background()
	store := repository.NewMemoryStore()
	if err := store.PutPick(ctx, model.Pick{ID: "p1", UserID: "u1", EventID: "silverstone-2025", PropType: model.RaceWinner, PropValue: "Lando Norris"}); err != nil {
		panic(err)
	}
	store.PutResult(ctx, model.Result{EventID: "silverstone-2025", PropType: model.RaceWinner, ActualValue: "Lando Norris", Source: model.SourceManual})
	return store
}

func TestServiceOpen(t *testing.T) {
	Convey("Given a service with default configuration", t, func() {
		ctx := context.Background()
		svc := service.New(nil)
		defer func() { _ = svc.Stop(ctx) }()

		Convey("When opening it", func() {
			err := svc.Open(ctx)

			Convey("Then the default rules and the memory store should be wired", func() {
				So(err, ShouldBeNil)
				So(svc.Rules().Len(), ShouldEqual, len(model.KnownPropTypes()))
				So(svc.Engine(), ShouldNotBeNil)
				_, isMemory := svc.Store().(*repository.MemoryStore)
				So(isMemory, ShouldBeTrue)
			})

			Convey("And migrating should be a no-op", func() {
				So(svc.Migrate(ctx), ShouldBeNil)
			})
		})

		Convey("When asking for the handler before opening", func() {
			_, err := svc.Handler(ctx)

			Convey("Then it should refuse", func() {
				So(err, ShouldEqual, service.ErrNotOpen)
			})
		})
	})

	Convey("Given a rule with an invalid cutoff", t, func() {
		cfg := config.New()
		rule := cfg.Rules.Props[string(model.FastestLapTime)]
		rule.Decay.Cutoff = "fast"
		cfg.Rules.Props[string(model.FastestLapTime)] = rule
		svc := service.New(cfg)

		Convey("Then opening should fail on the registry", func() {
			err := svc.Open(context.Background())
			So(err, ShouldNotBeNil)
			So(err.Error(), ShouldContainSubstring, "build rule registry")
		})
	})

	Convey("Given a postgres store with an unknown SQL driver", t, func() {
		cfg := config.New()
		cfg.Store.Driver = config.StorePostgres
		cfg.Store.SQLDriver = "mysql"
		cfg.Store.DSN = "postgres://localhost/paddock"
		svc := service.New(cfg)

		Convey("Then opening should fail before dialing", func() {
			err := svc.Open(context.Background())
			So(errors.Is(err, postgres.ErrUnsupportedDriver), ShouldBeTrue)
		})
	})
}

func TestServiceNotifier(t *testing.T) {
	Convey("Given a service with an injected notifier", t, func() {
		ctx := context.Background()
		n := &recordingNotifier{}
		svc := service.New(config.New(), service.WithStore(seededStore()), service.WithNotifier(n))
		So(svc.Open(ctx), ShouldBeNil)
		defer func() { _ = svc.Stop(ctx) }()

		Convey("When a pair is scored", func() {
			report, err := svc.Engine().ScoreResult(ctx, "silverstone-2025", model.RaceWinner)

			Convey("Then the notifier should see the report", func() {
				So(err, ShouldBeNil)
				So(report.TotalPoints, ShouldEqual, 10)
				So(n.reports, ShouldHaveLength, 1)
				So(n.reports[0].EventID, ShouldEqual, "silverstone-2025")
			})
		})
	})
}

func TestServiceStart(t *testing.T) {
	Convey("Given a started service with the scheduler enabled", t, func() {
		ctx := context.Background()
		cfg := config.New()
		cfg.Addr = "127.0.0.1:0"
		cfg.Schedule.Enabled = true
		cfg.Schedule.Spec = "@every 1s"
		store := seededStore()

		svc := service.New(cfg, service.WithStore(store), service.WithStatsInterval(50*time.Millisecond))
		So(svc.Start(ctx), ShouldBeNil)

		Convey("Then starting twice should be rejected", func() {
			So(svc.Start(ctx), ShouldEqual, service.ErrAlreadyStarted)
			So(svc.Stop(ctx), ShouldBeNil)
		})

		Convey("Then the HTTP API should answer", func() {
			resp, err := http.Get("http://" + svc.Addr() + "/healthz")
			So(err, ShouldBeNil)
			_ = resp.Body.Close()
			So(resp.StatusCode, ShouldEqual, http.StatusOK)

			resp, err = http.Get("http://" + svc.Addr() + "/openapi.yaml")
			So(err, ShouldBeNil)
			_ = resp.Body.Close()
			So(resp.StatusCode, ShouldEqual, http.StatusOK)
			So(svc.Stop(ctx), ShouldBeNil)
		})

		Convey("Then the scheduled batch should score the pending pair", func() {
			So(svc.Schedule(), ShouldHaveLength, 1)

			deadline := time.Now().Add(5 * time.Second)
			var scores []model.Score
			for time.Now().Before(deadline) {
				scores, _ = store.ListScores(ctx, repository.ScoreFilter{EventID: "silverstone-2025"})
				if len(scores) > 0 {
					break
				}
				time.Sleep(50 * time.Millisecond)
			}
			So(scores, ShouldHaveLength, 1)
			So(scores[0].Points, ShouldEqual, 10)

			entries, err := store.ListAudit(ctx, repository.AuditFilter{PickID: "p1"})
			So(err, ShouldBeNil)
			So(entries[0].PerformedBy, ShouldEqual, "scheduler")
			So(svc.Stop(ctx), ShouldBeNil)
		})

		Convey("Then stopping twice should be safe", func() {
			So(svc.Stop(ctx), ShouldBeNil)
			So(svc.Stop(ctx), ShouldBeNil)
		})
	})
}

package notify_test

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/go-redis/redismock/v8"

	"github.com/okian/paddock/internal/adapters/notify"
	"github.com/okian/paddock/internal/domain/model"
	"github.com/okian/paddock/internal/engine"
	"github.com/okian/paddock/pkg/logger"
	. "github.com/smartystreets/goconvey/convey"
)

var errRedis = errors.New("connection refused")

func TestRedisPublisher(t *testing.T) {
	ctx := context.Background()
	at := time.Date(2025, 3, 16, 7, 0, 0, 0, time.UTC)
	report := engine.PairReport{
		PairKey:     model.PairKey{EventID: "E1", PropType: model.RaceWinner},
		RuleVersion: "v1+abc",
		Picks:       3,
		Created:     3,
		TotalPoints: 20,
	}
	body, _ := json.Marshal(notify.NewMessage(report, at))

	Convey("Given a publisher on a mocked client", t, func() {
		_ = logger.Init()
		client, mock := redismock.NewClientMock()
		p := notify.NewRedisPublisher(client, notify.Config{Channel: "scores", BreakerFailures: 2},
			notify.WithClock(func() time.Time { return at }))

		Convey("When Redis accepts the message", func() {
			mock.ExpectPublish("scores", string(body)).SetVal(1)
			err := p.PairScored(ctx, report)

			Convey("Then the pair report is published as JSON", func() {
				So(err, ShouldBeNil)
				So(mock.ExpectationsWereMet(), ShouldBeNil)
				So(string(body), ShouldContainSubstring, `"type":"pair_scored"`)
				So(string(body), ShouldContainSubstring, `"scores_created":3`)
			})
		})

		Convey("When Redis keeps failing", func() {
			mock.ExpectPublish("scores", string(body)).SetErr(errRedis)
			mock.ExpectPublish("scores", string(body)).SetErr(errRedis)
			first := p.PairScored(ctx, report)
			second := p.PairScored(ctx, report)
			third := p.PairScored(ctx, report)

			Convey("Then the breaker opens and later calls skip Redis", func() {
				So(errors.Is(first, errRedis), ShouldBeTrue)
				So(errors.Is(second, errRedis), ShouldBeTrue)
				So(errors.Is(third, notify.ErrUnavailable), ShouldBeTrue)
				So(p.State(), ShouldEqual, "open")
				So(mock.ExpectationsWereMet(), ShouldBeNil)
			})
		})

		Convey("When pinged", func() {
			mock.ExpectPing().SetVal("PONG")
			So(p.Ping(ctx), ShouldBeNil)
			So(p.Close(), ShouldBeNil)
		})
	})

	Convey("Given no channel in the config", t, func() {
		_ = logger.Init()
		client, mock := redismock.NewClientMock()
		p := notify.NewRedisPublisher(client, notify.Config{}, notify.WithClock(func() time.Time { return at }))
		mock.ExpectPublish(notify.DefaultChannel, string(body)).SetVal(0)

		So(p.PairScored(ctx, report), ShouldBeNil)
		So(mock.ExpectationsWereMet(), ShouldBeNil)
	})
}

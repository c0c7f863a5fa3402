package demo_test

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/okian/paddock/internal/config"
	"github.com/okian/paddock/internal/demo"
	"github.com/okian/paddock/internal/domain/model"
	"github.com/okian/paddock/pkg/logger"
	. "github.com/smartystreets/goconvey/convey"
)

func TestRun(t *testing.T) {
	Convey("Given the default ruleset", t, func() {
		So(logger.Init(), ShouldBeNil)
		rules, err := config.DefaultRules().Registry()
		So(err, ShouldBeNil)

		Convey("When running the demo", func() {
			var out bytes.Buffer
			report, err := demo.Run(context.Background(), rules, &out)

			Convey("Then every check should pass", func() {
				So(err, ShouldBeNil)
				So(report.Passed(), ShouldBeTrue)
				So(report.First.PairsFailed, ShouldEqual, 0)
				So(report.First.PairsScored, ShouldEqual, len(demo.Scenarios()))
			})

			Convey("And the repeat run should find nothing to do", func() {
				So(report.Repeat.PairsDiscovered, ShouldEqual, 0)
			})

			Convey("And the correction should override one score", func() {
				So(report.Correction.ScoresUpdated, ShouldEqual, 1)
				So(report.Overrides, ShouldEqual, 1)
			})

			Convey("And the transcript should list the checks", func() {
				So(out.String(), ShouldContainSubstring, "gp-podium-p2")
				So(out.String(), ShouldContainSubstring, "expected points before corrections: 77")
			})
		})
	})

	Convey("Given a ruleset where race winners pay double", t, func() {
		So(logger.Init(), ShouldBeNil)
		rc := config.DefaultRules()
		winner := rc.Props[string(model.RaceWinner)]
		winner.ExactPoints = config.Points(20)
		rc.Props[string(model.RaceWinner)] = winner
		rules, err := rc.Registry()
		So(err, ShouldBeNil)

		Convey("Then the demo should report the mismatches", func() {
			var out bytes.Buffer
			report, err := demo.Run(context.Background(), rules, &out)
			So(errors.Is(err, demo.ErrVerification), ShouldBeTrue)
			So(report.Passed(), ShouldBeFalse)
			So(out.String(), ShouldContainSubstring, "expected 10 points, got 20")
		})
	})
}

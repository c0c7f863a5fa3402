package main

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/smartystreets/goconvey/convey"

	"github.com/okian/paddock/internal/domain/model"
)

func execute(args ...string) (string, error) {
	var out bytes.Buffer
	root := newRootCmd()
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)
	err := root.Execute()
	return out.String(), err
}

func TestCLI(t *testing.T) {
	convey.Convey("Given the paddock CLI", t, func() {
		convey.Convey("When printing rules as JSON", func() {
			out, err := execute("rules", "--format", "json")

			convey.Convey("Then every known prop type should be listed with a version", func() {
				convey.So(err, convey.ShouldBeNil)
				var rules []map[string]any
				convey.So(json.Unmarshal([]byte(out), &rules), convey.ShouldBeNil)
				convey.So(rules, convey.ShouldHaveLength, len(model.KnownPropTypes()))
				convey.So(rules[0]["version"], convey.ShouldStartWith, "2025.1+")
			})
		})

		convey.Convey("When printing rules as a table", func() {
			out, err := execute("rules")

			convey.Convey("Then the header and numeric cutoffs should show", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(out, convey.ShouldContainSubstring, "PROP TYPE")
				convey.So(out, convey.ShouldContainSubstring, "linear")
			})
		})

		convey.Convey("When the rules format is unknown", func() {
			_, err := execute("rules", "--format", "xml")

			convey.Convey("Then it should fail", func() {
				convey.So(err, convey.ShouldNotBeNil)
			})
		})

		convey.Convey("When running the demo", func() {
			out, err := execute("demo", "--json")

			convey.Convey("Then the report should pass", func() {
				convey.So(err, convey.ShouldBeNil)
				var report map[string]any
				convey.So(json.Unmarshal([]byte(out), &report), convey.ShouldBeNil)
				convey.So(report["overrides"], convey.ShouldEqual, 1.0)
			})
		})

		convey.Convey("When scoring without the required flags", func() {
			_, err := execute("score", "--event", "monza-2025")

			convey.Convey("Then cobra should reject it", func() {
				convey.So(err, convey.ShouldNotBeNil)
				convey.So(err.Error(), convey.ShouldContainSubstring, "prop")
			})
		})

		convey.Convey("When scoring a pair the memory store does not have", func() {
			_, err := execute("score", "--event", "monza-2025", "--prop", "race_winner")

			convey.Convey("Then the missing result should surface", func() {
				convey.So(err, convey.ShouldNotBeNil)
				convey.So(err.Error(), convey.ShouldContainSubstring, "monza-2025/race_winner")
			})
		})

		convey.Convey("When running the batch on an empty store", func() {
			out, err := execute("run")

			convey.Convey("Then the summary should be empty", func() {
				convey.So(err, convey.ShouldBeNil)
				var summary map[string]any
				convey.So(json.Unmarshal([]byte(out), &summary), convey.ShouldBeNil)
				convey.So(summary["pairs_discovered"], convey.ShouldEqual, 0.0)
			})
		})

		convey.Convey("When migrating the memory store", func() {
			_, err := execute("migrate")

			convey.Convey("Then there should be nothing to do", func() {
				convey.So(err, convey.ShouldBeNil)
			})
		})
	})
}

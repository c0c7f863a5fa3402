package demo

import (
	"context"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/okian/paddock/internal/adapters/repository"
)

// verify compares the stored score of one pick with its expectation.
func verify(ctx context.Context, store repository.Reader, scenario string, exp Expectation) Check {
	c := Check{Scenario: scenario, PickID: exp.PickID, Label: exp.Label, Expected: exp.Points}

	scores, err := store.ListScores(ctx, repository.ScoreFilter{PickIDs: []string{exp.PickID}})
	switch {
	case err != nil:
		c.Reason = err.Error()
		return c
	case len(scores) == 0:
		c.Reason = "no score stored"
		return c
	}

	s := scores[0]
	c.Actual = s.Points
	switch {
	case s.Points != exp.Points:
		c.Reason = fmt.Sprintf("expected %d points, got %d", exp.Points, s.Points)
	case s.ExactMatch != exp.Exact:
		c.Reason = fmt.Sprintf("expected exact_match=%t", exp.Exact)
	default:
		c.Passed = true
	}
	return c
}

// displayChecks prints one line per check and a total.
func displayChecks(out io.Writer, r Report) {
	tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "SCENARIO\tPICK\tCASE\tEXPECTED\tACTUAL\tOK")
	total := 0
	for _, c := range r.Checks {
		mark := "yes"
		if !c.Passed {
			mark = "NO: " + c.Reason
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%d\t%s\n", c.Scenario, c.PickID, c.Label, c.Expected, c.Actual, mark)
	}
	for _, sc := range Scenarios() {
		for _, e := range sc.Expects {
			total += e.Points
		}
	}
	_ = tw.Flush()
	fmt.Fprintf(out, "expected points before corrections: %d\n", total)
	fmt.Fprintf(out, "overrides recorded: %d\n", r.Overrides)
}

package demo

import (
	"github.com/jmoiron/sqlx/types"

	"github.com/okian/paddock/internal/domain/model"
)

// Event ids used by the demo data.
const (
	GrandPrixEvent = "demo-gp-2025"
	ExamplesEvent  = "demo-examples-2025"
)

// Expectation is the score one pick must end up with.
type Expectation struct {
	PickID string
	Label  string
	Points int
	Exact  bool
}

// Scenario is a seeded pair plus what scoring it must produce.
type Scenario struct {
	Name    string
	Result  model.Result
	Picks   []model.Pick
	Expects []Expectation
}

// Correction re-ingests a result and names the score it must override.
type Correction struct {
	Result model.Result
	Expect Expectation
}

func pick(id, user, event string, pt model.PropType, value, metadata string) model.Pick {
	p := model.Pick{ID: id, UserID: user, EventID: event, PropType: pt, PropValue: value}
	if metadata != "" {
		p.Metadata = types.JSONText(metadata)
	}
	return p
}

func result(event string, pt model.PropType, value, metadata string) model.Result {
	r := model.Result{EventID: event, PropType: pt, ActualValue: value, Source: model.SourceManual}
	if metadata != "" {
		r.Metadata = types.JSONText(metadata)
	}
	return r
}

// Scenarios returns the demo data scored under the default ruleset.
func Scenarios() []Scenario {
	const user = "demo-user"
	finishing := `{"finishing_order":{"VER":1,"HAM":2,"LEC":3,"NOR":4,"SAI":5}}`

	return []Scenario{
		{
			Name:   "race winner exact",
			Result: result(GrandPrixEvent, model.RaceWinner, "VER", finishing),
			Picks:  []model.Pick{pick("gp-race-winner", user, GrandPrixEvent, model.RaceWinner, "VER", `{"confidence":"high"}`)},
			Expects: []Expectation{
				{PickID: "gp-race-winner", Label: "VER -> VER", Points: 10, Exact: true},
			},
		},
		{
			Name:   "podium p2 miss",
			Result: result(GrandPrixEvent, model.PodiumP2, "HAM", finishing),
			Picks:  []model.Pick{pick("gp-podium-p2", user, GrandPrixEvent, model.PodiumP2, "LEC", `{"confidence":"medium"}`)},
			Expects: []Expectation{
				{PickID: "gp-podium-p2", Label: "LEC -> HAM", Points: 0},
			},
		},
		{
			Name:   "podium p3 exact",
			Result: result(GrandPrixEvent, model.PodiumP3, "NOR", finishing),
			Picks:  []model.Pick{pick("gp-podium-p3", user, GrandPrixEvent, model.PodiumP3, "NOR", `{"confidence":"low"}`)},
			Expects: []Expectation{
				{PickID: "gp-podium-p3", Label: "NOR -> NOR", Points: 10, Exact: true},
			},
		},
		{
			Name:   "fastest lap driver miss",
			Result: result(GrandPrixEvent, model.FastestLap, "VER", `{"lap_times":{"VER":89.123,"HAM":89.456}}`),
			Picks:  []model.Pick{pick("gp-fastest-lap", user, GrandPrixEvent, model.FastestLap, `{"driver_code":"HAM"}`, "")},
			Expects: []Expectation{
				{PickID: "gp-fastest-lap", Label: "HAM -> VER", Points: 0},
			},
		},
		{
			Name:   "lap time within 0.3s",
			Result: result(GrandPrixEvent, model.LapTimePrediction, "90.8", `{"lap":1}`),
			Picks:  []model.Pick{pick("gp-lap-time", user, GrandPrixEvent, model.LapTimePrediction, "90.5", `{"lap":1}`)},
			Expects: []Expectation{
				{PickID: "gp-lap-time", Label: "90.5 -> 90.8", Points: 9},
			},
		},
		{
			Name:   "pit window off by one lap",
			Result: result(GrandPrixEvent, model.PitWindowStart, "16", `{"driver":"VER"}`),
			Picks:  []model.Pick{pick("gp-pit-window", user, GrandPrixEvent, model.PitWindowStart, `{"lap":15}`, `{"driver":"VER"}`)},
			Expects: []Expectation{
				{PickID: "gp-pit-window", Label: "15 -> 16", Points: 7},
			},
		},
		{
			Name:   "safety car deployed",
			Result: result(GrandPrixEvent, model.SafetyCar, "true", ""),
			Picks:  []model.Pick{pick("gp-safety-car", user, GrandPrixEvent, model.SafetyCar, "yes", "")},
			Expects: []Expectation{
				{PickID: "gp-safety-car", Label: "yes -> true", Points: 10, Exact: true},
			},
		},
		{
			Name:   "pit stops off by one",
			Result: result(GrandPrixEvent, model.TotalPitStops, "4", ""),
			Picks:  []model.Pick{pick("gp-pit-stops", user, GrandPrixEvent, model.TotalPitStops, "3", "")},
			Expects: []Expectation{
				{PickID: "gp-pit-stops", Label: "3 -> 4", Points: 6},
			},
		},
		{
			Name:   "race winner normalisation",
			Result: result(ExamplesEvent, model.RaceWinner, "Max Verstappen", ""),
			Picks: []model.Pick{
				pick("ex-winner-1", "user-1", ExamplesEvent, model.RaceWinner, "Max Verstappen", ""),
				pick("ex-winner-2", "user-2", ExamplesEvent, model.RaceWinner, "max verstappen ", ""),
				pick("ex-winner-3", "user-3", ExamplesEvent, model.RaceWinner, "Charles Leclerc", ""),
			},
			Expects: []Expectation{
				{PickID: "ex-winner-1", Label: "exact spelling", Points: 10, Exact: true},
				{PickID: "ex-winner-2", Label: "case and whitespace", Points: 10, Exact: true},
				{PickID: "ex-winner-3", Label: "different driver", Points: 0},
			},
		},
		{
			Name:   "fastest lap time one second off",
			Result: result(ExamplesEvent, model.FastestLapTime, "71.540", ""),
			Picks:  []model.Pick{pick("ex-lap-time", "user-1", ExamplesEvent, model.FastestLapTime, "70.540", "")},
			Expects: []Expectation{
				{PickID: "ex-lap-time", Label: "70.540 -> 71.540, cutoff 2.0", Points: 5},
			},
		},
	}
}

// Corrections returns result corrections applied after the first run.
func Corrections() []Correction {
	return []Correction{
		{
			Result: result(GrandPrixEvent, model.PodiumP2, "LEC", `{"finishing_order":{"VER":1,"LEC":2,"HAM":3}}`),
			Expect: Expectation{PickID: "gp-podium-p2", Label: "LEC -> LEC after steward decision", Points: 10, Exact: true},
		},
	}
}

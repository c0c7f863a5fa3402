// Package model contains domain models passed between layers.
package model

// PropType names a predictable aspect of a session.
type PropType string

// Prop types known to the game. The set is open: rules decide what is scorable.
const (
	RaceWinner           PropType = "race_winner"
	PodiumP1             PropType = "podium_p1"
	PodiumP2             PropType = "podium_p2"
	PodiumP3             PropType = "podium_p3"
	FastestLap           PropType = "fastest_lap"
	FastestLapTime       PropType = "fastest_lap_time"
	PolePosition         PropType = "pole_position"
	FirstRetirement      PropType = "first_retirement"
	SafetyCar            PropType = "safety_car"
	LapTimePrediction    PropType = "lap_time_prediction"
	SectorTimePrediction PropType = "sector_time_prediction"
	PitWindowStart       PropType = "pit_window_start"
	PitWindowEnd         PropType = "pit_window_end"
	TotalPitStops        PropType = "total_pit_stops"
)

// KnownPropTypes lists every built-in prop type.
func KnownPropTypes() []PropType {
	return []PropType{
		RaceWinner, PodiumP1, PodiumP2, PodiumP3,
		FastestLap, FastestLapTime, PolePosition, FirstRetirement, SafetyCar,
		LapTimePrediction, SectorTimePrediction,
		PitWindowStart, PitWindowEnd, TotalPitStops,
	}
}

func (p PropType) String() string { return string(p) }

package models

import "fmt"

// Phase is a named segment of a game: pre-game, the three periods, and the
// two intermissions.
type Phase string

const (
	PhasePreGame Phase = "pre-game"
	PhaseP1      Phase = "P1"
	PhaseINT1    Phase = "INT1"
	PhaseP2      Phase = "P2"
	PhaseINT2    Phase = "INT2"
	PhaseP3      Phase = "P3"
)

// phaseBound marks where a phase begins, in minutes from puck drop.
type phaseBound struct {
	phase Phase
	start int
}

// Standard WHL game shape: 20-minute periods, 18-minute intermissions,
// doors open an hour before puck drop.
var phaseBounds = []phaseBound{
	{PhasePreGame, -60},
	{PhaseP1, 0},
	{PhaseINT1, 20},
	{PhaseP2, 38},
	{PhaseINT2, 58},
	{PhaseP3, 76},
}

const gameEndOffset = 96

// TimeWindow is one discrete slice of game time. Windows are totally ordered
// by Index and form a fixed finite sequence per game.
type TimeWindow struct {
	Index  int    `json:"index"`
	Label  string `json:"label"`
	Phase  Phase  `json:"phase"`
	Offset int    `json:"offset"` // window start, minutes from puck drop
}

// PhaseAt returns the phase containing the given minute offset.
func PhaseAt(offset int) Phase {
	phase := phaseBounds[0].phase
	for _, b := range phaseBounds {
		if offset >= b.start {
			phase = b.phase
		}
	}
	return phase
}

// GameWindows builds the full ordered window sequence for one game at the
// given granularity in minutes. Granularity must divide evenly into the
// phase layout; callers pass the configured window size (default 2).
func GameWindows(granularityMin int) []TimeWindow {
	if granularityMin <= 0 {
		granularityMin = 2
	}
	var windows []TimeWindow
	for offset := phaseBounds[0].start; offset < gameEndOffset; offset += granularityMin {
		phase := PhaseAt(offset)
		sign := "+"
		abs := offset
		if offset < 0 {
			sign = "-"
			abs = -offset
		}
		windows = append(windows, TimeWindow{
			Index:  len(windows),
			Label:  fmt.Sprintf("%s T%s%02d", phase, sign, abs),
			Phase:  phase,
			Offset: offset,
		})
	}
	return windows
}

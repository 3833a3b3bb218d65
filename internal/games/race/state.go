// Package race implements a turn-based, four-seat game module: players
// take turns rolling a die and advancing their token along a fixed track;
// the first to reach the finish line wins. It exercises the gamemodule
// contract's ITurnBased path (turn order, timeouts), the counterpart to
// internal/games/reveal's single-player Engine-only path.
package race

import "time"

const maxSeats = 4
const trackLength = 30

// TurnTimeout is how long a seated player has to act before the scheduler
// advances the turn on their behalf.
const TurnTimeout = 30 * time.Second

// State is the fixed-size, reference-free record codec.Encode persists.
// Positions and Active are indexed by seat; a seat with no player keeps
// its zero position and is skipped by turn advancement.
type State struct {
	Positions   [maxSeats]uint8
	Active      [maxSeats]bool
	CurrentSeat uint8
	Finished    bool
	WinnerSeat  int8 // -1 until Finished
	RollSeed    uint64
	TotalRolls  uint32
}

func newState() State {
	return State{WinnerSeat: -1}
}

// nextRoll derives the current turn's die roll (1-6) deterministically from
// the room's rolling seed and the roll index (the number of rolls already
// made, State.TotalRolls), so a
// replay from the same seed always produces the same race.
func (s *State) nextRoll(rollIndex uint64) int {
	h := s.RollSeed ^ rollIndex*0x9E3779B97F4A7C15
	h ^= h >> 33
	h *= 0xFF51AFD7ED558CCD
	h ^= h >> 33
	return int(h%6) + 1
}

// activeSeatCount reports how many seats currently hold a player.
func (s *State) activeSeatCount() int {
	n := 0
	for _, a := range s.Active {
		if a {
			n++
		}
	}
	return n
}

// advanceTurn moves CurrentSeat to the next occupied seat, wrapping
// around. It is a no-op if no seat is active.
func (s *State) advanceTurn() {
	if s.activeSeatCount() == 0 {
		return
	}
	for i := 1; i <= maxSeats; i++ {
		next := (int(s.CurrentSeat) + i) % maxSeats
		if s.Active[next] {
			s.CurrentSeat = uint8(next)
			return
		}
	}
}

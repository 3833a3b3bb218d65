// Package reveal implements a single-player, non-turn-based game module: a
// tile board where the seated player reveals tiles one at a time, each
// either busting the round or adding to an accumulating payout multiplier
// the player may cash out at any point. It exercises the gamemodule
// contract's Engine-only path (no ITurnBased), the counterpart to
// internal/games/race's turn-based path.
package reveal

const boardSize = 16

// tileStatus values, stored one per board cell.
const (
	tileHidden byte = iota
	tileRevealedSafe
	tileRevealedBust
)

// State is the fixed-size, reference-free record codec.Encode persists.
// Multiplier is fixed-point, scaled by 100 (150 means 1.50x).
type State struct {
	Seed        uint64
	Board       [boardSize]byte
	Multiplier  uint32
	Revealed    uint8
	Busted      bool
	CashedOut   bool
}

func newState(seed uint64) State {
	return State{Seed: seed, Multiplier: 100}
}

// tileOutcome derives whether index busts and, if not, the multiplier
// bump it contributes, both deterministically from the room's seed so the
// same board never has to be stored twice.
func tileOutcome(seed uint64, index int) (bust bool, bump uint32) {
	h := seed ^ uint64(index)*0x9E3779B97F4A7C15
	h ^= h >> 33
	h *= 0xFF51AFD7ED558CCD
	h ^= h >> 33

	if h%100 < 28 {
		return true, 0
	}
	bumps := [...]uint32{10, 15, 20, 30, 50}
	return false, bumps[h%uint64(len(bumps))]
}

func (s *State) isOver() bool {
	return s.Busted || s.CashedOut || int(s.Revealed) >= boardSize
}

// reveal applies a reveal at index, mutating s in place. It returns false
// if the tile was already revealed or the index is out of range.
func (s *State) reveal(index int) bool {
	if index < 0 || index >= boardSize {
		return false
	}
	if s.Board[index] != tileHidden {
		return false
	}

	bust, bump := tileOutcome(s.Seed, index)
	s.Revealed++
	if bust {
		s.Board[index] = tileRevealedBust
		s.Busted = true
		return true
	}
	s.Board[index] = tileRevealedSafe
	s.Multiplier += bump
	return true
}

// payoutMultiplier returns the multiplier (fixed-point /100) a cash-out or
// full clear pays, or 0 if the round busted.
func (s *State) payoutMultiplier() uint32 {
	if s.Busted {
		return 0
	}
	return s.Multiplier
}

package race

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRollsAreDeterministicForASeed(t *testing.T) {
	s1 := newState()
	s1.RollSeed = 99
	s2 := newState()
	s2.RollSeed = 99

	for i := uint64(0); i < 20; i++ {
		require.Equal(t, s1.nextRoll(i), s2.nextRoll(i))
	}
}

func TestRollsStayInDieRange(t *testing.T) {
	s := newState()
	s.RollSeed = 12345
	for i := uint64(0); i < 200; i++ {
		roll := s.nextRoll(i)
		assert.GreaterOrEqual(t, roll, 1)
		assert.LessOrEqual(t, roll, 6)
	}
}

func TestAdvanceTurnSkipsInactiveSeats(t *testing.T) {
	s := newState()
	s.Active[0] = true
	s.Active[2] = true
	s.CurrentSeat = 0

	s.advanceTurn()
	assert.Equal(t, uint8(2), s.CurrentSeat)

	s.advanceTurn()
	assert.Equal(t, uint8(0), s.CurrentSeat)
}

func TestAdvanceTurnNoOpWithNoActiveSeats(t *testing.T) {
	s := newState()
	s.CurrentSeat = 1
	s.advanceTurn()
	assert.Equal(t, uint8(1), s.CurrentSeat)
}

func TestActiveSeatCount(t *testing.T) {
	s := newState()
	assert.Equal(t, 0, s.activeSeatCount())
	s.Active[0] = true
	s.Active[3] = true
	assert.Equal(t, 2, s.activeSeatCount())
}

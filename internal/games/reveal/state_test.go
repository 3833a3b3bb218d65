package reveal

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRevealIsDeterministicForASeed(t *testing.T) {
	s1 := newState(42)
	s2 := newState(42)

	for i := 0; i < boardSize; i++ {
		require.True(t, s1.reveal(i))
		require.True(t, s2.reveal(i))
		if s1.Busted {
			break
		}
	}
	assert.Equal(t, s1.Busted, s2.Busted)
	assert.Equal(t, s1.Multiplier, s2.Multiplier)
	assert.Equal(t, s1.Board, s2.Board)
}

func TestRevealRejectsRepeatOrOutOfRange(t *testing.T) {
	s := newState(7)
	require.True(t, s.reveal(0))
	assert.False(t, s.reveal(0), "revealing the same tile twice must fail")
	assert.False(t, s.reveal(-1))
	assert.False(t, s.reveal(boardSize))
}

func TestBustEndsTheRoundWithZeroPayout(t *testing.T) {
	var s State
	for seed := uint64(0); seed < 500; seed++ {
		s = newState(seed)
		bust, _ := tileOutcome(seed, 0)
		if bust {
			break
		}
	}
	s.reveal(0)
	require.True(t, s.Busted)
	assert.True(t, s.isOver())
	assert.Equal(t, uint32(0), s.payoutMultiplier())
}

func TestCashOutFreezesTheMultiplier(t *testing.T) {
	s := newState(3)
	var revealedSafely bool
	for i := 0; i < boardSize; i++ {
		s.reveal(i)
		if !s.Busted {
			revealedSafely = true
			break
		}
	}
	require.True(t, revealedSafely)
	before := s.Multiplier
	s.CashedOut = true
	assert.True(t, s.isOver())
	assert.Equal(t, before, s.payoutMultiplier())
}

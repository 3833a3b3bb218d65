package codec_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arcaderun/roomrt/internal/codec"
)

type raceStateV1 struct {
	Positions [4]int32
	Turn      uint8
	Dice      uint8
}

type raceStateV0 struct {
	Positions [4]int32
	Turn      uint8
}

func TestRoundTrip(t *testing.T) {
	want := raceStateV1{Positions: [4]int32{1, 2, 3, 4}, Turn: 2, Dice: 5}

	blob, err := codec.Encode(want, codec.CurrentVersion)
	require.NoError(t, err)
	assert.Equal(t, byte(codec.CurrentVersion), blob[0])

	got, err := codec.Decode[raceStateV1](blob)
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestDecodeRejectsShortBlob(t *testing.T) {
	_, err := codec.Decode[raceStateV1]([]byte{1, 2, 3})
	assert.ErrorIs(t, err, codec.ErrIncompatible)
}

func TestDecodeWithoutMigratorFails(t *testing.T) {
	old, err := codec.Encode(raceStateV0{Positions: [4]int32{0, 0, 0, 0}, Turn: 0}, 0)
	require.NoError(t, err)

	_, err = codec.Decode[raceStateV1](old)
	assert.ErrorIs(t, err, codec.ErrIncompatible)
}

func TestMigratorUpgradesLegacyLayout(t *testing.T) {
	codec.RegisterMigrator("codec_test.raceStateV1", 0, 20, func(raw []byte) (any, error) {
		var legacy raceStateV0
		return raceStateV1{Positions: legacy.Positions, Turn: legacy.Turn, Dice: 0}, nil
	})

	old, err := codec.Encode(raceStateV0{Positions: [4]int32{7, 7, 7, 7}, Turn: 1}, 0)
	require.NoError(t, err)

	got, err := codec.Decode[raceStateV1](old)
	require.NoError(t, err)
	assert.Equal(t, uint8(0), got.Dice)
}

package hub

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidRoomID(t *testing.T) {
	assert.True(t, validRoomID("3fa85f64-5717-4562-b3fc-2c963f66afa6"))
	assert.False(t, validRoomID(""))
	assert.False(t, validRoomID("a1b2c3"))
	assert.False(t, validRoomID("3fa85f6457174562b3fc2c963f66afa6"))
	assert.False(t, validRoomID("3fa85f64-5717-4562-b3fc-2c963f66afa6-extra"))
}

func TestValidTemplateName(t *testing.T) {
	assert.True(t, validTemplateName("race-4p"))
	assert.True(t, validTemplateName("Reveal Solo (v2)"))
	assert.False(t, validTemplateName(""))
	assert.False(t, validTemplateName(strings.Repeat("x", 101)))
	assert.False(t, validTemplateName("bad;name"))
}

func TestValidIdempotencyKey(t *testing.T) {
	assert.True(t, validIdempotencyKey("abc_123-XYZ"))
	assert.False(t, validIdempotencyKey(""))
	assert.False(t, validIdempotencyKey(strings.Repeat("k", 65)))
	assert.False(t, validIdempotencyKey("has space"))
}

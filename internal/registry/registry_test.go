package registry_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arcaderun/roomrt/internal/registry"
	"github.com/arcaderun/roomrt/internal/testutil"
)

func newRegistry(t *testing.T) *registry.Registry {
	return registry.New(testutil.NewRedisClient(t), nil)
}

func TestRegisterAndListRoomsByGameType(t *testing.T) {
	ctx := context.Background()
	reg := newRegistry(t)

	require.NoError(t, reg.RegisterRoom(ctx, "race4", "room-a"))
	require.NoError(t, reg.RegisterRoom(ctx, "race4", "room-b"))

	ids, err := reg.GetRoomIdsByGameType(ctx, "race4", 0, 10)
	require.NoError(t, err)
	assert.Equal(t, []string{"room-a", "room-b"}, ids)

	gt, ok, err := reg.GetGameType(ctx, "room-a")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "race4", gt)
}

func TestUnregisterRoomRemovesFromEveryIndex(t *testing.T) {
	ctx := context.Background()
	reg := newRegistry(t)

	require.NoError(t, reg.RegisterRoom(ctx, "race4", "room-a"))
	require.NoError(t, reg.UpdateRoomActivity(ctx, "race4", "room-a"))
	require.NoError(t, reg.RegisterTurnTimeout(ctx, "race4", "room-a", time.Now().Add(time.Minute)))

	require.NoError(t, reg.UnregisterRoom(ctx, "race4", "room-a"))

	ids, err := reg.GetRoomIdsByGameType(ctx, "race4", 0, 10)
	require.NoError(t, err)
	assert.Empty(t, ids)

	due, err := reg.GetRoomsDueForTimeout(ctx, "race4", time.Now().Add(time.Hour), 10)
	require.NoError(t, err)
	assert.Empty(t, due)
}

func TestShortCodeBijection(t *testing.T) {
	ctx := context.Background()
	reg := newRegistry(t)

	code, err := reg.CreateShortCode(ctx, "room-xyz")
	require.NoError(t, err)
	assert.Len(t, code, 5)

	roomID, ok, err := reg.GetRoomIDByShortCode(ctx, code)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "room-xyz", roomID)

	back, ok, err := reg.GetShortCodeByRoomID(ctx, "room-xyz")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, code, back)
}

func TestTurnTimeoutDueQueue(t *testing.T) {
	ctx := context.Background()
	reg := newRegistry(t)

	now := time.Now()
	require.NoError(t, reg.RegisterTurnTimeout(ctx, "race4", "room-a", now.Add(-time.Second)))
	require.NoError(t, reg.RegisterTurnTimeout(ctx, "race4", "room-b", now.Add(time.Hour)))

	due, err := reg.GetRoomsDueForTimeout(ctx, "race4", now, 10)
	require.NoError(t, err)
	assert.Equal(t, []string{"room-a"}, due)

	require.NoError(t, reg.UnregisterTurnTimeout(ctx, "race4", "room-a"))
	due, err = reg.GetRoomsDueForTimeout(ctx, "race4", now, 10)
	require.NoError(t, err)
	assert.Empty(t, due)
}

func TestUserRoomAssignment(t *testing.T) {
	ctx := context.Background()
	reg := newRegistry(t)

	require.NoError(t, reg.SetUserRoom(ctx, "user-1", "room-a"))
	roomID, ok, err := reg.GetUserRoom(ctx, "user-1")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "room-a", roomID)

	require.NoError(t, reg.ClearUserRoom(ctx, "user-1"))
	_, ok, err = reg.GetUserRoom(ctx, "user-1")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestOnlinePresence(t *testing.T) {
	ctx := context.Background()
	reg := newRegistry(t)

	require.NoError(t, reg.Touch(ctx, "user-1", "conn-1"))
	online, err := reg.IsOnline(ctx, "user-1")
	require.NoError(t, err)
	assert.True(t, online)

	count, err := reg.ConnectionCount(ctx, "user-1")
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)

	require.NoError(t, reg.RemoveConnection(ctx, "user-1", "conn-1"))
	count, err = reg.ConnectionCount(ctx, "user-1")
	require.NoError(t, err)
	assert.Equal(t, int64(0), count)
}

func TestDisconnectTicketLifecycle(t *testing.T) {
	ctx := context.Background()
	reg := newRegistry(t)

	_, err := reg.CreateDisconnectTicket(ctx, "user-1", "room-a", 10*time.Millisecond)
	require.NoError(t, err)

	ticket, ok, err := reg.GetDisconnectTicket(ctx, "user-1")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "room-a", ticket.RoomID)

	time.Sleep(20 * time.Millisecond)
	expired, err := reg.GetExpiredTickets(ctx, time.Now(), 10)
	require.NoError(t, err)
	require.Len(t, expired, 1)
	assert.Equal(t, "user-1", expired[0].UserID)

	require.NoError(t, reg.RemoveDisconnectTicket(ctx, "user-1"))
	_, ok, err = reg.GetDisconnectTicket(ctx, "user-1")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestRateLimit(t *testing.T) {
	ctx := context.Background()
	reg := newRegistry(t)

	for i := 0; i < 3; i++ {
		ok, err := reg.CheckRateLimit(ctx, "user-1", 3, 0)
		require.NoError(t, err)
		assert.True(t, ok)
	}
	ok, err := reg.CheckRateLimit(ctx, "user-1", 3, 0)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestRateLimitCustomWindow(t *testing.T) {
	ctx := context.Background()
	reg := newRegistry(t)

	ok, err := reg.CheckRateLimit(ctx, "user-2", 1, 200*time.Millisecond)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = reg.CheckRateLimit(ctx, "user-2", 1, 200*time.Millisecond)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestLeaderElection(t *testing.T) {
	ctx := context.Background()
	reg := newRegistry(t)

	ok, err := reg.TryBecomeLeader(ctx, "worker-1")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = reg.TryBecomeLeader(ctx, "worker-2")
	require.NoError(t, err)
	assert.False(t, ok)

	extended, err := reg.ExtendLeadership(ctx, "worker-2")
	require.NoError(t, err)
	assert.False(t, extended)

	extended, err = reg.ExtendLeadership(ctx, "worker-1")
	require.NoError(t, err)
	assert.True(t, extended)
}

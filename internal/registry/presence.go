package registry

import (
	"context"
	"fmt"
	"time"

	"github.com/arcaderun/roomrt/internal/domain"
	pkgredis "github.com/arcaderun/roomrt/pkg/redis"
)

// SetUserRoom records userID's single active room, overwriting any
// previous mapping. It does not itself enforce the "at most one active
// room per user" invariant — callers must check GetUserRoom before
// allowing a second CreateRoom/JoinRoom.
func (r *Registry) SetUserRoom(ctx context.Context, userID, roomID string) error {
	return r.rdb.HSet(ctx, keyUserRooms, userID, roomID)
}

// GetUserRoom returns the room a user currently occupies, if any. A false,
// nil result means the user genuinely has no active room; any other error
// means the lookup itself failed.
func (r *Registry) GetUserRoom(ctx context.Context, userID string) (string, bool, error) {
	roomID, err := r.rdb.HGet(ctx, keyUserRooms, userID)
	if err == pkgredis.ErrKeyNotFound {
		return "", false, nil
	} else if err != nil {
		return "", false, err
	}
	return roomID, true, nil
}

// ClearUserRoom removes the user->room mapping, e.g. on leave or room
// deletion.
func (r *Registry) ClearUserRoom(ctx context.Context, userID string) error {
	return r.rdb.HDel(ctx, keyUserRooms, userID)
}

// Touch records a heartbeat for (userID, connectionID): it refreshes the
// per-user connection's score, prunes any of that user's connections older
// than domain.ConnectionTTL, and marks the user online.
func (r *Registry) Touch(ctx context.Context, userID, connectionID string) error {
	now := time.Now()
	if err := r.rdb.ZAdd(ctx, userConnectionsKey(userID), float64(now.Unix()), connectionID); err != nil {
		return fmt.Errorf("registry: touch connection: %w", err)
	}
	if err := r.pruneConnections(ctx, userID, now); err != nil {
		return err
	}
	return r.rdb.ZAdd(ctx, keyOnlineUsers, float64(now.Unix()), userID)
}

// RemoveConnection drops one connection for a user. It does not by itself
// mark the user offline — that only happens once every connection has
// aged out or been removed.
func (r *Registry) RemoveConnection(ctx context.Context, userID, connectionID string) error {
	return r.rdb.ZRem(ctx, userConnectionsKey(userID), connectionID)
}

// ConnectionCount reports how many non-expired connections a user holds,
// pruning stale entries first.
func (r *Registry) ConnectionCount(ctx context.Context, userID string) (int64, error) {
	if err := r.pruneConnections(ctx, userID, time.Now()); err != nil {
		return 0, err
	}
	return r.rdb.ZCard(ctx, userConnectionsKey(userID))
}

func (r *Registry) pruneConnections(ctx context.Context, userID string, now time.Time) error {
	cutoff := now.Add(-domain.ConnectionTTL)
	stale, err := r.rdb.ZRangeByScore(ctx, userConnectionsKey(userID), "-inf", fmt.Sprintf("%d", cutoff.Unix()), 0)
	if err != nil {
		return err
	}
	for _, connID := range stale {
		if err := r.rdb.ZRem(ctx, userConnectionsKey(userID), connID); err != nil {
			return err
		}
	}
	return nil
}

// IsOnline reports whether the user has at least one non-expired heartbeat.
// It lazily prunes the global online set on access.
func (r *Registry) IsOnline(ctx context.Context, userID string) (bool, error) {
	cutoff := time.Now().Add(-domain.ConnectionTTL)
	if err := r.pruneOnline(ctx, cutoff); err != nil {
		return false, err
	}
	score, err := r.rdb.ZScore(ctx, keyOnlineUsers, userID)
	if err != nil {
		return false, nil
	}
	return time.Unix(int64(score), 0).After(cutoff), nil
}

func (r *Registry) pruneOnline(ctx context.Context, cutoff time.Time) error {
	stale, err := r.rdb.ZRangeByScore(ctx, keyOnlineUsers, "-inf", fmt.Sprintf("%d", cutoff.Unix()), 0)
	if err != nil {
		return err
	}
	for _, userID := range stale {
		if err := r.rdb.ZRem(ctx, keyOnlineUsers, userID); err != nil {
			return err
		}
	}
	return nil
}

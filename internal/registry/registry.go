// Package registry implements the global indexes the room runtime keeps
// outside any single room: active rooms by game type and by activity, the turn-timeout due queue,
// the short-code bijection, user presence, disconnect tickets, and the
// per-user rate limiter. Every index lives in Redis; the registry owns no
// state the room store also touches, other than being called back from it
// (see store.ActivityRegistrar).
package registry

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	pkgredis "github.com/arcaderun/roomrt/pkg/redis"
)

// Registry is the sole owner of every cross-room index.
type Registry struct {
	rdb    *pkgredis.Client
	logger *slog.Logger
}

// New builds a Registry.
func New(rdb *pkgredis.Client, logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{rdb: rdb, logger: logger.With("component", "registry")}
}

// RegisterRoom adds roomID to its game type's creation-time index (score
// fixed at first registration) and records the roomId->gameType mapping.
// Safe to call repeatedly — reregistration is a no-op for the creation
// score.
func (r *Registry) RegisterRoom(ctx context.Context, gameType, roomID string) error {
	if err := r.rdb.ZAddNX(ctx, indexRoomsKey(gameType), float64(time.Now().Unix()), roomID); err != nil {
		return fmt.Errorf("registry: register room %s: %w", roomID, err)
	}
	if err := r.rdb.HSet(ctx, keyRoomRegistry, roomID, gameType); err != nil {
		return fmt.Errorf("registry: record room type %s: %w", roomID, err)
	}
	return nil
}

// UnregisterRoom removes roomID from every per-game-type index and the
// global roomId->gameType map, and drops its short code if any.
func (r *Registry) UnregisterRoom(ctx context.Context, gameType, roomID string) error {
	if err := r.rdb.ZRem(ctx, indexRoomsKey(gameType), roomID); err != nil {
		return err
	}
	if err := r.rdb.ZRem(ctx, indexActivityKey(gameType), roomID); err != nil {
		return err
	}
	if err := r.rdb.ZRem(ctx, indexTimeoutsKey(gameType), roomID); err != nil {
		return err
	}
	if err := r.rdb.HDel(ctx, keyRoomRegistry, roomID); err != nil {
		return err
	}
	return r.releaseShortCodeFor(ctx, roomID)
}

// GetRoomIdsByGameType pages the creation-time index by rank, oldest first.
func (r *Registry) GetRoomIdsByGameType(ctx context.Context, gameType string, offset, limit int64) ([]string, error) {
	return r.rdb.ZRangeByRank(ctx, indexRoomsKey(gameType), offset, offset+limit-1)
}

// GetGameType looks up which game type a roomId belongs to. A false, nil
// result means the room genuinely isn't registered; any other error means
// the lookup itself failed and callers must not treat it as "not found".
func (r *Registry) GetGameType(ctx context.Context, roomID string) (string, bool, error) {
	gt, err := r.rdb.HGet(ctx, keyRoomRegistry, roomID)
	if err == pkgredis.ErrKeyNotFound {
		return "", false, nil
	} else if err != nil {
		return "", false, err
	}
	return gt, true, nil
}

// UpdateRoomActivity refreshes roomID's last-touched score, used both to
// keep it alive against activity-sweep eviction and to let the sweep pull
// the least-recently-touched rooms first.
func (r *Registry) UpdateRoomActivity(ctx context.Context, gameType, roomID string) error {
	return r.rdb.ZAdd(ctx, indexActivityKey(gameType), float64(time.Now().Unix()), roomID)
}

// GetStaleRooms returns the `limit` least-recently-active rooms of a game
// type whose activity score is older than olderThan — candidates for the
// activity-sweep eviction path.
func (r *Registry) GetStaleRooms(ctx context.Context, gameType string, olderThan time.Time, limit int64) ([]string, error) {
	return r.rdb.ZRangeByScore(ctx, indexActivityKey(gameType), "-inf", fmt.Sprintf("%d", olderThan.Unix()), limit)
}

// RegisterTurnTimeout inserts (or moves) roomID's due entry to dueAt.
// Reinserting on every turn change is how the module remains the sole
// author of new due entries.
func (r *Registry) RegisterTurnTimeout(ctx context.Context, gameType, roomID string, dueAt time.Time) error {
	return r.rdb.ZAdd(ctx, indexTimeoutsKey(gameType), float64(dueAt.Unix()), roomID)
}

// UnregisterTurnTimeout removes roomID's due entry, e.g. on game end or
// room deletion.
func (r *Registry) UnregisterTurnTimeout(ctx context.Context, gameType, roomID string) error {
	return r.rdb.ZRem(ctx, indexTimeoutsKey(gameType), roomID)
}

// GetRoomsDueForTimeout returns up to limit rooms whose due score is <= now,
// the only index the scheduler consults.
func (r *Registry) GetRoomsDueForTimeout(ctx context.Context, gameType string, now time.Time, limit int64) ([]string, error) {
	return r.rdb.ZRangeByScore(ctx, indexTimeoutsKey(gameType), "-inf", fmt.Sprintf("%d", now.Unix()), limit)
}

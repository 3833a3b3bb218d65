// Package store implements room persistence and per-room distributed
// locking: pipelined load/save of state+meta, batched multi-get, and a
// lease-style lock guarded by a compare-and-delete script.
package store

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"

	"github.com/arcaderun/roomrt/internal/codec"
	"github.com/arcaderun/roomrt/internal/domain"
	pkgredis "github.com/arcaderun/roomrt/pkg/redis"
)

func isNilErr(err error) bool {
	return err == goredis.Nil
}

// ActivityRegistrar is the slice of the room registry the store touches on
// every successful Save, so a room's activity index never drifts
// out of sync with its persisted state. Kept minimal and defined here (not
// in internal/registry) so store has no import-time dependency on it.
type ActivityRegistrar interface {
	RegisterRoom(ctx context.Context, gameType, roomID string) error
	UpdateRoomActivity(ctx context.Context, gameType, roomID string) error
	UnregisterRoom(ctx context.Context, gameType, roomID string) error
}

// Store persists GameState<T> blobs and RoomMeta under the keyspace.
type Store struct {
	rdb      *pkgredis.Client
	registry ActivityRegistrar
	logger   *slog.Logger
	lockTTL  time.Duration
}

// New builds a Store. registry may be nil in tests that only exercise the
// codec/lock path.
func New(rdb *pkgredis.Client, registry ActivityRegistrar, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{rdb: rdb, registry: registry, logger: logger.With("component", "room_store")}
}

// Load fetches and decodes state+meta for one room. A missing key, or a
// decode failure, both return (zero, nil, nil) — a failed decode is
// treated as absent so the caller can decide whether to recreate the room.
func Load[T any](ctx context.Context, s *Store, gameType, roomID string) (T, *domain.RoomMeta, error) {
	var zero T

	pipe := s.rdb.Raw().Pipeline()
	stateCmd := pipe.Get(ctx, stateKey(gameType, roomID))
	metaCmd := pipe.Get(ctx, metaKey(gameType, roomID))
	// Exec returns an error whenever any queued command errors (including a
	// plain cache-miss Nil), so its return is ignored here; each command's
	// own Err()/Bytes() is inspected individually below.
	_, _ = pipe.Exec(ctx)

	stateBlob, sErr := stateCmd.Bytes()
	metaBlob, mErr := metaCmd.Bytes()
	if isNilErr(sErr) || isNilErr(mErr) {
		return zero, nil, nil
	}
	if sErr != nil {
		return zero, nil, fmt.Errorf("store: read state %s/%s: %w", gameType, roomID, sErr)
	}
	if mErr != nil {
		return zero, nil, fmt.Errorf("store: read meta %s/%s: %w", gameType, roomID, mErr)
	}

	state, err := codec.Decode[T](stateBlob)
	if err != nil {
		s.logger.Error("state decode failed, treating room as absent", "gameType", gameType, "roomId", roomID, "error", err)
		return zero, nil, nil
	}

	var meta domain.RoomMeta
	if err := json.Unmarshal(metaBlob, &meta); err != nil {
		s.logger.Error("meta decode failed, treating room as absent", "gameType", gameType, "roomId", roomID, "error", err)
		return zero, nil, nil
	}

	return state, &meta, nil
}

// Save encodes and writes state+meta in one pipelined round-trip, then
// registers the room and refreshes its activity score. A partial failure
// (one key written, the other not) is surfaced as an error; the next Load
// will treat the room as corrupted/absent since only one half decodes.
func Save[T any](ctx context.Context, s *Store, gameType, roomID string, state T, meta *domain.RoomMeta, version uint8) error {
	stateBlob, err := codec.Encode(state, version)
	if err != nil {
		return fmt.Errorf("store: encode state %s/%s: %w", gameType, roomID, err)
	}
	meta.LastActivityAt = time.Now()
	metaBlob, err := json.Marshal(meta)
	if err != nil {
		return fmt.Errorf("store: marshal meta %s/%s: %w", gameType, roomID, err)
	}

	pipe := s.rdb.Raw().Pipeline()
	pipe.Set(ctx, stateKey(gameType, roomID), stateBlob, 0)
	pipe.Set(ctx, metaKey(gameType, roomID), metaBlob, 0)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("store: save pipeline %s/%s: %w", gameType, roomID, err)
	}

	if s.registry != nil {
		if err := s.registry.RegisterRoom(ctx, gameType, roomID); err != nil {
			s.logger.Warn("failed to register room in index", "gameType", gameType, "roomId", roomID, "error", err)
		}
		if err := s.registry.UpdateRoomActivity(ctx, gameType, roomID); err != nil {
			s.logger.Warn("failed to update room activity", "gameType", gameType, "roomId", roomID, "error", err)
		}
	}
	return nil
}

// LoadMetaMany batch-fetches meta records for admin/lobby views. Missing
// keys are simply omitted from the result map.
func (s *Store) LoadMetaMany(ctx context.Context, gameType string, roomIDs []string) (map[string]*domain.RoomMeta, error) {
	if len(roomIDs) == 0 {
		return map[string]*domain.RoomMeta{}, nil
	}
	keys := make([]string, len(roomIDs))
	for i, id := range roomIDs {
		keys[i] = metaKey(gameType, id)
	}
	raw, err := pkgredis.MGetStruct[domain.RoomMeta](ctx, s.rdb, keys)
	if err != nil {
		return nil, err
	}
	out := make(map[string]*domain.RoomMeta, len(raw))
	for i, key := range keys {
		if m, ok := raw[key]; ok {
			out[roomIDs[i]] = m
		}
	}
	return out, nil
}

// LoadMany batch-loads and decodes state for many rooms of the same game
// type, used by admin/lobby views.
func LoadMany[T any](ctx context.Context, s *Store, gameType string, roomIDs []string) (map[string]T, error) {
	out := make(map[string]T, len(roomIDs))
	if len(roomIDs) == 0 {
		return out, nil
	}
	keys := make([]string, len(roomIDs))
	for i, id := range roomIDs {
		keys[i] = stateKey(gameType, id)
	}
	vals, err := s.rdb.Raw().MGet(ctx, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("store: load many %s: %w", gameType, err)
	}
	for i, v := range vals {
		if v == nil {
			continue
		}
		str, ok := v.(string)
		if !ok {
			continue
		}
		state, err := codec.Decode[T]([]byte(str))
		if err != nil {
			s.logger.Warn("skipping undecodable room in batch load", "gameType", gameType, "roomId", roomIDs[i], "error", err)
			continue
		}
		out[roomIDs[i]] = state
	}
	return out, nil
}

// LockHandle identifies a held lock so the caller can release exactly the
// lock it acquired.
type LockHandle struct {
	gameType string
	roomID   string
	token    string
}

// TryLock attempts to acquire the per-room lock with a worker-unique token,
// TTL-bounded so a crashed holder never wedges the room forever. The lock
// acquire timeout convention is enforced by the caller's context.
func (s *Store) TryLock(ctx context.Context, gameType, roomID string, ttl time.Duration) (*LockHandle, bool, error) {
	token := uuid.NewString()
	ok, err := s.rdb.AcquireLock(ctx, lockKey(gameType, roomID), token, ttl)
	if err != nil {
		return nil, false, fmt.Errorf("store: try lock %s/%s: %w", gameType, roomID, err)
	}
	if !ok {
		return nil, false, nil
	}
	return &LockHandle{gameType: gameType, roomID: roomID, token: token}, true, nil
}

// Unlock releases a held lock via the compare-and-delete script, so a node
// can never release a lock it does not hold.
func (s *Store) Unlock(ctx context.Context, h *LockHandle) error {
	if h == nil {
		return nil
	}
	released, err := s.rdb.ReleaseLock(ctx, lockKey(h.gameType, h.roomID), h.token)
	if err != nil {
		return fmt.Errorf("store: unlock %s/%s: %w", h.gameType, h.roomID, err)
	}
	if !released {
		s.logger.Warn("unlock no-op: lock already expired or held by another worker", "gameType", h.gameType, "roomId", h.roomID)
	}
	return nil
}

// Delete removes state, meta, and lock, and unregisters the room from every
// index.
func (s *Store) Delete(ctx context.Context, gameType, roomID string) error {
	if err := s.rdb.Del(ctx, stateKey(gameType, roomID), metaKey(gameType, roomID), lockKey(gameType, roomID)); err != nil {
		return fmt.Errorf("store: delete %s/%s: %w", gameType, roomID, err)
	}
	if s.registry != nil {
		if err := s.registry.UnregisterRoom(ctx, gameType, roomID); err != nil {
			s.logger.Warn("failed to unregister deleted room", "gameType", gameType, "roomId", roomID, "error", err)
		}
	}
	return nil
}

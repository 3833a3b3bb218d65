package reveal

import (
	"context"
	"crypto/rand"
	"encoding/binary"
	"fmt"

	"github.com/google/uuid"

	"github.com/arcaderun/roomrt/internal/codec"
	"github.com/arcaderun/roomrt/internal/domain"
	"github.com/arcaderun/roomrt/internal/gamemodule"
	"github.com/arcaderun/roomrt/internal/ports"
	"github.com/arcaderun/roomrt/internal/store"
)

// boardSeed draws a fresh 64-bit seed for a room's tile board. crypto/rand
// is used directly rather than a third-party RNG: no example repo in the
// corpus carries one, and a board seed needs no more than what the
// standard library already provides safely.
func boardSeed() uint64 {
	var b [8]byte
	_, _ = rand.Read(b[:])
	return binary.LittleEndian.Uint64(b[:])
}

const maxSeats = 1

// CreateRoom allocates a fresh single-seat room with a freshly seeded
// board, unrevealed.
func (m *Module) CreateRoom(ctx context.Context, input gamemodule.RoomMetaInput) (string, error) {
	roomID := uuid.NewString()
	meta := domain.NewRoomMeta(roomID, GameType, maxSeats, domain.RoomVisibility(input.Visibility), input.EntryFee, input.Config)

	state := newState(boardSeed())

	if err := store.Save(ctx, m.store, GameType, roomID, state, meta, codec.CurrentVersion); err != nil {
		return "", fmt.Errorf("reveal: create room: %w", err)
	}
	return roomID, nil
}

// JoinRoom seats userID, reserving the entry fee first so a failed
// reservation never leaves a phantom seat.
func (m *Module) JoinRoom(ctx context.Context, roomID, userID string) (gamemodule.JoinResult, error) {
	handle, ok, err := m.store.TryLock(ctx, GameType, roomID, lockTTL)
	if err != nil {
		return gamemodule.JoinResult{}, err
	}
	if !ok {
		return gamemodule.JoinResult{}, ports.ErrLockContention
	}
	defer m.store.Unlock(ctx, handle)

	state, meta, err := store.Load[State](ctx, m.store, GameType, roomID)
	if err != nil {
		return gamemodule.JoinResult{}, err
	}
	if meta == nil {
		return gamemodule.JoinResult{}, ports.ErrRoomNotFound
	}
	if meta.HasUser(userID) {
		return gamemodule.JoinResult{}, ports.ErrAlreadySeated
	}
	if meta.IsFull() {
		return gamemodule.JoinResult{Success: false, Error: ports.ErrRoomFull.Error()}, nil
	}

	reservation, err := m.economy.ReserveEntryFee(ctx, userID, meta.EntryFee, roomID)
	if err != nil {
		return gamemodule.JoinResult{Success: false, Error: err.Error()}, nil
	}

	seat := meta.LowestFreeSeat()
	meta.Seats[userID] = seat
	meta.Reservations[userID] = reservation.ReservationID

	if err := store.Save(ctx, m.store, GameType, roomID, state, meta, codec.CurrentVersion); err != nil {
		_ = m.economy.RefundEntryFee(ctx, reservation)
		return gamemodule.JoinResult{}, err
	}
	if err := m.economy.CommitEntryFee(ctx, reservation); err != nil {
		m.logger.Warn("failed to commit entry fee", "roomId", roomID, "userId", userID, "error", err)
	}

	return gamemodule.JoinResult{Success: true, Seat: seat}, nil
}

// LeaveRoom removes userID from the room. A reveal round is single-player
// and stateful, so leaving before cash-out forfeits any accrued
// multiplier — this module does not refund on voluntary leave.
func (m *Module) LeaveRoom(ctx context.Context, roomID, userID string) error {
	handle, ok, err := m.store.TryLock(ctx, GameType, roomID, lockTTL)
	if err != nil {
		return err
	}
	if !ok {
		return ports.ErrLockContention
	}
	defer m.store.Unlock(ctx, handle)

	state, meta, err := store.Load[State](ctx, m.store, GameType, roomID)
	if err != nil {
		return err
	}
	if meta == nil {
		return ports.ErrRoomNotFound
	}
	if !meta.HasUser(userID) {
		return ports.ErrNotInRoom
	}

	delete(meta.Seats, userID)
	delete(meta.Reservations, userID)

	if len(meta.Seats) == 0 {
		return m.store.Delete(ctx, GameType, roomID)
	}
	return store.Save(ctx, m.store, GameType, roomID, state, meta, codec.CurrentVersion)
}

// GetRoomMeta returns a JSON-friendly meta projection.
func (m *Module) GetRoomMeta(ctx context.Context, roomID string) (map[string]any, bool, error) {
	_, meta, err := store.Load[State](ctx, m.store, GameType, roomID)
	if err != nil {
		return nil, false, err
	}
	if meta == nil {
		return nil, false, nil
	}
	return map[string]any{
		"seats":      meta.Seats,
		"maxSeats":   meta.MaxSeats,
		"entryFee":   meta.EntryFee,
		"visibility": meta.Visibility,
	}, true, nil
}

// DeleteRoom removes the room unconditionally.
func (m *Module) DeleteRoom(ctx context.Context, roomID string) error {
	return m.store.Delete(ctx, GameType, roomID)
}

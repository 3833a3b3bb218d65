package race

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

// rollSeed draws a fresh 64-bit seed for a room's die-roll sequence. See
// internal/games/reveal/service.go's boardSeed for why crypto/rand is used
// directly here rather than a third-party RNG.
func rollSeed() uint64 {
	var b [8]byte
	_, _ = rand.Read(b[:])
	return binary.LittleEndian.Uint64(b[:])
}

// CreateRoom allocates a fresh four-seat room with no players seated yet.
// No minimum player count is enforced: the seat-0 player may roll as soon
// as they are seated.
func (m *Module) CreateRoom(ctx context.Context, input gamemodule.RoomMetaInput) (string, error) {
	roomID := uuid.NewString()
	meta := domain.NewRoomMeta(roomID, GameType, maxSeats, domain.RoomVisibility(input.Visibility), input.EntryFee, input.Config)

	state := newState()
	state.RollSeed = rollSeed()

	if err := store.Save(ctx, m.store, GameType, roomID, state, meta, codec.CurrentVersion); err != nil {
		return "", fmt.Errorf("race: create room: %w", err)
	}
	return roomID, nil
}

// JoinRoom seats userID into the lowest free seat, reserving the entry fee
// first so a failed reservation never leaves a phantom seat.
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
	if state.Finished {
		return gamemodule.JoinResult{Success: false, Error: ports.ErrIllegalMove.Error()}, nil
	}

	reservation, err := m.economy.ReserveEntryFee(ctx, userID, meta.EntryFee, roomID)
	if err != nil {
		return gamemodule.JoinResult{Success: false, Error: err.Error()}, nil
	}

	seat := meta.LowestFreeSeat()
	meta.Seats[userID] = seat
	meta.Reservations[userID] = reservation.ReservationID
	state.Active[seat] = true

	if err := store.Save(ctx, m.store, GameType, roomID, state, meta, codec.CurrentVersion); err != nil {
		_ = m.economy.RefundEntryFee(ctx, reservation)
		return gamemodule.JoinResult{}, err
	}
	if err := m.economy.CommitEntryFee(ctx, reservation); err != nil {
		m.logger.Warn("failed to commit entry fee", "roomId", roomID, "userId", userID, "error", err)
	}

	return gamemodule.JoinResult{Success: true, Seat: seat}, nil
}

// LeaveRoom removes userID from the room. A race in progress does not
// refund on voluntary leave; the vacated seat is simply skipped by future
// turn advancement.
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
	seat, inRoom := seatOf(meta, userID)
	if !inRoom {
		return ports.ErrNotInRoom
	}

	delete(meta.Seats, userID)
	delete(meta.Reservations, userID)
	state.Active[seat] = false

	if len(meta.Seats) == 0 {
		return m.store.Delete(ctx, GameType, roomID)
	}
	if !state.Finished && uint8(seat) == state.CurrentSeat {
		state.advanceTurn()
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

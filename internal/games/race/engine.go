package race

import (
	"context"
	"fmt"
	"time"

	"github.com/arcaderun/roomrt/internal/codec"
	"github.com/arcaderun/roomrt/internal/domain"
	"github.com/arcaderun/roomrt/internal/gamemodule"
	"github.com/arcaderun/roomrt/internal/ports"
	"github.com/arcaderun/roomrt/internal/store"
)

func seatOf(meta *domain.RoomMeta, userID string) (int, bool) {
	seat, ok := meta.Seats[userID]
	return seat, ok
}

// ExecuteAsync loads, mutates, and saves state under the room's
// distributed lock in a single load->execute->save round trip.
func (m *Module) ExecuteAsync(ctx context.Context, roomID string, cmd gamemodule.Command) (gamemodule.ActionResult, error) {
	handle, ok, err := m.store.TryLock(ctx, GameType, roomID, lockTTL)
	if err != nil {
		return gamemodule.ActionResult{}, err
	}
	if !ok {
		return gamemodule.ActionResult{}, ports.ErrLockContention
	}
	defer m.store.Unlock(ctx, handle)

	state, meta, err := store.Load[State](ctx, m.store, GameType, roomID)
	if err != nil {
		return gamemodule.ActionResult{}, err
	}
	if meta == nil {
		return gamemodule.ActionResult{}, ports.ErrRoomNotFound
	}
	seat, inRoom := seatOf(meta, cmd.UserID)
	if !inRoom {
		return gamemodule.ActionResult{}, ports.ErrNotInRoom
	}
	if state.Finished {
		return gamemodule.ActionResult{Success: false, ErrorMessage: ports.ErrIllegalMove.Error()}, nil
	}
	if cmd.Action != "roll" {
		return gamemodule.ActionResult{}, fmt.Errorf("%w: %s", ports.ErrUnknownAction, cmd.Action)
	}
	if uint8(seat) != state.CurrentSeat {
		return gamemodule.ActionResult{}, ports.ErrNotYourTurn
	}

	events := m.applyRoll(&state, seat)

	meta.TurnStartedAt = time.Now()
	if err := store.Save(ctx, m.store, GameType, roomID, state, meta, codec.CurrentVersion); err != nil {
		return gamemodule.ActionResult{}, err
	}
	if !state.Finished {
		if err := m.registry.RegisterTurnTimeout(ctx, GameType, roomID, meta.TurnStartedAt.Add(TurnTimeout)); err != nil {
			m.logger.Warn("failed to register turn timeout", "roomId", roomID, "error", err)
		}
	} else {
		if err := m.registry.UnregisterTurnTimeout(ctx, GameType, roomID); err != nil {
			m.logger.Warn("failed to unregister turn timeout on finish", "roomId", roomID, "error", err)
		}
	}

	blob, err := codec.Encode(state, codec.CurrentVersion)
	if err != nil {
		return gamemodule.ActionResult{}, err
	}

	result := gamemodule.ActionResult{Success: true, NewState: blob, Events: events}
	if state.Finished {
		result.GameEnded = true
		result.EndedPayload = m.endedPayload(&state, meta)
	}
	return result, nil
}

func (m *Module) applyRoll(state *State, seat int) []gamemodule.Event {
	roll := state.nextRoll(uint64(state.TotalRolls))
	state.TotalRolls++

	newPos := int(state.Positions[seat]) + roll
	if newPos >= trackLength {
		newPos = trackLength
		state.Finished = true
		state.WinnerSeat = int8(seat)
	}
	state.Positions[seat] = uint8(newPos)

	events := []gamemodule.Event{{
		Name: "DiceRolled",
		Data: map[string]any{"seat": seat, "roll": roll, "position": newPos},
	}}
	if state.Finished {
		events = append(events, gamemodule.Event{Name: "RaceFinished", Data: map[string]any{"winnerSeat": seat}})
	} else {
		state.advanceTurn()
	}
	return events
}

// CheckTimeoutsAsync is invoked by the scheduler for a room whose due
// score has elapsed. If the current turn is still the one that timed out,
// it forfeits that seat's roll and advances the turn without their input.
func (m *Module) CheckTimeoutsAsync(ctx context.Context, roomID string) (*gamemodule.ActionResult, error) {
	handle, ok, err := m.store.TryLock(ctx, GameType, roomID, lockTTL)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ports.ErrLockContention
	}
	defer m.store.Unlock(ctx, handle)

	state, meta, err := store.Load[State](ctx, m.store, GameType, roomID)
	if err != nil {
		return nil, err
	}
	if meta == nil || state.Finished {
		return nil, nil
	}
	if time.Since(meta.TurnStartedAt) < TurnTimeout {
		return nil, nil // a fresher turn started after this due entry was queued
	}

	state.advanceTurn()
	meta.TurnStartedAt = time.Now()

	if err := store.Save(ctx, m.store, GameType, roomID, state, meta, codec.CurrentVersion); err != nil {
		return nil, err
	}
	if err := m.registry.RegisterTurnTimeout(ctx, GameType, roomID, meta.TurnStartedAt.Add(TurnTimeout)); err != nil {
		m.logger.Warn("failed to reregister turn timeout after forfeit", "roomId", roomID, "error", err)
	}

	blob, err := codec.Encode(state, codec.CurrentVersion)
	if err != nil {
		return nil, err
	}
	events := []gamemodule.Event{{Name: "TurnForfeited", Data: map[string]any{"newSeat": state.CurrentSeat}}}
	return &gamemodule.ActionResult{Success: true, NewState: blob, Events: events}, nil
}

func (m *Module) endedPayload(state *State, meta *domain.RoomMeta) *gamemodule.GameEndedInfo {
	pot := meta.EntryFee * int64(len(meta.Seats))
	var winner string
	for userID, seat := range meta.Seats {
		if int8(seat) == state.WinnerSeat {
			winner = userID
			break
		}
	}
	return &gamemodule.GameEndedInfo{TotalPot: pot, WinnerUserID: winner}
}

// GetLegalActionsAsync reports "roll" only for the seat whose turn it is.
func (m *Module) GetLegalActionsAsync(ctx context.Context, roomID, userID string) ([]string, error) {
	state, meta, err := store.Load[State](ctx, m.store, GameType, roomID)
	if err != nil {
		return nil, err
	}
	if meta == nil {
		return nil, ports.ErrRoomNotFound
	}
	if state.Finished {
		return []string{}, nil
	}
	seat, inRoom := seatOf(meta, userID)
	if !inRoom || uint8(seat) != state.CurrentSeat {
		return []string{}, nil
	}
	return []string{"roll"}, nil
}

// GetStateAsync returns the room's current projection.
func (m *Module) GetStateAsync(ctx context.Context, roomID string) (*gamemodule.StateResponse, error) {
	state, meta, err := store.Load[State](ctx, m.store, GameType, roomID)
	if err != nil {
		return nil, err
	}
	if meta == nil {
		return nil, ports.ErrRoomNotFound
	}
	blob, err := codec.Encode(state, codec.CurrentVersion)
	if err != nil {
		return nil, err
	}
	return &gamemodule.StateResponse{
		RoomID:   roomID,
		GameType: GameType,
		Meta:     map[string]any{"seats": meta.Seats, "entryFee": meta.EntryFee, "currentSeat": state.CurrentSeat},
		State:    blob,
	}, nil
}

// GetManyStatesAsync batches GetStateAsync for admin/lobby views.
func (m *Module) GetManyStatesAsync(ctx context.Context, roomIDs []string) (map[string]*gamemodule.StateResponse, error) {
	out := make(map[string]*gamemodule.StateResponse, len(roomIDs))
	for _, id := range roomIDs {
		resp, err := m.GetStateAsync(ctx, id)
		if err != nil {
			m.logger.Warn("skipping room in batch state fetch", "roomId", id, "error", err)
			continue
		}
		out[id] = resp
	}
	return out, nil
}

// GetManyMetasAsync batches meta lookups for admin/lobby views.
func (m *Module) GetManyMetasAsync(ctx context.Context, roomIDs []string) (map[string]map[string]any, error) {
	metas, err := m.store.LoadMetaMany(ctx, GameType, roomIDs)
	if err != nil {
		return nil, err
	}
	out := make(map[string]map[string]any, len(metas))
	for id, meta := range metas {
		out[id] = map[string]any{"seats": meta.Seats, "entryFee": meta.EntryFee, "createdAt": meta.CreatedAt}
	}
	return out, nil
}

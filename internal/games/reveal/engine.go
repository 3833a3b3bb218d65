package reveal

import (
	"context"
	"fmt"

	"github.com/arcaderun/roomrt/internal/codec"
	"github.com/arcaderun/roomrt/internal/domain"
	"github.com/arcaderun/roomrt/internal/gamemodule"
	"github.com/arcaderun/roomrt/internal/ports"
	"github.com/arcaderun/roomrt/internal/store"
)

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
	if !meta.HasUser(cmd.UserID) {
		return gamemodule.ActionResult{}, ports.ErrNotInRoom
	}
	if state.isOver() {
		return gamemodule.ActionResult{Success: false, ErrorMessage: ports.ErrIllegalMove.Error()}, nil
	}

	var result gamemodule.ActionResult
	switch cmd.Action {
	case "reveal":
		result, err = m.applyReveal(&state, cmd)
	case "cashout":
		result = m.applyCashOut(&state)
	default:
		return gamemodule.ActionResult{}, fmt.Errorf("%w: %s", ports.ErrUnknownAction, cmd.Action)
	}
	if err != nil {
		return gamemodule.ActionResult{}, err
	}
	if !result.Success {
		return result, nil
	}

	if err := store.Save(ctx, m.store, GameType, roomID, state, meta, codec.CurrentVersion); err != nil {
		return gamemodule.ActionResult{}, err
	}

	blob, err := codec.Encode(state, codec.CurrentVersion)
	if err != nil {
		return gamemodule.ActionResult{}, err
	}
	result.NewState = blob

	if state.isOver() {
		result.GameEnded = true
		result.EndedPayload = m.endedPayload(&state, meta)
	}
	return result, nil
}

func (m *Module) applyReveal(state *State, cmd gamemodule.Command) (gamemodule.ActionResult, error) {
	idxVal, ok := cmd.Payload["tileIndex"]
	if !ok {
		return gamemodule.ActionResult{}, fmt.Errorf("%w: missing tileIndex", ports.ErrIllegalMove)
	}
	idxFloat, ok := idxVal.(float64)
	if !ok {
		return gamemodule.ActionResult{}, fmt.Errorf("%w: tileIndex must be a number", ports.ErrIllegalMove)
	}
	index := int(idxFloat)

	if !state.reveal(index) {
		return gamemodule.ActionResult{Success: false, ErrorMessage: ports.ErrIllegalMove.Error()}, nil
	}

	events := []gamemodule.Event{{
		Name: "TileRevealed",
		Data: map[string]any{"index": index, "busted": state.Busted, "multiplier": state.Multiplier},
	}}
	return gamemodule.ActionResult{Success: true, Events: events}, nil
}

func (m *Module) applyCashOut(state *State) gamemodule.ActionResult {
	if state.Revealed == 0 {
		return gamemodule.ActionResult{Success: false, ErrorMessage: ports.ErrIllegalMove.Error()}
	}
	state.CashedOut = true
	events := []gamemodule.Event{{
		Name: "CashedOut",
		Data: map[string]any{"multiplier": state.Multiplier},
	}}
	return gamemodule.ActionResult{Success: true, Events: events}
}

func (m *Module) endedPayload(state *State, meta *domain.RoomMeta) *gamemodule.GameEndedInfo {
	mult := state.payoutMultiplier()
	pot := meta.EntryFee * int64(mult) / 100

	var winner string
	for userID := range meta.Seats {
		winner = userID
		break
	}
	if mult == 0 {
		winner = "" // busted: the pot is 0, so nothing is paid out and the reserved entry fee is not returned
	}
	return &gamemodule.GameEndedInfo{TotalPot: pot, WinnerUserID: winner}
}

// GetLegalActionsAsync lists reveal/cashout unless the round already ended.
func (m *Module) GetLegalActionsAsync(ctx context.Context, roomID, userID string) ([]string, error) {
	state, meta, err := store.Load[State](ctx, m.store, GameType, roomID)
	if err != nil {
		return nil, err
	}
	if meta == nil {
		return nil, ports.ErrRoomNotFound
	}
	if state.isOver() {
		return []string{}, nil
	}
	return []string{"reveal", "cashout"}, nil
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
	legal := []string{"reveal", "cashout"}
	if state.isOver() {
		legal = []string{}
	}
	return &gamemodule.StateResponse{
		RoomID:     roomID,
		GameType:   GameType,
		Meta:       map[string]any{"seats": meta.Seats, "entryFee": meta.EntryFee},
		State:      blob,
		LegalMoves: legal,
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

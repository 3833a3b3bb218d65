package hub

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/arcaderun/roomrt/internal/gamemodule"
	"github.com/arcaderun/roomrt/internal/ports"
	"github.com/arcaderun/roomrt/pkg/wss"
)

type createRoomParams struct {
	TemplateName string `json:"templateName"`
}

type createRoomResult struct {
	Success   bool   `json:"success"`
	RoomID    string `json:"roomId,omitempty"`
	ShortCode string `json:"shortCode,omitempty"`
	Error     string `json:"error,omitempty"`
}

func (h *Hub) handleCreateRoom(ctx context.Context, conn *wss.Connection, raw json.RawMessage) (any, error) {
	var p createRoomParams
	if err := json.Unmarshal(raw, &p); err != nil {
		return nil, fmt.Errorf("malformed params: %w", err)
	}
	if !validTemplateName(p.TemplateName) {
		return nil, fmt.Errorf("invalid templateName")
	}
	tmpl, ok := h.templates[p.TemplateName]
	if !ok {
		return nil, fmt.Errorf("unknown template %q", p.TemplateName)
	}

	if existing, has, err := h.registry.GetUserRoom(ctx, conn.UserID); err == nil && has && existing != "" {
		return nil, ports.ErrAlreadySeated
	}

	desc, ok := gamemodule.Lookup(tmpl.GameType)
	if !ok {
		return nil, fmt.Errorf("unregistered game type %q", tmpl.GameType)
	}

	roomID, err := desc.RoomService.CreateRoom(ctx, gamemodule.RoomMetaInput{
		GameType:   tmpl.GameType,
		MaxSeats:   tmpl.MaxSeats,
		Visibility: string(tmpl.Visibility),
		EntryFee:   tmpl.EntryFee,
		CreatorID:  conn.UserID,
	})
	if err != nil {
		return nil, err
	}

	code, err := h.registry.CreateShortCode(ctx, roomID)
	if err != nil {
		h.logger.Warn("failed to allocate short code", "roomId", roomID, "error", err)
	}

	return createRoomResult{Success: true, RoomID: roomID, ShortCode: code}, nil
}

type joinRoomParams struct {
	RoomID    string `json:"roomId"`
	ShortCode string `json:"shortCode"`
}

type joinRoomResult struct {
	Success   bool   `json:"success"`
	SeatIndex int    `json:"seatIndex"`
	Error     string `json:"error,omitempty"`
}

func (h *Hub) resolveRoomID(ctx context.Context, roomID, shortCode string) (string, error) {
	if roomID != "" {
		if !validRoomID(roomID) {
			return "", fmt.Errorf("invalid roomId")
		}
		return roomID, nil
	}
	if shortCode != "" {
		resolved, ok, err := h.registry.GetRoomIDByShortCode(ctx, shortCode)
		if err != nil || !ok {
			return "", ports.ErrRoomNotFound
		}
		return resolved, nil
	}
	return "", fmt.Errorf("roomId or shortCode required")
}

func (h *Hub) handleJoinRoom(ctx context.Context, conn *wss.Connection, raw json.RawMessage) (any, error) {
	var p joinRoomParams
	if err := json.Unmarshal(raw, &p); err != nil {
		return nil, fmt.Errorf("malformed params: %w", err)
	}
	roomID, err := h.resolveRoomID(ctx, p.RoomID, p.ShortCode)
	if err != nil {
		return nil, err
	}

	gameType, ok, err := h.registry.GetGameType(ctx, roomID)
	if err != nil || !ok {
		return nil, ports.ErrRoomNotFound
	}
	desc, ok := gamemodule.Lookup(gameType)
	if !ok {
		return nil, ports.ErrRoomNotFound
	}

	res, err := desc.RoomService.JoinRoom(ctx, roomID, conn.UserID)
	if err != nil {
		return nil, err
	}
	if !res.Success {
		return joinRoomResult{Success: false, Error: res.Error}, nil
	}

	if err := h.registry.SetUserRoom(ctx, conn.UserID, roomID); err != nil {
		h.logger.Warn("failed to record user->room mapping", "userId", conn.UserID, "roomId", roomID, "error", err)
	}
	h.broadcaster.SubscribePlayer(roomID, conn.UserID)
	h.broadcaster.PlayerJoined(roomID, conn.UserID, conn.UserID, res.Seat)

	return joinRoomResult{Success: true, SeatIndex: res.Seat}, nil
}

type roomIDParams struct {
	RoomID string `json:"roomId"`
}

func (h *Hub) handleLeaveRoom(ctx context.Context, conn *wss.Connection, raw json.RawMessage) (any, error) {
	var p roomIDParams
	if err := json.Unmarshal(raw, &p); err != nil {
		return nil, fmt.Errorf("malformed params: %w", err)
	}
	if !validRoomID(p.RoomID) {
		return nil, fmt.Errorf("invalid roomId")
	}

	gameType, ok, err := h.registry.GetGameType(ctx, p.RoomID)
	if err != nil || !ok {
		return nil, ports.ErrRoomNotFound
	}
	desc, ok := gamemodule.Lookup(gameType)
	if !ok {
		return nil, ports.ErrRoomNotFound
	}

	if err := desc.RoomService.LeaveRoom(ctx, p.RoomID, conn.UserID); err != nil {
		return nil, err
	}
	if err := h.registry.ClearUserRoom(ctx, conn.UserID); err != nil {
		h.logger.Warn("failed to clear user->room mapping", "userId", conn.UserID, "error", err)
	}
	h.broadcaster.UnsubscribePlayer(p.RoomID, conn.UserID)
	h.broadcaster.PlayerLeft(p.RoomID, conn.UserID, conn.UserID)

	return struct {
		Success bool `json:"success"`
	}{true}, nil
}

func (h *Hub) handleSpectateRoom(ctx context.Context, conn *wss.Connection, raw json.RawMessage) (any, error) {
	var p roomIDParams
	if err := json.Unmarshal(raw, &p); err != nil {
		return nil, fmt.Errorf("malformed params: %w", err)
	}
	if !validRoomID(p.RoomID) {
		return nil, fmt.Errorf("invalid roomId")
	}
	if _, ok, err := h.registry.GetGameType(ctx, p.RoomID); err != nil || !ok {
		return nil, ports.ErrRoomNotFound
	}
	h.broadcaster.SubscribeSpectator(p.RoomID, conn.UserID)
	return struct {
		Success bool `json:"success"`
	}{true}, nil
}

func (h *Hub) handleStopSpectating(ctx context.Context, conn *wss.Connection, raw json.RawMessage) (any, error) {
	var p roomIDParams
	if err := json.Unmarshal(raw, &p); err != nil {
		return nil, fmt.Errorf("malformed params: %w", err)
	}
	if !validRoomID(p.RoomID) {
		return nil, fmt.Errorf("invalid roomId")
	}
	h.broadcaster.UnsubscribeSpectator(p.RoomID, conn.UserID)
	return struct {
		Success bool `json:"success"`
	}{true}, nil
}

type performActionParams struct {
	RoomID    string         `json:"roomId"`
	Action    string         `json:"action"`
	Payload   map[string]any `json:"payload"`
	CommandID string         `json:"commandId,omitempty"`
}

type performActionResult struct {
	Success  bool            `json:"success"`
	Error    string          `json:"error,omitempty"`
	NewState json.RawMessage `json:"newState,omitempty"`
}

func (h *Hub) handlePerformAction(ctx context.Context, conn *wss.Connection, raw json.RawMessage) (any, error) {
	var p performActionParams
	if err := json.Unmarshal(raw, &p); err != nil {
		return nil, fmt.Errorf("malformed params: %w", err)
	}
	if !validRoomID(p.RoomID) {
		return nil, fmt.Errorf("invalid roomId")
	}
	if p.CommandID != "" && !validIdempotencyKey(p.CommandID) {
		return nil, fmt.Errorf("invalid commandId")
	}

	gameType, ok, err := h.registry.GetGameType(ctx, p.RoomID)
	if err != nil || !ok {
		return nil, ports.ErrRoomNotFound
	}
	desc, ok := gamemodule.Lookup(gameType)
	if !ok {
		return nil, ports.ErrRoomNotFound
	}

	cmd := gamemodule.Command{UserID: conn.UserID, Action: p.Action, Payload: p.Payload}
	result, err := h.dispatcher.Dispatch(ctx, p.RoomID, func(ctx context.Context) (any, error) {
		return desc.Engine.ExecuteAsync(ctx, p.RoomID, cmd)
	})
	if err != nil {
		return nil, err
	}

	res, _ := result.(gamemodule.ActionResult)
	if !res.Success {
		h.broadcaster.ActionError(p.RoomID, conn.UserID, p.Action, res.ErrorMessage)
		return performActionResult{Success: false, Error: res.ErrorMessage}, nil
	}

	if len(res.NewState) > 0 {
		h.broadcaster.GameState(p.RoomID, res.NewState)
	}
	for _, ev := range res.Events {
		h.broadcaster.GameEvent(p.RoomID, ev.Name, ev.Data)
	}
	if res.GameEnded {
		h.recordGameEnded(ctx, p.RoomID, gameType, desc, &res)
	}

	return performActionResult{Success: true, NewState: json.RawMessage(res.NewState)}, nil
}

type legalActionsResult struct {
	Actions []string `json:"actions"`
}

func (h *Hub) handleGetLegalActions(ctx context.Context, conn *wss.Connection, raw json.RawMessage) (any, error) {
	var p roomIDParams
	if err := json.Unmarshal(raw, &p); err != nil {
		return nil, fmt.Errorf("malformed params: %w", err)
	}
	if !validRoomID(p.RoomID) {
		return nil, fmt.Errorf("invalid roomId")
	}
	gameType, ok, err := h.registry.GetGameType(ctx, p.RoomID)
	if err != nil || !ok {
		return nil, ports.ErrRoomNotFound
	}
	desc, ok := gamemodule.Lookup(gameType)
	if !ok {
		return nil, ports.ErrRoomNotFound
	}
	actions, err := desc.Engine.GetLegalActionsAsync(ctx, p.RoomID, conn.UserID)
	if err != nil {
		return nil, err
	}
	return legalActionsResult{Actions: actions}, nil
}

func (h *Hub) handleGetState(ctx context.Context, conn *wss.Connection, raw json.RawMessage) (any, error) {
	var p roomIDParams
	if err := json.Unmarshal(raw, &p); err != nil {
		return nil, fmt.Errorf("malformed params: %w", err)
	}
	if !validRoomID(p.RoomID) {
		return nil, fmt.Errorf("invalid roomId")
	}
	gameType, ok, err := h.registry.GetGameType(ctx, p.RoomID)
	if err != nil || !ok {
		return nil, ports.ErrRoomNotFound
	}
	desc, ok := gamemodule.Lookup(gameType)
	if !ok {
		return nil, ports.ErrRoomNotFound
	}
	return desc.Engine.GetStateAsync(ctx, p.RoomID)
}

type sendChatMessageParams struct {
	RoomID  string `json:"roomId"`
	Message string `json:"message"`
}

func (h *Hub) handleSendChatMessage(ctx context.Context, conn *wss.Connection, raw json.RawMessage) (any, error) {
	var p sendChatMessageParams
	if err := json.Unmarshal(raw, &p); err != nil {
		return nil, fmt.Errorf("malformed params: %w", err)
	}
	if !validRoomID(p.RoomID) {
		return nil, fmt.Errorf("invalid roomId")
	}
	if p.Message == "" || len(p.Message) > maxChatMessageLength {
		return nil, fmt.Errorf("message length must be between 1 and %d", maxChatMessageLength)
	}
	if _, ok, err := h.registry.GetGameType(ctx, p.RoomID); err != nil || !ok {
		return nil, ports.ErrRoomNotFound
	}
	h.broadcaster.ChatMessage(p.RoomID, conn.UserID, conn.UserID, p.Message)
	return struct {
		Success bool `json:"success"`
	}{true}, nil
}

// recordGameEnded is used by handlePerformAction when the ending happens
// on the player's own turn rather than via the scheduler's timeout sweep.
// It intentionally duplicates internal/scheduler's outbox-write shape
// rather than sharing code, since the two triggers run in different
// process components with no natural common caller.
func (h *Hub) recordGameEnded(ctx context.Context, roomID, gameType string, desc gamemodule.Descriptor, res *gamemodule.ActionResult) {
	if res.EndedPayload == nil || h.outboxWriter == nil {
		return
	}
	seats := map[string]int{}
	if meta, found, err := desc.RoomService.GetRoomMeta(ctx, roomID); err == nil && found {
		if raw, ok := meta["seats"].(map[string]int); ok {
			seats = raw
		}
	}
	h.writeGameEndedOutbox(roomID, gameType, seats, res)
}

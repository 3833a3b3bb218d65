// Package hub implements the realtime surface authenticated clients speak
// to: the nine room operations, wired through validation, per-user rate
// limiting, the command dispatcher, and the broadcaster. It is the
// pkg/wss.Subscriber that turns raw frames into gamemodule.Command calls.
package hub

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/arcaderun/roomrt/internal/broadcast"
	"github.com/arcaderun/roomrt/internal/dispatch"
	"github.com/arcaderun/roomrt/internal/domain"
	"github.com/arcaderun/roomrt/internal/gamemodule"
	"github.com/arcaderun/roomrt/internal/ports"
	"github.com/arcaderun/roomrt/internal/registry"
	"github.com/arcaderun/roomrt/internal/session"
	"github.com/arcaderun/roomrt/pkg/wss"
	"gorm.io/gorm"
)

// Template is a named room configuration a client selects by name instead
// of specifying every RoomMetaInput field itself.
type Template struct {
	GameType   string
	MaxSeats   int
	Visibility domain.RoomVisibility
	EntryFee   int64
}

// defaultRateLimitMax is used only if the caller wires in a zero value.
const defaultRateLimitMax = int64(100)

// OutboxWriter is the slice of GORM the hub needs to record a GameEnded
// event when a game ends on a player's own action rather than via the
// scheduler's timeout sweep.
type OutboxWriter interface {
	Create(value any) *gorm.DB
}

// Hub wires the realtime surface. It implements pkg/wss.Subscriber.
type Hub struct {
	registry        *registry.Registry
	dispatcher      *dispatch.Dispatcher
	broadcaster     *broadcast.Broadcaster
	sessions        *session.Manager
	templates       map[string]Template
	outboxWriter    OutboxWriter
	rateLimit       int64
	rateLimitWindow time.Duration
	logger          *slog.Logger
}

// New builds a Hub. templates maps a client-facing template name to the
// game type and room defaults CreateRoom instantiates. outbox may be nil
// in tests that never exercise a terminal game. rateLimit is the per-user
// permit count within rateLimitWindow (rateLimit.permitLimit /
// rateLimit.windowMinutes in configuration); a zero rateLimit falls back
// to defaultRateLimitMax and a zero window falls back to the registry's
// own default.
func New(reg *registry.Registry, dispatcher *dispatch.Dispatcher, broadcaster *broadcast.Broadcaster, sessions *session.Manager, templates map[string]Template, outbox OutboxWriter, rateLimit int64, rateLimitWindow time.Duration, logger *slog.Logger) *Hub {
	if logger == nil {
		logger = slog.Default()
	}
	if rateLimit == 0 {
		rateLimit = defaultRateLimitMax
	}
	return &Hub{
		registry:        reg,
		dispatcher:      dispatcher,
		broadcaster:     broadcaster,
		sessions:        sessions,
		templates:       templates,
		outboxWriter:    outbox,
		rateLimit:       rateLimit,
		rateLimitWindow: rateLimitWindow,
		logger:          logger.With("component", "hub"),
	}
}

func (h *Hub) writeGameEndedOutbox(roomID, gameType string, seats map[string]int, res *gamemodule.ActionResult) {
	payload := domain.GameEndedPayload{
		RoomID:       roomID,
		GameType:     gameType,
		TotalPot:     res.EndedPayload.TotalPot,
		Seats:        seats,
		WinnerUserID: res.EndedPayload.WinnerUserID,
		Ranking:      res.EndedPayload.Ranking,
		FinalState:   res.NewState,
		EndedAt:      time.Now(),
	}
	body, err := json.Marshal(payload)
	if err != nil {
		h.logger.Error("failed to marshal GameEnded payload", "roomId", roomID, "error", err)
		return
	}
	record := domain.OutboxRecord{EventType: domain.EventGameEnded, Payload: string(body)}
	if err := h.outboxWriter.Create(&record).Error; err != nil {
		h.logger.Error("failed to write GameEnded outbox record", "roomId", roomID, "error", err)
	}
}

var _ wss.Subscriber = (*Hub)(nil)

// frame is the envelope every inbound client message must match.
type frame struct {
	RequestID string          `json:"requestId,omitempty"`
	Method    string          `json:"method"`
	Params    json.RawMessage `json:"params"`
}

type reply struct {
	RequestID string `json:"requestId,omitempty"`
	Method    string `json:"method"`
	Success   bool   `json:"success"`
	Error     string `json:"error,omitempty"`
	Data      any    `json:"data,omitempty"`
}

func (h *Hub) sendReply(conn *wss.Connection, r reply) {
	data, err := json.Marshal(r)
	if err != nil {
		h.logger.Error("failed to marshal reply", "method", r.Method, "error", err)
		return
	}
	conn.Send(data)
}

// OnConnect registers the connection's presence and resolves any pending
// reconnect.
func (h *Hub) OnConnect(conn *wss.Connection) {
	ctx := context.Background()

	result, err := h.sessions.Connect(ctx, conn.UserID, conn.ConnectionID)
	if err != nil {
		h.logger.Error("session connect failed", "userId", conn.UserID, "error", err)
		return
	}
	if result.Resumed {
		if state, err := h.currentState(ctx, result.RoomID); err == nil {
			h.broadcaster.GameState(result.RoomID, state)
		}
	}
}

// OnDisconnect records the drop and opens a reclaim window if the user was
// seated.
func (h *Hub) OnDisconnect(conn *wss.Connection) {
	ctx := context.Background()

	roomID, _, err := h.registry.GetUserRoom(ctx, conn.UserID)
	if err != nil {
		h.logger.Warn("failed to resolve user room on disconnect", "userId", conn.UserID, "error", err)
	}
	if err := h.sessions.Disconnect(ctx, conn.UserID, conn.ConnectionID, roomID); err != nil {
		h.logger.Warn("session disconnect failed", "userId", conn.UserID, "error", err)
	}
}

// OnMessage decodes one client frame and dispatches to the matching
// method, replying with the same requestId the caller supplied.
func (h *Hub) OnMessage(conn *wss.Connection, data []byte) {
	ctx := context.Background()

	var f frame
	if err := json.Unmarshal(data, &f); err != nil {
		h.sendReply(conn, reply{Success: false, Error: "malformed frame"})
		return
	}

	allowed, err := h.registry.CheckRateLimit(ctx, conn.UserID, h.rateLimit, h.rateLimitWindow)
	if err != nil {
		h.sendReply(conn, reply{RequestID: f.RequestID, Method: f.Method, Success: false, Error: ports.ErrSystemOverloaded.Error()})
		return
	}
	if !allowed {
		h.sendReply(conn, reply{RequestID: f.RequestID, Method: f.Method, Success: false, Error: "rate limit exceeded"})
		return
	}

	var (
		out any
		rerr error
	)
	switch f.Method {
	case "CreateRoom":
		out, rerr = h.handleCreateRoom(ctx, conn, f.Params)
	case "JoinRoom":
		out, rerr = h.handleJoinRoom(ctx, conn, f.Params)
	case "LeaveRoom":
		out, rerr = h.handleLeaveRoom(ctx, conn, f.Params)
	case "SpectateRoom":
		out, rerr = h.handleSpectateRoom(ctx, conn, f.Params)
	case "StopSpectating":
		out, rerr = h.handleStopSpectating(ctx, conn, f.Params)
	case "PerformAction":
		out, rerr = h.handlePerformAction(ctx, conn, f.Params)
	case "GetLegalActions":
		out, rerr = h.handleGetLegalActions(ctx, conn, f.Params)
	case "GetState":
		out, rerr = h.handleGetState(ctx, conn, f.Params)
	case "SendChatMessage":
		out, rerr = h.handleSendChatMessage(ctx, conn, f.Params)
	default:
		rerr = fmt.Errorf("%w: %s", ports.ErrUnknownAction, f.Method)
	}

	if rerr != nil {
		h.sendReply(conn, reply{RequestID: f.RequestID, Method: f.Method, Success: false, Error: rerr.Error()})
		return
	}
	h.sendReply(conn, reply{RequestID: f.RequestID, Method: f.Method, Success: true, Data: out})
}

func (h *Hub) currentState(ctx context.Context, roomID string) (json.RawMessage, error) {
	gameType, ok, err := h.registry.GetGameType(ctx, roomID)
	if err != nil || !ok {
		return nil, fmt.Errorf("%w: %s", ports.ErrRoomNotFound, roomID)
	}
	desc, ok := gamemodule.Lookup(gameType)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ports.ErrRoomNotFound, roomID)
	}
	resp, err := desc.Engine.GetStateAsync(ctx, roomID)
	if err != nil {
		return nil, err
	}
	return json.Marshal(resp)
}

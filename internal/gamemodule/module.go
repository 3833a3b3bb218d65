// Package gamemodule defines the contract a rule engine must satisfy to
// embed into the room runtime, and the descriptor table game modules
// register themselves into at process init instead of relying on runtime
// reflection for module discovery.
package gamemodule

import "context"

// Command is one client-issued action against a room.
type Command struct {
	UserID  string
	Action  string
	Payload map[string]any
}

// ActionResult is what an engine returns from ExecuteAsync. NewState is
// the raw encoded state blob (via internal/codec) so the engine stays the
// only thing that knows T; the runtime never decodes it, only forwards it
// to the broadcaster and room store.
type ActionResult struct {
	Success      bool
	ErrorMessage string
	NewState     []byte
	Events       []Event
	GameEnded    bool
	EndedPayload *GameEndedInfo // set iff GameEnded
}

// Event is one broadcaster-bound game event, carried opaque to the
// runtime.
type Event struct {
	Name string
	Data map[string]any
}

// GameEndedInfo carries what the outbox needs to trigger payout and
// archival.
type GameEndedInfo struct {
	TotalPot     int64
	WinnerUserID string
	Ranking      []string // userIds, best first; empty means no ranking
}

// StateResponse is the read-only projection returned by GetStateAsync.
type StateResponse struct {
	RoomID     string
	GameType   string
	Meta       map[string]any
	State      []byte
	LegalMoves []string
}

// Engine is the interface a rule engine must implement to embed into the
// runtime. Exactly one Engine (a singleton) is registered per gameType.
//
// The dispatcher only guarantees per-room serialization of the calls it
// routes through it — it holds no store lock of its own. An implementation
// that touches store state (ExecuteAsync, CheckTimeoutsAsync) is
// responsible for bracketing its own Load/mutate/Save with
// store.TryLock/Unlock, the way internal/games/race and internal/games/reveal
// both do.
type Engine interface {
	ExecuteAsync(ctx context.Context, roomID string, cmd Command) (ActionResult, error)
	GetLegalActionsAsync(ctx context.Context, roomID, userID string) ([]string, error)
	GetStateAsync(ctx context.Context, roomID string) (*StateResponse, error)
	GetManyStatesAsync(ctx context.Context, roomIDs []string) (map[string]*StateResponse, error)
	GetManyMetasAsync(ctx context.Context, roomIDs []string) (map[string]map[string]any, error)
}

// TurnBased is implemented by engines with a turn concept. Engines with no
// notion of turn order (a single-player reveal game) omit it — the
// scheduler type-asserts for this interface before scheduling timeouts.
type TurnBased interface {
	Engine
	TurnTimeoutSeconds() int
	CheckTimeoutsAsync(ctx context.Context, roomID string) (*ActionResult, error)
}

// JoinResult is the outcome of RoomService.JoinRoom.
type JoinResult struct {
	Success bool
	Seat    int
	Error   string
}

// RoomService is the room-lifecycle surface a module exposes alongside its
// Engine.
type RoomService interface {
	CreateRoom(ctx context.Context, meta RoomMetaInput) (string, error)
	JoinRoom(ctx context.Context, roomID, userID string) (JoinResult, error)
	LeaveRoom(ctx context.Context, roomID, userID string) error
	GetRoomMeta(ctx context.Context, roomID string) (map[string]any, bool, error)
	DeleteRoom(ctx context.Context, roomID string) error
}

// RoomMetaInput is what CreateRoom needs from the hub; it deliberately
// mirrors domain.RoomMeta's constructor fields without importing
// internal/domain, keeping the contract package dependency-free.
type RoomMetaInput struct {
	GameType   string
	MaxSeats   int
	Visibility string
	EntryFee   int64
	Config     map[string]string
	CreatorID  string
}

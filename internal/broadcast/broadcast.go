// Package broadcast implements the room-scoped fan-out surface: eight
// typed messages delivered to a room's seated players and, best-effort, to
// its spectators. Broadcast preserves call order — it never reorders or
// batches — and does no per-room serialization of its own; its callers
// (the hub, the scheduler, the session manager) invoke it from their own
// goroutines, outside internal/dispatch's per-room shards.
package broadcast

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	pkgredis "github.com/arcaderun/roomrt/pkg/redis"
)

// MessageType names one of the eight broadcaster-level message shapes.
type MessageType string

const (
	MsgGameState          MessageType = "GameState"
	MsgPlayerJoined       MessageType = "PlayerJoined"
	MsgPlayerLeft         MessageType = "PlayerLeft"
	MsgPlayerDisconnected MessageType = "PlayerDisconnected"
	MsgPlayerReconnected  MessageType = "PlayerReconnected"
	MsgGameEvent          MessageType = "GameEvent"
	MsgActionError        MessageType = "ActionError"
	MsgChatMessage        MessageType = "ChatMessage"
)

// Envelope is the wire shape every broadcast message rides in.
type Envelope struct {
	Type MessageType `json:"type"`
	Data any         `json:"data"`
}

type gameStatePayload struct {
	State json.RawMessage `json:"state"`
}

type playerJoinedPayload struct {
	UserID    string `json:"userId"`
	UserName  string `json:"userName"`
	SeatIndex int    `json:"seatIndex"`
}

type playerLeftPayload struct {
	UserID   string `json:"userId"`
	UserName string `json:"userName"`
}

type playerDisconnectedPayload struct {
	UserID              string `json:"userId"`
	UserName            string `json:"userName"`
	GracePeriodSeconds  int    `json:"gracePeriodSeconds"`
}

type playerReconnectedPayload struct {
	UserID   string `json:"userId"`
	UserName string `json:"userName"`
}

type gameEventPayload struct {
	Name      string         `json:"name"`
	Data      map[string]any `json:"data"`
	Timestamp int64          `json:"timestamp"`
}

type actionErrorPayload struct {
	Action  string `json:"action"`
	Message string `json:"message"`
}

type chatMessagePayload struct {
	UserID    string `json:"userId"`
	UserName  string `json:"userName"`
	Text      string `json:"text"`
	Timestamp int64  `json:"timestamp"`
}

// Sender delivers one already-marshaled frame to a single user's live
// connections. pkg/wss's Server satisfies this via SendToUser.
type Sender interface {
	SendToUser(userID string, data []byte) int
}

// Publisher is the slice of pkg/redis.Client a Broadcaster needs to fan a
// room event out across every node in the cluster. Sender only reaches
// connections held by this process; a room's seated players can be split
// across many pods, so a locally-computed state change needs a relay to
// reach players whose websocket landed elsewhere.
type Publisher interface {
	Publish(ctx context.Context, channel string, message any) error
	Subscribe(ctx context.Context, channel string, handler pkgredis.MessageHandler) error
}

const clusterChannel = "roomrt:broadcast"

// relayEnvelope is the shape published to clusterChannel. origin lets a
// receiving node recognize and drop its own publishes instead of
// delivering to its local recipients twice.
type relayEnvelope struct {
	Origin   string   `json:"origin"`
	RoomID   string   `json:"roomId"`
	Envelope Envelope `json:"envelope"`
}

// Broadcaster fans typed messages out to a room's players and spectators.
type Broadcaster struct {
	sender Sender
	logger *slog.Logger

	pubsub Publisher
	nodeID string

	mu         sync.RWMutex
	players    map[string]map[string]struct{} // roomId -> userId set
	spectators map[string]map[string]struct{} // roomId -> userId set
}

// New builds a Broadcaster over sender. It delivers only to locally-held
// connections until EnableCluster is called.
func New(sender Sender, logger *slog.Logger) *Broadcaster {
	if logger == nil {
		logger = slog.Default()
	}
	return &Broadcaster{
		sender:     sender,
		logger:     logger.With("component", "broadcaster"),
		players:    make(map[string]map[string]struct{}),
		spectators: make(map[string]map[string]struct{}),
	}
}

// EnableCluster wires b to publish every broadcast onto pubsub and to
// relay events published by other nodes into this node's local
// recipients. nodeID tags this node's own publishes so its own relayed
// copy is recognized and dropped rather than delivered twice. Call once,
// after construction and before serving traffic.
func (b *Broadcaster) EnableCluster(ctx context.Context, pubsub Publisher, nodeID string) error {
	b.pubsub = pubsub
	b.nodeID = nodeID
	return pubsub.Subscribe(ctx, clusterChannel, func(payload string) {
		var msg relayEnvelope
		if err := json.Unmarshal([]byte(payload), &msg); err != nil {
			b.logger.Warn("failed to decode relayed broadcast", "error", err)
			return
		}
		if msg.Origin == b.nodeID {
			return
		}
		b.deliverLocal(msg.RoomID, msg.Envelope)
	})
}

// SubscribePlayer marks userID as a seated participant of roomID for
// fan-out purposes.
func (b *Broadcaster) SubscribePlayer(roomID, userID string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	set, ok := b.players[roomID]
	if !ok {
		set = make(map[string]struct{})
		b.players[roomID] = set
	}
	set[userID] = struct{}{}
}

// UnsubscribePlayer removes userID from roomID's player fan-out set.
func (b *Broadcaster) UnsubscribePlayer(roomID, userID string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if set, ok := b.players[roomID]; ok {
		delete(set, userID)
		if len(set) == 0 {
			delete(b.players, roomID)
		}
	}
}

// SubscribeSpectator adds userID as a best-effort observer of roomID.
func (b *Broadcaster) SubscribeSpectator(roomID, userID string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	set, ok := b.spectators[roomID]
	if !ok {
		set = make(map[string]struct{})
		b.spectators[roomID] = set
	}
	set[userID] = struct{}{}
}

// UnsubscribeSpectator removes userID from roomID's spectator set.
func (b *Broadcaster) UnsubscribeSpectator(roomID, userID string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if set, ok := b.spectators[roomID]; ok {
		delete(set, userID)
		if len(set) == 0 {
			delete(b.spectators, roomID)
		}
	}
}

// DropRoom clears all fan-out subscriptions for roomID, used once a room
// is deleted.
func (b *Broadcaster) DropRoom(roomID string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.players, roomID)
	delete(b.spectators, roomID)
}

func (b *Broadcaster) recipients(roomID string) ([]string, []string) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	players := make([]string, 0, len(b.players[roomID]))
	for userID := range b.players[roomID] {
		players = append(players, userID)
	}
	spectators := make([]string, 0, len(b.spectators[roomID]))
	for userID := range b.spectators[roomID] {
		spectators = append(spectators, userID)
	}
	return players, spectators
}

func (b *Broadcaster) send(roomID string, env Envelope) {
	b.deliverLocal(roomID, env)
	b.publishRemote(roomID, env)
}

func (b *Broadcaster) deliverLocal(roomID string, env Envelope) {
	data, err := json.Marshal(env)
	if err != nil {
		b.logger.Error("failed to marshal broadcast envelope", "roomId", roomID, "type", env.Type, "error", err)
		return
	}
	players, spectators := b.recipients(roomID)
	for _, userID := range players {
		b.sender.SendToUser(userID, data)
	}
	for _, userID := range spectators {
		b.sender.SendToUser(userID, data) // best-effort: no delivery guarantee tracked
	}
}

// publishRemote fans env out to other nodes so players seated in roomID
// but connected through a different pod's websocket server still see it.
// A no-op until EnableCluster has been called.
func (b *Broadcaster) publishRemote(roomID string, env Envelope) {
	if b.pubsub == nil {
		return
	}
	body, err := json.Marshal(relayEnvelope{Origin: b.nodeID, RoomID: roomID, Envelope: env})
	if err != nil {
		b.logger.Error("failed to marshal relay envelope", "roomId", roomID, "type", env.Type, "error", err)
		return
	}
	if err := b.pubsub.Publish(context.Background(), clusterChannel, string(body)); err != nil {
		b.logger.Warn("failed to publish broadcast to cluster", "roomId", roomID, "error", err)
	}
}

// GameState fans out the room's current encoded state.
func (b *Broadcaster) GameState(roomID string, state json.RawMessage) {
	b.send(roomID, Envelope{Type: MsgGameState, Data: gameStatePayload{State: state}})
}

// PlayerJoined announces a new seat assignment.
func (b *Broadcaster) PlayerJoined(roomID, userID, userName string, seatIndex int) {
	b.send(roomID, Envelope{Type: MsgPlayerJoined, Data: playerJoinedPayload{UserID: userID, UserName: userName, SeatIndex: seatIndex}})
}

// PlayerLeft announces a voluntary departure.
func (b *Broadcaster) PlayerLeft(roomID, userID, userName string) {
	b.send(roomID, Envelope{Type: MsgPlayerLeft, Data: playerLeftPayload{UserID: userID, UserName: userName}})
}

// PlayerDisconnected announces a transport drop and the reclaim window.
func (b *Broadcaster) PlayerDisconnected(roomID, userID, userName string, gracePeriodSeconds int) {
	b.send(roomID, Envelope{Type: MsgPlayerDisconnected, Data: playerDisconnectedPayload{UserID: userID, UserName: userName, GracePeriodSeconds: gracePeriodSeconds}})
}

// PlayerReconnected announces a successful reclaim.
func (b *Broadcaster) PlayerReconnected(roomID, userID, userName string) {
	b.send(roomID, Envelope{Type: MsgPlayerReconnected, Data: playerReconnectedPayload{UserID: userID, UserName: userName}})
}

// GameEvent fans out an opaque engine-emitted event.
func (b *Broadcaster) GameEvent(roomID, name string, data map[string]any) {
	b.send(roomID, Envelope{Type: MsgGameEvent, Data: gameEventPayload{Name: name, Data: data, Timestamp: time.Now().UnixMilli()}})
}

// ActionError is delivered to the acting user only, not the whole room.
func (b *Broadcaster) ActionError(roomID, userID, action, message string) {
	data, err := json.Marshal(Envelope{Type: MsgActionError, Data: actionErrorPayload{Action: action, Message: message}})
	if err != nil {
		b.logger.Error("failed to marshal action error", "roomId", roomID, "error", err)
		return
	}
	b.sender.SendToUser(userID, data)
}

// ChatMessage fans out a room chat line.
func (b *Broadcaster) ChatMessage(roomID, userID, userName, text string) {
	b.send(roomID, Envelope{Type: MsgChatMessage, Data: chatMessagePayload{UserID: userID, UserName: userName, Text: text, Timestamp: time.Now().UnixMilli()}})
}

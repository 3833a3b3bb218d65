package broadcast

import (
	"context"
	"encoding/json"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	pkgredis "github.com/arcaderun/roomrt/pkg/redis"
)

type recordingSender struct {
	mu   sync.Mutex
	sent map[string][][]byte
}

func newRecordingSender() *recordingSender {
	return &recordingSender{sent: make(map[string][][]byte)}
}

func (s *recordingSender) SendToUser(userID string, data []byte) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sent[userID] = append(s.sent[userID], data)
	return 1
}

func (s *recordingSender) countFor(userID string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sent[userID])
}

func TestGameStateReachesSubscribedPlayersAndSpectators(t *testing.T) {
	sender := newRecordingSender()
	b := New(sender, nil)
	b.SubscribePlayer("room-1", "alice")
	b.SubscribeSpectator("room-1", "carol")

	b.GameState("room-1", json.RawMessage(`{"foo":1}`))

	assert.Equal(t, 1, sender.countFor("alice"))
	assert.Equal(t, 1, sender.countFor("carol"))
	assert.Equal(t, 0, sender.countFor("bob"))
}

func TestUnsubscribeStopsFurtherDelivery(t *testing.T) {
	sender := newRecordingSender()
	b := New(sender, nil)
	b.SubscribePlayer("room-1", "alice")
	b.UnsubscribePlayer("room-1", "alice")

	b.PlayerJoined("room-1", "bob", "Bob", 0)

	assert.Equal(t, 0, sender.countFor("alice"))
}

func TestDropRoomClearsBothSets(t *testing.T) {
	sender := newRecordingSender()
	b := New(sender, nil)
	b.SubscribePlayer("room-1", "alice")
	b.SubscribeSpectator("room-1", "carol")

	b.DropRoom("room-1")
	b.ChatMessage("room-1", "bob", "Bob", "hi")

	assert.Equal(t, 0, sender.countFor("alice"))
	assert.Equal(t, 0, sender.countFor("carol"))
}

func TestActionErrorGoesOnlyToActingUser(t *testing.T) {
	sender := newRecordingSender()
	b := New(sender, nil)
	b.SubscribePlayer("room-1", "alice")
	b.SubscribePlayer("room-1", "bob")

	b.ActionError("room-1", "alice", "roll", "not your turn")

	assert.Equal(t, 1, sender.countFor("alice"))
	assert.Equal(t, 0, sender.countFor("bob"))
}

type fakePubsub struct {
	mu        sync.Mutex
	published []string
	handler   pkgredis.MessageHandler
}

func (f *fakePubsub) Publish(_ context.Context, _ string, message any) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.published = append(f.published, message.(string))
	return nil
}

func (f *fakePubsub) Subscribe(_ context.Context, _ string, handler pkgredis.MessageHandler) error {
	f.handler = handler
	return nil
}

func (f *fakePubsub) deliver(payload string) {
	f.handler(payload)
}

func TestEnableClusterPublishesEveryLocalBroadcast(t *testing.T) {
	sender := newRecordingSender()
	b := New(sender, nil)
	pubsub := &fakePubsub{}
	require.NoError(t, b.EnableCluster(context.Background(), pubsub, "node-a"))

	b.GameState("room-1", json.RawMessage(`{}`))

	pubsub.mu.Lock()
	defer pubsub.mu.Unlock()
	require.Len(t, pubsub.published, 1)

	var relayed relayEnvelope
	require.NoError(t, json.Unmarshal([]byte(pubsub.published[0]), &relayed))
	assert.Equal(t, "node-a", relayed.Origin)
	assert.Equal(t, "room-1", relayed.RoomID)
	assert.Equal(t, MsgGameState, relayed.Envelope.Type)
}

func TestClusterRelayDeliversRemoteOriginLocally(t *testing.T) {
	sender := newRecordingSender()
	b := New(sender, nil)
	pubsub := &fakePubsub{}
	require.NoError(t, b.EnableCluster(context.Background(), pubsub, "node-a"))
	b.SubscribePlayer("room-1", "alice")

	remote := relayEnvelope{Origin: "node-b", RoomID: "room-1", Envelope: Envelope{Type: MsgPlayerJoined, Data: playerJoinedPayload{UserID: "bob", UserName: "Bob", SeatIndex: 1}}}
	body, err := json.Marshal(remote)
	require.NoError(t, err)

	pubsub.deliver(string(body))

	assert.Equal(t, 1, sender.countFor("alice"))
}

func TestClusterRelayDropsSelfOriginatedMessages(t *testing.T) {
	sender := newRecordingSender()
	b := New(sender, nil)
	pubsub := &fakePubsub{}
	require.NoError(t, b.EnableCluster(context.Background(), pubsub, "node-a"))
	b.SubscribePlayer("room-1", "alice")

	own := relayEnvelope{Origin: "node-a", RoomID: "room-1", Envelope: Envelope{Type: MsgPlayerLeft, Data: playerLeftPayload{UserID: "bob", UserName: "Bob"}}}
	body, err := json.Marshal(own)
	require.NoError(t, err)

	pubsub.deliver(string(body))

	assert.Equal(t, 0, sender.countFor("alice"))
}

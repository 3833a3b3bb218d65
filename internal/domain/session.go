package domain

import "time"

// ConnectionEntry tracks one live connection for a user. A user may hold
// several (multiple tabs/devices); "online" means at least one entry has
// not expired past its TTL.
type ConnectionEntry struct {
	UserID        string    `json:"userId"`
	ConnectionID  string    `json:"connectionId"`
	LastHeartbeat time.Time `json:"lastHeartbeat"`
}

// ConnectionTTL is the window after which a heartbeat is considered stale
// and the entry is pruned lazily on next access.
const ConnectionTTL = 2 * time.Minute

// DisconnectTicket is queued when a seated user's connection count drops
// to zero. If no reconnect claims it before ExpiresAt, the cleanup worker
// removes the user from the room.
type DisconnectTicket struct {
	UserID    string    `json:"userId"`
	RoomID    string    `json:"roomId"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// TicketRetention is added on top of the grace period so an already-expired
// ticket remains visible to late reconnect checks for a short window before
// the cleanup worker's own removal completes.
const TicketRetention = 5 * time.Minute

// TimeoutEntry is one row of the turn-due index; the scheduler pulls the
// lowest-scoring entries whose DueAt has passed.
type TimeoutEntry struct {
	RoomID   string    `json:"roomId"`
	GameType string    `json:"gameType"`
	DueAt    time.Time `json:"dueAt"`
}

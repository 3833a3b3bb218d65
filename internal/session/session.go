// Package session implements connection lifecycle: connect/disconnect/
// reconnect bookkeeping against the presence registry, and the 1s cleanup
// worker that evicts users whose disconnect grace period has elapsed.
package session

import (
	"context"
	"log/slog"
	"time"

	"github.com/arcaderun/roomrt/internal/broadcast"
	"github.com/arcaderun/roomrt/internal/gamemodule"
	"github.com/arcaderun/roomrt/internal/registry"
)

const cleanupInterval = 1 * time.Second
const cleanupBatchSize = 100

// UserDirectory resolves a display name for broadcast messages. The room
// runtime does not own user profiles; callers wire in whatever identity
// service they have, or a passthrough that echoes userID.
type UserDirectory interface {
	DisplayName(ctx context.Context, userID string) string
}

// Manager owns connect/disconnect/reconnect transitions and the cleanup
// worker described for session lifecycle.
type Manager struct {
	registry    *registry.Registry
	broadcaster *broadcast.Broadcaster
	names       UserDirectory
	gracePeriod time.Duration
	logger      *slog.Logger
}

// New builds a session Manager.
func New(reg *registry.Registry, broadcaster *broadcast.Broadcaster, names UserDirectory, gracePeriod time.Duration, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{
		registry:    reg,
		broadcaster: broadcaster,
		names:       names,
		gracePeriod: gracePeriod,
		logger:      logger.With("component", "session"),
	}
}

// ConnectResult tells the caller whether this connect is a fresh session or
// a reconnect into an existing room.
type ConnectResult struct {
	Resumed bool
	RoomID  string
}

// Connect registers (userID, connectionID), touches presence, and checks
// for a pending disconnect ticket to reclaim.
func (m *Manager) Connect(ctx context.Context, userID, connectionID string) (ConnectResult, error) {
	if err := m.registry.Touch(ctx, userID, connectionID); err != nil {
		return ConnectResult{}, err
	}

	ticket, found, err := m.registry.GetDisconnectTicket(ctx, userID)
	if err != nil {
		return ConnectResult{}, err
	}
	if !found {
		return ConnectResult{}, nil
	}

	if err := m.registry.RemoveDisconnectTicket(ctx, userID); err != nil {
		return ConnectResult{}, err
	}
	m.broadcaster.PlayerReconnected(ticket.RoomID, userID, m.names.DisplayName(ctx, userID))
	return ConnectResult{Resumed: true, RoomID: ticket.RoomID}, nil
}

// Disconnect removes the connection and, if the user has no more live
// connections and is seated in a room, opens a reclaim window.
func (m *Manager) Disconnect(ctx context.Context, userID, connectionID, roomID string) error {
	if err := m.registry.RemoveConnection(ctx, userID, connectionID); err != nil {
		return err
	}

	if roomID == "" {
		return nil
	}
	remaining, err := m.registry.ConnectionCount(ctx, userID)
	if err != nil {
		return err
	}
	if remaining > 0 {
		return nil
	}

	if _, err := m.registry.CreateDisconnectTicket(ctx, userID, roomID, m.gracePeriod); err != nil {
		return err
	}
	m.broadcaster.PlayerDisconnected(roomID, userID, m.names.DisplayName(ctx, userID), int(m.gracePeriod.Seconds()))
	return nil
}

// RunCleanupWorker drains expired disconnect tickets until ctx is
// cancelled. Every node runs this — it is not leader-gated because each
// ticket is a unique key removed exactly once. The owning game module for
// each ticket's room is resolved through gamemodule.Lookup rather than
// injected, since a single process hosts many registered game types at
// once and a ticket only carries a roomId.
func (m *Manager) RunCleanupWorker(ctx context.Context) {
	ticker := time.NewTicker(cleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.sweepExpiredTickets(ctx)
		}
	}
}

func (m *Manager) sweepExpiredTickets(ctx context.Context) {
	tickets, err := m.registry.GetExpiredTickets(ctx, time.Now(), cleanupBatchSize)
	if err != nil {
		m.logger.Error("failed to list expired disconnect tickets", "error", err)
		return
	}

	for _, ticket := range tickets {
		gameType, ok, err := m.registry.GetGameType(ctx, ticket.RoomID)
		if err != nil || !ok {
			m.logger.Warn("cleanup worker could not resolve game type", "roomId", ticket.RoomID, "error", err)
			_ = m.registry.RemoveDisconnectTicket(ctx, ticket.UserID)
			continue
		}
		desc, ok := gamemodule.Lookup(gameType)
		if !ok {
			m.logger.Warn("cleanup worker found no module for game type", "gameType", gameType, "roomId", ticket.RoomID)
			_ = m.registry.RemoveDisconnectTicket(ctx, ticket.UserID)
			continue
		}
		if err := desc.RoomService.LeaveRoom(ctx, ticket.RoomID, ticket.UserID); err != nil {
			m.logger.Warn("cleanup worker leave failed", "roomId", ticket.RoomID, "userId", ticket.UserID, "error", err)
			continue
		}
		if err := m.registry.ClearUserRoom(ctx, ticket.UserID); err != nil {
			m.logger.Warn("cleanup worker failed to clear user room mapping", "userId", ticket.UserID, "error", err)
		}
		if err := m.registry.RemoveDisconnectTicket(ctx, ticket.UserID); err != nil {
			m.logger.Warn("cleanup worker failed to remove ticket", "userId", ticket.UserID, "error", err)
		}
		m.broadcaster.PlayerLeft(ticket.RoomID, ticket.UserID, m.names.DisplayName(ctx, ticket.UserID))
		m.logger.Info("disconnect grace period expired", "roomId", ticket.RoomID, "userId", ticket.UserID)
	}
}

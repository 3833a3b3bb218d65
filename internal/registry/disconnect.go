package registry

import (
	"context"
	"fmt"
	"time"

	"github.com/arcaderun/roomrt/internal/domain"
)

// CreateDisconnectTicket queues a reclaim window for userID in roomID,
// expiring gracePeriod from now.
func (r *Registry) CreateDisconnectTicket(ctx context.Context, userID, roomID string, gracePeriod time.Duration) (*domain.DisconnectTicket, error) {
	expiresAt := time.Now().Add(gracePeriod)
	if err := r.rdb.ZAdd(ctx, keyDisconnectedIndex, float64(expiresAt.Unix()), userID); err != nil {
		return nil, fmt.Errorf("registry: queue disconnect ticket: %w", err)
	}
	if err := r.rdb.SetStruct(ctx, disconnectedUserKey(userID), roomID, gracePeriod+domain.TicketRetention); err != nil {
		return nil, fmt.Errorf("registry: record disconnect room: %w", err)
	}
	return &domain.DisconnectTicket{UserID: userID, RoomID: roomID, ExpiresAt: expiresAt}, nil
}

// GetDisconnectTicket looks up a pending ticket for userID, used on
// reconnect to resume into the room and cancel the ticket.
func (r *Registry) GetDisconnectTicket(ctx context.Context, userID string) (*domain.DisconnectTicket, bool, error) {
	var roomID string
	if err := r.rdb.GetStruct(ctx, disconnectedUserKey(userID), &roomID); err != nil {
		return nil, false, nil
	}
	score, err := r.rdb.ZScore(ctx, keyDisconnectedIndex, userID)
	if err != nil {
		return nil, false, nil
	}
	return &domain.DisconnectTicket{UserID: userID, RoomID: roomID, ExpiresAt: time.Unix(int64(score), 0)}, true, nil
}

// RemoveDisconnectTicket cancels a pending ticket, e.g. on reconnect claim
// or after the cleanup worker has acted on it.
func (r *Registry) RemoveDisconnectTicket(ctx context.Context, userID string) error {
	if err := r.rdb.ZRem(ctx, keyDisconnectedIndex, userID); err != nil {
		return err
	}
	return r.rdb.Del(ctx, disconnectedUserKey(userID))
}

// GetExpiredTickets returns up to limit disconnect tickets whose grace
// period has elapsed, for the cleanup worker.
func (r *Registry) GetExpiredTickets(ctx context.Context, now time.Time, limit int64) ([]*domain.DisconnectTicket, error) {
	userIDs, err := r.rdb.ZRangeByScore(ctx, keyDisconnectedIndex, "-inf", fmt.Sprintf("%d", now.Unix()), limit)
	if err != nil {
		return nil, err
	}
	tickets := make([]*domain.DisconnectTicket, 0, len(userIDs))
	for _, userID := range userIDs {
		ticket, ok, err := r.GetDisconnectTicket(ctx, userID)
		if err != nil {
			return nil, err
		}
		if !ok {
			// Room string expired out of the retention window; still drop
			// the index entry so the sweep doesn't spin on it forever.
			_ = r.rdb.ZRem(ctx, keyDisconnectedIndex, userID)
			continue
		}
		tickets = append(tickets, ticket)
	}
	return tickets, nil
}

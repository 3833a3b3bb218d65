// Package economy implements the four wallet operations the room runtime
// depends on: entry-fee reservation/commit/refund and game-payout
// distribution. It is the economy's interface boundary as
// consumed by the core — the wallet UI, KYC, and deposit rails are out of
// scope.
package economy

import (
	"context"

	"gorm.io/gorm"

	"github.com/arcaderun/roomrt/internal/domain"
)

// Service is what internal/gamemodule's RoomService implementations and
// the outbox's GameEnded handler call into.
type Service interface {
	ReserveEntryFee(ctx context.Context, userID string, fee int64, roomID string) (domain.Reservation, error)
	CommitEntryFee(ctx context.Context, reservation domain.Reservation) error
	RefundEntryFee(ctx context.Context, reservation domain.Reservation) error
	// ProcessGamePayouts runs entirely inside tx, the caller's own
	// transaction, so payout and whatever the caller writes alongside it
	// (the outbox worker's archive row) commit or roll back together.
	ProcessGamePayouts(ctx context.Context, tx *gorm.DB, input PayoutInput) error
}

// PayoutInput bundles ProcessGamePayouts's parameters.
type PayoutInput struct {
	RoomID       string
	GameType     string
	TotalPot     int64
	Seats        map[string]int // userId -> seat, used only to know who was seated for equal-refund fallback
	WinnerUserID string         // optional
	Ranking      []string       // optional, userIds best-first; mutually exclusive semantics with WinnerUserID per table below
}

// rakeBps is the fixed 3% rake taken before distribution.
const rakeBps = 300

// harmonicTables gives the normalized payout share (summing to 1) for each
// rank of a ranking, keyed by participant count.
var harmonicTables = map[int][]float64{
	2: {0.7, 0.3},
	3: {0.5, 0.3, 0.2},
	4: {0.4, 0.3, 0.2, 0.1},
}

func applyRake(totalPot int64) (net int64, rake int64) {
	rake = totalPot * rakeBps / 10000
	return totalPot - rake, rake
}

// Package outbox implements the transactional-outbox drain worker: once an
// engine reports a terminal game state, the hub or the scheduler inserts an
// OutboxRecord (a MySQL write separate from the room's Redis state save),
// and this worker is what actually calls the economy and writes
// the archive, retried independently of the room's own lifecycle.
package outbox

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"gorm.io/gorm"

	"github.com/arcaderun/roomrt/internal/domain"
	"github.com/arcaderun/roomrt/internal/economy"
	pkgmysql "github.com/arcaderun/roomrt/pkg/mysql"
)

const (
	drainInterval   = 5 * time.Second
	drainBatchSize  = 100
	maxAttempts     = 5
	cleanupInterval = 1 * time.Hour
	retentionPeriod = 7 * 24 * time.Hour
	maxErrorLen     = 500
)

// Handler processes one outbox event type inside the same transaction the
// row's processedAt update is written in.
type Handler func(ctx context.Context, tx *gorm.DB, payload []byte) error

// Worker drains internal/domain.OutboxRecord rows and dispatches them by
// EventType. Every node runs it; a row is only ever claimed by one node
// because ProcessedAt is written inside the same transaction the handler
// runs in, by an update that matches only a still-unprocessed row: a
// transaction whose update matches nothing rolls back, handler effects
// included, and the next scan's WHERE clause excludes the row.
type Worker struct {
	client   *pkgmysql.Client
	handlers map[string]Handler
	logger   *slog.Logger
}

// New builds a Worker with the mandatory GameEnded handler pre-registered.
func New(client *pkgmysql.Client, econ economy.Service, logger *slog.Logger) *Worker {
	if logger == nil {
		logger = slog.Default()
	}
	w := &Worker{
		client:   client,
		handlers: make(map[string]Handler),
		logger:   logger.With("component", "outbox"),
	}
	w.RegisterHandler(domain.EventGameEnded, gameEndedHandler(econ))
	return w
}

// RegisterHandler installs a handler for eventType, overwriting any
// previous registration. Game modules with side effects beyond payout can
// register their own event types here.
func (w *Worker) RegisterHandler(eventType string, h Handler) {
	w.handlers[eventType] = h
}

// Run drains and cleans up on their respective cadences until ctx is
// cancelled.
func (w *Worker) Run(ctx context.Context) {
	drainTicker := time.NewTicker(drainInterval)
	cleanupTicker := time.NewTicker(cleanupInterval)
	defer drainTicker.Stop()
	defer cleanupTicker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-drainTicker.C:
			w.drainOnce(ctx)
		case <-cleanupTicker.C:
			w.cleanupOnce(ctx)
		}
	}
}

func (w *Worker) drainOnce(ctx context.Context) {
	var rows []domain.OutboxRecord
	err := w.client.DB().WithContext(ctx).
		Where("processed_at IS NULL AND attempts < ?", maxAttempts).
		Order("created_at ASC").
		Limit(drainBatchSize).
		Find(&rows).Error
	if err != nil {
		w.logger.Error("failed to read outbox rows", "error", err)
		return
	}

	for _, row := range rows {
		w.process(ctx, row)
	}
}

func (w *Worker) process(ctx context.Context, row domain.OutboxRecord) {
	handler, ok := w.handlers[row.EventType]
	if !ok {
		w.logger.Warn("no handler registered for outbox event type", "eventType", row.EventType, "id", row.ID)
		w.markFailed(ctx, row, fmt.Errorf("no handler for event type %q", row.EventType))
		return
	}

	errAlreadyProcessed := errors.New("outbox: row already processed by another node")
	err := w.client.DB().WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := handler(ctx, tx, []byte(row.Payload)); err != nil {
			return err
		}
		now := time.Now()
		res := tx.Model(&domain.OutboxRecord{}).Where("id = ? AND processed_at IS NULL", row.ID).Update("processed_at", now)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return errAlreadyProcessed
		}
		return nil
	})
	if errors.Is(err, errAlreadyProcessed) {
		return
	}
	if err != nil {
		w.markFailed(ctx, row, err)
		return
	}
}

func (w *Worker) markFailed(ctx context.Context, row domain.OutboxRecord, cause error) {
	msg := cause.Error()
	if len(msg) > maxErrorLen {
		msg = msg[:maxErrorLen]
	}
	w.logger.Error("outbox row failed", "id", row.ID, "eventType", row.EventType, "attempts", row.Attempts+1, "error", cause)
	err := w.client.DB().WithContext(ctx).Model(&domain.OutboxRecord{}).
		Where("id = ?", row.ID).
		Updates(map[string]any{"attempts": row.Attempts + 1, "last_error": msg}).Error
	if err != nil {
		w.logger.Error("failed to record outbox failure", "id", row.ID, "error", err)
	}
}

func (w *Worker) cleanupOnce(ctx context.Context) {
	cutoff := time.Now().Add(-retentionPeriod)
	err := w.client.DB().WithContext(ctx).
		Where("processed_at IS NOT NULL AND processed_at < ?", cutoff).
		Or("attempts >= ? AND created_at < ?", maxAttempts, cutoff).
		Delete(&domain.OutboxRecord{}).Error
	if err != nil {
		w.logger.Error("outbox cleanup failed", "error", err)
	}
}

// gameEndedHandler processes the only mandatory outbox event: it pays out
// per the ranking/winner semantics and archives the final state, both
// under the row's own transaction.
func gameEndedHandler(econ economy.Service) Handler {
	return func(ctx context.Context, tx *gorm.DB, payload []byte) error {
		var ended domain.GameEndedPayload
		if err := json.Unmarshal(payload, &ended); err != nil {
			return fmt.Errorf("outbox: decode GameEnded payload: %w", err)
		}

		if err := econ.ProcessGamePayouts(ctx, tx, economy.PayoutInput{
			RoomID:       ended.RoomID,
			GameType:     ended.GameType,
			TotalPot:     ended.TotalPot,
			Seats:        ended.Seats,
			WinnerUserID: ended.WinnerUserID,
			Ranking:      ended.Ranking,
		}); err != nil {
			return fmt.Errorf("outbox: process game payouts: %w", err)
		}

		seatsJSON, err := json.Marshal(ended.Seats)
		if err != nil {
			return err
		}

		archive := domain.ArchivedGame{
			RoomID:          ended.RoomID,
			GameType:        ended.GameType,
			FinalStateJSON:  string(ended.FinalState),
			PlayerSeatsJSON: string(seatsJSON),
			WinnerUserID:    ended.WinnerUserID,
			TotalPot:        ended.TotalPot,
			StartedAt:       ended.StartedAt,
			EndedAt:         ended.EndedAt,
		}
		err = tx.Create(&archive).Error
		if err != nil && errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil // already archived by a prior attempt
		}
		return err
	}
}

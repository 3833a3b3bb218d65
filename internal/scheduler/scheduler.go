// Package scheduler implements the leader-elected turn-timeout sweep: one
// node at a time scans every registered turn-based game type for rooms
// whose current turn has expired and lets the engine decide what happens
// next.
package scheduler

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/arcaderun/roomrt/internal/broadcast"
	"github.com/arcaderun/roomrt/internal/dispatch"
	"github.com/arcaderun/roomrt/internal/domain"
	"github.com/arcaderun/roomrt/internal/gamemodule"
	"github.com/arcaderun/roomrt/internal/registry"
	"gorm.io/gorm"
)

const (
	renewInterval    = 5 * time.Second
	dueBatchSize     = int64(50)
	lockAcquireTTL   = 10 * time.Second
	defaultFanoutCap = 10
)

// OutboxWriter is the slice of GORM the scheduler needs to record a
// GameEnded event in the same place the outbox worker later drains it.
type OutboxWriter interface {
	Create(value any) *gorm.DB
}

// Scheduler runs the tick loop that only the elected leader executes.
type Scheduler struct {
	workerID    string
	registry    *registry.Registry
	dispatcher  *dispatch.Dispatcher
	broadcaster *broadcast.Broadcaster
	outbox      OutboxWriter
	tickPeriod  time.Duration
	fanoutCap   int
	logger      *slog.Logger

	mu        sync.Mutex
	isLeader  bool
}

// New builds a Scheduler. workerID must be unique per process (pod IP or
// hostname+pid), used both for leader election and as the tiebreaker
// nobody else can forge.
func New(workerID string, reg *registry.Registry, dispatcher *dispatch.Dispatcher, broadcaster *broadcast.Broadcaster, outbox OutboxWriter, tickPeriod time.Duration, logger *slog.Logger) *Scheduler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Scheduler{
		workerID:    workerID,
		registry:    reg,
		dispatcher:  dispatcher,
		broadcaster: broadcaster,
		outbox:      outbox,
		tickPeriod:  tickPeriod,
		fanoutCap:   defaultFanoutCap,
		logger:      logger.With("component", "scheduler", "workerId", workerID),
	}
}

// Run drives the leader-election renewal loop and the tick loop until ctx
// is cancelled. Non-leaders still call TryBecomeLeader every renewInterval; the
// moment the current leader stops renewing, any node picks it up.
func (s *Scheduler) Run(ctx context.Context) {
	ticker := time.NewTicker(s.tickPeriod)
	renewTicker := time.NewTicker(renewInterval)
	defer ticker.Stop()
	defer renewTicker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.stepDownIfLeader(context.Background())
			return
		case <-renewTicker.C:
			s.electOrRenew(ctx)
		case <-ticker.C:
			if s.leading() {
				s.sweepOnce(ctx)
			}
		}
	}
}

func (s *Scheduler) leading() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.isLeader
}

func (s *Scheduler) electOrRenew(ctx context.Context) {
	var ok bool
	var err error
	if s.leading() {
		ok, err = s.registry.ExtendLeadership(ctx, s.workerID)
	} else {
		ok, err = s.registry.TryBecomeLeader(ctx, s.workerID)
	}
	if err != nil {
		// A failed call tells us nothing about who actually holds the
		// lock in Redis — a network blip is not the same thing as
		// losing leadership. Keep the current state and let the next
		// tick resolve it instead of stepping down on a guess, which
		// would risk two nodes believing they're leader at once.
		s.logger.Error("leader election call failed", "error", err)
		return
	}

	s.mu.Lock()
	wasLeader := s.isLeader
	s.isLeader = ok
	s.mu.Unlock()

	if ok && !wasLeader {
		s.logger.Info("acquired game loop leadership")
	} else if !ok && wasLeader {
		s.logger.Warn("lost game loop leadership")
	}
}

func (s *Scheduler) stepDownIfLeader(ctx context.Context) {
	if !s.leading() {
		return
	}
	if err := s.registry.ReleaseLeadership(ctx, s.workerID); err != nil {
		s.logger.Warn("failed to release leadership on shutdown", "error", err)
	}
}

// sweepOnce scans every registered turn-based game type for due rooms and
// processes them with bounded fan-out.
func (s *Scheduler) sweepOnce(ctx context.Context) {
	for _, desc := range gamemodule.All() {
		turnBased, ok := desc.Engine.(gamemodule.TurnBased)
		if !ok {
			continue
		}
		s.sweepGameType(ctx, desc.GameType, turnBased, desc.RoomService)
	}
}

func (s *Scheduler) sweepGameType(ctx context.Context, gameType string, engine gamemodule.TurnBased, rooms gamemodule.RoomService) {
	roomIDs, err := s.registry.GetRoomsDueForTimeout(ctx, gameType, time.Now(), dueBatchSize)
	if err != nil {
		s.logger.Error("failed to list due rooms", "gameType", gameType, "error", err)
		return
	}
	if len(roomIDs) == 0 {
		return
	}

	sem := make(chan struct{}, s.fanoutCap)
	var wg sync.WaitGroup
	for _, roomID := range roomIDs {
		roomID := roomID
		sem <- struct{}{}
		wg.Add(1)
		go func() {
			defer wg.Done()
			defer func() { <-sem }()
			s.processRoom(ctx, gameType, roomID, engine, rooms)
		}()
	}
	wg.Wait()
}

// processRoom handles one due room. The due entry is unregistered
// unconditionally before the check runs, whether or not the timeout actually
// fired anything — the engine itself re-registers the next due time when
// it advances the turn, so the scheduler is never the source of truth for
// when the next check is due.
func (s *Scheduler) processRoom(ctx context.Context, gameType, roomID string, engine gamemodule.TurnBased, rooms gamemodule.RoomService) {
	if err := s.registry.UnregisterTurnTimeout(ctx, gameType, roomID); err != nil {
		s.logger.Warn("failed to unregister due entry", "roomId", roomID, "error", err)
	}

	result, err := s.dispatcher.Dispatch(ctx, roomID, func(ctx context.Context) (any, error) {
		return engine.CheckTimeoutsAsync(ctx, roomID)
	})
	if err != nil {
		s.logger.Warn("timeout check dispatch failed", "roomId", roomID, "gameType", gameType, "error", err)
		return
	}

	res, _ := result.(*gamemodule.ActionResult)
	if res == nil {
		return
	}

	if len(res.NewState) > 0 {
		s.broadcaster.GameState(roomID, res.NewState)
	}
	for _, ev := range res.Events {
		s.broadcaster.GameEvent(roomID, ev.Name, ev.Data)
	}

	if res.GameEnded {
		s.recordGameEnded(ctx, gameType, roomID, res, rooms)
	}
}

func (s *Scheduler) recordGameEnded(ctx context.Context, gameType, roomID string, res *gamemodule.ActionResult, rooms gamemodule.RoomService) {
	if res.EndedPayload == nil {
		return
	}
	seats := map[string]int{}
	if meta, found, err := rooms.GetRoomMeta(ctx, roomID); err == nil && found {
		if raw, ok := meta["seats"].(map[string]int); ok {
			seats = raw
		}
	}
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
		s.logger.Error("failed to marshal GameEnded payload", "roomId", roomID, "error", err)
		return
	}
	record := domain.OutboxRecord{EventType: domain.EventGameEnded, Payload: string(body)}
	if err := s.outbox.Create(&record).Error; err != nil {
		s.logger.Error("failed to write GameEnded outbox record", "roomId", roomID, "error", err)
	}
}

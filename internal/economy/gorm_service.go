package economy

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"sort"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/arcaderun/roomrt/internal/domain"
	"github.com/arcaderun/roomrt/internal/ports"
	pkgmysql "github.com/arcaderun/roomrt/pkg/mysql"
)

// GormService implements Service against the relational schema.
// Reserve and Refund each run inside their own transaction, Commit is a
// single insert, and Payout runs inside the caller's transaction. A
// duplicate idempotency key is detected via the unique index on
// wallet_transactions.idempotency_key: Commit and Refund surface it as
// ErrDuplicateTx, and Payout treats it as an already-credited award.
type GormService struct {
	client       *pkgmysql.Client
	initialCoins int64
	logger       *slog.Logger
}

// NewGormService builds a GormService and ensures its tables exist.
func NewGormService(client *pkgmysql.Client, initialCoins int64, logger *slog.Logger) (*GormService, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if err := client.DB().AutoMigrate(&domain.PlayerProfile{}, &domain.LedgerEntry{}); err != nil {
		return nil, fmt.Errorf("economy: automigrate: %w", err)
	}
	return &GormService{client: client, initialCoins: initialCoins, logger: logger.With("component", "economy")}, nil
}

var _ Service = (*GormService)(nil)

func isDuplicateKeyErr(err error) bool {
	if err == nil {
		return false
	}
	return errors.Is(err, gorm.ErrDuplicatedKey)
}

func (s *GormService) loadOrCreateProfile(tx *gorm.DB, userID string) (*domain.PlayerProfile, error) {
	var profile domain.PlayerProfile
	err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).Where("user_id = ?", userID).First(&profile).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		profile = domain.PlayerProfile{UserID: userID, Coins: s.initialCoins}
		if err := tx.Create(&profile).Error; err != nil {
			return nil, err
		}
		return &profile, nil
	}
	if err != nil {
		return nil, err
	}
	return &profile, nil
}

// ReserveEntryFee debits fee from userID's balance and writes an append-only
// ledger row keyed reserve:<reservationId>.
func (s *GormService) ReserveEntryFee(ctx context.Context, userID string, fee int64, roomID string) (domain.Reservation, error) {
	if fee <= 0 {
		return domain.Reservation{Success: true, ReservationID: ""}, nil
	}

	reservationID := uuid.NewString()
	var result domain.Reservation

	err := s.client.DB().WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		profile, err := s.loadOrCreateProfile(tx, userID)
		if err != nil {
			return err
		}
		if profile.Coins-fee < 0 {
			result = domain.Reservation{Success: false, Error: ports.ErrInsufficientFunds.Error()}
			return ports.ErrInsufficientFunds
		}

		newBalance := profile.Coins - fee
		entry := domain.LedgerEntry{
			UserID:         userID,
			Amount:         -fee,
			BalanceAfter:   newBalance,
			Type:           domain.LedgerReserve,
			Reference:      roomID,
			IdempotencyKey: "reserve:" + reservationID,
		}
		if err := tx.Create(&entry).Error; err != nil {
			return err
		}

		res := tx.Model(&domain.PlayerProfile{}).
			Where("user_id = ? AND version = ?", userID, profile.Version).
			Updates(map[string]any{"coins": newBalance, "version": profile.Version + 1})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ports.ErrConcurrencyConflict
		}

		result = domain.Reservation{Success: true, ReservationID: reservationID}
		return nil
	})
	if err != nil {
		if errors.Is(err, ports.ErrInsufficientFunds) {
			return result, ports.ErrInsufficientFunds
		}
		return domain.Reservation{Success: false, Error: err.Error()}, err
	}
	return result, nil
}

// CommitEntryFee marks a reservation confirmed. It is bookkeeping only —
// the balance was already debited at Reserve time — so it writes a
// zero-amount audit row rather than moving money.
func (s *GormService) CommitEntryFee(ctx context.Context, reservation domain.Reservation) error {
	if reservation.ReservationID == "" {
		return nil
	}
	var original domain.LedgerEntry
	if err := s.client.DB().WithContext(ctx).
		Where("idempotency_key = ?", "reserve:"+reservation.ReservationID).First(&original).Error; err != nil {
		return fmt.Errorf("economy: commit: reservation %s not found: %w", reservation.ReservationID, err)
	}

	entry := domain.LedgerEntry{
		UserID:         original.UserID,
		Amount:         0,
		BalanceAfter:   original.BalanceAfter,
		Type:           domain.LedgerCommit,
		Reference:      original.Reference,
		IdempotencyKey: "commit:" + reservation.ReservationID,
	}
	err := s.client.DB().WithContext(ctx).Create(&entry).Error
	if isDuplicateKeyErr(err) {
		return ports.ErrDuplicateTx
	}
	return err
}

// RefundEntryFee credits fee back to whoever it was reserved from, with
// idempotency key refund:<reservationId>.
func (s *GormService) RefundEntryFee(ctx context.Context, reservation domain.Reservation) error {
	if reservation.ReservationID == "" {
		return nil
	}

	return s.client.DB().WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var original domain.LedgerEntry
		if err := tx.Where("idempotency_key = ?", "reserve:"+reservation.ReservationID).First(&original).Error; err != nil {
			return fmt.Errorf("economy: refund: reservation %s not found: %w", reservation.ReservationID, err)
		}
		fee := -original.Amount

		profile, err := s.loadOrCreateProfile(tx, original.UserID)
		if err != nil {
			return err
		}
		newBalance := profile.Coins + fee

		entry := domain.LedgerEntry{
			UserID:         original.UserID,
			Amount:         fee,
			BalanceAfter:   newBalance,
			Type:           domain.LedgerRefund,
			Reference:      original.Reference,
			IdempotencyKey: "refund:" + reservation.ReservationID,
		}
		if err := tx.Create(&entry).Error; err != nil {
			if isDuplicateKeyErr(err) {
				return ports.ErrDuplicateTx
			}
			return err
		}

		res := tx.Model(&domain.PlayerProfile{}).
			Where("user_id = ? AND version = ?", original.UserID, profile.Version).
			Updates(map[string]any{"coins": newBalance, "version": profile.Version + 1})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ports.ErrConcurrencyConflict
		}
		return nil
	})
}

// ProcessGamePayouts deducts the fixed rake and distributes the remainder
// across winner-take-all, ranked, or equal-refund cases, crediting each
// award under its own win:<roomId>:<userId> idempotency key so outbox
// retries never double-credit. It runs entirely inside tx — the caller
// (internal/outbox) commits or rolls tx back together with whatever else
// it writes in the same pass, so a payout is never left orphaned from its
// archive record.
func (s *GormService) ProcessGamePayouts(ctx context.Context, tx *gorm.DB, input PayoutInput) error {
	net, rake := applyRake(input.TotalPot)
	shares := s.computeShares(input, net)

	for userID, amount := range shares {
		if amount <= 0 {
			continue
		}
		if err := s.creditAward(tx, userID, amount, input.RoomID, "win:"+input.RoomID+":"+userID, domain.LedgerPayout); err != nil {
			return fmt.Errorf("economy: payout to %s: %w", userID, err)
		}
	}

	if rake > 0 {
		if err := s.creditAward(tx, "house", rake, input.RoomID, "rake:"+input.RoomID, domain.LedgerRake); err != nil {
			s.logger.Warn("failed to record rake ledger entry", "roomId", input.RoomID, "error", err)
		}
	}
	return nil
}

// creditAward runs against tx directly rather than opening a nested
// transaction — GORM has no true nested-transaction semantics, and this
// method is only ever called from within ProcessGamePayouts's caller-owned
// transaction.
func (s *GormService) creditAward(tx *gorm.DB, userID string, amount int64, reference, idempotencyKey string, kind domain.LedgerEntryType) error {
	profile, err := s.loadOrCreateProfile(tx, userID)
	if err != nil {
		return err
	}
	newBalance := profile.Coins + amount

	entry := domain.LedgerEntry{
		UserID:         userID,
		Amount:         amount,
		BalanceAfter:   newBalance,
		Type:           kind,
		Reference:      reference,
		IdempotencyKey: idempotencyKey,
	}
	if err := tx.Create(&entry).Error; err != nil {
		if isDuplicateKeyErr(err) {
			return nil // already credited by a prior attempt; idempotent no-op
		}
		return err
	}

	res := tx.Model(&domain.PlayerProfile{}).
		Where("user_id = ? AND version = ?", userID, profile.Version).
		Updates(map[string]any{"coins": newBalance, "version": profile.Version + 1})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ports.ErrConcurrencyConflict
	}
	return nil
}

func (s *GormService) computeShares(input PayoutInput, net int64) map[string]int64 {
	shares := make(map[string]int64, len(input.Seats))

	switch {
	case input.WinnerUserID != "" && len(input.Ranking) == 0:
		shares[input.WinnerUserID] = net

	case len(input.Ranking) > 0:
		weights := harmonicWeights(len(input.Ranking))
		for i, userID := range input.Ranking {
			if i >= len(weights) {
				break
			}
			shares[userID] += int64(math.Round(float64(net) * weights[i]))
		}

	default:
		if len(input.Seats) == 0 {
			return shares
		}
		users := make([]string, 0, len(input.Seats))
		for userID := range input.Seats {
			users = append(users, userID)
		}
		sort.Strings(users)
		each := net / int64(len(users))
		for _, userID := range users {
			shares[userID] = each
		}
	}
	return shares
}

// harmonicWeights returns the fixed table for n in {2,3,4}, or for
// larger fields generalizes to a harmonic series 1/(rank+1) normalized to 1
// across the top half of the ranking.
func harmonicWeights(n int) []float64 {
	if table, ok := harmonicTables[n]; ok {
		return table
	}
	topHalf := n / 2
	if topHalf == 0 {
		topHalf = 1
	}
	raw := make([]float64, topHalf)
	var sum float64
	for i := 0; i < topHalf; i++ {
		raw[i] = 1.0 / float64(i+1)
		sum += raw[i]
	}
	for i := range raw {
		raw[i] /= sum
	}
	return raw
}

package domain

import "time"

// LedgerEntryType classifies a wallet_transactions row for audit and
// reconciliation purposes.
type LedgerEntryType string

const (
	LedgerReserve LedgerEntryType = "reserve"
	LedgerCommit  LedgerEntryType = "commit"
	LedgerRefund  LedgerEntryType = "refund"
	LedgerPayout  LedgerEntryType = "payout"
	LedgerRake    LedgerEntryType = "rake"
)

// LedgerEntry is an append-only wallet movement. IdempotencyKey uniquely
// dedupes retries; balance must never go negative.
type LedgerEntry struct {
	ID             uint            `gorm:"primaryKey" json:"id"`
	UserID         string          `gorm:"index;not null" json:"userId"`
	Amount         int64           `gorm:"not null" json:"amount"`
	BalanceAfter   int64           `gorm:"not null" json:"balanceAfter"`
	Type           LedgerEntryType `gorm:"not null" json:"type"`
	Reference      string          `gorm:"index" json:"reference"`
	IdempotencyKey string          `gorm:"uniqueIndex;not null" json:"idempotencyKey"`
	CreatedAt      time.Time       `json:"createdAt"`
}

func (LedgerEntry) TableName() string { return "wallet_transactions" }

// PlayerProfile carries the wallet balance under optimistic concurrency.
type PlayerProfile struct {
	UserID    string    `gorm:"primaryKey" json:"userId"`
	Coins     int64     `gorm:"not null" json:"coins"`
	Version   int64     `gorm:"not null;default:0" json:"version"`
	IsDeleted bool      `gorm:"not null;default:false" json:"isDeleted"`
	DeletedAt time.Time `json:"deletedAt"`
}

func (PlayerProfile) TableName() string { return "player_profiles" }

// Reservation is the receipt for a debited entry fee. It carries enough to
// commit or refund idempotently.
type Reservation struct {
	Success       bool   `json:"success"`
	ReservationID string `json:"reservationId,omitempty"`
	Error         string `json:"error,omitempty"`
}

// OutboxRecord is a transactionally-written side-effect record. The
// archival worker drains it.
type OutboxRecord struct {
	ID          uint       `gorm:"primaryKey" json:"id"`
	EventType   string     `gorm:"index:idx_outbox_pending;not null" json:"eventType"`
	Payload     string     `gorm:"type:text;not null" json:"payload"`
	Attempts    int        `gorm:"index:idx_outbox_pending;not null;default:0" json:"attempts"`
	LastError   string     `gorm:"type:varchar(500)" json:"lastError"`
	CreatedAt   time.Time  `gorm:"index:idx_outbox_pending" json:"createdAt"`
	ProcessedAt *time.Time `gorm:"index:idx_outbox_pending" json:"processedAt"`
}

func (OutboxRecord) TableName() string { return "outbox_messages" }

// EventGameEnded is the only mandatory outbox event type for the core.
const EventGameEnded = "GameEnded"

// GameEndedPayload is the JSON body of a GameEnded outbox record.
type GameEndedPayload struct {
	RoomID       string         `json:"roomId"`
	GameType     string         `json:"gameType"`
	TotalPot     int64          `json:"totalPot"`
	Seats        map[string]int `json:"seats"` // userId -> seat
	WinnerUserID string         `json:"winnerUserId,omitempty"`
	Ranking      []string       `json:"ranking,omitempty"` // userIds, best first
	FinalState   []byte         `json:"finalState"`
	StartedAt    time.Time      `json:"startedAt"`
	EndedAt      time.Time      `json:"endedAt"`
}

// ArchivedGame is written once after a successful payout.
type ArchivedGame struct {
	ID              uint      `gorm:"primaryKey" json:"id"`
	RoomID          string    `gorm:"uniqueIndex;not null" json:"roomId"`
	GameType        string    `gorm:"index;not null" json:"gameType"`
	FinalStateJSON  string    `gorm:"type:text" json:"finalStateJson"`
	PlayerSeatsJSON string    `gorm:"type:text" json:"playerSeatsJson"`
	WinnerUserID    string    `json:"winnerUserId"`
	TotalPot        int64     `json:"totalPot"`
	StartedAt       time.Time `json:"startedAt"`
	EndedAt         time.Time `json:"endedAt"`
}

func (ArchivedGame) TableName() string { return "archived_games" }

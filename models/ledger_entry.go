package models

import "time"

// LedgerEntryType представляет тип движения по балансу, соответствующий ENUM в БД.
type LedgerEntryType string

const (
	LedgerEntrySettlement LedgerEntryType = "settlement"
	LedgerEntryPenalty    LedgerEntryType = "penalty"
	LedgerEntryRefund     LedgerEntryType = "refund"
)

// LedgerEntry — неизменяемая запись каждого изменения баланса участника.
// BalanceAfter — снимок доступных кредитов сразу после операции,
// используется для сверки.
type LedgerEntry struct {
	ID            int             `json:"id" db:"id"`
	ParticipantID int             `json:"participant_id" db:"participant_id"`
	EntryType     LedgerEntryType `json:"entry_type" db:"entry_type"`
	Amount        int64           `json:"amount" db:"amount"`
	BalanceAfter  int64           `json:"balance_after" db:"balance_after"`
	PlayerID      *int            `json:"player_id,omitempty" db:"player_id"`
	Reference     string          `json:"reference" db:"reference"`
	CreatedAt     time.Time       `json:"created_at" db:"created_at"`
}

package models

import "time"

// BidKind представляет вид ставки, соответствующий ENUM в БД.
type BidKind string

const (
	BidKindManual BidKind = "manual"
	BidKindQuick  BidKind = "quick"
	BidKindAuto   BidKind = "auto"
)

// Bid — неизменяемая запись ставки, образует аудиторский след лота.
type Bid struct {
	ID            int       `json:"id" db:"id"`
	LotID         int       `json:"lot_id" db:"lot_id"`
	ParticipantID int       `json:"participant_id" db:"participant_id"`
	Amount        int64     `json:"amount" db:"amount"`
	Kind          BidKind   `json:"kind" db:"kind"`
	CreatedAt     time.Time `json:"created_at" db:"created_at"`
}

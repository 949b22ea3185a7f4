package models

import "time"

// ProxyInstruction — поручение "торгуйся за меня до потолка".
// На пару (лот, участник) существует не более одной строки; повторная
// ставка с потолком обновляет её.
type ProxyInstruction struct {
	ID            int       `json:"id" db:"id"`
	LotID         int       `json:"lot_id" db:"lot_id"`
	ParticipantID int       `json:"participant_id" db:"participant_id"`
	Ceiling       int64     `json:"ceiling" db:"ceiling"`
	Active        bool      `json:"active" db:"active"`
	CreatedAt     time.Time `json:"created_at" db:"created_at"`
}

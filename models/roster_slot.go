package models

import "time"

// RosterSlot — окончательное закрепление игрока за участником лиги.
// Появляется только при закрытии лота с лидером.
type RosterSlot struct {
	ID            int       `json:"id" db:"id"`
	LeagueID      int       `json:"league_id" db:"league_id"`
	ParticipantID int       `json:"participant_id" db:"participant_id"`
	PlayerID      int       `json:"player_id" db:"player_id"`
	Price         int64     `json:"price" db:"price"`
	CreatedAt     time.Time `json:"created_at" db:"created_at"`
}

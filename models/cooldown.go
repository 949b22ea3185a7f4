package models

import "time"

// Cooldown — временный запрет на повторные ставки по игроку после
// добровольного выхода из его аукциона. Истекает сам, явного удаления
// не требует.
type Cooldown struct {
	ID            int       `json:"id" db:"id"`
	LeagueID      int       `json:"league_id" db:"league_id"`
	ParticipantID int       `json:"participant_id" db:"participant_id"`
	PlayerID      int       `json:"player_id" db:"player_id"`
	ExpiresAt     time.Time `json:"expires_at" db:"expires_at"`
	CreatedAt     time.Time `json:"created_at" db:"created_at"`
}

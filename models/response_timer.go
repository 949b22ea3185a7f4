package models

import "time"

// TimerStatus представляет статус таймера ответа, соответствующий ENUM в БД.
type TimerStatus string

const (
	TimerStatusPending   TimerStatus = "pending"
	TimerStatusCompleted TimerStatus = "completed"
)

// ResponseTimer — обязанность перебитого менеджера отреагировать.
// Создаётся без ActivatedAt: дедлайн назначается лениво, только когда
// менеджер замечен онлайн (сигнал присутствия извне ядра).
type ResponseTimer struct {
	ID            int         `json:"id" db:"id"`
	LeagueID      int         `json:"league_id" db:"league_id"`
	ParticipantID int         `json:"participant_id" db:"participant_id"`
	PlayerID      int         `json:"player_id" db:"player_id"`
	ActivatedAt   *time.Time  `json:"activated_at,omitempty" db:"activated_at"`
	Deadline      *time.Time  `json:"deadline,omitempty" db:"deadline"`
	Status        TimerStatus `json:"status" db:"status"`
	CreatedAt     time.Time   `json:"created_at" db:"created_at"`
}

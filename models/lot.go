package models

import "time"

// LotStatus представляет статусы лота, соответствующие ENUM в БД.
type LotStatus string

const (
	LotStatusActive  LotStatus = "active"
	LotStatusClosing LotStatus = "closing"
	LotStatusSold    LotStatus = "sold"
)

// Lot — аукцион по одному игроку внутри одной лиги.
// Для пары (лига, игрок) одновременно существует не более одного
// непроданного лота; это гарантирует частичный уникальный индекс.
type Lot struct {
	ID              int       `json:"id" db:"id"`
	LeagueID        int       `json:"league_id" db:"league_id"`
	PlayerID        int       `json:"player_id" db:"player_id"`
	Status          LotStatus `json:"status" db:"status"`
	CurrentPrice    int64     `json:"current_price" db:"current_price"`
	CurrentLeaderID *int      `json:"current_leader_id" db:"current_leader_id"`
	Deadline        time.Time `json:"deadline" db:"deadline"`
	CreatedAt       time.Time `json:"created_at" db:"created_at"`
}

// IsOpen сообщает, принимает ли лот ставки. Статус closing обрабатывается
// так же, как active.
func (l *Lot) IsOpen() bool {
	return l.Status == LotStatusActive || l.Status == LotStatusClosing
}

// LotSnapshot — состояние лота после применения ставки и каскада
// авто-ставок; отдаётся вызывающему и рассылается подписчикам.
type LotSnapshot struct {
	LotID           int       `json:"lot_id"`
	LeagueID        int       `json:"league_id"`
	PlayerID        int       `json:"player_id"`
	Status          LotStatus `json:"status"`
	CurrentPrice    int64     `json:"current_price"`
	CurrentLeaderID *int      `json:"current_leader_id"`
	Deadline        time.Time `json:"deadline"`
}

func (l *Lot) Snapshot() *LotSnapshot {
	return &LotSnapshot{
		LotID:           l.ID,
		LeagueID:        l.LeagueID,
		PlayerID:        l.PlayerID,
		Status:          l.Status,
		CurrentPrice:    l.CurrentPrice,
		CurrentLeaderID: l.CurrentLeaderID,
		Deadline:        l.Deadline,
	}
}

package models

import "time"

// Participant — менеджер внутри конкретной лиги с бюджетом кредитов.
// ReservedCredits всегда пересчитывается как сумма потолков активных
// авто-ставок, а не поддерживается инкрементально.
type Participant struct {
	ID              int       `json:"id" db:"id"`
	LeagueID        int       `json:"league_id" db:"league_id"`
	UserID          int       `json:"user_id" db:"user_id"`
	DisplayName     string    `json:"display_name" db:"display_name"`
	TotalBudget     int64     `json:"total_budget" db:"total_budget"`
	SpentCredits    int64     `json:"spent_credits" db:"spent_credits"`
	ReservedCredits int64     `json:"reserved_credits" db:"reserved_credits"`
	CreatedAt       time.Time `json:"created_at" db:"created_at"`
}

// AvailableCredits — единственная сумма, которую менеджер может
// закоммитить в новую ставку.
func (p *Participant) AvailableCredits() int64 {
	return p.TotalBudget - p.SpentCredits - p.ReservedCredits
}

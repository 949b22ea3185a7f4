package models

// Player — запись из справочника игроков. Каталог загружается вне ядра,
// здесь только то, что нужно движку торгов.
type Player struct {
	ID       int        `json:"id" db:"id"`
	Name     string     `json:"name" db:"name"`
	Role     PlayerRole `json:"role" db:"role"`
	RealTeam string     `json:"real_team" db:"real_team"`
}

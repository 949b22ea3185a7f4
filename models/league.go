package models

import (
	"time"

	"github.com/lib/pq"
)

// PlayerRole представляет роль игрока, соответствующую ENUM в БД.
type PlayerRole string

const (
	RoleGoalkeeper PlayerRole = "GK"
	RoleDefender   PlayerRole = "DEF"
	RoleMidfielder PlayerRole = "MID"
	RoleForward    PlayerRole = "FWD"
)

// League представляет лигу менеджеров с общими настройками аукциона.
// Окна таймеров хранятся в секундах, как в БД.
type League struct {
	ID                int            `json:"id" db:"id"`
	Name              string         `json:"name" db:"name"`
	InitialBudget     int64          `json:"initial_budget" db:"initial_budget"`
	TimerWindowSec    int64          `json:"timer_window_sec" db:"timer_window_sec"`
	ResponseWindowSec int64          `json:"response_window_sec" db:"response_window_sec"`
	CooldownWindowSec int64          `json:"cooldown_window_sec" db:"cooldown_window_sec"`
	ClosingGraceSec   int64          `json:"closing_grace_sec" db:"closing_grace_sec"`
	GoalkeeperSlots   int            `json:"goalkeeper_slots" db:"goalkeeper_slots"`
	DefenderSlots     int            `json:"defender_slots" db:"defender_slots"`
	MidfielderSlots   int            `json:"midfielder_slots" db:"midfielder_slots"`
	ForwardSlots      int            `json:"forward_slots" db:"forward_slots"`
	OpenRoles         pq.StringArray `json:"open_roles" db:"open_roles"`
	CreatedAt         time.Time      `json:"created_at" db:"created_at"`
}

func (l *League) TimerWindow() time.Duration {
	return time.Duration(l.TimerWindowSec) * time.Second
}

func (l *League) ResponseWindow() time.Duration {
	return time.Duration(l.ResponseWindowSec) * time.Second
}

func (l *League) CooldownWindow() time.Duration {
	return time.Duration(l.CooldownWindowSec) * time.Second
}

func (l *League) ClosingGrace() time.Duration {
	return time.Duration(l.ClosingGraceSec) * time.Second
}

// SlotsForRole возвращает лимит слотов состава для роли.
func (l *League) SlotsForRole(role PlayerRole) int {
	switch role {
	case RoleGoalkeeper:
		return l.GoalkeeperSlots
	case RoleDefender:
		return l.DefenderSlots
	case RoleMidfielder:
		return l.MidfielderSlots
	case RoleForward:
		return l.ForwardSlots
	default:
		return 0
	}
}

// RoleOpen сообщает, открыта ли роль для торгов. Пустой список ролей
// означает, что рынок лиги закрыт целиком.
func (l *League) RoleOpen(role PlayerRole) bool {
	for _, r := range l.OpenRoles {
		if PlayerRole(r) == role {
			return true
		}
	}
	return false
}

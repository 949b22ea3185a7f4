package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/fantaleague/auction-system/models"
)

var ErrLeagueNotFound = errors.New("league not found")

type LeagueRepository interface {
	GetByID(ctx context.Context, exec SQLExecutor, id int) (*models.League, error)
}

type postgresLeagueRepository struct {
	db *sql.DB
}

func NewPostgresLeagueRepository(db *sql.DB) LeagueRepository {
	return &postgresLeagueRepository{db: db}
}

func (r *postgresLeagueRepository) getExecutor(exec SQLExecutor) SQLExecutor {
	if exec != nil {
		return exec
	}
	return r.db
}

func (r *postgresLeagueRepository) GetByID(ctx context.Context, exec SQLExecutor, id int) (*models.League, error) {
	executor := r.getExecutor(exec)
	query := `
		SELECT
			id, name, initial_budget, timer_window_sec, response_window_sec,
			cooldown_window_sec, closing_grace_sec, goalkeeper_slots, defender_slots,
			midfielder_slots, forward_slots, open_roles, created_at
		FROM leagues
		WHERE id = $1`

	l := &models.League{}
	err := executor.QueryRowContext(ctx, query, id).Scan(
		&l.ID, &l.Name, &l.InitialBudget, &l.TimerWindowSec, &l.ResponseWindowSec,
		&l.CooldownWindowSec, &l.ClosingGraceSec, &l.GoalkeeperSlots, &l.DefenderSlots,
		&l.MidfielderSlots, &l.ForwardSlots, &l.OpenRoles, &l.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrLeagueNotFound
		}
		return nil, fmt.Errorf("failed to get league %d: %w", id, err)
	}
	return l, nil
}

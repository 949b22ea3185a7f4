package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/lib/pq"

	"github.com/fantaleague/auction-system/models"
)

var (
	// ErrRosterSlotConflict — игрок уже закреплён в этой лиге.
	ErrRosterSlotConflict = errors.New("player is already assigned in this league")
)

type RosterRepository interface {
	Create(ctx context.Context, exec SQLExecutor, slot *models.RosterSlot) error
	Exists(ctx context.Context, exec SQLExecutor, leagueID, playerID int) (bool, error)
	// CountByRole — занятые слоты участника для роли (join по справочнику
	// игроков), используется проверкой вместимости состава.
	CountByRole(ctx context.Context, exec SQLExecutor, leagueID, participantID int, role models.PlayerRole) (int, error)
}

type postgresRosterRepository struct {
	db *sql.DB
}

func NewPostgresRosterRepository(db *sql.DB) RosterRepository {
	return &postgresRosterRepository{db: db}
}

func (r *postgresRosterRepository) getExecutor(exec SQLExecutor) SQLExecutor {
	if exec != nil {
		return exec
	}
	return r.db
}

func (r *postgresRosterRepository) Create(ctx context.Context, exec SQLExecutor, slot *models.RosterSlot) error {
	executor := r.getExecutor(exec)
	query := `
		INSERT INTO roster_slots (league_id, participant_id, player_id, price)
		VALUES ($1, $2, $3, $4)
		RETURNING id, created_at`

	err := executor.QueryRowContext(ctx, query,
		slot.LeagueID, slot.ParticipantID, slot.PlayerID, slot.Price,
	).Scan(&slot.ID, &slot.CreatedAt)
	if err != nil {
		if pqErr, ok := err.(*pq.Error); ok && pqErr.Code == "23505" {
			if pqErr.Constraint == "roster_slots_league_id_player_id_key" {
				return ErrRosterSlotConflict
			}
		}
		return fmt.Errorf("failed to create roster slot: %w", err)
	}
	return nil
}

func (r *postgresRosterRepository) Exists(ctx context.Context, exec SQLExecutor, leagueID, playerID int) (bool, error) {
	executor := r.getExecutor(exec)
	query := `SELECT EXISTS (SELECT 1 FROM roster_slots WHERE league_id = $1 AND player_id = $2)`

	var exists bool
	if err := executor.QueryRowContext(ctx, query, leagueID, playerID).Scan(&exists); err != nil {
		return false, fmt.Errorf("failed to check roster assignment: %w", err)
	}
	return exists, nil
}

func (r *postgresRosterRepository) CountByRole(ctx context.Context, exec SQLExecutor, leagueID, participantID int, role models.PlayerRole) (int, error) {
	executor := r.getExecutor(exec)
	query := `
		SELECT COUNT(*)
		FROM roster_slots rs
		JOIN players p ON p.id = rs.player_id
		WHERE rs.league_id = $1 AND rs.participant_id = $2 AND p.role = $3`

	var count int
	if err := executor.QueryRowContext(ctx, query, leagueID, participantID, role).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count roster slots by role: %w", err)
	}
	return count, nil
}

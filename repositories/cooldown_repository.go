package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/fantaleague/auction-system/models"
)

type CooldownRepository interface {
	Create(ctx context.Context, exec SQLExecutor, cd *models.Cooldown) error
	// FindActive возвращает (nil, nil), если действующего запрета нет.
	// Истёкшие строки просто перестают находиться, их никто не удаляет.
	FindActive(ctx context.Context, exec SQLExecutor, leagueID, participantID, playerID int, now time.Time) (*models.Cooldown, error)
}

type postgresCooldownRepository struct {
	db *sql.DB
}

func NewPostgresCooldownRepository(db *sql.DB) CooldownRepository {
	return &postgresCooldownRepository{db: db}
}

func (r *postgresCooldownRepository) getExecutor(exec SQLExecutor) SQLExecutor {
	if exec != nil {
		return exec
	}
	return r.db
}

func (r *postgresCooldownRepository) Create(ctx context.Context, exec SQLExecutor, cd *models.Cooldown) error {
	executor := r.getExecutor(exec)
	query := `
		INSERT INTO cooldowns (league_id, participant_id, player_id, expires_at)
		VALUES ($1, $2, $3, $4)
		RETURNING id, created_at`

	err := executor.QueryRowContext(ctx, query,
		cd.LeagueID, cd.ParticipantID, cd.PlayerID, cd.ExpiresAt,
	).Scan(&cd.ID, &cd.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create cooldown: %w", err)
	}
	return nil
}

func (r *postgresCooldownRepository) FindActive(ctx context.Context, exec SQLExecutor, leagueID, participantID, playerID int, now time.Time) (*models.Cooldown, error) {
	executor := r.getExecutor(exec)
	query := `
		SELECT id, league_id, participant_id, player_id, expires_at, created_at
		FROM cooldowns
		WHERE league_id = $1 AND participant_id = $2 AND player_id = $3 AND expires_at > $4
		ORDER BY expires_at DESC
		LIMIT 1`

	cd := &models.Cooldown{}
	err := executor.QueryRowContext(ctx, query, leagueID, participantID, playerID, now).Scan(
		&cd.ID, &cd.LeagueID, &cd.ParticipantID, &cd.PlayerID, &cd.ExpiresAt, &cd.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to find active cooldown: %w", err)
	}
	return cd, nil
}

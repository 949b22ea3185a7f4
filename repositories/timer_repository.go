package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/fantaleague/auction-system/models"
)

var ErrResponseTimerNotFound = errors.New("response timer not found")

type ResponseTimerRepository interface {
	// CreatePending создаёт таймер без дедлайна. Идемпотентно: если
	// pending-таймер по этой тройке уже существует, ничего не меняется.
	CreatePending(ctx context.Context, exec SQLExecutor, leagueID, participantID, playerID int) error
	// ActivatePendingByUser лениво назначает дедлайны всем ещё не
	// активированным таймерам пользователя; уже активированные не
	// трогаются. Окно ответа берётся из настроек лиги.
	ActivatePendingByUser(ctx context.Context, exec SQLExecutor, userID int, now time.Time) (int64, error)
	// FindPending возвращает (nil, nil), если pending-таймера нет.
	FindPending(ctx context.Context, exec SQLExecutor, leagueID, participantID, playerID int) (*models.ResponseTimer, error)
	// Complete закрывает pending-таймер; false, если закрывать нечего.
	Complete(ctx context.Context, exec SQLExecutor, leagueID, participantID, playerID int) (bool, error)
	CompleteAllForPlayer(ctx context.Context, exec SQLExecutor, leagueID, playerID int) error
	// ListOverdue — активированные pending-таймеры с истёкшим дедлайном.
	ListOverdue(ctx context.Context, exec SQLExecutor, now time.Time) ([]*models.ResponseTimer, error)
}

type postgresResponseTimerRepository struct {
	db *sql.DB
}

func NewPostgresResponseTimerRepository(db *sql.DB) ResponseTimerRepository {
	return &postgresResponseTimerRepository{db: db}
}

func (r *postgresResponseTimerRepository) getExecutor(exec SQLExecutor) SQLExecutor {
	if exec != nil {
		return exec
	}
	return r.db
}

func (r *postgresResponseTimerRepository) CreatePending(ctx context.Context, exec SQLExecutor, leagueID, participantID, playerID int) error {
	executor := r.getExecutor(exec)
	// Частичный уникальный индекс на (league_id, participant_id, player_id)
	// WHERE status = 'pending'.
	query := `
		INSERT INTO response_timers (league_id, participant_id, player_id, status)
		VALUES ($1, $2, $3, 'pending')
		ON CONFLICT DO NOTHING`
	if _, err := executor.ExecContext(ctx, query, leagueID, participantID, playerID); err != nil {
		return fmt.Errorf("failed to create pending response timer: %w", err)
	}
	return nil
}

func (r *postgresResponseTimerRepository) ActivatePendingByUser(ctx context.Context, exec SQLExecutor, userID int, now time.Time) (int64, error) {
	executor := r.getExecutor(exec)
	query := `
		UPDATE response_timers rt
		SET activated_at = $2,
		    deadline = $2 + make_interval(secs => l.response_window_sec)
		FROM participants p
		JOIN leagues l ON l.id = p.league_id
		WHERE rt.participant_id = p.id
		  AND p.user_id = $1
		  AND rt.status = 'pending'
		  AND rt.activated_at IS NULL`
	result, err := executor.ExecContext(ctx, query, userID, now)
	if err != nil {
		return 0, fmt.Errorf("failed to activate pending timers for user %d: %w", userID, err)
	}
	return result.RowsAffected()
}

func (r *postgresResponseTimerRepository) FindPending(ctx context.Context, exec SQLExecutor, leagueID, participantID, playerID int) (*models.ResponseTimer, error) {
	executor := r.getExecutor(exec)
	query := `
		SELECT id, league_id, participant_id, player_id, activated_at, deadline, status, created_at
		FROM response_timers
		WHERE league_id = $1 AND participant_id = $2 AND player_id = $3 AND status = 'pending'`

	t := &models.ResponseTimer{}
	err := executor.QueryRowContext(ctx, query, leagueID, participantID, playerID).Scan(
		&t.ID, &t.LeagueID, &t.ParticipantID, &t.PlayerID, &t.ActivatedAt, &t.Deadline, &t.Status, &t.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to find pending response timer: %w", err)
	}
	return t, nil
}

func (r *postgresResponseTimerRepository) Complete(ctx context.Context, exec SQLExecutor, leagueID, participantID, playerID int) (bool, error) {
	executor := r.getExecutor(exec)
	query := `
		UPDATE response_timers
		SET status = 'completed'
		WHERE league_id = $1 AND participant_id = $2 AND player_id = $3 AND status = 'pending'`
	result, err := executor.ExecContext(ctx, query, leagueID, participantID, playerID)
	if err != nil {
		return false, fmt.Errorf("failed to complete response timer: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to check affected rows for response timer: %w", err)
	}
	return affected > 0, nil
}

func (r *postgresResponseTimerRepository) CompleteAllForPlayer(ctx context.Context, exec SQLExecutor, leagueID, playerID int) error {
	executor := r.getExecutor(exec)
	query := `
		UPDATE response_timers
		SET status = 'completed'
		WHERE league_id = $1 AND player_id = $2 AND status = 'pending'`
	if _, err := executor.ExecContext(ctx, query, leagueID, playerID); err != nil {
		return fmt.Errorf("failed to complete response timers for player %d: %w", playerID, err)
	}
	return nil
}

func (r *postgresResponseTimerRepository) ListOverdue(ctx context.Context, exec SQLExecutor, now time.Time) ([]*models.ResponseTimer, error) {
	executor := r.getExecutor(exec)
	query := `
		SELECT id, league_id, participant_id, player_id, activated_at, deadline, status, created_at
		FROM response_timers
		WHERE status = 'pending' AND activated_at IS NOT NULL AND deadline <= $1
		ORDER BY deadline ASC`

	rows, err := executor.QueryContext(ctx, query, now)
	if err != nil {
		return nil, fmt.Errorf("failed to list overdue response timers: %w", err)
	}
	defer rows.Close()

	timers := make([]*models.ResponseTimer, 0)
	for rows.Next() {
		var t models.ResponseTimer
		if scanErr := rows.Scan(&t.ID, &t.LeagueID, &t.ParticipantID, &t.PlayerID, &t.ActivatedAt, &t.Deadline, &t.Status, &t.CreatedAt); scanErr != nil {
			return nil, fmt.Errorf("failed to scan response timer: %w", scanErr)
		}
		timers = append(timers, &t)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating response timers: %w", err)
	}
	return timers, nil
}

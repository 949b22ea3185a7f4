package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/fantaleague/auction-system/models"
)

var ErrParticipantNotFound = errors.New("participant not found")

type ParticipantRepository interface {
	// FindByUserAndLeague возвращает (nil, nil), если пользователь не
	// состоит в лиге.
	FindByUserAndLeague(ctx context.Context, exec SQLExecutor, userID, leagueID int) (*models.Participant, error)
	GetByID(ctx context.Context, exec SQLExecutor, id int) (*models.Participant, error)
	// GetForUpdate блокирует строку участника до конца транзакции: бюджет —
	// самый конкурентный ресурс движка.
	GetForUpdate(ctx context.Context, exec SQLExecutor, id int) (*models.Participant, error)
	AddSpent(ctx context.Context, exec SQLExecutor, id int, amount int64) error
	SetReserved(ctx context.Context, exec SQLExecutor, id int, reserved int64) error
}

type postgresParticipantRepository struct {
	db *sql.DB
}

func NewPostgresParticipantRepository(db *sql.DB) ParticipantRepository {
	return &postgresParticipantRepository{db: db}
}

func (r *postgresParticipantRepository) getExecutor(exec SQLExecutor) SQLExecutor {
	if exec != nil {
		return exec
	}
	return r.db
}

const participantColumns = `id, league_id, user_id, display_name, total_budget, spent_credits, reserved_credits, created_at`

func (r *postgresParticipantRepository) scanParticipant(rowScanner interface {
	Scan(dest ...interface{}) error
}, p *models.Participant) error {
	return rowScanner.Scan(
		&p.ID,
		&p.LeagueID,
		&p.UserID,
		&p.DisplayName,
		&p.TotalBudget,
		&p.SpentCredits,
		&p.ReservedCredits,
		&p.CreatedAt,
	)
}

func (r *postgresParticipantRepository) FindByUserAndLeague(ctx context.Context, exec SQLExecutor, userID, leagueID int) (*models.Participant, error) {
	executor := r.getExecutor(exec)
	query := fmt.Sprintf(`SELECT %s FROM participants WHERE user_id = $1 AND league_id = $2`, participantColumns)

	p := &models.Participant{}
	err := r.scanParticipant(executor.QueryRowContext(ctx, query, userID, leagueID), p)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to find participant: %w", err)
	}
	return p, nil
}

func (r *postgresParticipantRepository) GetByID(ctx context.Context, exec SQLExecutor, id int) (*models.Participant, error) {
	return r.getOne(ctx, exec, fmt.Sprintf(`SELECT %s FROM participants WHERE id = $1`, participantColumns), id)
}

func (r *postgresParticipantRepository) GetForUpdate(ctx context.Context, exec SQLExecutor, id int) (*models.Participant, error) {
	return r.getOne(ctx, exec, fmt.Sprintf(`SELECT %s FROM participants WHERE id = $1 FOR UPDATE`, participantColumns), id)
}

func (r *postgresParticipantRepository) getOne(ctx context.Context, exec SQLExecutor, query string, args ...interface{}) (*models.Participant, error) {
	executor := r.getExecutor(exec)
	p := &models.Participant{}
	err := r.scanParticipant(executor.QueryRowContext(ctx, query, args...), p)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrParticipantNotFound
		}
		return nil, fmt.Errorf("failed to get participant: %w", err)
	}
	return p, nil
}

func (r *postgresParticipantRepository) AddSpent(ctx context.Context, exec SQLExecutor, id int, amount int64) error {
	executor := r.getExecutor(exec)
	query := `UPDATE participants SET spent_credits = spent_credits + $1 WHERE id = $2`
	result, err := executor.ExecContext(ctx, query, amount, id)
	if err != nil {
		return fmt.Errorf("failed to update spent credits for participant %d: %w", id, err)
	}
	return checkAffectedRows(result, ErrParticipantNotFound)
}

func (r *postgresParticipantRepository) SetReserved(ctx context.Context, exec SQLExecutor, id int, reserved int64) error {
	executor := r.getExecutor(exec)
	query := `UPDATE participants SET reserved_credits = $1 WHERE id = $2`
	result, err := executor.ExecContext(ctx, query, reserved, id)
	if err != nil {
		return fmt.Errorf("failed to update reserved credits for participant %d: %w", id, err)
	}
	return checkAffectedRows(result, ErrParticipantNotFound)
}

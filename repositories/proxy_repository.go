package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/fantaleague/auction-system/models"
)

var ErrProxyInstructionNotFound = errors.New("proxy instruction not found")

type ProxyInstructionRepository interface {
	// Upsert создаёт поручение или обновляет потолок существующего,
	// реактивируя его. Уникальность на (lot_id, participant_id).
	Upsert(ctx context.Context, exec SQLExecutor, instr *models.ProxyInstruction) error
	// FindByLotAndParticipant возвращает (nil, nil), если поручения нет.
	FindByLotAndParticipant(ctx context.Context, exec SQLExecutor, lotID, participantID int) (*models.ProxyInstruction, error)
	// ListActiveByLot отдаёт кандидатов каскада: потолок по убыванию,
	// при равных потолках приоритет у созданного раньше.
	ListActiveByLot(ctx context.Context, exec SQLExecutor, lotID int) ([]*models.ProxyInstruction, error)
	Deactivate(ctx context.Context, exec SQLExecutor, id int) error
	// SumActiveCeilings — агрегат для пересчёта зарезервированных
	// кредитов; защитный join по статусу лота самовосстанавливает
	// резерв, даже если деактивация при закрытии была пропущена.
	SumActiveCeilings(ctx context.Context, exec SQLExecutor, participantID int) (int64, error)
}

type postgresProxyInstructionRepository struct {
	db *sql.DB
}

func NewPostgresProxyInstructionRepository(db *sql.DB) ProxyInstructionRepository {
	return &postgresProxyInstructionRepository{db: db}
}

func (r *postgresProxyInstructionRepository) getExecutor(exec SQLExecutor) SQLExecutor {
	if exec != nil {
		return exec
	}
	return r.db
}

func (r *postgresProxyInstructionRepository) Upsert(ctx context.Context, exec SQLExecutor, instr *models.ProxyInstruction) error {
	executor := r.getExecutor(exec)
	query := `
		INSERT INTO proxy_instructions (lot_id, participant_id, ceiling, active)
		VALUES ($1, $2, $3, TRUE)
		ON CONFLICT (lot_id, participant_id)
		DO UPDATE SET ceiling = EXCLUDED.ceiling, active = TRUE
		RETURNING id, active, created_at`

	err := executor.QueryRowContext(ctx, query,
		instr.LotID, instr.ParticipantID, instr.Ceiling,
	).Scan(&instr.ID, &instr.Active, &instr.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to upsert proxy instruction: %w", err)
	}
	return nil
}

func (r *postgresProxyInstructionRepository) FindByLotAndParticipant(ctx context.Context, exec SQLExecutor, lotID, participantID int) (*models.ProxyInstruction, error) {
	executor := r.getExecutor(exec)
	query := `
		SELECT id, lot_id, participant_id, ceiling, active, created_at
		FROM proxy_instructions
		WHERE lot_id = $1 AND participant_id = $2`

	instr := &models.ProxyInstruction{}
	err := executor.QueryRowContext(ctx, query, lotID, participantID).Scan(
		&instr.ID, &instr.LotID, &instr.ParticipantID, &instr.Ceiling, &instr.Active, &instr.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to find proxy instruction: %w", err)
	}
	return instr, nil
}

func (r *postgresProxyInstructionRepository) ListActiveByLot(ctx context.Context, exec SQLExecutor, lotID int) ([]*models.ProxyInstruction, error) {
	executor := r.getExecutor(exec)
	query := `
		SELECT id, lot_id, participant_id, ceiling, active, created_at
		FROM proxy_instructions
		WHERE lot_id = $1 AND active = TRUE
		ORDER BY ceiling DESC, created_at ASC, id ASC`

	rows, err := executor.QueryContext(ctx, query, lotID)
	if err != nil {
		return nil, fmt.Errorf("failed to list active proxy instructions for lot %d: %w", lotID, err)
	}
	defer rows.Close()

	instrs := make([]*models.ProxyInstruction, 0)
	for rows.Next() {
		var instr models.ProxyInstruction
		if scanErr := rows.Scan(&instr.ID, &instr.LotID, &instr.ParticipantID, &instr.Ceiling, &instr.Active, &instr.CreatedAt); scanErr != nil {
			return nil, fmt.Errorf("failed to scan proxy instruction: %w", scanErr)
		}
		instrs = append(instrs, &instr)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating proxy instructions: %w", err)
	}
	return instrs, nil
}

func (r *postgresProxyInstructionRepository) Deactivate(ctx context.Context, exec SQLExecutor, id int) error {
	executor := r.getExecutor(exec)
	query := `UPDATE proxy_instructions SET active = FALSE WHERE id = $1`
	result, err := executor.ExecContext(ctx, query, id)
	if err != nil {
		return fmt.Errorf("failed to deactivate proxy instruction %d: %w", id, err)
	}
	return checkAffectedRows(result, ErrProxyInstructionNotFound)
}

func (r *postgresProxyInstructionRepository) SumActiveCeilings(ctx context.Context, exec SQLExecutor, participantID int) (int64, error) {
	executor := r.getExecutor(exec)
	query := `
		SELECT COALESCE(SUM(p.ceiling), 0)
		FROM proxy_instructions p
		JOIN lots l ON l.id = p.lot_id
		WHERE p.participant_id = $1 AND p.active = TRUE AND l.status <> 'sold'`

	var sum int64
	if err := executor.QueryRowContext(ctx, query, participantID).Scan(&sum); err != nil {
		return 0, fmt.Errorf("failed to sum active ceilings for participant %d: %w", participantID, err)
	}
	return sum, nil
}

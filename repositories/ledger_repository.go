package repositories

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/fantaleague/auction-system/models"
)

// LedgerRepository — журнал движений по балансу, только добавление.
type LedgerRepository interface {
	Create(ctx context.Context, exec SQLExecutor, entry *models.LedgerEntry) error
	ListByParticipant(ctx context.Context, exec SQLExecutor, participantID, limit int) ([]*models.LedgerEntry, error)
}

type postgresLedgerRepository struct {
	db *sql.DB
}

func NewPostgresLedgerRepository(db *sql.DB) LedgerRepository {
	return &postgresLedgerRepository{db: db}
}

func (r *postgresLedgerRepository) getExecutor(exec SQLExecutor) SQLExecutor {
	if exec != nil {
		return exec
	}
	return r.db
}

func (r *postgresLedgerRepository) Create(ctx context.Context, exec SQLExecutor, entry *models.LedgerEntry) error {
	executor := r.getExecutor(exec)
	query := `
		INSERT INTO ledger_entries (participant_id, entry_type, amount, balance_after, player_id, reference)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, created_at`

	err := executor.QueryRowContext(ctx, query,
		entry.ParticipantID, entry.EntryType, entry.Amount, entry.BalanceAfter, entry.PlayerID, entry.Reference,
	).Scan(&entry.ID, &entry.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create ledger entry: %w", err)
	}
	return nil
}

func (r *postgresLedgerRepository) ListByParticipant(ctx context.Context, exec SQLExecutor, participantID, limit int) ([]*models.LedgerEntry, error) {
	executor := r.getExecutor(exec)
	query := `
		SELECT id, participant_id, entry_type, amount, balance_after, player_id, reference, created_at
		FROM ledger_entries
		WHERE participant_id = $1
		ORDER BY created_at DESC, id DESC`
	args := []interface{}{participantID}
	if limit > 0 {
		query += " LIMIT $2"
		args = append(args, limit)
	}

	rows, err := executor.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list ledger entries for participant %d: %w", participantID, err)
	}
	defer rows.Close()

	entries := make([]*models.LedgerEntry, 0)
	for rows.Next() {
		var e models.LedgerEntry
		if scanErr := rows.Scan(&e.ID, &e.ParticipantID, &e.EntryType, &e.Amount, &e.BalanceAfter, &e.PlayerID, &e.Reference, &e.CreatedAt); scanErr != nil {
			return nil, fmt.Errorf("failed to scan ledger entry: %w", scanErr)
		}
		entries = append(entries, &e)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating ledger entries: %w", err)
	}
	return entries, nil
}

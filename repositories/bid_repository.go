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
	ErrBidLotInvalid         = errors.New("bid lot conflict or invalid")
	ErrBidParticipantInvalid = errors.New("bid participant conflict or invalid")
)

// BidRepository — только добавление и чтение: ставки образуют
// неизменяемый аудиторский след.
type BidRepository interface {
	Create(ctx context.Context, exec SQLExecutor, bid *models.Bid) error
	ListByLot(ctx context.Context, exec SQLExecutor, lotID, limit int) ([]*models.Bid, error)
}

type postgresBidRepository struct {
	db *sql.DB
}

func NewPostgresBidRepository(db *sql.DB) BidRepository {
	return &postgresBidRepository{db: db}
}

func (r *postgresBidRepository) getExecutor(exec SQLExecutor) SQLExecutor {
	if exec != nil {
		return exec
	}
	return r.db
}

func (r *postgresBidRepository) Create(ctx context.Context, exec SQLExecutor, bid *models.Bid) error {
	executor := r.getExecutor(exec)
	query := `
		INSERT INTO bids (lot_id, participant_id, amount, kind)
		VALUES ($1, $2, $3, $4)
		RETURNING id, created_at`

	err := executor.QueryRowContext(ctx, query,
		bid.LotID, bid.ParticipantID, bid.Amount, bid.Kind,
	).Scan(&bid.ID, &bid.CreatedAt)
	if err != nil {
		if pqErr, ok := err.(*pq.Error); ok && pqErr.Code == "23503" {
			switch pqErr.Constraint {
			case "bids_lot_id_fkey":
				return ErrBidLotInvalid
			case "bids_participant_id_fkey":
				return ErrBidParticipantInvalid
			}
		}
		return fmt.Errorf("failed to create bid: %w", err)
	}
	return nil
}

func (r *postgresBidRepository) ListByLot(ctx context.Context, exec SQLExecutor, lotID, limit int) ([]*models.Bid, error) {
	executor := r.getExecutor(exec)
	query := `
		SELECT id, lot_id, participant_id, amount, kind, created_at
		FROM bids
		WHERE lot_id = $1
		ORDER BY created_at DESC, id DESC`
	args := []interface{}{lotID}
	if limit > 0 {
		query += " LIMIT $2"
		args = append(args, limit)
	}

	rows, err := executor.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list bids for lot %d: %w", lotID, err)
	}
	defer rows.Close()

	bids := make([]*models.Bid, 0)
	for rows.Next() {
		var b models.Bid
		if scanErr := rows.Scan(&b.ID, &b.LotID, &b.ParticipantID, &b.Amount, &b.Kind, &b.CreatedAt); scanErr != nil {
			return nil, fmt.Errorf("failed to scan bid: %w", scanErr)
		}
		bids = append(bids, &b)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating bids: %w", err)
	}
	return bids, nil
}

package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"

	"github.com/fantaleague/auction-system/models"
)

var (
	ErrLotNotFound = errors.New("lot not found")
	// ErrLotConflict — для (лига, игрок) уже существует непроданный лот.
	// Частичный уникальный индекс закрывает гонку создания.
	ErrLotConflict = errors.New("an open lot already exists for this player")
)

type LotRepository interface {
	Create(ctx context.Context, exec SQLExecutor, lot *models.Lot) error
	GetByID(ctx context.Context, exec SQLExecutor, id int) (*models.Lot, error)
	// FindOpenByPlayer возвращает (nil, nil), если открытого лота нет.
	// forUpdate блокирует строку лота — все мутации одного лота
	// сериализуются на ней.
	FindOpenByPlayer(ctx context.Context, exec SQLExecutor, leagueID, playerID int, forUpdate bool) (*models.Lot, error)
	UpdateBidState(ctx context.Context, exec SQLExecutor, id int, price int64, leaderID int, deadline time.Time) error
	// MarkClosing переводит active-лоты, у которых дедлайн внутри
	// льготного окна лиги, в closing. Возвращает число затронутых строк.
	MarkClosing(ctx context.Context, exec SQLExecutor, now time.Time) (int64, error)
	ListDue(ctx context.Context, exec SQLExecutor, now time.Time) ([]*models.Lot, error)
	// MarkSold защищён статусом: повторный вызов по проданному лоту
	// затрагивает ноль строк и возвращает false.
	MarkSold(ctx context.Context, exec SQLExecutor, id int, now time.Time) (bool, error)
}

type postgresLotRepository struct {
	db *sql.DB
}

func NewPostgresLotRepository(db *sql.DB) LotRepository {
	return &postgresLotRepository{db: db}
}

func (r *postgresLotRepository) getExecutor(exec SQLExecutor) SQLExecutor {
	if exec != nil {
		return exec
	}
	return r.db
}

const lotColumns = `id, league_id, player_id, status, current_price, current_leader_id, deadline, created_at`

func (r *postgresLotRepository) scanLot(rowScanner interface {
	Scan(dest ...interface{}) error
}, l *models.Lot) error {
	return rowScanner.Scan(
		&l.ID,
		&l.LeagueID,
		&l.PlayerID,
		&l.Status,
		&l.CurrentPrice,
		&l.CurrentLeaderID,
		&l.Deadline,
		&l.CreatedAt,
	)
}

func (r *postgresLotRepository) Create(ctx context.Context, exec SQLExecutor, lot *models.Lot) error {
	executor := r.getExecutor(exec)
	query := `
		INSERT INTO lots (league_id, player_id, status, current_price, current_leader_id, deadline)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, created_at`

	err := executor.QueryRowContext(ctx, query,
		lot.LeagueID, lot.PlayerID, lot.Status, lot.CurrentPrice, lot.CurrentLeaderID, lot.Deadline,
	).Scan(&lot.ID, &lot.CreatedAt)
	if err != nil {
		if pqErr, ok := err.(*pq.Error); ok && pqErr.Code == "23505" {
			if pqErr.Constraint == "lots_league_id_player_id_open_key" {
				return ErrLotConflict
			}
		}
		return fmt.Errorf("failed to create lot: %w", err)
	}
	return nil
}

func (r *postgresLotRepository) GetByID(ctx context.Context, exec SQLExecutor, id int) (*models.Lot, error) {
	executor := r.getExecutor(exec)
	query := fmt.Sprintf(`SELECT %s FROM lots WHERE id = $1`, lotColumns)

	l := &models.Lot{}
	if err := r.scanLot(executor.QueryRowContext(ctx, query, id), l); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrLotNotFound
		}
		return nil, fmt.Errorf("failed to get lot %d: %w", id, err)
	}
	return l, nil
}

func (r *postgresLotRepository) FindOpenByPlayer(ctx context.Context, exec SQLExecutor, leagueID, playerID int, forUpdate bool) (*models.Lot, error) {
	executor := r.getExecutor(exec)
	query := fmt.Sprintf(`
		SELECT %s FROM lots
		WHERE league_id = $1 AND player_id = $2 AND status <> 'sold'`, lotColumns)
	if forUpdate {
		query += " FOR UPDATE"
	}

	l := &models.Lot{}
	if err := r.scanLot(executor.QueryRowContext(ctx, query, leagueID, playerID), l); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to find open lot: %w", err)
	}
	return l, nil
}

func (r *postgresLotRepository) UpdateBidState(ctx context.Context, exec SQLExecutor, id int, price int64, leaderID int, deadline time.Time) error {
	executor := r.getExecutor(exec)
	query := `
		UPDATE lots
		SET current_price = $1, current_leader_id = $2, deadline = $3
		WHERE id = $4 AND status <> 'sold'`
	result, err := executor.ExecContext(ctx, query, price, leaderID, deadline, id)
	if err != nil {
		return fmt.Errorf("failed to update lot %d bid state: %w", id, err)
	}
	return checkAffectedRows(result, ErrLotNotFound)
}

func (r *postgresLotRepository) MarkClosing(ctx context.Context, exec SQLExecutor, now time.Time) (int64, error) {
	executor := r.getExecutor(exec)
	query := `
		UPDATE lots
		SET status = 'closing'
		FROM leagues
		WHERE lots.league_id = leagues.id
		  AND lots.status = 'active'
		  AND lots.deadline <= $1 + make_interval(secs => leagues.closing_grace_sec)`
	result, err := executor.ExecContext(ctx, query, now)
	if err != nil {
		return 0, fmt.Errorf("failed to mark closing lots: %w", err)
	}
	return result.RowsAffected()
}

func (r *postgresLotRepository) ListDue(ctx context.Context, exec SQLExecutor, now time.Time) ([]*models.Lot, error) {
	executor := r.getExecutor(exec)
	query := fmt.Sprintf(`
		SELECT %s FROM lots
		WHERE status IN ('active', 'closing') AND deadline <= $1
		ORDER BY deadline ASC`, lotColumns)

	rows, err := executor.QueryContext(ctx, query, now)
	if err != nil {
		return nil, fmt.Errorf("failed to list due lots: %w", err)
	}
	defer rows.Close()

	lots := make([]*models.Lot, 0)
	for rows.Next() {
		var l models.Lot
		if scanErr := r.scanLot(rows, &l); scanErr != nil {
			return nil, fmt.Errorf("failed to scan due lot: %w", scanErr)
		}
		lots = append(lots, &l)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating due lots: %w", err)
	}
	return lots, nil
}

func (r *postgresLotRepository) MarkSold(ctx context.Context, exec SQLExecutor, id int, now time.Time) (bool, error) {
	executor := r.getExecutor(exec)
	query := `
		UPDATE lots
		SET status = 'sold'
		WHERE id = $1 AND status <> 'sold' AND deadline <= $2`
	result, err := executor.ExecContext(ctx, query, id, now)
	if err != nil {
		return false, fmt.Errorf("failed to mark lot %d sold: %w", id, err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to check affected rows for lot %d: %w", id, err)
	}
	return affected > 0, nil
}

package services

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/fantaleague/auction-system/models"
	"github.com/fantaleague/auction-system/repositories"
)

// BudgetService ведёт кредитный леджер участников. Каждое списание
// протоколируется до того, как считается совершённым; резерв никогда не
// поддерживается счётчиком, только полным пересчётом по активным
// поручениям.
type BudgetService struct {
	participants repositories.ParticipantRepository
	proxies      repositories.ProxyInstructionRepository
	ledger       repositories.LedgerRepository
}

func NewBudgetService(
	participants repositories.ParticipantRepository,
	proxies repositories.ProxyInstructionRepository,
	ledger repositories.LedgerRepository,
) *BudgetService {
	return &BudgetService{
		participants: participants,
		proxies:      proxies,
		ledger:       ledger,
	}
}

// Debit списывает кредиты участника внутри транзакции вызывающего и
// добавляет запись леджера со снимком баланса. Не даёт доступным
// кредитам уйти в минус.
func (s *BudgetService) Debit(ctx context.Context, exec repositories.SQLExecutor, participantID int, amount int64, entryType models.LedgerEntryType, playerID *int) (*models.LedgerEntry, error) {
	if amount <= 0 {
		return nil, fmt.Errorf("%w: debit amount %d", ErrInvalidAmount, amount)
	}

	p, err := s.participants.GetForUpdate(ctx, exec, participantID)
	if err != nil {
		return nil, err
	}
	available := p.AvailableCredits()
	if available < amount {
		return nil, fmt.Errorf("%w: available %d, required %d", ErrInsufficientFunds, available, amount)
	}

	if err := s.participants.AddSpent(ctx, exec, participantID, amount); err != nil {
		return nil, err
	}

	entry := &models.LedgerEntry{
		ParticipantID: participantID,
		EntryType:     entryType,
		Amount:        -amount,
		BalanceAfter:  available - amount,
		PlayerID:      playerID,
		Reference:     uuid.NewString(),
	}
	if err := s.ledger.Create(ctx, exec, entry); err != nil {
		return nil, err
	}
	return entry, nil
}

// RecomputeReserved пересчитывает зарезервированные кредиты участника
// как сумму потолков его активных поручений. Вызывается в той же
// транзакции, что и любая мутация поручений.
func (s *BudgetService) RecomputeReserved(ctx context.Context, exec repositories.SQLExecutor, participantID int) (int64, error) {
	sum, err := s.proxies.SumActiveCeilings(ctx, exec, participantID)
	if err != nil {
		return 0, err
	}
	if err := s.participants.SetReserved(ctx, exec, participantID, sum); err != nil {
		return 0, err
	}
	return sum, nil
}

// BudgetView — снимок бюджета для вызывающего.
type BudgetView struct {
	ParticipantID    int   `json:"participant_id"`
	TotalBudget      int64 `json:"total_budget"`
	SpentCredits     int64 `json:"spent_credits"`
	ReservedCredits  int64 `json:"reserved_credits"`
	AvailableCredits int64 `json:"available_credits"`
}

// View — чистое чтение трёх хранимых величин и производной доступной
// суммы.
func (s *BudgetService) View(ctx context.Context, userID, leagueID int) (*BudgetView, error) {
	p, err := s.participants.FindByUserAndLeague(ctx, nil, userID, leagueID)
	if err != nil {
		return nil, err
	}
	if p == nil {
		return nil, ErrNotLeagueMember
	}
	return &BudgetView{
		ParticipantID:    p.ID,
		TotalBudget:      p.TotalBudget,
		SpentCredits:     p.SpentCredits,
		ReservedCredits:  p.ReservedCredits,
		AvailableCredits: p.AvailableCredits(),
	}, nil
}

// History отдаёт последние записи леджера участника для сверки.
func (s *BudgetService) History(ctx context.Context, userID, leagueID, limit int) ([]*models.LedgerEntry, error) {
	p, err := s.participants.FindByUserAndLeague(ctx, nil, userID, leagueID)
	if err != nil {
		return nil, err
	}
	if p == nil {
		return nil, ErrNotLeagueMember
	}
	return s.ledger.ListByParticipant(ctx, nil, p.ID, limit)
}

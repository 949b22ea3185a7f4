package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/fantaleague/auction-system/models"
	"github.com/fantaleague/auction-system/repositories"
)

// TimerService обслуживает таймеры ответа перебитых лидеров. Таймер
// создаётся без дедлайна и получает его лениво, при первом появлении
// менеджера онлайн: отсутствующий менеджер не наказывается за то, что
// его перебили ночью.
type TimerService struct {
	tx           TxRunner
	leagues      repositories.LeagueRepository
	participants repositories.ParticipantRepository
	lots         repositories.LotRepository
	timers       repositories.ResponseTimerRepository
	cooldowns    repositories.CooldownRepository
	bids         *BidService
	logger       *slog.Logger
}

func NewTimerService(
	tx TxRunner,
	leagues repositories.LeagueRepository,
	participants repositories.ParticipantRepository,
	lots repositories.LotRepository,
	timers repositories.ResponseTimerRepository,
	cooldowns repositories.CooldownRepository,
	bids *BidService,
	logger *slog.Logger,
) *TimerService {
	return &TimerService{
		tx:           tx,
		leagues:      leagues,
		participants: participants,
		lots:         lots,
		timers:       timers,
		cooldowns:    cooldowns,
		bids:         bids,
		logger:       logger,
	}
}

// Действия ответа на перебитую ставку.
const (
	RespondActionBid  = "bid"
	RespondActionFold = "fold"
)

// ActivatePresence назначает дедлайны всем неактивированным таймерам
// пользователя. Вызывается из любой точки, где пользователь проявил
// себя: подключение по WebSocket, любой авторизованный запрос.
func (s *TimerService) ActivatePresence(ctx context.Context, userID int) (int64, error) {
	activated, err := s.timers.ActivatePendingByUser(ctx, nil, userID, time.Now())
	if err != nil {
		return 0, err
	}
	if activated > 0 {
		s.logger.InfoContext(ctx, "response timers activated",
			slog.Int("user_id", userID),
			slog.Int64("count", activated),
		)
	}
	return activated, nil
}

// Respond обрабатывает явный ответ менеджера на перебитую ставку:
// "bid" перебивает минимальным шагом, "fold" уступает лот и включает
// кулдаун на этого игрока.
func (s *TimerService) Respond(ctx context.Context, leagueID, playerID, userID int, action string) (*models.LotSnapshot, error) {
	if action != RespondActionBid && action != RespondActionFold {
		return nil, fmt.Errorf("%w: %q", ErrInvalidAction, action)
	}

	participant, err := s.participants.FindByUserAndLeague(ctx, nil, userID, leagueID)
	if err != nil {
		return nil, err
	}
	if participant == nil {
		return nil, ErrNotLeagueMember
	}

	pending, err := s.timers.FindPending(ctx, nil, leagueID, participant.ID, playerID)
	if err != nil {
		return nil, err
	}
	if pending == nil {
		return nil, ErrTimerNotFound
	}

	if action == RespondActionBid {
		lot, err := s.lots.FindOpenByPlayer(ctx, nil, leagueID, playerID, false)
		if err != nil {
			return nil, err
		}
		if lot == nil {
			return nil, ErrLotNotFound
		}
		// Цена перечитывается под блокировкой внутри PlaceBid; если её
		// успели поднять, менеджер получит ErrBidTooLow и решит заново.
		return s.bids.PlaceBid(ctx, leagueID, playerID, userID, lot.CurrentPrice+1, models.BidKindQuick, nil)
	}

	err = s.tx.InTx(ctx, func(exec repositories.SQLExecutor) error {
		return s.fold(ctx, exec, leagueID, participant.ID, playerID, time.Now())
	})
	if err != nil {
		return nil, err
	}
	return nil, nil
}

// ExpireOverdue закрывает активированные таймеры с истёкшим дедлайном
// как автоматический fold. Вызывается планировщиком; ошибка по одному
// таймеру не останавливает остальные.
func (s *TimerService) ExpireOverdue(ctx context.Context, now time.Time) (int, error) {
	overdue, err := s.timers.ListOverdue(ctx, nil, now)
	if err != nil {
		return 0, err
	}

	expired := 0
	for _, t := range overdue {
		timer := t
		err := s.tx.InTx(ctx, func(exec repositories.SQLExecutor) error {
			return s.fold(ctx, exec, timer.LeagueID, timer.ParticipantID, timer.PlayerID, now)
		})
		if errors.Is(err, ErrTimerNotFound) {
			// закрыт параллельной ставкой между выборкой и обработкой
			continue
		}
		if err != nil {
			s.logger.ErrorContext(ctx, "failed to expire response timer",
				slog.Int("timer_id", timer.ID),
				slog.String("error", err.Error()),
			)
			continue
		}
		expired++
	}
	return expired, nil
}

// fold завершает pending-таймер и вешает кулдаун на пару
// участник-игрок. Таймер мог быть закрыт параллельной ставкой — тогда
// кулдаун не создаётся.
func (s *TimerService) fold(ctx context.Context, exec repositories.SQLExecutor, leagueID, participantID, playerID int, now time.Time) error {
	done, err := s.timers.Complete(ctx, exec, leagueID, participantID, playerID)
	if err != nil {
		return err
	}
	if !done {
		return ErrTimerNotFound
	}

	league, err := s.leagues.GetByID(ctx, exec, leagueID)
	if err != nil {
		return err
	}
	cd := &models.Cooldown{
		LeagueID:      leagueID,
		ParticipantID: participantID,
		PlayerID:      playerID,
		ExpiresAt:     now.Add(league.CooldownWindow()),
	}
	return s.cooldowns.Create(ctx, exec, cd)
}

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

// BidService валидирует и применяет одну ставку как одну атомарную
// единицу работы: запись ставки, обновление лота, поручение и пересчёт
// резерва, каскад авто-ставок и таймеры ответа коммитятся вместе.
type BidService struct {
	tx           TxRunner
	guard        *InFlightGuard
	leagues      repositories.LeagueRepository
	players      repositories.PlayerRepository
	participants repositories.ParticipantRepository
	roster       repositories.RosterRepository
	lots         repositories.LotRepository
	bids         repositories.BidRepository
	proxies      repositories.ProxyInstructionRepository
	timers       repositories.ResponseTimerRepository
	cooldowns    repositories.CooldownRepository
	budget       *BudgetService
	resolver     *AutoBidResolver
	notifier     Notifier
	logger       *slog.Logger
}

func NewBidService(
	tx TxRunner,
	guard *InFlightGuard,
	leagues repositories.LeagueRepository,
	players repositories.PlayerRepository,
	participants repositories.ParticipantRepository,
	roster repositories.RosterRepository,
	lots repositories.LotRepository,
	bids repositories.BidRepository,
	proxies repositories.ProxyInstructionRepository,
	timers repositories.ResponseTimerRepository,
	cooldowns repositories.CooldownRepository,
	budget *BudgetService,
	resolver *AutoBidResolver,
	notifier Notifier,
	logger *slog.Logger,
) *BidService {
	return &BidService{
		tx:           tx,
		guard:        guard,
		leagues:      leagues,
		players:      players,
		participants: participants,
		roster:       roster,
		lots:         lots,
		bids:         bids,
		proxies:      proxies,
		timers:       timers,
		cooldowns:    cooldowns,
		budget:       budget,
		resolver:     resolver,
		notifier:     notifier,
		logger:       logger,
	}
}

// PlaceBid применяет ставку менеджера и возвращает снимок лота после
// каскада авто-ставок: итоговые цена и лидер могут отличаться от самой
// ставки. Если открытого лота нет, ставка открывает его.
func (s *BidService) PlaceBid(ctx context.Context, leagueID, playerID, userID int, amount int64, kind models.BidKind, ceiling *int64) (*models.LotSnapshot, error) {
	if amount <= 0 {
		return nil, fmt.Errorf("%w: got %d", ErrInvalidAmount, amount)
	}
	switch kind {
	case models.BidKindManual, models.BidKindQuick:
	case "":
		kind = models.BidKindManual
	default:
		// auto зарезервирован за движком
		return nil, fmt.Errorf("%w: got %q", ErrInvalidKind, kind)
	}
	if ceiling != nil && *ceiling < amount {
		return nil, fmt.Errorf("%w: ceiling %d, amount %d", ErrInvalidCeiling, *ceiling, amount)
	}

	// Одновременные дубликаты отклоняются сразу, а не ставятся в очередь.
	if !s.guard.Acquire(leagueID, playerID, userID) {
		return nil, ErrBidInFlight
	}
	defer s.guard.Release(leagueID, playerID, userID)

	var (
		snap    *models.LotSnapshot
		trail   eventTrail
		created bool
	)
	err := s.tx.InTx(ctx, func(exec repositories.SQLExecutor) error {
		now := time.Now()

		league, err := s.leagues.GetByID(ctx, exec, leagueID)
		if err != nil {
			if errors.Is(err, repositories.ErrLeagueNotFound) {
				return ErrLeagueNotFound
			}
			return err
		}
		player, err := s.players.GetByID(ctx, exec, playerID)
		if err != nil {
			if errors.Is(err, repositories.ErrPlayerNotFound) {
				return ErrPlayerNotFound
			}
			return err
		}
		participant, err := s.participants.FindByUserAndLeague(ctx, exec, userID, leagueID)
		if err != nil {
			return err
		}
		if participant == nil {
			return ErrNotLeagueMember
		}

		// Блокировка строки лота сериализует все мутации по нему;
		// проигравшая гонку транзакция перечитает свежую цену здесь.
		lot, err := s.lots.FindOpenByPlayer(ctx, exec, leagueID, playerID, true)
		if err != nil {
			return err
		}
		if lot != nil {
			if amount <= lot.CurrentPrice {
				return fmt.Errorf("%w: current price %d", ErrBidTooLow, lot.CurrentPrice)
			}
			if lot.CurrentLeaderID != nil && *lot.CurrentLeaderID == participant.ID {
				return ErrSelfOutbid
			}
		}

		if err := s.checkEligibility(ctx, exec, league, player, participant, now); err != nil {
			return err
		}
		if err := s.checkFunds(ctx, exec, participant.ID, lot, amount, ceiling); err != nil {
			return err
		}
		if err := s.checkRosterCapacity(ctx, exec, league, player, participant); err != nil {
			return err
		}

		if lot == nil {
			lot, err = s.openLot(ctx, exec, league, player, participant, amount, now)
			if err != nil {
				return err
			}
			created = true
			leagueSnap := lot.Snapshot()
			trail.add(func(n Notifier) { n.LotCreated(leagueSnap) })
		} else {
			if err := s.applyBid(ctx, exec, league, lot, participant, amount, kind, now, &trail); err != nil {
				return err
			}
		}

		if ceiling != nil {
			instr := &models.ProxyInstruction{
				LotID:         lot.ID,
				ParticipantID: participant.ID,
				Ceiling:       *ceiling,
			}
			if err := s.proxies.Upsert(ctx, exec, instr); err != nil {
				return err
			}
			if _, err := s.budget.RecomputeReserved(ctx, exec, participant.ID); err != nil {
				return err
			}
		}

		if err := s.resolver.Resolve(ctx, exec, league, lot, now, &trail); err != nil {
			return err
		}

		// Каждая мутация лота завершается событием lot-updated; только
		// чистое открытие без каскада уже полностью описано событием
		// создания.
		snap = lot.Snapshot()
		if !created || len(trail.fns) > 1 {
			final := *snap
			trail.add(func(n Notifier) { n.LotUpdated(&final) })
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	trail.publish(s.notifier)
	return snap, nil
}

// StartLot — явное открытие лота стартовой ставкой. Если лот уже
// открыт, поведение совпадает с обычной ставкой.
func (s *BidService) StartLot(ctx context.Context, leagueID, playerID, userID int, openingAmount int64, ceiling *int64) (*models.LotSnapshot, error) {
	return s.PlaceBid(ctx, leagueID, playerID, userID, openingAmount, models.BidKindManual, ceiling)
}

// LotState — чтение для ресинхронизации клиентов: уведомления
// best-effort, актуальное состояние всегда доступно перечитыванием.
func (s *BidService) LotState(ctx context.Context, leagueID, playerID int) (*models.LotSnapshot, []*models.Bid, error) {
	lot, err := s.lots.FindOpenByPlayer(ctx, nil, leagueID, playerID, false)
	if err != nil {
		return nil, nil, err
	}
	if lot == nil {
		return nil, nil, ErrLotNotFound
	}
	history, err := s.bids.ListByLot(ctx, nil, lot.ID, 20)
	if err != nil {
		return nil, nil, err
	}
	return lot.Snapshot(), history, nil
}

// checkEligibility — предусловия, не зависящие от суммы: членство уже
// проверено, здесь роль, занятость игрока и кулдаун. Вместимость
// состава проверяется отдельно после средств.
func (s *BidService) checkEligibility(ctx context.Context, exec repositories.SQLExecutor, league *models.League, player *models.Player, participant *models.Participant, now time.Time) error {
	if !league.RoleOpen(player.Role) {
		return fmt.Errorf("%w: role %s", ErrRoleNotOpen, player.Role)
	}

	assigned, err := s.roster.Exists(ctx, exec, league.ID, player.ID)
	if err != nil {
		return err
	}
	if assigned {
		return ErrPlayerAssigned
	}

	cd, err := s.cooldowns.FindActive(ctx, exec, league.ID, participant.ID, player.ID, now)
	if err != nil {
		return err
	}
	if cd != nil {
		return fmt.Errorf("%w: until %s", ErrCooldownActive, cd.ExpiresAt.Format(time.RFC3339))
	}
	return nil
}

func (s *BidService) checkRosterCapacity(ctx context.Context, exec repositories.SQLExecutor, league *models.League, player *models.Player, participant *models.Participant) error {
	taken, err := s.roster.CountByRole(ctx, exec, league.ID, participant.ID, player.Role)
	if err != nil {
		return err
	}
	if taken >= league.SlotsForRole(player.Role) {
		return fmt.Errorf("%w: role %s", ErrRosterFull, player.Role)
	}
	return nil
}

// checkFunds сравнивает доступные кредиты с обязательством. Потолок
// собственного прежнего поручения на этом лоте исключается из резерва:
// менеджер, заменяющий своё поручение, не резервируется дважды.
func (s *BidService) checkFunds(ctx context.Context, exec repositories.SQLExecutor, participantID int, lot *models.Lot, amount int64, ceiling *int64) error {
	required := amount
	if ceiling != nil && *ceiling > required {
		required = *ceiling
	}

	var exclusion int64
	if lot != nil {
		prev, err := s.proxies.FindByLotAndParticipant(ctx, exec, lot.ID, participantID)
		if err != nil {
			return err
		}
		if prev != nil && prev.Active {
			exclusion = prev.Ceiling
		}
	}

	locked, err := s.participants.GetForUpdate(ctx, exec, participantID)
	if err != nil {
		return err
	}
	available := locked.AvailableCredits() + exclusion
	if available < required {
		return fmt.Errorf("%w: available %d, required %d", ErrInsufficientFunds, available, required)
	}
	return nil
}

func (s *BidService) openLot(ctx context.Context, exec repositories.SQLExecutor, league *models.League, player *models.Player, participant *models.Participant, amount int64, now time.Time) (*models.Lot, error) {
	leaderID := participant.ID
	lot := &models.Lot{
		LeagueID:        league.ID,
		PlayerID:        player.ID,
		Status:          models.LotStatusActive,
		CurrentPrice:    amount,
		CurrentLeaderID: &leaderID,
		Deadline:        now.Add(league.TimerWindow()),
	}
	if err := s.lots.Create(ctx, exec, lot); err != nil {
		if errors.Is(err, repositories.ErrLotConflict) {
			return nil, ErrLotConflict
		}
		return nil, err
	}

	bid := &models.Bid{
		LotID:         lot.ID,
		ParticipantID: participant.ID,
		Amount:        amount,
		Kind:          models.BidKindManual,
	}
	if err := s.bids.Create(ctx, exec, bid); err != nil {
		return nil, err
	}
	return lot, nil
}

func (s *BidService) applyBid(ctx context.Context, exec repositories.SQLExecutor, league *models.League, lot *models.Lot, participant *models.Participant, amount int64, kind models.BidKind, now time.Time, trail *eventTrail) error {
	bid := &models.Bid{
		LotID:         lot.ID,
		ParticipantID: participant.ID,
		Amount:        amount,
		Kind:          kind,
	}
	if err := s.bids.Create(ctx, exec, bid); err != nil {
		return err
	}

	// Каждая принятая ставка сбрасывает обратный отсчёт (анти-снайпинг).
	deadline := now.Add(league.TimerWindow())
	if err := s.lots.UpdateBidState(ctx, exec, lot.ID, amount, participant.ID, deadline); err != nil {
		return err
	}

	prevLeader := lot.CurrentLeaderID
	leaderID := participant.ID
	lot.CurrentPrice = amount
	lot.CurrentLeaderID = &leaderID
	lot.Deadline = deadline

	if prevLeader != nil && *prevLeader != participant.ID {
		if err := s.timers.CreatePending(ctx, exec, league.ID, *prevLeader, lot.PlayerID); err != nil {
			return err
		}
		displaced, err := s.participants.GetByID(ctx, exec, *prevLeader)
		if err != nil {
			return err
		}
		leagueID, playerID, displacedUserID := league.ID, lot.PlayerID, displaced.UserID
		trail.add(func(n Notifier) { n.BidSurpassed(leagueID, playerID, displacedUserID) })
	}
	if _, err := s.timers.Complete(ctx, exec, league.ID, participant.ID, lot.PlayerID); err != nil {
		return err
	}
	return nil
}

package services

import (
	"context"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/fantaleague/auction-system/models"
	"github.com/fantaleague/auction-system/repositories"
)

// ClosingService закрывает лоты с истёкшим дедлайном. Каждый лот
// закрывается в собственной транзакции, поэтому сбой одного лота не
// задерживает остальные; повторный проход по уже проданному лоту —
// no-op за счёт статусного guard-а в MarkSold.
type ClosingService struct {
	tx           TxRunner
	lots         repositories.LotRepository
	proxies      repositories.ProxyInstructionRepository
	roster       repositories.RosterRepository
	timers       repositories.ResponseTimerRepository
	participants repositories.ParticipantRepository
	budget       *BudgetService
	archive      *ArchiveService
	notifier     Notifier
	logger       *slog.Logger
	workers      int
}

func NewClosingService(
	tx TxRunner,
	lots repositories.LotRepository,
	proxies repositories.ProxyInstructionRepository,
	roster repositories.RosterRepository,
	timers repositories.ResponseTimerRepository,
	participants repositories.ParticipantRepository,
	budget *BudgetService,
	archive *ArchiveService,
	notifier Notifier,
	logger *slog.Logger,
	workers int,
) *ClosingService {
	if workers < 1 {
		workers = 1
	}
	return &ClosingService{
		tx:           tx,
		lots:         lots,
		proxies:      proxies,
		roster:       roster,
		timers:       timers,
		participants: participants,
		budget:       budget,
		archive:      archive,
		notifier:     notifier,
		logger:       logger,
		workers:      workers,
	}
}

// Sweep — один проход планировщика: сначала active-лоты внутри
// льготного окна помечаются closing (ставки по ним ещё принимаются),
// затем просроченные лоты закрываются пачкой.
func (s *ClosingService) Sweep(ctx context.Context, now time.Time) error {
	marked, err := s.lots.MarkClosing(ctx, nil, now)
	if err != nil {
		return err
	}
	if marked > 0 {
		s.logger.InfoContext(ctx, "lots entered closing window", slog.Int64("count", marked))
	}

	due, err := s.lots.ListDue(ctx, nil, now)
	if err != nil {
		return err
	}
	if len(due) == 0 {
		return nil
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.workers)
	for _, lot := range due {
		lot := lot
		g.Go(func() error {
			if err := s.closeLot(gctx, lot.ID, now); err != nil {
				s.logger.ErrorContext(gctx, "failed to close lot",
					slog.Int("lot_id", lot.ID),
					slog.String("error", err.Error()),
				)
			}
			// ошибка одного лота не прерывает проход
			return nil
		})
	}
	return g.Wait()
}

func (s *ClosingService) closeLot(ctx context.Context, lotID int, now time.Time) error {
	var (
		trail eventTrail
		sold  *models.Lot
	)
	err := s.tx.InTx(ctx, func(exec repositories.SQLExecutor) error {
		head, err := s.lots.GetByID(ctx, exec, lotID)
		if err != nil {
			return err
		}
		// Блокировка той же строки, что и у ставок: закрытие и ставка по
		// одному лоту никогда не перемешиваются.
		lot, err := s.lots.FindOpenByPlayer(ctx, exec, head.LeagueID, head.PlayerID, true)
		if err != nil {
			return err
		}
		if lot == nil || lot.ID != lotID {
			return nil
		}

		ok, err := s.lots.MarkSold(ctx, exec, lot.ID, now)
		if err != nil {
			return err
		}
		if !ok {
			// дедлайн сдвинула свежая ставка, либо лот уже продан
			return nil
		}
		lot.Status = models.LotStatusSold

		// Все поручения по лоту гаснут, резерв владельцев пересчитывается.
		// Победитель — первым: его списание ниже опирается на то, что
		// потолок этого лота уже не резервируется.
		instrs, err := s.proxies.ListActiveByLot(ctx, exec, lot.ID)
		if err != nil {
			return err
		}
		owners := make(map[int]struct{}, len(instrs))
		for _, instr := range instrs {
			if err := s.proxies.Deactivate(ctx, exec, instr.ID); err != nil {
				return err
			}
			owners[instr.ParticipantID] = struct{}{}
		}
		if lot.CurrentLeaderID != nil {
			if _, ok := owners[*lot.CurrentLeaderID]; ok {
				if _, err := s.budget.RecomputeReserved(ctx, exec, *lot.CurrentLeaderID); err != nil {
					return err
				}
				delete(owners, *lot.CurrentLeaderID)
			}
		}
		for participantID := range owners {
			if _, err := s.budget.RecomputeReserved(ctx, exec, participantID); err != nil {
				return err
			}
		}

		if lot.CurrentLeaderID != nil {
			slot := &models.RosterSlot{
				LeagueID:      lot.LeagueID,
				ParticipantID: *lot.CurrentLeaderID,
				PlayerID:      lot.PlayerID,
				Price:         lot.CurrentPrice,
			}
			if err := s.roster.Create(ctx, exec, slot); err != nil {
				return err
			}
			playerID := lot.PlayerID
			if _, err := s.budget.Debit(ctx, exec, *lot.CurrentLeaderID, lot.CurrentPrice, models.LedgerEntrySettlement, &playerID); err != nil {
				return err
			}
		}

		if err := s.timers.CompleteAllForPlayer(ctx, exec, lot.LeagueID, lot.PlayerID); err != nil {
			return err
		}

		sold = lot
		leagueID, playerID, winner, price := lot.LeagueID, lot.PlayerID, lot.CurrentLeaderID, lot.CurrentPrice
		trail.add(func(n Notifier) { n.LotClosed(leagueID, playerID, winner, price) })
		return nil
	})
	if err != nil {
		return err
	}
	if sold == nil {
		return nil
	}

	trail.publish(s.notifier)
	s.archive.StoreSettlement(ctx, sold, now)
	s.logger.InfoContext(ctx, "lot closed",
		slog.Int("lot_id", sold.ID),
		slog.Int("league_id", sold.LeagueID),
		slog.Int("player_id", sold.PlayerID),
		slog.Int64("final_price", sold.CurrentPrice),
	)
	return nil
}

package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/fantaleague/auction-system/models"
	"github.com/fantaleague/auction-system/repositories"
)

// AutoBidResolver доводит лот до равновесия после смены цены или лидера:
// пока существует чужое активное поручение с потолком строго выше
// текущей цены, от имени его владельца ставится минимальный контр-шаг.
// Равные потолки не перебивают — приоритет у поручения, созданного
// раньше, поэтому действующий лидер не вытесняется зря.
type AutoBidResolver struct {
	participants repositories.ParticipantRepository
	proxies      repositories.ProxyInstructionRepository
	bids         repositories.BidRepository
	lots         repositories.LotRepository
	timers       repositories.ResponseTimerRepository
	budget       *BudgetService
	logger       *slog.Logger
}

func NewAutoBidResolver(
	participants repositories.ParticipantRepository,
	proxies repositories.ProxyInstructionRepository,
	bids repositories.BidRepository,
	lots repositories.LotRepository,
	timers repositories.ResponseTimerRepository,
	budget *BudgetService,
	logger *slog.Logger,
) *AutoBidResolver {
	return &AutoBidResolver{
		participants: participants,
		proxies:      proxies,
		bids:         bids,
		lots:         lots,
		timers:       timers,
		budget:       budget,
		logger:       logger,
	}
}

// Resolve выполняется внутри транзакции ставки и мутирует lot до
// финального состояния каскада. Нехватка средств у владельца поручения
// деактивирует только это поручение и никогда не срывает исходную
// ставку.
func (r *AutoBidResolver) Resolve(ctx context.Context, exec repositories.SQLExecutor, league *models.League, lot *models.Lot, now time.Time, trail *eventTrail) error {
	instrs, err := r.proxies.ListActiveByLot(ctx, exec, lot.ID)
	if err != nil {
		return err
	}
	if len(instrs) == 0 {
		return nil
	}

	// Явная граница цикла: каждая итерация либо поднимает цену минимум
	// на 1 (сверху она ограничена максимальным потолком), либо
	// деактивирует одно поручение.
	limit := len(instrs) + 1
	if spread := instrs[0].Ceiling - lot.CurrentPrice; spread > 0 {
		limit += int(spread)
	}

	for iter := 0; ; iter++ {
		if iter >= limit {
			return fmt.Errorf("auto-bid cascade on lot %d did not settle within %d iterations", lot.ID, limit)
		}

		next := pickCandidate(instrs, lot)
		if next == nil {
			return nil
		}

		counter := lot.CurrentPrice + 1
		if counter > next.Ceiling {
			counter = next.Ceiling
		}

		owner, err := r.participants.GetForUpdate(ctx, exec, next.ParticipantID)
		if err != nil {
			return err
		}
		// Потолок владельца уже входит в его резерв, поэтому для
		// контр-ставки в пределах потолка средства обычно есть; если
		// бюджет тем временем просел, поручение гасится.
		if owner.AvailableCredits()+next.Ceiling < counter {
			if err := r.proxies.Deactivate(ctx, exec, next.ID); err != nil {
				return err
			}
			if _, err := r.budget.RecomputeReserved(ctx, exec, owner.ID); err != nil {
				return err
			}
			next.Active = false
			r.logger.InfoContext(ctx, "proxy instruction deactivated: insufficient funds",
				slog.Int("lot_id", lot.ID),
				slog.Int("participant_id", owner.ID),
				slog.Int64("ceiling", next.Ceiling),
			)
			continue
		}

		bid := &models.Bid{
			LotID:         lot.ID,
			ParticipantID: owner.ID,
			Amount:        counter,
			Kind:          models.BidKindAuto,
		}
		if err := r.bids.Create(ctx, exec, bid); err != nil {
			return err
		}

		deadline := now.Add(league.TimerWindow())
		if err := r.lots.UpdateBidState(ctx, exec, lot.ID, counter, owner.ID, deadline); err != nil {
			return err
		}

		prevLeader := lot.CurrentLeaderID
		ownerID := owner.ID
		lot.CurrentPrice = counter
		lot.CurrentLeaderID = &ownerID
		lot.Deadline = deadline

		if prevLeader != nil && *prevLeader != owner.ID {
			if err := r.timers.CreatePending(ctx, exec, league.ID, *prevLeader, lot.PlayerID); err != nil {
				return err
			}
			displaced, err := r.participants.GetByID(ctx, exec, *prevLeader)
			if err != nil {
				return err
			}
			leagueID, playerID, displacedUserID := league.ID, lot.PlayerID, displaced.UserID
			trail.add(func(n Notifier) { n.BidSurpassed(leagueID, playerID, displacedUserID) })
		}
		if _, err := r.timers.Complete(ctx, exec, league.ID, owner.ID, lot.PlayerID); err != nil {
			return err
		}

		leagueID, playerID, ownerUserID, amount := league.ID, lot.PlayerID, owner.UserID, counter
		trail.add(func(n Notifier) { n.AutoBidEngaged(leagueID, playerID, ownerUserID, amount) })
	}
}

// pickCandidate выбирает активное поручение с наибольшим потолком среди
// не-лидеров, чей потолок строго выше текущей цены. Список уже
// отсортирован: потолок по убыванию, при равенстве — раньше созданное.
func pickCandidate(instrs []*models.ProxyInstruction, lot *models.Lot) *models.ProxyInstruction {
	for _, instr := range instrs {
		if !instr.Active {
			continue
		}
		if lot.CurrentLeaderID != nil && instr.ParticipantID == *lot.CurrentLeaderID {
			continue
		}
		if instr.Ceiling > lot.CurrentPrice {
			return instr
		}
	}
	return nil
}

package services

import (
	"context"
	"io"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/lib/pq"

	"github.com/fantaleague/auction-system/models"
	"github.com/fantaleague/auction-system/repositories"
)

// memStore — общее in-memory хранилище для фейковых репозиториев.
// Возвращает копии структур, как это делал бы скан строк из БД.
type memStore struct {
	mu sync.Mutex

	leagues      map[int]*models.League
	players      map[int]*models.Player
	participants map[int]*models.Participant
	lots         map[int]*models.Lot
	bids         []*models.Bid
	proxies      map[int]*models.ProxyInstruction
	ledger       []*models.LedgerEntry
	timers       map[int]*models.ResponseTimer
	cooldowns    []*models.Cooldown
	roster       []*models.RosterSlot

	seq   int
	clock time.Time
}

func newMemStore() *memStore {
	return &memStore{
		leagues:      make(map[int]*models.League),
		players:      make(map[int]*models.Player),
		participants: make(map[int]*models.Participant),
		lots:         make(map[int]*models.Lot),
		proxies:      make(map[int]*models.ProxyInstruction),
		timers:       make(map[int]*models.ResponseTimer),
		clock:        time.Date(2025, 8, 1, 12, 0, 0, 0, time.UTC),
	}
}

func (s *memStore) nextID() int {
	s.seq++
	return s.seq
}

// tick выдаёт монотонно растущие created_at, чтобы тай-брейки по
// времени создания были детерминированными.
func (s *memStore) tick() time.Time {
	s.clock = s.clock.Add(time.Millisecond)
	return s.clock
}

type fakeTxRunner struct{}

func (fakeTxRunner) InTx(ctx context.Context, fn func(exec repositories.SQLExecutor) error) error {
	return fn(nil)
}

// --- Leagues / Players ---

type fakeLeagueRepo struct{ s *memStore }

func (r fakeLeagueRepo) GetByID(ctx context.Context, exec repositories.SQLExecutor, id int) (*models.League, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	l, ok := r.s.leagues[id]
	if !ok {
		return nil, repositories.ErrLeagueNotFound
	}
	cp := *l
	return &cp, nil
}

type fakePlayerRepo struct{ s *memStore }

func (r fakePlayerRepo) GetByID(ctx context.Context, exec repositories.SQLExecutor, id int) (*models.Player, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	p, ok := r.s.players[id]
	if !ok {
		return nil, repositories.ErrPlayerNotFound
	}
	cp := *p
	return &cp, nil
}

// --- Participants ---

type fakeParticipantRepo struct{ s *memStore }

func (r fakeParticipantRepo) FindByUserAndLeague(ctx context.Context, exec repositories.SQLExecutor, userID, leagueID int) (*models.Participant, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, p := range r.s.participants {
		if p.UserID == userID && p.LeagueID == leagueID {
			cp := *p
			return &cp, nil
		}
	}
	return nil, nil
}

func (r fakeParticipantRepo) GetByID(ctx context.Context, exec repositories.SQLExecutor, id int) (*models.Participant, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	p, ok := r.s.participants[id]
	if !ok {
		return nil, repositories.ErrParticipantNotFound
	}
	cp := *p
	return &cp, nil
}

func (r fakeParticipantRepo) GetForUpdate(ctx context.Context, exec repositories.SQLExecutor, id int) (*models.Participant, error) {
	return r.GetByID(ctx, exec, id)
}

func (r fakeParticipantRepo) AddSpent(ctx context.Context, exec repositories.SQLExecutor, id int, amount int64) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	p, ok := r.s.participants[id]
	if !ok {
		return repositories.ErrParticipantNotFound
	}
	p.SpentCredits += amount
	return nil
}

func (r fakeParticipantRepo) SetReserved(ctx context.Context, exec repositories.SQLExecutor, id int, reserved int64) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	p, ok := r.s.participants[id]
	if !ok {
		return repositories.ErrParticipantNotFound
	}
	p.ReservedCredits = reserved
	return nil
}

// --- Lots ---

type fakeLotRepo struct{ s *memStore }

func (r fakeLotRepo) Create(ctx context.Context, exec repositories.SQLExecutor, lot *models.Lot) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, l := range r.s.lots {
		if l.LeagueID == lot.LeagueID && l.PlayerID == lot.PlayerID && l.Status != models.LotStatusSold {
			return repositories.ErrLotConflict
		}
	}
	lot.ID = r.s.nextID()
	lot.CreatedAt = r.s.tick()
	cp := *lot
	r.s.lots[lot.ID] = &cp
	return nil
}

func (r fakeLotRepo) GetByID(ctx context.Context, exec repositories.SQLExecutor, id int) (*models.Lot, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	l, ok := r.s.lots[id]
	if !ok {
		return nil, repositories.ErrLotNotFound
	}
	cp := *l
	return &cp, nil
}

func (r fakeLotRepo) FindOpenByPlayer(ctx context.Context, exec repositories.SQLExecutor, leagueID, playerID int, forUpdate bool) (*models.Lot, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, l := range r.s.lots {
		if l.LeagueID == leagueID && l.PlayerID == playerID && l.Status != models.LotStatusSold {
			cp := *l
			return &cp, nil
		}
	}
	return nil, nil
}

func (r fakeLotRepo) UpdateBidState(ctx context.Context, exec repositories.SQLExecutor, id int, price int64, leaderID int, deadline time.Time) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	l, ok := r.s.lots[id]
	if !ok || l.Status == models.LotStatusSold {
		return repositories.ErrLotNotFound
	}
	l.CurrentPrice = price
	leader := leaderID
	l.CurrentLeaderID = &leader
	l.Deadline = deadline
	return nil
}

func (r fakeLotRepo) MarkClosing(ctx context.Context, exec repositories.SQLExecutor, now time.Time) (int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var count int64
	for _, l := range r.s.lots {
		if l.Status != models.LotStatusActive {
			continue
		}
		league, ok := r.s.leagues[l.LeagueID]
		if !ok {
			continue
		}
		if !l.Deadline.After(now.Add(league.ClosingGrace())) {
			l.Status = models.LotStatusClosing
			count++
		}
	}
	return count, nil
}

func (r fakeLotRepo) ListDue(ctx context.Context, exec repositories.SQLExecutor, now time.Time) ([]*models.Lot, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	due := make([]*models.Lot, 0)
	for _, l := range r.s.lots {
		if l.Status != models.LotStatusSold && !l.Deadline.After(now) {
			cp := *l
			due = append(due, &cp)
		}
	}
	sort.Slice(due, func(i, j int) bool { return due[i].ID < due[j].ID })
	return due, nil
}

func (r fakeLotRepo) MarkSold(ctx context.Context, exec repositories.SQLExecutor, id int, now time.Time) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	l, ok := r.s.lots[id]
	if !ok || l.Status == models.LotStatusSold || l.Deadline.After(now) {
		return false, nil
	}
	l.Status = models.LotStatusSold
	return true, nil
}

// --- Bids ---

type fakeBidRepo struct{ s *memStore }

func (r fakeBidRepo) Create(ctx context.Context, exec repositories.SQLExecutor, bid *models.Bid) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	bid.ID = r.s.nextID()
	bid.CreatedAt = r.s.tick()
	cp := *bid
	r.s.bids = append(r.s.bids, &cp)
	return nil
}

func (r fakeBidRepo) ListByLot(ctx context.Context, exec repositories.SQLExecutor, lotID, limit int) ([]*models.Bid, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	out := make([]*models.Bid, 0)
	for i := len(r.s.bids) - 1; i >= 0; i-- {
		if r.s.bids[i].LotID != lotID {
			continue
		}
		cp := *r.s.bids[i]
		out = append(out, &cp)
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out, nil
}

// --- Proxy instructions ---

type fakeProxyRepo struct{ s *memStore }

func (r fakeProxyRepo) Upsert(ctx context.Context, exec repositories.SQLExecutor, instr *models.ProxyInstruction) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, p := range r.s.proxies {
		if p.LotID == instr.LotID && p.ParticipantID == instr.ParticipantID {
			p.Ceiling = instr.Ceiling
			p.Active = true
			instr.ID = p.ID
			instr.Active = true
			instr.CreatedAt = p.CreatedAt
			return nil
		}
	}
	instr.ID = r.s.nextID()
	instr.Active = true
	instr.CreatedAt = r.s.tick()
	cp := *instr
	r.s.proxies[instr.ID] = &cp
	return nil
}

func (r fakeProxyRepo) FindByLotAndParticipant(ctx context.Context, exec repositories.SQLExecutor, lotID, participantID int) (*models.ProxyInstruction, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, p := range r.s.proxies {
		if p.LotID == lotID && p.ParticipantID == participantID {
			cp := *p
			return &cp, nil
		}
	}
	return nil, nil
}

func (r fakeProxyRepo) ListActiveByLot(ctx context.Context, exec repositories.SQLExecutor, lotID int) ([]*models.ProxyInstruction, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	out := make([]*models.ProxyInstruction, 0)
	for _, p := range r.s.proxies {
		if p.LotID == lotID && p.Active {
			cp := *p
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Ceiling != out[j].Ceiling {
			return out[i].Ceiling > out[j].Ceiling
		}
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (r fakeProxyRepo) Deactivate(ctx context.Context, exec repositories.SQLExecutor, id int) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	p, ok := r.s.proxies[id]
	if !ok {
		return repositories.ErrProxyInstructionNotFound
	}
	p.Active = false
	return nil
}

func (r fakeProxyRepo) SumActiveCeilings(ctx context.Context, exec repositories.SQLExecutor, participantID int) (int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var sum int64
	for _, p := range r.s.proxies {
		if p.ParticipantID != participantID || !p.Active {
			continue
		}
		if lot, ok := r.s.lots[p.LotID]; ok && lot.Status == models.LotStatusSold {
			continue
		}
		sum += p.Ceiling
	}
	return sum, nil
}

// --- Ledger ---

type fakeLedgerRepo struct{ s *memStore }

func (r fakeLedgerRepo) Create(ctx context.Context, exec repositories.SQLExecutor, entry *models.LedgerEntry) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	entry.ID = r.s.nextID()
	entry.CreatedAt = r.s.tick()
	cp := *entry
	r.s.ledger = append(r.s.ledger, &cp)
	return nil
}

func (r fakeLedgerRepo) ListByParticipant(ctx context.Context, exec repositories.SQLExecutor, participantID, limit int) ([]*models.LedgerEntry, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	out := make([]*models.LedgerEntry, 0)
	for i := len(r.s.ledger) - 1; i >= 0; i-- {
		if r.s.ledger[i].ParticipantID != participantID {
			continue
		}
		cp := *r.s.ledger[i]
		out = append(out, &cp)
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out, nil
}

// --- Response timers ---

type fakeTimerRepo struct{ s *memStore }

func (r fakeTimerRepo) CreatePending(ctx context.Context, exec repositories.SQLExecutor, leagueID, participantID, playerID int) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, t := range r.s.timers {
		if t.LeagueID == leagueID && t.ParticipantID == participantID && t.PlayerID == playerID && t.Status == models.TimerStatusPending {
			return nil
		}
	}
	id := r.s.nextID()
	r.s.timers[id] = &models.ResponseTimer{
		ID:            id,
		LeagueID:      leagueID,
		ParticipantID: participantID,
		PlayerID:      playerID,
		Status:        models.TimerStatusPending,
		CreatedAt:     r.s.tick(),
	}
	return nil
}

func (r fakeTimerRepo) ActivatePendingByUser(ctx context.Context, exec repositories.SQLExecutor, userID int, now time.Time) (int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var count int64
	for _, t := range r.s.timers {
		if t.Status != models.TimerStatusPending || t.ActivatedAt != nil {
			continue
		}
		p, ok := r.s.participants[t.ParticipantID]
		if !ok || p.UserID != userID {
			continue
		}
		league, ok := r.s.leagues[t.LeagueID]
		if !ok {
			continue
		}
		activated := now
		deadline := now.Add(league.ResponseWindow())
		t.ActivatedAt = &activated
		t.Deadline = &deadline
		count++
	}
	return count, nil
}

func (r fakeTimerRepo) FindPending(ctx context.Context, exec repositories.SQLExecutor, leagueID, participantID, playerID int) (*models.ResponseTimer, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, t := range r.s.timers {
		if t.LeagueID == leagueID && t.ParticipantID == participantID && t.PlayerID == playerID && t.Status == models.TimerStatusPending {
			cp := *t
			return &cp, nil
		}
	}
	return nil, nil
}

func (r fakeTimerRepo) Complete(ctx context.Context, exec repositories.SQLExecutor, leagueID, participantID, playerID int) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, t := range r.s.timers {
		if t.LeagueID == leagueID && t.ParticipantID == participantID && t.PlayerID == playerID && t.Status == models.TimerStatusPending {
			t.Status = models.TimerStatusCompleted
			return true, nil
		}
	}
	return false, nil
}

func (r fakeTimerRepo) CompleteAllForPlayer(ctx context.Context, exec repositories.SQLExecutor, leagueID, playerID int) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, t := range r.s.timers {
		if t.LeagueID == leagueID && t.PlayerID == playerID && t.Status == models.TimerStatusPending {
			t.Status = models.TimerStatusCompleted
		}
	}
	return nil
}

func (r fakeTimerRepo) ListOverdue(ctx context.Context, exec repositories.SQLExecutor, now time.Time) ([]*models.ResponseTimer, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	out := make([]*models.ResponseTimer, 0)
	for _, t := range r.s.timers {
		if t.Status == models.TimerStatusPending && t.ActivatedAt != nil && t.Deadline != nil && !t.Deadline.After(now) {
			cp := *t
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// --- Cooldowns ---

type fakeCooldownRepo struct{ s *memStore }

func (r fakeCooldownRepo) Create(ctx context.Context, exec repositories.SQLExecutor, cd *models.Cooldown) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	cd.ID = r.s.nextID()
	cd.CreatedAt = r.s.tick()
	cp := *cd
	r.s.cooldowns = append(r.s.cooldowns, &cp)
	return nil
}

func (r fakeCooldownRepo) FindActive(ctx context.Context, exec repositories.SQLExecutor, leagueID, participantID, playerID int, now time.Time) (*models.Cooldown, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, cd := range r.s.cooldowns {
		if cd.LeagueID == leagueID && cd.ParticipantID == participantID && cd.PlayerID == playerID && cd.ExpiresAt.After(now) {
			cp := *cd
			return &cp, nil
		}
	}
	return nil, nil
}

// --- Roster ---

type fakeRosterRepo struct{ s *memStore }

func (r fakeRosterRepo) Create(ctx context.Context, exec repositories.SQLExecutor, slot *models.RosterSlot) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, existing := range r.s.roster {
		if existing.LeagueID == slot.LeagueID && existing.PlayerID == slot.PlayerID {
			return repositories.ErrRosterSlotConflict
		}
	}
	slot.ID = r.s.nextID()
	slot.CreatedAt = r.s.tick()
	cp := *slot
	r.s.roster = append(r.s.roster, &cp)
	return nil
}

func (r fakeRosterRepo) Exists(ctx context.Context, exec repositories.SQLExecutor, leagueID, playerID int) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, slot := range r.s.roster {
		if slot.LeagueID == leagueID && slot.PlayerID == playerID {
			return true, nil
		}
	}
	return false, nil
}

func (r fakeRosterRepo) CountByRole(ctx context.Context, exec repositories.SQLExecutor, leagueID, participantID int, role models.PlayerRole) (int, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	count := 0
	for _, slot := range r.s.roster {
		if slot.LeagueID != leagueID || slot.ParticipantID != participantID {
			continue
		}
		if p, ok := r.s.players[slot.PlayerID]; ok && p.Role == role {
			count++
		}
	}
	return count, nil
}

// --- Notifier ---

type closedEvent struct {
	LeagueID   int
	PlayerID   int
	WinnerID   *int
	FinalPrice int64
}

type engagedEvent struct {
	LeagueID int
	PlayerID int
	UserID   int
	Amount   int64
}

type surpassedEvent struct {
	LeagueID int
	PlayerID int
	UserID   int
}

type recordingNotifier struct {
	mu        sync.Mutex
	created   []*models.LotSnapshot
	updated   []*models.LotSnapshot
	closed    []closedEvent
	surpassed []surpassedEvent
	engaged   []engagedEvent
}

func (n *recordingNotifier) LotCreated(snap *models.LotSnapshot) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.created = append(n.created, snap)
}

func (n *recordingNotifier) LotUpdated(snap *models.LotSnapshot) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.updated = append(n.updated, snap)
}

func (n *recordingNotifier) LotClosed(leagueID, playerID int, winnerParticipantID *int, finalPrice int64) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.closed = append(n.closed, closedEvent{leagueID, playerID, winnerParticipantID, finalPrice})
}

func (n *recordingNotifier) BidSurpassed(leagueID, playerID, userID int) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.surpassed = append(n.surpassed, surpassedEvent{leagueID, playerID, userID})
}

func (n *recordingNotifier) AutoBidEngaged(leagueID, playerID, userID int, amount int64) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.engaged = append(n.engaged, engagedEvent{leagueID, playerID, userID, amount})
}

// --- Фикстура ---

type auctionFixture struct {
	store    *memStore
	notifier *recordingNotifier

	leagues      fakeLeagueRepo
	players      fakePlayerRepo
	participants fakeParticipantRepo
	lots         fakeLotRepo
	bidsRepo     fakeBidRepo
	proxies      fakeProxyRepo
	ledger       fakeLedgerRepo
	timersRepo   fakeTimerRepo
	cooldowns    fakeCooldownRepo
	roster       fakeRosterRepo

	guard    *InFlightGuard
	budget   *BudgetService
	resolver *AutoBidResolver
	bids     *BidService
	timers   *TimerService
	closing  *ClosingService
}

func newAuctionFixture() *auctionFixture {
	store := newMemStore()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	notifier := &recordingNotifier{}

	f := &auctionFixture{
		store:        store,
		notifier:     notifier,
		leagues:      fakeLeagueRepo{store},
		players:      fakePlayerRepo{store},
		participants: fakeParticipantRepo{store},
		lots:         fakeLotRepo{store},
		bidsRepo:     fakeBidRepo{store},
		proxies:      fakeProxyRepo{store},
		ledger:       fakeLedgerRepo{store},
		timersRepo:   fakeTimerRepo{store},
		cooldowns:    fakeCooldownRepo{store},
		roster:       fakeRosterRepo{store},
	}

	f.guard = NewInFlightGuard(time.Minute, 128)
	f.budget = NewBudgetService(f.participants, f.proxies, f.ledger)
	f.resolver = NewAutoBidResolver(f.participants, f.proxies, f.bidsRepo, f.lots, f.timersRepo, f.budget, logger)
	f.bids = NewBidService(
		fakeTxRunner{},
		f.guard,
		f.leagues,
		f.players,
		f.participants,
		f.roster,
		f.lots,
		f.bidsRepo,
		f.proxies,
		f.timersRepo,
		f.cooldowns,
		f.budget,
		f.resolver,
		notifier,
		logger,
	)
	f.timers = NewTimerService(
		fakeTxRunner{},
		f.leagues,
		f.participants,
		f.lots,
		f.timersRepo,
		f.cooldowns,
		f.bids,
		logger,
	)
	f.closing = NewClosingService(
		fakeTxRunner{},
		f.lots,
		f.proxies,
		f.roster,
		f.timersRepo,
		f.participants,
		f.budget,
		NewArchiveService(nil, logger),
		notifier,
		logger,
		1,
	)
	return f
}

func (f *auctionFixture) addLeague(id int) *models.League {
	l := &models.League{
		ID:                id,
		Name:              "test league",
		InitialBudget:     500,
		TimerWindowSec:    43200,
		ResponseWindowSec: 3600,
		CooldownWindowSec: 86400,
		ClosingGraceSec:   60,
		GoalkeeperSlots:   2,
		DefenderSlots:     4,
		MidfielderSlots:   4,
		ForwardSlots:      2,
		OpenRoles:         pq.StringArray{"GK", "DEF", "MID", "FWD"},
	}
	f.store.leagues[id] = l
	return l
}

func (f *auctionFixture) addPlayer(id int, role models.PlayerRole) *models.Player {
	p := &models.Player{ID: id, Name: "player", Role: role, RealTeam: "club"}
	f.store.players[id] = p
	return p
}

func (f *auctionFixture) addParticipant(id, leagueID, userID int, budget int64) *models.Participant {
	p := &models.Participant{
		ID:          id,
		LeagueID:    leagueID,
		UserID:      userID,
		DisplayName: "manager",
		TotalBudget: budget,
	}
	f.store.participants[id] = p
	return p
}

func (f *auctionFixture) participant(id int) *models.Participant {
	f.store.mu.Lock()
	defer f.store.mu.Unlock()
	cp := *f.store.participants[id]
	return &cp
}

func (f *auctionFixture) lot(id int) *models.Lot {
	f.store.mu.Lock()
	defer f.store.mu.Unlock()
	cp := *f.store.lots[id]
	return &cp
}

func ptrInt64(v int64) *int64 { return &v }

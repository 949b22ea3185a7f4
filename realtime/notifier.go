package realtime

import (
	"fmt"
	"log/slog"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/fantaleague/auction-system/models"
)

// Типы исходящих событий.
const (
	MessageLotCreated     = "LOT_CREATED"
	MessageLotUpdated     = "LOT_UPDATED"
	MessageLotClosed      = "LOT_CLOSED"
	MessageBidSurpassed   = "BID_SURPASSED"
	MessageAutoBidEngaged = "AUTO_BID_ENGAGED"
)

// HubNotifier транслирует доменные события в комнаты хаба. Два уровня
// защиты от дублей: короткое TTL-окно гасит одинаковые сообщения от
// повторной обработки, а множество уже анонсированных лотов не даёт
// разослать LOT_CREATED дважды за время жизни процесса.
type HubNotifier struct {
	hub     *Hub
	dedup   *expirable.LRU[string, struct{}]
	created *lru.Cache[int, struct{}]
	logger  *slog.Logger
}

func NewHubNotifier(hub *Hub, dedupWindow time.Duration, logger *slog.Logger) (*HubNotifier, error) {
	// expirable.LRU запускает тикер очистки с шагом ttl/100: слишком
	// маленькое окно обнуляет шаг и роняет NewTicker
	if dedupWindow > 0 && dedupWindow < time.Millisecond {
		dedupWindow = time.Millisecond
	}
	created, err := lru.New[int, struct{}](1024)
	if err != nil {
		return nil, err
	}
	return &HubNotifier{
		hub:     hub,
		dedup:   expirable.NewLRU[string, struct{}](4096, nil, dedupWindow),
		created: created,
		logger:  logger,
	}, nil
}

// send пропускает сообщение через TTL-окно: одинаковый отпечаток внутри
// окна рассылается один раз.
func (n *HubNotifier) send(room, msgType, fingerprint string, payload interface{}) {
	key := room + "|" + msgType + "|" + fingerprint
	if _, seen := n.dedup.Get(key); seen {
		n.logger.Debug("duplicate event suppressed",
			slog.String("room", room),
			slog.String("type", msgType),
		)
		return
	}
	n.dedup.Add(key, struct{}{})
	n.hub.BroadcastToRoom(room, WebSocketMessage{Type: msgType, Payload: payload, Room: room})
}

func (n *HubNotifier) LotCreated(snap *models.LotSnapshot) {
	if ok, _ := n.created.ContainsOrAdd(snap.LotID, struct{}{}); ok {
		return
	}
	n.send(LeagueRoom(snap.LeagueID), MessageLotCreated, fmt.Sprintf("%d", snap.LotID), snap)
}

func (n *HubNotifier) LotUpdated(snap *models.LotSnapshot) {
	leader := 0
	if snap.CurrentLeaderID != nil {
		leader = *snap.CurrentLeaderID
	}
	fingerprint := fmt.Sprintf("%d:%d:%d:%s", snap.LotID, snap.CurrentPrice, leader, snap.Status)
	n.send(LeagueRoom(snap.LeagueID), MessageLotUpdated, fingerprint, snap)
}

func (n *HubNotifier) LotClosed(leagueID, playerID int, winnerParticipantID *int, finalPrice int64) {
	payload := map[string]interface{}{
		"league_id":             leagueID,
		"player_id":             playerID,
		"winner_participant_id": winnerParticipantID,
		"final_price":           finalPrice,
	}
	n.send(LeagueRoom(leagueID), MessageLotClosed, fmt.Sprintf("%d", playerID), payload)
}

func (n *HubNotifier) BidSurpassed(leagueID, playerID, userID int) {
	payload := map[string]interface{}{
		"league_id": leagueID,
		"player_id": playerID,
	}
	n.send(UserRoom(userID), MessageBidSurpassed, fmt.Sprintf("%d:%d", leagueID, playerID), payload)
}

func (n *HubNotifier) AutoBidEngaged(leagueID, playerID, userID int, amount int64) {
	payload := map[string]interface{}{
		"league_id": leagueID,
		"player_id": playerID,
		"amount":    amount,
	}
	n.send(UserRoom(userID), MessageAutoBidEngaged, fmt.Sprintf("%d:%d:%d", leagueID, playerID, amount), payload)
}

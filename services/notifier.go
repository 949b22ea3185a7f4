package services

import "github.com/fantaleague/auction-system/models"

// Notifier — исходящий канал событий реального времени. Реализация
// обязана быть best-effort: ошибки доставки никогда не возвращаются в
// сервисный слой и не откатывают уже закоммиченные изменения.
type Notifier interface {
	LotCreated(snap *models.LotSnapshot)
	LotUpdated(snap *models.LotSnapshot)
	LotClosed(leagueID, playerID int, winnerParticipantID *int, finalPrice int64)
	BidSurpassed(leagueID, playerID, userID int)
	AutoBidEngaged(leagueID, playerID, userID int, amount int64)
}

// eventTrail накапливает уведомления внутри транзакции и публикует их
// только после успешного коммита: подписчики не должны видеть состояние,
// которое может откатиться.
type eventTrail struct {
	fns []func(Notifier)
}

func (t *eventTrail) add(fn func(Notifier)) {
	t.fns = append(t.fns, fn)
}

func (t *eventTrail) publish(n Notifier) {
	if n == nil {
		return
	}
	for _, fn := range t.fns {
		fn(n)
	}
}

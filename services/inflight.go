package services

import (
	"fmt"
	"sync"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
)

// InFlightGuard отклоняет одновременные дубликаты запроса на ставку по
// одной тройке (лига, игрок, пользователь), не ставя их в очередь. Ключ
// строится по id пользователя: защита срабатывает до обращения к базе,
// когда участник лиги ещё не разрешён. Записи
// живут ограниченное время независимо от судьбы транзакции: упавший или
// зависший запрос не может навсегда заблокировать участнику этот лот.
//
// Сознательно процессно-локален: при нескольких инстансах за
// балансировщиком гарантия деградирует до "на инстанс".
type InFlightGuard struct {
	mu      sync.Mutex
	entries *expirable.LRU[string, time.Time]
}

func NewInFlightGuard(ttl time.Duration, size int) *InFlightGuard {
	return &InFlightGuard{
		entries: expirable.NewLRU[string, time.Time](size, nil, ttl),
	}
}

func inFlightKey(leagueID, playerID, userID int) string {
	return fmt.Sprintf("%d:%d:%d", leagueID, playerID, userID)
}

// Acquire возвращает false, если запрос по этой тройке уже выполняется.
func (g *InFlightGuard) Acquire(leagueID, playerID, userID int) bool {
	g.mu.Lock()
	defer g.mu.Unlock()

	key := inFlightKey(leagueID, playerID, userID)
	if _, ok := g.entries.Get(key); ok {
		return false
	}
	g.entries.Add(key, time.Now())
	return true
}

func (g *InFlightGuard) Release(leagueID, playerID, userID int) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.entries.Remove(inFlightKey(leagueID, playerID, userID))
}

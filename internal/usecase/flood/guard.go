package flood

import (
	"sync"
	"time"

	"tg-relay-bot/internal/infra/metrics"
)

// maxIdle ограничивает память: записи без активности дольше суток
// вычищаются лениво при следующей проверке.
const maxIdle = 24 * time.Hour

// Guard — посообщенческий ограничитель частоты с ленивой очисткой.
// Состояние живёт только в памяти процесса.
type Guard struct {
	ownerID int64
	limit   time.Duration

	mu   sync.Mutex
	last map[int64]time.Time
	now  func() time.Time
}

// NewGuard создаёт ограничитель. Владелец не ограничивается никогда.
func NewGuard(ownerID int64, limit time.Duration) *Guard {
	return &Guard{
		ownerID: ownerID,
		limit:   limit,
		last:    make(map[int64]time.Time),
		now:     time.Now,
	}
}

// Check возвращает true, если сообщение пользователя нужно отклонить.
// Иначе фиксирует текущий момент как время последнего принятого сообщения.
func (g *Guard) Check(userID int64) bool {
	g.mu.Lock()
	defer g.mu.Unlock()

	now := g.now()
	g.sweep(now)

	if userID == g.ownerID {
		return false
	}
	if last, ok := g.last[userID]; ok && now.Sub(last) < g.limit {
		metrics.FloodRejections.Inc()
		return true
	}
	g.last[userID] = now
	return false
}

// Reset безусловно очищает запись пользователя, открывая свежее окно.
func (g *Guard) Reset(userID int64) {
	g.mu.Lock()
	delete(g.last, userID)
	g.mu.Unlock()
}

func (g *Guard) sweep(now time.Time) {
	for userID, last := range g.last {
		if now.Sub(last) > maxIdle {
			delete(g.last, userID)
		}
	}
}

package flood

import (
	"testing"
	"time"
)

const owner = int64(1)

func newTestGuard(limit time.Duration) (*Guard, *time.Time) {
	g := NewGuard(owner, limit)
	current := time.Unix(1_700_000_000, 0)
	g.now = func() time.Time { return current }
	return g, &current
}

func TestCheckThrottlesWithinLimit(t *testing.T) {
	g, now := newTestGuard(5 * time.Second)
	if g.Check(42) {
		t.Fatal("первое сообщение не должно отклоняться")
	}
	*now = now.Add(2 * time.Second)
	if !g.Check(42) {
		t.Fatal("второе сообщение внутри окна должно отклоняться")
	}
	*now = now.Add(5 * time.Second)
	if g.Check(42) {
		t.Fatal("после истечения окна сообщение должно проходить")
	}
}

func TestCheckNeverThrottlesOwner(t *testing.T) {
	g, _ := newTestGuard(5 * time.Second)
	for i := 0; i < 3; i++ {
		if g.Check(owner) {
			t.Fatal("владелец не должен ограничиваться")
		}
	}
}

func TestResetOpensFreshWindow(t *testing.T) {
	g, _ := newTestGuard(5 * time.Second)
	g.Check(42)
	g.Reset(42)
	if g.Check(42) {
		t.Fatal("после сброса сообщение должно проходить")
	}
}

func TestIdleSweepDropsStaleEntries(t *testing.T) {
	g, now := newTestGuard(time.Hour)
	g.Check(42)
	*now = now.Add(25 * time.Hour)
	// Запись старше суток вычищена, поэтому даже лимит в час не срабатывает.
	if g.Check(42) {
		t.Fatal("пользователь после суточного простоя не должен отклоняться")
	}
	g.mu.Lock()
	if len(g.last) != 1 {
		t.Fatalf("ожидали одну запись после очистки, получили %d", len(g.last))
	}
	g.mu.Unlock()
}

package app

import (
	"sync"
	"time"

	"github.com/dkeye/Chat/internal/domain"
)

// JoinThrottle is a sliding-window limit on join attempts per user.
// A zero limit disables it.
type JoinThrottle struct {
	mu       sync.Mutex
	history  map[domain.UserID][]time.Time
	limit    int
	interval time.Duration
	now      func() time.Time
}

func NewJoinThrottle(limit int, interval time.Duration) *JoinThrottle {
	return &JoinThrottle{
		history:  make(map[domain.UserID][]time.Time),
		limit:    limit,
		interval: interval,
		now:      time.Now,
	}
}

func (t *JoinThrottle) Allow(uid domain.UserID) bool {
	if t == nil || t.limit <= 0 {
		return true
	}
	t.mu.Lock()
	defer t.mu.Unlock()

	now := t.now()
	windowStart := now.Add(-t.interval)

	attempts := t.history[uid]
	fresh := attempts[:0]
	for _, at := range attempts {
		if at.After(windowStart) {
			fresh = append(fresh, at)
		}
	}

	if len(fresh) >= t.limit {
		t.history[uid] = fresh
		return false
	}
	t.history[uid] = append(fresh, now)
	return true
}

// Sweep forgets users with no attempt inside the window.
func (t *JoinThrottle) Sweep() {
	if t == nil {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	windowStart := t.now().Add(-t.interval)
	for uid, attempts := range t.history {
		if len(attempts) == 0 || !attempts[len(attempts)-1].After(windowStart) {
			delete(t.history, uid)
		}
	}
}

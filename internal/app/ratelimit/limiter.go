// Package ratelimit gates submission frequency per user. One Limiter is
// shared process-wide; construct a fresh instance per test.
package ratelimit

import (
	"fmt"
	"sync"
	"time"

	"codesteps/internal/common"
)

type Config struct {
	Window           time.Duration
	MaxPerWindow     int
	FailureThreshold int
	PenaltyCooldown  time.Duration
	// Now is the clock source; defaults to time.Now.
	Now func() time.Time
}

// Limiter combines a per-user sliding window with a consecutive-failure
// penalty. The two checks are independent: both run on every gate call.
type Limiter struct {
	mu       sync.Mutex
	attempts map[string][]time.Time
	failures map[string]int
	cfg      Config
}

func New(cfg Config) *Limiter {
	if cfg.Window <= 0 {
		cfg.Window = 60 * time.Second
	}
	if cfg.MaxPerWindow <= 0 {
		cfg.MaxPerWindow = 5
	}
	if cfg.FailureThreshold <= 0 {
		cfg.FailureThreshold = 3
	}
	if cfg.PenaltyCooldown <= 0 {
		cfg.PenaltyCooldown = 300 * time.Second
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &Limiter{
		attempts: make(map[string][]time.Time),
		failures: make(map[string]int),
		cfg:      cfg,
	}
}

// Check prunes expired attempts, enforces the window cap and the failure
// cooldown, and records the attempt if the gate opens. The cooldown is
// measured from the user's most recent recorded attempt; once it lapses the
// failure counter resets.
func (l *Limiter) Check(userID string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.cfg.Now()

	kept := l.attempts[userID][:0]
	for _, ts := range l.attempts[userID] {
		if now.Sub(ts) < l.cfg.Window {
			kept = append(kept, ts)
		}
	}
	l.attempts[userID] = kept

	if len(kept) >= l.cfg.MaxPerWindow {
		return fmt.Errorf("Too many submissions. Please wait %d seconds between batches.: %w",
			int(l.cfg.Window.Seconds()), common.ErrRateLimited)
	}

	if l.failures[userID] >= l.cfg.FailureThreshold && len(kept) > 0 {
		last := kept[len(kept)-1]
		since := now.Sub(last)
		if since < l.cfg.PenaltyCooldown {
			wait := int((l.cfg.PenaltyCooldown - since).Seconds())
			return fmt.Errorf("Repeated failures detected. Cooldown active for %d more seconds.: %w",
				wait, common.ErrRateLimited)
		}
		l.failures[userID] = 0
	}

	l.attempts[userID] = append(kept, now)
	return nil
}

// LogResult feeds the outcome back: success clears the failure counter, a
// failure increments it.
func (l *Limiter) LogResult(userID string, success bool) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if success {
		l.failures[userID] = 0
		return
	}
	l.failures[userID]++
}

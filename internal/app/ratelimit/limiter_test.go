package ratelimit

import (
	"errors"
	"strings"
	"testing"
	"time"

	"codesteps/internal/common"
)

type fakeClock struct {
	now time.Time
}

func (c *fakeClock) Now() time.Time { return c.now }

func (c *fakeClock) advance(d time.Duration) { c.now = c.now.Add(d) }

func newTestLimiter() (*Limiter, *fakeClock) {
	clock := &fakeClock{now: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)}
	l := New(Config{
		Window:           60 * time.Second,
		MaxPerWindow:     5,
		FailureThreshold: 3,
		PenaltyCooldown:  300 * time.Second,
		Now:              clock.Now,
	})
	return l, clock
}

func TestWindowCap(t *testing.T) {
	l, clock := newTestLimiter()

	for i := 0; i < 5; i++ {
		if err := l.Check("u1"); err != nil {
			t.Fatalf("attempt %d rejected: %v", i+1, err)
		}
		clock.advance(time.Second)
	}

	err := l.Check("u1")
	if !errors.Is(err, common.ErrRateLimited) {
		t.Fatalf("6th attempt in window: err = %v, want rate limited", err)
	}
	if !strings.Contains(err.Error(), "Too many submissions") {
		t.Errorf("err = %v", err)
	}

	// Window slides: after it expires the user may submit again.
	clock.advance(60 * time.Second)
	if err := l.Check("u1"); err != nil {
		t.Fatalf("attempt after window expiry rejected: %v", err)
	}
}

func TestWindowIsPerUser(t *testing.T) {
	l, _ := newTestLimiter()

	for i := 0; i < 5; i++ {
		if err := l.Check("u1"); err != nil {
			t.Fatal(err)
		}
	}
	if err := l.Check("u2"); err != nil {
		t.Fatalf("other user must not be throttled: %v", err)
	}
}

func TestFailurePenalty(t *testing.T) {
	l, clock := newTestLimiter()

	for i := 0; i < 3; i++ {
		if err := l.Check("u1"); err != nil {
			t.Fatal(err)
		}
		l.LogResult("u1", false)
		clock.advance(time.Second)
	}

	err := l.Check("u1")
	if !errors.Is(err, common.ErrRateLimited) {
		t.Fatalf("attempt after 3 consecutive failures: err = %v, want cooldown rejection", err)
	}
	if !strings.Contains(err.Error(), "Repeated failures detected") {
		t.Errorf("err = %v", err)
	}
}

func TestSuccessResetsFailureCounter(t *testing.T) {
	l, clock := newTestLimiter()

	for i := 0; i < 2; i++ {
		if err := l.Check("u1"); err != nil {
			t.Fatal(err)
		}
		l.LogResult("u1", false)
		clock.advance(time.Second)
	}

	if err := l.Check("u1"); err != nil {
		t.Fatal(err)
	}
	l.LogResult("u1", true)
	clock.advance(time.Second)

	// Two failures, one success, one more failure: counter is at 1, no penalty.
	if err := l.Check("u1"); err != nil {
		t.Fatal(err)
	}
	l.LogResult("u1", false)
	clock.advance(time.Second)

	if err := l.Check("u1"); err != nil {
		t.Fatalf("failure counter must reset on success: %v", err)
	}
}

func TestPenaltyIndependentOfWindowBudget(t *testing.T) {
	l, clock := newTestLimiter()

	// Only 3 attempts used (well under 5 per window), all failed.
	for i := 0; i < 3; i++ {
		if err := l.Check("u1"); err != nil {
			t.Fatal(err)
		}
		l.LogResult("u1", false)
		clock.advance(time.Second)
	}

	if err := l.Check("u1"); !errors.Is(err, common.ErrRateLimited) {
		t.Fatalf("cooldown must reject even inside the window budget, got %v", err)
	}
}

func TestDefaultsApplied(t *testing.T) {
	l := New(Config{})
	if l.cfg.Window != 60*time.Second || l.cfg.MaxPerWindow != 5 ||
		l.cfg.FailureThreshold != 3 || l.cfg.PenaltyCooldown != 300*time.Second {
		t.Fatalf("defaults not applied: %+v", l.cfg)
	}
}

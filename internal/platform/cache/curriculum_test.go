package cache

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

type cachedStep struct {
	ID         string `json:"id"`
	StepNumber int    `json:"step_number"`
	Title      string `json:"title"`
}

func newTestCache(t *testing.T) (*CurriculumCache, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return NewCurriculumCache(client, time.Minute), mr
}

func TestCurriculumCacheRoundTrip(t *testing.T) {
	c, _ := newTestCache(t)
	ctx := context.Background()

	steps := []cachedStep{
		{ID: "s1", StepNumber: 1, Title: "Variables"},
		{ID: "s2", StepNumber: 2, Title: "Loops"},
	}
	if err := c.SetProblems(ctx, "course-1", steps); err != nil {
		t.Fatalf("SetProblems: %v", err)
	}

	var got []cachedStep
	if err := c.GetProblems(ctx, "course-1", &got); err != nil {
		t.Fatalf("GetProblems: %v", err)
	}
	if len(got) != 2 || got[0].Title != "Variables" || got[1].StepNumber != 2 {
		t.Fatalf("round trip mismatch: %+v", got)
	}
}

func TestCurriculumCacheMiss(t *testing.T) {
	c, _ := newTestCache(t)

	var got []cachedStep
	err := c.GetProblems(context.Background(), "absent", &got)
	if !errors.Is(err, ErrCacheMiss) {
		t.Fatalf("err = %v, want ErrCacheMiss", err)
	}
}

func TestCurriculumCacheInvalidate(t *testing.T) {
	c, _ := newTestCache(t)
	ctx := context.Background()

	if err := c.SetProblems(ctx, "course-1", []cachedStep{{ID: "s1"}}); err != nil {
		t.Fatal(err)
	}
	if err := c.Invalidate(ctx, "course-1"); err != nil {
		t.Fatalf("Invalidate: %v", err)
	}

	var got []cachedStep
	if err := c.GetProblems(ctx, "course-1", &got); !errors.Is(err, ErrCacheMiss) {
		t.Fatalf("err after invalidation = %v, want ErrCacheMiss", err)
	}
}

func TestCurriculumCacheExpiry(t *testing.T) {
	c, mr := newTestCache(t)
	ctx := context.Background()

	if err := c.SetProblems(ctx, "course-1", []cachedStep{{ID: "s1"}}); err != nil {
		t.Fatal(err)
	}
	mr.FastForward(2 * time.Minute)

	var got []cachedStep
	if err := c.GetProblems(ctx, "course-1", &got); !errors.Is(err, ErrCacheMiss) {
		t.Fatalf("err after TTL = %v, want ErrCacheMiss", err)
	}
}

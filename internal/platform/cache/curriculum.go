package cache

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

// ErrCacheMiss is returned when no entry exists for the requested course.
var ErrCacheMiss = errors.New("curriculum cache miss")

// CurriculumCache keeps serialized course problem listings in Redis.
// The curriculum is read-heavy and write-rare, so a short TTL plus explicit
// invalidation on admin mutations keeps it coherent enough.
type CurriculumCache struct {
	rdb *redis.Client
	ttl time.Duration
}

func NewCurriculumCache(rdb *redis.Client, ttl time.Duration) *CurriculumCache {
	return &CurriculumCache{rdb: rdb, ttl: ttl}
}

func courseKey(courseID string) string {
	return "curriculum:course:" + courseID
}

// GetProblems unmarshals the cached listing into dest.
func (c *CurriculumCache) GetProblems(ctx context.Context, courseID string, dest interface{}) error {
	raw, err := c.rdb.Get(ctx, courseKey(courseID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return ErrCacheMiss
		}
		return err
	}
	return json.Unmarshal(raw, dest)
}

func (c *CurriculumCache) SetProblems(ctx context.Context, courseID string, value interface{}) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	return c.rdb.Set(ctx, courseKey(courseID), raw, c.ttl).Err()
}

// Invalidate drops the cached listing for a course. Called after any
// structural mutation (add/update/delete/reorder, test-case changes).
func (c *CurriculumCache) Invalidate(ctx context.Context, courseID string) error {
	return c.rdb.Del(ctx, courseKey(courseID)).Err()
}

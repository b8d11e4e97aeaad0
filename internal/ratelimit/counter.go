package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// counterTTL keeps day buckets around one extra day past rollover.
const counterTTL = 48 * time.Hour

// Counter tracks per-user daily chat message counts in Redis. Keys are
// bucketed on the billing day passed in by the caller, so all instances of
// the service agree on when a day rolls over.
type Counter struct {
	client *redis.Client
}

// NewCounter constructs a Counter backed by the given Redis client.
func NewCounter(client *redis.Client) *Counter {
	return &Counter{client: client}
}

// Bump increments the user's message count for the billing day starting at
// dayStart, and the per-model count when modelConfigID is non-zero.
func (c *Counter) Bump(ctx context.Context, userID, modelConfigID uint64, dayStart time.Time) error {
	if c == nil || c.client == nil {
		return errors.New("ratelimit: nil redis client")
	}

	pipe := c.client.TxPipeline()
	userKey := userDayKey(userID, dayStart)
	pipe.Incr(ctx, userKey)
	pipe.Expire(ctx, userKey, counterTTL)
	if modelConfigID != 0 {
		modelKey := modelDayKey(userID, modelConfigID, dayStart)
		pipe.Incr(ctx, modelKey)
		pipe.Expire(ctx, modelKey, counterTTL)
	}
	_, errExec := pipe.Exec(ctx)
	return errExec
}

// CountSince returns the user's message count for the billing day starting
// at since.
func (c *Counter) CountSince(ctx context.Context, userID uint64, since time.Time) (int64, error) {
	if c == nil || c.client == nil {
		return 0, errors.New("ratelimit: nil redis client")
	}
	return c.getCount(ctx, userDayKey(userID, since))
}

// CountModelSince returns the user's per-model message count for the billing
// day starting at since.
func (c *Counter) CountModelSince(ctx context.Context, userID, modelConfigID uint64, since time.Time) (int64, error) {
	if c == nil || c.client == nil {
		return 0, errors.New("ratelimit: nil redis client")
	}
	return c.getCount(ctx, modelDayKey(userID, modelConfigID, since))
}

func (c *Counter) getCount(ctx context.Context, key string) (int64, error) {
	val, errGet := c.client.Get(ctx, key).Int64()
	if errGet != nil {
		if errors.Is(errGet, redis.Nil) {
			return 0, nil
		}
		return 0, errGet
	}
	return val, nil
}

func userDayKey(userID uint64, day time.Time) string {
	return fmt.Sprintf("chat:msgs:%d:%s", userID, day.Format("2006-01-02"))
}

func modelDayKey(userID, modelConfigID uint64, day time.Time) string {
	return fmt.Sprintf("chat:msgs:%d:m%d:%s", userID, modelConfigID, day.Format("2006-01-02"))
}

package cache

import (
	"context"
	"strconv"

	"github.com/redis/go-redis/v9"
)

// PresenceCache is the hot path for "who is meditating right now": a ZSET of
// user ids scored by last-seen unix time. Counting a window is a ZCOUNT;
// entries that fell out of the window are pruned as a side effect.
type PresenceCache interface {
	Touch(ctx context.Context, userID string, atUnix int64) error
	ActiveCount(ctx context.Context, sinceUnix int64) (int, error)
}

type presenceCache struct {
	client *redis.Client
}

// NewPresenceCache creates a new presence cache
func NewPresenceCache(client *redis.Client) PresenceCache {
	return &presenceCache{
		client: client,
	}
}

const presenceKey = "presence:lastseen"

func (c *presenceCache) Touch(ctx context.Context, userID string, atUnix int64) error {
	return c.client.ZAdd(ctx, presenceKey, redis.Z{
		Score:  float64(atUnix),
		Member: userID,
	}).Err()
}

func (c *presenceCache) ActiveCount(ctx context.Context, sinceUnix int64) (int, error) {
	// Prune first so the set stays bounded by the active population.
	since := strconv.FormatInt(sinceUnix, 10)
	if err := c.client.ZRemRangeByScore(ctx, presenceKey, "-inf", "("+since).Err(); err != nil {
		return 0, err
	}
	n, err := c.client.ZCount(ctx, presenceKey, since, "+inf").Result()
	return int(n), err
}

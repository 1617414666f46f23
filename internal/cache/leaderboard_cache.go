package cache

import (
	"context"

	"github.com/redis/go-redis/v9"
)

// LeaderboardCache handles Redis ZSET operations for the lifetime
// leaderboard. Scores are total meditation seconds.
type LeaderboardCache interface {
	UpdateScore(ctx context.Context, userID string, totalSeconds int) error
	GetTop(ctx context.Context, limit int) ([]LeaderboardEntry, error)
	GetRank(ctx context.Context, userID string) (int64, error)
	Size(ctx context.Context) (int64, error)
}

// LeaderboardEntry is a raw ZSET row; display names are joined in by the
// service layer.
type LeaderboardEntry struct {
	UserID       string
	TotalSeconds int
	Rank         int
}

type leaderboardCache struct {
	client *redis.Client
}

// NewLeaderboardCache creates a new leaderboard cache
func NewLeaderboardCache(client *redis.Client) LeaderboardCache {
	return &leaderboardCache{
		client: client,
	}
}

const leaderboardKey = "lb:total"

func (c *leaderboardCache) UpdateScore(ctx context.Context, userID string, totalSeconds int) error {
	return c.client.ZAdd(ctx, leaderboardKey, redis.Z{
		Score:  float64(totalSeconds),
		Member: userID,
	}).Err()
}

func (c *leaderboardCache) GetTop(ctx context.Context, limit int) ([]LeaderboardEntry, error) {
	results, err := c.client.ZRevRangeWithScores(ctx, leaderboardKey, 0, int64(limit-1)).Result()
	if err != nil {
		return nil, err
	}

	entries := make([]LeaderboardEntry, len(results))
	for i, z := range results {
		entries[i] = LeaderboardEntry{
			UserID:       z.Member.(string),
			TotalSeconds: int(z.Score),
			Rank:         i + 1,
		}
	}
	return entries, nil
}

func (c *leaderboardCache) GetRank(ctx context.Context, userID string) (int64, error) {
	rank, err := c.client.ZRevRank(ctx, leaderboardKey, userID).Result()
	if err == redis.Nil {
		return -1, nil
	}
	return rank + 1, err // 1-indexed
}

func (c *leaderboardCache) Size(ctx context.Context) (int64, error) {
	return c.client.ZCard(ctx, leaderboardKey).Result()
}

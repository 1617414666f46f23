package cache_test

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"stillmind/internal/cache"
)

func newRedis(t *testing.T) *redis.Client {
	t.Helper()
	mr := miniredis.RunT(t)
	return redis.NewClient(&redis.Options{Addr: mr.Addr()})
}

func TestLeaderboardCacheOrdering(t *testing.T) {
	c := cache.NewLeaderboardCache(newRedis(t))
	ctx := context.Background()

	if err := c.UpdateScore(ctx, "u_low", 600); err != nil {
		t.Fatal(err)
	}
	if err := c.UpdateScore(ctx, "u_high", 7200); err != nil {
		t.Fatal(err)
	}
	if err := c.UpdateScore(ctx, "u_mid", 3600); err != nil {
		t.Fatal(err)
	}

	top, err := c.GetTop(ctx, 2)
	if err != nil {
		t.Fatal(err)
	}
	if len(top) != 2 {
		t.Fatalf("got %d entries, want 2", len(top))
	}
	if top[0].UserID != "u_high" || top[0].Rank != 1 || top[0].TotalSeconds != 7200 {
		t.Errorf("top[0] = %+v", top[0])
	}
	if top[1].UserID != "u_mid" || top[1].Rank != 2 {
		t.Errorf("top[1] = %+v", top[1])
	}

	size, err := c.Size(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if size != 3 {
		t.Errorf("size = %d, want 3", size)
	}
}

func TestLeaderboardCacheUpdateReplacesScore(t *testing.T) {
	c := cache.NewLeaderboardCache(newRedis(t))
	ctx := context.Background()

	if err := c.UpdateScore(ctx, "u_a", 100); err != nil {
		t.Fatal(err)
	}
	if err := c.UpdateScore(ctx, "u_a", 5000); err != nil {
		t.Fatal(err)
	}

	top, err := c.GetTop(ctx, 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(top) != 1 || top[0].TotalSeconds != 5000 {
		t.Errorf("top = %+v, want one entry at 5000", top)
	}
}

func TestLeaderboardCacheRank(t *testing.T) {
	c := cache.NewLeaderboardCache(newRedis(t))
	ctx := context.Background()

	for user, secs := range map[string]int{"u_a": 300, "u_b": 900, "u_c": 600} {
		if err := c.UpdateScore(ctx, user, secs); err != nil {
			t.Fatal(err)
		}
	}

	rank, err := c.GetRank(ctx, "u_c")
	if err != nil {
		t.Fatal(err)
	}
	if rank != 2 {
		t.Errorf("rank = %d, want 2 (1-indexed)", rank)
	}

	rank, err = c.GetRank(ctx, "u_missing")
	if err != nil {
		t.Fatal(err)
	}
	if rank != -1 {
		t.Errorf("rank of unknown user = %d, want -1", rank)
	}
}

func TestPresenceCacheActiveCount(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	c := cache.NewPresenceCache(client)
	ctx := context.Background()

	now := int64(1_750_000_000)
	if err := c.Touch(ctx, "u_fresh", now-5); err != nil {
		t.Fatal(err)
	}
	if err := c.Touch(ctx, "u_edge", now-30); err != nil {
		t.Fatal(err)
	}
	if err := c.Touch(ctx, "u_stale", now-90); err != nil {
		t.Fatal(err)
	}

	n, err := c.ActiveCount(ctx, now-30)
	if err != nil {
		t.Fatal(err)
	}
	// The boundary is inclusive: a heartbeat exactly 30s old still counts.
	if n != 2 {
		t.Errorf("active = %d, want 2", n)
	}

	// The stale entry was pruned, not just skipped.
	if mr.Exists("presence:lastseen") {
		members, _ := mr.ZMembers("presence:lastseen")
		if len(members) != 2 {
			t.Errorf("set holds %v after prune, want 2 members", members)
		}
	}
}

func TestPresenceCacheTouchRefreshes(t *testing.T) {
	c := cache.NewPresenceCache(newRedis(t))
	ctx := context.Background()

	now := int64(1_750_000_000)
	if err := c.Touch(ctx, "u_a", now-100); err != nil {
		t.Fatal(err)
	}
	if err := c.Touch(ctx, "u_a", now); err != nil {
		t.Fatal(err)
	}

	n, err := c.ActiveCount(ctx, now-30)
	if err != nil {
		t.Fatal(err)
	}
	if n != 1 {
		t.Errorf("active = %d, want 1 after re-touch", n)
	}
}

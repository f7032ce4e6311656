package core

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RankCache memoizes computed ranklists in Redis so that a contest standings
// page hammered by many spectators doesn't recompute the full scan on every
// request. It is additive: a miss or a Redis error always falls through to a
// live Ranklist computation, never blocks a request.
type RankCache struct {
	client RankCacheClient
	ttl    time.Duration
}

// RankCacheClient is the minimal subset of *redis.Client this cache needs,
// so tests can swap in miniredis or a fake without pulling in the whole
// go-redis surface.
type RankCacheClient interface {
	Get(ctx context.Context, key string) *redis.StringCmd
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd
	Del(ctx context.Context, keys ...string) *redis.IntCmd
}

// NewRedisClient returns a configured go-redis client from URL (e.g.
// redis://localhost:6379/0), pinging to fail fast on a bad configuration.
func NewRedisClient(redisURL string) (*redis.Client, error) {
	if redisURL == "" {
		return nil, errors.New("empty redis url")
	}
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, err
	}
	client := redis.NewClient(opts)
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, err
	}
	return client, nil
}

func NewRankCache(client RankCacheClient, ttl time.Duration) *RankCache {
	if ttl <= 0 {
		ttl = 5 * time.Second
	}
	return &RankCache{client: client, ttl: ttl}
}

func rankCacheKey(contestID int, scoringRule, tieBreaker string) string {
	return fmt.Sprintf("ranklist:%d:%s:%s", contestID, scoringRule, tieBreaker)
}

// Get returns a cached ranklist, or (nil, false) on a miss or any Redis error.
func (c *RankCache) Get(ctx context.Context, contestID int, scoringRule, tieBreaker string) ([]UserRank, bool) {
	if c == nil || c.client == nil {
		return nil, false
	}
	raw, err := c.client.Get(ctx, rankCacheKey(contestID, scoringRule, tieBreaker)).Bytes()
	if err != nil {
		return nil, false
	}
	var list []UserRank
	if err := json.Unmarshal(raw, &list); err != nil {
		return nil, false
	}
	return list, true
}

// Set stores a freshly computed ranklist with the cache's TTL. Errors are
// swallowed: a failed cache write never fails the request that computed it.
func (c *RankCache) Set(ctx context.Context, contestID int, scoringRule, tieBreaker string, list []UserRank) {
	if c == nil || c.client == nil {
		return
	}
	raw, err := json.Marshal(list)
	if err != nil {
		return
	}
	_ = c.client.Set(ctx, rankCacheKey(contestID, scoringRule, tieBreaker), raw, c.ttl).Err()
}

// InvalidateContest drops every cached ranklist for a contest. Called when a
// job finishes judging, since any finished job can change that contest's
// standings (and the global list, contest id 0).
func (c *RankCache) InvalidateContest(ctx context.Context, contestID int) {
	if c == nil || c.client == nil {
		return
	}
	// Ranklists are cached per (scoring_rule, tie_breaker) pair; rather than
	// enumerate every combination a caller might have used, invalidation
	// scans for the contest's key prefix. Scans are bounded to a handful of
	// keys in practice since a contest is hit with a small set of query
	// parameter combinations.
	var cursor uint64
	prefix := fmt.Sprintf("ranklist:%d:*", contestID)
	for {
		keys, next, err := scanKeys(ctx, c.client, cursor, prefix)
		if err != nil {
			break
		}
		if len(keys) > 0 {
			_ = c.client.Del(ctx, keys...).Err()
		}
		cursor = next
		if cursor == 0 {
			break
		}
	}
}

// scanKeys adapts the raw Scan command through the narrower RankCacheClient
// seam; it type-asserts to *redis.Client since Scan isn't part of that
// interface (the miniredis-backed tests use a *redis.Client, so they scan too).
func scanKeys(ctx context.Context, client RankCacheClient, cursor uint64, match string) ([]string, uint64, error) {
	full, ok := client.(*redis.Client)
	if !ok {
		return nil, 0, errors.New("scan unsupported on this client")
	}
	return full.Scan(ctx, cursor, match, 100).Result()
}

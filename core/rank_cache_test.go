package core

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newTestRankCache(t *testing.T) (*RankCache, *miniredis.Miniredis) {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("starting miniredis: %v", err)
	}
	t.Cleanup(mr.Close)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return NewRankCache(client, 5*time.Second), mr
}

func TestRankCacheSetThenGet(t *testing.T) {
	cache, _ := newTestRankCache(t)
	ctx := context.Background()

	want := []UserRank{{User: User{ID: 1, Name: "alice"}, Rank: 1, Scores: []float64{100}}}
	cache.Set(ctx, 7, "latest", "submission_time", want)

	got, ok := cache.Get(ctx, 7, "latest", "submission_time")
	if !ok {
		t.Fatal("expected a cache hit")
	}
	if len(got) != 1 || got[0].User.Name != "alice" || got[0].Rank != 1 {
		t.Fatalf("unexpected cached ranklist: %+v", got)
	}
}

func TestRankCacheMissOnDifferentKey(t *testing.T) {
	cache, _ := newTestRankCache(t)
	ctx := context.Background()

	cache.Set(ctx, 7, "latest", "submission_time", []UserRank{{Rank: 1}})

	if _, ok := cache.Get(ctx, 7, "highest", "submission_time"); ok {
		t.Fatal("a different scoring rule must not share a cache entry")
	}
	if _, ok := cache.Get(ctx, 8, "latest", "submission_time"); ok {
		t.Fatal("a different contest must not share a cache entry")
	}
}

func TestRankCacheInvalidateContest(t *testing.T) {
	cache, _ := newTestRankCache(t)
	ctx := context.Background()

	cache.Set(ctx, 7, "latest", "submission_time", []UserRank{{Rank: 1}})
	cache.Set(ctx, 7, "highest", "user_id", []UserRank{{Rank: 1}})
	cache.Set(ctx, 8, "latest", "submission_time", []UserRank{{Rank: 1}})

	cache.InvalidateContest(ctx, 7)

	if _, ok := cache.Get(ctx, 7, "latest", "submission_time"); ok {
		t.Fatal("contest 7's latest/submission_time entry should have been invalidated")
	}
	if _, ok := cache.Get(ctx, 7, "highest", "user_id"); ok {
		t.Fatal("contest 7's highest/user_id entry should have been invalidated")
	}
	if _, ok := cache.Get(ctx, 8, "latest", "submission_time"); !ok {
		t.Fatal("contest 8's entry should be untouched by invalidating contest 7")
	}
}

func TestRankCacheNilIsANoop(t *testing.T) {
	var cache *RankCache
	ctx := context.Background()

	cache.Set(ctx, 1, "latest", "", []UserRank{{Rank: 1}})
	if _, ok := cache.Get(ctx, 1, "latest", ""); ok {
		t.Fatal("a nil cache must never report a hit")
	}
	cache.InvalidateContest(ctx, 1) // must not panic
}

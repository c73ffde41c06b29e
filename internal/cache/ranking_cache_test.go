package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/lshigami/PlacementPrep/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewRankingCache_DisabledWithoutAddr(t *testing.T) {
	c := NewRankingCache(&config.Config{})
	assert.IsType(t, NopRankingCache{}, c)
}

func TestNewRankingCache_UnreachableFallsBack(t *testing.T) {
	c := NewRankingCache(&config.Config{Redis: config.Redis{Addr: "127.0.0.1:1"}})
	assert.IsType(t, NopRankingCache{}, c)
}

func TestNopRankingCache(t *testing.T) {
	ctx := context.Background()
	var c RankingCache = NopRankingCache{}

	var out []int
	slot, hit, err := c.Get(ctx, "k", &out)
	require.NoError(t, err)
	assert.False(t, hit)
	assert.Equal(t, Slot("k"), slot)
	assert.Nil(t, out)
	require.NoError(t, c.Set(ctx, slot, []int{1}))
	assert.NoError(t, c.Invalidate(ctx))
}

type entry struct {
	UserID uint    `json:"user_id"`
	Score  float64 `json:"score"`
}

func newRedisCache(t *testing.T) (RankingCache, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	c := NewRankingCache(&config.Config{Redis: config.Redis{Addr: mr.Addr(), LeaderboardTTL: 30 * time.Second}})
	require.IsType(t, &redisRankingCache{}, c)
	return c, mr
}

// store resolves key and writes value under it, the way a caller fills a miss.
func store(t *testing.T, c RankingCache, key string, value []entry) {
	t.Helper()
	var discard []entry
	slot, _, err := c.Get(context.Background(), key, &discard)
	require.NoError(t, err)
	require.NoError(t, c.Set(context.Background(), slot, value))
}

func TestRedisRankingCache_RoundTrip(t *testing.T) {
	c, mr := newRedisCache(t)
	ctx := context.Background()

	var out []entry
	slot, hit, err := c.Get(ctx, "c=|y=*|b=", &out)
	require.NoError(t, err)
	assert.False(t, hit)
	assert.Equal(t, Slot("leaderboard:0:c=|y=*|b="), slot)

	require.NoError(t, c.Set(ctx, slot, []entry{{UserID: 7, Score: 91.5}}))
	_, hit, err = c.Get(ctx, "c=|y=*|b=", &out)
	require.NoError(t, err)
	assert.True(t, hit)
	assert.Equal(t, []entry{{UserID: 7, Score: 91.5}}, out)

	assert.Equal(t, 30*time.Second, mr.TTL("leaderboard:0:c=|y=*|b="))
}

func TestRedisRankingCache_InvalidateDropsEverything(t *testing.T) {
	c, _ := newRedisCache(t)
	ctx := context.Background()

	store(t, c, "c=tcs|y=*|b=", []entry{{UserID: 1}})
	store(t, c, "c=|y=3|b=", []entry{{UserID: 2}})
	require.NoError(t, c.Invalidate(ctx))

	var out []entry
	for _, key := range []string{"c=tcs|y=*|b=", "c=|y=3|b="} {
		_, hit, err := c.Get(ctx, key, &out)
		require.NoError(t, err)
		assert.False(t, hit, key)
	}

	store(t, c, "c=tcs|y=*|b=", []entry{{UserID: 3}})
	_, hit, err := c.Get(ctx, "c=tcs|y=*|b=", &out)
	require.NoError(t, err)
	assert.True(t, hit)
	assert.Equal(t, uint(3), out[0].UserID)
}

func TestRedisRankingCache_WriteAfterInvalidateIsUnreachable(t *testing.T) {
	c, _ := newRedisCache(t)
	ctx := context.Background()

	var out []entry
	slot, hit, err := c.Get(ctx, "k", &out)
	require.NoError(t, err)
	require.False(t, hit)

	// a submission lands while the ranking is being computed
	require.NoError(t, c.Invalidate(ctx))
	require.NoError(t, c.Set(ctx, slot, []entry{{UserID: 1}}))

	fresh, hit, err := c.Get(ctx, "k", &out)
	require.NoError(t, err)
	assert.False(t, hit)
	assert.NotEqual(t, slot, fresh)
}

func TestRedisRankingCache_RejectsEmptySlot(t *testing.T) {
	c, _ := newRedisCache(t)
	assert.Error(t, c.Set(context.Background(), "", []entry{{UserID: 1}}))
}

func TestRedisRankingCache_ExpiresWithTTL(t *testing.T) {
	c, mr := newRedisCache(t)
	ctx := context.Background()

	store(t, c, "k", []entry{{UserID: 1}})
	mr.FastForward(31 * time.Second)

	var out []entry
	_, hit, err := c.Get(ctx, "k", &out)
	require.NoError(t, err)
	assert.False(t, hit)
}

package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/lshigami/PlacementPrep/config"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

// Slot is a cache key bound to the generation it was resolved under.
type Slot string

// RankingCache stores computed leaderboard rankings. Keys are namespaced by a
// generation counter so Invalidate drops every cached ranking at once.
//
// Get resolves key against the current generation and returns that slot even
// on a miss. Callers store the ranking they computed with Set on the same slot,
// so a ranking built while Invalidate ran is written under a dead generation.
// An empty slot means the generation could not be resolved.
type RankingCache interface {
	Get(ctx context.Context, key string, dst any) (Slot, bool, error)
	Set(ctx context.Context, slot Slot, value any) error
	Invalidate(ctx context.Context) error
}

const (
	keyPrefix     = "leaderboard"
	generationKey = keyPrefix + ":generation"
)

type redisRankingCache struct {
	rdb *redis.Client
	ttl time.Duration
}

// NewRankingCache returns a Redis-backed cache, or a no-op cache when
// REDIS_ADDR is empty or Redis cannot be reached at startup.
func NewRankingCache(cfg *config.Config) RankingCache {
	if cfg.Redis.Addr == "" {
		log.Info().Msg("REDIS_ADDR not set, leaderboard cache disabled")
		return NopRankingCache{}
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:        cfg.Redis.Addr,
		Password:    cfg.Redis.Password,
		DB:          cfg.Redis.DB,
		DialTimeout: 5 * time.Second,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		log.Warn().Err(err).Str("addr", cfg.Redis.Addr).Msg("Redis unreachable, leaderboard cache disabled")
		_ = rdb.Close()
		return NopRankingCache{}
	}

	ttl := cfg.Redis.LeaderboardTTL
	if ttl <= 0 {
		ttl = time.Minute
	}
	log.Info().Str("addr", cfg.Redis.Addr).Dur("ttl", ttl).Msg("Leaderboard cache enabled")
	return &redisRankingCache{rdb: rdb, ttl: ttl}
}

func (c *redisRankingCache) generation(ctx context.Context) (int64, error) {
	gen, err := c.rdb.Get(ctx, generationKey).Int64()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	return gen, err
}

func (c *redisRankingCache) slot(ctx context.Context, key string) (Slot, error) {
	gen, err := c.generation(ctx)
	if err != nil {
		return "", err
	}
	return Slot(fmt.Sprintf("%s:%d:%s", keyPrefix, gen, key)), nil
}

func (c *redisRankingCache) Get(ctx context.Context, key string, dst any) (Slot, bool, error) {
	slot, err := c.slot(ctx, key)
	if err != nil {
		return "", false, err
	}
	raw, err := c.rdb.Get(ctx, string(slot)).Bytes()
	if errors.Is(err, redis.Nil) {
		return slot, false, nil
	}
	if err != nil {
		return slot, false, err
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		return slot, false, err
	}
	return slot, true, nil
}

func (c *redisRankingCache) Set(ctx context.Context, slot Slot, value any) error {
	if slot == "" {
		return errors.New("ranking cache: empty slot")
	}
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	return c.rdb.Set(ctx, string(slot), raw, c.ttl).Err()
}

func (c *redisRankingCache) Invalidate(ctx context.Context) error {
	return c.rdb.Incr(ctx, generationKey).Err()
}

// NopRankingCache never stores anything.
type NopRankingCache struct{}

func (NopRankingCache) Get(_ context.Context, key string, _ any) (Slot, bool, error) {
	return Slot(key), false, nil
}
func (NopRankingCache) Set(context.Context, Slot, any) error { return nil }
func (NopRankingCache) Invalidate(context.Context) error     { return nil }

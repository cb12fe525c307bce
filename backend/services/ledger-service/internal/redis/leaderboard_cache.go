package redisstore

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"

	"charge2earn/backend/program/scan"
)

const leaderboardKey = "ledger:leaderboard"

// LeaderboardCache keeps the full ranked driver list in redis.
type LeaderboardCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewLeaderboardCache returns redis-backed cache.
func NewLeaderboardCache(client *redis.Client, ttl time.Duration) *LeaderboardCache {
	return &LeaderboardCache{client: client, ttl: ttl}
}

// Get returns the cached leaderboard. ok is false on a miss.
func (c *LeaderboardCache) Get(ctx context.Context) ([]scan.LeaderboardEntry, bool, error) {
	result, err := c.client.Get(ctx, leaderboardKey).Result()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	var entries []scan.LeaderboardEntry
	if err := json.Unmarshal([]byte(result), &entries); err != nil {
		return nil, false, err
	}
	return entries, true, nil
}

// Set caches the leaderboard.
func (c *LeaderboardCache) Set(ctx context.Context, entries []scan.LeaderboardEntry) error {
	data, err := json.Marshal(entries)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, leaderboardKey, data, c.ttl).Err()
}

// Invalidate drops the cached leaderboard.
func (c *LeaderboardCache) Invalidate(ctx context.Context) error {
	return c.client.Del(ctx, leaderboardKey).Err()
}

package redisstore

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	libredis "charge2earn/backend/libs/redis"
	"charge2earn/backend/program/scan"
)

// Runs against a real server when LEDGER_TEST_REDIS_ADDR is set.
func TestLeaderboardCacheRedis(t *testing.T) {
	addr := os.Getenv("LEDGER_TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("LEDGER_TEST_REDIS_ADDR not set")
	}
	ctx := context.Background()
	client, err := libredis.NewRedisClient(ctx, libredis.Options{Addr: addr})
	require.NoError(t, err)
	defer client.Close()

	cache := NewLeaderboardCache(client, time.Minute)
	require.NoError(t, cache.Invalidate(ctx))

	_, ok, err := cache.Get(ctx)
	require.NoError(t, err)
	assert.False(t, ok)

	entries := []scan.LeaderboardEntry{{Rank: 1, Owner: solana.NewWallet().PublicKey(), Driver: solana.NewWallet().PublicKey(), Points: 900}}
	require.NoError(t, cache.Set(ctx, entries))
	got, ok, err := cache.Get(ctx)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, entries, got)

	require.NoError(t, cache.Invalidate(ctx))
	_, ok, err = cache.Get(ctx)
	require.NoError(t, err)
	assert.False(t, ok)
}

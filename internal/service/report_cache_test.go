package service

import (
	"context"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

func TestReportCacheRoundTrip(t *testing.T) {
	server, err := miniredis.Run()
	require.NoError(t, err)
	defer server.Close()

	redisClient := redis.NewClient(&redis.Options{Addr: server.Addr()})
	defer redisClient.Close()

	cache := NewReportCache(redisClient, time.Minute, testLogger())
	ctx := context.Background()

	_, ok := cache.Get(ctx, 1, "forensics")
	require.False(t, ok)

	cache.Set(ctx, 1, "forensics", []byte("%PDF-fake"))
	cache.Set(ctx, 1, "", []byte("%PDF-full"))

	got, ok := cache.Get(ctx, 1, "forensics")
	require.True(t, ok)
	require.Equal(t, []byte("%PDF-fake"), got)

	// Invalidation drops both the category and full-report copies.
	cache.Invalidate(ctx, 1, "forensics")

	_, ok = cache.Get(ctx, 1, "forensics")
	require.False(t, ok)
	_, ok = cache.Get(ctx, 1, "")
	require.False(t, ok)
}

func TestReportCacheNilClientIsNoop(t *testing.T) {
	cache := NewReportCache(nil, time.Minute, testLogger())
	ctx := context.Background()

	cache.Set(ctx, 1, "", []byte("data"))
	_, ok := cache.Get(ctx, 1, "")
	require.False(t, ok)
	cache.Invalidate(ctx, 1, "")
}

func TestReportCacheExpiry(t *testing.T) {
	server, err := miniredis.Run()
	require.NoError(t, err)
	defer server.Close()

	redisClient := redis.NewClient(&redis.Options{Addr: server.Addr()})
	defer redisClient.Close()

	cache := NewReportCache(redisClient, time.Second, testLogger())
	ctx := context.Background()

	cache.Set(ctx, 2, "", []byte("data"))
	server.FastForward(2 * time.Second)

	_, ok := cache.Get(ctx, 2, "")
	require.False(t, ok)
}

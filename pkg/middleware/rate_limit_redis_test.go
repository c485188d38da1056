package middleware

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const EnvRedisIntegrationAddr = "REDIS_INTEGRATION_ADDR"

func TestRedisRateLimitStore_SharedAcrossStores(t *testing.T) {
	addr := os.Getenv(EnvRedisIntegrationAddr)
	if addr == "" {
		t.Skipf("%s not set, skipping Redis integration test", EnvRedisIntegrationAddr)
	}

	client := redis.NewClient(&redis.Options{Addr: addr})
	t.Cleanup(func() { _ = client.Close() })

	ctx := context.Background()
	key := "addr:test-" + uuid.NewString()
	t.Cleanup(func() { client.Del(ctx, rateLimitKeyPrefix+key) })

	// Two stores stand in for two replicas behind the same Redis.
	first := NewRedisRateLimitStore(client)
	second := NewRedisRateLimitStore(client)

	for i, store := range []*RedisRateLimitStore{first, second} {
		allowed, err := store.Allow(ctx, key, 2, time.Minute)
		if err != nil {
			t.Fatalf("allow %d: %v", i, err)
		}
		if !allowed {
			t.Fatalf("hit %d should be admitted", i)
		}
	}

	allowed, err := first.Allow(ctx, key, 2, time.Minute)
	if err != nil {
		t.Fatalf("allow: %v", err)
	}
	if allowed {
		t.Error("third hit across replicas should be rejected")
	}
}

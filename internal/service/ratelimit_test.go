package service

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/vibelog/backend/internal/config"
	"github.com/vibelog/backend/internal/domain"
)

type memCounters struct {
	mu     sync.Mutex
	counts map[string]int
	err    error
}

func (m *memCounters) Increment(_ context.Context, key string, windowStart time.Time, _ time.Duration) (int, error) {
	if m.err != nil {
		return 0, m.err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.counts == nil {
		m.counts = map[string]int{}
	}
	k := fmt.Sprintf("%s@%d", key, windowStart.Unix())
	m.counts[k]++
	return m.counts[k], nil
}

func testLimits() map[string]config.EndpointLimit {
	return map[string]config.EndpointLimit{
		"generate": {
			Anonymous:     config.RateLimitRule{Limit: 2, WindowSeconds: 60},
			Authenticated: config.RateLimitRule{Limit: 3, WindowSeconds: 60},
		},
		"upload": {
			Anonymous:     config.RateLimitRule{Limit: 0, WindowSeconds: 60},
			Authenticated: config.RateLimitRule{Limit: 1, WindowSeconds: 60},
		},
	}
}

func TestRateLimiter_FixedWindow(t *testing.T) {
	ctx := context.Background()
	l := NewRateLimiter(&memCounters{}, nil, testLimits())
	now := time.Date(2026, 3, 14, 12, 0, 15, 0, time.UTC)
	l.now = fixedClock(now)
	anon := Caller{AnonymousKey: "203.0.113.9"}

	for i := 1; i <= 2; i++ {
		d, err := l.Allow(ctx, "generate", anon)
		if err != nil {
			t.Fatalf("Allow: %v", err)
		}
		if !d.Allowed || d.Remaining != 2-i {
			t.Fatalf("request %d: %+v", i, d)
		}
	}

	d, err := l.Allow(ctx, "generate", anon)
	if err != nil {
		t.Fatalf("Allow: %v", err)
	}
	if d.Allowed {
		t.Fatal("third anonymous request should be rejected")
	}
	if d.RetryAfter != 45 {
		t.Errorf("RetryAfter = %d, want 45", d.RetryAfter)
	}
	if !d.ResetAt.Equal(time.Date(2026, 3, 14, 12, 1, 0, 0, time.UTC)) {
		t.Errorf("ResetAt = %v", d.ResetAt)
	}

	l.now = fixedClock(now.Add(45 * time.Second))
	if d, _ := l.Allow(ctx, "generate", anon); !d.Allowed {
		t.Error("request in the next window should pass")
	}
}

func TestRateLimiter_SeparateBuckets(t *testing.T) {
	ctx := context.Background()
	l := NewRateLimiter(&memCounters{}, nil, testLimits())
	l.now = fixedClock(time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC))

	user := Caller{UserID: "u1", AnonymousKey: "203.0.113.9"}
	for i := 0; i < 3; i++ {
		if d, _ := l.Allow(ctx, "generate", user); !d.Allowed {
			t.Fatalf("authenticated request %d rejected", i+1)
		}
	}
	if d, _ := l.Allow(ctx, "generate", user); d.Allowed {
		t.Error("fourth authenticated request should be rejected")
	}
	if d, _ := l.Allow(ctx, "generate", Caller{AnonymousKey: "203.0.113.9"}); !d.Allowed {
		t.Error("anonymous bucket should be independent of the user bucket")
	}
	if d, _ := l.Allow(ctx, "generate", Caller{UserID: "u2"}); !d.Allowed {
		t.Error("each user has their own bucket")
	}
}

func TestRateLimiter_DisabledRules(t *testing.T) {
	ctx := context.Background()
	l := NewRateLimiter(&memCounters{}, nil, testLimits())

	for i := 0; i < 10; i++ {
		if d, _ := l.Allow(ctx, "upload", Caller{AnonymousKey: "x"}); !d.Allowed {
			t.Fatal("limit 0 disables limiting")
		}
		if d, _ := l.Allow(ctx, "unknown", Caller{UserID: "u1"}); !d.Allowed {
			t.Fatal("unknown endpoints are not limited")
		}
	}
}

func TestRateLimiter_AdminOverride(t *testing.T) {
	ctx := context.Background()
	configs := mapConfigs{domain.ConfigKeyRateLimits: `{"upload": {"authenticated": {"limit": 5, "window_seconds": 60}}}`}
	l := NewRateLimiter(&memCounters{}, configs, testLimits())

	if got := l.Rule(ctx, "upload", true); got.Limit != 5 {
		t.Errorf("upload rule = %+v, want admin override", got)
	}
	if got := l.Rule(ctx, "generate", true); got.Limit != 3 {
		t.Errorf("generate rule = %+v, want default", got)
	}

	broken := NewRateLimiter(&memCounters{}, mapConfigs{domain.ConfigKeyRateLimits: "!"}, testLimits())
	if got := broken.Rule(ctx, "upload", true); got.Limit != 1 {
		t.Errorf("rule with unreadable overrides = %+v, want default", got)
	}
}

func TestRateLimiter_StoreFailureAllows(t *testing.T) {
	l := NewRateLimiter(&memCounters{err: errors.New("redis down")}, nil, testLimits())
	d, err := l.Allow(context.Background(), "generate", Caller{UserID: "u1"})
	if err == nil {
		t.Error("expected the store error to be reported")
	}
	if d == nil || !d.Allowed {
		t.Errorf("decision = %+v, want allowed", d)
	}
}

func TestRetryAfterSeconds(t *testing.T) {
	tests := []struct {
		in   time.Duration
		want int
	}{
		{0, 1},
		{-time.Second, 1},
		{300 * time.Millisecond, 1},
		{1500 * time.Millisecond, 2},
		{59 * time.Second, 59},
	}
	for _, tt := range tests {
		if got := retryAfterSeconds(tt.in); got != tt.want {
			t.Errorf("retryAfterSeconds(%v) = %d, want %d", tt.in, got, tt.want)
		}
	}
}

func TestRedisCounterStore(t *testing.T) {
	addr := os.Getenv("REDIS_ADDR")
	if addr == "" {
		t.Skip("REDIS_ADDR not set")
	}
	ctx := context.Background()
	client := redis.NewClient(&redis.Options{Addr: addr})
	defer client.Close()
	if err := client.Ping(ctx).Err(); err != nil {
		t.Skipf("redis unavailable: %v", err)
	}

	store := NewRedisCounterStore(client)
	store.prefix = "test:" + uuid.NewString() + ":"
	start := time.Unix(1_700_000_000, 0)
	for want := 1; want <= 3; want++ {
		got, err := store.Increment(ctx, "generate:user:u1", start, time.Minute)
		if err != nil {
			t.Fatalf("Increment: %v", err)
		}
		if got != want {
			t.Errorf("Increment = %d, want %d", got, want)
		}
	}
	if got, _ := store.Increment(ctx, "generate:user:u1", start.Add(time.Minute), time.Minute); got != 1 {
		t.Errorf("next window count = %d, want 1", got)
	}
	ttl, err := client.TTL(ctx, fmt.Sprintf("%sgenerate:user:u1:%d", store.prefix, start.Unix())).Result()
	if err != nil || ttl <= 0 || ttl > time.Minute+time.Second {
		t.Errorf("ttl = %v (%v)", ttl, err)
	}
}

func TestRedisCounterStore_ExpiresLeftoverCounter(t *testing.T) {
	addr := os.Getenv("REDIS_ADDR")
	if addr == "" {
		t.Skip("REDIS_ADDR not set")
	}
	ctx := context.Background()
	client := redis.NewClient(&redis.Options{Addr: addr})
	defer client.Close()
	if err := client.Ping(ctx).Err(); err != nil {
		t.Skipf("redis unavailable: %v", err)
	}

	store := NewRedisCounterStore(client)
	store.prefix = "test:" + uuid.NewString() + ":"
	start := time.Unix(1_700_000_000, 0)
	key := fmt.Sprintf("%supload:anon:ip:1.2.3.4:%d", store.prefix, start.Unix())
	// A counter left without a TTL must not pin the caller at its old count.
	if err := client.Set(ctx, key, 7, 0).Err(); err != nil {
		t.Fatalf("Set: %v", err)
	}
	t.Cleanup(func() { client.Del(context.Background(), key) })

	got, err := store.Increment(ctx, "upload:anon:ip:1.2.3.4", start, time.Minute)
	if err != nil || got != 8 {
		t.Fatalf("Increment = %d, %v; want 8", got, err)
	}
	if ttl, err := client.TTL(ctx, key).Result(); err != nil || ttl <= 0 {
		t.Errorf("ttl = %v (%v), want a positive expiry", ttl, err)
	}
}

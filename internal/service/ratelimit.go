package service

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/vibelog/backend/internal/config"
	"github.com/vibelog/backend/internal/domain"
	"github.com/vibelog/backend/internal/logger"
	"github.com/vibelog/backend/internal/repository"
)

// CounterStore increments the request count of one fixed window.
type CounterStore interface {
	Increment(ctx context.Context, key string, windowStart time.Time, window time.Duration) (int, error)
}

// DBCounterStore keeps windows in the rate_limit_buckets table.
type DBCounterStore struct {
	repo *repository.RateLimitRepository
}

func NewDBCounterStore(repo *repository.RateLimitRepository) *DBCounterStore {
	return &DBCounterStore{repo: repo}
}

func (s *DBCounterStore) Increment(ctx context.Context, key string, windowStart time.Time, _ time.Duration) (int, error) {
	return s.repo.Increment(ctx, key, windowStart)
}

// RedisCounterStore keeps one expiring counter per key and window.
type RedisCounterStore struct {
	client redis.UniversalClient
	prefix string
}

func NewRedisCounterStore(client redis.UniversalClient) *RedisCounterStore {
	return &RedisCounterStore{client: client, prefix: "ratelimit:"}
}

func (s *RedisCounterStore) Increment(ctx context.Context, key string, windowStart time.Time, window time.Duration) (int, error) {
	k := fmt.Sprintf("%s%s:%d", s.prefix, key, windowStart.Unix())
	// INCR and EXPIRE share one MULTI so a counter never outlives its window
	// without a TTL. The TTL runs slightly past the window for late readers.
	var incr *redis.IntCmd
	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		incr = pipe.Incr(ctx, k)
		pipe.Expire(ctx, k, window+time.Second)
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("redis incr failed: %w", err)
	}
	return int(incr.Val()), nil
}

// Caller identifies who a request is counted against.
type Caller struct {
	UserID       string
	AnonymousKey string
}

func (c Caller) bucket(endpoint string) string {
	if c.UserID != "" {
		return endpoint + ":user:" + c.UserID
	}
	return endpoint + ":anon:" + c.AnonymousKey
}

// RateDecision is the outcome of one Allow call.
type RateDecision struct {
	Allowed    bool
	Limit      int
	Remaining  int
	ResetAt    time.Time
	RetryAfter int // whole seconds, set when Allowed is false
}

// RateLimiter applies fixed-window limits per endpoint and caller.
type RateLimiter struct {
	store    CounterStore
	configs  ConfigSource
	defaults map[string]config.EndpointLimit
	now      func() time.Time
}

func NewRateLimiter(store CounterStore, configs ConfigSource, defaults map[string]config.EndpointLimit) *RateLimiter {
	if defaults == nil {
		defaults = config.DefaultEndpointLimits()
	}
	return &RateLimiter{
		store:    store,
		configs:  configs,
		defaults: defaults,
		now:      time.Now,
	}
}

// Rule resolves the active rule for endpoint, preferring the rate_limits admin entry.
func (l *RateLimiter) Rule(ctx context.Context, endpoint string, authenticated bool) config.RateLimitRule {
	limits, ok := l.defaults[endpoint]
	if l.configs != nil {
		var overrides map[string]config.EndpointLimit
		err := l.configs.Decode(ctx, domain.ConfigKeyRateLimits, &overrides)
		switch {
		case err == nil:
			if o, found := overrides[endpoint]; found {
				limits, ok = o, true
			}
		case !errors.Is(err, repository.ErrNotFound):
			logger.CtxWarn(ctx, "Failed to read %s, using configured defaults: %v", domain.ConfigKeyRateLimits, err)
		}
	}
	if !ok {
		return config.RateLimitRule{}
	}
	if authenticated {
		return limits.Authenticated
	}
	return limits.Anonymous
}

// Allow counts one request. A rule with limit <= 0 disables limiting.
// Store failures let the request through; the other guards still apply.
func (l *RateLimiter) Allow(ctx context.Context, endpoint string, caller Caller) (*RateDecision, error) {
	rule := l.Rule(ctx, endpoint, caller.UserID != "")
	if rule.Limit <= 0 || rule.WindowSeconds <= 0 {
		return &RateDecision{Allowed: true}, nil
	}

	now := l.now().UTC()
	window := time.Duration(rule.WindowSeconds) * time.Second
	windowStart := time.Unix(now.Unix()-now.Unix()%int64(rule.WindowSeconds), 0).UTC()
	resetAt := windowStart.Add(window)

	count, err := l.store.Increment(ctx, caller.bucket(endpoint), windowStart, window)
	if err != nil {
		return &RateDecision{Allowed: true, Limit: rule.Limit, Remaining: rule.Limit, ResetAt: resetAt},
			fmt.Errorf("rate limit store: %w", err)
	}

	d := &RateDecision{
		Allowed:   count <= rule.Limit,
		Limit:     rule.Limit,
		Remaining: rule.Limit - count,
		ResetAt:   resetAt,
	}
	if d.Remaining < 0 {
		d.Remaining = 0
	}
	if !d.Allowed {
		d.RetryAfter = retryAfterSeconds(resetAt.Sub(now))
	}
	return d, nil
}

func retryAfterSeconds(d time.Duration) int {
	s := int(math.Ceil(d.Seconds()))
	if s < 1 {
		return 1
	}
	return s
}

// Package ratelimit provides Redis-backed per-user budgets for costly
// operations, shared by every API instance.
package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// Default budget configuration values.
const (
	DefaultLimit  = 20
	DefaultWindow = time.Hour
	// KeyPrefix is followed by <userID>:<window start in unix ms>
	KeyPrefix = "budget:insights:"
)

// consumeScript atomically checks and increments a window counter.
// Returns {allowed, used}.
var consumeScript = redis.NewScript(`
	local used = tonumber(redis.call('GET', KEYS[1]) or '0')
	local cost = tonumber(ARGV[1])
	local limit = tonumber(ARGV[2])
	if used + cost > limit then
		return {0, used}
	end
	used = redis.call('INCRBY', KEYS[1], cost)
	redis.call('PEXPIRE', KEYS[1], ARGV[3])
	return {1, used}
`)

// Config holds configuration for a Budget.
type Config struct {
	// Redis is required.
	Redis redis.Cmdable

	// Limit is the number of units each user may consume per window. Default: 20.
	Limit int

	// Window is the fixed window length. Default: 1h.
	Window time.Duration
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if c.Redis == nil {
		return errors.New("redis client is required")
	}
	if c.Limit < 0 {
		return errors.New("limit cannot be negative")
	}
	if c.Window < 0 {
		return errors.New("window cannot be negative")
	}
	return nil
}

// Budget is a fixed-window per-user counter.
type Budget struct {
	redis  redis.Cmdable
	limit  int
	window time.Duration
	now    func() time.Time
}

// NewBudget creates a budget with defaults applied
func NewBudget(cfg *Config) (*Budget, error) {
	if cfg == nil {
		return nil, errors.New("configuration is required")
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	limit := cfg.Limit
	if limit == 0 {
		limit = DefaultLimit
	}
	window := cfg.Window
	if window == 0 {
		window = DefaultWindow
	}

	return &Budget{
		redis:  cfg.Redis,
		limit:  limit,
		window: window,
		now:    time.Now,
	}, nil
}

func (b *Budget) windowStart() time.Time {
	return b.now().Truncate(b.window)
}

func (b *Budget) key(userID string, windowStart time.Time) string {
	return KeyPrefix + userID + ":" + strconv.FormatInt(windowStart.UnixMilli(), 10)
}

// TryConsume takes one unit from the user's budget. When denied, retryAfter
// is the time until the next window. Redis failures deny and return the error.
func (b *Budget) TryConsume(ctx context.Context, userID string) (allowed bool, retryAfter time.Duration, err error) {
	start := b.windowStart()
	// a window's key outlives it slightly so late increments still expire
	ttl := b.window + time.Second

	res, err := consumeScript.Run(ctx, b.redis, []string{b.key(userID, start)},
		1, b.limit, ttl.Milliseconds()).Int64Slice()
	if err != nil {
		return false, b.untilNextWindow(start), fmt.Errorf("consume budget: %w", err)
	}
	if res[0] != 1 {
		return false, b.untilNextWindow(start), nil
	}
	return true, 0, nil
}

func (b *Budget) untilNextWindow(start time.Time) time.Duration {
	wait := start.Add(b.window).Sub(b.now())
	if wait < 0 {
		wait = 0
	}
	return wait
}

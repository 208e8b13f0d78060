package ratelimit

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	redis "github.com/redis/go-redis/v9"
)

// The rental log is a sorted set of admission times in milliseconds. Entries
// older than the window are trimmed before counting, so the limit rolls the
// same way the in-process provider windows do.
const rentWindowScript = `
local limit = tonumber(ARGV[1])
local window = tonumber(ARGV[2])

local t = redis.call("TIME")
local now = (t[1] * 1000) + math.floor(t[2] / 1000)

redis.call("ZREMRANGEBYSCORE", KEYS[1], "-inf", now - window)
local used = redis.call("ZCARD", KEYS[1])

if used < limit then
  redis.call("ZADD", KEYS[1], now, ARGV[3])
  redis.call("PEXPIRE", KEYS[1], window)
  return {1, limit - used - 1, 0}
end

local oldest = redis.call("ZRANGE", KEYS[1], 0, 0, "WITHSCORES")
local wait = window
if oldest[2] ~= nil then
  wait = tonumber(oldest[2]) + window - now
end
return {0, 0, wait}
`

// RateLimitResult is the outcome of one admission check.
type RateLimitResult struct {
	Allowed    bool
	Limit      int
	Remaining  int
	RetryAfter time.Duration
}

// RentWindow counts rentals per client across replicas.
type RentWindow struct {
	client redis.UniversalClient
	script *redis.Script
}

func NewRentWindow(client redis.UniversalClient) *RentWindow {
	if client == nil {
		return nil
	}
	return &RentWindow{client: client, script: redis.NewScript(rentWindowScript)}
}

func (w *RentWindow) Allow(ctx context.Context, key string, limit int, window time.Duration) (*RateLimitResult, error) {
	switch {
	case w == nil || w.client == nil:
		return &RateLimitResult{}, errors.New("rent window not configured")
	case key == "":
		return &RateLimitResult{}, errors.New("rent window key is empty")
	case limit <= 0 || window < time.Millisecond:
		return &RateLimitResult{}, errors.New("rent window limit and length must be positive")
	}

	vals, err := w.script.Run(ctx, w.client, []string{key}, limit, window.Milliseconds(), uuid.NewString()).Int64Slice()
	if err != nil {
		return &RateLimitResult{}, err
	}
	if len(vals) != 3 {
		return &RateLimitResult{}, errors.New("unexpected rent window reply")
	}

	res := &RateLimitResult{
		Allowed:   vals[0] == 1,
		Limit:     limit,
		Remaining: int(vals[1]),
	}
	if !res.Allowed && vals[2] > 0 {
		res.RetryAfter = time.Duration(vals[2]) * time.Millisecond
	}
	return res, nil
}

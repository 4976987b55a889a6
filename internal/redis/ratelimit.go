package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// RateLimitStore enforces the per-trip GPS report ceiling with a rolling
// window. The counter lives in Redis so every service instance shares the
// same limit.
type RateLimitStore struct {
	client *redis.Client
}

// NewRateLimitStore creates a new RateLimitStore.
func NewRateLimitStore(client *redis.Client) *RateLimitStore {
	return &RateLimitStore{client: client}
}

// Reservation is the outcome of one reservation attempt against a trip's
// window.
type Reservation struct {
	Allowed    bool
	Member     string        // token to Release if the report is later rejected
	Remaining  int           // slots left after this reservation
	RetryAfter time.Duration // how long until a slot frees up; zero when allowed
}

func rateLimitKey(tripID string) string {
	return fmt.Sprintf("ratelimit:gps:%s", tripID)
}

// reserveScript prunes the window, counts it, and claims a slot in one
// atomic step, so concurrent reservations for the same trip serialize in
// Redis. Scores are unix milliseconds: nanoseconds would overflow Lua's
// double-precision numbers.
//
// KEYS[1] window key
// ARGV[1] cutoff ms, ARGV[2] limit, ARGV[3] now ms, ARGV[4] member,
// ARGV[5] window ms
//
// Returns {allowed, remaining, retry-after ms}.
var reserveScript = redis.NewScript(`
redis.call('ZREMRANGEBYSCORE', KEYS[1], 0, ARGV[1])
local count = redis.call('ZCARD', KEYS[1])
local limit = tonumber(ARGV[2])
if count < limit then
	redis.call('ZADD', KEYS[1], ARGV[3], ARGV[4])
	redis.call('PEXPIRE', KEYS[1], ARGV[5])
	return {1, limit - count - 1, 0}
end
local retry = tonumber(ARGV[5])
local oldest = redis.call('ZRANGE', KEYS[1], 0, 0, 'WITHSCORES')
if oldest[2] then
	retry = tonumber(oldest[2]) + tonumber(ARGV[5]) - tonumber(ARGV[3])
	if retry < 0 then
		retry = 0
	end
end
return {0, 0, retry}
`)

// Reserve claims one slot in the trip's rolling window, or reports how long
// until the oldest counted report leaves it. A reservation the caller ends
// up not using must be handed back via Release.
func (s *RateLimitStore) Reserve(ctx context.Context, tripID string, limit int, window time.Duration) (Reservation, error) {
	now := time.Now()
	member := uuid.New().String()

	values, err := reserveScript.Run(ctx, s.client, []string{rateLimitKey(tripID)},
		now.Add(-window).UnixMilli(),
		limit,
		now.UnixMilli(),
		member,
		window.Milliseconds(),
	).Int64Slice()
	if err != nil {
		return Reservation{}, err
	}
	if len(values) != 3 {
		return Reservation{}, fmt.Errorf("rate limit script returned %d values", len(values))
	}

	if values[0] == 0 {
		return Reservation{
			RetryAfter: time.Duration(values[2]) * time.Millisecond,
		}, nil
	}

	return Reservation{
		Allowed:   true,
		Member:    member,
		Remaining: int(values[1]),
	}, nil
}

// Release refunds a reserved slot, used when a report passes the rate gate
// but a later validation stage rejects it.
func (s *RateLimitStore) Release(ctx context.Context, tripID, member string) error {
	return s.client.ZRem(ctx, rateLimitKey(tripID), member).Err()
}

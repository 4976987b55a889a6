package redis

import (
	"context"
	"time"

	"freight/internal/domain"
)

// CacheInvalidator is the change-signal surface consumed by the services.
type CacheInvalidator interface {
	InvalidateTrip(ctx context.Context, tripID string) error
	InvalidateLoad(ctx context.Context, loadID string) error
}

// TripCache is the cache-aside surface for the tracking read paths.
type TripCache interface {
	GetTrip(ctx context.Context, tripID string) (*domain.Trip, error)
	SetTrip(ctx context.Context, trip *domain.Trip) error
}

// RateLimiter is the shared GPS report counter surface. Reserve claims a
// window slot atomically; Release refunds a slot the caller did not use.
type RateLimiter interface {
	Reserve(ctx context.Context, tripID string, limit int, window time.Duration) (Reservation, error)
	Release(ctx context.Context, tripID, member string) error
}

// Ensure concrete types implement interfaces.
var (
	_ CacheInvalidator = (*CacheStore)(nil)
	_ TripCache        = (*CacheStore)(nil)
	_ RateLimiter      = (*RateLimitStore)(nil)
)

package redis

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"

	"freight/internal/domain"
)

// CacheStore fronts the trip rows for hot read paths, the live tracking
// poll above all. Invalidation doubles as the change signal other service
// instances watch.
type CacheStore struct {
	client *redis.Client
}

// NewCacheStore creates a new CacheStore.
func NewCacheStore(client *redis.Client) *CacheStore {
	return &CacheStore{client: client}
}

// Cache TTL constants
const (
	// Trip location changes with every accepted report, so the snapshot
	// is only ever a short window behind even without invalidation.
	TripCacheTTL = 30 * time.Second
)

// Key prefixes
const (
	tripCachePrefix = "cache:trip:"
	loadCachePrefix = "cache:load:"
)

// GetTrip retrieves a trip snapshot from cache. A nil result is a miss.
func (s *CacheStore) GetTrip(ctx context.Context, tripID string) (*domain.Trip, error) {
	data, err := s.client.Get(ctx, tripCachePrefix+tripID).Bytes()
	if err != nil {
		if err == redis.Nil {
			return nil, nil // Cache miss
		}
		return nil, err
	}

	var trip domain.Trip
	if err := json.Unmarshal(data, &trip); err != nil {
		return nil, err
	}
	return &trip, nil
}

// SetTrip stores a trip snapshot in cache.
func (s *CacheStore) SetTrip(ctx context.Context, trip *domain.Trip) error {
	data, err := json.Marshal(trip)
	if err != nil {
		return err
	}
	return s.client.Set(ctx, tripCachePrefix+trip.ID, data, TripCacheTTL).Err()
}

// InvalidateTrip removes a trip snapshot from cache.
func (s *CacheStore) InvalidateTrip(ctx context.Context, tripID string) error {
	return s.client.Del(ctx, tripCachePrefix+tripID).Err()
}

// InvalidateLoad removes a load snapshot from cache.
func (s *CacheStore) InvalidateLoad(ctx context.Context, loadID string) error {
	return s.client.Del(ctx, loadCachePrefix+loadID).Err()
}

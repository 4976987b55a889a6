package repository

import (
	"context"
	"time"

	"freight/internal/domain"
)

// PositionRepository defines the append-only ledger of GPS samples.
type PositionRepository interface {
	// Create appends a new position sample.
	Create(ctx context.Context, sample *domain.PositionSample) error

	// ListByTrip returns the trip's samples ordered by recorded time
	// ascending, optionally bounded by [from, to]. Zero times mean
	// unbounded.
	ListByTrip(ctx context.Context, tripID string, from, to time.Time) ([]*domain.PositionSample, error)

	// Latest returns the most recent sample for a trip, or nil, nil when
	// none exist.
	Latest(ctx context.Context, tripID string) (*domain.PositionSample, error)

	// LatestWithSpeed returns the most recent sample carrying a speed
	// reading, or nil, nil when none exist.
	LatestWithSpeed(ctx context.Context, tripID string) (*domain.PositionSample, error)
}

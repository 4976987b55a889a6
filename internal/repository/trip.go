package repository

import (
	"context"

	"freight/internal/domain"
)

// TripRepository defines the persistence operations for trips.
type TripRepository interface {
	// Create persists a new trip. Returns ErrDuplicate when a trip
	// already exists for the same load.
	Create(ctx context.Context, trip *domain.Trip) error

	// GetByID retrieves a trip by ID.
	GetByID(ctx context.Context, id string) (*domain.Trip, error)

	// GetByLoadID retrieves the trip for a load. Returns nil, nil when
	// no trip exists yet.
	GetByLoadID(ctx context.Context, loadID string) (*domain.Trip, error)

	// UpdateFromStatus writes the trip's mutable fields, guarded on the
	// status the caller read. Returns ErrStaleState when the stored
	// status no longer matches expected.
	UpdateFromStatus(ctx context.Context, trip *domain.Trip, expected domain.TripStatus) error

	// UpdateCurrentLocation writes the cached current coordinates and
	// the location-updated timestamp. The segment from the previously
	// stored coordinates is added to the accumulated actual distance;
	// the first recorded position contributes nothing.
	UpdateCurrentLocation(ctx context.Context, tripID string, lat, lng float64) error
}

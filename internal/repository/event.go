package repository

import (
	"context"

	"freight/internal/domain"
)

// EventRepository defines the append-only trip audit log.
type EventRepository interface {
	// Create appends a new trip event.
	Create(ctx context.Context, event *domain.TripEvent) error

	// ListByLoad returns the events for a load, newest first.
	ListByLoad(ctx context.Context, loadID string) ([]*domain.TripEvent, error)
}

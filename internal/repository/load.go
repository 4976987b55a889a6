package repository

import (
	"context"

	"freight/internal/domain"
)

// LoadRepository defines the persistence operations on the load fields the
// trip lifecycle reads and writes.
type LoadRepository interface {
	// GetByID retrieves a load by ID.
	GetByID(ctx context.Context, id string) (*domain.Load, error)

	// UpdateStatus writes the load status.
	UpdateStatus(ctx context.Context, id string, status domain.LoadStatus) error

	// ClearAssignedTruck nulls the assigned-truck reference, used when a
	// trip is cancelled.
	ClearAssignedTruck(ctx context.Context, id string) error
}

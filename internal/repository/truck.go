package repository

import (
	"context"
	"time"

	"freight/internal/domain"
)

// TruckRepository defines the persistence operations on the truck fields the
// tracking core touches.
type TruckRepository interface {
	// GetByID retrieves a truck by ID.
	GetByID(ctx context.Context, id string) (*domain.Truck, error)

	// ProvisionDevice assigns a device identity to a truck that has
	// none. Trucks that already carry a device keep it.
	ProvisionDevice(ctx context.Context, truckID, deviceID string) error

	// UpdateGPS writes the cached location and GPS health fields.
	UpdateGPS(ctx context.Context, truckID string, lat, lng float64, seenAt time.Time, status domain.GPSStatus) error
}

package postgres

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"freight/internal/domain"
	"freight/internal/repository"
)

// TruckRepository is a PostgreSQL implementation of repository.TruckRepository.
type TruckRepository struct {
	q Querier
}

// NewTruckRepository creates a new PostgreSQL truck repository.
func NewTruckRepository(db *sql.DB) *TruckRepository {
	return &TruckRepository{q: db}
}

// NewTruckRepositoryWithTx creates a truck repository using a transaction.
func NewTruckRepositoryWithTx(tx *sql.Tx) *TruckRepository {
	return &TruckRepository{q: tx}
}

// GetByID retrieves a truck by ID.
func (r *TruckRepository) GetByID(ctx context.Context, id string) (*domain.Truck, error) {
	query := `
		SELECT id, carrier_org_id, plate_number, device_id, gps_status,
		       gps_last_seen, current_lat, current_lng, location_updated_at
		FROM trucks WHERE id = $1
	`

	var truck domain.Truck
	var deviceID sql.NullString
	var gpsLastSeen, locationUpdated sql.NullTime

	err := r.q.QueryRowContext(ctx, query, id).Scan(
		&truck.ID,
		&truck.CarrierOrgID,
		&truck.PlateNumber,
		&deviceID,
		&truck.GPSStatus,
		&gpsLastSeen,
		&truck.CurrentLat,
		&truck.CurrentLng,
		&locationUpdated,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, err
	}

	if deviceID.Valid {
		truck.DeviceID = deviceID.String
	}
	if gpsLastSeen.Valid {
		truck.GPSLastSeen = gpsLastSeen.Time
	}
	if locationUpdated.Valid {
		truck.LocationUpdated = locationUpdated.Time
	}

	return &truck, nil
}

// ProvisionDevice assigns a device identity to a truck that has none.
// The WHERE guard keeps an existing device id intact under concurrent
// first reports.
func (r *TruckRepository) ProvisionDevice(ctx context.Context, truckID, deviceID string) error {
	query := `
		UPDATE trucks
		SET device_id = $1
		WHERE id = $2 AND device_id IS NULL
	`

	_, err := r.q.ExecContext(ctx, query, deviceID, truckID)
	return err
}

// UpdateGPS writes the cached location and GPS health fields.
func (r *TruckRepository) UpdateGPS(ctx context.Context, truckID string, lat, lng float64, seenAt time.Time, status domain.GPSStatus) error {
	query := `
		UPDATE trucks
		SET current_lat = $1,
		    current_lng = $2,
		    location_updated_at = $3,
		    gps_last_seen = $3,
		    gps_status = $4
		WHERE id = $5
	`

	result, err := r.q.ExecContext(ctx, query, lat, lng, seenAt, status, truckID)
	if err != nil {
		return err
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return err
	}

	if rowsAffected == 0 {
		return repository.ErrNotFound
	}

	return nil
}

// Ensure TruckRepository implements repository.TruckRepository.
var _ repository.TruckRepository = (*TruckRepository)(nil)

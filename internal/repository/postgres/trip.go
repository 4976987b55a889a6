package postgres

import (
	"context"
	"database/sql"
	"errors"

	"github.com/lib/pq"

	"freight/internal/domain"
	"freight/internal/repository"
)

// TripRepository is a PostgreSQL implementation of repository.TripRepository.
type TripRepository struct {
	q Querier
}

// NewTripRepository creates a new PostgreSQL trip repository.
func NewTripRepository(db *sql.DB) *TripRepository {
	return &TripRepository{q: db}
}

// NewTripRepositoryWithTx creates a trip repository using a transaction.
func NewTripRepositoryWithTx(tx *sql.Tx) *TripRepository {
	return &TripRepository{q: tx}
}

const tripColumns = `
	id, load_id, carrier_org_id, shipper_org_id, truck_id, status,
	pickup_lat, pickup_lng, pickup_address,
	delivery_lat, delivery_lng, delivery_address,
	current_lat, current_lng, location_updated_at,
	tracking_enabled, shipper_confirmed,
	estimated_distance_km, actual_distance_km,
	receiver_name, receiver_phone, delivery_notes, cancel_reason,
	created_at, started_at, picked_up_at, delivered_at, completed_at, cancelled_at
`

// Create persists a new trip. The unique index on load_id enforces at most
// one trip per load.
func (r *TripRepository) Create(ctx context.Context, trip *domain.Trip) error {
	query := `
		INSERT INTO trips (` + tripColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15,
			$16, $17, $18, $19, $20, $21, $22, $23, $24, $25, $26, $27, $28, $29)
	`

	_, err := r.q.ExecContext(ctx, query,
		trip.ID,
		trip.LoadID,
		trip.CarrierOrgID,
		trip.ShipperOrgID,
		trip.TruckID,
		trip.Status,
		trip.PickupLat,
		trip.PickupLng,
		trip.PickupAddress,
		trip.DeliveryLat,
		trip.DeliveryLng,
		trip.DeliveryAddress,
		trip.CurrentLat,
		trip.CurrentLng,
		nullTime(trip.LocationUpdated),
		trip.TrackingEnabled,
		trip.ShipperConfirmed,
		trip.EstimatedDistanceKm,
		trip.ActualDistanceKm,
		trip.ReceiverName,
		trip.ReceiverPhone,
		trip.DeliveryNotes,
		trip.CancelReason,
		trip.CreatedAt,
		nullTime(trip.StartedAt),
		nullTime(trip.PickedUpAt),
		nullTime(trip.DeliveredAt),
		nullTime(trip.CompletedAt),
		nullTime(trip.CancelledAt),
	)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == "23505" {
			return repository.ErrDuplicate
		}
		return err
	}

	return nil
}

// GetByID retrieves a trip by ID.
func (r *TripRepository) GetByID(ctx context.Context, id string) (*domain.Trip, error) {
	query := `SELECT ` + tripColumns + ` FROM trips WHERE id = $1`
	return r.scanOne(r.q.QueryRowContext(ctx, query, id))
}

// GetByLoadID retrieves the trip for a load, or nil, nil when none exists.
func (r *TripRepository) GetByLoadID(ctx context.Context, loadID string) (*domain.Trip, error) {
	query := `SELECT ` + tripColumns + ` FROM trips WHERE load_id = $1`

	trip, err := r.scanOne(r.q.QueryRowContext(ctx, query, loadID))
	if errors.Is(err, repository.ErrNotFound) {
		return nil, nil
	}
	return trip, err
}

// UpdateFromStatus writes the trip's mutable fields, guarded on the status
// the caller read. Two racing transitions serialize here: the loser matches
// zero rows and gets ErrStaleState.
func (r *TripRepository) UpdateFromStatus(ctx context.Context, trip *domain.Trip, expected domain.TripStatus) error {
	query := `
		UPDATE trips
		SET status = $1,
		    tracking_enabled = $2,
		    shipper_confirmed = $3,
		    receiver_name = $4,
		    receiver_phone = $5,
		    delivery_notes = $6,
		    cancel_reason = $7,
		    started_at = $8,
		    picked_up_at = $9,
		    delivered_at = $10,
		    completed_at = $11,
		    cancelled_at = $12
		WHERE id = $13 AND status = $14
	`

	result, err := r.q.ExecContext(ctx, query,
		trip.Status,
		trip.TrackingEnabled,
		trip.ShipperConfirmed,
		trip.ReceiverName,
		trip.ReceiverPhone,
		trip.DeliveryNotes,
		trip.CancelReason,
		nullTime(trip.StartedAt),
		nullTime(trip.PickedUpAt),
		nullTime(trip.DeliveredAt),
		nullTime(trip.CompletedAt),
		nullTime(trip.CancelledAt),
		trip.ID,
		expected,
	)
	if err != nil {
		return err
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return err
	}

	if rowsAffected == 0 {
		return repository.ErrStaleState
	}

	return nil
}

// UpdateCurrentLocation writes the cached current coordinates and stamps
// the update time server-side. The haversine segment is computed in SQL
// against the stored coordinates: SET expressions see the pre-update row,
// and the row lock serializes concurrent reports, so accumulated distance
// chains segment by segment instead of repeatedly measuring from a base
// the callers read before their transactions.
func (r *TripRepository) UpdateCurrentLocation(ctx context.Context, tripID string, lat, lng float64) error {
	query := `
		UPDATE trips
		SET actual_distance_km = actual_distance_km + CASE
		        WHEN location_updated_at IS NULL THEN 0
		        ELSE 2 * 6371 * asin(sqrt(
		            power(sin(radians(($1 - current_lat) / 2)), 2) +
		            cos(radians(current_lat)) * cos(radians($1)) *
		            power(sin(radians(($2 - current_lng) / 2)), 2)
		        ))
		    END,
		    current_lat = $1,
		    current_lng = $2,
		    location_updated_at = NOW()
		WHERE id = $3
	`

	result, err := r.q.ExecContext(ctx, query, lat, lng, tripID)
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

// rowScanner is satisfied by *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func (r *TripRepository) scanOne(row rowScanner) (*domain.Trip, error) {
	var trip domain.Trip
	var locationUpdated, startedAt, pickedUpAt, deliveredAt, completedAt, cancelledAt sql.NullTime

	err := row.Scan(
		&trip.ID,
		&trip.LoadID,
		&trip.CarrierOrgID,
		&trip.ShipperOrgID,
		&trip.TruckID,
		&trip.Status,
		&trip.PickupLat,
		&trip.PickupLng,
		&trip.PickupAddress,
		&trip.DeliveryLat,
		&trip.DeliveryLng,
		&trip.DeliveryAddress,
		&trip.CurrentLat,
		&trip.CurrentLng,
		&locationUpdated,
		&trip.TrackingEnabled,
		&trip.ShipperConfirmed,
		&trip.EstimatedDistanceKm,
		&trip.ActualDistanceKm,
		&trip.ReceiverName,
		&trip.ReceiverPhone,
		&trip.DeliveryNotes,
		&trip.CancelReason,
		&trip.CreatedAt,
		&startedAt,
		&pickedUpAt,
		&deliveredAt,
		&completedAt,
		&cancelledAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, err
	}

	if locationUpdated.Valid {
		trip.LocationUpdated = locationUpdated.Time
	}
	if startedAt.Valid {
		trip.StartedAt = startedAt.Time
	}
	if pickedUpAt.Valid {
		trip.PickedUpAt = pickedUpAt.Time
	}
	if deliveredAt.Valid {
		trip.DeliveredAt = deliveredAt.Time
	}
	if completedAt.Valid {
		trip.CompletedAt = completedAt.Time
	}
	if cancelledAt.Valid {
		trip.CancelledAt = cancelledAt.Time
	}

	return &trip, nil
}

// Ensure TripRepository implements repository.TripRepository.
var _ repository.TripRepository = (*TripRepository)(nil)

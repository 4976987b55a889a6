package postgres

import (
	"context"
	"database/sql"
	"errors"

	"freight/internal/domain"
	"freight/internal/repository"
)

// LoadRepository is a PostgreSQL implementation of repository.LoadRepository.
type LoadRepository struct {
	q Querier
}

// NewLoadRepository creates a new PostgreSQL load repository.
func NewLoadRepository(db *sql.DB) *LoadRepository {
	return &LoadRepository{q: db}
}

// NewLoadRepositoryWithTx creates a load repository using a transaction.
func NewLoadRepositoryWithTx(tx *sql.Tx) *LoadRepository {
	return &LoadRepository{q: tx}
}

// GetByID retrieves a load by ID.
func (r *LoadRepository) GetByID(ctx context.Context, id string) (*domain.Load, error) {
	query := `
		SELECT id, shipper_org_id, carrier_org_id, assigned_truck_id, status,
		       pickup_lat, pickup_lng, pickup_address,
		       delivery_lat, delivery_lng, delivery_address,
		       pod_submitted, pod_verified, pod_count, updated_at
		FROM loads WHERE id = $1
	`

	var load domain.Load
	var carrierOrgID, assignedTruckID sql.NullString

	err := r.q.QueryRowContext(ctx, query, id).Scan(
		&load.ID,
		&load.ShipperOrgID,
		&carrierOrgID,
		&assignedTruckID,
		&load.Status,
		&load.PickupLat,
		&load.PickupLng,
		&load.PickupAddress,
		&load.DeliveryLat,
		&load.DeliveryLng,
		&load.DeliveryAddress,
		&load.PODSubmitted,
		&load.PODVerified,
		&load.PODCount,
		&load.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, err
	}

	if carrierOrgID.Valid {
		load.CarrierOrgID = carrierOrgID.String
	}
	if assignedTruckID.Valid {
		load.AssignedTruckID = assignedTruckID.String
	}

	return &load, nil
}

// UpdateStatus writes the load status.
func (r *LoadRepository) UpdateStatus(ctx context.Context, id string, status domain.LoadStatus) error {
	query := `UPDATE loads SET status = $1, updated_at = NOW() WHERE id = $2`

	result, err := r.q.ExecContext(ctx, query, status, id)
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

// ClearAssignedTruck nulls the assigned-truck reference.
func (r *LoadRepository) ClearAssignedTruck(ctx context.Context, id string) error {
	query := `UPDATE loads SET assigned_truck_id = NULL, updated_at = NOW() WHERE id = $1`

	result, err := r.q.ExecContext(ctx, query, id)
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

// Ensure LoadRepository implements repository.LoadRepository.
var _ repository.LoadRepository = (*LoadRepository)(nil)

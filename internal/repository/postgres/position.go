package postgres

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"freight/internal/domain"
	"freight/internal/repository"
)

// PositionRepository is a PostgreSQL implementation of
// repository.PositionRepository. Rows are append-only.
type PositionRepository struct {
	q Querier
}

// NewPositionRepository creates a new PostgreSQL position repository.
func NewPositionRepository(db *sql.DB) *PositionRepository {
	return &PositionRepository{q: db}
}

// NewPositionRepositoryWithTx creates a position repository using a transaction.
func NewPositionRepositoryWithTx(tx *sql.Tx) *PositionRepository {
	return &PositionRepository{q: tx}
}

const positionColumns = `
	id, trip_id, truck_id, lat, lng, speed_kmh, heading, altitude_m, accuracy_m, recorded_at
`

// Create appends a new position sample.
func (r *PositionRepository) Create(ctx context.Context, sample *domain.PositionSample) error {
	query := `
		INSERT INTO positions (` + positionColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`

	_, err := r.q.ExecContext(ctx, query,
		sample.ID,
		sample.TripID,
		sample.TruckID,
		sample.Lat,
		sample.Lng,
		sample.SpeedKmh,
		sample.Heading,
		sample.AltitudeM,
		sample.AccuracyM,
		sample.RecordedAt,
	)

	return err
}

// ListByTrip returns the trip's samples ordered by recorded time ascending,
// optionally bounded by [from, to].
func (r *PositionRepository) ListByTrip(ctx context.Context, tripID string, from, to time.Time) ([]*domain.PositionSample, error) {
	query := `
		SELECT ` + positionColumns + `
		FROM positions
		WHERE trip_id = $1
		  AND ($2::timestamptz IS NULL OR recorded_at >= $2)
		  AND ($3::timestamptz IS NULL OR recorded_at <= $3)
		ORDER BY recorded_at ASC
	`

	rows, err := r.q.QueryContext(ctx, query, tripID, nullTime(from), nullTime(to))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var samples []*domain.PositionSample
	for rows.Next() {
		sample, err := scanPosition(rows)
		if err != nil {
			return nil, err
		}
		samples = append(samples, sample)
	}

	return samples, rows.Err()
}

// Latest returns the most recent sample for a trip, or nil, nil when none
// exist.
func (r *PositionRepository) Latest(ctx context.Context, tripID string) (*domain.PositionSample, error) {
	query := `
		SELECT ` + positionColumns + `
		FROM positions
		WHERE trip_id = $1
		ORDER BY recorded_at DESC
		LIMIT 1
	`

	sample, err := scanPosition(r.q.QueryRowContext(ctx, query, tripID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return sample, err
}

// LatestWithSpeed returns the most recent sample carrying a speed reading,
// or nil, nil when none exist.
func (r *PositionRepository) LatestWithSpeed(ctx context.Context, tripID string) (*domain.PositionSample, error) {
	query := `
		SELECT ` + positionColumns + `
		FROM positions
		WHERE trip_id = $1 AND speed_kmh IS NOT NULL
		ORDER BY recorded_at DESC
		LIMIT 1
	`

	sample, err := scanPosition(r.q.QueryRowContext(ctx, query, tripID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return sample, err
}

func scanPosition(row rowScanner) (*domain.PositionSample, error) {
	var sample domain.PositionSample

	err := row.Scan(
		&sample.ID,
		&sample.TripID,
		&sample.TruckID,
		&sample.Lat,
		&sample.Lng,
		&sample.SpeedKmh,
		&sample.Heading,
		&sample.AltitudeM,
		&sample.AccuracyM,
		&sample.RecordedAt,
	)
	if err != nil {
		return nil, err
	}

	return &sample, nil
}

// Ensure PositionRepository implements repository.PositionRepository.
var _ repository.PositionRepository = (*PositionRepository)(nil)

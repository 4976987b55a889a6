package postgres

import (
	"context"
	"database/sql"
	"encoding/json"

	"freight/internal/domain"
	"freight/internal/repository"
)

// EventRepository is a PostgreSQL implementation of repository.EventRepository.
// Rows are append-only.
type EventRepository struct {
	q Querier
}

// NewEventRepository creates a new PostgreSQL event repository.
func NewEventRepository(db *sql.DB) *EventRepository {
	return &EventRepository{q: db}
}

// NewEventRepositoryWithTx creates an event repository using a transaction.
func NewEventRepositoryWithTx(tx *sql.Tx) *EventRepository {
	return &EventRepository{q: tx}
}

// Create appends a new trip event. Metadata is stored as JSONB.
func (r *EventRepository) Create(ctx context.Context, event *domain.TripEvent) error {
	query := `
		INSERT INTO trip_events (id, load_id, event_type, description, actor_id, metadata, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`

	metadata, err := json.Marshal(event.Metadata)
	if err != nil {
		return err
	}

	_, err = r.q.ExecContext(ctx, query,
		event.ID,
		event.LoadID,
		event.Type,
		event.Description,
		event.ActorID,
		metadata,
		event.CreatedAt,
	)

	return err
}

// ListByLoad returns the events for a load, newest first.
func (r *EventRepository) ListByLoad(ctx context.Context, loadID string) ([]*domain.TripEvent, error) {
	query := `
		SELECT id, load_id, event_type, description, actor_id, metadata, created_at
		FROM trip_events
		WHERE load_id = $1
		ORDER BY created_at DESC
	`

	rows, err := r.q.QueryContext(ctx, query, loadID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var events []*domain.TripEvent
	for rows.Next() {
		var event domain.TripEvent
		var metadata []byte

		if err := rows.Scan(
			&event.ID,
			&event.LoadID,
			&event.Type,
			&event.Description,
			&event.ActorID,
			&metadata,
			&event.CreatedAt,
		); err != nil {
			return nil, err
		}

		if len(metadata) > 0 {
			if err := json.Unmarshal(metadata, &event.Metadata); err != nil {
				return nil, err
			}
		}

		events = append(events, &event)
	}

	return events, rows.Err()
}

// Ensure EventRepository implements repository.EventRepository.
var _ repository.EventRepository = (*EventRepository)(nil)

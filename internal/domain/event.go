package domain

import "time"

// TripEventType identifies the kind of audit event recorded against a load.
type TripEventType string

const (
	TripEventStatusUpdated     TripEventType = "TRIP_STATUS_UPDATED"
	TripEventCancelled         TripEventType = "TRIP_CANCELLED"
	TripEventDeliveryConfirmed TripEventType = "TRIP_DELIVERY_CONFIRMED"
	TripEventCreated           TripEventType = "TRIP_CREATED"
)

// TripEvent is an append-only audit record. Events are never mutated.
type TripEvent struct {
	ID          string
	LoadID      string
	Type        TripEventType
	Description string
	ActorID     string
	Metadata    map[string]any
	CreatedAt   time.Time
}

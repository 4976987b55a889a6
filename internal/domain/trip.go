package domain

import "time"

// TripStatus represents the current status of a trip.
type TripStatus string

const (
	TripStatusAssigned      TripStatus = "ASSIGNED"
	TripStatusPickupPending TripStatus = "PICKUP_PENDING"
	TripStatusInTransit     TripStatus = "IN_TRANSIT"
	TripStatusDelivered     TripStatus = "DELIVERED"
	TripStatusCompleted     TripStatus = "COMPLETED"
	TripStatusCancelled     TripStatus = "CANCELLED"
)

// TransitionTargets maps each trip status to the statuses reachable from it.
// Terminal statuses map to an empty set.
var TransitionTargets = map[TripStatus][]TripStatus{
	TripStatusAssigned:      {TripStatusPickupPending, TripStatusCancelled},
	TripStatusPickupPending: {TripStatusInTransit, TripStatusCancelled},
	TripStatusInTransit:     {TripStatusDelivered, TripStatusCancelled},
	TripStatusDelivered:     {TripStatusCompleted, TripStatusCancelled},
	TripStatusCompleted:     {},
	TripStatusCancelled:     {},
}

// IsTerminal reports whether the status accepts no further transitions.
func (s TripStatus) IsTerminal() bool {
	return s == TripStatusCompleted || s == TripStatusCancelled
}

// CanTransitionTo reports whether target is reachable from s in one step.
func (s TripStatus) CanTransitionTo(target TripStatus) bool {
	for _, t := range TransitionTargets[s] {
		if t == target {
			return true
		}
	}
	return false
}

// Trip represents the physical delivery leg of an assigned load.
// There is at most one trip per load.
type Trip struct {
	ID           string
	LoadID       string
	CarrierOrgID string
	ShipperOrgID string
	TruckID      string

	Status TripStatus

	PickupLat       float64
	PickupLng       float64
	PickupAddress   string
	DeliveryLat     float64
	DeliveryLng     float64
	DeliveryAddress string

	CurrentLat       float64
	CurrentLng       float64
	LocationUpdated  time.Time // zero until the first accepted position report
	TrackingEnabled  bool
	ShipperConfirmed bool

	EstimatedDistanceKm float64
	ActualDistanceKm    float64

	ReceiverName  string
	ReceiverPhone string
	DeliveryNotes string
	CancelReason  string

	CreatedAt   time.Time
	StartedAt   time.Time // enter PICKUP_PENDING
	PickedUpAt  time.Time // enter IN_TRANSIT
	DeliveredAt time.Time
	CompletedAt time.Time
	CancelledAt time.Time
}

// HasCurrentLocation reports whether at least one position has been recorded.
func (t *Trip) HasCurrentLocation() bool {
	return !t.LocationUpdated.IsZero()
}

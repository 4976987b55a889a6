package domain

import "time"

// LoadStatus represents the current status of a load posting.
type LoadStatus string

const (
	LoadStatusPosted          LoadStatus = "POSTED"
	LoadStatusAssigned        LoadStatus = "ASSIGNED"
	LoadStatusPickupScheduled LoadStatus = "PICKUP_SCHEDULED"
	LoadStatusInTransit       LoadStatus = "IN_TRANSIT"
	LoadStatusDelivered       LoadStatus = "DELIVERED"
	LoadStatusCompleted       LoadStatus = "COMPLETED"
	LoadStatusCancelled       LoadStatus = "CANCELLED"
)

// LoadStatusForTrip maps a trip status to the load status kept in lockstep
// with it. Trip statuses absent from the map do not force a load write.
var LoadStatusForTrip = map[TripStatus]LoadStatus{
	TripStatusPickupPending: LoadStatusPickupScheduled,
	TripStatusInTransit:     LoadStatusInTransit,
	TripStatusDelivered:     LoadStatusDelivered,
	TripStatusCompleted:     LoadStatusCompleted,
	TripStatusCancelled:     LoadStatusCancelled,
}

// Load is the marketplace posting a trip delivers. Only the fields the trip
// lifecycle reads or writes are modeled here; the posting CRUD side owns the
// rest of the record.
type Load struct {
	ID              string
	ShipperOrgID    string
	CarrierOrgID    string
	AssignedTruckID string // empty when unassigned or after cancellation

	Status LoadStatus

	PickupLat       float64
	PickupLng       float64
	PickupAddress   string
	DeliveryLat     float64
	DeliveryLng     float64
	DeliveryAddress string

	PODSubmitted bool
	PODVerified  bool
	PODCount     int

	UpdatedAt time.Time
}

package service

import "freight/internal/domain"

// TripAccess is the capability descriptor every trip operation consumes.
// Resolving it in one place keeps the authorization rules from diverging
// across routes.
type TripAccess struct {
	IsCarrierOwner bool
	IsShipperOwner bool
	IsDispatcher   bool
	IsPrivileged   bool
}

// CanTransition reports whether the actor may request a status transition.
func (a TripAccess) CanTransition() bool {
	return a.IsCarrierOwner || a.IsPrivileged
}

// CanCancel reports whether the actor may cancel the trip. Cancellation
// additionally permits the owning shipper.
func (a TripAccess) CanCancel() bool {
	return a.IsCarrierOwner || a.IsShipperOwner || a.IsPrivileged
}

// CanIngestGPS reports whether the actor may submit position reports.
func (a TripAccess) CanIngestGPS() bool {
	return a.IsCarrierOwner
}

// CanViewTracking reports whether the actor may read live or historical
// tracking data.
func (a TripAccess) CanViewTracking() bool {
	return a.IsCarrierOwner || a.IsShipperOwner || a.IsDispatcher || a.IsPrivileged
}

// ResolveTripAccess computes the actor's capabilities over a trip.
func ResolveTripAccess(actor domain.Actor, trip *domain.Trip) TripAccess {
	return TripAccess{
		IsCarrierOwner: actor.Role == domain.RoleCarrier && actor.OrgID == trip.CarrierOrgID,
		IsShipperOwner: actor.Role == domain.RoleShipper && actor.OrgID == trip.ShipperOrgID,
		IsDispatcher:   actor.Role == domain.RoleDispatcher,
		IsPrivileged:   actor.IsPrivileged(),
	}
}

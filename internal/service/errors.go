package service

import (
	"errors"
	"fmt"
	"time"

	"freight/internal/domain"
)

var (
	// ErrUnauthenticated is returned when no valid session backs the request.
	ErrUnauthenticated = errors.New("unauthenticated")

	// ErrForbidden is returned when the actor may not act on this trip.
	ErrForbidden = errors.New("forbidden")

	// ErrInvalidTripID is returned when trip ID is empty.
	ErrInvalidTripID = errors.New("invalid trip id")

	// ErrInvalidLoadID is returned when load ID is empty.
	ErrInvalidLoadID = errors.New("invalid load id")

	// ErrTripExistsForLoad is returned when a load already has a trip.
	ErrTripExistsForLoad = errors.New("trip already exists for load")

	// ErrLoadNotAssigned is returned when creating a trip for a load with
	// no assigned truck.
	ErrLoadNotAssigned = errors.New("load has no assigned truck")

	// ErrTripStateChanged is returned when a concurrent transition won the
	// race on the same trip.
	ErrTripStateChanged = errors.New("trip state changed concurrently")

	// ErrPODRequired is returned when completing a trip whose load has no
	// proof of delivery submitted.
	ErrPODRequired = errors.New("proof of delivery required")

	// ErrPODUnverified is returned when completing a trip whose proof of
	// delivery is still awaiting verification.
	ErrPODUnverified = errors.New("proof of delivery awaiting verification")

	// ErrCancelReasonRequired is returned when cancelling without a reason.
	ErrCancelReasonRequired = errors.New("cancellation reason required")

	// ErrCancelReasonTooLong is returned when the cancellation reason
	// exceeds the bound.
	ErrCancelReasonTooLong = errors.New("cancellation reason too long")

	// ErrDeliveryNotReady is returned when confirming delivery on a trip
	// not in DELIVERED.
	ErrDeliveryNotReady = errors.New("trip not delivered yet")

	// ErrDeliveryAlreadyConfirmed is returned when the shipper confirms a
	// delivery twice.
	ErrDeliveryAlreadyConfirmed = errors.New("delivery already confirmed")

	// ErrInvalidCoordinates is returned when a position report carries
	// out-of-bounds coordinates.
	ErrInvalidCoordinates = errors.New("invalid coordinates")

	// ErrInvalidSpeed is returned when a reported speed is negative.
	ErrInvalidSpeed = errors.New("invalid speed")

	// ErrInvalidHeading is returned when a reported heading is outside [0, 360].
	ErrInvalidHeading = errors.New("invalid heading")

	// ErrInvalidAccuracy is returned when a reported accuracy is negative.
	ErrInvalidAccuracy = errors.New("invalid accuracy")

	// ErrClockDrift is returned when a client timestamp is too far from
	// server time.
	ErrClockDrift = errors.New("report timestamp too far from server time")

	// ErrTrackingDisabled is returned when a position report arrives for a
	// trip with tracking switched off.
	ErrTrackingDisabled = errors.New("tracking disabled for trip")

	// ErrRateLimited is the base error for GPS reports over the rolling
	// window ceiling. Surfaced as RateLimitError to carry the retry hint.
	ErrRateLimited = errors.New("position report rate limit exceeded")

	// ErrTrackingNotStarted is returned when a shipper asks for live
	// tracking before the trip has left ASSIGNED.
	ErrTrackingNotStarted = errors.New("live tracking available once the trip is in transit")
)

// InvalidTransitionError reports a requested edge absent from the transition
// table, naming the allowed targets so the caller can remediate.
type InvalidTransitionError struct {
	From    domain.TripStatus
	Target  domain.TripStatus
	Allowed []domain.TripStatus
}

func (e *InvalidTransitionError) Error() string {
	if len(e.Allowed) == 0 {
		return fmt.Sprintf("cannot transition from terminal status %s", e.From)
	}
	return fmt.Sprintf("cannot transition from %s to %s, allowed: %v", e.From, e.Target, e.Allowed)
}

// RateLimitError carries the retry-after hint for a rejected position report.
type RateLimitError struct {
	RetryAfter time.Duration
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("%v, retry after %s", ErrRateLimited, e.RetryAfter.Round(time.Second))
}

// Unwrap lets errors.Is(err, ErrRateLimited) match.
func (e *RateLimitError) Unwrap() error {
	return ErrRateLimited
}

// TripPhaseError reports a position report outside the trackable phases,
// echoing the current status back to the device.
type TripPhaseError struct {
	Current domain.TripStatus
}

func (e *TripPhaseError) Error() string {
	return fmt.Sprintf("trip not accepting position reports in status %s", e.Current)
}

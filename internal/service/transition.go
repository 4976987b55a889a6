package service

import (
	"context"
	"errors"
	"log"
	"time"

	"github.com/google/uuid"

	"freight/internal/domain"
	"freight/internal/geo"
	"freight/internal/redis"
	"freight/internal/repository"
)

// cancelReasonMaxLen bounds the cancellation reason string.
const cancelReasonMaxLen = 500

// TransitionService owns the trip state machine: it validates and applies
// status transitions, keeping the trip, the load projection, and the audit
// log in one atomic unit.
type TransitionService struct {
	txm      repository.TxManager
	tripRepo repository.TripRepository
	loadRepo repository.LoadRepository
	cache    redis.CacheInvalidator
	notifier *NotificationService
}

// NewTransitionService creates a new TransitionService.
func NewTransitionService(
	txm repository.TxManager,
	tripRepo repository.TripRepository,
	loadRepo repository.LoadRepository,
	cache redis.CacheInvalidator,
	notifier *NotificationService,
) *TransitionService {
	return &TransitionService{
		txm:      txm,
		tripRepo: tripRepo,
		loadRepo: loadRepo,
		cache:    cache,
		notifier: notifier,
	}
}

// CreateTripRequest contains the parameters for creating a trip when a load
// is assigned to a truck.
type CreateTripRequest struct {
	LoadID string
	Actor  domain.Actor
}

// CreateForAssignment creates the trip for an assigned load in ASSIGNED
// status. At most one trip ever exists per load.
func (s *TransitionService) CreateForAssignment(ctx context.Context, req CreateTripRequest) (*domain.Trip, error) {
	if req.LoadID == "" {
		return nil, ErrInvalidLoadID
	}

	load, err := s.loadRepo.GetByID(ctx, req.LoadID)
	if err != nil {
		return nil, err
	}

	if load.AssignedTruckID == "" || load.CarrierOrgID == "" {
		return nil, ErrLoadNotAssigned
	}

	isCarrierOwner := req.Actor.Role == domain.RoleCarrier && req.Actor.OrgID == load.CarrierOrgID
	if !isCarrierOwner && !req.Actor.IsPrivileged() {
		return nil, ErrForbidden
	}

	now := time.Now()
	trip := &domain.Trip{
		ID:              uuid.New().String(),
		LoadID:          load.ID,
		CarrierOrgID:    load.CarrierOrgID,
		ShipperOrgID:    load.ShipperOrgID,
		TruckID:         load.AssignedTruckID,
		Status:          domain.TripStatusAssigned,
		PickupLat:       load.PickupLat,
		PickupLng:       load.PickupLng,
		PickupAddress:   load.PickupAddress,
		DeliveryLat:     load.DeliveryLat,
		DeliveryLng:     load.DeliveryLng,
		DeliveryAddress: load.DeliveryAddress,
		TrackingEnabled: true,
		EstimatedDistanceKm: geo.HaversineKm(
			load.PickupLat, load.PickupLng,
			load.DeliveryLat, load.DeliveryLng,
		),
		CreatedAt: now,
	}

	err = s.txm.WithinTx(ctx, func(r repository.TxRepos) error {
		if err := r.Trips.Create(ctx, trip); err != nil {
			if errors.Is(err, repository.ErrDuplicate) {
				return ErrTripExistsForLoad
			}
			return err
		}

		return r.Events.Create(ctx, &domain.TripEvent{
			ID:          uuid.New().String(),
			LoadID:      load.ID,
			Type:        domain.TripEventCreated,
			Description: "trip created for load assignment",
			ActorID:     req.Actor.UserID,
			Metadata: map[string]any{
				"trip_id":  trip.ID,
				"truck_id": trip.TruckID,
			},
			CreatedAt: now,
		})
	})
	if err != nil {
		return nil, err
	}

	s.invalidate(ctx, trip)

	return trip, nil
}

// TransitionRequest contains the parameters for a status transition.
type TransitionRequest struct {
	TripID string
	Target domain.TripStatus
	Actor  domain.Actor

	// Status-specific payload.
	Reason        string // CANCELLED
	ReceiverName  string // DELIVERED
	ReceiverPhone string // DELIVERED
	DeliveryNotes string // DELIVERED
}

// Transition validates and applies one state transition. The trip update,
// the load status sync, and the audit event commit together or not at all.
func (s *TransitionService) Transition(ctx context.Context, req TransitionRequest) (*domain.Trip, error) {
	if req.TripID == "" {
		return nil, ErrInvalidTripID
	}

	trip, err := s.tripRepo.GetByID(ctx, req.TripID)
	if err != nil {
		return nil, err
	}

	access := ResolveTripAccess(req.Actor, trip)
	if req.Target == domain.TripStatusCancelled {
		if !access.CanCancel() {
			return nil, ErrForbidden
		}
	} else if !access.CanTransition() {
		return nil, ErrForbidden
	}

	if !trip.Status.CanTransitionTo(req.Target) {
		return nil, &InvalidTransitionError{
			From:    trip.Status,
			Target:  req.Target,
			Allowed: domain.TransitionTargets[trip.Status],
		}
	}

	if req.Target == domain.TripStatusCancelled {
		if req.Reason == "" {
			return nil, ErrCancelReasonRequired
		}
		if len(req.Reason) > cancelReasonMaxLen {
			return nil, ErrCancelReasonTooLong
		}
	}

	prev := trip.Status
	now := time.Now()

	err = s.txm.WithinTx(ctx, func(r repository.TxRepos) error {
		// Guards read the load inside the transaction so the POD flags
		// they see are the ones the commit acts on.
		load, err := r.Loads.GetByID(ctx, trip.LoadID)
		if err != nil {
			return err
		}

		updated := *trip
		applyTransition(&updated, req, now)

		if req.Target == domain.TripStatusCompleted {
			if !load.PODSubmitted {
				return ErrPODRequired
			}
			if !load.PODVerified {
				return ErrPODUnverified
			}
		}

		if err := r.Trips.UpdateFromStatus(ctx, &updated, prev); err != nil {
			if errors.Is(err, repository.ErrStaleState) {
				return ErrTripStateChanged
			}
			return err
		}

		if loadStatus, ok := domain.LoadStatusForTrip[req.Target]; ok {
			if err := r.Loads.UpdateStatus(ctx, trip.LoadID, loadStatus); err != nil {
				return err
			}
		}

		if req.Target == domain.TripStatusCancelled {
			if err := r.Loads.ClearAssignedTruck(ctx, trip.LoadID); err != nil {
				return err
			}
		}

		if err := r.Events.Create(ctx, transitionEvent(&updated, req, prev, now)); err != nil {
			return err
		}

		*trip = updated
		return nil
	})
	if err != nil {
		return nil, err
	}

	// Best-effort side effects after commit.
	s.invalidate(ctx, trip)
	s.notifyCounterparty(ctx, trip, req.Actor)

	return trip, nil
}

// applyTransition writes the target status and its per-transition fields.
func applyTransition(trip *domain.Trip, req TransitionRequest, now time.Time) {
	trip.Status = req.Target

	switch req.Target {
	case domain.TripStatusPickupPending:
		trip.StartedAt = now
	case domain.TripStatusInTransit:
		trip.PickedUpAt = now
	case domain.TripStatusDelivered:
		trip.DeliveredAt = now
		trip.ReceiverName = req.ReceiverName
		trip.ReceiverPhone = req.ReceiverPhone
		trip.DeliveryNotes = req.DeliveryNotes
	case domain.TripStatusCompleted:
		trip.CompletedAt = now
		trip.TrackingEnabled = false
	case domain.TripStatusCancelled:
		trip.CancelledAt = now
		trip.CancelReason = req.Reason
		trip.TrackingEnabled = false
	}
}

func transitionEvent(trip *domain.Trip, req TransitionRequest, prev domain.TripStatus, now time.Time) *domain.TripEvent {
	eventType := domain.TripEventStatusUpdated
	description := "trip status updated"
	metadata := map[string]any{
		"trip_id": trip.ID,
		"from":    string(prev),
		"to":      string(req.Target),
	}

	if req.Target == domain.TripStatusCancelled {
		eventType = domain.TripEventCancelled
		description = "trip cancelled"
		metadata["reason"] = req.Reason
	}

	return &domain.TripEvent{
		ID:          uuid.New().String(),
		LoadID:      trip.LoadID,
		Type:        eventType,
		Description: description,
		ActorID:     req.Actor.UserID,
		Metadata:    metadata,
		CreatedAt:   now,
	}
}

// ConfirmDelivery is the shipper's delivery acknowledgement: it completes
// the trip and load together, independent of the generic transition call.
func (s *TransitionService) ConfirmDelivery(ctx context.Context, tripID string, actor domain.Actor) (*domain.Trip, error) {
	if tripID == "" {
		return nil, ErrInvalidTripID
	}

	trip, err := s.tripRepo.GetByID(ctx, tripID)
	if err != nil {
		return nil, err
	}

	access := ResolveTripAccess(actor, trip)
	if !access.IsShipperOwner {
		return nil, ErrForbidden
	}

	if trip.ShipperConfirmed {
		return nil, ErrDeliveryAlreadyConfirmed
	}

	if trip.Status != domain.TripStatusDelivered {
		return nil, ErrDeliveryNotReady
	}

	now := time.Now()

	err = s.txm.WithinTx(ctx, func(r repository.TxRepos) error {
		load, err := r.Loads.GetByID(ctx, trip.LoadID)
		if err != nil {
			return err
		}

		if load.PODCount == 0 {
			return ErrPODRequired
		}

		updated := *trip
		updated.Status = domain.TripStatusCompleted
		updated.ShipperConfirmed = true
		updated.CompletedAt = now
		updated.TrackingEnabled = false

		if err := r.Trips.UpdateFromStatus(ctx, &updated, domain.TripStatusDelivered); err != nil {
			if errors.Is(err, repository.ErrStaleState) {
				return ErrTripStateChanged
			}
			return err
		}

		if err := r.Loads.UpdateStatus(ctx, trip.LoadID, domain.LoadStatusCompleted); err != nil {
			return err
		}

		if err := r.Events.Create(ctx, &domain.TripEvent{
			ID:          uuid.New().String(),
			LoadID:      trip.LoadID,
			Type:        domain.TripEventDeliveryConfirmed,
			Description: "shipper confirmed delivery",
			ActorID:     actor.UserID,
			Metadata:    map[string]any{"trip_id": trip.ID},
			CreatedAt:   now,
		}); err != nil {
			return err
		}

		*trip = updated
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.invalidate(ctx, trip)
	if err := s.notifier.NotifyDeliveryConfirmed(ctx, trip); err != nil {
		log.Printf("delivery confirmation notification failed for trip %s: %v", trip.ID, err)
	}

	return trip, nil
}

// GetTrip retrieves a trip, access-checked.
func (s *TransitionService) GetTrip(ctx context.Context, tripID string, actor domain.Actor) (*domain.Trip, error) {
	if tripID == "" {
		return nil, ErrInvalidTripID
	}

	trip, err := s.tripRepo.GetByID(ctx, tripID)
	if err != nil {
		return nil, err
	}

	if !ResolveTripAccess(actor, trip).CanViewTracking() {
		return nil, ErrForbidden
	}

	return trip, nil
}

func (s *TransitionService) invalidate(ctx context.Context, trip *domain.Trip) {
	if s.cache == nil {
		return
	}
	if err := s.cache.InvalidateTrip(ctx, trip.ID); err != nil {
		log.Printf("cache invalidation failed for trip %s: %v", trip.ID, err)
	}
	if err := s.cache.InvalidateLoad(ctx, trip.LoadID); err != nil {
		log.Printf("cache invalidation failed for load %s: %v", trip.LoadID, err)
	}
}

func (s *TransitionService) notifyCounterparty(ctx context.Context, trip *domain.Trip, actor domain.Actor) {
	if s.notifier == nil {
		return
	}

	// The org that did not request the change gets told about it.
	recipient := trip.ShipperOrgID
	if actor.OrgID == trip.ShipperOrgID {
		recipient = trip.CarrierOrgID
	}

	if err := s.notifier.NotifyTripStatus(ctx, trip, recipient); err != nil {
		log.Printf("status notification failed for trip %s: %v", trip.ID, err)
	}
}

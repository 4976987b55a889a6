package tests

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"freight/internal/domain"
	"freight/internal/service"
)

// ──────────────────────────────────────────────
// 1. TRIP STATE MACHINE EDGE CASES
// ──────────────────────────────────────────────

const (
	testCarrierOrg = "carrier-org-1"
	testShipperOrg = "shipper-org-1"
	testTruckID    = "truck-1"
)

var (
	carrierActor = domain.Actor{UserID: "carrier-user-1", Role: domain.RoleCarrier, OrgID: testCarrierOrg}
	shipperActor = domain.Actor{UserID: "shipper-user-1", Role: domain.RoleShipper, OrgID: testShipperOrg}
	adminActor   = domain.Actor{UserID: "admin-user-1", Role: domain.RoleAdmin, OrgID: ""}
)

type tripHarness struct {
	trips  *MockTripRepository
	loads  *MockLoadRepository
	events *MockEventRepository
	cache  *MockCacheInvalidator
	svc    *service.TransitionService
}

func newTripHarness() *tripHarness {
	trips := NewMockTripRepository()
	loads := NewMockLoadRepository()
	trucks := NewMockTruckRepository()
	positions := NewMockPositionRepository()
	events := NewMockEventRepository()
	cache := NewMockCacheInvalidator()
	txm := NewMockTxManager(trips, loads, trucks, positions, events)

	return &tripHarness{
		trips:  trips,
		loads:  loads,
		events: events,
		cache:  cache,
		svc:    service.NewTransitionService(txm, trips, loads, cache, service.NewNotificationService()),
	}
}

// seedTrip stores a trip in the given status together with its load.
func (h *tripHarness) seedTrip(id string, status domain.TripStatus) *domain.Trip {
	trip := &domain.Trip{
		ID:              id,
		LoadID:          "load-" + id,
		CarrierOrgID:    testCarrierOrg,
		ShipperOrgID:    testShipperOrg,
		TruckID:         testTruckID,
		Status:          status,
		PickupLat:       9.02,
		PickupLng:       38.75,
		DeliveryLat:     9.6,
		DeliveryLng:     41.85,
		TrackingEnabled: !status.IsTerminal(),
	}
	h.trips.AddTrip(trip)

	h.loads.AddLoad(&domain.Load{
		ID:              trip.LoadID,
		ShipperOrgID:    testShipperOrg,
		CarrierOrgID:    testCarrierOrg,
		AssignedTruckID: testTruckID,
		Status:          domain.LoadStatusAssigned,
		PODSubmitted:    true,
		PODVerified:     true,
		PODCount:        1,
	})

	return trip
}

func TestTransition_OnlyDeclaredEdgesAllowed(t *testing.T) {
	t.Parallel()

	statuses := []domain.TripStatus{
		domain.TripStatusAssigned,
		domain.TripStatusPickupPending,
		domain.TripStatusInTransit,
		domain.TripStatusDelivered,
		domain.TripStatusCompleted,
		domain.TripStatusCancelled,
	}

	for _, from := range statuses {
		for _, target := range statuses {
			from, target := from, target
			t.Run(string(from)+"_to_"+string(target), func(t *testing.T) {
				t.Parallel()

				h := newTripHarness()
				h.seedTrip("trip-1", from)

				_, err := h.svc.Transition(context.Background(), service.TransitionRequest{
					TripID: "trip-1",
					Target: target,
					Actor:  carrierActor,
					Reason: "edge case check",
				})

				if from.CanTransitionTo(target) {
					if err != nil {
						t.Fatalf("expected transition %s -> %s to succeed, got %v", from, target, err)
					}
					if got := h.trips.GetTrip("trip-1").Status; got != target {
						t.Errorf("expected stored status %s, got %s", target, got)
					}
					return
				}

				var transitionErr *service.InvalidTransitionError
				if !errors.As(err, &transitionErr) {
					t.Fatalf("expected InvalidTransitionError for %s -> %s, got %v", from, target, err)
				}
				if got := h.trips.GetTrip("trip-1").Status; got != from {
					t.Errorf("rejected transition must not change status, got %s", got)
				}
			})
		}
	}
}

func TestTransition_SyncsLoadStatusAtomically(t *testing.T) {
	t.Parallel()

	h := newTripHarness()
	trip := h.seedTrip("trip-1", domain.TripStatusAssigned)

	updated, err := h.svc.Transition(context.Background(), service.TransitionRequest{
		TripID: "trip-1",
		Target: domain.TripStatusPickupPending,
		Actor:  carrierActor,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if updated.StartedAt.IsZero() {
		t.Error("expected StartedAt to be stamped on pickup start")
	}

	load := h.loads.GetLoad(trip.LoadID)
	if load.Status != domain.LoadStatusPickupScheduled {
		t.Errorf("expected load status %s, got %s", domain.LoadStatusPickupScheduled, load.Status)
	}

	events, _ := h.events.ListByLoad(context.Background(), trip.LoadID)
	if len(events) != 1 {
		t.Fatalf("expected 1 audit event, got %d", len(events))
	}
	if events[0].Type != domain.TripEventStatusUpdated {
		t.Errorf("expected event type %s, got %s", domain.TripEventStatusUpdated, events[0].Type)
	}
	if events[0].Metadata["from"] != string(domain.TripStatusAssigned) {
		t.Errorf("expected event to record previous status, got %v", events[0].Metadata["from"])
	}

	if h.cache.TripInvalidations == 0 {
		t.Error("expected the cached trip to be invalidated after commit")
	}
}

func TestTransition_CompleteRequiresVerifiedPOD(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		name      string
		submitted bool
		verified  bool
		wantErr   error
	}{
		{name: "no pod submitted", submitted: false, verified: false, wantErr: service.ErrPODRequired},
		{name: "pod awaiting verification", submitted: true, verified: false, wantErr: service.ErrPODUnverified},
		{name: "pod verified", submitted: true, verified: true, wantErr: nil},
	}

	for _, tc := range testCases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			h := newTripHarness()
			trip := h.seedTrip("trip-1", domain.TripStatusDelivered)

			load := h.loads.GetLoad(trip.LoadID)
			load.PODSubmitted = tc.submitted
			load.PODVerified = tc.verified

			_, err := h.svc.Transition(context.Background(), service.TransitionRequest{
				TripID: "trip-1",
				Target: domain.TripStatusCompleted,
				Actor:  carrierActor,
			})

			if tc.wantErr != nil {
				if !errors.Is(err, tc.wantErr) {
					t.Fatalf("expected %v, got %v", tc.wantErr, err)
				}
				if got := h.trips.GetTrip("trip-1").Status; got != domain.TripStatusDelivered {
					t.Errorf("blocked completion must not change status, got %s", got)
				}
				return
			}

			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			stored := h.trips.GetTrip("trip-1")
			if stored.Status != domain.TripStatusCompleted {
				t.Errorf("expected COMPLETED, got %s", stored.Status)
			}
			if stored.TrackingEnabled {
				t.Error("expected tracking disabled after completion")
			}
		})
	}
}

func TestTransition_CancellationReleasesTruck(t *testing.T) {
	t.Parallel()

	h := newTripHarness()
	trip := h.seedTrip("trip-1", domain.TripStatusInTransit)

	updated, err := h.svc.Transition(context.Background(), service.TransitionRequest{
		TripID: "trip-1",
		Target: domain.TripStatusCancelled,
		Actor:  shipperActor,
		Reason: "receiver refused the shipment",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if updated.CancelReason != "receiver refused the shipment" {
		t.Errorf("expected cancel reason recorded, got %q", updated.CancelReason)
	}
	if updated.TrackingEnabled {
		t.Error("expected tracking disabled on cancellation")
	}
	if updated.CancelledAt.IsZero() {
		t.Error("expected CancelledAt to be stamped")
	}

	load := h.loads.GetLoad(trip.LoadID)
	if load.Status != domain.LoadStatusCancelled {
		t.Errorf("expected load status CANCELLED, got %s", load.Status)
	}
	if load.AssignedTruckID != "" {
		t.Errorf("expected assigned truck cleared, got %q", load.AssignedTruckID)
	}

	cancelEvents := h.events.EventsOfType(domain.TripEventCancelled)
	if len(cancelEvents) != 1 {
		t.Fatalf("expected 1 cancellation event, got %d", len(cancelEvents))
	}
	if cancelEvents[0].Metadata["reason"] != "receiver refused the shipment" {
		t.Errorf("expected reason in event metadata, got %v", cancelEvents[0].Metadata["reason"])
	}
}

func TestTransition_CancellationReasonValidated(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		name    string
		reason  string
		wantErr error
	}{
		{name: "empty reason", reason: "", wantErr: service.ErrCancelReasonRequired},
		{name: "reason too long", reason: strings.Repeat("x", 501), wantErr: service.ErrCancelReasonTooLong},
		{name: "reason at limit", reason: strings.Repeat("x", 500), wantErr: nil},
	}

	for _, tc := range testCases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			h := newTripHarness()
			h.seedTrip("trip-1", domain.TripStatusAssigned)

			_, err := h.svc.Transition(context.Background(), service.TransitionRequest{
				TripID: "trip-1",
				Target: domain.TripStatusCancelled,
				Actor:  carrierActor,
				Reason: tc.reason,
			})

			if tc.wantErr == nil {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			if !errors.Is(err, tc.wantErr) {
				t.Fatalf("expected %v, got %v", tc.wantErr, err)
			}
		})
	}
}

func TestTransition_ActorAuthorization(t *testing.T) {
	t.Parallel()

	otherCarrier := domain.Actor{UserID: "outsider", Role: domain.RoleCarrier, OrgID: "carrier-org-2"}

	testCases := []struct {
		name    string
		actor   domain.Actor
		target  domain.TripStatus
		wantErr error
	}{
		{name: "owning carrier advances", actor: carrierActor, target: domain.TripStatusPickupPending, wantErr: nil},
		{name: "admin advances", actor: adminActor, target: domain.TripStatusPickupPending, wantErr: nil},
		{name: "other carrier rejected", actor: otherCarrier, target: domain.TripStatusPickupPending, wantErr: service.ErrForbidden},
		{name: "shipper cannot advance", actor: shipperActor, target: domain.TripStatusPickupPending, wantErr: service.ErrForbidden},
		{name: "shipper may cancel", actor: shipperActor, target: domain.TripStatusCancelled, wantErr: nil},
		{name: "other carrier cannot cancel", actor: otherCarrier, target: domain.TripStatusCancelled, wantErr: service.ErrForbidden},
	}

	for _, tc := range testCases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			h := newTripHarness()
			h.seedTrip("trip-1", domain.TripStatusAssigned)

			_, err := h.svc.Transition(context.Background(), service.TransitionRequest{
				TripID: "trip-1",
				Target: tc.target,
				Actor:  tc.actor,
				Reason: "authorization check",
			})

			if tc.wantErr == nil {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			if !errors.Is(err, tc.wantErr) {
				t.Fatalf("expected %v, got %v", tc.wantErr, err)
			}
		})
	}
}

func TestTransition_ConcurrentDelivery_ExactlyOneWinner(t *testing.T) {
	t.Parallel()

	h := newTripHarness()
	trip := h.seedTrip("trip-1", domain.TripStatusInTransit)

	const attempts = 2
	results := make([]error, attempts)

	var wg sync.WaitGroup
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, results[i] = h.svc.Transition(context.Background(), service.TransitionRequest{
				TripID:       "trip-1",
				Target:       domain.TripStatusDelivered,
				Actor:        carrierActor,
				ReceiverName: "Gate Clerk",
			})
		}(i)
	}
	wg.Wait()

	var wins, losses int
	for _, err := range results {
		switch {
		case err == nil:
			wins++
		case errors.Is(err, service.ErrTripStateChanged):
			losses++
		default:
			var transitionErr *service.InvalidTransitionError
			if errors.As(err, &transitionErr) {
				// The loser read the already-updated trip.
				losses++
				continue
			}
			t.Fatalf("unexpected error: %v", err)
		}
	}

	if wins != 1 {
		t.Errorf("expected exactly 1 winning transition, got %d", wins)
	}
	if losses != attempts-1 {
		t.Errorf("expected %d losing transitions, got %d", attempts-1, losses)
	}

	if got := h.trips.GetTrip("trip-1").Status; got != domain.TripStatusDelivered {
		t.Errorf("expected DELIVERED, got %s", got)
	}

	events, _ := h.events.ListByLoad(context.Background(), trip.LoadID)
	if len(events) != 1 {
		t.Errorf("expected exactly 1 audit event, got %d", len(events))
	}
}

// ──────────────────────────────────────────────
// 2. TRIP CREATION EDGE CASES
// ──────────────────────────────────────────────

func TestCreateForAssignment_CreatesAssignedTrip(t *testing.T) {
	t.Parallel()

	h := newTripHarness()
	h.loads.AddLoad(&domain.Load{
		ID:              "load-1",
		ShipperOrgID:    testShipperOrg,
		CarrierOrgID:    testCarrierOrg,
		AssignedTruckID: testTruckID,
		Status:          domain.LoadStatusAssigned,
		PickupLat:       9.02,
		PickupLng:       38.75,
		DeliveryLat:     9.6,
		DeliveryLng:     41.85,
	})

	trip, err := h.svc.CreateForAssignment(context.Background(), service.CreateTripRequest{
		LoadID: "load-1",
		Actor:  carrierActor,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if trip.Status != domain.TripStatusAssigned {
		t.Errorf("expected ASSIGNED, got %s", trip.Status)
	}
	if !trip.TrackingEnabled {
		t.Error("expected tracking enabled on a new trip")
	}
	if trip.EstimatedDistanceKm <= 0 {
		t.Errorf("expected positive estimated distance, got %f", trip.EstimatedDistanceKm)
	}

	created := h.events.EventsOfType(domain.TripEventCreated)
	if len(created) != 1 {
		t.Errorf("expected 1 creation event, got %d", len(created))
	}
}

func TestCreateForAssignment_SecondTripRejected(t *testing.T) {
	t.Parallel()

	h := newTripHarness()
	h.seedTrip("trip-1", domain.TripStatusAssigned)

	_, err := h.svc.CreateForAssignment(context.Background(), service.CreateTripRequest{
		LoadID: "load-trip-1",
		Actor:  carrierActor,
	})
	if !errors.Is(err, service.ErrTripExistsForLoad) {
		t.Fatalf("expected ErrTripExistsForLoad, got %v", err)
	}
}

func TestCreateForAssignment_UnassignedLoadRejected(t *testing.T) {
	t.Parallel()

	h := newTripHarness()
	h.loads.AddLoad(&domain.Load{
		ID:           "load-1",
		ShipperOrgID: testShipperOrg,
		Status:       domain.LoadStatusPosted,
	})

	_, err := h.svc.CreateForAssignment(context.Background(), service.CreateTripRequest{
		LoadID: "load-1",
		Actor:  adminActor,
	})
	if !errors.Is(err, service.ErrLoadNotAssigned) {
		t.Fatalf("expected ErrLoadNotAssigned, got %v", err)
	}
}

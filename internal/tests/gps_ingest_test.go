package tests

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"freight/internal/domain"
	"freight/internal/geo"
	"freight/internal/service"
)

// ──────────────────────────────────────────────
// 3. GPS INGESTION EDGE CASES
// ──────────────────────────────────────────────

type ingestHarness struct {
	trips   *MockTripRepository
	loads   *MockLoadRepository
	trucks  *MockTruckRepository
	samples *MockPositionRepository
	limiter *MockRateLimiter
	cache   *MockCacheInvalidator
	svc     *service.IngestService
}

func newIngestHarness(cfg service.IngestConfig) *ingestHarness {
	trips := NewMockTripRepository()
	loads := NewMockLoadRepository()
	trucks := NewMockTruckRepository()
	positions := NewMockPositionRepository()
	events := NewMockEventRepository()
	limiter := NewMockRateLimiter()
	cache := NewMockCacheInvalidator()
	txm := NewMockTxManager(trips, loads, trucks, positions, events)

	return &ingestHarness{
		trips:   trips,
		loads:   loads,
		trucks:  trucks,
		samples: positions,
		limiter: limiter,
		cache:   cache,
		svc:     service.NewIngestService(txm, trips, limiter, cache, cfg),
	}
}

// seedTransitTrip stores an IN_TRANSIT trip and its truck.
func (h *ingestHarness) seedTransitTrip(id string) *domain.Trip {
	trip := &domain.Trip{
		ID:              id,
		LoadID:          "load-" + id,
		CarrierOrgID:    testCarrierOrg,
		ShipperOrgID:    testShipperOrg,
		TruckID:         testTruckID,
		Status:          domain.TripStatusInTransit,
		DeliveryLat:     9.6,
		DeliveryLng:     41.85,
		TrackingEnabled: true,
	}
	h.trips.AddTrip(trip)
	h.trucks.AddTruck(&domain.Truck{
		ID:           testTruckID,
		CarrierOrgID: testCarrierOrg,
		GPSStatus:    domain.GPSStatusUnregistered,
	})
	return trip
}

func TestIngest_CoordinateBounds(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		name    string
		lat     float64
		lng     float64
		wantErr bool
	}{
		{name: "latitude too high", lat: 90.1, lng: 38.75, wantErr: true},
		{name: "latitude too low", lat: -90.1, lng: 38.75, wantErr: true},
		{name: "longitude too high", lat: 9.02, lng: 180.1, wantErr: true},
		{name: "longitude too low", lat: 9.02, lng: -180.1, wantErr: true},
		{name: "valid coordinates", lat: 9.02, lng: 38.75, wantErr: false},
		{name: "edge case: max latitude", lat: 90.0, lng: 38.75, wantErr: false},
		{name: "edge case: min latitude", lat: -90.0, lng: 38.75, wantErr: false},
		{name: "edge case: max longitude", lat: 9.02, lng: 180.0, wantErr: false},
		{name: "edge case: min longitude", lat: 9.02, lng: -180.0, wantErr: false},
	}

	for _, tc := range testCases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			h := newIngestHarness(service.DefaultIngestConfig())
			h.seedTransitTrip("trip-1")

			_, err := h.svc.Ingest(context.Background(), "trip-1", carrierActor, service.PositionReport{
				Lat: tc.lat,
				Lng: tc.lng,
			})

			if tc.wantErr {
				if !errors.Is(err, service.ErrInvalidCoordinates) {
					t.Fatalf("expected ErrInvalidCoordinates, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
		})
	}
}

func TestIngest_OptionalReadingsValidated(t *testing.T) {
	t.Parallel()

	negSpeed := -1.0
	badHeading := 360.5
	negAccuracy := -0.1

	testCases := []struct {
		name    string
		report  service.PositionReport
		wantErr error
	}{
		{name: "negative speed", report: service.PositionReport{Lat: 9.02, Lng: 38.75, SpeedKmh: &negSpeed}, wantErr: service.ErrInvalidSpeed},
		{name: "heading over 360", report: service.PositionReport{Lat: 9.02, Lng: 38.75, Heading: &badHeading}, wantErr: service.ErrInvalidHeading},
		{name: "negative accuracy", report: service.PositionReport{Lat: 9.02, Lng: 38.75, AccuracyM: &negAccuracy}, wantErr: service.ErrInvalidAccuracy},
	}

	for _, tc := range testCases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			h := newIngestHarness(service.DefaultIngestConfig())
			h.seedTransitTrip("trip-1")

			_, err := h.svc.Ingest(context.Background(), "trip-1", carrierActor, tc.report)
			if !errors.Is(err, tc.wantErr) {
				t.Fatalf("expected %v, got %v", tc.wantErr, err)
			}
		})
	}
}

func TestIngest_RollingWindowRateLimit(t *testing.T) {
	t.Parallel()

	cfg := service.DefaultIngestConfig()
	h := newIngestHarness(cfg)
	h.seedTransitTrip("trip-1")

	ctx := context.Background()

	for i := 0; i < cfg.RateLimit; i++ {
		ack, err := h.svc.Ingest(ctx, "trip-1", carrierActor, service.PositionReport{
			Lat: 9.02,
			Lng: 38.75,
		})
		if err != nil {
			t.Fatalf("report %d: unexpected error: %v", i+1, err)
		}
		if want := cfg.RateLimit - i - 1; ack.Remaining != want {
			t.Errorf("report %d: expected %d remaining, got %d", i+1, want, ack.Remaining)
		}
	}

	// The 13th report in the window is rejected with a retry hint.
	_, err := h.svc.Ingest(ctx, "trip-1", carrierActor, service.PositionReport{
		Lat: 9.02,
		Lng: 38.75,
	})
	if !errors.Is(err, service.ErrRateLimited) {
		t.Fatalf("expected ErrRateLimited, got %v", err)
	}

	var rateErr *service.RateLimitError
	if !errors.As(err, &rateErr) {
		t.Fatalf("expected RateLimitError, got %T", err)
	}
	if rateErr.RetryAfter <= 0 || rateErr.RetryAfter > cfg.RateWindow {
		t.Errorf("expected retry-after within (0, %v], got %v", cfg.RateWindow, rateErr.RetryAfter)
	}

	if got := h.samples.CountSamples(); got != cfg.RateLimit {
		t.Errorf("expected %d stored samples, got %d", cfg.RateLimit, got)
	}
}

func TestIngest_RateLimitCountsAcceptedOnly(t *testing.T) {
	t.Parallel()

	cfg := service.DefaultIngestConfig()
	h := newIngestHarness(cfg)
	h.seedTransitTrip("trip-1")

	ctx := context.Background()

	// Rejected reports must not consume quota.
	for i := 0; i < 5; i++ {
		_, err := h.svc.Ingest(ctx, "trip-1", carrierActor, service.PositionReport{
			Lat: 91.0,
			Lng: 38.75,
		})
		if !errors.Is(err, service.ErrInvalidCoordinates) {
			t.Fatalf("expected ErrInvalidCoordinates, got %v", err)
		}
	}

	ack, err := h.svc.Ingest(ctx, "trip-1", carrierActor, service.PositionReport{
		Lat: 9.02,
		Lng: 38.75,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ack.Remaining != cfg.RateLimit-1 {
		t.Errorf("expected %d remaining after first accepted report, got %d", cfg.RateLimit-1, ack.Remaining)
	}
}

func TestIngest_ConcurrentBurstHonorsLimit(t *testing.T) {
	t.Parallel()

	cfg := service.DefaultIngestConfig()
	h := newIngestHarness(cfg)
	h.seedTransitTrip("trip-1")

	ctx := context.Background()

	const workers = 40
	var wg sync.WaitGroup
	var accepted, limited int32

	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := h.svc.Ingest(ctx, "trip-1", carrierActor, service.PositionReport{
				Lat: 9.02,
				Lng: 38.75,
			})
			switch {
			case err == nil:
				atomic.AddInt32(&accepted, 1)
			case errors.Is(err, service.ErrRateLimited):
				atomic.AddInt32(&limited, 1)
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()

	if int(accepted) != cfg.RateLimit {
		t.Errorf("expected %d accepted reports, got %d", cfg.RateLimit, accepted)
	}
	if int(limited) != workers-cfg.RateLimit {
		t.Errorf("expected %d rate-limited reports, got %d", workers-cfg.RateLimit, limited)
	}
	if got := h.samples.CountSamples(); got != cfg.RateLimit {
		t.Errorf("expected %d stored samples, got %d", cfg.RateLimit, got)
	}
}

func TestIngest_RejectedReportsReturnTheirSlot(t *testing.T) {
	t.Parallel()

	cfg := service.DefaultIngestConfig()
	h := newIngestHarness(cfg)
	h.seedTransitTrip("trip-1")

	ctx := context.Background()

	// Reports that clear the rate gate but fail a later check must hand
	// their slot back.
	stale := time.Now().Add(-10 * time.Minute)
	for i := 0; i < cfg.RateLimit+3; i++ {
		_, err := h.svc.Ingest(ctx, "trip-1", carrierActor, service.PositionReport{
			Lat:       9.02,
			Lng:       38.75,
			Timestamp: &stale,
		})
		if !errors.Is(err, service.ErrClockDrift) {
			t.Fatalf("report %d: expected ErrClockDrift, got %v", i+1, err)
		}
	}

	ack, err := h.svc.Ingest(ctx, "trip-1", carrierActor, service.PositionReport{
		Lat: 9.02,
		Lng: 38.75,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ack.Remaining != cfg.RateLimit-1 {
		t.Errorf("expected %d remaining after first accepted report, got %d", cfg.RateLimit-1, ack.Remaining)
	}
	if got := h.limiter.CountReserved("trip-1", cfg.RateWindow); got != 1 {
		t.Errorf("expected 1 live reservation, got %d", got)
	}
}

func TestIngest_ClockDrift(t *testing.T) {
	t.Parallel()

	past := time.Now().Add(-10 * time.Minute)
	ahead := time.Now().Add(10 * time.Minute)
	inWindow := time.Now().Add(-2 * time.Minute)

	testCases := []struct {
		name      string
		timestamp *time.Time
		wantErr   error
	}{
		{name: "timestamp too old", timestamp: &past, wantErr: service.ErrClockDrift},
		{name: "timestamp in the future", timestamp: &ahead, wantErr: service.ErrClockDrift},
		{name: "timestamp within drift window", timestamp: &inWindow, wantErr: nil},
		{name: "no timestamp, server stamps", timestamp: nil, wantErr: nil},
	}

	for _, tc := range testCases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			h := newIngestHarness(service.DefaultIngestConfig())
			h.seedTransitTrip("trip-1")

			ack, err := h.svc.Ingest(context.Background(), "trip-1", carrierActor, service.PositionReport{
				Lat:       9.02,
				Lng:       38.75,
				Timestamp: tc.timestamp,
			})

			if tc.wantErr != nil {
				if !errors.Is(err, tc.wantErr) {
					t.Fatalf("expected %v, got %v", tc.wantErr, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if tc.timestamp != nil && !ack.RecordedAt.Equal(*tc.timestamp) {
				t.Errorf("expected sample recorded at client time %v, got %v", *tc.timestamp, ack.RecordedAt)
			}
		})
	}
}

func TestIngest_ActorAndPhaseGuards(t *testing.T) {
	t.Parallel()

	t.Run("shipper cannot report positions", func(t *testing.T) {
		t.Parallel()

		h := newIngestHarness(service.DefaultIngestConfig())
		h.seedTransitTrip("trip-1")

		_, err := h.svc.Ingest(context.Background(), "trip-1", shipperActor, service.PositionReport{
			Lat: 9.02, Lng: 38.75,
		})
		if !errors.Is(err, service.ErrForbidden) {
			t.Fatalf("expected ErrForbidden, got %v", err)
		}
	})

	t.Run("other carrier cannot report positions", func(t *testing.T) {
		t.Parallel()

		h := newIngestHarness(service.DefaultIngestConfig())
		h.seedTransitTrip("trip-1")

		outsider := domain.Actor{UserID: "outsider", Role: domain.RoleCarrier, OrgID: "carrier-org-2"}
		_, err := h.svc.Ingest(context.Background(), "trip-1", outsider, service.PositionReport{
			Lat: 9.02, Lng: 38.75,
		})
		if !errors.Is(err, service.ErrForbidden) {
			t.Fatalf("expected ErrForbidden, got %v", err)
		}
	})

	t.Run("tracking disabled rejects reports", func(t *testing.T) {
		t.Parallel()

		h := newIngestHarness(service.DefaultIngestConfig())
		trip := h.seedTransitTrip("trip-1")
		trip.TrackingEnabled = false
		h.trips.AddTrip(trip)

		_, err := h.svc.Ingest(context.Background(), "trip-1", carrierActor, service.PositionReport{
			Lat: 9.02, Lng: 38.75,
		})
		if !errors.Is(err, service.ErrTrackingDisabled) {
			t.Fatalf("expected ErrTrackingDisabled, got %v", err)
		}
	})

	t.Run("reports outside trackable phases rejected", func(t *testing.T) {
		t.Parallel()

		for _, status := range []domain.TripStatus{
			domain.TripStatusAssigned,
			domain.TripStatusDelivered,
		} {
			h := newIngestHarness(service.DefaultIngestConfig())
			trip := h.seedTransitTrip("trip-1")
			trip.Status = status
			h.trips.AddTrip(trip)

			_, err := h.svc.Ingest(context.Background(), "trip-1", carrierActor, service.PositionReport{
				Lat: 9.02, Lng: 38.75,
			})

			var phaseErr *service.TripPhaseError
			if !errors.As(err, &phaseErr) {
				t.Fatalf("status %s: expected TripPhaseError, got %v", status, err)
			}
			if phaseErr.Current != status {
				t.Errorf("expected error to echo status %s, got %s", status, phaseErr.Current)
			}
		}
	})
}

func TestIngest_AccumulatesDistanceAndUpdatesCaches(t *testing.T) {
	t.Parallel()

	h := newIngestHarness(service.DefaultIngestConfig())
	h.seedTransitTrip("trip-1")

	ctx := context.Background()

	// First report: no previous position, no distance added.
	if _, err := h.svc.Ingest(ctx, "trip-1", carrierActor, service.PositionReport{
		Lat: 9.02, Lng: 38.75,
	}); err != nil {
		t.Fatalf("first report: unexpected error: %v", err)
	}

	stored := h.trips.GetTrip("trip-1")
	if stored.ActualDistanceKm != 0 {
		t.Errorf("expected zero distance after first report, got %f", stored.ActualDistanceKm)
	}
	if !stored.HasCurrentLocation() {
		t.Error("expected current location cached after first report")
	}

	// Second report roughly 344 km away adds the segment.
	if _, err := h.svc.Ingest(ctx, "trip-1", carrierActor, service.PositionReport{
		Lat: 9.6, Lng: 41.85,
	}); err != nil {
		t.Fatalf("second report: unexpected error: %v", err)
	}

	stored = h.trips.GetTrip("trip-1")
	if stored.ActualDistanceKm < 320 || stored.ActualDistanceKm > 370 {
		t.Errorf("expected roughly 344 km accumulated, got %f", stored.ActualDistanceKm)
	}
	if stored.CurrentLat != 9.6 || stored.CurrentLng != 41.85 {
		t.Errorf("expected cached location (9.6, 41.85), got (%f, %f)", stored.CurrentLat, stored.CurrentLng)
	}

	truck := h.trucks.GetTruck(testTruckID)
	if truck.GPSStatus != domain.GPSStatusActive {
		t.Errorf("expected truck GPS ACTIVE, got %s", truck.GPSStatus)
	}
	if truck.DeviceID == "" {
		t.Error("expected a device to be provisioned on first report")
	}

	if h.cache.TripInvalidations < 2 {
		t.Errorf("expected cached trip invalidated per accepted report, got %d", h.cache.TripInvalidations)
	}
}

func TestIngest_ConcurrentReportsChainDistance(t *testing.T) {
	t.Parallel()

	h := newIngestHarness(service.DefaultIngestConfig())
	trip := h.seedTransitTrip("trip-1")
	trip.CurrentLat = 9.02
	trip.CurrentLng = 38.75
	trip.LocationUpdated = time.Now()
	h.trips.AddTrip(trip)

	ctx := context.Background()

	points := [][2]float64{
		{9.3, 40.3},
		{9.6, 41.85},
	}

	var wg sync.WaitGroup
	for _, p := range points {
		p := p
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := h.svc.Ingest(ctx, "trip-1", carrierActor, service.PositionReport{
				Lat: p[0],
				Lng: p[1],
			}); err != nil {
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()

	// Each segment must be measured from the previously stored position,
	// so the total is one of the two possible chains through both points,
	// never both segments measured from the seeded base.
	chainA := geo.HaversineKm(9.02, 38.75, points[0][0], points[0][1]) +
		geo.HaversineKm(points[0][0], points[0][1], points[1][0], points[1][1])
	chainB := geo.HaversineKm(9.02, 38.75, points[1][0], points[1][1]) +
		geo.HaversineKm(points[1][0], points[1][1], points[0][0], points[0][1])

	got := h.trips.GetTrip("trip-1").ActualDistanceKm
	const epsilon = 0.5
	if !withinKm(got, chainA, epsilon) && !withinKm(got, chainB, epsilon) {
		t.Errorf("expected chained distance near %.1f or %.1f km, got %.1f", chainA, chainB, got)
	}
}

func withinKm(got, want, epsilon float64) bool {
	diff := got - want
	if diff < 0 {
		diff = -diff
	}
	return diff < epsilon
}

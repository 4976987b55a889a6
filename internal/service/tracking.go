package service

import (
	"context"
	"log"
	"time"

	"freight/internal/domain"
	"freight/internal/geo"
	"freight/internal/redis"
	"freight/internal/repository"
)

// GPSSignal classifies the freshness of a trip's last position update.
type GPSSignal string

const (
	GPSSignalActive  GPSSignal = "ACTIVE"
	GPSSignalStale   GPSSignal = "STALE"
	GPSSignalOffline GPSSignal = "OFFLINE"
)

// TrackingConfig contains the tracking read-path knobs.
type TrackingConfig struct {
	ActiveWindow    time.Duration // last update younger than this is ACTIVE
	StaleWindow     time.Duration // younger than this is STALE, else OFFLINE
	DefaultSpeedKmh float64       // ETA fallback when no speed was recorded
	SimplifyTarget  int           // point-count cap for simplified playback
}

// DefaultTrackingConfig returns the default tracking configuration.
func DefaultTrackingConfig() TrackingConfig {
	return TrackingConfig{
		ActiveWindow:    5 * time.Minute,
		StaleWindow:     30 * time.Minute,
		DefaultSpeedKmh: 50,
		SimplifyTarget:  100,
	}
}

// TrackingService serves the live and historical tracking read paths.
type TrackingService struct {
	tripRepo repository.TripRepository
	posRepo  repository.PositionRepository
	cache    redis.TripCache
	cfg      TrackingConfig
}

// NewTrackingService creates a new TrackingService. cache may be nil, in
// which case every read goes to the repository.
func NewTrackingService(
	tripRepo repository.TripRepository,
	posRepo repository.PositionRepository,
	cache redis.TripCache,
	cfg TrackingConfig,
) *TrackingService {
	return &TrackingService{
		tripRepo: tripRepo,
		posRepo:  posRepo,
		cache:    cache,
		cfg:      cfg,
	}
}

// loadTrip serves the trip from cache when possible. Ingestion and
// transitions invalidate the key, so a hit is at worst one TTL behind a
// write raced from another instance.
func (s *TrackingService) loadTrip(ctx context.Context, tripID string) (*domain.Trip, error) {
	if s.cache != nil {
		if trip, err := s.cache.GetTrip(ctx, tripID); err == nil && trip != nil {
			return trip, nil
		}
	}

	trip, err := s.tripRepo.GetByID(ctx, tripID)
	if err != nil {
		return nil, err
	}

	if s.cache != nil {
		if err := s.cache.SetTrip(ctx, trip); err != nil {
			log.Printf("trip cache fill failed for trip %s: %v", tripID, err)
		}
	}

	return trip, nil
}

// CurrentPosition is the cached location served by the live view.
type CurrentPosition struct {
	Lat       float64
	Lng       float64
	UpdatedAt time.Time
}

// LiveView is the pull-based live tracking snapshot.
type LiveView struct {
	TripID          string
	Status          domain.TripStatus
	CurrentLocation *CurrentPosition // nil until a position is recorded
	Signal          GPSSignal
	ETAMinutes      *float64 // nil unless in transit with a known position
}

// Live returns the current cached position, the signal freshness, and an
// ETA while the trip is in transit.
//
// Shippers may only call Live once the trip has left ASSIGNED, so carrier
// movements stay hidden until pickup actually begins.
func (s *TrackingService) Live(ctx context.Context, tripID string, actor domain.Actor) (*LiveView, error) {
	if tripID == "" {
		return nil, ErrInvalidTripID
	}

	trip, err := s.loadTrip(ctx, tripID)
	if err != nil {
		return nil, err
	}

	access := ResolveTripAccess(actor, trip)
	if !access.CanViewTracking() {
		return nil, ErrForbidden
	}
	if access.IsShipperOwner && trip.Status == domain.TripStatusAssigned {
		return nil, ErrTrackingNotStarted
	}

	view := &LiveView{
		TripID: trip.ID,
		Status: trip.Status,
		Signal: s.classifySignal(trip.LocationUpdated, time.Now()),
	}

	if trip.HasCurrentLocation() {
		view.CurrentLocation = &CurrentPosition{
			Lat:       trip.CurrentLat,
			Lng:       trip.CurrentLng,
			UpdatedAt: trip.LocationUpdated,
		}
	}

	if trip.Status == domain.TripStatusInTransit && view.CurrentLocation != nil {
		eta, err := s.estimateETA(ctx, trip)
		if err != nil {
			return nil, err
		}
		view.ETAMinutes = &eta
	}

	return view, nil
}

// classifySignal buckets the age of the last update.
func (s *TrackingService) classifySignal(lastUpdate, now time.Time) GPSSignal {
	if lastUpdate.IsZero() {
		return GPSSignalOffline
	}

	age := now.Sub(lastUpdate)
	switch {
	case age < s.cfg.ActiveWindow:
		return GPSSignalActive
	case age < s.cfg.StaleWindow:
		return GPSSignalStale
	default:
		return GPSSignalOffline
	}
}

// estimateETA divides the remaining great-circle distance by the effective
// speed. The most recent recorded speed wins; without one the default
// applies. Deliberately a single-sample heuristic, not a smoothed estimate.
func (s *TrackingService) estimateETA(ctx context.Context, trip *domain.Trip) (float64, error) {
	remainingKm := geo.HaversineKm(
		trip.CurrentLat, trip.CurrentLng,
		trip.DeliveryLat, trip.DeliveryLng,
	)

	speed := s.cfg.DefaultSpeedKmh
	latest, err := s.posRepo.LatestWithSpeed(ctx, trip.ID)
	if err != nil {
		return 0, err
	}
	if latest != nil && latest.SpeedKmh != nil && *latest.SpeedKmh > 0 {
		speed = *latest.SpeedKmh
	}

	return remainingKm / speed * 60, nil
}

// HistoryQuery bounds and shapes a history request.
type HistoryQuery struct {
	From       time.Time // zero means unbounded
	To         time.Time // zero means unbounded
	Simplified bool      // cap the returned point count for display
}

// HistoryView is the historical playback of a trip's route.
type HistoryView struct {
	TripID       string
	Points       []*domain.PositionSample
	TotalSamples int
	DistanceKm   float64
	AvgSpeedKmh  *float64       // nil when no sample carried a speed
	Duration     *time.Duration // nil until both start and end are known
	Simplified   bool
}

// History returns the ordered route, cumulative distance, average speed,
// and trip duration. Unlike Live there is no phase restriction: the route
// is visible as soon as samples exist.
func (s *TrackingService) History(ctx context.Context, tripID string, actor domain.Actor, query HistoryQuery) (*HistoryView, error) {
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

	samples, err := s.posRepo.ListByTrip(ctx, tripID, query.From, query.To)
	if err != nil {
		return nil, err
	}

	view := &HistoryView{
		TripID:       trip.ID,
		TotalSamples: len(samples),
		DistanceKm:   routeDistanceKm(samples),
		AvgSpeedKmh:  averageSpeed(samples),
		Duration:     tripDuration(trip),
		Simplified:   query.Simplified,
	}

	if query.Simplified {
		view.Points = simplifyRoute(samples, s.cfg.SimplifyTarget)
	} else {
		view.Points = samples
	}

	return view, nil
}

// routeDistanceKm sums the great-circle segments between consecutive samples.
func routeDistanceKm(samples []*domain.PositionSample) float64 {
	var total float64
	for i := 1; i < len(samples); i++ {
		total += geo.HaversineKm(
			samples[i-1].Lat, samples[i-1].Lng,
			samples[i].Lat, samples[i].Lng,
		)
	}
	return total
}

// averageSpeed is the mean of the samples carrying a speed reading.
func averageSpeed(samples []*domain.PositionSample) *float64 {
	var sum float64
	var n int
	for _, sample := range samples {
		if sample.SpeedKmh != nil {
			sum += *sample.SpeedKmh
			n++
		}
	}
	if n == 0 {
		return nil
	}
	avg := sum / float64(n)
	return &avg
}

// tripDuration is delivery (or completion) time minus start time.
func tripDuration(trip *domain.Trip) *time.Duration {
	if trip.StartedAt.IsZero() {
		return nil
	}

	end := trip.DeliveredAt
	if end.IsZero() {
		end = trip.CompletedAt
	}
	if end.IsZero() {
		return nil
	}

	d := end.Sub(trip.StartedAt)
	return &d
}

// simplifyRoute caps the point count by uniform index stride, always keeping
// the first and last sample. This is a display-size cap, not a geometric
// simplification.
func simplifyRoute(samples []*domain.PositionSample, target int) []*domain.PositionSample {
	if target < 2 || len(samples) <= target {
		return samples
	}

	stride := (len(samples) + target - 1) / target

	out := make([]*domain.PositionSample, 0, target+1)
	for i := 0; i < len(samples); i += stride {
		out = append(out, samples[i])
	}

	if out[len(out)-1] != samples[len(samples)-1] {
		out = append(out, samples[len(samples)-1])
	}

	return out
}

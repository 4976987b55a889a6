package service

import (
	"context"
	"log"
	"time"

	"github.com/google/uuid"

	"freight/internal/domain"
	"freight/internal/geo"
	"freight/internal/redis"
	"freight/internal/repository"
)

// IngestConfig contains the GPS ingestion knobs.
type IngestConfig struct {
	RateLimit   int           // accepted reports per trip per window
	RateWindow  time.Duration // rolling window length
	DriftWindow time.Duration // max client/server clock skew
}

// DefaultIngestConfig returns the default ingestion configuration.
func DefaultIngestConfig() IngestConfig {
	return IngestConfig{
		RateLimit:   12,
		RateWindow:  time.Hour,
		DriftWindow: 5 * time.Minute,
	}
}

// IngestService accepts GPS position reports for active trips: it
// validates, rate-limits, persists, and refreshes the cached current
// location of the trip and its truck.
type IngestService struct {
	txm      repository.TxManager
	tripRepo repository.TripRepository
	limiter  redis.RateLimiter
	cache    redis.CacheInvalidator
	cfg      IngestConfig
}

// NewIngestService creates a new IngestService.
func NewIngestService(
	txm repository.TxManager,
	tripRepo repository.TripRepository,
	limiter redis.RateLimiter,
	cache redis.CacheInvalidator,
	cfg IngestConfig,
) *IngestService {
	return &IngestService{
		txm:      txm,
		tripRepo: tripRepo,
		limiter:  limiter,
		cache:    cache,
		cfg:      cfg,
	}
}

// PositionReport is one inbound GPS report.
type PositionReport struct {
	Lat float64
	Lng float64

	SpeedKmh  *float64
	Heading   *float64
	AltitudeM *float64
	AccuracyM *float64

	// Device clock; nil means the server stamps the sample.
	Timestamp *time.Time
}

// PositionAck acknowledges an accepted report.
type PositionAck struct {
	SampleID   string
	RecordedAt time.Time
	Remaining  int // reports left in the current window
}

// Ingest validates one position report and, if acceptable, persists the
// sample and updates the cached locations in a single transaction.
//
// Checks run in a fixed order and stop at the first failure: coordinate
// bounds, rate limit, clock drift, actor, tracking flag, trip phase. The
// rate gate reserves a window slot atomically, so concurrent bursts cannot
// slip past the ceiling; a reservation for a report that is later rejected
// is refunded.
func (s *IngestService) Ingest(ctx context.Context, tripID string, actor domain.Actor, report PositionReport) (*PositionAck, error) {
	if tripID == "" {
		return nil, ErrInvalidTripID
	}

	if err := validateReport(report); err != nil {
		return nil, err
	}

	res, err := s.limiter.Reserve(ctx, tripID, s.cfg.RateLimit, s.cfg.RateWindow)
	if err != nil {
		return nil, err
	}
	if !res.Allowed {
		return nil, &RateLimitError{RetryAfter: res.RetryAfter}
	}

	// Only an accepted report may keep its slot.
	accepted := false
	defer func() {
		if !accepted {
			s.refund(ctx, tripID, res.Member)
		}
	}()

	now := time.Now()
	recordedAt := now
	if report.Timestamp != nil {
		drift := now.Sub(*report.Timestamp)
		if drift < 0 {
			drift = -drift
		}
		if drift > s.cfg.DriftWindow {
			return nil, ErrClockDrift
		}
		recordedAt = *report.Timestamp
	}

	trip, err := s.tripRepo.GetByID(ctx, tripID)
	if err != nil {
		return nil, err
	}

	if !ResolveTripAccess(actor, trip).CanIngestGPS() {
		return nil, ErrForbidden
	}

	if !trip.TrackingEnabled {
		return nil, ErrTrackingDisabled
	}

	if trip.Status != domain.TripStatusPickupPending && trip.Status != domain.TripStatusInTransit {
		return nil, &TripPhaseError{Current: trip.Status}
	}

	sample := &domain.PositionSample{
		ID:         uuid.New().String(),
		TripID:     trip.ID,
		TruckID:    trip.TruckID,
		Lat:        report.Lat,
		Lng:        report.Lng,
		SpeedKmh:   report.SpeedKmh,
		Heading:    report.Heading,
		AltitudeM:  report.AltitudeM,
		AccuracyM:  report.AccuracyM,
		RecordedAt: recordedAt,
	}

	err = s.txm.WithinTx(ctx, func(r repository.TxRepos) error {
		if err := r.Positions.Create(ctx, sample); err != nil {
			return err
		}

		truck, err := r.Trucks.GetByID(ctx, trip.TruckID)
		if err != nil {
			return err
		}

		if truck.DeviceID == "" {
			if err := r.Trucks.ProvisionDevice(ctx, truck.ID, uuid.New().String()); err != nil {
				return err
			}
		}

		// The distance segment is measured inside the update from the
		// row's stored coordinates, so concurrent reports chain rather
		// than all measuring from the same stale base.
		if err := r.Trips.UpdateCurrentLocation(ctx, trip.ID, report.Lat, report.Lng); err != nil {
			return err
		}

		return r.Trucks.UpdateGPS(ctx, trip.TruckID, report.Lat, report.Lng, now, domain.GPSStatusActive)
	})
	if err != nil {
		return nil, err
	}
	accepted = true

	if s.cache != nil {
		if err := s.cache.InvalidateTrip(ctx, trip.ID); err != nil {
			log.Printf("cache invalidation failed for trip %s: %v", trip.ID, err)
		}
	}

	return &PositionAck{
		SampleID:   sample.ID,
		RecordedAt: recordedAt,
		Remaining:  res.Remaining,
	}, nil
}

// refund hands back an unused reservation. Failure only over-counts, so it
// is logged and not surfaced.
func (s *IngestService) refund(ctx context.Context, tripID, member string) {
	if err := s.limiter.Release(ctx, tripID, member); err != nil {
		log.Printf("rate limit refund failed for trip %s: %v", tripID, err)
	}
}

func validateReport(report PositionReport) error {
	if !geo.ValidCoordinates(report.Lat, report.Lng) {
		return ErrInvalidCoordinates
	}
	if report.SpeedKmh != nil && *report.SpeedKmh < 0 {
		return ErrInvalidSpeed
	}
	if report.Heading != nil && (*report.Heading < 0 || *report.Heading > 360) {
		return ErrInvalidHeading
	}
	if report.AccuracyM != nil && *report.AccuracyM < 0 {
		return ErrInvalidAccuracy
	}
	return nil
}

package domain

import "time"

// PositionSample is one accepted GPS report. Samples are append-only and
// never updated or deleted.
type PositionSample struct {
	ID      string
	TripID  string
	TruckID string

	Lat float64
	Lng float64

	// Optional readings from the device; nil when not reported.
	SpeedKmh  *float64
	Heading   *float64
	AltitudeM *float64
	AccuracyM *float64

	RecordedAt time.Time
}

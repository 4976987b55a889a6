package domain

import "time"

// GPSStatus classifies the health of a truck's GPS device.
type GPSStatus string

const (
	GPSStatusUnregistered GPSStatus = "UNREGISTERED"
	GPSStatusActive       GPSStatus = "ACTIVE"
	GPSStatusInactive     GPSStatus = "INACTIVE"
)

// Truck is the carrier vehicle side of the tracking model. Fleet CRUD owns
// the full record; the tracking core reads ownership and writes the cached
// location and GPS health fields.
type Truck struct {
	ID           string
	CarrierOrgID string
	PlateNumber  string

	DeviceID        string // empty until a first position report provisions one
	GPSStatus       GPSStatus
	GPSLastSeen     time.Time
	CurrentLat      float64
	CurrentLng      float64
	LocationUpdated time.Time
}

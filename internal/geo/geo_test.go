package geo

import (
	"math"
	"testing"
)

func TestHaversineKm_KnownDistance(t *testing.T) {
	t.Parallel()

	// Addis Ababa to Dire Dawa, roughly 344 km great-circle.
	got := HaversineKm(9.02, 38.75, 9.6, 41.85)

	const want = 344.0
	if math.Abs(got-want) > want*0.05 {
		t.Errorf("HaversineKm = %.2f km, want %.0f km ±5%%", got, want)
	}
}

func TestHaversineKm_ZeroDistance(t *testing.T) {
	t.Parallel()

	if d := HaversineKm(51.5, -0.12, 51.5, -0.12); d != 0 {
		t.Errorf("expected zero distance for identical points, got %f", d)
	}
}

func TestHaversineKm_Symmetric(t *testing.T) {
	t.Parallel()

	ab := HaversineKm(9.02, 38.75, 9.6, 41.85)
	ba := HaversineKm(9.6, 41.85, 9.02, 38.75)

	if math.Abs(ab-ba) > 1e-9 {
		t.Errorf("distance not symmetric: %f vs %f", ab, ba)
	}
}

func TestValidCoordinates(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		name string
		lat  float64
		lng  float64
		want bool
	}{
		{name: "valid", lat: 9.02, lng: 38.75, want: true},
		{name: "max latitude", lat: 90, lng: 0, want: true},
		{name: "min latitude", lat: -90, lng: 0, want: true},
		{name: "max longitude", lat: 0, lng: 180, want: true},
		{name: "min longitude", lat: 0, lng: -180, want: true},
		{name: "latitude too high", lat: 90.0001, lng: 0, want: false},
		{name: "latitude too low", lat: -90.0001, lng: 0, want: false},
		{name: "longitude too high", lat: 0, lng: 180.0001, want: false},
		{name: "longitude too low", lat: 0, lng: -180.0001, want: false},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			if got := ValidCoordinates(tc.lat, tc.lng); got != tc.want {
				t.Errorf("ValidCoordinates(%f, %f) = %v, want %v", tc.lat, tc.lng, got, tc.want)
			}
		})
	}
}

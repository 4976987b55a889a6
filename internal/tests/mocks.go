package tests

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"freight/internal/domain"
	"freight/internal/geo"
	"freight/internal/redis"
	"freight/internal/repository"
)

// ──────────────────────────────────────────────
// MOCK TRIP REPOSITORY
// ──────────────────────────────────────────────

// MockTripRepository is a mock implementation of TripRepository.
type MockTripRepository struct {
	mu    sync.RWMutex
	trips map[string]*domain.Trip

	// Counters for verification
	CreateCallCount         int32
	UpdateFromStatusCalls   int32
	UpdateLocationCallCount int32

	// Error injection
	CreateError error
	UpdateError error
}

// NewMockTripRepository creates a new mock trip repository.
func NewMockTripRepository() *MockTripRepository {
	return &MockTripRepository{
		trips: make(map[string]*domain.Trip),
	}
}

// AddTrip adds a trip to the mock repository.
func (m *MockTripRepository) AddTrip(trip *domain.Trip) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.trips[trip.ID] = trip
}

func (m *MockTripRepository) Create(ctx context.Context, trip *domain.Trip) error {
	atomic.AddInt32(&m.CreateCallCount, 1)
	if m.CreateError != nil {
		return m.CreateError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.trips {
		if existing.LoadID == trip.LoadID {
			return repository.ErrDuplicate
		}
	}
	copy := *trip
	m.trips[trip.ID] = &copy
	return nil
}

func (m *MockTripRepository) GetByID(ctx context.Context, id string) (*domain.Trip, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	trip, ok := m.trips[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	// Return a copy to avoid mutation issues.
	copy := *trip
	return &copy, nil
}

func (m *MockTripRepository) GetByLoadID(ctx context.Context, loadID string) (*domain.Trip, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, trip := range m.trips {
		if trip.LoadID == loadID {
			copy := *trip
			return &copy, nil
		}
	}
	return nil, nil
}

// UpdateFromStatus emulates the guarded status update: the stored trip must
// still be in the expected status or the caller lost the race.
func (m *MockTripRepository) UpdateFromStatus(ctx context.Context, trip *domain.Trip, expected domain.TripStatus) error {
	atomic.AddInt32(&m.UpdateFromStatusCalls, 1)
	if m.UpdateError != nil {
		return m.UpdateError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	stored, ok := m.trips[trip.ID]
	if !ok {
		return repository.ErrNotFound
	}
	if stored.Status != expected {
		return repository.ErrStaleState
	}
	copy := *trip
	m.trips[trip.ID] = &copy
	return nil
}

// UpdateCurrentLocation measures the segment from the stored coordinates
// under the lock, mirroring the in-row computation of the SQL update.
func (m *MockTripRepository) UpdateCurrentLocation(ctx context.Context, tripID string, lat, lng float64) error {
	atomic.AddInt32(&m.UpdateLocationCallCount, 1)
	if m.UpdateError != nil {
		return m.UpdateError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	trip, ok := m.trips[tripID]
	if !ok {
		return repository.ErrNotFound
	}
	if !trip.LocationUpdated.IsZero() {
		trip.ActualDistanceKm += geo.HaversineKm(trip.CurrentLat, trip.CurrentLng, lat, lng)
	}
	trip.CurrentLat = lat
	trip.CurrentLng = lng
	trip.LocationUpdated = time.Now()
	return nil
}

// GetTrip returns the stored trip for test assertions.
func (m *MockTripRepository) GetTrip(id string) *domain.Trip {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.trips[id]
}

// ──────────────────────────────────────────────
// MOCK LOAD REPOSITORY
// ──────────────────────────────────────────────

// MockLoadRepository is a mock implementation of LoadRepository.
type MockLoadRepository struct {
	mu    sync.RWMutex
	loads map[string]*domain.Load

	UpdateStatusCallCount int32

	UpdateStatusError error
}

// NewMockLoadRepository creates a new mock load repository.
func NewMockLoadRepository() *MockLoadRepository {
	return &MockLoadRepository{
		loads: make(map[string]*domain.Load),
	}
}

// AddLoad adds a load to the mock repository.
func (m *MockLoadRepository) AddLoad(load *domain.Load) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.loads[load.ID] = load
}

func (m *MockLoadRepository) GetByID(ctx context.Context, id string) (*domain.Load, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	load, ok := m.loads[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	copy := *load
	return &copy, nil
}

func (m *MockLoadRepository) UpdateStatus(ctx context.Context, id string, status domain.LoadStatus) error {
	atomic.AddInt32(&m.UpdateStatusCallCount, 1)
	if m.UpdateStatusError != nil {
		return m.UpdateStatusError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	load, ok := m.loads[id]
	if !ok {
		return repository.ErrNotFound
	}
	load.Status = status
	return nil
}

func (m *MockLoadRepository) ClearAssignedTruck(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	load, ok := m.loads[id]
	if !ok {
		return repository.ErrNotFound
	}
	load.AssignedTruckID = ""
	return nil
}

// GetLoad returns the stored load for test assertions.
func (m *MockLoadRepository) GetLoad(id string) *domain.Load {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.loads[id]
}

// ──────────────────────────────────────────────
// MOCK TRUCK REPOSITORY
// ──────────────────────────────────────────────

// MockTruckRepository is a mock implementation of TruckRepository.
type MockTruckRepository struct {
	mu     sync.RWMutex
	trucks map[string]*domain.Truck

	ProvisionCallCount int32
	UpdateGPSCallCount int32
}

// NewMockTruckRepository creates a new mock truck repository.
func NewMockTruckRepository() *MockTruckRepository {
	return &MockTruckRepository{
		trucks: make(map[string]*domain.Truck),
	}
}

// AddTruck adds a truck to the mock repository.
func (m *MockTruckRepository) AddTruck(truck *domain.Truck) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.trucks[truck.ID] = truck
}

func (m *MockTruckRepository) GetByID(ctx context.Context, id string) (*domain.Truck, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	truck, ok := m.trucks[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	copy := *truck
	return &copy, nil
}

func (m *MockTruckRepository) ProvisionDevice(ctx context.Context, truckID, deviceID string) error {
	atomic.AddInt32(&m.ProvisionCallCount, 1)
	m.mu.Lock()
	defer m.mu.Unlock()
	truck, ok := m.trucks[truckID]
	if !ok {
		return repository.ErrNotFound
	}
	if truck.DeviceID == "" {
		truck.DeviceID = deviceID
	}
	return nil
}

func (m *MockTruckRepository) UpdateGPS(ctx context.Context, truckID string, lat, lng float64, seenAt time.Time, status domain.GPSStatus) error {
	atomic.AddInt32(&m.UpdateGPSCallCount, 1)
	m.mu.Lock()
	defer m.mu.Unlock()
	truck, ok := m.trucks[truckID]
	if !ok {
		return repository.ErrNotFound
	}
	truck.CurrentLat = lat
	truck.CurrentLng = lng
	truck.LocationUpdated = seenAt
	truck.GPSLastSeen = seenAt
	truck.GPSStatus = status
	return nil
}

// GetTruck returns the stored truck for test assertions.
func (m *MockTruckRepository) GetTruck(id string) *domain.Truck {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.trucks[id]
}

// ──────────────────────────────────────────────
// MOCK POSITION REPOSITORY
// ──────────────────────────────────────────────

// MockPositionRepository is a mock implementation of PositionRepository.
type MockPositionRepository struct {
	mu      sync.RWMutex
	samples []*domain.PositionSample

	CreateCallCount int32

	CreateError error
}

// NewMockPositionRepository creates a new mock position repository.
func NewMockPositionRepository() *MockPositionRepository {
	return &MockPositionRepository{}
}

// AddSample adds a sample directly, bypassing validation.
func (m *MockPositionRepository) AddSample(sample *domain.PositionSample) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.samples = append(m.samples, sample)
}

func (m *MockPositionRepository) Create(ctx context.Context, sample *domain.PositionSample) error {
	atomic.AddInt32(&m.CreateCallCount, 1)
	if m.CreateError != nil {
		return m.CreateError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	copy := *sample
	m.samples = append(m.samples, &copy)
	return nil
}

func (m *MockPositionRepository) ListByTrip(ctx context.Context, tripID string, from, to time.Time) ([]*domain.PositionSample, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var result []*domain.PositionSample
	for _, s := range m.samples {
		if s.TripID != tripID {
			continue
		}
		if !from.IsZero() && s.RecordedAt.Before(from) {
			continue
		}
		if !to.IsZero() && s.RecordedAt.After(to) {
			continue
		}
		copy := *s
		result = append(result, &copy)
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].RecordedAt.Before(result[j].RecordedAt)
	})
	return result, nil
}

func (m *MockPositionRepository) Latest(ctx context.Context, tripID string) (*domain.PositionSample, error) {
	return m.latest(tripID, false)
}

func (m *MockPositionRepository) LatestWithSpeed(ctx context.Context, tripID string) (*domain.PositionSample, error) {
	return m.latest(tripID, true)
}

func (m *MockPositionRepository) latest(tripID string, requireSpeed bool) (*domain.PositionSample, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var latest *domain.PositionSample
	for _, s := range m.samples {
		if s.TripID != tripID {
			continue
		}
		if requireSpeed && s.SpeedKmh == nil {
			continue
		}
		if latest == nil || s.RecordedAt.After(latest.RecordedAt) {
			latest = s
		}
	}
	if latest == nil {
		return nil, nil
	}
	copy := *latest
	return &copy, nil
}

// CountSamples returns the number of stored samples.
func (m *MockPositionRepository) CountSamples() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.samples)
}

// ──────────────────────────────────────────────
// MOCK EVENT REPOSITORY
// ──────────────────────────────────────────────

// MockEventRepository is a mock implementation of EventRepository.
type MockEventRepository struct {
	mu     sync.RWMutex
	events []*domain.TripEvent

	CreateCallCount int32

	CreateError error
}

// NewMockEventRepository creates a new mock event repository.
func NewMockEventRepository() *MockEventRepository {
	return &MockEventRepository{}
}

func (m *MockEventRepository) Create(ctx context.Context, event *domain.TripEvent) error {
	atomic.AddInt32(&m.CreateCallCount, 1)
	if m.CreateError != nil {
		return m.CreateError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	copy := *event
	m.events = append(m.events, &copy)
	return nil
}

func (m *MockEventRepository) ListByLoad(ctx context.Context, loadID string) ([]*domain.TripEvent, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var result []*domain.TripEvent
	for _, e := range m.events {
		if e.LoadID == loadID {
			copy := *e
			result = append(result, &copy)
		}
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].CreatedAt.After(result[j].CreatedAt)
	})
	return result, nil
}

// CountEvents returns the number of stored events.
func (m *MockEventRepository) CountEvents() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.events)
}

// EventsOfType returns stored events of the given type.
func (m *MockEventRepository) EventsOfType(t domain.TripEventType) []*domain.TripEvent {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var result []*domain.TripEvent
	for _, e := range m.events {
		if e.Type == t {
			result = append(result, e)
		}
	}
	return result
}

// ──────────────────────────────────────────────
// MOCK TX MANAGER
// ──────────────────────────────────────────────

// MockTxManager runs the transactional function against the mock
// repositories. A mutex serializes units the way row locks do in Postgres.
type MockTxManager struct {
	mu    sync.Mutex
	Repos repository.TxRepos

	WithinTxError error
}

// NewMockTxManager bundles the given mocks into a transaction manager.
func NewMockTxManager(
	trips *MockTripRepository,
	loads *MockLoadRepository,
	trucks *MockTruckRepository,
	positions *MockPositionRepository,
	events *MockEventRepository,
) *MockTxManager {
	return &MockTxManager{
		Repos: repository.TxRepos{
			Trips:     trips,
			Loads:     loads,
			Trucks:    trucks,
			Positions: positions,
			Events:    events,
		},
	}
}

func (m *MockTxManager) WithinTx(ctx context.Context, fn func(r repository.TxRepos) error) error {
	if m.WithinTxError != nil {
		return m.WithinTxError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return fn(m.Repos)
}

// ──────────────────────────────────────────────
// MOCK RATE LIMITER
// ──────────────────────────────────────────────

// reservationEntry is one claimed slot in a trip's window.
type reservationEntry struct {
	member string
	at     time.Time
}

// MockRateLimiter is an in-memory rolling-window counter. Reservations
// claim their slot under one lock, matching the atomicity of the Lua
// script in the real store.
type MockRateLimiter struct {
	mu      sync.Mutex
	entries map[string][]reservationEntry
	nextID  int

	ReserveCallCount int32
	ReleaseCallCount int32

	ReserveError error
}

// NewMockRateLimiter creates a new mock rate limiter.
func NewMockRateLimiter() *MockRateLimiter {
	return &MockRateLimiter{
		entries: make(map[string][]reservationEntry),
	}
}

func (m *MockRateLimiter) Reserve(ctx context.Context, tripID string, limit int, window time.Duration) (redis.Reservation, error) {
	atomic.AddInt32(&m.ReserveCallCount, 1)
	if m.ReserveError != nil {
		return redis.Reservation{}, m.ReserveError
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	live := m.prune(tripID, window)
	if len(live) >= limit {
		retryAfter := window - time.Since(live[0].at)
		if retryAfter < 0 {
			retryAfter = 0
		}
		return redis.Reservation{RetryAfter: retryAfter}, nil
	}

	m.nextID++
	member := fmt.Sprintf("reservation-%d", m.nextID)
	m.entries[tripID] = append(live, reservationEntry{member: member, at: time.Now()})

	return redis.Reservation{
		Allowed:   true,
		Member:    member,
		Remaining: limit - len(live) - 1,
	}, nil
}

func (m *MockRateLimiter) Release(ctx context.Context, tripID, member string) error {
	atomic.AddInt32(&m.ReleaseCallCount, 1)
	m.mu.Lock()
	defer m.mu.Unlock()
	var kept []reservationEntry
	for _, e := range m.entries[tripID] {
		if e.member != member {
			kept = append(kept, e)
		}
	}
	m.entries[tripID] = kept
	return nil
}

// CountReserved returns the live reservations for a trip.
func (m *MockRateLimiter) CountReserved(tripID string, window time.Duration) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.prune(tripID, window))
}

// prune drops entries that left the window. Caller holds the lock.
func (m *MockRateLimiter) prune(tripID string, window time.Duration) []reservationEntry {
	cutoff := time.Now().Add(-window)
	var live []reservationEntry
	for _, e := range m.entries[tripID] {
		if e.at.After(cutoff) {
			live = append(live, e)
		}
	}
	m.entries[tripID] = live
	return live
}

// ──────────────────────────────────────────────
// MOCK CACHE INVALIDATOR
// ──────────────────────────────────────────────

// MockCacheInvalidator records invalidation signals.
type MockCacheInvalidator struct {
	TripInvalidations int32
	LoadInvalidations int32

	InvalidateError error
}

// NewMockCacheInvalidator creates a new mock cache invalidator.
func NewMockCacheInvalidator() *MockCacheInvalidator {
	return &MockCacheInvalidator{}
}

func (m *MockCacheInvalidator) InvalidateTrip(ctx context.Context, tripID string) error {
	atomic.AddInt32(&m.TripInvalidations, 1)
	return m.InvalidateError
}

func (m *MockCacheInvalidator) InvalidateLoad(ctx context.Context, loadID string) error {
	atomic.AddInt32(&m.LoadInvalidations, 1)
	return m.InvalidateError
}

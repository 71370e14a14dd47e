package storage

import (
	"context"
	"sync"

	"github.com/Malungisa-Mndzebele/taxi-sub000/internal/models"
)

// MemoryStore keeps everything in maps behind one RWMutex. The CAS
// primitives compare against the stored record under the lock, which
// gives the same conflict semantics as the conditional SQL updates in
// PostgresStore.
type MemoryStore struct {
	mu         sync.RWMutex
	rides      map[string]*models.Ride
	drivers    map[string]*models.Driver
	passengers map[string]*models.Passenger
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		rides:      make(map[string]*models.Ride),
		drivers:    make(map[string]*models.Driver),
		passengers: make(map[string]*models.Passenger),
	}
}

func (m *MemoryStore) CreateRide(ctx context.Context, r *models.Ride) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *r
	m.rides[r.ID] = &cp
	return nil
}

func (m *MemoryStore) GetRide(ctx context.Context, id string) (*models.Ride, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	r, ok := m.rides[id]
	if !ok {
		return nil, ErrRideNotFound
	}
	cp := *r
	return &cp, nil
}

func (m *MemoryStore) ListOpenRides(ctx context.Context, limit int) ([]*models.Ride, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*models.Ride, 0, limit)
	for _, r := range m.rides {
		if r.Status != models.StatusRequested {
			continue
		}
		cp := *r
		out = append(out, &cp)
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	return out, nil
}

func (m *MemoryStore) UpdateRideIf(ctx context.Context, r *models.Ride, expect models.RideStatus) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	stored, ok := m.rides[r.ID]
	if !ok {
		return false, ErrRideNotFound
	}
	if stored.Status != expect {
		return false, nil
	}
	cp := *r
	m.rides[r.ID] = &cp
	return true, nil
}

func (m *MemoryStore) ActiveRideForDriver(ctx context.Context, driverID string) (*models.Ride, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, r := range m.rides {
		if r.Active() && r.AssignedTo(driverID) {
			cp := *r
			return &cp, nil
		}
	}
	return nil, nil
}

func (m *MemoryStore) GetDriver(ctx context.Context, id string) (*models.Driver, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	d, ok := m.drivers[id]
	if !ok {
		return nil, ErrDriverNotFound
	}
	cp := *d
	return &cp, nil
}

func (m *MemoryStore) SaveDriver(ctx context.Context, d *models.Driver) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *d
	m.drivers[d.ID] = &cp
	return nil
}

func (m *MemoryStore) SetOnline(ctx context.Context, id string, online bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	d, ok := m.drivers[id]
	if !ok {
		return ErrDriverNotFound
	}
	d.Online = online
	if !online {
		d.Available = false
	}
	return nil
}

func (m *MemoryStore) CompareAndSetAvailable(ctx context.Context, id string, expect, next bool) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	d, ok := m.drivers[id]
	if !ok {
		return false, ErrDriverNotFound
	}
	if d.Available != expect {
		return false, nil
	}
	d.Available = next
	return true, nil
}

func (m *MemoryStore) IncDriverRides(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	d, ok := m.drivers[id]
	if !ok {
		return ErrDriverNotFound
	}
	d.TotalRides++
	return nil
}

func (m *MemoryStore) GetPassenger(ctx context.Context, id string) (*models.Passenger, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.passengers[id]
	if !ok {
		return nil, ErrPassengerNotFound
	}
	cp := *p
	return &cp, nil
}

func (m *MemoryStore) SavePassenger(ctx context.Context, p *models.Passenger) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *p
	m.passengers[p.ID] = &cp
	return nil
}

func (m *MemoryStore) IncPassengerRides(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.passengers[id]
	if !ok {
		return ErrPassengerNotFound
	}
	p.TotalRides++
	return nil
}

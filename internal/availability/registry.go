package availability

import (
	"context"
	"errors"
	"log/slog"

	"github.com/Malungisa-Mndzebele/taxi-sub000/internal/models"
	"github.com/Malungisa-Mndzebele/taxi-sub000/internal/observability"
	"github.com/Malungisa-Mndzebele/taxi-sub000/internal/storage"
)

var (
	ErrOffline    = errors.New("driver is offline")
	ErrActiveRide = errors.New("driver holds an active ride")
)

// Presence mirrors availability into the surge supply set. Best effort;
// the store remains the source of truth.
type Presence interface {
	DriverAvailable(ctx context.Context, driverID string, available bool) error
}

// Registry keeps a driver's online/available flags consistent with ride
// assignment. Every flip of available goes through the store's
// compare-and-swap, the same primitive the arbiter uses, so the two
// never disagree about who holds the driver.
type Registry struct {
	Store    storage.DriverStore
	Rides    storage.RideStore
	Presence Presence
	Log      *slog.Logger
}

// SetOnline flips the online flag. Going offline forces available=false
// because an offline driver cannot be dispatched.
func (r *Registry) SetOnline(ctx context.Context, driverID string, online bool) (*models.Driver, error) {
	if err := r.Store.SetOnline(ctx, driverID, online); err != nil {
		return nil, err
	}
	if !online {
		r.mirror(ctx, driverID, false)
	}
	return r.Store.GetDriver(ctx, driverID)
}

// SetAvailable flips the available flag, only meaningful while online.
// Marking a driver available is rejected while they hold a ride in
// accepted/arrived/started.
func (r *Registry) SetAvailable(ctx context.Context, driverID string, available bool) (*models.Driver, error) {
	d, err := r.Store.GetDriver(ctx, driverID)
	if err != nil {
		return nil, err
	}
	if !d.Online {
		return nil, ErrOffline
	}
	if available {
		active, err := r.Rides.ActiveRideForDriver(ctx, driverID)
		if err != nil {
			return nil, err
		}
		if active != nil {
			return nil, ErrActiveRide
		}
	}
	if _, err := r.Store.CompareAndSetAvailable(ctx, driverID, !available, available); err != nil {
		return nil, err
	}
	r.mirror(ctx, driverID, available)
	if available {
		observability.DriversAvailable.Inc()
	} else {
		observability.DriversAvailable.Dec()
	}
	return r.Store.GetDriver(ctx, driverID)
}

// Release marks the driver available again after a completed or
// cancelled ride, regardless of the flag's current value.
func (r *Registry) Release(ctx context.Context, driverID string) error {
	swapped, err := r.Store.CompareAndSetAvailable(ctx, driverID, false, true)
	if err != nil {
		return err
	}
	if swapped {
		observability.DriversAvailable.Inc()
	}
	r.mirror(ctx, driverID, true)
	return nil
}

func (r *Registry) mirror(ctx context.Context, driverID string, available bool) {
	if r.Presence == nil {
		return
	}
	if err := r.Presence.DriverAvailable(ctx, driverID, available); err != nil && r.Log != nil {
		r.Log.Warn("presence mirror failed", "driver_id", driverID, "error", err)
	}
}

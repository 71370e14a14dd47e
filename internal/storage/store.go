package storage

import (
	"context"
	"errors"

	"github.com/Malungisa-Mndzebele/taxi-sub000/internal/models"
)

var (
	ErrRideNotFound      = errors.New("ride not found")
	ErrDriverNotFound    = errors.New("driver not found")
	ErrPassengerNotFound = errors.New("passenger not found")
)

// RideStore defines persistence for rides. All mutations after creation
// go through UpdateRideIf, a compare-and-swap keyed on the ride's
// current status, so that lost-update races degrade to an explicit
// conflict instead of silent corruption. There is deliberately no
// unconditional update.
type RideStore interface {
	CreateRide(ctx context.Context, r *models.Ride) error
	GetRide(ctx context.Context, id string) (*models.Ride, error)
	ListOpenRides(ctx context.Context, limit int) ([]*models.Ride, error)

	// UpdateRideIf persists r only if the stored ride still has status
	// expect. It reports whether the swap was applied.
	UpdateRideIf(ctx context.Context, r *models.Ride, expect models.RideStatus) (bool, error)

	// ActiveRideForDriver returns the driver's ride in
	// accepted/arrived/started, or nil.
	ActiveRideForDriver(ctx context.Context, driverID string) (*models.Ride, error)
}

// DriverStore defines persistence for driver dispatch state. The
// available flag is only ever flipped through a compare-and-swap so two
// processes cannot both claim an idle driver.
type DriverStore interface {
	GetDriver(ctx context.Context, id string) (*models.Driver, error)
	SaveDriver(ctx context.Context, d *models.Driver) error
	SetOnline(ctx context.Context, id string, online bool) error

	// CompareAndSetAvailable flips available from expect to next,
	// reporting whether the swap was applied.
	CompareAndSetAvailable(ctx context.Context, id string, expect, next bool) (bool, error)

	IncDriverRides(ctx context.Context, id string) error
}

type PassengerStore interface {
	GetPassenger(ctx context.Context, id string) (*models.Passenger, error)
	SavePassenger(ctx context.Context, p *models.Passenger) error
	IncPassengerRides(ctx context.Context, id string) error
}

// Store is the full repository boundary the dispatch core runs on.
type Store interface {
	RideStore
	DriverStore
	PassengerStore
}

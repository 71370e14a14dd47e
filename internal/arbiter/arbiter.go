package arbiter

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/Malungisa-Mndzebele/taxi-sub000/internal/models"
	"github.com/Malungisa-Mndzebele/taxi-sub000/internal/observability"
	"github.com/Malungisa-Mndzebele/taxi-sub000/internal/ride"
	"github.com/Malungisa-Mndzebele/taxi-sub000/internal/storage"
)

// Arbiter is the only place a ride moves from requested to accepted,
// and the only place two independent actors can race on the same ride.
// Exclusivity comes entirely from the store's conditional updates;
// there is no in-process lock, so the guarantee holds across server
// instances.
type Arbiter struct {
	Store storage.Store
	Log   *slog.Logger
}

// Accept claims rideID for driverID. At most one concurrent call per
// ride succeeds; losers get ErrRideNotAvailable and the record is
// untouched by their attempt. A successful claim also flips the driver
// available->unavailable; if that second swap fails the ride claim is
// rolled back so no inconsistent pair survives.
func (a *Arbiter) Accept(ctx context.Context, rideID, driverID string) (*models.Ride, error) {
	r, err := a.Store.GetRide(ctx, rideID)
	if err != nil {
		if errors.Is(err, storage.ErrRideNotFound) {
			observability.AcceptAttempts.WithLabelValues("not_found").Inc()
			return nil, ride.ErrRideNotAvailable
		}
		return nil, err
	}
	if r.Status != models.StatusRequested {
		observability.AcceptAttempts.WithLabelValues("conflict").Inc()
		return nil, ride.ErrRideNotAvailable
	}

	d, err := a.Store.GetDriver(ctx, driverID)
	if err != nil {
		return nil, err
	}
	if !d.Online {
		observability.AcceptAttempts.WithLabelValues("driver_offline").Inc()
		return nil, ride.ErrDriverOffline
	}
	if !d.Available {
		observability.AcceptAttempts.WithLabelValues("driver_unavailable").Inc()
		return nil, ride.ErrDriverUnavailable
	}

	// Phase 1: claim the ride. The status guard in UpdateRideIf is the
	// compare-and-swap; a zero-row match means another actor won.
	now := time.Now().UTC()
	claimed := *r
	claimed.Status = models.StatusAccepted
	claimed.DriverID = &driverID
	claimed.Timeline.AcceptedAt = &now

	swapped, err := a.Store.UpdateRideIf(ctx, &claimed, models.StatusRequested)
	if err != nil {
		return nil, err
	}
	if !swapped {
		observability.AcceptAttempts.WithLabelValues("conflict").Inc()
		return nil, ride.ErrRideNotAvailable
	}

	// Phase 2: take the driver. Failure here means the driver was
	// concurrently booked through another path; compensate by putting
	// the ride back up rather than leaving an inconsistent pair.
	taken, err := a.Store.CompareAndSetAvailable(ctx, driverID, true, false)
	if err == nil && !taken {
		err = ride.ErrDriverUnavailable
	}
	if err != nil {
		a.rollback(ctx, r)
		observability.AcceptAttempts.WithLabelValues("rolled_back").Inc()
		return nil, ride.ErrRideNotAvailable
	}

	observability.AcceptAttempts.WithLabelValues("accepted").Inc()
	if a.Log != nil {
		a.Log.Info("ride accepted", "ride_id", rideID, "driver_id", driverID)
	}
	return &claimed, nil
}

// rollback reverts a phase-1 claim: status back to requested, driverId
// and acceptedAt cleared. Guarded on accepted so a cancellation that
// slipped in between is left alone.
func (a *Arbiter) rollback(ctx context.Context, original *models.Ride) {
	reverted := *original
	reverted.Status = models.StatusRequested
	reverted.DriverID = nil
	reverted.Timeline.AcceptedAt = nil
	if _, err := a.Store.UpdateRideIf(ctx, &reverted, models.StatusAccepted); err != nil && a.Log != nil {
		a.Log.Error("claim rollback failed", "ride_id", original.ID, "error", err)
	}
	observability.AcceptRollbacks.Inc()
}

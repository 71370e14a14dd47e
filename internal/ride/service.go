package ride

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"log/slog"
	"time"

	"github.com/Malungisa-Mndzebele/taxi-sub000/internal/availability"
	"github.com/Malungisa-Mndzebele/taxi-sub000/internal/fare"
	"github.com/Malungisa-Mndzebele/taxi-sub000/internal/models"
	"github.com/Malungisa-Mndzebele/taxi-sub000/internal/observability"
	"github.com/Malungisa-Mndzebele/taxi-sub000/internal/storage"
)

// Accepter performs the race-safe requested->accepted claim.
// Implemented by arbiter.Arbiter.
type Accepter interface {
	Accept(ctx context.Context, rideID, driverID string) (*models.Ride, error)
}

// EventPublisher emits lifecycle events (Kafka in production).
type EventPublisher interface {
	PublishRideEvent(ctx context.Context, evt models.RideEvent) error
}

// Notifier pushes new open requests to connected drivers.
type Notifier interface {
	BroadcastOpenRide(r *models.Ride)
}

// PaymentProcessor holds funds at request time for card rides, captures
// on completion, releases on cancellation.
type PaymentProcessor interface {
	Hold(ctx context.Context, amountCents int64, currency, customerID string) (string, error)
	Capture(ctx context.Context, transactionID string) error
	Cancel(ctx context.Context, transactionID string) error
}

// SurgeQuoter supplies the current surge multiplier at quote time.
type SurgeQuoter interface {
	Current(ctx context.Context) (float64, error)
}

// Service owns every lifecycle transition after accept. Each transition
// is one conditional update keyed on the ride's current status, so a
// racing cancellation and an in-flight arrive/start/complete cannot
// both apply; the loser fails with a conflict and mutates nothing.
type Service struct {
	Store    storage.Store
	Arbiter  Accepter
	Registry *availability.Registry
	Events   EventPublisher
	Notifier Notifier
	Payments PaymentProcessor
	Surge    SurgeQuoter
	Log      *slog.Logger
}

type RequestInput struct {
	PassengerID          string
	Pickup               models.Location
	Dropoff              models.Location
	DistanceKm           float64
	EstimatedDurationMin float64
	PaymentMethod        models.PaymentMethod
	SurgeMultiplier      float64 // 0 means "quote from the tracker, else 1.0"
}

// Request creates a ride in requested state with the fare computed
// exactly once. The quote is final: it is never recomputed even if
// surge conditions change before acceptance.
func (s *Service) Request(ctx context.Context, in RequestInput) (*models.Ride, error) {
	surge := in.SurgeMultiplier
	if surge <= 0 {
		surge = 1.0
		if s.Surge != nil {
			if v, err := s.Surge.Current(ctx); err == nil && v > 0 {
				surge = v
			}
		}
	}
	duration := in.EstimatedDurationMin
	if duration <= 0 {
		duration = fare.EstimateDurationMin(in.DistanceKm, 0)
	}
	breakdown := fare.Calculate(in.DistanceKm, duration, surge)

	now := time.Now().UTC()
	r := &models.Ride{
		ID:                   newID(),
		PassengerID:          in.PassengerID,
		Status:               models.StatusRequested,
		Pickup:               in.Pickup,
		Dropoff:              in.Dropoff,
		DistanceKm:           in.DistanceKm,
		EstimatedDurationMin: duration,
		Fare:                 breakdown,
		Payment:              models.Payment{Method: in.PaymentMethod, Status: models.PaymentPending},
		Timeline:             models.Timeline{RequestedAt: now},
	}

	if in.PaymentMethod == models.PaymentCard && s.Payments != nil {
		txn, err := s.Payments.Hold(ctx, cents(breakdown.TotalFare), "usd", in.PassengerID)
		if err != nil {
			s.logWarn("card hold failed", "passenger_id", in.PassengerID, "error", err)
		} else {
			r.Payment.TransactionID = txn
		}
	}

	if err := s.Store.CreateRide(ctx, r); err != nil {
		return nil, err
	}

	observability.RidesRequested.Inc()
	observability.FareTotal.Observe(breakdown.TotalFare)
	s.publish(ctx, r, models.EventRideRequested)
	if s.Notifier != nil {
		s.Notifier.BroadcastOpenRide(r)
	}
	return r, nil
}

// Accept delegates the claim to the arbiter and reports the result.
func (s *Service) Accept(ctx context.Context, rideID, driverID string) (*models.Ride, error) {
	r, err := s.Arbiter.Accept(ctx, rideID, driverID)
	if err != nil {
		return nil, err
	}
	s.publish(ctx, r, models.EventRideAccepted)
	return r, nil
}

// Arrive marks the assigned driver at the pickup point.
func (s *Service) Arrive(ctx context.Context, rideID, driverID string) (*models.Ride, error) {
	return s.driverTransition(ctx, rideID, driverID, ActionArrive, models.EventDriverArrived,
		func(r *models.Ride, now time.Time) {
			r.Timeline.ArrivedAt = &now
		})
}

// Start begins the trip.
func (s *Service) Start(ctx context.Context, rideID, driverID string) (*models.Ride, error) {
	return s.driverTransition(ctx, rideID, driverID, ActionStart, models.EventRideStarted,
		func(r *models.Ride, now time.Time) {
			r.Timeline.StartedAt = &now
		})
}

// Complete ends the trip, settles payment, and frees the driver.
func (s *Service) Complete(ctx context.Context, rideID, driverID string) (*models.Ride, error) {
	r, err := s.driverTransition(ctx, rideID, driverID, ActionComplete, models.EventRideCompleted,
		func(r *models.Ride, now time.Time) {
			r.Timeline.CompletedAt = &now
			r.Payment.Status = models.PaymentCompleted
			r.Payment.PaidAt = &now
		})
	if err != nil {
		return nil, err
	}

	if err := s.Store.IncDriverRides(ctx, driverID); err != nil {
		s.logWarn("driver ride count update failed", "driver_id", driverID, "error", err)
	}
	if err := s.Store.IncPassengerRides(ctx, r.PassengerID); err != nil {
		s.logWarn("passenger ride count update failed", "passenger_id", r.PassengerID, "error", err)
	}
	if err := s.Registry.Release(ctx, driverID); err != nil {
		s.logWarn("driver release failed", "driver_id", driverID, "error", err)
	}
	if r.Payment.Method == models.PaymentCard && r.Payment.TransactionID != "" && s.Payments != nil {
		if err := s.Payments.Capture(ctx, r.Payment.TransactionID); err != nil {
			s.logWarn("payment capture failed", "ride_id", r.ID, "error", err)
		}
	}
	observability.RidesCompleted.Inc()
	return r, nil
}

// Cancel moves a non-terminal ride to cancelled. Allowed to the
// passenger and to the assigned driver; the reason is recorded and the
// driver, if any, is released.
func (s *Service) Cancel(ctx context.Context, rideID, actorID, reason string) (*models.Ride, error) {
	r, err := s.Store.GetRide(ctx, rideID)
	if err != nil {
		return nil, err
	}
	role, err := participantRole(r, actorID)
	if err != nil {
		return nil, err
	}
	next, err := Next(r.Status, ActionCancel, role)
	if err != nil {
		return nil, err
	}

	prev := r.Status
	now := time.Now().UTC()
	updated := *r
	updated.Status = next
	updated.Timeline.CancelledAt = &now
	updated.CancellationReason = reason

	swapped, err := s.Store.UpdateRideIf(ctx, &updated, prev)
	if err != nil {
		return nil, err
	}
	if !swapped {
		return nil, &TransitionError{From: prev, Action: ActionCancel}
	}

	if updated.DriverID != nil {
		if err := s.Registry.Release(ctx, *updated.DriverID); err != nil {
			s.logWarn("driver release failed", "driver_id", *updated.DriverID, "error", err)
		}
	}
	if updated.Payment.Method == models.PaymentCard && updated.Payment.TransactionID != "" && s.Payments != nil {
		if err := s.Payments.Cancel(ctx, updated.Payment.TransactionID); err != nil {
			s.logWarn("payment hold release failed", "ride_id", updated.ID, "error", err)
		}
	}
	observability.RidesCancelled.Inc()
	s.publish(ctx, &updated, models.EventRideCancelled)
	return &updated, nil
}

// Rate records a rating for a completed ride. Each side may rate once;
// a second attempt is rejected.
func (s *Service) Rate(ctx context.Context, rideID, actorID string, stars float64, review string) (*models.Ride, error) {
	r, err := s.Store.GetRide(ctx, rideID)
	if err != nil {
		return nil, err
	}
	role, err := participantRole(r, actorID)
	if err != nil {
		return nil, err
	}
	if r.Status != models.StatusCompleted {
		return nil, &TransitionError{From: r.Status, Action: "rate"}
	}

	updated := *r
	switch role {
	case models.RolePassenger:
		if updated.Rating.PassengerRating != nil {
			return nil, ErrAlreadyRated
		}
		updated.Rating.PassengerRating = &stars
		updated.Rating.PassengerReview = review
	case models.RoleDriver:
		if updated.Rating.DriverRating != nil {
			return nil, ErrAlreadyRated
		}
		updated.Rating.DriverRating = &stars
		updated.Rating.DriverReview = review
	}

	swapped, err := s.Store.UpdateRideIf(ctx, &updated, models.StatusCompleted)
	if err != nil {
		return nil, err
	}
	if !swapped {
		return nil, &TransitionError{From: r.Status, Action: "rate"}
	}
	return &updated, nil
}

// Get returns a ride to one of its participants.
func (s *Service) Get(ctx context.Context, rideID, actorID string) (*models.Ride, error) {
	r, err := s.Store.GetRide(ctx, rideID)
	if err != nil {
		return nil, err
	}
	if _, err := participantRole(r, actorID); err != nil {
		return nil, err
	}
	return r, nil
}

// ListOpen returns rides still waiting for a driver.
func (s *Service) ListOpen(ctx context.Context, limit int) ([]*models.Ride, error) {
	if limit <= 0 {
		limit = 20
	}
	return s.Store.ListOpenRides(ctx, limit)
}

// driverTransition is the shared shape of arrive/start/complete: load
// the latest record, verify the actor is the assigned driver, resolve
// the transition table, stamp, and swap conditionally on the status the
// decision was made against.
func (s *Service) driverTransition(ctx context.Context, rideID, driverID string, action Action, event string, stamp func(*models.Ride, time.Time)) (*models.Ride, error) {
	r, err := s.Store.GetRide(ctx, rideID)
	if err != nil {
		return nil, err
	}
	if !r.AssignedTo(driverID) {
		return nil, ErrNotParticipant
	}
	next, err := Next(r.Status, action, models.RoleDriver)
	if err != nil {
		return nil, err
	}

	prev := r.Status
	now := time.Now().UTC()
	updated := *r
	updated.Status = next
	stamp(&updated, now)

	swapped, err := s.Store.UpdateRideIf(ctx, &updated, prev)
	if err != nil {
		return nil, err
	}
	if !swapped {
		// a concurrent transition (typically a cancellation) won
		return nil, &TransitionError{From: prev, Action: action}
	}
	s.publish(ctx, &updated, event)
	return &updated, nil
}

func participantRole(r *models.Ride, actorID string) (models.Role, error) {
	switch {
	case actorID == r.PassengerID:
		return models.RolePassenger, nil
	case r.AssignedTo(actorID):
		return models.RoleDriver, nil
	}
	return "", ErrNotParticipant
}

func (s *Service) publish(ctx context.Context, r *models.Ride, event string) {
	if s.Events == nil {
		return
	}
	evt := models.RideEvent{
		RideID:      r.ID,
		Type:        event,
		Status:      r.Status,
		PassengerID: r.PassengerID,
		At:          time.Now().UTC(),
	}
	if r.DriverID != nil {
		evt.DriverID = *r.DriverID
	}
	if err := s.Events.PublishRideEvent(ctx, evt); err != nil {
		s.logWarn("event publish failed", "ride_id", r.ID, "event", event, "error", err)
	}
}

func (s *Service) logWarn(msg string, args ...any) {
	if s.Log != nil {
		s.Log.Warn(msg, args...)
	}
}

func cents(amount float64) int64 { return int64(amount*100 + 0.5) }

func newID() string {
	b := make([]byte, 8)
	_, _ = rand.Read(b)
	return hex.EncodeToString(b)
}

package models

import "time"

type RideStatus string

const (
	StatusRequested RideStatus = "requested"
	StatusAccepted  RideStatus = "accepted"
	StatusArrived   RideStatus = "arrived"
	StatusStarted   RideStatus = "started"
	StatusCompleted RideStatus = "completed"
	StatusCancelled RideStatus = "cancelled"
)

// Terminal reports whether no further transitions are permitted.
func (s RideStatus) Terminal() bool {
	return s == StatusCompleted || s == StatusCancelled
}

type Role string

const (
	RolePassenger Role = "passenger"
	RoleDriver    Role = "driver"
)

type PaymentMethod string

const (
	PaymentCash PaymentMethod = "cash"
	PaymentCard PaymentMethod = "card"
)

type PaymentStatus string

const (
	PaymentPending   PaymentStatus = "pending"
	PaymentCompleted PaymentStatus = "completed"
	PaymentCancelled PaymentStatus = "cancelled"
)

type Location struct {
	Lng     float64 `json:"lng"`
	Lat     float64 `json:"lat"`
	Address string  `json:"address"`
}

type FareBreakdown struct {
	BaseFare        float64 `json:"base_fare"`
	DistanceFare    float64 `json:"distance_fare"`
	TimeFare        float64 `json:"time_fare"`
	SurgeMultiplier float64 `json:"surge_multiplier"`
	TotalFare       float64 `json:"total_fare"`
}

type Payment struct {
	Method        PaymentMethod `json:"method"`
	Status        PaymentStatus `json:"status"`
	TransactionID string        `json:"transaction_id,omitempty"`
	PaidAt        *time.Time    `json:"paid_at,omitempty"`
}

// Timeline stamps are set exactly once, at the moment of the
// corresponding transition.
type Timeline struct {
	RequestedAt time.Time  `json:"requested_at"`
	AcceptedAt  *time.Time `json:"accepted_at,omitempty"`
	ArrivedAt   *time.Time `json:"arrived_at,omitempty"`
	StartedAt   *time.Time `json:"started_at,omitempty"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
	CancelledAt *time.Time `json:"cancelled_at,omitempty"`
}

type Rating struct {
	PassengerRating *float64 `json:"passenger_rating,omitempty"`
	DriverRating    *float64 `json:"driver_rating,omitempty"`
	PassengerReview string   `json:"passenger_review,omitempty"`
	DriverReview    string   `json:"driver_review,omitempty"`
}

// Ride is the central entity. DriverID is set exactly once by a
// successful accept and never cleared afterwards, even on cancellation,
// so terminal rides keep their audit trail.
type Ride struct {
	ID                   string        `json:"id"`
	PassengerID          string        `json:"passenger_id"`
	DriverID             *string       `json:"driver_id,omitempty"`
	Status               RideStatus    `json:"status"`
	Pickup               Location      `json:"pickup"`
	Dropoff              Location      `json:"dropoff"`
	DistanceKm           float64       `json:"distance_km"`
	EstimatedDurationMin float64       `json:"estimated_duration_min"`
	Fare                 FareBreakdown `json:"fare"`
	Payment              Payment       `json:"payment"`
	Timeline             Timeline      `json:"timeline"`
	CancellationReason   string        `json:"cancellation_reason,omitempty"`
	Rating               Rating        `json:"rating"`
}

// AssignedTo reports whether driverID is the driver recorded on the ride.
func (r *Ride) AssignedTo(driverID string) bool {
	return r.DriverID != nil && *r.DriverID == driverID
}

// Active reports whether the ride currently occupies a driver.
func (r *Ride) Active() bool {
	switch r.Status {
	case StatusAccepted, StatusArrived, StatusStarted:
		return true
	}
	return false
}

type Driver struct {
	ID         string  `json:"id"`
	Online     bool    `json:"online"`
	Available  bool    `json:"available"`
	Rating     float64 `json:"rating"` // 0..5
	TotalRides int     `json:"total_rides"`
}

type Passenger struct {
	ID         string  `json:"id"`
	Rating     float64 `json:"rating"`
	TotalRides int     `json:"total_rides"`
}

// RideEvent is published to Kafka on every lifecycle transition and
// consumed to keep the surge demand window current.
type RideEvent struct {
	RideID      string     `json:"ride_id"`
	Type        string     `json:"type"`
	Status      RideStatus `json:"status"`
	PassengerID string     `json:"passenger_id"`
	DriverID    string     `json:"driver_id,omitempty"`
	At          time.Time  `json:"at"`
}

const (
	EventRideRequested = "ride_requested"
	EventRideAccepted  = "ride_accepted"
	EventDriverArrived = "driver_arrived"
	EventRideStarted   = "ride_started"
	EventRideCompleted = "ride_completed"
	EventRideCancelled = "ride_cancelled"
)

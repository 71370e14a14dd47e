package dispatch

import (
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/Malungisa-Mndzebele/taxi-sub000/internal/models"
)

// OpenRideNotice is what connected drivers see when a new request
// enters the pool. Enough to decide whether to claim; the full record
// comes from the accept call.
type OpenRideNotice struct {
	RideID      string                `json:"ride_id"`
	Pickup      models.Location       `json:"pickup"`
	Dropoff     models.Location       `json:"dropoff"`
	DistanceKm  float64               `json:"distance_km"`
	FareQuote   float64               `json:"fare_quote"`
	RequestedAt string                `json:"requested_at"`
}

// WSSession is a connected driver socket. Writes are serialized per
// connection; gorilla/websocket does not allow concurrent writers.
type WSSession struct {
	conn *websocket.Conn
	mu   sync.Mutex
}

func (s *WSSession) send(n OpenRideNotice) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.conn.WriteJSON(n)
}

// WSRegistry holds driver sessions and fans open-request notices out to
// all of them. Delivery is best effort; the authoritative path is the
// drivers' own polling of open rides.
type WSRegistry struct {
	mu       sync.RWMutex
	sessions map[string]*WSSession
	log      *slog.Logger
}

func NewWSRegistry(log *slog.Logger) *WSRegistry {
	return &WSRegistry{sessions: make(map[string]*WSSession), log: log}
}

func (r *WSRegistry) Add(driverID string, conn *websocket.Conn) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if old, ok := r.sessions[driverID]; ok {
		_ = old.conn.Close()
	}
	r.sessions[driverID] = &WSSession{conn: conn}
}

func (r *WSRegistry) Remove(driverID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if s, ok := r.sessions[driverID]; ok {
		_ = s.conn.Close()
		delete(r.sessions, driverID)
	}
}

// BroadcastOpenRide notifies every connected driver of a new request.
func (r *WSRegistry) BroadcastOpenRide(ride *models.Ride) {
	notice := OpenRideNotice{
		RideID:      ride.ID,
		Pickup:      ride.Pickup,
		Dropoff:     ride.Dropoff,
		DistanceKm:  ride.DistanceKm,
		FareQuote:   ride.Fare.TotalFare,
		RequestedAt: ride.Timeline.RequestedAt.Format(time.RFC3339),
	}

	r.mu.RLock()
	targets := make(map[string]*WSSession, len(r.sessions))
	for id, s := range r.sessions {
		targets[id] = s
	}
	r.mu.RUnlock()

	for id, s := range targets {
		if err := s.send(notice); err != nil {
			if r.log != nil {
				r.log.Warn("ws send failed, dropping session", "driver_id", id, "error", err)
			}
			r.Remove(id)
		}
	}
}

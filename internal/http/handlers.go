package httpapi

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/Malungisa-Mndzebele/taxi-sub000/internal/availability"
	"github.com/Malungisa-Mndzebele/taxi-sub000/internal/dispatch"
	"github.com/Malungisa-Mndzebele/taxi-sub000/internal/models"
	"github.com/Malungisa-Mndzebele/taxi-sub000/internal/ride"
	"github.com/Malungisa-Mndzebele/taxi-sub000/internal/storage"
)

// Server exposes the dispatch core over HTTP. Authentication is an
// upstream concern; the identity middleware only resolves the caller
// already vouched for by the gateway.
type Server struct {
	Rides    *ride.Service
	Registry *availability.Registry
	WSReg    *dispatch.WSRegistry

	openLimit int
	logger    *slog.Logger
	mux       *mux.Router
}

func NewServer(rides *ride.Service, registry *availability.Registry, wsreg *dispatch.WSRegistry, openLimit int, logger *slog.Logger) *Server {
	if openLimit <= 0 {
		openLimit = 20
	}
	s := &Server{
		Rides:     rides,
		Registry:  registry,
		WSReg:     wsreg,
		openLimit: openLimit,
		logger:    logger,
		mux:       mux.NewRouter(),
	}
	s.registerMiddleware()
	s.routes()
	return s
}

func (s *Server) routes() {
	s.mux.HandleFunc("/rides/request", s.requireRole(models.RolePassenger, s.handleRideRequest)).Methods("POST")
	s.mux.HandleFunc("/rides/open", s.requireRole(models.RoleDriver, s.handleOpenRides)).Methods("GET")
	s.mux.HandleFunc("/rides/{id}", s.requireCaller(s.handleGetRide)).Methods("GET")
	s.mux.HandleFunc("/rides/{id}/accept", s.requireRole(models.RoleDriver, s.handleAccept)).Methods("POST")
	s.mux.HandleFunc("/rides/{id}/arrive", s.requireRole(models.RoleDriver, s.handleArrive)).Methods("POST")
	s.mux.HandleFunc("/rides/{id}/start", s.requireRole(models.RoleDriver, s.handleStart)).Methods("POST")
	s.mux.HandleFunc("/rides/{id}/complete", s.requireRole(models.RoleDriver, s.handleComplete)).Methods("POST")
	s.mux.HandleFunc("/rides/{id}/cancel", s.requireCaller(s.handleCancel)).Methods("POST")
	s.mux.HandleFunc("/rides/{id}/rate", s.requireCaller(s.handleRate)).Methods("POST")
	s.mux.HandleFunc("/drivers/status", s.requireRole(models.RoleDriver, s.handleDriverStatus)).Methods("PUT")
	s.mux.HandleFunc("/ws/drivers/{driver_id}", s.handleWS)
	s.mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(200); w.Write([]byte("ok")) }).Methods("GET")
	s.mux.Handle("/metrics", promhttp.Handler())
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) { s.mux.ServeHTTP(w, r) }

func (s *Server) handleRideRequest(w http.ResponseWriter, r *http.Request, caller Caller) {
	var body rideRequestBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if problems := body.Validate(); len(problems) > 0 {
		s.writeValidation(w, problems)
		return
	}

	created, err := s.Rides.Request(r.Context(), ride.RequestInput{
		PassengerID:          caller.ID,
		Pickup:               body.PickupLocation.toModel(),
		Dropoff:              body.DropoffLocation.toModel(),
		DistanceKm:           body.Distance,
		EstimatedDurationMin: body.EstimatedDuration,
		PaymentMethod:        models.PaymentMethod(body.PaymentMethod),
		SurgeMultiplier:      body.SurgeMultiplier,
	})
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	s.writeJSON(w, http.StatusCreated, created)
}

func (s *Server) handleOpenRides(w http.ResponseWriter, r *http.Request, _ Caller) {
	rides, err := s.Rides.ListOpen(r.Context(), s.openLimit)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"rides": rides})
}

func (s *Server) handleGetRide(w http.ResponseWriter, r *http.Request, caller Caller) {
	got, err := s.Rides.Get(r.Context(), mux.Vars(r)["id"], caller.ID)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, got)
}

func (s *Server) handleAccept(w http.ResponseWriter, r *http.Request, caller Caller) {
	accepted, err := s.Rides.Accept(r.Context(), mux.Vars(r)["id"], caller.ID)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, accepted)
}

func (s *Server) handleArrive(w http.ResponseWriter, r *http.Request, caller Caller) {
	s.lifecycle(w, r, caller, s.Rides.Arrive)
}

func (s *Server) handleStart(w http.ResponseWriter, r *http.Request, caller Caller) {
	s.lifecycle(w, r, caller, s.Rides.Start)
}

func (s *Server) handleComplete(w http.ResponseWriter, r *http.Request, caller Caller) {
	s.lifecycle(w, r, caller, s.Rides.Complete)
}

func (s *Server) lifecycle(w http.ResponseWriter, r *http.Request, caller Caller, op func(context.Context, string, string) (*models.Ride, error)) {
	updated, err := op(r.Context(), mux.Vars(r)["id"], caller.ID)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, updated)
}

func (s *Server) handleCancel(w http.ResponseWriter, r *http.Request, caller Caller) {
	var body cancelBody
	if r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			s.writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
	}
	if problems := body.Validate(); len(problems) > 0 {
		s.writeValidation(w, problems)
		return
	}
	cancelled, err := s.Rides.Cancel(r.Context(), mux.Vars(r)["id"], caller.ID, body.Reason)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, cancelled)
}

func (s *Server) handleRate(w http.ResponseWriter, r *http.Request, caller Caller) {
	var body rateBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if problems := body.Validate(); len(problems) > 0 {
		s.writeValidation(w, problems)
		return
	}
	rated, err := s.Rides.Rate(r.Context(), mux.Vars(r)["id"], caller.ID, body.Rating, body.Review)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, rated)
}

func (s *Server) handleDriverStatus(w http.ResponseWriter, r *http.Request, caller Caller) {
	var body driverStatusBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if problems := body.Validate(); len(problems) > 0 {
		s.writeValidation(w, problems)
		return
	}

	ctx := r.Context()
	var d *models.Driver
	var err error
	if body.IsOnline != nil {
		if d, err = s.Registry.SetOnline(ctx, caller.ID, *body.IsOnline); err != nil {
			s.writeDomainError(w, err)
			return
		}
	}
	if body.IsAvailable != nil {
		if d, err = s.Registry.SetAvailable(ctx, caller.ID, *body.IsAvailable); err != nil {
			s.writeDomainError(w, err)
			return
		}
	}
	s.writeJSON(w, http.StatusOK, map[string]any{
		"status": map[string]bool{"isOnline": d.Online, "isAvailable": d.Available},
	})
}

var upgrader = websocket.Upgrader{}

func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	driverID := mux.Vars(r)["driver_id"]
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, "upgrade failed")
		return
	}
	s.WSReg.Add(driverID, conn)
	go func() {
		// drain until the peer goes away, then drop the session
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				s.WSReg.Remove(driverID)
				return
			}
		}
	}()
}

// writeDomainError maps the error taxonomy onto HTTP statuses. Conflict
// outcomes keep the exact client-facing messages the mobile apps match
// on.
func (s *Server) writeDomainError(w http.ResponseWriter, err error) {
	var te *ride.TransitionError
	switch {
	case errors.Is(err, ride.ErrRideNotAvailable):
		s.writeError(w, http.StatusBadRequest, "Ride is no longer available")
	case errors.Is(err, ride.ErrDriverOffline):
		s.writeError(w, http.StatusBadRequest, "Driver must be online to accept rides")
	case errors.Is(err, ride.ErrDriverUnavailable):
		s.writeError(w, http.StatusBadRequest, "Driver is not available")
	case errors.Is(err, ride.ErrNotParticipant):
		s.writeError(w, http.StatusForbidden, "not allowed for this ride")
	case errors.Is(err, ride.ErrAlreadyRated):
		s.writeError(w, http.StatusBadRequest, "ride already rated")
	case errors.Is(err, availability.ErrOffline):
		s.writeError(w, http.StatusBadRequest, "driver is offline")
	case errors.Is(err, availability.ErrActiveRide):
		s.writeError(w, http.StatusBadRequest, "driver has an active ride")
	case errors.As(err, &te):
		s.writeError(w, http.StatusBadRequest, te.Error())
	case errors.Is(err, storage.ErrRideNotFound),
		errors.Is(err, storage.ErrDriverNotFound),
		errors.Is(err, storage.ErrPassengerNotFound):
		s.writeError(w, http.StatusNotFound, err.Error())
	default:
		s.logger.Error("request failed", "error", err)
		s.writeError(w, http.StatusInternalServerError, "internal error")
	}
}

func (s *Server) writeValidation(w http.ResponseWriter, problems []string) {
	s.writeJSON(w, http.StatusBadRequest, map[string]any{
		"message": "validation failed",
		"errors":  problems,
	})
}

func (s *Server) writeError(w http.ResponseWriter, status int, message string) {
	s.writeJSON(w, status, map[string]string{"message": message})
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func newID() string { b := make([]byte, 8); _, _ = rand.Read(b); return hex.EncodeToString(b) }

package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/Malungisa-Mndzebele/taxi-sub000/internal/arbiter"
	"github.com/Malungisa-Mndzebele/taxi-sub000/internal/availability"
	"github.com/Malungisa-Mndzebele/taxi-sub000/internal/dispatch"
	"github.com/Malungisa-Mndzebele/taxi-sub000/internal/models"
	"github.com/Malungisa-Mndzebele/taxi-sub000/internal/ride"
	"github.com/Malungisa-Mndzebele/taxi-sub000/internal/storage"
)

func newTestServer(t *testing.T) (*Server, *storage.MemoryStore) {
	t.Helper()
	store := storage.NewMemoryStore()
	logger := slog.New(slog.NewTextHandler(bytes.NewBuffer(nil), nil))
	registry := &availability.Registry{Store: store, Rides: store, Log: logger}
	svc := &ride.Service{
		Store:    store,
		Arbiter:  &arbiter.Arbiter{Store: store, Log: logger},
		Registry: registry,
		Log:      logger,
	}
	return NewServer(svc, registry, dispatch.NewWSRegistry(logger), 20, logger), store
}

func doJSON(t *testing.T, s *Server, method, path, userID string, role models.Role, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatal(err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if userID != "" {
		req.Header.Set("X-User-ID", userID)
		req.Header.Set("X-User-Role", string(role))
	}
	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, req)
	return rec
}

func validRequestBody() map[string]any {
	return map[string]any{
		"pickupLocation":    map[string]any{"coordinates": []float64{-122.42, 37.77}, "address": "Market St"},
		"dropoffLocation":   map[string]any{"coordinates": []float64{-122.39, 37.79}, "address": "Embarcadero"},
		"distance":          15.5,
		"estimatedDuration": 25,
		"paymentMethod":     "cash",
	}
}

func TestRideRequestCreated(t *testing.T) {
	s, _ := newTestServer(t)
	rec := doJSON(t, s, "POST", "/rides/request", "p1", models.RolePassenger, validRequestBody())
	if rec.Code != http.StatusCreated {
		t.Fatalf("status %d body %s", rec.Code, rec.Body.String())
	}
	var got models.Ride
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatal(err)
	}
	if got.Status != models.StatusRequested {
		t.Fatalf("status: %s", got.Status)
	}
	if got.Fare.TotalFare != 32.75 {
		t.Fatalf("fare: %v", got.Fare.TotalFare)
	}
}

func TestRideRequestValidationList(t *testing.T) {
	s, _ := newTestServer(t)
	body := map[string]any{
		"pickupLocation":  map[string]any{"coordinates": []float64{200, 95}},
		"dropoffLocation": map[string]any{},
		"distance":        -1,
		"paymentMethod":   "gold",
	}
	rec := doJSON(t, s, "POST", "/rides/request", "p1", models.RolePassenger, body)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status %d", rec.Code)
	}
	var resp struct {
		Message string   `json:"message"`
		Errors  []string `json:"errors"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if len(resp.Errors) < 4 {
		t.Fatalf("expected the full problem list, got %v", resp.Errors)
	}
}

func TestAcceptErrorMessages(t *testing.T) {
	s, store := newTestServer(t)
	ctx := context.Background()

	rec := doJSON(t, s, "POST", "/rides/request", "p1", models.RolePassenger, validRequestBody())
	var created models.Ride
	if err := json.Unmarshal(rec.Body.Bytes(), &created); err != nil {
		t.Fatal(err)
	}

	// unknown driver -> surfaced as not found
	if rec := doJSON(t, s, "POST", "/rides/"+created.ID+"/accept", "ghost", models.RoleDriver, nil); rec.Code != http.StatusNotFound {
		t.Fatalf("unknown driver: status %d", rec.Code)
	}

	if err := store.SaveDriver(ctx, &models.Driver{ID: "d-off", Online: false}); err != nil {
		t.Fatal(err)
	}
	rec = doJSON(t, s, "POST", "/rides/"+created.ID+"/accept", "d-off", models.RoleDriver, nil)
	if rec.Code != http.StatusBadRequest || !strings.Contains(rec.Body.String(), "Driver must be online to accept rides") {
		t.Fatalf("offline: status %d body %s", rec.Code, rec.Body.String())
	}

	if err := store.SaveDriver(ctx, &models.Driver{ID: "d-busy", Online: true, Available: false}); err != nil {
		t.Fatal(err)
	}
	rec = doJSON(t, s, "POST", "/rides/"+created.ID+"/accept", "d-busy", models.RoleDriver, nil)
	if rec.Code != http.StatusBadRequest || !strings.Contains(rec.Body.String(), "Driver is not available") {
		t.Fatalf("busy: status %d body %s", rec.Code, rec.Body.String())
	}

	if err := store.SaveDriver(ctx, &models.Driver{ID: "d1", Online: true, Available: true}); err != nil {
		t.Fatal(err)
	}
	if rec := doJSON(t, s, "POST", "/rides/"+created.ID+"/accept", "d1", models.RoleDriver, nil); rec.Code != http.StatusOK {
		t.Fatalf("accept: status %d body %s", rec.Code, rec.Body.String())
	}

	// a second driver loses the race
	if err := store.SaveDriver(ctx, &models.Driver{ID: "d2", Online: true, Available: true}); err != nil {
		t.Fatal(err)
	}
	rec = doJSON(t, s, "POST", "/rides/"+created.ID+"/accept", "d2", models.RoleDriver, nil)
	if rec.Code != http.StatusBadRequest || !strings.Contains(rec.Body.String(), "Ride is no longer available") {
		t.Fatalf("loser: status %d body %s", rec.Code, rec.Body.String())
	}
}

func TestWrongActorForbidden(t *testing.T) {
	s, store := newTestServer(t)
	ctx := context.Background()
	if err := store.SaveDriver(ctx, &models.Driver{ID: "d1", Online: true, Available: true}); err != nil {
		t.Fatal(err)
	}
	if err := store.SaveDriver(ctx, &models.Driver{ID: "d2", Online: true, Available: true}); err != nil {
		t.Fatal(err)
	}

	rec := doJSON(t, s, "POST", "/rides/request", "p1", models.RolePassenger, validRequestBody())
	var created models.Ride
	if err := json.Unmarshal(rec.Body.Bytes(), &created); err != nil {
		t.Fatal(err)
	}
	if rec := doJSON(t, s, "POST", "/rides/"+created.ID+"/accept", "d1", models.RoleDriver, nil); rec.Code != http.StatusOK {
		t.Fatal("accept failed")
	}

	if rec := doJSON(t, s, "POST", "/rides/"+created.ID+"/arrive", "d2", models.RoleDriver, nil); rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403 for the wrong driver, got %d", rec.Code)
	}
	// request without identity headers is rejected outright
	if rec := doJSON(t, s, "POST", "/rides/"+created.ID+"/arrive", "", "", nil); rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
	// a passenger cannot hit driver-only endpoints
	if rec := doJSON(t, s, "POST", "/rides/"+created.ID+"/arrive", "p1", models.RolePassenger, nil); rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403 for wrong role, got %d", rec.Code)
	}
}

func TestDriverStatusEndpoint(t *testing.T) {
	s, store := newTestServer(t)
	if err := store.SaveDriver(context.Background(), &models.Driver{ID: "d1"}); err != nil {
		t.Fatal(err)
	}

	on, avail := true, true
	rec := doJSON(t, s, "PUT", "/drivers/status", "d1", models.RoleDriver, map[string]any{"isOnline": &on, "isAvailable": &avail})
	if rec.Code != http.StatusOK {
		t.Fatalf("status %d body %s", rec.Code, rec.Body.String())
	}
	var resp struct {
		Status struct {
			IsOnline    bool `json:"isOnline"`
			IsAvailable bool `json:"isAvailable"`
		} `json:"status"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if !resp.Status.IsOnline || !resp.Status.IsAvailable {
		t.Fatalf("unexpected status %+v", resp.Status)
	}

	if rec := doJSON(t, s, "PUT", "/drivers/status", "d1", models.RoleDriver, map[string]any{}); rec.Code != http.StatusBadRequest {
		t.Fatalf("empty body: status %d", rec.Code)
	}
}

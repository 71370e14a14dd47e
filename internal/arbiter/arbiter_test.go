package arbiter

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/Malungisa-Mndzebele/taxi-sub000/internal/models"
	"github.com/Malungisa-Mndzebele/taxi-sub000/internal/ride"
	"github.com/Malungisa-Mndzebele/taxi-sub000/internal/storage"
)

func seed(t *testing.T, store *storage.MemoryStore, drivers int) {
	t.Helper()
	ctx := context.Background()
	r := &models.Ride{
		ID:          "ride1",
		PassengerID: "p1",
		Status:      models.StatusRequested,
		Timeline:    models.Timeline{RequestedAt: time.Now()},
	}
	if err := store.CreateRide(ctx, r); err != nil {
		t.Fatal(err)
	}
	for i := 0; i < drivers; i++ {
		d := &models.Driver{ID: fmt.Sprintf("d%d", i), Online: true, Available: true}
		if err := store.SaveDriver(ctx, d); err != nil {
			t.Fatal(err)
		}
	}
}

func TestAcceptExactlyOneWinner(t *testing.T) {
	store := storage.NewMemoryStore()
	const n = 32
	seed(t, store, n)
	a := &Arbiter{Store: store}
	ctx := context.Background()

	var wg sync.WaitGroup
	results := make([]error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, results[i] = a.Accept(ctx, "ride1", fmt.Sprintf("d%d", i))
		}(i)
	}
	wg.Wait()

	var wins int
	var winner string
	for i, err := range results {
		switch {
		case err == nil:
			wins++
			winner = fmt.Sprintf("d%d", i)
		case errors.Is(err, ride.ErrRideNotAvailable):
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if wins != 1 {
		t.Fatalf("expected exactly one winner, got %d", wins)
	}

	r, err := store.GetRide(ctx, "ride1")
	if err != nil {
		t.Fatal(err)
	}
	if r.Status != models.StatusAccepted {
		t.Fatalf("status: got %s", r.Status)
	}
	if r.DriverID == nil || *r.DriverID != winner {
		t.Fatalf("recorded driver %v, winner %s", r.DriverID, winner)
	}
	if r.Timeline.AcceptedAt == nil {
		t.Fatal("acceptedAt not stamped")
	}

	d, err := store.GetDriver(ctx, winner)
	if err != nil {
		t.Fatal(err)
	}
	if d.Available {
		t.Fatal("winning driver should no longer be available")
	}
}

func TestAcceptPreconditions(t *testing.T) {
	store := storage.NewMemoryStore()
	seed(t, store, 1)
	ctx := context.Background()
	a := &Arbiter{Store: store}

	if _, err := a.Accept(ctx, "missing", "d0"); !errors.Is(err, ride.ErrRideNotAvailable) {
		t.Fatalf("unknown ride: got %v", err)
	}

	offline := &models.Driver{ID: "off", Online: false}
	if err := store.SaveDriver(ctx, offline); err != nil {
		t.Fatal(err)
	}
	if _, err := a.Accept(ctx, "ride1", "off"); !errors.Is(err, ride.ErrDriverOffline) {
		t.Fatalf("offline driver: got %v", err)
	}

	busy := &models.Driver{ID: "busy", Online: true, Available: false}
	if err := store.SaveDriver(ctx, busy); err != nil {
		t.Fatal(err)
	}
	if _, err := a.Accept(ctx, "ride1", "busy"); !errors.Is(err, ride.ErrDriverUnavailable) {
		t.Fatalf("busy driver: got %v", err)
	}

	// the failed attempts must not have touched the ride
	r, err := store.GetRide(ctx, "ride1")
	if err != nil {
		t.Fatal(err)
	}
	if r.Status != models.StatusRequested || r.DriverID != nil {
		t.Fatalf("ride mutated by failed accepts: %+v", r)
	}
}

// phase2Store forces the driver swap to fail after a successful ride
// claim, exercising the compensating rollback.
type phase2Store struct {
	*storage.MemoryStore
}

func (p *phase2Store) CompareAndSetAvailable(ctx context.Context, id string, expect, next bool) (bool, error) {
	if !next {
		return false, nil // somebody double-booked the driver
	}
	return p.MemoryStore.CompareAndSetAvailable(ctx, id, expect, next)
}

func TestAcceptRollsBackWhenDriverSwapFails(t *testing.T) {
	mem := storage.NewMemoryStore()
	seed(t, mem, 1)
	ctx := context.Background()
	a := &Arbiter{Store: &phase2Store{MemoryStore: mem}}

	_, err := a.Accept(ctx, "ride1", "d0")
	if !errors.Is(err, ride.ErrRideNotAvailable) {
		t.Fatalf("expected ErrRideNotAvailable, got %v", err)
	}

	r, err := mem.GetRide(ctx, "ride1")
	if err != nil {
		t.Fatal(err)
	}
	if r.Status != models.StatusRequested {
		t.Fatalf("claim not rolled back, status %s", r.Status)
	}
	if r.DriverID != nil {
		t.Fatalf("driverId not cleared: %v", *r.DriverID)
	}
	if r.Timeline.AcceptedAt != nil {
		t.Fatal("acceptedAt not cleared")
	}
}

func TestAcceptIsIdempotentForLosers(t *testing.T) {
	store := storage.NewMemoryStore()
	seed(t, store, 2)
	ctx := context.Background()
	a := &Arbiter{Store: store}

	if _, err := a.Accept(ctx, "ride1", "d0"); err != nil {
		t.Fatal(err)
	}
	// the loser can retry as often as it likes, same answer every time
	for i := 0; i < 3; i++ {
		if _, err := a.Accept(ctx, "ride1", "d1"); !errors.Is(err, ride.ErrRideNotAvailable) {
			t.Fatalf("retry %d: got %v", i, err)
		}
	}
	d, err := store.GetDriver(ctx, "d1")
	if err != nil {
		t.Fatal(err)
	}
	if !d.Available {
		t.Fatal("losing driver must stay available")
	}
}

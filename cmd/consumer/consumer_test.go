package main

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/Malungisa-Mndzebele/taxi-sub000/internal/models"
)

// fakeUpdater implements SurgeUpdater for tests
type fakeUpdater struct {
	failRecord  int // number of times to fail RecordRequest before succeeding
	recordCalls int
	driverCalls int
	lastDriver  string
	lastAvail   bool
}

func (f *fakeUpdater) RecordRequest(ctx context.Context, rideID string, at time.Time) error {
	f.recordCalls++
	if f.recordCalls <= f.failRecord {
		return errors.New("record fail")
	}
	return nil
}

func (f *fakeUpdater) DriverAvailable(ctx context.Context, driverID string, available bool) error {
	f.driverCalls++
	f.lastDriver = driverID
	f.lastAvail = available
	return nil
}

func TestApplySurgeWithRetry_SucceedsAfterRetries(t *testing.T) {
	f := &fakeUpdater{failRecord: 1}
	evt := &models.RideEvent{RideID: "r1", Type: models.EventRideRequested, At: time.Now()}
	start := time.Now()
	if err := applySurgeWithRetry(context.Background(), f, evt, 3, 10*time.Millisecond); err != nil {
		t.Fatalf("expected success, got err=%v", err)
	}
	if f.recordCalls < 2 {
		t.Fatalf("expected retries, got %d calls", f.recordCalls)
	}
	if time.Since(start) < 10*time.Millisecond {
		t.Fatalf("expected at least one backoff")
	}
}

func TestApplySurgeWithRetry_FailsWhenExhausted(t *testing.T) {
	f := &fakeUpdater{failRecord: 5}
	evt := &models.RideEvent{RideID: "r1", Type: models.EventRideRequested, At: time.Now()}
	if err := applySurgeWithRetry(context.Background(), f, evt, 3, 5*time.Millisecond); err == nil {
		t.Fatalf("expected error after retries")
	}
}

func TestApplySurge_TerminalEventsRestoreSupply(t *testing.T) {
	f := &fakeUpdater{}
	evt := &models.RideEvent{RideID: "r1", Type: models.EventRideCompleted, DriverID: "d1"}
	if err := applySurgeWithRetry(context.Background(), f, evt, 1, 0); err != nil {
		t.Fatal(err)
	}
	if f.lastDriver != "d1" || !f.lastAvail {
		t.Fatalf("expected d1 back in supply, got %s avail=%v", f.lastDriver, f.lastAvail)
	}

	// cancellation before any driver was assigned is a no-op
	f2 := &fakeUpdater{}
	evt2 := &models.RideEvent{RideID: "r2", Type: models.EventRideCancelled}
	if err := applySurgeWithRetry(context.Background(), f2, evt2, 1, 0); err != nil {
		t.Fatal(err)
	}
	if f2.driverCalls != 0 {
		t.Fatalf("expected no supply change, got %d calls", f2.driverCalls)
	}
}

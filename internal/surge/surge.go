package surge

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/Malungisa-Mndzebele/taxi-sub000/internal/fare"
)

const (
	requestsKey = "surge:requests"
	driversKey  = "surge:drivers"
)

// Tracker keeps the surge inputs in Redis: demand is the count of ride
// requests inside a sliding window, supply is the set of currently
// available drivers. Both are shared across server instances, so every
// process quotes from the same picture.
type Tracker struct {
	client *redis.Client
	window time.Duration
}

func NewTracker(addr, password string, window time.Duration) *Tracker {
	c := redis.NewClient(&redis.Options{Addr: addr, Password: password})
	return &Tracker{client: c, window: window}
}

// NewTrackerWithClient is used by the consumer, which shares one client
// with its readiness probe.
func NewTrackerWithClient(c *redis.Client, window time.Duration) *Tracker {
	return &Tracker{client: c, window: window}
}

func (t *Tracker) Ping(ctx context.Context) error {
	return t.client.Ping(ctx).Err()
}

func (t *Tracker) Close() error { return t.client.Close() }

// RecordRequest registers one ride request in the demand window and
// trims entries that fell out of it.
func (t *Tracker) RecordRequest(ctx context.Context, rideID string, at time.Time) error {
	score := float64(at.UnixMilli())
	if err := t.client.ZAdd(ctx, requestsKey, redis.Z{Score: score, Member: rideID}).Err(); err != nil {
		return err
	}
	cutoff := at.Add(-t.window).UnixMilli()
	return t.client.ZRemRangeByScore(ctx, requestsKey, "-inf", fmt.Sprintf("%d", cutoff)).Err()
}

// DriverAvailable mirrors a driver's availability into the supply set.
func (t *Tracker) DriverAvailable(ctx context.Context, driverID string, available bool) error {
	if available {
		return t.client.SAdd(ctx, driversKey, driverID).Err()
	}
	return t.client.SRem(ctx, driversKey, driverID).Err()
}

// Current computes the surge multiplier from the live demand/supply
// counts and the wall-clock time of day.
func (t *Tracker) Current(ctx context.Context) (float64, error) {
	now := time.Now()
	cutoff := fmt.Sprintf("%d", now.Add(-t.window).UnixMilli())
	demand, err := t.client.ZCount(ctx, requestsKey, cutoff, "+inf").Result()
	if err != nil {
		return 0, err
	}
	supply, err := t.client.SCard(ctx, driversKey).Result()
	if err != nil {
		return 0, err
	}
	return fare.SurgeMultiplier(fare.SurgeInputs{
		Demand:    int(demand),
		Supply:    int(supply),
		TimeOfDay: fare.TimeOfDay(now.Hour()),
	}), nil
}

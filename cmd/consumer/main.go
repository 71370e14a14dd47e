package main

import (
	"context"
	"encoding/json"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/segmentio/kafka-go"

	"github.com/Malungisa-Mndzebele/taxi-sub000/internal/models"
	"github.com/Malungisa-Mndzebele/taxi-sub000/internal/surge"
)

var (
	msgsConsumed = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "consumer_messages_consumed_total",
		Help: "Total ride lifecycle events consumed",
	})
	msgsInvalid = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "consumer_messages_invalid_total",
		Help: "Total invalid messages received",
	})
	surgeUpdates = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "consumer_surge_updates_total",
		Help: "Total successful surge window updates",
	})
	surgeErrors = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "consumer_surge_errors_total",
		Help: "Total surge window update errors",
	})
)

func init() {
	prometheus.MustRegister(msgsConsumed, msgsInvalid, surgeUpdates, surgeErrors)
}

func main() {
	// allow some flags for local runs
	var metricsAddr string
	flag.StringVar(&metricsAddr, "metrics-addr", ":2112", "address to serve prometheus metrics on")
	flag.Parse()

	brokersEnv := os.Getenv("KAFKA_BROKERS")
	if brokersEnv == "" {
		brokersEnv = os.Getenv("KAFKA_BROKER")
	}
	brokers := []string{}
	if brokersEnv != "" {
		for _, b := range strings.Split(brokersEnv, ",") {
			if s := strings.TrimSpace(b); s != "" {
				brokers = append(brokers, s)
			}
		}
	} else {
		brokers = []string{"localhost:9092"}
	}

	topic := os.Getenv("KAFKA_TOPIC")
	if topic == "" {
		topic = "ride-events"
	}
	group := os.Getenv("KAFKA_GROUP")
	if group == "" {
		group = "ride-hailing-surge"
	}

	redisAddr := os.Getenv("REDIS_ADDR")
	if redisAddr == "" {
		redisAddr = "localhost:6379"
	}
	window := 15 * time.Minute
	if v := os.Getenv("SURGE_WINDOW"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			window = d
		}
	}
	rc := redis.NewClient(&redis.Options{Addr: redisAddr})
	tracker := surge.NewTrackerWithClient(rc, window)

	// start metrics and health server
	go func() {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.Handler())
		mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(200); w.Write([]byte("ok")) })
		mux.HandleFunc("/ready", func(w http.ResponseWriter, r *http.Request) {
			// readiness: check redis connectivity
			if err := rc.Ping(r.Context()).Err(); err != nil {
				http.Error(w, "redis not ready", 503)
				return
			}
			w.WriteHeader(200)
			w.Write([]byte("ready"))
		})
		log.Printf("metrics/health listening on %s", metricsAddr)
		if err := http.ListenAndServe(metricsAddr, mux); err != nil {
			log.Printf("metrics server stopped: %v", err)
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	r := kafka.NewReader(kafka.ReaderConfig{Brokers: brokers, Topic: topic, GroupID: group, MinBytes: 10e3, MaxBytes: 10e6})
	defer func() {
		_ = r.Close()
		_ = rc.Close()
	}()

	log.Printf("consumer listening topic=%s brokers=%v group=%s", topic, brokers, group)

	backoff := time.Second
	const maxBackoff = 30 * time.Second

	for {
		m, err := r.ReadMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				log.Println("shutting down consumer")
				return
			}
			log.Printf("kafka read error: %v; backing off %s", err, backoff)
			time.Sleep(backoff)
			backoff *= 2
			if backoff > maxBackoff {
				backoff = maxBackoff
			}
			continue
		}
		// reset backoff on success
		backoff = time.Second

		msgsConsumed.Inc()

		var evt models.RideEvent
		if err := json.Unmarshal(m.Value, &evt); err != nil {
			msgsInvalid.Inc()
			log.Printf("invalid message: %v", err)
			continue
		}

		if err := applySurgeWithRetry(ctx, tracker, &evt, 3, 200*time.Millisecond); err != nil {
			surgeErrors.Inc()
			log.Printf("surge update failed for ride=%s: %v", evt.RideID, err)
			continue
		}
		surgeUpdates.Inc()
	}
}

// SurgeUpdater defines the small subset of tracker operations we need
// for tests and production.
type SurgeUpdater interface {
	RecordRequest(ctx context.Context, rideID string, at time.Time) error
	DriverAvailable(ctx context.Context, driverID string, available bool) error
}

// applySurgeWithRetry folds one lifecycle event into the surge window
// with retry/backoff. Requests feed demand; terminal events put the
// driver back into supply.
func applySurgeWithRetry(ctx context.Context, t SurgeUpdater, evt *models.RideEvent, attempts int, delay time.Duration) error {
	apply := func() error {
		switch evt.Type {
		case models.EventRideRequested:
			return t.RecordRequest(ctx, evt.RideID, evt.At)
		case models.EventRideAccepted:
			return t.DriverAvailable(ctx, evt.DriverID, false)
		case models.EventRideCompleted, models.EventRideCancelled:
			if evt.DriverID == "" {
				return nil
			}
			return t.DriverAvailable(ctx, evt.DriverID, true)
		}
		return nil
	}
	var err error
	for i := 0; i < attempts; i++ {
		if err = apply(); err == nil {
			return nil
		}
		if i < attempts-1 {
			time.Sleep(delay)
			delay *= 2
		}
	}
	return err
}

package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	RidesRequested = promauto.NewCounter(prometheus.CounterOpts{Namespace: "ride_hailing", Name: "rides_requested_total", Help: "Total ride requests created"})
	RidesCompleted = promauto.NewCounter(prometheus.CounterOpts{Namespace: "ride_hailing", Name: "rides_completed_total", Help: "Total rides completed"})
	RidesCancelled = promauto.NewCounter(prometheus.CounterOpts{Namespace: "ride_hailing", Name: "rides_cancelled_total", Help: "Total rides cancelled"})

	AcceptAttempts = promauto.NewCounterVec(
		prometheus.CounterOpts{Namespace: "ride_hailing", Name: "accept_attempts_total", Help: "Accept attempts by outcome"},
		[]string{"outcome"},
	)
	AcceptRollbacks = promauto.NewCounter(prometheus.CounterOpts{Namespace: "ride_hailing", Name: "accept_rollbacks_total", Help: "Ride claims reverted after a failed driver swap"})

	FareTotal = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "ride_hailing",
		Name:      "fare_total",
		Help:      "Quoted total fare distribution",
		Buckets:   []float64{5, 10, 20, 40, 80, 160},
	})
	DriversAvailable = promauto.NewGauge(prometheus.GaugeOpts{Namespace: "ride_hailing", Name: "drivers_available", Help: "Drivers currently available"})

	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{Namespace: "ride_hailing", Name: "http_requests_total", Help: "Total HTTP requests handled"},
		[]string{"method", "path", "status"},
	)
	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "ride_hailing",
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency distribution",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)
)

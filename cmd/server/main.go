package main

import (
	"context"
	"database/sql"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	_ "github.com/lib/pq"

	"github.com/Malungisa-Mndzebele/taxi-sub000/internal/arbiter"
	"github.com/Malungisa-Mndzebele/taxi-sub000/internal/availability"
	"github.com/Malungisa-Mndzebele/taxi-sub000/internal/config"
	"github.com/Malungisa-Mndzebele/taxi-sub000/internal/dispatch"
	httpapi "github.com/Malungisa-Mndzebele/taxi-sub000/internal/http"
	"github.com/Malungisa-Mndzebele/taxi-sub000/internal/ingest"
	"github.com/Malungisa-Mndzebele/taxi-sub000/internal/logging"
	"github.com/Malungisa-Mndzebele/taxi-sub000/internal/payments"
	"github.com/Malungisa-Mndzebele/taxi-sub000/internal/ride"
	"github.com/Malungisa-Mndzebele/taxi-sub000/internal/storage"
	"github.com/Malungisa-Mndzebele/taxi-sub000/internal/surge"
)

func main() {
	cfg, err := config.LoadServerConfig()
	if err != nil {
		os.Stderr.WriteString("config: " + err.Error() + "\n")
		os.Exit(1)
	}
	logger := logging.New("ride-api", cfg.LogLevel)

	var store storage.Store
	if cfg.PGDSN != "" {
		if cfg.RunMigrations {
			migrate(cfg.PGDSN, logger.Info, logger.Error)
		}
		ps, err := storage.NewPostgresStore(cfg.PGDSN)
		if err != nil {
			logger.Error("postgres unavailable", "error", err)
			os.Exit(1)
		}
		store = ps
	} else {
		logger.Warn("PG_DSN not set, using in-memory store")
		store = storage.NewMemoryStore()
	}

	var tracker *surge.Tracker
	if cfg.RedisAddr != "" {
		tracker = surge.NewTracker(cfg.RedisAddr, cfg.RedisPassword, cfg.SurgeWindow)
	}

	var producer *ingest.KafkaProducer
	if len(cfg.KafkaBrokers) > 0 {
		producer = ingest.NewKafkaProducer(cfg.KafkaBrokers, cfg.KafkaTopic)
		defer producer.Close()
	}

	wsreg := dispatch.NewWSRegistry(logger)

	registry := &availability.Registry{Store: store, Rides: store, Log: logger}
	if tracker != nil {
		registry.Presence = tracker
	}

	svc := &ride.Service{
		Store:    store,
		Arbiter:  &arbiter.Arbiter{Store: store, Log: logger},
		Registry: registry,
		Notifier: wsreg,
		Log:      logger,
	}
	if producer != nil {
		svc.Events = producer
	}
	if tracker != nil {
		svc.Surge = tracker
	}
	if cfg.StripeAPIKey != "" {
		svc.Payments = payments.NewStripeClient(cfg.StripeAPIKey)
	}

	api := httpapi.NewServer(svc, registry, wsreg, cfg.OpenRidesLimit, logger)

	srv := &http.Server{
		Addr:         cfg.HTTPAddr,
		Handler:      api,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  cfg.IdleTimeout,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go func() {
		logger.Info("ride-hailing api listening", "addr", cfg.HTTPAddr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server stopped", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown failed", "error", err)
	}
	logger.Info("bye")
}

func migrate(dsn string, info, errlog func(string, ...any)) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		errlog("migration db open error", "error", err)
		return
	}
	defer db.Close()
	b, err := os.ReadFile(filepath.Join("migrations", "001_create_schema.sql"))
	if err != nil {
		errlog("migration read error", "error", err)
		return
	}
	if _, err := db.Exec(string(b)); err != nil {
		errlog("migration exec error", "error", err)
		return
	}
	info("migration applied", "file", "001_create_schema.sql")
}

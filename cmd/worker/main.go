package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"

	"github.com/jwalitptl/clinic-core/config"
	"github.com/jwalitptl/clinic-core/internal/email"
	"github.com/jwalitptl/clinic-core/internal/repository/postgres"
	"github.com/jwalitptl/clinic-core/pkg/logger"
	"github.com/jwalitptl/clinic-core/pkg/messaging"
	"github.com/jwalitptl/clinic-core/pkg/messaging/redis"
	"github.com/jwalitptl/clinic-core/pkg/metrics"
	"github.com/jwalitptl/clinic-core/pkg/worker"
)

type pinger interface {
	Ping(ctx context.Context) error
}

func setupHealthCheck(port int, registry *prometheus.Registry, metricsPath string, checks map[string]pinger, logger *logger.Logger) *http.Server {
	mux := http.NewServeMux()
	mux.HandleFunc("/health/live", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	mux.HandleFunc("/health/ready", func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		for name, check := range checks {
			if err := check.Ping(ctx); err != nil {
				http.Error(w, name+" unreachable", http.StatusServiceUnavailable)
				return
			}
		}
		w.WriteHeader(http.StatusOK)
	})
	mux.Handle(metricsPath, promhttp.HandlerFor(registry, promhttp.HandlerOpts{Registry: registry}))

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.ZL.Error().Err(err).Msg("Health check server failed")
			os.Exit(1)
		}
	}()
	return srv
}

func main() {
	// Load config
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load config")
	}
	if strings.EqualFold(cfg.Database.Driver, "memory") {
		log.Fatal().Msg("the worker needs a shared database; the memory driver is API-only")
	}

	appLogger := logger.NewLogger(cfg.Logging.ToLoggerConfig()).WithFields(map[string]interface{}{
		"component": "worker",
	})

	registry := prometheus.NewRegistry()
	m := metrics.New(cfg.Monitoring.Namespace, registry)

	// Initialize database
	db, err := postgres.NewDB(cfg.Database)
	if err != nil {
		appLogger.Fatal(err, "Failed to connect to database")
	}
	defer db.Close()
	store := postgres.NewStore(db)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Initialize Redis broker
	broker, err := redis.NewRedisBroker(ctx, cfg.Redis.ToBrokerConfig(), appLogger.ZL)
	if err != nil {
		appLogger.Fatal(err, "Failed to create Redis broker")
	}
	defer broker.Close()

	processor, err := worker.NewOutboxProcessor(
		store.Outbox(),
		broker,
		cfg.Outbox.ToWorkerConfig(cfg.Redis.Channel),
		appLogger,
		m,
	)
	if err != nil {
		appLogger.Fatal(err, "Invalid outbox configuration")
	}

	consumer := email.NewConsumer(email.NewSMTPSender(cfg.SMTP.ToSMTPConfig()), appLogger, m)

	// Setup health check endpoints
	health := setupHealthCheck(cfg.Worker.HealthPort, registry, cfg.Monitoring.MetricsPath,
		map[string]pinger{"database": store, "redis": broker}, appLogger)

	// Handle shutdown signals
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigChan
		appLogger.Info("Shutting down...")
		cancel()
	}()

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		processor.Start(ctx)
	}()
	go func() {
		defer wg.Done()
		err := messaging.Consume(ctx, broker, cfg.Redis.Channel, consumer.Handle, func(err error) {
			appLogger.Error(err, "Failed to deliver notification")
		})
		if err != nil && !errors.Is(err, context.Canceled) {
			appLogger.Error(err, "Notification consumer stopped")
		}
	}()
	wg.Wait()

	shutdownCtx, stop := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer stop()
	_ = health.Shutdown(shutdownCtx)
	appLogger.Info("Worker exited")
}

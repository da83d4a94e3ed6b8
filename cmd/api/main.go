package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog/log"

	"github.com/jwalitptl/clinic-core/config"
	"github.com/jwalitptl/clinic-core/internal/handler/account"
	"github.com/jwalitptl/clinic-core/internal/handler/appointment"
	auditHandler "github.com/jwalitptl/clinic-core/internal/handler/audit"
	"github.com/jwalitptl/clinic-core/internal/handler/health"
	patientHandler "github.com/jwalitptl/clinic-core/internal/handler/patient"
	prescriptionHandler "github.com/jwalitptl/clinic-core/internal/handler/prescription"
	promHandler "github.com/jwalitptl/clinic-core/internal/handler/prometheus"
	reportHandler "github.com/jwalitptl/clinic-core/internal/handler/report"
	"github.com/jwalitptl/clinic-core/internal/handler/session"
	"github.com/jwalitptl/clinic-core/internal/middleware"
	"github.com/jwalitptl/clinic-core/internal/repository"
	"github.com/jwalitptl/clinic-core/internal/repository/memory"
	"github.com/jwalitptl/clinic-core/internal/repository/postgres"
	"github.com/jwalitptl/clinic-core/internal/router"
	auditService "github.com/jwalitptl/clinic-core/internal/service/audit"
	"github.com/jwalitptl/clinic-core/internal/service/clinical"
	"github.com/jwalitptl/clinic-core/internal/service/notification"
	patientService "github.com/jwalitptl/clinic-core/internal/service/patient"
	prescriptionService "github.com/jwalitptl/clinic-core/internal/service/prescription"
	reportService "github.com/jwalitptl/clinic-core/internal/service/report"
	"github.com/jwalitptl/clinic-core/internal/service/scheduling"
	"github.com/jwalitptl/clinic-core/internal/tenant"
	"github.com/jwalitptl/clinic-core/pkg/auth"
	"github.com/jwalitptl/clinic-core/pkg/logger"
	"github.com/jwalitptl/clinic-core/pkg/metrics"
)

func main() {
	// Load configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load configuration")
	}

	appLogger := logger.NewLogger(cfg.Logging.ToLoggerConfig())

	registry := prometheus.NewRegistry()
	m := metrics.New(cfg.Monitoring.Namespace, registry)

	store, closeStore, err := openStore(cfg.Database, appLogger)
	if err != nil {
		appLogger.Fatal(err, "failed to open store")
	}
	defer closeStore()

	// Initialize services
	notifier := notification.NewOutboxNotifier(store.Outbox(), appLogger, m)
	engine := scheduling.NewEngine(store, notifier, cfg.Scheduling.ToEngineConfig(),
		scheduling.WithLogger(appLogger),
		scheduling.WithMetrics(m),
	)
	clinicalSvc := clinical.NewService(store, m, appLogger)
	prescriptionSvc := prescriptionService.NewService(store, cfg.Prescriptions.AdherenceWindow, m, appLogger)
	reportSvc := reportService.NewService(store, cfg.Reports.MonthlyThresholdDays)
	auditSvc := auditService.NewService(store)
	patientSvc := patientService.NewService(store, notifier)

	// Initialize middleware
	identity := auth.NewJWTProvider(cfg.JWT.Secret, cfg.JWT.Issuer)
	resolver := tenant.NewResolver(identity, store, cfg.Tenant.CacheTTL, appLogger)
	authMiddleware := middleware.NewAuthMiddleware(resolver)

	// Initialize handlers
	appointmentH := appointment.NewHandler(engine)
	var promH *promHandler.Handler
	if cfg.Monitoring.PrometheusEnabled {
		promH = promHandler.New(registry)
	}

	r := router.NewRouter(
		authMiddleware,
		health.NewHandler(map[string]health.Pinger{"database": store}),
		promH,
		appointmentH,
		[]router.Handler{
			account.NewHandler(),
			appointmentH,
			session.NewHandler(clinicalSvc),
			prescriptionHandler.NewHandler(prescriptionSvc),
			patientHandler.NewHandler(patientSvc),
			reportHandler.NewHandler(reportSvc),
			auditHandler.NewHandler(auditSvc),
		},
		appLogger,
		m,
		cfg.ToRouterConfig(),
	)
	r.Setup()

	// Create server
	srv := &http.Server{
		Addr:           fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:        r.Engine(),
		ReadTimeout:    cfg.Server.ReadTimeout,
		WriteTimeout:   cfg.Server.WriteTimeout,
		MaxHeaderBytes: cfg.Server.MaxHeaderBytes,
	}

	// Start server
	go func() {
		appLogger.Info("starting server", "port", cfg.Server.Port, "driver", cfg.Database.Driver)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			appLogger.Fatal(err, "failed to start server")
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	appLogger.Info("shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		appLogger.Error(err, "server forced to shutdown")
	}

	appLogger.Info("server exited properly")
}

func openStore(cfg config.DatabaseConfig, log *logger.Logger) (repository.Store, func(), error) {
	if strings.EqualFold(cfg.Driver, "memory") {
		log.Warn("using in-memory store; data is lost on exit")
		return memory.NewStore(), func() {}, nil
	}

	db, err := postgres.NewDB(cfg)
	if err != nil {
		return nil, nil, err
	}
	if cfg.AutoMigrate {
		applied, err := postgres.Migrate(context.Background(), db)
		if err != nil {
			_ = db.Close()
			return nil, nil, err
		}
		for _, version := range applied {
			log.Info("applied migration", "version", version)
		}
	}
	return postgres.NewStore(db), func() { _ = db.Close() }, nil
}

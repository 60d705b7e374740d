// Command server runs the medicine-cabinet API.
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"botiquin/internal/domain/auth"
	"botiquin/internal/domain/ledger"
	"botiquin/internal/domain/medication"
	"botiquin/internal/domain/patient"
	"botiquin/internal/domain/prescription"
	v1 "botiquin/internal/infrastructure/http/v1"
	"botiquin/internal/infrastructure/http/v1/handlers"
	"botiquin/internal/infrastructure/storage/postgres"
	"botiquin/pkg/config"
	"botiquin/pkg/folio"
	"botiquin/pkg/logger"
)

func main() {
	ctx := context.Background()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal(ctx, "load config", "error", err)
	}

	log, err := logger.New(logger.Config{
		Level:       cfg.Log.Level,
		Development: cfg.App.Env == "development",
	})
	if err != nil {
		logger.Fatal(ctx, "init logger", "error", err)
	}
	ctx = logger.WithLogger(ctx, log)

	if cfg.App.Env != "development" {
		gin.SetMode(gin.ReleaseMode)
	}

	dsn := cfg.DB.ConnectionString()
	if err := postgres.RunMigrations(ctx, dsn); err != nil {
		logger.Fatal(ctx, "run migrations", "error", err)
	}

	poolCfg := postgres.DefaultPoolConfig(dsn)
	if cfg.DB.MaxConns > 0 {
		poolCfg.MaxConns = int32(cfg.DB.MaxConns)
	}
	pool, err := postgres.NewPool(ctx, poolCfg)
	if err != nil {
		logger.Fatal(ctx, "connect database", "error", err)
	}
	defer pool.Close()

	txManager := postgres.NewTxManager(pool)

	// Repositories.
	medicationRepo := postgres.NewMedicationRepo(txManager)
	patientRepo := postgres.NewPatientRepo(txManager)
	movementRepo := postgres.NewMovementRepo(txManager)
	prescriptionRepo := postgres.NewPrescriptionRepo(txManager)
	userRepo := postgres.NewUserRepo(txManager)

	auditor, err := postgres.NewAuditService(txManager)
	if err != nil {
		logger.Fatal(ctx, "init audit service", "error", err)
	}

	// Services.
	jwtCfg := auth.DefaultJWTConfig(cfg.JWT.Secret)
	if cfg.JWT.Issuer != "" {
		jwtCfg.Issuer = cfg.JWT.Issuer
	}
	if cfg.JWT.ExpirationMin > 0 {
		jwtCfg.AccessTokenTTL = time.Duration(cfg.JWT.ExpirationMin) * time.Minute
	}
	jwtService := auth.NewJWTService(jwtCfg)

	folios := folio.New(func(ctx context.Context) folio.Querier {
		return txManager.GetQuerier(ctx)
	})

	medicationService := medication.NewService(medicationRepo, txManager)
	patientService := patient.NewService(patientRepo, txManager)
	prescriptionService := prescription.NewService(prescriptionRepo)
	ledgerService := ledger.NewService(movementRepo, medicationService, prescriptionService, folios, txManager, auditor)
	authService := auth.NewService(userRepo, txManager, jwtService)

	router := v1.NewRouter(v1.RouterConfig{
		Logger:      log,
		JWTService:  jwtService,
		Movements:   handlers.NewMovementHandler(ledgerService, auditor),
		Medications: handlers.NewMedicationHandler(medicationService),
		Patients:    handlers.NewPatientHandler(patientService, prescriptionService),
		Auth:        handlers.NewAuthHandler(authService),
		Health:      handlers.NewHealthHandler(pool.Pool),
	})

	server := &http.Server{
		Addr:              cfg.HTTP.Addr(),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info(ctx, "server starting", "addr", server.Addr, "env", cfg.App.Env)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal(ctx, "server failed", "error", err)
		}
	}()

	// Graceful shutdown on SIGINT/SIGTERM.
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info(ctx, "shutting down")
	shutdownCtx, cancel := context.WithTimeout(ctx, 15*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error(ctx, "forced shutdown", "error", err)
	}

	logger.Info(ctx, "server stopped")
}

package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"invest-ledger/config"
	httpHandler "invest-ledger/internal/adapter/http/handler"
	pgStorage "invest-ledger/internal/adapter/storage/postgres"
	redisStorage "invest-ledger/internal/adapter/storage/redis"
	"invest-ledger/internal/core/ports"
	"invest-ledger/internal/scheduler"
	"invest-ledger/internal/service"
	"invest-ledger/pkg/logger"
)

func main() {
	// Load configuration
	cfg, err := config.Load("")
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	log := logger.New(cfg.Log.Level, cfg.Log.Pretty)

	log.Info().
		Str("mode", cfg.Server.Mode).
		Int("port", cfg.Server.Port).
		Msg("Starting Investment Ledger")

	ctx := context.Background()

	// Initialize PostgreSQL pool
	pool, err := pgStorage.NewPool(ctx, cfg.Database, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to PostgreSQL")
	}
	defer pool.Close()
	log.Info().Msg("PostgreSQL connected")

	// Initialize Redis client
	rdb, err := redisStorage.NewClient(ctx, cfg.Redis, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to Redis")
	}
	defer rdb.Close()
	log.Info().Msg("Redis connected")

	// Initialize repositories
	balanceRepo := pgStorage.NewBalanceRepo(pool)
	txRepo := pgStorage.NewTransactionRepo(pool)
	pendingRepo := pgStorage.NewPendingTransferRepo(pool)
	invRepo := pgStorage.NewInvestmentRepo(pool)
	wdRepo := pgStorage.NewWithdrawalRepo(pool)
	planRepo := pgStorage.NewPlanRepo(pool)
	userRepo := pgStorage.NewUserRepo(pool)
	notificationRepo := pgStorage.NewNotificationRepo(pool)
	transactor := pgStorage.NewTransactor(pool)

	// Initialize Redis stores
	sweepLock := redisStorage.NewSweepLock(rdb)
	rateLimitStore := redisStorage.NewRateLimitStore(rdb)

	// Initialize core services
	tokenSvc := service.NewJWTTokenService(cfg.JWT.Secret, cfg.JWT.Expiry, cfg.JWT.Issuer)

	// Initialize business services
	transferSvc := service.NewTransferService(
		pendingRepo,
		txRepo,
		balanceRepo,
		invRepo,
		planRepo,
		notificationRepo,
		transactor,
		cfg.Scheduler.BatchSize,
		log,
	)
	accrualSvc := service.NewAccrualService(
		invRepo,
		txRepo,
		planRepo,
		notificationRepo,
		transactor,
		cfg.Scheduler.BatchSize,
		log,
	)
	settlementSvc := service.NewSettlementService(
		invRepo,
		txRepo,
		balanceRepo,
		notificationRepo,
		transactor,
		cfg.Scheduler.BatchSize,
		log,
	)
	withdrawalSvc := service.NewWithdrawalService(
		wdRepo,
		balanceRepo,
		txRepo,
		userRepo,
		notificationRepo,
		transactor,
		log,
	)
	investmentSvc := service.NewInvestmentService(invRepo, notificationRepo, transactor, log)
	ledgerSvc := service.NewLedgerService(balanceRepo, txRepo, invRepo, pendingRepo, wdRepo)

	// Scheduled sweeps
	if cfg.Scheduler.Enabled {
		sched, err := scheduler.New(cfg.Scheduler, sweepLock, accrualSvc, settlementSvc, transferSvc, logger.ForComponent(log, "scheduler"))
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to initialize scheduler")
		}
		sched.Start()
		defer sched.Stop()
		log.Info().
			Str("accrual", cfg.Scheduler.AccrualSpec).
			Str("settlement", cfg.Scheduler.SettlementSpec).
			Str("expiry", cfg.Scheduler.ExpirySpec).
			Msg("Scheduler started")
	}

	// Initialize health checkers
	pgHealth := pgStorage.NewHealthCheck(pool)
	redisHealth := redisStorage.NewHealthCheck(rdb)

	// Load OpenAPI spec for Swagger UI
	if specBytes, err := os.ReadFile("docs/api/openapi.yaml"); err == nil {
		httpHandler.SetSwaggerSpec(specBytes)
		log.Info().Msg("OpenAPI spec loaded for Swagger UI at /swagger")
	} else {
		log.Warn().Err(err).Msg("OpenAPI spec not found, Swagger UI will be unavailable")
	}

	// Setup Gin router with all routes
	router := httpHandler.SetupRouter(httpHandler.RouterDeps{
		TransferSvc:    transferSvc,
		WithdrawalSvc:  withdrawalSvc,
		InvestmentSvc:  investmentSvc,
		AccrualSvc:     accrualSvc,
		SettlementSvc:  settlementSvc,
		LedgerSvc:      ledgerSvc,
		TokenSvc:       tokenSvc,
		SweepLock:      sweepLock,
		SweepLockTTL:   cfg.Scheduler.LockTTL,
		RateLimitStore: rateLimitStore,
		HealthCheckers: []ports.HealthChecker{pgHealth, redisHealth},
		Logger:         logger.ForComponent(log, "http"),
	})

	// HTTP Server with graceful shutdown
	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{
		Addr:    addr,
		Handler: router,
	}

	// Start server in goroutine
	go func() {
		log.Info().Str("addr", addr).Msg("HTTP server listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("HTTP server failed")
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info().Msg("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}

	log.Info().Msg("Server exited")
}

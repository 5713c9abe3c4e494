package handler

import (
	"time"

	"invest-ledger/internal/adapter/http/middleware"
	redisStore "invest-ledger/internal/adapter/storage/redis"
	"invest-ledger/internal/core/ports"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

// RouterDeps holds all dependencies needed to set up routes.
type RouterDeps struct {
	TransferSvc    ports.TransferService
	WithdrawalSvc  ports.WithdrawalService
	InvestmentSvc  ports.InvestmentService
	AccrualSvc     ports.AccrualService
	SettlementSvc  ports.SettlementService
	LedgerSvc      ports.LedgerService
	TokenSvc       ports.TokenService
	SweepLock      ports.SweepLock
	SweepLockTTL   time.Duration
	RateLimitStore *redisStore.RateLimitStore // nil = rate limiting disabled
	HealthCheckers []ports.HealthChecker
	Logger         zerolog.Logger
}

// SetupRouter initialises the Gin engine with all routes and middleware.
func SetupRouter(deps RouterDeps) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()

	// Global middleware
	r.Use(middleware.Recovery(deps.Logger))
	r.Use(middleware.RequestLogger(deps.Logger))
	r.Use(middleware.MaxBodySize(1 << 20)) // 1 MB request body limit

	// Health check (deep — verifies PostgreSQL + Redis)
	r.GET("/health", HealthCheck(deps.HealthCheckers...))

	// Swagger documentation
	swagger := r.Group("/swagger")
	{
		swagger.GET("", SwaggerUI)
		swagger.GET("/spec", SwaggerSpec)
	}

	// Rate limit rules
	rules := middleware.DefaultRateLimitRules()

	// Helper: return rate limiter middleware if store is available, else noop.
	rl := func(group string) gin.HandlerFunc {
		if deps.RateLimitStore == nil {
			return func(c *gin.Context) { c.Next() }
		}
		rule, ok := rules[group]
		if !ok {
			return func(c *gin.Context) { c.Next() }
		}
		return middleware.RateLimiter(deps.RateLimitStore, group, rule, deps.Logger)
	}

	jwtAuth := middleware.JWTAuth(deps.TokenSvc, deps.Logger)

	ledgerHandler := NewLedgerHandler(deps.LedgerSvc)
	transferHandler := NewTransferHandler(deps.TransferSvc)
	withdrawalHandler := NewWithdrawalHandler(deps.WithdrawalSvc)
	adminHandler := NewAdminHandler(
		deps.TransferSvc,
		deps.WithdrawalSvc,
		deps.InvestmentSvc,
		deps.AccrualSvc,
		deps.SettlementSvc,
		deps.SweepLock,
		deps.SweepLockTTL,
	)

	// API v1 routes
	v1 := r.Group("/api/v1")

	// --- Authenticated user routes ---
	transfers := v1.Group("/transfers", jwtAuth)
	{
		transfers.POST("", rl("transfers"), transferHandler.Submit)
	}

	withdrawals := v1.Group("/withdrawals", jwtAuth)
	{
		withdrawals.POST("", rl("withdrawals"), withdrawalHandler.Request)
	}

	ledger := v1.Group("/ledger", jwtAuth)
	{
		ledger.GET("/balance", rl("ledger"), ledgerHandler.GetBalance)
		ledger.GET("/transactions", rl("ledger"), ledgerHandler.ListTransactions)
		ledger.GET("/investments", rl("ledger"), ledgerHandler.ListInvestments)
		ledger.GET("/pending-transfers", rl("ledger"), ledgerHandler.ListPendingTransfers)
		ledger.GET("/withdrawals", rl("ledger"), ledgerHandler.ListWithdrawals)
	}

	// --- Admin routes ---
	admin := v1.Group("/admin", jwtAuth, middleware.AdminOnly())
	{
		admin.POST("/transfers/:id/confirm", rl("admin"), adminHandler.ConfirmTransfer)
		admin.POST("/transfers/:id/reject", rl("admin"), adminHandler.RejectTransfer)

		admin.POST("/withdrawals/:id/approve", rl("admin"), adminHandler.ApproveWithdrawal)
		admin.POST("/withdrawals/:id/process", rl("admin"), adminHandler.ProcessWithdrawal)
		admin.POST("/withdrawals/:id/complete", rl("admin"), adminHandler.CompleteWithdrawal)
		admin.POST("/withdrawals/:id/fail", rl("admin"), adminHandler.FailWithdrawal)
		admin.POST("/withdrawals/:id/reject", rl("admin"), adminHandler.RejectWithdrawal)

		admin.POST("/investments/:id/pause", rl("admin"), adminHandler.PauseInvestment)
		admin.POST("/investments/:id/cancel", rl("admin"), adminHandler.CancelInvestment)

		admin.POST("/sweeps/accrual", rl("admin"), adminHandler.RunAccrual)
		admin.POST("/sweeps/settlement", rl("admin"), adminHandler.RunSettlement)
		admin.POST("/sweeps/expiry", rl("admin"), adminHandler.RunExpiry)
	}

	return r
}

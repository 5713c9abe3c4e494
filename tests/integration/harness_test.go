package integration

import (
	"context"
	"net/http/httptest"
	"testing"
	"time"

	httpHandler "invest-ledger/internal/adapter/http/handler"
	redisStorage "invest-ledger/internal/adapter/storage/redis"
	"invest-ledger/internal/core/domain"
	"invest-ledger/internal/core/ports"
	"invest-ledger/internal/service"
	"invest-ledger/pkg/logger"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

// testApp builds the full application stack on in-memory storage: miniredis
// behind the real Redis stores, CAS-faithful in-memory postgres repos, real
// services, and the real Gin router.
type testApp struct {
	server *httptest.Server
	redis  *miniredis.Miniredis
	rdb    *goredis.Client

	balanceRepo *inMemoryBalanceRepo
	txRepo      *inMemoryTransactionRepo
	pendingRepo *inMemoryPendingRepo
	invRepo     *inMemoryInvestmentRepo
	wdRepo      *inMemoryWithdrawalRepo
	planRepo    *inMemoryPlanRepo
	userRepo    *inMemoryUserRepo
	notifier    *inMemoryNotifier

	transferSvc   ports.TransferService
	accrualSvc    ports.AccrualService
	settlementSvc ports.SettlementService
	withdrawalSvc ports.WithdrawalService
	investmentSvc ports.InvestmentService
	ledgerSvc     ports.LedgerService
	tokenSvc      ports.TokenService
}

func newTestApp(t *testing.T) *testApp {
	t.Helper()

	mr, err := miniredis.Run()
	require.NoError(t, err)

	rdb := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})

	app := &testApp{
		redis:       mr,
		rdb:         rdb,
		balanceRepo: newInMemoryBalanceRepo(),
		txRepo:      newInMemoryTransactionRepo(),
		pendingRepo: newInMemoryPendingRepo(),
		invRepo:     newInMemoryInvestmentRepo(),
		wdRepo:      newInMemoryWithdrawalRepo(),
		planRepo:    newInMemoryPlanRepo(),
		userRepo:    newInMemoryUserRepo(),
		notifier:    newInMemoryNotifier(),
	}

	log := logger.New("error", false)
	transactor := inMemoryTransactor{}

	app.tokenSvc = service.NewJWTTokenService("test-jwt-secret-key-32bytes!!", 24*time.Hour, "test-issuer")
	app.transferSvc = service.NewTransferService(
		app.pendingRepo, app.txRepo, app.balanceRepo, app.invRepo, app.planRepo,
		app.notifier, transactor, 100, log,
	)
	app.accrualSvc = service.NewAccrualService(
		app.invRepo, app.txRepo, app.planRepo, app.notifier, transactor, 100, log,
	)
	app.settlementSvc = service.NewSettlementService(
		app.invRepo, app.txRepo, app.balanceRepo, app.notifier, transactor, 100, log,
	)
	app.withdrawalSvc = service.NewWithdrawalService(
		app.wdRepo, app.balanceRepo, app.txRepo, app.userRepo, app.notifier, transactor, log,
	)
	app.investmentSvc = service.NewInvestmentService(app.invRepo, app.notifier, transactor, log)
	app.ledgerSvc = service.NewLedgerService(
		app.balanceRepo, app.txRepo, app.invRepo, app.pendingRepo, app.wdRepo,
	)

	router := httpHandler.SetupRouter(httpHandler.RouterDeps{
		TransferSvc:    app.transferSvc,
		WithdrawalSvc:  app.withdrawalSvc,
		InvestmentSvc:  app.investmentSvc,
		AccrualSvc:     app.accrualSvc,
		SettlementSvc:  app.settlementSvc,
		LedgerSvc:      app.ledgerSvc,
		TokenSvc:       app.tokenSvc,
		SweepLock:      redisStorage.NewSweepLock(rdb),
		SweepLockTTL:   time.Minute,
		RateLimitStore: redisStorage.NewRateLimitStore(rdb),
		Logger:         log,
	})
	app.server = httptest.NewServer(router)

	return app
}

func (a *testApp) close() {
	a.server.Close()
	a.rdb.Close()
	a.redis.Close()
}

// newUser registers a KYC-approved user profile and returns its id.
func (a *testApp) newUser(t *testing.T) uuid.UUID {
	t.Helper()
	id := uuid.New()
	a.userRepo.put(&domain.User{
		ID:          id,
		Email:       id.String()[:8] + "@example.com",
		Role:        domain.RoleUser,
		KYCApproved: true,
	})
	return id
}

// newAdmin registers an admin profile and returns its id.
func (a *testApp) newAdmin(t *testing.T) uuid.UUID {
	t.Helper()
	id := uuid.New()
	a.userRepo.put(&domain.User{
		ID:          id,
		Email:       "admin-" + id.String()[:8] + "@example.com",
		Role:        domain.RoleAdmin,
		KYCApproved: true,
	})
	return id
}

// newPlan registers an active investment plan.
func (a *testApp) newPlan(t *testing.T, apy string, days int) *domain.InvestmentPlan {
	t.Helper()
	plan := &domain.InvestmentPlan{
		ID:           uuid.New(),
		Name:         "Test Plan",
		MaxAPY:       decimal.RequireFromString(apy),
		DurationDays: days,
		MinAmount:    decimal.RequireFromString("100"),
		MaxAmount:    decimal.RequireFromString("100000"),
		Active:       true,
	}
	a.planRepo.put(plan)
	return plan
}

// token mints a bearer token for the given user.
func (a *testApp) token(t *testing.T, userID uuid.UUID, role domain.UserRole) string {
	t.Helper()
	token, _, err := a.tokenSvc.Generate(userID, role)
	require.NoError(t, err)
	return token
}

// requireSumInvariant asserts total_balance equals the sum of the pools.
func (a *testApp) requireSumInvariant(t *testing.T, userID uuid.UUID) {
	t.Helper()
	b, err := a.balanceRepo.Get(context.Background(), userID)
	require.NoError(t, err)
	if b == nil {
		return
	}
	require.True(t, b.TotalBalance.Equal(b.Sum()),
		"total %s != sum %s", b.TotalBalance, b.Sum())
}

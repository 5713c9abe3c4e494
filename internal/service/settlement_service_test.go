package service

import (
	"context"
	"testing"
	"time"

	"invest-ledger/internal/core/domain"
	"invest-ledger/internal/core/ports"
	"invest-ledger/internal/core/ports/mocks"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

type settlementTestDeps struct {
	svc         *SettlementServiceImpl
	invRepo     *mocks.MockInvestmentRepository
	txRepo      *mocks.MockTransactionRepository
	balanceRepo *mocks.MockBalanceRepository
	notifier    *mocks.MockNotificationEmitter
	transactor  *mocks.MockDBTransactor
	ctrl        *gomock.Controller
}

func setupSettlementService(t *testing.T) *settlementTestDeps {
	ctrl := gomock.NewController(t)
	d := &settlementTestDeps{
		invRepo:     mocks.NewMockInvestmentRepository(ctrl),
		txRepo:      mocks.NewMockTransactionRepository(ctrl),
		balanceRepo: mocks.NewMockBalanceRepository(ctrl),
		notifier:    mocks.NewMockNotificationEmitter(ctrl),
		transactor:  mocks.NewMockDBTransactor(ctrl),
		ctrl:        ctrl,
	}
	d.svc = NewSettlementService(
		d.invRepo, d.txRepo, d.balanceRepo, d.notifier, d.transactor, 100, zerolog.Nop(),
	)
	return d
}

func maturedInvestment(userID uuid.UUID) domain.Investment {
	end := time.Now().UTC().Add(-time.Hour)
	start := end.Add(-90 * 24 * time.Hour)
	return domain.Investment{
		ID:           uuid.New(),
		UserID:       userID,
		PlanID:       uuid.New(),
		Status:       domain.InvestmentStatusActive,
		USDValue:     decimal.NewFromInt(1000),
		ActualReturn: decimal.RequireFromString("44.38"),
		TotalReturn:  decimal.RequireFromString("44.38"),
		StartDate:    &start,
		EndDate:      &end,
	}
}

func TestSettlementService_RunSettlementSweep(t *testing.T) {
	d := setupSettlementService(t)
	defer d.ctrl.Finish()

	ctx := context.Background()
	userID := uuid.New()
	tx := &mockTx{}
	inv := maturedInvestment(userID)

	d.invRepo.EXPECT().ListMatured(ctx, gomock.Any(), 100).Return([]domain.Investment{inv}, nil)
	d.transactor.EXPECT().Begin(ctx).Return(tx, nil)
	d.invRepo.EXPECT().Complete(ctx, tx, inv.ID).Return(inv.TotalReturn, inv.ActualReturn, nil)
	d.balanceRepo.EXPECT().Credit(ctx, tx, userID, domain.PoolInterest, inv.TotalReturn).Return(nil)
	d.balanceRepo.EXPECT().Credit(ctx, tx, userID, domain.PoolInvestment, inv.USDValue).Return(nil)
	d.notifier.EXPECT().Emit(ctx, userID, gomock.Any(), gomock.Any(), domain.PriorityHigh, gomock.Any()).Return(nil)

	settled, err := d.svc.RunSettlementSweep(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, settled)
}

func TestSettlementService_RunSettlementSweep_TruesUpUnderrun(t *testing.T) {
	d := setupSettlementService(t)
	defer d.ctrl.Finish()

	ctx := context.Background()
	userID := uuid.New()
	tx := &mockTx{}

	// Accrual under-ran during downtime; actual lags total.
	inv := maturedInvestment(userID)
	inv.ActualReturn = decimal.RequireFromString("30.00")

	d.invRepo.EXPECT().ListMatured(ctx, gomock.Any(), 100).Return([]domain.Investment{inv}, nil)
	d.transactor.EXPECT().Begin(ctx).Return(tx, nil)
	d.invRepo.EXPECT().Complete(ctx, tx, inv.ID).Return(inv.TotalReturn, inv.ActualReturn, nil)
	d.txRepo.EXPECT().Create(ctx, tx, gomock.Any()).DoAndReturn(
		func(_ context.Context, _ pgx.Tx, txn *domain.Transaction) error {
			assert.Equal(t, domain.TransactionTypeReturn, txn.Type)
			assert.Equal(t, "14.38", txn.USDValue.StringFixed(2))
			return nil
		})
	d.balanceRepo.EXPECT().Credit(ctx, tx, userID, domain.PoolInterest, inv.TotalReturn).Return(nil)
	d.balanceRepo.EXPECT().Credit(ctx, tx, userID, domain.PoolInvestment, inv.USDValue).Return(nil)
	d.notifier.EXPECT().Emit(ctx, userID, gomock.Any(), gomock.Any(), domain.PriorityHigh, gomock.Any()).Return(nil)

	settled, err := d.svc.RunSettlementSweep(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, settled)
}

func TestSettlementService_RunSettlementSweep_DistributesRacedAccrual(t *testing.T) {
	d := setupSettlementService(t)
	defer d.ctrl.Finish()

	ctx := context.Background()
	userID := uuid.New()
	tx := &mockTx{}
	inv := maturedInvestment(userID)

	// An accrual tick landed between ListMatured and Complete, bumping
	// both return counters past the snapshot. The interest credit must use
	// the settled figure from Complete, never the stale snapshot.
	settledTotal := inv.TotalReturn.Add(decimal.RequireFromString("5.00"))

	d.invRepo.EXPECT().ListMatured(ctx, gomock.Any(), 100).Return([]domain.Investment{inv}, nil)
	d.transactor.EXPECT().Begin(ctx).Return(tx, nil)
	d.invRepo.EXPECT().Complete(ctx, tx, inv.ID).Return(settledTotal, settledTotal, nil)
	// The raced accrual already journaled its profit; no true-up entry.
	d.balanceRepo.EXPECT().Credit(ctx, tx, userID, domain.PoolInterest, settledTotal).Return(nil)
	d.balanceRepo.EXPECT().Credit(ctx, tx, userID, domain.PoolInvestment, inv.USDValue).Return(nil)
	d.notifier.EXPECT().Emit(ctx, userID, gomock.Any(), gomock.Any(), domain.PriorityHigh, gomock.Any()).Return(nil)

	settled, err := d.svc.RunSettlementSweep(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, settled)
}

func TestSettlementService_RunSettlementSweep_ZeroReturn(t *testing.T) {
	d := setupSettlementService(t)
	defer d.ctrl.Finish()

	ctx := context.Background()
	userID := uuid.New()
	tx := &mockTx{}

	inv := maturedInvestment(userID)
	inv.ActualReturn = decimal.Zero
	inv.TotalReturn = decimal.Zero

	d.invRepo.EXPECT().ListMatured(ctx, gomock.Any(), 100).Return([]domain.Investment{inv}, nil)
	d.transactor.EXPECT().Begin(ctx).Return(tx, nil)
	d.invRepo.EXPECT().Complete(ctx, tx, inv.ID).Return(decimal.Zero, decimal.Zero, nil)
	// Interest pool is only credited for a positive return; principal
	// always comes back.
	d.balanceRepo.EXPECT().Credit(ctx, tx, userID, domain.PoolInvestment, inv.USDValue).Return(nil)
	d.notifier.EXPECT().Emit(ctx, userID, gomock.Any(), gomock.Any(), domain.PriorityHigh, gomock.Any()).Return(nil)

	settled, err := d.svc.RunSettlementSweep(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, settled)
}

func TestSettlementService_RunSettlementSweep_ExactlyOnce(t *testing.T) {
	d := setupSettlementService(t)
	defer d.ctrl.Finish()

	ctx := context.Background()
	tx := &mockTx{}
	inv := maturedInvestment(uuid.New())

	d.invRepo.EXPECT().ListMatured(ctx, gomock.Any(), 100).Return([]domain.Investment{inv}, nil)
	d.transactor.EXPECT().Begin(ctx).Return(tx, nil)
	// A concurrent tick already completed it; no credit happens.
	d.invRepo.EXPECT().Complete(ctx, tx, inv.ID).Return(decimal.Zero, decimal.Zero, ports.ErrStaleStatus)

	settled, err := d.svc.RunSettlementSweep(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, settled)
}

func TestSettlementService_RunSettlementSweep_Empty(t *testing.T) {
	d := setupSettlementService(t)
	defer d.ctrl.Finish()

	ctx := context.Background()
	d.invRepo.EXPECT().ListMatured(ctx, gomock.Any(), 100).Return(nil, nil)

	settled, err := d.svc.RunSettlementSweep(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, settled)
}

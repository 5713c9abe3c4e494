package service

import (
	"context"
	"testing"

	"invest-ledger/internal/core/domain"
	"invest-ledger/internal/core/ports"
	"invest-ledger/internal/core/ports/mocks"
	"invest-ledger/pkg/apperror"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

type withdrawalTestDeps struct {
	svc         *WithdrawalServiceImpl
	wdRepo      *mocks.MockWithdrawalRepository
	balanceRepo *mocks.MockBalanceRepository
	txRepo      *mocks.MockTransactionRepository
	userRepo    *mocks.MockUserProfiles
	notifier    *mocks.MockNotificationEmitter
	transactor  *mocks.MockDBTransactor
	ctrl        *gomock.Controller
}

func setupWithdrawalService(t *testing.T) *withdrawalTestDeps {
	ctrl := gomock.NewController(t)
	d := &withdrawalTestDeps{
		wdRepo:      mocks.NewMockWithdrawalRepository(ctrl),
		balanceRepo: mocks.NewMockBalanceRepository(ctrl),
		txRepo:      mocks.NewMockTransactionRepository(ctrl),
		userRepo:    mocks.NewMockUserProfiles(ctrl),
		notifier:    mocks.NewMockNotificationEmitter(ctrl),
		transactor:  mocks.NewMockDBTransactor(ctrl),
		ctrl:        ctrl,
	}
	d.svc = NewWithdrawalService(
		d.wdRepo, d.balanceRepo, d.txRepo, d.userRepo,
		d.notifier, d.transactor, zerolog.Nop(),
	)
	return d
}

func kycUser(id uuid.UUID) *domain.User {
	return &domain.User{ID: id, Role: domain.RoleUser, KYCApproved: true}
}

func withdrawalAt(userID uuid.UUID, status domain.WithdrawalStatus) *domain.WithdrawalRequest {
	return &domain.WithdrawalRequest{
		ID:            uuid.New(),
		UserID:        userID,
		Status:        status,
		BalanceType:   domain.PoolInterest,
		Amount:        decimal.NewFromInt(100),
		CryptoAmount:  decimal.NewFromFloat(0.0025),
		WalletAddress: "bc1qexample",
		Chain:         "BTC",
	}
}

// ==================== Request Tests ====================

func TestWithdrawalService_Request(t *testing.T) {
	d := setupWithdrawalService(t)
	defer d.ctrl.Finish()

	ctx := context.Background()
	userID := uuid.New()

	d.userRepo.EXPECT().GetUser(ctx, userID).Return(kycUser(userID), nil)
	d.balanceRepo.EXPECT().Get(ctx, userID).Return(&domain.Balance{
		UserID:          userID,
		InterestBalance: decimal.NewFromInt(150),
		TotalBalance:    decimal.NewFromInt(150),
	}, nil)
	d.wdRepo.EXPECT().Create(ctx, gomock.Any()).Return(nil)
	d.notifier.EXPECT().Emit(ctx, userID, gomock.Any(), gomock.Any(), domain.PriorityMedium, gomock.Any()).Return(nil)

	wd, err := d.svc.Request(ctx, ports.WithdrawalSubmission{
		UserID:        userID,
		BalanceType:   domain.PoolInterest,
		Amount:        decimal.NewFromInt(100),
		CryptoAmount:  decimal.NewFromFloat(0.0025),
		WalletAddress: "bc1qexample",
		Chain:         "BTC",
	})
	require.NoError(t, err)
	assert.Equal(t, domain.WithdrawalStatusPending, wd.Status)
}

func TestWithdrawalService_Request_InsufficientBalance(t *testing.T) {
	d := setupWithdrawalService(t)
	defer d.ctrl.Finish()

	ctx := context.Background()
	userID := uuid.New()

	d.userRepo.EXPECT().GetUser(ctx, userID).Return(kycUser(userID), nil)
	d.balanceRepo.EXPECT().Get(ctx, userID).Return(&domain.Balance{
		UserID:          userID,
		InterestBalance: decimal.NewFromInt(150),
		TotalBalance:    decimal.NewFromInt(150),
	}, nil)

	_, err := d.svc.Request(ctx, ports.WithdrawalSubmission{
		UserID:        userID,
		BalanceType:   domain.PoolInterest,
		Amount:        decimal.NewFromInt(200),
		WalletAddress: "bc1qexample",
	})
	require.Error(t, err)
	appErr, ok := err.(*apperror.AppError)
	require.True(t, ok)
	assert.Equal(t, "LED_001", appErr.Code)
}

func TestWithdrawalService_Request_NeverCreditedUser(t *testing.T) {
	d := setupWithdrawalService(t)
	defer d.ctrl.Finish()

	ctx := context.Background()
	userID := uuid.New()

	d.userRepo.EXPECT().GetUser(ctx, userID).Return(kycUser(userID), nil)
	// No balance record yet: treated as all pools zero.
	d.balanceRepo.EXPECT().Get(ctx, userID).Return(nil, nil)

	_, err := d.svc.Request(ctx, ports.WithdrawalSubmission{
		UserID:        userID,
		BalanceType:   domain.PoolMain,
		Amount:        decimal.NewFromInt(10),
		WalletAddress: "bc1qexample",
	})
	require.Error(t, err)
	appErr, ok := err.(*apperror.AppError)
	require.True(t, ok)
	assert.Equal(t, "LED_001", appErr.Code)
}

func TestWithdrawalService_Request_KYCRequired(t *testing.T) {
	d := setupWithdrawalService(t)
	defer d.ctrl.Finish()

	ctx := context.Background()
	userID := uuid.New()

	d.userRepo.EXPECT().GetUser(ctx, userID).Return(&domain.User{
		ID: userID, Role: domain.RoleUser, KYCApproved: false,
	}, nil)

	_, err := d.svc.Request(ctx, ports.WithdrawalSubmission{
		UserID:        userID,
		BalanceType:   domain.PoolMain,
		Amount:        decimal.NewFromInt(10),
		WalletAddress: "bc1qexample",
	})
	require.Error(t, err)
	appErr, ok := err.(*apperror.AppError)
	require.True(t, ok)
	assert.Equal(t, "LED_008", appErr.Code)
}

func TestWithdrawalService_Request_InvalidPool(t *testing.T) {
	d := setupWithdrawalService(t)
	defer d.ctrl.Finish()

	_, err := d.svc.Request(context.Background(), ports.WithdrawalSubmission{
		UserID:        uuid.New(),
		BalanceType:   "bonus",
		Amount:        decimal.NewFromInt(10),
		WalletAddress: "bc1qexample",
	})
	require.Error(t, err)
	appErr, ok := err.(*apperror.AppError)
	require.True(t, ok)
	assert.Equal(t, "LED_005", appErr.Code)
}

// ==================== Pipeline Tests ====================

func TestWithdrawalService_Approve(t *testing.T) {
	d := setupWithdrawalService(t)
	defer d.ctrl.Finish()

	ctx := context.Background()
	adminID := uuid.New()
	tx := &mockTx{}
	wd := withdrawalAt(uuid.New(), domain.WithdrawalStatusPending)

	d.wdRepo.EXPECT().GetByID(ctx, wd.ID).Return(wd, nil)
	d.transactor.EXPECT().Begin(ctx).Return(tx, nil)
	d.wdRepo.EXPECT().UpdateStatus(ctx, tx, wd.ID, domain.WithdrawalStatusPending, domain.WithdrawalStatusApproved, gomock.Any()).Return(nil)
	d.notifier.EXPECT().Emit(ctx, wd.UserID, gomock.Any(), gomock.Any(), domain.PriorityHigh, gomock.Any()).Return(nil)

	result, err := d.svc.Approve(ctx, wd.ID, adminID, nil)
	require.NoError(t, err)
	assert.Equal(t, domain.WithdrawalStatusApproved, result.Status)
	assert.Equal(t, &adminID, result.ReviewedBy)
}

func TestWithdrawalService_Approve_InvalidTransition(t *testing.T) {
	d := setupWithdrawalService(t)
	defer d.ctrl.Finish()

	ctx := context.Background()
	tx := &mockTx{}
	wd := withdrawalAt(uuid.New(), domain.WithdrawalStatusCompleted)

	d.wdRepo.EXPECT().GetByID(ctx, wd.ID).Return(wd, nil)
	d.transactor.EXPECT().Begin(ctx).Return(tx, nil)
	d.wdRepo.EXPECT().UpdateStatus(ctx, tx, wd.ID, domain.WithdrawalStatusPending, domain.WithdrawalStatusApproved, gomock.Any()).
		Return(ports.ErrStaleStatus)

	_, err := d.svc.Approve(ctx, wd.ID, uuid.New(), nil)
	require.Error(t, err)
	appErr, ok := err.(*apperror.AppError)
	require.True(t, ok)
	assert.Equal(t, "LED_002", appErr.Code)
}

func TestWithdrawalService_MarkProcessing_DebitsOnce(t *testing.T) {
	d := setupWithdrawalService(t)
	defer d.ctrl.Finish()

	ctx := context.Background()
	adminID := uuid.New()
	tx := &mockTx{}
	wd := withdrawalAt(uuid.New(), domain.WithdrawalStatusApproved)

	d.wdRepo.EXPECT().GetByID(ctx, wd.ID).Return(wd, nil)
	d.transactor.EXPECT().Begin(ctx).Return(tx, nil)
	d.wdRepo.EXPECT().UpdateStatus(ctx, tx, wd.ID, domain.WithdrawalStatusApproved, domain.WithdrawalStatusProcessing, gomock.Any()).Return(nil)
	d.balanceRepo.EXPECT().Debit(ctx, tx, wd.UserID, domain.PoolInterest, wd.Amount).Return(nil)
	d.txRepo.EXPECT().Create(ctx, tx, gomock.Any()).DoAndReturn(
		func(_ context.Context, _ pgx.Tx, txn *domain.Transaction) error {
			assert.Equal(t, domain.TransactionTypeWithdrawal, txn.Type)
			assert.Equal(t, domain.TransactionStatusProcessing, txn.Status)
			return nil
		})
	d.notifier.EXPECT().Emit(ctx, wd.UserID, gomock.Any(), gomock.Any(), domain.PriorityHigh, gomock.Any()).Return(nil)

	result, err := d.svc.MarkProcessing(ctx, wd.ID, adminID, "0xpayout1")
	require.NoError(t, err)
	assert.Equal(t, domain.WithdrawalStatusProcessing, result.Status)
	require.NotNil(t, result.TransactionHash)
	assert.Equal(t, "0xpayout1", *result.TransactionHash)
}

func TestWithdrawalService_MarkProcessing_InsufficientBalance(t *testing.T) {
	d := setupWithdrawalService(t)
	defer d.ctrl.Finish()

	ctx := context.Background()
	tx := &mockTx{}
	wd := withdrawalAt(uuid.New(), domain.WithdrawalStatusApproved)

	d.wdRepo.EXPECT().GetByID(ctx, wd.ID).Return(wd, nil)
	d.transactor.EXPECT().Begin(ctx).Return(tx, nil)
	d.wdRepo.EXPECT().UpdateStatus(ctx, tx, wd.ID, domain.WithdrawalStatusApproved, domain.WithdrawalStatusProcessing, gomock.Any()).Return(nil)
	// Pool dropped below the requested amount since request; the whole
	// transition rolls back and the request stays approved.
	d.balanceRepo.EXPECT().Debit(ctx, tx, wd.UserID, domain.PoolInterest, wd.Amount).
		Return(ports.ErrInsufficientFunds)

	_, err := d.svc.MarkProcessing(ctx, wd.ID, uuid.New(), "0xpayout1")
	require.Error(t, err)
	appErr, ok := err.(*apperror.AppError)
	require.True(t, ok)
	assert.Equal(t, "LED_001", appErr.Code)
}

func TestWithdrawalService_MarkCompleted(t *testing.T) {
	d := setupWithdrawalService(t)
	defer d.ctrl.Finish()

	ctx := context.Background()
	adminID := uuid.New()
	tx := &mockTx{}
	txHash := "0xpayout1"
	journalID := uuid.New()

	wd := withdrawalAt(uuid.New(), domain.WithdrawalStatusProcessing)
	wd.TransactionHash = &txHash

	d.wdRepo.EXPECT().GetByID(ctx, wd.ID).Return(wd, nil)
	d.transactor.EXPECT().Begin(ctx).Return(tx, nil)
	d.wdRepo.EXPECT().UpdateStatus(ctx, tx, wd.ID, domain.WithdrawalStatusProcessing, domain.WithdrawalStatusCompleted, gomock.Any()).Return(nil)
	d.txRepo.EXPECT().GetByTxHash(ctx, tx, wd.UserID, txHash).Return(&domain.Transaction{
		ID:     journalID,
		Status: domain.TransactionStatusProcessing,
	}, nil)
	d.txRepo.EXPECT().UpdateStatus(ctx, tx, journalID, domain.TransactionStatusCompleted).Return(nil)
	d.notifier.EXPECT().Emit(ctx, wd.UserID, gomock.Any(), gomock.Any(), domain.PriorityHigh, gomock.Any()).Return(nil)

	result, err := d.svc.MarkCompleted(ctx, wd.ID, adminID)
	require.NoError(t, err)
	assert.Equal(t, domain.WithdrawalStatusCompleted, result.Status)
}

func TestWithdrawalService_MarkFailed_RefundsPool(t *testing.T) {
	d := setupWithdrawalService(t)
	defer d.ctrl.Finish()

	ctx := context.Background()
	adminID := uuid.New()
	tx := &mockTx{}
	txHash := "0xpayout1"
	journalID := uuid.New()

	wd := withdrawalAt(uuid.New(), domain.WithdrawalStatusProcessing)
	wd.TransactionHash = &txHash

	d.wdRepo.EXPECT().GetByID(ctx, wd.ID).Return(wd, nil)
	d.transactor.EXPECT().Begin(ctx).Return(tx, nil)
	d.wdRepo.EXPECT().UpdateStatus(ctx, tx, wd.ID, domain.WithdrawalStatusProcessing, domain.WithdrawalStatusFailed, gomock.Any()).Return(nil)
	d.balanceRepo.EXPECT().Credit(ctx, tx, wd.UserID, domain.PoolInterest, wd.Amount).Return(nil)
	d.txRepo.EXPECT().GetByTxHash(ctx, tx, wd.UserID, txHash).Return(&domain.Transaction{
		ID:     journalID,
		Status: domain.TransactionStatusProcessing,
	}, nil)
	d.txRepo.EXPECT().UpdateStatus(ctx, tx, journalID, domain.TransactionStatusFailed).Return(nil)
	d.txRepo.EXPECT().Create(ctx, tx, gomock.Any()).DoAndReturn(
		func(_ context.Context, _ pgx.Tx, txn *domain.Transaction) error {
			assert.Equal(t, domain.TransactionTypeRefund, txn.Type)
			assert.True(t, txn.USDValue.Equal(wd.Amount))
			return nil
		})
	d.notifier.EXPECT().Emit(ctx, wd.UserID, gomock.Any(), gomock.Any(), domain.PriorityHigh, gomock.Any()).Return(nil)

	result, err := d.svc.MarkFailed(ctx, wd.ID, adminID, "on-chain transfer reverted")
	require.NoError(t, err)
	assert.Equal(t, domain.WithdrawalStatusFailed, result.Status)
}

func TestWithdrawalService_Reject(t *testing.T) {
	d := setupWithdrawalService(t)
	defer d.ctrl.Finish()

	ctx := context.Background()
	adminID := uuid.New()
	tx := &mockTx{}
	wd := withdrawalAt(uuid.New(), domain.WithdrawalStatusPending)

	d.wdRepo.EXPECT().GetByID(ctx, wd.ID).Return(wd, nil)
	d.transactor.EXPECT().Begin(ctx).Return(tx, nil)
	d.wdRepo.EXPECT().UpdateStatus(ctx, tx, wd.ID, domain.WithdrawalStatusPending, domain.WithdrawalStatusRejected, gomock.Any()).Return(nil)
	d.notifier.EXPECT().Emit(ctx, wd.UserID, gomock.Any(), gomock.Any(), domain.PriorityHigh, gomock.Any()).Return(nil)

	result, err := d.svc.Reject(ctx, wd.ID, adminID, "suspicious destination")
	require.NoError(t, err)
	assert.Equal(t, domain.WithdrawalStatusRejected, result.Status)
}

func TestWithdrawalService_NotFound(t *testing.T) {
	d := setupWithdrawalService(t)
	defer d.ctrl.Finish()

	ctx := context.Background()
	id := uuid.New()
	d.wdRepo.EXPECT().GetByID(ctx, id).Return(nil, nil)

	_, err := d.svc.Approve(ctx, id, uuid.New(), nil)
	require.Error(t, err)
	appErr, ok := err.(*apperror.AppError)
	require.True(t, ok)
	assert.Equal(t, "LED_003", appErr.Code)
}

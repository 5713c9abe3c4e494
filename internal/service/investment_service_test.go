package service

import (
	"context"
	"testing"

	"invest-ledger/internal/core/domain"
	"invest-ledger/internal/core/ports"
	"invest-ledger/internal/core/ports/mocks"
	"invest-ledger/pkg/apperror"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

func setupInvestmentService(t *testing.T) (*InvestmentServiceImpl, *mocks.MockInvestmentRepository, *mocks.MockNotificationEmitter, *mocks.MockDBTransactor, *gomock.Controller) {
	ctrl := gomock.NewController(t)
	invRepo := mocks.NewMockInvestmentRepository(ctrl)
	notifier := mocks.NewMockNotificationEmitter(ctrl)
	transactor := mocks.NewMockDBTransactor(ctrl)
	svc := NewInvestmentService(invRepo, notifier, transactor, zerolog.Nop())
	return svc, invRepo, notifier, transactor, ctrl
}

func TestInvestmentService_Pause(t *testing.T) {
	svc, invRepo, notifier, transactor, ctrl := setupInvestmentService(t)
	defer ctrl.Finish()

	ctx := context.Background()
	adminID := uuid.New()
	tx := &mockTx{}
	inv := &domain.Investment{
		ID:       uuid.New(),
		UserID:   uuid.New(),
		Status:   domain.InvestmentStatusActive,
		USDValue: decimal.NewFromInt(1000),
	}

	invRepo.EXPECT().GetByID(ctx, inv.ID).Return(inv, nil)
	transactor.EXPECT().Begin(ctx).Return(tx, nil)
	invRepo.EXPECT().SetStatus(ctx, tx, inv.ID, domain.InvestmentStatusActive, domain.InvestmentStatusPaused).Return(nil)
	notifier.EXPECT().Emit(ctx, inv.UserID, gomock.Any(), gomock.Any(), domain.PriorityHigh, gomock.Any()).Return(nil)

	result, err := svc.Pause(ctx, inv.ID, adminID)
	require.NoError(t, err)
	assert.Equal(t, domain.InvestmentStatusPaused, result.Status)
}

func TestInvestmentService_Cancel_NotActive(t *testing.T) {
	svc, invRepo, _, transactor, ctrl := setupInvestmentService(t)
	defer ctrl.Finish()

	ctx := context.Background()
	tx := &mockTx{}
	inv := &domain.Investment{
		ID:     uuid.New(),
		UserID: uuid.New(),
		Status: domain.InvestmentStatusCompleted,
	}

	invRepo.EXPECT().GetByID(ctx, inv.ID).Return(inv, nil)
	transactor.EXPECT().Begin(ctx).Return(tx, nil)
	invRepo.EXPECT().SetStatus(ctx, tx, inv.ID, domain.InvestmentStatusActive, domain.InvestmentStatusCancelled).
		Return(ports.ErrStaleStatus)

	_, err := svc.Cancel(ctx, inv.ID, uuid.New())
	require.Error(t, err)
	appErr, ok := err.(*apperror.AppError)
	require.True(t, ok)
	assert.Equal(t, "LED_002", appErr.Code)
}

func TestInvestmentService_Pause_NotFound(t *testing.T) {
	svc, invRepo, _, _, ctrl := setupInvestmentService(t)
	defer ctrl.Finish()

	ctx := context.Background()
	id := uuid.New()
	invRepo.EXPECT().GetByID(ctx, id).Return(nil, nil)

	_, err := svc.Pause(ctx, id, uuid.New())
	require.Error(t, err)
	appErr, ok := err.(*apperror.AppError)
	require.True(t, ok)
	assert.Equal(t, "LED_003", appErr.Code)
}

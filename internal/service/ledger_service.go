package service

import (
	"context"
	"fmt"

	"invest-ledger/internal/core/domain"
	"invest-ledger/internal/core/ports"
	"invest-ledger/pkg/apperror"

	"github.com/google/uuid"
)

const (
	defaultTxPageSize = 50
	maxTxPageSize     = 200
)

// LedgerServiceImpl implements ports.LedgerService, the read surface.
type LedgerServiceImpl struct {
	balanceRepo ports.BalanceRepository
	txRepo      ports.TransactionRepository
	invRepo     ports.InvestmentRepository
	pendingRepo ports.PendingTransferRepository
	wdRepo      ports.WithdrawalRepository
}

// NewLedgerService creates a new LedgerServiceImpl.
func NewLedgerService(
	balanceRepo ports.BalanceRepository,
	txRepo ports.TransactionRepository,
	invRepo ports.InvestmentRepository,
	pendingRepo ports.PendingTransferRepository,
	wdRepo ports.WithdrawalRepository,
) *LedgerServiceImpl {
	return &LedgerServiceImpl{
		balanceRepo: balanceRepo,
		txRepo:      txRepo,
		invRepo:     invRepo,
		pendingRepo: pendingRepo,
		wdRepo:      wdRepo,
	}
}

// UserBalances returns the user's balance record, or a zero-value record
// for a user that has never been credited.
func (s *LedgerServiceImpl) UserBalances(ctx context.Context, userID uuid.UUID) (*domain.Balance, error) {
	balance, err := s.balanceRepo.Get(ctx, userID)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("get balance: %w", err))
	}
	if balance == nil {
		return domain.ZeroBalance(userID), nil
	}
	return balance, nil
}

// UserTransactions returns a page of the user's journal, newest first.
func (s *LedgerServiceImpl) UserTransactions(ctx context.Context, userID uuid.UUID, limit, offset int) ([]domain.Transaction, error) {
	if limit <= 0 {
		limit = defaultTxPageSize
	}
	if limit > maxTxPageSize {
		limit = maxTxPageSize
	}
	if offset < 0 {
		offset = 0
	}
	txns, err := s.txRepo.ListByUser(ctx, userID, limit, offset)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("list transactions: %w", err))
	}
	return txns, nil
}

// UserInvestments returns all of the user's investments.
func (s *LedgerServiceImpl) UserInvestments(ctx context.Context, userID uuid.UUID) ([]domain.Investment, error) {
	invs, err := s.invRepo.ListByUser(ctx, userID)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("list investments: %w", err))
	}
	return invs, nil
}

// UserPendingTransfers returns all of the user's staged transfers.
func (s *LedgerServiceImpl) UserPendingTransfers(ctx context.Context, userID uuid.UUID) ([]domain.PendingTransfer, error) {
	pendings, err := s.pendingRepo.ListByUser(ctx, userID)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("list pending transfers: %w", err))
	}
	return pendings, nil
}

// UserWithdrawals returns all of the user's withdrawal requests.
func (s *LedgerServiceImpl) UserWithdrawals(ctx context.Context, userID uuid.UUID) ([]domain.WithdrawalRequest, error) {
	wds, err := s.wdRepo.ListByUser(ctx, userID)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("list withdrawals: %w", err))
	}
	return wds, nil
}

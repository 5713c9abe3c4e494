package ports

import (
	"context"
	"time"

	"invest-ledger/internal/core/domain"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// TokenService handles JWT token operations.
type TokenService interface {
	Generate(userID uuid.UUID, role domain.UserRole) (string, time.Time, error)
	Validate(tokenString string) (*TokenClaims, error)
}

// TokenClaims holds the parsed JWT claims.
type TokenClaims struct {
	UserID uuid.UUID
	Role   domain.UserRole
}

// SweepLock serializes a named scheduled sweep across workers. Acquire
// returns false when another worker already holds the sweep.
type SweepLock interface {
	Acquire(ctx context.Context, name string, ttl time.Duration) (bool, error)
	Release(ctx context.Context, name string) error
}

// --- Service Ports (Business Logic) ---

// SubmitTransferRequest holds validated input for staging an inbound
// transfer. PlanID is required when Type is investment.
type SubmitTransferRequest struct {
	UserID        uuid.UUID
	Type          domain.PendingTransferType
	USDValue      decimal.Decimal
	CryptoAmount  decimal.Decimal
	Currency      string
	TxHash        string
	Confirmations int
	FromAddress   *string
	Network       *string
	PlanID        *uuid.UUID
}

// TransferService is the pending confirmation gate (staging, admin
// resolution, scheduled expiry).
type TransferService interface {
	Submit(ctx context.Context, req SubmitTransferRequest) (*domain.PendingTransfer, error)
	Confirm(ctx context.Context, pendingID, adminID uuid.UUID, notes *string) (*domain.PendingTransfer, error)
	Reject(ctx context.Context, pendingID, adminID uuid.UUID, reason string) (*domain.PendingTransfer, error)
	// SweepExpired rejects every staged claim past its deadline. Returns the
	// number of claims swept.
	SweepExpired(ctx context.Context) (int, error)
}

// AccrualService advances accrued-return bookkeeping for active
// investments. It never touches the balance pools.
type AccrualService interface {
	// RunProfitAccrual returns the number of investments accrued.
	RunProfitAccrual(ctx context.Context) (int, error)
}

// SettlementService closes matured investments and distributes principal
// plus accrued return into the balance pools, exactly once per investment.
type SettlementService interface {
	// RunSettlementSweep returns the number of investments settled.
	RunSettlementSweep(ctx context.Context) (int, error)
}

// InvestmentService exposes the admin-only escape hatches of the
// investment state machine.
type InvestmentService interface {
	Pause(ctx context.Context, id, adminID uuid.UUID) (*domain.Investment, error)
	Cancel(ctx context.Context, id, adminID uuid.UUID) (*domain.Investment, error)
}

// WithdrawalSubmission holds validated input for a withdrawal request.
type WithdrawalSubmission struct {
	UserID        uuid.UUID
	BalanceType   domain.BalancePool
	Amount        decimal.Decimal // USD
	CryptoAmount  decimal.Decimal
	WalletAddress string
	Chain         string
}

// WithdrawalService is the four-stage approval pipeline. The balance pool
// is debited exactly once, inside MarkProcessing.
type WithdrawalService interface {
	Request(ctx context.Context, req WithdrawalSubmission) (*domain.WithdrawalRequest, error)
	Approve(ctx context.Context, id, adminID uuid.UUID, notes *string) (*domain.WithdrawalRequest, error)
	MarkProcessing(ctx context.Context, id, adminID uuid.UUID, txHash string) (*domain.WithdrawalRequest, error)
	MarkCompleted(ctx context.Context, id, adminID uuid.UUID) (*domain.WithdrawalRequest, error)
	MarkFailed(ctx context.Context, id, adminID uuid.UUID, reason string) (*domain.WithdrawalRequest, error)
	Reject(ctx context.Context, id, adminID uuid.UUID, reason string) (*domain.WithdrawalRequest, error)
}

// LedgerService is the read surface exposed to the surrounding application.
type LedgerService interface {
	// UserBalances returns a zero-value record for users never credited.
	UserBalances(ctx context.Context, userID uuid.UUID) (*domain.Balance, error)
	UserTransactions(ctx context.Context, userID uuid.UUID, limit, offset int) ([]domain.Transaction, error)
	UserInvestments(ctx context.Context, userID uuid.UUID) ([]domain.Investment, error)
	UserPendingTransfers(ctx context.Context, userID uuid.UUID) ([]domain.PendingTransfer, error)
	UserWithdrawals(ctx context.Context, userID uuid.UUID) ([]domain.WithdrawalRequest, error)
}

package ports

import (
	"context"
	"errors"
	"time"

	"invest-ledger/internal/core/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
)

// Sentinel errors returned by repositories. Services map them onto the
// apperror taxonomy.
var (
	// ErrStaleStatus means a check-and-set transition found the record in a
	// different status than expected (already processed, not yet approved...).
	ErrStaleStatus = errors.New("status precondition not met")
	// ErrInsufficientFunds means a debit would take a pool below zero.
	ErrInsufficientFunds = errors.New("pool balance below requested amount")
	// ErrDuplicateTxHash means a staged transfer with the same user and
	// transaction hash is already awaiting confirmation.
	ErrDuplicateTxHash = errors.New("transfer with this transaction hash already staged")
)

// BalanceRepository defines persistence for per-user balance pools.
// Credit and Debit run inside a transaction, lock the row, and recompute
// total_balance as the sum of the three pools in the same statement.
type BalanceRepository interface {
	// Get returns nil, nil when the user has never been credited.
	Get(ctx context.Context, userID uuid.UUID) (*domain.Balance, error)
	// Credit adds amount to the given pool, creating the record atomically
	// if it does not exist yet.
	Credit(ctx context.Context, tx pgx.Tx, userID uuid.UUID, pool domain.BalancePool, amount decimal.Decimal) error
	// Debit subtracts amount from the given pool. Returns
	// ErrInsufficientFunds (and writes nothing) when the pool holds less.
	Debit(ctx context.Context, tx pgx.Tx, userID uuid.UUID, pool domain.BalancePool, amount decimal.Decimal) error
}

// TransactionRepository defines persistence for the journal.
type TransactionRepository interface {
	Create(ctx context.Context, tx pgx.Tx, t *domain.Transaction) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Transaction, error)
	// GetByTxHash performs the idempotent lookup used to correlate a staged
	// transfer with its mirrored journal entry. Returns nil, nil if absent.
	GetByTxHash(ctx context.Context, tx pgx.Tx, userID uuid.UUID, txHash string) (*domain.Transaction, error)
	UpdateStatus(ctx context.Context, tx pgx.Tx, id uuid.UUID, status domain.TransactionStatus) error
	ListByUser(ctx context.Context, userID uuid.UUID, limit, offset int) ([]domain.Transaction, error)
}

// PendingTransferRepository defines persistence for the confirmation gate's
// staging records.
type PendingTransferRepository interface {
	// Create inserts a staged claim. Returns ErrDuplicateTxHash when a
	// pending claim with the same user and tx hash already exists.
	Create(ctx context.Context, tx pgx.Tx, p *domain.PendingTransfer) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.PendingTransfer, error)
	// GetByTxHash returns the user's most recent claim for a transaction
	// hash, any status. Returns nil, nil if absent.
	GetByTxHash(ctx context.Context, userID uuid.UUID, txHash string) (*domain.PendingTransfer, error)
	// Resolve flips status from pending to the given terminal status.
	// Returns ErrStaleStatus when the record is no longer pending, which
	// makes every staged claim resolvable exactly once.
	Resolve(ctx context.Context, tx pgx.Tx, id uuid.UUID, to domain.PendingTransferStatus, reviewedBy *uuid.UUID, notes *string) error
	ListExpired(ctx context.Context, now time.Time, limit int) ([]domain.PendingTransfer, error)
	ListByUser(ctx context.Context, userID uuid.UUID) ([]domain.PendingTransfer, error)
}

// InvestmentRepository defines persistence for investments. Every mutation
// is a check-and-set on the current status.
type InvestmentRepository interface {
	Create(ctx context.Context, tx pgx.Tx, inv *domain.Investment) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Investment, error)
	// Activate flips pending -> active and stamps the term window plus the
	// accrual watermark.
	Activate(ctx context.Context, tx pgx.Tx, id uuid.UUID, start, end time.Time) error
	// RecordAccrual adds profit to actual_return and total_return and moves
	// the watermark, only while the record is still active.
	RecordAccrual(ctx context.Context, tx pgx.Tx, id uuid.UUID, profit decimal.Decimal, calculatedAt time.Time) error
	// Complete flips active -> completed and trues up actual_return to
	// total_return in the same write, so a raced accrual can never be
	// dropped. Returns the settled total and the return accrued before the
	// true-up.
	Complete(ctx context.Context, tx pgx.Tx, id uuid.UUID) (total, accrued decimal.Decimal, err error)
	// SetStatus performs the admin pause/cancel transitions.
	SetStatus(ctx context.Context, tx pgx.Tx, id uuid.UUID, from, to domain.InvestmentStatus) error
	// ListDueAccrual returns active investments whose watermark is at or
	// before cutoff.
	ListDueAccrual(ctx context.Context, cutoff time.Time, limit int) ([]domain.Investment, error)
	// ListMatured returns active investments whose end date has passed.
	ListMatured(ctx context.Context, now time.Time, limit int) ([]domain.Investment, error)
	ListByUser(ctx context.Context, userID uuid.UUID) ([]domain.Investment, error)
}

// WithdrawalPatch enumerates exactly which fields a transition may touch.
type WithdrawalPatch struct {
	TransactionHash *string
	ReviewedBy      *uuid.UUID
	AdminNotes      *string
}

// WithdrawalRepository defines persistence for withdrawal requests.
type WithdrawalRepository interface {
	Create(ctx context.Context, w *domain.WithdrawalRequest) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.WithdrawalRequest, error)
	// UpdateStatus flips from -> to, applying the patch. Returns
	// ErrStaleStatus when the record is not in the expected status.
	UpdateStatus(ctx context.Context, tx pgx.Tx, id uuid.UUID, from, to domain.WithdrawalStatus, patch WithdrawalPatch) error
	ListByUser(ctx context.Context, userID uuid.UUID) ([]domain.WithdrawalRequest, error)
}

// PlanProvider reads investment plan terms authored by the surrounding
// application.
type PlanProvider interface {
	GetPlan(ctx context.Context, id uuid.UUID) (*domain.InvestmentPlan, error)
}

// UserProfiles reads the user-profile collaborator (admin role, KYC gate).
type UserProfiles interface {
	GetUser(ctx context.Context, id uuid.UUID) (*domain.User, error)
}

// NotificationEmitter records a fire-and-forget notice of a state change.
// Failures never roll back the financial change that triggered them.
type NotificationEmitter interface {
	Emit(ctx context.Context, userID uuid.UUID, title, message string, priority domain.NotificationPriority, metadata map[string]string) error
}

// DBTransactor provides database transaction management.
type DBTransactor interface {
	Begin(ctx context.Context) (pgx.Tx, error)
}

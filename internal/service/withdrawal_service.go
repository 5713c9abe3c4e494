package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"invest-ledger/internal/core/domain"
	"invest-ledger/internal/core/ports"
	"invest-ledger/pkg/apperror"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"
)

// WithdrawalServiceImpl implements ports.WithdrawalService: the four-stage
// approval pipeline. The balance pool is debited exactly once, inside
// MarkProcessing, after re-validating sufficiency.
type WithdrawalServiceImpl struct {
	wdRepo      ports.WithdrawalRepository
	balanceRepo ports.BalanceRepository
	txRepo      ports.TransactionRepository
	userRepo    ports.UserProfiles
	notifier    ports.NotificationEmitter
	transactor  ports.DBTransactor
	log         zerolog.Logger
}

// NewWithdrawalService creates a new WithdrawalServiceImpl.
func NewWithdrawalService(
	wdRepo ports.WithdrawalRepository,
	balanceRepo ports.BalanceRepository,
	txRepo ports.TransactionRepository,
	userRepo ports.UserProfiles,
	notifier ports.NotificationEmitter,
	transactor ports.DBTransactor,
	log zerolog.Logger,
) *WithdrawalServiceImpl {
	return &WithdrawalServiceImpl{
		wdRepo:      wdRepo,
		balanceRepo: balanceRepo,
		txRepo:      txRepo,
		userRepo:    userRepo,
		notifier:    notifier,
		transactor:  transactor,
		log:         log,
	}
}

// Request creates a pending withdrawal request. The balance check here is
// advisory, not a reservation: no money moves until MarkProcessing, which
// re-validates sufficiency.
func (s *WithdrawalServiceImpl) Request(ctx context.Context, req ports.WithdrawalSubmission) (*domain.WithdrawalRequest, error) {
	if !req.Amount.IsPositive() {
		return nil, apperror.ErrInvalidAmount()
	}
	if !req.BalanceType.Valid() {
		return nil, apperror.ErrInvalidPool()
	}
	if req.WalletAddress == "" {
		return nil, apperror.Validation("Wallet address is required")
	}

	user, err := s.userRepo.GetUser(ctx, req.UserID)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("get user: %w", err))
	}
	if user == nil {
		return nil, apperror.ErrNotFound("user")
	}
	if !user.KYCApproved {
		return nil, apperror.ErrKYCRequired()
	}

	balance, err := s.balanceRepo.Get(ctx, req.UserID)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("get balance: %w", err))
	}
	if balance == nil {
		balance = domain.ZeroBalance(req.UserID)
	}
	if balance.Pool(req.BalanceType).LessThan(req.Amount) {
		return nil, apperror.ErrInsufficientBalance(string(req.BalanceType))
	}

	now := time.Now().UTC()
	wd := &domain.WithdrawalRequest{
		ID:            uuid.New(),
		UserID:        req.UserID,
		Status:        domain.WithdrawalStatusPending,
		BalanceType:   req.BalanceType,
		Amount:        req.Amount,
		CryptoAmount:  req.CryptoAmount,
		WalletAddress: req.WalletAddress,
		Chain:         req.Chain,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if err := s.wdRepo.Create(ctx, wd); err != nil {
		return nil, apperror.InternalError(fmt.Errorf("create withdrawal request: %w", err))
	}

	emitNotice(ctx, s.log, s.notifier, req.UserID,
		"Withdrawal requested",
		fmt.Sprintf("Your withdrawal of $%s from the %s pool is awaiting review", req.Amount.StringFixed(2), req.BalanceType),
		domain.PriorityMedium,
		map[string]string{"withdrawal_id": wd.ID.String()})

	s.log.Info().
		Str("withdrawal_id", wd.ID.String()).
		Str("user_id", req.UserID.String()).
		Str("pool", string(req.BalanceType)).
		Str("amount", req.Amount.String()).
		Msg("withdrawal requested")

	return wd, nil
}

// Approve moves pending -> approved. No money moves.
func (s *WithdrawalServiceImpl) Approve(ctx context.Context, id, adminID uuid.UUID, notes *string) (*domain.WithdrawalRequest, error) {
	return s.transition(ctx, id, domain.WithdrawalStatusPending, domain.WithdrawalStatusApproved,
		ports.WithdrawalPatch{ReviewedBy: &adminID, AdminNotes: notes},
		func(context.Context, pgx.Tx, *domain.WithdrawalRequest) error { return nil },
		"Withdrawal approved", "has been approved and will be processed shortly")
}

// MarkProcessing moves approved -> processing. This is the sole point the
// balance pool is debited; if the pool dropped below the requested amount
// since the request, the whole transition fails and the request stays
// approved for manual resolution.
func (s *WithdrawalServiceImpl) MarkProcessing(ctx context.Context, id, adminID uuid.UUID, txHash string) (*domain.WithdrawalRequest, error) {
	if txHash == "" {
		return nil, apperror.Validation("Transaction hash is required")
	}

	wd, err := s.transition(ctx, id, domain.WithdrawalStatusApproved, domain.WithdrawalStatusProcessing,
		ports.WithdrawalPatch{TransactionHash: &txHash, ReviewedBy: &adminID},
		func(ctx context.Context, dbTx pgx.Tx, wd *domain.WithdrawalRequest) error {
			if err := s.balanceRepo.Debit(ctx, dbTx, wd.UserID, wd.BalanceType, wd.Amount); err != nil {
				if errors.Is(err, ports.ErrInsufficientFunds) {
					return apperror.ErrInsufficientBalance(string(wd.BalanceType))
				}
				return apperror.InternalError(fmt.Errorf("debit %s pool: %w", wd.BalanceType, err))
			}

			now := time.Now().UTC()
			desc := fmt.Sprintf("Withdrawal to %s", wd.WalletAddress)
			txn := &domain.Transaction{
				ID:          uuid.New(),
				UserID:      wd.UserID,
				Type:        domain.TransactionTypeWithdrawal,
				Status:      domain.TransactionStatusProcessing,
				USDValue:    wd.Amount,
				Amount:      wd.CryptoAmount,
				Currency:    wd.Chain,
				TxHash:      &txHash,
				ToAddress:   &wd.WalletAddress,
				Description: &desc,
				CreatedAt:   now,
				UpdatedAt:   now,
			}
			if err := s.txRepo.Create(ctx, dbTx, txn); err != nil {
				return apperror.InternalError(fmt.Errorf("create withdrawal entry: %w", err))
			}
			return nil
		},
		"Withdrawal processing", "is being sent to your wallet")
	if err != nil {
		return nil, err
	}
	wd.TransactionHash = &txHash
	return wd, nil
}

// MarkCompleted moves processing -> completed and settles the journal entry.
func (s *WithdrawalServiceImpl) MarkCompleted(ctx context.Context, id, adminID uuid.UUID) (*domain.WithdrawalRequest, error) {
	return s.transition(ctx, id, domain.WithdrawalStatusProcessing, domain.WithdrawalStatusCompleted,
		ports.WithdrawalPatch{ReviewedBy: &adminID},
		func(ctx context.Context, dbTx pgx.Tx, wd *domain.WithdrawalRequest) error {
			return s.settleJournal(ctx, dbTx, wd, domain.TransactionStatusCompleted)
		},
		"Withdrawal completed", "has been sent to your wallet")
}

// MarkFailed moves processing -> failed, refunds the debited pool, and
// fails the journal entry. The refund entry keeps the audit trail honest
// about money that left and came back.
func (s *WithdrawalServiceImpl) MarkFailed(ctx context.Context, id, adminID uuid.UUID, reason string) (*domain.WithdrawalRequest, error) {
	return s.transition(ctx, id, domain.WithdrawalStatusProcessing, domain.WithdrawalStatusFailed,
		ports.WithdrawalPatch{ReviewedBy: &adminID, AdminNotes: &reason},
		func(ctx context.Context, dbTx pgx.Tx, wd *domain.WithdrawalRequest) error {
			if err := s.balanceRepo.Credit(ctx, dbTx, wd.UserID, wd.BalanceType, wd.Amount); err != nil {
				return apperror.InternalError(fmt.Errorf("refund %s pool: %w", wd.BalanceType, err))
			}
			if err := s.settleJournal(ctx, dbTx, wd, domain.TransactionStatusFailed); err != nil {
				return err
			}

			now := time.Now().UTC()
			desc := fmt.Sprintf("Refund of failed withdrawal: %s", reason)
			txn := &domain.Transaction{
				ID:          uuid.New(),
				UserID:      wd.UserID,
				Type:        domain.TransactionTypeRefund,
				Status:      domain.TransactionStatusCompleted,
				USDValue:    wd.Amount,
				Amount:      wd.Amount,
				Currency:    "USD",
				Description: &desc,
				CreatedAt:   now,
				UpdatedAt:   now,
			}
			if err := s.txRepo.Create(ctx, dbTx, txn); err != nil {
				return apperror.InternalError(fmt.Errorf("create refund entry: %w", err))
			}
			return nil
		},
		"Withdrawal failed", "failed and the amount was returned to your balance")
}

// Reject moves pending -> rejected. No balance effect.
func (s *WithdrawalServiceImpl) Reject(ctx context.Context, id, adminID uuid.UUID, reason string) (*domain.WithdrawalRequest, error) {
	return s.transition(ctx, id, domain.WithdrawalStatusPending, domain.WithdrawalStatusRejected,
		ports.WithdrawalPatch{ReviewedBy: &adminID, AdminNotes: &reason},
		func(context.Context, pgx.Tx, *domain.WithdrawalRequest) error { return nil },
		"Withdrawal rejected", "was rejected: "+reason)
}

// transition runs one pipeline step: check-and-set the status from -> to
// with the patch, apply the side effect in the same transaction, notify.
func (s *WithdrawalServiceImpl) transition(
	ctx context.Context,
	id uuid.UUID,
	from, to domain.WithdrawalStatus,
	patch ports.WithdrawalPatch,
	effect func(context.Context, pgx.Tx, *domain.WithdrawalRequest) error,
	noticeTitle, noticeSuffix string,
) (*domain.WithdrawalRequest, error) {
	wd, err := s.wdRepo.GetByID(ctx, id)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("get withdrawal request: %w", err))
	}
	if wd == nil {
		return nil, apperror.ErrNotFound("withdrawal request")
	}

	dbTx, err := s.transactor.Begin(ctx)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("begin tx: %w", err))
	}
	defer dbTx.Rollback(ctx) //nolint:errcheck

	if err := s.wdRepo.UpdateStatus(ctx, dbTx, id, from, to, patch); err != nil {
		if errors.Is(err, ports.ErrStaleStatus) {
			return nil, apperror.ErrInvalidTransition(
				fmt.Sprintf("Withdrawal is not %s", from))
		}
		return nil, apperror.InternalError(fmt.Errorf("update withdrawal status: %w", err))
	}

	if err := effect(ctx, dbTx, wd); err != nil {
		return nil, err
	}

	if err := dbTx.Commit(ctx); err != nil {
		return nil, apperror.InternalError(fmt.Errorf("commit tx: %w", err))
	}

	wd.Status = to
	if patch.ReviewedBy != nil {
		wd.ReviewedBy = patch.ReviewedBy
	}
	if patch.AdminNotes != nil {
		wd.AdminNotes = patch.AdminNotes
	}

	emitNotice(ctx, s.log, s.notifier, wd.UserID,
		noticeTitle,
		fmt.Sprintf("Your withdrawal of $%s %s", wd.Amount.StringFixed(2), noticeSuffix),
		domain.PriorityHigh,
		map[string]string{"withdrawal_id": wd.ID.String()})

	s.log.Info().
		Str("withdrawal_id", id.String()).
		Str("from", string(from)).
		Str("to", string(to)).
		Msg("withdrawal transitioned")

	return wd, nil
}

// settleJournal moves the withdrawal's journal entry to a terminal status,
// looked up by the tx hash assigned at MarkProcessing.
func (s *WithdrawalServiceImpl) settleJournal(ctx context.Context, dbTx pgx.Tx, wd *domain.WithdrawalRequest, status domain.TransactionStatus) error {
	if wd.TransactionHash == nil {
		return nil
	}
	txn, err := s.txRepo.GetByTxHash(ctx, dbTx, wd.UserID, *wd.TransactionHash)
	if err != nil {
		return apperror.InternalError(fmt.Errorf("lookup withdrawal entry: %w", err))
	}
	if txn == nil || txn.IsTerminal() {
		return nil
	}
	if err := s.txRepo.UpdateStatus(ctx, dbTx, txn.ID, status); err != nil {
		return apperror.InternalError(fmt.Errorf("update withdrawal entry: %w", err))
	}
	return nil
}

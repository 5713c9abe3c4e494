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

// TransferServiceImpl implements ports.TransferService: the staging gate
// that keeps unconfirmed inbound transfers out of the permanent journal.
type TransferServiceImpl struct {
	pendingRepo ports.PendingTransferRepository
	txRepo      ports.TransactionRepository
	balanceRepo ports.BalanceRepository
	invRepo     ports.InvestmentRepository
	planRepo    ports.PlanProvider
	notifier    ports.NotificationEmitter
	transactor  ports.DBTransactor
	batchSize   int
	log         zerolog.Logger
}

// NewTransferService creates a new TransferServiceImpl.
func NewTransferService(
	pendingRepo ports.PendingTransferRepository,
	txRepo ports.TransactionRepository,
	balanceRepo ports.BalanceRepository,
	invRepo ports.InvestmentRepository,
	planRepo ports.PlanProvider,
	notifier ports.NotificationEmitter,
	transactor ports.DBTransactor,
	batchSize int,
	log zerolog.Logger,
) *TransferServiceImpl {
	return &TransferServiceImpl{
		pendingRepo: pendingRepo,
		txRepo:      txRepo,
		balanceRepo: balanceRepo,
		invRepo:     invRepo,
		planRepo:    planRepo,
		notifier:    notifier,
		transactor:  transactor,
		batchSize:   batchSize,
		log:         log,
	}
}

// Submit stages an inbound transfer claim and mirrors it into the journal
// as a pending entry. For investment claims it also creates the pending
// investment record. This only bookkeeps the claim; the caller moves the
// actual crypto off-chain.
func (s *TransferServiceImpl) Submit(ctx context.Context, req ports.SubmitTransferRequest) (*domain.PendingTransfer, error) {
	if !req.USDValue.IsPositive() {
		return nil, apperror.ErrInvalidAmount()
	}
	if req.TxHash == "" {
		return nil, apperror.Validation("Transaction hash is required")
	}

	// The tx hash is the claim's natural key: a client retry must not stage
	// a second claim for the same on-chain transfer. Only a rejected claim
	// frees the hash for resubmission.
	existing, err := s.pendingRepo.GetByTxHash(ctx, req.UserID, req.TxHash)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("check tx hash: %w", err))
	}
	if existing != nil && existing.Status != domain.PendingTransferRejected {
		return nil, apperror.ErrDuplicateTransfer()
	}

	var plan *domain.InvestmentPlan
	if req.Type == domain.PendingTransferInvestment {
		if req.PlanID == nil {
			return nil, apperror.Validation("Plan is required for investment transfers")
		}
		plan, err = s.planRepo.GetPlan(ctx, *req.PlanID)
		if err != nil {
			return nil, apperror.InternalError(fmt.Errorf("get plan: %w", err))
		}
		if plan == nil {
			return nil, apperror.ErrNotFound("investment plan")
		}
		if !plan.Active {
			return nil, apperror.ErrPlanInactive()
		}
		if req.USDValue.LessThan(plan.MinAmount) || req.USDValue.GreaterThan(plan.MaxAmount) {
			return nil, apperror.ErrAmountOutOfPlanRange()
		}
	}

	dbTx, err := s.transactor.Begin(ctx)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("begin tx: %w", err))
	}
	defer dbTx.Rollback(ctx) //nolint:errcheck

	now := time.Now().UTC()
	pending := &domain.PendingTransfer{
		ID:            uuid.New(),
		UserID:        req.UserID,
		Type:          req.Type,
		Status:        domain.PendingTransferPending,
		USDValue:      req.USDValue,
		CryptoAmount:  req.CryptoAmount,
		Currency:      req.Currency,
		TxHash:        req.TxHash,
		Confirmations: req.Confirmations,
		PlanID:        req.PlanID,
		ExpiresAt:     now.Add(domain.PendingTransferTTL),
		CreatedAt:     now,
		UpdatedAt:     now,
	}

	if req.Type == domain.PendingTransferInvestment {
		inv := &domain.Investment{
			ID:              uuid.New(),
			UserID:          req.UserID,
			PlanID:          *req.PlanID,
			Status:          domain.InvestmentStatusPending,
			USDValue:        req.USDValue,
			TransactionHash: req.TxHash,
			CreatedAt:       now,
			UpdatedAt:       now,
		}
		if err := s.invRepo.Create(ctx, dbTx, inv); err != nil {
			return nil, apperror.InternalError(fmt.Errorf("create investment: %w", err))
		}
		pending.InvestmentID = &inv.ID
	}

	if err := s.pendingRepo.Create(ctx, dbTx, pending); err != nil {
		// Two concurrent submits can both pass the read above; the unique
		// index settles it.
		if errors.Is(err, ports.ErrDuplicateTxHash) {
			return nil, apperror.ErrDuplicateTransfer()
		}
		return nil, apperror.InternalError(fmt.Errorf("create pending transfer: %w", err))
	}

	// Mirrored journal entry, correlated by tx hash.
	txn := s.mirrorTransaction(pending, req.FromAddress, req.Network, now)
	if err := s.txRepo.Create(ctx, dbTx, txn); err != nil {
		return nil, apperror.InternalError(fmt.Errorf("create journal entry: %w", err))
	}

	if err := dbTx.Commit(ctx); err != nil {
		return nil, apperror.InternalError(fmt.Errorf("commit tx: %w", err))
	}

	emitNotice(ctx, s.log, s.notifier, req.UserID,
		"Transfer received",
		fmt.Sprintf("Your %s of $%s is awaiting confirmation", pending.Type, pending.USDValue.StringFixed(2)),
		domain.PriorityMedium,
		map[string]string{"pending_id": pending.ID.String(), "tx_hash": pending.TxHash})

	s.log.Info().
		Str("pending_id", pending.ID.String()).
		Str("user_id", req.UserID.String()).
		Str("type", string(req.Type)).
		Str("usd_value", req.USDValue.String()).
		Msg("pending transfer submitted")

	return pending, nil
}

// Confirm resolves a staged claim as confirmed and applies its effect: a
// deposit credits the main pool, an investment activates the linked record.
// The status flip, the journal completion, and the branch effect commit as
// one unit, so a crash mid-way can never leave a confirmed claim whose
// money went missing.
func (s *TransferServiceImpl) Confirm(ctx context.Context, pendingID, adminID uuid.UUID, notes *string) (*domain.PendingTransfer, error) {
	pending, err := s.pendingRepo.GetByID(ctx, pendingID)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("get pending transfer: %w", err))
	}
	if pending == nil {
		return nil, apperror.ErrNotFound("pending transfer")
	}

	dbTx, err := s.transactor.Begin(ctx)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("begin tx: %w", err))
	}
	defer dbTx.Rollback(ctx) //nolint:errcheck

	// The check-and-set here is the authoritative guard: a second confirm,
	// a racing reject, or the expiry sweep loses and changes nothing.
	if err := s.pendingRepo.Resolve(ctx, dbTx, pendingID, domain.PendingTransferConfirmed, &adminID, notes); err != nil {
		if errors.Is(err, ports.ErrStaleStatus) {
			return nil, apperror.ErrAlreadyProcessed()
		}
		return nil, apperror.InternalError(fmt.Errorf("resolve pending transfer: %w", err))
	}

	if err := s.settleMirror(ctx, dbTx, pending, domain.TransactionStatusCompleted); err != nil {
		return nil, err
	}

	switch pending.Type {
	case domain.PendingTransferDeposit:
		if err := s.balanceRepo.Credit(ctx, dbTx, pending.UserID, domain.PoolMain, pending.USDValue); err != nil {
			return nil, apperror.InternalError(fmt.Errorf("credit main pool: %w", err))
		}

	case domain.PendingTransferInvestment:
		if pending.InvestmentID == nil || pending.PlanID == nil {
			return nil, apperror.InternalError(fmt.Errorf("investment transfer %s has no linked investment", pendingID))
		}
		plan, err := s.planRepo.GetPlan(ctx, *pending.PlanID)
		if err != nil {
			return nil, apperror.InternalError(fmt.Errorf("get plan: %w", err))
		}
		if plan == nil {
			return nil, apperror.ErrNotFound("investment plan")
		}
		start := time.Now().UTC()
		if err := s.invRepo.Activate(ctx, dbTx, *pending.InvestmentID, start, start.Add(plan.Duration())); err != nil {
			if errors.Is(err, ports.ErrStaleStatus) {
				return nil, apperror.ErrInvalidTransition("Linked investment is no longer pending")
			}
			return nil, apperror.InternalError(fmt.Errorf("activate investment: %w", err))
		}
	}

	if err := dbTx.Commit(ctx); err != nil {
		return nil, apperror.InternalError(fmt.Errorf("commit tx: %w", err))
	}

	pending.Status = domain.PendingTransferConfirmed
	pending.ReviewedBy = &adminID
	pending.AdminNotes = notes

	emitNotice(ctx, s.log, s.notifier, pending.UserID,
		"Transfer confirmed",
		fmt.Sprintf("Your %s of $%s has been confirmed", pending.Type, pending.USDValue.StringFixed(2)),
		domain.PriorityHigh,
		map[string]string{"pending_id": pending.ID.String()})

	s.log.Info().
		Str("pending_id", pendingID.String()).
		Str("admin_id", adminID.String()).
		Str("type", string(pending.Type)).
		Msg("pending transfer confirmed")

	return pending, nil
}

// Reject resolves a staged claim as rejected. The mirrored journal entry is
// failed and nothing is credited; a linked pending investment is cancelled.
func (s *TransferServiceImpl) Reject(ctx context.Context, pendingID, adminID uuid.UUID, reason string) (*domain.PendingTransfer, error) {
	pending, err := s.pendingRepo.GetByID(ctx, pendingID)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("get pending transfer: %w", err))
	}
	if pending == nil {
		return nil, apperror.ErrNotFound("pending transfer")
	}

	dbTx, err := s.transactor.Begin(ctx)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("begin tx: %w", err))
	}
	defer dbTx.Rollback(ctx) //nolint:errcheck

	if err := s.rejectInTx(ctx, dbTx, pending, &adminID, reason); err != nil {
		return nil, err
	}

	if err := dbTx.Commit(ctx); err != nil {
		return nil, apperror.InternalError(fmt.Errorf("commit tx: %w", err))
	}

	pending.Status = domain.PendingTransferRejected
	pending.ReviewedBy = &adminID
	pending.AdminNotes = &reason

	emitNotice(ctx, s.log, s.notifier, pending.UserID,
		"Transfer rejected",
		fmt.Sprintf("Your %s of $%s was rejected: %s", pending.Type, pending.USDValue.StringFixed(2), reason),
		domain.PriorityHigh,
		map[string]string{"pending_id": pending.ID.String()})

	s.log.Info().
		Str("pending_id", pendingID.String()).
		Str("admin_id", adminID.String()).
		Str("reason", reason).
		Msg("pending transfer rejected")

	return pending, nil
}

// SweepExpired rejects every staged claim past its deadline so no claim
// stays in limbo and a stale claim can never be confirmed later. Safe to
// run concurrently: the per-record check-and-set makes a duplicate tick
// find nothing left to do.
func (s *TransferServiceImpl) SweepExpired(ctx context.Context) (int, error) {
	expired, err := s.pendingRepo.ListExpired(ctx, time.Now().UTC(), s.batchSize)
	if err != nil {
		return 0, apperror.InternalError(fmt.Errorf("list expired transfers: %w", err))
	}

	swept := 0
	for i := range expired {
		p := &expired[i]
		done, err := s.sweepOne(ctx, p)
		if err != nil {
			// One record's failure must not abort the batch; leave it for
			// the next tick.
			s.log.Error().Err(err).
				Str("pending_id", p.ID.String()).
				Msg("failed to sweep expired transfer")
			continue
		}
		if !done {
			continue // resolved between the list and the sweep
		}
		swept++

		emitNotice(ctx, s.log, s.notifier, p.UserID,
			"Transfer expired",
			fmt.Sprintf("Your %s of $%s expired before confirmation", p.Type, p.USDValue.StringFixed(2)),
			domain.PriorityMedium,
			map[string]string{"pending_id": p.ID.String()})
	}

	if swept > 0 {
		s.log.Info().Int("swept", swept).Msg("expired transfers swept")
	}
	return swept, nil
}

func (s *TransferServiceImpl) sweepOne(ctx context.Context, pending *domain.PendingTransfer) (bool, error) {
	dbTx, err := s.transactor.Begin(ctx)
	if err != nil {
		return false, fmt.Errorf("begin tx: %w", err)
	}
	defer dbTx.Rollback(ctx) //nolint:errcheck

	reason := "Expired: not confirmed within 24 hours"
	if err := s.rejectInTx(ctx, dbTx, pending, nil, reason); err != nil {
		var appErr *apperror.AppError
		// A claim resolved between the list and the sweep is not a failure.
		if errors.As(err, &appErr) && appErr.Code == "LED_002" {
			return false, nil
		}
		return false, err
	}

	if err := dbTx.Commit(ctx); err != nil {
		return false, err
	}
	return true, nil
}

// rejectInTx performs the shared reject path: flip the staging record, fail
// the mirrored journal entry, cancel a linked pending investment.
func (s *TransferServiceImpl) rejectInTx(ctx context.Context, dbTx pgx.Tx, pending *domain.PendingTransfer, reviewedBy *uuid.UUID, reason string) error {
	if err := s.pendingRepo.Resolve(ctx, dbTx, pending.ID, domain.PendingTransferRejected, reviewedBy, &reason); err != nil {
		if errors.Is(err, ports.ErrStaleStatus) {
			return apperror.ErrAlreadyProcessed()
		}
		return apperror.InternalError(fmt.Errorf("resolve pending transfer: %w", err))
	}

	if err := s.settleMirror(ctx, dbTx, pending, domain.TransactionStatusFailed); err != nil {
		return err
	}

	if pending.Type == domain.PendingTransferInvestment && pending.InvestmentID != nil {
		err := s.invRepo.SetStatus(ctx, dbTx, *pending.InvestmentID, domain.InvestmentStatusPending, domain.InvestmentStatusCancelled)
		if err != nil && !errors.Is(err, ports.ErrStaleStatus) {
			return apperror.InternalError(fmt.Errorf("cancel investment: %w", err))
		}
	}
	return nil
}

// settleMirror moves the mirrored journal entry to its terminal status,
// creating it first if the mirror failed to write at submission.
func (s *TransferServiceImpl) settleMirror(ctx context.Context, dbTx pgx.Tx, pending *domain.PendingTransfer, status domain.TransactionStatus) error {
	txn, err := s.txRepo.GetByTxHash(ctx, dbTx, pending.UserID, pending.TxHash)
	if err != nil {
		return apperror.InternalError(fmt.Errorf("lookup journal entry: %w", err))
	}
	if txn == nil {
		txn = s.mirrorTransaction(pending, nil, nil, time.Now().UTC())
		txn.Status = status
		if err := s.txRepo.Create(ctx, dbTx, txn); err != nil {
			return apperror.InternalError(fmt.Errorf("recreate journal entry: %w", err))
		}
		return nil
	}
	if txn.IsTerminal() {
		return nil
	}
	if err := s.txRepo.UpdateStatus(ctx, dbTx, txn.ID, status); err != nil {
		return apperror.InternalError(fmt.Errorf("update journal entry: %w", err))
	}
	return nil
}

func (s *TransferServiceImpl) mirrorTransaction(pending *domain.PendingTransfer, fromAddress, network *string, now time.Time) *domain.Transaction {
	txType := domain.TransactionTypeDeposit
	if pending.Type == domain.PendingTransferInvestment {
		txType = domain.TransactionTypeInvestment
	}
	txHash := pending.TxHash
	return &domain.Transaction{
		ID:          uuid.New(),
		UserID:      pending.UserID,
		Type:        txType,
		Status:      domain.TransactionStatusPending,
		USDValue:    pending.USDValue,
		Amount:      pending.CryptoAmount,
		Currency:    pending.Currency,
		TxHash:      &txHash,
		FromAddress: fromAddress,
		Network:     network,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

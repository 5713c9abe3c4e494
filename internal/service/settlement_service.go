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
	"github.com/rs/zerolog"
)

// SettlementServiceImpl implements ports.SettlementService. Settlement is
// the only place principal and accrued return become withdrawable.
type SettlementServiceImpl struct {
	invRepo     ports.InvestmentRepository
	txRepo      ports.TransactionRepository
	balanceRepo ports.BalanceRepository
	notifier    ports.NotificationEmitter
	transactor  ports.DBTransactor
	batchSize   int
	log         zerolog.Logger
}

// NewSettlementService creates a new SettlementServiceImpl.
func NewSettlementService(
	invRepo ports.InvestmentRepository,
	txRepo ports.TransactionRepository,
	balanceRepo ports.BalanceRepository,
	notifier ports.NotificationEmitter,
	transactor ports.DBTransactor,
	batchSize int,
	log zerolog.Logger,
) *SettlementServiceImpl {
	return &SettlementServiceImpl{
		invRepo:     invRepo,
		txRepo:      txRepo,
		balanceRepo: balanceRepo,
		notifier:    notifier,
		transactor:  transactor,
		batchSize:   batchSize,
		log:         log,
	}
}

// RunSettlementSweep closes every active investment past its end date and
// distributes principal plus accrued return into the balance pools. Each
// investment settles exactly once: the active -> completed check-and-set
// loses for any record another tick already closed, and the loser skips
// the distribution entirely. Returns the number of investments settled.
func (s *SettlementServiceImpl) RunSettlementSweep(ctx context.Context) (int, error) {
	now := time.Now().UTC()
	matured, err := s.invRepo.ListMatured(ctx, now, s.batchSize)
	if err != nil {
		return 0, apperror.InternalError(fmt.Errorf("list matured investments: %w", err))
	}

	settled := 0
	for i := range matured {
		inv := &matured[i]
		done, err := s.settleOne(ctx, inv, now)
		if err != nil {
			s.log.Error().Err(err).
				Str("investment_id", inv.ID.String()).
				Msg("failed to settle investment")
			continue
		}
		if !done {
			continue // lost the status race, another tick settled it
		}
		settled++

		emitNotice(ctx, s.log, s.notifier, inv.UserID,
			"Investment completed",
			fmt.Sprintf("Your investment of $%s matured with $%s total profit",
				inv.USDValue.StringFixed(2), inv.TotalReturn.StringFixed(2)),
			domain.PriorityHigh,
			map[string]string{"investment_id": inv.ID.String()})
	}

	if settled > 0 {
		s.log.Info().Int("settled", settled).Msg("settlement sweep finished")
	}
	return settled, nil
}

func (s *SettlementServiceImpl) settleOne(ctx context.Context, inv *domain.Investment, now time.Time) (bool, error) {
	dbTx, err := s.transactor.Begin(ctx)
	if err != nil {
		return false, fmt.Errorf("begin tx: %w", err)
	}
	defer dbTx.Rollback(ctx) //nolint:errcheck

	// Complete trues up actual_return to total_return inside the same
	// statement that flips active -> completed, so the distribution below
	// works from the row's settled figures rather than the ListMatured
	// snapshot. An accrual racing in between the list and this write is
	// included, not dropped.
	total, accrued, err := s.invRepo.Complete(ctx, dbTx, inv.ID)
	if err != nil {
		if errors.Is(err, ports.ErrStaleStatus) {
			return false, nil
		}
		return false, fmt.Errorf("complete investment: %w", err)
	}
	inv.TotalReturn = total
	inv.ActualReturn = total

	// Residual return never accrued day by day gets one final journal entry.
	if residual := total.Sub(accrued); residual.IsPositive() {
		desc := "Final return true-up at settlement"
		txn := &domain.Transaction{
			ID:          uuid.New(),
			UserID:      inv.UserID,
			Type:        domain.TransactionTypeReturn,
			Status:      domain.TransactionStatusCompleted,
			USDValue:    residual,
			Amount:      residual,
			Currency:    "USD",
			Description: &desc,
			CreatedAt:   now,
			UpdatedAt:   now,
		}
		if err := s.txRepo.Create(ctx, dbTx, txn); err != nil {
			return false, fmt.Errorf("create true-up entry: %w", err)
		}
	}

	if total.IsPositive() {
		if err := s.balanceRepo.Credit(ctx, dbTx, inv.UserID, domain.PoolInterest, total); err != nil {
			return false, fmt.Errorf("credit interest pool: %w", err)
		}
	}
	if err := s.balanceRepo.Credit(ctx, dbTx, inv.UserID, domain.PoolInvestment, inv.USDValue); err != nil {
		return false, fmt.Errorf("credit investment pool: %w", err)
	}

	if err := dbTx.Commit(ctx); err != nil {
		return false, fmt.Errorf("commit tx: %w", err)
	}
	return true, nil
}

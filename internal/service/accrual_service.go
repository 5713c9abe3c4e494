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
	"github.com/shopspring/decimal"
)

// AccrualServiceImpl implements ports.AccrualService. It advances the
// accrued-return bookkeeping of active investments without touching the
// balance pools; money only becomes spendable at settlement.
type AccrualServiceImpl struct {
	invRepo    ports.InvestmentRepository
	txRepo     ports.TransactionRepository
	planRepo   ports.PlanProvider
	notifier   ports.NotificationEmitter
	transactor ports.DBTransactor
	batchSize  int
	log        zerolog.Logger
}

// NewAccrualService creates a new AccrualServiceImpl.
func NewAccrualService(
	invRepo ports.InvestmentRepository,
	txRepo ports.TransactionRepository,
	planRepo ports.PlanProvider,
	notifier ports.NotificationEmitter,
	transactor ports.DBTransactor,
	batchSize int,
	log zerolog.Logger,
) *AccrualServiceImpl {
	return &AccrualServiceImpl{
		invRepo:    invRepo,
		txRepo:     txRepo,
		planRepo:   planRepo,
		notifier:   notifier,
		transactor: transactor,
		batchSize:  batchSize,
		log:        log,
	}
}

// RunProfitAccrual credits daily profit to every active investment whose
// watermark is at least one whole day old. Re-running within the same day
// is a no-op: the whole-day floor yields zero days and the record is
// skipped. Returns the number of investments accrued.
func (s *AccrualServiceImpl) RunProfitAccrual(ctx context.Context) (int, error) {
	now := time.Now().UTC()
	due, err := s.invRepo.ListDueAccrual(ctx, now.Add(-24*time.Hour), s.batchSize)
	if err != nil {
		return 0, apperror.InternalError(fmt.Errorf("list due investments: %w", err))
	}

	accrued := 0
	for i := range due {
		inv := &due[i]
		profit, err := s.accrueOne(ctx, inv, now)
		if err != nil {
			// Per-record failures are independent; the record stays due and
			// the next tick picks it up.
			s.log.Error().Err(err).
				Str("investment_id", inv.ID.String()).
				Msg("failed to accrue investment")
			continue
		}
		if profit == nil {
			continue // less than a whole day elapsed
		}
		accrued++

		emitNotice(ctx, s.log, s.notifier, inv.UserID,
			"Profit accrued",
			fmt.Sprintf("Your investment earned $%s", profit.StringFixed(2)),
			domain.PriorityLow,
			map[string]string{"investment_id": inv.ID.String()})
	}

	if accrued > 0 {
		s.log.Info().Int("accrued", accrued).Msg("profit accrual run finished")
	}
	return accrued, nil
}

// accrueOne applies whole-day profit to a single investment. Returns nil
// profit when no whole day has elapsed since the watermark.
func (s *AccrualServiceImpl) accrueOne(ctx context.Context, inv *domain.Investment, now time.Time) (*decimal.Decimal, error) {
	if inv.LastProfitCalculation == nil {
		return nil, fmt.Errorf("active investment %s has no accrual watermark", inv.ID)
	}

	wholeDays := int64(now.Sub(*inv.LastProfitCalculation).Hours() / 24)
	if wholeDays < 1 {
		return nil, nil
	}

	plan, err := s.planRepo.GetPlan(ctx, inv.PlanID)
	if err != nil {
		return nil, fmt.Errorf("get plan: %w", err)
	}
	if plan == nil {
		return nil, fmt.Errorf("plan %s not found", inv.PlanID)
	}

	profit := inv.USDValue.Mul(plan.DailyRate()).Mul(decimal.NewFromInt(wholeDays))

	dbTx, err := s.transactor.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer dbTx.Rollback(ctx) //nolint:errcheck

	// The watermark moves to now, not += wholeDays, so scheduler jitter is
	// absorbed rather than compounded. RecordAccrual only applies while the
	// record is still active; losing that race means another worker (or a
	// settlement tick) got there first.
	if err := s.invRepo.RecordAccrual(ctx, dbTx, inv.ID, profit, now); err != nil {
		if errors.Is(err, ports.ErrStaleStatus) {
			return nil, nil
		}
		return nil, fmt.Errorf("record accrual: %w", err)
	}

	desc := fmt.Sprintf("Daily profit for %d day(s)", wholeDays)
	txn := &domain.Transaction{
		ID:          uuid.New(),
		UserID:      inv.UserID,
		Type:        domain.TransactionTypeReturn,
		Status:      domain.TransactionStatusCompleted,
		USDValue:    profit,
		Amount:      profit,
		Currency:    "USD",
		Description: &desc,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.txRepo.Create(ctx, dbTx, txn); err != nil {
		return nil, fmt.Errorf("create return entry: %w", err)
	}

	if err := dbTx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit tx: %w", err)
	}

	return &profit, nil
}

package service

import (
	"context"
	"errors"
	"fmt"

	"invest-ledger/internal/core/domain"
	"invest-ledger/internal/core/ports"
	"invest-ledger/pkg/apperror"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// InvestmentServiceImpl implements ports.InvestmentService: the admin-only
// escape hatches of the investment state machine. Paused and cancelled
// records are terminal for accrual and settlement; no further automated
// behavior applies.
type InvestmentServiceImpl struct {
	invRepo    ports.InvestmentRepository
	notifier   ports.NotificationEmitter
	transactor ports.DBTransactor
	log        zerolog.Logger
}

// NewInvestmentService creates a new InvestmentServiceImpl.
func NewInvestmentService(
	invRepo ports.InvestmentRepository,
	notifier ports.NotificationEmitter,
	transactor ports.DBTransactor,
	log zerolog.Logger,
) *InvestmentServiceImpl {
	return &InvestmentServiceImpl{
		invRepo:    invRepo,
		notifier:   notifier,
		transactor: transactor,
		log:        log,
	}
}

// Pause moves an active investment to paused, stopping accrual and
// settlement for it.
func (s *InvestmentServiceImpl) Pause(ctx context.Context, id, adminID uuid.UUID) (*domain.Investment, error) {
	return s.setStatus(ctx, id, adminID, domain.InvestmentStatusActive, domain.InvestmentStatusPaused,
		"Investment paused", "has been paused by an administrator")
}

// Cancel moves an active investment to cancelled.
func (s *InvestmentServiceImpl) Cancel(ctx context.Context, id, adminID uuid.UUID) (*domain.Investment, error) {
	return s.setStatus(ctx, id, adminID, domain.InvestmentStatusActive, domain.InvestmentStatusCancelled,
		"Investment cancelled", "has been cancelled by an administrator")
}

func (s *InvestmentServiceImpl) setStatus(ctx context.Context, id, adminID uuid.UUID, from, to domain.InvestmentStatus, noticeTitle, noticeSuffix string) (*domain.Investment, error) {
	inv, err := s.invRepo.GetByID(ctx, id)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("get investment: %w", err))
	}
	if inv == nil {
		return nil, apperror.ErrNotFound("investment")
	}

	dbTx, err := s.transactor.Begin(ctx)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("begin tx: %w", err))
	}
	defer dbTx.Rollback(ctx) //nolint:errcheck

	if err := s.invRepo.SetStatus(ctx, dbTx, id, from, to); err != nil {
		if errors.Is(err, ports.ErrStaleStatus) {
			return nil, apperror.ErrInvalidTransition(fmt.Sprintf("Investment is not %s", from))
		}
		return nil, apperror.InternalError(fmt.Errorf("set investment status: %w", err))
	}

	if err := dbTx.Commit(ctx); err != nil {
		return nil, apperror.InternalError(fmt.Errorf("commit tx: %w", err))
	}

	inv.Status = to

	emitNotice(ctx, s.log, s.notifier, inv.UserID,
		noticeTitle,
		fmt.Sprintf("Your investment of $%s %s", inv.USDValue.StringFixed(2), noticeSuffix),
		domain.PriorityHigh,
		map[string]string{"investment_id": inv.ID.String()})

	s.log.Info().
		Str("investment_id", id.String()).
		Str("admin_id", adminID.String()).
		Str("to", string(to)).
		Msg("investment status changed")

	return inv, nil
}

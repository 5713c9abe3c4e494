package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"invest-ledger/internal/core/domain"
	"invest-ledger/internal/core/ports"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
)

// InvestmentRepo implements ports.InvestmentRepository. Every mutation
// carries its status precondition in the WHERE clause so a stale read can
// never be blindly applied.
type InvestmentRepo struct {
	pool Pool
}

// NewInvestmentRepo creates a new InvestmentRepo.
func NewInvestmentRepo(pool Pool) *InvestmentRepo {
	return &InvestmentRepo{pool: pool}
}

const investmentColumns = `id, user_id, plan_id, status, usd_value, actual_return, total_return,
	start_date, end_date, last_profit_calculation, transaction_hash, created_at, updated_at`

func scanInvestment(row pgx.Row) (*domain.Investment, error) {
	i := &domain.Investment{}
	err := row.Scan(
		&i.ID, &i.UserID, &i.PlanID, &i.Status, &i.USDValue, &i.ActualReturn, &i.TotalReturn,
		&i.StartDate, &i.EndDate, &i.LastProfitCalculation, &i.TransactionHash,
		&i.CreatedAt, &i.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return i, nil
}

// Create inserts a pending investment at funding submission.
func (r *InvestmentRepo) Create(ctx context.Context, tx pgx.Tx, inv *domain.Investment) error {
	query := `INSERT INTO investments (id, user_id, plan_id, status, usd_value, actual_return, total_return,
			start_date, end_date, last_profit_calculation, transaction_hash, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`

	_, err := tx.Exec(ctx, query,
		inv.ID, inv.UserID, inv.PlanID, inv.Status, inv.USDValue, inv.ActualReturn, inv.TotalReturn,
		inv.StartDate, inv.EndDate, inv.LastProfitCalculation, inv.TransactionHash,
		inv.CreatedAt, inv.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert investment: %w", err)
	}
	return nil
}

// GetByID fetches an investment.
func (r *InvestmentRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.Investment, error) {
	query := `SELECT ` + investmentColumns + ` FROM investments WHERE id = $1`

	i, err := scanInvestment(r.pool.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get investment: %w", err)
	}
	return i, nil
}

// Activate flips pending -> active, stamping the term window and the
// accrual watermark in the same write.
func (r *InvestmentRepo) Activate(ctx context.Context, tx pgx.Tx, id uuid.UUID, start, end time.Time) error {
	query := `UPDATE investments
		SET status = $1, start_date = $2, end_date = $3, last_profit_calculation = $2, updated_at = NOW()
		WHERE id = $4 AND status = $5`

	tag, err := tx.Exec(ctx, query, domain.InvestmentStatusActive, start, end, id, domain.InvestmentStatusPending)
	if err != nil {
		return fmt.Errorf("activate investment: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ports.ErrStaleStatus
	}
	return nil
}

// RecordAccrual adds profit to both return counters and moves the
// watermark, only while the record is still active.
func (r *InvestmentRepo) RecordAccrual(ctx context.Context, tx pgx.Tx, id uuid.UUID, profit decimal.Decimal, calculatedAt time.Time) error {
	query := `UPDATE investments
		SET actual_return = actual_return + $1,
			total_return = total_return + $1,
			last_profit_calculation = $2,
			updated_at = NOW()
		WHERE id = $3 AND status = $4`

	tag, err := tx.Exec(ctx, query, profit, calculatedAt, id, domain.InvestmentStatusActive)
	if err != nil {
		return fmt.Errorf("record accrual: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ports.ErrStaleStatus
	}
	return nil
}

// Complete flips active -> completed, truing up actual_return to the
// row's current total_return inside the same statement. An accrual that
// landed after the caller's snapshot is therefore settled, not dropped.
// Returns the settled total and the pre-true-up accrued figure.
func (r *InvestmentRepo) Complete(ctx context.Context, tx pgx.Tx, id uuid.UUID) (decimal.Decimal, decimal.Decimal, error) {
	query := `UPDATE investments i
		SET status = $1, actual_return = i.total_return, updated_at = NOW()
		FROM (SELECT actual_return AS accrued FROM investments WHERE id = $2 FOR UPDATE) prev
		WHERE i.id = $2 AND i.status = $3
		RETURNING i.total_return, prev.accrued`

	var total, accrued decimal.Decimal
	err := tx.QueryRow(ctx, query, domain.InvestmentStatusCompleted, id, domain.InvestmentStatusActive).
		Scan(&total, &accrued)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return decimal.Zero, decimal.Zero, ports.ErrStaleStatus
		}
		return decimal.Zero, decimal.Zero, fmt.Errorf("complete investment: %w", err)
	}
	return total, accrued, nil
}

// SetStatus performs the admin pause/cancel transitions.
func (r *InvestmentRepo) SetStatus(ctx context.Context, tx pgx.Tx, id uuid.UUID, from, to domain.InvestmentStatus) error {
	query := `UPDATE investments SET status = $1, updated_at = NOW() WHERE id = $2 AND status = $3`

	tag, err := tx.Exec(ctx, query, to, id, from)
	if err != nil {
		return fmt.Errorf("set investment status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ports.ErrStaleStatus
	}
	return nil
}

// ListDueAccrual returns active investments whose accrual watermark is at
// or before cutoff.
func (r *InvestmentRepo) ListDueAccrual(ctx context.Context, cutoff time.Time, limit int) ([]domain.Investment, error) {
	query := `SELECT ` + investmentColumns + ` FROM investments
		WHERE status = $1 AND last_profit_calculation <= $2
		ORDER BY last_profit_calculation ASC LIMIT $3`

	return r.list(ctx, query, domain.InvestmentStatusActive, cutoff, limit)
}

// ListMatured returns active investments whose term has elapsed.
func (r *InvestmentRepo) ListMatured(ctx context.Context, now time.Time, limit int) ([]domain.Investment, error) {
	query := `SELECT ` + investmentColumns + ` FROM investments
		WHERE status = $1 AND end_date <= $2
		ORDER BY end_date ASC LIMIT $3`

	return r.list(ctx, query, domain.InvestmentStatusActive, now, limit)
}

// ListByUser returns a user's investments, newest first.
func (r *InvestmentRepo) ListByUser(ctx context.Context, userID uuid.UUID) ([]domain.Investment, error) {
	query := `SELECT ` + investmentColumns + ` FROM investments
		WHERE user_id = $1 ORDER BY created_at DESC`

	return r.list(ctx, query, userID)
}

func (r *InvestmentRepo) list(ctx context.Context, query string, args ...any) ([]domain.Investment, error) {
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list investments: %w", err)
	}
	defer rows.Close()

	var out []domain.Investment
	for rows.Next() {
		i, err := scanInvestment(rows)
		if err != nil {
			return nil, fmt.Errorf("scan investment: %w", err)
		}
		out = append(out, *i)
	}
	return out, rows.Err()
}

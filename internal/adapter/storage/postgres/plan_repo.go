package postgres

import (
	"context"
	"errors"
	"fmt"

	"invest-ledger/internal/core/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// PlanRepo implements ports.PlanProvider against the plans table the
// surrounding application maintains. Read-only from this core's side.
type PlanRepo struct {
	pool Pool
}

// NewPlanRepo creates a new PlanRepo.
func NewPlanRepo(pool Pool) *PlanRepo {
	return &PlanRepo{pool: pool}
}

// GetPlan fetches a plan's terms. Returns nil, nil if absent.
func (r *PlanRepo) GetPlan(ctx context.Context, id uuid.UUID) (*domain.InvestmentPlan, error) {
	query := `SELECT id, name, max_apy, duration_days, min_amount, max_amount, active
		FROM investment_plans WHERE id = $1`

	p := &domain.InvestmentPlan{}
	err := r.pool.QueryRow(ctx, query, id).Scan(
		&p.ID, &p.Name, &p.MaxAPY, &p.DurationDays, &p.MinAmount, &p.MaxAmount, &p.Active,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get investment plan: %w", err)
	}
	return p, nil
}

package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// InvestmentStatus is the per-investment state machine:
// pending -> active -> completed, with paused/cancelled as admin-only
// escape hatches. Accrual and settlement only ever act on active records.
type InvestmentStatus string

const (
	InvestmentStatusPending   InvestmentStatus = "pending"
	InvestmentStatusActive    InvestmentStatus = "active"
	InvestmentStatusPaused    InvestmentStatus = "paused"
	InvestmentStatusCompleted InvestmentStatus = "completed"
	InvestmentStatusCancelled InvestmentStatus = "cancelled"
)

// Investment is one time-boxed placement of principal into a plan.
// TotalReturn and ActualReturn grow monotonically while active and are
// distributed to the balance pools exactly once, at settlement.
type Investment struct {
	ID                    uuid.UUID        `json:"id"`
	UserID                uuid.UUID        `json:"user_id"`
	PlanID                uuid.UUID        `json:"plan_id"`
	Status                InvestmentStatus `json:"status"`
	USDValue              decimal.Decimal  `json:"usd_value"` // principal
	ActualReturn          decimal.Decimal  `json:"actual_return"`
	TotalReturn           decimal.Decimal  `json:"total_return"`
	StartDate             *time.Time       `json:"start_date,omitempty"`
	EndDate               *time.Time       `json:"end_date,omitempty"`
	LastProfitCalculation *time.Time       `json:"last_profit_calculation,omitempty"`
	TransactionHash       string           `json:"transaction_hash"` // originating pending transfer
	CreatedAt             time.Time        `json:"created_at"`
	UpdatedAt             time.Time        `json:"updated_at"`
}

// Matured reports whether the investment's term has elapsed.
func (i *Investment) Matured(now time.Time) bool {
	return i.EndDate != nil && !now.Before(*i.EndDate)
}

// InvestmentPlan describes the terms an investment was placed under.
// Plans are authored by the surrounding application; this core only
// reads MaxAPY and Duration.
type InvestmentPlan struct {
	ID           uuid.UUID       `json:"id"`
	Name         string          `json:"name"`
	MaxAPY       decimal.Decimal `json:"max_apy"`       // percent, e.g. 18 for 18%
	DurationDays int             `json:"duration_days"` // term length
	MinAmount    decimal.Decimal `json:"min_amount"`
	MaxAmount    decimal.Decimal `json:"max_amount"`
	Active       bool            `json:"active"`
}

// DailyRate returns MaxAPY / 365 / 100 as a decimal fraction.
func (p *InvestmentPlan) DailyRate() decimal.Decimal {
	return p.MaxAPY.Div(decimal.NewFromInt(365)).Div(decimal.NewFromInt(100))
}

// Duration returns the plan term as a time.Duration.
func (p *InvestmentPlan) Duration() time.Duration {
	return time.Duration(p.DurationDays) * 24 * time.Hour
}

package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// BalancePool identifies one of the three independently tracked money pools.
type BalancePool string

const (
	PoolMain       BalancePool = "main"
	PoolInterest   BalancePool = "interest"
	PoolInvestment BalancePool = "investment"
)

// Valid reports whether p names a known pool.
func (p BalancePool) Valid() bool {
	return p == PoolMain || p == PoolInterest || p == PoolInvestment
}

// Balance holds a user's three money pools. TotalBalance is always the sum
// of the three pools, recomputed inside the same write that mutates a pool.
type Balance struct {
	ID                uuid.UUID       `json:"id"`
	UserID            uuid.UUID       `json:"user_id"`
	MainBalance       decimal.Decimal `json:"main_balance"`
	InterestBalance   decimal.Decimal `json:"interest_balance"`
	InvestmentBalance decimal.Decimal `json:"investment_balance"`
	TotalBalance      decimal.Decimal `json:"total_balance"`
	CreatedAt         time.Time       `json:"created_at"`
	UpdatedAt         time.Time       `json:"updated_at"`
}

// Pool returns the current amount held in the given pool.
func (b *Balance) Pool(p BalancePool) decimal.Decimal {
	switch p {
	case PoolMain:
		return b.MainBalance
	case PoolInterest:
		return b.InterestBalance
	case PoolInvestment:
		return b.InvestmentBalance
	}
	return decimal.Zero
}

// Sum recomputes the total from the three pools.
func (b *Balance) Sum() decimal.Decimal {
	return b.MainBalance.Add(b.InterestBalance).Add(b.InvestmentBalance)
}

// ZeroBalance returns an empty balance record for a user that has never
// been credited.
func ZeroBalance(userID uuid.UUID) *Balance {
	return &Balance{
		UserID:            userID,
		MainBalance:       decimal.Zero,
		InterestBalance:   decimal.Zero,
		InvestmentBalance: decimal.Zero,
		TotalBalance:      decimal.Zero,
	}
}

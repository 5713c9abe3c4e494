package postgres

import (
	"context"
	"errors"
	"fmt"

	"invest-ledger/internal/core/domain"
	"invest-ledger/internal/core/ports"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
)

// BalanceRepo implements ports.BalanceRepository.
// total_balance is recomputed from the three pools inside every mutating
// statement; it is never written independently of that derivation.
type BalanceRepo struct {
	pool Pool
}

// NewBalanceRepo creates a new BalanceRepo.
func NewBalanceRepo(pool Pool) *BalanceRepo {
	return &BalanceRepo{pool: pool}
}

// poolColumn whitelists the pool -> column mapping. Amounts are always
// bound as parameters; only the column name is interpolated.
func poolColumn(p domain.BalancePool) (string, error) {
	switch p {
	case domain.PoolMain:
		return "main_balance", nil
	case domain.PoolInterest:
		return "interest_balance", nil
	case domain.PoolInvestment:
		return "investment_balance", nil
	}
	return "", fmt.Errorf("unknown balance pool: %q", p)
}

// Get fetches a user's balance record. Returns nil, nil if the user has
// never been credited.
func (r *BalanceRepo) Get(ctx context.Context, userID uuid.UUID) (*domain.Balance, error) {
	query := `SELECT id, user_id, main_balance, interest_balance, investment_balance, total_balance, created_at, updated_at
		FROM balances WHERE user_id = $1`

	b := &domain.Balance{}
	err := r.pool.QueryRow(ctx, query, userID).Scan(
		&b.ID, &b.UserID, &b.MainBalance, &b.InterestBalance,
		&b.InvestmentBalance, &b.TotalBalance, &b.CreatedAt, &b.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get balance: %w", err)
	}
	return b, nil
}

// Credit adds amount to the given pool. The upsert creates the record with
// all pools zero when the user has never been credited, atomically with the
// first credit, so two concurrent first credits cannot lose an update.
func (r *BalanceRepo) Credit(ctx context.Context, tx pgx.Tx, userID uuid.UUID, pool domain.BalancePool, amount decimal.Decimal) error {
	col, err := poolColumn(pool)
	if err != nil {
		return err
	}

	query := fmt.Sprintf(`INSERT INTO balances (id, user_id, %[1]s, total_balance, created_at, updated_at)
		VALUES ($1, $2, $3, $3, NOW(), NOW())
		ON CONFLICT (user_id) DO UPDATE
		SET %[1]s = balances.%[1]s + $3,
			total_balance = balances.main_balance + balances.interest_balance + balances.investment_balance + $3,
			updated_at = NOW()`, col)

	if _, err := tx.Exec(ctx, query, uuid.New(), userID, amount); err != nil {
		return fmt.Errorf("credit %s pool: %w", pool, err)
	}
	return nil
}

// Debit subtracts amount from the given pool. The sufficiency check is part
// of the statement's predicate: zero rows affected means the pool held less
// than amount (or the record does not exist, which is the same thing) and
// nothing was written.
func (r *BalanceRepo) Debit(ctx context.Context, tx pgx.Tx, userID uuid.UUID, pool domain.BalancePool, amount decimal.Decimal) error {
	col, err := poolColumn(pool)
	if err != nil {
		return err
	}

	query := fmt.Sprintf(`UPDATE balances
		SET %[1]s = %[1]s - $2,
			total_balance = main_balance + interest_balance + investment_balance - $2,
			updated_at = NOW()
		WHERE user_id = $1 AND %[1]s >= $2`, col)

	tag, err := tx.Exec(ctx, query, userID, amount)
	if err != nil {
		return fmt.Errorf("debit %s pool: %w", pool, err)
	}
	if tag.RowsAffected() == 0 {
		return ports.ErrInsufficientFunds
	}
	return nil
}

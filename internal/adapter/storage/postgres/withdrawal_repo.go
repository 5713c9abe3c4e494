package postgres

import (
	"context"
	"errors"
	"fmt"

	"invest-ledger/internal/core/domain"
	"invest-ledger/internal/core/ports"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// WithdrawalRepo implements ports.WithdrawalRepository.
type WithdrawalRepo struct {
	pool Pool
}

// NewWithdrawalRepo creates a new WithdrawalRepo.
func NewWithdrawalRepo(pool Pool) *WithdrawalRepo {
	return &WithdrawalRepo{pool: pool}
}

const withdrawalColumns = `id, user_id, status, balance_type, amount, crypto_amount,
	wallet_address, chain, transaction_hash, reviewed_by, admin_notes, created_at, updated_at`

func scanWithdrawal(row pgx.Row) (*domain.WithdrawalRequest, error) {
	w := &domain.WithdrawalRequest{}
	err := row.Scan(
		&w.ID, &w.UserID, &w.Status, &w.BalanceType, &w.Amount, &w.CryptoAmount,
		&w.WalletAddress, &w.Chain, &w.TransactionHash, &w.ReviewedBy, &w.AdminNotes,
		&w.CreatedAt, &w.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return w, nil
}

// Create inserts a new withdrawal request.
func (r *WithdrawalRepo) Create(ctx context.Context, w *domain.WithdrawalRequest) error {
	query := `INSERT INTO withdrawal_requests (id, user_id, status, balance_type, amount, crypto_amount,
			wallet_address, chain, transaction_hash, reviewed_by, admin_notes, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`

	_, err := r.pool.Exec(ctx, query,
		w.ID, w.UserID, w.Status, w.BalanceType, w.Amount, w.CryptoAmount,
		w.WalletAddress, w.Chain, w.TransactionHash, w.ReviewedBy, w.AdminNotes,
		w.CreatedAt, w.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert withdrawal request: %w", err)
	}
	return nil
}

// GetByID fetches a withdrawal request.
func (r *WithdrawalRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.WithdrawalRequest, error) {
	query := `SELECT ` + withdrawalColumns + ` FROM withdrawal_requests WHERE id = $1`

	w, err := scanWithdrawal(r.pool.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get withdrawal request: %w", err)
	}
	return w, nil
}

// UpdateStatus flips from -> to with the transition's typed patch. COALESCE
// keeps fields the patch does not name untouched, so no transition can
// accidentally write across unrelated fields.
func (r *WithdrawalRepo) UpdateStatus(ctx context.Context, tx pgx.Tx, id uuid.UUID, from, to domain.WithdrawalStatus, patch ports.WithdrawalPatch) error {
	query := `UPDATE withdrawal_requests
		SET status = $1,
			transaction_hash = COALESCE($2, transaction_hash),
			reviewed_by = COALESCE($3, reviewed_by),
			admin_notes = COALESCE($4, admin_notes),
			updated_at = NOW()
		WHERE id = $5 AND status = $6`

	tag, err := tx.Exec(ctx, query, to, patch.TransactionHash, patch.ReviewedBy, patch.AdminNotes, id, from)
	if err != nil {
		return fmt.Errorf("update withdrawal status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ports.ErrStaleStatus
	}
	return nil
}

// ListByUser returns a user's withdrawal requests, newest first.
func (r *WithdrawalRepo) ListByUser(ctx context.Context, userID uuid.UUID) ([]domain.WithdrawalRequest, error) {
	query := `SELECT ` + withdrawalColumns + ` FROM withdrawal_requests
		WHERE user_id = $1 ORDER BY created_at DESC`

	rows, err := r.pool.Query(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("list withdrawal requests: %w", err)
	}
	defer rows.Close()

	var out []domain.WithdrawalRequest
	for rows.Next() {
		w, err := scanWithdrawal(rows)
		if err != nil {
			return nil, fmt.Errorf("scan withdrawal request: %w", err)
		}
		out = append(out, *w)
	}
	return out, rows.Err()
}

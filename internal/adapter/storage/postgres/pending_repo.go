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
	"github.com/jackc/pgx/v5/pgconn"
)

// PendingTransferRepo implements ports.PendingTransferRepository.
type PendingTransferRepo struct {
	pool Pool
}

// NewPendingTransferRepo creates a new PendingTransferRepo.
func NewPendingTransferRepo(pool Pool) *PendingTransferRepo {
	return &PendingTransferRepo{pool: pool}
}

const pendingColumns = `id, user_id, type, status, usd_value, crypto_amount, currency,
	tx_hash, confirmations, investment_id, plan_id, reviewed_by, admin_notes,
	expires_at, created_at, updated_at`

func scanPendingTransfer(row pgx.Row) (*domain.PendingTransfer, error) {
	p := &domain.PendingTransfer{}
	err := row.Scan(
		&p.ID, &p.UserID, &p.Type, &p.Status, &p.USDValue, &p.CryptoAmount, &p.Currency,
		&p.TxHash, &p.Confirmations, &p.InvestmentID, &p.PlanID, &p.ReviewedBy, &p.AdminNotes,
		&p.ExpiresAt, &p.CreatedAt, &p.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return p, nil
}

// Create stages an unconfirmed inbound transfer. The tx hash is the
// claim's natural key: a partial unique index on (user_id, tx_hash)
// WHERE status = 'pending' backs the duplicate check, so two concurrent
// submits of the same on-chain transfer cannot both stage.
func (r *PendingTransferRepo) Create(ctx context.Context, tx pgx.Tx, p *domain.PendingTransfer) error {
	query := `INSERT INTO pending_transfers (id, user_id, type, status, usd_value, crypto_amount, currency,
			tx_hash, confirmations, investment_id, plan_id, reviewed_by, admin_notes, expires_at, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)`

	_, err := tx.Exec(ctx, query,
		p.ID, p.UserID, p.Type, p.Status, p.USDValue, p.CryptoAmount, p.Currency,
		p.TxHash, p.Confirmations, p.InvestmentID, p.PlanID, p.ReviewedBy, p.AdminNotes,
		p.ExpiresAt, p.CreatedAt, p.UpdatedAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" { // unique_violation
			return ports.ErrDuplicateTxHash
		}
		return fmt.Errorf("insert pending transfer: %w", err)
	}
	return nil
}

// GetByTxHash returns the user's most recent claim for a tx hash,
// regardless of status. Returns nil, nil if absent.
func (r *PendingTransferRepo) GetByTxHash(ctx context.Context, userID uuid.UUID, txHash string) (*domain.PendingTransfer, error) {
	query := `SELECT ` + pendingColumns + ` FROM pending_transfers
		WHERE user_id = $1 AND tx_hash = $2
		ORDER BY created_at DESC LIMIT 1`

	p, err := scanPendingTransfer(r.pool.QueryRow(ctx, query, userID, txHash))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get pending transfer by tx hash: %w", err)
	}
	return p, nil
}

// GetByID fetches a staged transfer.
func (r *PendingTransferRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.PendingTransfer, error) {
	query := `SELECT ` + pendingColumns + ` FROM pending_transfers WHERE id = $1`

	p, err := scanPendingTransfer(r.pool.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get pending transfer: %w", err)
	}
	return p, nil
}

// Resolve flips a staged transfer out of pending. The WHERE clause carries
// the status precondition: zero rows affected means another resolution
// already happened and this one must not be applied.
func (r *PendingTransferRepo) Resolve(ctx context.Context, tx pgx.Tx, id uuid.UUID, to domain.PendingTransferStatus, reviewedBy *uuid.UUID, notes *string) error {
	query := `UPDATE pending_transfers
		SET status = $1, reviewed_by = $2, admin_notes = $3, updated_at = NOW()
		WHERE id = $4 AND status = $5`

	tag, err := tx.Exec(ctx, query, to, reviewedBy, notes, id, domain.PendingTransferPending)
	if err != nil {
		return fmt.Errorf("resolve pending transfer: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ports.ErrStaleStatus
	}
	return nil
}

// ListExpired returns staged transfers past their deadline, oldest first.
func (r *PendingTransferRepo) ListExpired(ctx context.Context, now time.Time, limit int) ([]domain.PendingTransfer, error) {
	query := `SELECT ` + pendingColumns + ` FROM pending_transfers
		WHERE status = $1 AND expires_at <= $2
		ORDER BY expires_at ASC LIMIT $3`

	rows, err := r.pool.Query(ctx, query, domain.PendingTransferPending, now, limit)
	if err != nil {
		return nil, fmt.Errorf("list expired pending transfers: %w", err)
	}
	defer rows.Close()

	var out []domain.PendingTransfer
	for rows.Next() {
		p, err := scanPendingTransfer(rows)
		if err != nil {
			return nil, fmt.Errorf("scan pending transfer: %w", err)
		}
		out = append(out, *p)
	}
	return out, rows.Err()
}

// ListByUser returns a user's staged transfers, newest first.
func (r *PendingTransferRepo) ListByUser(ctx context.Context, userID uuid.UUID) ([]domain.PendingTransfer, error) {
	query := `SELECT ` + pendingColumns + ` FROM pending_transfers
		WHERE user_id = $1 ORDER BY created_at DESC`

	rows, err := r.pool.Query(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("list pending transfers: %w", err)
	}
	defer rows.Close()

	var out []domain.PendingTransfer
	for rows.Next() {
		p, err := scanPendingTransfer(rows)
		if err != nil {
			return nil, fmt.Errorf("scan pending transfer: %w", err)
		}
		out = append(out, *p)
	}
	return out, rows.Err()
}

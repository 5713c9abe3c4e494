package postgres

import (
	"context"
	"testing"
	"time"

	"invest-ledger/internal/core/domain"
	"invest-ledger/internal/core/ports"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func pendingTestColumns() []string {
	return []string{"id", "user_id", "type", "status", "usd_value", "crypto_amount", "currency",
		"tx_hash", "confirmations", "investment_id", "plan_id", "reviewed_by", "admin_notes",
		"expires_at", "created_at", "updated_at"}
}

func TestPendingTransferRepo_Create(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewPendingTransferRepo(mock)
	now := time.Now().UTC()
	p := &domain.PendingTransfer{
		ID:           uuid.New(),
		UserID:       uuid.New(),
		Type:         domain.PendingTransferDeposit,
		Status:       domain.PendingTransferPending,
		USDValue:     decimal.NewFromInt(500),
		CryptoAmount: decimal.RequireFromString("0.0122"),
		Currency:     "BTC",
		TxHash:       "0xdeadbeef",
		ExpiresAt:    now.Add(domain.PendingTransferTTL),
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	mock.ExpectBegin()
	tx, err := mock.Begin(context.Background())
	require.NoError(t, err)

	mock.ExpectExec("INSERT INTO pending_transfers").
		WithArgs(p.ID, p.UserID, p.Type, p.Status, p.USDValue, p.CryptoAmount, p.Currency,
			p.TxHash, p.Confirmations, p.InvestmentID, p.PlanID, p.ReviewedBy, p.AdminNotes,
			p.ExpiresAt, p.CreatedAt, p.UpdatedAt).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	err = repo.Create(context.Background(), tx, p)
	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPendingTransferRepo_Create_DuplicateTxHash(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewPendingTransferRepo(mock)
	p := &domain.PendingTransfer{
		ID:     uuid.New(),
		UserID: uuid.New(),
		Type:   domain.PendingTransferDeposit,
		Status: domain.PendingTransferPending,
		TxHash: "0xdeadbeef",
	}

	mock.ExpectBegin()
	tx, err := mock.Begin(context.Background())
	require.NoError(t, err)

	mock.ExpectExec("INSERT INTO pending_transfers").
		WithArgs(p.ID, p.UserID, p.Type, p.Status, p.USDValue, p.CryptoAmount, p.Currency,
			p.TxHash, p.Confirmations, p.InvestmentID, p.PlanID, p.ReviewedBy, p.AdminNotes,
			p.ExpiresAt, p.CreatedAt, p.UpdatedAt).
		WillReturnError(&pgconn.PgError{Code: "23505", ConstraintName: "pending_transfers_user_tx_hash_key"})

	err = repo.Create(context.Background(), tx, p)
	assert.ErrorIs(t, err, ports.ErrDuplicateTxHash)
}

func TestPendingTransferRepo_GetByTxHash(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewPendingTransferRepo(mock)
	now := time.Now().UTC()
	id := uuid.New()
	userID := uuid.New()

	mock.ExpectQuery("SELECT .+ FROM pending_transfers").
		WithArgs(userID, "0xdeadbeef").
		WillReturnRows(pgxmock.NewRows(pendingTestColumns()).AddRow(
			id, userID, domain.PendingTransferDeposit, domain.PendingTransferPending,
			decimal.NewFromInt(500), decimal.RequireFromString("0.0122"), "BTC",
			"0xdeadbeef", 3, nil, nil, nil, nil,
			now.Add(domain.PendingTransferTTL), now, now,
		))

	p, err := repo.GetByTxHash(context.Background(), userID, "0xdeadbeef")
	require.NoError(t, err)
	require.NotNil(t, p)
	assert.Equal(t, id, p.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPendingTransferRepo_GetByTxHash_Absent(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewPendingTransferRepo(mock)
	userID := uuid.New()

	mock.ExpectQuery("SELECT .+ FROM pending_transfers").
		WithArgs(userID, "0xmissing").
		WillReturnError(pgx.ErrNoRows)

	p, err := repo.GetByTxHash(context.Background(), userID, "0xmissing")
	require.NoError(t, err)
	assert.Nil(t, p)
}

func TestPendingTransferRepo_Resolve(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewPendingTransferRepo(mock)
	id := uuid.New()
	admin := uuid.New()
	notes := "verified on chain"

	mock.ExpectBegin()
	tx, err := mock.Begin(context.Background())
	require.NoError(t, err)

	mock.ExpectExec("UPDATE pending_transfers").
		WithArgs(domain.PendingTransferConfirmed, &admin, &notes, id, domain.PendingTransferPending).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	err = repo.Resolve(context.Background(), tx, id, domain.PendingTransferConfirmed, &admin, &notes)
	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPendingTransferRepo_Resolve_AlreadyResolved(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewPendingTransferRepo(mock)
	id := uuid.New()

	mock.ExpectBegin()
	tx, err := mock.Begin(context.Background())
	require.NoError(t, err)

	mock.ExpectExec("UPDATE pending_transfers").
		WithArgs(domain.PendingTransferRejected, (*uuid.UUID)(nil), (*string)(nil), id, domain.PendingTransferPending).
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	err = repo.Resolve(context.Background(), tx, id, domain.PendingTransferRejected, nil, nil)
	assert.ErrorIs(t, err, ports.ErrStaleStatus)
}

func TestPendingTransferRepo_ListExpired(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewPendingTransferRepo(mock)
	now := time.Now().UTC()
	id := uuid.New()

	mock.ExpectQuery("SELECT .+ FROM pending_transfers").
		WithArgs(domain.PendingTransferPending, now, 50).
		WillReturnRows(pgxmock.NewRows(pendingTestColumns()).AddRow(
			id, uuid.New(), domain.PendingTransferDeposit, domain.PendingTransferPending,
			decimal.NewFromInt(100), decimal.NewFromInt(100), "USDT",
			"0xstale", 3, nil, nil, nil, nil,
			now.Add(-time.Hour), now.Add(-25*time.Hour), now.Add(-25*time.Hour),
		))

	out, err := repo.ListExpired(context.Background(), now, 50)
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Equal(t, id, out[0].ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

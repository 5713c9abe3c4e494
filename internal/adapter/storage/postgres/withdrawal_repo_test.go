package postgres

import (
	"context"
	"testing"
	"time"

	"invest-ledger/internal/core/domain"
	"invest-ledger/internal/core/ports"

	"github.com/google/uuid"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWithdrawalRepo_Create(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewWithdrawalRepo(mock)
	now := time.Now().UTC()
	w := &domain.WithdrawalRequest{
		ID:            uuid.New(),
		UserID:        uuid.New(),
		Status:        domain.WithdrawalStatusPending,
		BalanceType:   domain.PoolInterest,
		Amount:        decimal.NewFromInt(200),
		CryptoAmount:  decimal.RequireFromString("0.005"),
		WalletAddress: "0xwallet",
		Chain:         "ethereum",
		CreatedAt:     now,
		UpdatedAt:     now,
	}

	mock.ExpectExec("INSERT INTO withdrawal_requests").
		WithArgs(w.ID, w.UserID, w.Status, w.BalanceType, w.Amount, w.CryptoAmount,
			w.WalletAddress, w.Chain, w.TransactionHash, w.ReviewedBy, w.AdminNotes,
			w.CreatedAt, w.UpdatedAt).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	err = repo.Create(context.Background(), w)
	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestWithdrawalRepo_UpdateStatus(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewWithdrawalRepo(mock)
	id := uuid.New()
	admin := uuid.New()
	hash := "0xsettled"

	mock.ExpectBegin()
	tx, err := mock.Begin(context.Background())
	require.NoError(t, err)

	mock.ExpectExec("UPDATE withdrawal_requests").
		WithArgs(domain.WithdrawalStatusProcessing, &hash, &admin, (*string)(nil), id, domain.WithdrawalStatusApproved).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	err = repo.UpdateStatus(context.Background(), tx, id, domain.WithdrawalStatusApproved, domain.WithdrawalStatusProcessing,
		ports.WithdrawalPatch{TransactionHash: &hash, ReviewedBy: &admin})
	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestWithdrawalRepo_UpdateStatus_Stale(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewWithdrawalRepo(mock)
	id := uuid.New()

	mock.ExpectBegin()
	tx, err := mock.Begin(context.Background())
	require.NoError(t, err)

	mock.ExpectExec("UPDATE withdrawal_requests").
		WithArgs(domain.WithdrawalStatusApproved, (*string)(nil), (*uuid.UUID)(nil), (*string)(nil), id, domain.WithdrawalStatusPending).
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	err = repo.UpdateStatus(context.Background(), tx, id, domain.WithdrawalStatusPending, domain.WithdrawalStatusApproved, ports.WithdrawalPatch{})
	assert.ErrorIs(t, err, ports.ErrStaleStatus)
}

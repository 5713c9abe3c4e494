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

func balanceColumns() []string {
	return []string{"id", "user_id", "main_balance", "interest_balance", "investment_balance", "total_balance", "created_at", "updated_at"}
}

func TestBalanceRepo_Get(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewBalanceRepo(mock)
	userID := uuid.New()
	now := time.Now().UTC()

	mock.ExpectQuery("SELECT .+ FROM balances WHERE user_id").
		WithArgs(userID).
		WillReturnRows(pgxmock.NewRows(balanceColumns()).AddRow(
			uuid.New(), userID,
			decimal.NewFromInt(500), decimal.RequireFromString("4.93"), decimal.NewFromInt(1000),
			decimal.RequireFromString("1504.93"), now, now,
		))

	b, err := repo.Get(context.Background(), userID)
	require.NoError(t, err)
	require.NotNil(t, b)
	assert.True(t, b.TotalBalance.Equal(b.Sum()))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestBalanceRepo_Get_Absent(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewBalanceRepo(mock)
	userID := uuid.New()

	mock.ExpectQuery("SELECT .+ FROM balances WHERE user_id").
		WithArgs(userID).
		WillReturnRows(pgxmock.NewRows(balanceColumns()))

	b, err := repo.Get(context.Background(), userID)
	require.NoError(t, err)
	assert.Nil(t, b)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestBalanceRepo_Credit_Upsert(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewBalanceRepo(mock)
	userID := uuid.New()
	amount := decimal.NewFromInt(500)

	mock.ExpectBegin()
	tx, err := mock.Begin(context.Background())
	require.NoError(t, err)

	mock.ExpectExec("INSERT INTO balances .+ ON CONFLICT").
		WithArgs(pgxmock.AnyArg(), userID, amount).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	err = repo.Credit(context.Background(), tx, userID, domain.PoolMain, amount)
	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestBalanceRepo_Credit_UnknownPool(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewBalanceRepo(mock)

	mock.ExpectBegin()
	tx, err := mock.Begin(context.Background())
	require.NoError(t, err)

	err = repo.Credit(context.Background(), tx, uuid.New(), domain.BalancePool("bonus"), decimal.NewFromInt(1))
	assert.Error(t, err)
}

func TestBalanceRepo_Debit(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewBalanceRepo(mock)
	userID := uuid.New()
	amount := decimal.NewFromInt(200)

	mock.ExpectBegin()
	tx, err := mock.Begin(context.Background())
	require.NoError(t, err)

	mock.ExpectExec("UPDATE balances").
		WithArgs(userID, amount).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	err = repo.Debit(context.Background(), tx, userID, domain.PoolInterest, amount)
	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestBalanceRepo_Debit_Insufficient(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewBalanceRepo(mock)
	userID := uuid.New()
	amount := decimal.NewFromInt(200)

	mock.ExpectBegin()
	tx, err := mock.Begin(context.Background())
	require.NoError(t, err)

	// The sufficiency predicate filters the row out: zero rows affected.
	mock.ExpectExec("UPDATE balances").
		WithArgs(userID, amount).
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	err = repo.Debit(context.Background(), tx, userID, domain.PoolInterest, amount)
	assert.ErrorIs(t, err, ports.ErrInsufficientFunds)
	assert.NoError(t, mock.ExpectationsWereMet())
}

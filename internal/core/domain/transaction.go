package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// TransactionType represents the kind of money movement.
type TransactionType string

const (
	TransactionTypeDeposit    TransactionType = "deposit"
	TransactionTypeWithdrawal TransactionType = "withdrawal"
	TransactionTypeInvestment TransactionType = "investment"
	TransactionTypeReturn     TransactionType = "return"
	TransactionTypeFee        TransactionType = "fee"
	TransactionTypeRefund     TransactionType = "refund"
)

// TransactionStatus represents the lifecycle state of a journal entry.
type TransactionStatus string

const (
	TransactionStatusPending    TransactionStatus = "pending"
	TransactionStatusProcessing TransactionStatus = "processing"
	TransactionStatusCompleted  TransactionStatus = "completed"
	TransactionStatusFailed     TransactionStatus = "failed"
	TransactionStatusCancelled  TransactionStatus = "cancelled"
)

// Transaction is a journal entry for a monetary event. Once completed or
// failed the record is an immutable financial fact.
type Transaction struct {
	ID          uuid.UUID         `json:"id"`
	UserID      uuid.UUID         `json:"user_id"`
	Type        TransactionType   `json:"type"`
	Status      TransactionStatus `json:"status"`
	USDValue    decimal.Decimal   `json:"usd_value"`
	Amount      decimal.Decimal   `json:"amount"` // denominated in Currency
	Currency    string            `json:"currency"`
	TxHash      *string           `json:"tx_hash,omitempty"` // external reference, idempotent lookup key
	FromAddress *string           `json:"from_address,omitempty"`
	ToAddress   *string           `json:"to_address,omitempty"`
	Network     *string           `json:"network,omitempty"`
	Description *string           `json:"description,omitempty"`
	CreatedAt   time.Time         `json:"created_at"`
	UpdatedAt   time.Time         `json:"updated_at"`
}

// IsTerminal returns true if the journal entry can no longer change.
func (t *Transaction) IsTerminal() bool {
	return t.Status == TransactionStatusCompleted ||
		t.Status == TransactionStatusFailed ||
		t.Status == TransactionStatusCancelled
}

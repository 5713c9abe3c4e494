package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// WithdrawalStatus is the four-stage approval pipeline:
// pending -> approved -> processing -> completed, with rejected reachable
// only from pending and failed only from processing.
type WithdrawalStatus string

const (
	WithdrawalStatusPending    WithdrawalStatus = "pending"
	WithdrawalStatusApproved   WithdrawalStatus = "approved"
	WithdrawalStatusRejected   WithdrawalStatus = "rejected"
	WithdrawalStatusProcessing WithdrawalStatus = "processing"
	WithdrawalStatusCompleted  WithdrawalStatus = "completed"
	WithdrawalStatusFailed     WithdrawalStatus = "failed"
)

// withdrawalTransitions maps each status to the statuses reachable from it.
var withdrawalTransitions = map[WithdrawalStatus][]WithdrawalStatus{
	WithdrawalStatusPending:    {WithdrawalStatusApproved, WithdrawalStatusRejected},
	WithdrawalStatusApproved:   {WithdrawalStatusProcessing},
	WithdrawalStatusProcessing: {WithdrawalStatusCompleted, WithdrawalStatusFailed},
}

// CanTransition reports whether from -> to is a legal pipeline step.
func CanTransition(from, to WithdrawalStatus) bool {
	for _, next := range withdrawalTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// WithdrawalRequest debits a chosen balance pool only after admin sign-off.
// The debit happens exactly once, at the approved -> processing transition.
type WithdrawalRequest struct {
	ID              uuid.UUID        `json:"id"`
	UserID          uuid.UUID        `json:"user_id"`
	Status          WithdrawalStatus `json:"status"`
	BalanceType     BalancePool      `json:"balance_type"`
	Amount          decimal.Decimal  `json:"amount"` // USD
	CryptoAmount    decimal.Decimal  `json:"crypto_amount"`
	WalletAddress   string           `json:"wallet_address"`
	Chain           string           `json:"chain"`
	TransactionHash *string          `json:"transaction_hash,omitempty"` // assigned at processing
	ReviewedBy      *uuid.UUID       `json:"reviewed_by,omitempty"`
	AdminNotes      *string          `json:"admin_notes,omitempty"`
	CreatedAt       time.Time        `json:"created_at"`
	UpdatedAt       time.Time        `json:"updated_at"`
}

package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// PendingTransferTTL is how long an unconfirmed inbound transfer may sit in
// the staging area before the expiry sweep rejects it.
const PendingTransferTTL = 24 * time.Hour

// PendingTransferType distinguishes what a confirmed transfer funds.
type PendingTransferType string

const (
	PendingTransferDeposit    PendingTransferType = "deposit"
	PendingTransferInvestment PendingTransferType = "investment"
)

// PendingTransferStatus is the staging record lifecycle. Exactly one
// terminal transition is allowed out of pending.
type PendingTransferStatus string

const (
	PendingTransferPending   PendingTransferStatus = "pending"
	PendingTransferConfirmed PendingTransferStatus = "confirmed"
	PendingTransferRejected  PendingTransferStatus = "rejected"
)

// PendingTransfer stages an unconfirmed inbound transfer so unverified
// claims never pollute the permanent journal. It is correlated with its
// mirrored journal entry by TxHash.
type PendingTransfer struct {
	ID            uuid.UUID             `json:"id"`
	UserID        uuid.UUID             `json:"user_id"`
	Type          PendingTransferType   `json:"type"`
	Status        PendingTransferStatus `json:"status"`
	USDValue      decimal.Decimal       `json:"usd_value"`
	CryptoAmount  decimal.Decimal       `json:"crypto_amount"`
	Currency      string                `json:"currency"`
	TxHash        string                `json:"tx_hash"`
	Confirmations int                   `json:"confirmations"`
	InvestmentID  *uuid.UUID            `json:"investment_id,omitempty"` // set when Type is investment
	PlanID        *uuid.UUID            `json:"plan_id,omitempty"`
	ReviewedBy    *uuid.UUID            `json:"reviewed_by,omitempty"`
	AdminNotes    *string               `json:"admin_notes,omitempty"`
	ExpiresAt     time.Time             `json:"expires_at"`
	CreatedAt     time.Time             `json:"created_at"`
	UpdatedAt     time.Time             `json:"updated_at"`
}

// Expired reports whether the claim has passed its staging deadline.
func (p *PendingTransfer) Expired(now time.Time) bool {
	return !now.Before(p.ExpiresAt)
}

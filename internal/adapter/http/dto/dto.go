package dto

import (
	"time"

	"invest-ledger/internal/core/domain"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// SubmitTransferRequest is the request body for staging an inbound transfer.
// PlanID is required when Type is "investment".
type SubmitTransferRequest struct {
	Type          string          `json:"type" binding:"required,oneof=deposit investment"`
	USDValue      decimal.Decimal `json:"usd_value" binding:"required"`
	CryptoAmount  decimal.Decimal `json:"crypto_amount" binding:"required"`
	Currency      string          `json:"currency" binding:"required,min=2,max=10"`
	TxHash        string          `json:"tx_hash" binding:"required,max=128,safe_id"`
	Confirmations int             `json:"confirmations" binding:"gte=0"`
	FromAddress   *string         `json:"from_address,omitempty" binding:"omitempty,max=128"`
	Network       *string         `json:"network,omitempty" binding:"omitempty,max=32"`
	PlanID        *string         `json:"plan_id,omitempty" binding:"omitempty,uuid"`
}

// ResolveTransferRequest is the admin body for confirming a staged transfer.
type ResolveTransferRequest struct {
	Notes *string `json:"notes,omitempty" binding:"omitempty,max=500"`
}

// RejectTransferRequest is the admin body for rejecting a staged transfer.
type RejectTransferRequest struct {
	Reason string `json:"reason" binding:"required,max=500"`
}

// WithdrawalRequest is the request body for submitting a withdrawal.
type WithdrawalRequest struct {
	BalanceType   string          `json:"balance_type" binding:"required,oneof=main interest investment"`
	Amount        decimal.Decimal `json:"amount" binding:"required"`
	CryptoAmount  decimal.Decimal `json:"crypto_amount" binding:"required"`
	WalletAddress string          `json:"wallet_address" binding:"required,max=128"`
	Chain         string          `json:"chain" binding:"required,max=32"`
}

// ApproveWithdrawalRequest is the admin body for approving a withdrawal.
type ApproveWithdrawalRequest struct {
	Notes *string `json:"notes,omitempty" binding:"omitempty,max=500"`
}

// ProcessWithdrawalRequest is the admin body for marking a withdrawal as
// broadcast on-chain.
type ProcessWithdrawalRequest struct {
	TxHash string `json:"tx_hash" binding:"required,max=128,safe_id"`
}

// FailWithdrawalRequest is the admin body for failing or rejecting a
// withdrawal with a reason.
type FailWithdrawalRequest struct {
	Reason string `json:"reason" binding:"required,max=500"`
}

// BalanceResponse is the response body for a balance query.
type BalanceResponse struct {
	UserID            string          `json:"user_id"`
	MainBalance       decimal.Decimal `json:"main_balance"`
	InterestBalance   decimal.Decimal `json:"interest_balance"`
	InvestmentBalance decimal.Decimal `json:"investment_balance"`
	TotalBalance      decimal.Decimal `json:"total_balance"`
}

// TransactionResponse is the response body for a journal entry.
type TransactionResponse struct {
	ID          string          `json:"id"`
	Type        string          `json:"type"`
	Status      string          `json:"status"`
	USDValue    decimal.Decimal `json:"usd_value"`
	Amount      decimal.Decimal `json:"amount"`
	Currency    string          `json:"currency"`
	TxHash      *string         `json:"tx_hash,omitempty"`
	Description *string         `json:"description,omitempty"`
	CreatedAt   string          `json:"created_at"`
}

// PendingTransferResponse is the response body for a staged transfer.
type PendingTransferResponse struct {
	ID            string          `json:"id"`
	Type          string          `json:"type"`
	Status        string          `json:"status"`
	USDValue      decimal.Decimal `json:"usd_value"`
	CryptoAmount  decimal.Decimal `json:"crypto_amount"`
	Currency      string          `json:"currency"`
	TxHash        string          `json:"tx_hash"`
	Confirmations int             `json:"confirmations"`
	InvestmentID  *string         `json:"investment_id,omitempty"`
	PlanID        *string         `json:"plan_id,omitempty"`
	ExpiresAt     string          `json:"expires_at"`
	CreatedAt     string          `json:"created_at"`
}

// InvestmentResponse is the response body for an investment record.
type InvestmentResponse struct {
	ID           string          `json:"id"`
	PlanID       string          `json:"plan_id"`
	Status       string          `json:"status"`
	USDValue     decimal.Decimal `json:"usd_value"`
	ActualReturn decimal.Decimal `json:"actual_return"`
	TotalReturn  decimal.Decimal `json:"total_return"`
	StartDate    *string         `json:"start_date,omitempty"`
	EndDate      *string         `json:"end_date,omitempty"`
	CreatedAt    string          `json:"created_at"`
}

// WithdrawalResponse is the response body for a withdrawal request.
type WithdrawalResponse struct {
	ID            string          `json:"id"`
	Status        string          `json:"status"`
	BalanceType   string          `json:"balance_type"`
	Amount        decimal.Decimal `json:"amount"`
	CryptoAmount  decimal.Decimal `json:"crypto_amount"`
	WalletAddress string          `json:"wallet_address"`
	Chain         string          `json:"chain"`
	TxHash        *string         `json:"tx_hash,omitempty"`
	CreatedAt     string          `json:"created_at"`
}

// SweepResponse is the response body for a manually triggered sweep.
type SweepResponse struct {
	Processed int `json:"processed"`
}

// TransactionListResponse wraps a paginated journal page.
type TransactionListResponse struct {
	Items  []TransactionResponse `json:"items"`
	Limit  int                   `json:"limit"`
	Offset int                   `json:"offset"`
}

// --- Mappers ---

func FromBalance(b *domain.Balance) BalanceResponse {
	return BalanceResponse{
		UserID:            b.UserID.String(),
		MainBalance:       b.MainBalance,
		InterestBalance:   b.InterestBalance,
		InvestmentBalance: b.InvestmentBalance,
		TotalBalance:      b.TotalBalance,
	}
}

func FromTransaction(t *domain.Transaction) TransactionResponse {
	return TransactionResponse{
		ID:          t.ID.String(),
		Type:        string(t.Type),
		Status:      string(t.Status),
		USDValue:    t.USDValue,
		Amount:      t.Amount,
		Currency:    t.Currency,
		TxHash:      t.TxHash,
		Description: t.Description,
		CreatedAt:   t.CreatedAt.Format(time.RFC3339),
	}
}

func FromPendingTransfer(p *domain.PendingTransfer) PendingTransferResponse {
	return PendingTransferResponse{
		ID:            p.ID.String(),
		Type:          string(p.Type),
		Status:        string(p.Status),
		USDValue:      p.USDValue,
		CryptoAmount:  p.CryptoAmount,
		Currency:      p.Currency,
		TxHash:        p.TxHash,
		Confirmations: p.Confirmations,
		InvestmentID:  uuidString(p.InvestmentID),
		PlanID:        uuidString(p.PlanID),
		ExpiresAt:     p.ExpiresAt.Format(time.RFC3339),
		CreatedAt:     p.CreatedAt.Format(time.RFC3339),
	}
}

func FromInvestment(i *domain.Investment) InvestmentResponse {
	return InvestmentResponse{
		ID:           i.ID.String(),
		PlanID:       i.PlanID.String(),
		Status:       string(i.Status),
		USDValue:     i.USDValue,
		ActualReturn: i.ActualReturn,
		TotalReturn:  i.TotalReturn,
		StartDate:    timeString(i.StartDate),
		EndDate:      timeString(i.EndDate),
		CreatedAt:    i.CreatedAt.Format(time.RFC3339),
	}
}

func FromWithdrawal(w *domain.WithdrawalRequest) WithdrawalResponse {
	return WithdrawalResponse{
		ID:            w.ID.String(),
		Status:        string(w.Status),
		BalanceType:   string(w.BalanceType),
		Amount:        w.Amount,
		CryptoAmount:  w.CryptoAmount,
		WalletAddress: w.WalletAddress,
		Chain:         w.Chain,
		TxHash:        w.TransactionHash,
		CreatedAt:     w.CreatedAt.Format(time.RFC3339),
	}
}

func uuidString(id *uuid.UUID) *string {
	if id == nil {
		return nil
	}
	s := id.String()
	return &s
}

func timeString(t *time.Time) *string {
	if t == nil {
		return nil
	}
	s := t.Format(time.RFC3339)
	return &s
}

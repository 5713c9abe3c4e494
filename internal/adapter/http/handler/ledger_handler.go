package handler

import (
	"strconv"

	"invest-ledger/internal/adapter/http/dto"
	"invest-ledger/internal/adapter/http/middleware"
	"invest-ledger/internal/core/ports"
	"invest-ledger/pkg/apperror"
	"invest-ledger/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// LedgerHandler handles the authenticated read surface: balances, journal,
// investments, staged transfers and withdrawals.
type LedgerHandler struct {
	ledgerSvc ports.LedgerService
}

// NewLedgerHandler creates a new LedgerHandler.
func NewLedgerHandler(ledgerSvc ports.LedgerService) *LedgerHandler {
	return &LedgerHandler{ledgerSvc: ledgerSvc}
}

// currentUserID extracts the authenticated user id set by JWTAuth.
func currentUserID(c *gin.Context) (uuid.UUID, bool) {
	v, ok := c.Get(middleware.CtxUserID)
	if !ok {
		response.Error(c, apperror.ErrInvalidToken())
		return uuid.Nil, false
	}
	return v.(uuid.UUID), true
}

// GetBalance handles GET /api/v1/ledger/balance.
func (h *LedgerHandler) GetBalance(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}

	balance, err := h.ledgerSvc.UserBalances(c.Request.Context(), userID)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.OK(c, dto.FromBalance(balance))
}

// ListTransactions handles GET /api/v1/ledger/transactions.
func (h *LedgerHandler) ListTransactions(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}

	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))

	txns, err := h.ledgerSvc.UserTransactions(c.Request.Context(), userID, limit, offset)
	if err != nil {
		response.Error(c, err)
		return
	}

	items := make([]dto.TransactionResponse, 0, len(txns))
	for i := range txns {
		items = append(items, dto.FromTransaction(&txns[i]))
	}

	response.OK(c, dto.TransactionListResponse{
		Items:  items,
		Limit:  limit,
		Offset: offset,
	})
}

// ListInvestments handles GET /api/v1/ledger/investments.
func (h *LedgerHandler) ListInvestments(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}

	invs, err := h.ledgerSvc.UserInvestments(c.Request.Context(), userID)
	if err != nil {
		response.Error(c, err)
		return
	}

	items := make([]dto.InvestmentResponse, 0, len(invs))
	for i := range invs {
		items = append(items, dto.FromInvestment(&invs[i]))
	}
	response.OK(c, items)
}

// ListPendingTransfers handles GET /api/v1/ledger/pending-transfers.
func (h *LedgerHandler) ListPendingTransfers(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}

	pending, err := h.ledgerSvc.UserPendingTransfers(c.Request.Context(), userID)
	if err != nil {
		response.Error(c, err)
		return
	}

	items := make([]dto.PendingTransferResponse, 0, len(pending))
	for i := range pending {
		items = append(items, dto.FromPendingTransfer(&pending[i]))
	}
	response.OK(c, items)
}

// ListWithdrawals handles GET /api/v1/ledger/withdrawals.
func (h *LedgerHandler) ListWithdrawals(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}

	wds, err := h.ledgerSvc.UserWithdrawals(c.Request.Context(), userID)
	if err != nil {
		response.Error(c, err)
		return
	}

	items := make([]dto.WithdrawalResponse, 0, len(wds))
	for i := range wds {
		items = append(items, dto.FromWithdrawal(&wds[i]))
	}
	response.OK(c, items)
}

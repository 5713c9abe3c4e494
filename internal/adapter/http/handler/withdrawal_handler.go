package handler

import (
	"invest-ledger/internal/adapter/http/dto"
	"invest-ledger/internal/core/domain"
	"invest-ledger/internal/core/ports"
	"invest-ledger/pkg/apperror"
	"invest-ledger/pkg/response"

	"github.com/gin-gonic/gin"
)

// WithdrawalHandler handles user-facing withdrawal submission.
type WithdrawalHandler struct {
	withdrawalSvc ports.WithdrawalService
}

// NewWithdrawalHandler creates a new WithdrawalHandler.
func NewWithdrawalHandler(withdrawalSvc ports.WithdrawalService) *WithdrawalHandler {
	return &WithdrawalHandler{withdrawalSvc: withdrawalSvc}
}

// Request handles POST /api/v1/withdrawals.
func (h *WithdrawalHandler) Request(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}

	var req dto.WithdrawalRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, apperror.Validation(err.Error()))
		return
	}
	dto.SanitizeStruct(&req)

	wd, err := h.withdrawalSvc.Request(c.Request.Context(), ports.WithdrawalSubmission{
		UserID:        userID,
		BalanceType:   domain.BalancePool(req.BalanceType),
		Amount:        req.Amount,
		CryptoAmount:  req.CryptoAmount,
		WalletAddress: req.WalletAddress,
		Chain:         req.Chain,
	})
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Created(c, dto.FromWithdrawal(wd))
}

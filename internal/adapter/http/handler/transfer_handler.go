package handler

import (
	"invest-ledger/internal/adapter/http/dto"
	"invest-ledger/internal/core/domain"
	"invest-ledger/internal/core/ports"
	"invest-ledger/pkg/apperror"
	"invest-ledger/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// TransferHandler handles inbound transfer staging.
type TransferHandler struct {
	transferSvc ports.TransferService
}

// NewTransferHandler creates a new TransferHandler.
func NewTransferHandler(transferSvc ports.TransferService) *TransferHandler {
	return &TransferHandler{transferSvc: transferSvc}
}

// Submit handles POST /api/v1/transfers.
func (h *TransferHandler) Submit(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}

	var req dto.SubmitTransferRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, apperror.Validation(err.Error()))
		return
	}
	dto.SanitizeStruct(&req)

	submission := ports.SubmitTransferRequest{
		UserID:        userID,
		Type:          domain.PendingTransferType(req.Type),
		USDValue:      req.USDValue,
		CryptoAmount:  req.CryptoAmount,
		Currency:      req.Currency,
		TxHash:        req.TxHash,
		Confirmations: req.Confirmations,
		FromAddress:   req.FromAddress,
		Network:       req.Network,
	}
	if req.PlanID != nil {
		planID, err := uuid.Parse(*req.PlanID)
		if err != nil {
			response.Error(c, apperror.Validation("plan_id must be a UUID"))
			return
		}
		submission.PlanID = &planID
	}

	pending, err := h.transferSvc.Submit(c.Request.Context(), submission)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Created(c, dto.FromPendingTransfer(pending))
}

package handler

import (
	"context"
	"time"

	"invest-ledger/internal/adapter/http/dto"
	"invest-ledger/internal/core/ports"
	"invest-ledger/internal/scheduler"
	"invest-ledger/pkg/apperror"
	"invest-ledger/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// AdminHandler handles admin-only operations: transfer resolution, the
// withdrawal pipeline, investment escape hatches and manual sweep triggers.
type AdminHandler struct {
	transferSvc   ports.TransferService
	withdrawalSvc ports.WithdrawalService
	investmentSvc ports.InvestmentService
	accrualSvc    ports.AccrualService
	settlementSvc ports.SettlementService
	sweepLock     ports.SweepLock
	lockTTL       time.Duration
}

// NewAdminHandler creates a new AdminHandler.
func NewAdminHandler(
	transferSvc ports.TransferService,
	withdrawalSvc ports.WithdrawalService,
	investmentSvc ports.InvestmentService,
	accrualSvc ports.AccrualService,
	settlementSvc ports.SettlementService,
	sweepLock ports.SweepLock,
	lockTTL time.Duration,
) *AdminHandler {
	return &AdminHandler{
		transferSvc:   transferSvc,
		withdrawalSvc: withdrawalSvc,
		investmentSvc: investmentSvc,
		accrualSvc:    accrualSvc,
		settlementSvc: settlementSvc,
		sweepLock:     sweepLock,
		lockTTL:       lockTTL,
	}
}

// pathID parses the :id path parameter as a UUID.
func pathID(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.Error(c, apperror.Validation("id must be a UUID"))
		return uuid.Nil, false
	}
	return id, true
}

// ConfirmTransfer handles POST /api/v1/admin/transfers/:id/confirm.
func (h *AdminHandler) ConfirmTransfer(c *gin.Context) {
	adminID, ok := currentUserID(c)
	if !ok {
		return
	}
	id, ok := pathID(c)
	if !ok {
		return
	}

	var req dto.ResolveTransferRequest
	if err := c.ShouldBindJSON(&req); err != nil && c.Request.ContentLength > 0 {
		response.Error(c, apperror.Validation(err.Error()))
		return
	}
	dto.SanitizeStruct(&req)

	pending, err := h.transferSvc.Confirm(c.Request.Context(), id, adminID, req.Notes)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, dto.FromPendingTransfer(pending))
}

// RejectTransfer handles POST /api/v1/admin/transfers/:id/reject.
func (h *AdminHandler) RejectTransfer(c *gin.Context) {
	adminID, ok := currentUserID(c)
	if !ok {
		return
	}
	id, ok := pathID(c)
	if !ok {
		return
	}

	var req dto.RejectTransferRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, apperror.Validation(err.Error()))
		return
	}
	dto.SanitizeStruct(&req)

	pending, err := h.transferSvc.Reject(c.Request.Context(), id, adminID, req.Reason)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, dto.FromPendingTransfer(pending))
}

// ApproveWithdrawal handles POST /api/v1/admin/withdrawals/:id/approve.
func (h *AdminHandler) ApproveWithdrawal(c *gin.Context) {
	adminID, ok := currentUserID(c)
	if !ok {
		return
	}
	id, ok := pathID(c)
	if !ok {
		return
	}

	var req dto.ApproveWithdrawalRequest
	if err := c.ShouldBindJSON(&req); err != nil && c.Request.ContentLength > 0 {
		response.Error(c, apperror.Validation(err.Error()))
		return
	}
	dto.SanitizeStruct(&req)

	wd, err := h.withdrawalSvc.Approve(c.Request.Context(), id, adminID, req.Notes)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, dto.FromWithdrawal(wd))
}

// ProcessWithdrawal handles POST /api/v1/admin/withdrawals/:id/process.
// This is the transition that actually debits the balance pool.
func (h *AdminHandler) ProcessWithdrawal(c *gin.Context) {
	adminID, ok := currentUserID(c)
	if !ok {
		return
	}
	id, ok := pathID(c)
	if !ok {
		return
	}

	var req dto.ProcessWithdrawalRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, apperror.Validation(err.Error()))
		return
	}
	dto.SanitizeStruct(&req)

	wd, err := h.withdrawalSvc.MarkProcessing(c.Request.Context(), id, adminID, req.TxHash)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, dto.FromWithdrawal(wd))
}

// CompleteWithdrawal handles POST /api/v1/admin/withdrawals/:id/complete.
func (h *AdminHandler) CompleteWithdrawal(c *gin.Context) {
	adminID, ok := currentUserID(c)
	if !ok {
		return
	}
	id, ok := pathID(c)
	if !ok {
		return
	}

	wd, err := h.withdrawalSvc.MarkCompleted(c.Request.Context(), id, adminID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, dto.FromWithdrawal(wd))
}

// FailWithdrawal handles POST /api/v1/admin/withdrawals/:id/fail.
func (h *AdminHandler) FailWithdrawal(c *gin.Context) {
	adminID, ok := currentUserID(c)
	if !ok {
		return
	}
	id, ok := pathID(c)
	if !ok {
		return
	}

	var req dto.FailWithdrawalRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, apperror.Validation(err.Error()))
		return
	}
	dto.SanitizeStruct(&req)

	wd, err := h.withdrawalSvc.MarkFailed(c.Request.Context(), id, adminID, req.Reason)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, dto.FromWithdrawal(wd))
}

// RejectWithdrawal handles POST /api/v1/admin/withdrawals/:id/reject.
func (h *AdminHandler) RejectWithdrawal(c *gin.Context) {
	adminID, ok := currentUserID(c)
	if !ok {
		return
	}
	id, ok := pathID(c)
	if !ok {
		return
	}

	var req dto.FailWithdrawalRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, apperror.Validation(err.Error()))
		return
	}
	dto.SanitizeStruct(&req)

	wd, err := h.withdrawalSvc.Reject(c.Request.Context(), id, adminID, req.Reason)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, dto.FromWithdrawal(wd))
}

// PauseInvestment handles POST /api/v1/admin/investments/:id/pause.
func (h *AdminHandler) PauseInvestment(c *gin.Context) {
	adminID, ok := currentUserID(c)
	if !ok {
		return
	}
	id, ok := pathID(c)
	if !ok {
		return
	}

	inv, err := h.investmentSvc.Pause(c.Request.Context(), id, adminID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, dto.FromInvestment(inv))
}

// CancelInvestment handles POST /api/v1/admin/investments/:id/cancel.
func (h *AdminHandler) CancelInvestment(c *gin.Context) {
	adminID, ok := currentUserID(c)
	if !ok {
		return
	}
	id, ok := pathID(c)
	if !ok {
		return
	}

	inv, err := h.investmentSvc.Cancel(c.Request.Context(), id, adminID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, dto.FromInvestment(inv))
}

// RunAccrual handles POST /api/v1/admin/sweeps/accrual.
func (h *AdminHandler) RunAccrual(c *gin.Context) {
	h.runSweep(c, scheduler.LockProfitAccrual, h.accrualSvc.RunProfitAccrual)
}

// RunSettlement handles POST /api/v1/admin/sweeps/settlement.
func (h *AdminHandler) RunSettlement(c *gin.Context) {
	h.runSweep(c, scheduler.LockSettlementSweep, h.settlementSvc.RunSettlementSweep)
}

// RunExpiry handles POST /api/v1/admin/sweeps/expiry.
func (h *AdminHandler) RunExpiry(c *gin.Context) {
	h.runSweep(c, scheduler.LockExpirySweep, h.transferSvc.SweepExpired)
}

// runSweep takes the same distributed lock the cron jobs use, so a manual
// trigger can never run concurrently with the scheduled sweep.
func (h *AdminHandler) runSweep(c *gin.Context, name string, run func(ctx context.Context) (int, error)) {
	ctx := c.Request.Context()

	acquired, err := h.sweepLock.Acquire(ctx, name, h.lockTTL)
	if err != nil {
		response.Error(c, apperror.InternalError(err))
		return
	}
	if !acquired {
		response.Error(c, apperror.ErrSweepBusy())
		return
	}
	defer h.sweepLock.Release(ctx, name) //nolint:errcheck

	processed, err := run(ctx)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, dto.SweepResponse{Processed: processed})
}

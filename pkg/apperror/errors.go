package apperror

import (
	"fmt"
	"net/http"
)

// AppError is a structured error that maps to HTTP responses.
type AppError struct {
	Code       string `json:"error_code"`
	Message    string `json:"message"`
	HTTPStatus int    `json:"-"`
	Err        error  `json:"-"` // Wrapped internal error (not exposed to client)
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// New creates a new AppError.
func New(code string, message string, httpStatus int) *AppError {
	return &AppError{
		Code:       code,
		Message:    message,
		HTTPStatus: httpStatus,
	}
}

// Wrap wraps an internal error with an AppError.
func Wrap(code string, message string, httpStatus int, err error) *AppError {
	return &AppError{
		Code:       code,
		Message:    message,
		HTTPStatus: httpStatus,
		Err:        err,
	}
}

// ---- Ledger Business Logic (LED) ----

func ErrInsufficientBalance(pool string) *AppError {
	return New("LED_001", fmt.Sprintf("Insufficient %s balance", pool), http.StatusPaymentRequired)
}

func ErrInvalidTransition(detail string) *AppError {
	return New("LED_002", detail, http.StatusConflict)
}

// ErrAlreadyProcessed is the InvalidTransition variant raised when a staged
// transfer already left the pending status.
func ErrAlreadyProcessed() *AppError {
	return New("LED_002", "Transfer has already been processed", http.StatusConflict)
}

// ErrDuplicateTransfer is raised when a submit carries a tx hash the user
// already has an unrejected claim for.
func ErrDuplicateTransfer() *AppError {
	return New("LED_002", "A transfer with this transaction hash was already submitted", http.StatusConflict)
}

func ErrNotFound(entity string) *AppError {
	return New("LED_003", fmt.Sprintf("%s not found", entity), http.StatusNotFound)
}

func ErrInvalidAmount() *AppError {
	return New("LED_004", "Invalid amount", http.StatusBadRequest)
}

func ErrInvalidPool() *AppError {
	return New("LED_005", "Unknown balance pool", http.StatusBadRequest)
}

func ErrAmountOutOfPlanRange() *AppError {
	return New("LED_006", "Amount outside the plan's allowed range", http.StatusBadRequest)
}

func ErrPlanInactive() *AppError {
	return New("LED_007", "Investment plan is not open for funding", http.StatusBadRequest)
}

func ErrKYCRequired() *AppError {
	return New("LED_008", "KYC approval required before withdrawing", http.StatusForbidden)
}

// ---- Authentication & Authorization (AUTH) ----

func ErrInvalidToken() *AppError {
	return New("AUTH_001", "Invalid or expired token", http.StatusUnauthorized)
}

func ErrUnauthorized() *AppError {
	return New("AUTH_002", "Admin privileges required", http.StatusForbidden)
}

// ---- Rate Limiting (RATE) ----

func ErrRateLimitExceeded() *AppError {
	return New("RATE_001", "Rate limit exceeded", http.StatusTooManyRequests)
}

// ---- System & Infrastructure (SYS) ----

// ErrSweepBusy is returned when a manual sweep trigger loses the race
// against the scheduled run.
func ErrSweepBusy() *AppError {
	return New("SYS_002", "Sweep is already running", http.StatusConflict)
}

// InternalError wraps an internal error as a SYS_001 error.
func InternalError(err error) *AppError {
	return Wrap("SYS_001", "Internal server error", http.StatusInternalServerError, err)
}

// Validation returns a LED_004-style validation error with a custom message.
func Validation(message string) *AppError {
	return New("LED_004", message, http.StatusBadRequest)
}

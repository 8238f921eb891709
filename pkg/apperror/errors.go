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

// ---- Authentication (AUTH) ----

func ErrInvalidToken() *AppError {
	return New("AUTH_001", "Invalid or expired token", http.StatusUnauthorized)
}

func ErrInvalidServiceToken() *AppError {
	return New("AUTH_002", "Invalid service token", http.StatusUnauthorized)
}

// ---- Webhook Management (WH) ----

func ErrWebhookNotFound() *AppError {
	return New("WH_001", "Webhook not found", http.StatusNotFound)
}

func ErrDeadLetterNotFound() *AppError {
	return New("WH_002", "DLQ job not found", http.StatusNotFound)
}

func ErrTooManyEvents(limit int) *AppError {
	return New("WH_003", fmt.Sprintf("At most %d event subscriptions allowed", limit), http.StatusBadRequest)
}

// Validation returns a WH_004 validation error.
func Validation(message string) *AppError {
	return New("WH_004", message, http.StatusBadRequest)
}

// ---- System & Infrastructure (SYS) ----

func ErrDatabaseError(err error) *AppError {
	return Wrap("SYS_001", "Internal database error", http.StatusInternalServerError, err)
}

func ErrQueueError(err error) *AppError {
	return Wrap("SYS_002", "Job queue error", http.StatusServiceUnavailable, err)
}

// InternalError wraps an internal error as a SYS_000 error.
func InternalError(err error) *AppError {
	return Wrap("SYS_000", "Internal server error", http.StatusInternalServerError, err)
}

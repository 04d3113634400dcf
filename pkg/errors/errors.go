package errors

import (
	"fmt"
	"net/http"
	"runtime/debug"
)

// Error codes shared between the chat engine and its transports
const (
	CodeInvalidInput               = "INVALID_INPUT"
	CodeSessionNotFound            = "SESSION_NOT_FOUND"
	CodeMessageNotFound            = "MESSAGE_NOT_FOUND"
	CodeUnauthorized               = "UNAUTHORIZED"
	CodeInvalidStatusTransition    = "INVALID_STATUS_TRANSITION"
	CodeNotificationDispatchFailed = "NOTIFICATION_DISPATCH_FAILED"
	CodeStoreInvariantViolation    = "STORE_INVARIANT_VIOLATION"
	CodeInternal                   = "INTERNAL_ERROR"
)

// Sentinels for errors.Is comparisons. Never return these directly; use the
// constructors so details and stacks are not shared between callers.
var (
	ErrInvalidInput               = &AppError{Code: CodeInvalidInput}
	ErrSessionNotFound            = &AppError{Code: CodeSessionNotFound}
	ErrMessageNotFound            = &AppError{Code: CodeMessageNotFound}
	ErrUnauthorized               = &AppError{Code: CodeUnauthorized}
	ErrInvalidStatusTransition    = &AppError{Code: CodeInvalidStatusTransition}
	ErrNotificationDispatchFailed = &AppError{Code: CodeNotificationDispatchFailed}
	ErrStoreInvariantViolation    = &AppError{Code: CodeStoreInvariantViolation}
)

// AppError represents an application error with HTTP status code and error code
type AppError struct {
	StatusCode int    `json:"-"`
	Code       string `json:"code"`
	Message    string `json:"message"`
	Details    any    `json:"details,omitempty"`
	Stack      string `json:"-"`
	Cause      error  `json:"-"`
}

// Error implements the error interface
func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Is matches any AppError carrying the same code
func (e *AppError) Is(target error) bool {
	t, ok := target.(*AppError)
	if !ok {
		return false
	}
	return e.Code == t.Code
}

// Unwrap exposes the underlying cause
func (e *AppError) Unwrap() error {
	return e.Cause
}

// WithDetails adds details to the error
func (e *AppError) WithDetails(details any) *AppError {
	e.Details = details
	return e
}

// Wrap records the error that caused this one
func (e *AppError) Wrap(cause error) *AppError {
	e.Cause = cause
	return e
}

// Fatal reports whether the error signals a broken invariant that must abort the operation
func (e *AppError) Fatal() bool {
	return e.Code == CodeStoreInvariantViolation
}

// NewError creates a new application error
func NewError(statusCode int, code string, message string) *AppError {
	return &AppError{
		StatusCode: statusCode,
		Code:       code,
		Message:    message,
		Stack:      string(debug.Stack()),
	}
}

// NewBadRequestError creates a 400 Bad Request error
func NewBadRequestError(code string, message string) *AppError {
	return NewError(http.StatusBadRequest, code, message)
}

// NewUnauthorizedError creates a 401 Unauthorized error
func NewUnauthorizedError(code string, message string) *AppError {
	return NewError(http.StatusUnauthorized, code, message)
}

// NewForbiddenError creates a 403 Forbidden error
func NewForbiddenError(code string, message string) *AppError {
	return NewError(http.StatusForbidden, code, message)
}

// NewNotFoundError creates a 404 Not Found error
func NewNotFoundError(code string, message string) *AppError {
	return NewError(http.StatusNotFound, code, message)
}

// NewConflictError creates a 409 Conflict error
func NewConflictError(code string, message string) *AppError {
	return NewError(http.StatusConflict, code, message)
}

// NewInternalServerError creates a 500 Internal Server Error
func NewInternalServerError(code string, message string) *AppError {
	return NewError(http.StatusInternalServerError, code, message)
}

// InvalidInput reports a missing or malformed field; callers may resubmit
func InvalidInput(format string, args ...any) *AppError {
	return NewBadRequestError(CodeInvalidInput, fmt.Sprintf(format, args...))
}

// SessionNotFound reports an unknown session identifier
func SessionNotFound(sessionID string) *AppError {
	return NewNotFoundError(CodeSessionNotFound, "session not found").
		WithDetails(map[string]string{"sessionId": sessionID})
}

// MessageNotFound reports an unknown message identifier
func MessageNotFound(messageID string) *AppError {
	return NewNotFoundError(CodeMessageNotFound, "message not found").
		WithDetails(map[string]string{"messageId": messageID})
}

// Unauthorized reports that the actor may not touch the resource.
// It is kept distinct from the not-found errors.
func Unauthorized(message string) *AppError {
	return NewForbiddenError(CodeUnauthorized, message)
}

// InvalidStatusTransition reports a delivery or session status moving backwards
func InvalidStatusTransition(from, to string) *AppError {
	return NewConflictError(CodeInvalidStatusTransition, fmt.Sprintf("cannot move from %s to %s", from, to))
}

// NotificationDispatchFailed reports that an escalation hand-off was not confirmed
func NotificationDispatchFailed(escalationID string, cause error) *AppError {
	return NewError(http.StatusBadGateway, CodeNotificationDispatchFailed, "crisis notification could not be dispatched").
		WithDetails(map[string]string{"escalationId": escalationID}).
		Wrap(cause)
}

// StoreInvariantViolation reports a bug in the session store. It is never retried.
func StoreInvariantViolation(message string) *AppError {
	return NewInternalServerError(CodeStoreInvariantViolation, message)
}

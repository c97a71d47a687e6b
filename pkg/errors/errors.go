package errors

import (
	"errors"
	"fmt"
)

// Custom error types for better error handling
var (
	// Authorization failures. Bad credentials, locked accounts and bad
	// override secrets all surface the same generic messages so a caller
	// cannot tell which part of the check failed.
	ErrInvalidCredentials = errors.New("invalid username or password")
	ErrUnableToProcess    = errors.New("unable to process request")
	ErrUnauthorized       = errors.New("unauthorized access")
	ErrForbidden          = errors.New("forbidden")

	ErrPasswordChangeRequired = errors.New("password change required")

	// Validation errors
	ErrInvalidInput      = errors.New("invalid input")
	ErrWeakPassword      = errors.New("password does not meet requirements")
	ErrInvalidUsername   = errors.New("invalid username format")
	ErrDuplicateUsername = errors.New("username already exists")

	// State conflicts
	ErrAlreadyLifted = errors.New("record already lifted")
	ErrRecordLifted  = errors.New("cannot modify a lifted record")
	ErrSetupComplete = errors.New("setup already completed")

	// Database errors
	ErrDatabaseConnection = errors.New("database connection failed")
	ErrTransactionFailed  = errors.New("transaction failed")
	ErrRecordNotFound     = errors.New("record not found")
	ErrAccountNotFound    = errors.New("account not found")
	ErrSessionNotFound    = errors.New("session not found")

	// Rate limiting errors
	ErrRateLimitExceeded = errors.New("rate limit exceeded")

	// Backup errors
	ErrBackupFailed = errors.New("backup operation failed")
)

// AppError wraps errors with additional context
type AppError struct {
	Err     error
	Message string
	Code    int
}

func (e *AppError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Err.Error()
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// NewAppError creates a new application error
func NewAppError(err error, message string, code int) *AppError {
	return &AppError{
		Err:     err,
		Message: message,
		Code:    code,
	}
}

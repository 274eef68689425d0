package models

import (
	"errors"
	"fmt"
)

var (
	ErrConflictData         = errors.New("data conflicts with existing data")
	ErrDataNotFound         = errors.New("data not found")
	ErrInvalidCredentials   = errors.New("invalid login or password")
	ErrInvalidOrder         = errors.New("invalid order payload")
	ErrInvalidTransition    = errors.New("invalid order status transition")
	ErrInvalidCallback      = errors.New("invalid payment callback")
	ErrSignatureRejected    = errors.New("payment signature rejected by provider")
	ErrGatewayNotConfigured = errors.New("payment gateway is not configured")
	ErrInternalError        = errors.New("internal error")
)

// RetryableError marks a transient persistence failure. Resubmitting
// with the same dedup key is safe.
type RetryableError struct {
	Err error
}

func NewRetryableError(err error) RetryableError {
	return RetryableError{Err: err}
}

func (e RetryableError) Error() string {
	return fmt.Sprintf("retryable: %v", e.Err)
}

func (e RetryableError) Unwrap() error {
	return e.Err
}

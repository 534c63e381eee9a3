package models

import (
	"errors"
	"fmt"
)

// ErrorResponse represents an API error response
type ErrorResponse struct {
	Error   string            `json:"error"`
	Code    string            `json:"code"`
	Details map[string]string `json:"details,omitempty"`
}

// Error codes
const (
	ErrCodeInvalidRequest   = "INVALID_REQUEST"
	ErrCodeNotFound         = "NOT_FOUND"
	ErrCodeValidationFailed = "VALIDATION_FAILED"
	ErrCodeForbidden        = "FORBIDDEN"
	ErrCodeTimeout          = "TIMEOUT"
	ErrCodeRateLimited      = "RATE_LIMITED"
	ErrCodeInternalError    = "INTERNAL_ERROR"
)

var (
	// ErrNotFound is returned when a session or job id is unknown.
	ErrNotFound = errors.New("not found")
	// ErrExpired is returned when a record exists but is past its expiry.
	// It matches ErrNotFound under errors.Is.
	ErrExpired = fmt.Errorf("%w: expired", ErrNotFound)
	// ErrTimeout is returned when orchestration or a pipeline stage exceeds its budget.
	ErrTimeout = errors.New("timed out")
	// ErrInvalidState is returned when an operation is not allowed in the current status.
	ErrInvalidState = errors.New("invalid state")
	// ErrForbidden is returned for download token mismatches.
	ErrForbidden = errors.New("forbidden")
	// ErrValidation is returned for malformed input rejected before entering the core.
	ErrValidation = errors.New("validation failed")
)

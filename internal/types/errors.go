package types

import (
	"fmt"
	"strings"
)

// ErrorCode is a typed string for categorizing application errors.
type ErrorCode string

// Error code constants. Components MUST use these instead of hardcoded strings.
const (
	// Validation
	ErrCodeValidationMissingField ErrorCode = "validation_missing_required_field"
	ErrCodeValidationFrequency    ErrorCode = "validation_unknown_frequency"
	ErrCodeValidationQuantity     ErrorCode = "validation_invalid_quantity"

	// Not Found
	ErrCodeNotFoundSchedule     ErrorCode = "not_found_schedule"
	ErrCodeNotFoundSubscription ErrorCode = "not_found_subscription"
	ErrCodeNotFoundConfig       ErrorCode = "not_found_configuration"

	// Internal
	ErrCodeInternalDB         ErrorCode = "internal_database_error"
	ErrCodeInternalUnexpected ErrorCode = "internal_unexpected_error"
	ErrCodeInternalPanic      ErrorCode = "internal_recovered_panic"

	// Upstream
	ErrCodeUpstreamUnavailable   ErrorCode = "upstream_unavailable"
	ErrCodeUpstreamRateLimited   ErrorCode = "upstream_rate_limited"
	ErrCodeUpstreamDirectory     ErrorCode = "upstream_directory_unavailable"
	ErrCodeUpstreamBilling       ErrorCode = "upstream_billing_unavailable"
	ErrCodeUpstreamAuth          ErrorCode = "upstream_auth_failed"
	ErrCodeUpstreamEmailProvider ErrorCode = "upstream_email_provider_unavailable"
	ErrCodeEmailBlocked          ErrorCode = "email_blocked"
)

// IsUpstream reports whether the code describes a failure in a remote dependency.
func (c ErrorCode) IsUpstream() bool {
	return strings.HasPrefix(string(c), "upstream_") || c == ErrCodeEmailBlocked
}

// AppError is the standard application error type used throughout the job.
// Repository, client and service errors are expressed as AppError so callers
// can branch on Code with errors.As.
type AppError struct {
	Code    ErrorCode      `json:"code"`
	Message string         `json:"message"`
	Err     error          `json:"-"`
	Details map[string]any `json:"details,omitempty"`
}

// Error implements the error interface.
func (e *AppError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying error for errors.Is/errors.As support.
func (e *AppError) Unwrap() error {
	return e.Err
}

// WithDetails returns a copy of the error with the provided details merged in.
func (e *AppError) WithDetails(details map[string]any) *AppError {
	merged := make(map[string]any, len(e.Details)+len(details))
	for k, v := range e.Details {
		merged[k] = v
	}
	for k, v := range details {
		merged[k] = v
	}
	return &AppError{
		Code:    e.Code,
		Message: e.Message,
		Err:     e.Err,
		Details: merged,
	}
}

// NewAppError creates a new AppError with the given code, message, and optional
// underlying error.
func NewAppError(code ErrorCode, message string, err error) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

// NewAppErrorWithDetails creates a new AppError carrying structured details.
func NewAppErrorWithDetails(code ErrorCode, message string, err error, details map[string]any) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
		Err:     err,
		Details: details,
	}
}

// BillingRejection is returned by billing clients when the billing API
// answered but refused the usage event. Code is the API's own error code
// (for example "BadArgument" or "Conflict") and is persisted verbatim as the
// audit status.
type BillingRejection struct {
	Code       string
	Message    string
	HTTPStatus int
	RawBody    string
}

func (r *BillingRejection) Error() string {
	return fmt.Sprintf("billing rejected usage event (%d %s): %s", r.HTTPStatus, r.Code, r.Message)
}

// DirectoryError is returned by directory clients when the active-principal
// count could not be obtained. RawBody holds the upstream response, if any.
type DirectoryError struct {
	TenantID   string
	HTTPStatus int
	Message    string
	RawBody    string
	Err        error
}

func (e *DirectoryError) Error() string {
	if e.HTTPStatus != 0 {
		return fmt.Sprintf("directory lookup for tenant %s failed (%d): %s", e.TenantID, e.HTTPStatus, e.Message)
	}
	return fmt.Sprintf("directory lookup for tenant %s failed: %s", e.TenantID, e.Message)
}

func (e *DirectoryError) Unwrap() error {
	return e.Err
}

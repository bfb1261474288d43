package types

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAppError_Format(t *testing.T) {
	appErr := NewAppError(ErrCodeNotFoundSchedule, "schedule 7 not found", nil)
	assert.Equal(t, "not_found_schedule: schedule 7 not found", appErr.Error())
	assert.Nil(t, appErr.Unwrap())
}

func TestAppError_ErrorsAsThroughWrap(t *testing.T) {
	cause := errors.New("connection reset")
	appErr := NewAppError(ErrCodeInternalDB, "failed to list schedules", cause)
	wrapped := fmt.Errorf("evaluate: %w", appErr)

	var target *AppError
	require.True(t, errors.As(wrapped, &target))
	assert.Equal(t, ErrCodeInternalDB, target.Code)
	assert.True(t, errors.Is(wrapped, cause))
}

func TestAppError_WithDetailsDoesNotMutate(t *testing.T) {
	orig := NewAppErrorWithDetails(ErrCodeUpstreamBilling, "billing down", nil, map[string]any{"a": 1})
	derived := orig.WithDetails(map[string]any{"b": 2})

	assert.Len(t, orig.Details, 1)
	assert.Equal(t, map[string]any{"a": 1, "b": 2}, derived.Details)
	assert.Equal(t, orig.Code, derived.Code)
}

func TestErrorCode_IsUpstream(t *testing.T) {
	assert.True(t, ErrCodeUpstreamDirectory.IsUpstream())
	assert.True(t, ErrCodeEmailBlocked.IsUpstream())
	assert.False(t, ErrCodeInternalDB.IsUpstream())
}

func TestBillingRejection_Error(t *testing.T) {
	rej := &BillingRejection{Code: "Conflict", Message: "duplicate usage event", HTTPStatus: 409}
	assert.Contains(t, rej.Error(), "409 Conflict")

	var target *BillingRejection
	require.True(t, errors.As(fmt.Errorf("submit: %w", rej), &target))
	assert.Equal(t, "Conflict", target.Code)
}

func TestDirectoryError_Unwrap(t *testing.T) {
	cause := errors.New("dial tcp: timeout")
	dirErr := &DirectoryError{TenantID: "t-1", Message: "request failed", Err: cause}
	assert.ErrorIs(t, dirErr, cause)
	assert.Contains(t, dirErr.Error(), "t-1")

	withStatus := &DirectoryError{TenantID: "t-1", HTTPStatus: 403, Message: "Authorization_RequestDenied"}
	assert.Contains(t, withStatus.Error(), "(403)")
}

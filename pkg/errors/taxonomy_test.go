package errors

import (
	stderrors "errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewClassifiesFromCode(t *testing.T) {
	tests := []struct {
		name      string
		code      string
		category  ErrorCategory
		severity  ErrorSeverity
		retryable bool
	}{
		{"publish failure", ErrPublishFailed, CategoryInfrastructure, SeverityMedium, true},
		{"store unavailable", ErrStoreUnavailable, CategoryInfrastructure, SeverityHigh, true},
		{"missing field", ErrMissingRequired, CategoryValidation, SeverityLow, false},
		{"alert not found", ErrAlertNotFound, CategoryOperation, SeverityLow, false},
		{"panic", ErrPanic, CategorySystem, SeverityCritical, false},
		{"garbage", "X", CategoryUnknown, SeverityLow, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := New(tt.code, "boom")
			assert.Equal(t, tt.category, err.Category)
			assert.Equal(t, tt.severity, err.Severity)
			assert.Equal(t, tt.retryable, err.Retryable)
			assert.NotEmpty(t, err.CorrelationID)
			assert.Equal(t, fmt.Sprintf("[%s] boom", tt.code), err.Error())
		})
	}
}

func TestWrapKeepsCause(t *testing.T) {
	cause := stderrors.New("socket closed")
	err := Wrap(cause, ErrPublishFailed)
	require.NotNil(t, err)
	assert.ErrorIs(t, err, cause)
	assert.Equal(t, ErrPublishFailed, Code(fmt.Errorf("outer: %w", err)))
	assert.True(t, IsRetryable(err))

	assert.Nil(t, Wrap(nil, ErrPublishFailed))
}

func TestWrapReturnsExistingCodedError(t *testing.T) {
	inner := New(ErrAlertNotFound, "missing")
	wrapped := Wrap(fmt.Errorf("lookup: %w", inner), ErrInternalError)
	assert.Same(t, inner, wrapped)
	assert.False(t, IsRetryable(wrapped))
}

func TestIsRetryableDefaultsTrueForPlainErrors(t *testing.T) {
	assert.True(t, IsRetryable(stderrors.New("plain")))
	assert.Equal(t, "", Code(stderrors.New("plain")))
}

func TestWithContextAndJSON(t *testing.T) {
	err := New(ErrInvalidInput, "bad").WithContext("role", "architect")
	assert.Equal(t, "architect", err.Context["role"])
	assert.Contains(t, err.ToJSON(), `"code":"TRIP-3001"`)
}

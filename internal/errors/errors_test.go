package errors

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAppError(t *testing.T) {
	t.Run("Error returns formatted string", func(t *testing.T) {
		err := New(ErrCodeValidation, "Invalid request body")
		assert.Equal(t, "VALIDATION_ERROR: Invalid request body", err.Error())
	})

	t.Run("Error with cause includes cause", func(t *testing.T) {
		cause := errors.New("database connection failed")
		err := Wrap(ErrCodeDatabase, "Database error", cause)
		assert.Contains(t, err.Error(), "DATABASE_ERROR")
		assert.Contains(t, err.Error(), "database connection failed")
	})

	t.Run("WithCause adds cause to error", func(t *testing.T) {
		cause := errors.New("original error")
		err := New(ErrCodeInternal, "Something went wrong").WithCause(cause)
		assert.Equal(t, cause, err.Unwrap())
	})

	t.Run("WithDetails adds details to error", func(t *testing.T) {
		details := map[string]string{"paymentReference": "HLP-1"}
		err := InvalidTransition("PAID", "PENDING").WithDetails(details)
		assert.Equal(t, details, err.Details)
	})
}

func TestErrorConstructors(t *testing.T) {
	tests := []struct {
		name         string
		constructor  func() *AppError
		expectedCode ErrorCode
	}{
		{"Forbidden", func() *AppError { return Forbidden("test") }, ErrCodeForbidden},
		{"InvalidSignature", func() *AppError { return InvalidSignature("meta") }, ErrCodeInvalidSignature},
		{"ValidationError", func() *AppError { return ValidationError("test") }, ErrCodeValidation},
		{"MissingRequired", func() *AppError { return MissingRequired("paymentReference") }, ErrCodeMissingRequired},
		{"InvalidTransition", func() *AppError { return InvalidTransition("PAID", "PENDING") }, ErrCodeInvalidTransition},
		{"RateLimitExceeded", func() *AppError { return RateLimitExceeded() }, ErrCodeRateLimitExceeded},
		{"LockTimeout", func() *AppError { return LockTimeout("lock:session:1") }, ErrCodeLockTimeout},
		{"Internal", func() *AppError { return Internal("test") }, ErrCodeInternal},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.constructor()
			assert.Equal(t, tc.expectedCode, err.Code)
			assert.NotEmpty(t, err.Message)
		})
	}
}

func TestExternal(t *testing.T) {
	t.Run("wraps external service error", func(t *testing.T) {
		cause := errors.New("timeout")
		err := External("Monnify", cause)
		assert.Equal(t, ErrCodeExternal, err.Code)
		assert.Contains(t, err.Message, "Monnify")
		assert.Equal(t, cause, err.Unwrap())
	})
}

func TestAsAppError(t *testing.T) {
	t.Run("extracts AppError through fmt wrapping", func(t *testing.T) {
		original := Database(errors.New("connection reset"))
		wrapped := fmt.Errorf("resolve payer: %w", original)
		extracted, ok := AsAppError(wrapped)
		assert.True(t, ok)
		assert.Equal(t, original, extracted)
	})

	t.Run("returns false for non-AppError", func(t *testing.T) {
		extracted, ok := AsAppError(errors.New("standard error"))
		assert.False(t, ok)
		assert.Nil(t, extracted)
	})
}

func TestHasCode(t *testing.T) {
	err := fmt.Errorf("wrapped: %w", LockTimeout("k"))
	assert.True(t, HasCode(err, ErrCodeLockTimeout))
	assert.False(t, HasCode(err, ErrCodeDatabase))
	assert.False(t, HasCode(errors.New("plain"), ErrCodeLockTimeout))
}

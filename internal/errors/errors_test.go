package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestWrap_KeepsSentinelAndCause(t *testing.T) {
	cause := stderrors.New("unique violation")
	err := Wrap(ErrDuplicateCategory, cause)

	assert.Equal(t, ErrDuplicateCategory.Code, err.Code)
	assert.Equal(t, http.StatusConflict, err.StatusCode)
	assert.ErrorIs(t, err, cause)
	assert.True(t, HasCode(fmt.Errorf("create: %w", err), ErrDuplicateCategory))
	assert.False(t, HasCode(err, ErrDuplicateEmail))
	assert.False(t, HasCode(cause, ErrDuplicateCategory))
}

func TestWithMessage(t *testing.T) {
	err := WithMessage(ErrInvalidInput, "from must not be after to")
	assert.Equal(t, "INVALID_INPUT", err.Code)
	assert.Equal(t, "from must not be after to", err.Error())
	assert.Equal(t, "Invalid input", ErrInvalidInput.Message, "sentinel must not be mutated")
}

func TestPublic(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want *AppError
	}{
		{"client error passes through", ErrUnknownCategory, ErrUnknownCategory},
		{"wrapped client error", fmt.Errorf("ctx: %w", ErrEntryNotFound), ErrEntryNotFound},
		{"invariant violation is hidden", Wrap(ErrInvariantViolation, stderrors.New("day would be negative")), ErrInternalServer},
		{"plain error is hidden", stderrors.New("connection reset"), ErrInternalServer},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Public(tt.err)
			assert.Equal(t, tt.want.Code, got.Code)
			assert.Equal(t, tt.want.StatusCode, got.StatusCode)
		})
	}
}

func TestStatusCodes(t *testing.T) {
	assert.Equal(t, http.StatusUnprocessableEntity, ErrUnknownCategory.StatusCode)
	assert.Equal(t, http.StatusConflict, ErrStorageConflict.StatusCode)
	assert.Equal(t, http.StatusBadRequest, ErrDateRangeTooLarge.StatusCode)
	assert.True(t, ErrInvariantViolation.IsServerError())
	assert.False(t, ErrForbidden.IsServerError())
}

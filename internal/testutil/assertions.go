package testutil

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "tally/internal/errors"
)

// AssertAppError checks that err is an *AppError with the expected error code.
func AssertAppError(t *testing.T, err error, expectedCode string) {
	t.Helper()

	require.Error(t, err, "expected AppError with code %q", expectedCode)

	var appErr *apperrors.AppError
	require.ErrorAs(t, err, &appErr, "expected *AppError, got %T", err)
	assert.Equal(t, expectedCode, appErr.Code, "message: %s", appErr.Message)
}

// AssertNoError fails the test if err is not nil.
func AssertNoError(t *testing.T, err error) {
	t.Helper()
	require.NoError(t, err)
}

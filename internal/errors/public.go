package errors

import stderrors "errors"

// Public returns the error as it may be shown to a client. Client errors
// pass through unchanged. Server errors, and anything that is not an
// AppError, collapse to ErrInternalServer so no internal detail leaks.
func Public(err error) *AppError {
	var appErr *AppError
	if stderrors.As(err, &appErr) && !appErr.IsServerError() {
		return appErr
	}
	return ErrInternalServer
}

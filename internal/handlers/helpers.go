package handlers

import (
	"errors"
	"time"

	"github.com/gin-gonic/gin"

	"tally/internal/dates"
	apperrors "tally/internal/errors"
	"tally/internal/logger"
	"tally/internal/middleware"
	"tally/internal/uuid"
)

// getUserID extracts the authenticated user ID from the Gin context.
// Returns ErrUnauthorized if not present.
func getUserID(c *gin.Context) (string, error) {
	userID := c.GetString(middleware.UserIDKey)
	if userID == "" {
		return "", apperrors.ErrUnauthorized
	}
	return userID, nil
}

// parsePathID reads a UUID path parameter. Malformed ids are reported as
// notFound, since no resource can carry them.
func parsePathID(c *gin.Context, param string, notFound *apperrors.AppError) (string, error) {
	id, err := uuid.Parse(c.Param(param))
	if err != nil {
		return "", notFound
	}
	return id, nil
}

// parseDateQuery reads an optional YYYY-MM-DD or RFC3339 query parameter.
// A missing parameter yields the zero time.
func parseDateQuery(c *gin.Context, name string) (time.Time, error) {
	v := c.Query(name)
	if v == "" {
		return time.Time{}, nil
	}
	t, err := dates.Parse(v)
	if err != nil {
		return time.Time{}, apperrors.WithMessage(apperrors.ErrInvalidInput, "invalid "+name+": "+err.Error())
	}
	return t, nil
}

// parseRange reads the from/to query pair. Both may be absent; range
// limits are enforced by the stats service.
func parseRange(c *gin.Context) (from, to time.Time, err error) {
	if from, err = parseDateQuery(c, "from"); err != nil {
		return from, to, err
	}
	if to, err = parseDateQuery(c, "to"); err != nil {
		return from, to, err
	}
	return from, to, nil
}

func bindError(err error) error {
	return apperrors.WithMessage(apperrors.ErrInvalidInput, err.Error())
}

// respondWithError writes a consistent JSON error response. Client errors
// keep their code and message. Anything else is logged with its cause and
// answered with a generic internal server error.
func respondWithError(c *gin.Context, err error) {
	public := apperrors.Public(err)
	if public.IsServerError() {
		fields := []interface{}{
			"error", err.Error(),
			"path", c.Request.URL.Path,
			"method", c.Request.Method,
		}
		var appErr *apperrors.AppError
		if errors.As(err, &appErr) {
			fields = append(fields, "code", appErr.Code)
			if appErr.Internal != nil {
				fields = append(fields, "internal", appErr.Internal.Error())
			}
		}
		logger.Component("http").Errorw("Request failed", fields...)
	}

	c.JSON(public.StatusCode, ErrorResponse{Error: ErrorDetail{Code: public.Code, Message: public.Message}})
}

// ErrorDetail represents the inner error object in an error response.
type ErrorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// ErrorResponse represents an error response.
type ErrorResponse struct {
	Error ErrorDetail `json:"error"`
}

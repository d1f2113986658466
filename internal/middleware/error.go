package middleware

import (
	"errors"

	"github.com/gin-gonic/gin"

	apperrors "tally/internal/errors"
	"tally/internal/logger"
)

// ErrorHandler renders the last error attached to the gin context when the
// handler chain did not write a response itself. Server-side failures are
// logged with their cause and answered with a generic internal error.
func ErrorHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if len(c.Errors) == 0 || c.Writer.Written() {
			return
		}

		err := c.Errors.Last().Err
		public := apperrors.Public(err)
		if public.IsServerError() {
			fields := []interface{}{
				"error", err.Error(),
				"path", c.Request.URL.Path,
				"method", c.Request.Method,
			}
			var appErr *apperrors.AppError
			if errors.As(err, &appErr) && appErr.Internal != nil {
				fields = append(fields, "internal", appErr.Internal.Error())
			}
			logger.Component("http").Errorw("Request failed", fields...)
		}

		c.JSON(public.StatusCode, gin.H{
			"error": gin.H{
				"code":    public.Code,
				"message": public.Message,
			},
		})
	}
}

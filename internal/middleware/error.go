// File: internal/middleware/error.go
package middleware

import (
	"net/http"

	"picstream_backend/internal/common"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// ErrorHandler turns errors attached to the Gin context into the APIError
// response shape, and gives bare 404/405 statuses a JSON body.
func ErrorHandler(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if last := c.Errors.Last(); last != nil {
			if apiErr, ok := common.IsAPIError(last.Err); ok {
				c.AbortWithStatusJSON(apiErr.StatusCode, apiErr)
				return
			}

			logger.Error("Unhandled application error",
				zap.Error(last.Err),
				zap.String("path", c.Request.URL.Path),
				zap.Any("meta", last.Meta),
				zap.String("request_id", c.GetString(RequestIDContextKey)),
			)
			generic := common.ErrInternalServer.WithDetails("An unexpected error occurred.")
			if gin.Mode() == gin.DebugMode {
				generic.Details = last.Err.Error()
			}
			c.AbortWithStatusJSON(generic.StatusCode, generic)
			return
		}

		switch c.Writer.Status() {
		case http.StatusNotFound:
			notFound := common.ErrNotFound.WithDetails("The requested endpoint does not exist.")
			c.AbortWithStatusJSON(notFound.StatusCode, notFound)
		case http.StatusMethodNotAllowed:
			notAllowed := common.NewAPIError(http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "The method is not allowed for the requested URL.")
			c.AbortWithStatusJSON(notAllowed.StatusCode, notAllowed)
		}
	}
}

package middleware

import (
	"github.com/gin-gonic/gin"

	"github.com/jwalitptl/clinic-core/pkg/errors"
	"github.com/jwalitptl/clinic-core/pkg/httputil"
	"github.com/jwalitptl/clinic-core/pkg/logger"
)

// ErrorHandler renders the last error a handler attached with c.Error
func ErrorHandler(log *logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if len(c.Errors) == 0 || c.Writer.Written() {
			return
		}

		lastErr := c.Errors.Last().Err
		kind := errors.KindOf(lastErr)
		if kind == "" || kind == errors.KindStorageUnavailable {
			log.ZL.Error().
				Err(lastErr).
				Str("request_id", c.GetString(ContextRequestID)).
				Str("path", c.Request.URL.Path).
				Str("method", c.Request.Method).
				Msg("Request error")
		} else {
			log.ZL.Debug().
				Err(lastErr).
				Str("request_id", c.GetString(ContextRequestID)).
				Str("code", string(kind)).
				Msg("Request rejected")
		}

		httputil.RespondWithError(c, lastErr)
	}
}

package middleware

import (
	"fmt"
	"runtime/debug"

	"github.com/gin-gonic/gin"
	"github.com/kart-io/logger"

	"github.com/kart-io/retrieval-x/pkg/utils/errors"
	"github.com/kart-io/retrieval-x/pkg/utils/response"
)

// Recovery returns a middleware that recovers from panics and answers with
// ErrInternal in the standard envelope. The panic value and stack are logged,
// never returned to the caller.
func Recovery() gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			r := recover()
			if r == nil {
				return
			}
			stack := debug.Stack()
			logger.Errorw("panic recovered",
				"panic", fmt.Sprintf("%v", r),
				"method", c.Request.Method,
				"path", c.Request.URL.Path,
				"request_id", c.GetString(RequestIDKey),
				"stack", string(stack),
			)

			resp := response.Err(errors.ErrInternal)
			defer response.Release(resp)
			resp.WithRequestID(c.GetString(RequestIDKey))
			c.AbortWithStatusJSON(resp.HTTPStatus(), resp)
		}()
		c.Next()
	}
}

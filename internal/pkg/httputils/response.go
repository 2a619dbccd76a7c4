// Package httputils provides HTTP utility functions.
package httputils

import (
	"github.com/gin-gonic/gin"
	"github.com/kart-io/logger"

	"github.com/kart-io/retrieval-x/pkg/infra/middleware"
	"github.com/kart-io/retrieval-x/pkg/utils/errors"
	"github.com/kart-io/retrieval-x/pkg/utils/response"
)

// RequestIDKey is the gin context key holding the request id.
const RequestIDKey = middleware.RequestIDKey

// WriteResponse writes err or data in the response envelope. Error messages
// follow the Accept-Language header when a Chinese text exists.
func WriteResponse(c *gin.Context, err error, data interface{}) {
	if err != nil {
		errno := errors.FromError(err)
		if errno.HTTPStatus() >= 500 {
			logger.Errorw("Request failed", "path", c.FullPath(), "code", errno.Code, "error", err.Error())
		}
		resp := response.ErrIn(errno, c.GetHeader("Accept-Language"))
		writeResponse(c, resp)
		return
	}

	// data can be *response.Response (e.g. from response.Accepted) or raw data
	if resp, ok := data.(*response.Response); ok {
		writeResponse(c, resp)
		return
	}

	writeResponse(c, response.Success(data))
}

func writeResponse(c *gin.Context, resp *response.Response) {
	defer response.Release(resp)
	resp.WithRequestID(c.GetString(RequestIDKey))
	c.JSON(resp.HTTPStatus(), resp)
}

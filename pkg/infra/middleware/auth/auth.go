// Package auth provides the identity middleware that scopes every request
// to one user id.
package auth

import (
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/kart-io/logger"

	ctxlog "github.com/kart-io/retrieval-x/pkg/infra/logger"
	"github.com/kart-io/retrieval-x/pkg/infra/middleware"
	"github.com/kart-io/retrieval-x/pkg/utils/errors"
	"github.com/kart-io/retrieval-x/pkg/utils/response"
)

const (
	// HeaderUserID names the caller when token verification is disabled.
	HeaderUserID = "X-User-ID"

	// DefaultUserID is used when verification is disabled and no header is sent.
	DefaultUserID = "default"

	authScheme = "Bearer"
)

// TokenVerifier resolves a bearer token to a user id.
type TokenVerifier interface {
	Verify(token string) (string, error)
}

// Auth returns a middleware that authenticates the caller with verifier.
// A nil verifier means verification is disabled: the X-User-ID header is
// trusted and DefaultUserID is used when it is absent.
// When sanitize is set a user id must already be in canonical form: an id
// that sanitize would alter is rejected with 401, so two distinct identities
// can never map to one namespace.
func Auth(verifier TokenVerifier, sanitize func(string) string) gin.HandlerFunc {
	return func(c *gin.Context) {
		var user string
		if verifier == nil {
			user = strings.TrimSpace(c.GetHeader(HeaderUserID))
			if user == "" {
				user = DefaultUserID
			}
		} else {
			token := extractToken(c)
			if token == "" {
				abort(c, errors.ErrUnauthorized.WithMessage("missing authentication token"))
				return
			}
			sub, err := verifier.Verify(token)
			if err != nil {
				logAuthFailure(c, token, err)
				abort(c, err)
				return
			}
			user = sub
		}

		if user == "" || (sanitize != nil && sanitize(user) != user) {
			logger.Warnw("rejected non-canonical user id", "user_id", user,
				"remote_addr", c.ClientIP(), "request_id", c.GetString(middleware.RequestIDKey))
			abort(c, errors.ErrUnauthorized.WithMessage("invalid user id"))
			return
		}

		c.Set(middleware.UserIDKey, user)
		c.Request = c.Request.WithContext(ctxlog.WithUserID(c.Request.Context(), user))
		c.Next()
	}
}

// extractToken reads the token from "Authorization: Bearer <token>".
func extractToken(c *gin.Context) string {
	header := c.GetHeader("Authorization")
	if len(header) <= len(authScheme)+1 || !strings.EqualFold(header[:len(authScheme)], authScheme) || header[len(authScheme)] != ' ' {
		return ""
	}
	return strings.TrimSpace(header[len(authScheme)+1:])
}

func abort(c *gin.Context, err error) {
	errno := errors.FromError(err)
	resp := response.Err(errno)
	defer response.Release(resp)
	resp.WithRequestID(c.GetString(middleware.RequestIDKey))
	c.AbortWithStatusJSON(resp.HTTPStatus(), resp)
}

// logAuthFailure records failed verifications without leaking the full token.
func logAuthFailure(c *gin.Context, token string, err error) {
	var tokenPrefix string
	if len(token) > 20 {
		tokenPrefix = token[:20] + "..."
	} else {
		tokenPrefix = token[:len(token)/2] + "..."
	}

	logger.Warnw("authentication failed",
		"error", err.Error(),
		"remote_addr", c.ClientIP(),
		"token_prefix", tokenPrefix,
		"path", c.Request.URL.Path,
		"method", c.Request.Method,
		"request_id", c.GetString(middleware.RequestIDKey),
	)
}

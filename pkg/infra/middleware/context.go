package middleware

import "github.com/gin-gonic/gin"

// UserIDKey is the gin context key holding the authenticated user id.
const UserIDKey = "user_id"

// UserID returns the user id set by the auth middleware, or "" when the
// request was not authenticated.
func UserID(c *gin.Context) string {
	return c.GetString(UserIDKey)
}

package session

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

const ctxKey = "session"

// Middleware builds the request session from headers set by the external
// auth layer. Requests without a valid role are rejected before any
// handler runs.
func Middleware(restaurantID int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		role := Role(c.GetHeader("X-Role"))
		if !role.Valid() {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"type":   "invalid_role",
				"title":  http.StatusText(http.StatusUnauthorized),
				"status": http.StatusUnauthorized,
				"detail": "X-Role header missing or unknown",
			})
			return
		}
		actor := c.GetHeader("X-Actor")
		if actor == "" {
			actor = string(role)
		}
		c.Set(ctxKey, New(restaurantID, actor, role))
		c.Next()
	}
}

// FromContext returns the session attached by Middleware.
func FromContext(c *gin.Context) *Session {
	if v, ok := c.Get(ctxKey); ok {
		if s, ok := v.(*Session); ok {
			return s
		}
	}
	return nil
}

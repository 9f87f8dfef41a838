package httpx

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// Problem writes a simplified RFC 7807 error body. The detail text is meant
// for operators and must stay short and actionable, never raw transport
// error text.
func Problem(c *gin.Context, code int, typ, detail string) {
	c.AbortWithStatusJSON(code, gin.H{
		"type":   typ,
		"title":  http.StatusText(code),
		"status": code,
		"detail": detail,
	})
}

package identity

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/openmelee/netplay-server/service/i"
)

const (
	// ContextUserClaims is the key used to store user claims in the Gin context.
	ContextUserClaims = "userClaims"
)

// Authorize validates the bearer token and attaches its claims to the
// request context.
func Authorize(ts i.Tokenizer) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			c.Status(http.StatusUnauthorized)
			c.Abort()
			return
		}

		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || strings.ToLower(parts[0]) != "bearer" {
			c.Status(http.StatusUnauthorized)
			c.Abort()
			return
		}

		claims, err := ts.Decode(parts[1])
		if err != nil {
			c.Status(http.StatusUnauthorized)
			c.Abort()
			return
		}

		c.Set(ContextUserClaims, claims)
		c.Next()
	}
}

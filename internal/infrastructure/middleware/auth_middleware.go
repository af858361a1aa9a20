package middleware

import (
	"net/http"
	"strings"

	"streamctl/internal/core/domain"
	"streamctl/internal/core/ports"

	"github.com/gin-gonic/gin"
)

// TokenAuthMiddleware admits requests carrying a valid control session
// token as "Authorization: Bearer <token>".
func TokenAuthMiddleware(tokens ports.TokenService) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "authorization header required"})
			return
		}

		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || parts[0] != "Bearer" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid authorization header format"})
			return
		}

		if !tokens.Validate(domain.Token(parts[1])) {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
			return
		}
		c.Next()
	}
}

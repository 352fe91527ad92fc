package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"

	"orgsetup/pkg/auth"
	"orgsetup/pkg/response"
)

const UsernameKey = "username"

// AuthMiddleware accepts a bearer token in the Authorization header or, for
// websocket upgrades that cannot set headers, a token query parameter.
func AuthMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		token := c.Query("token")
		if header := c.GetHeader("Authorization"); header != "" {
			parts := strings.SplitN(header, " ", 2)
			if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
				response.Unauthorized(c, "malformed authorization header")
				return
			}
			token = parts[1]
		}
		if token == "" {
			response.Unauthorized(c, "missing token")
			return
		}

		claims, err := auth.ParseToken(token)
		if err != nil {
			response.Unauthorized(c, "invalid or expired token")
			return
		}
		c.Set(UsernameKey, claims.Username)
		c.Next()
	}
}

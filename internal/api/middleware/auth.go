// Package middleware provides Gin middleware for the broker's API:
// bearer session-token authentication for the /api routes.
package middleware

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/inkdesk/inkbroker/internal/auth/session"
)

// claimsKey is the Gin context key holding verified session claims.
const claimsKey = "__session_claims__"

// RequireSession returns middleware that authenticates requests with a
// bearer session token. Requests without a token get 401; requests with
// an invalid or expired token get 403. Both mean "log in again" to the
// client, never "retry".
func RequireSession(codec *session.Codec) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := bearerToken(c.GetHeader("Authorization"))
		if token == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Access token required"})
			return
		}

		claims, err := codec.Verify(token)
		if err != nil {
			message := "Invalid token"
			if errors.Is(err, session.ErrExpired) {
				message = "Token expired"
			}
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": message})
			return
		}

		c.Set(claimsKey, claims)
		c.Next()
	}
}

// ClaimsFrom returns the verified session claims stored by
// RequireSession, or nil when the request was not authenticated.
func ClaimsFrom(c *gin.Context) *session.Claims {
	value, exists := c.Get(claimsKey)
	if !exists {
		return nil
	}
	claims, ok := value.(*session.Claims)
	if !ok {
		return nil
	}
	return claims
}

// bearerToken extracts the token from an Authorization header value.
func bearerToken(header string) string {
	if header == "" {
		return ""
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}

package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"chat-backend/internal/apperr"
	"chat-backend/internal/auth"
)

// Context keys set by AuthMiddleware.
const (
	UserIDKey = "userID"
	EmailKey  = "email"
)

// Authenticator resolves a bearer token to the caller's identity.
type Authenticator interface {
	Authenticate(ctx context.Context, raw string) (auth.Identity, error)
}

// AuthMiddleware validates the Authorization header and stores the caller
// identity on the gin context.
func AuthMiddleware(authenticator Authenticator) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if header == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing authorization"})
			return
		}

		parts := strings.SplitN(header, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid authorization header"})
			return
		}

		id, err := authenticator.Authenticate(c.Request.Context(), strings.TrimSpace(parts[1]))
		if apperr.Is(err, apperr.KindUpstream) {
			c.AbortWithStatusJSON(http.StatusBadGateway, gin.H{"error": apperr.Message(err)})
			return
		}
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
			return
		}

		c.Set(UserIDKey, id.ID)
		c.Set(EmailKey, id.Email)
		c.Next()
	}
}

// Identity reads what AuthMiddleware stored.
func Identity(c *gin.Context) auth.Identity {
	return auth.Identity{ID: c.GetString(UserIDKey), Email: c.GetString(EmailKey)}
}

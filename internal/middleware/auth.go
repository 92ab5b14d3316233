package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// ContextOwnerKey is where the resolved internal owner id lives in the gin
// context.
const ContextOwnerKey = "owner_id"

// TokenVerifier verifies a bearer token and returns the external subject.
type TokenVerifier interface {
	VerifySubject(token string) (string, error)
}

// OwnerResolver maps an external auth subject to the internal owner id.
type OwnerResolver interface {
	ResolveOwner(ctx context.Context, subject string) (uuid.UUID, error)
}

// AuthMiddleware verifies the bearer token and resolves the internal owner
// id into the request context. Handlers downstream never see the raw token
// or the external subject.
func AuthMiddleware(verifier TokenVerifier, resolver OwnerResolver) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			abortUnauthorized(c, "missing authorization header")
			return
		}

		parts := strings.Split(authHeader, " ")
		if len(parts) != 2 || parts[0] != "Bearer" {
			abortUnauthorized(c, "invalid authorization header format")
			return
		}

		subject, err := verifier.VerifySubject(parts[1])
		if err != nil {
			abortUnauthorized(c, "invalid token")
			return
		}

		ownerID, err := resolver.ResolveOwner(c.Request.Context(), subject)
		if err != nil {
			abortUnauthorized(c, "could not resolve identity")
			return
		}

		c.Set(ContextOwnerKey, ownerID)
		c.Next()
	}
}

func abortUnauthorized(c *gin.Context, message string) {
	c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
		"error": gin.H{"code": "unauthorized", "message": message},
	})
}

// OwnerID extracts the resolved owner id from the gin context.
func OwnerID(c *gin.Context) (uuid.UUID, bool) {
	val, exists := c.Get(ContextOwnerKey)
	if !exists {
		return uuid.Nil, false
	}
	id, ok := val.(uuid.UUID)
	return id, ok
}

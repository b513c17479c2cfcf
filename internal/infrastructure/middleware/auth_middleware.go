package middleware

import (
	"net/http"
	"strings"

	"livegate/internal/core/domain"
	"livegate/internal/core/ports"

	"github.com/gin-gonic/gin"
)

const identityKey = "identity"

// AuthMiddleware requires a bearer credential and resolves it to a full
// identity record, stored in the request context under "identity".
func AuthMiddleware(ids ports.IdentityProvider) gin.HandlerFunc {
	return func(c *gin.Context) {
		token, ok := bearerToken(c)
		if !ok {
			c.JSON(http.StatusUnauthorized, gin.H{"success": false, "error": "authorization header required"})
			c.Abort()
			return
		}

		principal, err := ids.VerifyCredential(c.Request.Context(), token)
		if err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"success": false, "error": "invalid credential"})
			c.Abort()
			return
		}

		identity, err := ids.GetIdentity(c.Request.Context(), principal.ID)
		if err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"success": false, "error": "unknown identity"})
			c.Abort()
			return
		}
		if identity.Username == "" {
			identity.Username = principal.Username
		}

		c.Set(identityKey, identity)
		c.Next()
	}
}

// OptionalAuthMiddleware resolves a credential when present and passes
// anonymous requests through untouched.
func OptionalAuthMiddleware(ids ports.IdentityProvider) gin.HandlerFunc {
	return func(c *gin.Context) {
		token, ok := bearerToken(c)
		if !ok {
			c.Next()
			return
		}

		if principal, err := ids.VerifyCredential(c.Request.Context(), token); err == nil {
			if identity, err := ids.GetIdentity(c.Request.Context(), principal.ID); err == nil {
				if identity.Username == "" {
					identity.Username = principal.Username
				}
				c.Set(identityKey, identity)
			}
		}

		c.Next()
	}
}

// IdentityFrom returns the identity resolved by the auth middleware, if any.
func IdentityFrom(c *gin.Context) (*domain.Identity, bool) {
	v, exists := c.Get(identityKey)
	if !exists {
		return nil, false
	}
	identity, ok := v.(*domain.Identity)
	return identity, ok
}

func bearerToken(c *gin.Context) (string, bool) {
	header := c.GetHeader("Authorization")
	if header == "" {
		return "", false
	}
	parts := strings.Split(header, " ")
	if len(parts) != 2 || parts[0] != "Bearer" {
		return "", false
	}
	return parts[1], true
}

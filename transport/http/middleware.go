package http

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/custodia-labs/custodia/core"
	"github.com/custodia-labs/custodia/service"
)

const ownerKey = "ownerAddress"

// AuthMiddleware validates the bearer credential and stores the subject
// address in the gin context.
func AuthMiddleware(auth *service.AuthService) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if !strings.HasPrefix(header, "Bearer ") {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Invalid authorization header"})
			return
		}

		session, err := auth.Resolve(strings.TrimPrefix(header, "Bearer "))
		if err != nil {
			if errors.Is(err, core.ErrCredentialExpired) {
				c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Credential expired"})
			} else {
				c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Invalid credential"})
			}
			return
		}

		c.Set(ownerKey, session.Address)
		c.Next()
	}
}

// owner returns the authenticated subject set by AuthMiddleware.
func owner(c *gin.Context) string {
	return c.GetString(ownerKey)
}

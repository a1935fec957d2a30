package http

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"mindwell/internal/identity"
)

const authIdentityKey = "auth_identity"

// AuthRequired valida bearer tokens contra el proveedor de identidad y
// guarda los hechos de identidad en el contexto.
func AuthRequired(provider identity.Provider) gin.HandlerFunc {
	return func(c *gin.Context) {
		if provider == nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "identity provider not configured"})
			c.Abort()
			return
		}

		header := strings.TrimSpace(c.GetHeader("Authorization"))
		if header == "" || !strings.HasPrefix(strings.ToLower(header), "bearer ") {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "missing token"})
			c.Abort()
			return
		}

		token := strings.TrimSpace(header[len("Bearer "):])
		ident, err := provider.IdentityFromToken(c.Request.Context(), token)
		if err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
			c.Abort()
			return
		}

		c.Set(authIdentityKey, ident)
		c.Next()
	}
}

// GetAuthIdentity obtiene la identidad autenticada desde el contexto.
func GetAuthIdentity(c *gin.Context) (*identity.Identity, bool) {
	val, ok := c.Get(authIdentityKey)
	if !ok {
		return nil, false
	}
	ident, ok := val.(*identity.Identity)
	return ident, ok
}

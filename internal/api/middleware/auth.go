package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"golang.org/x/crypto/bcrypt"
)

// AuthConfig defines bearer token authentication configuration. TokenHash is
// a bcrypt hash of the expected token; the plaintext never lives in config.
type AuthConfig struct {
	Enabled   bool
	TokenHash string
}

// Auth creates a bearer token middleware. Requests must carry
// "Authorization: Bearer <token>" where the token matches the stored bcrypt
// hash. Disabled configuration passes everything through.
func Auth(cfg AuthConfig) gin.HandlerFunc {
	if !cfg.Enabled {
		return func(c *gin.Context) { c.Next() }
	}

	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		token, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || token == "" {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "missing bearer token"})
			c.Abort()
			return
		}

		if err := bcrypt.CompareHashAndPassword([]byte(cfg.TokenHash), []byte(token)); err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
			c.Abort()
			return
		}

		c.Next()
	}
}

package middleware

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"billflow/desk/internal/auth"
	"billflow/desk/internal/backend"
)

const (
	// ContextKeyUserID holds the key for the backend user id (int) in Gin context.
	ContextKeyUserID = "userID"
	// ContextKeyToken holds the raw bearer token, forwarded to the backend on the user's behalf.
	ContextKeyToken = "token"
)

// AuthMiddleware creates a Gin middleware for JWT authentication. Tokens are issued by
// the BillFlow backend and checked here with the shared secret before any backend call.
func AuthMiddleware(jwtSecret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Authorization header required"})
			return
		}

		parts := strings.Split(authHeader, " ")
		if len(parts) != 2 || strings.ToLower(parts[0]) != "bearer" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Authorization header format must be Bearer {token}"})
			return
		}

		tokenString := parts[1]
		claims, err := auth.ValidateJWT(tokenString, jwtSecret)
		if err != nil {
			errMsg := fmt.Sprintf("Invalid or expired token: %v", err)
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": errMsg})
			return
		}
		userID, _ := claims.UserID() // checked by ValidateJWT

		c.Set(ContextKeyUserID, userID)
		c.Set(ContextKeyToken, tokenString)

		c.Next()
	}
}

// SessionFromContext rebuilds the backend session for the authenticated request.
// It returns nil when AuthMiddleware did not run.
func SessionFromContext(c *gin.Context) *backend.Session {
	token := c.GetString(ContextKeyToken)
	if token == "" {
		return nil
	}
	return &backend.Session{Token: token, UserID: c.GetInt(ContextKeyUserID)}
}

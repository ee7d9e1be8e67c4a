package middleware_test

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"billflow/desk/internal/api/middleware"
	"billflow/desk/internal/auth"
)

const testSecret = "test-secret"

func setupAuthEngine() *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(middleware.AuthMiddleware(testSecret))
	r.GET("/me", func(c *gin.Context) {
		session := middleware.SessionFromContext(c)
		c.JSON(http.StatusOK, gin.H{"user_id": session.UserID, "token": session.Token})
	})
	return r
}

func TestAuthMiddleware_ValidToken(t *testing.T) {
	token, err := auth.GenerateJWT(3, testSecret, time.Minute)
	require.NoError(t, err)

	w := httptest.NewRecorder()
	req, _ := http.NewRequest("GET", "/me", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	setupAuthEngine().ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"user_id": 3, "token": "`+token+`"}`, w.Body.String())
}

func TestAuthMiddleware_Rejects(t *testing.T) {
	wrongKey, err := auth.GenerateJWT(3, "other", time.Minute)
	require.NoError(t, err)

	cases := map[string]string{
		"missing":   "",
		"malformed": "Token abc",
		"wrong key": "Bearer " + wrongKey,
	}
	for name, header := range cases {
		w := httptest.NewRecorder()
		req, _ := http.NewRequest("GET", "/me", nil)
		if header != "" {
			req.Header.Set("Authorization", header)
		}
		setupAuthEngine().ServeHTTP(w, req)
		assert.Equal(t, http.StatusUnauthorized, w.Code, name)
	}
}

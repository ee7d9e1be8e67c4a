package api

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"

	"billflow/desk/internal/config"
)

func TestSetupRouter_PublicAndProtectedRoutes(t *testing.T) {
	gin.SetMode(gin.TestMode)
	cfg := &config.Config{JwtSecret: "secret", RateLimitBucketSize: 10, RateLimitRefillRate: 10}
	r, limiter := SetupRouter(cfg, nil, nil, nil)
	defer limiter.Stop()

	w := httptest.NewRecorder()
	req, _ := http.NewRequest("GET", "/v1/ping", nil)
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "pong", w.Body.String())
	assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))

	w = httptest.NewRecorder()
	req, _ = http.NewRequest("GET", "/v1/invoices/7/pdf", nil)
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestSetupServiceRouter_Shutdown(t *testing.T) {
	gin.SetMode(gin.TestMode)
	shutdown := make(chan struct{}, 1)
	r := SetupServiceRouter(shutdown)

	w := httptest.NewRecorder()
	req, _ := http.NewRequest("POST", "/api", bytes.NewBufferString(`{"method": "shutdown"}`))
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, shutdown, 1)

	w = httptest.NewRecorder()
	req, _ = http.NewRequest("POST", "/api", bytes.NewBufferString(`{"method": "reboot"}`))
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

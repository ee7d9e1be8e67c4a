package api

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"billflow/desk/internal/api/handlers"
	"billflow/desk/internal/api/middleware"
	"billflow/desk/internal/config"
	"billflow/desk/internal/services"
)

// SetupRouter configures and returns the main Gin engine. taskClient may be nil, in
// which case invoices are published inside the request.
func SetupRouter(cfg *config.Config, invoiceService services.IInvoiceService, uploadService services.IUploadService, taskClient handlers.IAsynqClient) (*gin.Engine, *middleware.RateLimiterMiddleware) {
	r := gin.Default()

	rateLimiter := middleware.NewRateLimiterMiddleware(cfg)

	// Apply global middleware first (order matters)
	r.Use(middleware.CORSMiddleware())
	r.Use(rateLimiter.Limit())

	invoiceHandler := handlers.NewInvoiceHandler(invoiceService, taskClient)
	uploadHandler := handlers.NewUploadHandler(uploadService)

	v1 := r.Group("/v1")
	{
		v1.GET("/ping", func(c *gin.Context) {
			c.String(http.StatusOK, "pong")
		})
		v1.GET("/uploads/allowed", uploadHandler.AllowedTypes)

		authRequired := v1.Group("/")
		authRequired.Use(middleware.AuthMiddleware(cfg.JwtSecret))
		{
			authRequired.GET("/invoices/:id/pdf", invoiceHandler.GetPDF)
			authRequired.GET("/invoices/:id/document", invoiceHandler.GetDocument)
			authRequired.POST("/invoices/:id/publish", invoiceHandler.Publish)
			authRequired.GET("/invoices/:id/renders", invoiceHandler.GetRenders)
			authRequired.POST("/uploads", uploadHandler.Upload)
		}
	}

	return r, rateLimiter
}

// SetupServiceRouter configures and returns the service Gin engine, meant to listen on
// loopback only.
func SetupServiceRouter(shutdownChan chan<- struct{}) *gin.Engine {
	r := gin.New()
	r.Use(gin.Logger(), gin.Recovery())

	r.POST("/api", func(c *gin.Context) {
		var req struct {
			Method    string          `json:"method"`
			Arguments json.RawMessage `json:"arguments"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "Invalid request format"})
			return
		}

		switch req.Method {
		case "shutdown":
			fmt.Println("Received shutdown command via Service API")
			c.JSON(http.StatusOK, gin.H{"success": true, "result": "Shutdown initiated"})
			select {
			case shutdownChan <- struct{}{}:
				fmt.Println("Shutdown signal sent successfully.")
			default:
				fmt.Println("Shutdown channel already signaled or blocked.")
			}
		default:
			c.JSON(http.StatusNotFound, gin.H{"success": false, "error": fmt.Sprintf("Unknown service method: %s", req.Method)})
		}
	})
	return r
}

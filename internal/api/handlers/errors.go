package handlers

import (
	"errors"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"

	"billflow/desk/internal/backend"
	"billflow/desk/internal/models"
	"billflow/desk/internal/services"
)

// respondError maps service errors onto HTTP statuses. Backend messages are passed
// through because they are already written for end users.
func respondError(c *gin.Context, err error, fallback string) {
	_ = c.Error(err)

	var apiErr *backend.APIError
	switch {
	case errors.Is(err, backend.ErrUnauthorized):
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Session expired, please log in again"})
	case errors.Is(err, backend.ErrInvoiceNotFound):
		body := gin.H{"error": "Invoice not found"}
		if errors.As(err, &apiErr) && apiErr.Hint != "" {
			body["hint"] = apiErr.Hint
		}
		c.JSON(http.StatusNotFound, body)
	case errors.Is(err, models.ErrMalformedInvoice):
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": "Invoice record is incomplete", "details": err.Error()})
	case errors.Is(err, services.ErrNoRenderLedger):
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": err.Error()})
	case errors.Is(err, services.ErrTooManyFiles):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.As(err, &apiErr):
		c.JSON(http.StatusBadGateway, gin.H{"error": apiErr.UserMessage()})
	default:
		log.Printf("Handler error: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": fallback})
	}
}

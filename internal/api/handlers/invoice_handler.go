package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/hibiken/asynq"

	"billflow/desk/internal/api/middleware"
	"billflow/desk/internal/services"
	"billflow/desk/internal/tasks"
	"billflow/desk/internal/utils"
)

// IAsynqClient defines the interface for the Asynq client methods used by the handler.
type IAsynqClient interface {
	EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
}

// InvoiceHandler serves invoice documents.
type InvoiceHandler struct {
	invoiceService services.IInvoiceService
	taskClient     IAsynqClient // nil publishes inline
}

// NewInvoiceHandler creates a new InvoiceHandler.
func NewInvoiceHandler(invoiceService services.IInvoiceService, taskClient IAsynqClient) *InvoiceHandler {
	return &InvoiceHandler{invoiceService: invoiceService, taskClient: taskClient}
}

type invoiceURI struct {
	ID int `uri:"id" binding:"required,gt=0"`
}

type invoiceQuery struct {
	Name string `form:"name" binding:"max=120"`
}

func bindInvoiceRequest(c *gin.Context) (int, string, bool) {
	var uri invoiceURI
	if err := c.ShouldBindUri(&uri); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invoice id must be a positive integer"})
		return 0, "", false
	}
	var query invoiceQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Display name is too long"})
		return 0, "", false
	}
	return uri.ID, query.Name, true
}

// GetPDF handles GET /v1/invoices/:id/pdf?name=
func (h *InvoiceHandler) GetPDF(c *gin.Context) {
	id, name, ok := bindInvoiceRequest(c)
	if !ok {
		return
	}

	rendered, err := h.invoiceService.Render(c.Request.Context(), middleware.SessionFromContext(c), id, name)
	if err != nil {
		respondError(c, err, "Failed to render invoice")
		return
	}

	c.Header("Content-Disposition", utils.AttachmentDisposition(rendered.Filename()))
	c.Data(http.StatusOK, "application/pdf", rendered.PDF)
}

// GetDocument handles GET /v1/invoices/:id/document and returns the layout as JSON.
func (h *InvoiceHandler) GetDocument(c *gin.Context) {
	id, name, ok := bindInvoiceRequest(c)
	if !ok {
		return
	}

	doc, _, err := h.invoiceService.Build(c.Request.Context(), middleware.SessionFromContext(c), id, name)
	if err != nil {
		respondError(c, err, "Failed to build invoice")
		return
	}
	c.JSON(http.StatusOK, doc)
}

// Publish handles POST /v1/invoices/:id/publish. With a task client the render runs
// in the background worker and the response is 202.
func (h *InvoiceHandler) Publish(c *gin.Context) {
	id, name, ok := bindInvoiceRequest(c)
	if !ok {
		return
	}
	session := middleware.SessionFromContext(c)

	if h.taskClient == nil {
		rec, err := h.invoiceService.Publish(c.Request.Context(), session, id, name)
		if err != nil {
			respondError(c, err, "Failed to publish invoice")
			return
		}
		c.JSON(http.StatusCreated, rec)
		return
	}

	info, err := tasks.EnqueueInvoiceRender(c.Request.Context(), h.taskClient, session, id, name)
	if err != nil {
		respondError(c, err, "Failed to schedule invoice publication")
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"task_id": info.ID, "queue": info.Queue})
}

// GetRenders handles GET /v1/invoices/:id/renders and lists earlier publications.
func (h *InvoiceHandler) GetRenders(c *gin.Context) {
	id, _, ok := bindInvoiceRequest(c)
	if !ok {
		return
	}
	records, err := h.invoiceService.Renders(c.Request.Context(), middleware.SessionFromContext(c), id)
	if err != nil {
		respondError(c, err, "Failed to list published documents")
		return
	}
	c.JSON(http.StatusOK, gin.H{"invoice_id": id, "renders": records})
}

package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"billflow/desk/internal/api/middleware"
	"billflow/desk/internal/services"
	"billflow/desk/internal/uploadqueue"
)

// maxMultipartMemory caps what the form parser buffers in memory; larger parts spill to disk.
const maxMultipartMemory = 32 << 20

// UploadHandler accepts files and pushes them to the backend through the upload queue.
type UploadHandler struct {
	uploadService services.IUploadService
}

// NewUploadHandler creates a new UploadHandler.
func NewUploadHandler(uploadService services.IUploadService) *UploadHandler {
	return &UploadHandler{uploadService: uploadService}
}

// Upload handles POST /v1/uploads with one or more "files" parts.
func (h *UploadHandler) Upload(c *gin.Context) {
	if err := c.Request.ParseMultipartForm(maxMultipartMemory); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Expected a multipart form"})
		return
	}
	headers := c.Request.MultipartForm.File["files"]
	if len(headers) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "No files provided"})
		return
	}

	files := make([]uploadqueue.File, 0, len(headers))
	for _, fh := range headers {
		files = append(files, uploadqueue.FormFile(fh))
	}

	report, err := h.uploadService.UploadFiles(c.Request.Context(), middleware.SessionFromContext(c), files)
	if err != nil {
		respondError(c, err, "Upload failed")
		return
	}
	c.JSON(http.StatusOK, report)
}

// AllowedTypes handles GET /v1/uploads/allowed.
func (h *UploadHandler) AllowedTypes(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"extensions": uploadqueue.AllowedExtensions()})
}

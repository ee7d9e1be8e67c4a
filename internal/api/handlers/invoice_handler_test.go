package handlers_test

import (
	"encoding/json"
	"errors"
	"mime"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"billflow/desk/internal/api/handlers"
	"billflow/desk/internal/api/middleware"
	"billflow/desk/internal/backend"
	"billflow/desk/internal/document"
	"billflow/desk/internal/models"
	"billflow/desk/internal/services"
	"billflow/desk/internal/tasks"
)

var testSession = &backend.Session{Token: "tok", UserID: 3}

// fakeAuth stands in for AuthMiddleware.
func fakeAuth(c *gin.Context) {
	c.Set(middleware.ContextKeyUserID, testSession.UserID)
	c.Set(middleware.ContextKeyToken, testSession.Token)
	c.Next()
}

func setupInvoiceEngine(svc services.IInvoiceService, taskClient handlers.IAsynqClient) *gin.Engine {
	gin.SetMode(gin.TestMode)
	h := handlers.NewInvoiceHandler(svc, taskClient)
	r := gin.New()
	r.Use(fakeAuth)
	r.GET("/v1/invoices/:id/pdf", h.GetPDF)
	r.GET("/v1/invoices/:id/document", h.GetDocument)
	r.POST("/v1/invoices/:id/publish", h.Publish)
	r.GET("/v1/invoices/:id/renders", h.GetRenders)
	return r
}

func serve(r *gin.Engine, method, url string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	req, _ := http.NewRequest(method, url, nil)
	r.ServeHTTP(w, req)
	return w
}

func TestInvoiceHandler_GetPDF_Success(t *testing.T) {
	svc := new(MockInvoiceService)
	rendered := &services.RenderedInvoice{
		Document: &document.Document{Filename: "BillFlow_Invoice_2024-05_Alice Ltd.pdf"},
		PDF:      []byte("%PDF-1.3 test"),
	}
	svc.On("Render", mock.Anything, testSession, 7, "Alice Ltd").Return(rendered, nil)

	w := serve(setupInvoiceEngine(svc, nil), "GET", "/v1/invoices/7/pdf?name=Alice+Ltd")

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "application/pdf", w.Header().Get("Content-Type"))
	assert.Equal(t, `attachment; filename="BillFlow_Invoice_2024-05_Alice Ltd.pdf"`, w.Header().Get("Content-Disposition"))
	assert.Equal(t, "%PDF-1.3 test", w.Body.String())
	svc.AssertExpectations(t)
}

func TestInvoiceHandler_GetPDF_NonASCIIFilename(t *testing.T) {
	svc := new(MockInvoiceService)
	rendered := &services.RenderedInvoice{
		Document: &document.Document{Filename: `BillFlow_Invoice_2024-05_Zoë "Café".pdf`},
		PDF:      []byte("%PDF-1.3 test"),
	}
	svc.On("Render", mock.Anything, testSession, 7, "Zoë").Return(rendered, nil)

	w := serve(setupInvoiceEngine(svc, nil), "GET", "/v1/invoices/7/pdf?name=Zo%C3%AB")

	require.Equal(t, http.StatusOK, w.Code)
	header := w.Header().Get("Content-Disposition")
	assert.NotContains(t, header, `\u`)
	disposition, params, err := mime.ParseMediaType(header)
	require.NoError(t, err)
	assert.Equal(t, "attachment", disposition)
	assert.Equal(t, `BillFlow_Invoice_2024-05_Zoë "Café".pdf`, params["filename"])
}

func TestInvoiceHandler_GetPDF_BadID(t *testing.T) {
	svc := new(MockInvoiceService)
	r := setupInvoiceEngine(svc, nil)

	assert.Equal(t, http.StatusBadRequest, serve(r, "GET", "/v1/invoices/abc/pdf").Code)
	assert.Equal(t, http.StatusBadRequest, serve(r, "GET", "/v1/invoices/0/pdf").Code)
	svc.AssertNotCalled(t, "Render", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestInvoiceHandler_GetPDF_ErrorMapping(t *testing.T) {
	cases := []struct {
		name string
		err  error
		code int
	}{
		{"not found", &backend.APIError{StatusCode: 404, Message: "Invoice not found", Hint: "Generate it first"}, http.StatusNotFound},
		{"expired", &backend.APIError{StatusCode: 401, Message: "Token has expired"}, http.StatusUnauthorized},
		{"malformed", models.ErrMalformedInvoice, http.StatusUnprocessableEntity},
		{"backend down", &backend.APIError{StatusCode: 500, Message: "boom"}, http.StatusBadGateway},
		{"other", errors.New("renderer crashed"), http.StatusInternalServerError},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			svc := new(MockInvoiceService)
			svc.On("Render", mock.Anything, mock.Anything, 7, "").Return(nil, tc.err)

			w := serve(setupInvoiceEngine(svc, nil), "GET", "/v1/invoices/7/pdf")
			assert.Equal(t, tc.code, w.Code)
		})
	}
}

func TestInvoiceHandler_NotFoundCarriesHint(t *testing.T) {
	svc := new(MockInvoiceService)
	svc.On("Render", mock.Anything, mock.Anything, 7, "").
		Return(nil, &backend.APIError{StatusCode: 404, Message: "Invoice not found", Hint: "Generate it first"})

	w := serve(setupInvoiceEngine(svc, nil), "GET", "/v1/invoices/7/pdf")

	var body map[string]string
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "Generate it first", body["hint"])
}

func TestInvoiceHandler_GetDocument(t *testing.T) {
	svc := new(MockInvoiceService)
	doc := &document.Document{Title: "Invoice INV-0007", Unit: "mm", PageWidth: 210, PageHeight: 297}
	svc.On("Build", mock.Anything, testSession, 7, "").Return(doc, nil)

	w := serve(setupInvoiceEngine(svc, nil), "GET", "/v1/invoices/7/document")

	assert.Equal(t, http.StatusOK, w.Code)
	var got document.Document
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
	assert.Equal(t, "Invoice INV-0007", got.Title)
	assert.Equal(t, 210.0, got.PageWidth)
}

func TestInvoiceHandler_Publish_Inline(t *testing.T) {
	svc := new(MockInvoiceService)
	svc.On("Publish", mock.Anything, testSession, 7, "").
		Return(&models.RenderRecord{Reference: "DOC-00000001", InvoiceID: 7}, nil)

	w := serve(setupInvoiceEngine(svc, nil), "POST", "/v1/invoices/7/publish")

	assert.Equal(t, http.StatusCreated, w.Code)
	assert.Contains(t, w.Body.String(), "DOC-00000001")
}

func TestInvoiceHandler_Publish_Enqueued(t *testing.T) {
	svc := new(MockInvoiceService)
	taskClient := new(MockAsynqClient)
	taskClient.On("EnqueueContext", mock.Anything, mock.MatchedBy(func(task *asynq.Task) bool {
		var p tasks.InvoiceRenderPayload
		return task.Type() == tasks.TypeInvoiceRender &&
			json.Unmarshal(task.Payload(), &p) == nil &&
			p.InvoiceID == 7 && p.Token == "tok" && p.UserID == 3 && p.DisplayName == "Alice"
	})).Return(&asynq.TaskInfo{ID: "task-1", Queue: "default"}, nil)

	w := serve(setupInvoiceEngine(svc, taskClient), "POST", "/v1/invoices/7/publish?name=Alice")

	assert.Equal(t, http.StatusAccepted, w.Code)
	assert.JSONEq(t, `{"task_id": "task-1", "queue": "default"}`, w.Body.String())
	svc.AssertNotCalled(t, "Publish", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	taskClient.AssertExpectations(t)
}

func TestInvoiceHandler_GetRenders(t *testing.T) {
	svc := new(MockInvoiceService)
	svc.On("Renders", mock.Anything, testSession, 7).Return([]models.RenderRecord{
		{Reference: "DOC-00000002", InvoiceID: 7, Locations: []string{"/out/u3/7/b/x.pdf"}},
		{Reference: "DOC-00000001", InvoiceID: 7, Locations: []string{"/out/u3/7/a/x.pdf"}},
	}, nil)

	w := serve(setupInvoiceEngine(svc, nil), "GET", "/v1/invoices/7/renders")

	require.Equal(t, http.StatusOK, w.Code)
	var body struct {
		InvoiceID int                   `json:"invoice_id"`
		Renders   []models.RenderRecord `json:"renders"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, 7, body.InvoiceID)
	require.Len(t, body.Renders, 2)
	assert.Equal(t, "DOC-00000002", body.Renders[0].Reference)
	svc.AssertExpectations(t)
}

func TestInvoiceHandler_GetRenders_NoLedger(t *testing.T) {
	svc := new(MockInvoiceService)
	svc.On("Renders", mock.Anything, testSession, 7).Return(nil, services.ErrNoRenderLedger)

	w := serve(setupInvoiceEngine(svc, nil), "GET", "/v1/invoices/7/renders")

	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

package handlers_test

import (
	"context"

	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/mock"

	"billflow/desk/internal/backend"
	"billflow/desk/internal/document"
	"billflow/desk/internal/models"
	"billflow/desk/internal/services"
	"billflow/desk/internal/uploadqueue"
)

// --- Mocks ---

// MockInvoiceService
type MockInvoiceService struct {
	mock.Mock
}

func (m *MockInvoiceService) Build(ctx context.Context, session *backend.Session, invoiceID int, displayName string) (*document.Document, *models.InvoiceEnvelope, error) {
	args := m.Called(ctx, session, invoiceID, displayName)
	var doc *document.Document
	if d := args.Get(0); d != nil {
		doc = d.(*document.Document)
	}
	return doc, nil, args.Error(1)
}

func (m *MockInvoiceService) Render(ctx context.Context, session *backend.Session, invoiceID int, displayName string) (*services.RenderedInvoice, error) {
	args := m.Called(ctx, session, invoiceID, displayName)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*services.RenderedInvoice), args.Error(1)
}

func (m *MockInvoiceService) Publish(ctx context.Context, session *backend.Session, invoiceID int, displayName string) (*models.RenderRecord, error) {
	args := m.Called(ctx, session, invoiceID, displayName)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.RenderRecord), args.Error(1)
}

func (m *MockInvoiceService) Renders(ctx context.Context, session *backend.Session, invoiceID int) ([]models.RenderRecord, error) {
	args := m.Called(ctx, session, invoiceID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.RenderRecord), args.Error(1)
}

// MockUploadService
type MockUploadService struct {
	mock.Mock
}

func (m *MockUploadService) UploadFiles(ctx context.Context, session *backend.Session, files []uploadqueue.File) (*services.UploadReport, error) {
	names := make([]string, 0, len(files))
	for _, f := range files {
		names = append(names, f.Name())
	}
	args := m.Called(ctx, session, names)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*services.UploadReport), args.Error(1)
}

func (m *MockUploadService) UploadPaths(ctx context.Context, session *backend.Session, paths []string) (*services.UploadReport, error) {
	args := m.Called(ctx, session, paths)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*services.UploadReport), args.Error(1)
}

// MockAsynqClient
type MockAsynqClient struct {
	mock.Mock
}

func (m *MockAsynqClient) EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error) {
	args := m.Called(ctx, task)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*asynq.TaskInfo), args.Error(1)
}

package services

import (
	"context"

	"github.com/stretchr/testify/mock"

	"billflow/desk/internal/backend"
	"billflow/desk/internal/events"
	"billflow/desk/internal/models"
	"billflow/desk/internal/uploadqueue"
)

// MockClient implements backend.IClient. WithToken records the token and returns the same mock.
type MockClient struct {
	mock.Mock
	tokens []string
}

func (m *MockClient) Login(ctx context.Context, username, password string) (*backend.Session, error) {
	args := m.Called(ctx, username, password)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*backend.Session), args.Error(1)
}

func (m *MockClient) WithToken(token string) backend.IClient {
	m.tokens = append(m.tokens, token)
	return m
}

func (m *MockClient) Upload(ctx context.Context, file uploadqueue.File) error {
	args := m.Called(ctx, file.Name())
	return args.Error(0)
}

func (m *MockClient) GetInvoice(ctx context.Context, id int) (*models.InvoiceEnvelope, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.InvoiceEnvelope), args.Error(1)
}

func (m *MockClient) ListInvoices(ctx context.Context) (*models.InvoiceList, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.InvoiceList), args.Error(1)
}

type MockInvoiceCache struct {
	mock.Mock
}

func (m *MockInvoiceCache) Get(ctx context.Context, userKey string, invoiceID int) (*models.InvoiceEnvelope, bool) {
	args := m.Called(ctx, userKey, invoiceID)
	if args.Get(0) == nil {
		return nil, args.Bool(1)
	}
	return args.Get(0).(*models.InvoiceEnvelope), args.Bool(1)
}

func (m *MockInvoiceCache) Set(ctx context.Context, userKey string, env *models.InvoiceEnvelope) error {
	return m.Called(ctx, userKey, env).Error(0)
}

func (m *MockInvoiceCache) Invalidate(ctx context.Context, userKey string, invoiceID int) error {
	return m.Called(ctx, userKey, invoiceID).Error(0)
}

type MockSink struct {
	mock.Mock
}

func (m *MockSink) Save(ctx context.Context, key, contentType string, data []byte) (string, error) {
	args := m.Called(ctx, key, contentType, data)
	return args.String(0), args.Error(1)
}

type MockLedger struct {
	mock.Mock
}

func (m *MockLedger) Record(ctx context.Context, rec *models.RenderRecord) error {
	args := m.Called(ctx, rec)
	if args.Error(0) == nil {
		rec.Reference = "DOC-TESTREF1"
	}
	return args.Error(0)
}

func (m *MockLedger) ListByInvoice(ctx context.Context, userID string, invoiceID int) ([]models.RenderRecord, error) {
	args := m.Called(ctx, userID, invoiceID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.RenderRecord), args.Error(1)
}

type MockPublisher struct {
	mock.Mock
}

func (m *MockPublisher) Publish(ctx context.Context, evts ...*events.Event) error {
	return m.Called(ctx, evts).Error(0)
}

func (m *MockPublisher) Close() error {
	return m.Called().Error(0)
}

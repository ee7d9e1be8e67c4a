// Package backend talks to the BillFlow REST API: login, object upload and invoice reads.
package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"billflow/desk/internal/models"
	"billflow/desk/internal/uploadqueue"
)

var (
	ErrUnauthorized    = errors.New("backend rejected credentials")
	ErrInvoiceNotFound = errors.New("invoice not found")
)

// APIError is a non-2xx backend response. Message is the body's "error" field, verbatim.
type APIError struct {
	StatusCode int
	Message    string
	Hint       string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("backend returned status %d", e.StatusCode)
	}
	return fmt.Sprintf("backend returned status %d: %s", e.StatusCode, e.Message)
}

// UserMessage is surfaced on failed upload items.
func (e *APIError) UserMessage() string {
	return e.Message
}

func (e *APIError) Is(target error) bool {
	switch target {
	case ErrUnauthorized:
		return e.StatusCode == http.StatusUnauthorized
	case ErrInvoiceNotFound:
		return e.StatusCode == http.StatusNotFound
	}
	return false
}

// Session is the result of a successful login.
type Session struct {
	Token    string `json:"token"`
	Username string `json:"username"`
	UserID   int    `json:"user_id"`
}

// IClient is the subset of the backend used by services and the upload queue.
type IClient interface {
	Login(ctx context.Context, username, password string) (*Session, error)
	WithToken(token string) IClient
	Upload(ctx context.Context, file uploadqueue.File) error
	GetInvoice(ctx context.Context, id int) (*models.InvoiceEnvelope, error)
	ListInvoices(ctx context.Context) (*models.InvoiceList, error)
}

type client struct {
	baseURL    string
	httpClient *http.Client
	token      string
}

// NewClient creates a client for the backend at baseURL.
func NewClient(baseURL string, timeout time.Duration) IClient {
	return &client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
	}
}

// WithToken returns a copy that sends token as a bearer credential.
func (c *client) WithToken(token string) IClient {
	cp := *c
	cp.token = token
	return &cp
}

func (c *client) Login(ctx context.Context, username, password string) (*Session, error) {
	body, err := json.Marshal(map[string]string{"username": username, "password": password})
	if err != nil {
		return nil, fmt.Errorf("failed to encode login request: %w", err)
	}
	req, err := c.newRequest(ctx, http.MethodPost, "/api/login", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	var session Session
	if err := c.do(req, &session); err != nil {
		return nil, err
	}
	if session.Token == "" {
		return nil, fmt.Errorf("login response carried no token")
	}
	return &session, nil
}

// Upload sends one file as the multipart field "file".
func (c *client) Upload(ctx context.Context, file uploadqueue.File) error {
	rc, err := file.Open()
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", file.Name(), err)
	}
	defer rc.Close()

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("file", file.Name())
	if err != nil {
		return fmt.Errorf("failed to create form part: %w", err)
	}
	if _, err := io.Copy(part, rc); err != nil {
		return fmt.Errorf("failed to read %s: %w", file.Name(), err)
	}
	if err := mw.Close(); err != nil {
		return fmt.Errorf("failed to finish multipart body: %w", err)
	}

	req, err := c.newRequest(ctx, http.MethodPost, "/api/objects/upload", &buf)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return c.do(req, nil)
}

func (c *client) GetInvoice(ctx context.Context, id int) (*models.InvoiceEnvelope, error) {
	req, err := c.newRequest(ctx, http.MethodGet, fmt.Sprintf("/api/billing/invoices/%d", id), nil)
	if err != nil {
		return nil, err
	}
	var env models.InvoiceEnvelope
	if err := c.do(req, &env); err != nil {
		return nil, err
	}
	if env.Invoice == nil {
		return nil, fmt.Errorf("%w: response for invoice %d has no invoice body", models.ErrMalformedInvoice, id)
	}
	return &env, nil
}

func (c *client) ListInvoices(ctx context.Context) (*models.InvoiceList, error) {
	req, err := c.newRequest(ctx, http.MethodGet, "/api/billing/invoices", nil)
	if err != nil {
		return nil, err
	}
	var list models.InvoiceList
	if err := c.do(req, &list); err != nil {
		return nil, err
	}
	return &list, nil
}

func (c *client) newRequest(ctx context.Context, method, path string, body io.Reader) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, fmt.Errorf("failed to create request %s %s: %w", method, path, err)
	}
	req.Header.Set("Accept", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	return req, nil
}

// do executes req and decodes a 2xx JSON body into out when out is non-nil.
func (c *client) do(req *http.Request, out interface{}) error {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to contact backend: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read backend response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		apiErr := &APIError{StatusCode: resp.StatusCode}
		var payload struct {
			Error string `json:"error"`
			Hint  string `json:"hint"`
		}
		if json.Unmarshal(body, &payload) == nil {
			apiErr.Message = payload.Error
			apiErr.Hint = payload.Hint
		}
		log.Printf("Backend %s %s returned %d: %s", req.Method, req.URL.Path, resp.StatusCode, apiErr.Message)
		return apiErr
	}

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("failed to decode backend response for %s: %w", req.URL.Path, err)
	}
	return nil
}

package services

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"log"
	"strconv"
	"strings"
	"time"

	"billflow/desk/internal/backend"
	"billflow/desk/internal/cache"
	"billflow/desk/internal/db"
	"billflow/desk/internal/document"
	"billflow/desk/internal/events"
	"billflow/desk/internal/models"
	"billflow/desk/internal/storage"
	"billflow/desk/internal/utils"
)

const pdfContentType = "application/pdf"

// ErrNoRenderLedger is returned by Renders when no ledger is configured.
var ErrNoRenderLedger = errors.New("render history is not available")

// RenderedInvoice is a built and rendered invoice document.
type RenderedInvoice struct {
	Envelope *models.InvoiceEnvelope
	Document *document.Document
	PDF      []byte
}

// Filename is the suggested download name.
func (r *RenderedInvoice) Filename() string {
	return r.Document.Filename
}

// IInvoiceService turns backend invoices into documents.
type IInvoiceService interface {
	Build(ctx context.Context, session *backend.Session, invoiceID int, displayName string) (*document.Document, *models.InvoiceEnvelope, error)
	Render(ctx context.Context, session *backend.Session, invoiceID int, displayName string) (*RenderedInvoice, error)
	Publish(ctx context.Context, session *backend.Session, invoiceID int, displayName string) (*models.RenderRecord, error)
	Renders(ctx context.Context, session *backend.Session, invoiceID int) ([]models.RenderRecord, error)
}

// invoiceService implements IInvoiceService.
type invoiceService struct {
	client    backend.IClient
	cache     cache.IInvoiceCache
	builder   *document.Builder
	renderer  *document.PDFRenderer
	sink      storage.Sink
	ledger    db.IRenderLedger
	publisher events.Publisher
}

// NewInvoiceService wires the invoice pipeline. sink, ledger and publisher may be nil
// for processes that only render.
func NewInvoiceService(
	client backend.IClient,
	invoiceCache cache.IInvoiceCache,
	builder *document.Builder,
	renderer *document.PDFRenderer,
	sink storage.Sink,
	ledger db.IRenderLedger,
	publisher events.Publisher,
) IInvoiceService {
	if invoiceCache == nil {
		invoiceCache = cache.NewInvoiceCache(nil, 0)
	}
	return &invoiceService{
		client:    client,
		cache:     invoiceCache,
		builder:   builder,
		renderer:  renderer,
		sink:      sink,
		ledger:    ledger,
		publisher: publisher,
	}
}

func userKey(session *backend.Session) string {
	return strconv.Itoa(session.UserID)
}

func (s *invoiceService) fetch(ctx context.Context, session *backend.Session, invoiceID int) (*models.InvoiceEnvelope, error) {
	key := userKey(session)
	if env, ok := s.cache.Get(ctx, key, invoiceID); ok && env.Invoice.Final() {
		return env, nil
	}
	env, err := s.client.WithToken(session.Token).GetInvoice(ctx, invoiceID)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch invoice %d: %w", invoiceID, err)
	}
	// Unpaid invoices can still change status, so only paid ones are cached.
	if env.Invoice != nil && env.Invoice.Final() {
		if err := s.cache.Set(ctx, key, env); err != nil {
			log.Printf("Warning: could not cache invoice %d: %v", invoiceID, err)
		}
	}
	return env, nil
}

// Build fetches the invoice and lays it out. An empty displayName falls back to the
// backend username.
func (s *invoiceService) Build(ctx context.Context, session *backend.Session, invoiceID int, displayName string) (*document.Document, *models.InvoiceEnvelope, error) {
	if session == nil || session.Token == "" {
		return nil, nil, fmt.Errorf("build invoice %d: %w", invoiceID, backend.ErrUnauthorized)
	}
	env, err := s.fetch(ctx, session, invoiceID)
	if err != nil {
		return nil, nil, err
	}

	name := strings.TrimSpace(displayName)
	if name == "" {
		name = env.Username
	}
	if name == "" {
		name = session.Username
	}

	doc, err := s.builder.Build(env.Invoice, name)
	if err != nil {
		if errors.Is(err, models.ErrMalformedInvoice) {
			// Never serve a stale malformed copy twice.
			_ = s.cache.Invalidate(ctx, userKey(session), invoiceID)
		}
		return nil, nil, fmt.Errorf("failed to build invoice %d: %w", invoiceID, err)
	}
	return doc, env, nil
}

func (s *invoiceService) Render(ctx context.Context, session *backend.Session, invoiceID int, displayName string) (*RenderedInvoice, error) {
	doc, env, err := s.Build(ctx, session, invoiceID, displayName)
	if err != nil {
		return nil, err
	}
	pdf, err := s.renderer.Render(doc)
	if err != nil {
		return nil, fmt.Errorf("failed to render invoice %d: %w", invoiceID, err)
	}
	return &RenderedInvoice{Envelope: env, Document: doc, PDF: pdf}, nil
}

// Publish renders the invoice, stores it in every configured sink and records it.
// A sink failure is tolerated as long as at least one sink stored the document.
func (s *invoiceService) Publish(ctx context.Context, session *backend.Session, invoiceID int, displayName string) (*models.RenderRecord, error) {
	if s.sink == nil {
		return nil, fmt.Errorf("no document sink configured")
	}
	rendered, err := s.Render(ctx, session, invoiceID, displayName)
	if err != nil {
		return nil, err
	}

	sum := sha256.Sum256(rendered.PDF)
	digest := hex.EncodeToString(sum[:])
	owner := userKey(session)
	key := storage.DocumentKey(owner, invoiceID, digest, rendered.Filename())

	locations, err := saveAll(ctx, s.sink, key, rendered.PDF)
	if err != nil {
		if len(locations) == 0 {
			return nil, fmt.Errorf("failed to store invoice %d: %w", invoiceID, err)
		}
		log.Printf("Warning: invoice %d stored in %d sink(s) only: %v", invoiceID, len(locations), err)
	}

	rec := &models.RenderRecord{
		InvoiceID: invoiceID,
		UserID:    owner,
		Month:     rendered.Envelope.Invoice.Month,
		Filename:  rendered.Filename(),
		SHA256:    digest,
		Size:      int64(len(rendered.PDF)),
		Locations: locations,
		CreatedAt: time.Now().UTC(),
	}
	if s.ledger != nil {
		if err := s.ledger.Record(ctx, rec); err != nil {
			return nil, err
		}
	} else {
		rec.Reference = utils.NewDocRef().String()
	}

	if s.publisher != nil {
		evt := events.NewEvent(events.InvoiceRendered, rec.UserID, map[string]interface{}{
			"reference":  rec.Reference,
			"invoice_id": rec.InvoiceID,
			"month":      rec.Month,
			"filename":   rec.Filename,
			"sha256":     rec.SHA256,
			"locations":  rec.Locations,
		})
		if err := s.publisher.Publish(ctx, evt); err != nil {
			log.Printf("Warning: failed to publish %s for invoice %d: %v", events.InvoiceRendered, invoiceID, err)
		}
	}
	return rec, nil
}

// Renders lists the session user's published documents for one invoice, newest first.
func (s *invoiceService) Renders(ctx context.Context, session *backend.Session, invoiceID int) ([]models.RenderRecord, error) {
	if session == nil || session.Token == "" {
		return nil, fmt.Errorf("list renders of invoice %d: %w", invoiceID, backend.ErrUnauthorized)
	}
	if s.ledger == nil {
		return nil, ErrNoRenderLedger
	}
	records, err := s.ledger.ListByInvoice(ctx, userKey(session), invoiceID)
	if err != nil {
		return nil, err
	}
	if records == nil {
		records = []models.RenderRecord{}
	}
	return records, nil
}

// saveAll keeps per-sink locations apart when the sink is a fan-out.
func saveAll(ctx context.Context, sink storage.Sink, key string, data []byte) ([]string, error) {
	if multi, ok := sink.(interface {
		SaveAll(ctx context.Context, key, contentType string, data []byte) ([]string, error)
	}); ok {
		return multi.SaveAll(ctx, key, pdfContentType, data)
	}
	loc, err := sink.Save(ctx, key, pdfContentType, data)
	if err != nil {
		return nil, err
	}
	return []string{loc}, nil
}

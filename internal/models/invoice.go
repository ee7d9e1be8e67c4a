package models

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
)

// ErrMalformedInvoice is returned when an invoice record lacks fields required for rendering.
var ErrMalformedInvoice = errors.New("malformed invoice record")

// InvoiceStatus is the lifecycle state reported by the backend.
type InvoiceStatus string

const (
	InvoiceStatusGenerated InvoiceStatus = "generated"
	InvoiceStatusPaid      InvoiceStatus = "paid"
)

// InvoiceUsage holds the usage figures that were billed.
// Values keep whatever precision the backend sent.
type InvoiceUsage struct {
	AvgStorageBytes *int64   `json:"avg_storage_bytes,omitempty"`
	AvgStorageMB    *float64 `json:"avg_storage_mb" validate:"required"`
	AvgStorageGB    *float64 `json:"avg_storage_gb" validate:"required"`
	PeakStorageGB   *float64 `json:"peak_storage_gb,omitempty"` // Older backends omit it
	TotalAPICalls   *int64   `json:"total_api_calls" validate:"required"`
	DaysActive      *int     `json:"days_active" validate:"required"`
}

// InvoiceRates are the prices in effect when the invoice was generated.
type InvoiceRates struct {
	StoragePerGBDay *decimal.Decimal `json:"storage_per_gb_day" validate:"required"`
	APIPerCall      *decimal.Decimal `json:"api_per_call" validate:"required"`
}

// InvoiceCosts are computed by the backend, free tier already netted out of TotalAmount.
type InvoiceCosts struct {
	StorageCost *decimal.Decimal `json:"storage_cost" validate:"required"`
	APICost     *decimal.Decimal `json:"api_cost" validate:"required"`
	TotalAmount *decimal.Decimal `json:"total_amount" validate:"required"`
}

// InvoiceRecord is a monthly invoice as served by GET /api/billing/invoices/{id}.
type InvoiceRecord struct {
	ID          int           `json:"id" validate:"required,gt=0"`
	Month       string        `json:"month" validate:"required"` // "2026-02"
	Year        int           `json:"year,omitempty"`
	MonthNumber int           `json:"month_number,omitempty"`
	Status      InvoiceStatus `json:"status" validate:"required"`
	GeneratedAt *Timestamp    `json:"generated_at" validate:"required"`
	Usage       *InvoiceUsage `json:"usage" validate:"required"`
	Rates       *InvoiceRates `json:"rates" validate:"required"`
	Costs       *InvoiceCosts `json:"costs" validate:"required"`
}

// InvoiceEnvelope is the single-invoice response body.
type InvoiceEnvelope struct {
	Username string         `json:"username"`
	Invoice  *InvoiceRecord `json:"invoice"`
}

// InvoiceList is the invoice listing response body, newest first.
type InvoiceList struct {
	Username      string          `json:"username"`
	TotalInvoices int             `json:"total_invoices"`
	TotalSpent    decimal.Decimal `json:"total_spent"`
	Invoices      []InvoiceRecord `json:"invoices"`
}

var invoiceValidator = newInvoiceValidator()

func newInvoiceValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	// Report JSON names so errors line up with the backend payload.
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// Validate checks that every field the invoice document depends on is present.
// The returned error wraps ErrMalformedInvoice.
func (r *InvoiceRecord) Validate() error {
	if r == nil {
		return fmt.Errorf("%w: nil record", ErrMalformedInvoice)
	}
	if err := invoiceValidator.Struct(r); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			fields := make([]string, 0, len(verrs))
			for _, fe := range verrs {
				fields = append(fields, strings.TrimPrefix(fe.Namespace(), "InvoiceRecord."))
			}
			return fmt.Errorf("%w: missing or invalid %s", ErrMalformedInvoice, strings.Join(fields, ", "))
		}
		return fmt.Errorf("%w: %v", ErrMalformedInvoice, err)
	}
	return nil
}

// Final reports whether the backend can still change the invoice. Only paid is final.
func (r *InvoiceRecord) Final() bool {
	return r.Status == InvoiceStatusPaid
}

// Number returns the zero-padded display number, e.g. INV-0042.
func (r *InvoiceRecord) Number() string {
	return fmt.Sprintf("INV-%04d", r.ID)
}

// Timestamp accepts both RFC 3339 and the naive ISO-8601 form the backend emits
// (datetime.isoformat() without an offset, which is UTC).
type Timestamp struct {
	time.Time
}

var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02",
}

// NewTimestamp wraps t.
func NewTimestamp(t time.Time) *Timestamp {
	return &Timestamp{Time: t}
}

func (t *Timestamp) UnmarshalJSON(data []byte) error {
	raw := strings.Trim(string(data), `"`)
	for _, layout := range timestampLayouts {
		if parsed, err := time.Parse(layout, raw); err == nil {
			t.Time = parsed
			return nil
		}
	}
	return fmt.Errorf("unrecognised timestamp %q", raw)
}

func (t Timestamp) MarshalJSON() ([]byte, error) {
	return []byte(`"` + t.Time.Format(time.RFC3339Nano) + `"`), nil
}

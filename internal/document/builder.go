package document

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"billflow/desk/internal/models"
)

// ErrMissingDisplayName is returned when Build is called without a name for the Bill To block.
var ErrMissingDisplayName = errors.New("display name is required")

// A4 portrait in millimetres.
const (
	pageWidth  = 210.0
	pageHeight = 297.0
	marginLeft = 14.0
	rightEdge  = 196.0
)

var (
	colorBlue    = Color{26, 86, 219}
	colorGray    = Color{100, 116, 139}
	colorDark    = Color{30, 41, 59}
	colorWhite   = Color{255, 255, 255}
	colorRule    = Color{226, 232, 240}
	colorHeading = Color{241, 245, 249}
	colorRowTint = Color{250, 252, 255}
)

const fontFamily = "Helvetica"

func font(style string, size float64) Font {
	return Font{Family: fontFamily, Style: style, Size: size}
}

const (
	freeTierDetail = "1 GB storage + 1000 API calls per month"
	freeTierNote   = "Free tier applied: 1 GB storage and 1,000 API calls per month are complimentary."
)

// Options configure the branding and clock of a Builder.
type Options struct {
	ProductName    string
	Tagline        string
	ProviderLine   string
	CurrencyPrefix string
	Location       *time.Location
	Now            func() time.Time
}

// Builder lays out invoice documents. It holds no per-call state and is safe for concurrent use.
type Builder struct {
	opts Options
}

// NewBuilder fills unset options with the BillFlow defaults.
func NewBuilder(opts Options) *Builder {
	if opts.ProductName == "" {
		opts.ProductName = "BillFlow"
	}
	if opts.Tagline == "" {
		opts.Tagline = "Cloud Storage Billing Engine"
	}
	if opts.ProviderLine == "" {
		opts.ProviderLine = opts.ProductName + " Cloud Storage"
	}
	if opts.Location == nil {
		opts.Location = time.UTC
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Builder{opts: opts}
}

// Filename returns the download name for inv addressed to displayName.
func (b *Builder) Filename(inv *models.InvoiceRecord, displayName string) string {
	return Filename(b.opts.ProductName, inv.Month, displayName)
}

// Build validates inv and lays it out on one page. A malformed record yields an error
// wrapping models.ErrMalformedInvoice and no document.
func (b *Builder) Build(inv *models.InvoiceRecord, displayName string) (*Document, error) {
	if err := inv.Validate(); err != nil {
		return nil, err
	}
	if strings.TrimSpace(displayName) == "" {
		return nil, ErrMissingDisplayName
	}

	issued := b.opts.Now().In(b.opts.Location)
	doc := &Document{
		Title:      fmt.Sprintf("%s Invoice %s", b.opts.ProductName, inv.Number()),
		Filename:   b.Filename(inv, displayName),
		Unit:       "mm",
		PageWidth:  pageWidth,
		PageHeight: pageHeight,
		IssuedAt:   issued,
		SourceDate: inv.GeneratedAt.UTC(),
	}

	doc.Sections = []Section{
		b.header(inv),
		b.parties(displayName),
		b.metadata(inv),
		{Name: SectionDivider, Instructions: []Instruction{
			line(marginLeft, 78, rightEdge, 78, 0.5, colorRule),
		}},
		b.usage(inv),
		b.lineItems(inv),
		b.total(inv),
		{Name: SectionFreeTierNote, Instructions: []Instruction{
			text(marginLeft, 237, freeTierNote, font(StyleItalic, 8), colorGray, AlignLeft),
		}},
		b.footer(issued),
	}
	return doc, nil
}

func (b *Builder) header(inv *models.InvoiceRecord) Section {
	return Section{Name: SectionHeader, Instructions: []Instruction{
		rect(0, 0, pageWidth, 38, 0, colorBlue),
		text(marginLeft, 16, b.opts.ProductName, font(StyleBold, 22), colorWhite, AlignLeft),
		text(marginLeft, 24, b.opts.Tagline, font(StyleNormal, 10), colorWhite, AlignLeft),
		text(rightEdge, 16, "INVOICE", font(StyleNormal, 10), colorWhite, AlignRight),
		text(rightEdge, 24, "#"+inv.Number(), font(StyleNormal, 9), colorWhite, AlignRight),
	}}
}

func (b *Builder) parties(displayName string) Section {
	return Section{Name: SectionParties, Instructions: []Instruction{
		text(marginLeft, 52, "Bill To", font(StyleBold, 11), colorDark, AlignLeft),
		text(marginLeft, 60, displayName, font(StyleNormal, 10), colorGray, AlignLeft),
		text(marginLeft, 67, b.opts.ProviderLine, font(StyleNormal, 10), colorGray, AlignLeft),
	}}
}

func (b *Builder) metadata(inv *models.InvoiceRecord) Section {
	pairs := [][2]string{
		{"Invoice Date", inv.GeneratedAt.In(b.opts.Location).Format("2/1/2006")},
		{"Billing Period", inv.Month},
		{"Status", strings.ToUpper(string(inv.Status))},
	}
	s := Section{Name: SectionMetadata}
	for i, p := range pairs {
		y := 52 + float64(i)*9
		s.Instructions = append(s.Instructions,
			text(130, y, p[0], font(StyleBold, 9), colorGray, AlignLeft),
			text(rightEdge, y, p[1], font(StyleNormal, 9), colorGray, AlignRight),
		)
	}
	return s
}

func (b *Builder) usage(inv *models.InvoiceRecord) Section {
	u := inv.Usage
	peak := *u.AvgStorageGB
	if u.PeakStorageGB != nil {
		peak = *u.PeakStorageGB
	}
	rows := [][2]string{
		{"Average Storage", formatQuantity(*u.AvgStorageMB) + " MB / day"},
		{"Peak Storage", formatQuantity(peak) + " GB"},
		{"Total API Calls", fmt.Sprintf("%d requests", *u.TotalAPICalls)},
		{"Days Active", fmt.Sprintf("%d days", *u.DaysActive)},
	}
	s := Section{Name: SectionUsage, Instructions: []Instruction{
		text(marginLeft, 90, "Usage Summary", font(StyleBold, 11), colorDark, AlignLeft),
	}}
	for i, r := range rows {
		y := 100 + float64(i)*9
		s.Instructions = append(s.Instructions,
			text(marginLeft, y, r[0], font(StyleNormal, 9), colorGray, AlignLeft),
			text(100, y, r[1], font(StyleBold, 9), colorDark, AlignLeft),
		)
	}
	return s
}

type lineItem struct {
	desc, detail, rate, amount string
}

func (b *Builder) lineItems(inv *models.InvoiceRecord) Section {
	const tableTop = 145.0
	cur := b.opts.CurrencyPrefix
	u, r, c := inv.Usage, inv.Rates, inv.Costs

	items := []lineItem{
		{
			desc:   "Object Storage",
			detail: fmt.Sprintf("Avg %s GB/day × %s/GB/day", formatQuantity(*u.AvgStorageGB), r.StoragePerGBDay.String()),
			rate:   fmt.Sprintf("%s%s/GB/day", cur, r.StoragePerGBDay.String()),
			amount: FormatAmount(*c.StorageCost),
		},
		{
			desc:   "API Requests",
			detail: fmt.Sprintf("%d calls × %s%s/call", *u.TotalAPICalls, cur, r.APIPerCall.String()),
			rate:   fmt.Sprintf("%s%s/call", cur, r.APIPerCall.String()),
			amount: FormatAmount(*c.APICost),
		},
		{
			desc:   "Free Tier Discount",
			detail: freeTierDetail,
			rate:   "—",
			amount: "0.0000",
		},
	}

	amountHeading := "AMOUNT"
	if cur != "" {
		amountHeading = fmt.Sprintf("AMOUNT (%s)", cur)
	}
	s := Section{Name: SectionLineItems, Instructions: []Instruction{
		rect(marginLeft, tableTop-7, 182, 10, 2, colorHeading),
		text(20, tableTop, "DESCRIPTION", font(StyleBold, 8), colorGray, AlignLeft),
		text(110, tableTop, "RATE", font(StyleBold, 8), colorGray, AlignLeft),
		text(190, tableTop, amountHeading, font(StyleBold, 8), colorGray, AlignRight),
	}}

	for i, it := range items {
		y := tableTop + 15 + float64(i)*18
		row := &TableRow{Index: i, Cells: []TextRun{
			{X: 20, Y: y, Text: it.desc, Font: font(StyleBold, 9), Color: colorDark, Align: AlignLeft},
			{X: 20, Y: y + 6, Text: it.detail, Font: font(StyleNormal, 8), Color: colorGray, Align: AlignLeft},
			{X: 110, Y: y, Text: it.rate, Font: font(StyleNormal, 9), Color: colorGray, Align: AlignLeft},
			{X: 190, Y: y, Text: it.amount, Font: font(StyleBold, 9), Color: colorDark, Align: AlignRight},
		}}
		if i%2 == 0 {
			row.Band = &FilledRect{X: marginLeft, Y: y - 7, W: 182, H: 16, Fill: colorRowTint}
		}
		s.Instructions = append(s.Instructions, Instruction{Kind: KindTableRow, Row: row})
	}
	return s
}

func (b *Builder) total(inv *models.InvoiceRecord) Section {
	const totalY = 225.0
	return Section{Name: SectionTotal, Instructions: []Instruction{
		rect(120, totalY, 76, 22, 3, colorBlue),
		text(132, totalY+9, "TOTAL AMOUNT DUE", font(StyleNormal, 9), colorWhite, AlignLeft),
		text(158, totalY+18, b.opts.CurrencyPrefix+FormatAmount(*inv.Costs.TotalAmount), font(StyleBold, 14), colorWhite, AlignCenter),
	}}
}

func (b *Builder) footer(issued time.Time) Section {
	return Section{Name: SectionFooter, Instructions: []Instruction{
		line(marginLeft, 272, rightEdge, 272, 0.5, colorRule),
		text(marginLeft, 280, fmt.Sprintf("%s · %s", b.opts.ProductName, b.opts.Tagline), font(StyleNormal, 8), colorGray, AlignLeft),
		text(rightEdge, 280, "Generated: "+issued.Format("2/1/2006, 3:04:05 pm"), font(StyleNormal, 8), colorGray, AlignRight),
	}}
}

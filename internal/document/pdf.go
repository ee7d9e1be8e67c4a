package document

import (
	"bytes"
	"fmt"

	"github.com/jung-kurt/gofpdf"
)

// PDFRenderer draws a Document with gofpdf using the core fonts.
type PDFRenderer struct {
	// Compress deflates page streams. Turn it off to inspect the output by eye.
	Compress bool
	Author   string
}

// NewPDFRenderer returns a renderer with compression on.
func NewPDFRenderer(author string) *PDFRenderer {
	return &PDFRenderer{Compress: true, Author: author}
}

// Render returns the PDF bytes for doc. The same document always renders to the same bytes.
func (r *PDFRenderer) Render(doc *Document) ([]byte, error) {
	if doc == nil {
		return nil, fmt.Errorf("render: nil document")
	}
	unit := doc.Unit
	if unit == "" {
		unit = "mm"
	}
	pdf := gofpdf.NewCustom(&gofpdf.InitType{
		OrientationStr: "P",
		UnitStr:        unit,
		Size:           gofpdf.SizeType{Wd: doc.PageWidth, Ht: doc.PageHeight},
	})
	pdf.SetAutoPageBreak(false, 0)
	pdf.SetCompression(r.Compress)
	pdf.SetCatalogSort(true)
	pdf.SetCreationDate(doc.SourceDate)
	pdf.SetTitle(doc.Title, true)
	pdf.SetCreator(r.Author, true)
	if r.Author != "" {
		pdf.SetAuthor(r.Author, true)
	}
	pdf.AddPage()

	// Core fonts are cp1252; "—", "×" and "·" all have code points there.
	tr := pdf.UnicodeTranslatorFromDescriptor("")

	for _, section := range doc.Sections {
		for _, in := range section.Instructions {
			switch in.Kind {
			case KindText:
				drawText(pdf, tr, in.Text)
			case KindRect:
				drawRect(pdf, in.Rect)
			case KindLine:
				drawLine(pdf, in.Line)
			case KindTableRow:
				if in.Row.Band != nil {
					drawRect(pdf, in.Row.Band)
				}
				for i := range in.Row.Cells {
					drawText(pdf, tr, &in.Row.Cells[i])
				}
			default:
				return nil, fmt.Errorf("render: section %s: unknown instruction kind %q", section.Name, in.Kind)
			}
		}
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("render: %w", err)
	}
	return buf.Bytes(), nil
}

func drawText(pdf *gofpdf.Fpdf, tr func(string) string, t *TextRun) {
	pdf.SetFont(t.Font.Family, t.Font.Style, t.Font.Size)
	pdf.SetTextColor(t.Color.R, t.Color.G, t.Color.B)
	s := tr(t.Text)
	x := t.X
	switch t.Align {
	case AlignRight:
		x -= pdf.GetStringWidth(s)
	case AlignCenter:
		x -= pdf.GetStringWidth(s) / 2
	}
	pdf.Text(x, t.Y, s)
}

func drawRect(pdf *gofpdf.Fpdf, r *FilledRect) {
	pdf.SetFillColor(r.Fill.R, r.Fill.G, r.Fill.B)
	if r.Radius <= 0 {
		pdf.Rect(r.X, r.Y, r.W, r.H, "F")
		return
	}
	pdf.ClipRoundedRect(r.X, r.Y, r.W, r.H, r.Radius, false)
	pdf.Rect(r.X, r.Y, r.W, r.H, "F")
	pdf.ClipEnd()
}

func drawLine(pdf *gofpdf.Fpdf, l *Line) {
	pdf.SetDrawColor(l.Color.R, l.Color.G, l.Color.B)
	pdf.SetLineWidth(l.Width)
	pdf.Line(l.X1, l.Y1, l.X2, l.Y2)
}

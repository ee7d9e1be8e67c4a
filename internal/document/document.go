// Package document turns invoice records into a renderer-independent list of
// drawing instructions and renders that list to PDF.
package document

import (
	"time"
)

// Kind tags the payload carried by an Instruction.
type Kind string

const (
	KindText     Kind = "text"
	KindRect     Kind = "rect"
	KindLine     Kind = "line"
	KindTableRow Kind = "table-row"
)

// Align is the horizontal anchor of a text run relative to its X coordinate.
type Align string

const (
	AlignLeft   Align = "left"
	AlignRight  Align = "right"
	AlignCenter Align = "center"
)

// Font styles. They combine like gofpdf styles, e.g. "B" or "BI".
const (
	StyleNormal = ""
	StyleBold   = "B"
	StyleItalic = "I"
)

// Section names in drawing order.
const (
	SectionHeader       = "header"
	SectionParties      = "parties"
	SectionMetadata     = "metadata"
	SectionDivider      = "divider"
	SectionUsage        = "usage"
	SectionLineItems    = "line-items"
	SectionTotal        = "total"
	SectionFreeTierNote = "free-tier-note"
	SectionFooter       = "footer"
)

type Color struct {
	R int `json:"r"`
	G int `json:"g"`
	B int `json:"b"`
}

type Font struct {
	Family string  `json:"family"`
	Style  string  `json:"style"`
	Size   float64 `json:"size"`
}

// TextRun draws Text with its baseline at Y. X is the left edge, right edge or
// centre depending on Align.
type TextRun struct {
	X     float64 `json:"x"`
	Y     float64 `json:"y"`
	Text  string  `json:"text"`
	Font  Font    `json:"font"`
	Color Color   `json:"color"`
	Align Align   `json:"align"`
}

// FilledRect is a solid rectangle. A positive Radius rounds all four corners.
type FilledRect struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	W      float64 `json:"w"`
	H      float64 `json:"h"`
	Radius float64 `json:"radius,omitempty"`
	Fill   Color   `json:"fill"`
}

type Line struct {
	X1    float64 `json:"x1"`
	Y1    float64 `json:"y1"`
	X2    float64 `json:"x2"`
	Y2    float64 `json:"y2"`
	Width float64 `json:"width"`
	Color Color   `json:"color"`
}

// TableRow groups an optional background band with the cells drawn over it.
type TableRow struct {
	Index int         `json:"index"`
	Band  *FilledRect `json:"band,omitempty"`
	Cells []TextRun   `json:"cells"`
}

// Instruction is one drawing step. Exactly one payload matching Kind is set.
type Instruction struct {
	Kind Kind        `json:"kind"`
	Text *TextRun    `json:"text,omitempty"`
	Rect *FilledRect `json:"rect,omitempty"`
	Line *Line       `json:"line,omitempty"`
	Row  *TableRow   `json:"row,omitempty"`
}

type Section struct {
	Name         string        `json:"name"`
	Instructions []Instruction `json:"instructions"`
}

// Document is a single fixed-size page. Content past the page edge is clipped.
type Document struct {
	Title      string    `json:"title"`
	Filename   string    `json:"filename"`
	Unit       string    `json:"unit"`
	PageWidth  float64   `json:"page_width"`
	PageHeight float64   `json:"page_height"`
	IssuedAt   time.Time `json:"issued_at"`
	SourceDate time.Time `json:"source_date"` // PDF creation date
	Sections   []Section `json:"sections"`
}

// Section returns the named section or nil.
func (d *Document) Section(name string) *Section {
	for i := range d.Sections {
		if d.Sections[i].Name == name {
			return &d.Sections[i]
		}
	}
	return nil
}

// Texts returns every text run in the section, table cells included, in drawing order.
func (s *Section) Texts() []TextRun {
	var out []TextRun
	for _, in := range s.Instructions {
		switch in.Kind {
		case KindText:
			out = append(out, *in.Text)
		case KindTableRow:
			out = append(out, in.Row.Cells...)
		}
	}
	return out
}

// Texts returns every text run in the document in drawing order.
func (d *Document) Texts() []TextRun {
	var out []TextRun
	for i := range d.Sections {
		out = append(out, d.Sections[i].Texts()...)
	}
	return out
}

func text(x, y float64, s string, font Font, color Color, align Align) Instruction {
	return Instruction{Kind: KindText, Text: &TextRun{X: x, Y: y, Text: s, Font: font, Color: color, Align: align}}
}

func rect(x, y, w, h, radius float64, fill Color) Instruction {
	return Instruction{Kind: KindRect, Rect: &FilledRect{X: x, Y: y, W: w, H: h, Radius: radius, Fill: fill}}
}

func line(x1, y1, x2, y2, width float64, color Color) Instruction {
	return Instruction{Kind: KindLine, Line: &Line{X1: x1, Y1: y1, X2: x2, Y2: y2, Width: width, Color: color}}
}

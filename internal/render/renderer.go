package render

import (
	"bytes"
	"fmt"
	"reflect"
	"time"

	"github.com/go-pdf/fpdf"
	"github.com/rs/zerolog"

	"github.com/replenmobile/ordersend/internal/order"
)

// Document is the rendered order artifact: an A4 PDF and its page count.
// It is owned by the dispatch that requested it and never persisted.
type Document struct {
	Pages int
	PDF   []byte
}

// Renderer converts an order into a transmission-ready document.
type Renderer interface {
	Render(o *order.Order) (*Document, error)
}

// Sealer produces the optional seal image stamped on the first page.
type Sealer interface {
	Seal(name string) ([]byte, error)
}

// Page geometry in millimetres (A4 portrait, 15mm side margins).
const (
	pageLeft  = 15.0
	pageWidth = 180.0
	tableTop  = 72.0
	rowHeight = 9.0
	footerTop = 282.0
	sealSize  = 26.0
	sealLeft  = 169.0
	sealTop   = 38.0
)

// Column widths of the line-item table. They sum to pageWidth.
var columnWidths = [4]float64{88, 34, 20, 38}

const sealImageName = "hanko-seal"

// Option customises the PDF renderer.
type Option func(*PDFRenderer)

// WithRowsPerPage overrides the fixed page capacity of the item table.
func WithRowsPerPage(rows int) Option {
	return func(r *PDFRenderer) {
		if rows > 0 {
			r.rows = rows
		}
	}
}

// WithClock replaces the clock used for issue dates on orders without one.
func WithClock(now func() time.Time) Option {
	return func(r *PDFRenderer) {
		if now != nil {
			r.now = now
		}
	}
}

// WithSealer attaches a seal generator. Without one, orders carrying a seal
// name render without a seal image.
func WithSealer(s Sealer) Option {
	return func(r *PDFRenderer) {
		r.sealer = s
	}
}

// PDFRenderer implements Renderer by drawing the paginated layout into an A4
// PDF with an embedded Japanese TrueType font. It holds no mutable state
// between calls and is safe for concurrent use.
type PDFRenderer struct {
	logger zerolog.Logger
	font   *Font
	rows   int
	now    func() time.Time
	sealer Sealer
}

// NewPDFRenderer constructs a renderer around a loaded glyph resource.
func NewPDFRenderer(font *Font, logger zerolog.Logger, opts ...Option) (*PDFRenderer, error) {
	if font == nil || len(font.Data) == 0 {
		return nil, fmt.Errorf("%w: no glyph resource supplied", ErrFontUnavailable)
	}
	if reflect.ValueOf(logger).IsZero() {
		logger = zerolog.Nop()
	}

	r := &PDFRenderer{
		logger: logger,
		font:   font,
		rows:   DefaultRowsPerPage,
		now:    time.Now,
	}

	for _, opt := range opts {
		if opt != nil {
			opt(r)
		}
	}

	return r, nil
}

// Render lays out and encodes the order document.
func (r *PDFRenderer) Render(o *order.Order) (*Document, error) {
	layout, err := BuildLayout(o, r.rows, r.now())
	if err != nil {
		return nil, err
	}

	data, err := r.encode(layout)
	if err != nil {
		return nil, err
	}

	r.logger.Debug().
		Str("reference", o.Reference).
		Int("pages", layout.PageCount()).
		Int("bytes", len(data)).
		Msg("order document rendered")

	return &Document{Pages: layout.PageCount(), PDF: data}, nil
}

func (r *PDFRenderer) encode(l *Layout) ([]byte, error) {
	pdf := fpdf.New("P", "mm", "A4", "")
	pdf.SetTitle(l.Title, true)
	pdf.SetMargins(pageLeft, 15, pageLeft)
	pdf.SetAutoPageBreak(false, 0)
	pdf.AddUTF8FontFromBytes(r.font.Name, "", r.font.Data)

	sealRegistered := false
	if l.SealName != "" && r.sealer != nil {
		img, err := r.sealer.Seal(l.SealName)
		if err != nil {
			r.logger.Warn().
				Err(err).
				Str("seal_name", l.SealName).
				Msg("seal generation failed, rendering without seal")
		} else {
			pdf.RegisterImageOptionsReader(sealImageName, fpdf.ImageOptions{ImageType: "PNG"}, bytes.NewReader(img))
			sealRegistered = true
		}
	}

	for _, page := range l.Pages {
		pdf.AddPage()
		r.drawHeader(pdf, l)
		if sealRegistered && page.Number == 1 {
			pdf.ImageOptions(sealImageName, sealLeft, sealTop, sealSize, sealSize, false, fpdf.ImageOptions{ImageType: "PNG"}, 0, "")
		}
		r.drawTable(pdf, l, page)
		if page.Last {
			r.drawSummary(pdf, l)
		}
		r.drawFooter(pdf, page.Number, l.PageCount())
	}

	if pdf.Err() {
		return nil, fmt.Errorf("render: %v", pdf.Error())
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("render: encode: %w", err)
	}
	return buf.Bytes(), nil
}

func (r *PDFRenderer) drawHeader(pdf *fpdf.Fpdf, l *Layout) {
	r.setFont(pdf, 24)
	pdf.SetXY(pageLeft, 18)
	pdf.CellFormat(pageWidth, 14, l.Title, "", 1, "C", false, 0, "")

	r.setFont(pdf, 10)
	pdf.SetXY(pageLeft, 36)
	pdf.CellFormat(pageWidth, 6, l.Reference, "", 1, "R", false, 0, "")
	pdf.CellFormat(pageWidth, 6, l.IssueDate, "", 1, "R", false, 0, "")

	r.setFont(pdf, 14)
	pdf.SetXY(pageLeft, 52)
	pdf.CellFormat(120, 10, l.Addressee, "B", 1, "L", false, 0, "")
}

func (r *PDFRenderer) drawTable(pdf *fpdf.Fpdf, l *Layout, page Page) {
	r.setFont(pdf, 10)
	pdf.SetXY(pageLeft, tableTop)
	pdf.SetFillColor(235, 235, 235)
	for i, column := range l.Columns {
		pdf.CellFormat(columnWidths[i], rowHeight, column, "1", 0, "C", true, 0, "")
	}
	pdf.Ln(rowHeight)

	aligns := [4]string{"L", "R", "C", "R"}
	for _, row := range page.Rows {
		pdf.SetX(pageLeft)
		cells := [4]string{row.Name, row.UnitPrice, row.Quantity, row.Amount}
		for i, cell := range cells {
			pdf.CellFormat(columnWidths[i], rowHeight, cell, "1", 0, aligns[i], false, 0, "")
		}
		pdf.Ln(rowHeight)
	}
}

func (r *PDFRenderer) drawSummary(pdf *fpdf.Fpdf, l *Layout) {
	r.setFont(pdf, 11)
	pdf.SetX(pageLeft)
	pdf.CellFormat(columnWidths[0]+columnWidths[1], rowHeight, "", "", 0, "L", false, 0, "")
	pdf.CellFormat(columnWidths[2], rowHeight, labelTotal, "1", 0, "C", true, 0, "")
	pdf.CellFormat(columnWidths[3], rowHeight, l.Total, "1", 1, "R", false, 0, "")

	if l.Note != "" {
		pdf.Ln(4)
		r.setFont(pdf, 9)
		pdf.SetX(pageLeft)
		pdf.MultiCell(pageWidth, 5.5, labelNote+": "+l.Note, "", "L", false)
	}

	pdf.Ln(4)
	r.setFont(pdf, 10)
	pdf.SetX(pageLeft)
	pdf.CellFormat(pageWidth, 8, l.Closing, "", 1, "L", false, 0, "")
}

func (r *PDFRenderer) drawFooter(pdf *fpdf.Fpdf, number, total int) {
	r.setFont(pdf, 9)
	pdf.SetTextColor(120, 120, 120)
	pdf.SetXY(pageLeft, footerTop)
	pdf.CellFormat(pageWidth, 6, fmt.Sprintf("ページ %d/%d", number, total), "", 0, "C", false, 0, "")
	pdf.SetTextColor(0, 0, 0)
}

func (r *PDFRenderer) setFont(pdf *fpdf.Fpdf, size float64) {
	pdf.SetFont(r.font.Name, "", size)
}

// Unavailable returns a Renderer whose Render always fails with the supplied
// cause. The composition root uses it when no glyph resource could be loaded,
// so fax dispatches degrade to a rendering failure instead of a nil renderer.
func Unavailable(cause error) Renderer {
	return unavailableRenderer{cause: cause}
}

type unavailableRenderer struct {
	cause error
}

func (u unavailableRenderer) Render(*order.Order) (*Document, error) {
	if u.cause != nil {
		return nil, u.cause
	}
	return nil, ErrFontUnavailable
}

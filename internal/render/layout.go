package render

import (
	"errors"
	"strconv"
	"time"
	"unicode/utf8"

	"github.com/replenmobile/ordersend/internal/order"
)

// DefaultRowsPerPage is the fixed page capacity of the line-item table.
const DefaultRowsPerPage = 12

// Display caps keep every cell and the note block inside the fixed page
// geometry. Longer values are clipped with an ellipsis, not rejected.
const (
	maxRowNameRunes = 30
	maxNoteRunes    = 300
)

// Document labels. The order form is a Japanese business document; glyph
// coverage for these strings is a hard requirement of the renderer.
const (
	labelTitle     = "注文書"
	labelDate      = "日付"
	labelReference = "注文書番号"
	labelAddressee = "御中"
	labelName      = "商品名"
	labelUnitPrice = "単価"
	labelQuantity  = "数量"
	labelAmount    = "金額"
	labelTotal     = "合計"
	labelNote      = "備考"
	labelClosing   = "よろしくお願いいたします。"
)

// Row is one formatted line-item row of the order table.
type Row struct {
	Name      string
	UnitPrice string
	Quantity  string
	Amount    string
}

// Page groups the rows laid out on one physical page. Header and footer are
// repeated on every page; the summary block belongs to the last page only.
type Page struct {
	Number int
	Rows   []Row
	Last   bool
}

// Layout is the paginated, channel-independent form of an order document. It
// carries formatted strings only, so it can be asserted on without touching
// any PDF machinery.
type Layout struct {
	Title     string
	Reference string
	IssueDate string
	Addressee string
	Columns   [4]string
	Pages     []Page
	Total     string
	Note      string
	Closing   string
	SealName  string
}

// PageCount returns the number of pages in the layout.
func (l *Layout) PageCount() int {
	return len(l.Pages)
}

// BuildLayout paginates an order into document pages of the given capacity.
// The page count is always ceil(items/rowsPerPage). The now argument supplies
// the issue date when the order does not carry one.
func BuildLayout(o *order.Order, rowsPerPage int, now time.Time) (*Layout, error) {
	if o == nil {
		return nil, errors.New("render: order is required")
	}
	if len(o.Items) == 0 {
		return nil, errors.New("render: order has no line items")
	}
	if rowsPerPage < 1 {
		rowsPerPage = DefaultRowsPerPage
	}

	issued := o.IssuedAt
	if issued.IsZero() {
		issued = now
	}

	l := &Layout{
		Title:     labelTitle,
		Reference: labelReference + ": " + o.Reference,
		IssueDate: labelDate + ": " + issued.Format("2006年01月02日"),
		Addressee: o.SupplierName + " " + labelAddressee,
		Columns:   [4]string{labelName, labelUnitPrice, labelQuantity, labelAmount},
		Total:     order.FormatYen(o.GrandTotal()),
		Note:      clipRunes(o.Note, maxNoteRunes),
		Closing:   labelClosing,
		SealName:  o.SealName,
	}

	rows := make([]Row, 0, len(o.Items))
	for _, item := range o.Items {
		rows = append(rows, Row{
			Name:      clipRunes(item.Name, maxRowNameRunes),
			UnitPrice: order.FormatYen(item.UnitPrice),
			Quantity:  strconv.Itoa(item.Quantity),
			Amount:    order.FormatYen(item.LineTotal()),
		})
	}

	for start := 0; start < len(rows); start += rowsPerPage {
		end := start + rowsPerPage
		if end > len(rows) {
			end = len(rows)
		}
		l.Pages = append(l.Pages, Page{
			Number: len(l.Pages) + 1,
			Rows:   rows[start:end],
			Last:   end == len(rows),
		})
	}

	return l, nil
}

func clipRunes(value string, max int) string {
	if utf8.RuneCountInString(value) <= max {
		return value
	}
	runes := []rune(value)
	return string(runes[:max-1]) + "…"
}

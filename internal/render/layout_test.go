package render

import (
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/replenmobile/ordersend/internal/order"
)

func layoutOrder(items int) *order.Order {
	o := &order.Order{
		Reference:    "ORD-20250825-DEADBEEF",
		SupplierName: "やまや商店",
		Method:       order.MethodFax,
		FaxNumber:    "+81312345678",
		IssuedAt:     time.Date(2025, 8, 25, 9, 0, 0, 0, time.UTC),
	}
	for i := 0; i < items; i++ {
		o.Items = append(o.Items, order.LineItem{
			Name:      "ペン " + strconv.Itoa(i+1),
			UnitPrice: decimal.NewFromInt(100),
			Quantity:  3,
		})
	}
	return o
}

func TestBuildLayoutPagination(t *testing.T) {
	cases := []struct {
		name  string
		items int
		pages int
	}{
		{name: "single item", items: 1, pages: 1},
		{name: "exactly one page", items: DefaultRowsPerPage, pages: 1},
		{name: "one item overflows", items: DefaultRowsPerPage + 1, pages: 2},
		{name: "three full pages", items: 3 * DefaultRowsPerPage, pages: 3},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			l, err := BuildLayout(layoutOrder(tc.items), DefaultRowsPerPage, time.Now())
			if err != nil {
				t.Fatalf("BuildLayout: %v", err)
			}
			if l.PageCount() != tc.pages {
				t.Fatalf("PageCount = %d, want %d", l.PageCount(), tc.pages)
			}

			total := 0
			for i, page := range l.Pages {
				if page.Number != i+1 {
					t.Errorf("page %d: Number = %d", i, page.Number)
				}
				if len(page.Rows) > DefaultRowsPerPage {
					t.Errorf("page %d holds %d rows, capacity is %d", page.Number, len(page.Rows), DefaultRowsPerPage)
				}
				if got, want := page.Last, i == len(l.Pages)-1; got != want {
					t.Errorf("page %d: Last = %v, want %v", page.Number, got, want)
				}
				total += len(page.Rows)
			}
			if total != tc.items {
				t.Errorf("rows across pages = %d, want %d", total, tc.items)
			}
		})
	}
}

func TestBuildLayoutHeaderFields(t *testing.T) {
	o := layoutOrder(2)
	l, err := BuildLayout(o, DefaultRowsPerPage, time.Now())
	if err != nil {
		t.Fatalf("BuildLayout: %v", err)
	}

	if l.Title != "注文書" {
		t.Errorf("Title = %q", l.Title)
	}
	if l.Reference != "注文書番号: ORD-20250825-DEADBEEF" {
		t.Errorf("Reference = %q", l.Reference)
	}
	if l.IssueDate != "日付: 2025年08月25日" {
		t.Errorf("IssueDate = %q", l.IssueDate)
	}
	if l.Addressee != "やまや商店 御中" {
		t.Errorf("Addressee = %q", l.Addressee)
	}
	if want := [4]string{"商品名", "単価", "数量", "金額"}; l.Columns != want {
		t.Errorf("Columns = %v, want %v", l.Columns, want)
	}
	if l.Total != "¥600" {
		t.Errorf("Total = %q, want ¥600", l.Total)
	}
	if l.Closing != "よろしくお願いいたします。" {
		t.Errorf("Closing = %q", l.Closing)
	}
}

func TestBuildLayoutIssueDateFallsBackToClock(t *testing.T) {
	o := layoutOrder(1)
	o.IssuedAt = time.Time{}

	now := time.Date(2024, 12, 1, 0, 0, 0, 0, time.UTC)
	l, err := BuildLayout(o, DefaultRowsPerPage, now)
	if err != nil {
		t.Fatalf("BuildLayout: %v", err)
	}
	if l.IssueDate != "日付: 2024年12月01日" {
		t.Errorf("IssueDate = %q", l.IssueDate)
	}
}

func TestBuildLayoutRowFormatting(t *testing.T) {
	o := layoutOrder(0)
	o.Items = []order.LineItem{
		{Name: "ペン", UnitPrice: decimal.NewFromInt(100), Quantity: 3},
		{Name: "ノート", UnitPrice: decimal.NewFromFloat(19.99), Quantity: 7},
	}

	l, err := BuildLayout(o, DefaultRowsPerPage, time.Now())
	if err != nil {
		t.Fatalf("BuildLayout: %v", err)
	}

	rows := l.Pages[0].Rows
	if rows[0].UnitPrice != "¥100" || rows[0].Quantity != "3" || rows[0].Amount != "¥300" {
		t.Errorf("row 0 = %+v", rows[0])
	}
	// Yen formatting rounds half up at display time.
	if rows[1].UnitPrice != "¥20" || rows[1].Amount != "¥140" {
		t.Errorf("row 1 = %+v", rows[1])
	}
}

func TestBuildLayoutClipsLongValues(t *testing.T) {
	o := layoutOrder(1)
	o.Items[0].Name = strings.Repeat("あ", maxRowNameRunes+10)
	o.Note = strings.Repeat("備", maxNoteRunes+50)

	l, err := BuildLayout(o, DefaultRowsPerPage, time.Now())
	if err != nil {
		t.Fatalf("BuildLayout: %v", err)
	}

	name := []rune(l.Pages[0].Rows[0].Name)
	if len(name) != maxRowNameRunes {
		t.Errorf("clipped name is %d runes, want %d", len(name), maxRowNameRunes)
	}
	if name[len(name)-1] != '…' {
		t.Errorf("clipped name does not end with ellipsis: %q", string(name))
	}
	if got := len([]rune(l.Note)); got != maxNoteRunes {
		t.Errorf("clipped note is %d runes, want %d", got, maxNoteRunes)
	}
}

func TestBuildLayoutRejectsEmptyOrders(t *testing.T) {
	if _, err := BuildLayout(nil, DefaultRowsPerPage, time.Now()); err == nil {
		t.Fatal("expected error for nil order")
	}
	if _, err := BuildLayout(&order.Order{SupplierName: "やまや商店"}, DefaultRowsPerPage, time.Now()); err == nil {
		t.Fatal("expected error for order without items")
	}
}

func TestBuildLayoutDefaultsPageCapacity(t *testing.T) {
	l, err := BuildLayout(layoutOrder(DefaultRowsPerPage+1), 0, time.Now())
	if err != nil {
		t.Fatalf("BuildLayout: %v", err)
	}
	if l.PageCount() != 2 {
		t.Fatalf("PageCount = %d, want 2 under default capacity", l.PageCount())
	}
}

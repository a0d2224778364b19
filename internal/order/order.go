package order

import (
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// ContactMethod identifies the delivery channel requested for an order.
type ContactMethod string

const (
	MethodFax   ContactMethod = "fax"
	MethodEmail ContactMethod = "email"
	MethodLine  ContactMethod = "line"
)

// ErrUnknownMethod is returned when a contact method cannot be parsed.
var ErrUnknownMethod = errors.New("unknown contact method")

const (
	maxNameRunes     = 200
	maxNoteRunes     = 1000
	maxSealNameRunes = 4
)

// ParseMethod parses a contact method string, accepting surrounding whitespace
// and any casing.
func ParseMethod(value string) (ContactMethod, error) {
	switch ContactMethod(strings.ToLower(strings.TrimSpace(value))) {
	case MethodFax:
		return MethodFax, nil
	case MethodEmail:
		return MethodEmail, nil
	case MethodLine:
		return MethodLine, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownMethod, value)
	}
}

// LineItem is a single order line. Immutable once constructed.
type LineItem struct {
	Name      string          `json:"name"`
	UnitPrice decimal.Decimal `json:"unit_price"`
	Quantity  int             `json:"quantity"`
}

// LineTotal returns unit price multiplied by quantity, exactly.
func (li LineItem) LineTotal() decimal.Decimal {
	return li.UnitPrice.Mul(decimal.NewFromInt(int64(li.Quantity)))
}

// Order is the validated purchase order handed to the dispatch engine. Exactly
// the destination field matching Method is consulted during dispatch.
type Order struct {
	Reference    string        `json:"reference"`
	SupplierName string        `json:"supplier_name"`
	Method       ContactMethod `json:"contact_method"`
	FaxNumber    string        `json:"fax_number,omitempty"`
	Email        string        `json:"email,omitempty"`
	LineID       string        `json:"line_id,omitempty"`
	Items        []LineItem    `json:"items"`
	Note         string        `json:"note,omitempty"`
	SealName     string        `json:"seal_name,omitempty"`
	IssuedAt     time.Time     `json:"issued_at"`
}

// Destination returns the destination field matching the order's contact
// method, or an empty string for an unknown method.
func (o *Order) Destination() string {
	switch o.Method {
	case MethodFax:
		return o.FaxNumber
	case MethodEmail:
		return o.Email
	case MethodLine:
		return o.LineID
	default:
		return ""
	}
}

// GrandTotal returns the exact sum of all line totals.
func (o *Order) GrandTotal() decimal.Decimal {
	total := decimal.Zero
	for _, item := range o.Items {
		total = total.Add(item.LineTotal())
	}
	return total
}

// Normalize fills the generated fields that callers may omit: the order
// reference and the issue timestamp.
func (o *Order) Normalize(now time.Time) {
	if strings.TrimSpace(o.Reference) == "" {
		o.Reference = NewReference(now)
	}
	if o.IssuedAt.IsZero() {
		o.IssuedAt = now
	}
}

// Validate checks the order shape: supplier, contact method and line items.
// Destination syntax is channel-specific and validated by the adapters.
func (o *Order) Validate() error {
	if strings.TrimSpace(o.SupplierName) == "" {
		return errors.New("supplier name is required")
	}
	if utf8.RuneCountInString(o.SupplierName) > maxNameRunes {
		return fmt.Errorf("supplier name exceeds %d characters", maxNameRunes)
	}
	if _, err := ParseMethod(string(o.Method)); err != nil {
		return err
	}
	if len(o.Items) == 0 {
		return errors.New("at least one line item is required")
	}
	for i, item := range o.Items {
		if strings.TrimSpace(item.Name) == "" {
			return fmt.Errorf("items[%d]: name is required", i)
		}
		if utf8.RuneCountInString(item.Name) > maxNameRunes {
			return fmt.Errorf("items[%d]: name exceeds %d characters", i, maxNameRunes)
		}
		if item.Quantity < 1 {
			return fmt.Errorf("items[%d]: quantity must be at least 1", i)
		}
		if item.UnitPrice.IsNegative() {
			return fmt.Errorf("items[%d]: unit price must not be negative", i)
		}
	}
	if utf8.RuneCountInString(o.Note) > maxNoteRunes {
		return fmt.Errorf("note exceeds %d characters", maxNoteRunes)
	}
	if o.SealName != "" && utf8.RuneCountInString(o.SealName) > maxSealNameRunes {
		return fmt.Errorf("seal name exceeds %d characters", maxSealNameRunes)
	}
	return nil
}

// NewReference builds an order reference of the form ORD-YYYYMMDD-XXXXXXXX.
func NewReference(now time.Time) string {
	suffix := strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", "")[:8])
	return fmt.Sprintf("ORD-%s-%s", now.Format("20060102"), suffix)
}

// FormatYen renders an amount as yen with comma grouping, e.g. ¥12,300.
// Fractional parts are rounded half up; order amounts are whole yen.
func FormatYen(amount decimal.Decimal) string {
	text := amount.Round(0).StringFixed(0)
	negative := strings.HasPrefix(text, "-")
	if negative {
		text = text[1:]
	}
	grouped := groupThousands(text)
	if negative {
		return "-¥" + grouped
	}
	return "¥" + grouped
}

func groupThousands(digits string) string {
	n := len(digits)
	if n <= 3 {
		return digits
	}
	var b strings.Builder
	head := n % 3
	if head > 0 {
		b.WriteString(digits[:head])
	}
	for i := head; i < n; i += 3 {
		if b.Len() > 0 {
			b.WriteByte(',')
		}
		b.WriteString(digits[i : i+3])
	}
	return b.String()
}

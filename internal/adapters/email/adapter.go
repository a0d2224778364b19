package email

import (
	"context"
	"errors"
	"fmt"
	"html"
	"net/textproto"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"

	common "github.com/replenmobile/ordersend/internal/adapters/common"
	"github.com/replenmobile/ordersend/internal/order"
	emailprovider "github.com/replenmobile/ordersend/internal/providers/email"
	"github.com/replenmobile/ordersend/internal/util"
)

// Option customises adapter behaviour.
type Option func(*Adapter)

// WithSimulation puts the adapter in simulation mode. Orders are validated
// and the message is built as usual, but nothing reaches the email backend.
func WithSimulation(enabled bool) Option {
	return func(a *Adapter) {
		a.simulate = enabled
	}
}

// WithRawBodyLimit overrides the maximum number of characters retained from
// the provider raw response.
func WithRawBodyLimit(limit int) Option {
	return func(a *Adapter) {
		if limit > 0 {
			a.maxRawChars = limit
		}
	}
}

// Adapter delivers orders over email. The order is flattened into a plain
// text body with an HTML alternative; the rendered PDF document is a fax
// concern and is never attached here.
type Adapter struct {
	logger      zerolog.Logger
	provider    emailprovider.Provider
	simulate    bool
	maxRawChars int
}

// NewAdapter constructs an email adapter using the provided dependencies.
func NewAdapter(provider emailprovider.Provider, logger zerolog.Logger, opts ...Option) (*Adapter, error) {
	if provider == nil {
		return nil, errors.New("email adapter: provider dependency is required")
	}
	if reflect.ValueOf(logger).IsZero() {
		logger = zerolog.Nop()
	}

	a := &Adapter{
		logger:      logger,
		provider:    provider,
		maxRawChars: common.DefaultRawBodyLimit,
	}

	for _, opt := range opts {
		if opt != nil {
			opt(a)
		}
	}

	return a, nil
}

// Channel reports the contact method this adapter serves.
func (a *Adapter) Channel() order.ContactMethod {
	return order.MethodEmail
}

// Dispatch validates the address, builds the message, and sends it. In
// simulation mode the send step is replaced with a deterministic synthetic
// receipt; validation and message building still run in full.
func (a *Adapter) Dispatch(ctx context.Context, o *order.Order) (*common.Receipt, error) {
	if o == nil {
		return nil, common.WrapValidation(errors.New("email adapter: order is nil"))
	}

	address, err := util.NormalizeEmail(o.Email)
	if err != nil {
		return nil, common.WrapValidation(fmt.Errorf("email adapter: %w", err))
	}

	payload := a.buildPayload(o, address)

	if a.simulate {
		receipt := &common.Receipt{
			ProviderRef: common.SimulatedRef(order.MethodEmail, o.Reference),
			Detail:      fmt.Sprintf("simulated email to %s", address),
			Simulated:   true,
		}
		a.logger.Debug().
			Str("reference", o.Reference).
			Str("destination", address).
			Msg("email adapter simulated send")
		return receipt, nil
	}

	raw, err := a.provider.Send(ctx, payload)
	if err != nil {
		wrapped := a.wrapError(err, raw)
		a.logger.Warn().
			Str("reference", o.Reference).
			Str("destination", address).
			Str("provider_status", rawStatus(raw)).
			Err(err).
			Msg("email adapter send failed")
		return nil, wrapped
	}

	receipt := &common.Receipt{
		ProviderRef: raw.ID,
		Detail:      fmt.Sprintf("email accepted for %s", address),
		Raw:         common.TruncateRaw(raw.Body, a.maxRawChars),
		Meta: map[string]string{
			"provider_status": raw.Status,
			"provider_code":   strconv.Itoa(raw.Code),
		},
	}
	a.logger.Debug().
		Str("reference", o.Reference).
		Str("destination", address).
		Str("provider_id", raw.ID).
		Msg("email adapter send succeeded")
	return receipt, nil
}

func (a *Adapter) buildPayload(o *order.Order, address string) *emailprovider.Payload {
	return &emailprovider.Payload{
		MessageID: fmt.Sprintf("<%s@ordersend>", o.Reference),
		To:        []string{address},
		Subject:   fmt.Sprintf("【注文書】%s", o.Reference),
		TextBody:  buildText(o),
		HTMLBody:  buildHTML(o),
		Headers: map[string]string{
			"X-Order-Reference": o.Reference,
		},
	}
}

func issueDate(o *order.Order) string {
	issued := o.IssuedAt
	if issued.IsZero() {
		issued = time.Now()
	}
	return issued.Format("2006年01月02日")
}

func buildText(o *order.Order) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s 御中\n\n", o.SupplierName)
	b.WriteString("いつもお世話になっております。\n")
	b.WriteString("下記の通り注文いたします。\n\n")
	fmt.Fprintf(&b, "注文書番号: %s\n", o.Reference)
	fmt.Fprintf(&b, "日付: %s\n\n", issueDate(o))

	for _, item := range o.Items {
		fmt.Fprintf(&b, "・%s  %s × %d = %s\n",
			item.Name,
			order.FormatYen(item.UnitPrice),
			item.Quantity,
			order.FormatYen(item.LineTotal()),
		)
	}

	fmt.Fprintf(&b, "\n合計: %s\n", order.FormatYen(o.GrandTotal()))

	if strings.TrimSpace(o.Note) != "" {
		fmt.Fprintf(&b, "\n備考: %s\n", o.Note)
	}

	b.WriteString("\nよろしくお願いいたします。\n")
	return b.String()
}

func buildHTML(o *order.Order) string {
	var b strings.Builder
	b.WriteString("<html><body>")
	fmt.Fprintf(&b, "<p>%s 御中</p>", html.EscapeString(o.SupplierName))
	b.WriteString("<p>いつもお世話になっております。<br>下記の通り注文いたします。</p>")
	fmt.Fprintf(&b, "<p>注文書番号: %s<br>日付: %s</p>", html.EscapeString(o.Reference), issueDate(o))

	b.WriteString(`<table border="1" cellspacing="0" cellpadding="4">`)
	b.WriteString("<tr><th>商品名</th><th>単価</th><th>数量</th><th>金額</th></tr>")
	for _, item := range o.Items {
		fmt.Fprintf(&b, "<tr><td>%s</td><td>%s</td><td>%d</td><td>%s</td></tr>",
			html.EscapeString(item.Name),
			order.FormatYen(item.UnitPrice),
			item.Quantity,
			order.FormatYen(item.LineTotal()),
		)
	}
	fmt.Fprintf(&b, `<tr><td colspan="3">合計</td><td>%s</td></tr>`, order.FormatYen(o.GrandTotal()))
	b.WriteString("</table>")

	if strings.TrimSpace(o.Note) != "" {
		fmt.Fprintf(&b, "<p>備考: %s</p>", html.EscapeString(o.Note))
	}

	b.WriteString("<p>よろしくお願いいたします。</p>")
	b.WriteString("</body></html>")
	return b.String()
}

// wrapError classifies backend failures. SMTP reply codes follow RFC 5321:
// 5yz is a permanent refusal, 4yz a transient condition. For the hosted API
// a 4xx status is a refusal while 5xx and network failures are outages.
func (a *Adapter) wrapError(err error, raw *emailprovider.RawResponse) error {
	var tpErr *textproto.Error
	switch {
	case errors.Is(err, emailprovider.ErrNotConfigured):
		return common.WrapConfigMissing(err)
	case errors.As(err, &tpErr):
		if tpErr.Code >= 500 {
			return common.WrapRejected(err)
		}
		return common.WrapUnreachable(err)
	case raw != nil && raw.Code >= 400 && raw.Code < 500:
		return common.WrapRejected(err)
	case common.IsTimeout(err):
		return common.WrapUnreachable(err)
	default:
		return common.WrapUnreachable(err)
	}
}

func rawStatus(raw *emailprovider.RawResponse) string {
	if raw == nil {
		return ""
	}
	return raw.Status
}

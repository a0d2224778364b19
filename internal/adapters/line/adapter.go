package line

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"

	common "github.com/replenmobile/ordersend/internal/adapters/common"
	"github.com/replenmobile/ordersend/internal/order"
	lineprovider "github.com/replenmobile/ordersend/internal/providers/line"
	"github.com/replenmobile/ordersend/internal/util"
)

// A single LINE text message holds at most 5000 characters.
const maxMessageRunes = 5000

const continuationMark = "（続き）"

// Option customises adapter behaviour.
type Option func(*Adapter)

// WithSimulation puts the adapter in simulation mode. Orders are validated
// and the messages are built as usual, but nothing reaches the LINE backend.
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

// Adapter delivers orders as templated LINE text messages. Long orders are
// chunked on line boundaries so no single message exceeds the platform
// limit.
type Adapter struct {
	logger      zerolog.Logger
	provider    lineprovider.Provider
	simulate    bool
	maxRawChars int
}

// NewAdapter constructs a LINE adapter using the provided dependencies.
func NewAdapter(provider lineprovider.Provider, logger zerolog.Logger, opts ...Option) (*Adapter, error) {
	if provider == nil {
		return nil, errors.New("line adapter: provider dependency is required")
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
	return order.MethodLine
}

// Dispatch validates the destination, builds the templated texts, and pushes
// them. In simulation mode the push step is replaced with a deterministic
// synthetic receipt; validation and templating still run in full.
func (a *Adapter) Dispatch(ctx context.Context, o *order.Order) (*common.Receipt, error) {
	if o == nil {
		return nil, common.WrapValidation(errors.New("line adapter: order is nil"))
	}

	recipient, err := util.ValidateLineID(o.LineID)
	if err != nil {
		return nil, common.WrapValidation(fmt.Errorf("line adapter: %w", err))
	}

	messages := buildMessages(o)

	if a.simulate {
		receipt := &common.Receipt{
			ProviderRef: common.SimulatedRef(order.MethodLine, o.Reference),
			Detail:      fmt.Sprintf("simulated line push to %s (%d messages)", recipient, len(messages)),
			Simulated:   true,
			Meta:        map[string]string{"messages": strconv.Itoa(len(messages))},
		}
		a.logger.Debug().
			Str("reference", o.Reference).
			Str("destination", recipient).
			Int("messages", len(messages)).
			Msg("line adapter simulated send")
		return receipt, nil
	}

	raw, err := a.provider.Send(ctx, &lineprovider.Payload{
		Reference: o.Reference,
		To:        recipient,
		Messages:  messages,
	})
	if err != nil {
		wrapped := a.wrapError(err, raw)
		a.logger.Warn().
			Str("reference", o.Reference).
			Str("destination", recipient).
			Str("provider_status", rawStatus(raw)).
			Err(err).
			Msg("line adapter send failed")
		return nil, wrapped
	}

	receipt := &common.Receipt{
		ProviderRef: raw.ID,
		Detail:      fmt.Sprintf("line push delivered to %s (%d messages)", recipient, len(messages)),
		Raw:         common.TruncateRaw(raw.Body, a.maxRawChars),
		Meta: map[string]string{
			"messages":        strconv.Itoa(len(messages)),
			"provider_status": raw.Status,
		},
	}
	a.logger.Debug().
		Str("reference", o.Reference).
		Str("destination", recipient).
		Str("provider_id", raw.ID).
		Msg("line adapter send succeeded")
	return receipt, nil
}

func issueDate(o *order.Order) string {
	issued := o.IssuedAt
	if issued.IsZero() {
		issued = time.Now()
	}
	return issued.Format("2006年01月02日")
}

// buildMessages renders the order template and chunks it into platform-sized
// texts. Chunking happens on line boundaries; continuation chunks are marked
// so the receiver can follow the sequence.
func buildMessages(o *order.Order) []string {
	var b strings.Builder
	b.WriteString("【注文書】\n")
	fmt.Fprintf(&b, "%s 御中\n\n", o.SupplierName)
	fmt.Fprintf(&b, "注文書番号: %s\n", o.Reference)
	fmt.Fprintf(&b, "日付: %s\n\n", issueDate(o))

	for _, item := range o.Items {
		fmt.Fprintf(&b, "・%s\n  %s × %d = %s\n",
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

	b.WriteString("\nよろしくお願いいたします。")

	return chunkLines(b.String(), maxMessageRunes)
}

func chunkLines(text string, limit int) []string {
	if len([]rune(text)) <= limit {
		return []string{text}
	}

	markLen := len([]rune(continuationMark)) + 1
	maxLine := limit - markLen - 1

	// Pre-split pathological single lines so the packing below always fits.
	var lines []string
	for _, line := range strings.Split(text, "\n") {
		runes := []rune(line)
		for len(runes) > maxLine {
			lines = append(lines, string(runes[:maxLine]))
			runes = runes[maxLine:]
		}
		lines = append(lines, string(runes))
	}

	var chunks []string
	var current []string
	length := 0

	flush := func() {
		if len(current) == 0 {
			return
		}
		chunks = append(chunks, strings.Join(current, "\n"))
		current = nil
		length = 0
	}

	for _, line := range lines {
		need := len([]rune(line)) + 1
		if length+need > limit {
			flush()
			current = append(current, continuationMark)
			length = markLen
		}
		current = append(current, line)
		length += need
	}
	flush()

	return chunks
}

// wrapError classifies backend failures. A 4xx response means the platform
// was reached and refused the push; 5xx and network failures are outages.
func (a *Adapter) wrapError(err error, raw *lineprovider.RawResponse) error {
	switch {
	case errors.Is(err, lineprovider.ErrNotConfigured):
		return common.WrapConfigMissing(err)
	case raw != nil && raw.Code >= 400 && raw.Code < 500:
		return common.WrapRejected(err)
	case common.IsTimeout(err):
		return common.WrapUnreachable(err)
	default:
		return common.WrapUnreachable(err)
	}
}

func rawStatus(raw *lineprovider.RawResponse) string {
	if raw == nil {
		return ""
	}
	return raw.Status
}

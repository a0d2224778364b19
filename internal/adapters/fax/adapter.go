package fax

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"strconv"

	"github.com/rs/zerolog"

	common "github.com/replenmobile/ordersend/internal/adapters/common"
	"github.com/replenmobile/ordersend/internal/order"
	faxprovider "github.com/replenmobile/ordersend/internal/providers/fax"
	"github.com/replenmobile/ordersend/internal/render"
	"github.com/replenmobile/ordersend/internal/util"
)

// Option customises adapter behaviour.
type Option func(*Adapter)

// WithSimulation puts the adapter in simulation mode. Orders are validated
// and rendered as usual, but nothing reaches the fax backend.
func WithSimulation(enabled bool) Option {
	return func(a *Adapter) {
		a.simulate = enabled
	}
}

// WithCountryPrefix sets the dialing prefix applied to domestic numbers.
func WithCountryPrefix(prefix string) Option {
	return func(a *Adapter) {
		a.countryPrefix = prefix
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

// Adapter delivers orders over fax: it renders the order document and hands
// the result to the fax backend. Failures carry the shared failure markers
// so the dispatcher can classify them without knowing the channel.
type Adapter struct {
	logger        zerolog.Logger
	provider      faxprovider.Provider
	renderer      render.Renderer
	simulate      bool
	countryPrefix string
	maxRawChars   int
}

// NewAdapter constructs a fax adapter using the provided dependencies.
func NewAdapter(provider faxprovider.Provider, renderer render.Renderer, logger zerolog.Logger, opts ...Option) (*Adapter, error) {
	if provider == nil {
		return nil, errors.New("fax adapter: provider dependency is required")
	}
	if renderer == nil {
		return nil, errors.New("fax adapter: renderer dependency is required")
	}
	if reflect.ValueOf(logger).IsZero() {
		logger = zerolog.Nop()
	}

	a := &Adapter{
		logger:        logger,
		provider:      provider,
		renderer:      renderer,
		countryPrefix: "+81",
		maxRawChars:   common.DefaultRawBodyLimit,
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
	return order.MethodFax
}

// Dispatch validates the destination, renders the document, and transmits
// it. In simulation mode the transmit step is replaced with a deterministic
// synthetic receipt; validation and rendering still run in full.
func (a *Adapter) Dispatch(ctx context.Context, o *order.Order) (*common.Receipt, error) {
	if o == nil {
		return nil, common.WrapValidation(errors.New("fax adapter: order is nil"))
	}

	number, err := util.NormalizeFax(o.FaxNumber, a.countryPrefix)
	if err != nil {
		return nil, common.WrapValidation(fmt.Errorf("fax adapter: %w", err))
	}

	doc, err := a.renderer.Render(o)
	if err != nil {
		return nil, common.WrapRendering(fmt.Errorf("fax adapter: %w", err))
	}

	if a.simulate {
		receipt := &common.Receipt{
			ProviderRef: common.SimulatedRef(order.MethodFax, o.Reference),
			Detail:      fmt.Sprintf("simulated fax to %s (%d pages)", number, doc.Pages),
			Simulated:   true,
			Meta:        map[string]string{"pages": strconv.Itoa(doc.Pages)},
		}
		a.logger.Debug().
			Str("reference", o.Reference).
			Str("destination", number).
			Int("pages", doc.Pages).
			Msg("fax adapter simulated send")
		return receipt, nil
	}

	raw, err := a.provider.Send(ctx, &faxprovider.Payload{
		Reference: o.Reference,
		To:        number,
		Filename:  o.Reference + ".pdf",
		Document:  doc.PDF,
	})
	if err != nil {
		wrapped := a.wrapError(err, raw)
		a.logger.Warn().
			Str("reference", o.Reference).
			Str("destination", number).
			Str("provider_status", rawStatus(raw)).
			Err(err).
			Msg("fax adapter send failed")
		return nil, wrapped
	}

	receipt := &common.Receipt{
		ProviderRef: raw.ID,
		Detail:      fmt.Sprintf("fax queued to %s (%d pages)", number, doc.Pages),
		Raw:         common.TruncateRaw(raw.Body, a.maxRawChars),
		Meta: map[string]string{
			"pages":           strconv.Itoa(doc.Pages),
			"provider_status": raw.Status,
		},
	}
	a.logger.Debug().
		Str("reference", o.Reference).
		Str("destination", number).
		Str("provider_id", raw.ID).
		Msg("fax adapter send succeeded")
	return receipt, nil
}

// wrapError classifies backend failures. A 4xx response means the gateway was
// reached and refused the document; 5xx and network failures are outages.
func (a *Adapter) wrapError(err error, raw *faxprovider.RawResponse) error {
	switch {
	case errors.Is(err, faxprovider.ErrNotConfigured):
		return common.WrapConfigMissing(err)
	case raw != nil && raw.Code >= 400 && raw.Code < 500:
		return common.WrapRejected(err)
	case common.IsTimeout(err):
		return common.WrapUnreachable(err)
	default:
		return common.WrapUnreachable(err)
	}
}

func rawStatus(raw *faxprovider.RawResponse) string {
	if raw == nil {
		return ""
	}
	return raw.Status
}

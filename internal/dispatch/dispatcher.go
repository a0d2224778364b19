package dispatch

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/rs/zerolog"

	common "github.com/replenmobile/ordersend/internal/adapters/common"
	"github.com/replenmobile/ordersend/internal/order"
)

// DefaultTimeout bounds one adapter dispatch, transport included.
const DefaultTimeout = 30 * time.Second

// Option customises dispatcher behaviour.
type Option func(*Dispatcher)

// WithTimeout bounds the time one dispatch may spend inside an adapter.
// Zero disables the bound.
func WithTimeout(timeout time.Duration) Option {
	return func(d *Dispatcher) {
		if timeout >= 0 {
			d.timeout = timeout
		}
	}
}

// WithRecorder attaches a delivery recorder.
func WithRecorder(recorder Recorder) Option {
	return func(d *Dispatcher) {
		d.recorder = recorder
	}
}

// WithObserver attaches a metrics observer.
func WithObserver(observer Observer) Option {
	return func(d *Dispatcher) {
		d.observer = observer
	}
}

// WithClock replaces the clock used for references and timestamps.
func WithClock(now func() time.Time) Option {
	return func(d *Dispatcher) {
		if now != nil {
			d.now = now
		}
	}
}

// Dispatcher routes validated orders to the adapter serving their contact
// method. SendOrder is total: every call returns a Result, and adapter
// panics degrade to an unreachable-transport failure instead of crossing
// the boundary.
type Dispatcher struct {
	logger   zerolog.Logger
	adapters map[order.ContactMethod]common.Adapter
	timeout  time.Duration
	recorder Recorder
	observer Observer
	now      func() time.Time
}

// New constructs a dispatcher over the supplied adapters.
func New(adapters []common.Adapter, logger zerolog.Logger, opts ...Option) (*Dispatcher, error) {
	if len(adapters) == 0 {
		return nil, errors.New("dispatch: at least one adapter is required")
	}
	if reflect.ValueOf(logger).IsZero() {
		logger = zerolog.Nop()
	}

	routes := make(map[order.ContactMethod]common.Adapter, len(adapters))
	for _, adapter := range adapters {
		if adapter == nil {
			return nil, errors.New("dispatch: nil adapter supplied")
		}
		channel := adapter.Channel()
		if _, exists := routes[channel]; exists {
			return nil, fmt.Errorf("dispatch: duplicate adapter for channel %q", channel)
		}
		routes[channel] = adapter
	}

	d := &Dispatcher{
		logger:   logger,
		adapters: routes,
		timeout:  DefaultTimeout,
		now:      time.Now,
	}

	for _, opt := range opts {
		if opt != nil {
			opt(d)
		}
	}

	return d, nil
}

// SendOrder validates and routes one order, returning the delivery outcome.
// The order is normalized in place: a missing reference and issue date are
// filled before validation so the result always names the order it covers.
func (d *Dispatcher) SendOrder(ctx context.Context, o *order.Order) (result *Result) {
	started := d.now()

	defer func() {
		if r := recover(); r != nil {
			d.logger.Error().
				Interface("panic", r).
				Str("reference", referenceOf(o)).
				Msg("dispatch recovered from panic")
			result = d.failure(o, common.CodeTransportUnreachable, fmt.Sprintf("dispatch: internal failure: %v", r))
		}
		d.finish(ctx, o, result, started)
	}()

	if o == nil {
		return d.failure(nil, common.CodeValidationFailed, "dispatch: order is required")
	}

	o.Normalize(d.now())

	if err := o.Validate(); err != nil {
		return d.failure(o, common.CodeValidationFailed, err.Error())
	}

	// Destination presence is a routing concern; whether the value parses
	// belongs to the adapter behind it.
	if strings.TrimSpace(o.Destination()) == "" {
		return d.failure(o, common.CodeValidationFailed, fmt.Sprintf("dispatch: no destination for method %s", o.Method))
	}

	adapter, ok := d.adapters[o.Method]
	if !ok {
		return d.failure(o, common.CodeValidationFailed, fmt.Sprintf("dispatch: unsupported contact method %q", o.Method))
	}

	sendCtx := ctx
	if d.timeout > 0 {
		var cancel context.CancelFunc
		sendCtx, cancel = context.WithTimeout(ctx, d.timeout)
		defer cancel()
	}

	receipt, err := adapter.Dispatch(sendCtx, o)
	if err != nil {
		code, classified := common.CodeOf(err)
		if !classified {
			code = common.CodeTransportUnreachable
		}
		return d.failure(o, code, err.Error())
	}

	return &Result{
		Reference:   o.Reference,
		Channel:     o.Method,
		Success:     true,
		Simulated:   receipt.Simulated,
		ProviderRef: receipt.ProviderRef,
		Message:     receipt.Detail,
		CompletedAt: d.now(),
	}
}

// Channels lists the contact methods this dispatcher can route, in no
// particular order.
func (d *Dispatcher) Channels() []order.ContactMethod {
	channels := make([]order.ContactMethod, 0, len(d.adapters))
	for channel := range d.adapters {
		channels = append(channels, channel)
	}
	return channels
}

func (d *Dispatcher) failure(o *order.Order, code common.Code, message string) *Result {
	result := &Result{
		Success:     false,
		Message:     message,
		Code:        code,
		CompletedAt: d.now(),
	}
	if o != nil {
		result.Reference = o.Reference
		result.Channel = o.Method
	}
	return result
}

// finish handles metrics, the analytics trail, and the dispatch log line.
// Bookkeeping is observability only: a panicking recorder or observer is
// logged and swallowed, never surfaced through the result.
func (d *Dispatcher) finish(ctx context.Context, o *order.Order, result *Result, started time.Time) {
	defer func() {
		if r := recover(); r != nil {
			d.logger.Error().
				Interface("panic", r).
				Msg("dispatch bookkeeping panicked")
		}
	}()

	if result == nil {
		return
	}

	elapsed := d.now().Sub(started)

	if d.observer != nil {
		d.observer.Observe(string(result.Channel), result.Outcome(), elapsed.Seconds())
	}
	if d.recorder != nil && o != nil {
		d.recorder.RecordDelivery(ctx, o, result)
	}

	event := d.logger.Info()
	if !result.Success {
		event = d.logger.Warn()
	}
	event.
		Str("reference", result.Reference).
		Str("channel", string(result.Channel)).
		Bool("success", result.Success).
		Bool("simulated", result.Simulated).
		Str("outcome", result.Outcome()).
		Dur("duration", elapsed).
		Msg("order dispatch finished")
}

func referenceOf(o *order.Order) string {
	if o == nil {
		return ""
	}
	return o.Reference
}

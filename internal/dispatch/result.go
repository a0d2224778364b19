package dispatch

import (
	"context"
	"time"

	common "github.com/replenmobile/ordersend/internal/adapters/common"
	"github.com/replenmobile/ordersend/internal/order"
)

// Result is the outcome of one dispatch attempt. Every attempt produces
// exactly one Result; failures are encoded in Success and Code, never
// raised. The JSON form doubles as the API response body.
type Result struct {
	Reference   string              `json:"reference"`
	Channel     order.ContactMethod `json:"channel,omitempty"`
	Success     bool                `json:"success"`
	Simulated   bool                `json:"simulated,omitempty"`
	ProviderRef string              `json:"provider_ref,omitempty"`
	Message     string              `json:"message"`
	Code        common.Code         `json:"code,omitempty"`
	CompletedAt time.Time           `json:"completed_at"`
}

// Outcome is the low-cardinality label used for metrics and analytics.
func (r *Result) Outcome() string {
	switch {
	case r.Success && r.Simulated:
		return "simulated"
	case r.Success:
		return "success"
	default:
		return string(r.Code)
	}
}

// Recorder receives finished results for the delivery analytics trail.
// Implementations must not block the dispatch path; failures to record are
// their own concern and never alter the result.
type Recorder interface {
	RecordDelivery(ctx context.Context, o *order.Order, result *Result)
}

// Observer is notified of every finished dispatch for metrics purposes.
type Observer interface {
	Observe(channel, outcome string, seconds float64)
}

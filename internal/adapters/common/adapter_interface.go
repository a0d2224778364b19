package common

import (
	"context"

	"github.com/replenmobile/ordersend/internal/order"
)

// Adapter is the uniform capability set implemented by every delivery channel:
// destination validation, artifact construction and the transport call,
// exposed through a single Dispatch entry point. Errors returned from Dispatch
// always carry one taxonomy sentinel so the router can normalize them.
type Adapter interface {
	Channel() order.ContactMethod
	Dispatch(ctx context.Context, o *order.Order) (*Receipt, error)
}

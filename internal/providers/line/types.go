package line

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// Payload carries the templated order texts for one LINE push. Adapters are
// expected to chunk long documents into messages before building it.
type Payload struct {
	Reference string
	To        string
	Messages  []string
}

// RawResponse mirrors the low level backend response that adapters inspect
// to derive delivery results.
type RawResponse struct {
	ID        string
	Code      int
	Status    string
	Body      string
	Timestamp time.Time
}

// Provider is the contract exposed by the LINE backend implementation.
type Provider interface {
	Send(ctx context.Context, payload *Payload) (*RawResponse, error)
}

// ErrNotConfigured is returned by the disabled provider when no channel
// token is supplied. Adapters map it to a configuration failure instead of
// a transport one.
var ErrNotConfigured = errors.New("line provider not configured")

// Disabled stands in for the LINE backend when no channel token is supplied.
// Construction never fails; every Send reports the missing configuration.
type Disabled struct {
	reason string
}

// NewDisabled returns a provider that rejects every send with the reason.
func NewDisabled(reason string) *Disabled {
	return &Disabled{reason: reason}
}

// Send always fails with ErrNotConfigured.
func (d *Disabled) Send(context.Context, *Payload) (*RawResponse, error) {
	if d.reason == "" {
		return nil, ErrNotConfigured
	}
	return nil, fmt.Errorf("%w: %s", ErrNotConfigured, d.reason)
}

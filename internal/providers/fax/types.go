package fax

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// Payload carries one rendered order document to the fax backend. Adapters
// are expected to normalize destinations to E.164 before building it.
type Payload struct {
	Reference string
	To        string
	From      string
	Filename  string
	Document  []byte
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

// Provider is the contract exposed by fax backend implementations.
type Provider interface {
	Send(ctx context.Context, payload *Payload) (*RawResponse, error)
}

// ErrNotConfigured is returned by the disabled provider when fax credentials
// are absent. Adapters map it to a configuration failure instead of a
// transport one.
var ErrNotConfigured = errors.New("fax provider not configured")

// Disabled stands in for the fax backend when no credentials are supplied.
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

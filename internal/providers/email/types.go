package email

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// Payload is the canonical representation of an outbound order email passed
// to the provider. Adapters are expected to normalize their inputs to this
// structure. TextBody is mandatory; when HTMLBody is present the backend
// emits a multipart/alternative message.
type Payload struct {
	MessageID string
	From      string
	To        []string
	Subject   string
	TextBody  string
	HTMLBody  string
	Headers   map[string]string
}

// RawResponse mirrors the low level provider response that adapters inspect
// to derive delivery results.
type RawResponse struct {
	ID        string
	Code      int
	Status    string
	Body      string
	Timestamp time.Time
}

// Provider is the contract exposed by the email backend implementations.
type Provider interface {
	Send(ctx context.Context, payload *Payload) (*RawResponse, error)
}

// ErrNotConfigured is returned by the disabled provider when no email
// backend is configured. Adapters map it to a configuration failure instead
// of a transport one.
var ErrNotConfigured = errors.New("email provider not configured")

// Disabled stands in for the email backend when neither SMTP nor Resend
// credentials are supplied. Construction never fails; every Send reports the
// missing configuration.
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

// Package catalog resolves JAN barcodes to product details so scanned
// shelf codes can be turned into order lines.
package catalog

import (
	"context"
	"errors"
	"fmt"
)

// Product is one catalog entry resolved from a barcode.
type Product struct {
	JAN      string `json:"jan"`
	Name     string `json:"name"`
	Price    int    `json:"price"`
	ImageURL string `json:"image_url,omitempty"`
	Category string `json:"category,omitempty"`
}

// Client looks up products by JAN code.
type Client interface {
	Lookup(ctx context.Context, jan string) (*Product, error)
	LookupBatch(ctx context.Context, jans []string) (map[string]*Product, error)
}

var (
	// ErrNotFound is returned when no product matches the barcode.
	ErrNotFound = errors.New("product not found")
	// ErrInvalidJAN is returned for barcodes that are not 8 or 13 digits.
	ErrInvalidJAN = errors.New("jan code must be numeric")
	// ErrNotConfigured is returned when catalog lookups are not configured.
	ErrNotConfigured = errors.New("catalog lookup not configured")
)

// Disabled is a Client placeholder used when catalog credentials are absent.
// Every lookup reports the missing configuration.
type Disabled struct {
	reason string
}

// NewDisabled builds a disabled client with a human readable reason.
func NewDisabled(reason string) *Disabled {
	return &Disabled{reason: reason}
}

// Lookup always fails with ErrNotConfigured.
func (d *Disabled) Lookup(ctx context.Context, jan string) (*Product, error) {
	return nil, fmt.Errorf("%w: %s", ErrNotConfigured, d.reason)
}

// LookupBatch always fails with ErrNotConfigured.
func (d *Disabled) LookupBatch(ctx context.Context, jans []string) (map[string]*Product, error) {
	return nil, fmt.Errorf("%w: %s", ErrNotConfigured, d.reason)
}

// Package vision extracts order lines from photographed invoices and
// delivery slips so suppliers' paperwork can seed a reorder.
package vision

import (
	"context"
	"errors"
	"fmt"
)

// ScannedItem is one line extracted from an invoice image. Price is the tax
// inclusive total for the line, in whole yen.
type ScannedItem struct {
	Name        string `json:"name"`
	Price       int    `json:"price"`
	ProductCode string `json:"product_code,omitempty"`
}

// Parser reads invoice images.
type Parser interface {
	ParseInvoice(ctx context.Context, image []byte, mimeType string) ([]ScannedItem, error)
}

// ErrNotConfigured is returned when invoice parsing is not configured.
var ErrNotConfigured = errors.New("invoice parsing not configured")

// Disabled is a Parser placeholder used when no vision credentials are
// configured.
type Disabled struct {
	reason string
}

// NewDisabled builds a disabled parser with a human readable reason.
func NewDisabled(reason string) *Disabled {
	return &Disabled{reason: reason}
}

// ParseInvoice always fails with ErrNotConfigured.
func (d *Disabled) ParseInvoice(ctx context.Context, image []byte, mimeType string) ([]ScannedItem, error) {
	return nil, fmt.Errorf("%w: %s", ErrNotConfigured, d.reason)
}

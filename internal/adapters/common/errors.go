package common

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
)

// Code identifies one failure class of the shared dispatch taxonomy. Codes are
// stable identifiers surfaced to callers in delivery results.
type Code string

const (
	CodeValidationFailed     Code = "ValidationFailed"
	CodeRenderingUnavailable Code = "RenderingUnavailable"
	CodeTransportRejected    Code = "TransportRejected"
	CodeTransportUnreachable Code = "TransportUnreachable"
	CodeConfigurationMissing Code = "ConfigurationMissing"
)

// Sentinel errors adapters use when classifying failures. Every error that
// crosses an adapter boundary wraps exactly one of these.
var (
	ErrValidation    = errors.New("validation failed")
	ErrRendering     = errors.New("rendering unavailable")
	ErrRejected      = errors.New("transport rejected")
	ErrUnreachable   = errors.New("transport unreachable")
	ErrConfigMissing = errors.New("configuration missing")
)

// WrapValidation annotates an error as a destination or payload validation
// failure that never reached the transport.
func WrapValidation(err error) error {
	return wrap(ErrValidation, err)
}

// WrapRendering annotates an error as a document rendering failure.
func WrapRendering(err error) error {
	return wrap(ErrRendering, err)
}

// WrapRejected annotates an error as an explicit provider refusal.
func WrapRejected(err error) error {
	return wrap(ErrRejected, err)
}

// WrapUnreachable annotates an error as a network or timeout failure.
func WrapUnreachable(err error) error {
	return wrap(ErrUnreachable, err)
}

// WrapConfigMissing annotates an error as absent provider credentials.
func WrapConfigMissing(err error) error {
	return wrap(ErrConfigMissing, err)
}

func wrap(sentinel, err error) error {
	if err == nil {
		return sentinel
	}
	return fmt.Errorf("%w: %v", sentinel, err)
}

// CodeOf maps a classified error onto its taxonomy code. The second return is
// false when the error carries no taxonomy sentinel.
func CodeOf(err error) (Code, bool) {
	switch {
	case err == nil:
		return "", false
	case errors.Is(err, ErrValidation):
		return CodeValidationFailed, true
	case errors.Is(err, ErrRendering):
		return CodeRenderingUnavailable, true
	case errors.Is(err, ErrRejected):
		return CodeTransportRejected, true
	case errors.Is(err, ErrConfigMissing):
		return CodeConfigurationMissing, true
	case errors.Is(err, ErrUnreachable):
		return CodeTransportUnreachable, true
	default:
		return "", false
	}
}

// Classify maps an arbitrary error onto the taxonomy. Already classified
// errors pass through unchanged; everything else is treated as unreachable so
// callers may retry.
func Classify(err error) error {
	if err == nil {
		return nil
	}
	if _, ok := CodeOf(err); ok {
		return err
	}
	return WrapUnreachable(err)
}

// Transient reports whether the error class is worth retrying by the caller.
func Transient(err error) bool {
	return errors.Is(err, ErrUnreachable)
}

// IsTimeout reports whether an error stems from a deadline, cancellation or
// network timeout.
func IsTimeout(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return true
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}

	return strings.Contains(strings.ToLower(err.Error()), "timeout")
}

package util

import (
	"errors"
	"fmt"
	"net/mail"
	"regexp"
	"strings"
	"unicode"
)

var (
	// ErrInvalidEmail is returned when an email address cannot be parsed.
	ErrInvalidEmail = errors.New("invalid email address")
	// ErrInvalidFax is returned when a fax number cannot be normalized to E.164.
	ErrInvalidFax = errors.New("invalid fax number")
	// ErrInvalidLineID is returned when a messaging account id is malformed.
	ErrInvalidLineID = errors.New("invalid line account id")
	// ErrInvalidJAN is returned when a barcode is not a JAN/EAN code.
	ErrInvalidJAN = errors.New("invalid jan code")
)

var (
	e164Pattern   = regexp.MustCompile(`^\+[1-9]\d{1,14}$`)
	lineIDPattern = regexp.MustCompile(`^U[0-9A-Za-z._-]{1,63}$`)
	digitsPattern = regexp.MustCompile(`^\d+$`)
)

// NormalizeEmail validates and normalizes an email address. The returned value
// is lowercased and stripped of surrounding whitespace.
func NormalizeEmail(value string) (string, error) {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return "", fmt.Errorf("%w: value is empty", ErrInvalidEmail)
	}

	addr, err := mail.ParseAddress(trimmed)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidEmail, err)
	}

	// Disallow display names to keep envelopes deterministic.
	if addr.Name != "" || addr.Address == "" {
		return "", fmt.Errorf("%w: must not include display name", ErrInvalidEmail)
	}

	if addr.Address != trimmed {
		return "", fmt.Errorf("%w: unexpected formatting", ErrInvalidEmail)
	}

	return strings.ToLower(addr.Address), nil
}

// NormalizeFax normalizes a fax number to E.164. Separator characters are
// stripped first; a number with a leading zero is treated as domestic and
// rewritten with the supplied country prefix (e.g. "+81" turns 03-1234-5678
// into +81312345678).
func NormalizeFax(value, countryPrefix string) (string, error) {
	stripped := strings.Map(func(r rune) rune {
		switch {
		case r == ' ' || r == '-' || r == '(' || r == ')' || r == '.':
			return -1
		case unicode.IsSpace(r):
			return -1
		default:
			return r
		}
	}, strings.TrimSpace(value))

	if stripped == "" {
		return "", fmt.Errorf("%w: value is empty", ErrInvalidFax)
	}

	if !strings.HasPrefix(stripped, "+") {
		if countryPrefix != "" && strings.HasPrefix(stripped, "0") && digitsPattern.MatchString(stripped) {
			stripped = countryPrefix + stripped[1:]
		} else {
			return "", fmt.Errorf("%w: %q is not in international format", ErrInvalidFax, value)
		}
	}

	if !e164Pattern.MatchString(stripped) {
		return "", fmt.Errorf("%w: %q", ErrInvalidFax, value)
	}

	return stripped, nil
}

// ValidateLineID checks a messaging-platform account identifier. The format is
// deliberately loose: platform ids start with U but short test ids must still
// reach the transport, so only the prefix and character set are enforced.
func ValidateLineID(value string) (string, error) {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return "", fmt.Errorf("%w: value is empty", ErrInvalidLineID)
	}
	if !lineIDPattern.MatchString(trimmed) {
		return "", fmt.Errorf("%w: %q", ErrInvalidLineID, trimmed)
	}
	return trimmed, nil
}

// NormalizeJAN validates a JAN/EAN barcode: 8 or 13 digits, separators allowed.
func NormalizeJAN(value string) (string, error) {
	stripped := strings.Map(func(r rune) rune {
		if r == ' ' || r == '-' {
			return -1
		}
		return r
	}, strings.TrimSpace(value))

	if stripped == "" {
		return "", fmt.Errorf("%w: value is empty", ErrInvalidJAN)
	}
	if !digitsPattern.MatchString(stripped) {
		return "", fmt.Errorf("%w: %q contains non-digits", ErrInvalidJAN, value)
	}
	if len(stripped) != 8 && len(stripped) != 13 {
		return "", fmt.Errorf("%w: expected 8 or 13 digits, got %d", ErrInvalidJAN, len(stripped))
	}
	return stripped, nil
}

// EnsureMaxBytes checks that a byte slice does not exceed the specified size.
// A non-positive limit disables the check.
func EnsureMaxBytes(field string, b []byte, max int) error {
	if max <= 0 {
		return nil
	}
	if len(b) > max {
		return fmt.Errorf("%s exceeds maximum size of %d bytes", field, max)
	}
	return nil
}

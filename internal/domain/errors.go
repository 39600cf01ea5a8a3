package domain

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"unicode/utf8"
)

// Error taxonomy. Callers wrap these with fmt.Errorf("...: %w") and
// classify with errors.Is or KindOf.
var (
	// ErrTransientIO is a network or server failure; the next pass retries
	ErrTransientIO = errors.New("transient I/O failure")
	// ErrNotFound means a referenced entity vanished; skip it
	ErrNotFound = errors.New("entity not found")
	// ErrValidation means a source returned a malformed entity; skip and record
	ErrValidation = errors.New("validation failed")
	// ErrFatalConfig means required configuration is missing; abort startup
	ErrFatalConfig = errors.New("fatal configuration error")

	// ErrDuplicateMapping is returned when a mapping would break id uniqueness
	ErrDuplicateMapping = errors.New("duplicate mapping")
)

// ErrorKind names an error class for reports
type ErrorKind string

const (
	KindTransientIO ErrorKind = "transient_io"
	KindNotFound    ErrorKind = "not_found"
	KindValidation  ErrorKind = "validation"
	KindFatalConfig ErrorKind = "fatal_config"
	KindDuplicate   ErrorKind = "duplicate_mapping"
	KindUnknown     ErrorKind = "unknown"
)

// KindOf classifies err against the taxonomy
func KindOf(err error) ErrorKind {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrTransientIO):
		return KindTransientIO
	case errors.Is(err, ErrNotFound):
		return KindNotFound
	case errors.Is(err, ErrValidation):
		return KindValidation
	case errors.Is(err, ErrFatalConfig):
		return KindFatalConfig
	case errors.Is(err, ErrDuplicateMapping):
		return KindDuplicate
	default:
		return KindUnknown
	}
}

// StatusError converts a non-2xx HTTP response into a classified error.
// 5xx and 429 are transient, 404 is not found, other 4xx are validation
// failures.
func StatusError(op string, code int, body []byte) error {
	msg := truncate(strings.TrimSpace(string(body)), 200)

	var kind error
	switch {
	case code == http.StatusNotFound:
		kind = ErrNotFound
	case code == http.StatusTooManyRequests || code >= 500:
		kind = ErrTransientIO
	default:
		kind = ErrValidation
	}
	return fmt.Errorf("%s: HTTP %d %s: %w", op, code, msg, kind)
}

// TransportError marks a failed round trip as transient
func TransportError(op string, err error) error {
	return fmt.Errorf("%s: %v: %w", op, err, ErrTransientIO)
}

// truncate cuts s to at most n bytes without splitting a UTF-8 sequence
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}

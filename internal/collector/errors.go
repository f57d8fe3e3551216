package collector

import (
	"errors"
	"fmt"
)

// ErrorKind categorizes a collection failure.
type ErrorKind string

const (
	// KindNetwork is a connection-level failure (refused, DNS, timeout).
	KindNetwork ErrorKind = "network"
	// KindRateLimit is an HTTP 429 rejection.
	KindRateLimit ErrorKind = "rate_limit"
	// KindServer is an HTTP 5xx response.
	KindServer ErrorKind = "server"
	// KindClient is an HTTP 4xx response other than 429.
	KindClient ErrorKind = "client"
	// KindUnknownSymbol means the provider does not know the instrument.
	KindUnknownSymbol ErrorKind = "unknown_symbol"
	// KindMalformed means the payload could not be parsed.
	KindMalformed ErrorKind = "malformed"
	// KindEmpty means a mandatory result came back with no rows.
	KindEmpty ErrorKind = "empty"
)

// CollectionError is a classified failure from a collector. Permanent errors
// must not be retried.
type CollectionError struct {
	Kind       ErrorKind
	Permanent  bool
	StatusCode int
	Message    string
	Cause      error
}

func (e *CollectionError) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("%s error (status %d): %s", e.Kind, e.StatusCode, e.Message)
	}
	return fmt.Sprintf("%s error: %s", e.Kind, e.Message)
}

func (e *CollectionError) Unwrap() error { return e.Cause }

// NewNetworkError wraps a transport failure; retryable.
func NewNetworkError(cause error) *CollectionError {
	return &CollectionError{Kind: KindNetwork, Message: "request failed", Cause: cause}
}

// NewRateLimitError marks an HTTP 429; retryable with a longer backoff.
func NewRateLimitError(status int) *CollectionError {
	return &CollectionError{Kind: KindRateLimit, StatusCode: status, Message: "rate limited"}
}

// NewServerError marks an HTTP 5xx; retryable.
func NewServerError(status int) *CollectionError {
	return &CollectionError{Kind: KindServer, StatusCode: status, Message: "server error"}
}

// NewClientError marks a non-429 HTTP 4xx; permanent.
func NewClientError(status int) *CollectionError {
	return &CollectionError{Kind: KindClient, Permanent: true, StatusCode: status, Message: "client error"}
}

// NewUnknownSymbolError marks an instrument the provider rejects; permanent.
func NewUnknownSymbolError(symbol string) *CollectionError {
	return &CollectionError{Kind: KindUnknownSymbol, Permanent: true, Message: fmt.Sprintf("symbol %s not known to provider", symbol)}
}

// NewMalformedError marks an unparseable payload; permanent unless a known
// alternate parse succeeds, which the caller decides.
func NewMalformedError(msg string, cause error) *CollectionError {
	return &CollectionError{Kind: KindMalformed, Permanent: true, Message: msg, Cause: cause}
}

// NewEmptyResultError marks a mandatory result that came back empty; permanent.
func NewEmptyResultError(symbol string) *CollectionError {
	return &CollectionError{Kind: KindEmpty, Permanent: true, Message: fmt.Sprintf("no rows returned for %s", symbol)}
}

// IsPermanent reports whether err carries a permanent CollectionError.
func IsPermanent(err error) bool {
	var ce *CollectionError
	return errors.As(err, &ce) && ce.Permanent
}

// IsRateLimit reports whether err carries a rate-limit CollectionError.
func IsRateLimit(err error) bool {
	var ce *CollectionError
	return errors.As(err, &ce) && ce.Kind == KindRateLimit
}

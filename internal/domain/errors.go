package domain

import (
	"errors"
	"fmt"
	"strings"
)

// ErrorKind classifies a single provider failure. The cascade uses the kind
// for logging and failure aggregation only; every kind is handled the same
// way (skip to the next provider).
type ErrorKind string

const (
	ErrorKindAuth              ErrorKind = "AUTH"
	ErrorKindRateLimit         ErrorKind = "RATE_LIMIT"
	ErrorKindNotFound          ErrorKind = "NOT_FOUND"
	ErrorKindTransientNetwork  ErrorKind = "TRANSIENT_NETWORK"
	ErrorKindMalformedResponse ErrorKind = "MALFORMED_RESPONSE"
)

// AdapterError is a classified failure from one provider attempt.
// Subject holds whatever the attempt was for, a symbol or a currency pair.
type AdapterError struct {
	Kind     ErrorKind
	Provider string
	Subject  string
	Err      error
}

func (e *AdapterError) Error() string {
	msg := fmt.Sprintf("%s: %s", e.Provider, e.Kind)
	if e.Subject != "" {
		msg = fmt.Sprintf("%s: %s: %s", e.Provider, e.Subject, e.Kind)
	}
	if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

func (e *AdapterError) Unwrap() error {
	return e.Err
}

// IsErrorKind reports whether err or anything it wraps is an AdapterError of
// the given kind
func IsErrorKind(err error, kind ErrorKind) bool {
	var adapterErr *AdapterError
	if errors.As(err, &adapterErr) {
		return adapterErr.Kind == kind
	}
	return false
}

// CascadeAttempt records one failed provider attempt inside a cascade
// failure, in cascade priority order.
type CascadeAttempt struct {
	Provider string
	Err      error
}

// CascadeFailure reports that every eligible provider failed for a request.
// Providers skipped for missing credentials never appear in Attempts.
type CascadeFailure struct {
	Subject  string
	Attempts []CascadeAttempt
}

func (e *CascadeFailure) Error() string {
	parts := make([]string, 0, len(e.Attempts))
	for _, a := range e.Attempts {
		parts = append(parts, fmt.Sprintf("%s: %v", a.Provider, a.Err))
	}
	return fmt.Sprintf("all providers failed for %s: %s", e.Subject, strings.Join(parts, "; "))
}

// ConversionUnavailableError reports that no provider could supply the FX
// rate needed to convert between two currencies.
type ConversionUnavailableError struct {
	From Currency
	To   Currency
	Err  error
}

func (e *ConversionUnavailableError) Error() string {
	return fmt.Sprintf("no conversion rate available from %s to %s: %v", e.From, e.To, e.Err)
}

func (e *ConversionUnavailableError) Unwrap() error {
	return e.Err
}

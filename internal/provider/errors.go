// Package provider defines the failure taxonomy and provenance markers shared by
// the upstream air-quality and weather adapters.
package provider

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
)

// Upstream failure kinds. Every adapter error wraps exactly one of these.
var (
	// ErrUpstreamUnreachable is returned when the provider could not be reached
	// or answered with a non-success status.
	ErrUpstreamUnreachable = errors.New("upstream unreachable")

	// ErrUpstreamTimeout is returned when the provider did not answer within the
	// adapter's time budget.
	ErrUpstreamTimeout = errors.New("upstream timeout")

	// ErrMalformedResponse is returned when the provider answered but the payload
	// could not be translated into a normalized reading.
	ErrMalformedResponse = errors.New("malformed upstream response")
)

// FetchError describes a failed upstream call.
type FetchError struct {
	Provider string
	Kind     error
	Err      error
}

func (e *FetchError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %v", e.Provider, e.Kind)
	}
	return fmt.Sprintf("%s: %v: %v", e.Provider, e.Kind, e.Err)
}

// Unwrap exposes both the failure kind and the underlying cause to errors.Is/As.
func (e *FetchError) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

// NewFetchError wraps err for the named provider, classifying it when kind is nil.
func NewFetchError(providerName string, kind, err error) *FetchError {
	if kind == nil {
		kind = Classify(err)
	}
	return &FetchError{Provider: providerName, Kind: kind, Err: err}
}

// Classify maps a transport or decoding error onto the upstream failure taxonomy.
// Errors that already carry a kind keep it.
func Classify(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, ErrUpstreamTimeout):
		return ErrUpstreamTimeout
	case errors.Is(err, ErrMalformedResponse):
		return ErrMalformedResponse
	case errors.Is(err, ErrUpstreamUnreachable):
		return ErrUpstreamUnreachable
	case errors.Is(err, context.DeadlineExceeded):
		return ErrUpstreamTimeout
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return ErrUpstreamTimeout
	}

	var syntaxErr *json.SyntaxError
	var typeErr *json.UnmarshalTypeError
	if errors.As(err, &syntaxErr) || errors.As(err, &typeErr) || errors.Is(err, io.ErrUnexpectedEOF) {
		return ErrMalformedResponse
	}

	return ErrUpstreamUnreachable
}

// ClassifyDecode classifies an error raised while reading or decoding a
// response body. Anything other than a timeout is a malformed response.
func ClassifyDecode(err error) error {
	if err == nil {
		return nil
	}
	if kind := Classify(err); kind == ErrUpstreamTimeout {
		return kind
	}
	return ErrMalformedResponse
}

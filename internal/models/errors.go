package models

import (
	"errors"
	"fmt"
)

// ErrNotFound marks reads that found no usable row, e.g. no fresh
// price for one side of an arbitrage pair.
var ErrNotFound = errors.New("not found")

// TransportError wraps an HTTP-level failure against an upstream API.
type TransportError struct {
	URL string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("transport error for %s: %v", e.URL, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// DecodeError wraps a JSON or decimal parse failure.
type DecodeError struct {
	What string
	Err  error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("decode error (%s): %v", e.What, e.Err)
}

func (e *DecodeError) Unwrap() error { return e.Err }

// StoreError wraps a database driver error.
type StoreError struct {
	Op  string
	Err error
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("store error in %s: %v", e.Op, e.Err)
}

func (e *StoreError) Unwrap() error { return e.Err }

// ExternalAPIError wraps an FX provider failure; it drives the FX
// fallback chain.
type ExternalAPIError struct {
	Provider string
	Err      error
}

func (e *ExternalAPIError) Error() string {
	return fmt.Sprintf("external api %s: %v", e.Provider, e.Err)
}

func (e *ExternalAPIError) Unwrap() error { return e.Err }

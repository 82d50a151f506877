package model

import (
	"errors"
	"fmt"
	"net/http"
)

var errNoFinalResponse = errors.New("model produced no final response")

// FailureKind is the structured failure category reported by a provider
// adapter. KindUnknown means the adapter had no structured signal (for
// example a transport error) and callers must fall back to inspecting text.
type FailureKind int

const (
	// KindUnknown carries no structured information.
	KindUnknown FailureKind = iota
	// KindRateLimited signals provider-side throttling.
	KindRateLimited
	// KindTransient signals temporary unavailability worth retrying.
	KindTransient
	// KindFatal signals a permanent failure (bad request, auth, ...).
	KindFatal
)

// String returns the lower-case name of the kind.
func (k FailureKind) String() string {
	switch k {
	case KindRateLimited:
		return "rate_limited"
	case KindTransient:
		return "transient"
	case KindFatal:
		return "fatal"
	default:
		return "unknown"
	}
}

// Error is the failure type returned by provider adapters.
type Error struct {
	Provider   string
	Model      string
	Kind       FailureKind
	StatusCode int
	Err        error
}

// NewError wraps err with the kind derived from the HTTP status code.
func NewError(provider, model string, status int, err error) *Error {
	return &Error{
		Provider:   provider,
		Model:      model,
		Kind:       KindForStatus(status),
		StatusCode: status,
		Err:        err,
	}
}

func (e *Error) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("%s/%s: %s (http %d): %v", e.Provider, e.Model, e.Kind, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("%s/%s: %v", e.Provider, e.Model, e.Err)
}

// Unwrap exposes the underlying SDK or transport error.
func (e *Error) Unwrap() error { return e.Err }

// KindForStatus maps an HTTP status code to a FailureKind:
//
//	429                     -> KindRateLimited
//	408, 409, 5xx, 529      -> KindTransient
//	other 4xx               -> KindFatal
//	0 / anything else       -> KindUnknown
func KindForStatus(status int) FailureKind {
	switch {
	case status == http.StatusTooManyRequests:
		return KindRateLimited
	case status == http.StatusRequestTimeout, status == http.StatusConflict:
		return KindTransient
	case status >= 500 && status <= 599:
		return KindTransient
	case status >= 400 && status <= 499:
		return KindFatal
	default:
		return KindUnknown
	}
}

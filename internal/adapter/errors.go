// Package adapter invokes external tools with timeouts, retries, and
// per-tool circuit breaking.
package adapter

import (
	"errors"
	"fmt"
	"time"
)

// ErrCircuitOpen is returned when a tool's breaker rejects a call without
// attempting it.
var ErrCircuitOpen = errors.New("circuit open")

// ErrorKind classifies tool failures for retry and fallback decisions.
type ErrorKind int

const (
	// KindTransient covers network hiccups and 5xx responses; retryable.
	KindTransient ErrorKind = iota
	// KindAuth covers credential and permission failures; not retryable.
	KindAuth
	// KindBadRequest covers malformed invocations; not retryable.
	KindBadRequest
	// KindRateLimited covers throttling; retryable after the hinted delay.
	KindRateLimited
	// KindCircuitOpen marks calls rejected by the breaker.
	KindCircuitOpen
	// KindCancelled marks calls abandoned because the context ended.
	KindCancelled
)

// String returns a human-readable representation of the error kind.
func (k ErrorKind) String() string {
	switch k {
	case KindTransient:
		return "transient"
	case KindAuth:
		return "auth"
	case KindBadRequest:
		return "bad_request"
	case KindRateLimited:
		return "rate_limited"
	case KindCircuitOpen:
		return "circuit_open"
	case KindCancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}

// Retryable reports whether another attempt against the same tool can
// succeed.
func (k ErrorKind) Retryable() bool {
	return k == KindTransient || k == KindRateLimited
}

// ToolError is a classified failure from a tool invocation.
type ToolError struct {
	Tool string
	Kind ErrorKind
	// RetryAfter is the throttle hint for rate-limited errors, zero
	// otherwise.
	RetryAfter time.Duration
	Err        error
}

func (e *ToolError) Error() string {
	return fmt.Sprintf("tool %s: %s: %v", e.Tool, e.Kind, e.Err)
}

func (e *ToolError) Unwrap() error { return e.Err }

// NewToolError wraps err with a tool name and kind.
func NewToolError(tool string, kind ErrorKind, err error) *ToolError {
	return &ToolError{Tool: tool, Kind: kind, Err: err}
}

// KindOf extracts the error kind from err, defaulting to transient for
// unclassified failures so callers err on the side of retrying.
func KindOf(err error) ErrorKind {
	var te *ToolError
	if errors.As(err, &te) {
		return te.Kind
	}
	if errors.Is(err, ErrCircuitOpen) {
		return KindCircuitOpen
	}
	return KindTransient
}

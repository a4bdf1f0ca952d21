// Package hddserr implements the error taxonomy of the data-plane core:
// a closed set of kinds that every fallible operation returns through,
// instead of ad-hoc strings or panics.
package hddserr

import (
	"errors"
	"fmt"
)

// Kind is one of the nine error classes the core's API surface reports.
type Kind int

const (
	// InvalidArgument is a precondition violation at the API boundary.
	InvalidArgument Kind = iota
	// NotFound means no pending sample, or no such entity.
	NotFound
	// ResourceLimits means a cache/quota is exhausted; a reliable write would block.
	ResourceLimits
	// Timeout means a bounded wait elapsed.
	Timeout
	// IncompatibleQoS means a match was rejected; the endpoint remains registered but unmatched.
	IncompatibleQoS
	// Protocol means a malformed RTPS packet; the sample is dropped.
	Protocol
	// Transport means an I/O failure; the affected locator is quarantined.
	Transport
	// Security means an authentication/crypto plugin rejection.
	Security
	// Fatal means an invariant violation: sequence overflow, corrupted internal state.
	Fatal
)

func (k Kind) String() string {
	switch k {
	case InvalidArgument:
		return "invalid_argument"
	case NotFound:
		return "not_found"
	case ResourceLimits:
		return "resource_limits"
	case Timeout:
		return "timeout"
	case IncompatibleQoS:
		return "incompatible_qos"
	case Protocol:
		return "protocol"
	case Transport:
		return "transport"
	case Security:
		return "security"
	case Fatal:
		return "fatal"
	default:
		return "unknown"
	}
}

// Error wraps a Kind with context and an optional cause.
type Error struct {
	Kind    Kind
	Op      string
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %s: %v", e.Op, e.Kind, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s: %s", e.Op, e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Cause }

// New constructs an *Error for the given operation and kind.
func New(op string, kind Kind, format string, args ...any) *Error {
	return &Error{Op: op, Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// Wrap constructs an *Error that carries an underlying cause.
func Wrap(op string, kind Kind, cause error, format string, args ...any) *Error {
	return &Error{Op: op, Kind: kind, Message: fmt.Sprintf(format, args...), Cause: cause}
}

// Is reports whether err is an *Error of the given kind.
func Is(err error, kind Kind) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind == kind
	}
	return false
}

// KindOf extracts the Kind from err, defaulting to Fatal for unrecognized errors
// so unexpected failures never silently masquerade as a benign kind.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return Fatal
}

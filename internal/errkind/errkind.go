// Package errkind defines the closed set of error classifications that
// drive retry and propagation decisions across the ingestion pipeline.
package errkind

import (
	"errors"
	"fmt"
)

// Kind is a closed enum of error classifications. New values must not be
// added without updating Retryable.
type Kind int

const (
	Unknown Kind = iota
	RateLimited
	UpstreamUnavailable
	SchemaDrift
	ValidationRejected
	WriteConflict
	Cancelled
	DeadlineExceeded
	ConfigError
	Empty
)

func (k Kind) String() string {
	switch k {
	case RateLimited:
		return "RateLimited"
	case UpstreamUnavailable:
		return "UpstreamUnavailable"
	case SchemaDrift:
		return "SchemaDrift"
	case ValidationRejected:
		return "ValidationRejected"
	case WriteConflict:
		return "WriteConflict"
	case Cancelled:
		return "Cancelled"
	case DeadlineExceeded:
		return "DeadlineExceeded"
	case ConfigError:
		return "ConfigError"
	case Empty:
		return "Empty"
	default:
		return "Unknown"
	}
}

// Error wraps an underlying error with a Kind and the operation name that
// produced it, so callers can branch on classification instead of message
// text.
type Error struct {
	Kind Kind
	Op   string
	Err  error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %s", e.Op, e.Kind)
	}
	return fmt.Sprintf("%s: %s: %v", e.Op, e.Kind, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// New builds a classified error.
func New(kind Kind, op string, err error) *Error {
	return &Error{Kind: kind, Op: op, Err: err}
}

// Is reports whether err (or anything it wraps) carries the given Kind.
func Is(err error, kind Kind) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind == kind
	}
	return false
}

// KindOf extracts the Kind carried by err, or Unknown if err is not a
// classified *Error.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return Unknown
}

// Retryable reports whether the Rate Gate should retry a call that failed
// with the given kind.
func Retryable(kind Kind) bool {
	switch kind {
	case RateLimited, UpstreamUnavailable, DeadlineExceeded:
		return true
	default:
		return false
	}
}

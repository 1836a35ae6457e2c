package firestore

import (
	"context"
	"errors"
	"fmt"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// ErrInvalidDocument marks documents that decoded but failed schema validation.
var ErrInvalidDocument = errors.New("firestore: invalid document")

// Error classifies a failed Firestore call so repositories can react without inspecting gRPC codes.
type Error struct {
	op          string
	err         error
	notFound    bool
	conflict    bool
	unavailable bool
	invalid     bool
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	if e.op != "" {
		return fmt.Sprintf("%s: %v", e.op, e.err)
	}
	return e.err.Error()
}

// Unwrap returns the underlying error.
func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.err
}

// IsNotFound reports whether the error represents a missing document.
func (e *Error) IsNotFound() bool {
	return e != nil && e.notFound
}

// IsConflict reports whether the backend rejected the call because of a precondition.
func (e *Error) IsConflict() bool {
	return e != nil && e.conflict
}

// IsUnavailable reports whether the error represents a transient backend outage.
func (e *Error) IsUnavailable() bool {
	return e != nil && e.unavailable
}

// IsInvalid reports whether a stored document could not be turned into a domain value.
func (e *Error) IsInvalid() bool {
	return e != nil && e.invalid
}

func classify(op string, err error) *Error {
	e := &Error{op: op, err: err}
	if errors.Is(err, ErrInvalidDocument) {
		e.invalid = true
		return e
	}
	switch status.Code(err) {
	case codes.NotFound:
		e.notFound = true
	case codes.AlreadyExists, codes.FailedPrecondition, codes.Aborted, codes.OutOfRange:
		e.conflict = true
	case codes.Unavailable, codes.ResourceExhausted, codes.Internal, codes.DeadlineExceeded:
		e.unavailable = true
	case codes.InvalidArgument:
		e.invalid = true
	}
	return e
}

// WrapError annotates Firestore errors with repository semantics. Context cancellations are passed
// through untouched so callers can compare them with errors.Is.
func WrapError(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}

	switch status.Code(err) {
	case codes.Canceled:
		return context.Canceled
	case codes.DeadlineExceeded:
		return context.DeadlineExceeded
	}

	var existing *Error
	if errors.As(err, &existing) {
		if op != "" && existing.op == "" {
			existing.op = op
		}
		return existing
	}
	return classify(op, err)
}

// IsNotFound reports whether err, or any error it wraps, is a not-found Firestore error.
func IsNotFound(err error) bool {
	var e *Error
	return errors.As(err, &e) && e.IsNotFound()
}

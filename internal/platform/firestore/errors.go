package firestore

import (
	"context"
	"errors"
	"fmt"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// Error classifies Firestore failures for the repository layer.
type Error struct {
	Op   string
	Code codes.Code
	Err  error
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	if e.Op == "" {
		return e.Err.Error()
	}
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// IsNotFound reports a missing document.
func (e *Error) IsNotFound() bool {
	return e != nil && e.Code == codes.NotFound
}

// IsConflict reports a write that lost against a concurrent change or an existing document.
func (e *Error) IsConflict() bool {
	if e == nil {
		return false
	}
	switch e.Code {
	case codes.AlreadyExists, codes.FailedPrecondition, codes.Aborted:
		return true
	}
	return false
}

// IsUnavailable reports a transient backend outage.
func (e *Error) IsUnavailable() bool {
	if e == nil {
		return false
	}
	switch e.Code {
	case codes.Unavailable, codes.ResourceExhausted, codes.Internal, codes.DeadlineExceeded:
		return true
	}
	return false
}

// WrapError annotates err with the operation name and its gRPC classification. Context
// cancellation is returned as the plain context error.
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
		if existing.Op == "" {
			existing.Op = op
		}
		return existing
	}
	return &Error{Op: op, Code: status.Code(err), Err: err}
}

// NotFound builds a classified not-found error without a gRPC round trip.
func NotFound(op, what string) error {
	return &Error{Op: op, Code: codes.NotFound, Err: fmt.Errorf("%s not found", what)}
}

// Conflict builds a classified conflict error.
func Conflict(op, reason string) error {
	return &Error{Op: op, Code: codes.FailedPrecondition, Err: errors.New(reason)}
}

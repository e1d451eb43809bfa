package repositories

import (
	"errors"
	"fmt"
)

// ErrorKind classifies a repository failure.
type ErrorKind int

const (
	KindNotFound ErrorKind = iota + 1
	KindConflict
	KindUnavailable
)

// Error is a classified failure raised by backends that do not map gRPC codes.
type Error struct {
	Op   string
	Kind ErrorKind
	Msg  string
}

func (e *Error) Error() string {
	if e.Op == "" {
		return e.Msg
	}
	return fmt.Sprintf("%s: %s", e.Op, e.Msg)
}

func (e *Error) IsNotFound() bool    { return e != nil && e.Kind == KindNotFound }
func (e *Error) IsConflict() bool    { return e != nil && e.Kind == KindConflict }
func (e *Error) IsUnavailable() bool { return e != nil && e.Kind == KindUnavailable }

// NotFound reports a missing record.
func NotFound(op, format string, args ...any) error {
	return &Error{Op: op, Kind: KindNotFound, Msg: fmt.Sprintf(format, args...) + " not found"}
}

// Conflict reports a write refused because of existing state.
func Conflict(op, format string, args ...any) error {
	return &Error{Op: op, Kind: KindConflict, Msg: fmt.Sprintf(format, args...)}
}

// IsNotFound reports whether err carries a not-found classification.
func IsNotFound(err error) bool {
	var repoErr RepositoryError
	return errors.As(err, &repoErr) && repoErr.IsNotFound()
}

// IsConflict reports whether err carries a conflict classification.
func IsConflict(err error) bool {
	var repoErr RepositoryError
	return errors.As(err, &repoErr) && repoErr.IsConflict()
}

// IsUnavailable reports whether err carries an unavailable classification.
func IsUnavailable(err error) bool {
	var repoErr RepositoryError
	return errors.As(err, &repoErr) && repoErr.IsUnavailable()
}

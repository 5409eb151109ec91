package domain

import (
	"errors"
	"fmt"
)

type ErrorKind string

const (
	KindValidation    ErrorKind = "VALIDATION"
	KindNotFound      ErrorKind = "NOT_FOUND"
	KindCapacity      ErrorKind = "CAPACITY"
	KindConflict      ErrorKind = "CONFLICT"
	KindAuthorization ErrorKind = "AUTHORIZATION"
	KindPersistence   ErrorKind = "PERSISTENCE"
)

// Error is the error type returned by the booking core. Callers match on the
// kind with errors.Is against the sentinels below.
type Error struct {
	Kind    ErrorKind
	Message string
	Err     error
}

func (e *Error) Error() string {
	switch {
	case e.Message != "" && e.Err != nil:
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	case e.Message != "":
		return e.Message
	case e.Err != nil:
		return e.Err.Error()
	default:
		return string(e.Kind)
	}
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is reports whether target is a kind sentinel (an *Error with no message)
// of the same kind.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind && t.Message == "" && t.Err == nil
}

// Retryable reports whether the operation may be repeated as is.
func (e *Error) Retryable() bool {
	return e.Kind == KindPersistence
}

var (
	ErrValidation    = &Error{Kind: KindValidation}
	ErrNotFound      = &Error{Kind: KindNotFound}
	ErrCapacity      = &Error{Kind: KindCapacity}
	ErrConflict      = &Error{Kind: KindConflict}
	ErrAuthorization = &Error{Kind: KindAuthorization}
	ErrPersistence   = &Error{Kind: KindPersistence}
)

func Validationf(format string, args ...any) error {
	return &Error{Kind: KindValidation, Message: fmt.Sprintf(format, args...)}
}

func NotFoundf(format string, args ...any) error {
	return &Error{Kind: KindNotFound, Message: fmt.Sprintf(format, args...)}
}

func Capacityf(format string, args ...any) error {
	return &Error{Kind: KindCapacity, Message: fmt.Sprintf(format, args...)}
}

func Conflictf(format string, args ...any) error {
	return &Error{Kind: KindConflict, Message: fmt.Sprintf(format, args...)}
}

func Authorizationf(format string, args ...any) error {
	return &Error{Kind: KindAuthorization, Message: fmt.Sprintf(format, args...)}
}

// Persistence wraps a store failure. Errors that already carry a kind are
// returned unchanged.
func Persistence(msg string, err error) error {
	var de *Error
	if errors.As(err, &de) {
		return err
	}
	return &Error{Kind: KindPersistence, Message: msg, Err: err}
}

// KindOf returns the kind of err, or "" when err is not a domain error.
func KindOf(err error) ErrorKind {
	var de *Error
	if errors.As(err, &de) {
		return de.Kind
	}
	return ""
}

package domain

import (
	"errors"
	"fmt"
)

// ErrorKind classifies failures returned by the engine.
type ErrorKind string

const (
	KindValidation ErrorKind = "validation"
	KindNotFound   ErrorKind = "not_found"
	KindForbidden  ErrorKind = "forbidden"
	KindConflict   ErrorKind = "conflict"
	KindDependency ErrorKind = "dependency"
)

// Error is a structured engine failure. Validation, not-found and forbidden
// errors are expected outcomes that carry a reason for the caller.
type Error struct {
	Kind   ErrorKind
	Op     string
	Reason string
	Err    error
}

// Sentinels for errors.Is matching by kind.
var (
	ErrValidation = &Error{Kind: KindValidation}
	ErrNotFound   = &Error{Kind: KindNotFound}
	ErrForbidden  = &Error{Kind: KindForbidden}
	ErrConflict   = &Error{Kind: KindConflict}
	ErrDependency = &Error{Kind: KindDependency}
)

func (e *Error) Error() string {
	msg := string(e.Kind)
	if e.Op != "" {
		msg = e.Op + ": " + msg
	}
	if e.Reason != "" {
		msg += ": " + e.Reason
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches a bare sentinel of the same kind.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Op == "" && t.Reason == "" && t.Err == nil && t.Kind == e.Kind
}

// KindOf returns the kind of err. Unclassified errors are dependency
// failures.
func KindOf(err error) ErrorKind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindDependency
}

// ReasonOf returns the caller-facing reason carried by err.
func ReasonOf(err error) string {
	var e *Error
	if errors.As(err, &e) && e.Reason != "" {
		return e.Reason
	}
	if err == nil {
		return ""
	}
	return err.Error()
}

func validationError(op, format string, args ...any) error {
	return &Error{Kind: KindValidation, Op: op, Reason: fmt.Sprintf(format, args...)}
}

func notFoundError(op, format string, args ...any) error {
	return &Error{Kind: KindNotFound, Op: op, Reason: fmt.Sprintf(format, args...)}
}

func forbiddenError(op, format string, args ...any) error {
	return &Error{Kind: KindForbidden, Op: op, Reason: fmt.Sprintf(format, args...)}
}

func dependencyError(op string, err error) error {
	return &Error{Kind: KindDependency, Op: op, Err: err}
}

// ItemError describes the failure of one item inside a batch operation.
type ItemError struct {
	UserID    string    `json:"userId,omitempty"`
	AccountID string    `json:"accountId,omitempty"`
	ArticleID string    `json:"articleId,omitempty"`
	Phase     string    `json:"phase,omitempty"`
	Kind      ErrorKind `json:"kind"`
	Reason    string    `json:"reason"`
}

func newItemError(phase string, err error) ItemError {
	return ItemError{Phase: phase, Kind: KindOf(err), Reason: ReasonOf(err)}
}

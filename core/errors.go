package core

import (
	"context"
	"errors"
	"fmt"
)

// ErrorKind classifies failures across the engine.
type ErrorKind int

const (
	KindNone ErrorKind = iota
	KindParse
	KindRouting
	KindValidation
	KindToolNotFound
	KindArgumentValidation
	KindToolExecution
	KindProviderTimeout
	KindProviderUnavailable
	KindCancelled
	KindDuplicateTool
	KindBudgetExceeded
	KindInternal
)

var kindNames = map[ErrorKind]string{
	KindNone:                "none",
	KindParse:               "parse error",
	KindRouting:             "routing error",
	KindValidation:          "validation error",
	KindToolNotFound:        "tool not found",
	KindArgumentValidation:  "argument validation error",
	KindToolExecution:       "tool execution error",
	KindProviderTimeout:     "provider timeout",
	KindProviderUnavailable: "provider unavailable",
	KindCancelled:           "cancelled",
	KindDuplicateTool:       "duplicate tool",
	KindBudgetExceeded:      "model call budget exceeded",
	KindInternal:            "internal error",
}

// String returns a human readable name of the kind.
func (k ErrorKind) String() string {
	if n, ok := kindNames[k]; ok {
		return n
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// Error is the kind-tagged error returned by every EchoKernel component.
type Error struct {
	Kind ErrorKind
	Op   string // operation that failed, e.g. "kernel.generate" or "tool.weather"
	Msg  string
	Err  error
}

// Sentinel errors for errors.Is matching. Any *Error of the same kind matches.
var (
	ErrParse               = &Error{Kind: KindParse}
	ErrRouting             = &Error{Kind: KindRouting}
	ErrValidation          = &Error{Kind: KindValidation}
	ErrToolNotFound        = &Error{Kind: KindToolNotFound}
	ErrArgumentValidation  = &Error{Kind: KindArgumentValidation}
	ErrToolExecution       = &Error{Kind: KindToolExecution}
	ErrProviderTimeout     = &Error{Kind: KindProviderTimeout}
	ErrProviderUnavailable = &Error{Kind: KindProviderUnavailable}
	ErrCancelled           = &Error{Kind: KindCancelled}
	ErrDuplicateTool       = &Error{Kind: KindDuplicateTool}
	ErrBudgetExceeded      = &Error{Kind: KindBudgetExceeded}
)

// ErrRecordNotFound is returned by memory stores for unknown record ids.
var ErrRecordNotFound = errors.New("memory record not found")

// NewError creates a kind-tagged error.
func NewError(kind ErrorKind, op, msg string, err error) *Error {
	return &Error{Kind: kind, Op: op, Msg: msg, Err: err}
}

func (e *Error) Error() string {
	s := e.Kind.String()
	if e.Op != "" {
		s = e.Op + ": " + s
	}
	if e.Msg != "" {
		s += ": " + e.Msg
	}
	if e.Err != nil {
		s += ": " + e.Err.Error()
	}
	return s
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches sentinel errors by kind.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Op == "" && t.Msg == "" && t.Err == nil && t.Kind == e.Kind
}

// KindOf classifies err. Bare context errors are mapped onto cancellation and
// timeout; unknown errors report KindInternal.
func KindOf(err error) ErrorKind {
	if err == nil {
		return KindNone
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	switch {
	case errors.Is(err, context.Canceled):
		return KindCancelled
	case errors.Is(err, context.DeadlineExceeded):
		return KindProviderTimeout
	default:
		return KindInternal
	}
}

// IsTransient reports whether err is worth retrying (timeouts and unavailable providers).
func IsTransient(err error) bool {
	switch KindOf(err) {
	case KindProviderTimeout, KindProviderUnavailable:
		return true
	default:
		return false
	}
}

// Cancelled wraps a context error as a KindCancelled error.
func Cancelled(op string, err error) *Error {
	return NewError(KindCancelled, op, "", err)
}

// Package fault classifies errors into the kinds the transport layers care about.
package fault

import (
	"errors"
	"strings"
)

type Kind string

const (
	Unauthorized   Kind = "unauthorized"
	Forbidden      Kind = "forbidden"
	NotFound       Kind = "not_found"
	InvalidRequest Kind = "invalid_request"
	// Conflict signals a lost race on a uniqueness or version check. Callers retry it.
	Conflict Kind = "conflict"
)

// Error carries a kind, a human readable message and an optional cause.
type Error struct {
	Kind Kind
	Msg  string
	Err  error
}

func New(kind Kind, msg string) *Error {
	return &Error{Kind: kind, Msg: msg}
}

func Wrap(kind Kind, msg string, err error) *Error {
	return &Error{Kind: kind, Msg: msg, Err: err}
}

func (e *Error) Error() string {
	if e.Err != nil {
		return e.Msg + ": " + e.Err.Error()
	}
	return e.Msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches another fault with the same kind and message. Sentinel faults declared
// with New therefore stay comparable after being re-created with Wrap.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind && t.Msg == e.Msg
}

// KindOf returns the kind of the outermost fault in the chain, or "" for plain errors.
func KindOf(err error) Kind {
	var fe *Error
	if errors.As(err, &fe) {
		return fe.Kind
	}
	return ""
}

// Message returns the human readable reason of the outermost fault without its package prefix.
func Message(err error) string {
	var fe *Error
	if !errors.As(err, &fe) {
		return ""
	}
	msg := fe.Msg
	if idx := strings.Index(msg, ": "); idx > 0 && !strings.Contains(msg[:idx], " ") {
		msg = msg[idx+2:]
	}
	return msg
}

func Invalid(msg string) *Error {
	return New(InvalidRequest, msg)
}

func IsKind(err error, kind Kind) bool {
	return KindOf(err) == kind
}

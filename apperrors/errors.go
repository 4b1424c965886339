// Package apperrors defines the structured failures reported by a comparison.
// Every failure carries a Kind that callers can switch on and a human readable
// detail.
package apperrors

import (
	"errors"
	"fmt"
)

type Kind string

const (
	KindInvalidSignal    Kind = "invalid_signal"
	KindEmptyContour     Kind = "empty_contour"
	KindDurationExceeded Kind = "duration_exceeded"
	KindInvalidOptions   Kind = "invalid_options"
	KindDecodeFailed     Kind = "decode_failed"
)

// Sentinel errors, one per kind, for use with errors.Is.
var (
	ErrInvalidSignal    = errors.New("invalid signal")
	ErrEmptyContour     = errors.New("empty contour")
	ErrDurationExceeded = errors.New("duration exceeded")
	ErrInvalidOptions   = errors.New("invalid options")
	ErrDecodeFailed     = errors.New("decode failed")
)

var sentinels = map[Kind]error{
	KindInvalidSignal:    ErrInvalidSignal,
	KindEmptyContour:     ErrEmptyContour,
	KindDurationExceeded: ErrDurationExceeded,
	KindInvalidOptions:   ErrInvalidOptions,
	KindDecodeFailed:     ErrDecodeFailed,
}

// Error is a failure scoped to a single comparison request.
type Error struct {
	Kind   Kind
	Detail string
	Cause  error
}

func (e *Error) Error() string {
	msg := string(e.Kind)
	if e.Detail != "" {
		msg += ": " + e.Detail
	}
	if e.Cause != nil {
		msg += ": " + e.Cause.Error()
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// Is matches the sentinel for the error's kind, or another *Error of the same kind.
func (e *Error) Is(target error) bool {
	if s, ok := sentinels[e.Kind]; ok && target == s {
		return true
	}
	var other *Error
	if errors.As(target, &other) {
		return other.Kind == e.Kind && other.Detail == ""
	}
	return false
}

func New(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Detail: fmt.Sprintf(format, args...)}
}

func Wrap(kind Kind, cause error, format string, args ...any) *Error {
	return &Error{Kind: kind, Detail: fmt.Sprintf(format, args...), Cause: cause}
}

func InvalidSignal(format string, args ...any) *Error {
	return New(KindInvalidSignal, format, args...)
}

func EmptyContour(format string, args ...any) *Error {
	return New(KindEmptyContour, format, args...)
}

func DurationExceeded(format string, args ...any) *Error {
	return New(KindDurationExceeded, format, args...)
}

func InvalidOptions(format string, args ...any) *Error {
	return New(KindInvalidOptions, format, args...)
}

// KindOf returns the kind of the first *Error in err's chain, or "" if none.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

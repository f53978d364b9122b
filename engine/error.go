package engine

import (
	"errors"
	"fmt"
)

// Error is an engine-level failure carrying a SQLite result code. Extended
// codes are preserved when the backend reports them.
type Error struct {
	Code    int
	Message string
}

func (e *Error) Error() string {
	if e.Message == "" {
		return CodeName(e.Code)
	}
	return e.Message
}

// Primary returns the primary result code (the low byte of Code).
func (e *Error) Primary() int { return e.Code & 0xff }

// NewError builds an *Error, falling back to the symbolic code name when msg
// is empty.
func NewError(code int, msg string) *Error {
	return &Error{Code: code, Message: msg}
}

// Errorf builds an *Error with a formatted message.
func Errorf(code int, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// AsError unwraps err to an *Error, if it carries one.
func AsError(err error) (*Error, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e, true
	}
	return nil, false
}

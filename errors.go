package libsql

import (
	"errors"
	"fmt"
	"strings"

	"turso.tech/database/libsqlgo/engine"
)

// Kind categorizes the error
type Kind string

const (
	KindOpen      Kind = "open"      // bad path, credentials or unreachable remote
	KindPrepare   Kind = "prepare"   // malformed SQL
	KindExecution Kind = "execution" // engine failure while running a statement
	KindBinding   Kind = "binding"   // parameter conversion or lookup
	KindUsage     Kind = "usage"     // API misuse
	KindClosed    Kind = "closed"    // database closed
	KindSync      Kind = "sync"      // replication round-trip
)

// Kind sentinels for errors.Is.
var (
	ErrOpen      = &Error{Kind: KindOpen}
	ErrPrepare   = &Error{Kind: KindPrepare}
	ErrExecution = &Error{Kind: KindExecution}
	ErrBinding   = &Error{Kind: KindBinding}
	ErrUsage     = &Error{Kind: KindUsage}
	ErrClosed    = &Error{Kind: KindClosed}
	ErrSync      = &Error{Kind: KindSync}
)

// Error is the error type returned by Database, Statement and Rows.
type Error struct {
	Kind    Kind
	Message string
	// Code is the symbolic SQLite result code (e.g. SQLITE_CONSTRAINT_UNIQUE).
	// Empty when the failure did not come from the engine.
	Code string
	// RawCode is the numeric extended result code, 0 when Code is empty.
	RawCode int
	Err     error
}

func (e *Error) Error() string {
	var b strings.Builder
	b.WriteString("libsql: ")
	b.WriteString(string(e.Kind))
	if e.Message != "" {
		b.WriteString(": ")
		b.WriteString(e.Message)
	}
	if e.Code != "" {
		b.WriteString(" [")
		b.WriteString(e.Code)
		b.WriteByte(']')
	}
	return b.String()
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches on Kind, and on Code as well when the target carries one.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Kind == t.Kind && (t.Code == "" || t.Code == e.Code)
}

func newError(kind Kind, msg string) *Error {
	return &Error{Kind: kind, Message: msg}
}

func errorf(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

var errNotOpen = newError(KindClosed, "The database connection is not open")

// translate turns any failure into an *Error of the given kind. Errors that
// are already translated keep their kind; engine errors keep their code.
func translate(kind Kind, err error) error {
	if err == nil {
		return nil
	}
	var le *Error
	if errors.As(err, &le) {
		return le
	}
	if e, ok := engine.AsError(err); ok {
		return &Error{
			Kind:    kind,
			Message: e.Error(),
			Code:    engine.CodeName(e.Code),
			RawCode: e.Code,
			Err:     err,
		}
	}
	return &Error{Kind: kind, Message: err.Error(), Err: err}
}

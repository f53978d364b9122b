// Package engine defines the contract between the libsql bridge and the SQL
// engines it drives: the native Turso library, a remote Hrana endpoint, or the
// embedded wasm build of SQLite.
//
// Engine handles are not safe for concurrent use. The bridge serializes every
// call on a connection and on the statements and rows derived from it.
package engine

import (
	"context"
	"errors"
)

// ErrUnsupported is returned by backends for operations they do not provide,
// e.g. Sync on a plain local database.
var ErrUnsupported = errors.New("engine: operation not supported by this backend")

// LocalConfig describes a file-backed (or ":memory:") database.
type LocalConfig struct {
	Path string
	// EncryptionKey is applied only when non-empty.
	EncryptionKey string
}

// RemoteConfig describes a remote-only database reached over HTTP.
type RemoteConfig struct {
	URL       string
	AuthToken string
	// Version is the client version string sent with every request.
	Version string
}

// ReplicaConfig describes a local replica synced against a remote primary.
type ReplicaConfig struct {
	Path          string
	SyncURL       string
	SyncAuthToken string
	EncryptionKey string
	Version       string
}

// Engine opens databases. A backend that cannot serve one of the modes
// returns ErrUnsupported.
type Engine interface {
	OpenLocal(ctx context.Context, cfg LocalConfig) (Database, error)
	OpenRemote(ctx context.Context, cfg RemoteConfig) (Database, error)
	OpenReplica(ctx context.Context, cfg ReplicaConfig) (Database, error)
}

// Database owns the storage or replication resource.
type Database interface {
	Connect(ctx context.Context) (Conn, error)
	// Sync performs one replication round-trip with the remote primary.
	Sync(ctx context.Context) error
	Close() error
}

// Conn is one logical session against a Database.
type Conn interface {
	// ExecuteBatch runs every statement in sql for side effect.
	ExecuteBatch(ctx context.Context, sql string) error
	Prepare(ctx context.Context, sql string) (Stmt, error)
	IsAutocommit() bool
	LastInsertRowid() int64
	Close() error
}

// Stmt is a compiled statement. Args bind parameter i+1 from args[i].
type Stmt interface {
	// Execute runs the statement to completion and returns the number of
	// changed rows.
	Execute(ctx context.Context, args []Value) (uint64, error)
	// Query binds args and returns a cursor positioned before the first row.
	// The cursor is only valid until the next Execute, Query or Reset.
	Query(ctx context.Context, args []Value) (Rows, error)
	Reset() error
	Columns() []Column
	ParameterCount() int
	// ParameterName returns the name of the 1-based parameter including its
	// sigil, or "" for a positional parameter.
	ParameterName(idx int) string
	Close() error
}

// Rows is a forward-only cursor. Next returns io.EOF after the last row.
type Rows interface {
	Next(ctx context.Context) ([]Value, error)
	ColumnCount() int
	ColumnName(idx int) string
	Close() error
}

// Column describes one output column. Fields the engine cannot attribute,
// e.g. for computed expressions, are nil.
type Column struct {
	Name     string
	Origin   *string
	Table    *string
	Database *string
	DeclType *string
}

// StrPtr returns nil for an empty string and a pointer to s otherwise.
func StrPtr(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

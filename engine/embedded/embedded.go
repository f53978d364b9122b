// Package embedded runs the engine contract on the wasm build of SQLite
// hosted by wazero. It needs no native library, which makes it the backend of
// choice for tests and for platforms the Turso library does not ship for.
package embedded

import (
	"context"
	"errors"
	"io"
	"net/url"
	"strings"
	"sync"

	"github.com/ncruces/go-sqlite3"
	_ "github.com/ncruces/go-sqlite3/embed"
	_ "github.com/ncruces/go-sqlite3/vfs/adiantum"
	"github.com/tetratelabs/wazero"

	"turso.tech/database/libsqlgo/engine"
)

// Config tunes the embedded backend.
type Config struct {
	// MemoryLimitPages caps wasm memory (64KiB pages) for every connection.
	// Zero keeps the wazero default. Only the first non-zero value applied
	// before the first open takes effect.
	MemoryLimitPages uint32
}

// Engine opens local databases. Remote and replica modes are unsupported.
type Engine struct{}

var runtimeOnce sync.Once

// New returns the embedded engine.
func New(cfg Config) *Engine {
	if cfg.MemoryLimitPages > 0 {
		runtimeOnce.Do(func() {
			sqlite3.RuntimeConfig = wazero.NewRuntimeConfig().WithMemoryLimitPages(cfg.MemoryLimitPages)
		})
	}
	return &Engine{}
}

var _ engine.Engine = (*Engine)(nil)

func (e *Engine) OpenLocal(_ context.Context, cfg engine.LocalConfig) (engine.Database, error) {
	name := cfg.Path
	flags := sqlite3.OPEN_READWRITE | sqlite3.OPEN_CREATE
	if cfg.EncryptionKey != "" {
		// adiantum VFS encrypts every page with a key derived from textkey.
		name = "file:" + (&url.URL{Path: cfg.Path}).EscapedPath() + "?vfs=adiantum&textkey=" + url.QueryEscape(cfg.EncryptionKey)
		flags |= sqlite3.OPEN_URI
	}
	conn, err := sqlite3.OpenFlags(name, flags)
	if err != nil {
		return nil, translate(err)
	}
	return &database{name: name, flags: flags, first: conn}, nil
}

func (e *Engine) OpenRemote(context.Context, engine.RemoteConfig) (engine.Database, error) {
	return nil, engine.ErrUnsupported
}

func (e *Engine) OpenReplica(context.Context, engine.ReplicaConfig) (engine.Database, error) {
	return nil, engine.ErrUnsupported
}

type database struct {
	name  string
	flags sqlite3.OpenFlag
	// first is the connection opened eagerly to surface open errors; it is
	// handed to the first Connect.
	first *sqlite3.Conn
}

func (d *database) Connect(context.Context) (engine.Conn, error) {
	if d.first != nil {
		c := d.first
		d.first = nil
		return &conn{c: c}, nil
	}
	c, err := sqlite3.OpenFlags(d.name, d.flags)
	if err != nil {
		return nil, translate(err)
	}
	return &conn{c: c}, nil
}

func (d *database) Sync(context.Context) error {
	return engine.ErrUnsupported
}

func (d *database) Close() error {
	if d.first != nil {
		err := d.first.Close()
		d.first = nil
		return translate(err)
	}
	return nil
}

type conn struct {
	c *sqlite3.Conn
}

func (c *conn) ExecuteBatch(_ context.Context, sql string) error {
	return translate(c.c.Exec(sql))
}

func (c *conn) Prepare(_ context.Context, sql string) (engine.Stmt, error) {
	s, _, err := c.c.Prepare(sql)
	if err != nil {
		return nil, translate(err)
	}
	if s == nil {
		return nil, engine.NewError(engine.CodeMisuse, "no statement to prepare in SQL string")
	}
	return &stmt{conn: c, s: s}, nil
}

func (c *conn) IsAutocommit() bool     { return c.c.GetAutocommit() }
func (c *conn) LastInsertRowid() int64 { return c.c.LastInsertRowID() }
func (c *conn) Close() error           { return translate(c.c.Close()) }

type stmt struct {
	conn *conn
	s    *sqlite3.Stmt
}

func (s *stmt) bind(args []engine.Value) error {
	if err := s.s.ClearBindings(); err != nil {
		return translate(err)
	}
	for i, v := range args {
		pos := i + 1
		var err error
		switch v.Kind {
		case engine.KindNull:
			err = s.s.BindNull(pos)
		case engine.KindInteger:
			err = s.s.BindInt64(pos, v.Int)
		case engine.KindReal:
			err = s.s.BindFloat(pos, v.Real)
		case engine.KindText:
			err = s.s.BindText(pos, v.Text)
		case engine.KindBlob:
			if len(v.Blob) == 0 {
				err = s.s.BindZeroBlob(pos, 0)
			} else {
				err = s.s.BindBlob(pos, v.Blob)
			}
		default:
			return engine.Errorf(engine.CodeMisuse, "unknown value kind %s", v.Kind)
		}
		if err != nil {
			return translate(err)
		}
	}
	return nil
}

func (s *stmt) Execute(_ context.Context, args []engine.Value) (uint64, error) {
	_ = s.s.Reset()
	if err := s.bind(args); err != nil {
		return 0, err
	}
	for s.s.Step() {
	}
	if err := s.s.Err(); err != nil {
		return 0, translate(err)
	}
	return uint64(s.conn.c.Changes()), nil
}

func (s *stmt) Query(_ context.Context, args []engine.Value) (engine.Rows, error) {
	_ = s.s.Reset()
	if err := s.bind(args); err != nil {
		return nil, err
	}
	return &rows{s: s.s}, nil
}

// Reset rewinds the statement. The error of the previous step is reported by
// Execute or Next already, so it is not repeated here.
func (s *stmt) Reset() error {
	_ = s.s.Reset()
	return nil
}

func (s *stmt) Columns() []engine.Column {
	n := s.s.ColumnCount()
	cols := make([]engine.Column, n)
	for i := 0; i < n; i++ {
		cols[i] = engine.Column{
			Name:     s.s.ColumnName(i),
			Origin:   engine.StrPtr(s.s.ColumnOriginName(i)),
			Table:    engine.StrPtr(s.s.ColumnTableName(i)),
			Database: engine.StrPtr(s.s.ColumnDatabaseName(i)),
			DeclType: engine.StrPtr(s.s.ColumnDeclType(i)),
		}
	}
	return cols
}

func (s *stmt) ParameterCount() int          { return s.s.BindCount() }
func (s *stmt) ParameterName(idx int) string { return s.s.BindName(idx) }
func (s *stmt) Close() error                 { return translate(s.s.Close()) }

type rows struct {
	s    *sqlite3.Stmt
	done bool
}

func (r *rows) Next(context.Context) ([]engine.Value, error) {
	if r.done {
		return nil, io.EOF
	}
	if !r.s.Step() {
		r.done = true
		if err := r.s.Err(); err != nil {
			return nil, translate(err)
		}
		return nil, io.EOF
	}
	n := r.s.ColumnCount()
	row := make([]engine.Value, n)
	for i := 0; i < n; i++ {
		switch r.s.ColumnType(i) {
		case sqlite3.INTEGER:
			row[i] = engine.Integer(r.s.ColumnInt64(i))
		case sqlite3.FLOAT:
			row[i] = engine.Real(r.s.ColumnFloat(i))
		case sqlite3.TEXT:
			row[i] = engine.Text(r.s.ColumnText(i))
		case sqlite3.BLOB:
			row[i] = engine.Blob(r.s.ColumnBlob(i, []byte{}))
		default:
			row[i] = engine.Null()
		}
	}
	return row, nil
}

func (r *rows) ColumnCount() int          { return r.s.ColumnCount() }
func (r *rows) ColumnName(idx int) string { return r.s.ColumnName(idx) }

// Close stops the cursor. The statement itself stays owned by stmt.
func (r *rows) Close() error {
	r.done = true
	return nil
}

// translate converts a go-sqlite3 failure into an *engine.Error carrying the
// extended result code.
func translate(err error) error {
	if err == nil {
		return nil
	}
	var serr *sqlite3.Error
	if errors.As(err, &serr) {
		msg := strings.TrimPrefix(serr.Error(), "sqlite3: ")
		return engine.NewError(int(serr.ExtendedCode()), msg)
	}
	return err
}

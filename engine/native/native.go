// Package native implements the engine contract over the Turso shared
// library (turso_sync_sdk_kit), loaded at runtime with purego. It serves
// local databases and local replicas synced with a remote primary.
package native

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"io"
	"math"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"turso.tech/database/libsqlgo/engine"
)

// DefaultBusyTimeout is applied to every connection unless overridden.
const DefaultBusyTimeout = 5 * time.Second

// encryptionCipher is used for local encryption keys.
const encryptionCipher = "aegis256"

// Config tunes the native backend.
type Config struct {
	// LibraryPath and LoadStrategy are passed to Load.
	LibraryPath  string
	LoadStrategy string
	// BusyTimeout is set on every connection. Negative disables it.
	BusyTimeout time.Duration
	// HTTPClient serves replica sync traffic.
	HTTPClient *http.Client
	Logger     *zap.Logger
}

// Engine opens local and replica databases. Remote-only databases are
// unsupported; use the remote engine.
type Engine struct {
	cfg Config
}

// New returns a native engine. The library is loaded on first open.
func New(cfg Config) *Engine {
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	if cfg.BusyTimeout == 0 {
		cfg.BusyTimeout = DefaultBusyTimeout
	}
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = &http.Client{
			// no global timeout: pulls long-poll and rely on the request context
			Transport: &http.Transport{
				Proxy:               http.ProxyFromEnvironment,
				MaxIdleConns:        32,
				MaxIdleConnsPerHost: 32,
				IdleConnTimeout:     90 * time.Second,
			},
		}
	}
	return &Engine{cfg: cfg}
}

var _ engine.Engine = (*Engine)(nil)

func (e *Engine) load() error {
	return Load(LoadConfig{Path: e.cfg.LibraryPath, Strategy: e.cfg.LoadStrategy, Logger: e.cfg.Logger})
}

func (e *Engine) OpenLocal(_ context.Context, cfg engine.LocalConfig) (engine.Database, error) {
	if err := e.load(); err != nil {
		return nil, err
	}
	dbCfg := TursoDatabaseConfig{Path: cfg.Path}
	applyEncryption(&dbCfg, cfg.EncryptionKey)
	db, err := turso_database_new(dbCfg)
	if err != nil {
		return nil, err
	}
	if err := turso_database_open(db); err != nil {
		turso_database_deinit(db)
		return nil, err
	}
	return &database{engine: e, db: db}, nil
}

func (e *Engine) OpenRemote(context.Context, engine.RemoteConfig) (engine.Database, error) {
	return nil, engine.ErrUnsupported
}

// applyEncryption turns a passphrase into the library's cipher settings. A
// 64 digit hex string is taken as the raw key; anything else is hashed.
func applyEncryption(cfg *TursoDatabaseConfig, key string) {
	if key == "" {
		return
	}
	cfg.ExperimentalFeatures = "encryption"
	cfg.EncryptionCipher = encryptionCipher
	cfg.EncryptionHexkey = encryptionHexkey(key)
}

func encryptionHexkey(key string) string {
	if len(key) == 64 {
		if _, err := hex.DecodeString(key); err == nil {
			return strings.ToLower(key)
		}
	}
	sum := sha256.Sum256([]byte(key))
	return hex.EncodeToString(sum[:])
}

type database struct {
	engine *Engine
	db     TursoDatabase
}

func (d *database) Connect(context.Context) (engine.Conn, error) {
	c, err := turso_database_connect(d.db)
	if err != nil {
		return nil, err
	}
	return newConn(c, d.engine.cfg.BusyTimeout, nil), nil
}

func (d *database) Sync(context.Context) error {
	return engine.ErrUnsupported
}

func (d *database) Close() error {
	turso_database_deinit(d.db)
	d.db = nil
	return nil
}

type conn struct {
	c TursoConnection
	// extraIo runs one iteration of the replica's IO queue whenever a
	// statement reports IO. Nil for plain local databases.
	extraIo func() error
}

func newConn(c TursoConnection, busy time.Duration, extraIo func() error) *conn {
	if busy > 0 {
		turso_connection_set_busy_timeout_ms(c, busy.Milliseconds())
	}
	return &conn{c: c, extraIo: extraIo}
}

func (c *conn) runIo(stmt TursoStatement) error {
	if c.extraIo != nil {
		if err := c.extraIo(); err != nil {
			return err
		}
	}
	return turso_statement_run_io(stmt)
}

// step advances stmt to the next ROW or DONE, serving IO on the way.
func (c *conn) step(ctx context.Context, stmt TursoStatement) (TursoStatusCode, error) {
	for {
		if ctx != nil && ctx.Err() != nil {
			return TURSO_ERROR, ctx.Err()
		}
		status, err := turso_statement_step(stmt)
		if err != nil {
			return status, err
		}
		switch status {
		case TURSO_ROW, TURSO_DONE:
			return status, nil
		case TURSO_IO:
			if err := c.runIo(stmt); err != nil {
				return TURSO_ERROR, err
			}
		}
	}
}

// executeFully runs stmt to completion, discarding rows, and returns the
// change count reported by the library.
func (c *conn) executeFully(ctx context.Context, stmt TursoStatement) (uint64, error) {
	for {
		if ctx != nil && ctx.Err() != nil {
			return 0, ctx.Err()
		}
		status, changes, err := turso_statement_execute(stmt)
		if err != nil {
			return 0, err
		}
		switch status {
		case TURSO_DONE:
			return changes, nil
		case TURSO_IO:
			if err := c.runIo(stmt); err != nil {
				return 0, err
			}
		case TURSO_ROW, TURSO_OK:
			for {
				st, err := c.step(ctx, stmt)
				if err != nil {
					return 0, err
				}
				if st == TURSO_DONE {
					return changes, nil
				}
			}
		default:
			return 0, statusToError(status, "")
		}
	}
}

// ExecuteBatch prepares and runs each statement of sql in turn.
func (c *conn) ExecuteBatch(ctx context.Context, sql string) error {
	offset := 0
	for {
		rest := sql[offset:]
		if strings.TrimSpace(rest) == "" {
			return nil
		}
		stmt, tail, err := turso_connection_prepare_first(c.c, rest)
		if err != nil {
			return err
		}
		if stmt == nil {
			// only comments left
			return nil
		}
		if tail <= 0 {
			tail = len(rest)
		}
		offset += tail
		_, err = c.executeFully(ctx, stmt)
		_ = turso_statement_finalize(stmt)
		turso_statement_deinit(stmt)
		if err != nil {
			return err
		}
	}
}

func (c *conn) Prepare(_ context.Context, sql string) (engine.Stmt, error) {
	s, err := turso_connection_prepare_single(c.c, sql)
	if err != nil {
		return nil, err
	}
	st := &stmt{conn: c, s: s}
	st.params = make([]string, turso_statement_parameters_count(s))
	for _, name := range scanParameterNames(sql) {
		if pos := turso_statement_named_position(s, name); pos > 0 && pos <= len(st.params) {
			st.params[pos-1] = name
		}
	}
	n := turso_statement_column_count(s)
	st.cols = make([]engine.Column, n)
	for i := 0; i < n; i++ {
		st.cols[i] = engine.Column{
			Name:     turso_statement_column_name(s, i),
			DeclType: engine.StrPtr(turso_statement_column_decltype(s, i)),
		}
	}
	return st, nil
}

func (c *conn) IsAutocommit() bool     { return turso_connection_get_autocommit(c.c) }
func (c *conn) LastInsertRowid() int64 { return turso_connection_last_insert_rowid(c.c) }

func (c *conn) Close() error {
	err := turso_connection_close(c.c)
	turso_connection_deinit(c.c)
	c.c = nil
	return err
}

type stmt struct {
	conn   *conn
	s      TursoStatement
	params []string
	// the library does not report origin table or database, so only Name
	// and DeclType are ever set
	cols []engine.Column
}

func (s *stmt) bind(args []engine.Value) error {
	if err := turso_statement_reset(s.s); err != nil {
		return err
	}
	for i, v := range args {
		pos := i + 1
		var err error
		switch v.Kind {
		case engine.KindNull:
			err = turso_statement_bind_positional_null(s.s, pos)
		case engine.KindInteger:
			err = turso_statement_bind_positional_int(s.s, pos, v.Int)
		case engine.KindReal:
			err = turso_statement_bind_positional_double(s.s, pos, v.Real)
		case engine.KindText:
			err = turso_statement_bind_positional_text(s.s, pos, v.Text)
		case engine.KindBlob:
			err = turso_statement_bind_positional_blob(s.s, pos, v.Blob)
		default:
			return engine.Errorf(engine.CodeMisuse, "unknown value kind %s", v.Kind)
		}
		if err != nil {
			return err
		}
	}
	return nil
}

func (s *stmt) Execute(ctx context.Context, args []engine.Value) (uint64, error) {
	if err := s.bind(args); err != nil {
		return 0, err
	}
	n, err := s.conn.executeFully(ctx, s.s)
	if n > math.MaxInt64 {
		n = math.MaxInt64
	}
	return n, err
}

func (s *stmt) Query(_ context.Context, args []engine.Value) (engine.Rows, error) {
	if err := s.bind(args); err != nil {
		return nil, err
	}
	return &rows{stmt: s}, nil
}

func (s *stmt) Reset() error             { return turso_statement_reset(s.s) }
func (s *stmt) Columns() []engine.Column { return s.cols }
func (s *stmt) ParameterCount() int      { return len(s.params) }

func (s *stmt) ParameterName(idx int) string {
	if idx < 1 || idx > len(s.params) {
		return ""
	}
	return s.params[idx-1]
}

func (s *stmt) Close() error {
	err := turso_statement_finalize(s.s)
	turso_statement_deinit(s.s)
	s.s = nil
	return err
}

type rows struct {
	stmt *stmt
	done bool
}

func (r *rows) Next(ctx context.Context) ([]engine.Value, error) {
	if r.done {
		return nil, io.EOF
	}
	status, err := r.stmt.conn.step(ctx, r.stmt.s)
	if err != nil {
		r.done = true
		return nil, err
	}
	if status == TURSO_DONE {
		r.done = true
		return nil, io.EOF
	}
	s := r.stmt.s
	row := make([]engine.Value, len(r.stmt.cols))
	for i := range row {
		switch turso_statement_row_value_kind(s, i) {
		case TURSO_TYPE_INTEGER:
			row[i] = engine.Integer(turso_statement_row_value_int(s, i))
		case TURSO_TYPE_REAL:
			row[i] = engine.Real(turso_statement_row_value_double(s, i))
		case TURSO_TYPE_TEXT:
			row[i] = engine.Text(string(turso_statement_row_value_bytes(s, i)))
		case TURSO_TYPE_BLOB:
			row[i] = engine.Blob(turso_statement_row_value_bytes(s, i))
		default:
			row[i] = engine.Null()
		}
	}
	return row, nil
}

func (r *rows) ColumnCount() int { return len(r.stmt.cols) }

func (r *rows) ColumnName(idx int) string {
	if idx < 0 || idx >= len(r.stmt.cols) {
		return ""
	}
	return r.stmt.cols[idx].Name
}

func (r *rows) Close() error {
	r.done = true
	return nil
}

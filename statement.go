package libsql

import (
	"context"
	"errors"
	"io"
	"sync/atomic"

	"turso.tech/database/libsqlgo/engine"
)

var (
	errStmtClosed     = newError(KindClosed, "The statement is closed")
	errCursorReplaced = newError(KindUsage, "The cursor was invalidated by a later execution of its statement")
)

// RunResult reports the effect of Statement.Run.
type RunResult struct {
	Changes         int64
	LastInsertRowid int64
}

// Column describes one output column of a statement. Fields the engine
// cannot attribute, e.g. for an expression, are nil.
type Column struct {
	Name     string
	Column   *string
	Table    *string
	Database *string
	Type     *string
}

// Statement is a prepared statement bound to its database's connection. It
// can be executed any number of times.
type Statement struct {
	db   *Database
	conn *sharedConn
	stmt engine.Stmt
	cols []engine.Column

	raw          atomic.Bool
	safeIntegers atomic.Bool
	closed       atomic.Bool
	// execs counts executions. A cursor is only valid while it matches.
	execs atomic.Uint64
}

func newStatement(d *Database, p prepared) *Statement {
	s := &Statement{db: d, conn: d.conn, stmt: p.stmt, cols: p.cols}
	s.safeIntegers.Store(p.safe)
	return s
}

func (s *Statement) check() error {
	if s.closed.Load() {
		return errStmtClosed
	}
	if s.conn.isClosed() {
		return errNotOpen
	}
	return nil
}

// Raw switches rows between []any in column order (on) and
// map[string]any keyed by column name (off). Statements that return no
// columns reject it.
func (s *Statement) Raw(on bool) error {
	if err := s.check(); err != nil {
		return err
	}
	if len(s.cols) == 0 {
		return newError(KindUsage, "The raw() method is only for statements that return data")
	}
	s.raw.Store(on)
	return nil
}

// SafeIntegers switches integers between float64 (off) and int64 (on) for
// rows read after the call.
func (s *Statement) SafeIntegers(on bool) {
	s.safeIntegers.Store(on)
}

// Columns describes the statement's output columns.
func (s *Statement) Columns() ([]Column, error) {
	if err := s.check(); err != nil {
		return nil, err
	}
	out := make([]Column, len(s.cols))
	for i, c := range s.cols {
		out[i] = Column{
			Name:     c.Name,
			Column:   c.Origin,
			Table:    c.Table,
			Database: c.Database,
			Type:     c.DeclType,
		}
	}
	return out, nil
}

func (s *Statement) names() []string {
	names := make([]string, len(s.cols))
	for i, c := range s.cols {
		names[i] = c.Name
	}
	return names
}

// lock checks the statement and takes the connection for one operation.
func (s *Statement) lock() (engine.Conn, error) {
	if s.closed.Load() {
		return nil, errStmtClosed
	}
	conn, err := s.conn.acquire()
	if err != nil {
		return nil, err
	}
	// Close may have taken the connection first and freed the statement.
	if s.closed.Load() {
		s.conn.done()
		return nil, errStmtClosed
	}
	return conn, nil
}

// begin locks the connection and starts a new execution, which invalidates
// any cursor left from the previous one.
func (s *Statement) begin() (engine.Conn, uint64, error) {
	conn, err := s.lock()
	if err != nil {
		return nil, 0, err
	}
	return conn, s.execs.Add(1), nil
}

func (s *Statement) runOp(params []any) func(context.Context) (RunResult, error) {
	return func(ctx context.Context) (RunResult, error) {
		conn, _, err := s.begin()
		if err != nil {
			return RunResult{}, err
		}
		defer s.conn.done()
		if err := s.stmt.Reset(); err != nil {
			return RunResult{}, err
		}
		args, err := bindParams(s.stmt, params)
		if err != nil {
			return RunResult{}, err
		}
		changes, err := s.stmt.Execute(ctx, args)
		if err != nil {
			return RunResult{}, err
		}
		return RunResult{Changes: int64(changes), LastInsertRowid: conn.LastInsertRowid()}, nil
	}
}

func settleRun(r RunResult, err error) (RunResult, error) {
	return r, translate(KindExecution, err)
}

// Run executes the statement for side effect. See Rows for how params bind.
func (s *Statement) Run(params ...any) (RunResult, error) {
	return blockOn(s.runOp(params), settleRun)
}

// RunAsync is the async form of Run.
func (s *Statement) RunAsync(params ...any) *Future[RunResult] {
	return spawn(s.db.runtime(), s.db.log, "run", s.runOp(params), settleRun)
}

func (s *Statement) getOp(params []any) func(context.Context) ([]engine.Value, error) {
	return func(ctx context.Context) ([]engine.Value, error) {
		if _, _, err := s.begin(); err != nil {
			return nil, err
		}
		defer s.conn.done()
		if err := s.stmt.Reset(); err != nil {
			return nil, err
		}
		args, err := bindParams(s.stmt, params)
		if err != nil {
			return nil, err
		}
		rows, err := s.stmt.Query(ctx, args)
		if err != nil {
			return nil, err
		}
		row, err := rows.Next(ctx)
		_ = rows.Close()
		if rerr := s.stmt.Reset(); err == nil {
			err = rerr
		}
		if errors.Is(err, io.EOF) {
			return nil, nil
		}
		return row, err
	}
}

func (s *Statement) settleGet() func([]engine.Value, error) (any, error) {
	names, raw, safe := s.names(), s.raw.Load(), s.safeIntegers.Load()
	return func(row []engine.Value, err error) (any, error) {
		if err != nil {
			return nil, translate(KindExecution, err)
		}
		if row == nil {
			return nil, nil
		}
		return rowShape(names, row, raw, safe), nil
	}
}

// Get returns the first row, or nil when the statement yields none. The
// statement is reset afterwards.
func (s *Statement) Get(params ...any) (any, error) {
	return blockOn(s.getOp(params), s.settleGet())
}

// GetAsync is the async form of Get.
func (s *Statement) GetAsync(params ...any) *Future[any] {
	return spawn(s.db.runtime(), s.db.log, "get", s.getOp(params), s.settleGet())
}

// execution is one Query of the statement, tagged with its execs value.
type execution struct {
	rows engine.Rows
	exec uint64
}

func (s *Statement) rowsOp(params []any) func(context.Context) (execution, error) {
	return func(ctx context.Context) (execution, error) {
		_, exec, err := s.begin()
		if err != nil {
			return execution{}, err
		}
		defer s.conn.done()
		if err := s.stmt.Reset(); err != nil {
			return execution{}, err
		}
		args, err := bindParams(s.stmt, params)
		if err != nil {
			return execution{}, err
		}
		rows, err := s.stmt.Query(ctx, args)
		if err != nil {
			return execution{}, err
		}
		return execution{rows: rows, exec: exec}, nil
	}
}

// settleRows builds the cursor and takes its connection reference.
func (s *Statement) settleRows() func(execution, error) (*Rows, error) {
	names, raw, safe := s.names(), s.raw.Load(), s.safeIntegers.Load()
	return func(e execution, err error) (*Rows, error) {
		if err != nil {
			return nil, translate(KindExecution, err)
		}
		if s.closed.Load() {
			return nil, errStmtClosed
		}
		s.conn.retain()
		return newRows(s, e.rows, e.exec, names, raw, safe), nil
	}
}

// Rows executes the statement and returns a cursor over its result. The
// cursor reads from the statement itself: running or closing the statement
// again ends it, and its next fetch fails instead of restarting.
//
// A single map[string]any argument binds parameters by name, with the
// leading ':', '@', '$' or '?' of each declared name stripped. A single
// []any argument, or a plain argument list, binds them in order.
func (s *Statement) Rows(params ...any) (*Rows, error) {
	return blockOn(s.rowsOp(params), s.settleRows())
}

// RowsAsync is the async form of Rows. The cursor holds its connection
// reference from the moment the future is awaited, so a future that is
// never awaited keeps nothing open.
func (s *Statement) RowsAsync(params ...any) *Future[*Rows] {
	return spawn(s.db.runtime(), s.db.log, "rows", s.rowsOp(params), s.settleRows())
}

// Close frees the compiled statement and drops its connection reference.
// It is safe to call more than once.
func (s *Statement) Close() error {
	if s.closed.Swap(true) {
		return nil
	}
	s.conn.cleanup(s.stmt.Close)
	s.conn.release()
	return nil
}

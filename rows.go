package libsql

import (
	"context"
	"errors"
	"io"
	"sync"

	"go.uber.org/zap"

	"turso.tech/database/libsqlgo/engine"
)

// Rows is a forward-only cursor over one execution of a statement. Next
// returns io.EOF after the last row, at which point the cursor closes
// itself. Running or closing the statement ends the cursor early.
type Rows struct {
	db    *Database
	conn  *sharedConn
	stmt  *Statement
	rows  engine.Rows
	exec  uint64
	names []string
	raw   bool
	safe  bool

	// mu allows one outstanding fetch per cursor.
	mu     sync.Mutex
	closed bool
}

func newRows(s *Statement, rows engine.Rows, exec uint64, names []string, raw, safe bool) *Rows {
	return &Rows{db: s.db, conn: s.conn, stmt: s, rows: rows, exec: exec, names: names, raw: raw, safe: safe}
}

// Columns returns the column names in row order.
func (r *Rows) Columns() []string {
	return r.names
}

func (r *Rows) fetch(ctx context.Context) ([]engine.Value, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		if r.conn.isClosed() {
			return nil, errNotOpen
		}
		return nil, io.EOF
	}
	row, err := r.step(ctx)
	if errors.Is(err, io.EOF) || err == errStmtClosed || err == errCursorReplaced {
		r.closed = true
		r.conn.release()
	}
	return row, err
}

// step reads one row with the connection held.
func (r *Rows) step(ctx context.Context) ([]engine.Value, error) {
	if _, err := r.conn.acquire(); err != nil {
		return nil, err
	}
	defer r.conn.done()
	if err := r.current(); err != nil {
		return nil, err
	}
	row, err := r.rows.Next(ctx)
	if errors.Is(err, io.EOF) {
		if cerr := r.rows.Close(); cerr != nil {
			r.db.log.Warn("closing exhausted cursor failed", zap.Error(cerr))
		}
	}
	return row, err
}

// current fails once the statement has been closed or executed again, at
// which point the engine cursor belongs to someone else.
func (r *Rows) current() error {
	if r.stmt.closed.Load() {
		return errStmtClosed
	}
	if r.stmt.execs.Load() != r.exec {
		return errCursorReplaced
	}
	return nil
}

func (r *Rows) settle(row []engine.Value, err error) (any, error) {
	if errors.Is(err, io.EOF) {
		return nil, io.EOF
	}
	if err != nil {
		return nil, translate(KindExecution, err)
	}
	return rowShape(r.names, row, r.raw, r.safe), nil
}

// Next returns the next row, or io.EOF when there are no more.
func (r *Rows) Next() (any, error) {
	return blockOn(r.fetch, r.settle)
}

// NextAsync is the async form of Next.
func (r *Rows) NextAsync() *Future[any] {
	return spawn(r.db.runtime(), r.db.log, "next", r.fetch, r.settle)
}

// Close stops the cursor before it is exhausted. It is safe to call more
// than once.
func (r *Rows) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return nil
	}
	r.closed = true
	r.conn.cleanup(func() error {
		if r.current() != nil {
			return nil
		}
		return r.rows.Close()
	})
	r.conn.release()
	return nil
}

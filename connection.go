package libsql

import (
	"sync"
	"sync/atomic"

	"go.uber.org/zap"

	"turso.tech/database/libsqlgo/engine"
)

// sharedConn is the one engine connection of a database, shared by the
// database handle and every statement and cursor derived from it. Each
// holder keeps a reference; the engine connection and database are closed
// once, when the last reference goes away.
//
// The mutex scope is a single operation: prepare, execute, or one fetch.
type sharedConn struct {
	mu   sync.Mutex
	conn engine.Conn
	db   engine.Database

	closed    atomic.Bool
	refs      atomic.Int64
	finalized sync.Once
	log       *zap.Logger
}

func newSharedConn(db engine.Database, conn engine.Conn, log *zap.Logger) *sharedConn {
	c := &sharedConn{conn: conn, db: db, log: log}
	c.refs.Store(1) // the database handle
	return c
}

// acquire locks the connection for one operation. It fails once the
// database handle is closed, including when Close happened while waiting.
func (c *sharedConn) acquire() (engine.Conn, error) {
	if c.closed.Load() {
		return nil, errNotOpen
	}
	c.refs.Add(1)
	c.mu.Lock()
	if c.closed.Load() {
		c.mu.Unlock()
		c.release()
		return nil, errNotOpen
	}
	return c.conn, nil
}

// done ends an operation started with acquire.
func (c *sharedConn) done() {
	c.mu.Unlock()
	c.release()
}

// retain adds a long-lived reference for a statement or cursor.
func (c *sharedConn) retain() {
	c.refs.Add(1)
}

// cleanup runs fn under the lock even after the database handle is closed.
// Holders use it to free their engine objects before releasing.
func (c *sharedConn) cleanup(fn func() error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := fn(); err != nil {
		c.log.Warn("engine cleanup failed", zap.Error(err))
	}
}

func (c *sharedConn) release() {
	if c.refs.Add(-1) == 0 {
		c.finalize()
	}
}

// close marks the database handle closed and drops its reference. It
// reports whether this call did the closing.
func (c *sharedConn) close() bool {
	if c.closed.Swap(true) {
		return false
	}
	c.release()
	return true
}

func (c *sharedConn) finalize() {
	c.finalized.Do(func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		if err := c.conn.Close(); err != nil {
			c.log.Warn("closing engine connection failed", zap.Error(err))
		}
		if err := c.db.Close(); err != nil {
			c.log.Warn("closing engine database failed", zap.Error(err))
		}
		c.log.Debug("connection finalized")
	})
}

func (c *sharedConn) isClosed() bool {
	return c.closed.Load()
}

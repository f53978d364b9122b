// Package libsql exposes libSQL and Turso databases to Go through a blocking
// and an async call surface.
//
// A Database owns exactly one engine connection. Statements and row cursors
// derived from it share that connection, and every operation on it is
// serialized. Async variants run on a Runtime and return a Future; host
// code that wants its callbacks on a single goroutine uses a Loop.
package libsql

import (
	"context"
	"sync/atomic"

	"go.uber.org/zap"

	"turso.tech/database/libsqlgo/engine"
	"turso.tech/database/libsqlgo/engine/native"
)

// ReplicaStats reports the replication state of a local replica.
type ReplicaStats = native.ReplicaStats

// replicator is implemented by engine databases that replicate against a
// remote primary beyond a plain Sync.
type replicator interface {
	Push(ctx context.Context) error
	Pull(ctx context.Context) (bool, error)
	Checkpoint(ctx context.Context) error
	Stats(ctx context.Context) (native.ReplicaStats, error)
}

// Database is an open database handle.
type Database struct {
	path         string
	conn         *sharedConn
	rt           *Runtime
	ownedRuntime *Runtime
	log          *zap.Logger
	safeIntegers atomic.Bool
}

// Open opens a local database file, ":memory:", or a remote database when
// path starts with libsql://, http:// or https://.
func Open(path string, opts ...Option) (*Database, error) {
	o := buildOptions(opts)
	ctx := context.Background()

	var (
		db      engine.Database
		err     error
		backend string
	)
	if IsRemotePath(path) {
		backend = "remote"
		if o.encryptionKey != "" {
			o.logger.Debug("encryption key ignored for remote database", zap.String("path", redactPath(path)))
		}
		checkAuthToken(o.logger, o.authToken)
		db, err = o.engine.OpenRemote(ctx, engine.RemoteConfig{
			URL:       path,
			AuthToken: o.authToken,
			Version:   versionString("remote"),
		})
	} else {
		backend = "local"
		db, err = o.engine.OpenLocal(ctx, engine.LocalConfig{
			Path:          path,
			EncryptionKey: o.encryptionKey,
		})
	}
	if err != nil {
		return nil, translate(KindOpen, err)
	}
	return connect(ctx, db, path, backend, o)
}

// OpenWithReplicaSync opens a local replica at path that pushes to and pulls
// from the primary at syncURL.
func OpenWithReplicaSync(path, syncURL string, opts ...Option) (*Database, error) {
	o := buildOptions(opts)
	ctx := context.Background()

	checkAuthToken(o.logger, o.syncAuthToken)
	db, err := o.engine.OpenReplica(ctx, engine.ReplicaConfig{
		Path:          path,
		SyncURL:       syncURL,
		SyncAuthToken: o.syncAuthToken,
		EncryptionKey: o.encryptionKey,
		Version:       versionString("rpc"),
	})
	if err != nil {
		return nil, translate(KindOpen, err)
	}
	return connect(ctx, db, path, "replica", o)
}

func connect(ctx context.Context, db engine.Database, path, backend string, o *options) (*Database, error) {
	conn, err := db.Connect(ctx)
	if err != nil {
		if cerr := db.Close(); cerr != nil {
			o.logger.Warn("closing engine database failed", zap.Error(cerr))
		}
		return nil, translate(KindOpen, err)
	}
	d := &Database{
		path: path,
		conn: newSharedConn(db, conn, o.logger),
		rt:   o.runtime,
		log:  o.logger,
	}
	d.safeIntegers.Store(o.safeIntegers)
	d.log.Debug("database opened", zap.String("backend", backend), zap.String("path", redactPath(path)))
	return d, nil
}

func (d *Database) runtime() *Runtime {
	if d.rt != nil {
		return d.rt
	}
	return DefaultRuntime()
}

// Path returns the path the database was opened with.
func (d *Database) Path() string {
	return d.path
}

// DefaultSafeIntegers sets whether statements prepared from now on return
// integers as int64. Existing statements keep their setting.
func (d *Database) DefaultSafeIntegers(on bool) {
	d.safeIntegers.Store(on)
}

// InTransaction reports whether the connection is inside an explicit
// transaction.
func (d *Database) InTransaction() (bool, error) {
	conn, err := d.conn.acquire()
	if err != nil {
		return false, err
	}
	defer d.conn.done()
	return !conn.IsAutocommit(), nil
}

func (d *Database) execOp(sql string) func(context.Context) (struct{}, error) {
	return func(ctx context.Context) (struct{}, error) {
		conn, err := d.conn.acquire()
		if err != nil {
			return struct{}{}, err
		}
		defer d.conn.done()
		return struct{}{}, conn.ExecuteBatch(ctx, sql)
	}
}

func settleKind(kind Kind) func(struct{}, error) (struct{}, error) {
	return func(v struct{}, err error) (struct{}, error) {
		return v, translate(kind, err)
	}
}

// Exec runs every statement in sql, discarding any rows.
func (d *Database) Exec(sql string) error {
	_, err := blockOn(d.execOp(sql), settleKind(KindExecution))
	return err
}

// ExecAsync is the async form of Exec.
func (d *Database) ExecAsync(sql string) *Future[struct{}] {
	return spawn(d.runtime(), d.log, "exec", d.execOp(sql), settleKind(KindExecution))
}

func (d *Database) syncOp(ctx context.Context) (struct{}, error) {
	if _, err := d.conn.acquire(); err != nil {
		return struct{}{}, err
	}
	defer d.conn.done()
	d.log.Debug("sync started", zap.String("path", redactPath(d.path)))
	return struct{}{}, d.conn.db.Sync(ctx)
}

// Sync performs one replication round-trip with the remote primary. It
// fails for databases that are not replicas.
func (d *Database) Sync() error {
	_, err := blockOn(d.syncOp, settleKind(KindSync))
	return err
}

// SyncAsync is the async form of Sync.
func (d *Database) SyncAsync() *Future[struct{}] {
	return spawn(d.runtime(), d.log, "sync", d.syncOp, settleKind(KindSync))
}

type prepared struct {
	stmt engine.Stmt
	cols []engine.Column
	safe bool
}

func (d *Database) prepareOp(sql string) func(context.Context) (prepared, error) {
	safe := d.safeIntegers.Load()
	return func(ctx context.Context) (prepared, error) {
		conn, err := d.conn.acquire()
		if err != nil {
			return prepared{}, err
		}
		defer d.conn.done()
		st, err := conn.Prepare(ctx, sql)
		if err != nil {
			return prepared{}, err
		}
		d.conn.retain()
		return prepared{stmt: st, cols: st.Columns(), safe: safe}, nil
	}
}

func (d *Database) settlePrepare(p prepared, err error) (*Statement, error) {
	if err != nil {
		return nil, translate(KindPrepare, err)
	}
	return newStatement(d, p), nil
}

// Prepare compiles sql into a statement. The statement starts with the
// current DefaultSafeIntegers setting.
func (d *Database) Prepare(sql string) (*Statement, error) {
	return blockOn(d.prepareOp(sql), d.settlePrepare)
}

// PrepareAsync is the async form of Prepare.
func (d *Database) PrepareAsync(sql string) *Future[*Statement] {
	return spawn(d.runtime(), d.log, "prepare", d.prepareOp(sql), d.settlePrepare)
}

func (d *Database) replica() (replicator, error) {
	r, ok := d.conn.db.(replicator)
	if !ok {
		return nil, newError(KindUsage, "the database is not a replica")
	}
	return r, nil
}

// withReplica runs fn on the replica under the connection lock.
func (d *Database) withReplica(fn func(context.Context, replicator) error) error {
	if _, err := d.conn.acquire(); err != nil {
		return err
	}
	defer d.conn.done()
	r, err := d.replica()
	if err != nil {
		return err
	}
	return translate(KindSync, fn(context.Background(), r))
}

// Push sends local changes of a replica to the primary.
func (d *Database) Push() error {
	return d.withReplica(func(ctx context.Context, r replicator) error {
		return r.Push(ctx)
	})
}

// Pull applies remote changes to a replica. It reports whether anything
// changed.
func (d *Database) Pull() (bool, error) {
	var changed bool
	err := d.withReplica(func(ctx context.Context, r replicator) error {
		var err error
		changed, err = r.Pull(ctx)
		return err
	})
	return changed, err
}

// Checkpoint folds the replica's WAL into the main database file.
func (d *Database) Checkpoint() error {
	return d.withReplica(func(ctx context.Context, r replicator) error {
		return r.Checkpoint(ctx)
	})
}

// Stats returns the replication statistics of a replica.
func (d *Database) Stats() (ReplicaStats, error) {
	var stats ReplicaStats
	err := d.withReplica(func(ctx context.Context, r replicator) error {
		var err error
		stats, err = r.Stats(ctx)
		return err
	})
	return stats, err
}

// Close releases the database handle. Statements and cursors still open
// keep the engine connection alive until they are closed, but every later
// operation fails with ErrClosed. In-flight operations are not aborted.
func (d *Database) Close() error {
	if !d.conn.close() {
		return nil
	}
	d.log.Debug("database closed", zap.String("path", redactPath(d.path)))
	if rt := d.ownedRuntime; rt != nil {
		go rt.Shutdown()
	}
	return nil
}

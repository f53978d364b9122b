package libsql

import (
	"errors"
	"io"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"turso.tech/database/libsqlgo/engine"
	"turso.tech/database/libsqlgo/engine/embedded"
	"turso.tech/database/libsqlgo/engine/remote"
	"turso.tech/database/libsqlgo/internal/hranatest"
)

func testEngine() engine.Engine {
	return engine.Mux{Local: embedded.New(embedded.Config{})}
}

func openTest(t *testing.T, opts ...Option) *Database {
	t.Helper()
	db, err := Open(":memory:", append([]Option{WithEngine(testEngine())}, opts...)...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func mustPrepare(t *testing.T, db *Database, sql string) *Statement {
	t.Helper()
	st, err := db.Prepare(sql)
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })
	return st
}

func TestOpenLocalFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "local.db")
	db, err := Open(path, WithEngine(testEngine()))
	require.NoError(t, err)
	require.Equal(t, path, db.Path())
	require.NoError(t, db.Exec("CREATE TABLE t(x); INSERT INTO t VALUES (42);"))
	require.NoError(t, db.Close())

	db, err = Open(path, WithEngine(testEngine()))
	require.NoError(t, err)
	defer db.Close()
	st := mustPrepare(t, db, "SELECT x FROM t")
	st.SafeIntegers(true)
	row, err := st.Get()
	require.NoError(t, err)
	require.Equal(t, map[string]any{"x": int64(42)}, row)
}

func TestOpenErrors(t *testing.T) {
	_, err := Open(filepath.Join(t.TempDir(), "missing", "dir", "x.db"), WithEngine(testEngine()))
	require.ErrorIs(t, err, ErrOpen)
	var le *Error
	require.ErrorAs(t, err, &le)
	assert.True(t, strings.HasPrefix(le.Code, "SQLITE_CANTOPEN"), le.Code)

	// the test engine has no remote backend
	_, err = Open("libsql://example.turso.io", WithEngine(testEngine()))
	require.ErrorIs(t, err, ErrOpen)
	require.ErrorIs(t, err, engine.ErrUnsupported)

	_, err = OpenWithReplicaSync(":memory:", "libsql://example.turso.io", WithEngine(testEngine()))
	require.ErrorIs(t, err, ErrOpen)
}

func TestOpenRemote(t *testing.T) {
	srv := hranatest.New(t)
	srv.SetAuthToken("secret")
	eng := engine.Mux{Remote: remote.New(remote.Config{})}

	db, err := Open(srv.URL, WithEngine(eng), WithAuthToken("secret"), WithEncryptionKey("ignored"))
	require.NoError(t, err)
	defer db.Close()

	require.NoError(t, db.Exec("CREATE TABLE t(id INTEGER PRIMARY KEY, name TEXT)"))
	ins := mustPrepare(t, db, "INSERT INTO t(name) VALUES (?)")
	res, err := ins.Run("alice")
	require.NoError(t, err)
	require.Equal(t, RunResult{Changes: 1, LastInsertRowid: 1}, res)

	sel := mustPrepare(t, db, "SELECT name FROM t WHERE id = :id")
	row, err := sel.Get(map[string]any{"id": 1})
	require.NoError(t, err)
	require.Equal(t, map[string]any{"name": "alice"}, row)

	headers := srv.Headers()
	require.NotEmpty(t, headers)
	require.Equal(t, versionString("remote"), headers[0].Get("User-Agent"))

	bad, err := Open(srv.URL, WithEngine(eng), WithAuthToken("wrong"))
	require.NoError(t, err)
	defer bad.Close()
	err = bad.Exec("SELECT 1")
	require.ErrorIs(t, err, ErrExecution)
	require.ErrorIs(t, err, &Error{Kind: KindExecution, Code: "SQLITE_AUTH"})
}

func TestExecBatch(t *testing.T) {
	db := openTest(t)
	require.NoError(t, db.Exec(`
		CREATE TABLE users(id INTEGER PRIMARY KEY, name TEXT);
		INSERT INTO users(name) VALUES ('a');
		INSERT INTO users(name) VALUES ('b');
	`))
	st := mustPrepare(t, db, "SELECT count(*) AS n FROM users")
	st.SafeIntegers(true)
	row, err := st.Get()
	require.NoError(t, err)
	require.Equal(t, map[string]any{"n": int64(2)}, row)

	err = db.Exec("INSERT INTO nope VALUES (1)")
	require.ErrorIs(t, err, ErrExecution)
	var le *Error
	require.ErrorAs(t, err, &le)
	require.Equal(t, "SQLITE_ERROR", le.Code)
	require.Equal(t, 1, le.RawCode)
}

func TestPrepareError(t *testing.T) {
	db := openTest(t)
	_, err := db.Prepare("SELEC 1")
	require.ErrorIs(t, err, ErrPrepare)
	var le *Error
	require.ErrorAs(t, err, &le)
	require.Equal(t, "SQLITE_ERROR", le.Code)
}

func TestInTransaction(t *testing.T) {
	db := openTest(t)
	require.NoError(t, db.Exec("CREATE TABLE t(x)"))

	in, err := db.InTransaction()
	require.NoError(t, err)
	require.False(t, in)

	require.NoError(t, db.Exec("BEGIN"))
	in, err = db.InTransaction()
	require.NoError(t, err)
	require.True(t, in)

	require.NoError(t, db.Exec("INSERT INTO t VALUES (1); COMMIT"))
	in, err = db.InTransaction()
	require.NoError(t, err)
	require.False(t, in)
}

func TestDefaultSafeIntegers(t *testing.T) {
	db := openTest(t, WithDefaultSafeIntegers(true))
	before := mustPrepare(t, db, "SELECT 1 AS v")

	db.DefaultSafeIntegers(false)
	after := mustPrepare(t, db, "SELECT 1 AS v")

	row, err := before.Get()
	require.NoError(t, err)
	require.Equal(t, map[string]any{"v": int64(1)}, row)

	row, err = after.Get()
	require.NoError(t, err)
	require.Equal(t, map[string]any{"v": float64(1)}, row)
}

func TestCloseThenUse(t *testing.T) {
	db := openTest(t)
	require.NoError(t, db.Exec("CREATE TABLE t(x); INSERT INTO t VALUES (1), (2);"))
	st, err := db.Prepare("SELECT x FROM t")
	require.NoError(t, err)
	rows, err := st.Rows()
	require.NoError(t, err)

	require.NoError(t, db.Close())
	require.NoError(t, db.Close())

	require.ErrorIs(t, db.Exec("SELECT 1"), ErrClosed)
	_, err = db.Prepare("SELECT 1")
	require.ErrorIs(t, err, ErrClosed)
	_, err = db.InTransaction()
	require.ErrorIs(t, err, ErrClosed)
	require.ErrorIs(t, db.Sync(), ErrClosed)
	_, err = db.ExecAsync("SELECT 1").Await()
	require.ErrorIs(t, err, ErrClosed)

	_, err = st.Run()
	require.ErrorIs(t, err, ErrClosed)
	_, err = st.Get()
	require.ErrorIs(t, err, ErrClosed)
	_, err = st.Rows()
	require.ErrorIs(t, err, ErrClosed)
	_, err = st.Columns()
	require.ErrorIs(t, err, ErrClosed)
	require.ErrorIs(t, st.Raw(true), ErrClosed)

	_, err = rows.Next()
	require.ErrorIs(t, err, ErrClosed)
	require.False(t, errors.Is(err, io.EOF))

	var le *Error
	require.ErrorAs(t, err, &le)
	require.Equal(t, "The database connection is not open", le.Message)

	require.NoError(t, rows.Close())
	require.NoError(t, st.Close())
	_, err = st.Run()
	require.ErrorIs(t, err, ErrClosed)
}

func TestCloseKeepsConnectionForOpenStatements(t *testing.T) {
	db := openTest(t)
	st, err := db.Prepare("SELECT 1")
	require.NoError(t, err)
	require.Equal(t, int64(2), db.conn.refs.Load())

	require.NoError(t, db.Close())
	require.Equal(t, int64(1), db.conn.refs.Load())

	require.NoError(t, st.Close())
	require.Equal(t, int64(0), db.conn.refs.Load())
	require.NoError(t, st.Close())
}

func TestSyncOnLocalDatabase(t *testing.T) {
	db := openTest(t)
	err := db.Sync()
	require.ErrorIs(t, err, ErrSync)
	require.ErrorIs(t, err, engine.ErrUnsupported)

	_, err = db.SyncAsync().Await()
	require.ErrorIs(t, err, ErrSync)

	_, err = db.Pull()
	require.ErrorIs(t, err, ErrUsage)
}

func TestAsyncDatabaseOps(t *testing.T) {
	rt := NewRuntime(RuntimeConfig{Workers: 2})
	defer rt.Shutdown()
	db := openTest(t, WithRuntime(rt))

	_, err := db.ExecAsync("CREATE TABLE t(x)").Await()
	require.NoError(t, err)

	st, err := db.PrepareAsync("INSERT INTO t VALUES (?)").Await()
	require.NoError(t, err)
	defer st.Close()

	res, err := st.RunAsync(7).Await()
	require.NoError(t, err)
	require.Equal(t, int64(1), res.Changes)

	_, err = db.PrepareAsync("NOT SQL").Await()
	require.ErrorIs(t, err, ErrPrepare)
}

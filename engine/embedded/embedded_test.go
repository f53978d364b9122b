package embedded

import (
	"context"
	"io"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"turso.tech/database/libsqlgo/engine"
)

func openConn(t *testing.T, path string) engine.Conn {
	t.Helper()
	ctx := context.Background()
	db, err := New(Config{}).OpenLocal(ctx, engine.LocalConfig{Path: path})
	require.NoError(t, err)
	conn, err := db.Connect(ctx)
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = conn.Close()
		_ = db.Close()
	})
	return conn
}

func TestExecuteAndQuery(t *testing.T) {
	ctx := context.Background()
	conn := openConn(t, ":memory:")
	require.NoError(t, conn.ExecuteBatch(ctx, "CREATE TABLE t(id INTEGER PRIMARY KEY, name TEXT, score REAL, data BLOB); CREATE INDEX t_name ON t(name);"))

	ins, err := conn.Prepare(ctx, "INSERT INTO t(name, score, data) VALUES (?, ?, ?)")
	require.NoError(t, err)
	defer ins.Close()
	require.Equal(t, 3, ins.ParameterCount())

	n, err := ins.Execute(ctx, []engine.Value{engine.Text("alice"), engine.Real(1.5), engine.Blob([]byte{1, 2})})
	require.NoError(t, err)
	require.Equal(t, uint64(1), n)
	require.Equal(t, int64(1), conn.LastInsertRowid())

	n, err = ins.Execute(ctx, []engine.Value{engine.Text("bob"), engine.Null(), engine.Blob(nil)})
	require.NoError(t, err)
	require.Equal(t, uint64(1), n)
	require.Equal(t, int64(2), conn.LastInsertRowid())

	sel, err := conn.Prepare(ctx, "SELECT id, name, score, data FROM t ORDER BY id")
	require.NoError(t, err)
	defer sel.Close()
	rows, err := sel.Query(ctx, nil)
	require.NoError(t, err)
	require.Equal(t, 4, rows.ColumnCount())
	require.Equal(t, "name", rows.ColumnName(1))

	row, err := rows.Next(ctx)
	require.NoError(t, err)
	require.Equal(t, engine.Integer(1), row[0])
	require.Equal(t, engine.Text("alice"), row[1])
	require.Equal(t, engine.Real(1.5), row[2])
	require.Equal(t, engine.KindBlob, row[3].Kind)
	require.Equal(t, []byte{1, 2}, row[3].Blob)

	row, err = rows.Next(ctx)
	require.NoError(t, err)
	require.True(t, row[2].IsNull())
	require.Equal(t, engine.KindBlob, row[3].Kind)
	require.Empty(t, row[3].Blob)

	_, err = rows.Next(ctx)
	require.ErrorIs(t, err, io.EOF)
	_, err = rows.Next(ctx)
	require.ErrorIs(t, err, io.EOF)
}

func TestColumnsMetadata(t *testing.T) {
	ctx := context.Background()
	conn := openConn(t, ":memory:")
	require.NoError(t, conn.ExecuteBatch(ctx, "CREATE TABLE users(id INTEGER, email VARCHAR(64))"))

	st, err := conn.Prepare(ctx, "SELECT email AS mail, 1 + 1 AS two FROM users")
	require.NoError(t, err)
	defer st.Close()

	cols := st.Columns()
	require.Len(t, cols, 2)
	require.Equal(t, "mail", cols[0].Name)
	require.NotNil(t, cols[0].Origin)
	require.Equal(t, "email", *cols[0].Origin)
	require.Equal(t, "users", *cols[0].Table)
	require.Equal(t, "main", *cols[0].Database)
	require.Equal(t, "VARCHAR(64)", *cols[0].DeclType)

	require.Equal(t, "two", cols[1].Name)
	require.Nil(t, cols[1].Origin)
	require.Nil(t, cols[1].Table)
	require.Nil(t, cols[1].Database)
	require.Nil(t, cols[1].DeclType)
}

func TestParameterNames(t *testing.T) {
	ctx := context.Background()
	conn := openConn(t, ":memory:")
	st, err := conn.Prepare(ctx, "SELECT :a, @b, $c, ?")
	require.NoError(t, err)
	defer st.Close()
	require.Equal(t, 4, st.ParameterCount())
	require.Equal(t, ":a", st.ParameterName(1))
	require.Equal(t, "@b", st.ParameterName(2))
	require.Equal(t, "$c", st.ParameterName(3))
	require.Equal(t, "", st.ParameterName(4))
}

func TestErrorsCarryCodes(t *testing.T) {
	ctx := context.Background()
	conn := openConn(t, ":memory:")

	_, err := conn.Prepare(ctx, "SELEC 1")
	e, ok := engine.AsError(err)
	require.True(t, ok)
	require.Equal(t, engine.CodeError, e.Primary())

	require.NoError(t, conn.ExecuteBatch(ctx, "CREATE TABLE u(x UNIQUE)"))
	st, err := conn.Prepare(ctx, "INSERT INTO u VALUES (?)")
	require.NoError(t, err)
	defer st.Close()
	_, err = st.Execute(ctx, []engine.Value{engine.Integer(1)})
	require.NoError(t, err)
	_, err = st.Execute(ctx, []engine.Value{engine.Integer(1)})
	e, ok = engine.AsError(err)
	require.True(t, ok)
	require.Equal(t, "SQLITE_CONSTRAINT_UNIQUE", engine.CodeName(e.Code))

	_, err = conn.Prepare(ctx, "   ")
	require.Error(t, err)
}

func TestAutocommit(t *testing.T) {
	ctx := context.Background()
	conn := openConn(t, ":memory:")
	require.True(t, conn.IsAutocommit())
	require.NoError(t, conn.ExecuteBatch(ctx, "BEGIN"))
	require.False(t, conn.IsAutocommit())
	require.NoError(t, conn.ExecuteBatch(ctx, "COMMIT"))
	require.True(t, conn.IsAutocommit())
}

func TestFileDatabaseAndUnsupportedModes(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "local.db")
	conn := openConn(t, path)
	require.NoError(t, conn.ExecuteBatch(ctx, "CREATE TABLE t(x); INSERT INTO t VALUES (42)"))
	require.FileExists(t, path)

	e := New(Config{})
	_, err := e.OpenRemote(ctx, engine.RemoteConfig{URL: "https://example.invalid"})
	require.ErrorIs(t, err, engine.ErrUnsupported)
	_, err = e.OpenReplica(ctx, engine.ReplicaConfig{Path: path})
	require.ErrorIs(t, err, engine.ErrUnsupported)
}

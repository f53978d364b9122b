package libsql

import (
	"context"
	"database/sql"
	"errors"
	"math"
	"slices"
	"testing"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// openSQL opens an in-memory database through database/sql. Every pooled
// connection would be a separate :memory: database, so the pool holds one.
func openSQL(t *testing.T) *sql.DB {
	t.Helper()
	connector, err := NewConnector(":memory:", WithEngine(testEngine()))
	require.NoError(t, err)
	db := sql.OpenDB(connector)
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = db.Close() })
	require.NoError(t, db.Ping())
	return db
}

func mustExec(t *testing.T, db *sql.DB, q string, args ...any) sql.Result {
	t.Helper()
	res, err := db.Exec(q, args...)
	require.NoError(t, err, "exec %q", q)
	return res
}

func TestParseDSN(t *testing.T) {
	c, err := parseDSN("file.db")
	require.NoError(t, err)
	require.Equal(t, "file.db", c.path)
	require.Empty(t, c.syncURL)

	c, err = parseDSN("local.db?syncUrl=libsql%3A%2F%2Fdb.example.com&syncAuthToken=t&encryptionKey=k&safeIntegers=false")
	require.NoError(t, err)
	require.Equal(t, "local.db", c.path)
	require.Equal(t, "libsql://db.example.com", c.syncURL)
	o := buildOptions(append(c.opts, WithEngine(testEngine())))
	require.Equal(t, "t", o.syncAuthToken)
	require.Equal(t, "k", o.encryptionKey)
	require.False(t, o.safeIntegers)

	c, err = parseDSN("https://db.example.com?authToken=abc&tls=1")
	require.NoError(t, err)
	require.Equal(t, "https://db.example.com?tls=1", c.path)
	require.Equal(t, "abc", buildOptions(append(c.opts, WithEngine(testEngine()))).authToken)

	_, err = parseDSN("x.db?safeIntegers=maybe")
	require.Error(t, err)
	_, err = parseDSN("x.db?%zz")
	require.Error(t, err)
}

func TestDriverQuery(t *testing.T) {
	db := openSQL(t)
	mustExec(t, db, "CREATE TABLE test (foo INTEGER, bar TEXT, baz BLOB)")
	stmt, err := db.Prepare("INSERT INTO test (foo, bar, baz) VALUES (?, ?, ?)")
	require.NoError(t, err)
	for i := 0; i < 5; i++ {
		_, err := stmt.Exec(i, "item", []byte{byte(i)})
		require.NoError(t, err)
	}
	require.NoError(t, stmt.Close())

	rows, err := db.Query("SELECT * FROM test WHERE foo >= ? ORDER BY foo", 2)
	require.NoError(t, err)
	defer rows.Close()

	cols, err := rows.Columns()
	require.NoError(t, err)
	require.Equal(t, []string{"foo", "bar", "baz"}, cols)
	types, err := rows.ColumnTypes()
	require.NoError(t, err)
	require.Equal(t, "INTEGER", types[0].DatabaseTypeName())

	var got []int
	for rows.Next() {
		var (
			foo int
			bar string
			baz []byte
		)
		require.NoError(t, rows.Scan(&foo, &bar, &baz))
		require.Equal(t, "item", bar)
		require.Equal(t, []byte{byte(foo)}, baz)
		got = append(got, foo)
	}
	require.NoError(t, rows.Err())
	require.Equal(t, []int{2, 3, 4}, got)
}

func TestDriverTransaction(t *testing.T) {
	db := openSQL(t)
	mustExec(t, db, "CREATE TABLE test (id INTEGER PRIMARY KEY, name TEXT)")
	mustExec(t, db, "INSERT INTO test (id, name) VALUES (1, 'Initial')")

	tx, err := db.Begin()
	require.NoError(t, err)
	_, err = tx.Exec("INSERT INTO test (id, name) VALUES (2, 'Transaction')")
	require.NoError(t, err)
	require.NoError(t, tx.Commit())
	require.ErrorIs(t, tx.Commit(), sql.ErrTxDone)

	tx, err = db.Begin()
	require.NoError(t, err)
	_, err = tx.Exec("INSERT INTO test (id, name) VALUES (3, 'Rolled back')")
	require.NoError(t, err)
	require.NoError(t, tx.Rollback())

	var n int
	require.NoError(t, db.QueryRow("SELECT count(*) FROM test").Scan(&n))
	require.Equal(t, 2, n)
}

func TestDriverTxDone(t *testing.T) {
	tx := &sqlTx{done: true}
	require.ErrorIs(t, tx.Commit(), ErrTxDone)
	require.ErrorIs(t, tx.Rollback(), ErrTxDone)
}

func TestDriverLastInsertIDAndRowsAffected(t *testing.T) {
	db := openSQL(t)
	mustExec(t, db, `CREATE TABLE t(id INTEGER PRIMARY KEY, name TEXT)`)
	res := mustExec(t, db, `INSERT INTO t(name) VALUES ('alice')`)
	id, err := res.LastInsertId()
	require.NoError(t, err)
	require.Equal(t, int64(1), id)

	res = mustExec(t, db, `INSERT INTO t(name) VALUES (?), (?)`, "bob", "carol")
	ra, err := res.RowsAffected()
	require.NoError(t, err)
	require.Equal(t, int64(2), ra)

	res = mustExec(t, db, `UPDATE t SET name = upper(name)`)
	ra, err = res.RowsAffected()
	require.NoError(t, err)
	require.Equal(t, int64(3), ra)
}

func TestDriverMultiStatementExecution(t *testing.T) {
	db := openSQL(t)
	mustExec(t, db, `
		CREATE TABLE a(x);
		CREATE TABLE b(y);
		INSERT INTO a VALUES (1);
		INSERT INTO b VALUES (2);
	`)
	var x, y int
	require.NoError(t, db.QueryRow("SELECT a.x, b.y FROM a, b").Scan(&x, &y))
	require.Equal(t, 1, x)
	require.Equal(t, 2, y)
}

func TestDriverNamedParameters(t *testing.T) {
	db := openSQL(t)
	mustExec(t, db, "CREATE TABLE t(a, b)")
	mustExec(t, db, "INSERT INTO t VALUES (:a, :b)", sql.Named("b", "two"), sql.Named("a", 1))

	var (
		a int
		b string
	)
	require.NoError(t, db.QueryRow("SELECT a, b FROM t WHERE a = @a", sql.Named("a", 1)).Scan(&a, &b))
	require.Equal(t, 1, a)
	require.Equal(t, "two", b)

	_, err := db.Exec("INSERT INTO t VALUES (:a, :b)", sql.Named("a", 1))
	require.ErrorIs(t, err, ErrBinding)
}

func TestDriverDataTypes(t *testing.T) {
	db := openSQL(t)
	mustExec(t, db, `
		CREATE TABLE types_test (
			col_integer INTEGER,
			col_real REAL,
			col_text TEXT,
			col_blob BLOB,
			col_boolean BOOLEAN,
			col_datetime DATETIME,
			col_null TEXT
		)`)
	when := time.Date(2024, 5, 6, 7, 8, 9, 0, time.UTC)
	mustExec(t, db, `INSERT INTO types_test VALUES (?, ?, ?, ?, ?, ?, ?)`,
		int64(math.MaxInt64), 3.14159, "Hello, 世界", []byte{1, 2, 3}, true, when, nil)

	var (
		colInt      int64
		colReal     float64
		colText     string
		colBlob     []byte
		colBool     bool
		colDateTime time.Time
		colNull     sql.NullString
	)
	require.NoError(t, db.QueryRow("SELECT * FROM types_test").Scan(
		&colInt, &colReal, &colText, &colBlob, &colBool, &colDateTime, &colNull))
	require.Equal(t, int64(math.MaxInt64), colInt)
	require.InDelta(t, 3.14159, colReal, 1e-9)
	require.Equal(t, "Hello, 世界", colText)
	require.True(t, slices.Equal(colBlob, []byte{1, 2, 3}))
	require.True(t, colBool)
	require.True(t, when.Equal(colDateTime), colDateTime)
	require.False(t, colNull.Valid)
}

func TestDriverErrors(t *testing.T) {
	db := openSQL(t)
	_, err := db.Exec("SELEC 1")
	require.ErrorIs(t, err, ErrExecution)

	_, err = db.Query("SELECT * FROM missing")
	require.ErrorIs(t, err, ErrPrepare)

	var le *Error
	require.True(t, errors.As(err, &le))
	require.Equal(t, "SQLITE_ERROR", le.Code)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = db.ExecContext(ctx, "SELECT 1")
	require.ErrorIs(t, err, context.Canceled)
}

func TestDriverConnClosed(t *testing.T) {
	connector, err := NewConnector(":memory:", WithEngine(testEngine()))
	require.NoError(t, err)
	conn, err := connector.Connect(context.Background())
	require.NoError(t, err)

	c := conn.(*sqlConn)
	st, err := c.Prepare("SELECT 1")
	require.NoError(t, err)
	require.NoError(t, st.Close())
	_, err = st.(*sqlStmt).ExecContext(context.Background(), nil)
	require.ErrorIs(t, err, ErrStmtClosed)

	require.NoError(t, c.Close())
	require.NoError(t, c.Close())
	_, err = c.Prepare("SELECT 1")
	require.ErrorIs(t, err, ErrConnClosed)
}

type person struct {
	ID    int64  `db:"id"`
	Name  string `db:"name"`
	Email string `db:"email"`
}

func TestSqlx(t *testing.T) {
	sqlx.BindDriver(DriverName, sqlx.QUESTION)
	db := sqlx.NewDb(openSQL(t), DriverName)

	db.MustExec("CREATE TABLE person (id INTEGER PRIMARY KEY, name TEXT, email TEXT)")
	_, err := db.NamedExec("INSERT INTO person (name, email) VALUES (:name, :email)",
		[]person{{Name: "Ada", Email: "ada@example.com"}, {Name: "Alan", Email: "alan@example.com"}})
	require.NoError(t, err)

	var people []person
	require.NoError(t, db.Select(&people, "SELECT * FROM person ORDER BY id"))
	require.Equal(t, []person{
		{ID: 1, Name: "Ada", Email: "ada@example.com"},
		{ID: 2, Name: "Alan", Email: "alan@example.com"},
	}, people)

	var one person
	require.NoError(t, db.Get(&one, db.Rebind("SELECT * FROM person WHERE name = ?"), "Alan"))
	require.Equal(t, int64(2), one.ID)
}

type Product struct {
	ID    uint `gorm:"primaryKey"`
	Code  string
	Price uint
}

func TestGorm(t *testing.T) {
	sqlDB := openSQL(t)
	db, err := gorm.Open(sqlite.Dialector{Conn: sqlDB}, &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	require.NoError(t, err)

	require.NoError(t, db.AutoMigrate(&Product{}))
	require.NoError(t, db.Create(&Product{Code: "D42", Price: 100}).Error)
	require.NoError(t, db.Create(&Product{Code: "F7", Price: 300}).Error)

	var p Product
	require.NoError(t, db.First(&p, "code = ?", "D42").Error)
	require.Equal(t, uint(100), p.Price)

	require.NoError(t, db.Model(&p).Update("Price", 200).Error)
	var n int64
	require.NoError(t, db.Model(&Product{}).Where("price >= ?", 200).Count(&n).Error)
	require.Equal(t, int64(2), n)

	require.NoError(t, db.Delete(&p).Error)
	require.NoError(t, db.Model(&Product{}).Count(&n).Error)
	require.Equal(t, int64(1), n)
}

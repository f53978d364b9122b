package libsql

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"
)

// DriverName is the name the database/sql driver registers under.
const DriverName = "libsql"

// database/sql adapter errors
var (
	ErrStmtClosed = errors.New("libsql: statement closed")
	ErrConnClosed = errors.New("libsql: connection closed")
	ErrRowsClosed = errors.New("libsql: rows closed")
	ErrTxDone     = errors.New("libsql: transaction done")
)

type sqlDriver struct{}

type sqlConn struct {
	db *Database

	mu     sync.Mutex
	closed bool
}

type sqlStmt struct {
	conn   *sqlConn
	stmt   *Statement
	closed bool
}

type sqlRows struct {
	stmt  *Statement
	owned bool // stmt was prepared for this query only
	rows  *Rows
	cols  []Column

	closed bool
}

type sqlResult struct {
	lastInsertId int64
	rowsAffected int64
}

type sqlTx struct {
	conn *sqlConn
	done bool
}

func init() {
	sql.Register(DriverName, &sqlDriver{})
}

// Open opens the database named by dsn with the default engines.
func (d *sqlDriver) Open(dsn string) (driver.Conn, error) {
	c, err := NewConnector(dsn)
	if err != nil {
		return nil, err
	}
	return c.Connect(context.Background())
}

// --- Connector ---

// Connector opens database/sql connections for a DSN of the form
// <path>[?authToken=&encryptionKey=&syncUrl=&syncAuthToken=&safeIntegers=].
// Every connection is a separate Database.
type Connector struct {
	path    string
	syncURL string
	opts    []Option
}

// NewConnector parses dsn. Extra options apply to every connection and take
// precedence over the DSN.
func NewConnector(dsn string, opts ...Option) (*Connector, error) {
	c, err := parseDSN(dsn)
	if err != nil {
		return nil, err
	}
	c.opts = append(c.opts, opts...)
	return c, nil
}

// Connect implements driver.Connector.
func (c *Connector) Connect(ctx context.Context) (driver.Conn, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var (
		db  *Database
		err error
	)
	if c.syncURL != "" {
		db, err = OpenWithReplicaSync(c.path, c.syncURL, c.opts...)
	} else {
		db, err = Open(c.path, c.opts...)
	}
	if err != nil {
		return nil, err
	}
	return &sqlConn{db: db}, nil
}

// Driver implements driver.Connector.
func (c *Connector) Driver() driver.Driver {
	return &sqlDriver{}
}

var _ driver.Connector = (*Connector)(nil)

// parseDSN supports format: <path>[?authToken=<string>&encryptionKey=<string>&syncUrl=<string>&syncAuthToken=<string>&safeIntegers=0|1]
// Remote paths keep their own query string apart from the keys above.
func parseDSN(dsn string) (*Connector, error) {
	c := &Connector{path: dsn, opts: []Option{WithDefaultSafeIntegers(true)}}
	qMark := strings.IndexByte(dsn, '?')
	if qMark < 0 {
		return c, nil
	}
	vals, err := url.ParseQuery(dsn[qMark+1:])
	if err != nil {
		return nil, fmt.Errorf("libsql: parsing dsn: %w", err)
	}
	take := func(key string) string {
		v := vals.Get(key)
		vals.Del(key)
		return v
	}
	if v := take("authToken"); v != "" {
		c.opts = append(c.opts, WithAuthToken(v))
	}
	if v := take("encryptionKey"); v != "" {
		c.opts = append(c.opts, WithEncryptionKey(v))
	}
	if v := take("syncAuthToken"); v != "" {
		c.opts = append(c.opts, WithSyncAuthToken(v))
	}
	c.syncURL = take("syncUrl")
	if v := take("safeIntegers"); v != "" {
		on, err := strconv.ParseBool(v)
		if err != nil {
			return nil, fmt.Errorf("libsql: parsing dsn: safeIntegers: %w", err)
		}
		c.opts = append(c.opts, WithDefaultSafeIntegers(on))
	}
	c.path = dsn[:qMark]
	if len(vals) > 0 {
		c.path += "?" + vals.Encode()
	}
	return c, nil
}

// --- driver.Conn and friends ---

var (
	_ driver.Conn               = (*sqlConn)(nil)
	_ driver.ConnPrepareContext = (*sqlConn)(nil)
	_ driver.ExecerContext      = (*sqlConn)(nil)
	_ driver.QueryerContext     = (*sqlConn)(nil)
	_ driver.Pinger             = (*sqlConn)(nil)
	_ driver.ConnBeginTx        = (*sqlConn)(nil)
)

func (c *sqlConn) checkOpen() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return ErrConnClosed
	}
	return nil
}

func (c *sqlConn) Prepare(query string) (driver.Stmt, error) {
	return c.PrepareContext(context.Background(), query)
}

func (c *sqlConn) PrepareContext(ctx context.Context, query string) (driver.Stmt, error) {
	if err := c.checkOpen(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	st, err := c.db.Prepare(query)
	if err != nil {
		return nil, err
	}
	return &sqlStmt{conn: c, stmt: st}, nil
}

func (c *sqlConn) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil
	}
	c.closed = true
	return c.db.Close()
}

func (c *sqlConn) Begin() (driver.Tx, error) {
	return c.BeginTx(context.Background(), driver.TxOptions{})
}

func (c *sqlConn) BeginTx(ctx context.Context, _ driver.TxOptions) (driver.Tx, error) {
	if err := c.checkOpen(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := c.db.Exec("BEGIN"); err != nil {
		return nil, err
	}
	return &sqlTx{conn: c}, nil
}

func (c *sqlConn) Ping(ctx context.Context) error {
	if err := c.checkOpen(); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	st, err := c.db.Prepare("SELECT 1")
	if err != nil {
		return err
	}
	defer st.Close()
	_, err = st.Get()
	return err
}

// ExecContext runs a statement with arguments, or a whole script without.
func (c *sqlConn) ExecContext(ctx context.Context, query string, args []driver.NamedValue) (driver.Result, error) {
	if err := c.checkOpen(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if len(args) == 0 {
		if err := c.db.Exec(query); err != nil {
			return nil, err
		}
		return c.lastResult()
	}
	st, err := c.db.Prepare(query)
	if err != nil {
		return nil, err
	}
	defer st.Close()
	return execStmt(st, args)
}

// lastResult reads the effect of the most recent statement on the
// connection.
func (c *sqlConn) lastResult() (driver.Result, error) {
	st, err := c.db.Prepare("SELECT changes(), last_insert_rowid()")
	if err != nil {
		return nil, err
	}
	defer st.Close()
	st.SafeIntegers(true)
	if err := st.Raw(true); err != nil {
		return nil, err
	}
	v, err := st.Get()
	if err != nil {
		return nil, err
	}
	row, _ := v.([]any)
	res := &sqlResult{}
	if len(row) == 2 {
		res.rowsAffected, _ = row[0].(int64)
		res.lastInsertId, _ = row[1].(int64)
	}
	return res, nil
}

func (c *sqlConn) QueryContext(ctx context.Context, query string, args []driver.NamedValue) (driver.Rows, error) {
	if err := c.checkOpen(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	st, err := c.db.Prepare(query)
	if err != nil {
		return nil, err
	}
	rows, err := queryStmt(st, args, true)
	if err != nil {
		_ = st.Close()
		return nil, err
	}
	return rows, nil
}

// --- driver.Stmt ---

var (
	_ driver.Stmt             = (*sqlStmt)(nil)
	_ driver.StmtExecContext  = (*sqlStmt)(nil)
	_ driver.StmtQueryContext = (*sqlStmt)(nil)
)

func (s *sqlStmt) Close() error {
	if s.closed {
		return nil
	}
	s.closed = true
	return s.stmt.Close()
}

// NumInput returns -1; the statement checks its own arguments.
func (s *sqlStmt) NumInput() int {
	return -1
}

func (s *sqlStmt) Exec(args []driver.Value) (driver.Result, error) {
	return s.ExecContext(context.Background(), namedValues(args))
}

func (s *sqlStmt) ExecContext(ctx context.Context, args []driver.NamedValue) (driver.Result, error) {
	if s.closed {
		return nil, ErrStmtClosed
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return execStmt(s.stmt, args)
}

func (s *sqlStmt) Query(args []driver.Value) (driver.Rows, error) {
	return s.QueryContext(context.Background(), namedValues(args))
}

func (s *sqlStmt) QueryContext(ctx context.Context, args []driver.NamedValue) (driver.Rows, error) {
	if s.closed {
		return nil, ErrStmtClosed
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return queryStmt(s.stmt, args, false)
}

func namedValues(args []driver.Value) []driver.NamedValue {
	named := make([]driver.NamedValue, len(args))
	for i, v := range args {
		named[i] = driver.NamedValue{Ordinal: i + 1, Value: v}
	}
	return named
}

func execStmt(st *Statement, args []driver.NamedValue) (driver.Result, error) {
	params, err := driverParams(args)
	if err != nil {
		return nil, err
	}
	res, err := st.Run(params...)
	if err != nil {
		return nil, err
	}
	return &sqlResult{lastInsertId: res.LastInsertRowid, rowsAffected: res.Changes}, nil
}

func queryStmt(st *Statement, args []driver.NamedValue, owned bool) (*sqlRows, error) {
	params, err := driverParams(args)
	if err != nil {
		return nil, err
	}
	cols, err := st.Columns()
	if err != nil {
		return nil, err
	}
	if len(cols) > 0 {
		if err := st.Raw(true); err != nil {
			return nil, err
		}
	}
	rows, err := st.Rows(params...)
	if err != nil {
		return nil, err
	}
	return &sqlRows{stmt: st, owned: owned, rows: rows, cols: cols}, nil
}

// driverParams converts database/sql arguments into bridge parameters:
// a map when any argument is named, a list otherwise.
func driverParams(args []driver.NamedValue) ([]any, error) {
	if len(args) == 0 {
		return nil, nil
	}
	hasNamed := false
	for _, nv := range args {
		if nv.Name != "" {
			hasNamed = true
			break
		}
	}
	if !hasNamed {
		out := make([]any, len(args))
		for i, nv := range args {
			out[i] = driverValue(nv.Value)
		}
		return []any{out}, nil
	}
	named := make(map[string]any, len(args))
	for _, nv := range args {
		if nv.Name == "" {
			return nil, fmt.Errorf("libsql: cannot mix positional argument %d with named arguments", nv.Ordinal)
		}
		named[nv.Name] = driverValue(nv.Value)
	}
	return []any{named}, nil
}

// driverValue maps the database/sql value types the bridge has no binding
// for.
func driverValue(v driver.Value) any {
	switch x := v.(type) {
	case bool:
		if x {
			return int64(1)
		}
		return int64(0)
	case time.Time:
		return x.Format(time.RFC3339Nano)
	default:
		return v
	}
}

// --- driver.Rows ---

var (
	_ driver.Rows                           = (*sqlRows)(nil)
	_ driver.RowsColumnTypeDatabaseTypeName = (*sqlRows)(nil)
)

func (r *sqlRows) Columns() []string {
	return r.rows.Columns()
}

func (r *sqlRows) ColumnTypeDatabaseTypeName(index int) string {
	if index < len(r.cols) && r.cols[index].Type != nil {
		return strings.ToUpper(*r.cols[index].Type)
	}
	return ""
}

func (r *sqlRows) Close() error {
	if r.closed {
		return nil
	}
	r.closed = true
	err := r.rows.Close()
	if r.owned {
		if cerr := r.stmt.Close(); err == nil {
			err = cerr
		}
	}
	return err
}

func (r *sqlRows) Next(dest []driver.Value) error {
	if r.closed {
		return ErrRowsClosed
	}
	v, err := r.rows.Next()
	if err != nil {
		return err
	}
	row, _ := v.([]any)
	if len(dest) != len(row) {
		return fmt.Errorf("libsql: expected %d dests, got %d", len(row), len(dest))
	}
	for i, val := range row {
		if s, ok := val.(string); ok && i < len(r.cols) && isTimeColumn(r.cols[i].Type) {
			if t, err := parseTimeString(s); err == nil {
				dest[i] = t
				continue
			}
		}
		dest[i] = val
	}
	return nil
}

// --- driver.Result ---

var _ driver.Result = (*sqlResult)(nil)

func (r *sqlResult) LastInsertId() (int64, error) {
	return r.lastInsertId, nil
}

func (r *sqlResult) RowsAffected() (int64, error) {
	return r.rowsAffected, nil
}

// --- driver.Tx ---

var _ driver.Tx = (*sqlTx)(nil)

func (tx *sqlTx) Commit() error {
	if tx.done {
		return ErrTxDone
	}
	tx.done = true
	return tx.conn.db.Exec("COMMIT")
}

func (tx *sqlTx) Rollback() error {
	if tx.done {
		return ErrTxDone
	}
	tx.done = true
	return tx.conn.db.Exec("ROLLBACK")
}

// isTimeColumn checks if the column declared type indicates a time/date column.
// This matches the behavior of github.com/mattn/go-sqlite3.
func isTimeColumn(decltype *string) bool {
	if decltype == nil {
		return false
	}
	upper := strings.ToUpper(*decltype)
	return upper == "TIMESTAMP" || upper == "DATETIME" || upper == "DATE"
}

// timestampFormats are the timestamp formats go-sqlite3 accepts.
var timestampFormats = []string{
	"2006-01-02 15:04:05.999999999-07:00",
	"2006-01-02T15:04:05.999999999-07:00",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04",
	"2006-01-02T15:04",
	"2006-01-02",
}

func parseTimeString(s string) (time.Time, error) {
	s = strings.TrimSuffix(s, "Z")
	for _, format := range timestampFormats {
		if t, err := time.ParseInLocation(format, s, time.UTC); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("cannot parse %q as time", s)
}

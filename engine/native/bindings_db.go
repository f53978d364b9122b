package native

import (
	"fmt"
	"runtime"
	"unsafe"

	"github.com/ebitengine/purego"

	"turso.tech/database/libsqlgo/engine"
)

// note, that the only real statuses are OK, DONE, ROW, IO - everything else is errors
type TursoStatusCode int32

const (
	TURSO_OK            TursoStatusCode = 0
	TURSO_DONE          TursoStatusCode = 1
	TURSO_ROW           TursoStatusCode = 2
	TURSO_IO            TursoStatusCode = 3
	TURSO_BUSY          TursoStatusCode = 4
	TURSO_INTERRUPT     TursoStatusCode = 5
	TURSO_ERROR         TursoStatusCode = 127
	TURSO_MISUSE        TursoStatusCode = 128
	TURSO_CONSTRAINT    TursoStatusCode = 129
	TURSO_READONLY      TursoStatusCode = 130
	TURSO_DATABASE_FULL TursoStatusCode = 131
	TURSO_NOTADB        TursoStatusCode = 132
	TURSO_CORRUPT       TursoStatusCode = 133
)

// status -> (SQLite primary code, fallback message)
var statusCodes = map[TursoStatusCode]struct {
	code int
	msg  string
}{
	TURSO_BUSY:          {engine.CodeBusy, "turso: database is busy"},
	TURSO_INTERRUPT:     {engine.CodeInterrupt, "turso: operation interrupted"},
	TURSO_ERROR:         {engine.CodeError, "turso: generic error"},
	TURSO_MISUSE:        {engine.CodeMisuse, "turso: API misuse"},
	TURSO_CONSTRAINT:    {engine.CodeConstraint, "turso: constraint failed"},
	TURSO_READONLY:      {engine.CodeReadonly, "turso: database is read-only"},
	TURSO_DATABASE_FULL: {engine.CodeFull, "turso: database or disk is full"},
	TURSO_NOTADB:        {engine.CodeNotADB, "turso: not a database"},
	TURSO_CORRUPT:       {engine.CodeCorrupt, "turso: database is corrupt"},
}

type TursoType int32

const (
	TURSO_TYPE_UNKNOWN TursoType = 0
	TURSO_TYPE_INTEGER TursoType = 1
	TURSO_TYPE_REAL    TursoType = 2
	TURSO_TYPE_TEXT    TursoType = 3
	TURSO_TYPE_BLOB    TursoType = 4
	TURSO_TYPE_NULL    TursoType = 5
)

type TursoTracingLevel int32

const (
	TURSO_TRACING_LEVEL_ERROR TursoTracingLevel = 1
	TURSO_TRACING_LEVEL_WARN  TursoTracingLevel = 2
	TURSO_TRACING_LEVEL_INFO  TursoTracingLevel = 3
	TURSO_TRACING_LEVEL_DEBUG TursoTracingLevel = 4
	TURSO_TRACING_LEVEL_TRACE TursoTracingLevel = 5
)

// opaque pointers are passed back to the library as-is
type turso_database_t struct{}
type turso_connection_t struct{}
type turso_statement_t struct{}

type TursoDatabase *turso_database_t
type TursoConnection *turso_connection_t
type TursoStatement *turso_statement_t

// TursoLog is one tracing event emitted by the library.
type TursoLog struct {
	Message   string
	Target    string
	File      string
	Timestamp uint64
	Line      uint
	Level     TursoTracingLevel
}

type TursoLogger func(log TursoLog)

// TursoConfig is the global library configuration.
type TursoConfig struct {
	Logger   TursoLogger
	LogLevel string
}

// TursoDatabaseConfig describes one database.
type TursoDatabaseConfig struct {
	// Path to the database file or ":memory:"
	Path string
	// Optional comma separated list of experimental features to enable
	ExperimentalFeatures string
	// Parameter which defines who drives the IO - callee or the caller
	AsyncIO bool
	// Optional VFS name
	Vfs string
	// Encryption cipher and hex encoded key; both empty for plain databases
	EncryptionCipher string
	EncryptionHexkey string
}

// private C structs MUST have fields with low level types (e.g. uintptr, numbers)
type turso_status_code_t int32
type turso_type_t int32

// Used only for reading callback payloads.
type c_turso_log_t struct {
	Message   uintptr // const char*
	Target    uintptr // const char*
	File      uintptr // const char*
	Timestamp uint64
	Line      uintptr // size_t
	Level     int32   // turso_tracing_level_t
	_         [4]byte // padding to match C alignment (ensure 8-byte struct alignment)
}

type c_turso_config_t struct {
	Logger   uintptr // void (*)(const turso_log_t*)
	LogLevel uintptr // const char*
}

type c_turso_database_config_t struct {
	Path                 uintptr // const char*
	ExperimentalFeatures uintptr // const char* | NULL
	AsyncIO              uint8   // _Bool
	_                    [7]byte // padding to 8-byte alignment
	Vfs                  uintptr // const char* | NULL
	EncryptionCipher     uintptr // const char* | NULL
	EncryptionHexkey     uintptr // const char* | NULL
}

// C extern functions; they only ever take the c_ structs above.
var (
	c_turso_setup func(
		config unsafe.Pointer, // const turso_config_t*
		errorOptOut unsafe.Pointer, // const char**
	) turso_status_code_t

	c_turso_database_new func(
		config unsafe.Pointer, // const turso_database_config_t*
		database unsafe.Pointer, // turso_database_t**
		errorOptOut unsafe.Pointer, // const char**
	) turso_status_code_t

	c_turso_database_open func(
		database unsafe.Pointer, // const turso_database_t*
		errorOptOut unsafe.Pointer, // const char**
	) turso_status_code_t

	c_turso_database_connect func(
		self unsafe.Pointer, // const turso_database_t*
		connection unsafe.Pointer, // turso_connection_t**
		errorOptOut unsafe.Pointer, // const char**
	) turso_status_code_t

	c_turso_connection_get_autocommit func(
		self unsafe.Pointer, // const turso_connection_t*
	) bool

	c_turso_connection_last_insert_rowid func(
		self unsafe.Pointer, // const turso_connection_t*
	) int64

	c_turso_connection_set_busy_timeout_ms func(
		self unsafe.Pointer, // const turso_connection_t*
		timeoutMs int64, // int64_t
	)

	c_turso_connection_prepare_single func(
		self unsafe.Pointer, // const turso_connection_t*
		sql string, // const char*
		statement unsafe.Pointer, // turso_statement_t**
		errorOptOut unsafe.Pointer, // const char**
	) turso_status_code_t

	c_turso_connection_prepare_first func(
		self unsafe.Pointer, // const turso_connection_t*
		sql string, // const char*
		statement unsafe.Pointer, // turso_statement_t**
		tailIdx unsafe.Pointer, // size_t*
		errorOptOut unsafe.Pointer, // const char**
	) turso_status_code_t

	c_turso_connection_close func(
		self unsafe.Pointer, // const turso_connection_t*
		errorOptOut unsafe.Pointer, // const char**
	) turso_status_code_t

	c_turso_statement_execute func(
		self unsafe.Pointer, // const turso_statement_t*
		rowsChanges unsafe.Pointer, // uint64_t*
		errorOptOut unsafe.Pointer, // const char**
	) turso_status_code_t

	c_turso_statement_step func(
		self unsafe.Pointer, // const turso_statement_t*
		errorOptOut unsafe.Pointer, // const char**
	) turso_status_code_t

	c_turso_statement_run_io func(
		self unsafe.Pointer, // const turso_statement_t*
		errorOptOut unsafe.Pointer, // const char**
	) turso_status_code_t

	c_turso_statement_reset func(
		self unsafe.Pointer, // const turso_statement_t*
		errorOptOut unsafe.Pointer, // const char**
	) turso_status_code_t

	c_turso_statement_finalize func(
		self unsafe.Pointer, // const turso_statement_t*
		errorOptOut unsafe.Pointer, // const char**
	) turso_status_code_t

	c_turso_statement_column_count func(
		self unsafe.Pointer, // const turso_statement_t*
	) int64

	c_turso_statement_column_name func(
		self unsafe.Pointer, // const turso_statement_t*
		index uintptr, // size_t
	) unsafe.Pointer // const char*

	c_turso_statement_column_decltype func(
		self unsafe.Pointer, // const turso_statement_t*
		index uintptr, // size_t
	) unsafe.Pointer // const char* | NULL

	c_turso_statement_row_value_kind func(
		self unsafe.Pointer, // const turso_statement_t*
		index uintptr, // size_t
	) turso_type_t

	c_turso_statement_row_value_bytes_count func(
		self unsafe.Pointer, // const turso_statement_t*
		index uintptr, // size_t
	) int64

	c_turso_statement_row_value_bytes_ptr func(
		self unsafe.Pointer, // const turso_statement_t*
		index uintptr, // size_t
	) unsafe.Pointer

	c_turso_statement_row_value_int func(
		self unsafe.Pointer, // const turso_statement_t*
		index uintptr, // size_t
	) int64

	c_turso_statement_row_value_double func(
		self unsafe.Pointer, // const turso_statement_t*
		index uintptr, // size_t
	) float64

	c_turso_statement_parameters_count func(
		self unsafe.Pointer, // const turso_statement_t*
	) int64

	c_turso_statement_named_position func(
		self unsafe.Pointer, // const turso_statement_t*
		name string, // const char*
	) int64

	c_turso_statement_bind_positional_null func(
		self unsafe.Pointer, // const turso_statement_t*
		position uintptr, // size_t
	) turso_status_code_t

	c_turso_statement_bind_positional_int func(
		self unsafe.Pointer, // const turso_statement_t*
		position uintptr, // size_t
		value int64, // int64_t
	) turso_status_code_t

	c_turso_statement_bind_positional_double func(
		self unsafe.Pointer, // const turso_statement_t*
		position uintptr, // size_t
		value float64, // double
	) turso_status_code_t

	c_turso_statement_bind_positional_blob func(
		self unsafe.Pointer, // const turso_statement_t*
		position uintptr, // size_t
		ptr unsafe.Pointer, // const uint8_t*
		len uintptr, // size_t
	) turso_status_code_t

	c_turso_statement_bind_positional_text func(
		self unsafe.Pointer, // const turso_statement_t*
		position uintptr, // size_t
		ptr string, // const char*
		len uintptr, // size_t
	) turso_status_code_t

	c_turso_str_deinit func(self unsafe.Pointer)

	c_turso_database_deinit func(self unsafe.Pointer)

	c_turso_connection_deinit func(self unsafe.Pointer)

	c_turso_statement_deinit func(self unsafe.Pointer)
)

// register_turso_db binds the extern functions from an already loaded library.
func register_turso_db(handle uintptr) {
	purego.RegisterLibFunc(&c_turso_setup, handle, "turso_setup")
	purego.RegisterLibFunc(&c_turso_database_new, handle, "turso_database_new")
	purego.RegisterLibFunc(&c_turso_database_open, handle, "turso_database_open")
	purego.RegisterLibFunc(&c_turso_database_connect, handle, "turso_database_connect")
	purego.RegisterLibFunc(&c_turso_connection_get_autocommit, handle, "turso_connection_get_autocommit")
	purego.RegisterLibFunc(&c_turso_connection_last_insert_rowid, handle, "turso_connection_last_insert_rowid")
	purego.RegisterLibFunc(&c_turso_connection_set_busy_timeout_ms, handle, "turso_connection_set_busy_timeout_ms")
	purego.RegisterLibFunc(&c_turso_connection_prepare_single, handle, "turso_connection_prepare_single")
	purego.RegisterLibFunc(&c_turso_connection_prepare_first, handle, "turso_connection_prepare_first")
	purego.RegisterLibFunc(&c_turso_connection_close, handle, "turso_connection_close")
	purego.RegisterLibFunc(&c_turso_statement_execute, handle, "turso_statement_execute")
	purego.RegisterLibFunc(&c_turso_statement_step, handle, "turso_statement_step")
	purego.RegisterLibFunc(&c_turso_statement_run_io, handle, "turso_statement_run_io")
	purego.RegisterLibFunc(&c_turso_statement_reset, handle, "turso_statement_reset")
	purego.RegisterLibFunc(&c_turso_statement_finalize, handle, "turso_statement_finalize")
	purego.RegisterLibFunc(&c_turso_statement_column_count, handle, "turso_statement_column_count")
	purego.RegisterLibFunc(&c_turso_statement_column_name, handle, "turso_statement_column_name")
	purego.RegisterLibFunc(&c_turso_statement_column_decltype, handle, "turso_statement_column_decltype")
	purego.RegisterLibFunc(&c_turso_statement_row_value_kind, handle, "turso_statement_row_value_kind")
	purego.RegisterLibFunc(&c_turso_statement_row_value_bytes_count, handle, "turso_statement_row_value_bytes_count")
	purego.RegisterLibFunc(&c_turso_statement_row_value_bytes_ptr, handle, "turso_statement_row_value_bytes_ptr")
	purego.RegisterLibFunc(&c_turso_statement_row_value_int, handle, "turso_statement_row_value_int")
	purego.RegisterLibFunc(&c_turso_statement_row_value_double, handle, "turso_statement_row_value_double")
	purego.RegisterLibFunc(&c_turso_statement_parameters_count, handle, "turso_statement_parameters_count")
	purego.RegisterLibFunc(&c_turso_statement_named_position, handle, "turso_statement_named_position")
	purego.RegisterLibFunc(&c_turso_statement_bind_positional_null, handle, "turso_statement_bind_positional_null")
	purego.RegisterLibFunc(&c_turso_statement_bind_positional_int, handle, "turso_statement_bind_positional_int")
	purego.RegisterLibFunc(&c_turso_statement_bind_positional_double, handle, "turso_statement_bind_positional_double")
	purego.RegisterLibFunc(&c_turso_statement_bind_positional_blob, handle, "turso_statement_bind_positional_blob")
	purego.RegisterLibFunc(&c_turso_statement_bind_positional_text, handle, "turso_statement_bind_positional_text")
	purego.RegisterLibFunc(&c_turso_str_deinit, handle, "turso_str_deinit")
	purego.RegisterLibFunc(&c_turso_database_deinit, handle, "turso_database_deinit")
	purego.RegisterLibFunc(&c_turso_connection_deinit, handle, "turso_connection_deinit")
	purego.RegisterLibFunc(&c_turso_statement_deinit, handle, "turso_statement_deinit")
}

// Helpers

// statusToError maps a non-success status onto an *engine.Error carrying the
// equivalent SQLite result code.
func statusToError(code TursoStatusCode, msg string) error {
	switch code {
	case TURSO_OK, TURSO_DONE, TURSO_ROW, TURSO_IO:
		return nil
	}
	known, ok := statusCodes[code]
	if !ok {
		if msg == "" {
			msg = fmt.Sprintf("turso: unknown status code %d", code)
		}
		return engine.NewError(engine.CodeError, msg)
	}
	if msg == "" {
		msg = known.msg
	}
	return engine.NewError(known.code, msg)
}

func readErrorAndFree(errPtr uintptr) string {
	if errPtr == 0 {
		return ""
	}
	defer c_turso_str_deinit(unsafe.Pointer(errPtr))
	return copyCString(unsafe.Pointer(errPtr))
}

func copyCString(p unsafe.Pointer) string {
	if p == nil {
		return ""
	}
	n := 0
	for *(*byte)(unsafe.Add(p, n)) != 0 {
		n++
	}
	if n == 0 {
		return ""
	}
	return string(unsafe.Slice((*byte)(p), n))
}

func cStringPtr(s string) (ptr unsafe.Pointer, keepAlive func()) {
	if len(s) == 0 {
		return nil, func() {}
	}
	b := make([]byte, len(s)+1)
	copy(b, s)
	return unsafe.Pointer(&b[0]), func() { runtime.KeepAlive(b) }
}

// Go wrappers over imported C bindings

// turso_setup initializes global library state. If config.Logger is set it is
// registered as the tracing callback.
func turso_setup(config TursoConfig) error {
	var cCfg c_turso_config_t
	if config.Logger != nil {
		cb := purego.NewCallback(func(logPtr uintptr) uintptr {
			if logPtr == 0 {
				return 0
			}
			cl := (*c_turso_log_t)(unsafe.Pointer(logPtr))
			config.Logger(TursoLog{
				Message:   copyCString(unsafe.Pointer(cl.Message)),
				Target:    copyCString(unsafe.Pointer(cl.Target)),
				File:      copyCString(unsafe.Pointer(cl.File)),
				Timestamp: cl.Timestamp,
				Line:      uint(cl.Line),
				Level:     TursoTracingLevel(cl.Level),
			})
			return 0
		})
		cCfg.Logger = cb
	}
	levelPtr, keep := cStringPtr(config.LogLevel)
	cCfg.LogLevel = uintptr(levelPtr)

	var cerr uintptr
	code := c_turso_setup(unsafe.Pointer(&cCfg), unsafe.Pointer(&cerr))
	keep()
	return statusToError(TursoStatusCode(code), readErrorAndFree(cerr))
}

// turso_database_new creates the database holder but does not open it.
func turso_database_new(config TursoDatabaseConfig) (TursoDatabase, error) {
	var cCfg c_turso_database_config_t
	pathPtr, keepPath := cStringPtr(config.Path)
	expPtr, keepExp := cStringPtr(config.ExperimentalFeatures)
	vfsPtr, keepVfs := cStringPtr(config.Vfs)
	cipherPtr, keepCipher := cStringPtr(config.EncryptionCipher)
	keyPtr, keepKey := cStringPtr(config.EncryptionHexkey)
	cCfg.Path = uintptr(pathPtr)
	cCfg.ExperimentalFeatures = uintptr(expPtr)
	cCfg.Vfs = uintptr(vfsPtr)
	cCfg.EncryptionCipher = uintptr(cipherPtr)
	cCfg.EncryptionHexkey = uintptr(keyPtr)
	if config.AsyncIO {
		cCfg.AsyncIO = 1
	}
	var db TursoDatabase
	var cerr uintptr
	code := c_turso_database_new(unsafe.Pointer(&cCfg), unsafe.Pointer(&db), unsafe.Pointer(&cerr))
	keepPath()
	keepExp()
	keepVfs()
	keepCipher()
	keepKey()
	if err := statusToError(TursoStatusCode(code), readErrorAndFree(cerr)); err != nil {
		return nil, err
	}
	return db, nil
}

func turso_database_open(database TursoDatabase) error {
	var cerr uintptr
	code := c_turso_database_open(unsafe.Pointer(database), unsafe.Pointer(&cerr))
	return statusToError(TursoStatusCode(code), readErrorAndFree(cerr))
}

func turso_database_connect(self TursoDatabase) (TursoConnection, error) {
	var conn TursoConnection
	var cerr uintptr
	code := c_turso_database_connect(unsafe.Pointer(self), unsafe.Pointer(&conn), unsafe.Pointer(&cerr))
	if err := statusToError(TursoStatusCode(code), readErrorAndFree(cerr)); err != nil {
		return nil, err
	}
	return conn, nil
}

func turso_connection_get_autocommit(self TursoConnection) bool {
	return c_turso_connection_get_autocommit(unsafe.Pointer(self))
}

func turso_connection_last_insert_rowid(self TursoConnection) int64 {
	return c_turso_connection_last_insert_rowid(unsafe.Pointer(self))
}

func turso_connection_set_busy_timeout_ms(self TursoConnection, timeoutMs int64) {
	c_turso_connection_set_busy_timeout_ms(unsafe.Pointer(self), timeoutMs)
}

func turso_connection_prepare_single(self TursoConnection, sql string) (TursoStatement, error) {
	var stmt TursoStatement
	var cerr uintptr
	code := c_turso_connection_prepare_single(unsafe.Pointer(self), sql, unsafe.Pointer(&stmt), unsafe.Pointer(&cerr))
	if err := statusToError(TursoStatusCode(code), readErrorAndFree(cerr)); err != nil {
		return nil, err
	}
	return stmt, nil
}

// turso_connection_prepare_first prepares the first statement of sql and
// returns the byte offset where the rest begins.
func turso_connection_prepare_first(self TursoConnection, sql string) (TursoStatement, int, error) {
	var stmt TursoStatement
	var tailIdx uintptr
	var cerr uintptr
	code := c_turso_connection_prepare_first(
		unsafe.Pointer(self),
		sql,
		unsafe.Pointer(&stmt),
		unsafe.Pointer(&tailIdx),
		unsafe.Pointer(&cerr),
	)
	if err := statusToError(TursoStatusCode(code), readErrorAndFree(cerr)); err != nil {
		return nil, 0, err
	}
	return stmt, int(tailIdx), nil
}

func turso_connection_close(self TursoConnection) error {
	var cerr uintptr
	code := c_turso_connection_close(unsafe.Pointer(self), unsafe.Pointer(&cerr))
	return statusToError(TursoStatusCode(code), readErrorAndFree(cerr))
}

// turso_statement_execute runs the statement until DONE or until IO is
// required (async_io databases only).
func turso_statement_execute(self TursoStatement) (TursoStatusCode, uint64, error) {
	var cerr uintptr
	var changes uint64
	code := TursoStatusCode(c_turso_statement_execute(unsafe.Pointer(self), unsafe.Pointer(&changes), unsafe.Pointer(&cerr)))
	return code, changes, statusToError(code, readErrorAndFree(cerr))
}

// turso_statement_step advances once: ROW, DONE, or IO when the caller must
// drive IO before retrying.
func turso_statement_step(self TursoStatement) (TursoStatusCode, error) {
	var cerr uintptr
	code := TursoStatusCode(c_turso_statement_step(unsafe.Pointer(self), unsafe.Pointer(&cerr)))
	return code, statusToError(code, readErrorAndFree(cerr))
}

func turso_statement_run_io(self TursoStatement) error {
	var cerr uintptr
	code := c_turso_statement_run_io(unsafe.Pointer(self), unsafe.Pointer(&cerr))
	return statusToError(TursoStatusCode(code), readErrorAndFree(cerr))
}

func turso_statement_reset(self TursoStatement) error {
	var cerr uintptr
	code := c_turso_statement_reset(unsafe.Pointer(self), unsafe.Pointer(&cerr))
	return statusToError(TursoStatusCode(code), readErrorAndFree(cerr))
}

func turso_statement_finalize(self TursoStatement) error {
	var cerr uintptr
	code := c_turso_statement_finalize(unsafe.Pointer(self), unsafe.Pointer(&cerr))
	return statusToError(TursoStatusCode(code), readErrorAndFree(cerr))
}

func turso_statement_column_count(self TursoStatement) int {
	return int(c_turso_statement_column_count(unsafe.Pointer(self)))
}

func turso_statement_column_name(self TursoStatement, index int) string {
	ptr := c_turso_statement_column_name(unsafe.Pointer(self), uintptr(index))
	if ptr == nil {
		return ""
	}
	defer c_turso_str_deinit(ptr)
	return copyCString(ptr)
}

func turso_statement_column_decltype(self TursoStatement, index int) string {
	ptr := c_turso_statement_column_decltype(unsafe.Pointer(self), uintptr(index))
	if ptr == nil {
		return ""
	}
	defer c_turso_str_deinit(ptr)
	return copyCString(ptr)
}

func turso_statement_row_value_kind(self TursoStatement, index int) TursoType {
	return TursoType(c_turso_statement_row_value_kind(unsafe.Pointer(self), uintptr(index)))
}

func turso_statement_row_value_int(self TursoStatement, index int) int64 {
	return c_turso_statement_row_value_int(unsafe.Pointer(self), uintptr(index))
}

func turso_statement_row_value_double(self TursoStatement, index int) float64 {
	return c_turso_statement_row_value_double(unsafe.Pointer(self), uintptr(index))
}

// turso_statement_row_value_bytes copies a TEXT or BLOB value out of engine
// memory. It returns an empty, non-nil slice for zero-length values.
func turso_statement_row_value_bytes(self TursoStatement, index int) []byte {
	n := c_turso_statement_row_value_bytes_count(unsafe.Pointer(self), uintptr(index))
	if n <= 0 {
		return []byte{}
	}
	ptr := c_turso_statement_row_value_bytes_ptr(unsafe.Pointer(self), uintptr(index))
	if ptr == nil {
		return []byte{}
	}
	out := make([]byte, n)
	copy(out, unsafe.Slice((*byte)(ptr), n))
	return out
}

func turso_statement_parameters_count(self TursoStatement) int {
	return int(c_turso_statement_parameters_count(unsafe.Pointer(self)))
}

// turso_statement_named_position returns the 1-based position of a named
// parameter (with sigil), or a non-positive value if it is unknown.
func turso_statement_named_position(self TursoStatement, name string) int {
	return int(c_turso_statement_named_position(unsafe.Pointer(self), name))
}

func turso_statement_bind_positional_null(self TursoStatement, position int) error {
	code := c_turso_statement_bind_positional_null(unsafe.Pointer(self), uintptr(position))
	return statusToError(TursoStatusCode(code), "")
}

func turso_statement_bind_positional_int(self TursoStatement, position int, value int64) error {
	code := c_turso_statement_bind_positional_int(unsafe.Pointer(self), uintptr(position), value)
	return statusToError(TursoStatusCode(code), "")
}

func turso_statement_bind_positional_double(self TursoStatement, position int, value float64) error {
	code := c_turso_statement_bind_positional_double(unsafe.Pointer(self), uintptr(position), value)
	return statusToError(TursoStatusCode(code), "")
}

func turso_statement_bind_positional_blob(self TursoStatement, position int, value []byte) error {
	var ptr unsafe.Pointer
	if len(value) > 0 {
		ptr = unsafe.Pointer(&value[0])
	}
	code := c_turso_statement_bind_positional_blob(unsafe.Pointer(self), uintptr(position), ptr, uintptr(len(value)))
	runtime.KeepAlive(value)
	return statusToError(TursoStatusCode(code), "")
}

func turso_statement_bind_positional_text(self TursoStatement, position int, value string) error {
	code := c_turso_statement_bind_positional_text(unsafe.Pointer(self), uintptr(position), value, uintptr(len(value)))
	return statusToError(TursoStatusCode(code), "")
}

// SAFETY for the deinit helpers: caller must ensure that no other code can
// concurrently or later call methods over the released handle.

func turso_database_deinit(self TursoDatabase) {
	if self != nil {
		c_turso_database_deinit(unsafe.Pointer(self))
	}
}

func turso_connection_deinit(self TursoConnection) {
	if self != nil {
		c_turso_connection_deinit(unsafe.Pointer(self))
	}
}

func turso_statement_deinit(self TursoStatement) {
	if self != nil {
		c_turso_statement_deinit(unsafe.Pointer(self))
	}
}

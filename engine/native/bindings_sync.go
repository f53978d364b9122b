package native

import (
	"runtime"
	"unsafe"

	"github.com/ebitengine/purego"
)

type turso_sync_database_t struct{}
type turso_sync_operation_t struct{}
type turso_sync_io_item_t struct{}
type turso_sync_changes_t struct{}

type TursoSyncDatabase *turso_sync_database_t
type TursoSyncOperation *turso_sync_operation_t
type TursoSyncIoItem *turso_sync_io_item_t
type TursoSyncChanges *turso_sync_changes_t

type TursoSyncIoRequestType int32

const (
	TURSO_SYNC_IO_NONE       TursoSyncIoRequestType = 0
	TURSO_SYNC_IO_HTTP       TursoSyncIoRequestType = 1
	TURSO_SYNC_IO_FULL_READ  TursoSyncIoRequestType = 2
	TURSO_SYNC_IO_FULL_WRITE TursoSyncIoRequestType = 3
)

type TursoSyncOperationResultType int32

const (
	TURSO_ASYNC_RESULT_NONE       TursoSyncOperationResultType = 0
	TURSO_ASYNC_RESULT_CONNECTION TursoSyncOperationResultType = 1
	TURSO_ASYNC_RESULT_CHANGES    TursoSyncOperationResultType = 2
	TURSO_ASYNC_RESULT_STATS      TursoSyncOperationResultType = 3
)

// TursoSyncDatabaseConfig describes the sync side of a replica.
type TursoSyncDatabaseConfig struct {
	// Path to the main database file; auxiliary files derive their names from it
	Path string
	// Remote url, persisted in the metadata file for later opens
	RemoteUrl string
	// Prefix for the unique client id
	ClientName string
	// Long poll timeout for pull in milliseconds
	LongPollTimeoutMs int
	// Bootstrap from remote if the local file is empty
	BootstrapIfEmpty bool
	// Reserved bytes per page, required when the remote is encrypted
	ReservedBytes int
	// Optional base64 key and cipher name for remote encrypted databases
	RemoteEncryptionKey    string
	RemoteEncryptionCipher string
}

// TursoSyncStats holds sync engine stats.
type TursoSyncStats struct {
	CDcOperations        int64
	MainWalSize          int64
	RevertWalSize        int64
	LastPullUnixTime     int64
	LastPushUnixTime     int64
	NetworkSentBytes     int64
	NetworkReceivedBytes int64
	Revision             string
}

type TursoSyncIoHttpRequest struct {
	Url     string
	Method  string
	Path    string
	Body    []byte
	Headers int
}

type TursoSyncIoHttpHeader struct {
	Key   string
	Value string
}

// turso_slice_ref_t borrows len bytes at ptr; the memory is owned by whoever
// produced the reference.
type turso_slice_ref_t struct {
	ptr uintptr
	len uintptr
}

type turso_sync_database_config_t struct {
	path                              uintptr // const char*
	remote_url                        uintptr // const char*
	client_name                       uintptr // const char*
	long_poll_timeout_ms              int32
	bootstrap_if_empty                bool
	reserved_bytes                    int32
	partial_bootstrap_strategy_prefix int32
	partial_bootstrap_strategy_query  uintptr // const char*
	partial_bootstrap_segment_size    uintptr
	partial_bootstrap_prefetch        bool
	remote_encryption_key             uintptr // const char*
	remote_encryption_cipher          uintptr // const char*
}

type turso_sync_io_http_request_t struct {
	url     turso_slice_ref_t
	method  turso_slice_ref_t
	path    turso_slice_ref_t
	body    turso_slice_ref_t
	headers int32
}

type turso_sync_io_http_header_t struct {
	key   turso_slice_ref_t
	value turso_slice_ref_t
}

type turso_sync_io_full_read_request_t struct {
	path turso_slice_ref_t
}

type turso_sync_io_full_write_request_t struct {
	path    turso_slice_ref_t
	content turso_slice_ref_t
}

type turso_sync_stats_t struct {
	cdc_operations         int64
	main_wal_size          int64
	revert_wal_size        int64
	last_pull_unix_time    int64
	last_push_unix_time    int64
	network_sent_bytes     int64
	network_received_bytes int64
	revision               turso_slice_ref_t
}

// every operation constructor shares this signature
type c_sync_operation_fn func(self TursoSyncDatabase, operation **turso_sync_operation_t, errorOptOut **byte) int32

var (
	c_turso_sync_database_new func(
		dbConfig *c_turso_database_config_t,
		syncConfig *turso_sync_database_config_t,
		database **turso_sync_database_t,
		errorOptOut **byte,
	) int32

	c_turso_sync_database_create       c_sync_operation_fn
	c_turso_sync_database_connect      c_sync_operation_fn
	c_turso_sync_database_stats        c_sync_operation_fn
	c_turso_sync_database_checkpoint   c_sync_operation_fn
	c_turso_sync_database_push_changes c_sync_operation_fn
	c_turso_sync_database_wait_changes c_sync_operation_fn

	c_turso_sync_database_apply_changes func(
		self TursoSyncDatabase,
		changes TursoSyncChanges,
		operation **turso_sync_operation_t,
		errorOptOut **byte,
	) int32

	c_turso_sync_operation_resume                    func(self TursoSyncOperation, errorOptOut **byte) int32
	c_turso_sync_operation_result_kind               func(self TursoSyncOperation) int32
	c_turso_sync_operation_result_extract_connection func(self TursoSyncOperation, connection **turso_connection_t) int32
	c_turso_sync_operation_result_extract_changes    func(self TursoSyncOperation, changes **turso_sync_changes_t) int32
	c_turso_sync_operation_result_extract_stats      func(self TursoSyncOperation, stats *turso_sync_stats_t) int32

	c_turso_sync_database_io_take_item           func(self TursoSyncDatabase, item **turso_sync_io_item_t, errorOptOut **byte) int32
	c_turso_sync_database_io_step_callbacks      func(self TursoSyncDatabase, errorOptOut **byte) int32
	c_turso_sync_database_io_request_kind        func(self TursoSyncIoItem) int32
	c_turso_sync_database_io_request_http        func(self TursoSyncIoItem, request *turso_sync_io_http_request_t) int32
	c_turso_sync_database_io_request_http_header func(self TursoSyncIoItem, index uintptr, header *turso_sync_io_http_header_t) int32
	c_turso_sync_database_io_request_full_read   func(self TursoSyncIoItem, request *turso_sync_io_full_read_request_t) int32
	c_turso_sync_database_io_request_full_write  func(self TursoSyncIoItem, request *turso_sync_io_full_write_request_t) int32
	c_turso_sync_database_io_poison              func(self TursoSyncIoItem, err *turso_slice_ref_t) int32
	c_turso_sync_database_io_status              func(self TursoSyncIoItem, status int32) int32
	c_turso_sync_database_io_push_buffer         func(self TursoSyncIoItem, buffer *turso_slice_ref_t) int32
	c_turso_sync_database_io_done                func(self TursoSyncIoItem) int32

	c_turso_sync_database_deinit         func(self TursoSyncDatabase)
	c_turso_sync_operation_deinit        func(self TursoSyncOperation)
	c_turso_sync_database_io_item_deinit func(self TursoSyncIoItem)
)

func register_turso_sync(handle uintptr) {
	purego.RegisterLibFunc(&c_turso_sync_database_new, handle, "turso_sync_database_new")
	purego.RegisterLibFunc(&c_turso_sync_database_create, handle, "turso_sync_database_create")
	purego.RegisterLibFunc(&c_turso_sync_database_connect, handle, "turso_sync_database_connect")
	purego.RegisterLibFunc(&c_turso_sync_database_stats, handle, "turso_sync_database_stats")
	purego.RegisterLibFunc(&c_turso_sync_database_checkpoint, handle, "turso_sync_database_checkpoint")
	purego.RegisterLibFunc(&c_turso_sync_database_push_changes, handle, "turso_sync_database_push_changes")
	purego.RegisterLibFunc(&c_turso_sync_database_wait_changes, handle, "turso_sync_database_wait_changes")
	purego.RegisterLibFunc(&c_turso_sync_database_apply_changes, handle, "turso_sync_database_apply_changes")
	purego.RegisterLibFunc(&c_turso_sync_operation_resume, handle, "turso_sync_operation_resume")
	purego.RegisterLibFunc(&c_turso_sync_operation_result_kind, handle, "turso_sync_operation_result_kind")
	purego.RegisterLibFunc(&c_turso_sync_operation_result_extract_connection, handle, "turso_sync_operation_result_extract_connection")
	purego.RegisterLibFunc(&c_turso_sync_operation_result_extract_changes, handle, "turso_sync_operation_result_extract_changes")
	purego.RegisterLibFunc(&c_turso_sync_operation_result_extract_stats, handle, "turso_sync_operation_result_extract_stats")
	purego.RegisterLibFunc(&c_turso_sync_database_io_take_item, handle, "turso_sync_database_io_take_item")
	purego.RegisterLibFunc(&c_turso_sync_database_io_step_callbacks, handle, "turso_sync_database_io_step_callbacks")
	purego.RegisterLibFunc(&c_turso_sync_database_io_request_kind, handle, "turso_sync_database_io_request_kind")
	purego.RegisterLibFunc(&c_turso_sync_database_io_request_http, handle, "turso_sync_database_io_request_http")
	purego.RegisterLibFunc(&c_turso_sync_database_io_request_http_header, handle, "turso_sync_database_io_request_http_header")
	purego.RegisterLibFunc(&c_turso_sync_database_io_request_full_read, handle, "turso_sync_database_io_request_full_read")
	purego.RegisterLibFunc(&c_turso_sync_database_io_request_full_write, handle, "turso_sync_database_io_request_full_write")
	purego.RegisterLibFunc(&c_turso_sync_database_io_poison, handle, "turso_sync_database_io_poison")
	purego.RegisterLibFunc(&c_turso_sync_database_io_status, handle, "turso_sync_database_io_status")
	purego.RegisterLibFunc(&c_turso_sync_database_io_push_buffer, handle, "turso_sync_database_io_push_buffer")
	purego.RegisterLibFunc(&c_turso_sync_database_io_done, handle, "turso_sync_database_io_done")
	purego.RegisterLibFunc(&c_turso_sync_database_deinit, handle, "turso_sync_database_deinit")
	purego.RegisterLibFunc(&c_turso_sync_operation_deinit, handle, "turso_sync_operation_deinit")
	purego.RegisterLibFunc(&c_turso_sync_database_io_item_deinit, handle, "turso_sync_database_io_item_deinit")
}

// makeCStringBytes returns a NUL terminated copy of s and its address. The
// slice must be kept alive for as long as the address is in use.
func makeCStringBytes(s string) ([]byte, uintptr) {
	if s == "" {
		return nil, 0
	}
	b := make([]byte, len(s)+1)
	copy(b, s)
	return b, uintptr(unsafe.Pointer(&b[0]))
}

func decodeAndFreeCString(p *byte) string {
	if p == nil {
		return ""
	}
	return readErrorAndFree(uintptr(unsafe.Pointer(p)))
}

func sliceRefToBytesCopy(s turso_slice_ref_t) []byte {
	if s.ptr == 0 || s.len == 0 {
		return nil
	}
	dst := make([]byte, int(s.len))
	copy(dst, unsafe.Slice((*byte)(unsafe.Pointer(s.ptr)), int(s.len)))
	return dst
}

func sliceRefToStringCopy(s turso_slice_ref_t) string {
	return string(sliceRefToBytesCopy(s))
}

func bytesToSliceRef(b []byte) turso_slice_ref_t {
	if len(b) == 0 {
		return turso_slice_ref_t{}
	}
	return turso_slice_ref_t{ptr: uintptr(unsafe.Pointer(&b[0])), len: uintptr(len(b))}
}

// turso_sync_database_new creates the sync holder but does not open it.
func turso_sync_database_new(dbConfig TursoDatabaseConfig, syncConfig TursoSyncDatabaseConfig) (TursoSyncDatabase, error) {
	var cdb c_turso_database_config_t
	var keep [][]byte
	cstr := func(s string) uintptr {
		b, p := makeCStringBytes(s)
		keep = append(keep, b)
		return p
	}
	cdb.Path = cstr(dbConfig.Path)
	cdb.ExperimentalFeatures = cstr(dbConfig.ExperimentalFeatures)
	cdb.Vfs = cstr(dbConfig.Vfs)
	cdb.EncryptionCipher = cstr(dbConfig.EncryptionCipher)
	cdb.EncryptionHexkey = cstr(dbConfig.EncryptionHexkey)
	if dbConfig.AsyncIO {
		cdb.AsyncIO = 1
	}

	csync := turso_sync_database_config_t{
		path:                     cstr(syncConfig.Path),
		remote_url:               cstr(syncConfig.RemoteUrl),
		client_name:              cstr(syncConfig.ClientName),
		long_poll_timeout_ms:     int32(syncConfig.LongPollTimeoutMs),
		bootstrap_if_empty:       syncConfig.BootstrapIfEmpty,
		reserved_bytes:           int32(syncConfig.ReservedBytes),
		remote_encryption_key:    cstr(syncConfig.RemoteEncryptionKey),
		remote_encryption_cipher: cstr(syncConfig.RemoteEncryptionCipher),
	}

	var db *turso_sync_database_t
	var errPtr *byte
	status := c_turso_sync_database_new(&cdb, &csync, &db, &errPtr)
	runtime.KeepAlive(keep)
	if status == int32(TURSO_OK) {
		return TursoSyncDatabase(db), nil
	}
	return nil, statusToError(TursoStatusCode(status), decodeAndFreeCString(errPtr))
}

func startOperation(fn c_sync_operation_fn, self TursoSyncDatabase) (TursoSyncOperation, error) {
	var op *turso_sync_operation_t
	var errPtr *byte
	status := fn(self, &op, &errPtr)
	if status == int32(TURSO_OK) {
		return TursoSyncOperation(op), nil
	}
	return nil, statusToError(TursoStatusCode(status), decodeAndFreeCString(errPtr))
}

// turso_sync_database_create opens the replica, creating or bootstrapping it
// when needed. The operation yields no result.
func turso_sync_database_create(self TursoSyncDatabase) (TursoSyncOperation, error) {
	return startOperation(c_turso_sync_database_create, self)
}

// turso_sync_database_connect yields a Connection.
func turso_sync_database_connect(self TursoSyncDatabase) (TursoSyncOperation, error) {
	return startOperation(c_turso_sync_database_connect, self)
}

// turso_sync_database_stats yields Stats.
func turso_sync_database_stats(self TursoSyncDatabase) (TursoSyncOperation, error) {
	return startOperation(c_turso_sync_database_stats, self)
}

func turso_sync_database_checkpoint(self TursoSyncDatabase) (TursoSyncOperation, error) {
	return startOperation(c_turso_sync_database_checkpoint, self)
}

func turso_sync_database_push_changes(self TursoSyncDatabase) (TursoSyncOperation, error) {
	return startOperation(c_turso_sync_database_push_changes, self)
}

// turso_sync_database_wait_changes yields Changes, possibly nil.
func turso_sync_database_wait_changes(self TursoSyncDatabase) (TursoSyncOperation, error) {
	return startOperation(c_turso_sync_database_wait_changes, self)
}

// turso_sync_database_apply_changes consumes changes whether or not it
// succeeds; the caller must not release them afterwards.
func turso_sync_database_apply_changes(self TursoSyncDatabase, changes TursoSyncChanges) (TursoSyncOperation, error) {
	var op *turso_sync_operation_t
	var errPtr *byte
	status := c_turso_sync_database_apply_changes(self, changes, &op, &errPtr)
	if status == int32(TURSO_OK) {
		return TursoSyncOperation(op), nil
	}
	return nil, statusToError(TursoStatusCode(status), decodeAndFreeCString(errPtr))
}

// turso_sync_operation_resume returns OK, IO or DONE, or an error.
func turso_sync_operation_resume(self TursoSyncOperation) (TursoStatusCode, error) {
	var errPtr *byte
	status := TursoStatusCode(c_turso_sync_operation_resume(self, &errPtr))
	switch status {
	case TURSO_OK, TURSO_IO, TURSO_DONE:
		return status, nil
	}
	return status, statusToError(status, decodeAndFreeCString(errPtr))
}

func turso_sync_operation_result_kind(self TursoSyncOperation) TursoSyncOperationResultType {
	return TursoSyncOperationResultType(c_turso_sync_operation_result_kind(self))
}

func turso_sync_operation_result_extract_connection(self TursoSyncOperation) (TursoConnection, error) {
	var conn *turso_connection_t
	if status := c_turso_sync_operation_result_extract_connection(self, &conn); status != int32(TURSO_OK) {
		return nil, statusToError(TursoStatusCode(status), "")
	}
	return TursoConnection(conn), nil
}

func turso_sync_operation_result_extract_changes(self TursoSyncOperation) (TursoSyncChanges, error) {
	var ch *turso_sync_changes_t
	if status := c_turso_sync_operation_result_extract_changes(self, &ch); status != int32(TURSO_OK) {
		return nil, statusToError(TursoStatusCode(status), "")
	}
	return TursoSyncChanges(ch), nil
}

func turso_sync_operation_result_extract_stats(self TursoSyncOperation) (TursoSyncStats, error) {
	var c turso_sync_stats_t
	if status := c_turso_sync_operation_result_extract_stats(self, &c); status != int32(TURSO_OK) {
		return TursoSyncStats{}, statusToError(TursoStatusCode(status), "")
	}
	return TursoSyncStats{
		CDcOperations:        c.cdc_operations,
		MainWalSize:          c.main_wal_size,
		RevertWalSize:        c.revert_wal_size,
		LastPullUnixTime:     c.last_pull_unix_time,
		LastPushUnixTime:     c.last_push_unix_time,
		NetworkSentBytes:     c.network_sent_bytes,
		NetworkReceivedBytes: c.network_received_bytes,
		Revision:             sliceRefToStringCopy(c.revision),
	}, nil
}

// turso_sync_database_io_take_item returns nil when the queue is empty.
func turso_sync_database_io_take_item(self TursoSyncDatabase) (TursoSyncIoItem, error) {
	var item *turso_sync_io_item_t
	var errPtr *byte
	if status := c_turso_sync_database_io_take_item(self, &item, &errPtr); status != int32(TURSO_OK) {
		return nil, statusToError(TursoStatusCode(status), decodeAndFreeCString(errPtr))
	}
	return TursoSyncIoItem(item), nil
}

func turso_sync_database_io_step_callbacks(self TursoSyncDatabase) error {
	var errPtr *byte
	if status := c_turso_sync_database_io_step_callbacks(self, &errPtr); status != int32(TURSO_OK) {
		return statusToError(TursoStatusCode(status), decodeAndFreeCString(errPtr))
	}
	return nil
}

func turso_sync_database_io_request_kind(self TursoSyncIoItem) TursoSyncIoRequestType {
	return TursoSyncIoRequestType(c_turso_sync_database_io_request_kind(self))
}

func turso_sync_database_io_request_http(self TursoSyncIoItem) (TursoSyncIoHttpRequest, error) {
	var c turso_sync_io_http_request_t
	if status := c_turso_sync_database_io_request_http(self, &c); status != int32(TURSO_OK) {
		return TursoSyncIoHttpRequest{}, statusToError(TursoStatusCode(status), "")
	}
	return TursoSyncIoHttpRequest{
		Url:     sliceRefToStringCopy(c.url),
		Method:  sliceRefToStringCopy(c.method),
		Path:    sliceRefToStringCopy(c.path),
		Body:    sliceRefToBytesCopy(c.body),
		Headers: int(c.headers),
	}, nil
}

func turso_sync_database_io_request_http_header(self TursoSyncIoItem, index int) (TursoSyncIoHttpHeader, error) {
	var c turso_sync_io_http_header_t
	if status := c_turso_sync_database_io_request_http_header(self, uintptr(index), &c); status != int32(TURSO_OK) {
		return TursoSyncIoHttpHeader{}, statusToError(TursoStatusCode(status), "")
	}
	return TursoSyncIoHttpHeader{Key: sliceRefToStringCopy(c.key), Value: sliceRefToStringCopy(c.value)}, nil
}

func turso_sync_database_io_request_full_read(self TursoSyncIoItem) (string, error) {
	var c turso_sync_io_full_read_request_t
	if status := c_turso_sync_database_io_request_full_read(self, &c); status != int32(TURSO_OK) {
		return "", statusToError(TursoStatusCode(status), "")
	}
	return sliceRefToStringCopy(c.path), nil
}

func turso_sync_database_io_request_full_write(self TursoSyncIoItem) (string, []byte, error) {
	var c turso_sync_io_full_write_request_t
	if status := c_turso_sync_database_io_request_full_write(self, &c); status != int32(TURSO_OK) {
		return "", nil, statusToError(TursoStatusCode(status), "")
	}
	return sliceRefToStringCopy(c.path), sliceRefToBytesCopy(c.content), nil
}

// turso_sync_database_io_poison completes the item with an error.
func turso_sync_database_io_poison(self TursoSyncIoItem, errMsg string) error {
	msg := []byte(errMsg)
	ref := bytesToSliceRef(msg)
	status := c_turso_sync_database_io_poison(self, &ref)
	runtime.KeepAlive(msg)
	return statusToError(TursoStatusCode(status), "")
}

func turso_sync_database_io_status(self TursoSyncIoItem, statusCode int) error {
	return statusToError(TursoStatusCode(c_turso_sync_database_io_status(self, int32(statusCode))), "")
}

// turso_sync_database_io_push_buffer copies buffer synchronously.
func turso_sync_database_io_push_buffer(self TursoSyncIoItem, buffer []byte) error {
	ref := bytesToSliceRef(buffer)
	status := c_turso_sync_database_io_push_buffer(self, &ref)
	runtime.KeepAlive(buffer)
	return statusToError(TursoStatusCode(status), "")
}

func turso_sync_database_io_done(self TursoSyncIoItem) error {
	return statusToError(TursoStatusCode(c_turso_sync_database_io_done(self)), "")
}

func turso_sync_database_deinit(self TursoSyncDatabase) {
	if self != nil {
		c_turso_sync_database_deinit(self)
	}
}

func turso_sync_operation_deinit(self TursoSyncOperation) {
	if self != nil {
		c_turso_sync_operation_deinit(self)
	}
}

func turso_sync_database_io_item_deinit(self TursoSyncIoItem) {
	c_turso_sync_database_io_item_deinit(self)
}

package native

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"turso.tech/database/libsqlgo/engine"
	"turso.tech/database/libsqlgo/engine/remote"
)

const defaultClientName = "libsql-go"

// ReplicaStats describes the state of a local replica.
type ReplicaStats struct {
	// local operations written since the last pull
	CdcOperations        int64
	MainWalSize          int64
	RevertWalSize        int64
	LastPullUnixTime     int64
	LastPushUnixTime     int64
	NetworkSentBytes     int64
	NetworkReceivedBytes int64
	// opaque server revision
	Revision string
}

// Replica is a local database file kept in sync with a remote primary. The
// library drives the protocol; Replica serves its HTTP and file IO.
type Replica struct {
	db        TursoSyncDatabase
	baseURL   string
	authToken string
	userAgent string
	client    *http.Client
	busy      time.Duration
	log       *zap.Logger

	mu sync.Mutex
}

var _ engine.Database = (*Replica)(nil)

// OpenReplica creates or opens the replica at cfg.Path, bootstrapping it from
// the primary when the file is empty.
func (e *Engine) OpenReplica(ctx context.Context, cfg engine.ReplicaConfig) (engine.Database, error) {
	if err := e.load(); err != nil {
		return nil, err
	}
	if strings.TrimSpace(cfg.Path) == "" {
		return nil, engine.NewError(engine.CodeCantOpen, "replica path is empty")
	}
	base, err := remote.NormalizeURL(cfg.SyncURL)
	if err != nil {
		return nil, engine.Errorf(engine.CodeCantOpen, "invalid sync url %q: %v", cfg.SyncURL, err)
	}
	clientName := cfg.Version
	if clientName == "" {
		clientName = defaultClientName
	}
	dbCfg := TursoDatabaseConfig{Path: cfg.Path, AsyncIO: true}
	applyEncryption(&dbCfg, cfg.EncryptionKey)
	sdb, err := turso_sync_database_new(dbCfg, TursoSyncDatabaseConfig{
		Path:             cfg.Path,
		RemoteUrl:        base,
		ClientName:       clientName,
		BootstrapIfEmpty: true,
	})
	if err != nil {
		return nil, err
	}
	r := &Replica{
		db:        sdb,
		baseURL:   base,
		authToken: strings.TrimSpace(cfg.SyncAuthToken),
		userAgent: clientName,
		client:    e.cfg.HTTPClient,
		busy:      e.cfg.BusyTimeout,
		log:       e.cfg.Logger.With(zap.String("replica", cfg.Path)),
	}
	op, err := turso_sync_database_create(sdb)
	if err != nil {
		turso_sync_database_deinit(sdb)
		return nil, err
	}
	if _, err := r.run(ctx, op, TURSO_ASYNC_RESULT_NONE); err != nil {
		turso_sync_database_deinit(sdb)
		return nil, err
	}
	return r, nil
}

// Connect opens a connection whose IO is interleaved with the sync queue.
func (r *Replica) Connect(ctx context.Context) (engine.Conn, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	op, err := turso_sync_database_connect(r.db)
	if err != nil {
		return nil, err
	}
	final, err := r.run(ctx, op, TURSO_ASYNC_RESULT_CONNECTION)
	if err != nil {
		return nil, err
	}
	defer turso_sync_operation_deinit(final)
	c, err := turso_sync_operation_result_extract_connection(final)
	if err != nil {
		return nil, err
	}
	return newConn(c, r.busy, r.processOneIo), nil
}

// Sync pushes local changes and then pulls remote ones.
func (r *Replica) Sync(ctx context.Context) error {
	if err := r.Push(ctx); err != nil {
		return err
	}
	_, err := r.Pull(ctx)
	return err
}

// Pull rebases local changes on top of new remote ones without sending
// anything. It reports whether changes were applied.
func (r *Replica) Pull(ctx context.Context) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	op, err := turso_sync_database_wait_changes(r.db)
	if err != nil {
		return false, err
	}
	final, err := r.run(ctx, op, TURSO_ASYNC_RESULT_CHANGES)
	if err != nil {
		return false, err
	}
	changes, err := turso_sync_operation_result_extract_changes(final)
	turso_sync_operation_deinit(final)
	if err != nil {
		return false, err
	}
	if changes == nil {
		return false, nil
	}
	// apply consumes changes even on failure
	op, err = turso_sync_database_apply_changes(r.db, changes)
	if err != nil {
		return false, err
	}
	final, err = r.run(ctx, op, TURSO_ASYNC_RESULT_NONE)
	if err != nil {
		return false, err
	}
	turso_sync_operation_deinit(final)
	return true, nil
}

// Push sends local changes to the primary without fetching.
func (r *Replica) Push(ctx context.Context) error {
	return r.simple(ctx, turso_sync_database_push_changes)
}

// Checkpoint checkpoints the local WAL.
func (r *Replica) Checkpoint(ctx context.Context) error {
	return r.simple(ctx, turso_sync_database_checkpoint)
}

func (r *Replica) Stats(ctx context.Context) (ReplicaStats, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	op, err := turso_sync_database_stats(r.db)
	if err != nil {
		return ReplicaStats{}, err
	}
	final, err := r.run(ctx, op, TURSO_ASYNC_RESULT_STATS)
	if err != nil {
		return ReplicaStats{}, err
	}
	defer turso_sync_operation_deinit(final)
	s, err := turso_sync_operation_result_extract_stats(final)
	if err != nil {
		return ReplicaStats{}, err
	}
	return ReplicaStats{
		CdcOperations:        s.CDcOperations,
		MainWalSize:          s.MainWalSize,
		RevertWalSize:        s.RevertWalSize,
		LastPullUnixTime:     s.LastPullUnixTime,
		LastPushUnixTime:     s.LastPushUnixTime,
		NetworkSentBytes:     s.NetworkSentBytes,
		NetworkReceivedBytes: s.NetworkReceivedBytes,
		Revision:             s.Revision,
	}, nil
}

func (r *Replica) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	turso_sync_database_deinit(r.db)
	r.db = nil
	return nil
}

func (r *Replica) simple(ctx context.Context, start func(TursoSyncDatabase) (TursoSyncOperation, error)) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	op, err := start(r.db)
	if err != nil {
		return err
	}
	final, err := r.run(ctx, op, TURSO_ASYNC_RESULT_NONE)
	if err != nil {
		return err
	}
	turso_sync_operation_deinit(final)
	return nil
}

// run resumes op until it is done, serving queued IO in between. On success
// the caller owns the returned operation; on failure it is released here.
func (r *Replica) run(ctx context.Context, op TursoSyncOperation, want TursoSyncOperationResultType) (TursoSyncOperation, error) {
	fail := func(err error) (TursoSyncOperation, error) {
		turso_sync_operation_deinit(op)
		return nil, err
	}
	for {
		if ctx != nil && ctx.Err() != nil {
			return fail(ctx.Err())
		}
		code, err := turso_sync_operation_resume(op)
		if err != nil {
			return fail(err)
		}
		switch code {
		case TURSO_DONE:
			if kind := turso_sync_operation_result_kind(op); want != TURSO_ASYNC_RESULT_NONE && kind != want {
				return fail(fmt.Errorf("native: sync operation returned result kind %d, want %d", kind, want))
			}
			return op, nil
		case TURSO_IO:
			if err := r.drainIo(ctx); err != nil {
				return fail(err)
			}
		}
	}
}

// processOneIo serves at most one queued item; statements call it while
// they wait for IO.
func (r *Replica) processOneIo() error {
	item, err := turso_sync_database_io_take_item(r.db)
	if err != nil {
		return err
	}
	if item != nil {
		r.serve(context.Background(), item)
		turso_sync_database_io_item_deinit(item)
	}
	return turso_sync_database_io_step_callbacks(r.db)
}

func (r *Replica) drainIo(ctx context.Context) error {
	for {
		if ctx != nil && ctx.Err() != nil {
			return ctx.Err()
		}
		item, err := turso_sync_database_io_take_item(r.db)
		if err != nil {
			return err
		}
		if item == nil {
			return turso_sync_database_io_step_callbacks(r.db)
		}
		r.serve(ctx, item)
		turso_sync_database_io_item_deinit(item)
	}
}

// serve completes one IO item. Failures are reported to the library by
// poisoning the item, which surfaces them through the waiting operation.
func (r *Replica) serve(ctx context.Context, item TursoSyncIoItem) {
	var err error
	switch turso_sync_database_io_request_kind(item) {
	case TURSO_SYNC_IO_HTTP:
		err = r.serveHTTP(ctx, item)
	case TURSO_SYNC_IO_FULL_READ:
		err = serveRead(item)
	case TURSO_SYNC_IO_FULL_WRITE:
		err = serveWrite(item)
	}
	if err != nil {
		r.log.Debug("sync io failed", zap.Error(err))
		_ = turso_sync_database_io_poison(item, err.Error())
	}
	_ = turso_sync_database_io_done(item)
}

func (r *Replica) serveHTTP(ctx context.Context, item TursoSyncIoItem) error {
	req, err := turso_sync_database_io_request_http(item)
	if err != nil {
		return err
	}
	var body io.Reader
	if len(req.Body) > 0 {
		body = bytes.NewReader(req.Body)
	}
	path := req.Path
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	httpReq, err := http.NewRequestWithContext(ctx, req.Method, r.baseURL+path, body)
	if err != nil {
		return err
	}
	for i := 0; i < req.Headers; i++ {
		h, err := turso_sync_database_io_request_http_header(item, i)
		if err != nil {
			return err
		}
		if h.Key != "" {
			httpReq.Header.Add(h.Key, h.Value)
		}
	}
	if r.authToken != "" {
		httpReq.Header.Set("Authorization", "Bearer "+r.authToken)
	}
	if httpReq.Header.Get("User-Agent") == "" {
		httpReq.Header.Set("User-Agent", r.userAgent)
	}

	resp, err := r.client.Do(httpReq)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	r.log.Debug("sync request", zap.String("method", req.Method), zap.String("path", path), zap.Int("status", resp.StatusCode))
	if err := turso_sync_database_io_status(item, resp.StatusCode); err != nil {
		return err
	}
	return stream(item, resp.Body)
}

func serveRead(item TursoSyncIoItem) error {
	path, err := turso_sync_database_io_request_full_read(item)
	if err != nil {
		return err
	}
	f, err := os.Open(path)
	if errors.Is(err, os.ErrNotExist) {
		// a missing file reads as empty
		return nil
	}
	if err != nil {
		return err
	}
	defer f.Close()
	return stream(item, f)
}

func serveWrite(item TursoSyncIoItem) error {
	path, content, err := turso_sync_database_io_request_full_write(item)
	if err != nil {
		return err
	}
	if dir := filepath.Dir(path); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, content, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}

// stream pushes src into the item's completion buffer in 64KiB chunks.
func stream(item TursoSyncIoItem, src io.Reader) error {
	buf := make([]byte, 64*1024)
	for {
		n, err := src.Read(buf)
		if n > 0 {
			if perr := turso_sync_database_io_push_buffer(item, buf[:n]); perr != nil {
				return perr
			}
		}
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return err
		}
	}
}

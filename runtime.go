package libsql

import (
	"context"
	"runtime"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"
)

// RuntimeConfig sizes a Runtime.
type RuntimeConfig struct {
	// Workers bounds how many async operations run at once. Zero means
	// GOMAXPROCS.
	Workers int `yaml:"workers"`
}

// Runtime executes async operations on a bounded pool of goroutines. It is
// shared by every database that was not given its own.
type Runtime struct {
	sem *semaphore.Weighted
	wg  sync.WaitGroup

	mu     sync.RWMutex
	closed bool
}

// NewRuntime creates a runtime. Shut it down when no database uses it.
func NewRuntime(cfg RuntimeConfig) *Runtime {
	workers := cfg.Workers
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	return &Runtime{sem: semaphore.NewWeighted(int64(workers))}
}

// Shutdown stops accepting work and waits for scheduled operations to
// finish. Operations spawned afterwards settle with a usage error.
func (r *Runtime) Shutdown() {
	r.mu.Lock()
	r.closed = true
	r.mu.Unlock()
	r.wg.Wait()
}

// track registers one operation unless the runtime is shut down.
func (r *Runtime) track() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.closed {
		return false
	}
	r.wg.Add(1)
	return true
}

var (
	defaultMu      sync.Mutex
	defaultRuntime *Runtime
)

// DefaultRuntime returns the process-wide runtime, creating it on first use.
func DefaultRuntime() *Runtime {
	defaultMu.Lock()
	defer defaultMu.Unlock()
	if defaultRuntime == nil {
		defaultRuntime = NewRuntime(RuntimeConfig{})
	}
	return defaultRuntime
}

// ShutdownDefaultRuntime tears the process-wide runtime down. A later
// DefaultRuntime call creates a fresh one.
func ShutdownDefaultRuntime() {
	defaultMu.Lock()
	rt := defaultRuntime
	defaultRuntime = nil
	defaultMu.Unlock()
	if rt != nil {
		rt.Shutdown()
	}
}

var errRuntimeShutdown = newError(KindUsage, "runtime is shut down")

// blockOn runs op on the calling goroutine and settles it immediately.
func blockOn[R, T any](op func(context.Context) (R, error), settle func(R, error) (T, error)) (T, error) {
	return settle(op(context.Background()))
}

// spawn schedules op on a runtime worker. The worker only records the raw
// result; settle runs on whichever goroutine first awaits the future.
func spawn[R, T any](rt *Runtime, log *zap.Logger, name string, op func(context.Context) (R, error), settle func(R, error) (T, error)) *Future[T] {
	f := newFuture[T]()
	if !rt.track() {
		f.complete(func() (T, error) {
			var zero T
			return zero, errRuntimeShutdown
		})
		return f
	}
	id := uuid.New()
	go func() {
		defer rt.wg.Done()
		// Acquire only fails on a cancelled context, which Background never is.
		_ = rt.sem.Acquire(context.Background(), 1)
		defer rt.sem.Release(1)
		start := time.Now()
		r, err := op(context.Background())
		log.Debug("async operation finished",
			zap.Stringer("op_id", id),
			zap.String("op", name),
			zap.Duration("took", time.Since(start)),
			zap.Bool("failed", err != nil))
		f.complete(func() (T, error) { return settle(r, err) })
	}()
	return f
}

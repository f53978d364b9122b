package native

import (
	"fmt"
	"os"
	"sync"

	turso_libs "github.com/tursodatabase/turso-go-platform-libs"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// LibraryPathEnv names a shared library that takes precedence over the
// platform-libs load strategy.
const LibraryPathEnv = "LIBSQL_TURSO_LIBRARY"

// LoadConfig selects where turso_sync_sdk_kit comes from.
type LoadConfig struct {
	// Path opens this shared library directly.
	Path string
	// Strategy is handed to turso-go-platform-libs ("mixed", "system", ...).
	Strategy string
	// Logger receives the library's tracing output. Nil disables forwarding.
	Logger *zap.Logger
}

func (cfg LoadConfig) platformConfig() turso_libs.LoadTursoLibraryConfig {
	return turso_libs.LoadTursoLibraryConfig{LoadStrategy: turso_libs.LibraryLoadStrategy(cfg.Strategy)}
}

var (
	loadOnce sync.Once
	loadErr  error
)

// Load resolves and registers the library once per process. Later calls
// return the first outcome regardless of cfg.
func Load(cfg LoadConfig) error {
	loadOnce.Do(func() {
		loadErr = load(cfg)
	})
	return loadErr
}

// Available loads the library with defaults unless already attempted and
// reports whether it is usable.
func Available() bool {
	return Load(LoadConfig{}) == nil
}

func load(cfg LoadConfig) (err error) {
	path := cfg.Path
	if path == "" {
		path = os.Getenv(LibraryPathEnv)
	}
	var handle uintptr
	if path != "" {
		handle, err = openLibrary(path)
	} else {
		handle, err = turso_libs.LoadTursoLibrary(cfg.platformConfig())
	}
	if err != nil {
		return fmt.Errorf("native: load turso library: %w", err)
	}
	// purego panics on a missing symbol; an old library must not take the
	// process down.
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("native: register turso library: %v", r)
		}
	}()
	register_turso_db(handle)
	register_turso_sync(handle)

	setup := TursoConfig{LogLevel: "info"}
	if cfg.Logger != nil {
		log := cfg.Logger.Named("turso")
		if log.Core().Enabled(zapcore.DebugLevel) {
			setup.LogLevel = "debug"
		}
		setup.Logger = func(l TursoLog) {
			if ce := log.Check(tracingLevel(l.Level), l.Message); ce != nil {
				ce.Write(zap.String("target", l.Target), zap.String("file", l.File), zap.Uint("line", l.Line))
			}
		}
	}
	return turso_setup(setup)
}

func tracingLevel(l TursoTracingLevel) zapcore.Level {
	switch l {
	case TURSO_TRACING_LEVEL_ERROR:
		return zapcore.ErrorLevel
	case TURSO_TRACING_LEVEL_WARN:
		return zapcore.WarnLevel
	case TURSO_TRACING_LEVEL_INFO:
		return zapcore.InfoLevel
	default:
		return zapcore.DebugLevel
	}
}

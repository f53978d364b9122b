package libsql

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/yaml.v3"

	"turso.tech/database/libsqlgo/engine"
	"turso.tech/database/libsqlgo/engine/embedded"
	"turso.tech/database/libsqlgo/engine/native"
	"turso.tech/database/libsqlgo/engine/remote"
)

// Local engine names.
const (
	EngineNative   = "native"
	EngineEmbedded = "embedded"
)

// Config describes a database and the engines used to reach it.
type Config struct {
	Path                string         `yaml:"path"`
	AuthToken           string         `yaml:"auth_token"`
	EncryptionKey       string         `yaml:"encryption_key"`
	SyncURL             string         `yaml:"sync_url"`
	SyncAuthToken       string         `yaml:"sync_auth_token"`
	DefaultSafeIntegers bool           `yaml:"default_safe_integers"`
	LocalEngine         string         `yaml:"local_engine"`
	Runtime             RuntimeConfig  `yaml:"runtime"`
	Remote              RemoteConfig   `yaml:"remote"`
	Native              NativeConfig   `yaml:"native"`
	Embedded            EmbeddedConfig `yaml:"embedded"`
	Log                 LogConfig      `yaml:"log"`
}

// RemoteConfig tunes the HTTP pipeline client.
type RemoteConfig struct {
	Timeout time.Duration `yaml:"timeout"`
}

// NativeConfig locates the Turso shared library.
type NativeConfig struct {
	LibraryPath  string `yaml:"library_path"`
	LoadStrategy string `yaml:"load_strategy"`
}

// EmbeddedConfig tunes the wasm SQLite engine.
type EmbeddedConfig struct {
	MemoryLimitPages uint32 `yaml:"memory_limit_pages"`
}

// LogConfig builds the zap logger used by OpenConfig.
type LogConfig struct {
	Level       string `yaml:"level"`
	Development bool   `yaml:"development"`
}

// DefaultConfig returns the configuration used when none is given.
func DefaultConfig() *Config {
	return &Config{
		LocalEngine: EngineNative,
		Remote:      RemoteConfig{Timeout: 30 * time.Second},
		Native:      NativeConfig{LoadStrategy: "mixed"},
		Log:         LogConfig{Level: "info"},
	}
}

// LoadConfig reads a YAML file on top of the defaults and applies LIBSQL_*
// environment overrides.
func LoadConfig(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errorf(KindUsage, "reading config file: %v", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, errorf(KindUsage, "parsing config file: %v", err)
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("LIBSQL_PATH"); v != "" {
		cfg.Path = v
	}
	if v := os.Getenv("LIBSQL_AUTH_TOKEN"); v != "" {
		cfg.AuthToken = v
	}
	if v := os.Getenv("LIBSQL_ENCRYPTION_KEY"); v != "" {
		cfg.EncryptionKey = v
	}
	if v := os.Getenv("LIBSQL_SYNC_URL"); v != "" {
		cfg.SyncURL = v
	}
	if v := os.Getenv("LIBSQL_SYNC_AUTH_TOKEN"); v != "" {
		cfg.SyncAuthToken = v
	}
	if v := os.Getenv("LIBSQL_LOCAL_ENGINE"); v != "" {
		cfg.LocalEngine = v
	}
	if v := os.Getenv("LIBSQL_WORKERS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Runtime.Workers = n
		}
	}
	if v := os.Getenv("LIBSQL_LOG_LEVEL"); v != "" {
		cfg.Log.Level = v
	}
}

// Validate checks the configuration for errors
func (c *Config) Validate() error {
	if c.Path == "" {
		return newError(KindUsage, "path is required")
	}
	if c.SyncURL != "" {
		if !IsRemotePath(c.SyncURL) {
			return errorf(KindUsage, "sync_url %q is not a remote url", c.SyncURL)
		}
		if IsRemotePath(c.Path) {
			return newError(KindUsage, "a replica needs a local path")
		}
	}
	switch c.LocalEngine {
	case "", EngineNative, EngineEmbedded:
	default:
		return errorf(KindUsage, "unknown local_engine %q", c.LocalEngine)
	}
	if c.Runtime.Workers < 0 {
		return errorf(KindUsage, "runtime.workers must be >= 0, got %d", c.Runtime.Workers)
	}
	if c.Log.Level != "" {
		if _, err := zapcore.ParseLevel(c.Log.Level); err != nil {
			return errorf(KindUsage, "log.level: %v", err)
		}
	}
	return nil
}

// Build creates the logger the configuration describes.
func (l *LogConfig) Build() (*zap.Logger, error) {
	zc := zap.NewProductionConfig()
	if l.Development {
		zc = zap.NewDevelopmentConfig()
	}
	if l.Level != "" {
		level, err := zapcore.ParseLevel(l.Level)
		if err != nil {
			return nil, fmt.Errorf("log level: %w", err)
		}
		zc.Level = zap.NewAtomicLevelAt(level)
	}
	return zc.Build()
}

// newEngine assembles the backends: remote paths go over HTTP, replicas
// always use the native library, and local files use LocalEngine.
func (c *Config) newEngine(log *zap.Logger) engine.Engine {
	nat := native.New(native.Config{
		LibraryPath:  c.Native.LibraryPath,
		LoadStrategy: c.Native.LoadStrategy,
		Logger:       log,
	})
	mux := engine.Mux{
		Local:   nat,
		Remote:  remote.New(remote.Config{Timeout: c.Remote.Timeout}),
		Replica: nat,
	}
	if c.LocalEngine == EngineEmbedded {
		mux.Local = embedded.New(embedded.Config{MemoryLimitPages: c.Embedded.MemoryLimitPages})
	}
	return mux
}

// OpenConfig validates cfg and opens the database it describes. A positive
// runtime.workers gives the database its own runtime, shut down on Close.
func OpenConfig(cfg *Config, opts ...Option) (*Database, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	log := Logger()
	if cfg.Log.Level != "" || cfg.Log.Development {
		l, err := cfg.Log.Build()
		if err != nil {
			return nil, errorf(KindUsage, "building logger: %v", err)
		}
		log = l
	}
	base := []Option{
		WithLogger(log),
		WithAuthToken(cfg.AuthToken),
		WithSyncAuthToken(cfg.SyncAuthToken),
		WithEncryptionKey(cfg.EncryptionKey),
		WithDefaultSafeIntegers(cfg.DefaultSafeIntegers),
		WithEngine(cfg.newEngine(log)),
	}
	var owned *Runtime
	if cfg.Runtime.Workers > 0 {
		owned = NewRuntime(cfg.Runtime)
		base = append(base, WithRuntime(owned))
	}
	opts = append(base, opts...)

	var db *Database
	var err error
	if cfg.SyncURL != "" {
		db, err = OpenWithReplicaSync(cfg.Path, cfg.SyncURL, opts...)
	} else {
		db, err = Open(cfg.Path, opts...)
	}
	if err != nil {
		if owned != nil {
			owned.Shutdown()
		}
		return nil, err
	}
	db.ownedRuntime = owned
	return db, nil
}

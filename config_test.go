package libsql

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"turso.tech/database/libsqlgo/engine"
	"turso.tech/database/libsqlgo/engine/embedded"
	"turso.tech/database/libsqlgo/engine/native"
	"turso.tech/database/libsqlgo/engine/remote"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "libsql.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadConfig(t *testing.T) {
	path := writeConfig(t, `
path: app.db
encryption_key: s3cret
default_safe_integers: true
local_engine: embedded
runtime:
  workers: 3
remote:
  timeout: 5s
embedded:
  memory_limit_pages: 512
log:
  level: debug
`)
	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "app.db", cfg.Path)
	assert.Equal(t, "s3cret", cfg.EncryptionKey)
	assert.True(t, cfg.DefaultSafeIntegers)
	assert.Equal(t, EngineEmbedded, cfg.LocalEngine)
	assert.Equal(t, 3, cfg.Runtime.Workers)
	assert.Equal(t, 5*time.Second, cfg.Remote.Timeout)
	assert.Equal(t, uint32(512), cfg.Embedded.MemoryLimitPages)
	assert.Equal(t, "debug", cfg.Log.Level)
	// untouched defaults survive
	assert.Equal(t, "mixed", cfg.Native.LoadStrategy)
}

func TestLoadConfigEnvOverrides(t *testing.T) {
	path := writeConfig(t, "path: file.db\nlocal_engine: native\n")
	t.Setenv("LIBSQL_PATH", "env.db")
	t.Setenv("LIBSQL_LOCAL_ENGINE", "embedded")
	t.Setenv("LIBSQL_WORKERS", "6")
	t.Setenv("LIBSQL_AUTH_TOKEN", "tok")
	t.Setenv("LIBSQL_SYNC_URL", "libsql://db.example.com")
	t.Setenv("LIBSQL_SYNC_AUTH_TOKEN", "sync-tok")
	t.Setenv("LIBSQL_LOG_LEVEL", "warn")

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "env.db", cfg.Path)
	assert.Equal(t, EngineEmbedded, cfg.LocalEngine)
	assert.Equal(t, 6, cfg.Runtime.Workers)
	assert.Equal(t, "tok", cfg.AuthToken)
	assert.Equal(t, "libsql://db.example.com", cfg.SyncURL)
	assert.Equal(t, "sync-tok", cfg.SyncAuthToken)
	assert.Equal(t, "warn", cfg.Log.Level)
}

func TestLoadConfigErrors(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	require.ErrorIs(t, err, ErrUsage)

	_, err = LoadConfig(writeConfig(t, "path: [unterminated"))
	require.ErrorIs(t, err, ErrUsage)
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name   string
		modify func(*Config)
		ok     bool
	}{
		{"defaults with path", func(c *Config) {}, true},
		{"missing path", func(c *Config) { c.Path = "" }, false},
		{"unknown engine", func(c *Config) { c.LocalEngine = "cgo" }, false},
		{"negative workers", func(c *Config) { c.Runtime.Workers = -1 }, false},
		{"bad log level", func(c *Config) { c.Log.Level = "loud" }, false},
		{"local sync url", func(c *Config) { c.SyncURL = "/tmp/primary.db" }, false},
		{"remote replica path", func(c *Config) {
			c.Path = "libsql://a.example.com"
			c.SyncURL = "libsql://b.example.com"
		}, false},
		{"replica", func(c *Config) { c.SyncURL = "https://db.example.com" }, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			cfg.Path = "local.db"
			tt.modify(cfg)
			err := cfg.Validate()
			if tt.ok {
				require.NoError(t, err)
			} else {
				require.ErrorIs(t, err, ErrUsage)
			}
		})
	}
}

func TestNewEngineRouting(t *testing.T) {
	cfg := DefaultConfig()
	mux, ok := cfg.newEngine(Logger()).(engine.Mux)
	require.True(t, ok)
	assert.IsType(t, &native.Engine{}, mux.Local)
	assert.IsType(t, &remote.Engine{}, mux.Remote)
	assert.IsType(t, &native.Engine{}, mux.Replica)

	cfg.LocalEngine = EngineEmbedded
	mux = cfg.newEngine(Logger()).(engine.Mux)
	assert.IsType(t, &embedded.Engine{}, mux.Local)
	assert.IsType(t, &native.Engine{}, mux.Replica)
}

func TestOpenConfig(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Path = filepath.Join(t.TempDir(), "cfg.db")
	cfg.LocalEngine = EngineEmbedded
	cfg.DefaultSafeIntegers = true
	cfg.Runtime.Workers = 2
	cfg.Log.Level = "error"

	db, err := OpenConfig(cfg)
	require.NoError(t, err)
	defer db.Close()
	require.NotNil(t, db.ownedRuntime)

	_, err = db.ExecAsync("CREATE TABLE t(x); INSERT INTO t VALUES (1)").Await()
	require.NoError(t, err)
	st := mustPrepare(t, db, "SELECT x FROM t")
	row, err := st.Get()
	require.NoError(t, err)
	require.Equal(t, map[string]any{"x": int64(1)}, row)

	cfg.Path = ""
	_, err = OpenConfig(cfg)
	require.ErrorIs(t, err, ErrUsage)
}

func TestLogConfigBuild(t *testing.T) {
	l, err := (&LogConfig{Level: "debug", Development: true}).Build()
	require.NoError(t, err)
	assert.True(t, l.Core().Enabled(-1))

	_, err = (&LogConfig{Level: "nope"}).Build()
	require.Error(t, err)
}

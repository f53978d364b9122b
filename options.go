package libsql

import (
	"go.uber.org/zap"

	"turso.tech/database/libsqlgo/engine"
)

// Option configures Open and OpenWithReplicaSync.
type Option func(*options)

type options struct {
	authToken     string
	syncAuthToken string
	encryptionKey string
	safeIntegers  bool
	runtime       *Runtime
	engine        engine.Engine
	logger        *zap.Logger
}

// WithAuthToken authenticates against a remote database.
func WithAuthToken(token string) Option {
	return func(o *options) { o.authToken = token }
}

// WithSyncAuthToken authenticates a replica against its primary.
func WithSyncAuthToken(token string) Option {
	return func(o *options) { o.syncAuthToken = token }
}

// WithEncryptionKey encrypts a local database or replica at rest. It is
// ignored for remote databases.
func WithEncryptionKey(key string) Option {
	return func(o *options) { o.encryptionKey = key }
}

// WithDefaultSafeIntegers sets the initial DefaultSafeIntegers value.
func WithDefaultSafeIntegers(on bool) Option {
	return func(o *options) { o.safeIntegers = on }
}

// WithRuntime runs the database's async operations on rt instead of the
// default runtime.
func WithRuntime(rt *Runtime) Option {
	return func(o *options) { o.runtime = rt }
}

// WithEngine replaces the engine backends.
func WithEngine(e engine.Engine) Option {
	return func(o *options) { o.engine = e }
}

// WithLogger replaces the package logger for one database.
func WithLogger(l *zap.Logger) Option {
	return func(o *options) { o.logger = l }
}

func buildOptions(opts []Option) *options {
	o := &options{}
	for _, opt := range opts {
		opt(o)
	}
	if o.logger == nil {
		o.logger = Logger()
	}
	if o.engine == nil {
		o.engine = DefaultConfig().newEngine(o.logger)
	}
	return o
}

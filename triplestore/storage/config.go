package storage

import (
	"fmt"
	"io"
	"log/slog"

	"github.com/dgraph-io/badger/v4"

	"github.com/wbrown/janus-triplestore/triplestore/annotations"
)

// Config holds configuration for a Store.
type Config struct {
	// Path is the directory for store files. Ignored when InMemory is true.
	Path string

	// InMemory keeps everything in RAM. Useful for testing.
	InMemory bool

	// SyncWrites fsyncs every commit and head change before returning
	SyncWrites bool

	// Logger receives store and badger logs. Nil discards them.
	Logger *slog.Logger

	// Handler receives annotation events. Nil disables them.
	Handler annotations.Handler

	// CacheLayers keeps loaded layers reachable by name while anything
	// else holds them, so repeated loads share one instance.
	CacheLayers bool
}

// DefaultConfig returns a durable on-disk configuration rooted at path
func DefaultConfig(path string) Config {
	return Config{
		Path:        path,
		SyncWrites:  true,
		CacheLayers: true,
	}
}

// InMemoryConfig returns a configuration for tests: no disk I/O, no fsync
func InMemoryConfig() Config {
	return Config{
		InMemory:    true,
		CacheLayers: true,
	}
}

func (c Config) logger() *slog.Logger {
	if c.Logger != nil {
		return c.Logger
	}
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// badgerOptions translates the config into tuned badger options
func (c Config) badgerOptions() (badger.Options, error) {
	var opts badger.Options
	if c.InMemory {
		opts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		if c.Path == "" {
			return opts, fmt.Errorf("path is required for an on-disk store")
		}
		opts = badger.DefaultOptions(c.Path)
	}

	opts = opts.WithSyncWrites(c.SyncWrites)
	opts = opts.WithNumVersionsToKeep(1)
	if c.Logger != nil {
		opts = opts.WithLogger(&badgerLogger{logger: c.Logger.With("component", "badger")})
	} else {
		opts = opts.WithLogger(nil)
	}

	// Layer records are small and read far more often than written
	opts.MemTableSize = 64 << 20
	opts.BlockCacheSize = 64 << 20
	opts.IndexCacheSize = 32 << 20
	opts.NumCompactors = 2
	opts.ValueThreshold = 1 << 10

	// Head changes rely on conflict detection
	opts.DetectConflicts = true
	return opts, nil
}

// badgerLogger adapts slog.Logger to badger's Logger interface.
type badgerLogger struct {
	logger *slog.Logger
}

func (l *badgerLogger) Errorf(format string, args ...interface{}) {
	l.logger.Error(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Warningf(format string, args ...interface{}) {
	l.logger.Warn(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Infof(format string, args ...interface{}) {
	l.logger.Info(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Debugf(format string, args ...interface{}) {
	l.logger.Debug(fmt.Sprintf(format, args...))
}

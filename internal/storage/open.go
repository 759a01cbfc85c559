package storage

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"

	"github.com/me/affluence/internal/config"
	"github.com/me/affluence/internal/logging"
	"github.com/me/affluence/pkg/session"
)

// Lister is implemented by stores that can enumerate their keys.
type Lister interface {
	Keys(ctx context.Context) ([]string, error)
}

// Open creates the store selected by cfg.Backend. SQL stores are migrated
// before they are returned.
func Open(ctx context.Context, cfg config.StorageConfig, logger *slog.Logger) (session.Store, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = logging.Discard()
	}
	logger.Debug("opening store", "backend", cfg.Backend)

	switch cfg.Backend {
	case config.BackendMemory:
		return session.NewMemoryStore(), nil

	case config.BackendFile:
		path, err := cfg.ResolvedPath()
		if err != nil {
			return nil, err
		}
		st, err := NewFileStore(path, logger)
		if err != nil {
			return nil, err
		}
		return st, nil

	case config.BackendSQLite:
		path, err := cfg.ResolvedPath()
		if err != nil {
			return nil, err
		}
		if path != ":memory:" {
			if err := ensureDir(path); err != nil {
				return nil, err
			}
		}
		st, err := NewSQLiteStore(path, logger)
		if err != nil {
			return nil, err
		}
		return migrated(ctx, st)

	case config.BackendMySQL:
		st, err := NewMySQLStore(ctx, cfg.MysqlDSN, logger)
		if err != nil {
			return nil, err
		}
		return migrated(ctx, st)

	case config.BackendRedis:
		st, err := NewRedisStore(ctx, RedisConfig{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
			Prefix:   cfg.RedisPrefix,
		}, logger)
		if err != nil {
			return nil, err
		}
		return st, nil
	}
	return nil, fmt.Errorf("unknown storage backend %q", cfg.Backend)
}

// ListKeys returns the keys of st when the backend can enumerate them.
func ListKeys(ctx context.Context, st session.Store) ([]string, error) {
	switch s := st.(type) {
	case Lister:
		return s.Keys(ctx)
	case *session.MemoryStore:
		return s.Keys(), nil
	}
	return nil, fmt.Errorf("store %T cannot list keys", st)
}

func migrated(ctx context.Context, st *SQLStore) (session.Store, error) {
	if err := st.Migrate(ctx); err != nil {
		st.Close()
		return nil, err
	}
	return st, nil
}

func ensureDir(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return fmt.Errorf("create storage directory: %w", err)
	}
	return nil
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

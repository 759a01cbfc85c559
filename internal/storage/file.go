// Package storage provides the persistent session.Store backends: a JSON
// file, SQL databases (SQLite, MySQL) and Redis.
package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/me/affluence/pkg/session"
)

// FileStore keeps all keys in one JSON object file. Every write replaces the
// file through a temp file and rename, so readers never see a partial file.
// The mutex serialises writers within a process only; concurrent processes
// are last-write-wins.
type FileStore struct {
	path   string
	logger *slog.Logger

	mu sync.Mutex
}

var _ session.Store = (*FileStore)(nil)

// NewFileStore returns a FileStore at path, creating its directory (0700).
// The file itself is created on first write.
func NewFileStore(path string, logger *slog.Logger) (*FileStore, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, fmt.Errorf("create storage directory: %w", err)
	}
	return &FileStore{
		path:   path,
		logger: logger.With("component", "store", "backend", "file"),
	}, nil
}

// Path returns the backing file path.
func (s *FileStore) Path() string {
	return s.path
}

func (s *FileStore) Get(_ context.Context, key string) (string, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := s.load()
	if err != nil {
		return "", false, err
	}
	v, ok := data[key]
	return v, ok, nil
}

func (s *FileStore) Set(ctx context.Context, key, value string) error {
	return s.Apply(ctx, session.SetOp(key, value))
}

func (s *FileStore) Delete(ctx context.Context, keys ...string) error {
	ops := make([]session.Op, len(keys))
	for i, k := range keys {
		ops[i] = session.DeleteOp(k)
	}
	return s.Apply(ctx, ops...)
}

// Apply loads the file, applies ops and writes it back in one rename.
func (s *FileStore) Apply(_ context.Context, ops ...session.Op) error {
	if len(ops) == 0 {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := s.load()
	if err != nil {
		return err
	}
	for _, op := range ops {
		if op.Delete {
			delete(data, op.Key)
		} else {
			data[op.Key] = op.Value
		}
	}
	s.logger.Debug("write", "ops", len(ops), "keys", len(data))
	return s.save(data)
}

// Keys returns the stored keys.
func (s *FileStore) Keys(_ context.Context) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := s.load()
	if err != nil {
		return nil, err
	}
	return sortedKeys(data), nil
}

func (s *FileStore) Close() error { return nil }

func (s *FileStore) load() (map[string]string, error) {
	raw, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return make(map[string]string), nil
	}
	if err != nil {
		return nil, fmt.Errorf("read storage file: %w", err)
	}
	data := make(map[string]string)
	if len(raw) == 0 {
		return data, nil
	}
	if err := json.Unmarshal(raw, &data); err != nil {
		return nil, fmt.Errorf("parse storage file %s: %w", s.path, err)
	}
	return data, nil
}

func (s *FileStore) save(data map[string]string) error {
	raw, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal storage: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(s.path), ".storage-*.tmp")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if err := tmp.Chmod(0o600); err != nil {
		tmp.Close()
		return fmt.Errorf("chmod temp file: %w", err)
	}
	if _, err := tmp.Write(raw); err != nil {
		tmp.Close()
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("sync temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		return fmt.Errorf("replace storage file: %w", err)
	}
	return nil
}

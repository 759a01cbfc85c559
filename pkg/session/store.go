// Package session owns the bearer token lifecycle of an Affluence client,
// including the admin impersonation backup, on top of a pluggable
// persistent key/value store.
package session

import (
	"context"
	"sort"
	"sync"
)

// Storage keys. The names match the keys the web frontend keeps in browser
// local storage so a store can be shared with it.
const (
	KeyToken             = "affluence_token"
	KeyAdminTokenBackup  = "affluence_admin_token_backup"
	KeyImpersonationMeta = "affluence_impersonation_meta"
	KeyAPIBase           = "affluence_api_base"
	KeyDataSaving        = "affluence_data_saving"
	KeyTheme             = "affluence_theme"
)

// Store is a persistent string key/value store.
type Store interface {
	// Get returns the value for key. ok is false when the key is absent.
	Get(ctx context.Context, key string) (value string, ok bool, err error)
	Set(ctx context.Context, key, value string) error
	Delete(ctx context.Context, keys ...string) error
	// Apply applies all ops atomically: either every op is visible
	// afterwards or none is.
	Apply(ctx context.Context, ops ...Op) error
	Close() error
}

// Op is a single write inside an atomic Apply.
type Op struct {
	Key    string
	Value  string
	Delete bool
}

// SetOp returns an Op that stores value under key.
func SetOp(key, value string) Op {
	return Op{Key: key, Value: value}
}

// DeleteOp returns an Op that removes key.
func DeleteOp(key string) Op {
	return Op{Key: key, Delete: true}
}

// MemoryStore is an in-process Store. Values do not survive the process.
type MemoryStore struct {
	mu   sync.RWMutex
	data map[string]string
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{data: make(map[string]string)}
}

func (m *MemoryStore) Get(_ context.Context, key string) (string, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.data[key]
	return v, ok, nil
}

func (m *MemoryStore) Set(_ context.Context, key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[key] = value
	return nil
}

func (m *MemoryStore) Delete(_ context.Context, keys ...string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, k := range keys {
		delete(m.data, k)
	}
	return nil
}

func (m *MemoryStore) Apply(_ context.Context, ops ...Op) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, op := range ops {
		if op.Delete {
			delete(m.data, op.Key)
		} else {
			m.data[op.Key] = op.Value
		}
	}
	return nil
}

// Keys returns the stored keys in sorted order.
func (m *MemoryStore) Keys() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	keys := make([]string, 0, len(m.data))
	for k := range m.data {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func (m *MemoryStore) Close() error { return nil }

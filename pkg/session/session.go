package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
)

var (
	// ErrEmptyToken is returned when an empty bearer token would be stored.
	ErrEmptyToken = errors.New("session: empty token")

	// ErrUnknownPreference is returned for preference keys other than the
	// data saving toggle and the theme.
	ErrUnknownPreference = errors.New("session: unknown preference")
)

// Manager owns the active bearer token and the impersonation state. One
// Manager is created per process and shared by reference.
type Manager struct {
	store  Store
	logger *slog.Logger

	mu    sync.Mutex
	token string
}

// New creates a Manager over st and primes the in-memory token from it.
func New(ctx context.Context, st Store, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	m := &Manager{
		store:  st,
		logger: logger.With("component", "session"),
	}
	if v, ok, err := st.Get(ctx, KeyToken); err != nil {
		m.logger.Warn("could not read token from store", "error", err)
	} else if ok {
		m.token = v
	}
	return m
}

// Store returns the underlying store.
func (m *Manager) Store() Store {
	return m.store
}

// SetToken stores t in memory and in the store.
func (m *Manager) SetToken(ctx context.Context, t string) error {
	if t == "" {
		return ErrEmptyToken
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.store.Set(ctx, KeyToken, t); err != nil {
		return fmt.Errorf("store token: %w", err)
	}
	m.token = t
	return nil
}

// Token returns the active token, preferring the in-memory copy. It
// returns "" when no session exists.
func (m *Manager) Token(ctx context.Context) string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.tokenLocked(ctx)
}

func (m *Manager) tokenLocked(ctx context.Context) string {
	if m.token != "" {
		return m.token
	}
	v, ok, err := m.store.Get(ctx, KeyToken)
	if err != nil {
		m.logger.Warn("could not read token from store", "error", err)
		return m.token
	}
	if ok {
		m.token = v
	}
	return m.token
}

// RemoveToken clears the active token from memory and the store.
func (m *Manager) RemoveToken(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.token = ""
	if err := m.store.Delete(ctx, KeyToken); err != nil {
		return fmt.Errorf("remove token: %w", err)
	}
	return nil
}

// IsAuthenticated reports whether a token is available.
func (m *Manager) IsAuthenticated(ctx context.Context) bool {
	return m.Token(ctx) != ""
}

// BackupToken copies the active token into the backup slot unless a backup
// already exists, in which case the existing backup is returned untouched.
// It returns "" when there is nothing to back up.
func (m *Manager) BackupToken(ctx context.Context) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.backupLocked(ctx)
}

func (m *Manager) backupLocked(ctx context.Context) (string, error) {
	current := m.tokenLocked(ctx)
	if current == "" {
		return "", nil
	}
	existing, ok, err := m.store.Get(ctx, KeyAdminTokenBackup)
	if err != nil {
		return "", fmt.Errorf("read token backup: %w", err)
	}
	if ok && existing != "" {
		return existing, nil
	}
	if err := m.store.Set(ctx, KeyAdminTokenBackup, current); err != nil {
		return "", fmt.Errorf("store token backup: %w", err)
	}
	return current, nil
}

// StartImpersonation backs up the current token, switches to token and
// records meta. The backup is written first so a failure in a later step
// still leaves the original token recoverable.
func (m *Manager) StartImpersonation(ctx context.Context, token string, meta Meta) error {
	if token == "" {
		return ErrEmptyToken
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, err := m.backupLocked(ctx); err != nil {
		return err
	}
	if err := m.store.Set(ctx, KeyToken, token); err != nil {
		return fmt.Errorf("store impersonation token: %w", err)
	}
	m.token = token
	raw, err := json.Marshal(meta)
	if err != nil {
		return fmt.Errorf("marshal impersonation meta: %w", err)
	}
	if err := m.store.Set(ctx, KeyImpersonationMeta, string(raw)); err != nil {
		// The session is usable without meta; only the display label is lost.
		m.logger.Warn("could not store impersonation meta", "error", err)
	}
	m.logger.Info("impersonation started", "user", meta.Label())
	return nil
}

// StartImpersonationFromResponse starts impersonation from an impersonate
// endpoint response. The token is taken from "access_token" or "token" and
// the meta from "user", falling back to the whole response.
func (m *Manager) StartImpersonationFromResponse(ctx context.Context, resp map[string]any) error {
	if resp == nil {
		return ErrEmptyToken
	}
	token, _ := resp["access_token"].(string)
	if token == "" {
		token, _ = resp["token"].(string)
	}
	if token == "" {
		return ErrEmptyToken
	}

	src := resp
	if u, ok := resp["user"].(map[string]any); ok {
		src = u
	}
	cp := make(map[string]any, len(src))
	for k, v := range src {
		switch k {
		case "access_token", "token", "token_type":
			continue
		}
		cp[k] = v
	}
	return m.StartImpersonation(ctx, token, MetaFromMap(cp))
}

// StopImpersonation restores the backed-up admin token and removes the
// backup and meta in one atomic store write. It reports whether a token was
// restored; with no backup it clears the active token, which is a logout.
func (m *Manager) StopImpersonation(ctx context.Context) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	backup, ok, err := m.store.Get(ctx, KeyAdminTokenBackup)
	if err != nil {
		return false, fmt.Errorf("read token backup: %w", err)
	}
	if ok && backup != "" {
		err := m.store.Apply(ctx,
			SetOp(KeyToken, backup),
			DeleteOp(KeyAdminTokenBackup),
			DeleteOp(KeyImpersonationMeta),
		)
		if err != nil {
			return false, fmt.Errorf("restore admin token: %w", err)
		}
		m.token = backup
		m.logger.Info("impersonation stopped", "restored", true)
		return true, nil
	}

	m.token = ""
	if err := m.store.Delete(ctx, KeyToken); err != nil {
		return false, fmt.Errorf("remove token: %w", err)
	}
	m.logger.Info("impersonation stopped", "restored", false)
	return false, nil
}

// IsImpersonating reports whether a token backup exists.
func (m *Manager) IsImpersonating(ctx context.Context) bool {
	v, ok, err := m.store.Get(ctx, KeyAdminTokenBackup)
	if err != nil {
		m.logger.Warn("could not read token backup", "error", err)
		return false
	}
	return ok && v != ""
}

// ImpersonationMeta returns the stored meta, or nil when none is stored or
// it cannot be parsed.
func (m *Manager) ImpersonationMeta(ctx context.Context) *Meta {
	raw, ok, err := m.store.Get(ctx, KeyImpersonationMeta)
	if err != nil || !ok || raw == "" {
		return nil
	}
	var meta Meta
	if err := json.Unmarshal([]byte(raw), &meta); err != nil {
		m.logger.Debug("invalid impersonation meta", "error", err)
		return nil
	}
	return &meta
}

// Logout ends the session, including any impersonation.
func (m *Manager) Logout(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.token = ""
	err := m.store.Apply(ctx,
		DeleteOp(KeyToken),
		DeleteOp(KeyAdminTokenBackup),
		DeleteOp(KeyImpersonationMeta),
	)
	if err != nil {
		return fmt.Errorf("logout: %w", err)
	}
	return nil
}

// preferenceKeys maps short preference names to storage keys.
var preferenceKeys = map[string]string{
	"data-saving": KeyDataSaving,
	"theme":       KeyTheme,
}

// PreferenceNames lists the known preference names.
func PreferenceNames() []string {
	return []string{"data-saving", "theme"}
}

// Preference returns a user preference by short name.
func (m *Manager) Preference(ctx context.Context, name string) (string, error) {
	key, ok := preferenceKeys[strings.ToLower(name)]
	if !ok {
		return "", fmt.Errorf("%w: %q", ErrUnknownPreference, name)
	}
	v, _, err := m.store.Get(ctx, key)
	if err != nil {
		return "", fmt.Errorf("read preference %s: %w", name, err)
	}
	return v, nil
}

// SetPreference stores a user preference by short name.
func (m *Manager) SetPreference(ctx context.Context, name, value string) error {
	key, ok := preferenceKeys[strings.ToLower(name)]
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownPreference, name)
	}
	if err := m.store.Set(ctx, key, value); err != nil {
		return fmt.Errorf("store preference %s: %w", name, err)
	}
	return nil
}

// StoredBaseURL returns the persisted API base override, or "".
func (m *Manager) StoredBaseURL(ctx context.Context) (string, error) {
	v, _, err := m.store.Get(ctx, KeyAPIBase)
	if err != nil {
		return "", fmt.Errorf("read api base: %w", err)
	}
	return v, nil
}

// SetStoredBaseURL persists an API base override.
func (m *Manager) SetStoredBaseURL(ctx context.Context, u string) error {
	return m.store.Set(ctx, KeyAPIBase, strings.TrimRight(u, "/"))
}

// ClearStoredBaseURL removes the persisted API base override.
func (m *Manager) ClearStoredBaseURL(ctx context.Context) error {
	return m.store.Delete(ctx, KeyAPIBase)
}
